package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samigerges/workflow-sub001/internal/allocation"
	"github.com/samigerges/workflow-sub001/internal/apperror"
	"github.com/samigerges/workflow-sub001/internal/voting"
	"go.uber.org/zap"
)

const (
	errorValidation = "validation_failed"
	errorNotFound   = "not_found"
	errorDuplicate  = "duplicate_vote"
	errorInternal   = "internal_error"
	errorBadRequest = "invalid_request"
	codeInternal    = "internal"
)

type errorClass struct {
	target error
	status int
	label  string
	code   string
}

var errorClasses = []errorClass{
	{target: voting.ErrInvalidSubjectType, status: http.StatusBadRequest, label: errorValidation, code: "invalid_subject_type"},
	{target: voting.ErrInvalidSubjectID, status: http.StatusBadRequest, label: errorValidation, code: "invalid_subject_id"},
	{target: voting.ErrInvalidVoterID, status: http.StatusBadRequest, label: errorValidation, code: "invalid_voter_id"},
	{target: voting.ErrInvalidDecision, status: http.StatusBadRequest, label: errorValidation, code: "invalid_decision"},
	{target: voting.ErrCommentRequired, status: http.StatusBadRequest, label: errorValidation, code: "comment_required"},
	{target: allocation.ErrInvalidEntityType, status: http.StatusBadRequest, label: errorValidation, code: "invalid_entity_type"},
	{target: allocation.ErrInvalidEntityID, status: http.StatusBadRequest, label: errorValidation, code: "invalid_entity_id"},
	{target: allocation.ErrInvalidQuantity, status: http.StatusBadRequest, label: errorValidation, code: "invalid_quantity"},
	{target: voting.ErrSubjectNotFound, status: http.StatusNotFound, label: errorNotFound, code: "subject_not_found"},
	{target: allocation.ErrEntityNotFound, status: http.StatusNotFound, label: errorNotFound, code: "entity_not_found"},
}

// writeError maps service failures onto HTTP responses.
func (h *httpHandler) writeError(c *gin.Context, err error) {
	var duplicate *voting.DuplicateVoterError
	if errors.As(err, &duplicate) {
		c.JSON(http.StatusConflict, gin.H{
			"error":         errorDuplicate,
			"code":          "duplicate_voter",
			"existing_vote": newVotePayload(duplicate.Existing),
		})
		return
	}
	if voting.IsDuplicateVoter(err) {
		c.JSON(http.StatusConflict, gin.H{"error": errorDuplicate, "code": "duplicate_voter"})
		return
	}
	for _, class := range errorClasses {
		if errors.Is(err, class.target) {
			c.JSON(class.status, gin.H{"error": class.label, "code": class.code, "message": err.Error()})
			return
		}
	}
	code, ok := apperror.CodeOf(err)
	if !ok {
		code = codeInternal
	}
	h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.String("code", code), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": errorInternal, "code": code})
}

func writeBadRequest(c *gin.Context, code string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": errorBadRequest, "code": code})
}

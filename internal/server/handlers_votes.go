package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/samigerges/workflow-sub001/internal/voting"
)

func parseSubject(c *gin.Context) (voting.SubjectType, voting.SubjectID, error) {
	subjectType, err := voting.ParseSubjectType(c.Param("type"))
	if err != nil {
		return "", 0, err
	}
	rawID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return "", 0, voting.ErrInvalidSubjectID
	}
	subjectID, err := voting.NewSubjectID(rawID)
	if err != nil {
		return "", 0, err
	}
	return subjectType, subjectID, nil
}

func (h *httpHandler) handleSubmitVote(c *gin.Context) {
	voterID, err := voting.NewVoterID(c.GetString(voterIDContextKey))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	subjectType, subjectID, err := parseSubject(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	var request submitVoteRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		writeBadRequest(c, "invalid_json")
		return
	}
	decision, err := voting.ParseDecision(request.Decision)
	if err != nil {
		h.writeError(c, err)
		return
	}

	aggregate, err := h.voting.SubmitVote(c.Request.Context(), voting.SubmitVoteRequest{
		SubjectType: subjectType,
		SubjectID:   subjectID,
		VoterID:     voterID,
		Decision:    decision,
		Comment:     request.Comment,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"decision": newDecisionPayload(aggregate)})
}

func (h *httpHandler) handleListVotes(c *gin.Context) {
	subjectType, subjectID, err := parseSubject(c)
	if err != nil {
		h.writeError(c, err)
		return
	}
	records, err := h.voting.ListVotes(c.Request.Context(), subjectType, subjectID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"votes": newVotePayloads(records)})
}

func (h *httpHandler) handleGetDecision(c *gin.Context) {
	subjectType, subjectID, err := parseSubject(c)
	if err != nil {
		h.writeError(c, err)
		return
	}
	aggregate, err := h.voting.GetAggregateDecision(c.Request.Context(), subjectType, subjectID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"decision": newDecisionPayload(aggregate)})
}

func (h *httpHandler) handleDocumentGroups(c *gin.Context) {
	ownerType, ownerID, err := parseSubject(c)
	if err != nil {
		h.writeError(c, err)
		return
	}
	groups, err := h.documents.DocumentVoteGroups(c.Request.Context(), ownerType, ownerID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": newDocumentGroupPayloads(groups)})
}

package voting

import (
	"errors"
	"fmt"
	"strings"
)

const maxIdentifierLength = 190

var (
	// ErrInvalidSubjectType indicates that a subject type is not one of the known voting subjects.
	ErrInvalidSubjectType = errors.New("voting: invalid subject type")
	// ErrInvalidSubjectID indicates that a subject identifier is not a positive integer.
	ErrInvalidSubjectID = errors.New("voting: invalid subject id")
	// ErrInvalidVoterID indicates that a voter identifier is empty or exceeds storage bounds.
	ErrInvalidVoterID = errors.New("voting: invalid voter id")
	// ErrInvalidDecision indicates that a decision value cannot be cast.
	ErrInvalidDecision = errors.New("voting: invalid decision")
	// ErrCommentRequired indicates that a rejection was submitted without a comment.
	ErrCommentRequired = errors.New("voting: comment required on rejection")
	// ErrSubjectNotFound indicates that the voting subject does not exist.
	ErrSubjectNotFound = errors.New("voting: subject not found")
	// ErrDuplicateVoter indicates that the voter already has a recorded decision for the subject.
	ErrDuplicateVoter = errors.New("voting: voter already recorded a decision")
)

// SubjectType enumerates entities a vote can be cast against.
type SubjectType string

const (
	SubjectTypeContract SubjectType = "contract"
	SubjectTypeDocument SubjectType = "document"
	SubjectTypeRequest  SubjectType = "request"
)

// ParseSubjectType validates raw input and returns a SubjectType.
func ParseSubjectType(rawInput string) (SubjectType, error) {
	switch SubjectType(strings.ToLower(strings.TrimSpace(rawInput))) {
	case SubjectTypeContract:
		return SubjectTypeContract, nil
	case SubjectTypeDocument:
		return SubjectTypeDocument, nil
	case SubjectTypeRequest:
		return SubjectTypeRequest, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSubjectType, rawInput)
	}
}

// String returns the persisted subject type value.
func (subjectType SubjectType) String() string {
	return string(subjectType)
}

// SubjectID represents a validated subject identifier.
type SubjectID int64

// NewSubjectID validates the value and returns a SubjectID.
func NewSubjectID(value int64) (SubjectID, error) {
	if value <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidSubjectID, value)
	}
	return SubjectID(value), nil
}

// Int64 exposes the raw identifier.
func (id SubjectID) Int64() int64 {
	return int64(id)
}

// VoterID represents a validated, opaque voter identifier.
type VoterID string

// NewVoterID validates raw input and returns a VoterID.
func NewVoterID(rawInput string) (VoterID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidVoterID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidVoterID, maxIdentifierLength)
	}
	return VoterID(trimmed), nil
}

// String returns the underlying identifier.
func (id VoterID) String() string {
	return string(id)
}

// Decision is the closed set of values a stored vote can hold.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
	// DecisionPending marks an uploaded document placeholder that nobody has voted on yet.
	// It is written by the upload flow and can never be submitted as a vote.
	DecisionPending Decision = "pending"
)

// ParseDecision maps raw input, including the contract opinion aliases, onto a Decision.
func ParseDecision(rawInput string) (Decision, error) {
	switch strings.ToLower(strings.TrimSpace(rawInput)) {
	case "approve", "approved", "yes":
		return DecisionApprove, nil
	case "reject", "rejected", "no":
		return DecisionReject, nil
	case "pending":
		return DecisionPending, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDecision, rawInput)
	}
}

// String returns the persisted decision value.
func (decision Decision) String() string {
	return string(decision)
}

// Castable reports whether a voter may submit the decision.
func (decision Decision) Castable() bool {
	switch decision {
	case DecisionApprove, DecisionReject:
		return true
	case DecisionPending:
		return false
	default:
		return false
	}
}

// DocumentRef identifies an uploaded document by its stored name and path.
type DocumentRef struct {
	FileName string
	FilePath string
}

// IsZero reports whether the reference is empty.
func (ref DocumentRef) IsZero() bool {
	return ref.FileName == "" && ref.FilePath == ""
}

// Vote is the persisted ledger row.
type Vote struct {
	ID               int64  `gorm:"column:id;primaryKey;autoIncrement"`
	SubjectType      string `gorm:"column:subject_type;size:32;not null;uniqueIndex:idx_votes_subject_voter,priority:1;index:idx_votes_subject_created,priority:1"`
	SubjectID        int64  `gorm:"column:subject_id;not null;uniqueIndex:idx_votes_subject_voter,priority:2;index:idx_votes_subject_created,priority:2"`
	VoterID          string `gorm:"column:voter_id;size:190;not null;uniqueIndex:idx_votes_subject_voter,priority:3"`
	Decision         string `gorm:"column:decision;size:32;not null"`
	Comment          string `gorm:"column:comment;type:text;not null;default:''"`
	FileName         string `gorm:"column:file_name;size:512;not null;default:''"`
	FilePath         string `gorm:"column:file_path;size:1024;not null;default:''"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null;index:idx_votes_subject_created,priority:3"`
}

// TableName provides the explicit table binding for GORM.
func (Vote) TableName() string {
	return "votes"
}

// VoteRecord is the validated read model of a stored vote.
type VoteRecord struct {
	ID               int64
	SubjectType      SubjectType
	SubjectID        SubjectID
	VoterID          VoterID
	Decision         Decision
	Comment          string
	Document         DocumentRef
	CreatedAtSeconds int64

	// RawDecision holds the stored decision when it could not be parsed.
	RawDecision string
}

// Recognized reports whether the stored decision mapped onto a known Decision.
func (record VoteRecord) Recognized() bool {
	return record.Decision != ""
}

func recordFromModel(model Vote) (VoteRecord, error) {
	subjectType, err := ParseSubjectType(model.SubjectType)
	if err != nil {
		return VoteRecord{}, err
	}
	subjectID, err := NewSubjectID(model.SubjectID)
	if err != nil {
		return VoteRecord{}, err
	}
	voterID, err := NewVoterID(model.VoterID)
	if err != nil {
		return VoteRecord{}, err
	}
	record := VoteRecord{
		ID:               model.ID,
		SubjectType:      subjectType,
		SubjectID:        subjectID,
		VoterID:          voterID,
		Comment:          model.Comment,
		Document:         DocumentRef{FileName: model.FileName, FilePath: model.FilePath},
		CreatedAtSeconds: model.CreatedAtSeconds,
	}
	decision, decisionErr := ParseDecision(model.Decision)
	if decisionErr != nil {
		record.RawDecision = model.Decision
		return record, nil
	}
	record.Decision = decision
	return record, nil
}

// SubmitVoteRequest captures the raw input a caller supplies when casting a vote.
type SubmitVoteRequest struct {
	SubjectType SubjectType
	SubjectID   SubjectID
	VoterID     VoterID
	Decision    Decision
	Comment     string
}

// DuplicateVoterError reports a second vote from the same voter and carries the original.
type DuplicateVoterError struct {
	Existing VoteRecord
}

func (e *DuplicateVoterError) Error() string {
	return fmt.Sprintf("%s: voter %s on %s/%d", ErrDuplicateVoter.Error(), e.Existing.VoterID, e.Existing.SubjectType, e.Existing.SubjectID)
}

func (e *DuplicateVoterError) Unwrap() error {
	return ErrDuplicateVoter
}

// IsValidation reports whether err is a caller input violation.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidSubjectType) ||
		errors.Is(err, ErrInvalidSubjectID) ||
		errors.Is(err, ErrInvalidVoterID) ||
		errors.Is(err, ErrInvalidDecision) ||
		errors.Is(err, ErrCommentRequired)
}

// IsDuplicateVoter reports whether err signals an already recorded vote.
func IsDuplicateVoter(err error) bool {
	return errors.Is(err, ErrDuplicateVoter)
}

// IsNotFound reports whether err signals a missing subject.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSubjectNotFound)
}

package voting

import (
	"fmt"
	"strings"
)

// AggregateStatus is the derived overall approval state of a subject.
type AggregateStatus string

const (
	StatusNoVotes       AggregateStatus = "NO_VOTES"
	StatusApproved      AggregateStatus = "APPROVED"
	StatusPendingReview AggregateStatus = "PENDING_REVIEW"
	StatusRejected      AggregateStatus = "REJECTED"
)

// String returns the wire representation of the status.
func (status AggregateStatus) String() string {
	return string(status)
}

// AggregateDecision tallies the votes recorded against one subject.
type AggregateDecision struct {
	Status     AggregateStatus
	Approvals  int
	Rejections int
	Pending    int

	// Unrecognized counts stored votes whose decision is outside the known set.
	// They never influence Status.
	Unrecognized int
}

// Total returns the number of votes that contributed to Status.
func (aggregate AggregateDecision) Total() int {
	return aggregate.Approvals + aggregate.Rejections + aggregate.Pending
}

// Aggregate computes the decision for a set of votes. Order never matters:
// any rejection wins, then any pending placeholder, then any approval.
func Aggregate(records []VoteRecord) AggregateDecision {
	aggregate := AggregateDecision{}
	for _, record := range records {
		switch record.Decision {
		case DecisionApprove:
			aggregate.Approvals++
		case DecisionReject:
			aggregate.Rejections++
		case DecisionPending:
			aggregate.Pending++
		default:
			aggregate.Unrecognized++
		}
	}
	switch {
	case aggregate.Rejections > 0:
		aggregate.Status = StatusRejected
	case aggregate.Pending > 0:
		aggregate.Status = StatusPendingReview
	case aggregate.Approvals > 0:
		aggregate.Status = StatusApproved
	default:
		aggregate.Status = StatusNoVotes
	}
	return aggregate
}

// validateSubmission enforces the casting rules and returns the normalized comment.
func validateSubmission(request SubmitVoteRequest) (string, error) {
	if _, err := ParseSubjectType(request.SubjectType.String()); err != nil {
		return "", err
	}
	if _, err := NewSubjectID(request.SubjectID.Int64()); err != nil {
		return "", err
	}
	if _, err := NewVoterID(request.VoterID.String()); err != nil {
		return "", err
	}
	if !request.Decision.Castable() {
		return "", fmt.Errorf("%w: %q cannot be submitted", ErrInvalidDecision, request.Decision)
	}
	comment := strings.TrimSpace(request.Comment)
	if request.Decision == DecisionReject && comment == "" {
		return "", ErrCommentRequired
	}
	return comment, nil
}

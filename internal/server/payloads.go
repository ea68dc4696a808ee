package server

import (
	"github.com/samigerges/workflow-sub001/internal/allocation"
	"github.com/samigerges/workflow-sub001/internal/entities"
	"github.com/samigerges/workflow-sub001/internal/subjects"
	"github.com/samigerges/workflow-sub001/internal/voting"
	"github.com/shopspring/decimal"
)

type submitVoteRequestPayload struct {
	Decision string `json:"decision"`
	Comment  string `json:"comment"`
}

type decisionPayload struct {
	Status       string `json:"status"`
	Approvals    int    `json:"approvals"`
	Rejections   int    `json:"rejections"`
	Pending      int    `json:"pending"`
	Unrecognized int    `json:"unrecognized"`
	Total        int    `json:"total"`
}

type votePayload struct {
	ID               int64  `json:"id"`
	SubjectType      string `json:"subject_type"`
	SubjectID        int64  `json:"subject_id"`
	VoterID          string `json:"voter_id"`
	Decision         string `json:"decision"`
	Comment          string `json:"comment,omitempty"`
	FileName         string `json:"file_name,omitempty"`
	FilePath         string `json:"file_path,omitempty"`
	CreatedAtSeconds int64  `json:"created_at_s"`
}

type documentGroupPayload struct {
	FileName    string          `json:"file_name"`
	FilePath    string          `json:"file_path"`
	DocumentIDs []int64         `json:"document_ids"`
	Decision    decisionPayload `json:"decision"`
	Votes       []votePayload   `json:"votes"`
}

type quantityRequestPayload struct {
	Quantity decimal.NullDecimal `json:"quantity"`
}

type nominateVesselRequestPayload struct {
	Name     string              `json:"name"`
	Quantity decimal.NullDecimal `json:"quantity"`
}

type allocationPayload struct {
	VesselID   int64               `json:"vessel_id"`
	VesselName string              `json:"vessel_name"`
	Quantity   decimal.NullDecimal `json:"quantity"`
}

type summaryPayload struct {
	EntityType    string              `json:"entity_type"`
	EntityID      int64               `json:"entity_id"`
	Capacity      decimal.Decimal     `json:"capacity"`
	Allocated     decimal.Decimal     `json:"allocated"`
	Remaining     decimal.Decimal     `json:"remaining"`
	OverAllocated bool                `json:"over_allocated"`
	Allocations   []allocationPayload `json:"allocations"`
}

type vesselPayload struct {
	ID         int64               `json:"id"`
	Name       string              `json:"name"`
	ContractID int64               `json:"contract_id"`
	Quantity   decimal.NullDecimal `json:"quantity"`
}

type letterOfCreditVesselPayload struct {
	LetterOfCreditID int64               `json:"letter_of_credit_id"`
	VesselID         int64               `json:"vessel_id"`
	Quantity         decimal.NullDecimal `json:"quantity"`
}

func newDecisionPayload(aggregate voting.AggregateDecision) decisionPayload {
	return decisionPayload{
		Status:       aggregate.Status.String(),
		Approvals:    aggregate.Approvals,
		Rejections:   aggregate.Rejections,
		Pending:      aggregate.Pending,
		Unrecognized: aggregate.Unrecognized,
		Total:        aggregate.Total(),
	}
}

func newVotePayload(record voting.VoteRecord) votePayload {
	decision := record.Decision.String()
	if !record.Recognized() {
		decision = record.RawDecision
	}
	return votePayload{
		ID:               record.ID,
		SubjectType:      record.SubjectType.String(),
		SubjectID:        record.SubjectID.Int64(),
		VoterID:          record.VoterID.String(),
		Decision:         decision,
		Comment:          record.Comment,
		FileName:         record.Document.FileName,
		FilePath:         record.Document.FilePath,
		CreatedAtSeconds: record.CreatedAtSeconds,
	}
}

func newVotePayloads(records []voting.VoteRecord) []votePayload {
	payloads := make([]votePayload, 0, len(records))
	for _, record := range records {
		payloads = append(payloads, newVotePayload(record))
	}
	return payloads
}

func newDocumentGroupPayloads(groups []subjects.DocumentVoteGroup) []documentGroupPayload {
	payloads := make([]documentGroupPayload, 0, len(groups))
	for _, group := range groups {
		payloads = append(payloads, documentGroupPayload{
			FileName:    group.Document.FileName,
			FilePath:    group.Document.FilePath,
			DocumentIDs: group.DocumentIDs,
			Decision:    newDecisionPayload(group.Decision),
			Votes:       newVotePayloads(group.Votes),
		})
	}
	return payloads
}

func newSummaryPayload(summary allocation.Summary) summaryPayload {
	allocations := make([]allocationPayload, 0, len(summary.Allocations))
	for _, child := range summary.Allocations {
		allocations = append(allocations, allocationPayload{
			VesselID:   child.VesselID,
			VesselName: child.VesselName,
			Quantity:   child.Quantity,
		})
	}
	return summaryPayload{
		EntityType:    summary.EntityType.String(),
		EntityID:      summary.EntityID.Int64(),
		Capacity:      summary.Capacity,
		Allocated:     summary.Allocated,
		Remaining:     summary.Remaining,
		OverAllocated: summary.OverAllocated,
		Allocations:   allocations,
	}
}

func newVesselPayload(vessel entities.Vessel) vesselPayload {
	return vesselPayload{
		ID:         vessel.ID,
		Name:       vessel.Name,
		ContractID: vessel.ContractID,
		Quantity:   vessel.Quantity,
	}
}

package voting

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	querySubject      = "subject_type = ? AND subject_id = ?"
	querySubjectIn    = "subject_type = ? AND subject_id IN ?"
	querySubjectVoter = "subject_type = ? AND subject_id = ? AND voter_id = ?"
	orderCreationAsc  = "created_at_s ASC, id ASC"
)

var errMissingLedgerDatabase = errors.New("voting: ledger database handle is required")

// Ledger is the append-only vote store. Duplicate detection is delegated to the
// unique (subject_type, subject_id, voter_id) index so concurrent submissions
// from one voter serialize at the storage layer.
type Ledger struct {
	db *gorm.DB
}

// NewLedger binds a ledger to the provided database handle.
func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// Append inserts the vote unless the voter already has one for the subject,
// in which case a *DuplicateVoterError holding the existing vote is returned.
func (ledger *Ledger) Append(ctx context.Context, vote Vote) (VoteRecord, error) {
	if ledger == nil || ledger.db == nil {
		return VoteRecord{}, errMissingLedgerDatabase
	}
	model := vote
	model.ID = 0
	createResult := ledger.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model)
	if createResult.Error != nil {
		return VoteRecord{}, createResult.Error
	}
	if createResult.RowsAffected == 0 {
		existing, found, err := ledger.Find(ctx, SubjectType(vote.SubjectType), SubjectID(vote.SubjectID), VoterID(vote.VoterID))
		if err != nil {
			return VoteRecord{}, err
		}
		if !found {
			// Conflict on a row that is gone again; votes are never deleted, so this is corruption.
			return VoteRecord{}, ErrDuplicateVoter
		}
		return VoteRecord{}, &DuplicateVoterError{Existing: existing}
	}
	return recordFromModel(model)
}

// Find returns the vote a voter recorded for the subject, if any.
func (ledger *Ledger) Find(ctx context.Context, subjectType SubjectType, subjectID SubjectID, voterID VoterID) (VoteRecord, bool, error) {
	if ledger == nil || ledger.db == nil {
		return VoteRecord{}, false, errMissingLedgerDatabase
	}
	var model Vote
	err := ledger.db.WithContext(ctx).
		Where(querySubjectVoter, subjectType.String(), subjectID.Int64(), voterID.String()).
		Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return VoteRecord{}, false, nil
	}
	if err != nil {
		return VoteRecord{}, false, err
	}
	record, err := recordFromModel(model)
	if err != nil {
		return VoteRecord{}, false, err
	}
	return record, true, nil
}

// ListBySubject returns the votes for a subject in creation order.
func (ledger *Ledger) ListBySubject(ctx context.Context, subjectType SubjectType, subjectID SubjectID) ([]VoteRecord, error) {
	if ledger == nil || ledger.db == nil {
		return nil, errMissingLedgerDatabase
	}
	var models []Vote
	if err := ledger.db.WithContext(ctx).
		Where(querySubject, subjectType.String(), subjectID.Int64()).
		Order(orderCreationAsc).
		Find(&models).Error; err != nil {
		return nil, err
	}
	return recordsFromModels(models)
}

// ListBySubjects returns the votes for several subjects of one type in creation order.
func (ledger *Ledger) ListBySubjects(ctx context.Context, subjectType SubjectType, subjectIDs []SubjectID) ([]VoteRecord, error) {
	if ledger == nil || ledger.db == nil {
		return nil, errMissingLedgerDatabase
	}
	if len(subjectIDs) == 0 {
		return nil, nil
	}
	rawIDs := make([]int64, 0, len(subjectIDs))
	for _, subjectID := range subjectIDs {
		rawIDs = append(rawIDs, subjectID.Int64())
	}
	var models []Vote
	if err := ledger.db.WithContext(ctx).
		Where(querySubjectIn, subjectType.String(), rawIDs).
		Order(orderCreationAsc).
		Find(&models).Error; err != nil {
		return nil, err
	}
	return recordsFromModels(models)
}

func recordsFromModels(models []Vote) ([]VoteRecord, error) {
	records := make([]VoteRecord, 0, len(models))
	for _, model := range models {
		record, err := recordFromModel(model)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

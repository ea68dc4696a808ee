// Package subjects resolves voting subjects and allocatable entities against the entity store.
package subjects

import (
	"context"
	"errors"
	"fmt"

	"github.com/samigerges/workflow-sub001/internal/allocation"
	"github.com/samigerges/workflow-sub001/internal/entities"
	"github.com/samigerges/workflow-sub001/internal/voting"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	errMissingEntities = errors.New("subjects: entity store is required")
	errMissingLedger   = errors.New("subjects: vote ledger is required")
	noOpLogger         = zap.NewNop()
)

type ResolverConfig struct {
	Entities *entities.Store
	Ledger   *voting.Ledger
	Logger   *zap.Logger
}

// Resolver maps subject and entity identifiers onto stored records.
type Resolver struct {
	entities *entities.Store
	ledger   *voting.Ledger
	logger   *zap.Logger
}

func NewResolver(cfg ResolverConfig) (*Resolver, error) {
	if cfg.Entities == nil {
		return nil, errMissingEntities
	}
	if cfg.Ledger == nil {
		return nil, errMissingLedger
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Resolver{entities: cfg.Entities, ledger: cfg.Ledger, logger: logger}, nil
}

// SubjectExists reports whether a voting subject is stored.
func (resolver *Resolver) SubjectExists(ctx context.Context, subjectType voting.SubjectType, subjectID voting.SubjectID) (bool, error) {
	if subjectID.Int64() <= 0 {
		return false, nil
	}
	switch subjectType {
	case voting.SubjectTypeContract:
		return resolver.entities.ContractExists(ctx, subjectID.Int64())
	case voting.SubjectTypeDocument:
		return resolver.entities.DocumentExists(ctx, subjectID.Int64())
	case voting.SubjectTypeRequest:
		return resolver.entities.ContractRequestExists(ctx, subjectID.Int64())
	default:
		return false, fmt.Errorf("%w: %q", voting.ErrInvalidSubjectType, subjectType)
	}
}

// DocumentReference returns the stored file name and path of a document subject.
func (resolver *Resolver) DocumentReference(ctx context.Context, subjectID voting.SubjectID) (voting.DocumentRef, error) {
	document, err := resolver.entities.DocumentByID(ctx, subjectID.Int64())
	if err != nil {
		if errors.Is(err, entities.ErrNotFound) {
			return voting.DocumentRef{}, fmt.Errorf("%w: document/%d", voting.ErrSubjectNotFound, subjectID)
		}
		return voting.DocumentRef{}, err
	}
	return voting.DocumentRef{FileName: document.FileName, FilePath: document.FilePath}, nil
}

// Votes returns the ledger slice of an existing subject.
func (resolver *Resolver) Votes(ctx context.Context, subjectType voting.SubjectType, subjectID voting.SubjectID) ([]voting.VoteRecord, error) {
	exists, err := resolver.SubjectExists(ctx, subjectType, subjectID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s/%d", voting.ErrSubjectNotFound, subjectType, subjectID)
	}
	return resolver.ledger.ListBySubject(ctx, subjectType, subjectID)
}

// AllocationChildren loads an entity's declared quantity and the vessels consuming it.
// A contract is consumed by the vessels nominated against it at their own quantity. A
// letter of credit is consumed through its relation rows at the relation quantity.
func (resolver *Resolver) AllocationChildren(ctx context.Context, entityType allocation.EntityType, entityID allocation.EntityID) (decimal.Decimal, []allocation.Allocation, error) {
	switch entityType {
	case allocation.EntityTypeContract:
		contract, err := resolver.entities.ContractByID(ctx, entityID.Int64())
		if err != nil {
			return decimal.Zero, nil, entityError(err)
		}
		vessels, err := resolver.entities.VesselsByContract(ctx, contract.ID)
		if err != nil {
			return decimal.Zero, nil, err
		}
		children := make([]allocation.Allocation, 0, len(vessels))
		for _, vessel := range vessels {
			children = append(children, allocation.Allocation{
				VesselID:   vessel.ID,
				VesselName: vessel.Name,
				Quantity:   vessel.Quantity,
			})
		}
		return contract.Quantity, children, nil
	case allocation.EntityTypeLetterOfCredit:
		letter, err := resolver.entities.LetterOfCreditByID(ctx, entityID.Int64())
		if err != nil {
			return decimal.Zero, nil, entityError(err)
		}
		rows, err := resolver.entities.LetterOfCreditAllocations(ctx, letter.ID)
		if err != nil {
			return decimal.Zero, nil, err
		}
		children := make([]allocation.Allocation, 0, len(rows))
		for _, row := range rows {
			children = append(children, allocation.Allocation{
				VesselID:   row.VesselID,
				VesselName: row.VesselName,
				Quantity:   row.Quantity,
			})
		}
		return letter.Quantity, children, nil
	default:
		return decimal.Zero, nil, fmt.Errorf("%w: %q", allocation.ErrInvalidEntityType, entityType)
	}
}

// DocumentVoteGroups groups the votes on every document attached to an owning subject.
// Documents nobody has voted on yet appear as groups with no votes.
func (resolver *Resolver) DocumentVoteGroups(ctx context.Context, ownerType voting.SubjectType, ownerID voting.SubjectID) ([]DocumentVoteGroup, error) {
	exists, err := resolver.SubjectExists(ctx, ownerType, ownerID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s/%d", voting.ErrSubjectNotFound, ownerType, ownerID)
	}
	documents, err := resolver.entities.DocumentsByOwner(ctx, ownerType.String(), ownerID.Int64())
	if err != nil {
		return nil, err
	}
	if len(documents) == 0 {
		return []DocumentVoteGroup{}, nil
	}

	grouper := newDocumentGrouper()
	referenceByID := make(map[voting.SubjectID]voting.DocumentRef, len(documents))
	documentIDs := make([]voting.SubjectID, 0, len(documents))
	for _, document := range documents {
		subjectID := voting.SubjectID(document.ID)
		reference := voting.DocumentRef{FileName: document.FileName, FilePath: document.FilePath}
		referenceByID[subjectID] = reference
		documentIDs = append(documentIDs, subjectID)
		grouper.addDocument(reference, subjectID)
	}

	votes, err := resolver.ledger.ListBySubjects(ctx, voting.SubjectTypeDocument, documentIDs)
	if err != nil {
		return nil, err
	}
	for _, vote := range votes {
		if vote.Document.IsZero() {
			vote.Document = referenceByID[vote.SubjectID]
		}
		if !vote.Recognized() {
			resolver.logger.Warn("vote decision unrecognized",
				zap.Int64("vote_id", vote.ID),
				zap.Int64("document_id", vote.SubjectID.Int64()),
				zap.String("stored_decision", vote.RawDecision))
		}
		grouper.addVote(vote)
	}
	return grouper.groups(), nil
}

func entityError(err error) error {
	if errors.Is(err, entities.ErrNotFound) {
		return fmt.Errorf("%w: %v", allocation.ErrEntityNotFound, err)
	}
	return err
}

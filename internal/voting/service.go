package voting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samigerges/workflow-sub001/internal/apperror"
	"go.uber.org/zap"
)

var (
	errMissingLedger    = errors.New("vote ledger is required")
	errMissingDirectory = errors.New("subject directory is required")
	noOpLogger          = zap.NewNop()
)

const (
	opServiceNew           = "voting.service.new"
	opSubmitVote           = "voting.submit_vote"
	opGetAggregateDecision = "voting.get_aggregate_decision"
	opListVotes            = "voting.list_votes"
	fieldSubjectType       = "subject_type"
	fieldSubjectID         = "subject_id"
	fieldVoterID           = "voter_id"
	reasonMissingLedger    = "missing_ledger"
	reasonMissingDirectory = "missing_directory"
	reasonSubjectLookup    = "subject_lookup_failed"
	reasonDocumentLookup   = "document_lookup_failed"
	reasonAppendFailed     = "append_failed"
	reasonQueryFailed      = "query_failed"
	refusalValidation      = "validation"
	refusalDuplicate       = "duplicate"
	refusalSubjectNotFound = "not_found"
)

// SubjectDirectory answers whether voting subjects exist and which document a
// document subject refers to.
type SubjectDirectory interface {
	SubjectExists(ctx context.Context, subjectType SubjectType, subjectID SubjectID) (bool, error)
	DocumentReference(ctx context.Context, subjectID SubjectID) (DocumentRef, error)
}

// VoteNotifier is told about every vote after it is durably recorded.
type VoteNotifier interface {
	VoteRecorded(ctx context.Context, subjectType SubjectType, subjectID SubjectID)
}

type ServiceConfig struct {
	Ledger       *Ledger
	Directory    SubjectDirectory
	Notifier     VoteNotifier
	Clock        func() time.Time
	Logger       *zap.Logger
	PromRegistry prometheus.Registerer
}

// Service is the vote policy engine.
type Service struct {
	ledger    *Ledger
	directory SubjectDirectory
	notifier  VoteNotifier
	clock     func() time.Time
	logger    *zap.Logger
	metrics   *serviceMetrics
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Ledger == nil {
		return nil, apperror.New(opServiceNew, reasonMissingLedger, errMissingLedger)
	}
	if cfg.Directory == nil {
		return nil, apperror.New(opServiceNew, reasonMissingDirectory, errMissingDirectory)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		ledger:    cfg.Ledger,
		directory: cfg.Directory,
		notifier:  cfg.Notifier,
		clock:     clock,
		logger:    logger,
		metrics:   newServiceMetrics(cfg.PromRegistry),
	}, nil
}

// SubmitVote validates and records one vote, then returns the subject's fresh aggregate.
// Refused submissions leave the ledger untouched and notify nobody.
func (service *Service) SubmitVote(ctx context.Context, request SubmitVoteRequest) (AggregateDecision, error) {
	if service.ledger == nil {
		service.logError(opSubmitVote, reasonMissingLedger, errMissingLedger)
		return AggregateDecision{}, apperror.New(opSubmitVote, reasonMissingLedger, errMissingLedger)
	}

	comment, err := validateSubmission(request)
	if err != nil {
		service.metrics.refused(refusalValidation)
		return AggregateDecision{}, err
	}

	subjectFields := []zap.Field{
		zap.String(fieldSubjectType, request.SubjectType.String()),
		zap.Int64(fieldSubjectID, request.SubjectID.Int64()),
		zap.String(fieldVoterID, request.VoterID.String()),
	}

	if err := service.requireSubject(ctx, opSubmitVote, request.SubjectType, request.SubjectID); err != nil {
		if IsNotFound(err) {
			service.metrics.refused(refusalSubjectNotFound)
		}
		return AggregateDecision{}, err
	}

	model := Vote{
		SubjectType:      request.SubjectType.String(),
		SubjectID:        request.SubjectID.Int64(),
		VoterID:          request.VoterID.String(),
		Decision:         request.Decision.String(),
		Comment:          comment,
		CreatedAtSeconds: service.clock().UTC().Unix(),
	}
	if request.SubjectType == SubjectTypeDocument {
		reference, refErr := service.directory.DocumentReference(ctx, request.SubjectID)
		if refErr != nil {
			if IsNotFound(refErr) {
				service.metrics.refused(refusalSubjectNotFound)
				return AggregateDecision{}, refErr
			}
			service.logError(opSubmitVote, reasonDocumentLookup, refErr, subjectFields...)
			return AggregateDecision{}, apperror.New(opSubmitVote, reasonDocumentLookup, refErr)
		}
		model.FileName = reference.FileName
		model.FilePath = reference.FilePath
	}

	record, err := service.ledger.Append(ctx, model)
	if err != nil {
		if IsDuplicateVoter(err) {
			service.metrics.refused(refusalDuplicate)
			service.loggerOrDefault().Info("duplicate vote refused", subjectFields...)
			return AggregateDecision{}, err
		}
		service.logError(opSubmitVote, reasonAppendFailed, err, subjectFields...)
		return AggregateDecision{}, apperror.New(opSubmitVote, reasonAppendFailed, err)
	}
	service.metrics.accepted(record.SubjectType, record.Decision)
	service.loggerOrDefault().Info("vote recorded",
		append(subjectFields, zap.String("decision", record.Decision.String()))...)

	if service.notifier != nil {
		service.notifier.VoteRecorded(ctx, record.SubjectType, record.SubjectID)
	}

	records, err := service.ledger.ListBySubject(ctx, request.SubjectType, request.SubjectID)
	if err != nil {
		service.logError(opSubmitVote, reasonQueryFailed, err, subjectFields...)
		return AggregateDecision{}, apperror.New(opSubmitVote, reasonQueryFailed, err)
	}
	return service.aggregate(records, request.SubjectType, request.SubjectID), nil
}

// GetAggregateDecision recomputes the subject's decision from its current votes.
func (service *Service) GetAggregateDecision(ctx context.Context, subjectType SubjectType, subjectID SubjectID) (AggregateDecision, error) {
	records, err := service.listVotes(ctx, opGetAggregateDecision, subjectType, subjectID)
	if err != nil {
		return AggregateDecision{}, err
	}
	return service.aggregate(records, subjectType, subjectID), nil
}

// ListVotes returns the individual opinions on a subject in creation order.
func (service *Service) ListVotes(ctx context.Context, subjectType SubjectType, subjectID SubjectID) ([]VoteRecord, error) {
	return service.listVotes(ctx, opListVotes, subjectType, subjectID)
}

func (service *Service) listVotes(ctx context.Context, operation string, subjectType SubjectType, subjectID SubjectID) ([]VoteRecord, error) {
	if service.ledger == nil {
		service.logError(operation, reasonMissingLedger, errMissingLedger)
		return nil, apperror.New(operation, reasonMissingLedger, errMissingLedger)
	}
	if _, err := ParseSubjectType(subjectType.String()); err != nil {
		return nil, err
	}
	if _, err := NewSubjectID(subjectID.Int64()); err != nil {
		return nil, err
	}
	if err := service.requireSubject(ctx, operation, subjectType, subjectID); err != nil {
		return nil, err
	}
	records, err := service.ledger.ListBySubject(ctx, subjectType, subjectID)
	if err != nil {
		service.logError(operation, reasonQueryFailed, err,
			zap.String(fieldSubjectType, subjectType.String()),
			zap.Int64(fieldSubjectID, subjectID.Int64()))
		return nil, apperror.New(operation, reasonQueryFailed, err)
	}
	return records, nil
}

func (service *Service) requireSubject(ctx context.Context, operation string, subjectType SubjectType, subjectID SubjectID) error {
	if service.directory == nil {
		service.logError(operation, reasonMissingDirectory, errMissingDirectory)
		return apperror.New(operation, reasonMissingDirectory, errMissingDirectory)
	}
	exists, err := service.directory.SubjectExists(ctx, subjectType, subjectID)
	if err != nil {
		service.logError(operation, reasonSubjectLookup, err,
			zap.String(fieldSubjectType, subjectType.String()),
			zap.Int64(fieldSubjectID, subjectID.Int64()))
		return apperror.New(operation, reasonSubjectLookup, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s/%d", ErrSubjectNotFound, subjectType, subjectID)
	}
	return nil
}

// aggregate tallies the records and reports stored decisions outside the closed set.
func (service *Service) aggregate(records []VoteRecord, subjectType SubjectType, subjectID SubjectID) AggregateDecision {
	aggregate := Aggregate(records)
	if aggregate.Unrecognized > 0 {
		for _, record := range records {
			if record.Recognized() {
				continue
			}
			service.loggerOrDefault().Warn("vote decision unrecognized",
				zap.String(fieldSubjectType, subjectType.String()),
				zap.Int64(fieldSubjectID, subjectID.Int64()),
				zap.Int64("vote_id", record.ID),
				zap.String("stored_decision", record.RawDecision))
		}
	}
	return aggregate
}

func (service *Service) loggerOrDefault() *zap.Logger {
	if service == nil {
		return noOpLogger
	}
	if service.logger == nil {
		return noOpLogger
	}
	return service.logger
}

func (service *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	service.loggerOrDefault().Error("voting service error", attrs...)
}

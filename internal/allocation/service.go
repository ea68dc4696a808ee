package allocation

import (
	"context"
	"errors"
	"fmt"

	"github.com/samigerges/workflow-sub001/internal/apperror"
	"github.com/samigerges/workflow-sub001/internal/entities"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	errMissingChildren = errors.New("allocation child resolver is required")
	errMissingVessels  = errors.New("vessel store is required")
	noOpLogger         = zap.NewNop()
)

const (
	opServiceNew            = "allocation.service.new"
	opGetSummary            = "allocation.get_summary"
	opNominateVessel        = "allocation.nominate_vessel"
	opSetVesselQuantity     = "allocation.set_vessel_quantity"
	opSetLetterOfCreditLine = "allocation.set_letter_of_credit_allocation"
	fieldEntityType         = "entity_type"
	fieldEntityID           = "entity_id"
	fieldVesselID           = "vessel_id"
	reasonMissingChildren   = "missing_child_resolver"
	reasonMissingVessels    = "missing_vessel_store"
	reasonQueryFailed       = "query_failed"
	reasonWriteFailed       = "write_failed"
)

// ChildResolver loads the declared quantity of an entity and the vessels consuming it.
type ChildResolver interface {
	AllocationChildren(ctx context.Context, entityType EntityType, entityID EntityID) (decimal.Decimal, []Allocation, error)
}

// VesselStore applies the vessel mutations that change allocations.
type VesselStore interface {
	CreateVessel(ctx context.Context, contractID int64, name string, quantity decimal.NullDecimal) (entities.Vessel, error)
	UpdateVesselQuantity(ctx context.Context, vesselID int64, quantity decimal.NullDecimal) (entities.Vessel, error)
	UpsertLetterOfCreditVessel(ctx context.Context, letterOfCreditID, vesselID int64, quantity decimal.NullDecimal) (entities.LetterOfCreditVessel, error)
}

// ChangeNotifier is told about every committed mutation that moves an entity's allocation.
type ChangeNotifier interface {
	AllocationChanged(ctx context.Context, entityType EntityType, entityID EntityID)
}

type ServiceConfig struct {
	Children ChildResolver
	Vessels  VesselStore
	Notifier ChangeNotifier
	Logger   *zap.Logger
}

// Service reconciles allocation summaries and applies vessel changes.
type Service struct {
	children ChildResolver
	vessels  VesselStore
	notifier ChangeNotifier
	logger   *zap.Logger
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Children == nil {
		return nil, apperror.New(opServiceNew, reasonMissingChildren, errMissingChildren)
	}
	if cfg.Vessels == nil {
		return nil, apperror.New(opServiceNew, reasonMissingVessels, errMissingVessels)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{
		children: cfg.Children,
		vessels:  cfg.Vessels,
		notifier: cfg.Notifier,
		logger:   logger,
	}, nil
}

// NominateVesselRequest captures a new vessel nominated against a contract.
type NominateVesselRequest struct {
	ContractID EntityID
	Name       string
	Quantity   decimal.NullDecimal
}

// GetAllocationSummary recomputes how much of the entity's quantity its vessels consume.
func (service *Service) GetAllocationSummary(ctx context.Context, entityType EntityType, entityID EntityID) (Summary, error) {
	if _, err := ParseEntityType(entityType.String()); err != nil {
		return Summary{}, err
	}
	if _, err := NewEntityID(entityID.Int64()); err != nil {
		return Summary{}, err
	}
	capacity, children, err := service.children.AllocationChildren(ctx, entityType, entityID)
	if err != nil {
		if IsNotFound(err) {
			return Summary{}, err
		}
		service.logError(opGetSummary, reasonQueryFailed, err, entityFields(entityType, entityID)...)
		return Summary{}, apperror.New(opGetSummary, reasonQueryFailed, err)
	}
	summary := Reconcile(capacity, children)
	summary.EntityType = entityType
	summary.EntityID = entityID
	if summary.OverAllocated {
		service.loggerOrDefault().Info("allocation exceeds capacity",
			append(entityFields(entityType, entityID), zap.String("remaining", summary.Remaining.String()))...)
	}
	return summary, nil
}

// NominateVessel creates a vessel under a contract and invalidates that contract's allocation.
func (service *Service) NominateVessel(ctx context.Context, request NominateVesselRequest) (entities.Vessel, error) {
	if _, err := NewEntityID(request.ContractID.Int64()); err != nil {
		return entities.Vessel{}, err
	}
	if err := validateQuantity(request.Quantity); err != nil {
		return entities.Vessel{}, err
	}
	vessel, err := service.vessels.CreateVessel(ctx, request.ContractID.Int64(), request.Name, request.Quantity)
	if err != nil {
		return entities.Vessel{}, service.mutationError(opNominateVessel, err, entityFields(EntityTypeContract, request.ContractID)...)
	}
	service.changed(ctx, EntityTypeContract, request.ContractID, zap.Int64(fieldVesselID, vessel.ID))
	return vessel, nil
}

// SetVesselQuantity changes a vessel's own quantity, which is what its contract allocates.
func (service *Service) SetVesselQuantity(ctx context.Context, vesselID int64, quantity decimal.NullDecimal) (entities.Vessel, error) {
	if vesselID <= 0 {
		return entities.Vessel{}, fmt.Errorf("%w: vessel %d", ErrInvalidEntityID, vesselID)
	}
	if err := validateQuantity(quantity); err != nil {
		return entities.Vessel{}, err
	}
	vessel, err := service.vessels.UpdateVesselQuantity(ctx, vesselID, quantity)
	if err != nil {
		return entities.Vessel{}, service.mutationError(opSetVesselQuantity, err, zap.Int64(fieldVesselID, vesselID))
	}
	service.changed(ctx, EntityTypeContract, EntityID(vessel.ContractID), zap.Int64(fieldVesselID, vessel.ID))
	return vessel, nil
}

// SetLetterOfCreditAllocation sets the portion of a vessel a letter of credit finances.
func (service *Service) SetLetterOfCreditAllocation(ctx context.Context, letterOfCreditID EntityID, vesselID int64, quantity decimal.NullDecimal) (entities.LetterOfCreditVessel, error) {
	if _, err := NewEntityID(letterOfCreditID.Int64()); err != nil {
		return entities.LetterOfCreditVessel{}, err
	}
	if vesselID <= 0 {
		return entities.LetterOfCreditVessel{}, fmt.Errorf("%w: vessel %d", ErrInvalidEntityID, vesselID)
	}
	if err := validateQuantity(quantity); err != nil {
		return entities.LetterOfCreditVessel{}, err
	}
	relation, err := service.vessels.UpsertLetterOfCreditVessel(ctx, letterOfCreditID.Int64(), vesselID, quantity)
	if err != nil {
		fields := append(entityFields(EntityTypeLetterOfCredit, letterOfCreditID), zap.Int64(fieldVesselID, vesselID))
		return entities.LetterOfCreditVessel{}, service.mutationError(opSetLetterOfCreditLine, err, fields...)
	}
	service.changed(ctx, EntityTypeLetterOfCredit, letterOfCreditID, zap.Int64(fieldVesselID, vesselID))
	return relation, nil
}

func (service *Service) changed(ctx context.Context, entityType EntityType, entityID EntityID, fields ...zap.Field) {
	service.loggerOrDefault().Info("allocation changed", append(entityFields(entityType, entityID), fields...)...)
	if service.notifier != nil {
		service.notifier.AllocationChanged(ctx, entityType, entityID)
	}
}

// mutationError maps store failures onto the package's error classes.
func (service *Service) mutationError(operation string, err error, fields ...zap.Field) error {
	switch {
	case errors.Is(err, entities.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrEntityNotFound, err)
	case errors.Is(err, entities.ErrInvalidQuantity):
		return fmt.Errorf("%w: %v", ErrInvalidQuantity, err)
	default:
		service.logError(operation, reasonWriteFailed, err, fields...)
		return apperror.New(operation, reasonWriteFailed, err)
	}
}

func validateQuantity(quantity decimal.NullDecimal) error {
	if quantity.Valid && quantity.Decimal.IsNegative() {
		return fmt.Errorf("%w: negative %s", ErrInvalidQuantity, quantity.Decimal)
	}
	return nil
}

func entityFields(entityType EntityType, entityID EntityID) []zap.Field {
	return []zap.Field{
		zap.String(fieldEntityType, entityType.String()),
		zap.Int64(fieldEntityID, entityID.Int64()),
	}
}

func (service *Service) loggerOrDefault() *zap.Logger {
	if service == nil || service.logger == nil {
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
	service.loggerOrDefault().Error("allocation service error", attrs...)
}

package allocation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidEntityType indicates that an entity type does not carry allocations.
	ErrInvalidEntityType = errors.New("allocation: invalid entity type")
	// ErrInvalidEntityID indicates that an entity identifier is not a positive integer.
	ErrInvalidEntityID = errors.New("allocation: invalid entity id")
	// ErrInvalidQuantity indicates that a quantity cannot be parsed or is negative.
	ErrInvalidQuantity = errors.New("allocation: invalid quantity")
	// ErrEntityNotFound indicates that the allocatable entity or vessel does not exist.
	ErrEntityNotFound = errors.New("allocation: entity not found")
)

// EntityType enumerates records whose declared quantity is consumed by vessels.
type EntityType string

const (
	EntityTypeContract       EntityType = "contract"
	EntityTypeLetterOfCredit EntityType = "letter_of_credit"
)

// ParseEntityType validates raw input and returns an EntityType.
func ParseEntityType(rawInput string) (EntityType, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(rawInput)), "-", "_")
	switch EntityType(normalized) {
	case EntityTypeContract:
		return EntityTypeContract, nil
	case EntityTypeLetterOfCredit, "lc":
		return EntityTypeLetterOfCredit, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidEntityType, rawInput)
	}
}

// String returns the wire representation of the entity type.
func (entityType EntityType) String() string {
	return string(entityType)
}

// EntityID represents a validated allocatable entity identifier.
type EntityID int64

// NewEntityID validates the value and returns an EntityID.
func NewEntityID(value int64) (EntityID, error) {
	if value <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidEntityID, value)
	}
	return EntityID(value), nil
}

// Int64 exposes the raw identifier.
func (id EntityID) Int64() int64 {
	return int64(id)
}

// ParseQuantity parses a non-negative decimal quantity. Empty input yields an invalid (null) quantity.
func ParseQuantity(rawInput string) (decimal.NullDecimal, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return decimal.NullDecimal{}, nil
	}
	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("%w: %q", ErrInvalidQuantity, rawInput)
	}
	if value.IsNegative() {
		return decimal.NullDecimal{}, fmt.Errorf("%w: negative %s", ErrInvalidQuantity, value)
	}
	return decimal.NewNullDecimal(value), nil
}

// Allocation is the portion of an entity's capacity carried by one vessel.
type Allocation struct {
	VesselID   int64
	VesselName string
	Quantity   decimal.NullDecimal
}

// Summary reports how much of an entity's declared quantity is already allocated.
type Summary struct {
	EntityType  EntityType
	EntityID    EntityID
	Capacity    decimal.Decimal
	Allocated   decimal.Decimal
	Remaining   decimal.Decimal
	Allocations []Allocation

	// OverAllocated is informational; over-allocation is never refused.
	OverAllocated bool
}

// Reconcile sums the children against the capacity. Null quantities count as
// zero and the remainder is not clamped, so it goes negative on over-allocation.
func Reconcile(capacity decimal.Decimal, children []Allocation) Summary {
	allocated := decimal.Zero
	for _, child := range children {
		if !child.Quantity.Valid {
			continue
		}
		allocated = allocated.Add(child.Quantity.Decimal)
	}
	remaining := capacity.Sub(allocated)
	return Summary{
		Capacity:      capacity,
		Allocated:     allocated,
		Remaining:     remaining,
		Allocations:   children,
		OverAllocated: remaining.IsNegative(),
	}
}

// IsValidation reports whether err is a caller input violation.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidEntityType) ||
		errors.Is(err, ErrInvalidEntityID) ||
		errors.Is(err, ErrInvalidQuantity)
}

// IsNotFound reports whether err signals a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEntityNotFound)
}

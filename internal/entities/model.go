package entities

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound indicates that the requested record does not exist.
	ErrNotFound = errors.New("entities: record not found")
	// ErrInvalidQuantity indicates that a quantity is negative.
	ErrInvalidQuantity = errors.New("entities: invalid quantity")
)

// Contract is a purchase contract whose quantity is consumed by vessel nominations.
type Contract struct {
	ID       int64           `gorm:"column:id;primaryKey;autoIncrement"`
	Number   string          `gorm:"column:number;size:190;not null;default:''"`
	Quantity decimal.Decimal `gorm:"column:quantity;type:DECIMAL(20,4);not null"`
}

// TableName provides the explicit table binding for GORM.
func (Contract) TableName() string {
	return "contracts"
}

// LetterOfCredit is a financing instrument whose quantity is consumed through vessel relations.
type LetterOfCredit struct {
	ID       int64           `gorm:"column:id;primaryKey;autoIncrement"`
	Number   string          `gorm:"column:number;size:190;not null;default:''"`
	Quantity decimal.Decimal `gorm:"column:quantity;type:DECIMAL(20,4);not null"`
}

// TableName provides the explicit table binding for GORM.
func (LetterOfCredit) TableName() string {
	return "letters_of_credit"
}

// Vessel is a shipment nominated against one contract.
type Vessel struct {
	ID         int64               `gorm:"column:id;primaryKey;autoIncrement"`
	Name       string              `gorm:"column:name;size:190;not null;default:''"`
	ContractID int64               `gorm:"column:contract_id;not null;index:idx_vessels_contract"`
	Quantity   decimal.NullDecimal `gorm:"column:quantity;type:DECIMAL(20,4)"`
}

// TableName provides the explicit table binding for GORM.
func (Vessel) TableName() string {
	return "vessels"
}

// LetterOfCreditVessel links a vessel to a letter of credit with the portion that LC finances.
type LetterOfCreditVessel struct {
	LetterOfCreditID int64               `gorm:"column:letter_of_credit_id;primaryKey"`
	VesselID         int64               `gorm:"column:vessel_id;primaryKey;index:idx_lc_vessels_vessel"`
	Quantity         decimal.NullDecimal `gorm:"column:quantity;type:DECIMAL(20,4)"`
}

// TableName provides the explicit table binding for GORM.
func (LetterOfCreditVessel) TableName() string {
	return "letter_of_credit_vessels"
}

// ContractRequest is a request for a contract that goes through an opinion vote.
type ContractRequest struct {
	ID    int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Title string `gorm:"column:title;size:320;not null;default:''"`
}

// TableName provides the explicit table binding for GORM.
func (ContractRequest) TableName() string {
	return "contract_requests"
}

// Document references an uploaded file attached to an owning record.
type Document struct {
	ID        int64  `gorm:"column:id;primaryKey;autoIncrement"`
	OwnerType string `gorm:"column:owner_type;size:32;not null;index:idx_documents_owner,priority:1"`
	OwnerID   int64  `gorm:"column:owner_id;not null;index:idx_documents_owner,priority:2"`
	FileName  string `gorm:"column:file_name;size:512;not null"`
	FilePath  string `gorm:"column:file_path;size:1024;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Document) TableName() string {
	return "documents"
}

// LetterOfCreditAllocation is one join row resolved with its vessel.
type LetterOfCreditAllocation struct {
	VesselID   int64
	VesselName string
	// Quantity is the relation quantity, not the vessel's own.
	Quantity decimal.NullDecimal
}

// Models lists every table owned by the entity store, in migration order.
func Models() []any {
	return []any{
		&Contract{},
		&LetterOfCredit{},
		&Vessel{},
		&LetterOfCreditVessel{},
		&ContractRequest{},
		&Document{},
	}
}

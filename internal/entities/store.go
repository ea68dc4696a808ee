package entities

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	queryID          = "id = ?"
	queryContractID  = "contract_id = ?"
	queryOwner       = "owner_type = ? AND owner_id = ?"
	orderIDAsc       = "id ASC"
	orderVesselIDAsc = "letter_of_credit_vessels.vessel_id ASC"
)

var errMissingDatabase = errors.New("entities: database handle is required")

// Store reads and writes the records the approval and allocation core works against.
type Store struct {
	db *gorm.DB
}

// NewStore binds a store to the provided database handle.
func NewStore(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errMissingDatabase
	}
	return &Store{db: db}, nil
}

func (store *Store) take(ctx context.Context, kind string, id int64, target any) error {
	err := store.db.WithContext(ctx).Where(queryID, id).Take(target).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s %d", ErrNotFound, kind, id)
	}
	if err != nil {
		return fmt.Errorf("entities: load %s %d: %w", kind, id, err)
	}
	return nil
}

func (store *Store) exists(ctx context.Context, model any, id int64) (bool, error) {
	return countByID(store.db.WithContext(ctx), model, id)
}

// ContractByID loads a contract.
func (store *Store) ContractByID(ctx context.Context, id int64) (Contract, error) {
	var contract Contract
	if err := store.take(ctx, "contract", id, &contract); err != nil {
		return Contract{}, err
	}
	return contract, nil
}

// LetterOfCreditByID loads a letter of credit.
func (store *Store) LetterOfCreditByID(ctx context.Context, id int64) (LetterOfCredit, error) {
	var letter LetterOfCredit
	if err := store.take(ctx, "letter of credit", id, &letter); err != nil {
		return LetterOfCredit{}, err
	}
	return letter, nil
}

// DocumentByID loads a document reference.
func (store *Store) DocumentByID(ctx context.Context, id int64) (Document, error) {
	var document Document
	if err := store.take(ctx, "document", id, &document); err != nil {
		return Document{}, err
	}
	return document, nil
}

// VesselByID loads a vessel.
func (store *Store) VesselByID(ctx context.Context, id int64) (Vessel, error) {
	var vessel Vessel
	if err := store.take(ctx, "vessel", id, &vessel); err != nil {
		return Vessel{}, err
	}
	return vessel, nil
}

// ContractExists reports whether a contract with the id is stored.
func (store *Store) ContractExists(ctx context.Context, id int64) (bool, error) {
	return store.exists(ctx, &Contract{}, id)
}

// ContractRequestExists reports whether a contract request with the id is stored.
func (store *Store) ContractRequestExists(ctx context.Context, id int64) (bool, error) {
	return store.exists(ctx, &ContractRequest{}, id)
}

// DocumentExists reports whether a document with the id is stored.
func (store *Store) DocumentExists(ctx context.Context, id int64) (bool, error) {
	return store.exists(ctx, &Document{}, id)
}

// DocumentsByOwner lists documents attached to an owning record in upload order.
func (store *Store) DocumentsByOwner(ctx context.Context, ownerType string, ownerID int64) ([]Document, error) {
	var documents []Document
	if err := store.db.WithContext(ctx).
		Where(queryOwner, ownerType, ownerID).
		Order(orderIDAsc).
		Find(&documents).Error; err != nil {
		return nil, fmt.Errorf("entities: list documents: %w", err)
	}
	return documents, nil
}

// VesselsByContract lists the vessels nominated against a contract.
func (store *Store) VesselsByContract(ctx context.Context, contractID int64) ([]Vessel, error) {
	var vessels []Vessel
	if err := store.db.WithContext(ctx).
		Where(queryContractID, contractID).
		Order(orderIDAsc).
		Find(&vessels).Error; err != nil {
		return nil, fmt.Errorf("entities: list vessels: %w", err)
	}
	return vessels, nil
}

// LetterOfCreditAllocations lists the relation rows of a letter of credit joined with their vessels.
func (store *Store) LetterOfCreditAllocations(ctx context.Context, letterOfCreditID int64) ([]LetterOfCreditAllocation, error) {
	var rows []LetterOfCreditAllocation
	if err := store.db.WithContext(ctx).
		Table(LetterOfCreditVessel{}.TableName()).
		Select("letter_of_credit_vessels.vessel_id AS vessel_id, vessels.name AS vessel_name, letter_of_credit_vessels.quantity AS quantity").
		Joins("JOIN vessels ON vessels.id = letter_of_credit_vessels.vessel_id").
		Where("letter_of_credit_vessels.letter_of_credit_id = ?", letterOfCreditID).
		Order(orderVesselIDAsc).
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("entities: list letter of credit allocations: %w", err)
	}
	return rows, nil
}

// CreateContract stores a new contract.
func (store *Store) CreateContract(ctx context.Context, number string, quantity decimal.Decimal) (Contract, error) {
	if quantity.IsNegative() {
		return Contract{}, fmt.Errorf("%w: %s", ErrInvalidQuantity, quantity)
	}
	contract := Contract{Number: number, Quantity: quantity}
	if err := store.db.WithContext(ctx).Create(&contract).Error; err != nil {
		return Contract{}, fmt.Errorf("entities: create contract: %w", err)
	}
	return contract, nil
}

// CreateLetterOfCredit stores a new letter of credit.
func (store *Store) CreateLetterOfCredit(ctx context.Context, number string, quantity decimal.Decimal) (LetterOfCredit, error) {
	if quantity.IsNegative() {
		return LetterOfCredit{}, fmt.Errorf("%w: %s", ErrInvalidQuantity, quantity)
	}
	letter := LetterOfCredit{Number: number, Quantity: quantity}
	if err := store.db.WithContext(ctx).Create(&letter).Error; err != nil {
		return LetterOfCredit{}, fmt.Errorf("entities: create letter of credit: %w", err)
	}
	return letter, nil
}

// CreateContractRequest stores a new contract request.
func (store *Store) CreateContractRequest(ctx context.Context, title string) (ContractRequest, error) {
	request := ContractRequest{Title: title}
	if err := store.db.WithContext(ctx).Create(&request).Error; err != nil {
		return ContractRequest{}, fmt.Errorf("entities: create contract request: %w", err)
	}
	return request, nil
}

// CreateDocument registers an uploaded file reference under an owner.
func (store *Store) CreateDocument(ctx context.Context, ownerType string, ownerID int64, fileName, filePath string) (Document, error) {
	document := Document{OwnerType: ownerType, OwnerID: ownerID, FileName: fileName, FilePath: filePath}
	if err := store.db.WithContext(ctx).Create(&document).Error; err != nil {
		return Document{}, fmt.Errorf("entities: create document: %w", err)
	}
	return document, nil
}

// CreateVessel nominates a vessel against an existing contract. Over-allocation is not checked.
func (store *Store) CreateVessel(ctx context.Context, contractID int64, name string, quantity decimal.NullDecimal) (Vessel, error) {
	if quantity.Valid && quantity.Decimal.IsNegative() {
		return Vessel{}, fmt.Errorf("%w: %s", ErrInvalidQuantity, quantity.Decimal)
	}
	vessel := Vessel{Name: name, ContractID: contractID, Quantity: quantity}
	err := store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		found, err := countByID(transaction, &Contract{}, contractID)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: contract %d", ErrNotFound, contractID)
		}
		return transaction.Create(&vessel).Error
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Vessel{}, err
		}
		return Vessel{}, fmt.Errorf("entities: create vessel: %w", err)
	}
	return vessel, nil
}

// UpdateVesselQuantity changes a vessel's own quantity and returns the stored vessel.
func (store *Store) UpdateVesselQuantity(ctx context.Context, vesselID int64, quantity decimal.NullDecimal) (Vessel, error) {
	if quantity.Valid && quantity.Decimal.IsNegative() {
		return Vessel{}, fmt.Errorf("%w: %s", ErrInvalidQuantity, quantity.Decimal)
	}
	var vessel Vessel
	err := store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		if err := transaction.Where(queryID, vesselID).Take(&vessel).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: vessel %d", ErrNotFound, vesselID)
			}
			return err
		}
		vessel.Quantity = quantity
		return transaction.Model(&Vessel{}).Where(queryID, vesselID).Update("quantity", quantity).Error
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Vessel{}, err
		}
		return Vessel{}, fmt.Errorf("entities: update vessel quantity: %w", err)
	}
	return vessel, nil
}

// UpsertLetterOfCreditVessel sets the portion of a vessel financed by a letter of credit.
func (store *Store) UpsertLetterOfCreditVessel(ctx context.Context, letterOfCreditID, vesselID int64, quantity decimal.NullDecimal) (LetterOfCreditVessel, error) {
	if quantity.Valid && quantity.Decimal.IsNegative() {
		return LetterOfCreditVessel{}, fmt.Errorf("%w: %s", ErrInvalidQuantity, quantity.Decimal)
	}
	relation := LetterOfCreditVessel{LetterOfCreditID: letterOfCreditID, VesselID: vesselID, Quantity: quantity}
	err := store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		found, err := countByID(transaction, &LetterOfCredit{}, letterOfCreditID)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: letter of credit %d", ErrNotFound, letterOfCreditID)
		}
		found, err = countByID(transaction, &Vessel{}, vesselID)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: vessel %d", ErrNotFound, vesselID)
		}
		return transaction.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "letter_of_credit_id"}, {Name: "vessel_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"quantity"}),
		}).Create(&relation).Error
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return LetterOfCreditVessel{}, err
		}
		return LetterOfCreditVessel{}, fmt.Errorf("entities: upsert letter of credit vessel: %w", err)
	}
	return relation, nil
}

func countByID(transaction *gorm.DB, model any, id int64) (bool, error) {
	var count int64
	if err := transaction.Model(model).Where(queryID, id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

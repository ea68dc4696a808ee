package database

import (
	"errors"
	"time"

	"github.com/samigerges/workflow-sub001/internal/voting"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationNormalizeVoteDecisions = "2026-06-02_normalize_vote_decisions"
	migrationTrimVoteComments       = "2026-06-09_trim_vote_comments"
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationNormalizeVoteDecisions, apply: normalizeVoteDecisions},
		{name: migrationTrimVoteComments, apply: trimVoteComments},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		err = db.Transaction(func(transaction *gorm.DB) error {
			if err := migration.apply(transaction); err != nil {
				return err
			}
			appliedAt := time.Now().UTC().Unix()
			return transaction.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error
		})
		if err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// normalizeVoteDecisions rewrites the legacy contract opinion values, in any
// casing and with surrounding whitespace, onto the closed decision set.
func normalizeVoteDecisions(db *gorm.DB) error {
	legacy := map[voting.Decision][]string{
		voting.DecisionApprove: {"yes", "approved", "approve"},
		voting.DecisionReject:  {"no", "rejected", "reject"},
	}
	for decision, values := range legacy {
		if err := db.Model(&voting.Vote{}).
			Where("LOWER(TRIM(decision)) IN ? AND decision <> ?", values, decision.String()).
			Update("decision", decision.String()).Error; err != nil {
			return err
		}
	}
	return nil
}

func trimVoteComments(db *gorm.DB) error {
	return db.Model(&voting.Vote{}).
		Where("comment <> TRIM(comment)").
		Update("comment", gorm.Expr("TRIM(comment)")).Error
}

package database

import (
	"fmt"

	sqlite "github.com/glebarez/sqlite"
	"github.com/samigerges/workflow-sub001/internal/entities"
	"github.com/samigerges/workflow-sub001/internal/users"
	"github.com/samigerges/workflow-sub001/internal/voting"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// OpenSQLite establishes a SQLite connection and performs schema migrations.
// A single open connection serializes writers, which the vote ledger's
// uniqueness check relies on together with its unique index.
func OpenSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Query failures surface as errors and are logged through zap by their callers.
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: gormlogger.Discard})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(Models()...); err != nil {
		return nil, err
	}

	if err := applyMigrations(db, logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("path", path))
	}

	return db, nil
}

// Models lists every table the service owns.
func Models() []any {
	models := entities.Models()
	return append(models, &voting.Vote{}, &users.Identity{}, &migrationRecord{})
}

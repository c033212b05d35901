package main

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/erc7824/docvault/pkg/log"
)

const (
	StateDriverMemory = "memory"
	StateDriverSqlite = "sqlite"
)

// StateConfig selects the State backend. Both backends live in memory and
// are gone when the process exits.
type StateConfig struct {
	Driver string `env:"DOCVAULT_STATE_DRIVER" env-default:"memory"`
}

// NewState builds the State backend named by cfg.Driver.
func NewState(cfg StateConfig, logger log.Logger) (State, error) {
	switch cfg.Driver {
	case "", StateDriverMemory:
		logger.Info("using in-memory state")
		return NewMemoryState(), nil
	case StateDriverSqlite:
		db, err := ConnectToSqlite()
		if err != nil {
			return nil, err
		}
		logger.Info("using in-memory sqlite state")
		return NewDBState(db), nil
	default:
		return nil, fmt.Errorf("unsupported state driver: %q", cfg.Driver)
	}
}

// ConnectToSqlite opens a private in-memory sqlite database and migrates it.
// A single pooled connection keeps the database alive and serializes writers.
func ConnectToSqlite() (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:docvault-%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	if err := db.AutoMigrate(&VaultUser{}, &VaultDocument{}); err != nil {
		return nil, fmt.Errorf("failed to migrate sqlite: %w", err)
	}
	return db, nil
}

// Package postgresstorage implements the replay backend on a Postgres
// database. It wraps the gorm backend via composition; the only
// Postgres-specific concerns are opening the connection and bounding the
// pool.
package postgresstorage

import (
	"fmt"

	"github.com/tacband/skirmish/internal/config"
	"github.com/tacband/skirmish/internal/logging"
	"github.com/tacband/skirmish/internal/replay/storage/gormstore"

	"gorm.io/gorm"
)

// Backend wraps the gorm backend for Postgres-specific behavior.
type Backend struct {
	*gormstore.Backend
	db  *gorm.DB
	log *logging.SlogManager
}

// New creates a new Postgres replay backend.
func New(cfg config.PostgresConfig, logManager *logging.SlogManager) (*Backend, error) {
	db, err := gormstore.OpenPostgres(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql interface: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to validate Postgres connection: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)

	gormBackend := gormstore.New(gormstore.Dependencies{
		DB:  db,
		Log: logManager,
	})

	return &Backend{
		Backend: gormBackend,
		db:      db,
		log:     logManager,
	}, nil
}

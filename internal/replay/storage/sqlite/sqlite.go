// Package sqlitestorage implements the replay backend using an in-memory
// SQLite database with periodic disk dumps via VACUUM INTO. It wraps the
// gorm backend via composition.
package sqlitestorage

import (
	"fmt"
	"time"

	"github.com/tacband/skirmish/internal/logging"
	"github.com/tacband/skirmish/internal/replay/storage/gormstore"

	"gorm.io/gorm"
)

// Config holds configuration for the SQLite replay backend.
type Config struct {
	DumpInterval time.Duration
	DumpPath     string // Path for periodic VACUUM INTO dumps
}

// Backend wraps the gorm backend for SQLite-specific behavior.
type Backend struct {
	*gormstore.Backend
	db       *gorm.DB
	cfg      Config
	log      *logging.SlogManager
	stopChan chan struct{}
}

// New creates a new SQLite replay backend.
func New(cfg Config, logManager *logging.SlogManager) (*Backend, error) {
	db, err := gormstore.OpenSqlite("")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite DB: %w", err)
	}

	gormBackend := gormstore.New(gormstore.Dependencies{
		DB:  db,
		Log: logManager,
	})

	return &Backend{
		Backend:  gormBackend,
		db:       db,
		cfg:      cfg,
		log:      logManager,
		stopChan: make(chan struct{}),
	}, nil
}

// Init initializes the embedded gorm backend and starts the dump goroutine.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}

	if b.cfg.DumpPath != "" && b.cfg.DumpInterval > 0 {
		go b.dumpLoop()
	}

	return nil
}

// Close stops the dump goroutine, writes a final dump and closes the
// embedded gorm backend.
func (b *Backend) Close() error {
	close(b.stopChan)
	if b.cfg.DumpPath != "" {
		if err := gormstore.DumpMemoryDBToDisk(b.db, b.cfg.DumpPath); err != nil {
			b.log.Logger().Error("Final replay DB dump failed", "error", err)
		}
	}
	return b.Backend.Close()
}

// dumpLoop periodically dumps the in-memory SQLite database to disk via
// VACUUM INTO. VACUUM INTO creates a point-in-time snapshot, so no pause
// mechanism is needed.
func (b *Backend) dumpLoop() {
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			start := time.Now()
			if err := gormstore.DumpMemoryDBToDisk(b.db, b.cfg.DumpPath); err != nil {
				b.log.Logger().Error("Error dumping replay DB to disk", "error", err)
			} else {
				b.log.Logger().Debug("Dumped replay DB to disk", "duration", time.Since(start))
			}
		}
	}
}

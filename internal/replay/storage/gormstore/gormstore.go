// Package gormstore implements the replay backend on a gorm database. The
// sqlite and postgres backends embed it and only differ in how the
// connection is opened.
package gormstore

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tacband/skirmish/internal/logging"
	"github.com/tacband/skirmish/internal/replay/model"
	"github.com/tacband/skirmish/pkg/core"
)

// Dependencies carries everything the backend needs.
type Dependencies struct {
	DB  *gorm.DB
	Log *logging.SlogManager
}

// Backend persists match data through gorm.
type Backend struct {
	db  *gorm.DB
	log *logging.SlogManager

	mu      sync.Mutex
	matchID uint
}

// New creates a gorm-backed replay store.
func New(deps Dependencies) *Backend {
	return &Backend{
		db:  deps.DB,
		log: deps.Log,
	}
}

// Init migrates the schema.
func (b *Backend) Init() error {
	if err := b.db.AutoMigrate(DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate replay schema: %w", err)
	}
	return nil
}

// Close releases the underlying connection.
func (b *Backend) Close() error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// StartMatch inserts the match row and remembers its ID for subsequent
// writes.
func (b *Backend) StartMatch(m *model.Match) error {
	row := MatchRow{
		SessionID:  m.SessionID,
		Name:       m.Name,
		GridWidth:  m.GridWidth,
		GridHeight: m.GridHeight,
		StartedAt:  m.StartedAt,
	}
	if err := b.db.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to create match row: %w", err)
	}

	b.mu.Lock()
	b.matchID = row.ID
	b.mu.Unlock()

	m.ID = row.ID
	return nil
}

// EndMatch stamps the outcome onto the match row.
func (b *Backend) EndMatch(outcome core.WinConditionOutcome, endedAt time.Time) error {
	b.mu.Lock()
	matchID := b.matchID
	b.mu.Unlock()

	if matchID == 0 {
		return fmt.Errorf("no match in progress")
	}

	return b.db.Model(&MatchRow{}).Where("id = ?", matchID).Updates(map[string]any{
		"ended_at":     endedAt,
		"result":       outcome.Result.String(),
		"winning_team": outcome.WinningTeam.String(),
		"reason":       outcome.Reason,
	}).Error
}

// AddUnit inserts a roster entry and assigns its row ID.
func (b *Backend) AddUnit(u *model.Unit) error {
	b.mu.Lock()
	matchID := b.matchID
	b.mu.Unlock()

	row := UnitRow{
		MatchID:   matchID,
		UnitID:    uint16(u.UnitID),
		Name:      u.Name,
		Team:      u.Team,
		SpawnX:    u.SpawnX,
		SpawnZ:    u.SpawnZ,
		MaxHealth: u.MaxHealth,
	}
	if err := b.db.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to create unit row: %w", err)
	}
	u.ID = row.ID
	return nil
}

// RecordEvent inserts one event row with the payload serialized to JSON.
func (b *Backend) RecordEvent(e *model.Event) error {
	b.mu.Lock()
	matchID := b.matchID
	b.mu.Unlock()

	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", e.Kind, err)
	}

	row := EventRow{
		MatchID: matchID,
		Tick:    e.Tick,
		Kind:    e.Kind,
		Payload: datatypes.JSON(payload),
	}
	if err := b.db.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to create event row: %w", err)
	}
	e.ID = row.ID
	return nil
}

// EventCount reports rows written for the current match, used by tests and
// the shutdown log line.
func (b *Backend) EventCount() (int64, error) {
	b.mu.Lock()
	matchID := b.matchID
	b.mu.Unlock()

	var count int64
	err := b.db.Model(&EventRow{}).Where("match_id = ?", matchID).Count(&count).Error
	return count, err
}

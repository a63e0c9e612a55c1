// Package memory stores match data in memory and exports it to a JSON
// replay file when the match ends.
package memory

import (
	"sync"
	"time"

	"github.com/tacband/skirmish/internal/config"
	"github.com/tacband/skirmish/internal/replay/model"
	"github.com/tacband/skirmish/pkg/core"
)

// UnitRecord groups a unit with its recorded event history.
type UnitRecord struct {
	Unit   model.Unit
	Events []model.Event
}

// Backend stores match data in memory and exports to JSON.
type Backend struct {
	cfg   config.ReplayConfig
	match *model.Match

	units  map[core.UnitID]*UnitRecord
	events []model.Event

	exportedPath string
	idCounter    uint
	mu           sync.RWMutex
}

// New creates a new memory backend.
func New(cfg config.ReplayConfig) *Backend {
	return &Backend{
		cfg:   cfg,
		units: make(map[core.UnitID]*UnitRecord),
	}
}

// Init initializes the backend.
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources.
func (b *Backend) Close() error {
	return nil
}

// StartMatch begins recording a new match.
func (b *Backend) StartMatch(m *model.Match) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.match = m
	b.units = make(map[core.UnitID]*UnitRecord)
	b.events = nil
	b.exportedPath = ""
	b.idCounter = 0

	return nil
}

// EndMatch records the outcome and exports the replay file.
func (b *Backend) EndMatch(outcome core.WinConditionOutcome, endedAt time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.match == nil {
		return nil
	}
	b.match.EndedAt = endedAt
	b.match.Result = outcome.Result.String()
	b.match.WinningTeam = outcome.WinningTeam.String()
	b.match.Reason = outcome.Reason

	return b.exportJSON()
}

// AddUnit registers a new unit.
func (b *Backend) AddUnit(u *model.Unit) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.idCounter++
	u.ID = b.idCounter

	b.units[u.UnitID] = &UnitRecord{
		Unit:   *u,
		Events: make([]model.Event, 0),
	}
	return nil
}

// GetUnit looks up a registered unit.
func (b *Backend) GetUnit(id core.UnitID) (*model.Unit, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if record, ok := b.units[id]; ok {
		return &record.Unit, true
	}
	return nil, false
}

// RecordEvent appends an event to the match timeline.
func (b *Backend) RecordEvent(e *model.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.idCounter++
	e.ID = b.idCounter
	b.events = append(b.events, *e)
	return nil
}

// EventCount reports how many events have been recorded.
func (b *Backend) EventCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.events)
}

// ExportedFilePath returns the path of the exported replay, empty until
// EndMatch has run.
func (b *Backend) ExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.exportedPath
}

// Package storage declares the replay backend contract.
package storage

import (
	"time"

	"github.com/tacband/skirmish/internal/replay/model"
	"github.com/tacband/skirmish/pkg/core"
)

// Backend is the interface all replay storage implementations must satisfy.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Match management
	StartMatch(m *model.Match) error
	EndMatch(outcome core.WinConditionOutcome, endedAt time.Time) error

	// Unit registration (assigns ID to the passed pointer)
	AddUnit(u *model.Unit) error

	// Event recording
	RecordEvent(e *model.Event) error
}

// Exportable is an optional interface for backends that produce a replay
// file once the match ends.
type Exportable interface {
	ExportedFilePath() string
}

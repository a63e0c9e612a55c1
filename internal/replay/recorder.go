// Package replay records match history by subscribing to engine events and
// forwarding them to a storage backend.
package replay

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tacband/skirmish/internal/event"
	"github.com/tacband/skirmish/internal/replay/model"
	"github.com/tacband/skirmish/internal/replay/storage"
	"github.com/tacband/skirmish/internal/roster"
	"github.com/tacband/skirmish/pkg/core"
)

// Recorder bridges the event bus to a replay backend.
type Recorder struct {
	backend storage.Backend
	log     *slog.Logger

	mu     sync.Mutex
	match  *model.Match
	unsubs []func()
}

// NewRecorder creates a recorder over an initialized backend.
func NewRecorder(backend storage.Backend, log *slog.Logger) *Recorder {
	return &Recorder{
		backend: backend,
		log:     log,
	}
}

// StartMatch opens a new recording session with a fresh session ID.
func (r *Recorder) StartMatch(name string, gridWidth, gridHeight int) error {
	m := &model.Match{
		SessionID:  uuid.NewString(),
		Name:       name,
		GridWidth:  gridWidth,
		GridHeight: gridHeight,
		StartedAt:  time.Now(),
	}
	if err := r.backend.StartMatch(m); err != nil {
		return err
	}

	r.mu.Lock()
	r.match = m
	r.mu.Unlock()

	if r.log != nil {
		r.log.Info("replay recording started", "sessionId", m.SessionID, "backend_match", m.ID)
	}
	return nil
}

// SessionID returns the current session identifier, empty before StartMatch.
func (r *Recorder) SessionID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.match == nil {
		return ""
	}
	return r.match.SessionID
}

// AddUnit captures a roster entry at spawn time.
func (r *Recorder) AddUnit(rec roster.UnitRecord, maxHealth int) error {
	u := &model.Unit{
		UnitID:    rec.ID,
		Name:      rec.Name,
		Team:      rec.Team.String(),
		SpawnX:    rec.Coord.X,
		SpawnZ:    rec.Coord.Z,
		MaxHealth: maxHealth,
	}
	return r.backend.AddUnit(u)
}

// Attach subscribes to every engine feed. Call Detach or Finish to release
// the subscriptions.
func (r *Recorder) Attach(bus *event.Bus) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.unsubs = append(r.unsubs,
		bus.MovementStarted.Subscribe(func(ev core.MovementStartedEvent) {
			r.record(ev.Tick, model.KindMovementStarted, ev)
		}),
		bus.MovementCompleted.Subscribe(func(ev core.MovementCompletedEvent) {
			r.record(ev.Tick, model.KindMovementCompleted, ev)
		}),
		bus.MovementFailed.Subscribe(func(ev core.MovementFailedEvent) {
			r.record(ev.Tick, model.KindMovementFailed, ev)
		}),
		bus.MovementCancelled.Subscribe(func(ev core.MovementCancelledEvent) {
			r.record(ev.Tick, model.KindMovementCancelled, ev)
		}),
		bus.AttackCompleted.Subscribe(func(ev core.AttackCompletedEvent) {
			r.record(ev.Tick, model.KindAttackCompleted, ev)
		}),
		bus.UnitDamaged.Subscribe(func(ev core.UnitDamagedEvent) {
			r.record(ev.Tick, model.KindUnitDamaged, ev)
		}),
		bus.UnitHealed.Subscribe(func(ev core.UnitHealedEvent) {
			r.record(ev.Tick, model.KindUnitHealed, ev)
		}),
		bus.UnitDied.Subscribe(func(ev core.UnitDiedEvent) {
			r.record(ev.Tick, model.KindUnitDied, ev)
		}),
		bus.TeamEliminated.Subscribe(func(ev core.TeamEliminatedEvent) {
			r.record(ev.Tick, model.KindTeamEliminated, ev)
		}),
		bus.WinConditionMet.Subscribe(func(ev core.WinConditionMetEvent) {
			r.record(ev.Tick, model.KindWinConditionMet, ev)
		}),
	)
}

// Detach releases all feed subscriptions.
func (r *Recorder) Detach() {
	r.mu.Lock()
	unsubs := r.unsubs
	r.unsubs = nil
	r.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
}

// Finish stamps the outcome, detaches and leaves the backend ready to
// close.
func (r *Recorder) Finish(outcome core.WinConditionOutcome) error {
	r.Detach()
	err := r.backend.EndMatch(outcome, time.Now())
	if err == nil && r.log != nil {
		if exp, ok := r.backend.(storage.Exportable); ok && exp.ExportedFilePath() != "" {
			r.log.Info("replay exported", "path", exp.ExportedFilePath())
		}
	}
	return err
}

// Close shuts down the backend.
func (r *Recorder) Close() error {
	return r.backend.Close()
}

func (r *Recorder) record(tick uint64, kind string, payload any) {
	err := r.backend.RecordEvent(&model.Event{
		Tick:    tick,
		Kind:    kind,
		Payload: payload,
	})
	if err != nil && r.log != nil {
		r.log.Warn("failed to record replay event", "kind", kind, "error", err)
	}
}

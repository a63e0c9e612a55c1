package combat

import (
	"log/slog"
	"sync"

	"github.com/tacband/skirmish/internal/clock"
	"github.com/tacband/skirmish/internal/config"
	"github.com/tacband/skirmish/internal/event"
	"github.com/tacband/skirmish/pkg/core"
)

// Manager composes validation and execution into the single RequestAttack
// entry point and enforces per-turn attack budgets.
type Manager struct {
	cfg       config.CombatConfig
	validator *Validator
	executor  *Executor
	bus       *event.Bus
	clock     *clock.Clock
	log       *slog.Logger

	mu          sync.Mutex
	attacksUsed map[core.UnitID]int
}

// NewManager creates a combat manager.
func NewManager(cfg config.CombatConfig, v *Validator, e *Executor, bus *event.Bus, clk *clock.Clock, log *slog.Logger) *Manager {
	if cfg.AttacksPerTurn <= 0 {
		cfg.AttacksPerTurn = 1
	}
	return &Manager{
		cfg:         cfg,
		validator:   v,
		executor:    e,
		bus:         bus,
		clock:       clk,
		log:         log,
		attacksUsed: make(map[core.UnitID]int),
	}
}

// RequestAttack re-validates, checks the attacker's per-turn budget, applies
// damage, and returns the structured result. Expected failures come back as
// unsuccessful results, never errors.
func (m *Manager) RequestAttack(attackerID, targetID core.UnitID) core.AttackResult {
	m.mu.Lock()
	used := m.attacksUsed[attackerID]
	m.mu.Unlock()
	if used >= m.cfg.AttacksPerTurn {
		return m.finish(attackerID, targetID, core.AttackResult{Message: ReasonNoAttacksLeft})
	}

	// Validation re-runs here; the caller's earlier Validate may be stale by
	// the time the intent arrives.
	vr := m.validator.Validate(attackerID, targetID)
	if !vr.IsValid {
		return m.finish(attackerID, targetID, core.AttackResult{Message: vr.Reason})
	}

	result := m.executor.Execute(attackerID, targetID)
	if result.Success {
		m.mu.Lock()
		m.attacksUsed[attackerID]++
		m.mu.Unlock()
	}

	return m.finish(attackerID, targetID, result)
}

// Validate exposes pre-flight validation for preview layers without
// consuming attack budget.
func (m *Manager) Validate(attackerID, targetID core.UnitID) core.AttackValidationResult {
	return m.validator.Validate(attackerID, targetID)
}

// AttacksRemaining returns how many attacks the unit has left this turn.
func (m *Manager) AttacksRemaining(unitID core.UnitID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	remaining := m.cfg.AttacksPerTurn - m.attacksUsed[unitID]
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ResetAttacksForNewTurn zeroes every attack tracker. The turn manager calls
// this at turn boundaries.
func (m *Manager) ResetAttacksForNewTurn() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attacksUsed = make(map[core.UnitID]int)
}

func (m *Manager) finish(attackerID, targetID core.UnitID, result core.AttackResult) core.AttackResult {
	m.bus.AttackCompleted.Publish(core.AttackCompletedEvent{
		AttackerID: attackerID,
		TargetID:   targetID,
		Result:     result,
		Tick:       m.clock.Tick(),
	})
	return result
}

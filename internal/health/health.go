// Package health owns per-unit health records and the alive/dying/dead
// transitions. All mutation goes through this API; nothing else writes
// health fields, which is what keeps the alive invariant checkable.
package health

import (
	"log/slog"
	"math"
	"sync"

	"github.com/tacband/skirmish/internal/clock"
	"github.com/tacband/skirmish/internal/config"
	"github.com/tacband/skirmish/internal/event"
	"github.com/tacband/skirmish/internal/roster"
	"github.com/tacband/skirmish/pkg/core"
)

// DeathSink receives the zero-health transition. The death coordinator
// implements it; the indirection keeps this package free of queue policy.
type DeathSink interface {
	Enqueue(unitID, killerID core.UnitID, cause core.DeathCause)
}

// Record is one unit's health state.
type Record struct {
	UnitID             core.UnitID
	Current            int
	Max                int
	ResistancePercent  float64
	MinDamageThreshold int
	CanTakeDamage      bool
	CanBeHealed        bool
	RegenEnabled       bool
	RegenRate          float64
	RegenIntervalSec   float64

	// Dying marks the window between the zero-health transition and the
	// death queue processing the unit.
	Dying bool

	lastRegenAt float64
}

// Params overrides the configured defaults for a single unit. Zero values
// fall back to the HealthConfig defaults.
type Params struct {
	MaxHealth          int
	ResistancePercent  float64
	MinDamageThreshold int
	RegenEnabled       bool
	RegenRate          float64
	RegenIntervalSec   float64
	CannotTakeDamage   bool
	CannotBeHealed     bool
}

// State holds all unit health records for a match.
type State struct {
	cfg    config.HealthConfig
	bus    *event.Bus
	clock  *clock.Clock
	roster *roster.Roster
	log    *slog.Logger
	deaths DeathSink

	mu      sync.Mutex
	records map[core.UnitID]*Record
}

// New creates an empty health state. SetDeathSink must be called before any
// damage can kill.
func New(cfg config.HealthConfig, bus *event.Bus, clk *clock.Clock, r *roster.Roster, log *slog.Logger) *State {
	return &State{
		cfg:     cfg,
		bus:     bus,
		clock:   clk,
		roster:  r,
		log:     log,
		records: make(map[core.UnitID]*Record),
	}
}

// SetDeathSink wires the death coordinator. Done by the composition root
// after both components exist.
func (s *State) SetDeathSink(d DeathSink) {
	s.deaths = d
}

// Register creates a health record for the unit.
func (s *State) Register(unitID core.UnitID, p Params) {
	max := p.MaxHealth
	if max <= 0 {
		max = s.cfg.MaxHealth
	}
	resist := p.ResistancePercent
	if resist == 0 {
		resist = s.cfg.ResistancePercent
	}
	threshold := p.MinDamageThreshold
	if threshold == 0 {
		threshold = s.cfg.MinDamageThreshold
	}
	regen := p.RegenEnabled || s.cfg.RegenEnabled
	rate := p.RegenRate
	if rate == 0 {
		rate = s.cfg.RegenRate
	}
	interval := p.RegenIntervalSec
	if interval == 0 {
		interval = s.cfg.RegenIntervalSec
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[unitID] = &Record{
		UnitID:             unitID,
		Current:            max,
		Max:                max,
		ResistancePercent:  resist,
		MinDamageThreshold: threshold,
		CanTakeDamage:      !p.CannotTakeDamage,
		CanBeHealed:        !p.CannotBeHealed,
		RegenEnabled:       regen,
		RegenRate:          rate,
		RegenIntervalSec:   interval,
		lastRegenAt:        s.clock.Now(),
	}
}

// Get returns a copy of the unit's record.
func (s *State) Get(unitID core.UnitID) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[unitID]
	if !ok {
		return Record{}, false
	}
	return *r, true
}

// IsAlive reports whether the unit has health remaining.
func (s *State) IsAlive(unitID core.UnitID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[unitID]
	return ok && r.Current > 0
}

// TakeDamage applies damage after resistance and threshold mitigation and
// returns the amount actually applied. Crossing zero triggers the death
// transition synchronously.
func (s *State) TakeDamage(unitID core.UnitID, amount int, attackerID core.UnitID) int {
	s.mu.Lock()
	r, ok := s.records[unitID]
	if !ok || !r.CanTakeDamage || r.Current <= 0 || amount <= 0 {
		s.mu.Unlock()
		return 0
	}

	actual := int(math.Round(float64(amount) * (1 - r.ResistancePercent)))
	if actual < r.MinDamageThreshold {
		actual = 0
	}
	if actual <= 0 {
		s.mu.Unlock()
		return 0
	}

	wasAlive := r.Current > 0
	r.Current -= actual
	if r.Current < 0 {
		r.Current = 0
	}
	died := wasAlive && r.Current == 0
	if died {
		r.Dying = true
	}
	remaining := r.Current
	s.mu.Unlock()

	s.bus.UnitDamaged.Publish(core.UnitDamagedEvent{
		UnitID:     unitID,
		AttackerID: attackerID,
		Damage:     actual,
		Remaining:  remaining,
		Tick:       s.clock.Tick(),
	})

	if died {
		s.transitionToDying(unitID, attackerID, core.DeathCauseDamage)
	}
	return actual
}

// Heal restores health up to the maximum and returns the amount actually
// applied. Dead units cannot be healed back; resurrection goes through
// SetHealth.
func (s *State) Heal(unitID core.UnitID, amount int) int {
	s.mu.Lock()
	r, ok := s.records[unitID]
	if !ok || !r.CanBeHealed || amount <= 0 || r.Current <= 0 {
		s.mu.Unlock()
		return 0
	}
	actual := amount
	if r.Current+actual > r.Max {
		actual = r.Max - r.Current
	}
	r.Current += actual
	current := r.Current
	s.mu.Unlock()

	if actual > 0 {
		s.bus.UnitHealed.Publish(core.UnitHealedEvent{
			UnitID:  unitID,
			Amount:  actual,
			Current: current,
			Tick:    s.clock.Tick(),
		})
	}
	return actual
}

// Kill force-sets health to zero and runs the normal death transition.
// Used for environmental and instant-kill effects.
func (s *State) Kill(unitID, killerID core.UnitID, cause core.DeathCause) {
	s.mu.Lock()
	r, ok := s.records[unitID]
	if !ok || r.Current <= 0 {
		s.mu.Unlock()
		return
	}
	r.Current = 0
	r.Dying = true
	s.mu.Unlock()

	s.transitionToDying(unitID, killerID, cause)
}

// SetHealth writes an exact health value, clamped to [0, max]. Setting a
// dead unit above zero resurrects it; this is the only path back from dead.
func (s *State) SetHealth(unitID core.UnitID, value int) {
	s.mu.Lock()
	r, ok := s.records[unitID]
	if !ok {
		s.mu.Unlock()
		return
	}
	if value < 0 {
		value = 0
	}
	if value > r.Max {
		value = r.Max
	}
	wasDead := r.Current <= 0
	r.Current = value
	resurrected := wasDead && value > 0
	if resurrected {
		r.Dying = false
	}
	s.mu.Unlock()

	if resurrected {
		s.roster.SetAlive(unitID, true)
	}
}

// FinalizeDeath clears the dying flag once the death queue has processed
// the unit.
func (s *State) FinalizeDeath(unitID core.UnitID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[unitID]; ok {
		r.Dying = false
	}
}

// TeamHealth returns the summed current and maximum health across the
// team's registered units.
func (s *State) TeamHealth(team core.Team) (current, max int) {
	units := s.roster.Team(team)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range units {
		if r, ok := s.records[u.ID]; ok {
			current += r.Current
			max += r.Max
		}
	}
	return current, max
}

// Tick applies regeneration on each record's interval. Full-health and dead
// units are skipped.
func (s *State) Tick() {
	now := s.clock.Now()

	s.mu.Lock()
	type pending struct {
		id     core.UnitID
		amount int
	}
	var regens []pending
	for id, r := range s.records {
		if !r.RegenEnabled || r.Current <= 0 || r.Current >= r.Max {
			continue
		}
		if now-r.lastRegenAt < r.RegenIntervalSec {
			continue
		}
		r.lastRegenAt = now
		amount := int(math.Round(r.RegenRate))
		if amount > 0 {
			regens = append(regens, pending{id: id, amount: amount})
		}
	}
	s.mu.Unlock()

	for _, p := range regens {
		s.Heal(p.id, p.amount)
	}
}

// transitionToDying drops the roster alive flag and hands the unit to the
// death queue. Called outside the record lock.
func (s *State) transitionToDying(unitID, killerID core.UnitID, cause core.DeathCause) {
	s.roster.SetAlive(unitID, false)
	if s.deaths != nil {
		s.deaths.Enqueue(unitID, killerID, cause)
	} else if s.log != nil {
		s.log.Warn("unit died with no death sink wired", "unit", unitID)
	}
}

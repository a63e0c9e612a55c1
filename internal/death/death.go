// Package death processes unit deaths through a rate-limited FIFO queue so a
// burst of simultaneous kills cannot spike a single tick. It is the only
// component that fires team elimination, exactly once per team.
package death

import (
	"log/slog"
	"sync"

	"github.com/tacband/skirmish/internal/clock"
	"github.com/tacband/skirmish/internal/config"
	"github.com/tacband/skirmish/internal/event"
	"github.com/tacband/skirmish/internal/grid"
	"github.com/tacband/skirmish/internal/queue"
	"github.com/tacband/skirmish/internal/roster"
	"github.com/tacband/skirmish/pkg/core"
)

// Request is one queued death.
type Request struct {
	UnitID      core.UnitID
	KillerID    core.UnitID
	Cause       core.DeathCause
	EnqueueTick uint64
}

// Finalizer clears per-unit transient death state once processing completes.
// The health state implements it.
type Finalizer interface {
	FinalizeDeath(core.UnitID)
}

// MoveCanceller aborts a unit's in-flight move. The movement coordinator
// implements it.
type MoveCanceller interface {
	Cancel(unitID core.UnitID, reason string) bool
}

// Coordinator is the queue-based death processor.
type Coordinator struct {
	cfg       config.DeathConfig
	bus       *event.Bus
	clock     *clock.Clock
	grid      *grid.Index
	roster    *roster.Roster
	log       *slog.Logger
	finalizer Finalizer
	moves     MoveCanceller

	mu               sync.Mutex
	pending          *queue.Queue[Request]
	queued           map[core.UnitID]bool
	dead             map[core.UnitID]bool
	tally            map[core.Team]int
	eliminationFired map[core.Team]bool
}

// New creates a death coordinator.
func New(cfg config.DeathConfig, bus *event.Bus, clk *clock.Clock, g *grid.Index, r *roster.Roster, log *slog.Logger) *Coordinator {
	if cfg.MaxDeathsPerTick <= 0 {
		cfg.MaxDeathsPerTick = 3
	}
	if cfg.MinimumUnitsForSurvival <= 0 {
		cfg.MinimumUnitsForSurvival = 1
	}
	return &Coordinator{
		cfg:              cfg,
		bus:              bus,
		clock:            clk,
		grid:             g,
		roster:           r,
		log:              log,
		pending:          queue.New[Request](),
		queued:           make(map[core.UnitID]bool),
		dead:             make(map[core.UnitID]bool),
		tally:            make(map[core.Team]int),
		eliminationFired: make(map[core.Team]bool),
	}
}

// SetFinalizer wires the health state. Done by the composition root.
func (c *Coordinator) SetFinalizer(f Finalizer) {
	c.finalizer = f
}

// SetMoveCanceller wires the movement coordinator so a dead unit's in-flight
// move stops instead of walking a corpse.
func (c *Coordinator) SetMoveCanceller(m MoveCanceller) {
	c.moves = m
}

// Enqueue queues a unit for death processing. Idempotent: a unit already
// queued or already dead is ignored.
func (c *Coordinator) Enqueue(unitID, killerID core.UnitID, cause core.DeathCause) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.queued[unitID] || c.dead[unitID] {
		return
	}
	c.queued[unitID] = true
	c.pending.Push(Request{
		UnitID:      unitID,
		KillerID:    killerID,
		Cause:       cause,
		EnqueueTick: c.clock.Tick(),
	})
}

// IsDead reports whether the unit's death has been processed.
func (c *Coordinator) IsDead(unitID core.UnitID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dead[unitID]
}

// QueueLen returns the number of deaths awaiting processing.
func (c *Coordinator) QueueLen() int {
	return c.pending.Len()
}

// DeathTally returns processed deaths for the team.
func (c *Coordinator) DeathTally(team core.Team) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tally[team]
}

// IsEliminated reports whether the team's elimination has fired.
func (c *Coordinator) IsEliminated(team core.Team) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.eliminationFired[team]
}

// Tick drains up to maxDeathsPerTick queued deaths in FIFO order, then
// checks both teams for elimination.
func (c *Coordinator) Tick() {
	batch := c.pending.PopN(c.cfg.MaxDeathsPerTick)
	if len(batch) == 0 {
		return
	}

	for _, req := range batch {
		c.process(req)
	}

	c.checkElimination(core.TeamA)
	c.checkElimination(core.TeamB)
}

func (c *Coordinator) process(req Request) {
	c.mu.Lock()
	delete(c.queued, req.UnitID)
	if c.dead[req.UnitID] {
		c.mu.Unlock()
		return
	}
	c.dead[req.UnitID] = true
	c.mu.Unlock()

	u, ok := c.roster.Get(req.UnitID)
	if !ok {
		if c.log != nil {
			c.log.Warn("death queued for unregistered unit", "unit", req.UnitID)
		}
		return
	}

	c.mu.Lock()
	c.tally[u.Team]++
	c.mu.Unlock()

	if c.moves != nil {
		c.moves.Cancel(req.UnitID, "unit died")
	}
	c.roster.SetAlive(req.UnitID, false)
	c.grid.Vacate(req.UnitID)
	if c.finalizer != nil {
		c.finalizer.FinalizeDeath(req.UnitID)
	}

	c.bus.UnitDied.Publish(core.UnitDiedEvent{
		UnitID:   req.UnitID,
		KillerID: req.KillerID,
		Cause:    req.Cause,
		Team:     u.Team,
		Tick:     c.clock.Tick(),
	})
}

// checkElimination fires the team's elimination event the first time its
// live count drops below the survival threshold.
func (c *Coordinator) checkElimination(team core.Team) {
	alive := c.roster.AliveCount(team)

	c.mu.Lock()
	if c.eliminationFired[team] || alive >= c.cfg.MinimumUnitsForSurvival {
		c.mu.Unlock()
		return
	}
	c.eliminationFired[team] = true
	c.mu.Unlock()

	units := c.roster.Team(team)
	ids := make([]core.UnitID, 0, len(units))
	for _, u := range units {
		ids = append(ids, u.ID)
	}

	if c.log != nil {
		c.log.Info("team eliminated", "team", team.String(), "units", len(ids))
	}

	c.bus.TeamEliminated.Publish(core.TeamEliminatedEvent{
		Team:    team,
		UnitIDs: ids,
		Tick:    c.clock.Tick(),
	})
}

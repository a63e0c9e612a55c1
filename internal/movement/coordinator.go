package movement

import (
	"log/slog"
	"sync"

	"github.com/tacband/skirmish/internal/clock"
	"github.com/tacband/skirmish/internal/config"
	"github.com/tacband/skirmish/internal/event"
	"github.com/tacband/skirmish/internal/grid"
	"github.com/tacband/skirmish/internal/roster"
	"github.com/tacband/skirmish/pkg/core"
)

// Moves shorter than this complete instantly instead of dividing by a
// near-zero duration.
const minDuration = 1e-6

// CancelPolicy selects what happens to a unit's world position when its
// move is cancelled mid-flight.
type CancelPolicy uint8

const (
	// CancelHold leaves the unit wherever the animation had interpolated to.
	CancelHold CancelPolicy = iota
	// CancelSnapBack restores the unit to its pre-move world position.
	CancelSnapBack
)

// ParseCancelPolicy maps a config name to a policy, defaulting to CancelHold.
func ParseCancelPolicy(name string) CancelPolicy {
	if name == "snapback" {
		return CancelSnapBack
	}
	return CancelHold
}

// moveState is one in-flight move. It replaces the suspended coroutine of a
// frame-driven engine with plain data advanced by Tick.
type moveState struct {
	unitID      core.UnitID
	from        core.GridCoordinate
	target      core.GridCoordinate
	startWorld  core.Position3D
	targetWorld core.Position3D
	elapsed     float64
	duration    float64
}

// Coordinator turns validated moves into tracked, cancelable, time-based
// animations and owns occupancy commits.
type Coordinator struct {
	cfg       config.MovementConfig
	grid      *grid.Index
	roster    *roster.Roster
	validator *Validator
	bus       *event.Bus
	clock     *clock.Clock
	log       *slog.Logger
	ease      EaseFunc
	policy    CancelPolicy

	mu     sync.Mutex
	active map[core.UnitID]*moveState
}

// NewCoordinator creates a movement coordinator.
func NewCoordinator(cfg config.MovementConfig, g *grid.Index, r *roster.Roster, v *Validator, bus *event.Bus, clk *clock.Clock, log *slog.Logger) *Coordinator {
	return &Coordinator{
		cfg:       cfg,
		grid:      g,
		roster:    r,
		validator: v,
		bus:       bus,
		clock:     clk,
		log:       log,
		ease:      ParseEase(cfg.Easing),
		policy:    ParseCancelPolicy(cfg.CancelPolicy),
		active:    make(map[core.UnitID]*moveState),
	}
}

// RequestMove validates and, if accepted, starts animating a move. The bool
// reports acceptance; the result carries the rejection reason otherwise.
func (c *Coordinator) RequestMove(unitID core.UnitID, target core.GridCoordinate) (bool, core.MovementValidationResult) {
	c.mu.Lock()
	if _, busy := c.active[unitID]; busy {
		c.mu.Unlock()
		return false, c.reject(unitID, target, ReasonAlreadyMoving)
	}
	if c.cfg.PreventOverlapping && len(c.active) > 0 {
		c.mu.Unlock()
		return false, c.reject(unitID, target, ReasonAnotherMoving)
	}
	c.mu.Unlock()

	vr := c.validator.Validate(unitID, target)
	if !vr.IsValid {
		c.bus.MovementFailed.Publish(core.MovementFailedEvent{
			UnitID: unitID,
			Target: target,
			Reason: vr.Reason,
			Tick:   c.clock.Tick(),
		})
		return false, vr
	}

	u, _ := c.roster.Get(unitID)
	speed := u.MoveSpeed
	if speed <= 0 {
		speed = c.cfg.Speed
	}

	st := &moveState{
		unitID:      unitID,
		from:        u.Coord,
		target:      target,
		startWorld:  u.WorldPos,
		targetWorld: c.grid.ToWorld(target),
	}
	distance := st.startWorld.Distance(st.targetWorld)
	if speed > 0 {
		st.duration = distance / speed
	}

	c.bus.MovementStarted.Publish(core.MovementStartedEvent{
		UnitID: unitID,
		From:   st.from,
		To:     target,
		Tick:   c.clock.Tick(),
	})

	if st.duration < minDuration {
		c.complete(st)
		return true, vr
	}

	c.mu.Lock()
	c.active[unitID] = st
	c.mu.Unlock()
	return true, vr
}

// Cancel aborts an in-flight move. Occupancy was never touched, so only the
// world position needs attention, per the configured policy.
func (c *Coordinator) Cancel(unitID core.UnitID, reason string) bool {
	c.mu.Lock()
	st, ok := c.active[unitID]
	if ok {
		delete(c.active, unitID)
	}
	c.mu.Unlock()
	if !ok {
		return false
	}

	snapped := c.policy == CancelSnapBack
	if snapped {
		c.roster.SetWorldPos(unitID, st.startWorld)
	}

	c.bus.MovementCancelled.Publish(core.MovementCancelledEvent{
		UnitID:      unitID,
		Target:      st.target,
		Reason:      reason,
		SnappedBack: snapped,
		Tick:        c.clock.Tick(),
	})
	return true
}

// CancelAll aborts every in-flight move, used at match end.
func (c *Coordinator) CancelAll(reason string) {
	c.mu.Lock()
	ids := make([]core.UnitID, 0, len(c.active))
	for id := range c.active {
		ids = append(ids, id)
	}
	c.mu.Unlock()
	for _, id := range ids {
		c.Cancel(id, reason)
	}
}

// IsMoving reports whether the unit has an in-flight move.
func (c *Coordinator) IsMoving(unitID core.UnitID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.active[unitID]
	return ok
}

// ActiveCount returns the number of in-flight moves.
func (c *Coordinator) ActiveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.active)
}

// Tick advances every in-flight move by dt seconds.
func (c *Coordinator) Tick(dt float64) {
	c.mu.Lock()
	var finished []*moveState
	for id, st := range c.active {
		st.elapsed += dt
		if st.elapsed >= st.duration {
			finished = append(finished, st)
			delete(c.active, id)
			continue
		}
		t := c.ease(st.elapsed / st.duration)
		c.roster.SetWorldPos(st.unitID, st.startWorld.Lerp(st.targetWorld, t))
	}
	c.mu.Unlock()

	for _, st := range finished {
		c.complete(st)
	}
}

// complete commits the move: occupancy transfers from the source cell to the
// target cell in one step, and only now.
func (c *Coordinator) complete(st *moveState) {
	if c.grid.OccupantAt(st.from) == st.unitID {
		c.grid.SetOccupant(st.from, core.NoUnit)
	}
	c.grid.SetOccupant(st.target, st.unitID)
	c.roster.SetPosition(st.unitID, st.target, st.targetWorld)

	c.bus.MovementCompleted.Publish(core.MovementCompletedEvent{
		UnitID: st.unitID,
		At:     st.target,
		Tick:   c.clock.Tick(),
	})
}

func (c *Coordinator) reject(unitID core.UnitID, target core.GridCoordinate, reason string) core.MovementValidationResult {
	c.bus.MovementFailed.Publish(core.MovementFailedEvent{
		UnitID: unitID,
		Target: target,
		Reason: reason,
		Tick:   c.clock.Tick(),
	})
	return core.MovementValidationResult{UnitID: unitID, Target: target, Reason: reason}
}

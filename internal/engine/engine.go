// Package engine wires the combat prototype together and exposes the API
// the host layer calls. One Engine owns one match.
package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/peterstace/simplefeatures/geom"

	"github.com/tacband/skirmish/internal/clock"
	"github.com/tacband/skirmish/internal/combat"
	"github.com/tacband/skirmish/internal/config"
	"github.com/tacband/skirmish/internal/death"
	"github.com/tacband/skirmish/internal/event"
	"github.com/tacband/skirmish/internal/grid"
	"github.com/tacband/skirmish/internal/health"
	"github.com/tacband/skirmish/internal/los"
	"github.com/tacband/skirmish/internal/monitor"
	"github.com/tacband/skirmish/internal/movement"
	"github.com/tacband/skirmish/internal/replay"
	"github.com/tacband/skirmish/internal/roster"
	"github.com/tacband/skirmish/internal/wincon"
	"github.com/tacband/skirmish/pkg/core"
)

// UnitSpec describes a unit placed onto the board.
type UnitSpec struct {
	ID          core.UnitID
	Name        string
	Team        core.Team
	Coord       core.GridCoordinate
	AttackRange float64 // 0 = combat config default
	MoveSpeed   float64 // 0 = movement config default
	Health      health.Params
}

// ObstacleSpec describes a world-space obstacle. BlocksMovement also marks
// the cell under its center as impassable.
type ObstacleSpec struct {
	ID             string
	Coord          core.GridCoordinate
	HalfWidth      float64
	HalfDepth      float64
	Height         float64
	BlocksSight    bool
	BlocksMovement bool
	CoverValue     float64
}

// Dependencies carries the optional collaborators the engine does not own.
type Dependencies struct {
	Config   config.Config
	Log      *slog.Logger
	Recorder *replay.Recorder // nil disables recording
}

// Engine is the root object of one match.
type Engine struct {
	cfg config.Config
	log *slog.Logger

	clock   *clock.Clock
	bus     *event.Bus
	roster  *roster.Roster
	grid    *grid.Index
	sight   *los.Engine
	moves   *movement.Coordinator
	health  *health.State
	deaths  *death.Coordinator
	attacks *combat.Manager
	win     *wincon.Evaluator
	monitor *monitor.Monitor

	recorder   *replay.Recorder
	finishOnce func()
}

// New builds a fully wired engine. Nothing starts ticking until the host
// calls Tick.
func New(deps Dependencies) (*Engine, error) {
	cfg := deps.Config
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}

	clk := clock.New()
	bus := event.NewBus()
	ros := roster.New()
	board := grid.New(grid.Config{
		Width:    cfg.Grid.Width,
		Height:   cfg.Grid.Height,
		CellSize: cfg.Grid.CellSize,
		OriginX:  cfg.Grid.OriginX,
		OriginZ:  cfg.Grid.OriginZ,
	})

	mon := monitor.New(0, log.With("component", "monitor"))

	ray := los.NewGeomRaycaster(cfg.LOS.SphereRadius)
	sight, err := los.New(cfg.LOS, ray, mon, log.With("component", "los"))
	if err != nil {
		return nil, fmt.Errorf("building sight engine: %w", err)
	}

	mv := movement.NewValidator(board, ros, cfg.Movement.AllowDiagonal)
	moves := movement.NewCoordinator(cfg.Movement, board, ros, mv, bus, clk, log.With("component", "movement"))

	hp := health.New(cfg.Health, bus, clk, ros, log.With("component", "health"))
	deaths := death.New(cfg.Death, bus, clk, board, ros, log.With("component", "death"))
	hp.SetDeathSink(deaths)
	deaths.SetFinalizer(hp)
	deaths.SetMoveCanceller(moves)

	var sightForAttacks *los.Engine
	if cfg.Combat.RequireLineOfSight {
		sightForAttacks = sight
	}
	cv := combat.NewValidator(cfg.Combat, ros, sightForAttacks)
	ex := combat.NewExecutor(cfg.Combat, hp, ros, sight, log.With("component", "combat"))
	attacks := combat.NewManager(cfg.Combat, cv, ex, bus, clk, log.With("component", "combat"))

	win := wincon.New(cfg.Win, bus, clk, ros, hp, log.With("component", "wincon"))

	mon.SetSources(sight.PendingCount, deaths.QueueLen, moves.ActiveCount, sight.CurrentBudget)

	e := &Engine{
		cfg:      cfg,
		log:      log,
		clock:    clk,
		bus:      bus,
		roster:   ros,
		grid:     board,
		sight:    sight,
		moves:    moves,
		health:   hp,
		deaths:   deaths,
		attacks:  attacks,
		win:      win,
		monitor:  mon,
		recorder: deps.Recorder,
	}

	if e.recorder != nil {
		e.recorder.Attach(bus)
		var done bool
		e.finishOnce = func() {
			if done {
				return
			}
			done = true
			if err := e.recorder.Finish(e.win.Outcome()); err != nil {
				log.Warn("replay finish failed", "error", err)
			}
		}
		bus.WinConditionMet.Subscribe(func(core.WinConditionMetEvent) {
			e.finishOnce()
		})
	}

	return e, nil
}

// StartMatch opens the replay session, if recording is enabled.
func (e *Engine) StartMatch(name string) error {
	if e.recorder == nil {
		return nil
	}
	return e.recorder.StartMatch(name, e.cfg.Grid.Width, e.cfg.Grid.Height)
}

// PlaceUnit registers a unit with the roster, grid and health state.
func (e *Engine) PlaceUnit(spec UnitSpec) error {
	if spec.ID == core.NoUnit {
		return fmt.Errorf("unit id must be nonzero")
	}
	if !e.grid.IsValid(spec.Coord) {
		return fmt.Errorf("coordinate %v is off the board", spec.Coord)
	}
	if e.grid.IsBlocked(spec.Coord) {
		return fmt.Errorf("coordinate %v is blocked", spec.Coord)
	}
	if e.grid.IsOccupied(spec.Coord) {
		return fmt.Errorf("coordinate %v is occupied", spec.Coord)
	}
	if _, exists := e.roster.Get(spec.ID); exists {
		return fmt.Errorf("unit %d already placed", spec.ID)
	}

	attackRange := spec.AttackRange
	if attackRange <= 0 {
		attackRange = e.cfg.Combat.AttackRange
	}
	speed := spec.MoveSpeed
	if speed <= 0 {
		speed = e.cfg.Movement.Speed
	}

	rec := roster.UnitRecord{
		ID:          spec.ID,
		Name:        spec.Name,
		Team:        spec.Team,
		Coord:       spec.Coord,
		WorldPos:    e.grid.ToWorld(spec.Coord),
		AttackRange: attackRange,
		MoveSpeed:   speed,
		Alive:       true,
	}
	e.roster.Add(rec)
	e.grid.SetOccupant(spec.Coord, spec.ID)
	e.health.Register(spec.ID, spec.Health)

	if e.recorder != nil {
		hp, _ := e.health.Get(spec.ID)
		if err := e.recorder.AddUnit(rec, hp.Max); err != nil {
			e.log.Warn("failed to record unit", "unit", spec.ID, "error", err)
		}
	}

	e.log.Info("unit placed", "unit", spec.ID, "name", spec.Name,
		"team", spec.Team.String(), "x", spec.Coord.X, "z", spec.Coord.Z)
	return nil
}

// PlaceObstacle registers a world-space obstacle with the raycaster and,
// when it blocks movement, with the grid.
func (e *Engine) PlaceObstacle(spec ObstacleSpec) error {
	if !e.grid.IsValid(spec.Coord) {
		return fmt.Errorf("coordinate %v is off the board", spec.Coord)
	}
	center := e.grid.ToWorld(spec.Coord)

	e.sight.UpsertObstacle(los.Obstacle{
		ID:          spec.ID,
		Center:      geom.XY{X: center.X, Y: center.Z},
		HalfWidth:   spec.HalfWidth,
		HalfDepth:   spec.HalfDepth,
		Height:      spec.Height,
		BlocksSight: spec.BlocksSight,
		CoverValue:  spec.CoverValue,
	})
	if spec.BlocksMovement {
		e.grid.SetBlocked(spec.Coord, true)
	}
	return nil
}

// RemoveObstacle clears the obstacle and unblocks its cell.
func (e *Engine) RemoveObstacle(id string, coord core.GridCoordinate) {
	e.sight.RemoveObstacle(id)
	if e.grid.IsValid(coord) {
		e.grid.SetBlocked(coord, false)
	}
}

// RequestMove validates and starts a move animation.
func (e *Engine) RequestMove(unitID core.UnitID, target core.GridCoordinate) (bool, core.MovementValidationResult) {
	if e.win.Decided() {
		return false, core.MovementValidationResult{
			IsValid: false, Reason: "match is over", UnitID: unitID, Target: target,
		}
	}
	return e.moves.RequestMove(unitID, target)
}

// CancelMove aborts an in-flight move per the configured cancel policy.
func (e *Engine) CancelMove(unitID core.UnitID) bool {
	return e.moves.Cancel(unitID, "cancelled by host")
}

// RequestAttack validates and executes an attack.
func (e *Engine) RequestAttack(attackerID, targetID core.UnitID) core.AttackResult {
	if e.win.Decided() {
		return core.AttackResult{Success: false, Message: "match is over"}
	}
	return e.attacks.RequestAttack(attackerID, targetID)
}

// ValidateAttack previews attack validity without spending the budget.
func (e *Engine) ValidateAttack(attackerID, targetID core.UnitID) core.AttackValidationResult {
	return e.attacks.Validate(attackerID, targetID)
}

// ResetAttacksForNewTurn clears every unit's per-turn attack budget.
func (e *Engine) ResetAttacksForNewTurn() {
	e.attacks.ResetAttacksForNewTurn()
}

// HasLineOfSight answers synchronously, through the cache when possible.
func (e *Engine) HasLineOfSight(from, to core.Position3D) bool {
	return e.sight.HasLineOfSight(from, to)
}

// RequestLineOfSight queues an async sight check at the given priority.
func (e *Engine) RequestLineOfSight(from, to core.Position3D, priority int, callback func(core.LineOfSightResult)) *los.Request {
	return e.sight.RequestAsync(from, to, priority, callback)
}

// Tick advances the simulation by dt seconds. Order matters: moves commit
// before sight requests are serviced, health regen precedes the death
// drain, and the win check runs on the final state of the tick.
func (e *Engine) Tick(dt float64) {
	start := time.Now()
	e.clock.Advance(dt)

	e.moves.Tick(dt)
	e.sight.Tick(dt)
	e.health.Tick()
	e.deaths.Tick()
	e.win.Tick()

	e.monitor.Sample(e.clock.Tick(), time.Since(start))
}

// Outcome returns the win-condition outcome, still in progress until a
// condition fires.
func (e *Engine) Outcome() core.WinConditionOutcome {
	return e.win.Outcome()
}

// TeamStatus derives the survival state of a team.
func (e *Engine) TeamStatus(team core.Team) core.TeamStatus {
	return e.win.TeamStatusFor(team)
}

// Events exposes the bus for host-layer subscriptions.
func (e *Engine) Events() *event.Bus {
	return e.bus
}

// Roster exposes the unit registry.
func (e *Engine) Roster() *roster.Roster {
	return e.roster
}

// Grid exposes the board index.
func (e *Engine) Grid() *grid.Index {
	return e.grid
}

// Sight exposes the line-of-sight engine.
func (e *Engine) Sight() *los.Engine {
	return e.sight
}

// Health exposes the health state.
func (e *Engine) Health() *health.State {
	return e.health
}

// Deaths exposes the death coordinator.
func (e *Engine) Deaths() *death.Coordinator {
	return e.deaths
}

// Movement exposes the movement coordinator.
func (e *Engine) Movement() *movement.Coordinator {
	return e.moves
}

// Attacks exposes the combat manager.
func (e *Engine) Attacks() *combat.Manager {
	return e.attacks
}

// Monitor exposes the load monitor.
func (e *Engine) Monitor() *monitor.Monitor {
	return e.monitor
}

// Clock exposes the simulation clock.
func (e *Engine) Clock() *clock.Clock {
	return e.clock
}

// Shutdown finalizes recording and releases subscriptions. Safe to call
// after the match ended naturally.
func (e *Engine) Shutdown() {
	e.win.Shutdown()
	if e.recorder != nil {
		if e.finishOnce != nil && e.win.Decided() {
			e.finishOnce()
		}
		if err := e.recorder.Close(); err != nil {
			e.log.Warn("replay backend close failed", "error", err)
		}
	}
}

package engine

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tacband/skirmish/internal/config"
	"github.com/tacband/skirmish/internal/replay"
	"github.com/tacband/skirmish/internal/replay/storage/memory"
	"github.com/tacband/skirmish/pkg/core"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Grid.Width = 8
	cfg.Grid.Height = 8
	cfg.Win.PollIntervalSec = 0
	cfg.Win.MinMatchDuration = 0
	return cfg
}

func newTestEngine(t *testing.T, cfg config.Config) *Engine {
	t.Helper()
	e, err := New(Dependencies{Config: cfg, Log: slog.New(slog.DiscardHandler)})
	require.NoError(t, err)
	return e
}

func placePair(t *testing.T, e *Engine) {
	t.Helper()
	require.NoError(t, e.PlaceUnit(UnitSpec{ID: 1, Name: "alpha-1", Team: core.TeamA, Coord: core.GridCoordinate{X: 1, Z: 4}}))
	require.NoError(t, e.PlaceUnit(UnitSpec{ID: 2, Name: "bravo-1", Team: core.TeamB, Coord: core.GridCoordinate{X: 3, Z: 4}}))
}

func TestPlaceUnitValidation(t *testing.T) {
	e := newTestEngine(t, testConfig())
	placePair(t, e)

	err := e.PlaceUnit(UnitSpec{ID: 0, Team: core.TeamA, Coord: core.GridCoordinate{X: 0, Z: 0}})
	assert.ErrorContains(t, err, "nonzero")

	err = e.PlaceUnit(UnitSpec{ID: 3, Team: core.TeamA, Coord: core.GridCoordinate{X: 99, Z: 0}})
	assert.ErrorContains(t, err, "off the board")

	err = e.PlaceUnit(UnitSpec{ID: 3, Team: core.TeamA, Coord: core.GridCoordinate{X: 1, Z: 4}})
	assert.ErrorContains(t, err, "occupied")

	err = e.PlaceUnit(UnitSpec{ID: 1, Team: core.TeamA, Coord: core.GridCoordinate{X: 0, Z: 0}})
	assert.ErrorContains(t, err, "already placed")

	// Defaults flow in from config.
	u, ok := e.Roster().Get(1)
	require.True(t, ok)
	assert.Equal(t, testConfig().Combat.AttackRange, u.AttackRange)
	assert.Equal(t, testConfig().Movement.Speed, u.MoveSpeed)
}

func TestMoveCompletesOverTicks(t *testing.T) {
	e := newTestEngine(t, testConfig())
	placePair(t, e)

	target := core.GridCoordinate{X: 1, Z: 5}
	ok, res := e.RequestMove(1, target)
	require.True(t, ok, res.Reason)

	for i := 0; i < 120 && e.Movement().IsMoving(1); i++ {
		e.Tick(1.0 / 60)
	}

	u, _ := e.Roster().Get(1)
	assert.Equal(t, target, u.Coord)
	assert.Equal(t, core.UnitID(1), e.Grid().OccupantAt(target))
}

func TestBlockedAttackNamesObstacle(t *testing.T) {
	e := newTestEngine(t, testConfig())
	placePair(t, e)

	require.NoError(t, e.PlaceObstacle(ObstacleSpec{
		ID:             "wall-1",
		Coord:          core.GridCoordinate{X: 2, Z: 4},
		HalfWidth:      0.5,
		HalfDepth:      0.5,
		Height:         2.5,
		BlocksSight:    true,
		BlocksMovement: true,
	}))

	res := e.ValidateAttack(1, 2)
	assert.False(t, res.IsValid)
	assert.Equal(t, "blocked by wall-1", res.Reason)

	// The wall also blocks the cell it stands on.
	ok, mv := e.RequestMove(1, core.GridCoordinate{X: 2, Z: 4})
	assert.False(t, ok)
	assert.Equal(t, "target cell is blocked", mv.Reason)

	// Removing it restores both sight and passage.
	e.RemoveObstacle("wall-1", core.GridCoordinate{X: 2, Z: 4})
	assert.True(t, e.ValidateAttack(1, 2).IsValid)
	ok, _ = e.RequestMove(1, core.GridCoordinate{X: 2, Z: 4})
	assert.True(t, ok)
}

func TestEliminationWinScenario(t *testing.T) {
	cfg := testConfig()
	cfg.Combat.BaseDamage = 50
	e := newTestEngine(t, cfg)
	placePair(t, e)

	var winEvents []core.WinConditionMetEvent
	e.Events().WinConditionMet.Subscribe(func(ev core.WinConditionMetEvent) {
		winEvents = append(winEvents, ev)
	})

	// Two 50-damage hits kill bravo-1; the budget forces a turn between them.
	require.True(t, e.RequestAttack(1, 2).Success)
	e.ResetAttacksForNewTurn()
	require.True(t, e.RequestAttack(1, 2).Success)

	assert.False(t, e.Health().IsAlive(2))

	// Death drains and the win check fires on the same tick.
	e.Tick(1.0 / 60)

	require.Len(t, winEvents, 1)
	out := e.Outcome()
	assert.Equal(t, core.MatchTeamAWins, out.Result)
	assert.Equal(t, core.TeamA, out.WinningTeam)
	assert.Equal(t, core.TeamVictorious, e.TeamStatus(core.TeamA))
	assert.Equal(t, core.TeamEliminated, e.TeamStatus(core.TeamB))

	// Cell frees up once the death queue processed the unit.
	assert.False(t, e.Grid().IsOccupied(core.GridCoordinate{X: 3, Z: 4}))
}

func TestRequestsRejectedAfterMatchEnds(t *testing.T) {
	cfg := testConfig()
	cfg.Combat.BaseDamage = 200
	e := newTestEngine(t, cfg)
	placePair(t, e)

	require.True(t, e.RequestAttack(1, 2).Success)
	e.Tick(1.0 / 60)
	require.True(t, e.Outcome().Decided())

	res := e.RequestAttack(1, 2)
	assert.False(t, res.Success)
	assert.Equal(t, "match is over", res.Message)

	ok, mv := e.RequestMove(1, core.GridCoordinate{X: 1, Z: 5})
	assert.False(t, ok)
	assert.Equal(t, "match is over", mv.Reason)
}

func TestAttackBudgetPerTurn(t *testing.T) {
	e := newTestEngine(t, testConfig())
	placePair(t, e)

	require.True(t, e.RequestAttack(1, 2).Success)
	res := e.RequestAttack(1, 2)
	assert.False(t, res.Success)

	e.ResetAttacksForNewTurn()
	assert.True(t, e.RequestAttack(1, 2).Success)
}

func TestAsyncSightThroughEngine(t *testing.T) {
	e := newTestEngine(t, testConfig())
	placePair(t, e)

	var got *core.LineOfSightResult
	from := e.Grid().ToWorld(core.GridCoordinate{X: 1, Z: 4})
	to := e.Grid().ToWorld(core.GridCoordinate{X: 3, Z: 4})
	e.RequestLineOfSight(from, to, 1, func(res core.LineOfSightResult) { got = &res })

	e.Tick(1.0 / 60)
	require.NotNil(t, got)
	assert.False(t, got.IsBlocked)
	assert.True(t, e.HasLineOfSight(from, to))
}

func TestMonitorSamplesEachTick(t *testing.T) {
	e := newTestEngine(t, testConfig())
	placePair(t, e)

	e.Tick(1.0 / 60)
	e.Tick(1.0 / 60)

	snap := e.Monitor().Last()
	assert.Equal(t, uint64(2), snap.Tick)
	assert.Equal(t, e.Sight().CurrentBudget(), snap.RaycastBudget)
}

func TestEngineWithRecorder(t *testing.T) {
	backend := memory.New(config.ReplayConfig{OutputDir: t.TempDir()})
	require.NoError(t, backend.Init())
	rec := replay.NewRecorder(backend, slog.New(slog.DiscardHandler))

	cfg := testConfig()
	cfg.Combat.BaseDamage = 200
	e, err := New(Dependencies{Config: cfg, Log: slog.New(slog.DiscardHandler), Recorder: rec})
	require.NoError(t, err)

	require.NoError(t, e.StartMatch("Recorded Match"))
	placePair(t, e)

	require.True(t, e.RequestAttack(1, 2).Success)
	e.Tick(1.0 / 60)
	require.True(t, e.Outcome().Decided())

	e.Shutdown()

	assert.NotEmpty(t, backend.ExportedFilePath())
	assert.Greater(t, backend.EventCount(), 0)
	u, ok := backend.GetUnit(1)
	require.True(t, ok)
	assert.Equal(t, "alpha-1", u.Name)
}

package death

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tacband/skirmish/internal/clock"
	"github.com/tacband/skirmish/internal/config"
	"github.com/tacband/skirmish/internal/event"
	"github.com/tacband/skirmish/internal/grid"
	"github.com/tacband/skirmish/internal/roster"
	"github.com/tacband/skirmish/pkg/core"
)

type finalizerSpy struct {
	finalized []core.UnitID
}

func (f *finalizerSpy) FinalizeDeath(id core.UnitID) {
	f.finalized = append(f.finalized, id)
}

type cancellerSpy struct {
	cancelled []core.UnitID
}

func (c *cancellerSpy) Cancel(id core.UnitID, reason string) bool {
	c.cancelled = append(c.cancelled, id)
	return true
}

type deathFixture struct {
	coord     *Coordinator
	grid      *grid.Index
	roster    *roster.Roster
	bus       *event.Bus
	finalizer *finalizerSpy
	canceller *cancellerSpy
}

func newDeathFixture(t *testing.T, cfg config.DeathConfig) *deathFixture {
	t.Helper()
	g := grid.New(grid.Config{Width: 10, Height: 10, CellSize: 1.0})
	r := roster.New()
	bus := event.NewBus()
	c := New(cfg, bus, clock.New(), g, r, slog.New(slog.DiscardHandler))
	fin := &finalizerSpy{}
	can := &cancellerSpy{}
	c.SetFinalizer(fin)
	c.SetMoveCanceller(can)
	return &deathFixture{coord: c, grid: g, roster: r, bus: bus, finalizer: fin, canceller: can}
}

func (f *deathFixture) place(id core.UnitID, team core.Team, x, z int) {
	c := core.GridCoordinate{X: x, Z: z}
	f.roster.Add(roster.UnitRecord{ID: id, Team: team, Coord: c, Alive: true})
	f.grid.SetOccupant(c, id)
}

func TestDeathProcessClearsUnitState(t *testing.T) {
	f := newDeathFixture(t, config.DeathConfig{MaxDeathsPerTick: 3, MinimumUnitsForSurvival: 1})
	f.place(1, core.TeamA, 2, 2)
	f.place(2, core.TeamA, 3, 3)

	var died []core.UnitDiedEvent
	f.bus.UnitDied.Subscribe(func(ev core.UnitDiedEvent) { died = append(died, ev) })

	f.coord.Enqueue(1, 9, core.DeathCauseDamage)
	require.Equal(t, 1, f.coord.QueueLen())
	f.coord.Tick()

	assert.True(t, f.coord.IsDead(1))
	assert.Equal(t, 0, f.coord.QueueLen())
	assert.False(t, f.grid.IsOccupied(core.GridCoordinate{X: 2, Z: 2}))
	assert.Equal(t, []core.UnitID{1}, f.canceller.cancelled)
	assert.Equal(t, []core.UnitID{1}, f.finalizer.finalized)
	assert.Equal(t, 1, f.coord.DeathTally(core.TeamA))

	require.Len(t, died, 1)
	assert.Equal(t, core.UnitID(1), died[0].UnitID)
	assert.Equal(t, core.UnitID(9), died[0].KillerID)
	assert.Equal(t, core.TeamA, died[0].Team)
}

func TestDeathEnqueueIdempotent(t *testing.T) {
	f := newDeathFixture(t, config.DeathConfig{MaxDeathsPerTick: 5, MinimumUnitsForSurvival: 1})
	f.place(1, core.TeamA, 2, 2)
	f.place(2, core.TeamA, 3, 3)

	var died int
	f.bus.UnitDied.Subscribe(func(core.UnitDiedEvent) { died++ })

	f.coord.Enqueue(1, 0, core.DeathCauseDamage)
	f.coord.Enqueue(1, 0, core.DeathCauseDamage)
	assert.Equal(t, 1, f.coord.QueueLen())
	f.coord.Tick()

	// Re-enqueueing an already-dead unit is also ignored.
	f.coord.Enqueue(1, 0, core.DeathCauseDamage)
	f.coord.Tick()

	assert.Equal(t, 1, died)
	assert.Equal(t, 1, f.coord.DeathTally(core.TeamA))
}

func TestDeathRateLimitAcrossTicks(t *testing.T) {
	f := newDeathFixture(t, config.DeathConfig{MaxDeathsPerTick: 2, MinimumUnitsForSurvival: 1})
	for i := 1; i <= 5; i++ {
		f.place(core.UnitID(i), core.TeamA, i, 0)
	}
	f.place(10, core.TeamB, 9, 9)

	var diedPerTick []int
	died := 0
	f.bus.UnitDied.Subscribe(func(core.UnitDiedEvent) { died++ })

	for i := 1; i <= 5; i++ {
		f.coord.Enqueue(core.UnitID(i), 0, core.DeathCauseDamage)
	}

	for tick := 0; tick < 3; tick++ {
		before := died
		f.coord.Tick()
		diedPerTick = append(diedPerTick, died-before)
	}

	assert.Equal(t, []int{2, 2, 1}, diedPerTick)
	assert.Equal(t, 0, f.coord.QueueLen())
}

func TestEliminationFiresOnce(t *testing.T) {
	f := newDeathFixture(t, config.DeathConfig{MaxDeathsPerTick: 1, MinimumUnitsForSurvival: 1})
	f.place(1, core.TeamA, 1, 1)
	f.place(2, core.TeamA, 2, 2)
	f.place(3, core.TeamB, 8, 8)

	var eliminated []core.TeamEliminatedEvent
	f.bus.TeamEliminated.Subscribe(func(ev core.TeamEliminatedEvent) { eliminated = append(eliminated, ev) })

	// Units must drop the alive flag before their queued death drains, the
	// same order the health layer uses.
	f.roster.SetAlive(1, false)
	f.coord.Enqueue(1, 0, core.DeathCauseDamage)
	f.coord.Tick()
	assert.Empty(t, eliminated)
	assert.False(t, f.coord.IsEliminated(core.TeamA))

	f.roster.SetAlive(2, false)
	f.coord.Enqueue(2, 0, core.DeathCauseDamage)
	f.coord.Tick()

	require.Len(t, eliminated, 1)
	assert.Equal(t, core.TeamA, eliminated[0].Team)
	assert.Len(t, eliminated[0].UnitIDs, 2)
	assert.True(t, f.coord.IsEliminated(core.TeamA))

	// Another tick with an empty queue must not re-fire.
	f.coord.Tick()
	assert.Len(t, eliminated, 1)
}

func TestDeathConfigClamping(t *testing.T) {
	f := newDeathFixture(t, config.DeathConfig{})
	f.place(1, core.TeamA, 1, 1)
	f.coord.Enqueue(1, 0, core.DeathCauseDamage)
	f.coord.Tick()
	assert.True(t, f.coord.IsDead(1))
}

func TestDeathOfUnregisteredUnit(t *testing.T) {
	f := newDeathFixture(t, config.DeathConfig{MaxDeathsPerTick: 3, MinimumUnitsForSurvival: 1})
	f.place(1, core.TeamA, 1, 1)

	var died int
	f.bus.UnitDied.Subscribe(func(core.UnitDiedEvent) { died++ })

	f.coord.Enqueue(42, 0, core.DeathCauseDamage)
	f.coord.Tick()

	assert.Equal(t, 0, died)
	assert.Equal(t, 0, f.coord.QueueLen())
}

package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tacband/skirmish/pkg/core"
)

func testGrid() *Index {
	return New(Config{Width: 10, Height: 8, CellSize: 1.0})
}

func TestGridBounds(t *testing.T) {
	g := testGrid()

	assert.True(t, g.IsValid(core.GridCoordinate{X: 0, Z: 0}))
	assert.True(t, g.IsValid(core.GridCoordinate{X: 9, Z: 7}))
	assert.False(t, g.IsValid(core.GridCoordinate{X: 10, Z: 0}))
	assert.False(t, g.IsValid(core.GridCoordinate{X: 0, Z: 8}))
	assert.False(t, g.IsValid(core.GridCoordinate{X: -1, Z: 3}))
}

func TestGridWorldRoundTrip(t *testing.T) {
	g := New(Config{Width: 10, Height: 10, CellSize: 2.0, OriginX: -5, OriginZ: 3})

	c := core.GridCoordinate{X: 3, Z: 4}
	w := g.ToWorld(c)
	assert.Equal(t, c, g.ToGrid(w))

	// Points inside the cell map back to the same coordinate.
	w.X += 0.9
	w.Z -= 0.9
	assert.Equal(t, c, g.ToGrid(w))
}

func TestGridToGridOutOfRange(t *testing.T) {
	g := testGrid()
	c := g.ToGrid(core.Position3D{X: -100, Z: -100})
	assert.True(t, c.IsInvalid())
}

func TestGridToGridJustBelowOrigin(t *testing.T) {
	g := testGrid()

	// Positions in (-CellSize, 0) sit off the board and must not round
	// into cell 0.
	assert.True(t, g.ToGrid(core.Position3D{X: -0.3, Z: -0.3}).IsInvalid())
	assert.True(t, g.ToGrid(core.Position3D{X: -0.3, Z: 0.5}).IsInvalid())
	assert.True(t, g.ToGrid(core.Position3D{X: 0.5, Z: -0.01}).IsInvalid())

	// The origin itself is the first cell.
	assert.Equal(t, core.GridCoordinate{X: 0, Z: 0}, g.ToGrid(core.Position3D{X: 0, Z: 0}))
}

func TestGridOccupancy(t *testing.T) {
	g := testGrid()
	c := core.GridCoordinate{X: 2, Z: 3}

	assert.False(t, g.IsOccupied(c))
	assert.Equal(t, core.NoUnit, g.OccupantAt(c))

	g.SetOccupant(c, core.UnitID(7))
	assert.True(t, g.IsOccupied(c))
	assert.Equal(t, core.UnitID(7), g.OccupantAt(c))

	g.SetOccupant(c, core.NoUnit)
	assert.False(t, g.IsOccupied(c))
}

func TestGridVacateFindsUnit(t *testing.T) {
	g := testGrid()
	a := core.GridCoordinate{X: 1, Z: 1}
	b := core.GridCoordinate{X: 5, Z: 5}
	g.SetOccupant(a, core.UnitID(1))
	g.SetOccupant(b, core.UnitID(2))

	g.Vacate(core.UnitID(2))
	assert.True(t, g.IsOccupied(a))
	assert.False(t, g.IsOccupied(b))

	// Vacating an absent unit is a no-op.
	g.Vacate(core.UnitID(99))
	assert.True(t, g.IsOccupied(a))
}

func TestGridBlocking(t *testing.T) {
	g := testGrid()
	c := core.GridCoordinate{X: 4, Z: 4}

	assert.False(t, g.IsBlocked(c))
	g.SetBlocked(c, true)
	assert.True(t, g.IsBlocked(c))

	// Out-of-bounds cells read as blocked so validation fails closed.
	assert.True(t, g.IsBlocked(core.GridCoordinate{X: -1, Z: 0}))
}

func TestGridCost(t *testing.T) {
	g := testGrid()
	c := core.GridCoordinate{X: 0, Z: 0}
	assert.Equal(t, 1.0, g.CostAt(c))
	g.SetCost(c, 2.5)
	assert.Equal(t, 2.5, g.CostAt(c))
}

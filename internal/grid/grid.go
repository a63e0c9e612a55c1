// Package grid owns the authoritative board state: cell bounds, occupancy
// and blocking flags, and the mapping between integer grid coordinates and
// continuous world positions.
//
// Occupancy is mutated only by the movement coordinator (on move completion)
// and the death coordinator (on unit removal). Everything else reads.
package grid

import (
	"math"
	"sync"

	"github.com/tacband/skirmish/pkg/core"
)

// Config holds board dimensions and the grid-to-world mapping.
type Config struct {
	Width    int
	Height   int
	CellSize float64
	OriginX  float64
	OriginZ  float64
}

// Cell is one board position. Cells are created at initialization and live
// for the whole match.
type Cell struct {
	Coord    core.GridCoordinate
	Occupant core.UnitID // NoUnit when empty
	Blocked  bool
	Cost     float64 // movement-cost multiplier, 1.0 = normal
}

// Index is the authoritative grid coordinate system.
type Index struct {
	mu    sync.RWMutex
	cfg   Config
	cells []Cell // row-major, z*width + x
}

// New creates a grid with all cells unoccupied and unblocked.
func New(cfg Config) *Index {
	if cfg.CellSize <= 0 {
		cfg.CellSize = 1.0
	}
	g := &Index{
		cfg:   cfg,
		cells: make([]Cell, cfg.Width*cfg.Height),
	}
	for z := 0; z < cfg.Height; z++ {
		for x := 0; x < cfg.Width; x++ {
			g.cells[z*cfg.Width+x] = Cell{
				Coord: core.GridCoordinate{X: x, Z: z},
				Cost:  1.0,
			}
		}
	}
	return g
}

// Width returns the board width in cells.
func (g *Index) Width() int { return g.cfg.Width }

// Height returns the board height in cells.
func (g *Index) Height() int { return g.cfg.Height }

// IsValid reports whether the coordinate is inside the board bounds.
func (g *Index) IsValid(c core.GridCoordinate) bool {
	return c.X >= 0 && c.X < g.cfg.Width && c.Z >= 0 && c.Z < g.cfg.Height
}

// ToWorld maps a grid coordinate to the world position at the cell center.
// Out-of-range coordinates map to the world position they would occupy;
// callers are expected to check IsValid first.
func (g *Index) ToWorld(c core.GridCoordinate) core.Position3D {
	return core.Position3D{
		X: g.cfg.OriginX + (float64(c.X)+0.5)*g.cfg.CellSize,
		Y: 0,
		Z: g.cfg.OriginZ + (float64(c.Z)+0.5)*g.cfg.CellSize,
	}
}

// ToGrid maps a world position to the containing grid coordinate. Returns
// InvalidCoordinate when the position is off the board. Floor, not truncate:
// positions just below the origin must not collapse into cell 0.
func (g *Index) ToGrid(p core.Position3D) core.GridCoordinate {
	x := int(math.Floor((p.X - g.cfg.OriginX) / g.cfg.CellSize))
	z := int(math.Floor((p.Z - g.cfg.OriginZ) / g.cfg.CellSize))
	c := core.GridCoordinate{X: x, Z: z}
	if !g.IsValid(c) {
		return core.InvalidCoordinate
	}
	return c
}

// IsOccupied reports whether a live unit occupies the cell. Out-of-range
// coordinates report false.
func (g *Index) IsOccupied(c core.GridCoordinate) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if !g.IsValid(c) {
		return false
	}
	return g.cells[c.Z*g.cfg.Width+c.X].Occupant != core.NoUnit
}

// OccupantAt returns the unit occupying the cell, or NoUnit.
func (g *Index) OccupantAt(c core.GridCoordinate) core.UnitID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if !g.IsValid(c) {
		return core.NoUnit
	}
	return g.cells[c.Z*g.cfg.Width+c.X].Occupant
}

// SetOccupant records a unit as occupying the cell. Pass NoUnit to vacate.
// Out-of-range coordinates are ignored.
func (g *Index) SetOccupant(c core.GridCoordinate, id core.UnitID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.IsValid(c) {
		return
	}
	g.cells[c.Z*g.cfg.Width+c.X].Occupant = id
}

// IsBlocked reports whether the cell is impassable terrain. Out-of-range
// coordinates report true.
func (g *Index) IsBlocked(c core.GridCoordinate) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if !g.IsValid(c) {
		return true
	}
	return g.cells[c.Z*g.cfg.Width+c.X].Blocked
}

// SetBlocked marks a cell as impassable or passable.
func (g *Index) SetBlocked(c core.GridCoordinate, blocked bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.IsValid(c) {
		return
	}
	g.cells[c.Z*g.cfg.Width+c.X].Blocked = blocked
}

// CostAt returns the movement-cost multiplier for the cell, 1.0 for
// out-of-range coordinates.
func (g *Index) CostAt(c core.GridCoordinate) float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if !g.IsValid(c) {
		return 1.0
	}
	return g.cells[c.Z*g.cfg.Width+c.X].Cost
}

// SetCost sets the movement-cost multiplier for the cell.
func (g *Index) SetCost(c core.GridCoordinate, cost float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.IsValid(c) || cost <= 0 {
		return
	}
	g.cells[c.Z*g.cfg.Width+c.X].Cost = cost
}

// Vacate removes the unit from whatever cell it occupies, if any.
func (g *Index) Vacate(id core.UnitID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.cells {
		if g.cells[i].Occupant == id {
			g.cells[i].Occupant = core.NoUnit
			return
		}
	}
}

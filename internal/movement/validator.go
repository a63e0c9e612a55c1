// Package movement validates grid moves and animates accepted ones across
// ticks. Occupancy commits only when a move completes, so cancellation never
// needs rollback.
package movement

import (
	"github.com/tacband/skirmish/internal/grid"
	"github.com/tacband/skirmish/internal/roster"
	"github.com/tacband/skirmish/pkg/core"
)

// Validation failure reasons, returned verbatim to callers.
const (
	ReasonUnknownUnit   = "unit is not registered"
	ReasonUnitDead      = "unit is not alive"
	ReasonOutOfBounds   = "target is out of bounds"
	ReasonCellBlocked   = "target cell is blocked"
	ReasonCellOccupied  = "target cell is occupied"
	ReasonNotAdjacent   = "target is not adjacent"
	ReasonCornerBlocked = "diagonal blocked by corner cell"
	ReasonAlreadyMoving = "unit is already moving"
	ReasonAnotherMoving = "another move is in progress"
)

// Validator determines whether a unit may occupy a target cell.
type Validator struct {
	grid          *grid.Index
	roster        *roster.Roster
	allowDiagonal bool
}

// NewValidator creates a movement validator.
func NewValidator(g *grid.Index, r *roster.Roster, allowDiagonal bool) *Validator {
	return &Validator{
		grid:          g,
		roster:        r,
		allowDiagonal: allowDiagonal,
	}
}

// Validate checks whether the unit may occupy the target cell. Checks run
// in a fixed order and short-circuit on the first failure; the failing
// reason is returned verbatim.
func (v *Validator) Validate(unitID core.UnitID, target core.GridCoordinate) core.MovementValidationResult {
	fail := func(reason string) core.MovementValidationResult {
		return core.MovementValidationResult{UnitID: unitID, Target: target, Reason: reason}
	}

	u, ok := v.roster.Get(unitID)
	if !ok {
		return fail(ReasonUnknownUnit)
	}
	if !u.Alive {
		return fail(ReasonUnitDead)
	}
	if !v.grid.IsValid(target) {
		return fail(ReasonOutOfBounds)
	}
	if v.grid.IsBlocked(target) {
		return fail(ReasonCellBlocked)
	}
	if occ := v.grid.OccupantAt(target); occ != core.NoUnit && occ != unitID {
		// A dead occupant no longer bars entry; its cell clears when the
		// death queue processes it, but the alive flag drops first.
		if rec, found := v.roster.Get(occ); !found || rec.Alive {
			return fail(ReasonCellOccupied)
		}
	}

	dx := target.X - u.Coord.X
	dz := target.Z - u.Coord.Z
	if v.allowDiagonal {
		if u.Coord.ChebyshevDistance(target) != 1 {
			return fail(ReasonNotAdjacent)
		}
		if dx != 0 && dz != 0 {
			// Both orthogonal corner cells must be open so a diagonal step
			// cannot cut through a wall.
			cornerA := core.GridCoordinate{X: u.Coord.X + dx, Z: u.Coord.Z}
			cornerB := core.GridCoordinate{X: u.Coord.X, Z: u.Coord.Z + dz}
			if v.grid.IsBlocked(cornerA) || v.grid.IsBlocked(cornerB) {
				return fail(ReasonCornerBlocked)
			}
		}
	} else {
		if u.Coord.ManhattanDistance(target) != 1 {
			return fail(ReasonNotAdjacent)
		}
	}

	return core.MovementValidationResult{IsValid: true, UnitID: unitID, Target: target}
}

// ValidAdjacentPositions enumerates the unit's adjacent cells and returns
// those that pass validation. Preview and highlight layers consume this.
func (v *Validator) ValidAdjacentPositions(unitID core.UnitID) []core.GridCoordinate {
	u, ok := v.roster.Get(unitID)
	if !ok {
		return nil
	}

	var out []core.GridCoordinate
	for dz := -1; dz <= 1; dz++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dz == 0 {
				continue
			}
			if !v.allowDiagonal && dx != 0 && dz != 0 {
				continue
			}
			c := core.GridCoordinate{X: u.Coord.X + dx, Z: u.Coord.Z + dz}
			if v.Validate(unitID, c).IsValid {
				out = append(out, c)
			}
		}
	}
	return out
}

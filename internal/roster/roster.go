package roster

import (
	"sync"

	"github.com/tacband/skirmish/pkg/core"
)

// UnitRecord is the engine's view of a host-owned unit. Everything the
// combat and movement layers need is mirrored here so lookups never leave
// the process.
type UnitRecord struct {
	ID          core.UnitID         `json:"id"`
	Name        string              `json:"name"`
	Team        core.Team           `json:"team"`
	Coord       core.GridCoordinate `json:"coord"`
	WorldPos    core.Position3D     `json:"worldPos"`
	AttackRange float64             `json:"attackRange"`
	MoveSpeed   float64             `json:"moveSpeed"`
	Alive       bool                `json:"alive"`
}

// Roster holds all units registered for the current match. Lookup latency
// matters here; every validation path goes through it.
type Roster struct {
	mu    sync.RWMutex
	units map[core.UnitID]UnitRecord
}

// New creates an empty roster.
func New() *Roster {
	return &Roster{
		units: make(map[core.UnitID]UnitRecord),
	}
}

// Reset removes all units.
func (r *Roster) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.units = make(map[core.UnitID]UnitRecord)
}

// Add registers or replaces a unit record.
func (r *Roster) Add(u UnitRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.units[u.ID] = u
}

// Get returns the record for the given unit.
func (r *Roster) Get(id core.UnitID) (UnitRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.units[id]
	return u, ok
}

// SetPosition updates a unit's grid coordinate and world position.
func (r *Roster) SetPosition(id core.UnitID, coord core.GridCoordinate, world core.Position3D) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.units[id]; ok {
		u.Coord = coord
		u.WorldPos = world
		r.units[id] = u
	}
}

// SetWorldPos updates only the continuous world position, used while a move
// animation is in flight and the grid coordinate has not yet committed.
func (r *Roster) SetWorldPos(id core.UnitID, world core.Position3D) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.units[id]; ok {
		u.WorldPos = world
		r.units[id] = u
	}
}

// SetAlive updates a unit's alive flag.
func (r *Roster) SetAlive(id core.UnitID, alive bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.units[id]; ok {
		u.Alive = alive
		r.units[id] = u
	}
}

// All returns a snapshot of every registered unit.
func (r *Roster) All() []UnitRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]UnitRecord, 0, len(r.units))
	for _, u := range r.units {
		out = append(out, u)
	}
	return out
}

// Team returns a snapshot of the units on the given team.
func (r *Roster) Team(team core.Team) []UnitRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]UnitRecord, 0, len(r.units))
	for _, u := range r.units {
		if u.Team == team {
			out = append(out, u)
		}
	}
	return out
}

// AliveCount returns the number of live units on the given team.
func (r *Roster) AliveCount(team core.Team) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, u := range r.units {
		if u.Team == team && u.Alive {
			n++
		}
	}
	return n
}

// Len returns the total number of registered units.
func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.units)
}

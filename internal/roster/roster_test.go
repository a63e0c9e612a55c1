package roster

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tacband/skirmish/pkg/core"
)

func TestRosterAddGetUpdate(t *testing.T) {
	r := New()

	r.Add(UnitRecord{ID: 1, Name: "alpha-1", Team: core.TeamA, Alive: true})
	u, ok := r.Get(1)
	assert.True(t, ok)
	assert.Equal(t, "alpha-1", u.Name)

	// Re-adding with the same ID replaces the record.
	u.Name = "renamed"
	r.Add(u)
	u, _ = r.Get(1)
	assert.Equal(t, "renamed", u.Name)

	_, ok = r.Get(2)
	assert.False(t, ok)
}

func TestRosterPositionUpdates(t *testing.T) {
	r := New()
	r.Add(UnitRecord{ID: 1, Alive: true})

	coord := core.GridCoordinate{X: 3, Z: 4}
	world := core.Position3D{X: 3.5, Z: 4.5}
	r.SetPosition(1, coord, world)

	u, _ := r.Get(1)
	assert.Equal(t, coord, u.Coord)
	assert.Equal(t, world, u.WorldPos)

	mid := core.Position3D{X: 3.7, Z: 4.5}
	r.SetWorldPos(1, mid)
	u, _ = r.Get(1)
	assert.Equal(t, mid, u.WorldPos)
	assert.Equal(t, coord, u.Coord, "grid coordinate only changes on SetPosition")
}

func TestRosterTeamQueries(t *testing.T) {
	r := New()
	r.Add(UnitRecord{ID: 1, Team: core.TeamA, Alive: true})
	r.Add(UnitRecord{ID: 2, Team: core.TeamA, Alive: true})
	r.Add(UnitRecord{ID: 3, Team: core.TeamB, Alive: true})

	assert.Len(t, r.Team(core.TeamA), 2)
	assert.Equal(t, 2, r.AliveCount(core.TeamA))
	assert.Equal(t, 1, r.AliveCount(core.TeamB))
	assert.Equal(t, 3, r.Len())

	r.SetAlive(2, false)
	assert.Equal(t, 1, r.AliveCount(core.TeamA))
	assert.Len(t, r.Team(core.TeamA), 2, "dead units stay on the team roster")
}

func TestRosterReset(t *testing.T) {
	r := New()
	r.Add(UnitRecord{ID: 1, Team: core.TeamA, Alive: true})
	r.Reset()
	assert.Equal(t, 0, r.Len())
}

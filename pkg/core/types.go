// Package core holds the value types, result structs and event payloads
// shared by every engine subsystem.
package core

import "math"

// UnitID identifies a unit registered with the engine. Units themselves are
// owned by the host; the engine only ever refers to them by ID.
type UnitID uint16

// NoUnit is the zero UnitID, used where an optional unit reference is absent.
const NoUnit UnitID = 0

// Team identifies one of the two sides in a match.
type Team uint8

const (
	TeamNone Team = iota
	TeamA
	TeamB
)

// String returns the team name.
func (t Team) String() string {
	switch t {
	case TeamA:
		return "TeamA"
	case TeamB:
		return "TeamB"
	default:
		return "None"
	}
}

// Opponent returns the opposing team, or TeamNone for TeamNone.
func (t Team) Opponent() Team {
	switch t {
	case TeamA:
		return TeamB
	case TeamB:
		return TeamA
	default:
		return TeamNone
	}
}

// GridCoordinate is an integer (x,z) index into the tactical board.
// It is a value type; equality is by value.
type GridCoordinate struct {
	X int `json:"x"`
	Z int `json:"z"`
}

// InvalidCoordinate is the sentinel returned for out-of-range lookups.
var InvalidCoordinate = GridCoordinate{X: -1, Z: -1}

// IsInvalid reports whether the coordinate is the invalid sentinel.
func (c GridCoordinate) IsInvalid() bool {
	return c == InvalidCoordinate
}

// ManhattanDistance returns |dx| + |dz| to the other coordinate.
func (c GridCoordinate) ManhattanDistance(o GridCoordinate) int {
	return absInt(c.X-o.X) + absInt(c.Z-o.Z)
}

// ChebyshevDistance returns max(|dx|, |dz|) to the other coordinate.
func (c GridCoordinate) ChebyshevDistance(o GridCoordinate) int {
	dx := absInt(c.X - o.X)
	dz := absInt(c.Z - o.Z)
	if dx > dz {
		return dx
	}
	return dz
}

// Position3D represents a continuous world coordinate.
type Position3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"` // vertical axis
	Z float64 `json:"z"`
}

// Sub returns the component-wise difference p - o.
func (p Position3D) Sub(o Position3D) Position3D {
	return Position3D{X: p.X - o.X, Y: p.Y - o.Y, Z: p.Z - o.Z}
}

// Add returns the component-wise sum p + o.
func (p Position3D) Add(o Position3D) Position3D {
	return Position3D{X: p.X + o.X, Y: p.Y + o.Y, Z: p.Z + o.Z}
}

// Scale returns p scaled by s.
func (p Position3D) Scale(s float64) Position3D {
	return Position3D{X: p.X * s, Y: p.Y * s, Z: p.Z * s}
}

// Length returns the Euclidean length of p treated as a vector.
func (p Position3D) Length() float64 {
	return math.Sqrt(p.X*p.X + p.Y*p.Y + p.Z*p.Z)
}

// Distance returns the Euclidean distance to the other position.
func (p Position3D) Distance(o Position3D) float64 {
	return p.Sub(o).Length()
}

// Lerp returns the linear interpolation between p and o at parameter t.
// t is clamped to [0,1].
func (p Position3D) Lerp(o Position3D, t float64) Position3D {
	if t <= 0 {
		return p
	}
	if t >= 1 {
		return o
	}
	return Position3D{
		X: p.X + (o.X-p.X)*t,
		Y: p.Y + (o.Y-p.Y)*t,
		Z: p.Z + (o.Z-p.Z)*t,
	}
}

// DeathCause classifies how a unit died.
type DeathCause uint8

const (
	DeathCauseDamage DeathCause = iota
	DeathCauseInstantKill
	DeathCauseEnvironment
)

// String returns the cause name.
func (c DeathCause) String() string {
	switch c {
	case DeathCauseDamage:
		return "damage"
	case DeathCauseInstantKill:
		return "instant_kill"
	case DeathCauseEnvironment:
		return "environment"
	default:
		return "unknown"
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

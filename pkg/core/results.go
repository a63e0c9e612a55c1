package core

// LineOfSightResult is the outcome of a sight check between two world points.
// Immutable once produced; safe to cache and share.
type LineOfSightResult struct {
	IsBlocked  bool        `json:"isBlocked"`
	Distance   float64     `json:"distance"` // full segment length when clear, hit distance when blocked
	BlockPoint *Position3D `json:"blockPoint,omitempty"`
	BlockerID  string      `json:"blockerId,omitempty"`
	Reason     string      `json:"reason"`
}

// MovementValidationResult reports whether a unit may occupy a target cell.
type MovementValidationResult struct {
	IsValid bool           `json:"isValid"`
	Reason  string         `json:"reason,omitempty"`
	UnitID  UnitID         `json:"unitId"`
	Target  GridCoordinate `json:"target"`
}

// AttackValidationResult reports whether an attack may proceed.
type AttackValidationResult struct {
	IsValid    bool   `json:"isValid"`
	Reason     string `json:"reason,omitempty"`
	AttackerID UnitID `json:"attackerId"`
	TargetID   UnitID `json:"targetId"`
}

// AttackResult is the outcome of an executed attack.
type AttackResult struct {
	Success bool   `json:"success"`
	Damage  int    `json:"damage"` // actual damage applied after mitigation
	Message string `json:"message"`
}

// TeamStatus is the derived survival state of a team, recomputed per check.
type TeamStatus uint8

const (
	TeamActive TeamStatus = iota
	TeamWeakened
	TeamCriticallyWeakened
	TeamEliminated
	TeamVictorious
)

// String returns the status name.
func (s TeamStatus) String() string {
	switch s {
	case TeamActive:
		return "active"
	case TeamWeakened:
		return "weakened"
	case TeamCriticallyWeakened:
		return "critically_weakened"
	case TeamEliminated:
		return "eliminated"
	case TeamVictorious:
		return "victorious"
	default:
		return "unknown"
	}
}

// MatchResult is the terminal classification of a match.
type MatchResult uint8

const (
	MatchInProgress MatchResult = iota
	MatchTeamAWins
	MatchTeamBWins
	MatchDraw
	MatchTimeout
)

// String returns the result name.
func (r MatchResult) String() string {
	switch r {
	case MatchInProgress:
		return "in_progress"
	case MatchTeamAWins:
		return "team_a_wins"
	case MatchTeamBWins:
		return "team_b_wins"
	case MatchDraw:
		return "draw"
	case MatchTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// WinConditionOutcome is set at most once per match. Once Result is anything
// other than MatchInProgress it never changes again.
type WinConditionOutcome struct {
	Result      MatchResult `json:"result"`
	WinningTeam Team        `json:"winningTeam"`
	Reason      string      `json:"reason"`
}

// Decided reports whether the match has ended.
func (o WinConditionOutcome) Decided() bool {
	return o.Result != MatchInProgress
}

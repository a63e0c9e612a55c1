// Package model defines the records persisted by replay storage backends.
package model

import (
	"time"

	"github.com/tacband/skirmish/pkg/core"
)

// Event kind constants matching the recording protocol.
const (
	KindMovementStarted   = "movement_started"
	KindMovementCompleted = "movement_completed"
	KindMovementFailed    = "movement_failed"
	KindMovementCancelled = "movement_cancelled"
	KindAttackCompleted   = "attack_completed"
	KindUnitDamaged       = "unit_damaged"
	KindUnitHealed        = "unit_healed"
	KindUnitDied          = "unit_died"
	KindTeamEliminated    = "team_eliminated"
	KindWinConditionMet   = "win_condition_met"
)

// Match is one recorded session.
type Match struct {
	ID         uint      `json:"-"`
	SessionID  string    `json:"sessionId"`
	Name       string    `json:"name"`
	GridWidth  int       `json:"gridWidth"`
	GridHeight int       `json:"gridHeight"`
	StartedAt  time.Time `json:"startedAt"`
	EndedAt    time.Time `json:"endedAt"`

	Result      string `json:"result"`
	WinningTeam string `json:"winningTeam"`
	Reason      string `json:"reason"`
}

// Unit is a roster entry captured when the unit joins the match.
type Unit struct {
	ID        uint        `json:"-"`
	UnitID    core.UnitID `json:"unitId"`
	Name      string      `json:"name"`
	Team      string      `json:"team"`
	SpawnX    int         `json:"spawnX"`
	SpawnZ    int         `json:"spawnZ"`
	MaxHealth int         `json:"maxHealth"`
}

// Event is one recorded engine event. Payload is the originating event
// struct and must be JSON-marshalable.
type Event struct {
	ID      uint   `json:"-"`
	Tick    uint64 `json:"tick"`
	Kind    string `json:"kind"`
	Payload any    `json:"payload"`
}

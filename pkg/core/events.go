package core

// Event payloads published on the engine bus. All events are fire-and-forget
// and may have any number of subscribers.

// MovementStartedEvent fires when a validated move begins animating.
type MovementStartedEvent struct {
	UnitID UnitID
	From   GridCoordinate
	To     GridCoordinate
	Tick   uint64
}

// MovementCompletedEvent fires when a move reaches its target and occupancy
// has been committed.
type MovementCompletedEvent struct {
	UnitID UnitID
	At     GridCoordinate
	Tick   uint64
}

// MovementFailedEvent fires when a move request is rejected.
type MovementFailedEvent struct {
	UnitID UnitID
	Target GridCoordinate
	Reason string
	Tick   uint64
}

// MovementCancelledEvent fires when an in-flight move is cancelled.
type MovementCancelledEvent struct {
	UnitID      UnitID
	Target      GridCoordinate
	Reason      string
	SnappedBack bool
	Tick        uint64
}

// AttackCompletedEvent fires after an attack resolves, successful or not.
type AttackCompletedEvent struct {
	AttackerID UnitID
	TargetID   UnitID
	Result     AttackResult
	Tick       uint64
}

// UnitDamagedEvent fires whenever a unit takes nonzero damage.
type UnitDamagedEvent struct {
	UnitID     UnitID
	AttackerID UnitID
	Damage     int
	Remaining  int
	Tick       uint64
}

// UnitHealedEvent fires whenever a unit receives nonzero healing.
type UnitHealedEvent struct {
	UnitID  UnitID
	Amount  int
	Current int
	Tick    uint64
}

// UnitDiedEvent fires once per unit when its death is processed.
type UnitDiedEvent struct {
	UnitID   UnitID
	KillerID UnitID
	Cause    DeathCause
	Team     Team
	Tick     uint64
}

// TeamEliminatedEvent fires once per team when it drops below the survival
// threshold.
type TeamEliminatedEvent struct {
	Team    Team
	UnitIDs []UnitID
	Tick    uint64
}

// WinConditionMetEvent fires exactly once when the match ends.
type WinConditionMetEvent struct {
	Outcome WinConditionOutcome
	Tick    uint64
}

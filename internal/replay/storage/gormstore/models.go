package gormstore

import (
	"time"

	"gorm.io/datatypes"
)

// MatchRow is the matches table.
type MatchRow struct {
	ID         uint   `gorm:"primarykey"`
	SessionID  string `gorm:"index;size:36"`
	Name       string
	GridWidth  int
	GridHeight int
	StartedAt  time.Time
	EndedAt    time.Time

	Result      string
	WinningTeam string
	Reason      string
}

// TableName overrides the gorm default.
func (MatchRow) TableName() string {
	return "matches"
}

// UnitRow is the units table.
type UnitRow struct {
	ID        uint `gorm:"primarykey"`
	MatchID   uint `gorm:"index"`
	UnitID    uint16
	Name      string
	Team      string
	SpawnX    int
	SpawnZ    int
	MaxHealth int
}

// TableName overrides the gorm default.
func (UnitRow) TableName() string {
	return "units"
}

// EventRow is the events table. Payload keeps the originating event struct
// as a JSON column so the schema survives event shape changes.
type EventRow struct {
	ID      uint   `gorm:"primarykey"`
	MatchID uint   `gorm:"index"`
	Tick    uint64 `gorm:"index"`
	Kind    string `gorm:"index;size:32"`
	Payload datatypes.JSON
}

// TableName overrides the gorm default.
func (EventRow) TableName() string {
	return "events"
}

// DatabaseModels lists everything AutoMigrate manages.
var DatabaseModels = []any{
	&MatchRow{},
	&UnitRow{},
	&EventRow{},
}

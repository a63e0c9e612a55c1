package memory

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tacband/skirmish/internal/config"
	"github.com/tacband/skirmish/internal/replay/model"
	"github.com/tacband/skirmish/pkg/core"
)

func startedMatch(t *testing.T, b *Backend) *model.Match {
	t.Helper()
	m := &model.Match{
		SessionID:  "session-1",
		Name:       "Test Match",
		GridWidth:  10,
		GridHeight: 10,
		StartedAt:  time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC),
	}
	if err := b.StartMatch(m); err != nil {
		t.Fatalf("StartMatch failed: %v", err)
	}
	return m
}

func TestMemoryBackendLifecycle(t *testing.T) {
	b := New(config.ReplayConfig{OutputDir: t.TempDir()})
	if err := b.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	startedMatch(t, b)

	err := b.AddUnit(&model.Unit{UnitID: 5, Name: "alpha-1", Team: "TeamA", SpawnX: 2, SpawnZ: 3, MaxHealth: 100})
	if err != nil {
		t.Fatalf("AddUnit failed: %v", err)
	}

	u, ok := b.GetUnit(5)
	if !ok {
		t.Fatal("GetUnit did not find registered unit")
	}
	if u.Name != "alpha-1" || u.ID == 0 {
		t.Errorf("unexpected unit record: %+v", u)
	}

	for i := 0; i < 3; i++ {
		err := b.RecordEvent(&model.Event{Tick: uint64(i), Kind: model.KindUnitDamaged})
		if err != nil {
			t.Fatalf("RecordEvent failed: %v", err)
		}
	}
	if b.EventCount() != 3 {
		t.Errorf("expected 3 events, got %d", b.EventCount())
	}

	if b.ExportedFilePath() != "" {
		t.Error("export path must be empty before EndMatch")
	}
}

func TestMemoryBackendExportsJSON(t *testing.T) {
	dir := t.TempDir()
	b := New(config.ReplayConfig{OutputDir: dir})
	startedMatch(t, b)

	b.AddUnit(&model.Unit{UnitID: 2, Name: "bravo-1", Team: "TeamB"})
	b.AddUnit(&model.Unit{UnitID: 1, Name: "alpha-1", Team: "TeamA"})
	b.RecordEvent(&model.Event{Tick: 7, Kind: model.KindUnitDied})

	outcome := core.WinConditionOutcome{
		Result:      core.MatchTeamAWins,
		WinningTeam: core.TeamA,
		Reason:      "TeamB eliminated",
	}
	if err := b.EndMatch(outcome, time.Now()); err != nil {
		t.Fatalf("EndMatch failed: %v", err)
	}

	path := b.ExportedFilePath()
	if path == "" {
		t.Fatal("no export path recorded")
	}
	if filepath.Base(path) != "Test_Match_20260314_150926.json" {
		t.Errorf("unexpected export filename: %s", filepath.Base(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading export: %v", err)
	}

	var export ReplayExport
	if err := json.Unmarshal(data, &export); err != nil {
		t.Fatalf("decoding export: %v", err)
	}
	if export.SessionID != "session-1" {
		t.Errorf("unexpected session id %q", export.SessionID)
	}
	if export.Result != "team_a_wins" || export.WinningTeam != "TeamA" {
		t.Errorf("unexpected outcome in export: %+v", export)
	}
	if len(export.Units) != 2 || export.Units[0].UnitID != 1 {
		t.Errorf("units must be sorted by engine unit id: %+v", export.Units)
	}
	if len(export.Events) != 1 || export.Events[0].Kind != model.KindUnitDied {
		t.Errorf("unexpected events: %+v", export.Events)
	}
}

func TestMemoryBackendCompressedExport(t *testing.T) {
	dir := t.TempDir()
	b := New(config.ReplayConfig{OutputDir: dir, Compress: true})
	startedMatch(t, b)

	if err := b.EndMatch(core.WinConditionOutcome{Result: core.MatchDraw}, time.Now()); err != nil {
		t.Fatalf("EndMatch failed: %v", err)
	}

	path := b.ExportedFilePath()
	if filepath.Ext(path) != ".gz" {
		t.Errorf("expected gzip export, got %s", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("export file missing: %v", err)
	}
}

func TestMemoryBackendEndWithoutStart(t *testing.T) {
	b := New(config.ReplayConfig{OutputDir: t.TempDir()})
	if err := b.EndMatch(core.WinConditionOutcome{}, time.Now()); err != nil {
		t.Errorf("EndMatch without a match must be a no-op, got %v", err)
	}
	if b.ExportedFilePath() != "" {
		t.Error("no export expected without a match")
	}
}

func TestMemoryBackendStartResetsState(t *testing.T) {
	b := New(config.ReplayConfig{OutputDir: t.TempDir()})
	startedMatch(t, b)
	b.AddUnit(&model.Unit{UnitID: 1})
	b.RecordEvent(&model.Event{Kind: model.KindMovementStarted})

	startedMatch(t, b)
	if b.EventCount() != 0 {
		t.Errorf("expected event log reset, got %d events", b.EventCount())
	}
	if _, ok := b.GetUnit(1); ok {
		t.Error("expected unit registry reset")
	}
}

package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tacband/skirmish/internal/replay/model"
)

// ReplayExport is the root JSON structure of an exported match.
type ReplayExport struct {
	SessionID   string        `json:"sessionId"`
	Name        string        `json:"name"`
	GridWidth   int           `json:"gridWidth"`
	GridHeight  int           `json:"gridHeight"`
	StartedAt   string        `json:"startedAt"`
	EndedAt     string        `json:"endedAt"`
	Result      string        `json:"result"`
	WinningTeam string        `json:"winningTeam"`
	Reason      string        `json:"reason"`
	Units       []model.Unit  `json:"units"`
	Events      []model.Event `json:"events"`
}

// exportJSON writes the match data to a replay file. Caller holds the lock.
func (b *Backend) exportJSON() error {
	export := b.buildExport()

	name := strings.ReplaceAll(b.match.Name, " ", "_")
	name = strings.ReplaceAll(name, ":", "_")
	timestamp := b.match.StartedAt.Format("20060102_150405")

	var filename string
	if b.cfg.Compress {
		filename = fmt.Sprintf("%s_%s.json.gz", name, timestamp)
	} else {
		filename = fmt.Sprintf("%s_%s.json", name, timestamp)
	}
	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create replay file: %w", err)
	}
	defer file.Close()

	if b.cfg.Compress {
		gz := gzip.NewWriter(file)
		defer gz.Close()
		if err := json.NewEncoder(gz).Encode(export); err != nil {
			return fmt.Errorf("failed to encode replay: %w", err)
		}
	} else {
		enc := json.NewEncoder(file)
		enc.SetIndent("", "  ")
		if err := enc.Encode(export); err != nil {
			return fmt.Errorf("failed to encode replay: %w", err)
		}
	}

	b.exportedPath = outputPath
	return nil
}

func (b *Backend) buildExport() ReplayExport {
	units := make([]model.Unit, 0, len(b.units))
	for _, record := range b.units {
		units = append(units, record.Unit)
	}
	sort.Slice(units, func(i, j int) bool { return units[i].UnitID < units[j].UnitID })

	return ReplayExport{
		SessionID:   b.match.SessionID,
		Name:        b.match.Name,
		GridWidth:   b.match.GridWidth,
		GridHeight:  b.match.GridHeight,
		StartedAt:   b.match.StartedAt.Format("2006-01-02T15:04:05Z07:00"),
		EndedAt:     b.match.EndedAt.Format("2006-01-02T15:04:05Z07:00"),
		Result:      b.match.Result,
		WinningTeam: b.match.WinningTeam,
		Reason:      b.match.Reason,
		Units:       units,
		Events:      b.events,
	}
}

package monitor

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSampleRefreshesSnapshot(t *testing.T) {
	m := New(4, slog.New(slog.DiscardHandler))
	m.SetSources(
		func() int { return 3 },
		func() int { return 1 },
		func() int { return 2 },
		func() int { return 16 },
	)

	m.Sample(42, 8*time.Millisecond)

	snap := m.Last()
	assert.Equal(t, uint64(42), snap.Tick)
	assert.InDelta(t, 8.0, snap.FrameTimeMs, 0.01)
	assert.Equal(t, 3, snap.RaycastQueueLen)
	assert.Equal(t, 1, snap.DeathQueueLen)
	assert.Equal(t, 2, snap.ActiveMoves)
	assert.Equal(t, 16, snap.RaycastBudget)
	assert.False(t, snap.CapturedAt.IsZero())
}

func TestRollingAverageOverPartialWindow(t *testing.T) {
	m := New(4, slog.New(slog.DiscardHandler))

	m.Sample(1, 10*time.Millisecond)
	m.Sample(2, 20*time.Millisecond)

	// Only the two recorded samples count, not the empty slots.
	snap := m.Last()
	assert.InDelta(t, 15.0, snap.RollingFrameMs, 0.01)
}

func TestRollingAverageWrapsWindow(t *testing.T) {
	m := New(2, slog.New(slog.DiscardHandler))

	m.Sample(1, 30*time.Millisecond)
	m.Sample(2, 10*time.Millisecond)
	m.Sample(3, 20*time.Millisecond) // overwrites the 30ms slot

	snap := m.Last()
	assert.InDelta(t, 15.0, snap.RollingFrameMs, 0.01)
}

func TestRollingFrameTimeReportsSeconds(t *testing.T) {
	m := New(4, slog.New(slog.DiscardHandler))
	m.Sample(1, 16*time.Millisecond)

	assert.InDelta(t, 0.016, m.RollingFrameTime(), 1e-6)
}

func TestNilSourcesReportZero(t *testing.T) {
	m := New(0, slog.New(slog.DiscardHandler))
	m.Sample(1, time.Millisecond)

	snap := m.Last()
	assert.Equal(t, 0, snap.RaycastQueueLen)
	assert.Equal(t, 0, snap.RaycastBudget)
}

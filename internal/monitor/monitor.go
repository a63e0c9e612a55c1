// Package monitor samples per-tick engine timings and queue depths. The
// rolling frame-time average drives the raycast budget controller.
package monitor

import (
	"log/slog"
	"sync"
	"time"
)

const defaultWindow = 60

// Snapshot is a point-in-time view of engine load.
type Snapshot struct {
	Tick            uint64    `json:"tick"`
	FrameTimeMs     float64   `json:"frameTimeMs"`
	RollingFrameMs  float64   `json:"rollingFrameMs"`
	RaycastQueueLen int       `json:"raycastQueueLen"`
	DeathQueueLen   int       `json:"deathQueueLen"`
	ActiveMoves     int       `json:"activeMoves"`
	RaycastBudget   int       `json:"raycastBudget"`
	CapturedAt      time.Time `json:"capturedAt"`
}

// DepthSource reports a queue depth. The engine registers one per queue.
type DepthSource func() int

// Monitor keeps a fixed window of frame times and the latest snapshot.
type Monitor struct {
	log *slog.Logger

	mu      sync.RWMutex
	window  []float64
	next    int
	filled  bool
	last    Snapshot
	metrics *otelMetrics

	losQueue   DepthSource
	deathQueue DepthSource
	moves      DepthSource
	budget     DepthSource
}

// New creates a monitor with a fixed-size rolling window. windowSize <= 0
// falls back to the default.
func New(windowSize int, log *slog.Logger) *Monitor {
	if windowSize <= 0 {
		windowSize = defaultWindow
	}
	m := &Monitor{
		log:    log,
		window: make([]float64, windowSize),
	}
	m.metrics = newOtelMetrics(m)
	return m
}

// SetSources wires the queue-depth callbacks. Nil sources report zero.
func (m *Monitor) SetSources(losQueue, deathQueue, activeMoves, raycastBudget DepthSource) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.losQueue = losQueue
	m.deathQueue = deathQueue
	m.moves = activeMoves
	m.budget = raycastBudget
}

// Sample records one tick's frame time in milliseconds and refreshes the
// snapshot.
func (m *Monitor) Sample(tick uint64, frameTime time.Duration) {
	ms := float64(frameTime.Microseconds()) / 1000.0

	m.mu.Lock()
	m.window[m.next] = ms
	m.next++
	if m.next >= len(m.window) {
		m.next = 0
		m.filled = true
	}
	m.last = Snapshot{
		Tick:            tick,
		FrameTimeMs:     ms,
		RollingFrameMs:  m.rollingLocked(),
		RaycastQueueLen: depth(m.losQueue),
		DeathQueueLen:   depth(m.deathQueue),
		ActiveMoves:     depth(m.moves),
		RaycastBudget:   depth(m.budget),
		CapturedAt:      time.Now(),
	}
	m.mu.Unlock()
}

// RollingFrameTime returns the windowed average frame time in seconds.
// Implements the frame timer consumed by the raycast budget controller.
func (m *Monitor) RollingFrameTime() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rollingLocked() / 1000.0
}

// Last returns the most recent snapshot.
func (m *Monitor) Last() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

func (m *Monitor) rollingLocked() float64 {
	n := len(m.window)
	if !m.filled {
		n = m.next
	}
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += m.window[i]
	}
	return sum / float64(n)
}

func depth(src DepthSource) int {
	if src == nil {
		return 0
	}
	return src()
}

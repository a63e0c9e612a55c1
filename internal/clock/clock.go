// Package clock tracks simulation time for a single engine instance. The
// host drives it through the engine's Tick call; every component reads it
// instead of the wall clock so matches stay deterministic under test.
package clock

import "sync"

// Clock is the shared simulation clock.
type Clock struct {
	mu      sync.RWMutex
	tick    uint64
	elapsed float64
}

// New creates a clock at tick zero.
func New() *Clock {
	return &Clock{}
}

// Advance moves the clock forward by dt seconds and increments the tick.
func (c *Clock) Advance(dt float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tick++
	c.elapsed += dt
}

// Tick returns the current tick number.
func (c *Clock) Tick() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tick
}

// Now returns elapsed simulation time in seconds.
func (c *Clock) Now() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.elapsed
}

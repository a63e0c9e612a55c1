package los

import (
	"math"
	"sync"

	"github.com/tacband/skirmish/pkg/core"
)

// cacheKey is a quantized endpoint pair. Rounding both endpoints to a fixed
// step collapses near-duplicate queries and bounds key cardinality.
type cacheKey struct {
	fx, fy, fz int64
	tx, ty, tz int64
}

type cacheEntry struct {
	result   core.LineOfSightResult
	storedAt float64 // sim seconds
	from, to core.Position3D
}

// resultCache is a time-bounded sight-result cache. Entries older than the
// validity window are evicted lazily on lookup and eagerly on Sweep.
type resultCache struct {
	mu       sync.Mutex
	step     float64
	validity float64
	maxSize  int
	entries  map[cacheKey]cacheEntry
	order    []cacheKey // insertion order, oldest first

	hits   uint64
	misses uint64
}

func newResultCache(step, validity float64, maxSize int) *resultCache {
	if step <= 0 {
		step = 0.5
	}
	if maxSize <= 0 {
		maxSize = 512
	}
	return &resultCache{
		step:     step,
		validity: validity,
		maxSize:  maxSize,
		entries:  make(map[cacheKey]cacheEntry),
	}
}

func (c *resultCache) key(from, to core.Position3D) cacheKey {
	q := func(v float64) int64 {
		return int64(math.Round(v / c.step))
	}
	return cacheKey{
		fx: q(from.X), fy: q(from.Y), fz: q(from.Z),
		tx: q(to.X), ty: q(to.Y), tz: q(to.Z),
	}
}

// get returns a still-valid cached result. A stale entry is removed and
// reported as a miss.
func (c *resultCache) get(from, to core.Position3D, now float64) (core.LineOfSightResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := c.key(from, to)
	e, ok := c.entries[k]
	if !ok {
		c.misses++
		return core.LineOfSightResult{}, false
	}
	if now-e.storedAt >= c.validity {
		delete(c.entries, k)
		// Drop the key from order too, or a later put of the same key
		// would append a duplicate and skew size-based eviction.
		c.compactOrder()
		c.misses++
		return core.LineOfSightResult{}, false
	}
	c.hits++
	return e.result, true
}

// put stores a result, evicting oldest entries past maxSize.
func (c *resultCache) put(from, to core.Position3D, res core.LineOfSightResult, now float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := c.key(from, to)
	if _, exists := c.entries[k]; !exists {
		c.order = append(c.order, k)
	}
	c.entries[k] = cacheEntry{result: res, storedAt: now, from: from, to: to}

	for len(c.entries) > c.maxSize && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

// invalidateNear removes entries with either endpoint within radius of the
// given position. Called when a tracked obstacle moves so stale "clear"
// results cannot survive the relocation.
func (c *resultCache) invalidateNear(pos core.Position3D, radius float64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, e := range c.entries {
		if e.from.Distance(pos) <= radius || e.to.Distance(pos) <= radius {
			delete(c.entries, k)
			removed++
		}
	}
	if removed > 0 {
		c.compactOrder()
	}
	return removed
}

// sweep eagerly removes all stale entries.
func (c *resultCache) sweep(now float64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, e := range c.entries {
		if now-e.storedAt >= c.validity {
			delete(c.entries, k)
			removed++
		}
	}
	if removed > 0 {
		c.compactOrder()
	}
	return removed
}

// compactOrder drops order entries whose key no longer exists. Caller must
// hold the lock.
func (c *resultCache) compactOrder() {
	kept := c.order[:0]
	for _, k := range c.order {
		if _, ok := c.entries[k]; ok {
			kept = append(kept, k)
		}
	}
	c.order = kept
}

func (c *resultCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *resultCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[cacheKey]cacheEntry)
	c.order = nil
}

// stats returns lifetime hit/miss counters.
func (c *resultCache) stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

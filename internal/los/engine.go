// Package los determines visibility between world points. Results are served
// from a time-bounded cache when possible; actual casts are admission
// controlled so a burst of sight queries cannot blow the frame budget.
package los

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"go.opentelemetry.io/otel/metric"

	"github.com/tacband/skirmish/internal/config"
	"github.com/tacband/skirmish/internal/queue"
	"github.com/tacband/skirmish/pkg/core"
)

// Well-known result reasons.
const (
	ReasonClear    = "clear"
	ReasonTimedOut = "timed out"
)

const sweepInterval = 1.0 // seconds between eager cache sweeps

// FrameTimer reports a rolling average frame time in seconds. The engine's
// admission controller reads it to decide whether the host has headroom for
// more casts per tick.
type FrameTimer interface {
	RollingFrameTime() float64
}

// Request is a queued asynchronous sight query. It resolves on a later tick,
// or with a timed-out result if it ages past the configured deadline.
type Request struct {
	From     core.Position3D
	To       core.Position3D
	Priority int

	enqueuedAt float64
	seq        uint64

	mu       sync.Mutex
	resolved bool
	result   core.LineOfSightResult
	callback func(core.LineOfSightResult)
}

// Done reports whether the request has resolved.
func (r *Request) Done() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolved
}

// Result returns the resolved result. The bool is false while pending.
func (r *Request) Result() (core.LineOfSightResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result, r.resolved
}

// resolve stores the result and fires the callback exactly once.
func (r *Request) resolve(res core.LineOfSightResult) {
	r.mu.Lock()
	if r.resolved {
		r.mu.Unlock()
		return
	}
	r.resolved = true
	r.result = res
	cb := r.callback
	r.mu.Unlock()
	if cb != nil {
		cb(res)
	}
}

// Engine is the line-of-sight engine: raycasts with caching and a
// frame-budgeted work queue.
type Engine struct {
	cfg    config.LOSConfig
	ray    *GeomRaycaster
	cache  *resultCache
	log    *slog.Logger
	frames FrameTimer

	pending *queue.Queue[*Request]

	mu        sync.Mutex
	now       float64
	budget    int
	lastSweep float64
	seq       uint64

	castsMetric   metric.Int64Counter
	hitsMetric    metric.Int64Counter
	timeoutMetric metric.Int64Counter
}

// New creates a line-of-sight engine. frames may be nil, in which case the
// cast budget stays at its configured maximum.
func New(cfg config.LOSConfig, ray *GeomRaycaster, frames FrameTimer, log *slog.Logger) (*Engine, error) {
	if cfg.MinRaycastsPerTick <= 0 {
		cfg.MinRaycastsPerTick = 1
	}
	if cfg.MaxRaycastsPerTick < cfg.MinRaycastsPerTick {
		cfg.MaxRaycastsPerTick = cfg.MinRaycastsPerTick
	}

	e := &Engine{
		cfg:     cfg,
		ray:     ray,
		cache:   newResultCache(cfg.QuantizeStep, cfg.CacheValiditySec, cfg.CacheSize),
		log:     log,
		frames:  frames,
		pending: queue.New[*Request](),
		budget:  cfg.MaxRaycastsPerTick,
	}

	m := meter()
	var err error

	e.castsMetric, err = m.Int64Counter(
		"los.raycasts.performed",
		metric.WithDescription("Total physics casts performed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating raycast counter: %w", err)
	}

	e.hitsMetric, err = m.Int64Counter(
		"los.cache.hits",
		metric.WithDescription("Sight queries served from cache"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating cache hit counter: %w", err)
	}

	e.timeoutMetric, err = m.Int64Counter(
		"los.requests.timedout",
		metric.WithDescription("Async sight requests resolved as timed out"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating timeout counter: %w", err)
	}

	return e, nil
}

// HasLineOfSight reports whether the straight path between the two points is
// unobstructed.
func (e *Engine) HasLineOfSight(from, to core.Position3D) bool {
	return !e.GetDetails(from, to).IsBlocked
}

// GetDetails performs or retrieves a cached sight check. A cache hit never
// reaches the raycaster.
func (e *Engine) GetDetails(from, to core.Position3D) core.LineOfSightResult {
	e.mu.Lock()
	now := e.now
	e.mu.Unlock()

	if res, ok := e.cache.get(from, to, now); ok {
		e.hitsMetric.Add(context.Background(), 1)
		return res
	}

	res := e.performCast(from, to)
	e.cache.put(from, to, res, now)
	return res
}

// RequestAsync queues a sight query to be serviced within the per-tick cast
// budget. Higher priority requests are served first; ties resolve FIFO.
// callback may be nil; the returned Request can be polled instead.
func (e *Engine) RequestAsync(from, to core.Position3D, priority int, callback func(core.LineOfSightResult)) *Request {
	e.mu.Lock()
	defer e.mu.Unlock()
	r := &Request{
		From:       from,
		To:         to,
		Priority:   priority,
		enqueuedAt: e.now,
		seq:        e.seq,
		callback:   callback,
	}
	e.seq++
	e.pending.Push(r)
	return r
}

// PendingCount returns the number of unserviced async requests.
func (e *Engine) PendingCount() int {
	return e.pending.Len()
}

// CurrentBudget returns the current per-tick cast budget.
func (e *Engine) CurrentBudget() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.budget
}

// CacheStats returns lifetime cache hit/miss counters.
func (e *Engine) CacheStats() (hits, misses uint64) {
	return e.cache.stats()
}

// UpsertObstacle registers or relocates an obstacle and invalidates cached
// results near both the old and new positions.
func (e *Engine) UpsertObstacle(o Obstacle) {
	prev, moved := e.ray.Upsert(o)
	newPos := core.Position3D{X: o.Center.X, Z: o.Center.Y}
	n := e.cache.invalidateNear(newPos, e.cfg.InvalidationRadius)
	if moved {
		oldPos := core.Position3D{X: prev.X, Z: prev.Y}
		n += e.cache.invalidateNear(oldPos, e.cfg.InvalidationRadius)
	}
	if n > 0 && e.log != nil {
		e.log.Debug("obstacle change invalidated cached sight results",
			"obstacle", o.ID, "entries", n)
	}
}

// RemoveObstacle deletes an obstacle and invalidates cached results near it.
func (e *Engine) RemoveObstacle(id string) {
	if o, ok := e.ray.Get(id); ok {
		pos := core.Position3D{X: o.Center.X, Z: o.Center.Y}
		e.cache.invalidateNear(pos, e.cfg.InvalidationRadius)
	}
	e.ray.Remove(id)
}

// Raycaster exposes the underlying raycaster, mainly for obstacle queries by
// the combat layer.
func (e *Engine) Raycaster() *GeomRaycaster {
	return e.ray
}

// Tick advances simulation time, expires stale requests, adapts the cast
// budget, and services pending requests within it.
func (e *Engine) Tick(dt float64) {
	e.mu.Lock()
	e.now += dt
	now := e.now

	// Resolve requests that aged past the deadline. They resolve with an
	// explicit timed-out result rather than leaking an uncalled callback.
	var expired []*Request
	e.pending.Filter(func(r *Request) bool {
		if now-r.enqueuedAt > e.cfg.RequestTimeoutSec {
			expired = append(expired, r)
			return false
		}
		return true
	})

	e.adjustBudget()
	budget := e.budget

	// Priority order, FIFO within equal priority.
	drained := e.pending.PopN(e.pending.Len())
	sort.SliceStable(drained, func(i, j int) bool {
		return drained[i].Priority > drained[j].Priority
	})

	var serve []*Request
	castsUsed := 0
	for _, r := range drained {
		if _, ok := e.cache.get(r.From, r.To, now); ok {
			// Cache hits cost no budget; recheck happens outside the lock.
			serve = append(serve, r)
			continue
		}
		if castsUsed < budget {
			serve = append(serve, r)
			castsUsed++
			continue
		}
		e.pending.Push(r)
	}

	doSweep := now-e.lastSweep >= sweepInterval
	if doSweep {
		e.lastSweep = now
	}
	e.mu.Unlock()

	for _, r := range expired {
		e.timeoutMetric.Add(context.Background(), 1)
		r.resolve(core.LineOfSightResult{Reason: ReasonTimedOut})
	}

	for _, r := range serve {
		r.resolve(e.GetDetails(r.From, r.To))
	}

	if doSweep {
		e.cache.sweep(now)
	}
}

// adjustBudget runs the additive-increase/multiplicative-decrease feedback
// loop against the rolling frame time. Caller must hold the lock.
func (e *Engine) adjustBudget() {
	if e.frames == nil {
		e.budget = e.cfg.MaxRaycastsPerTick
		return
	}
	ft := e.frames.RollingFrameTime()
	if ft <= 0 {
		return
	}
	if ft <= e.cfg.TargetFrameTimeSec {
		e.budget++
	} else {
		e.budget /= 2
	}
	if e.budget < e.cfg.MinRaycastsPerTick {
		e.budget = e.cfg.MinRaycastsPerTick
	}
	if e.budget > e.cfg.MaxRaycastsPerTick {
		e.budget = e.cfg.MaxRaycastsPerTick
	}
}

// performCast offsets the segment to eye height, shortens it by the end
// tolerance to avoid self-intersection at the destination, and casts.
func (e *Engine) performCast(from, to core.Position3D) core.LineOfSightResult {
	a := core.Position3D{X: from.X, Y: from.Y + e.cfg.EyeHeight, Z: from.Z}
	b := core.Position3D{X: to.X, Y: to.Y + e.cfg.EyeHeight, Z: to.Z}

	seg := b.Sub(a)
	length := seg.Length()
	if length > e.cfg.EndTolerance && length > 0 {
		b = a.Add(seg.Scale((length - e.cfg.EndTolerance) / length))
	}

	e.castsMetric.Add(context.Background(), 1)
	hit, blocked := e.ray.Cast(a, b)
	if blocked {
		point := hit.Point
		return core.LineOfSightResult{
			IsBlocked:  true,
			Distance:   hit.Distance,
			BlockPoint: &point,
			BlockerID:  hit.BlockerID,
			Reason:     fmt.Sprintf("blocked by %s", hit.BlockerID),
		}
	}

	return core.LineOfSightResult{
		IsBlocked: false,
		Distance:  from.Distance(to),
		Reason:    ReasonClear,
	}
}

package los

import (
	"fmt"
	"log/slog"
	"testing"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tacband/skirmish/internal/config"
	"github.com/tacband/skirmish/pkg/core"
)

type stubFrames struct{ ft float64 }

func (s stubFrames) RollingFrameTime() float64 { return s.ft }

func testLOSConfig() config.LOSConfig {
	return config.LOSConfig{
		CacheSize:          64,
		CacheValiditySec:   0.5,
		MinRaycastsPerTick: 2,
		MaxRaycastsPerTick: 8,
		TargetFrameTimeSec: 1.0 / 60,
		RequestTimeoutSec:  1.0,
		EyeHeight:          1.6,
		EndTolerance:       0.1,
		QuantizeStep:       0.5,
		InvalidationRadius: 2.0,
	}
}

func newTestEngine(t *testing.T, cfg config.LOSConfig, frames FrameTimer) (*Engine, *GeomRaycaster) {
	t.Helper()
	ray := NewGeomRaycaster(0)
	e, err := New(cfg, ray, frames, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	return e, ray
}

func wall(id string, x, z float64) Obstacle {
	return Obstacle{
		ID:          id,
		Center:      geom.XY{X: x, Y: z},
		HalfWidth:   0.5,
		HalfDepth:   0.5,
		Height:      3.0,
		BlocksSight: true,
	}
}

func TestGetDetailsClearAndBlocked(t *testing.T) {
	e, _ := newTestEngine(t, testLOSConfig(), nil)

	from := core.Position3D{X: 0, Z: 0}
	to := core.Position3D{X: 10, Z: 0}

	res := e.GetDetails(from, to)
	assert.False(t, res.IsBlocked)
	assert.Equal(t, ReasonClear, res.Reason)
	assert.InDelta(t, 10.0, res.Distance, 1e-9)

	e.UpsertObstacle(wall("wall-1", 5, 0))

	res = e.GetDetails(from, to)
	require.True(t, res.IsBlocked)
	assert.Equal(t, "wall-1", res.BlockerID)
	assert.Equal(t, "blocked by wall-1", res.Reason)
	require.NotNil(t, res.BlockPoint)
	assert.InDelta(t, 4.5, res.BlockPoint.X, 1e-9)
}

func TestSightPassesOverLowObstacle(t *testing.T) {
	e, _ := newTestEngine(t, testLOSConfig(), nil)

	crate := wall("crate-1", 5, 0)
	crate.Height = 0.5 // below eye height
	e.UpsertObstacle(crate)

	res := e.GetDetails(core.Position3D{X: 0, Z: 0}, core.Position3D{X: 10, Z: 0})
	assert.False(t, res.IsBlocked)
}

func TestCacheHitSkipsRaycast(t *testing.T) {
	e, ray := newTestEngine(t, testLOSConfig(), nil)

	from := core.Position3D{X: 0, Z: 0}
	to := core.Position3D{X: 10, Z: 0}

	e.GetDetails(from, to)
	e.GetDetails(from, to)
	e.GetDetails(from, to)

	assert.Equal(t, uint64(1), ray.CastCount())
	hits, misses := e.CacheStats()
	assert.Equal(t, uint64(2), hits)
	assert.Equal(t, uint64(1), misses)
}

func TestCacheExpiresAfterValidityWindow(t *testing.T) {
	e, ray := newTestEngine(t, testLOSConfig(), nil)

	from := core.Position3D{X: 0, Z: 0}
	to := core.Position3D{X: 10, Z: 0}

	e.GetDetails(from, to)
	e.Tick(1.0) // past the 0.5s validity window
	e.GetDetails(from, to)

	assert.Equal(t, uint64(2), ray.CastCount())
}

func TestObstacleUpsertInvalidatesNearbyResults(t *testing.T) {
	e, _ := newTestEngine(t, testLOSConfig(), nil)

	from := core.Position3D{X: 4, Z: 0}
	to := core.Position3D{X: 6, Z: 0}

	res := e.GetDetails(from, to)
	require.False(t, res.IsBlocked)

	// A wall appearing between the endpoints must not leave the stale
	// "clear" answer serveable.
	e.UpsertObstacle(wall("wall-1", 5, 0))

	res = e.GetDetails(from, to)
	assert.True(t, res.IsBlocked)
}

func TestObstacleRemovalInvalidatesNearbyResults(t *testing.T) {
	e, _ := newTestEngine(t, testLOSConfig(), nil)
	e.UpsertObstacle(wall("wall-1", 5, 0))

	from := core.Position3D{X: 4, Z: 0}
	to := core.Position3D{X: 6, Z: 0}
	require.True(t, e.GetDetails(from, to).IsBlocked)

	e.RemoveObstacle("wall-1")
	assert.False(t, e.GetDetails(from, to).IsBlocked)
}

func TestBudgetDefaultsToMaxWithoutFrameTimer(t *testing.T) {
	e, _ := newTestEngine(t, testLOSConfig(), nil)
	e.Tick(0.016)
	assert.Equal(t, 8, e.CurrentBudget())
}

func TestBudgetHalvesUnderFramePressure(t *testing.T) {
	e, _ := newTestEngine(t, testLOSConfig(), stubFrames{ft: 0.1})

	e.Tick(0.016)
	assert.Equal(t, 4, e.CurrentBudget())
	e.Tick(0.016)
	assert.Equal(t, 2, e.CurrentBudget())
	e.Tick(0.016)
	assert.Equal(t, 2, e.CurrentBudget(), "budget must not drop below the configured minimum")
}

func TestBudgetGrowsWithHeadroom(t *testing.T) {
	cfg := testLOSConfig()
	e, _ := newTestEngine(t, cfg, stubFrames{ft: 0.001})

	// Collapse it first by hand: enqueue nothing, just verify additive growth
	// caps at the maximum.
	for i := 0; i < 20; i++ {
		e.Tick(0.016)
	}
	assert.Equal(t, cfg.MaxRaycastsPerTick, e.CurrentBudget())
}

func TestAsyncRequestsRespectBudget(t *testing.T) {
	cfg := testLOSConfig()
	cfg.MinRaycastsPerTick = 2
	cfg.MaxRaycastsPerTick = 2
	e, ray := newTestEngine(t, cfg, nil)

	// Distinct segments so none can be served from cache.
	for i := 0; i < 5; i++ {
		from := core.Position3D{X: float64(i * 10), Z: 0}
		to := core.Position3D{X: float64(i*10) + 5, Z: 0}
		e.RequestAsync(from, to, 0, nil)
	}
	require.Equal(t, 5, e.PendingCount())

	e.Tick(0.016)
	assert.Equal(t, 3, e.PendingCount())
	assert.Equal(t, uint64(2), ray.CastCount())

	e.Tick(0.016)
	e.Tick(0.016)
	assert.Equal(t, 0, e.PendingCount())
}

func TestAsyncHighPriorityServedFirst(t *testing.T) {
	cfg := testLOSConfig()
	cfg.MinRaycastsPerTick = 1
	cfg.MaxRaycastsPerTick = 1
	e, _ := newTestEngine(t, cfg, nil)

	var served []string
	e.RequestAsync(core.Position3D{X: 0}, core.Position3D{X: 5}, 0, func(core.LineOfSightResult) {
		served = append(served, "low")
	})
	e.RequestAsync(core.Position3D{X: 10}, core.Position3D{X: 15}, 5, func(core.LineOfSightResult) {
		served = append(served, "high")
	})

	e.Tick(0.016)
	require.Equal(t, []string{"high"}, served)
	e.Tick(0.016)
	assert.Equal(t, []string{"high", "low"}, served)
}

func TestAsyncRequestTimesOut(t *testing.T) {
	cfg := testLOSConfig()
	cfg.MinRaycastsPerTick = 1
	cfg.MaxRaycastsPerTick = 1
	e, _ := newTestEngine(t, cfg, nil)

	calls := 0
	var last core.LineOfSightResult
	req := e.RequestAsync(core.Position3D{X: 0}, core.Position3D{X: 5}, 0, func(res core.LineOfSightResult) {
		calls++
		last = res
	})

	// Age the request past the deadline in one jump; it never gets cast.
	e.Tick(1.5)

	require.True(t, req.Done())
	res, ok := req.Result()
	require.True(t, ok)
	assert.Equal(t, ReasonTimedOut, res.Reason)
	assert.Equal(t, ReasonTimedOut, last.Reason)
	assert.Equal(t, 1, calls)

	// Further ticks must not re-deliver.
	e.Tick(1.5)
	assert.Equal(t, 1, calls)
}

func TestAsyncCacheHitCostsNoBudget(t *testing.T) {
	cfg := testLOSConfig()
	cfg.MinRaycastsPerTick = 1
	cfg.MaxRaycastsPerTick = 1
	e, ray := newTestEngine(t, cfg, nil)

	from := core.Position3D{X: 0, Z: 0}
	to := core.Position3D{X: 5, Z: 0}
	e.GetDetails(from, to) // warm the cache

	// Same segment queued twice plus one fresh segment: the cached pair is
	// free, the fresh one consumes the single budget slot.
	done := 0
	cb := func(core.LineOfSightResult) { done++ }
	e.RequestAsync(from, to, 0, cb)
	e.RequestAsync(from, to, 0, cb)
	e.RequestAsync(core.Position3D{X: 20}, core.Position3D{X: 25}, 0, cb)

	e.Tick(0.016)
	assert.Equal(t, 3, done)
	assert.Equal(t, uint64(2), ray.CastCount())
}

func TestCacheEvictsOldestPastMaxSize(t *testing.T) {
	cfg := testLOSConfig()
	cfg.CacheSize = 4
	e, ray := newTestEngine(t, cfg, nil)

	for i := 0; i < 6; i++ {
		from := core.Position3D{X: float64(i * 10), Z: 0}
		e.GetDetails(from, core.Position3D{X: float64(i*10) + 5, Z: 0})
	}
	require.Equal(t, uint64(6), ray.CastCount())

	// The first segment was evicted; asking again casts anew.
	e.GetDetails(core.Position3D{X: 0, Z: 0}, core.Position3D{X: 5, Z: 0})
	assert.Equal(t, uint64(7), ray.CastCount())
}

func TestCacheReputAfterStaleKeepsFreshEntry(t *testing.T) {
	c := newResultCache(0.5, 0.5, 2)
	res := core.LineOfSightResult{Reason: ReasonClear}

	c.put(core.Position3D{X: 0}, core.Position3D{X: 10}, res, 0)
	c.put(core.Position3D{X: 20}, core.Position3D{X: 30}, res, 0)

	// The first entry goes stale and is lazily dropped on lookup.
	_, ok := c.get(core.Position3D{X: 0}, core.Position3D{X: 10}, 1.0)
	require.False(t, ok)

	// Re-store it fresh, then insert a third entry to force eviction.
	c.put(core.Position3D{X: 0}, core.Position3D{X: 10}, res, 1.0)
	c.put(core.Position3D{X: 40}, core.Position3D{X: 50}, res, 1.0)

	// The oldest surviving entry is evicted, not the re-stored one.
	_, ok = c.get(core.Position3D{X: 0}, core.Position3D{X: 10}, 1.0)
	assert.True(t, ok)
	assert.Equal(t, 2, c.len())
}

func TestRaycasterNearestHitWins(t *testing.T) {
	ray := NewGeomRaycaster(0)
	for i, x := range []float64{7, 3, 5} {
		ray.Upsert(wall(fmt.Sprintf("w%d", i), x, 0))
	}

	hit, ok := ray.Cast(core.Position3D{X: 0, Y: 1, Z: 0}, core.Position3D{X: 10, Y: 1, Z: 0})
	require.True(t, ok)
	assert.Equal(t, "w1", hit.BlockerID)
	assert.InDelta(t, 2.5, hit.Distance, 1e-9)
}

func TestRaycasterIgnoresNonSightBlockers(t *testing.T) {
	ray := NewGeomRaycaster(0)
	o := wall("fence", 5, 0)
	o.BlocksSight = false
	ray.Upsert(o)

	_, ok := ray.Cast(core.Position3D{X: 0, Y: 1, Z: 0}, core.Position3D{X: 10, Y: 1, Z: 0})
	assert.False(t, ok)
}

func TestCastCoverSeesCoverOnlyObstacles(t *testing.T) {
	ray := NewGeomRaycaster(0)
	o := wall("sandbags", 5, 0)
	o.BlocksSight = false
	o.Height = 0.9
	o.CoverValue = 0.3
	ray.Upsert(o)

	from := core.Position3D{X: 0, Y: 0.5, Z: 0}
	to := core.Position3D{X: 10, Y: 0.5, Z: 0}

	_, ok := ray.Cast(from, to)
	assert.False(t, ok)

	hit, ok := ray.CastCover(from, to)
	require.True(t, ok)
	assert.Equal(t, "sandbags", hit.BlockerID)
	assert.InDelta(t, 0.3, hit.CoverValue, 1e-9)
}

package los

import (
	"math"
	"sync"
	"sync/atomic"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/tacband/skirmish/pkg/core"
)

// Obstacle is an axis-aligned box that may block sight lines or grant cover.
// The footprint lives in the XZ plane; geom.XY carries X in X and the grid Z
// axis in Y.
type Obstacle struct {
	ID          string
	Center      geom.XY
	HalfWidth   float64 // extent along world X
	HalfDepth   float64 // extent along world Z
	Height      float64 // top of the box above ground
	BlocksSight bool
	CoverValue  float64 // damage mitigation granted to units sheltering behind it
}

// Hit describes the nearest obstruction along a cast segment.
type Hit struct {
	BlockerID  string
	Point      core.Position3D
	Distance   float64
	CoverValue float64
}

// Raycaster answers obstruction queries between two world points.
type Raycaster interface {
	Cast(from, to core.Position3D) (Hit, bool)
}

// trackedObstacle pairs an obstacle with its precomputed footprint envelope,
// already expanded by the cast radius.
type trackedObstacle struct {
	o   Obstacle
	env geom.Envelope
}

// GeomRaycaster tests segments against registered obstacle footprints using
// the slab method over their envelopes. A positive radius expands every
// footprint, approximating a sphere cast.
type GeomRaycaster struct {
	mu        sync.RWMutex
	obstacles map[string]trackedObstacle
	radius    float64
	casts     atomic.Uint64
}

// NewGeomRaycaster creates an empty raycaster. sphereRadius of 0 casts a
// thin ray.
func NewGeomRaycaster(sphereRadius float64) *GeomRaycaster {
	return &GeomRaycaster{
		obstacles: make(map[string]trackedObstacle),
		radius:    sphereRadius,
	}
}

// footprint builds the radius-expanded XZ envelope for an obstacle. The
// envelope comes back empty when the obstacle carries non-finite coordinates.
func (r *GeomRaycaster) footprint(o Obstacle) geom.Envelope {
	env, err := geom.NewEnvelope([]geom.XY{
		{X: o.Center.X - o.HalfWidth - r.radius, Y: o.Center.Y - o.HalfDepth - r.radius},
		{X: o.Center.X + o.HalfWidth + r.radius, Y: o.Center.Y + o.HalfDepth + r.radius},
	})
	if err != nil {
		return geom.Envelope{}
	}
	return env
}

// Upsert registers or relocates an obstacle. When the obstacle already
// existed the previous center is returned so callers can invalidate caches
// around both positions.
func (r *GeomRaycaster) Upsert(o Obstacle) (prev geom.XY, moved bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, existed := r.obstacles[o.ID]
	r.obstacles[o.ID] = trackedObstacle{o: o, env: r.footprint(o)}
	if existed && old.o.Center != o.Center {
		return old.o.Center, true
	}
	return geom.XY{}, false
}

// Remove deletes an obstacle.
func (r *GeomRaycaster) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.obstacles, id)
}

// Get returns the obstacle with the given id.
func (r *GeomRaycaster) Get(id string) (Obstacle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.obstacles[id]
	return t.o, ok
}

// Obstacles returns a snapshot of all registered obstacles.
func (r *GeomRaycaster) Obstacles() []Obstacle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Obstacle, 0, len(r.obstacles))
	for _, t := range r.obstacles {
		out = append(out, t.o)
	}
	return out
}

// CastCount returns the total number of physics casts performed. Tests use
// this to prove cache hits never reach the raycaster.
func (r *GeomRaycaster) CastCount() uint64 {
	return r.casts.Load()
}

// Cast tests the segment from->to against every sight-blocking obstacle and
// returns the nearest hit.
func (r *GeomRaycaster) Cast(from, to core.Position3D) (Hit, bool) {
	return r.cast(from, to, func(o Obstacle) bool { return o.BlocksSight })
}

// CastCover is the cover probe variant: it also considers obstacles that
// grant cover without blocking sight, so a waist-high crate still shelters
// the unit crouched behind it.
func (r *GeomRaycaster) CastCover(from, to core.Position3D) (Hit, bool) {
	return r.cast(from, to, func(o Obstacle) bool {
		return o.BlocksSight || o.CoverValue > 0
	})
}

func (r *GeomRaycaster) cast(from, to core.Position3D, include func(Obstacle) bool) (Hit, bool) {
	r.casts.Add(1)

	a := geom.XY{X: from.X, Y: from.Z}
	b := geom.XY{X: to.X, Y: to.Z}
	segEnv, err := geom.NewEnvelope([]geom.XY{a, b})
	if err != nil {
		return Hit{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	bestT := math.Inf(1)
	var best Obstacle
	for _, tracked := range r.obstacles {
		if !include(tracked.o) {
			continue
		}
		if !tracked.env.Intersects(segEnv) {
			continue
		}
		t, ok := segmentHitT(a, b, tracked.env)
		if !ok {
			continue
		}
		// The segment may pass over a low obstacle. Interpolate the segment
		// height at the entry point and compare against the box top.
		y := from.Y + (to.Y-from.Y)*t
		if y > tracked.o.Height+r.radius {
			continue
		}
		if t < bestT {
			bestT = t
			best = tracked.o
		}
	}

	if math.IsInf(bestT, 1) {
		return Hit{}, false
	}

	point := from.Lerp(to, bestT)
	return Hit{
		BlockerID:  best.ID,
		Point:      point,
		Distance:   from.Distance(point),
		CoverValue: best.CoverValue,
	}, true
}

// segmentHitT returns the first segment parameter t in [0,1] where the line
// a->b enters the envelope footprint. The bool is false when no hit exists.
func segmentHitT(a, b geom.XY, env geom.Envelope) (float64, bool) {
	min, max, ok := env.MinMaxXYs()
	if !ok {
		return 0, false
	}

	d := b.Sub(a)
	if math.Abs(d.X) < 1e-12 && math.Abs(d.Y) < 1e-12 {
		// Degenerate segment: a point either inside the footprint or not.
		if env.Contains(a) {
			return 0, true
		}
		return 0, false
	}

	tMin := 0.0
	tMax := 1.0

	// X slab
	if math.Abs(d.X) < 1e-12 {
		if a.X < min.X || a.X > max.X {
			return 0, false
		}
	} else {
		invD := 1.0 / d.X
		t1 := (min.X - a.X) * invD
		t2 := (max.X - a.X) * invD
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tMin = math.Max(tMin, t1)
		tMax = math.Min(tMax, t2)
		if tMin > tMax {
			return 0, false
		}
	}

	// Z slab (the envelope's Y axis)
	if math.Abs(d.Y) < 1e-12 {
		if a.Y < min.Y || a.Y > max.Y {
			return 0, false
		}
	} else {
		invD := 1.0 / d.Y
		t1 := (min.Y - a.Y) * invD
		t2 := (max.Y - a.Y) * invD
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tMin = math.Max(tMin, t1)
		tMax = math.Min(tMax, t2)
		if tMin > tMax {
			return 0, false
		}
	}

	if tMax < 0 || tMin > 1 {
		return 0, false
	}

	if tMin < 0 {
		tMin = 0
	}

	return tMin, true
}

package collision

import (
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/wowee/azerite/pkg/mathx"
)

const (
	// DefaultPlayerRadius is the capsule radius used for wall queries.
	DefaultPlayerRadius = 0.5

	// WallPushCap limits how far a single instance may push the player
	// per query, keeping resolution gradual.
	WallPushCap = 0.02

	// floorRayStart is how far above the query point the downward floor
	// ray begins.
	floorRayStart = 5.0

	// floorClimbLimit bounds how far above the query point a mesh floor
	// hit may sit. Stair landings within it are reachable even past the
	// per-class step-up ceiling.
	floorClimbLimit = 3.0

	// playerHeight bounds the z band wall triangles must overlap.
	playerHeight = 2.0

	// raycastMinExtent hides shapes too small to be visible from picking.
	raycastMinExtent = 0.15
)

// Engine runs collision queries against a shape source. It is not
// safe for concurrent use; the game loop owns it.
type Engine struct {
	src    Source
	radius float32

	focusPos    mgl32.Vec3
	focusRadius float32
	hasFocus    bool

	queryCount int
	queryNanos int64

	shapeScratch []Shape
	triScratch   []uint32
}

// NewEngine creates an engine over src with the default player radius.
func NewEngine(src Source) *Engine {
	return &Engine{
		src:          src,
		radius:       DefaultPlayerRadius,
		shapeScratch: make([]Shape, 0, 32),
		triScratch:   make([]uint32, 0, 64),
	}
}

// SetPlayerRadius overrides the capsule radius for wall queries.
func (e *Engine) SetPlayerRadius(r float32) {
	if r > 0 {
		e.radius = r
	}
}

// SetFocus restricts all queries to instances whose world bounds lie
// within radius of worldPos, until cleared. A non-positive radius
// clears the focus.
func (e *Engine) SetFocus(worldPos mgl32.Vec3, radius float32) {
	e.focusPos = worldPos
	e.focusRadius = radius
	e.hasFocus = radius > 0
}

// ClearFocus lifts the focus restriction.
func (e *Engine) ClearFocus() {
	e.hasFocus = false
}

// ResetQueryStats zeroes the per-frame query counters.
func (e *Engine) ResetQueryStats() {
	e.queryCount = 0
	e.queryNanos = 0
}

// QueryTimeMs returns the time spent in queries since the last reset.
func (e *Engine) QueryTimeMs() float64 {
	return float64(e.queryNanos) / 1e6
}

// QueryCallCount returns the number of queries since the last reset.
func (e *Engine) QueryCallCount() int {
	return e.queryCount
}

func (e *Engine) begin() time.Time {
	e.queryCount++
	return time.Now()
}

func (e *Engine) end(start time.Time) {
	e.queryNanos += time.Since(start).Nanoseconds()
}

func (e *Engine) skip(s *Shape) bool {
	if !e.hasFocus {
		return false
	}
	// Distance from the focus point to the nearest point of the box.
	var dsq float32
	for i := 0; i < 3; i++ {
		v := e.focusPos[i]
		if v < s.World.Min[i] {
			d := s.World.Min[i] - v
			dsq += d * d
		} else if v > s.World.Max[i] {
			d := v - s.World.Max[i]
			dsq += d * d
		}
	}
	return dsq > e.focusRadius*e.focusRadius
}

// FloorHeight returns the highest walkable surface under (or slightly
// above) pos among nearby instances. The second result reports whether
// any floor was found.
func (e *Engine) FloorHeight(pos mgl32.Vec3) (float32, bool) {
	h, _, ok := e.FloorSurface(pos)
	return h, ok
}

// FloorSurface is FloorHeight with the surface normal's world z of the
// winning surface. Analytic profiles and box tops report 1.
func (e *Engine) FloorSurface(pos mgl32.Vec3) (float32, float32, bool) {
	start := e.begin()
	defer e.end(start)

	e.shapeScratch = e.src.CollectShapes(
		pos.X()-e.radius, pos.Y()-e.radius,
		pos.X()+e.radius, pos.Y()+e.radius,
		e.shapeScratch[:0])

	best := float32(math.Inf(-1))
	bestNz := float32(1)
	found := false

	consider := func(h, nz float32) {
		if h > best {
			best = h
			bestNz = nz
			found = true
		}
	}

	for i := range e.shapeScratch {
		s := &e.shapeScratch[i]
		if e.skip(s) || !s.Class.Blocks() {
			continue
		}

		// Mesh hits may sit past the step-up ceiling: stair and ramp
		// geometry is climbed triangle by triangle.
		if s.Mesh.Valid() {
			if h, nz, ok := e.meshFloor(s, pos); ok && h <= pos.Z()+floorClimbLimit {
				consider(h, nz)
			}
		}

		// The effective top covers flat roofs and the terraced props
		// whose collision geometry does not model their steps.
		if h, ok := effectiveTop(s, pos); ok && h <= pos.Z()+s.Class.StepUpCeiling() {
			consider(h, 1)
		}
	}

	return best, bestNz, found
}

// effectiveTop is the per-classification profile over the shape's
// bounds: terraces for fountains and low platforms, the flat top for
// everything else.
func effectiveTop(s *Shape, pos mgl32.Vec3) (float32, bool) {
	if s.Class.SteppedFountain {
		return steppedFountainFloor(s, pos)
	}
	if s.Class.SteppedLowPlatform {
		return lowPlatformFloor(s, pos)
	}
	if pos.X() < s.World.Min.X() || pos.X() > s.World.Max.X() ||
		pos.Y() < s.World.Min.Y() || pos.Y() > s.World.Max.Y() {
		return 0, false
	}
	return s.World.Max.Z(), true
}

func (e *Engine) meshFloor(s *Shape, pos mgl32.Vec3) (float32, float32, bool) {
	local := s.toLocal(pos)
	lr := s.localRadius(e.radius)

	e.triScratch = s.Mesh.FloorTrisInRange(
		local.X()-lr, local.Y()-lr,
		local.X()+lr, local.Y()+lr,
		e.triScratch[:0])
	if len(e.triScratch) == 0 {
		return 0, 0, false
	}

	origin := mgl32.Vec3{local.X(), local.Y(), local.Z() + s.localRadius(floorRayStart)}
	down := mgl32.Vec3{0, 0, -1}
	maxDist := s.localRadius(floorRayStart) + s.Local.Size().Z() + 1

	bestDist := float32(math.Inf(1))
	bestNz := float32(1)
	for _, tri := range e.triScratch {
		a, b, c := s.Mesh.Triangle(int(tri))
		if d, ok := mathx.RayTriangle(origin, down, a, b, c, maxDist); ok && d < bestDist {
			bestDist = d
			bestNz = worldNormalZ(s, a, b, c)
		}
	}
	if math.IsInf(float64(bestDist), 1) {
		return 0, 0, false
	}

	hit := mgl32.Vec3{origin.X(), origin.Y(), origin.Z() - bestDist}
	return s.toWorld(hit).Z(), bestNz, true
}

func worldNormalZ(s *Shape, a, b, c mgl32.Vec3) float32 {
	n := mathx.TriangleNormal(a, b, c)
	wn := s.Model.Mul4x1(n.Vec4(0)).Vec3()
	l := wn.Len()
	if l < 1e-6 {
		return 1
	}
	nz := wn.Z() / l
	if nz < 0 {
		nz = -nz
	}
	return nz
}

// steppedFountainFloor maps radial distance from the fountain center to
// one of its terrace heights.
func steppedFountainFloor(s *Shape, pos mgl32.Vec3) (float32, bool) {
	c := s.World.Center()
	half := s.World.HalfSize()
	if half.X() <= 0 || half.Y() <= 0 {
		return 0, false
	}

	dx := (pos.X() - c.X()) / half.X()
	dy := (pos.Y() - c.Y()) / half.Y()
	r := float32(math.Sqrt(float64(dx*dx + dy*dy)))
	if r > 1 {
		return 0, false
	}

	var frac float32
	switch {
	case r > 0.85:
		frac = 0.18
	case r > 0.65:
		frac = 0.36
	case r > 0.45:
		frac = 0.54
	case r > 0.28:
		frac = 0.70
	case r > 0.14:
		frac = 0.84
	default:
		frac = 0.96
	}

	height := s.World.Max.Z() - s.World.Min.Z()
	return s.World.Min.Z() + frac*height, true
}

// lowPlatformFloor models wide flat platforms as a shallow pyramid so
// the player walks up over the rim instead of hitting a wall.
func lowPlatformFloor(s *Shape, pos mgl32.Vec3) (float32, bool) {
	c := s.World.Center()
	half := s.World.HalfSize()
	if half.X() <= 0 || half.Y() <= 0 {
		return 0, false
	}

	dx := float32(math.Abs(float64((pos.X() - c.X()) / half.X())))
	dy := float32(math.Abs(float64((pos.Y() - c.Y()) / half.Y())))
	u := dx
	if dy > u {
		u = dy
	}
	if u > 1 {
		return 0, false
	}

	var frac float32
	switch {
	case u > 0.92:
		frac = 0.06
	case u > 0.72:
		frac = 0.30
	default:
		frac = 0.62
	}

	height := s.World.Max.Z() - s.World.Min.Z()
	return s.World.Min.Z() + frac*height, true
}

// WallPush resolves a movement from one position to another against
// nearby walls and returns the adjusted destination.
func (e *Engine) WallPush(from, to mgl32.Vec3) mgl32.Vec3 {
	if from == to {
		return to
	}

	start := e.begin()
	defer e.end(start)

	reach := e.radius + 1
	e.shapeScratch = e.src.CollectShapes(
		to.X()-reach, to.Y()-reach,
		to.X()+reach, to.Y()+reach,
		e.shapeScratch[:0])

	result := to
	for i := range e.shapeScratch {
		s := &e.shapeScratch[i]
		if e.skip(s) || !s.Class.Blocks() {
			continue
		}
		// Low platforms are entered by stepping up, never by sliding.
		if s.Class.SteppedLowPlatform || s.Class.SteppedFountain {
			continue
		}

		if s.Mesh.Valid() {
			result = e.meshWallPush(s, result)
		} else {
			result = e.boxWallPush(s, from, result)
		}
	}
	return result
}

func (e *Engine) meshWallPush(s *Shape, pos mgl32.Vec3) mgl32.Vec3 {
	local := s.toLocal(pos)
	lr := s.localRadius(e.radius)
	lcap := s.localRadius(WallPushCap)

	e.triScratch = s.Mesh.WallTrisInRange(
		local.X()-lr-0.5, local.Y()-lr-0.5,
		local.X()+lr+0.5, local.Y()+lr+0.5,
		e.triScratch[:0])

	zLo := local.Z() + 0.3
	zHi := local.Z() + s.localRadius(playerHeight)

	var push mgl32.Vec3
	for _, tri := range e.triScratch {
		if s.Mesh.TriMaxZ[tri] < zLo || s.Mesh.TriMinZ[tri] > zHi {
			continue
		}
		a, b, c := s.Mesh.Triangle(int(tri))
		closest := mathx.ClosestPointOnTriangle(local, a, b, c)

		delta := mgl32.Vec3{local.X() - closest.X(), local.Y() - closest.Y(), 0}
		dist := delta.Len()
		if dist >= lr || dist < 1e-6 {
			continue
		}

		amount := lr - dist
		if amount > lcap {
			amount = lcap
		}
		p := delta.Mul(amount / dist)
		if p.Len() > push.Len() {
			push = p
		}
	}

	if push == (mgl32.Vec3{}) {
		return pos
	}
	return s.toWorld(local.Add(push))
}

func (e *Engine) boxWallPush(s *Shape, from, pos mgl32.Vec3) mgl32.Vec3 {
	box := s.World
	inside := func(p mgl32.Vec3) bool {
		return p.X() > box.Min.X()-e.radius && p.X() < box.Max.X()+e.radius &&
			p.Y() > box.Min.Y()-e.radius && p.Y() < box.Max.Y()+e.radius
	}

	// A top the player can step onto from their current feet height is
	// a floor, not a wall.
	if box.Max.Z()-from.Z() <= s.Class.StepUpCeiling() {
		return pos
	}
	if pos.Z() > box.Max.Z()-0.1 || pos.Z()+playerHeight < box.Min.Z() {
		return pos
	}
	if !inside(pos) {
		return pos
	}
	// Already overlapping at the start point: let the player walk out
	// instead of trapping them.
	if inside(from) {
		return pos
	}

	// Block the entry, then nudge laterally away from the box center so
	// repeated frames slide the player off the face.
	c := box.Center()
	away := mgl32.Vec3{from.X() - c.X(), from.Y() - c.Y(), 0}
	if l := away.Len(); l > 1e-6 {
		away = away.Mul(WallPushCap / l)
	} else {
		away = mgl32.Vec3{}
	}
	return mgl32.Vec3{from.X() + away.X(), from.Y() + away.Y(), pos.Z()}
}

// Raycast finds the nearest instance whose bounds the ray hits within
// maxDist. Shapes too small to be visible are ignored.
func (e *Engine) Raycast(origin, dir mgl32.Vec3, maxDist float32) (uint32, float32, bool) {
	start := e.begin()
	defer e.end(start)

	end := origin.Add(dir.Mul(maxDist))
	minX, maxX := minmax(origin.X(), end.X())
	minY, maxY := minmax(origin.Y(), end.Y())
	e.shapeScratch = e.src.CollectShapes(minX, minY, maxX, maxY, e.shapeScratch[:0])

	bestID := uint32(0)
	bestDist := float32(math.Inf(1))
	hit := false

	for i := range e.shapeScratch {
		s := &e.shapeScratch[i]
		if e.skip(s) || !pickable(s) {
			continue
		}
		// World box first as broadphase, then the tight local box in
		// model space so rotated props do not report inflated hits.
		if _, ok := mathx.RayAABB(origin, dir, s.World, maxDist); !ok {
			continue
		}
		lo := s.toLocal(origin)
		ld := s.Inv.Mul4x1(dir.Vec4(0)).Vec3()
		scale := ld.Len()
		if scale < 1e-6 {
			continue
		}
		d, ok := mathx.RayAABB(lo, ld.Mul(1/scale), s.Local, maxDist*scale)
		if !ok {
			continue
		}
		if wd := d / scale; wd < bestDist {
			bestID = s.ID
			bestDist = wd
			hit = true
		}
	}
	return bestID, bestDist, hit
}

func pickable(s *Shape) bool {
	if s.Class.InvisibleTrap || s.Class.SpellEffect || s.Class.Smoke {
		return false
	}
	sz := s.World.Size()
	m := sz.X()
	if sz.Y() > m {
		m = sz.Y()
	}
	if sz.Z() > m {
		m = sz.Z()
	}
	return m >= raycastMinExtent
}

func minmax(a, b float32) (float32, float32) {
	if a < b {
		return a, b
	}
	return b, a
}

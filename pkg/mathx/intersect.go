package mathx

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// RayAABB performs a slab test of a ray against a box. It returns the
// entry distance along the ray and whether the ray hits within maxDist.
// A ray starting inside the box hits at distance 0.
func RayAABB(origin, dir mgl32.Vec3, box AABB, maxDist float32) (float32, bool) {
	tMin := float32(0)
	tMax := maxDist

	for axis := 0; axis < 3; axis++ {
		o := origin[axis]
		d := dir[axis]
		lo := box.Min[axis]
		hi := box.Max[axis]

		if absf(d) < 1e-8 {
			if o < lo || o > hi {
				return 0, false
			}
			continue
		}

		inv := 1 / d
		t1 := (lo - o) * inv
		t2 := (hi - o) * inv
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		if t1 > tMin {
			tMin = t1
		}
		if t2 < tMax {
			tMax = t2
		}
		if tMin > tMax {
			return 0, false
		}
	}

	return tMin, true
}

// RayTriangle intersects a ray with a triangle using Moller-Trumbore.
// Both winding orders hit. Returns the distance along the ray.
func RayTriangle(origin, dir, v0, v1, v2 mgl32.Vec3, maxDist float32) (float32, bool) {
	const eps = 1e-7

	edge1 := v1.Sub(v0)
	edge2 := v2.Sub(v0)
	h := dir.Cross(edge2)
	a := edge1.Dot(h)
	if absf(a) < eps {
		return 0, false // parallel
	}

	f := 1 / a
	s := origin.Sub(v0)
	u := f * s.Dot(h)
	if u < 0 || u > 1 {
		return 0, false
	}

	q := s.Cross(edge1)
	v := f * dir.Dot(q)
	if v < 0 || u+v > 1 {
		return 0, false
	}

	t := f * edge2.Dot(q)
	if t < eps || t > maxDist {
		return 0, false
	}
	return t, true
}

// ClosestPointOnTriangle returns the point on triangle (a, b, c) nearest
// to p. Standard Voronoi-region walk, see Ericson's real-time collision
// detection treatment.
func ClosestPointOnTriangle(p, a, b, c mgl32.Vec3) mgl32.Vec3 {
	ab := b.Sub(a)
	ac := c.Sub(a)
	ap := p.Sub(a)

	d1 := ab.Dot(ap)
	d2 := ac.Dot(ap)
	if d1 <= 0 && d2 <= 0 {
		return a
	}

	bp := p.Sub(b)
	d3 := ab.Dot(bp)
	d4 := ac.Dot(bp)
	if d3 >= 0 && d4 <= d3 {
		return b
	}

	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		v := d1 / (d1 - d3)
		return a.Add(ab.Mul(v))
	}

	cp := p.Sub(c)
	d5 := ab.Dot(cp)
	d6 := ac.Dot(cp)
	if d6 >= 0 && d5 <= d6 {
		return c
	}

	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		w := d2 / (d2 - d6)
		return a.Add(ac.Mul(w))
	}

	va := d3*d6 - d5*d4
	if va <= 0 && (d4-d3) >= 0 && (d5-d6) >= 0 {
		w := (d4 - d3) / ((d4 - d3) + (d5 - d6))
		return b.Add(c.Sub(b).Mul(w))
	}

	denom := 1 / (va + vb + vc)
	v := vb * denom
	w := vc * denom
	return a.Add(ab.Mul(v)).Add(ac.Mul(w))
}

// TriangleNormal returns the unnormalized face normal of (a, b, c).
func TriangleNormal(a, b, c mgl32.Vec3) mgl32.Vec3 {
	return b.Sub(a).Cross(c.Sub(a))
}

func absf(v float32) float32 {
	return float32(math.Abs(float64(v)))
}

package mathx

import "github.com/go-gl/mathgl/mgl32"

// Plane represents a plane with the equation Ax + By + Cz + D = 0,
// where (A, B, C) is the normal and D the distance term.
type Plane struct {
	Normal mgl32.Vec3
	D      float32
}

// Normalize scales the plane equation so the normal has unit length.
func (p *Plane) Normalize() {
	l := p.Normal.Len()
	if l == 0 {
		return
	}
	p.Normal = p.Normal.Mul(1 / l)
	p.D /= l
}

// DistanceToPoint returns the signed distance from the plane to a point.
// Positive means the point is on the normal side.
func (p Plane) DistanceToPoint(point mgl32.Vec3) float32 {
	return p.Normal.Dot(point) + p.D
}

// Frustum holds the 6 planes of a view frustum with inward normals.
// Planes are ordered: Left, Right, Bottom, Top, Near, Far.
type Frustum struct {
	Planes [6]Plane
}

const (
	FrustumLeft = iota
	FrustumRight
	FrustumBottom
	FrustumTop
	FrustumNear
	FrustumFar
)

// FrustumFromMatrix extracts frustum planes from a view-projection matrix
// using the Gribb/Hartmann method. mgl32 matrices are column-major, so
// row i element j sits at m[i + j*4].
func FrustumFromMatrix(m mgl32.Mat4) Frustum {
	var f Frustum

	// Left: row3 + row0
	f.Planes[FrustumLeft] = Plane{
		Normal: mgl32.Vec3{m[3] + m[0], m[7] + m[4], m[11] + m[8]},
		D:      m[15] + m[12],
	}
	// Right: row3 - row0
	f.Planes[FrustumRight] = Plane{
		Normal: mgl32.Vec3{m[3] - m[0], m[7] - m[4], m[11] - m[8]},
		D:      m[15] - m[12],
	}
	// Bottom: row3 + row1
	f.Planes[FrustumBottom] = Plane{
		Normal: mgl32.Vec3{m[3] + m[1], m[7] + m[5], m[11] + m[9]},
		D:      m[15] + m[13],
	}
	// Top: row3 - row1
	f.Planes[FrustumTop] = Plane{
		Normal: mgl32.Vec3{m[3] - m[1], m[7] - m[5], m[11] - m[9]},
		D:      m[15] - m[13],
	}
	// Near: row3 + row2
	f.Planes[FrustumNear] = Plane{
		Normal: mgl32.Vec3{m[3] + m[2], m[7] + m[6], m[11] + m[10]},
		D:      m[15] + m[14],
	}
	// Far: row3 - row2
	f.Planes[FrustumFar] = Plane{
		Normal: mgl32.Vec3{m[3] - m[2], m[7] - m[6], m[11] - m[10]},
		D:      m[15] - m[14],
	}

	for i := range f.Planes {
		f.Planes[i].Normalize()
	}

	return f
}

// IntersectsSphere reports whether a sphere touches the frustum.
func (f Frustum) IntersectsSphere(center mgl32.Vec3, radius float32) bool {
	for i := range f.Planes {
		if f.Planes[i].DistanceToPoint(center) < -radius {
			return false
		}
	}
	return true
}

// IntersectsAABB reports whether any part of the box is inside the
// frustum, using the positive-vertex test per plane.
func (f Frustum) IntersectsAABB(box AABB) bool {
	for i := range f.Planes {
		plane := f.Planes[i]

		pVertex := mgl32.Vec3{
			pick(plane.Normal.X() >= 0, box.Max.X(), box.Min.X()),
			pick(plane.Normal.Y() >= 0, box.Max.Y(), box.Min.Y()),
			pick(plane.Normal.Z() >= 0, box.Max.Z(), box.Min.Z()),
		}

		if plane.DistanceToPoint(pVertex) < 0 {
			return false
		}
	}
	return true
}

// ContainsPoint reports whether p is inside the frustum.
func (f Frustum) ContainsPoint(p mgl32.Vec3) bool {
	for i := range f.Planes {
		if f.Planes[i].DistanceToPoint(p) < 0 {
			return false
		}
	}
	return true
}

func pick(cond bool, a, b float32) float32 {
	if cond {
		return a
	}
	return b
}

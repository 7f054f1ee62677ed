// Package mathx provides geometry helpers for culling and collision
// built on top of mgl32.
package mathx

import "github.com/go-gl/mathgl/mgl32"

// AABB is an axis-aligned bounding box.
type AABB struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// NewAABB creates an AABB from min and max points.
func NewAABB(min, max mgl32.Vec3) AABB {
	return AABB{Min: min, Max: max}
}

// Center returns the center of the box.
func (b AABB) Center() mgl32.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Size returns the dimensions of the box.
func (b AABB) Size() mgl32.Vec3 {
	return b.Max.Sub(b.Min)
}

// HalfSize returns the extents from the center.
func (b AABB) HalfSize() mgl32.Vec3 {
	return b.Size().Mul(0.5)
}

// Radius returns the radius of the bounding sphere around the box.
func (b AABB) Radius() float32 {
	return b.HalfSize().Len()
}

// ContainsPoint reports whether p is inside the box.
func (b AABB) ContainsPoint(p mgl32.Vec3) bool {
	return p.X() >= b.Min.X() && p.X() <= b.Max.X() &&
		p.Y() >= b.Min.Y() && p.Y() <= b.Max.Y() &&
		p.Z() >= b.Min.Z() && p.Z() <= b.Max.Z()
}

// Intersects reports whether the two boxes overlap.
func (b AABB) Intersects(o AABB) bool {
	return b.Min.X() <= o.Max.X() && b.Max.X() >= o.Min.X() &&
		b.Min.Y() <= o.Max.Y() && b.Max.Y() >= o.Min.Y() &&
		b.Min.Z() <= o.Max.Z() && b.Max.Z() >= o.Min.Z()
}

// Extend grows the box to include p.
func (b *AABB) Extend(p mgl32.Vec3) {
	b.Min = mgl32.Vec3{
		min32(b.Min.X(), p.X()),
		min32(b.Min.Y(), p.Y()),
		min32(b.Min.Z(), p.Z()),
	}
	b.Max = mgl32.Vec3{
		max32(b.Max.X(), p.X()),
		max32(b.Max.Y(), p.Y()),
		max32(b.Max.Z(), p.Z()),
	}
}

// Transform returns an AABB bounding all 8 corners of b after applying m.
func (b AABB) Transform(m mgl32.Mat4) AABB {
	corners := [8]mgl32.Vec3{
		{b.Min.X(), b.Min.Y(), b.Min.Z()},
		{b.Max.X(), b.Min.Y(), b.Min.Z()},
		{b.Min.X(), b.Max.Y(), b.Min.Z()},
		{b.Max.X(), b.Max.Y(), b.Min.Z()},
		{b.Min.X(), b.Min.Y(), b.Max.Z()},
		{b.Max.X(), b.Min.Y(), b.Max.Z()},
		{b.Min.X(), b.Max.Y(), b.Max.Z()},
		{b.Max.X(), b.Max.Y(), b.Max.Z()},
	}

	first := m.Mul4x1(corners[0].Vec4(1)).Vec3()
	out := AABB{Min: first, Max: first}
	for i := 1; i < 8; i++ {
		out.Extend(m.Mul4x1(corners[i].Vec4(1)).Vec3())
	}
	return out
}

func min32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

package mathx

import "github.com/go-gl/mathgl/mgl32"

// ModelMatrix composes a placement matrix from position, XYZ Euler
// rotation in radians, and uniform scale. Rotations apply X then Y
// then Z, matching placement data conventions.
func ModelMatrix(pos, rot mgl32.Vec3, scale float32) mgl32.Mat4 {
	m := mgl32.Translate3D(pos.X(), pos.Y(), pos.Z())
	m = m.Mul4(mgl32.HomogRotate3DX(rot.X()))
	m = m.Mul4(mgl32.HomogRotate3DY(rot.Y()))
	m = m.Mul4(mgl32.HomogRotate3DZ(rot.Z()))
	m = m.Mul4(mgl32.Scale3D(scale, scale, scale))
	return m
}

// Clamp01 clamps v to [0, 1].
func Clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Mix linearly interpolates between a and b with t clamped to [0, 1].
func Mix(a, b mgl32.Vec3, t float32) mgl32.Vec3 {
	t = Clamp01(t)
	return a.Mul(1 - t).Add(b.Mul(t))
}

package anim

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Bone is one joint of a skeleton. Parents are listed before children,
// so a single forward pass composes the hierarchy.
type Bone struct {
	Parent      int16
	Pivot       mgl32.Vec3
	KeyBone     int16
	Translation Vec3Track
	Rotation    QuatTrack
	Scale       Vec3Track
}

// minScale guards against degenerate keyframes collapsing a bone.
const minScale = 1e-3

// ComputeBoneMatrices fills out with the world-space bone matrices for
// the given sequence and time. out must have at least len(bones)
// entries. The pivot bracket absorbs the bind pose: a bone with no
// keyed tracks yields the identity matrix.
func ComputeBoneMatrices(bones []Bone, seq int, timeMs uint32, globalDurations []uint32, out []mgl32.Mat4) {
	for i := range bones {
		b := &bones[i]

		trans := b.Translation.Evaluate(seq, timeMs, globalDurations, mgl32.Vec3{})
		rot := b.Rotation.Evaluate(seq, timeMs, globalDurations)
		scale := b.Scale.Evaluate(seq, timeMs, globalDurations, mgl32.Vec3{1, 1, 1})

		sx := clampScale(scale.X())
		sy := clampScale(scale.Y())
		sz := clampScale(scale.Z())

		// T(pivot) * T(trans) * R(rot) * S(scale) * T(-pivot)
		local := mgl32.Translate3D(b.Pivot.X()+trans.X(), b.Pivot.Y()+trans.Y(), b.Pivot.Z()+trans.Z())
		local = local.Mul4(rot.Mat4())
		local = local.Mul4(mgl32.Scale3D(sx, sy, sz))
		local = local.Mul4(mgl32.Translate3D(-b.Pivot.X(), -b.Pivot.Y(), -b.Pivot.Z()))

		if b.Parent >= 0 && int(b.Parent) < i {
			out[i] = out[b.Parent].Mul4(local)
		} else {
			out[i] = local
		}
	}
}

func clampScale(v float32) float32 {
	if v < minScale {
		return 1
	}
	return v
}

// WrapTime maps an elapsed animation time into a sequence's duration.
// Looping sequences wrap; one-shot sequences clamp to the end.
func WrapTime(timeMs float64, durationMs float64, loop bool) float64 {
	if durationMs <= 0 {
		return 0
	}
	if timeMs < durationMs {
		return timeMs
	}
	if loop {
		return math.Mod(timeMs, durationMs)
	}
	return durationMs
}

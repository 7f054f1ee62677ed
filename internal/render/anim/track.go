// Package anim evaluates keyframed bone tracks and composes
// hierarchical bone matrices for skinning.
package anim

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
)

// Vec3Keys is one sub-sequence of a vec3 track: aligned timestamps and
// values for a single animation sequence.
type Vec3Keys struct {
	Times  []uint32
	Values []mgl32.Vec3
}

// QuatKeys is one sub-sequence of a quaternion track.
type QuatKeys struct {
	Times  []uint32
	Values []mgl32.Quat
}

// Vec3Track holds one sub-sequence per animation sequence, or a single
// sub-sequence cycling on a global timeline when GlobalSeq >= 0.
type Vec3Track struct {
	GlobalSeq int16
	Keys      []Vec3Keys
}

// QuatTrack is the quaternion counterpart of Vec3Track.
type QuatTrack struct {
	GlobalSeq int16
	Keys      []QuatKeys
}

// bracket finds the keyframe pair surrounding t. It returns the lower
// index and the normalized fraction between the two keys, clamped to
// [0, 1]. t at or before the first key returns index 0 with fraction 0;
// t at or past the last key returns the last pair saturated at 1.
func bracket(times []uint32, t uint32) (int, float32) {
	n := len(times)
	if n < 2 || t <= times[0] {
		return 0, 0
	}
	if t >= times[n-1] {
		return n - 2, 1
	}

	// Largest i with times[i] <= t.
	i := sort.Search(n, func(k int) bool { return times[k] > t }) - 1

	span := times[i+1] - times[i]
	if span == 0 {
		return i, 0
	}
	frac := float32(t-times[i]) / float32(span)
	if frac < 0 {
		frac = 0
	} else if frac > 1 {
		frac = 1
	}
	return i, frac
}

// resolve maps (seq, timeMs) to the effective sub-sequence and time. A
// global-bound track always uses sub-sequence 0 with time wrapped to
// the global duration.
func resolve(globalSeq int16, seq int, timeMs uint32, globalDurations []uint32) (int, uint32, bool) {
	if globalSeq >= 0 {
		if int(globalSeq) >= len(globalDurations) {
			return 0, 0, false
		}
		dur := globalDurations[globalSeq]
		if dur > 0 {
			timeMs %= dur
		} else {
			timeMs = 0
		}
		return 0, timeMs, true
	}
	return seq, timeMs, true
}

// Evaluate returns the track value at (seq, timeMs), or def when the
// track holds no keys for the sequence.
func (tr *Vec3Track) Evaluate(seq int, timeMs uint32, globalDurations []uint32, def mgl32.Vec3) mgl32.Vec3 {
	seq, timeMs, ok := resolve(tr.GlobalSeq, seq, timeMs, globalDurations)
	if !ok || seq < 0 || seq >= len(tr.Keys) {
		return def
	}

	keys := tr.Keys[seq]
	switch len(keys.Times) {
	case 0:
		return def
	case 1:
		return sanitizeVec3(keys.Values[0], def)
	}

	i, frac := bracket(keys.Times, timeMs)
	a := sanitizeVec3(keys.Values[i], def)
	b := sanitizeVec3(keys.Values[i+1], def)
	return mgl32.Vec3{
		a.X() + (b.X()-a.X())*frac,
		a.Y() + (b.Y()-a.Y())*frac,
		a.Z() + (b.Z()-a.Z())*frac,
	}
}

// Evaluate returns the interpolated rotation at (seq, timeMs), falling
// back to the identity quaternion.
func (tr *QuatTrack) Evaluate(seq int, timeMs uint32, globalDurations []uint32) mgl32.Quat {
	ident := mgl32.QuatIdent()

	seq, timeMs, ok := resolve(tr.GlobalSeq, seq, timeMs, globalDurations)
	if !ok || seq < 0 || seq >= len(tr.Keys) {
		return ident
	}

	keys := tr.Keys[seq]
	switch len(keys.Times) {
	case 0:
		return ident
	case 1:
		return sanitizeQuat(keys.Values[0])
	}

	i, frac := bracket(keys.Times, timeMs)
	a := sanitizeQuat(keys.Values[i])
	b := sanitizeQuat(keys.Values[i+1])
	return mgl32.QuatSlerp(a, b, frac)
}

// sanitizeVec3 replaces NaN components with the default value.
func sanitizeVec3(v, def mgl32.Vec3) mgl32.Vec3 {
	if isNaN(v.X()) || isNaN(v.Y()) || isNaN(v.Z()) {
		return def
	}
	return v
}

// sanitizeQuat maps NaN or near-zero quaternions to identity and
// normalizes the rest.
func sanitizeQuat(q mgl32.Quat) mgl32.Quat {
	if isNaN(q.W) || isNaN(q.X()) || isNaN(q.Y()) || isNaN(q.Z()) {
		return mgl32.QuatIdent()
	}
	if q.Len() < 0.001 {
		return mgl32.QuatIdent()
	}
	return q.Normalize()
}

func isNaN(v float32) bool {
	return math.IsNaN(float64(v))
}

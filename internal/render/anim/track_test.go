package anim

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestBracketBoundaries(t *testing.T) {
	times := []uint32{0, 500, 1000}

	tests := []struct {
		name     string
		t        uint32
		wantIdx  int
		wantFrac float32
	}{
		{"at first key", 0, 0, 0},
		{"mid first span", 250, 0, 0.5},
		{"at middle key", 500, 1, 0},
		{"mid second span", 750, 1, 0.5},
		{"at last key", 1000, 1, 1},
		{"past the end", 2000, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, frac := bracket(times, tt.t)
			if idx != tt.wantIdx {
				t.Errorf("index = %d, want %d", idx, tt.wantIdx)
			}
			if diff := frac - tt.wantFrac; diff > 1e-5 || diff < -1e-5 {
				t.Errorf("frac = %v, want %v", frac, tt.wantFrac)
			}
		})
	}
}

func TestVec3TrackInterpolation(t *testing.T) {
	// A single bone translating from origin to (10,0,0) over one second.
	tr := Vec3Track{
		GlobalSeq: -1,
		Keys: []Vec3Keys{{
			Times:  []uint32{0, 1000},
			Values: []mgl32.Vec3{{0, 0, 0}, {10, 0, 0}},
		}},
	}

	got := tr.Evaluate(0, 500, nil, mgl32.Vec3{})
	if !approxVec3(got, mgl32.Vec3{5, 0, 0}) {
		t.Errorf("at 500ms = %v, want (5,0,0)", got)
	}

	// A looping sequence wraps its elapsed time before evaluation.
	wrapped := uint32(WrapTime(1500, 1000, true))
	got = tr.Evaluate(0, wrapped, nil, mgl32.Vec3{})
	if !approxVec3(got, mgl32.Vec3{5, 0, 0}) {
		t.Errorf("at wrapped 1500ms = %v, want (5,0,0)", got)
	}
}

func TestVec3TrackDefaults(t *testing.T) {
	def := mgl32.Vec3{1, 2, 3}

	empty := Vec3Track{GlobalSeq: -1}
	if got := empty.Evaluate(0, 100, nil, def); !approxVec3(got, def) {
		t.Errorf("empty track = %v, want default", got)
	}

	// Sequence index beyond the track's sub-sequences.
	short := Vec3Track{GlobalSeq: -1, Keys: []Vec3Keys{{}}}
	if got := short.Evaluate(5, 100, nil, def); !approxVec3(got, def) {
		t.Errorf("out-of-range sequence = %v, want default", got)
	}

	// NaN single key falls back to the default.
	nan := float32(math.NaN())
	bad := Vec3Track{GlobalSeq: -1, Keys: []Vec3Keys{{
		Times:  []uint32{0},
		Values: []mgl32.Vec3{{nan, 0, 0}},
	}}}
	if got := bad.Evaluate(0, 0, nil, def); !approxVec3(got, def) {
		t.Errorf("NaN key = %v, want default", got)
	}
}

func TestQuatTrackSanitize(t *testing.T) {
	// Near-zero quaternion becomes identity.
	tiny := QuatTrack{GlobalSeq: -1, Keys: []QuatKeys{{
		Times:  []uint32{0},
		Values: []mgl32.Quat{{W: 0.0001, V: mgl32.Vec3{0, 0, 0.0001}}},
	}}}
	got := tiny.Evaluate(0, 0, nil)
	if !approxQuat(got, mgl32.QuatIdent()) {
		t.Errorf("near-zero quat = %v, want identity", got)
	}

	// Empty track is identity.
	empty := QuatTrack{GlobalSeq: -1}
	if got := empty.Evaluate(0, 0, nil); !approxQuat(got, mgl32.QuatIdent()) {
		t.Errorf("empty quat track = %v, want identity", got)
	}
}

func TestQuatTrackSlerp(t *testing.T) {
	q0 := mgl32.QuatIdent()
	q1 := mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 0, 1})

	tr := QuatTrack{GlobalSeq: -1, Keys: []QuatKeys{{
		Times:  []uint32{0, 1000},
		Values: []mgl32.Quat{q0, q1},
	}}}

	got := tr.Evaluate(0, 500, nil)
	want := mgl32.QuatRotate(mgl32.DegToRad(45), mgl32.Vec3{0, 0, 1})
	if !approxQuat(got, want) {
		t.Errorf("slerp midpoint = %v, want %v", got, want)
	}
}

func TestGlobalSequenceTrack(t *testing.T) {
	// Global-bound track cycles at its own duration regardless of the
	// sequence index passed in.
	tr := Vec3Track{
		GlobalSeq: 0,
		Keys: []Vec3Keys{{
			Times:  []uint32{0, 2000},
			Values: []mgl32.Vec3{{0, 0, 0}, {4, 0, 0}},
		}},
	}
	globals := []uint32{2000}

	got := tr.Evaluate(7, 1000, globals, mgl32.Vec3{})
	if !approxVec3(got, mgl32.Vec3{2, 0, 0}) {
		t.Errorf("global at 1000ms = %v, want (2,0,0)", got)
	}

	// 2500 wraps to 500.
	got = tr.Evaluate(7, 2500, globals, mgl32.Vec3{})
	if !approxVec3(got, mgl32.Vec3{1, 0, 0}) {
		t.Errorf("global at 2500ms = %v, want (1,0,0)", got)
	}

	// Out-of-range global index returns the default.
	badTr := Vec3Track{GlobalSeq: 3, Keys: tr.Keys}
	def := mgl32.Vec3{9, 9, 9}
	if got := badTr.Evaluate(0, 0, globals, def); !approxVec3(got, def) {
		t.Errorf("bad global index = %v, want default", got)
	}
}

func TestWrapTime(t *testing.T) {
	tests := []struct {
		name     string
		t, dur   float64
		loop     bool
		want     float64
	}{
		{"inside duration", 300, 1000, true, 300},
		{"loop wraps", 1500, 1000, true, 500},
		{"loop wraps twice", 2500, 1000, true, 500},
		{"one-shot clamps", 1500, 1000, false, 1000},
		{"zero duration", 500, 0, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WrapTime(tt.t, tt.dur, tt.loop)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("WrapTime(%v, %v, %v) = %v, want %v", tt.t, tt.dur, tt.loop, got, tt.want)
			}
		})
	}
}

func approxVec3(a, b mgl32.Vec3) bool {
	const eps = 1e-4
	return absf(a.X()-b.X()) < eps && absf(a.Y()-b.Y()) < eps && absf(a.Z()-b.Z()) < eps
}

func approxQuat(a, b mgl32.Quat) bool {
	const eps = 1e-4
	// q and -q encode the same rotation.
	d := a.W*b.W + a.V.Dot(b.V)
	return absf(absf(d)-1) < eps
}

func absf(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

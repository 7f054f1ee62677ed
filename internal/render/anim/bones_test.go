package anim

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func identityBone(parent int16, pivot mgl32.Vec3) Bone {
	return Bone{
		Parent:      parent,
		Pivot:       pivot,
		Translation: Vec3Track{GlobalSeq: -1},
		Rotation:    QuatTrack{GlobalSeq: -1},
		Scale:       Vec3Track{GlobalSeq: -1},
	}
}

func TestAtRestBonesAreIdentity(t *testing.T) {
	// Untracked bones yield identity regardless of pivot: the pivot
	// bracket cancels and the bind pose is absorbed.
	bones := []Bone{
		identityBone(-1, mgl32.Vec3{0, 0, 0}),
		identityBone(0, mgl32.Vec3{3, -2, 7}),
		identityBone(1, mgl32.Vec3{-5, 1, 0}),
	}

	out := make([]mgl32.Mat4, len(bones))
	ComputeBoneMatrices(bones, 0, 0, nil, out)

	for i, m := range out {
		if !approxMat4(m, mgl32.Ident4()) {
			t.Errorf("bone %d at rest = %v, want identity", i, m)
		}
	}
}

func TestSingleBoneTranslation(t *testing.T) {
	b := identityBone(-1, mgl32.Vec3{})
	b.Translation = Vec3Track{
		GlobalSeq: -1,
		Keys: []Vec3Keys{{
			Times:  []uint32{0, 1000},
			Values: []mgl32.Vec3{{0, 0, 0}, {10, 0, 0}},
		}},
	}

	out := make([]mgl32.Mat4, 1)
	ComputeBoneMatrices([]Bone{b}, 0, 500, nil, out)

	p := out[0].Mul4x1(mgl32.Vec4{0, 0, 0, 1}).Vec3()
	if !approxVec3(p, mgl32.Vec3{5, 0, 0}) {
		t.Errorf("translated origin = %v, want (5,0,0)", p)
	}
}

func TestBoneHierarchy(t *testing.T) {
	// A: root, identity. B: child with pivot (1,0,0) translating to
	// (0,2,0) over one second. At 500ms B's offset from A is (1,1,0)
	// when measured at B's pivot.
	a := identityBone(-1, mgl32.Vec3{0, 0, 0})
	b := identityBone(0, mgl32.Vec3{1, 0, 0})
	b.Translation = Vec3Track{
		GlobalSeq: -1,
		Keys: []Vec3Keys{{
			Times:  []uint32{0, 1000},
			Values: []mgl32.Vec3{{0, 0, 0}, {0, 2, 0}},
		}},
	}

	out := make([]mgl32.Mat4, 2)
	ComputeBoneMatrices([]Bone{a, b}, 0, 500, nil, out)

	// B's world matrix applied to its own pivot gives the joint position.
	p := out[1].Mul4x1(mgl32.Vec4{1, 0, 0, 1}).Vec3()
	if !approxVec3(p, mgl32.Vec3{1, 1, 0}) {
		t.Errorf("child joint = %v, want (1,1,0)", p)
	}
}

func TestParentRotationCarriesChild(t *testing.T) {
	// Parent rotates 90 degrees around z at its pivot; the child
	// inherits it.
	a := identityBone(-1, mgl32.Vec3{0, 0, 0})
	a.Rotation = QuatTrack{
		GlobalSeq: -1,
		Keys: []QuatKeys{{
			Times:  []uint32{0},
			Values: []mgl32.Quat{mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 0, 1})},
		}},
	}
	b := identityBone(0, mgl32.Vec3{1, 0, 0})

	out := make([]mgl32.Mat4, 2)
	ComputeBoneMatrices([]Bone{a, b}, 0, 0, nil, out)

	p := out[1].Mul4x1(mgl32.Vec4{1, 0, 0, 1}).Vec3()
	if !approxVec3(p, mgl32.Vec3{0, 1, 0}) {
		t.Errorf("rotated child joint = %v, want (0,1,0)", p)
	}
}

func TestDegenerateScaleClamped(t *testing.T) {
	b := identityBone(-1, mgl32.Vec3{})
	b.Scale = Vec3Track{
		GlobalSeq: -1,
		Keys: []Vec3Keys{{
			Times:  []uint32{0},
			Values: []mgl32.Vec3{{0, 0, 0}},
		}},
	}

	out := make([]mgl32.Mat4, 1)
	ComputeBoneMatrices([]Bone{b}, 0, 0, nil, out)

	if !approxMat4(out[0], mgl32.Ident4()) {
		t.Errorf("zero scale should clamp to identity, got %v", out[0])
	}
}

func approxMat4(a, b mgl32.Mat4) bool {
	const eps = 1e-4
	for i := 0; i < 16; i++ {
		if absf(a[i]-b[i]) > eps {
			return false
		}
	}
	return true
}

package m2

import (
	"fmt"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/wowee/azerite/internal/config"
	"github.com/wowee/azerite/internal/render/anim"
	"github.com/wowee/azerite/internal/render/model"
	"github.com/wowee/azerite/internal/render/texture"
	"github.com/wowee/azerite/internal/render/vkg"
)

type stubAssets struct {
	images map[string]*texture.Image
}

func (s *stubAssets) LoadTexture(key string) (*texture.Image, error) {
	img, ok := s.images[key]
	if !ok {
		return nil, fmt.Errorf("no such texture %q", key)
	}
	return img, nil
}

func (s *stubAssets) add(key string) {
	img := texture.NewImage(4, 4)
	for i := 3; i < len(img.Pixels); i += 4 {
		img.Pixels[i] = 255
	}
	s.images[key] = img
}

func newTestRenderer(cfg config.AnimationConfig) (*Renderer, *stubAssets) {
	assets := &stubAssets{images: make(map[string]*texture.Image)}
	cache := texture.NewCache(nil, assets, 64, false)
	cache.SetUploader(func(img *texture.Image) (*vkg.Image, error) {
		return &vkg.Image{Width: uint32(img.Width), Height: uint32(img.Height)}, nil
	})

	reg := model.NewRegistry(nil, cache, 0)
	reg.SetBufferUploader(func(data []byte, usage vk.BufferUsageFlags) (*vkg.Buffer, error) {
		return &vkg.Buffer{Size: vk.DeviceSize(len(data))}, nil
	})

	return New(nil, nil, reg, cache, cfg), assets
}

func serialConfig() config.AnimationConfig {
	return config.AnimationConfig{
		CharThreads:   1,
		DoodadThreads: 1,
		ParallelMin:   1 << 30,
		WorkPerThread: 256,
	}
}

// staticData builds a minimal unanimated model.
func staticData(name string) *model.Data {
	return &model.Data{
		Name: name,
		Vertices: []model.Vertex{
			{Position: mgl32.Vec3{-1, -1, 0}},
			{Position: mgl32.Vec3{1, -1, 0}},
			{Position: mgl32.Vec3{0, 1, 1}},
		},
		Indices: []uint16{0, 1, 2},
		Batches: []model.Batch{{IndexCount: 3}},
		Sequences: []model.Sequence{
			{AnimID: 0, Duration: 1000, Loop: true},
		},
	}
}

// animatedData adds one bone moving 2 units along y over its 1 s idle.
func animatedData(name string) *model.Data {
	d := staticData(name)
	d.Bones = []anim.Bone{{
		Parent:  -1,
		KeyBone: -1,
		Translation: anim.Vec3Track{
			GlobalSeq: -1,
			Keys: []anim.Vec3Keys{{
				Times:  []uint32{0, 1000},
				Values: []mgl32.Vec3{{0, 0, 0}, {0, 2, 0}},
			}},
		},
		Rotation: anim.QuatTrack{GlobalSeq: -1},
		Scale:    anim.Vec3Track{GlobalSeq: -1},
	}}
	return d
}

func mustLoad(t *testing.T, r *Renderer, id uint32, d *model.Data) {
	t.Helper()
	if err := r.registry.Load(d, id); err != nil {
		t.Fatalf("load model %d: %v", id, err)
	}
}

func mustCreate(t *testing.T, r *Renderer, modelID uint32, pos mgl32.Vec3) uint32 {
	t.Helper()
	id, ok := r.CreateInstance(modelID, pos, mgl32.Vec3{}, 1)
	if !ok {
		t.Fatalf("CreateInstance for model %d at %v failed", modelID, pos)
	}
	return id
}

func TestCreateInstanceDedup(t *testing.T) {
	r, _ := newTestRenderer(serialConfig())
	mustLoad(t, r, 1, staticData("World\\Generic\\WoodCrate01.m2"))

	first := mustCreate(t, r, 1, mgl32.Vec3{10, 10, 0})

	// Same model almost exactly on top: rejected, existing id returned.
	id, ok := r.CreateInstance(1, mgl32.Vec3{10.05, 10, 0}, mgl32.Vec3{}, 1)
	if ok || id != first {
		t.Errorf("duplicate placement = (%d, %v), want (%d, false)", id, ok, first)
	}
	if r.InstanceCount() != 1 {
		t.Errorf("InstanceCount = %d, want 1", r.InstanceCount())
	}

	// Far enough away is a separate instance.
	if _, ok := r.CreateInstance(1, mgl32.Vec3{10.5, 10, 0}, mgl32.Vec3{}, 1); !ok {
		t.Error("distinct placement rejected")
	}
}

func TestCreateInstanceGroundDetailSkipsDedup(t *testing.T) {
	r, _ := newTestRenderer(serialConfig())
	d := staticData("World\\Generic\\GrassClumpA.m2")
	d.Vertices[2].Position = mgl32.Vec3{0, 1, 0.4}
	mustLoad(t, r, 1, d)

	mustCreate(t, r, 1, mgl32.Vec3{10, 10, 0})
	if _, ok := r.CreateInstance(1, mgl32.Vec3{10.02, 10, 0}, mgl32.Vec3{}, 1); !ok {
		t.Error("ground clutter dedup rejected a dense placement")
	}
}

func TestCreateInstanceUnknownModel(t *testing.T) {
	r, _ := newTestRenderer(serialConfig())
	if _, ok := r.CreateInstance(42, mgl32.Vec3{}, mgl32.Vec3{}, 1); ok {
		t.Error("instance created for unknown model")
	}
}

func TestRemoveInstanceRecursive(t *testing.T) {
	r, _ := newTestRenderer(serialConfig())
	parentData := animatedData("creature/guard.m2")
	parentData.Attachments = []model.Attachment{{ID: AttachRightHand, Bone: 0}}
	parentData.AttachmentLookup = []int16{-1, 0}
	mustLoad(t, r, 1, parentData)
	mustLoad(t, r, 2, staticData("item\\sword.m2"))

	parent := mustCreate(t, r, 1, mgl32.Vec3{0, 0, 0})
	weapon, ok := r.AttachWeapon(parent, AttachRightHand, 2, "")
	if !ok {
		t.Fatal("AttachWeapon failed")
	}

	r.RemoveInstance(parent)
	if r.Instance(parent) != nil || r.Instance(weapon) != nil {
		t.Error("attached child survived parent removal")
	}
	if r.InstanceCount() != 0 {
		t.Errorf("InstanceCount = %d, want 0", r.InstanceCount())
	}
}

func TestSetInstancePosition(t *testing.T) {
	r, _ := newTestRenderer(serialConfig())
	mustLoad(t, r, 1, staticData("crate"))

	id := mustCreate(t, r, 1, mgl32.Vec3{0, 0, 0})
	if !r.SetInstancePosition(id, mgl32.Vec3{50, 0, 0}) {
		t.Fatal("SetInstancePosition failed")
	}

	inst := r.Instance(id)
	if inst.Position != (mgl32.Vec3{50, 0, 0}) {
		t.Errorf("Position = %v", inst.Position)
	}
	// World bounds followed.
	if inst.WorldBounds.Min.X() < 40 {
		t.Errorf("WorldBounds did not move: %+v", inst.WorldBounds)
	}
}

func TestMoveInstanceGlides(t *testing.T) {
	r, _ := newTestRenderer(serialConfig())
	mustLoad(t, r, 1, animatedData("creature/sheep.m2"))

	id := mustCreate(t, r, 1, mgl32.Vec3{0, 0, 0})
	if !r.MoveInstance(id, mgl32.Vec3{10, 0, 0}, 1) {
		t.Fatal("MoveInstance failed")
	}

	cam := mgl32.Vec3{0, 0, 5}
	r.Update(0.5, cam, nil)
	inst := r.Instance(id)
	if !near(inst.Position.X(), 5, 1e-3) {
		t.Errorf("midpoint x = %v, want 5", inst.Position.X())
	}

	r.Update(0.6, cam, nil)
	if inst.Position != (mgl32.Vec3{10, 0, 0}) {
		t.Errorf("final position = %v, want (10,0,0)", inst.Position)
	}
	if inst.moving {
		t.Error("still moving after arrival")
	}
	if inst.SequenceIndex != inst.idleSequence || !inst.Loop {
		t.Error("did not return to idle after arrival")
	}
}

func TestInstanceBoundsPadded(t *testing.T) {
	r, _ := newTestRenderer(serialConfig())
	d := staticData("tiny")
	d.Vertices = []model.Vertex{
		{Position: mgl32.Vec3{-0.01, -0.01, 0}},
		{Position: mgl32.Vec3{0.01, -0.01, 0}},
		{Position: mgl32.Vec3{0, 0.01, 0.02}},
	}
	mustLoad(t, r, 1, d)

	id := mustCreate(t, r, 1, mgl32.Vec3{5, 5, 5})
	b, ok := r.InstanceBounds(id)
	if !ok {
		t.Fatal("InstanceBounds failed")
	}
	half := b.HalfSize()
	if half.X() < minBoundRadius || half.Y() < minBoundRadius || half.Z() < minBoundRadius {
		t.Errorf("bounds not padded: half = %v", half)
	}
	if !b.ContainsPoint(mgl32.Vec3{5, 5, 5}) {
		t.Errorf("padded bounds lost the instance position: %+v", b)
	}
}

func TestFadeInRamp(t *testing.T) {
	r, _ := newTestRenderer(serialConfig())
	mustLoad(t, r, 1, staticData("crate"))
	id := mustCreate(t, r, 1, mgl32.Vec3{0, 0, 0})

	inst := r.Instance(id)
	if inst.FadeIn != 0 {
		t.Fatalf("FadeIn starts at %v, want 0", inst.FadeIn)
	}

	r.Update(0.25, mgl32.Vec3{0, 0, 5}, nil)
	if !near(inst.FadeIn, 0.5, 1e-3) {
		t.Errorf("FadeIn after 0.25s = %v, want 0.5", inst.FadeIn)
	}

	r.Update(1, mgl32.Vec3{0, 0, 5}, nil)
	if inst.FadeIn != 1 {
		t.Errorf("FadeIn not capped: %v", inst.FadeIn)
	}
}

func near(a, b, eps float32) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= eps
}

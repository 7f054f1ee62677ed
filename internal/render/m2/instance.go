package m2

import (
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/wowee/azerite/internal/render/texture"
	"github.com/wowee/azerite/pkg/mathx"
)

// Instance is one placed doodad. Position and rotation are authoritative;
// the matrices and world bounds are derived whenever they change.
type Instance struct {
	ID      uint32
	ModelID uint32

	Position mgl32.Vec3
	Rotation mgl32.Vec3 // Euler degrees, applied X then Y then Z
	Scale    float32

	ModelMat    mgl32.Mat4
	InvModelMat mgl32.Mat4
	WorldBounds mathx.AABB

	// matrixDriven instances take ModelMat verbatim, used for weapons
	// riding an attachment bone.
	matrixDriven bool

	SequenceIndex int
	AnimTime      float64
	AnimSpeed     float32
	Playing       bool
	Loop          bool

	// frameTimeMs is the wrapped sequence time sampled for this frame's
	// bone evaluation.
	frameTimeMs uint32

	idleSequence     int
	variationTimer   float32
	playingVariation bool

	// FadeIn ramps 0..1 after spawn so doodads do not pop.
	FadeIn float32

	moving   bool
	moveFrom mgl32.Vec3
	moveTo   mgl32.Vec3
	moveT    float32
	moveDur  float32

	BoneMatrices []mgl32.Mat4

	// ActiveGeosets limits drawn submeshes; nil draws everything.
	ActiveGeosets map[uint16]bool

	parent   uint32
	isChild  bool
	children []uint32

	// Set while the instance is a weapon riding a parent bone.
	attach *attachState

	// Per-instance texture overrides consulted before the model's
	// slot bindings.
	texOverrides []instanceTexOverride
}

// instanceTexOverride replaces a texture slot for one instance. group
// restricts it to batches of that skin group; -1 covers the slot on
// every batch.
type instanceTexOverride struct {
	slot  int
	group int16
	tex   *texture.Texture
}

// instanceDedupDist is how close two placements of the same model may
// sit before the second one is treated as a duplicate.
const instanceDedupDist = 0.1

// minBoundRadius pads degenerate instance bounds so culling and picking
// never lose a visible doodad.
const minBoundRadius = 0.5

// CreateInstance places a model in the world. Rotation is in degrees.
// A placement within instanceDedupDist of an existing instance of the
// same model is rejected and returns the existing id.
func (r *Renderer) CreateInstance(modelID uint32, pos, rot mgl32.Vec3, scale float32) (uint32, bool) {
	m := r.registry.Get(modelID)
	if m == nil {
		r.limiter.Warn("create-missing", "instance for unknown model",
			zap.Uint32("modelId", modelID))
		return 0, false
	}
	if scale <= 0 {
		scale = 1
	}

	// Ground clutter is placed densely on purpose; everything else
	// dedups against nearby copies of the same model.
	if !m.Class.GroundDetail {
		if dup, ok := r.findDuplicate(modelID, pos); ok {
			return dup, false
		}
	}

	inst := &Instance{
		ID:       r.nextInstanceID(),
		ModelID:  modelID,
		Position: pos,
		Rotation: rot,
		Scale:    scale,
		AnimSpeed: 1,
	}
	r.initAnimation(inst)
	r.refreshTransform(inst)

	r.instances[inst.ID] = inst
	r.grid.Insert(inst.ID, inst.WorldBounds)
	return inst.ID, true
}

// CreateInstanceWithMatrix places a model with an explicit transform.
// The instance follows the matrix verbatim until removed.
func (r *Renderer) CreateInstanceWithMatrix(modelID uint32, mat mgl32.Mat4) (uint32, bool) {
	m := r.registry.Get(modelID)
	if m == nil {
		return 0, false
	}

	inst := &Instance{
		ID:           r.nextInstanceID(),
		ModelID:      modelID,
		Scale:        1,
		AnimSpeed:    1,
		matrixDriven: true,
	}
	r.initAnimation(inst)
	r.setMatrix(inst, mat)

	r.instances[inst.ID] = inst
	r.grid.Insert(inst.ID, inst.WorldBounds)
	return inst.ID, true
}

// RemoveInstance deletes an instance and, recursively, everything
// attached to it.
func (r *Renderer) RemoveInstance(id uint32) {
	inst, ok := r.instances[id]
	if !ok {
		return
	}

	for _, child := range append([]uint32(nil), inst.children...) {
		r.RemoveInstance(child)
	}
	if inst.isChild {
		if p, ok := r.instances[inst.parent]; ok {
			p.children = removeID(p.children, id)
		}
	}

	r.grid.Remove(id)
	delete(r.instances, id)
}

// SetInstancePosition teleports an instance.
func (r *Renderer) SetInstancePosition(id uint32, pos mgl32.Vec3) bool {
	inst, ok := r.instances[id]
	if !ok || inst.matrixDriven {
		return false
	}
	inst.Position = pos
	inst.moving = false
	r.refreshTransform(inst)
	r.grid.Update(id, inst.WorldBounds)
	return true
}

// MoveInstance glides an instance to pos over duration seconds, playing
// its walk sequence if it has one and returning to idle on arrival.
func (r *Renderer) MoveInstance(id uint32, pos mgl32.Vec3, duration float32) bool {
	inst, ok := r.instances[id]
	if !ok || inst.matrixDriven {
		return false
	}
	if duration <= 0 {
		return r.SetInstancePosition(id, pos)
	}

	inst.moveFrom = inst.Position
	inst.moveTo = pos
	inst.moveT = 0
	inst.moveDur = duration
	inst.moving = true

	// Walk animation id 4 in the classic tables.
	r.playByAnimID(inst, 4, true)
	return true
}

// PlayAnimation switches an instance to the sequence with the given
// animation id, falling back to the model's first sequence when the id
// is unknown. Returns false on the fallback or a missing instance.
func (r *Renderer) PlayAnimation(id uint32, animID uint16, loop bool) bool {
	inst, ok := r.instances[id]
	if !ok {
		return false
	}
	return r.playByAnimID(inst, animID, loop)
}

// SetAnimationSpeed scales an instance's animation playback rate.
func (r *Renderer) SetAnimationSpeed(id uint32, speed float32) {
	if inst, ok := r.instances[id]; ok && speed > 0 {
		inst.AnimSpeed = speed
	}
}

// SetActiveGeosets limits which submeshes of an instance draw. A nil
// set restores the full mesh.
func (r *Renderer) SetActiveGeosets(id uint32, geosets []uint16) {
	inst, ok := r.instances[id]
	if !ok {
		return
	}
	if geosets == nil {
		inst.ActiveGeosets = nil
		return
	}
	set := make(map[uint16]bool, len(geosets))
	for _, g := range geosets {
		set[g] = true
	}
	inst.ActiveGeosets = set
}

// InstanceBounds returns the instance's world bounds, padded so even a
// paper-thin doodad stays pickable.
func (r *Renderer) InstanceBounds(id uint32) (mathx.AABB, bool) {
	inst, ok := r.instances[id]
	if !ok {
		return mathx.AABB{}, false
	}

	b := inst.WorldBounds
	c := b.Center()
	half := b.HalfSize()
	grow := func(h float32) float32 {
		if h < minBoundRadius {
			return minBoundRadius
		}
		return h
	}
	b.Min = mgl32.Vec3{c.X() - grow(half.X()), c.Y() - grow(half.Y()), c.Z() - grow(half.Z())}
	b.Max = mgl32.Vec3{c.X() + grow(half.X()), c.Y() + grow(half.Y()), c.Z() + grow(half.Z())}
	return b, true
}

// Instance returns the live instance for id, or nil. Callers must not
// hold the pointer across RemoveInstance.
func (r *Renderer) Instance(id uint32) *Instance {
	return r.instances[id]
}

// InstanceCount returns the number of placed instances.
func (r *Renderer) InstanceCount() int {
	return len(r.instances)
}

func (r *Renderer) nextInstanceID() uint32 {
	r.nextID++
	return r.nextID
}

func (r *Renderer) findDuplicate(modelID uint32, pos mgl32.Vec3) (uint32, bool) {
	r.idScratch = r.grid.Gather(
		pos.X()-instanceDedupDist, pos.Y()-instanceDedupDist,
		pos.X()+instanceDedupDist, pos.Y()+instanceDedupDist,
		r.idScratch[:0])
	for _, id := range r.idScratch {
		other, ok := r.instances[id]
		if !ok || other.ModelID != modelID || other.matrixDriven {
			continue
		}
		d := other.Position.Sub(pos)
		if d.Len() <= instanceDedupDist {
			return id, true
		}
	}
	return 0, false
}

func (r *Renderer) initAnimation(inst *Instance) {
	m := r.registry.Get(inst.ModelID)
	inst.SequenceIndex = 0
	inst.idleSequence = 0
	if len(m.IdleVariations) > 0 {
		inst.idleSequence = m.IdleVariations[0]
		inst.SequenceIndex = inst.idleSequence
	}
	inst.Playing = m.HasAnimation && len(m.Sequences) > 0
	inst.Loop = true
	inst.variationTimer = r.variationDelay()
	if m.HasAnimation {
		inst.BoneMatrices = make([]mgl32.Mat4, len(m.Bones))
		for i := range inst.BoneMatrices {
			inst.BoneMatrices[i] = mgl32.Ident4()
		}
	}
}

// playByAnimID switches to the sequence carrying animID. Unknown ids
// fall back to sequence 0 so the model keeps moving; the return value
// reports whether the exact id was found.
func (r *Renderer) playByAnimID(inst *Instance, animID uint16, loop bool) bool {
	m := r.registry.Get(inst.ModelID)
	if m == nil || len(m.Sequences) == 0 {
		return false
	}
	idx := -1
	for i, s := range m.Sequences {
		if s.AnimID == animID {
			idx = i
			break
		}
	}
	found := idx >= 0
	if !found {
		r.limiter.Warn("anim-missing", "animation id not in model, using sequence 0",
			zap.Uint32("modelId", inst.ModelID),
			zap.Uint16("animId", animID))
		idx = 0
	}

	s := &m.Sequences[idx]
	inst.SequenceIndex = idx
	inst.AnimTime = 0
	inst.Playing = true
	inst.Loop = loop || s.Loop
	inst.playingVariation = false
	return found
}

func (r *Renderer) refreshTransform(inst *Instance) {
	mat := mathx.ModelMatrix(inst.Position, mgl32.Vec3{
		mgl32.DegToRad(inst.Rotation.X()),
		mgl32.DegToRad(inst.Rotation.Y()),
		mgl32.DegToRad(inst.Rotation.Z()),
	}, inst.Scale)
	r.setMatrix(inst, mat)
}

func (r *Renderer) setMatrix(inst *Instance, mat mgl32.Mat4) {
	inst.ModelMat = mat
	inst.InvModelMat = mat.Inv()

	m := r.registry.Get(inst.ModelID)
	inst.WorldBounds = m.Bounds.Transform(mat)
	if inst.matrixDriven {
		inst.Position = mgl32.Vec3{mat.At(0, 3), mat.At(1, 3), mat.At(2, 3)}
	}
}

func removeID(ids []uint32, id uint32) []uint32 {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

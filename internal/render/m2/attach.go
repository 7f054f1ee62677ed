package m2

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/wowee/azerite/internal/render/model"
)

// Attachment point ids from the classic tables.
const (
	AttachRightHand = 1
	AttachLeftHand  = 2
)

// Key bone ids used when the attachment table is missing or points at a
// bone the skeleton does not have.
const (
	keyBoneRightHand = 26
	keyBoneLeftHand  = 27
)

type attachState struct {
	parentID uint32
	attachID uint16
	bone     int
	offset   mgl32.Vec3
}

// AttachWeapon places a weapon model on a parent instance's attachment
// point. The weapon becomes a child instance that follows the bone each
// frame; the returned id removes it via DetachWeapon. A non-empty
// texturePath that loads to a real texture is applied to the weapon's
// slot 0 as an instance override.
func (r *Renderer) AttachWeapon(parentID uint32, attachID uint16, weaponModelID uint32, texturePath string) (uint32, bool) {
	parent, ok := r.instances[parentID]
	if !ok {
		return 0, false
	}
	pm := r.registry.Get(parent.ModelID)
	if pm == nil {
		return 0, false
	}

	bone, offset, ok := resolveAttachment(pm, attachID)
	if !ok {
		return 0, false
	}

	childID, ok := r.CreateInstanceWithMatrix(weaponModelID, parent.ModelMat)
	if !ok {
		return 0, false
	}

	child := r.instances[childID]
	child.isChild = true
	child.parent = parentID
	child.attach = &attachState{
		parentID: parentID,
		attachID: attachID,
		bone:     bone,
		offset:   offset,
	}
	parent.children = append(parent.children, childID)

	if texturePath != "" {
		r.setInstanceTexture(childID, -1, 0, texturePath)
	}

	r.poseAttached(child)
	return childID, true
}

// DetachWeapon removes an attached weapon instance.
func (r *Renderer) DetachWeapon(childID uint32) {
	if inst, ok := r.instances[childID]; ok && inst.attach != nil {
		r.RemoveInstance(childID)
	}
}

// resolveAttachment finds the bone and offset for an attachment id:
// the lookup table first, then a scan of the attachment list, then the
// hand key bones for the two weapon points.
func resolveAttachment(m *model.Model, attachID uint16) (int, mgl32.Vec3, bool) {
	if att, ok := attachmentEntry(m, attachID); ok {
		bone := int(att.Bone)
		if bone >= 0 && bone < len(m.Bones) {
			return bone, att.Offset, true
		}
		// Bad bone in the table: fall through to the key bones.
	}

	var key int16
	switch attachID {
	case AttachRightHand:
		key = keyBoneRightHand
	case AttachLeftHand:
		key = keyBoneLeftHand
	default:
		return 0, mgl32.Vec3{}, false
	}
	for i := range m.Bones {
		if m.Bones[i].KeyBone == key {
			return i, mgl32.Vec3{}, true
		}
	}
	return 0, mgl32.Vec3{}, false
}

func attachmentEntry(m *model.Model, attachID uint16) (model.Attachment, bool) {
	if int(attachID) < len(m.AttachmentLookup) {
		if idx := m.AttachmentLookup[attachID]; idx >= 0 && int(idx) < len(m.Attachments) {
			return m.Attachments[int(idx)], true
		}
	}
	for _, att := range m.Attachments {
		if att.ID == attachID {
			return att, true
		}
	}
	return model.Attachment{}, false
}

// ComposeAttachment builds the world transform of an attached model:
// the parent's model matrix, the animated bone, then the attachment
// offset in bone space.
func ComposeAttachment(parentModel, bone mgl32.Mat4, offset mgl32.Vec3) mgl32.Mat4 {
	return parentModel.Mul4(bone).Mul4(mgl32.Translate3D(offset.X(), offset.Y(), offset.Z()))
}

// updateAttachments re-poses weapon instances from their parents' bone
// matrices. Runs after skeletons are computed for the frame.
func (r *Renderer) updateAttachments() {
	for _, inst := range r.instances {
		if inst.attach != nil {
			r.poseAttached(inst)
		}
	}
}

func (r *Renderer) poseAttached(inst *Instance) {
	parent, ok := r.instances[inst.attach.parentID]
	if !ok {
		return
	}

	bone := mgl32.Ident4()
	if inst.attach.bone >= 0 && inst.attach.bone < len(parent.BoneMatrices) {
		bone = parent.BoneMatrices[inst.attach.bone]
	}

	r.setMatrix(inst, ComposeAttachment(parent.ModelMat, bone, inst.attach.offset))
	r.grid.Update(inst.ID, inst.WorldBounds)
}

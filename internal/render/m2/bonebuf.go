package m2

import (
	"encoding/binary"
	"math"

	vk "github.com/goki/vulkan"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/wowee/azerite/internal/render/vkg"
)

const (
	// boneSlots is the per-draw bone capacity of the skinning buffer.
	boneSlots     = 192
	boneSlotBytes = boneSlots * 64

	// maxSkinnedPerFrame bounds how many skinned draws one frame can
	// hold bone data for.
	maxSkinnedPerFrame = 512

	// materialStride spaces transient material blocks at the worst-case
	// UBO alignment.
	materialStride   = 256
	materialBytes    = 64
	maxDrawsPerFrame = 4096

	pushConstantBytes = 64
)

// frameState owns the transient GPU resources of one frame slot: the
// bump-allocated bone and material buffers and the descriptor pool the
// per-draw sets are cut from. Everything resets when the slot is
// reused, which is safe because the slot count matches the frame
// overlap.
type frameState struct {
	bones      *vkg.Buffer
	boneOffset int
	boneSet    vk.DescriptorSet

	materials *vkg.Buffer
	matOffset int

	alloc *vkg.DescriptorAllocator

	scratch []byte
}

func newFrameState(ctx *vkg.Context, ps *pipelineSet) (*frameState, error) {
	f := &frameState{}

	var err error
	f.bones, err = vkg.NewHostBuffer(ctx,
		vk.DeviceSize(maxSkinnedPerFrame*boneSlotBytes),
		vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit))
	if err != nil {
		return nil, err
	}

	f.materials, err = vkg.NewHostBuffer(ctx,
		vk.DeviceSize(maxDrawsPerFrame*materialStride),
		vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit))
	if err != nil {
		f.destroy(ctx)
		return nil, err
	}

	sizes := []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeStorageBufferDynamic, DescriptorCount: 4},
		{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: maxDrawsPerFrame},
		{Type: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: 2 * maxDrawsPerFrame},
	}
	f.alloc, err = vkg.NewDescriptorAllocator(ctx, maxDrawsPerFrame+4, sizes)
	if err != nil {
		f.destroy(ctx)
		return nil, err
	}

	// The bone set is bound once per frame; draws select their slice
	// with a dynamic offset.
	f.boneSet, err = f.alloc.Allocate(ctx, ps.boneLayout)
	if err != nil {
		f.destroy(ctx)
		return nil, err
	}
	bufInfo := []vk.DescriptorBufferInfo{{
		Buffer: f.bones.Handle,
		Offset: 0,
		Range:  boneSlotBytes,
	}}
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          f.boneSet,
		DstBinding:      0,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeStorageBufferDynamic,
		PBufferInfo:     bufInfo,
	}
	vk.UpdateDescriptorSets(ctx.Device, 1, []vk.WriteDescriptorSet{write}, 0, nil)

	return f, nil
}

// reset recycles the slot for a new frame. Only material sets are
// reallocated; the bone set persists, so it is re-created after the
// pool reset.
func (f *frameState) reset(ctx *vkg.Context, ps *pipelineSet) error {
	f.boneOffset = 0
	f.matOffset = 0
	f.alloc.Reset(ctx)

	set, err := f.alloc.Allocate(ctx, ps.boneLayout)
	if err != nil {
		return err
	}
	f.boneSet = set
	bufInfo := []vk.DescriptorBufferInfo{{
		Buffer: f.bones.Handle,
		Offset: 0,
		Range:  boneSlotBytes,
	}}
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          f.boneSet,
		DstBinding:      0,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeStorageBufferDynamic,
		PBufferInfo:     bufInfo,
	}
	vk.UpdateDescriptorSets(ctx.Device, 1, []vk.WriteDescriptorSet{write}, 0, nil)
	return nil
}

// pushBones copies a skeleton into the next bone slot and returns its
// dynamic offset. Fails when the frame's slots are spent.
func (f *frameState) pushBones(mats []mgl32.Mat4) (uint32, bool) {
	if f.boneOffset+boneSlotBytes > maxSkinnedPerFrame*boneSlotBytes {
		return 0, false
	}
	if len(mats) > boneSlots {
		mats = mats[:boneSlots]
	}

	f.scratch = f.scratch[:0]
	for i := range mats {
		f.scratch = appendMat4(f.scratch, &mats[i])
	}
	f.bones.WriteAt(f.scratch, f.boneOffset)

	off := uint32(f.boneOffset)
	f.boneOffset += boneSlotBytes
	return off, true
}

// pushIdentityBones writes an identity pose for unanimated draws.
func (f *frameState) pushIdentityBones() (uint32, bool) {
	ident := mgl32.Ident4()
	return f.pushBones([]mgl32.Mat4{ident})
}

// pushMaterial copies one material block and returns its byte offset.
func (f *frameState) pushMaterial(block [materialBytes]byte) (int, bool) {
	if f.matOffset+materialStride > maxDrawsPerFrame*materialStride {
		return 0, false
	}
	f.materials.WriteAt(block[:], f.matOffset)
	off := f.matOffset
	f.matOffset += materialStride
	return off, true
}

func (f *frameState) destroy(ctx *vkg.Context) {
	if f.alloc != nil {
		f.alloc.Destroy(ctx)
		f.alloc = nil
	}
	f.bones.Destroy(ctx)
	f.bones = nil
	f.materials.Destroy(ctx)
	f.materials = nil
}

// appendMat4 writes a column-major matrix as 16 little-endian floats.
func appendMat4(buf []byte, m *mgl32.Mat4) []byte {
	for _, v := range m {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
	}
	return buf
}

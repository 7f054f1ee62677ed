package m2

import (
	"encoding/binary"
	"math"
	"sort"
	"time"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/wowee/azerite/internal/render/model"
	"github.com/wowee/azerite/internal/render/texture"
	"github.com/wowee/azerite/internal/render/vkg"
	"github.com/wowee/azerite/pkg/mathx"
)

// maxTextureCombo bounds the combo table walk when picking a batch's
// effective texture.
const maxTextureCombo = 8

// drawMaxDistance is the base draw cull range in world units. Large
// objects stretch it in proportion to their bounding radius.
const drawMaxDistance = 500

// Shading defaults packed into the material block.
const (
	emissiveBase    = 0.8
	emissiveFlicker = 0.15
	specularDefault = 0.25
	pomScaleDefault = 0.02
)

// pomSampleCounts maps the detail quality level to the parallax ray
// march step count.
var pomSampleCounts = [4]float32{8, 12, 20, 32}

type drawItem struct {
	inst *Instance
	m    *model.Model
	dist float32
}

// Draw culls, sorts and records every visible instance into cmd. The
// frame index selects which transient slot to recycle; callers pass
// their frame counter and the renderer wraps it by the overlap.
func (r *Renderer) Draw(cmd vk.CommandBuffer, frame uint64, viewProj mgl32.Mat4, frustum *mathx.Frustum, cameraPos mgl32.Vec3) {
	if r.ctx == nil {
		return
	}
	if err := r.ensureGPU(); err != nil {
		r.limiter.Error("gpu-init", "draw resources unavailable", zap.Error(err))
		return
	}

	fs := r.frames[frame%vkg.FrameOverlap]
	if err := fs.reset(r.ctx, r.pipelines); err != nil {
		r.limiter.Error("frame-reset", "frame slot reset failed", zap.Error(err))
		return
	}

	r.cullAndSort(frustum, cameraPos)
	if len(r.visible) == 0 {
		return
	}

	var boundModel *model.Model
	var boundPipeline vk.Pipeline

	for i := range r.visible {
		item := &r.visible[i]

		if item.m != boundModel {
			vk.CmdBindVertexBuffers(cmd, 0, 1,
				[]vk.Buffer{item.m.VertexBuf.Handle}, []vk.DeviceSize{0})
			vk.CmdBindIndexBuffer(cmd, item.m.IndexBuf.Handle, 0, vk.IndexTypeUint16)
			boundModel = item.m
		}

		boneOffset, ok := r.uploadItemBones(fs, item)
		if !ok {
			r.limiter.Warn("bone-budget", "frame bone buffer exhausted")
			continue
		}
		vk.CmdBindDescriptorSets(cmd, vk.PipelineBindPointGraphics, r.pipelines.layout,
			0, 1, []vk.DescriptorSet{fs.boneSet}, 1, []uint32{boneOffset})

		var push [pushConstantBytes]byte
		writeMat4(push[:], &item.inst.ModelMat)
		vk.CmdPushConstants(cmd, r.pipelines.layout,
			vk.ShaderStageFlags(vk.ShaderStageVertexBit), 0, pushConstantBytes, unsafe.Pointer(&push[0]))

		r.drawBatches(cmd, fs, item, &boundPipeline)
	}
}

// ensureGPU lazily builds the pipelines and frame slots on first draw.
func (r *Renderer) ensureGPU() error {
	if r.pipelines == nil {
		ps, err := newPipelineSet(r.ctx, r.shaders)
		if err != nil {
			return err
		}
		r.pipelines = ps
	}
	if r.frames == nil {
		frames := make([]*frameState, vkg.FrameOverlap)
		for i := range frames {
			fs, err := newFrameState(r.ctx, r.pipelines)
			if err != nil {
				for _, f := range frames[:i] {
					f.destroy(r.ctx)
				}
				return err
			}
			frames[i] = fs
		}
		r.frames = frames
	}
	return nil
}

// cullAndSort fills r.visible with frustum-visible instances ordered by
// model id so vertex buffer binds batch up, distance as tiebreak.
func (r *Renderer) cullAndSort(frustum *mathx.Frustum, cameraPos mgl32.Vec3) {
	r.visible = r.visible[:0]

	for _, inst := range r.instances {
		if inst.FadeIn <= 0 {
			continue
		}
		m := r.registry.Get(inst.ModelID)
		if m == nil || m.VertexBuf == nil {
			continue
		}
		radius := m.BoundRadius * inst.Scale
		if radius < minBoundRadius {
			radius = minBoundRadius
		}

		// Cheap range reject before the plane tests. Big objects stay
		// visible proportionally further out.
		toCam := inst.Position.Sub(cameraPos)
		limit := drawMaxDistance * radius
		if limit < drawMaxDistance {
			limit = drawMaxDistance
		}
		distSq := toCam.Dot(toCam)
		if distSq > limit*limit {
			continue
		}

		if frustum != nil && !frustum.IntersectsSphere(inst.WorldBounds.Center(), radius) {
			continue
		}
		r.visible = append(r.visible, drawItem{
			inst: inst,
			m:    m,
			dist: float32(math.Sqrt(float64(distSq))),
		})
	}

	sort.Slice(r.visible, func(i, j int) bool {
		a, b := &r.visible[i], &r.visible[j]
		if a.m.ID != b.m.ID {
			return a.m.ID < b.m.ID
		}
		return a.dist < b.dist
	})
}

func (r *Renderer) uploadItemBones(fs *frameState, item *drawItem) (uint32, bool) {
	if item.m.HasAnimation && len(item.inst.BoneMatrices) > 0 {
		return fs.pushBones(item.inst.BoneMatrices)
	}
	return fs.pushIdentityBones()
}

func (r *Renderer) drawBatches(cmd vk.CommandBuffer, fs *frameState, item *drawItem, boundPipeline *vk.Pipeline) {
	inst := item.inst
	m := item.m

	drawn := 0
	for pass := 0; pass < 2; pass++ {
		for bi := range m.Batches {
			b := &m.Batches[bi]

			if pass == 0 && inst.ActiveGeosets != nil && !inst.ActiveGeosets[b.SubmeshID] {
				continue
			}
			if b.StaticOpacity <= 0 || b.IndexCount == 0 {
				continue
			}
			// Attached weapons drop their glow batches; the additive
			// passes double up badly at arm's length.
			if inst.attach != nil && b.BlendMode >= 3 {
				continue
			}

			tex := r.effectiveTexture(inst, m, b)
			if tex == nil {
				continue
			}

			if r.recordBatch(cmd, fs, inst, b, tex, boundPipeline) {
				drawn++
			}
		}

		if drawn > 0 || inst.ActiveGeosets == nil {
			return
		}
		// The geoset filter removed every batch; draw the full mesh
		// instead of nothing.
		r.limiter.Warn("geoset-empty", "geoset filter matched no batches",
			zap.Uint32("modelId", m.ID))
	}
}

// effectiveTexture resolves the texture a batch draws with: an
// instance override when one matches, else the first non-white combo
// entry, else the batch's own binding. Group-restricted overrides win
// over instance-wide ones.
func (r *Renderer) effectiveTexture(inst *Instance, m *model.Model, b *model.Batch) *texture.Texture {
	if len(inst.texOverrides) > 0 {
		if slot, ok := batchSlot(m, b); ok {
			group := int16(b.SubmeshID / 100)
			var wide *texture.Texture
			for i := range inst.texOverrides {
				o := &inst.texOverrides[i]
				if o.slot != slot {
					continue
				}
				if o.group == group {
					return o.tex
				}
				if o.group < 0 {
					wide = o.tex
				}
			}
			if wide != nil {
				return wide
			}
		}
	}

	white := r.cache.White()

	count := int(b.TextureCount)
	if count > maxTextureCombo {
		count = maxTextureCombo
	}
	for k := 0; k < count; k++ {
		li := int(b.TextureIndex) + k
		if li >= len(m.TextureLookup) {
			break
		}
		slot := int(m.TextureLookup[li])
		if slot >= len(m.SlotTextures) {
			continue
		}
		if tex := m.SlotTextures[slot]; tex != nil && tex != white {
			return tex
		}
	}
	return b.Texture
}

func (r *Renderer) recordBatch(cmd vk.CommandBuffer, fs *frameState, inst *Instance, b *model.Batch, tex *texture.Texture, boundPipeline *vk.Pipeline) bool {
	matOffset, ok := fs.pushMaterial(r.materialBlock(inst, b, tex))
	if !ok {
		r.limiter.Warn("material-budget", "frame material buffer exhausted")
		return false
	}

	set, err := fs.alloc.Allocate(r.ctx, r.pipelines.materialLayout)
	if err != nil {
		// Pool exhaustion skips the draw rather than failing the frame.
		r.limiter.Warn("descriptor-budget", "material descriptor pool exhausted", zap.Error(err))
		return false
	}
	r.writeMaterialSet(fs, set, matOffset, tex)

	pipeline := r.pipelines.forBlendMode(b.BlendMode)
	if pipeline != *boundPipeline {
		vk.CmdBindPipeline(cmd, vk.PipelineBindPointGraphics, pipeline)
		*boundPipeline = pipeline
	}

	vk.CmdBindDescriptorSets(cmd, vk.PipelineBindPointGraphics, r.pipelines.layout,
		1, 1, []vk.DescriptorSet{set}, 0, nil)
	vk.CmdDrawIndexed(cmd, b.IndexCount, 1, b.IndexStart, 0, 0)
	return true
}

func (r *Renderer) writeMaterialSet(fs *frameState, set vk.DescriptorSet, matOffset int, tex *texture.Texture) {
	bufInfo := []vk.DescriptorBufferInfo{{
		Buffer: fs.materials.Handle,
		Offset: vk.DeviceSize(matOffset),
		Range:  materialBytes,
	}}

	colorView := tex.GPU.View
	normalView := colorView
	if tex.NormalMap != nil {
		normalView = tex.NormalMap.View
	}
	colorInfo := []vk.DescriptorImageInfo{{
		Sampler:     r.pipelines.sampler,
		ImageView:   colorView,
		ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
	}}
	normalInfo := []vk.DescriptorImageInfo{{
		Sampler:     r.pipelines.sampler,
		ImageView:   normalView,
		ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
	}}

	writes := []vk.WriteDescriptorSet{
		{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      0,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			PBufferInfo:     bufInfo,
		},
		{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      1,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
			PImageInfo:      colorInfo,
		},
		{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      2,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
			PImageInfo:      normalInfo,
		},
	}
	vk.UpdateDescriptorSets(r.ctx.Device, uint32(len(writes)), writes, 0, nil)
}

// materialBlock packs the per-draw shading parameters. Color-keyed
// batches carry an emissive boost with a slow warm flicker so torch
// and lamp glow reads as fire rather than flat paint.
func (r *Renderer) materialBlock(inst *Instance, b *model.Batch, tex *texture.Texture) [materialBytes]byte {
	var block [materialBytes]byte

	opacity := b.StaticOpacity * inst.FadeIn
	alphaTest := float32(0)
	if b.AlphaTest {
		alphaTest = 0.5
	}
	colorKey := float32(0)
	if b.ColorKey {
		colorKey = 1
	}
	unlit := float32(0)
	if b.Unlit {
		unlit = 1
	}

	emissive := float32(0)
	if b.ColorKey {
		t := float64(time.Since(r.shadeStart)) / float64(time.Second)
		flicker := math.Sin(t*9.3) * math.Sin(t*5.1)
		emissive = emissiveBase + emissiveFlicker*float32(flicker)
	}

	specular := float32(specularDefault)
	if b.Unlit {
		specular = 0
	}

	normalStrength := float32(0)
	pomScale := float32(0)
	if tex != nil && tex.NormalMap != nil {
		normalStrength = 1
		pomScale = pomScaleDefault
	}
	pomSamples := pomSampleCounts[r.quality]

	vals := [16]float32{
		opacity, alphaTest, colorKey, unlit,
		inst.FadeIn, emissive, specular, normalStrength,
		pomScale, pomSamples,
	}
	for i, v := range vals {
		binary.LittleEndian.PutUint32(block[i*4:], math.Float32bits(v))
	}
	return block
}

func writeMat4(buf []byte, m *mgl32.Mat4) {
	for i, v := range m {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
}

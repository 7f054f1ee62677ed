// Package m2 renders placed doodad instances: skeletal animation,
// culling, draw recording and the collision view over the instance set.
package m2

import (
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/wowee/azerite/internal/config"
	"github.com/wowee/azerite/internal/logger"
	"github.com/wowee/azerite/internal/render/model"
	"github.com/wowee/azerite/internal/render/shader"
	"github.com/wowee/azerite/internal/render/texture"
	"github.com/wowee/azerite/internal/render/vkg"
	"github.com/wowee/azerite/internal/world/collision"
	"github.com/wowee/azerite/internal/world/spatial"
)

// Renderer owns the doodad models and instances. One instance per
// scene; not safe for concurrent use except where noted.
type Renderer struct {
	ctx   *vkg.Context
	cfg   config.AnimationConfig
	cache *texture.Cache

	registry  *model.Registry
	instances map[uint32]*Instance
	nextID    uint32
	grid      *spatial.Grid

	idScratch []uint32
	animList  []*Instance

	// Per-model texture overrides with the originals kept for reset.
	overrides map[uint32][]savedBatchTexture

	shaders   *shader.Store
	pipelines *pipelineSet
	frames    []*frameState

	visible []drawItem

	// Detail quality level indexing the parallax sample counts.
	quality    int
	shadeStart time.Time

	rng *rand.Rand

	log     *zap.Logger
	limiter *logger.Limiter
}

type savedBatchTexture struct {
	batch   int
	texture *texture.Texture
	opacity float32
}

// New creates a renderer over an existing model registry and texture
// cache. ctx and shaders may be nil in headless tests; the draw path is
// then unavailable.
func New(ctx *vkg.Context, shaders *shader.Store, registry *model.Registry, cache *texture.Cache, cfg config.AnimationConfig) *Renderer {
	return &Renderer{
		ctx:        ctx,
		cfg:        cfg,
		cache:      cache,
		registry:   registry,
		instances:  make(map[uint32]*Instance),
		grid:       spatial.NewGrid(),
		overrides:  make(map[uint32][]savedBatchTexture),
		shaders:    shaders,
		quality:    2,
		shadeStart: time.Now(),
		rng:        rand.New(rand.NewSource(1)),
		log:        logger.Named("m2"),
		limiter:    logger.NewLimiter(5),
	}
}

// Registry exposes the model registry for loaders.
func (r *Renderer) Registry() *model.Registry {
	return r.registry
}

// CollectShapes implements collision.Source over the instance grid.
func (r *Renderer) CollectShapes(minX, minY, maxX, maxY float32, out []collision.Shape) []collision.Shape {
	r.idScratch = r.grid.Gather(minX, minY, maxX, maxY, r.idScratch[:0])
	for _, id := range r.idScratch {
		inst, ok := r.instances[id]
		if !ok {
			continue
		}
		m := r.registry.Get(inst.ModelID)
		if m == nil {
			continue
		}
		out = append(out, collision.Shape{
			ID:    id,
			World: inst.WorldBounds,
			Model: inst.ModelMat,
			Inv:   inst.InvModelMat,
			Local: m.Bounds,
			Scale: inst.Scale,
			Class: m.Class,
			Mesh:  m.Collision,
		})
	}
	return out
}

// CleanupUnusedModels drops models no instance references and returns
// how many were removed. Call with the device idle.
func (r *Renderer) CleanupUnusedModels() int {
	used := make(map[uint32]struct{}, len(r.instances))
	for _, inst := range r.instances {
		used[inst.ModelID] = struct{}{}
	}

	var drop []uint32
	r.registry.All(func(m *model.Model) {
		if _, ok := used[m.ID]; !ok {
			drop = append(drop, m.ID)
		}
	})
	for _, id := range drop {
		r.registry.Remove(id)
		delete(r.overrides, id)
	}
	if len(drop) > 0 {
		r.log.Info("unused models removed", zap.Int("count", len(drop)))
	}
	return len(drop)
}

// SetModelTexture swaps the texture of every batch of a model that uses
// the given slot. The original binding is kept for ResetModelTexture.
func (r *Renderer) SetModelTexture(modelID uint32, slot int, path string) bool {
	m := r.registry.Get(modelID)
	if m == nil || slot < 0 || slot >= len(m.TextureSlots) {
		return false
	}

	tex := r.cache.Load(path)
	saved := r.overrides[modelID]
	for i := range m.Batches {
		b := &m.Batches[i]
		bslot, ok := batchSlot(m, b)
		if !ok || bslot != slot {
			continue
		}
		if !hasSavedBatch(saved, i) {
			saved = append(saved, savedBatchTexture{batch: i, texture: b.Texture, opacity: b.StaticOpacity})
		}
		b.Texture = tex
		if tex != r.cache.White() {
			b.StaticOpacity = 1
		}
	}
	r.overrides[modelID] = saved
	return true
}

// SetInstanceTexture overrides the texture one instance draws for every
// batch bound to the given slot. Other instances of the model keep
// their textures. Fails when the path does not resolve to a real
// texture.
func (r *Renderer) SetInstanceTexture(id uint32, slot int, path string) bool {
	return r.setInstanceTexture(id, -1, slot, path)
}

// SetInstanceGroupTexture is SetInstanceTexture restricted to batches
// of one skin group (submesh id / 100).
func (r *Renderer) SetInstanceGroupTexture(id uint32, group int16, slot int, path string) bool {
	if group < 0 {
		return false
	}
	return r.setInstanceTexture(id, group, slot, path)
}

func (r *Renderer) setInstanceTexture(id uint32, group int16, slot int, path string) bool {
	inst, ok := r.instances[id]
	if !ok {
		return false
	}
	m := r.registry.Get(inst.ModelID)
	if m == nil || slot < 0 || slot >= len(m.TextureSlots) {
		return false
	}

	tex := r.cache.Load(path)
	if tex == nil || tex == r.cache.White() {
		return false
	}

	for i := range inst.texOverrides {
		o := &inst.texOverrides[i]
		if o.slot == slot && o.group == group {
			o.tex = tex
			return true
		}
	}
	inst.texOverrides = append(inst.texOverrides, instanceTexOverride{
		slot:  slot,
		group: group,
		tex:   tex,
	})
	return true
}

// ClearInstanceTextures drops every per-instance texture override.
func (r *Renderer) ClearInstanceTextures(id uint32) {
	if inst, ok := r.instances[id]; ok {
		inst.texOverrides = nil
	}
}

// SetDetailQuality selects the shading detail level, 0 (lowest) to 3.
// Out-of-range values clamp.
func (r *Renderer) SetDetailQuality(q int) {
	if q < 0 {
		q = 0
	}
	if q > len(pomSampleCounts)-1 {
		q = len(pomSampleCounts) - 1
	}
	r.quality = q
}

// ResetModelTexture restores every batch texture overridden on a model.
// Batches whose original texture is gone fall back to white.
func (r *Renderer) ResetModelTexture(modelID uint32) {
	m := r.registry.Get(modelID)
	saved, ok := r.overrides[modelID]
	if m == nil || !ok {
		return
	}
	for _, s := range saved {
		if s.batch >= len(m.Batches) {
			continue
		}
		b := &m.Batches[s.batch]
		if s.texture != nil {
			b.Texture = s.texture
		} else {
			b.Texture = r.cache.White()
		}
		b.StaticOpacity = s.opacity
	}
	delete(r.overrides, modelID)
}

// Clear removes every instance. Models stay loaded.
func (r *Renderer) Clear() {
	r.instances = make(map[uint32]*Instance)
	r.grid.Clear()
}

// Destroy releases every GPU resource the renderer owns. The device
// must be idle.
func (r *Renderer) Destroy() {
	r.Clear()
	for _, f := range r.frames {
		f.destroy(r.ctx)
	}
	r.frames = nil
	if r.pipelines != nil {
		r.pipelines.destroy(r.ctx)
		r.pipelines = nil
	}
	r.registry.Clear()
}

func (r *Renderer) variationDelay() float32 {
	return 3 + r.rng.Float32()*8
}

func batchSlot(m *model.Model, b *model.Batch) (int, bool) {
	if int(b.TextureIndex) >= len(m.TextureLookup) {
		return 0, false
	}
	slot := int(m.TextureLookup[b.TextureIndex])
	if slot >= len(m.TextureSlots) {
		return 0, false
	}
	return slot, true
}

func hasSavedBatch(saved []savedBatchTexture, batch int) bool {
	for _, s := range saved {
		if s.batch == batch {
			return true
		}
	}
	return false
}

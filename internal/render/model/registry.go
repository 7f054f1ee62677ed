package model

import (
	"go.uber.org/zap"

	"github.com/pkg/errors"
	vk "github.com/goki/vulkan"

	"github.com/wowee/azerite/internal/logger"
	"github.com/wowee/azerite/internal/render/anim"
	"github.com/wowee/azerite/internal/render/texture"
	"github.com/wowee/azerite/internal/render/vkg"
)

// Registry owns the loaded models. It enforces a global model-count
// ceiling and rejects duplicate ids; there is no eviction.
type Registry struct {
	ctx   *vkg.Context
	cache *texture.Cache
	limit int

	// DefaultDetailTexture backs ground-clutter batches whose own
	// texture failed to load.
	DefaultDetailTexture string

	models map[uint32]*Model

	// uploadBuf is replaced in tests to avoid touching the GPU.
	uploadBuf func(data []byte, usage vk.BufferUsageFlags) (*vkg.Buffer, error)

	log     *zap.Logger
	limiter *logger.Limiter
}

// NewRegistry creates a registry holding at most limit models.
func NewRegistry(ctx *vkg.Context, cache *texture.Cache, limit int) *Registry {
	r := &Registry{
		ctx:    ctx,
		cache:  cache,
		limit:  limit,
		models: make(map[uint32]*Model),
		log:     logger.Named("models"),
		limiter: logger.NewLimiter(5),
	}
	r.uploadBuf = func(data []byte, usage vk.BufferUsageFlags) (*vkg.Buffer, error) {
		return vkg.NewDeviceBuffer(ctx, data, usage)
	}
	return r
}

// SetBufferUploader overrides the GPU buffer upload function. Tests use
// this to run the registry without a device.
func (r *Registry) SetBufferUploader(fn func(data []byte, usage vk.BufferUsageFlags) (*vkg.Buffer, error)) {
	r.uploadBuf = fn
}

// Has reports whether a model id is loaded.
func (r *Registry) Has(id uint32) bool {
	_, ok := r.models[id]
	return ok
}

// Get returns the loaded model, or nil.
func (r *Registry) Get(id uint32) *Model {
	return r.models[id]
}

// Count returns the number of loaded models.
func (r *Registry) Count() int {
	return len(r.models)
}

// All iterates over loaded models.
func (r *Registry) All(fn func(*Model)) {
	for _, m := range r.models {
		fn(m)
	}
}

// Load registers a parsed model under id: classify, interleave, upload
// vertex and index buffers, resolve batch textures and derive each
// batch's static material fields. Duplicate ids and a full registry are
// rejected without eviction.
func (r *Registry) Load(data *Data, id uint32) error {
	if _, dup := r.models[id]; dup {
		return errors.Errorf("model %d already loaded", id)
	}
	if r.limit > 0 && len(r.models) >= r.limit {
		r.limiter.Warn("model-limit", "model limit reached, rejecting load",
			zap.Uint32("modelId", id), zap.Int("limit", r.limit))
		return errors.Errorf("model limit %d reached", r.limit)
	}
	if len(data.Vertices) == 0 || len(data.Indices) == 0 {
		return errors.Errorf("model %d has no geometry", id)
	}
	for _, idx := range data.Indices {
		if int(idx) >= len(data.Vertices) {
			return errors.Errorf("model %d: index %d out of range", id, idx)
		}
	}

	bounds := TightBounds(data.Vertices)

	m := &Model{
		ID:               id,
		Name:             data.Name,
		IndexCount:       uint32(len(data.Indices)),
		Batches:          append([]Batch(nil), data.Batches...),
		Bones:            data.Bones,
		Sequences:        data.Sequences,
		GlobalDurations:  data.GlobalDurations,
		TextureSlots:     data.TextureSlots,
		TextureLookup:    data.TextureLookup,
		Attachments:      data.Attachments,
		AttachmentLookup: data.AttachmentLookup,
		Bounds:           bounds,
		BoundRadius:      bounds.Radius(),
		Class:            Classify(data.Name, bounds),
		Collision:        NewCollisionMesh(data.CollisionVerts, data.CollisionIndices),
	}

	m.HasAnimation = hasKeyedBones(data.Bones)
	m.IdleVariations = idleVariations(data.Sequences)

	vbuf, err := r.uploadBuf(InterleaveVertices(data.Vertices), vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit))
	if err != nil {
		return errors.Wrapf(err, "model %d vertex upload", id)
	}
	ibuf, err := r.uploadBuf(IndexBytes(data.Indices), vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit))
	if err != nil {
		vbuf.Destroy(r.ctx)
		return errors.Wrapf(err, "model %d index upload", id)
	}
	m.VertexBuf = vbuf
	m.IndexBuf = ibuf

	r.resolveTextures(m)

	r.models[id] = m
	r.log.Debug("model loaded",
		zap.Uint32("id", id),
		zap.String("name", m.Name),
		zap.Int("batches", len(m.Batches)),
		zap.Int("bones", len(m.Bones)))
	return nil
}

// resolveTextures binds each batch to its cache texture via the lookup
// table and fills the static material fields.
func (r *Registry) resolveTextures(m *Model) {
	white := r.cache.White()
	m.SlotTextures = make([]*texture.Texture, len(m.TextureSlots))
	for slot, path := range m.TextureSlots {
		if path != "" {
			m.SlotTextures[slot] = r.cache.Load(path)
		}
	}

	for i := range m.Batches {
		b := &m.Batches[i]

		tex := white
		failed := false
		if slot, ok := lookupSlot(m, b.TextureIndex); ok && m.SlotTextures[slot] != nil {
			tex = m.SlotTextures[slot]
			failed = tex == white
		}

		b.Texture = tex
		b.StaticOpacity = 1
		b.AlphaTest = b.BlendMode == 1 && tex.HasAlpha
		b.ColorKey = tex.ColorKeyBlack
		b.Unlit = b.MaterialFlags&MaterialFlagUnlit != 0

		if failed {
			if m.Class.GroundDetail && r.DefaultDetailTexture != "" {
				b.Texture = r.cache.Load(r.DefaultDetailTexture)
			} else {
				// Skip the batch instead of drawing white geometry.
				b.StaticOpacity = 0
			}
		}
	}
}

// Remove destroys a model's GPU buffers and unregisters it.
func (r *Registry) Remove(id uint32) {
	m, ok := r.models[id]
	if !ok {
		return
	}
	m.VertexBuf.Destroy(r.ctx)
	m.IndexBuf.Destroy(r.ctx)
	delete(r.models, id)
}

// Clear removes every model.
func (r *Registry) Clear() {
	for id := range r.models {
		r.Remove(id)
	}
}

func lookupSlot(m *Model, textureIndex uint16) (int, bool) {
	if int(textureIndex) >= len(m.TextureLookup) {
		return 0, false
	}
	slot := int(m.TextureLookup[textureIndex])
	if slot >= len(m.TextureSlots) {
		return 0, false
	}
	return slot, true
}

func hasKeyedBones(bones []anim.Bone) bool {
	for i := range bones {
		b := &bones[i]
		for _, k := range b.Translation.Keys {
			if len(k.Times) > 1 {
				return true
			}
		}
		for _, k := range b.Rotation.Keys {
			if len(k.Times) > 1 {
				return true
			}
		}
		for _, k := range b.Scale.Keys {
			if len(k.Times) > 1 {
				return true
			}
		}
	}
	return false
}

// idleVariations collects the sequence indices sharing animation id 0,
// the idle pool the variation scheduler draws from.
func idleVariations(seqs []Sequence) []int {
	var out []int
	for i, s := range seqs {
		if s.AnimID == 0 {
			out = append(out, i)
		}
	}
	return out
}

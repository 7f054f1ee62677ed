// Package model holds the parsed renderable model data the registry
// uploads to the GPU: geometry, batches, skeletons, textures and
// collision meshes.
package model

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/wowee/azerite/internal/render/anim"
	"github.com/wowee/azerite/internal/render/texture"
	"github.com/wowee/azerite/internal/render/vkg"
	"github.com/wowee/azerite/pkg/mathx"
)

// Vertex is one skinned model vertex before interleaving.
type Vertex struct {
	Position    mgl32.Vec3
	Normal      mgl32.Vec3
	UV0         mgl32.Vec2
	UV1         mgl32.Vec2
	BoneWeights [4]uint8
	BoneIndices [4]uint8
	Tangent     mgl32.Vec4
}

// VertexStride is the interleaved byte size of one vertex:
// position(12) + normal(12) + uv0(8) + uv1(8) + weights(4) +
// indices(4) + tangent(16).
const VertexStride = 64

// Batch draws a contiguous index range with one material.
type Batch struct {
	IndexStart    uint32
	IndexCount    uint32
	MaterialIndex uint16
	BlendMode     uint16
	MaterialFlags uint16
	TextureIndex  uint16 // into TextureLookup
	TextureCount  uint16 // combo entries, at most 8
	LOD           uint8
	SubmeshID     uint16

	// Resolved at load time.
	Texture       *texture.Texture
	StaticOpacity float32
	AlphaTest     bool
	ColorKey      bool
	Unlit         bool
}

// Material flag bits carried from the source data.
const (
	MaterialFlagUnlit    = 0x01
	MaterialFlagTwoSided = 0x04
)

// Sequence is one named animation of a model.
type Sequence struct {
	AnimID    uint16
	Duration  uint32 // ms
	Loop      bool
	MoveSpeed float32
}

// Attachment exposes a named point on the skeleton.
type Attachment struct {
	ID     uint16
	Bone   uint16
	Offset mgl32.Vec3
}

// Data is the parsed model as delivered by the asset provider, before
// GPU upload.
type Data struct {
	Name             string
	Vertices         []Vertex
	Indices          []uint16
	Batches          []Batch
	Bones            []anim.Bone
	Sequences        []Sequence
	GlobalDurations  []uint32
	TextureSlots     []string // texture paths by slot
	TextureLookup    []uint16 // batch.TextureIndex indexes here
	Attachments      []Attachment
	AttachmentLookup []int16 // attachment id -> Attachments index, -1 if absent
	CollisionVerts   []mgl32.Vec3
	CollisionIndices []uint16
}

// Model is a registered renderable with uploaded GPU buffers.
type Model struct {
	ID   uint32
	Name string

	VertexBuf  *vkg.Buffer
	IndexBuf   *vkg.Buffer
	IndexCount uint32

	Batches         []Batch
	Bones           []anim.Bone
	Sequences       []Sequence
	GlobalDurations []uint32

	TextureSlots  []string
	TextureLookup []uint16
	SlotTextures  []*texture.Texture // resolved per slot, nil for unresolved

	Attachments      []Attachment
	AttachmentLookup []int16

	Collision *CollisionMesh

	// Tight local bounds from actual vertex positions.
	Bounds      mathx.AABB
	BoundRadius float32

	Class        Classification
	HasAnimation bool

	// Idle variation sequences share animation id 0.
	IdleVariations []int
}

// InterleaveVertices packs vertices into the GPU layout.
func InterleaveVertices(verts []Vertex) []byte {
	buf := make([]byte, 0, len(verts)*VertexStride)
	for i := range verts {
		buf = appendVertex(buf, &verts[i])
	}
	return buf
}

func appendVertex(buf []byte, v *Vertex) []byte {
	buf = appendF32(buf, v.Position.X(), v.Position.Y(), v.Position.Z())
	buf = appendF32(buf, v.Normal.X(), v.Normal.Y(), v.Normal.Z())
	buf = appendF32(buf, v.UV0.X(), v.UV0.Y())
	buf = appendF32(buf, v.UV1.X(), v.UV1.Y())
	buf = append(buf, v.BoneWeights[0], v.BoneWeights[1], v.BoneWeights[2], v.BoneWeights[3])
	buf = append(buf, v.BoneIndices[0], v.BoneIndices[1], v.BoneIndices[2], v.BoneIndices[3])
	buf = appendF32(buf, v.Tangent.X(), v.Tangent.Y(), v.Tangent.Z(), v.Tangent.W())
	return buf
}

func appendF32(buf []byte, vals ...float32) []byte {
	for _, v := range vals {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
	}
	return buf
}

// IndexBytes converts 16-bit indices to their byte representation.
func IndexBytes(indices []uint16) []byte {
	buf := make([]byte, 0, len(indices)*2)
	for _, idx := range indices {
		buf = binary.LittleEndian.AppendUint16(buf, idx)
	}
	return buf
}

// TightBounds computes the bounding box of actual vertex positions.
func TightBounds(verts []Vertex) mathx.AABB {
	if len(verts) == 0 {
		return mathx.AABB{}
	}
	b := mathx.AABB{Min: verts[0].Position, Max: verts[0].Position}
	for i := 1; i < len(verts); i++ {
		b.Extend(verts[i].Position)
	}
	return b
}

// Package collision answers floor-height, wall-push and raycast queries
// against placed doodad instances.
package collision

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/wowee/azerite/internal/render/model"
	"github.com/wowee/azerite/pkg/mathx"
)

// Shape is one placed instance as the collision engine sees it: world
// bounds for the broad phase plus the transforms and mesh for the
// narrow phase.
type Shape struct {
	ID    uint32
	World mathx.AABB
	Model mgl32.Mat4
	Inv   mgl32.Mat4
	Local mathx.AABB
	Scale float32
	Class model.Classification
	Mesh  *model.CollisionMesh
}

// Source supplies candidate shapes overlapping a world XY rectangle.
// The instance engine implements it over its spatial grid.
type Source interface {
	CollectShapes(minX, minY, maxX, maxY float32, out []Shape) []Shape
}

// toLocal transforms a world point into the shape's local space.
func (s *Shape) toLocal(p mgl32.Vec3) mgl32.Vec3 {
	return s.Inv.Mul4x1(p.Vec4(1)).Vec3()
}

// toWorld transforms a local point into world space.
func (s *Shape) toWorld(p mgl32.Vec3) mgl32.Vec3 {
	return s.Model.Mul4x1(p.Vec4(1)).Vec3()
}

// localRadius converts a world-space radius into local units.
func (s *Shape) localRadius(r float32) float32 {
	if s.Scale > 0 {
		return r / s.Scale
	}
	return r
}

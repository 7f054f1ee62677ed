package model

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/wowee/azerite/pkg/mathx"
)

// Triangle slope thresholds on the local face normal's z component.
// Floors are walkable surfaces; walls block horizontal movement. The
// bands overlap so steep ramps participate in both query kinds.
const (
	FloorNormalZ = 0.35
	WallNormalZ  = 0.65
)

// CollisionCellSize is the XY bucket size of the per-mesh triangle grid,
// in model-local units.
const CollisionCellSize = 4.0

// CollisionMesh is a model's dedicated collision geometry with triangles
// pre-bucketed into a local XY grid for floor and wall queries.
type CollisionMesh struct {
	Vertices []mgl32.Vec3
	Indices  []uint16
	TriCount int

	// Per-triangle z extents, used to cheaply reject by height.
	TriMinZ []float32
	TriMaxZ []float32

	gridOriginX float32
	gridOriginY float32
	gridCellsX  int
	gridCellsY  int
	cellFloor   [][]uint32
	cellWall    [][]uint32
}

// NewCollisionMesh builds the bucketed mesh. Returns nil when the
// geometry is empty or malformed.
func NewCollisionMesh(verts []mgl32.Vec3, indices []uint16) *CollisionMesh {
	if len(verts) == 0 || len(indices) < 3 {
		return nil
	}
	for _, idx := range indices {
		if int(idx) >= len(verts) {
			return nil
		}
	}

	m := &CollisionMesh{
		Vertices: verts,
		Indices:  indices,
		TriCount: len(indices) / 3,
	}
	m.build()
	return m
}

func (m *CollisionMesh) build() {
	bounds := mathx.AABB{Min: m.Vertices[0], Max: m.Vertices[0]}
	for _, v := range m.Vertices[1:] {
		bounds.Extend(v)
	}

	m.gridOriginX = bounds.Min.X()
	m.gridOriginY = bounds.Min.Y()
	m.gridCellsX = cellsFor(bounds.Max.X() - bounds.Min.X())
	m.gridCellsY = cellsFor(bounds.Max.Y() - bounds.Min.Y())

	cellCount := m.gridCellsX * m.gridCellsY
	m.cellFloor = make([][]uint32, cellCount)
	m.cellWall = make([][]uint32, cellCount)
	m.TriMinZ = make([]float32, m.TriCount)
	m.TriMaxZ = make([]float32, m.TriCount)

	for tri := 0; tri < m.TriCount; tri++ {
		a, b, c := m.Triangle(tri)

		n := mathx.TriangleNormal(a, b, c)
		l := n.Len()
		if l == 0 {
			m.TriMinZ[tri] = a.Z()
			m.TriMaxZ[tri] = a.Z()
			continue
		}
		nz := float32(math.Abs(float64(n.Z() / l)))

		m.TriMinZ[tri] = min3(a.Z(), b.Z(), c.Z())
		m.TriMaxZ[tri] = max3(a.Z(), b.Z(), c.Z())

		minCX, maxCX := m.cellRangeX(min3(a.X(), b.X(), c.X()), max3(a.X(), b.X(), c.X()))
		minCY, maxCY := m.cellRangeY(min3(a.Y(), b.Y(), c.Y()), max3(a.Y(), b.Y(), c.Y()))

		for cy := minCY; cy <= maxCY; cy++ {
			for cx := minCX; cx <= maxCX; cx++ {
				cell := cy*m.gridCellsX + cx
				if nz >= FloorNormalZ {
					m.cellFloor[cell] = append(m.cellFloor[cell], uint32(tri))
				}
				if nz < WallNormalZ {
					m.cellWall[cell] = append(m.cellWall[cell], uint32(tri))
				}
			}
		}
	}
}

// Triangle returns the three corners of triangle tri.
func (m *CollisionMesh) Triangle(tri int) (mgl32.Vec3, mgl32.Vec3, mgl32.Vec3) {
	i := tri * 3
	return m.Vertices[m.Indices[i]], m.Vertices[m.Indices[i+1]], m.Vertices[m.Indices[i+2]]
}

// FloorTrisInRange appends the ids of floor triangles whose buckets
// overlap the local XY rectangle.
func (m *CollisionMesh) FloorTrisInRange(minX, minY, maxX, maxY float32, out []uint32) []uint32 {
	return m.trisInRange(m.cellFloor, minX, minY, maxX, maxY, out)
}

// WallTrisInRange appends the ids of wall triangles whose buckets
// overlap the local XY rectangle.
func (m *CollisionMesh) WallTrisInRange(minX, minY, maxX, maxY float32, out []uint32) []uint32 {
	return m.trisInRange(m.cellWall, minX, minY, maxX, maxY, out)
}

func (m *CollisionMesh) trisInRange(cells [][]uint32, minX, minY, maxX, maxY float32, out []uint32) []uint32 {
	minCX, maxCX := m.cellRangeX(minX, maxX)
	minCY, maxCY := m.cellRangeY(minY, maxY)

	seen := make(map[uint32]struct{}, 16)
	for cy := minCY; cy <= maxCY; cy++ {
		for cx := minCX; cx <= maxCX; cx++ {
			for _, tri := range cells[cy*m.gridCellsX+cx] {
				if _, dup := seen[tri]; dup {
					continue
				}
				seen[tri] = struct{}{}
				out = append(out, tri)
			}
		}
	}
	return out
}

func (m *CollisionMesh) cellRangeX(lo, hi float32) (int, int) {
	return clampCell(int((lo-m.gridOriginX)/CollisionCellSize), m.gridCellsX),
		clampCell(int((hi-m.gridOriginX)/CollisionCellSize), m.gridCellsX)
}

func (m *CollisionMesh) cellRangeY(lo, hi float32) (int, int) {
	return clampCell(int((lo-m.gridOriginY)/CollisionCellSize), m.gridCellsY),
		clampCell(int((hi-m.gridOriginY)/CollisionCellSize), m.gridCellsY)
}

// Valid reports whether the mesh has triangles.
func (m *CollisionMesh) Valid() bool {
	return m != nil && m.TriCount > 0
}

func cellsFor(extent float32) int {
	n := int(extent/CollisionCellSize) + 1
	if n < 1 {
		n = 1
	}
	return n
}

func clampCell(c, n int) int {
	if c < 0 {
		return 0
	}
	if c >= n {
		return n - 1
	}
	return c
}

func min3(a, b, c float32) float32 {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

func max3(a, b, c float32) float32 {
	if b > a {
		a = b
	}
	if c > a {
		a = c
	}
	return a
}

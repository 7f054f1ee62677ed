// Package spatial buckets instances into a coarse world-space XY grid
// so collision and culling queries touch a handful of candidates
// instead of every placed instance.
package spatial

import (
	"github.com/wowee/azerite/pkg/mathx"
)

// CellSize is the world-space XY extent of one grid cell.
const CellSize = 64.0

type cellKey struct {
	x, y int32
}

// Grid is a rebuild-on-demand spatial index over instance ids. Mutations
// mark it dirty; the next query rebuilds the buckets in one pass.
type Grid struct {
	bounds map[uint32]mathx.AABB
	cells  map[cellKey][]uint32
	dirty  bool
}

// NewGrid returns an empty grid.
func NewGrid() *Grid {
	return &Grid{
		bounds: make(map[uint32]mathx.AABB),
		cells:  make(map[cellKey][]uint32),
	}
}

// Insert registers an instance's world bounds.
func (g *Grid) Insert(id uint32, b mathx.AABB) {
	g.bounds[id] = b
	g.dirty = true
}

// Update replaces an instance's world bounds.
func (g *Grid) Update(id uint32, b mathx.AABB) {
	g.Insert(id, b)
}

// Remove unregisters an instance.
func (g *Grid) Remove(id uint32) {
	if _, ok := g.bounds[id]; !ok {
		return
	}
	delete(g.bounds, id)
	g.dirty = true
}

// Len returns the number of indexed instances.
func (g *Grid) Len() int {
	return len(g.bounds)
}

// Clear drops every instance.
func (g *Grid) Clear() {
	g.bounds = make(map[uint32]mathx.AABB)
	g.cells = make(map[cellKey][]uint32)
	g.dirty = false
}

// Bounds returns the stored world bounds for id.
func (g *Grid) Bounds(id uint32) (mathx.AABB, bool) {
	b, ok := g.bounds[id]
	return b, ok
}

// Gather appends the ids of instances whose cells overlap the XY
// rectangle, deduplicated. When the bucketed walk produces nothing but
// instances exist, it falls back to a linear scan of stored bounds so
// degenerate placements are never lost.
func (g *Grid) Gather(minX, minY, maxX, maxY float32, out []uint32) []uint32 {
	if len(g.bounds) == 0 {
		return out
	}
	if g.dirty {
		g.rebuild()
	}

	start := len(out)
	seen := make(map[uint32]struct{}, 32)

	loX, hiX := cellIndex(minX), cellIndex(maxX)
	loY, hiY := cellIndex(minY), cellIndex(maxY)
	for cy := loY; cy <= hiY; cy++ {
		for cx := loX; cx <= hiX; cx++ {
			for _, id := range g.cells[cellKey{cx, cy}] {
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}
				out = append(out, id)
			}
		}
	}

	if len(out) == start {
		for id, b := range g.bounds {
			if b.Max.X() < minX || b.Min.X() > maxX ||
				b.Max.Y() < minY || b.Min.Y() > maxY {
				continue
			}
			out = append(out, id)
		}
	}
	return out
}

func (g *Grid) rebuild() {
	for k := range g.cells {
		delete(g.cells, k)
	}
	for id, b := range g.bounds {
		loX, hiX := cellIndex(b.Min.X()), cellIndex(b.Max.X())
		loY, hiY := cellIndex(b.Min.Y()), cellIndex(b.Max.Y())
		for cy := loY; cy <= hiY; cy++ {
			for cx := loX; cx <= hiX; cx++ {
				k := cellKey{cx, cy}
				g.cells[k] = append(g.cells[k], id)
			}
		}
	}
	g.dirty = false
}

func cellIndex(v float32) int32 {
	c := int32(v / CellSize)
	if v < 0 && v != float32(c)*CellSize {
		c--
	}
	return c
}

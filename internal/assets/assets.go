// Package assets loads textures from extracted asset directories on
// disk. It implements the provider interface the texture cache pulls
// from; archive-backed providers live in the embedding application.
package assets

import (
	"bytes"
	"image"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/wowee/azerite/internal/render/texture"
)

// alternate extensions tried when the keyed file is absent. Extracted
// asset dumps usually carry converted images next to the original
// names.
var altExtensions = []string{".png", ".tga"}

// Dir serves textures from one or more root directories. Roots are
// searched in reverse order, so the last added root wins.
type Dir struct {
	mu    sync.RWMutex
	roots []string

	cache  map[string][]byte
	hits   int
	misses int
}

// NewDir returns a provider searching the given roots.
func NewDir(roots ...string) *Dir {
	d := &Dir{cache: make(map[string][]byte)}
	for _, r := range roots {
		d.AddRoot(r)
	}
	return d
}

// AddRoot registers a directory to search.
func (d *Dir) AddRoot(root string) {
	d.mu.Lock()
	d.roots = append(d.roots, root)
	d.mu.Unlock()
}

// LoadTexture resolves key to a decoded RGBA image. Keys may use
// forward or backward slashes.
func (d *Dir) LoadTexture(key string) (*texture.Image, error) {
	data, err := d.load(key)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// Stats returns the byte-cache hit and miss counters.
func (d *Dir) Stats() (hits, misses int) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.hits, d.misses
}

// Clear drops the byte cache.
func (d *Dir) Clear() {
	d.mu.Lock()
	d.cache = make(map[string][]byte)
	d.hits = 0
	d.misses = 0
	d.mu.Unlock()
}

func (d *Dir) load(key string) ([]byte, error) {
	rel := filepath.FromSlash(strings.ReplaceAll(key, "\\", "/"))

	d.mu.Lock()
	if data, ok := d.cache[rel]; ok {
		d.hits++
		d.mu.Unlock()
		return data, nil
	}
	d.misses++
	roots := d.roots
	d.mu.Unlock()

	for i := len(roots) - 1; i >= 0; i-- {
		for _, p := range candidatePaths(filepath.Join(roots[i], rel)) {
			data, err := os.ReadFile(p)
			if err != nil {
				continue
			}
			d.mu.Lock()
			d.cache[rel] = data
			d.mu.Unlock()
			return data, nil
		}
	}
	return nil, errors.Errorf("texture not found: %s", key)
}

// candidatePaths lists the exact path first, then the same name with
// each alternate extension.
func candidatePaths(path string) []string {
	out := []string{path}
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for _, alt := range altExtensions {
		if !strings.EqualFold(ext, alt) {
			out = append(out, base+alt)
		}
	}
	return out
}

// Decode turns an encoded image into a tightly packed RGBA image. PNG
// and true-color TGA are supported.
func Decode(data []byte) (*texture.Image, error) {
	if isTGA(data) {
		return decodeTGA(data)
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "decoding texture")
	}
	return fromStdImage(src), nil
}

func fromStdImage(src image.Image) *texture.Image {
	b := src.Bounds()
	out := texture.NewImage(b.Dx(), b.Dy())
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := src.At(x, y).RGBA()
			out.Pixels[i] = uint8(r >> 8)
			out.Pixels[i+1] = uint8(g >> 8)
			out.Pixels[i+2] = uint8(bl >> 8)
			out.Pixels[i+3] = uint8(a >> 8)
			i += 4
		}
	}
	return out
}

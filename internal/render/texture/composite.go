package texture

import (
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Skin atlas regions for layered character textures. Coordinates are
// defined on a canonical 256x256 atlas and scale linearly with the
// actual canvas size.
const (
	RegionArmUpper = iota
	RegionArmLower
	RegionHand
	RegionTorsoUpper
	RegionTorsoLower
	RegionLegUpper
	RegionLegLower
	RegionFoot
	regionCount
)

type regionRect struct {
	x, y, w, h int
}

// Canonical 256x256 region layout, following the classic character
// component texture sections.
var regionRects = [regionCount]regionRect{
	{0, 0, 128, 64},    // ArmUpper
	{0, 64, 128, 64},   // ArmLower
	{0, 128, 128, 32},  // Hand
	{128, 0, 128, 64},  // TorsoUpper
	{128, 64, 128, 32}, // TorsoLower
	{128, 96, 128, 64}, // LegUpper
	{128, 160, 128, 64}, // LegLower
	{128, 224, 128, 32}, // Foot
}

// Face rows sit in the left column below the hands. They have no region
// index and are reachable only through keywords.
var (
	faceUpperRect = regionRect{0, 160, 128, 32}
	faceLowerRect = regionRect{0, 192, 128, 64}
)

// RegionLayer addresses an overlay by explicit region index.
type RegionLayer struct {
	Region int
	Path   string
}

// regionForKeyword maps a filename keyword to its atlas rect. The
// "pelvis" and "leg" aliases follow the historical component naming:
// pelvis textures cover the upper leg row, plain "leg" the lower.
func regionForKeyword(pathLower string) (regionRect, bool) {
	switch {
	case strings.Contains(pathLower, "pelvis"):
		return regionRects[RegionLegUpper], true
	case strings.Contains(pathLower, "torso"):
		return regionRects[RegionTorsoUpper], true
	case strings.Contains(pathLower, "armupper"):
		return regionRects[RegionArmUpper], true
	case strings.Contains(pathLower, "armlower"):
		return regionRects[RegionArmLower], true
	case strings.Contains(pathLower, "hand"):
		return regionRects[RegionHand], true
	case strings.Contains(pathLower, "faceupper"):
		return faceUpperRect, true
	case strings.Contains(pathLower, "facelower"):
		return faceLowerRect, true
	case strings.Contains(pathLower, "foot"), strings.Contains(pathLower, "feet"):
		return regionRects[RegionFoot], true
	case strings.Contains(pathLower, "legupper"), strings.Contains(pathLower, "leg"):
		return regionRects[RegionLegLower], true
	}
	return regionRect{}, false
}

// CompositeKey derives the deterministic cache key for a layered skin:
// the ordered input paths joined with '|', region layers prefixed by
// their index. Reordering region layers changes the key.
func CompositeKey(basePath string, baseLayers []string, regionLayers []RegionLayer) string {
	var sb strings.Builder
	sb.WriteString("composite|")
	sb.WriteString(NormalizeKey(basePath))
	for _, l := range baseLayers {
		sb.WriteByte('|')
		sb.WriteString(NormalizeKey(l))
	}
	for _, rl := range regionLayers {
		sb.WriteByte('|')
		sb.WriteString(strconv.Itoa(rl.Region))
		sb.WriteByte(':')
		sb.WriteString(NormalizeKey(rl.Path))
	}
	return sb.String()
}

// CompositeWithRegions builds a character skin atlas: the base image,
// then full-canvas or keyword-placed underwear layers, then equipment
// overlays at explicit region indices. The result is cached under the
// deterministic key; rebuilding with the same inputs returns the
// existing pointer unchanged.
func (c *Cache) CompositeWithRegions(basePath string, baseLayers []string, regionLayers []RegionLayer) *Texture {
	key := CompositeKey(basePath, baseLayers, regionLayers)

	if tex := c.Lookup(key); tex != nil {
		return tex
	}

	base, err := c.assets.LoadTexture(NormalizeKey(basePath))
	if err != nil || !base.Valid() {
		c.limiter.Warn(key, "composite base load failed", zap.String("base", basePath), zap.Error(err))
		return c.White()
	}

	canvas := base.Clone()

	// Baked 256x256 skins get a 2x upscale so half-resolution equipment
	// regions land on their usual 512-atlas coordinates.
	if canvas.Width == 256 && canvas.Height == 256 && len(regionLayers) > 0 {
		canvas = ScaleNearest(canvas, 2)
	}

	// Region coordinates are canonical 256; scale with the canvas.
	scale := canvas.Width / 256
	if scale < 1 {
		scale = 1
	}

	for _, layerPath := range baseLayers {
		if layerPath == "" {
			continue
		}
		overlay, err := c.assets.LoadTexture(NormalizeKey(layerPath))
		if err != nil || !overlay.Valid() {
			continue
		}

		if overlay.Width == canvas.Width && overlay.Height == canvas.Height {
			BlendOver(canvas, overlay, 0, 0)
			continue
		}

		if rect, ok := regionForKeyword(NormalizeKey(layerPath)); ok {
			overlay = fitToRect(overlay, rect, scale)
			BlendOver(canvas, overlay, rect.x*scale, rect.y*scale)
		} else {
			// Unknown layer: center it.
			BlendOver(canvas, overlay, (canvas.Width-overlay.Width)/2, (canvas.Height-overlay.Height)/2)
		}
	}

	for _, rl := range regionLayers {
		if rl.Region < 0 || rl.Region >= regionCount {
			continue
		}
		overlay, err := c.assets.LoadTexture(NormalizeKey(rl.Path))
		if err != nil || !overlay.Valid() {
			c.limiter.Warn(rl.Path, "composite region layer load failed", zap.Error(err))
			continue
		}

		rect := regionRects[rl.Region]
		overlay = fitToRect(overlay, rect, scale)
		BlendOver(canvas, overlay, rect.x*scale, rect.y*scale)
	}

	return c.LoadImage(key, canvas)
}

// fitToRect upscales an undersized overlay by the integer ratio between
// the scaled region size and the overlay. Component textures commonly
// ship at half resolution.
func fitToRect(overlay *Image, rect regionRect, scale int) *Image {
	wantW := rect.w * scale
	wantH := rect.h * scale
	if overlay.Width >= wantW || overlay.Height >= wantH {
		return overlay
	}
	if overlay.Width <= 0 {
		return overlay
	}
	ratio := wantW / overlay.Width
	if ratio > 1 && overlay.Width*ratio == wantW && overlay.Height*ratio == wantH {
		return ScaleNearest(overlay, ratio)
	}
	return overlay
}

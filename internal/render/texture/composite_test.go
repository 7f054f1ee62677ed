package texture

import "testing"

func solidImage(w, h int, r, g, b, a byte) *Image {
	img := NewImage(w, h)
	for i := 0; i < w*h; i++ {
		img.Pixels[i*4] = r
		img.Pixels[i*4+1] = g
		img.Pixels[i*4+2] = b
		img.Pixels[i*4+3] = a
	}
	return img
}

func TestCompositeIdempotence(t *testing.T) {
	assets := newFakeAssets()
	assets.images["skin.blp"] = solidImage(512, 512, 120, 90, 60, 255)
	assets.images["under.blp"] = solidImage(512, 512, 255, 255, 255, 40)
	assets.images["torso.blp"] = solidImage(256, 128, 40, 40, 180, 255)
	assets.images["legs.blp"] = solidImage(256, 128, 30, 120, 30, 255)

	c, uploads := newTestCache(assets, 64)

	layers := []RegionLayer{
		{Region: RegionTorsoUpper, Path: "torso.blp"},
		{Region: RegionLegUpper, Path: "legs.blp"},
	}

	first := c.CompositeWithRegions("skin.blp", []string{"under.blp"}, layers)
	second := c.CompositeWithRegions("skin.blp", []string{"under.blp"}, layers)

	if first != second {
		t.Error("identical composite inputs should return the same pointer")
	}
	if *uploads != 1 {
		t.Errorf("expected a single upload, got %d", *uploads)
	}

	// Reordering region layers is a different composite.
	swapped := []RegionLayer{layers[1], layers[0]}
	third := c.CompositeWithRegions("skin.blp", []string{"under.blp"}, swapped)
	if third == first {
		t.Error("reordered region layers should produce a distinct texture")
	}
}

func TestCompositeRegionPlacement(t *testing.T) {
	assets := newFakeAssets()
	assets.images["skin.blp"] = solidImage(512, 512, 10, 10, 10, 255)
	assets.images["torso.blp"] = solidImage(256, 128, 250, 0, 0, 255)

	c, _ := newTestCache(assets, 64)
	c.CompositeWithRegions("skin.blp", nil, []RegionLayer{{Region: RegionTorsoUpper, Path: "torso.blp"}})

	key := CompositeKey("skin.blp", nil, []RegionLayer{{Region: RegionTorsoUpper, Path: "torso.blp"}})
	tex := c.Lookup(key)
	if tex == nil {
		t.Fatal("composite not cached")
	}
	if tex.Width != 512 || tex.Height != 512 {
		t.Fatalf("composite size = %dx%d", tex.Width, tex.Height)
	}
}

func TestCompositeUpscalesSmallBase(t *testing.T) {
	assets := newFakeAssets()
	assets.images["baked.blp"] = solidImage(256, 256, 100, 80, 60, 255)
	assets.images["torso.blp"] = solidImage(128, 64, 250, 0, 0, 255)

	c, _ := newTestCache(assets, 64)
	tex := c.CompositeWithRegions("baked.blp", nil, []RegionLayer{{Region: RegionTorsoUpper, Path: "torso.blp"}})

	if tex.Width != 512 || tex.Height != 512 {
		t.Errorf("256 base with region layers should upscale to 512, got %dx%d", tex.Width, tex.Height)
	}
}

func TestCompositeMissingBaseFallsBack(t *testing.T) {
	assets := newFakeAssets()
	c, _ := newTestCache(assets, 64)

	tex := c.CompositeWithRegions("nope.blp", nil, nil)
	if tex != c.White() {
		t.Error("missing base should return the white fallback")
	}
}

func TestCompositeKeyDeterministic(t *testing.T) {
	a := CompositeKey("Skin.BLP", []string{"Under.BLP"}, []RegionLayer{{Region: 3, Path: "Torso.BLP"}})
	b := CompositeKey("skin.blp", []string{"under.blp"}, []RegionLayer{{Region: 3, Path: "torso.blp"}})
	if a != b {
		t.Errorf("keys should normalize case: %q vs %q", a, b)
	}

	c := CompositeKey("skin.blp", nil, []RegionLayer{{Region: 3, Path: "torso.blp"}, {Region: 5, Path: "legs.blp"}})
	d := CompositeKey("skin.blp", nil, []RegionLayer{{Region: 5, Path: "legs.blp"}, {Region: 3, Path: "torso.blp"}})
	if c == d {
		t.Error("region layer order must affect the key")
	}
}

func TestBlendOver(t *testing.T) {
	dst := solidImage(4, 4, 0, 0, 0, 255)
	src := solidImage(2, 2, 255, 255, 255, 255)

	BlendOver(dst, src, 1, 1)

	// Covered pixel.
	idx := (1*4 + 1) * 4
	if dst.Pixels[idx] != 255 {
		t.Errorf("covered pixel = %d, want 255", dst.Pixels[idx])
	}
	// Untouched pixel.
	if dst.Pixels[0] != 0 {
		t.Errorf("corner pixel = %d, want 0", dst.Pixels[0])
	}

	// Transparent source leaves the destination alone.
	clear := solidImage(2, 2, 255, 0, 0, 0)
	BlendOver(dst, clear, 0, 0)
	if dst.Pixels[0] != 0 {
		t.Error("fully transparent overlay should not change pixels")
	}
}

func TestScaleNearest(t *testing.T) {
	src := NewImage(2, 1)
	// Left pixel red, right pixel green.
	src.Pixels[0] = 255
	src.Pixels[3] = 255
	src.Pixels[5] = 255
	src.Pixels[7] = 255

	dst := ScaleNearest(src, 2)
	if dst.Width != 4 || dst.Height != 2 {
		t.Fatalf("scaled size = %dx%d", dst.Width, dst.Height)
	}

	// First two columns stay red, last two green.
	if dst.Pixels[0] != 255 || dst.Pixels[1] != 0 {
		t.Error("left half should be red")
	}
	lastIdx := (1*4 + 3) * 4
	if dst.Pixels[lastIdx] != 0 || dst.Pixels[lastIdx+1] != 255 {
		t.Error("right half should be green")
	}
}

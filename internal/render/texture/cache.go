package texture

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/wowee/azerite/internal/logger"
	"github.com/wowee/azerite/internal/render/vkg"
)

// AssetProvider loads and decodes a texture by its normalized key.
// The embedding application backs this with its archive reader.
type AssetProvider interface {
	LoadTexture(key string) (*Image, error)
}

// Texture is a cached GPU texture plus the CPU-side hints the draw
// recorder needs. Pointers returned by the cache are stable until the
// cache is cleared.
type Texture struct {
	Key           string
	GPU           *vkg.Image
	Width         int
	Height        int
	HasAlpha      bool
	ColorKeyBlack bool
	NormalMap     *vkg.Image
	bytes         int
}

// maxNegativeEntries bounds the set of keys known to fail loading.
const maxNegativeEntries = 4096

// colorKeyTokens marks textures whose black background should be keyed
// out by the shader, matched against the cache key.
var colorKeyTokens = []string{"flame", "candle", "torch"}

// Cache is an additive texture cache with a byte budget. There is no
// eviction: when an insert would exceed the budget the load fails soft
// and callers get the shared white fallback.
type Cache struct {
	ctx    *vkg.Context
	assets AssetProvider

	mu       sync.Mutex
	entries  map[string]*Texture
	negative map[string]struct{}
	used     int64
	budget   int64
	white    *Texture

	genNormalMaps bool

	// uploadFn is replaced in tests to avoid touching the GPU.
	uploadFn func(img *Image) (*vkg.Image, error)

	log     *zap.Logger
	limiter *logger.Limiter
}

// NewCache creates a cache with budgetMB megabytes of texture memory.
// When genNormalMaps is set, each loaded texture gets a derived
// height/normal map built on the CPU.
func NewCache(ctx *vkg.Context, assets AssetProvider, budgetMB int, genNormalMaps bool) *Cache {
	c := &Cache{
		ctx:           ctx,
		assets:        assets,
		entries:       make(map[string]*Texture),
		negative:      make(map[string]struct{}),
		budget:        int64(budgetMB) * 1024 * 1024,
		genNormalMaps: genNormalMaps,
		log:           logger.Named("texcache"),
		limiter:       logger.NewLimiter(5),
	}
	c.uploadFn = func(img *Image) (*vkg.Image, error) {
		return vkg.NewTextureImage(ctx, uint32(img.Width), uint32(img.Height), img.Pixels)
	}
	return c
}

// SetUploader overrides the GPU upload function. Tests use this to run
// the cache without a device.
func (c *Cache) SetUploader(fn func(img *Image) (*vkg.Image, error)) {
	c.uploadFn = fn
}

// NormalizeKey lowercases a texture path and canonicalizes separators.
func NormalizeKey(path string) string {
	return strings.ToLower(strings.ReplaceAll(path, "\\", "/"))
}

// Load returns the texture for path, loading and uploading it on first
// use. Failed loads and budget overruns return the white fallback.
func (c *Cache) Load(path string) *Texture {
	key := NormalizeKey(path)

	c.mu.Lock()
	defer c.mu.Unlock()

	if tex, ok := c.entries[key]; ok {
		return tex
	}
	if _, bad := c.negative[key]; bad {
		return c.whiteLocked()
	}

	img, err := c.assets.LoadTexture(key)
	if err != nil || !img.Valid() {
		c.markNegativeLocked(key)
		c.limiter.Warn(key, "texture load failed", zap.Error(err))
		return c.whiteLocked()
	}

	return c.insertLocked(key, img)
}

// LoadImage inserts an already-built CPU image under key, used by the
// composite builder. An existing entry for key wins.
func (c *Cache) LoadImage(key string, img *Image) *Texture {
	c.mu.Lock()
	defer c.mu.Unlock()

	if tex, ok := c.entries[key]; ok {
		return tex
	}
	if !img.Valid() {
		c.markNegativeLocked(key)
		return c.whiteLocked()
	}
	return c.insertLocked(key, img)
}

// Lookup returns the cached texture for path without loading, or nil.
func (c *Cache) Lookup(path string) *Texture {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[NormalizeKey(path)]
}

// White returns the shared 1x1 white fallback texture.
func (c *Cache) White() *Texture {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.whiteLocked()
}

// UsedBytes returns the current texture memory footprint.
func (c *Cache) UsedBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.used
}

// Clear destroys every GPU texture and resets the cache. Callers must
// ensure the device is idle.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, tex := range c.entries {
		tex.GPU.Destroy(c.ctx)
		tex.NormalMap.Destroy(c.ctx)
		delete(c.entries, key)
	}
	c.negative = make(map[string]struct{})
	c.used = 0
	if c.white != nil {
		c.white.GPU.Destroy(c.ctx)
		c.white = nil
	}
	c.limiter.Reset()
}

func (c *Cache) insertLocked(key string, img *Image) *Texture {
	size := int64(len(img.Pixels))
	normalSize := int64(0)
	if c.genNormalMaps {
		normalSize = size
	}

	if c.budget > 0 && c.used+size+normalSize > c.budget {
		c.markNegativeLocked(key)
		c.limiter.Warn("budget", "texture budget exceeded, using white fallback",
			zap.String("texture", key),
			zap.Int64("usedBytes", c.used),
			zap.Int64("budgetBytes", c.budget))
		return c.whiteLocked()
	}

	gpu, err := c.uploadFn(img)
	if err != nil {
		c.markNegativeLocked(key)
		c.limiter.Error(key, "texture upload failed", zap.Error(err))
		return c.whiteLocked()
	}

	tex := &Texture{
		Key:           key,
		GPU:           gpu,
		Width:         img.Width,
		Height:        img.Height,
		HasAlpha:      img.HasTranslucency(),
		ColorKeyBlack: colorKeyHint(key),
		bytes:         int(size),
	}

	if c.genNormalMaps {
		nm := GenerateNormalMap(img)
		if gpuNM, err := c.uploadFn(nm); err == nil {
			tex.NormalMap = gpuNM
			tex.bytes += len(nm.Pixels)
		}
	}

	c.entries[key] = tex
	c.used += int64(tex.bytes)
	return tex
}

func (c *Cache) whiteLocked() *Texture {
	if c.white == nil {
		img := WhiteImage()
		gpu, err := c.uploadFn(img)
		if err != nil {
			logger.Error("white fallback upload failed", zap.Error(err))
		}
		c.white = &Texture{Key: "<white>", GPU: gpu, Width: 1, Height: 1, bytes: 4}
	}
	return c.white
}

func (c *Cache) markNegativeLocked(key string) {
	if len(c.negative) >= maxNegativeEntries {
		// Drop the set rather than growing it without bound.
		c.negative = make(map[string]struct{})
	}
	c.negative[key] = struct{}{}
}

func colorKeyHint(key string) bool {
	for _, tok := range colorKeyTokens {
		if strings.Contains(key, tok) {
			return true
		}
	}
	return false
}

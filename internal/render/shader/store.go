// Package shader loads compiled SPIR-V modules from an embedded or
// on-disk filesystem and caches the resulting Vulkan shader modules.
package shader

import (
	"encoding/binary"
	"io/fs"
	"sync"

	"github.com/pkg/errors"
	vk "github.com/goki/vulkan"

	"github.com/wowee/azerite/internal/render/vkg"
)

// Store caches shader modules by name. Names are paths within the
// backing filesystem, e.g. "m2.vert.spv".
type Store struct {
	ctx *vkg.Context
	fsys fs.FS

	mu      sync.Mutex
	modules map[string]vk.ShaderModule
}

// NewStore creates a Store reading SPIR-V binaries from fsys.
func NewStore(ctx *vkg.Context, fsys fs.FS) *Store {
	return &Store{
		ctx:     ctx,
		fsys:    fsys,
		modules: make(map[string]vk.ShaderModule),
	}
}

// Module returns the shader module for name, loading and creating it on
// first use.
func (s *Store) Module(name string) (vk.ShaderModule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if mod, ok := s.modules[name]; ok {
		return mod, nil
	}

	code, err := fs.ReadFile(s.fsys, name)
	if err != nil {
		return vk.NullShaderModule, errors.Wrapf(err, "reading shader %s", name)
	}
	if len(code) == 0 || len(code)%4 != 0 {
		return vk.NullShaderModule, errors.Errorf("shader %s: invalid SPIR-V size %d", name, len(code))
	}

	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}

	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(code)),
		PCode:    words,
	}

	var mod vk.ShaderModule
	if res := vk.CreateShaderModule(s.ctx.Device, &createInfo, nil, &mod); res != vk.Success {
		return vk.NullShaderModule, errors.Errorf("vkCreateShaderModule %s failed: %d", name, res)
	}

	s.modules[name] = mod
	return mod, nil
}

// Destroy releases every cached module.
func (s *Store) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, mod := range s.modules {
		vk.DestroyShaderModule(s.ctx.Device, mod, nil)
		delete(s.modules, name)
	}
}

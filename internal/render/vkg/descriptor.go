package vkg

import (
	"github.com/pkg/errors"
	vk "github.com/goki/vulkan"
)

// DescriptorAllocator wraps a descriptor pool sized for per-frame
// transient sets. Reset drops every set allocated from it at once.
type DescriptorAllocator struct {
	Pool vk.DescriptorPool
}

// NewDescriptorAllocator creates a pool holding maxSets sets with the
// given per-type capacities.
func NewDescriptorAllocator(ctx *Context, maxSets uint32, sizes []vk.DescriptorPoolSize) (*DescriptorAllocator, error) {
	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       maxSets,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}

	var pool vk.DescriptorPool
	if res := vk.CreateDescriptorPool(ctx.Device, &poolInfo, nil, &pool); res != vk.Success {
		return nil, errors.Errorf("vkCreateDescriptorPool failed: %d", res)
	}

	return &DescriptorAllocator{Pool: pool}, nil
}

// Allocate returns one descriptor set of the given layout, or an error
// when the pool is exhausted. Callers treat exhaustion as a skip, not a
// fatal condition.
func (d *DescriptorAllocator) Allocate(ctx *Context, layout vk.DescriptorSetLayout) (vk.DescriptorSet, error) {
	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     d.Pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout},
	}

	sets := make([]vk.DescriptorSet, 1)
	if res := vk.AllocateDescriptorSets(ctx.Device, &allocInfo, &sets[0]); res != vk.Success {
		return vk.NullDescriptorSet, errors.Errorf("vkAllocateDescriptorSets failed: %d", res)
	}
	return sets[0], nil
}

// Reset returns every allocated set to the pool.
func (d *DescriptorAllocator) Reset(ctx *Context) {
	vk.ResetDescriptorPool(ctx.Device, d.Pool, 0)
}

// Destroy releases the pool and all sets allocated from it.
func (d *DescriptorAllocator) Destroy(ctx *Context) {
	if d == nil || d.Pool == vk.NullDescriptorPool {
		return
	}
	vk.DestroyDescriptorPool(ctx.Device, d.Pool, nil)
	d.Pool = vk.NullDescriptorPool
}

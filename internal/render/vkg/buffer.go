package vkg

import (
	"unsafe"

	"github.com/pkg/errors"
	vk "github.com/goki/vulkan"
)

// Buffer pairs a Vulkan buffer with its backing memory. Host-visible
// buffers stay persistently mapped.
type Buffer struct {
	Handle vk.Buffer
	Memory vk.DeviceMemory
	Size   vk.DeviceSize

	mapped unsafe.Pointer
}

// NewBuffer creates a buffer of the given size and usage, backed by
// memory with the requested properties. Host-visible buffers are mapped
// immediately.
func NewBuffer(ctx *Context, size vk.DeviceSize, usage vk.BufferUsageFlags, props vk.MemoryPropertyFlags) (*Buffer, error) {
	bufferInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        size,
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}

	var handle vk.Buffer
	if res := vk.CreateBuffer(ctx.Device, &bufferInfo, nil, &handle); res != vk.Success {
		return nil, errors.Errorf("vkCreateBuffer failed: %d", res)
	}

	var memReqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(ctx.Device, handle, &memReqs)
	memReqs.Deref()

	memTypeIndex, err := ctx.FindMemoryType(memReqs.MemoryTypeBits, props)
	if err != nil {
		vk.DestroyBuffer(ctx.Device, handle, nil)
		return nil, err
	}

	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memReqs.Size,
		MemoryTypeIndex: memTypeIndex,
	}

	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(ctx.Device, &allocInfo, nil, &memory); res != vk.Success {
		vk.DestroyBuffer(ctx.Device, handle, nil)
		return nil, errors.Errorf("vkAllocateMemory failed: %d", res)
	}

	vk.BindBufferMemory(ctx.Device, handle, memory, 0)

	b := &Buffer{Handle: handle, Memory: memory, Size: size}

	if props&vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit) != 0 {
		var data unsafe.Pointer
		if res := vk.MapMemory(ctx.Device, memory, 0, size, 0, &data); res != vk.Success {
			b.Destroy(ctx)
			return nil, errors.Errorf("vkMapMemory failed: %d", res)
		}
		b.mapped = data
	}

	return b, nil
}

// NewHostBuffer creates a host-visible, coherent, persistently mapped buffer.
func NewHostBuffer(ctx *Context, size vk.DeviceSize, usage vk.BufferUsageFlags) (*Buffer, error) {
	return NewBuffer(ctx, size, usage,
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
}

// NewDeviceBuffer creates a device-local buffer and fills it with data
// through a staging buffer.
func NewDeviceBuffer(ctx *Context, data []byte, usage vk.BufferUsageFlags) (*Buffer, error) {
	size := vk.DeviceSize(len(data))
	if size == 0 {
		return nil, errors.New("empty buffer upload")
	}

	staging, err := NewHostBuffer(ctx, size, vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit))
	if err != nil {
		return nil, errors.Wrap(err, "staging buffer")
	}
	defer staging.Destroy(ctx)

	staging.Write(data)

	dst, err := NewBuffer(ctx, size,
		usage|vk.BufferUsageFlags(vk.BufferUsageTransferDstBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		return nil, err
	}

	err = ctx.ImmediateSubmit(func(cmd vk.CommandBuffer) {
		region := vk.BufferCopy{Size: size}
		vk.CmdCopyBuffer(cmd, staging.Handle, dst.Handle, 1, []vk.BufferCopy{region})
	})
	if err != nil {
		dst.Destroy(ctx)
		return nil, errors.Wrap(err, "buffer upload")
	}

	return dst, nil
}

// WriteAt copies data into a mapped host-visible buffer at the given offset.
func (b *Buffer) WriteAt(data []byte, offset int) {
	if b.mapped == nil || len(data) == 0 {
		return
	}
	dst := unsafe.Pointer(uintptr(b.mapped) + uintptr(offset))
	vk.Memcopy(dst, data)
}

// Write copies data into the start of a mapped host-visible buffer.
func (b *Buffer) Write(data []byte) {
	b.WriteAt(data, 0)
}

// Mapped returns the persistent mapping, or nil for device-local buffers.
func (b *Buffer) Mapped() unsafe.Pointer {
	return b.mapped
}

// Destroy releases the buffer and its memory.
func (b *Buffer) Destroy(ctx *Context) {
	if b == nil {
		return
	}
	if b.mapped != nil {
		vk.UnmapMemory(ctx.Device, b.Memory)
		b.mapped = nil
	}
	if b.Handle != vk.NullBuffer {
		vk.DestroyBuffer(ctx.Device, b.Handle, nil)
		b.Handle = vk.NullBuffer
	}
	if b.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(ctx.Device, b.Memory, nil)
		b.Memory = vk.NullDeviceMemory
	}
}

// Package vkg wraps the Vulkan objects the renderer shares: the device,
// queue, command pool and the small allocation helpers built on them.
// Window and swapchain ownership stays with the embedding application;
// the renderer only consumes a ready Context.
package vkg

import (
	"sync"

	"github.com/pkg/errors"
	vk "github.com/goki/vulkan"
)

// Context carries the device-level Vulkan state the renderer needs.
// All fields are set by the embedding application before any renderer
// package touches the GPU.
type Context struct {
	Device         vk.Device
	PhysicalDevice vk.PhysicalDevice
	Queue          vk.Queue
	CommandPool    vk.CommandPool
	RenderPass     vk.RenderPass
	SampleCount    vk.SampleCountFlagBits
	FramesInFlight int

	// queueMu serializes QueueSubmit with the application's frame loop.
	queueMu sync.Mutex

	memProps     vk.PhysicalDeviceMemoryProperties
	memPropsOnce sync.Once
}

// FrameOverlap is the number of frames the renderer keeps in flight.
const FrameOverlap = 2

// FindMemoryType returns the index of a memory type matching typeFilter
// and the requested property flags.
func (c *Context) FindMemoryType(typeFilter uint32, properties vk.MemoryPropertyFlags) (uint32, error) {
	c.memPropsOnce.Do(func() {
		vk.GetPhysicalDeviceMemoryProperties(c.PhysicalDevice, &c.memProps)
		c.memProps.Deref()
	})

	for i := uint32(0); i < c.memProps.MemoryTypeCount; i++ {
		c.memProps.MemoryTypes[i].Deref()
		if (typeFilter&(1<<i)) != 0 && (c.memProps.MemoryTypes[i].PropertyFlags&properties) == properties {
			return i, nil
		}
	}

	return 0, errors.New("no suitable memory type")
}

// ImmediateSubmit records fn into a one-shot command buffer, submits it
// and blocks until the queue drains it. Used for uploads and layout
// transitions outside the frame loop.
func (c *Context) ImmediateSubmit(fn func(cmd vk.CommandBuffer)) error {
	allocInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        c.CommandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}

	cmdBuffers := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(c.Device, &allocInfo, cmdBuffers); res != vk.Success {
		return errors.Errorf("vkAllocateCommandBuffers failed: %d", res)
	}
	cmd := cmdBuffers[0]
	defer vk.FreeCommandBuffers(c.Device, c.CommandPool, 1, cmdBuffers)

	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if res := vk.BeginCommandBuffer(cmd, &beginInfo); res != vk.Success {
		return errors.Errorf("vkBeginCommandBuffer failed: %d", res)
	}

	fn(cmd)

	if res := vk.EndCommandBuffer(cmd); res != vk.Success {
		return errors.Errorf("vkEndCommandBuffer failed: %d", res)
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    cmdBuffers,
	}

	c.queueMu.Lock()
	defer c.queueMu.Unlock()

	if res := vk.QueueSubmit(c.Queue, 1, []vk.SubmitInfo{submitInfo}, vk.NullFence); res != vk.Success {
		return errors.Errorf("vkQueueSubmit failed: %d", res)
	}
	if res := vk.QueueWaitIdle(c.Queue); res != vk.Success {
		return errors.Errorf("vkQueueWaitIdle failed: %d", res)
	}

	return nil
}

// WaitIdle blocks until the device finishes all submitted work.
func (c *Context) WaitIdle() {
	vk.DeviceWaitIdle(c.Device)
}

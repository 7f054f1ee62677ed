package vkg

import (
	"github.com/pkg/errors"
	vk "github.com/goki/vulkan"
)

// Image pairs a sampled 2D texture image with its memory and view.
type Image struct {
	Handle vk.Image
	Memory vk.DeviceMemory
	View   vk.ImageView
	Width  uint32
	Height uint32
	Format vk.Format
}

// NewImage2D creates a device-local 2D image with a matching view.
func NewImage2D(ctx *Context, width, height uint32, format vk.Format, usage vk.ImageUsageFlags) (*Image, error) {
	imageInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    format,
		Extent: vk.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         usage,
		InitialLayout: vk.ImageLayoutUndefined,
	}

	var handle vk.Image
	if res := vk.CreateImage(ctx.Device, &imageInfo, nil, &handle); res != vk.Success {
		return nil, errors.Errorf("vkCreateImage failed: %d", res)
	}

	var memReqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(ctx.Device, handle, &memReqs)
	memReqs.Deref()

	memTypeIndex, err := ctx.FindMemoryType(memReqs.MemoryTypeBits,
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		vk.DestroyImage(ctx.Device, handle, nil)
		return nil, err
	}

	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memReqs.Size,
		MemoryTypeIndex: memTypeIndex,
	}

	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(ctx.Device, &allocInfo, nil, &memory); res != vk.Success {
		vk.DestroyImage(ctx.Device, handle, nil)
		return nil, errors.Errorf("vkAllocateMemory failed: %d", res)
	}

	vk.BindImageMemory(ctx.Device, handle, memory, 0)

	viewInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    handle,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}

	var view vk.ImageView
	if res := vk.CreateImageView(ctx.Device, &viewInfo, nil, &view); res != vk.Success {
		vk.DestroyImage(ctx.Device, handle, nil)
		vk.FreeMemory(ctx.Device, memory, nil)
		return nil, errors.Errorf("vkCreateImageView failed: %d", res)
	}

	return &Image{
		Handle: handle,
		Memory: memory,
		View:   view,
		Width:  width,
		Height: height,
		Format: format,
	}, nil
}

// NewTextureImage creates a sampled image and fills it with RGBA pixel
// data through a staging buffer, leaving it in shader-read layout.
func NewTextureImage(ctx *Context, width, height uint32, pixels []byte) (*Image, error) {
	if len(pixels) != int(width*height*4) {
		return nil, errors.Errorf("pixel data size %d does not match %dx%d RGBA", len(pixels), width, height)
	}

	img, err := NewImage2D(ctx, width, height, vk.FormatR8g8b8a8Unorm,
		vk.ImageUsageFlags(vk.ImageUsageSampledBit|vk.ImageUsageTransferDstBit))
	if err != nil {
		return nil, err
	}

	if err := img.Upload(ctx, pixels); err != nil {
		img.Destroy(ctx)
		return nil, err
	}

	return img, nil
}

// Upload replaces the full image contents with RGBA pixel data and
// transitions the image to shader-read layout.
func (i *Image) Upload(ctx *Context, pixels []byte) error {
	staging, err := NewHostBuffer(ctx, vk.DeviceSize(len(pixels)),
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit))
	if err != nil {
		return errors.Wrap(err, "staging buffer")
	}
	defer staging.Destroy(ctx)

	staging.Write(pixels)

	return ctx.ImmediateSubmit(func(cmd vk.CommandBuffer) {
		TransitionImageLayout(cmd, i.Handle,
			vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal)

		region := vk.BufferImageCopy{
			ImageSubresource: vk.ImageSubresourceLayers{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				MipLevel:   0,
				LayerCount: 1,
			},
			ImageExtent: vk.Extent3D{
				Width:  i.Width,
				Height: i.Height,
				Depth:  1,
			},
		}
		vk.CmdCopyBufferToImage(cmd, staging.Handle, i.Handle,
			vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})

		TransitionImageLayout(cmd, i.Handle,
			vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal)
	})
}

// ByteSize returns the RGBA byte footprint of the image.
func (i *Image) ByteSize() int {
	return int(i.Width * i.Height * 4)
}

// Destroy releases the view, image and memory.
func (i *Image) Destroy(ctx *Context) {
	if i == nil {
		return
	}
	if i.View != vk.NullImageView {
		vk.DestroyImageView(ctx.Device, i.View, nil)
		i.View = vk.NullImageView
	}
	if i.Handle != vk.NullImage {
		vk.DestroyImage(ctx.Device, i.Handle, nil)
		i.Handle = vk.NullImage
	}
	if i.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(ctx.Device, i.Memory, nil)
		i.Memory = vk.NullDeviceMemory
	}
}

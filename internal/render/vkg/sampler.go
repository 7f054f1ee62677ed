package vkg

import (
	"github.com/pkg/errors"
	vk "github.com/goki/vulkan"
)

// NewSampler creates a linear-filtered repeating sampler, the default
// for model textures.
func NewSampler(ctx *Context) (vk.Sampler, error) {
	samplerInfo := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.FilterLinear,
		MinFilter:               vk.FilterLinear,
		MipmapMode:              vk.SamplerMipmapModeLinear,
		AddressModeU:            vk.SamplerAddressModeRepeat,
		AddressModeV:            vk.SamplerAddressModeRepeat,
		AddressModeW:            vk.SamplerAddressModeRepeat,
		AnisotropyEnable:        vk.False,
		MaxAnisotropy:           1,
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
	}

	var sampler vk.Sampler
	if res := vk.CreateSampler(ctx.Device, &samplerInfo, nil, &sampler); res != vk.Success {
		return vk.NullSampler, errors.Errorf("vkCreateSampler failed: %d", res)
	}
	return sampler, nil
}

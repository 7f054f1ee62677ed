package m2

import (
	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"

	"github.com/wowee/azerite/internal/render/model"
	"github.com/wowee/azerite/internal/render/shader"
	"github.com/wowee/azerite/internal/render/vkg"
)

// pipelineSet holds the graphics pipelines shared by every doodad draw,
// one per blend behavior, plus the layouts descriptor sets are cut from.
type pipelineSet struct {
	boneLayout     vk.DescriptorSetLayout
	materialLayout vk.DescriptorSetLayout
	layout         vk.PipelineLayout
	sampler        vk.Sampler

	opaque    vk.Pipeline
	alphaTest vk.Pipeline
	blend     vk.Pipeline
	additive  vk.Pipeline
}

// forBlendMode maps a material blend mode to its pipeline. Unknown
// modes draw as alpha blend.
func (p *pipelineSet) forBlendMode(mode uint16) vk.Pipeline {
	switch mode {
	case 0:
		return p.opaque
	case 1:
		return p.alphaTest
	case 3, 6:
		return p.additive
	default:
		return p.blend
	}
}

func newPipelineSet(ctx *vkg.Context, shaders *shader.Store) (*pipelineSet, error) {
	p := &pipelineSet{}

	boneBindings := []vk.DescriptorSetLayoutBinding{{
		Binding:         0,
		DescriptorType:  vk.DescriptorTypeStorageBufferDynamic,
		DescriptorCount: 1,
		StageFlags:      vk.ShaderStageFlags(vk.ShaderStageVertexBit),
	}}
	boneInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(boneBindings)),
		PBindings:    boneBindings,
	}
	if res := vk.CreateDescriptorSetLayout(ctx.Device, &boneInfo, nil, &p.boneLayout); res != vk.Success {
		return nil, errors.Errorf("bone set layout: %d", res)
	}

	matBindings := []vk.DescriptorSetLayoutBinding{
		{
			Binding:         0,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
		},
		{
			Binding:         1,
			DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
		},
		{
			Binding:         2,
			DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
		},
	}
	matInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(matBindings)),
		PBindings:    matBindings,
	}
	if res := vk.CreateDescriptorSetLayout(ctx.Device, &matInfo, nil, &p.materialLayout); res != vk.Success {
		p.destroy(ctx)
		return nil, errors.Errorf("material set layout: %d", res)
	}

	pushRanges := []vk.PushConstantRange{{
		StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit),
		Offset:     0,
		Size:       pushConstantBytes,
	}}
	setLayouts := []vk.DescriptorSetLayout{p.boneLayout, p.materialLayout}
	layoutInfo := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         uint32(len(setLayouts)),
		PSetLayouts:            setLayouts,
		PushConstantRangeCount: uint32(len(pushRanges)),
		PPushConstantRanges:    pushRanges,
	}
	if res := vk.CreatePipelineLayout(ctx.Device, &layoutInfo, nil, &p.layout); res != vk.Success {
		p.destroy(ctx)
		return nil, errors.Errorf("pipeline layout: %d", res)
	}

	var err error
	if p.sampler, err = vkg.NewSampler(ctx); err != nil {
		p.destroy(ctx)
		return nil, err
	}

	vert, err := shaders.Module("m2.vert.spv")
	if err != nil {
		p.destroy(ctx)
		return nil, err
	}
	frag, err := shaders.Module("m2.frag.spv")
	if err != nil {
		p.destroy(ctx)
		return nil, err
	}

	variants := []struct {
		dst        *vk.Pipeline
		blend      bool
		additive   bool
		depthWrite bool
	}{
		{&p.opaque, false, false, true},
		{&p.alphaTest, false, false, true},
		{&p.blend, true, false, false},
		{&p.additive, true, true, false},
	}
	for _, v := range variants {
		pl, err := buildPipeline(ctx, p.layout, vert, frag, v.blend, v.additive, v.depthWrite)
		if err != nil {
			p.destroy(ctx)
			return nil, err
		}
		*v.dst = pl
	}

	return p, nil
}

func buildPipeline(ctx *vkg.Context, layout vk.PipelineLayout, vert, frag vk.ShaderModule, blend, additive, depthWrite bool) (vk.Pipeline, error) {
	stages := []vk.PipelineShaderStageCreateInfo{
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageVertexBit,
			Module: vert,
			PName:  "main\x00",
		},
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFragmentBit,
			Module: frag,
			PName:  "main\x00",
		},
	}

	bindings := []vk.VertexInputBindingDescription{{
		Binding:   0,
		Stride:    model.VertexStride,
		InputRate: vk.VertexInputRateVertex,
	}}
	attrs := []vk.VertexInputAttributeDescription{
		{Location: 0, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: 0},
		{Location: 1, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: 12},
		{Location: 2, Binding: 0, Format: vk.FormatR32g32Sfloat, Offset: 24},
		{Location: 3, Binding: 0, Format: vk.FormatR32g32Sfloat, Offset: 32},
		{Location: 4, Binding: 0, Format: vk.FormatR8g8b8a8Unorm, Offset: 40},
		{Location: 5, Binding: 0, Format: vk.FormatR8g8b8a8Uint, Offset: 44},
		{Location: 6, Binding: 0, Format: vk.FormatR32g32b32a32Sfloat, Offset: 48},
	}
	vertexInput := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(bindings)),
		PVertexBindingDescriptions:      bindings,
		VertexAttributeDescriptionCount: uint32(len(attrs)),
		PVertexAttributeDescriptions:    attrs,
	}

	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology: vk.PrimitiveTopologyTriangleList,
	}

	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	raster := vk.PipelineRasterizationStateCreateInfo{
		SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode: vk.PolygonModeFill,
		CullMode:    vk.CullModeFlags(vk.CullModeNone),
		FrontFace:   vk.FrontFaceCounterClockwise,
		LineWidth:   1,
	}

	multisample := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: ctx.SampleCount,
	}

	depthWriteEnable := vk.Bool32(vk.False)
	if depthWrite {
		depthWriteEnable = vk.Bool32(vk.True)
	}
	depth := vk.PipelineDepthStencilStateCreateInfo{
		SType:            vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:  vk.True,
		DepthWriteEnable: depthWriteEnable,
		DepthCompareOp:   vk.CompareOpLessOrEqual,
	}

	attachment := vk.PipelineColorBlendAttachmentState{
		ColorWriteMask: vk.ColorComponentFlags(
			vk.ColorComponentRBit | vk.ColorComponentGBit |
				vk.ColorComponentBBit | vk.ColorComponentABit),
	}
	if blend {
		attachment.BlendEnable = vk.True
		attachment.SrcColorBlendFactor = vk.BlendFactorSrcAlpha
		attachment.DstColorBlendFactor = vk.BlendFactorOneMinusSrcAlpha
		attachment.ColorBlendOp = vk.BlendOpAdd
		attachment.SrcAlphaBlendFactor = vk.BlendFactorOne
		attachment.DstAlphaBlendFactor = vk.BlendFactorOneMinusSrcAlpha
		attachment.AlphaBlendOp = vk.BlendOpAdd
		if additive {
			attachment.SrcColorBlendFactor = vk.BlendFactorSrcAlpha
			attachment.DstColorBlendFactor = vk.BlendFactorOne
			attachment.DstAlphaBlendFactor = vk.BlendFactorOne
		}
	}
	colorBlend := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{attachment},
	}

	dynamics := []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}
	dynamic := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamics)),
		PDynamicStates:    dynamics,
	}

	info := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &raster,
		PMultisampleState:   &multisample,
		PDepthStencilState:  &depth,
		PColorBlendState:    &colorBlend,
		PDynamicState:       &dynamic,
		Layout:              layout,
		RenderPass:          ctx.RenderPass,
	}

	pipelines := make([]vk.Pipeline, 1)
	if res := vk.CreateGraphicsPipelines(ctx.Device, vk.NullPipelineCache, 1,
		[]vk.GraphicsPipelineCreateInfo{info}, nil, pipelines); res != vk.Success {
		return vk.NullPipeline, errors.Errorf("graphics pipeline: %d", res)
	}
	return pipelines[0], nil
}

func (p *pipelineSet) destroy(ctx *vkg.Context) {
	for _, pl := range []vk.Pipeline{p.opaque, p.alphaTest, p.blend, p.additive} {
		if pl != vk.NullPipeline {
			vk.DestroyPipeline(ctx.Device, pl, nil)
		}
	}
	p.opaque, p.alphaTest, p.blend, p.additive = vk.NullPipeline, vk.NullPipeline, vk.NullPipeline, vk.NullPipeline

	if p.sampler != vk.NullSampler {
		vk.DestroySampler(ctx.Device, p.sampler, nil)
		p.sampler = vk.NullSampler
	}
	if p.layout != vk.NullPipelineLayout {
		vk.DestroyPipelineLayout(ctx.Device, p.layout, nil)
		p.layout = vk.NullPipelineLayout
	}
	if p.boneLayout != vk.NullDescriptorSetLayout {
		vk.DestroyDescriptorSetLayout(ctx.Device, p.boneLayout, nil)
		p.boneLayout = vk.NullDescriptorSetLayout
	}
	if p.materialLayout != vk.NullDescriptorSetLayout {
		vk.DestroyDescriptorSetLayout(ctx.Device, p.materialLayout, nil)
		p.materialLayout = vk.NullDescriptorSetLayout
	}
}

package vulkan

import (
	"encoding/binary"
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima/engine/core"
	"github.com/spaghettifunk/anima/engine/renderer/gpu"
)

/**
 * @brief A compiled SPIR-V module.
 */
type VulkanShaderModule struct {
	context *VulkanContext
	Handle  vk.ShaderModule
}

func (d *Device) CreateShaderModule(code []byte) (gpu.ShaderModule, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, fmt.Errorf("SPIR-V size %d is not a positive multiple of 4: %w", len(code), core.ErrShaderLoad)
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
	ctx := d.context
	module := &VulkanShaderModule{context: ctx}
	if res := vk.CreateShaderModule(ctx.LogicalDevice, &createInfo, ctx.Allocator, &module.Handle); res != vk.Success {
		err := resultError("vkCreateShaderModule", res)
		return nil, fmt.Errorf("%v: %w", err, core.ErrShaderLoad)
	}
	return module, nil
}

func (m *VulkanShaderModule) Destroy() {
	if m.Handle != vk.NullShaderModule {
		vk.DestroyShaderModule(m.context.LogicalDevice, m.Handle, m.context.Allocator)
		m.Handle = vk.NullShaderModule
	}
}

/**
 * @brief Holds a Vulkan pipeline and its layout.
 */
type VulkanPipeline struct {
	context *VulkanContext
	/** @brief The internal pipeline handle. */
	Handle vk.Pipeline
	/** @brief The pipeline layout. */
	PipelineLayout vk.PipelineLayout
}

func (d *Device) CreatePipeline(desc gpu.PipelineDesc) (gpu.Pipeline, error) {
	rp, ok := desc.RenderPass.(*VulkanRenderPass)
	if !ok {
		return nil, fmt.Errorf("not a vulkan render pass: %w", core.ErrInvalidArgument)
	}
	vertex, ok := desc.VertexShader.(*VulkanShaderModule)
	if !ok {
		return nil, fmt.Errorf("missing vertex shader module: %w", core.ErrShaderLoad)
	}
	fragment, ok := desc.FragmentShader.(*VulkanShaderModule)
	if !ok {
		return nil, fmt.Errorf("missing fragment shader module: %w", core.ErrShaderLoad)
	}
	setLayout, ok := desc.SetLayout.(*VulkanDescriptorSetLayout)
	if !ok {
		return nil, fmt.Errorf("not a vulkan descriptor set layout: %w", core.ErrInvalidArgument)
	}
	topology, ok := toVkTopology(desc.Topology)
	if !ok {
		return nil, fmt.Errorf("topology %s cannot be used for a pipeline: %w", desc.Topology, core.ErrInvalidArgument)
	}

	stages := []vk.PipelineShaderStageCreateInfo{
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageVertexBit,
			Module: vertex.Handle,
			PName:  VulkanSafeString("main"),
		},
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFragmentBit,
			Module: fragment.Handle,
			PName:  VulkanSafeString("main"),
		},
	}

	// Viewport and scissor are dynamic; the initial values only fix the count.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		PViewports: []vk.Viewport{{
			Width:    float32(desc.Extent.Width),
			Height:   float32(desc.Extent.Height),
			MaxDepth: 1.0,
		}},
		ScissorCount: 1,
		PScissors:    []vk.Rect2D{{Extent: toVkExtent(desc.Extent)}},
	}

	rasterizer := vk.PipelineRasterizationStateCreateInfo{
		SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode: vk.PolygonModeFill,
		LineWidth:   1.0,
		CullMode:    toVkCullMode(desc.CullMode),
		FrontFace:   vk.FrontFaceCounterClockwise,
	}

	multisampling := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCount1Bit,
		MinSampleShading:     1.0,
	}

	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:          vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthCompareOp: toVkCompareOp(desc.DepthCompare),
	}
	if desc.DepthTest {
		depthStencil.DepthTestEnable = vk.True
	}
	if desc.DepthWrite {
		depthStencil.DepthWriteEnable = vk.True
	}

	blendAttachment := vk.PipelineColorBlendAttachmentState{
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit |
			vk.ColorComponentBBit | vk.ColorComponentABit),
	}
	if desc.Blend {
		blendAttachment.BlendEnable = vk.True
		blendAttachment.SrcColorBlendFactor = vk.BlendFactorSrcAlpha
		blendAttachment.DstColorBlendFactor = vk.BlendFactorOneMinusSrcAlpha
		blendAttachment.ColorBlendOp = vk.BlendOpAdd
		blendAttachment.SrcAlphaBlendFactor = vk.BlendFactorSrcAlpha
		blendAttachment.DstAlphaBlendFactor = vk.BlendFactorOneMinusSrcAlpha
		blendAttachment.AlphaBlendOp = vk.BlendOpAdd
	}
	colorBlend := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{blendAttachment},
	}

	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
	}
	dynamicState := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	attributes := make([]vk.VertexInputAttributeDescription, len(desc.Attributes))
	for i, a := range desc.Attributes {
		attributes[i] = vk.VertexInputAttributeDescription{
			Location: a.Location,
			Binding:  0,
			Format:   toVkFormat(a.Format),
			Offset:   a.Offset,
		}
	}
	vertexInput := vk.PipelineVertexInputStateCreateInfo{
		SType:                         vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount: 1,
		PVertexBindingDescriptions: []vk.VertexInputBindingDescription{{
			Binding:   0,
			Stride:    desc.VertexStride,
			InputRate: vk.VertexInputRateVertex,
		}},
		VertexAttributeDescriptionCount: uint32(len(attributes)),
		PVertexAttributeDescriptions:    attributes,
	}

	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology: topology,
	}

	ctx := d.context
	pipeline := &VulkanPipeline{context: ctx}

	layoutCreateInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: 1,
		PSetLayouts:    []vk.DescriptorSetLayout{setLayout.Handle},
	}
	if res := vk.CreatePipelineLayout(ctx.LogicalDevice, &layoutCreateInfo, ctx.Allocator, &pipeline.PipelineLayout); res != vk.Success {
		return nil, resultError("vkCreatePipelineLayout", res)
	}

	createInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisampling,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlend,
		PDynamicState:       &dynamicState,
		Layout:              pipeline.PipelineLayout,
		RenderPass:          rp.Handle,
		Subpass:             0,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}
	handles := make([]vk.Pipeline, 1)
	if res := vk.CreateGraphicsPipelines(ctx.LogicalDevice, vk.NullPipelineCache, 1, []vk.GraphicsPipelineCreateInfo{createInfo}, ctx.Allocator, handles); res != vk.Success {
		pipeline.Destroy()
		return nil, resultError("vkCreateGraphicsPipelines", res)
	}
	pipeline.Handle = handles[0]

	core.LogDebug("Graphics pipeline created (%s, cull %s).", desc.Topology, desc.CullMode)
	return pipeline, nil
}

func (p *VulkanPipeline) Destroy() {
	ctx := p.context
	if p.Handle != vk.NullPipeline {
		vk.DestroyPipeline(ctx.LogicalDevice, p.Handle, ctx.Allocator)
		p.Handle = vk.NullPipeline
	}
	if p.PipelineLayout != vk.PipelineLayout(vk.NullHandle) {
		vk.DestroyPipelineLayout(ctx.LogicalDevice, p.PipelineLayout, ctx.Allocator)
		p.PipelineLayout = vk.PipelineLayout(vk.NullHandle)
	}
}

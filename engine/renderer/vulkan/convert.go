package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima/engine/renderer/gpu"
	"github.com/spaghettifunk/anima/engine/renderer/metadata"
)

var formats = map[gpu.Format]vk.Format{
	gpu.FormatUndefined:          vk.FormatUndefined,
	gpu.FormatB8G8R8A8Unorm:      vk.FormatB8g8r8a8Unorm,
	gpu.FormatB8G8R8A8Srgb:       vk.FormatB8g8r8a8Srgb,
	gpu.FormatR8G8B8A8Unorm:      vk.FormatR8g8b8a8Unorm,
	gpu.FormatR8G8B8A8Srgb:       vk.FormatR8g8b8a8Srgb,
	gpu.FormatD32Sfloat:          vk.FormatD32Sfloat,
	gpu.FormatD32SfloatS8Uint:    vk.FormatD32SfloatS8Uint,
	gpu.FormatD24UnormS8Uint:     vk.FormatD24UnormS8Uint,
	gpu.FormatR32G32Sfloat:       vk.FormatR32g32Sfloat,
	gpu.FormatR32G32B32Sfloat:    vk.FormatR32g32b32Sfloat,
	gpu.FormatR32G32B32A32Sfloat: vk.FormatR32g32b32a32Sfloat,
}

func toVkFormat(f gpu.Format) vk.Format {
	if v, ok := formats[f]; ok {
		return v
	}
	return vk.FormatUndefined
}

// fromVkFormat maps formats the engine does not know onto FormatUndefined.
func fromVkFormat(f vk.Format) gpu.Format {
	for k, v := range formats {
		if v == f {
			return k
		}
	}
	return gpu.FormatUndefined
}

func fromVkColorSpace(cs vk.ColorSpace) gpu.ColorSpace {
	if cs == vk.ColorSpaceSrgbNonlinear {
		return gpu.ColorSpaceSrgbNonlinear
	}
	return gpu.ColorSpaceOther
}

func toVkColorSpace(cs gpu.ColorSpace) vk.ColorSpace {
	// Other color spaces are never chosen by the swapchain manager.
	return vk.ColorSpaceSrgbNonlinear
}

var presentModes = map[gpu.PresentMode]vk.PresentMode{
	gpu.PresentModeImmediate:   vk.PresentModeImmediate,
	gpu.PresentModeMailbox:     vk.PresentModeMailbox,
	gpu.PresentModeFifo:        vk.PresentModeFifo,
	gpu.PresentModeFifoRelaxed: vk.PresentModeFifoRelaxed,
}

func toVkPresentMode(m gpu.PresentMode) vk.PresentMode {
	if v, ok := presentModes[m]; ok {
		return v
	}
	return vk.PresentModeFifo
}

func fromVkPresentMode(m vk.PresentMode) (gpu.PresentMode, bool) {
	for k, v := range presentModes {
		if v == m {
			return k, true
		}
	}
	return gpu.PresentModeFifo, false
}

func fromVkDeviceType(t vk.PhysicalDeviceType) gpu.PhysicalDeviceType {
	switch t {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return gpu.PhysicalDeviceTypeIntegrated
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return gpu.PhysicalDeviceTypeDiscrete
	case vk.PhysicalDeviceTypeVirtualGpu:
		return gpu.PhysicalDeviceTypeVirtual
	case vk.PhysicalDeviceTypeCpu:
		return gpu.PhysicalDeviceTypeCPU
	}
	return gpu.PhysicalDeviceTypeOther
}

func toVkBufferUsage(u gpu.BufferUsage) vk.BufferUsageFlags {
	var flags vk.BufferUsageFlagBits
	if u&gpu.BufferUsageTransferSrc != 0 {
		flags |= vk.BufferUsageTransferSrcBit
	}
	if u&gpu.BufferUsageTransferDst != 0 {
		flags |= vk.BufferUsageTransferDstBit
	}
	if u&gpu.BufferUsageVertex != 0 {
		flags |= vk.BufferUsageVertexBufferBit
	}
	if u&gpu.BufferUsageIndex != 0 {
		flags |= vk.BufferUsageIndexBufferBit
	}
	if u&gpu.BufferUsageUniform != 0 {
		flags |= vk.BufferUsageUniformBufferBit
	}
	return vk.BufferUsageFlags(flags)
}

// Host visible memory is requested without the coherent bit, so writes are
// made visible with explicit flushes.
func toVkMemoryProperties(m gpu.MemoryLocation) vk.MemoryPropertyFlags {
	if m == gpu.MemoryHostVisible {
		return vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit)
	}
	return vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
}

func toVkImageUsage(u gpu.ImageUsage) vk.ImageUsageFlags {
	var flags vk.ImageUsageFlagBits
	if u&gpu.ImageUsageTransferDst != 0 {
		flags |= vk.ImageUsageTransferDstBit
	}
	if u&gpu.ImageUsageSampled != 0 {
		flags |= vk.ImageUsageSampledBit
	}
	if u&gpu.ImageUsageColorAttachment != 0 {
		flags |= vk.ImageUsageColorAttachmentBit
	}
	if u&gpu.ImageUsageDepthStencilAttachment != 0 {
		flags |= vk.ImageUsageDepthStencilAttachmentBit
	}
	return vk.ImageUsageFlags(flags)
}

func toVkAspect(a gpu.ImageAspect) vk.ImageAspectFlags {
	if a == gpu.ImageAspectDepth {
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	}
	return vk.ImageAspectFlags(vk.ImageAspectColorBit)
}

func toVkImageLayout(l gpu.ImageLayout) vk.ImageLayout {
	switch l {
	case gpu.ImageLayoutTransferDst:
		return vk.ImageLayoutTransferDstOptimal
	case gpu.ImageLayoutShaderReadOnly:
		return vk.ImageLayoutShaderReadOnlyOptimal
	case gpu.ImageLayoutDepthStencilAttachment:
		return vk.ImageLayoutDepthStencilAttachmentOptimal
	case gpu.ImageLayoutPresentSrc:
		return vk.ImageLayoutPresentSrc
	}
	return vk.ImageLayoutUndefined
}

func toVkFilter(f metadata.TextureFilter) vk.Filter {
	if f == metadata.TextureFilterModeNearest {
		return vk.FilterNearest
	}
	return vk.FilterLinear
}

func toVkAddressMode(r metadata.TextureRepeat) vk.SamplerAddressMode {
	switch r {
	case metadata.TextureRepeatMirroredRepeat:
		return vk.SamplerAddressModeMirroredRepeat
	case metadata.TextureRepeatClampToEdge:
		return vk.SamplerAddressModeClampToEdge
	case metadata.TextureRepeatClampToBorder:
		return vk.SamplerAddressModeClampToBorder
	}
	return vk.SamplerAddressModeRepeat
}

func toVkDescriptorType(t gpu.DescriptorType) vk.DescriptorType {
	switch t {
	case gpu.DescriptorTypeUniformBufferDynamic:
		return vk.DescriptorTypeUniformBufferDynamic
	case gpu.DescriptorTypeCombinedImageSampler:
		return vk.DescriptorTypeCombinedImageSampler
	}
	return vk.DescriptorTypeUniformBuffer
}

func toVkShaderStages(s metadata.ShaderStage) vk.ShaderStageFlags {
	var flags vk.ShaderStageFlagBits
	if s&metadata.ShaderStageVertex != 0 {
		flags |= vk.ShaderStageVertexBit
	}
	if s&metadata.ShaderStageFragment != 0 {
		flags |= vk.ShaderStageFragmentBit
	}
	return vk.ShaderStageFlags(flags)
}

func toVkTopology(t metadata.PrimitiveTopology) (vk.PrimitiveTopology, bool) {
	switch t {
	case metadata.PrimitiveTopologyTriangleList:
		return vk.PrimitiveTopologyTriangleList, true
	case metadata.PrimitiveTopologyTriangleStrip:
		return vk.PrimitiveTopologyTriangleStrip, true
	case metadata.PrimitiveTopologyTriangleFan:
		return vk.PrimitiveTopologyTriangleFan, true
	case metadata.PrimitiveTopologyPointList:
		return vk.PrimitiveTopologyPointList, true
	case metadata.PrimitiveTopologyLineList:
		return vk.PrimitiveTopologyLineList, true
	case metadata.PrimitiveTopologyLineStrip:
		return vk.PrimitiveTopologyLineStrip, true
	}
	return vk.PrimitiveTopologyTriangleList, false
}

func toVkCullMode(m metadata.FaceCullMode) vk.CullModeFlags {
	switch m {
	case metadata.FaceCullModeNone:
		return vk.CullModeFlags(vk.CullModeNone)
	case metadata.FaceCullModeFront:
		return vk.CullModeFlags(vk.CullModeFrontBit)
	case metadata.FaceCullModeFrontAndBack:
		return vk.CullModeFlags(vk.CullModeFrontAndBack)
	}
	return vk.CullModeFlags(vk.CullModeBackBit)
}

func toVkCompareOp(op gpu.CompareOp) vk.CompareOp {
	switch op {
	case gpu.CompareOpLessOrEqual:
		return vk.CompareOpLessOrEqual
	case gpu.CompareOpAlways:
		return vk.CompareOpAlways
	}
	return vk.CompareOpLess
}

func toVkExtent(e gpu.Extent) vk.Extent2D {
	return vk.Extent2D{Width: e.Width, Height: e.Height}
}

func fromVkExtent(e vk.Extent2D) gpu.Extent {
	e.Deref()
	return gpu.Extent{Width: e.Width, Height: e.Height}
}

package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima/engine/core"
	"github.com/spaghettifunk/anima/engine/renderer/gpu"
)

type VulkanImage struct {
	context *VulkanContext
	Handle  vk.Image
	Memory  vk.DeviceMemory
	extent  gpu.Extent
	format  gpu.Format
	// Swapchain images are owned by the swapchain.
	borrowed bool
}

func (d *Device) CreateImage(desc gpu.ImageDesc) (gpu.Image, error) {
	if desc.Extent.IsZero() {
		return nil, fmt.Errorf("image extent %s is empty: %w", desc.Extent, core.ErrInvalidArgument)
	}
	ctx := d.context
	img := &VulkanImage{context: ctx, extent: desc.Extent, format: desc.Format}

	createInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Extent: vk.Extent3D{
			Width:  desc.Extent.Width,
			Height: desc.Extent.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        toVkFormat(desc.Format),
		Tiling:        vk.ImageTilingOptimal,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         toVkImageUsage(desc.Usage),
		Samples:       vk.SampleCount1Bit,
		SharingMode:   vk.SharingModeExclusive,
	}
	if res := vk.CreateImage(ctx.LogicalDevice, &createInfo, ctx.Allocator, &img.Handle); res != vk.Success {
		return nil, resultError("vkCreateImage", res)
	}

	var requirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(ctx.LogicalDevice, img.Handle, &requirements)
	memory, err := ctx.allocate(requirements, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		img.Destroy()
		return nil, err
	}
	img.Memory = memory

	if res := vk.BindImageMemory(ctx.LogicalDevice, img.Handle, img.Memory, 0); res != vk.Success {
		img.Destroy()
		return nil, resultError("vkBindImageMemory", res)
	}
	return img, nil
}

func (img *VulkanImage) Extent() gpu.Extent { return img.extent }

func (img *VulkanImage) Format() gpu.Format { return img.format }

func (img *VulkanImage) Destroy() {
	if img.borrowed {
		return
	}
	ctx := img.context
	if img.Handle != vk.NullImage {
		vk.DestroyImage(ctx.LogicalDevice, img.Handle, ctx.Allocator)
		img.Handle = vk.NullImage
	}
	if img.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(ctx.LogicalDevice, img.Memory, ctx.Allocator)
		img.Memory = vk.NullDeviceMemory
	}
}

// TransitionImageLayout supports the transitions a texture upload needs.
func (d *Device) TransitionImageLayout(image gpu.Image, from, to gpu.ImageLayout) error {
	img, ok := image.(*VulkanImage)
	if !ok {
		return fmt.Errorf("not a vulkan image: %w", core.ErrInvalidArgument)
	}

	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           toVkImageLayout(from),
		NewLayout:           toVkImageLayout(to),
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               img.Handle,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}

	var srcStage, dstStage vk.PipelineStageFlagBits
	switch {
	case from == gpu.ImageLayoutUndefined && to == gpu.ImageLayoutTransferDst:
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		srcStage = vk.PipelineStageTopOfPipeBit
		dstStage = vk.PipelineStageTransferBit
	case from == gpu.ImageLayoutTransferDst && to == gpu.ImageLayoutShaderReadOnly:
		barrier.SrcAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessShaderReadBit)
		srcStage = vk.PipelineStageTransferBit
		dstStage = vk.PipelineStageFragmentShaderBit
	case from == gpu.ImageLayoutUndefined && to == gpu.ImageLayoutDepthStencilAttachment:
		barrier.SubresourceRange.AspectMask = vk.ImageAspectFlags(vk.ImageAspectDepthBit)
		if img.format.HasStencil() {
			barrier.SubresourceRange.AspectMask |= vk.ImageAspectFlags(vk.ImageAspectStencilBit)
		}
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessDepthStencilAttachmentReadBit | vk.AccessDepthStencilAttachmentWriteBit)
		srcStage = vk.PipelineStageTopOfPipeBit
		dstStage = vk.PipelineStageEarlyFragmentTestsBit
	default:
		return fmt.Errorf("unsupported layout transition %s -> %s: %w", from, to, core.ErrInvalidArgument)
	}

	return d.context.oneShot(func(cb vk.CommandBuffer) {
		vk.CmdPipelineBarrier(cb,
			vk.PipelineStageFlags(srcStage), vk.PipelineStageFlags(dstStage),
			0,
			0, nil,
			0, nil,
			1, []vk.ImageMemoryBarrier{barrier})
	})
}

func (d *Device) CopyBufferToImage(src gpu.Buffer, dst gpu.Image) error {
	buffer, ok := src.(*VulkanBuffer)
	if !ok {
		return fmt.Errorf("copy source is not a vulkan buffer: %w", core.ErrInvalidArgument)
	}
	img, ok := dst.(*VulkanImage)
	if !ok {
		return fmt.Errorf("copy destination is not a vulkan image: %w", core.ErrInvalidArgument)
	}
	region := vk.BufferImageCopy{
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LayerCount: 1,
		},
		ImageExtent: vk.Extent3D{
			Width:  img.extent.Width,
			Height: img.extent.Height,
			Depth:  1,
		},
	}
	return d.context.oneShot(func(cb vk.CommandBuffer) {
		vk.CmdCopyBufferToImage(cb, buffer.Handle, img.Handle, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})
	})
}

type VulkanImageView struct {
	context *VulkanContext
	Handle  vk.ImageView
}

func (d *Device) CreateImageView(image gpu.Image, aspect gpu.ImageAspect) (gpu.ImageView, error) {
	img, ok := image.(*VulkanImage)
	if !ok {
		return nil, fmt.Errorf("not a vulkan image: %w", core.ErrInvalidArgument)
	}
	ctx := d.context
	viewInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img.Handle,
		ViewType: vk.ImageViewType2d,
		Format:   toVkFormat(img.format),
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: toVkAspect(aspect),
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	view := &VulkanImageView{context: ctx}
	if res := vk.CreateImageView(ctx.LogicalDevice, &viewInfo, ctx.Allocator, &view.Handle); res != vk.Success {
		return nil, resultError("vkCreateImageView", res)
	}
	return view, nil
}

func (v *VulkanImageView) Destroy() {
	if v.Handle != vk.NullImageView {
		vk.DestroyImageView(v.context.LogicalDevice, v.Handle, v.context.Allocator)
		v.Handle = vk.NullImageView
	}
}

type VulkanSampler struct {
	context *VulkanContext
	Handle  vk.Sampler
}

func (d *Device) CreateSampler(desc gpu.SamplerDesc) (gpu.Sampler, error) {
	ctx := d.context
	mode := toVkAddressMode(desc.Repeat)
	samplerInfo := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               toVkFilter(desc.Filter),
		MinFilter:               toVkFilter(desc.Filter),
		AddressModeU:            mode,
		AddressModeV:            mode,
		AddressModeW:            mode,
		AnisotropyEnable:        vk.False,
		MaxAnisotropy:           1,
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MipmapMode:              vk.SamplerMipmapModeLinear,
	}
	if desc.MaxAnisotropy > 0 {
		samplerInfo.AnisotropyEnable = vk.True
		samplerInfo.MaxAnisotropy = desc.MaxAnisotropy
	}
	sampler := &VulkanSampler{context: ctx}
	if res := vk.CreateSampler(ctx.LogicalDevice, &samplerInfo, ctx.Allocator, &sampler.Handle); res != vk.Success {
		return nil, resultError("vkCreateSampler", res)
	}
	return sampler, nil
}

func (s *VulkanSampler) Destroy() {
	if s.Handle != vk.NullSampler {
		vk.DestroySampler(s.context.LogicalDevice, s.Handle, s.context.Allocator)
		s.Handle = vk.NullSampler
	}
}

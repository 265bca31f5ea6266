package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima/engine/core"
	"github.com/spaghettifunk/anima/engine/renderer/gpu"
)

type VulkanSwapchain struct {
	context *VulkanContext
	Handle  vk.Swapchain
	format  gpu.SurfaceFormat
	extent  gpu.Extent
	images  []gpu.Image
}

func (d *Device) CreateSwapchain(desc gpu.SwapchainDesc) (gpu.Swapchain, error) {
	ctx := d.context

	var caps vk.SurfaceCapabilities
	if res := vk.GetPhysicalDeviceSurfaceCapabilities(ctx.PhysicalDevice, ctx.Surface, &caps); res != vk.Success {
		return nil, resultError("vkGetPhysicalDeviceSurfaceCapabilities", res)
	}
	caps.Deref()

	createInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          ctx.Surface,
		MinImageCount:    desc.MinImageCount,
		ImageFormat:      toVkFormat(desc.Format.Format),
		ImageColorSpace:  toVkColorSpace(desc.Format.ColorSpace),
		ImageExtent:      toVkExtent(desc.Extent),
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      toVkPresentMode(desc.PresentMode),
		Clipped:          vk.True,
	}
	if ctx.GraphicsQueueIndex != ctx.PresentQueueIndex {
		createInfo.ImageSharingMode = vk.SharingModeConcurrent
		createInfo.QueueFamilyIndexCount = 2
		createInfo.PQueueFamilyIndices = []uint32{ctx.GraphicsQueueIndex, ctx.PresentQueueIndex}
	} else {
		createInfo.ImageSharingMode = vk.SharingModeExclusive
	}

	sc := &VulkanSwapchain{context: ctx, format: desc.Format, extent: desc.Extent}
	if res := vk.CreateSwapchain(ctx.LogicalDevice, &createInfo, ctx.Allocator, &sc.Handle); res != vk.Success {
		return nil, resultError("vkCreateSwapchain", res)
	}

	var count uint32
	if res := vk.GetSwapchainImages(ctx.LogicalDevice, sc.Handle, &count, nil); res != vk.Success {
		sc.Destroy()
		return nil, resultError("vkGetSwapchainImages", res)
	}
	handles := make([]vk.Image, count)
	if res := vk.GetSwapchainImages(ctx.LogicalDevice, sc.Handle, &count, handles); res != vk.Success {
		sc.Destroy()
		return nil, resultError("vkGetSwapchainImages", res)
	}
	for _, h := range handles {
		sc.images = append(sc.images, &VulkanImage{
			context:  ctx,
			Handle:   h,
			extent:   desc.Extent,
			format:   desc.Format.Format,
			borrowed: true,
		})
	}

	core.LogDebug("Swapchain created with %d images.", count)
	return sc, nil
}

func (sc *VulkanSwapchain) Images() []gpu.Image { return sc.images }

func (sc *VulkanSwapchain) Format() gpu.SurfaceFormat { return sc.format }

func (sc *VulkanSwapchain) Extent() gpu.Extent { return sc.extent }

// Destroy releases the swapchain and with it the images it owns.
func (sc *VulkanSwapchain) Destroy() {
	if sc.Handle != vk.NullSwapchain {
		vk.DestroySwapchain(sc.context.LogicalDevice, sc.Handle, sc.context.Allocator)
		sc.Handle = vk.NullSwapchain
	}
	sc.images = nil
}

func (d *Device) AcquireNextImage(swapchain gpu.Swapchain, signal gpu.Semaphore) (uint32, gpu.Result, error) {
	sc, ok := swapchain.(*VulkanSwapchain)
	if !ok {
		return 0, gpu.ResultSuccess, fmt.Errorf("not a vulkan swapchain: %w", core.ErrInvalidArgument)
	}
	sem, ok := signal.(*VulkanSemaphore)
	if !ok {
		return 0, gpu.ResultSuccess, fmt.Errorf("not a vulkan semaphore: %w", core.ErrInvalidArgument)
	}

	var index uint32
	res := vk.AcquireNextImage(d.context.LogicalDevice, sc.Handle, vk.MaxUint64, sem.Handle, vk.Fence(vk.NullHandle), &index)
	switch res {
	case vk.Success:
		return index, gpu.ResultSuccess, nil
	case vk.Suboptimal:
		return index, gpu.ResultSuboptimal, nil
	case vk.ErrorOutOfDate:
		return 0, gpu.ResultOutOfDate, nil
	}
	return 0, gpu.ResultSuccess, resultError("vkAcquireNextImage", res)
}

func (d *Device) Submit(cb gpu.CommandBuffer, wait, signal gpu.Semaphore, fence gpu.Fence) error {
	buffer, ok := cb.(*VulkanCommandBuffer)
	if !ok {
		return fmt.Errorf("not a vulkan command buffer: %w", core.ErrInvalidArgument)
	}
	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{buffer.Handle},
	}
	if s, ok := wait.(*VulkanSemaphore); ok && s != nil {
		submitInfo.WaitSemaphoreCount = 1
		submitInfo.PWaitSemaphores = []vk.Semaphore{s.Handle}
		submitInfo.PWaitDstStageMask = []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)}
	}
	if s, ok := signal.(*VulkanSemaphore); ok && s != nil {
		submitInfo.SignalSemaphoreCount = 1
		submitInfo.PSignalSemaphores = []vk.Semaphore{s.Handle}
	}
	handle := vk.Fence(vk.NullHandle)
	if f, ok := fence.(*VulkanFence); ok && f != nil {
		handle = f.Handle
	}

	ctx := d.context
	return ctx.queues.Do(ctx.GraphicsQueueIndex, func() error {
		if res := vk.QueueSubmit(ctx.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, handle); res != vk.Success {
			return resultError("vkQueueSubmit", res)
		}
		buffer.State = COMMAND_BUFFER_STATE_SUBMITTED
		return nil
	})
}

func (d *Device) Present(swapchain gpu.Swapchain, imageIndex uint32, wait gpu.Semaphore) (gpu.Result, error) {
	sc, ok := swapchain.(*VulkanSwapchain)
	if !ok {
		return gpu.ResultSuccess, fmt.Errorf("not a vulkan swapchain: %w", core.ErrInvalidArgument)
	}
	presentInfo := vk.PresentInfo{
		SType:          vk.StructureTypePresentInfo,
		SwapchainCount: 1,
		PSwapchains:    []vk.Swapchain{sc.Handle},
		PImageIndices:  []uint32{imageIndex},
	}
	if s, ok := wait.(*VulkanSemaphore); ok && s != nil {
		presentInfo.WaitSemaphoreCount = 1
		presentInfo.PWaitSemaphores = []vk.Semaphore{s.Handle}
	}

	ctx := d.context
	result := gpu.ResultSuccess
	err := ctx.queues.Do(ctx.PresentQueueIndex, func() error {
		res := vk.QueuePresent(ctx.PresentQueue, &presentInfo)
		switch res {
		case vk.Success:
		case vk.Suboptimal:
			result = gpu.ResultSuboptimal
		case vk.ErrorOutOfDate:
			result = gpu.ResultOutOfDate
		default:
			return resultError("vkQueuePresent", res)
		}
		// One frame in flight: the present queue is drained before returning.
		if res := vk.QueueWaitIdle(ctx.PresentQueue); res != vk.Success {
			return resultError("vkQueueWaitIdle", res)
		}
		return nil
	})
	return result, err
}

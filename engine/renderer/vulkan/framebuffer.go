package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima/engine/core"
	"github.com/spaghettifunk/anima/engine/renderer/gpu"
)

type VulkanFramebuffer struct {
	context *VulkanContext
	Handle  vk.Framebuffer
	extent  gpu.Extent
}

func (d *Device) CreateFramebuffer(pass gpu.RenderPass, attachments []gpu.ImageView, extent gpu.Extent) (gpu.Framebuffer, error) {
	rp, ok := pass.(*VulkanRenderPass)
	if !ok {
		return nil, fmt.Errorf("not a vulkan render pass: %w", core.ErrInvalidArgument)
	}
	views := make([]vk.ImageView, len(attachments))
	for i, a := range attachments {
		view, ok := a.(*VulkanImageView)
		if !ok {
			return nil, fmt.Errorf("attachment %d is not a vulkan image view: %w", i, core.ErrInvalidArgument)
		}
		views[i] = view.Handle
	}

	ctx := d.context
	createInfo := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      rp.Handle,
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           extent.Width,
		Height:          extent.Height,
		Layers:          1,
	}
	fb := &VulkanFramebuffer{context: ctx, extent: extent}
	if res := vk.CreateFramebuffer(ctx.LogicalDevice, &createInfo, ctx.Allocator, &fb.Handle); res != vk.Success {
		return nil, resultError("vkCreateFramebuffer", res)
	}
	return fb, nil
}

func (fb *VulkanFramebuffer) Extent() gpu.Extent { return fb.extent }

func (fb *VulkanFramebuffer) Destroy() {
	if fb.Handle != vk.Framebuffer(vk.NullHandle) {
		vk.DestroyFramebuffer(fb.context.LogicalDevice, fb.Handle, fb.context.Allocator)
		fb.Handle = vk.Framebuffer(vk.NullHandle)
	}
}

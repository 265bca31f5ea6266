package vulkan

import (
	"fmt"
	"time"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima/engine/core"
	"github.com/spaghettifunk/anima/engine/renderer/gpu"
)

type VulkanFence struct {
	context *VulkanContext
	Handle  vk.Fence
	// Tracked so a wait on an already signaled fence returns immediately.
	IsSignaled bool
}

func (d *Device) CreateFence(signaled bool) (gpu.Fence, error) {
	createInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		// Make sure to signal the fence if required.
		createInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	ctx := d.context
	fence := &VulkanFence{context: ctx, IsSignaled: signaled}
	if res := vk.CreateFence(ctx.LogicalDevice, &createInfo, ctx.Allocator, &fence.Handle); res != vk.Success {
		return nil, resultError("vkCreateFence", res)
	}
	return fence, nil
}

func (f *VulkanFence) Wait(timeout time.Duration) error {
	if f.IsSignaled {
		return nil
	}
	res := vk.WaitForFences(f.context.LogicalDevice, 1, []vk.Fence{f.Handle}, vk.True, uint64(timeout.Nanoseconds()))
	switch res {
	case vk.Success:
		f.IsSignaled = true
		return nil
	case vk.Timeout:
		core.LogWarn("vk_fence_wait - Timed out")
		return fmt.Errorf("fence not signaled after %s: %w", timeout, core.ErrDevice)
	}
	return resultError("vkWaitForFences", res)
}

func (f *VulkanFence) Reset() error {
	if !f.IsSignaled {
		return nil
	}
	if res := vk.ResetFences(f.context.LogicalDevice, 1, []vk.Fence{f.Handle}); res != vk.Success {
		return resultError("vkResetFences", res)
	}
	f.IsSignaled = false
	return nil
}

func (f *VulkanFence) Destroy() {
	if f.Handle != vk.NullFence {
		vk.DestroyFence(f.context.LogicalDevice, f.Handle, f.context.Allocator)
		f.Handle = vk.NullFence
	}
	f.IsSignaled = false
}

type VulkanSemaphore struct {
	context *VulkanContext
	Handle  vk.Semaphore
}

func (d *Device) CreateSemaphore() (gpu.Semaphore, error) {
	createInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	ctx := d.context
	sem := &VulkanSemaphore{context: ctx}
	if res := vk.CreateSemaphore(ctx.LogicalDevice, &createInfo, ctx.Allocator, &sem.Handle); res != vk.Success {
		return nil, resultError("vkCreateSemaphore", res)
	}
	return sem, nil
}

func (s *VulkanSemaphore) Destroy() {
	if s.Handle != vk.NullSemaphore {
		vk.DestroySemaphore(s.context.LogicalDevice, s.Handle, s.context.Allocator)
		s.Handle = vk.NullSemaphore
	}
}

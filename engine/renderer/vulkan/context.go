package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima/engine/core"
)

// VulkanContext holds the handles every object created by a Device needs.
type VulkanContext struct {
	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks
	Surface   vk.Surface

	PhysicalDevice vk.PhysicalDevice
	LogicalDevice  vk.Device

	GraphicsQueueIndex uint32
	PresentQueueIndex  uint32
	GraphicsQueue      vk.Queue
	PresentQueue       vk.Queue

	GraphicsCommandPool vk.CommandPool

	Memory vk.PhysicalDeviceMemoryProperties
	Limits vk.PhysicalDeviceLimits

	queues *queueLocks
}

// FindMemoryIndex returns the first memory type allowed by typeFilter that has
// every bit in propertyFlags, or -1.
func (vc *VulkanContext) FindMemoryIndex(typeFilter uint32, propertyFlags vk.MemoryPropertyFlags) int32 {
	for i := uint32(0); i < vc.Memory.MemoryTypeCount; i++ {
		memoryType := vc.Memory.MemoryTypes[i]
		memoryType.Deref()
		if (typeFilter&(1<<i)) != 0 && (memoryType.PropertyFlags&propertyFlags) == propertyFlags {
			return int32(i)
		}
	}
	core.LogWarn("Unable to find suitable memory type!")
	return -1
}

// allocate backs requirements with memory of the wanted properties.
func (vc *VulkanContext) allocate(requirements vk.MemoryRequirements, properties vk.MemoryPropertyFlags) (vk.DeviceMemory, error) {
	requirements.Deref()
	index := vc.FindMemoryIndex(requirements.MemoryTypeBits, properties)
	if index < 0 {
		return nil, fmt.Errorf("no memory type with properties %#x: %w", uint32(properties), core.ErrAllocation)
	}
	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: uint32(index),
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(vc.LogicalDevice, &allocateInfo, vc.Allocator, &memory); res != vk.Success {
		return nil, resultError("vkAllocateMemory", res)
	}
	return memory, nil
}

// oneShot records fn into a throwaway command buffer, submits it on the
// graphics queue and waits for the queue to drain.
func (vc *VulkanContext) oneShot(fn func(cb vk.CommandBuffer)) error {
	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        vc.GraphicsCommandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	handles := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(vc.LogicalDevice, &allocateInfo, handles); res != vk.Success {
		return resultError("vkAllocateCommandBuffers", res)
	}
	defer vk.FreeCommandBuffers(vc.LogicalDevice, vc.GraphicsCommandPool, 1, handles)

	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if res := vk.BeginCommandBuffer(handles[0], &beginInfo); res != vk.Success {
		return resultError("vkBeginCommandBuffer", res)
	}
	fn(handles[0])
	if res := vk.EndCommandBuffer(handles[0]); res != vk.Success {
		return resultError("vkEndCommandBuffer", res)
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    handles,
	}
	return vc.queues.Do(vc.GraphicsQueueIndex, func() error {
		if res := vk.QueueSubmit(vc.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, vk.Fence(vk.NullHandle)); res != vk.Success {
			return resultError("vkQueueSubmit", res)
		}
		if res := vk.QueueWaitIdle(vc.GraphicsQueue); res != vk.Success {
			return resultError("vkQueueWaitIdle", res)
		}
		return nil
	})
}

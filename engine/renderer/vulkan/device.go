package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima/engine/core"
	"github.com/spaghettifunk/anima/engine/renderer/gpu"
)

// Device implements gpu.Device for one logical Vulkan device.
type Device struct {
	context *VulkanContext
	limits  gpu.Limits
}

const portabilitySubset = "VK_KHR_portability_subset"

// CreateDevice creates the logical device with one queue per distinct family
// and a resettable command pool on the graphics family.
func (inst *Instance) CreateDevice(cfg gpu.DeviceConfig) (gpu.Device, error) {
	if cfg.PhysicalDevice < 0 || cfg.PhysicalDevice >= len(inst.physical) {
		return nil, fmt.Errorf("physical device %d was not enumerated: %w", cfg.PhysicalDevice, core.ErrDevice)
	}
	physical := inst.physical[cfg.PhysicalDevice]

	// Shared families get a single queue.
	families := []uint32{cfg.GraphicsFamily}
	if cfg.PresentFamily != cfg.GraphicsFamily {
		families = append(families, cfg.PresentFamily)
	}
	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(families))
	for i, family := range families {
		queueCreateInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: family,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}

	deviceFeatures := vk.PhysicalDeviceFeatures{}
	if cfg.SamplerAnisotropy {
		deviceFeatures.SamplerAnisotropy = vk.True
	}

	extensions := append([]string(nil), cfg.Extensions...)
	available, err := deviceExtensions(physical)
	if err != nil {
		return nil, err
	}
	for _, name := range available {
		if name == portabilitySubset {
			core.LogInfo("Adding required extension '%s'.", portabilitySubset)
			extensions = appendUnique(extensions, portabilitySubset)
			break
		}
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{deviceFeatures},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensions),
	}

	ctx := &VulkanContext{
		Instance:           inst.context.Instance,
		Allocator:          inst.context.Allocator,
		Surface:            inst.context.Surface,
		PhysicalDevice:     physical,
		GraphicsQueueIndex: cfg.GraphicsFamily,
		PresentQueueIndex:  cfg.PresentFamily,
		queues:             newQueueLocks(families...),
	}
	if res := vk.CreateDevice(physical, &deviceCreateInfo, ctx.Allocator, &ctx.LogicalDevice); res != vk.Success {
		return nil, resultError("vkCreateDevice", res)
	}

	var graphics, present vk.Queue
	vk.GetDeviceQueue(ctx.LogicalDevice, cfg.GraphicsFamily, 0, &graphics)
	vk.GetDeviceQueue(ctx.LogicalDevice, cfg.PresentFamily, 0, &present)
	ctx.GraphicsQueue = graphics
	ctx.PresentQueue = present
	core.LogDebug("Queues obtained.")

	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: cfg.GraphicsFamily,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	if res := vk.CreateCommandPool(ctx.LogicalDevice, &poolCreateInfo, ctx.Allocator, &ctx.GraphicsCommandPool); res != vk.Success {
		vk.DestroyDevice(ctx.LogicalDevice, ctx.Allocator)
		return nil, resultError("vkCreateCommandPool", res)
	}
	core.LogDebug("Graphics command pool created.")

	var memory vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(physical, &memory)
	memory.Deref()
	ctx.Memory = memory
	for i := uint32(0); i < memory.MemoryHeapCount; i++ {
		heap := memory.MemoryHeaps[i]
		heap.Deref()
		gib := float64(heap.Size) / 1024.0 / 1024.0 / 1024.0
		if vk.MemoryHeapFlagBits(heap.Flags)&vk.MemoryHeapDeviceLocalBit != 0 {
			core.LogDebug("Local GPU memory: %.2f GiB", gib)
		} else {
			core.LogDebug("Shared System memory: %.2f GiB", gib)
		}
	}

	var properties vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(physical, &properties)
	properties.Deref()
	properties.Limits.Deref()
	ctx.Limits = properties.Limits

	return &Device{context: ctx, limits: limitsFrom(properties.Limits)}, nil
}

func (d *Device) Limits() gpu.Limits {
	return d.limits
}

func (d *Device) SurfaceSupport() (gpu.SurfaceSupport, error) {
	return querySurfaceSupport(d.context.PhysicalDevice, d.context.Surface)
}

// DepthFormat returns the first depth format usable as an attachment.
func (d *Device) DepthFormat() (gpu.Format, error) {
	candidates := []gpu.Format{
		gpu.FormatD32Sfloat,
		gpu.FormatD32SfloatS8Uint,
		gpu.FormatD24UnormS8Uint,
	}
	flags := vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)
	for _, candidate := range candidates {
		var properties vk.FormatProperties
		vk.GetPhysicalDeviceFormatProperties(d.context.PhysicalDevice, toVkFormat(candidate), &properties)
		properties.Deref()
		if properties.LinearTilingFeatures&flags == flags || properties.OptimalTilingFeatures&flags == flags {
			return candidate, nil
		}
	}
	return gpu.FormatUndefined, fmt.Errorf("failed to find a supported depth format: %w", core.ErrDevice)
}

func (d *Device) WaitIdle() error {
	if res := vk.DeviceWaitIdle(d.context.LogicalDevice); res != vk.Success {
		return resultError("vkDeviceWaitIdle", res)
	}
	return nil
}

func (d *Device) Destroy() {
	ctx := d.context
	if ctx.LogicalDevice == nil {
		return
	}
	core.LogDebug("Destroying command pools...")
	vk.DestroyCommandPool(ctx.LogicalDevice, ctx.GraphicsCommandPool, ctx.Allocator)
	ctx.GraphicsCommandPool = vk.CommandPool(vk.NullHandle)

	core.LogDebug("Destroying logical device...")
	vk.DestroyDevice(ctx.LogicalDevice, ctx.Allocator)
	ctx.LogicalDevice = nil
	ctx.GraphicsQueue = nil
	ctx.PresentQueue = nil
}

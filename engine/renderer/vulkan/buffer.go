package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima/engine/core"
	"github.com/spaghettifunk/anima/engine/renderer/gpu"
)

// VulkanBuffer is a buffer with its own memory. Host visible buffers stay
// mapped for their whole life.
type VulkanBuffer struct {
	context *VulkanContext
	Handle  vk.Buffer
	Memory  vk.DeviceMemory
	size    uint64
	mapped  unsafe.Pointer
}

func (d *Device) CreateBuffer(desc gpu.BufferDesc) (gpu.Buffer, error) {
	if desc.Size == 0 {
		return nil, fmt.Errorf("buffer size must be positive: %w", core.ErrInvalidArgument)
	}
	ctx := d.context
	b := &VulkanBuffer{context: ctx, size: desc.Size}

	createInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(desc.Size),
		Usage:       toVkBufferUsage(desc.Usage),
		SharingMode: vk.SharingModeExclusive,
	}
	if res := vk.CreateBuffer(ctx.LogicalDevice, &createInfo, ctx.Allocator, &b.Handle); res != vk.Success {
		return nil, resultError("vkCreateBuffer", res)
	}

	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(ctx.LogicalDevice, b.Handle, &requirements)
	memory, err := ctx.allocate(requirements, toVkMemoryProperties(desc.Memory))
	if err != nil {
		b.Destroy()
		return nil, err
	}
	b.Memory = memory

	if res := vk.BindBufferMemory(ctx.LogicalDevice, b.Handle, b.Memory, 0); res != vk.Success {
		b.Destroy()
		return nil, resultError("vkBindBufferMemory", res)
	}

	if desc.Memory == gpu.MemoryHostVisible {
		var data unsafe.Pointer
		if res := vk.MapMemory(ctx.LogicalDevice, b.Memory, 0, vk.DeviceSize(vk.WholeSize), 0, &data); res != vk.Success {
			b.Destroy()
			return nil, resultError("vkMapMemory", res)
		}
		b.mapped = data
	}
	return b, nil
}

func (b *VulkanBuffer) Size() uint64 {
	return b.size
}

func (b *VulkanBuffer) Write(offset uint64, data []byte) error {
	if b.mapped == nil {
		return fmt.Errorf("buffer is not host visible: %w", core.ErrInvalidArgument)
	}
	if offset+uint64(len(data)) > b.size {
		return fmt.Errorf("write of %d bytes at %d overflows buffer of %d: %w", len(data), offset, b.size, core.ErrInvalidArgument)
	}
	vk.Memcopy(unsafe.Add(b.mapped, offset), data)
	return nil
}

func (b *VulkanBuffer) Flush(offset, size uint64) error {
	if b.mapped == nil {
		return nil
	}
	memoryRange := vk.MappedMemoryRange{
		SType:  vk.StructureTypeMappedMemoryRange,
		Memory: b.Memory,
		Offset: vk.DeviceSize(offset),
		Size:   vk.DeviceSize(size),
	}
	// A range reaching the end of the buffer may not be atom aligned.
	if offset+size >= b.size {
		memoryRange.Size = vk.DeviceSize(vk.WholeSize)
	}
	if res := vk.FlushMappedMemoryRanges(b.context.LogicalDevice, 1, []vk.MappedMemoryRange{memoryRange}); res != vk.Success {
		return resultError("vkFlushMappedMemoryRanges", res)
	}
	return nil
}

func (b *VulkanBuffer) Destroy() {
	ctx := b.context
	if b.mapped != nil {
		vk.UnmapMemory(ctx.LogicalDevice, b.Memory)
		b.mapped = nil
	}
	if b.Handle != vk.NullBuffer {
		vk.DestroyBuffer(ctx.LogicalDevice, b.Handle, ctx.Allocator)
		b.Handle = vk.NullBuffer
	}
	if b.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(ctx.LogicalDevice, b.Memory, ctx.Allocator)
		b.Memory = vk.NullDeviceMemory
	}
}

func (d *Device) CopyBuffer(src gpu.Buffer, srcOffset uint64, dst gpu.Buffer, dstOffset uint64, size uint64) error {
	from, ok := src.(*VulkanBuffer)
	if !ok {
		return fmt.Errorf("copy source is not a vulkan buffer: %w", core.ErrInvalidArgument)
	}
	to, ok := dst.(*VulkanBuffer)
	if !ok {
		return fmt.Errorf("copy destination is not a vulkan buffer: %w", core.ErrInvalidArgument)
	}
	region := vk.BufferCopy{
		SrcOffset: vk.DeviceSize(srcOffset),
		DstOffset: vk.DeviceSize(dstOffset),
		Size:      vk.DeviceSize(size),
	}
	return d.context.oneShot(func(cb vk.CommandBuffer) {
		vk.CmdCopyBuffer(cb, from.Handle, to.Handle, 1, []vk.BufferCopy{region})
	})
}

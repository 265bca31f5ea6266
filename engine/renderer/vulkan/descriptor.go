package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima/engine/core"
	"github.com/spaghettifunk/anima/engine/renderer/gpu"
)

type VulkanDescriptorSetLayout struct {
	context *VulkanContext
	Handle  vk.DescriptorSetLayout
}

func (d *Device) CreateDescriptorSetLayout(bindings []gpu.DescriptorBinding) (gpu.DescriptorSetLayout, error) {
	layoutBindings := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, b := range bindings {
		layoutBindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  toVkDescriptorType(b.Type),
			DescriptorCount: 1,
			StageFlags:      toVkShaderStages(b.Stages),
		}
	}
	createInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(layoutBindings)),
		PBindings:    layoutBindings,
	}
	ctx := d.context
	layout := &VulkanDescriptorSetLayout{context: ctx}
	if res := vk.CreateDescriptorSetLayout(ctx.LogicalDevice, &createInfo, ctx.Allocator, &layout.Handle); res != vk.Success {
		return nil, resultError("vkCreateDescriptorSetLayout", res)
	}
	return layout, nil
}

func (l *VulkanDescriptorSetLayout) Destroy() {
	if l.Handle != vk.NullDescriptorSetLayout {
		vk.DestroyDescriptorSetLayout(l.context.LogicalDevice, l.Handle, l.context.Allocator)
		l.Handle = vk.NullDescriptorSetLayout
	}
}

// VulkanDescriptorPool frees every set allocated from it when destroyed.
type VulkanDescriptorPool struct {
	context *VulkanContext
	Handle  vk.DescriptorPool
}

func (d *Device) CreateDescriptorPool(desc gpu.DescriptorPoolDesc) (gpu.DescriptorPool, error) {
	sizes := make([]vk.DescriptorPoolSize, 0, len(desc.Sizes))
	for _, t := range []gpu.DescriptorType{
		gpu.DescriptorTypeUniformBuffer,
		gpu.DescriptorTypeUniformBufferDynamic,
		gpu.DescriptorTypeCombinedImageSampler,
	} {
		if count := desc.Sizes[t]; count > 0 {
			sizes = append(sizes, vk.DescriptorPoolSize{
				Type:            toVkDescriptorType(t),
				DescriptorCount: count,
			})
		}
	}
	createInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       desc.MaxSets,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}
	ctx := d.context
	pool := &VulkanDescriptorPool{context: ctx}
	if res := vk.CreateDescriptorPool(ctx.LogicalDevice, &createInfo, ctx.Allocator, &pool.Handle); res != vk.Success {
		return nil, resultError("vkCreateDescriptorPool", res)
	}
	return pool, nil
}

func (p *VulkanDescriptorPool) Destroy() {
	if p.Handle != vk.NullDescriptorPool {
		vk.DestroyDescriptorPool(p.context.LogicalDevice, p.Handle, p.context.Allocator)
		p.Handle = vk.NullDescriptorPool
	}
}

type VulkanDescriptorSet struct {
	context *VulkanContext
	Handle  vk.DescriptorSet
}

func (d *Device) AllocateDescriptorSet(pool gpu.DescriptorPool, layout gpu.DescriptorSetLayout) (gpu.DescriptorSet, error) {
	p, ok := pool.(*VulkanDescriptorPool)
	if !ok {
		return nil, fmt.Errorf("not a vulkan descriptor pool: %w", core.ErrInvalidArgument)
	}
	l, ok := layout.(*VulkanDescriptorSetLayout)
	if !ok {
		return nil, fmt.Errorf("not a vulkan descriptor set layout: %w", core.ErrInvalidArgument)
	}
	allocateInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     p.Handle,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{l.Handle},
	}
	ctx := d.context
	set := &VulkanDescriptorSet{context: ctx}
	if res := vk.AllocateDescriptorSets(ctx.LogicalDevice, &allocateInfo, &set.Handle); res != vk.Success {
		return nil, resultError("vkAllocateDescriptorSets", res)
	}
	return set, nil
}

// Update points bindings of the set at buffers or textures. Writes with a
// missing resource are skipped.
func (s *VulkanDescriptorSet) Update(writes ...gpu.DescriptorWrite) {
	vkWrites := make([]vk.WriteDescriptorSet, 0, len(writes))
	for _, w := range writes {
		write := vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          s.Handle,
			DstBinding:      w.Binding,
			DescriptorCount: 1,
			DescriptorType:  toVkDescriptorType(w.Type),
		}
		switch w.Type {
		case gpu.DescriptorTypeCombinedImageSampler:
			view, ok := w.View.(*VulkanImageView)
			sampler, ok2 := w.Sampler.(*VulkanSampler)
			if !ok || !ok2 {
				core.LogWarn("descriptor write for binding %d has no texture, skipping", w.Binding)
				continue
			}
			write.PImageInfo = []vk.DescriptorImageInfo{{
				ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
				ImageView:   view.Handle,
				Sampler:     sampler.Handle,
			}}
		default:
			buffer, ok := w.Buffer.(*VulkanBuffer)
			if !ok {
				core.LogWarn("descriptor write for binding %d has no buffer, skipping", w.Binding)
				continue
			}
			write.PBufferInfo = []vk.DescriptorBufferInfo{{
				Buffer: buffer.Handle,
				Offset: vk.DeviceSize(w.Offset),
				Range:  vk.DeviceSize(w.Range),
			}}
		}
		vkWrites = append(vkWrites, write)
	}
	if len(vkWrites) == 0 {
		return
	}
	vk.UpdateDescriptorSets(s.context.LogicalDevice, uint32(len(vkWrites)), vkWrites, 0, nil)
}

// Destroy is a no-op: sets go back with their pool.
func (s *VulkanDescriptorSet) Destroy() {}

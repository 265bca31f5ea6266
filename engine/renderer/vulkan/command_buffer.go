package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima/engine/core"
	"github.com/spaghettifunk/anima/engine/renderer/gpu"
)

type VulkanCommandBufferState int

const (
	COMMAND_BUFFER_STATE_READY VulkanCommandBufferState = iota
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_IN_RENDER_PASS
	COMMAND_BUFFER_STATE_RECORDING_ENDED
	COMMAND_BUFFER_STATE_SUBMITTED
	COMMAND_BUFFER_STATE_NOT_ALLOCATED
)

// VulkanCommandBuffer is a primary buffer from the graphics command pool.
// Recording calls made in the wrong state are dropped with a warning.
type VulkanCommandBuffer struct {
	context *VulkanContext
	Handle  vk.CommandBuffer
	// Command buffer state.
	State VulkanCommandBufferState
}

func (d *Device) AllocateCommandBuffers(count int) ([]gpu.CommandBuffer, error) {
	if count <= 0 {
		return nil, fmt.Errorf("command buffer count %d: %w", count, core.ErrInvalidArgument)
	}
	ctx := d.context
	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        ctx.GraphicsCommandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(count),
	}
	handles := make([]vk.CommandBuffer, count)
	if res := vk.AllocateCommandBuffers(ctx.LogicalDevice, &allocateInfo, handles); res != vk.Success {
		return nil, resultError("vkAllocateCommandBuffers", res)
	}
	buffers := make([]gpu.CommandBuffer, count)
	for i, h := range handles {
		buffers[i] = &VulkanCommandBuffer{
			context: ctx,
			Handle:  h,
			State:   COMMAND_BUFFER_STATE_READY,
		}
	}
	return buffers, nil
}

func (v *VulkanCommandBuffer) Destroy() {
	if v.State == COMMAND_BUFFER_STATE_NOT_ALLOCATED {
		return
	}
	vk.FreeCommandBuffers(v.context.LogicalDevice, v.context.GraphicsCommandPool, 1, []vk.CommandBuffer{v.Handle})
	v.Handle = nil
	v.State = COMMAND_BUFFER_STATE_NOT_ALLOCATED
}

func (v *VulkanCommandBuffer) Begin(usage gpu.CommandBufferUsage) error {
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if usage&gpu.CommandBufferUsageOneTimeSubmit != 0 {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	if usage&gpu.CommandBufferUsageSimultaneousUse != 0 {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageSimultaneousUseBit)
	}
	if res := vk.BeginCommandBuffer(v.Handle, &beginInfo); res != vk.Success {
		return resultError("vkBeginCommandBuffer", res)
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING
	return nil
}

func (v *VulkanCommandBuffer) End() error {
	if res := vk.EndCommandBuffer(v.Handle); res != vk.Success {
		return resultError("vkEndCommandBuffer", res)
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING_ENDED
	return nil
}

func (v *VulkanCommandBuffer) Reset() error {
	if res := vk.ResetCommandBuffer(v.Handle, 0); res != vk.Success {
		return resultError("vkResetCommandBuffer", res)
	}
	v.State = COMMAND_BUFFER_STATE_READY
	return nil
}

func (v *VulkanCommandBuffer) recording(op string) bool {
	if v.State != COMMAND_BUFFER_STATE_RECORDING && v.State != COMMAND_BUFFER_STATE_IN_RENDER_PASS {
		core.LogWarn("%s called on a command buffer that is not recording (state %d)", op, v.State)
		return false
	}
	return true
}

func (v *VulkanCommandBuffer) BeginRenderPass(pass gpu.RenderPass, fb gpu.Framebuffer, extent gpu.Extent, clear gpu.ClearValues) {
	rp, ok := pass.(*VulkanRenderPass)
	framebuffer, ok2 := fb.(*VulkanFramebuffer)
	if !ok || !ok2 || !v.recording("BeginRenderPass") {
		return
	}

	clearValues := make([]vk.ClearValue, 2)
	clearValues[0].SetColor(clear.Color[:])
	clearValues[1].SetDepthStencil(clear.Depth, clear.Stencil)

	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  rp.Handle,
		Framebuffer: framebuffer.Handle,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: toVkExtent(extent),
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
	vk.CmdBeginRenderPass(v.Handle, &beginInfo, vk.SubpassContentsInline)
	v.State = COMMAND_BUFFER_STATE_IN_RENDER_PASS
}

func (v *VulkanCommandBuffer) EndRenderPass() {
	if v.State != COMMAND_BUFFER_STATE_IN_RENDER_PASS {
		core.LogWarn("EndRenderPass called outside a render pass")
		return
	}
	vk.CmdEndRenderPass(v.Handle)
	v.State = COMMAND_BUFFER_STATE_RECORDING
}

func (v *VulkanCommandBuffer) SetViewport(extent gpu.Extent) {
	if !v.recording("SetViewport") {
		return
	}
	vk.CmdSetViewport(v.Handle, 0, 1, []vk.Viewport{{
		X:        0,
		Y:        0,
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0.0,
		MaxDepth: 1.0,
	}})
}

func (v *VulkanCommandBuffer) SetScissor(extent gpu.Extent) {
	if !v.recording("SetScissor") {
		return
	}
	vk.CmdSetScissor(v.Handle, 0, 1, []vk.Rect2D{{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: toVkExtent(extent),
	}})
}

func (v *VulkanCommandBuffer) BindPipeline(pipeline gpu.Pipeline) {
	p, ok := pipeline.(*VulkanPipeline)
	if !ok || !v.recording("BindPipeline") {
		return
	}
	vk.CmdBindPipeline(v.Handle, vk.PipelineBindPointGraphics, p.Handle)
}

func (v *VulkanCommandBuffer) BindVertexBuffer(buffer gpu.Buffer, offset uint64) {
	b, ok := buffer.(*VulkanBuffer)
	if !ok || !v.recording("BindVertexBuffer") {
		return
	}
	vk.CmdBindVertexBuffers(v.Handle, 0, 1, []vk.Buffer{b.Handle}, []vk.DeviceSize{vk.DeviceSize(offset)})
}

func (v *VulkanCommandBuffer) BindIndexBuffer(buffer gpu.Buffer, offset uint64) {
	b, ok := buffer.(*VulkanBuffer)
	if !ok || !v.recording("BindIndexBuffer") {
		return
	}
	vk.CmdBindIndexBuffer(v.Handle, b.Handle, vk.DeviceSize(offset), vk.IndexTypeUint32)
}

func (v *VulkanCommandBuffer) BindDescriptorSet(pipeline gpu.Pipeline, set gpu.DescriptorSet, dynamicOffsets ...uint32) {
	p, ok := pipeline.(*VulkanPipeline)
	s, ok2 := set.(*VulkanDescriptorSet)
	if !ok || !ok2 || !v.recording("BindDescriptorSet") {
		return
	}
	vk.CmdBindDescriptorSets(v.Handle, vk.PipelineBindPointGraphics, p.PipelineLayout, 0, 1,
		[]vk.DescriptorSet{s.Handle}, uint32(len(dynamicOffsets)), dynamicOffsets)
}

func (v *VulkanCommandBuffer) Draw(vertexCount, firstVertex uint32) {
	if v.State != COMMAND_BUFFER_STATE_IN_RENDER_PASS {
		core.LogWarn("Draw called outside a render pass")
		return
	}
	vk.CmdDraw(v.Handle, vertexCount, 1, firstVertex, 0)
}

func (v *VulkanCommandBuffer) DrawIndexed(indexCount, firstIndex uint32, vertexOffset int32) {
	if v.State != COMMAND_BUFFER_STATE_IN_RENDER_PASS {
		core.LogWarn("DrawIndexed called outside a render pass")
		return
	}
	vk.CmdDrawIndexed(v.Handle, indexCount, 1, firstIndex, vertexOffset, 0)
}

package gputest

import (
	"errors"

	"github.com/spaghettifunk/anima/engine/renderer/gpu"
)

type Op string

const (
	OpBeginRenderPass   Op = "begin_render_pass"
	OpEndRenderPass     Op = "end_render_pass"
	OpSetViewport       Op = "set_viewport"
	OpSetScissor        Op = "set_scissor"
	OpBindPipeline      Op = "bind_pipeline"
	OpBindVertexBuffer  Op = "bind_vertex_buffer"
	OpBindIndexBuffer   Op = "bind_index_buffer"
	OpBindDescriptorSet Op = "bind_descriptor_set"
	OpDraw              Op = "draw"
	OpDrawIndexed       Op = "draw_indexed"
)

// Command is one recorded call. Only the fields of its Op are set.
type Command struct {
	Op             Op
	Framebuffer    *Framebuffer
	Extent         gpu.Extent
	Clear          gpu.ClearValues
	Pipeline       *Pipeline
	Buffer         *Buffer
	Set            *DescriptorSet
	DynamicOffsets []uint32
	VertexCount    uint32
	FirstVertex    uint32
	IndexCount     uint32
	FirstIndex     uint32
	VertexOffset   int32
}

type CommandBuffer struct {
	resource
	Commands  []Command
	Usage     gpu.CommandBufferUsage
	Recording bool
	// Begins counts how many times the buffer was recorded.
	Begins int
}

func (d *Device) AllocateCommandBuffers(count int) ([]gpu.CommandBuffer, error) {
	out := make([]gpu.CommandBuffer, 0, count)
	for i := 0; i < count; i++ {
		r, err := d.create(KindCommandBuffer)
		if err != nil {
			return nil, err
		}
		cb := &CommandBuffer{resource: r}
		d.CommandBuffers = append(d.CommandBuffers, cb)
		out = append(out, cb)
	}
	return out, nil
}

func (c *CommandBuffer) Begin(usage gpu.CommandBufferUsage) error {
	if c.Recording {
		return errors.New("command buffer already recording")
	}
	c.Commands = nil
	c.Usage = usage
	c.Recording = true
	c.Begins++
	return nil
}

func (c *CommandBuffer) End() error {
	if !c.Recording {
		return errors.New("command buffer not recording")
	}
	c.Recording = false
	return nil
}

func (c *CommandBuffer) Reset() error {
	c.Commands = nil
	c.Recording = false
	return nil
}

func (c *CommandBuffer) record(cmd Command) {
	c.Commands = append(c.Commands, cmd)
}

func (c *CommandBuffer) BeginRenderPass(pass gpu.RenderPass, fb gpu.Framebuffer, extent gpu.Extent, clear gpu.ClearValues) {
	c.record(Command{Op: OpBeginRenderPass, Framebuffer: fb.(*Framebuffer), Extent: extent, Clear: clear})
}

func (c *CommandBuffer) EndRenderPass() {
	c.record(Command{Op: OpEndRenderPass})
}

func (c *CommandBuffer) SetViewport(extent gpu.Extent) {
	c.record(Command{Op: OpSetViewport, Extent: extent})
}

func (c *CommandBuffer) SetScissor(extent gpu.Extent) {
	c.record(Command{Op: OpSetScissor, Extent: extent})
}

func (c *CommandBuffer) BindPipeline(pipeline gpu.Pipeline) {
	c.record(Command{Op: OpBindPipeline, Pipeline: pipeline.(*Pipeline)})
}

func (c *CommandBuffer) BindVertexBuffer(buffer gpu.Buffer, offset uint64) {
	c.record(Command{Op: OpBindVertexBuffer, Buffer: buffer.(*Buffer)})
}

func (c *CommandBuffer) BindIndexBuffer(buffer gpu.Buffer, offset uint64) {
	c.record(Command{Op: OpBindIndexBuffer, Buffer: buffer.(*Buffer)})
}

func (c *CommandBuffer) BindDescriptorSet(pipeline gpu.Pipeline, set gpu.DescriptorSet, dynamicOffsets ...uint32) {
	c.record(Command{
		Op:             OpBindDescriptorSet,
		Pipeline:       pipeline.(*Pipeline),
		Set:            set.(*DescriptorSet),
		DynamicOffsets: append([]uint32(nil), dynamicOffsets...),
	})
}

func (c *CommandBuffer) Draw(vertexCount, firstVertex uint32) {
	c.record(Command{Op: OpDraw, VertexCount: vertexCount, FirstVertex: firstVertex})
}

func (c *CommandBuffer) DrawIndexed(indexCount, firstIndex uint32, vertexOffset int32) {
	c.record(Command{Op: OpDrawIndexed, IndexCount: indexCount, FirstIndex: firstIndex, VertexOffset: vertexOffset})
}

// Draws returns the draw commands in recording order.
func (c *CommandBuffer) Draws() []Command {
	var out []Command
	for _, cmd := range c.Commands {
		if cmd.Op == OpDraw || cmd.Op == OpDrawIndexed {
			out = append(out, cmd)
		}
	}
	return out
}

// Count returns how many commands of op were recorded.
func (c *CommandBuffer) Count(op Op) int {
	n := 0
	for _, cmd := range c.Commands {
		if cmd.Op == op {
			n++
		}
	}
	return n
}

type Instance struct {
	Devices   []gpu.PhysicalDeviceInfo
	Device    *Device
	Config    gpu.DeviceConfig
	Destroyed bool

	// FailEnumerate is returned by PhysicalDevices when set.
	FailEnumerate error
}

// NewInstance returns an instance exposing one capable device backed by dev.
func NewInstance(dev *Device) *Instance {
	return &Instance{
		Device: dev,
		Devices: []gpu.PhysicalDeviceInfo{{
			Index: 0,
			Name:  "gputest",
			Type:  gpu.PhysicalDeviceTypeDiscrete,
			QueueFamilies: []gpu.QueueFamily{
				{Index: 0, Graphics: true, Compute: true, Transfer: true, Present: true},
			},
			Extensions:        []string{"VK_KHR_swapchain"},
			SamplerAnisotropy: true,
			Limits:            dev.Lims,
			Surface:           dev.Support,
		}},
	}
}

func (i *Instance) PhysicalDevices() ([]gpu.PhysicalDeviceInfo, error) {
	if i.FailEnumerate != nil {
		return nil, i.FailEnumerate
	}
	return i.Devices, nil
}

func (i *Instance) CreateDevice(cfg gpu.DeviceConfig) (gpu.Device, error) {
	i.Config = cfg
	return i.Device, nil
}

func (i *Instance) Destroy() {
	i.Destroyed = true
}

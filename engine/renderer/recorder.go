package renderer

import (
	"fmt"

	"github.com/spaghettifunk/anima/engine/core"
	"github.com/spaghettifunk/anima/engine/renderer/gpu"
)

// DrawRecord is what the recorder wrote for one object, kept for inspection.
type DrawRecord struct {
	ObjectID      RenderObjectHandle
	Pipeline      gpu.Pipeline
	Set           gpu.DescriptorSet
	DynamicOffset uint32
	Indexed       bool
	VertexCount   uint32
	FirstVertex   uint32
	IndexCount    uint32
	FirstIndex    uint32
	VertexOffset  int32
}

// CommandRecorder owns one command buffer per swapchain image and records the
// whole scene into each of them.
type CommandRecorder struct {
	device gpu.Device
	dirty  bool

	Buffers []gpu.CommandBuffer
	records []DrawRecord

	ClearColor [3]float32
}

func NewCommandRecorder(device gpu.Device, clear [3]float32) *CommandRecorder {
	return &CommandRecorder{device: device, ClearColor: clear, dirty: true}
}

func (cr *CommandRecorder) MarkDirty() {
	cr.dirty = true
}

func (cr *CommandRecorder) Dirty() bool {
	return cr.dirty
}

// Records returns a copy of the draw metadata of the last recording.
func (cr *CommandRecorder) Records() []DrawRecord {
	return append([]DrawRecord(nil), cr.records...)
}

// Allocate replaces the command buffers, one per swapchain image.
func (cr *CommandRecorder) Allocate(count int) error {
	cr.Release()
	buffers, err := cr.device.AllocateCommandBuffers(count)
	if err != nil {
		return fmt.Errorf("failed to allocate %d command buffers: %v: %w", count, err, core.ErrAllocation)
	}
	cr.Buffers = buffers
	cr.dirty = true
	return nil
}

func (cr *CommandRecorder) Release() {
	for i := len(cr.Buffers) - 1; i >= 0; i-- {
		cr.Buffers[i].Destroy()
	}
	cr.Buffers = nil
}

// recordTarget is everything a recording reads.
type recordTarget struct {
	swapchain *SwapchainManager
	pool      *BufferPool
	pipelines *PipelineCache
	uniforms  *UniformStream
	objects   []*RenderObject
}

// Record resolves every object's pipeline and re-records all command buffers.
func (cr *CommandRecorder) Record(t recordTarget) error {
	if len(cr.Buffers) != len(t.swapchain.Framebuffers) {
		return fmt.Errorf("%d command buffers for %d framebuffers: %w", len(cr.Buffers), len(t.swapchain.Framebuffers), core.ErrUnknown)
	}

	records := make([]DrawRecord, 0, len(t.objects))
	anyIndexed := false
	for _, o := range t.objects {
		p, err := t.pipelines.GetOrCreate(o.Material.Shader.Name, o.Attributes, o.Topology, o.Material.Config.CullMode)
		if err != nil {
			return err
		}
		r := DrawRecord{
			ObjectID:      o.ID,
			Pipeline:      p,
			Set:           o.Material.Set,
			DynamicOffset: t.uniforms.SlotOffset(o.Slot),
			Indexed:       o.Indexed(),
		}
		if r.Indexed {
			anyIndexed = true
			r.IndexCount = o.IndexCount
			r.FirstIndex = o.IndexOffset
			r.VertexOffset = int32(o.VertexOffset)
		} else {
			r.VertexCount = o.VertexCount
			r.FirstVertex = o.VertexOffset
		}
		records = append(records, r)
	}

	extent := t.swapchain.Extent
	clear := gpu.ClearValues{
		Color: [4]float32{cr.ClearColor[0], cr.ClearColor[1], cr.ClearColor[2], 1.0},
		Depth: 1.0,
	}
	for i, cb := range cr.Buffers {
		if err := cb.Reset(); err != nil {
			return err
		}
		if err := cb.Begin(gpu.CommandBufferUsageSimultaneousUse); err != nil {
			return err
		}
		cb.BeginRenderPass(t.swapchain.RenderPass, t.swapchain.Framebuffers[i], extent, clear)
		cb.SetViewport(extent)
		cb.SetScissor(extent)
		if t.pool.VertexBuffer != nil {
			cb.BindVertexBuffer(t.pool.VertexBuffer, 0)
		}
		if anyIndexed && t.pool.IndexBuffer != nil {
			cb.BindIndexBuffer(t.pool.IndexBuffer, 0)
		}
		for _, r := range records {
			cb.BindPipeline(r.Pipeline)
			cb.BindDescriptorSet(r.Pipeline, r.Set, r.DynamicOffset)
			if r.Indexed {
				cb.DrawIndexed(r.IndexCount, r.FirstIndex, r.VertexOffset)
			} else {
				cb.Draw(r.VertexCount, r.FirstVertex)
			}
		}
		cb.EndRenderPass()
		if err := cb.End(); err != nil {
			return err
		}
	}

	cr.records = records
	cr.dirty = false
	return nil
}

func (cr *CommandRecorder) Destroy() {
	cr.Release()
	cr.records = nil
}

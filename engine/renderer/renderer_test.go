package renderer

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima/engine/core"
	"github.com/spaghettifunk/anima/engine/math"
	"github.com/spaghettifunk/anima/engine/renderer/gpu"
	"github.com/spaghettifunk/anima/engine/renderer/gpu/gputest"
	"github.com/spaghettifunk/anima/engine/renderer/metadata"
)

func TestRendererInitialize(t *testing.T) {
	r, dev := newTestRenderer(t)

	assert.Equal(t, gpu.Extent{Width: 800, Height: 600}, r.Extent())
	assert.Len(t, r.swapchain.Framebuffers, 3)
	assert.Len(t, r.recorder.Buffers, r.swapchain.ImageCount())
	assert.Equal(t, 3, dev.Live(gputest.KindCommandBuffer))
	assert.Equal(t, 1, dev.Live(gputest.KindFence))
	assert.Equal(t, 2, dev.Live(gputest.KindSemaphore))
	assert.Equal(t, uint64(256), r.uniforms.Alignment)
}

func TestRendererZeroObjects(t *testing.T) {
	r, dev := newTestRenderer(t)

	require.NoError(t, r.Draw())

	assert.Nil(t, r.pool.VertexBuffer)
	assert.Nil(t, r.pool.IndexBuffer)
	assert.Empty(t, r.Records())
	for _, cb := range commandBuffers(r) {
		assert.Empty(t, cb.Draws())
		assert.Zero(t, cb.Count(gputest.OpBindVertexBuffer))
	}
	assert.Len(t, dev.Submits, 1)
	assert.Equal(t, 1, dev.Presents)
}

func TestRendererVertexOffsets(t *testing.T) {
	r, _ := newTestRenderer(t)
	addObject(t, r, 3, nil)
	addObject(t, r, 36, nil)
	addObject(t, r, 4, nil)

	require.NoError(t, r.Draw())

	assert.Equal(t, uint32(43), r.pool.VertexCount)
	var offsets []uint32
	for _, rec := range r.Records() {
		offsets = append(offsets, rec.FirstVertex)
	}
	assert.Equal(t, []uint32{0, 3, 39}, offsets)

	for _, cb := range commandBuffers(r) {
		draws := cb.Draws()
		require.Len(t, draws, 3)
		assert.Equal(t, gputest.OpDraw, draws[1].Op)
		assert.Equal(t, uint32(36), draws[1].VertexCount)
		assert.Equal(t, uint32(3), draws[1].FirstVertex)
		assert.Equal(t, 1, cb.Count(gputest.OpBindVertexBuffer))
		assert.Zero(t, cb.Count(gputest.OpBindIndexBuffer))
	}
}

func TestRendererIndexedAfterNonIndexed(t *testing.T) {
	r, _ := newTestRenderer(t)
	addObject(t, r, 3, nil)
	addObject(t, r, 3, nil)
	addObject(t, r, 4, []uint32{0, 1, 2, 2, 3, 0})

	require.NoError(t, r.Draw())

	records := r.Records()
	require.Len(t, records, 3)
	assert.True(t, records[2].Indexed)
	assert.Equal(t, uint32(0), records[2].FirstIndex)
	assert.Equal(t, uint32(6), records[2].IndexCount)
	assert.Equal(t, int32(6), records[2].VertexOffset)

	for _, cb := range commandBuffers(r) {
		assert.Equal(t, 1, cb.Count(gputest.OpBindIndexBuffer))
		draws := cb.Draws()
		assert.Equal(t, gputest.OpDrawIndexed, draws[2].Op)
		assert.Equal(t, int32(6), draws[2].VertexOffset)
	}
}

func TestRendererDynamicOffsets(t *testing.T) {
	r, dev := newTestRenderer(t)
	for i := 0; i < 3; i++ {
		addObject(t, r, 3, nil)
	}
	require.NoError(t, r.Draw())

	for i, rec := range r.Records() {
		assert.Equal(t, uint32(i)*256, rec.DynamicOffset)
	}
	cb := commandBuffers(r)[0]
	var offsets []uint32
	for _, cmd := range cb.Commands {
		if cmd.Op == gputest.OpBindDescriptorSet {
			offsets = append(offsets, cmd.DynamicOffsets...)
		}
	}
	assert.Equal(t, []uint32{0, 256, 512}, offsets)

	// Every object block was flushed with an atom aligned size.
	dynamic := r.uniforms.Dynamic.(*gputest.Buffer)
	flushed := map[uint64]uint64{}
	for _, f := range dev.Flushes {
		if f.Buffer == dynamic.ID {
			flushed[f.Offset] = f.Size
		}
	}
	assert.Equal(t, map[uint64]uint64{0: 192, 256: 192, 512: 192}, flushed)
}

func TestRendererDynamicBufferGrowthRewritesSets(t *testing.T) {
	r, _ := newTestRenderer(t)
	for i := 0; i < 5; i++ {
		addObject(t, r, 3, nil)
	}
	require.NoError(t, r.Draw())

	m, ok := r.materials.Get(testMaterial)
	require.True(t, ok)
	set := m.Set.(*gputest.DescriptorSet)
	assert.Same(t, r.uniforms.Dynamic, set.Writes[BindingObject].Buffer)
	assert.Equal(t, uint64(ObjectUniformSize), set.Writes[BindingObject].Range)
}

func TestRendererRebuildIfDirtyIsIdempotent(t *testing.T) {
	r, _ := newTestRenderer(t)
	addObject(t, r, 3, nil)
	addObject(t, r, 4, []uint32{0, 1, 2})
	require.NoError(t, r.Draw())

	records := r.Records()
	var begins []int
	for _, cb := range commandBuffers(r) {
		begins = append(begins, cb.Begins)
	}

	require.NoError(t, r.RebuildIfDirty())
	require.NoError(t, r.RebuildIfDirty())

	assert.Equal(t, records, r.Records())
	for i, cb := range commandBuffers(r) {
		assert.Equal(t, begins[i], cb.Begins)
	}

	// A topology change records again.
	h := addObject(t, r, 3, nil)
	require.NoError(t, r.RebuildIfDirty())
	require.NoError(t, r.SetTopology(h, metadata.PrimitiveTopologyPointList))
	require.NoError(t, r.RebuildIfDirty())
	for i, cb := range commandBuffers(r) {
		assert.Equal(t, begins[i]+2, cb.Begins)
	}
}

func TestRendererRecordsClearValuesAndViewport(t *testing.T) {
	r, _ := newTestRenderer(t)
	addObject(t, r, 3, nil)
	r.SetClearColor(0.5, 0.25, 0.125)
	require.NoError(t, r.Draw())

	for _, cb := range commandBuffers(r) {
		assert.Equal(t, gpu.CommandBufferUsageSimultaneousUse, cb.Usage)
		begin := cb.Commands[0]
		require.Equal(t, gputest.OpBeginRenderPass, begin.Op)
		assert.Equal(t, gpu.ClearValues{Color: [4]float32{0.5, 0.25, 0.125, 1}, Depth: 1}, begin.Clear)
		assert.Equal(t, gputest.OpSetViewport, cb.Commands[1].Op)
		assert.Equal(t, r.Extent(), cb.Commands[1].Extent)
		assert.Equal(t, gputest.OpSetScissor, cb.Commands[2].Op)
		assert.Equal(t, gputest.OpEndRenderPass, cb.Commands[len(cb.Commands)-1].Op)
	}
}

func TestRendererResize(t *testing.T) {
	r, dev := newTestRenderer(t)
	addObject(t, r, 3, nil)
	require.NoError(t, r.Draw())

	mark := dev.LogMark()
	require.NoError(t, r.OnWindowResize(1024, 768))

	want := gpu.Extent{Width: 1024, Height: 768}
	assert.Equal(t, want, r.Extent())
	assert.Equal(t, want, r.swapchain.DepthImage.Extent())
	require.Len(t, r.swapchain.Framebuffers, 3)
	for _, fb := range r.swapchain.Framebuffers {
		assert.Equal(t, want, fb.Extent())
	}

	// Everything sized to the old surface was gone before the first new allocation.
	first := firstCreateAfter(dev, mark)
	require.Less(t, first, len(dev.Log))
	for _, kind := range []gputest.Kind{
		gputest.KindSwapchain,
		gputest.KindImage,
		gputest.KindImageView,
		gputest.KindRenderPass,
		gputest.KindFramebuffer,
		gputest.KindPipeline,
		gputest.KindCommandBuffer,
	} {
		assert.Zero(t, dev.LiveAt(first, kind), "live %s at first allocation", kind)
	}
	assert.Empty(t, dev.DoubleFrees)

	// The next frame records against the new framebuffers and pipelines.
	require.NoError(t, r.Draw())
	for _, p := range dev.Pipelines {
		if !p.Destroyed {
			assert.Equal(t, want, p.Desc.Extent)
		}
	}
	assert.Equal(t, 1, dev.Live(gputest.KindPipeline))
}

func TestRendererAcquireOutOfDate(t *testing.T) {
	r, dev := newTestRenderer(t)
	addObject(t, r, 3, nil)
	require.NoError(t, r.Draw())

	swapchains := dev.Created(gputest.KindSwapchain)
	submits := len(dev.Submits)
	fence := r.frame.InFlight.(*gputest.Fence)
	resets := fence.Resets
	dev.AcquireResults = []gpu.Result{gpu.ResultOutOfDate}

	require.NoError(t, r.Draw())

	assert.Equal(t, swapchains+1, dev.Created(gputest.KindSwapchain))
	assert.Len(t, dev.Submits, submits)
	assert.Equal(t, resets, fence.Resets)
	assert.Equal(t, FrameIdle, r.FrameState())

	// The following frame draws normally.
	require.NoError(t, r.Draw())
	assert.Len(t, dev.Submits, submits+1)
	assert.Equal(t, swapchains+1, dev.Created(gputest.KindSwapchain))
}

func TestRendererPresentSuboptimal(t *testing.T) {
	r, dev := newTestRenderer(t)
	addObject(t, r, 3, nil)
	swapchains := dev.Created(gputest.KindSwapchain)
	dev.PresentResults = []gpu.Result{gpu.ResultSuboptimal}

	require.NoError(t, r.Draw())

	assert.Len(t, dev.Submits, 1)
	assert.Equal(t, swapchains+1, dev.Created(gputest.KindSwapchain))
}

func TestRendererRebuildFailureIsFatal(t *testing.T) {
	r, dev := newTestRenderer(t)
	addObject(t, r, 3, nil)
	require.NoError(t, r.Draw())

	dev.FailCreate = map[gputest.Kind]error{
		gputest.KindFramebuffer: fmt.Errorf("framebuffer attachment lost: %w", core.ErrSurfaceStale),
	}
	dev.AcquireResults = []gpu.Result{gpu.ResultOutOfDate}

	err := r.Draw()
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrDevice)
	assert.True(t, core.IsFatal(err))
	assert.Contains(t, err.Error(), "framebuffer attachment lost")
}

func TestRendererSubmitFailureKeepsFenceWaitable(t *testing.T) {
	r, dev := newTestRenderer(t)
	addObject(t, r, 3, nil)
	require.NoError(t, r.Draw())
	submits := len(dev.Submits)
	old := r.frame.InFlight.(*gputest.Fence)

	dev.FailSubmit = errors.New("queue lost")
	err := r.Draw()
	assert.ErrorIs(t, err, core.ErrDevice)
	assert.Len(t, dev.Submits, submits)
	assert.Equal(t, FrameIdle, r.FrameState())

	fence := r.frame.InFlight.(*gputest.Fence)
	assert.NotSame(t, old, fence)
	assert.True(t, fence.Signaled)
	assert.Equal(t, 1, dev.Live(gputest.KindFence))

	require.NoError(t, r.Draw())
	assert.Len(t, dev.Submits, submits+1)
	assert.Empty(t, dev.DoubleFrees)
}

func TestRendererSubmitSynchronization(t *testing.T) {
	r, dev := newTestRenderer(t)
	addObject(t, r, 3, nil)
	require.NoError(t, r.Draw())
	require.NoError(t, r.Draw())

	require.Len(t, dev.Submits, 2)
	for i, s := range dev.Submits {
		assert.Same(t, r.frame.ImageAvailable, s.Wait)
		assert.Same(t, r.frame.RenderComplete, s.Signal)
		assert.Same(t, r.frame.InFlight, s.Fence)
		assert.Same(t, commandBuffers(r)[i], s.CommandBuffer)
	}
}

func TestRendererMinimized(t *testing.T) {
	r, dev := newTestRenderer(t)
	addObject(t, r, 3, nil)
	swapchains := dev.Created(gputest.KindSwapchain)

	require.NoError(t, r.OnWindowResize(0, 0))
	assert.True(t, r.Suspended())
	assert.ErrorIs(t, r.Draw(), core.ErrSwapchainBooting)
	assert.False(t, core.IsFatal(core.ErrSwapchainBooting))
	assert.Equal(t, swapchains, dev.Created(gputest.KindSwapchain))
	assert.Empty(t, dev.Submits)

	require.NoError(t, r.OnWindowResize(640, 480))
	assert.False(t, r.Suspended())
	require.NoError(t, r.Draw())
	assert.Equal(t, gpu.Extent{Width: 640, Height: 480}, r.Extent())
}

func TestRendererDestroyCompactsSlots(t *testing.T) {
	r, dev := newTestRenderer(t)
	a := addObject(t, r, 3, nil)
	b := addObject(t, r, 4, nil)
	c := addObject(t, r, 5, nil)
	require.NoError(t, r.Draw())

	require.NoError(t, r.Destroy(b))
	require.NoError(t, r.Draw())

	records := r.Records()
	require.Len(t, records, 2)
	assert.Equal(t, a, records[0].ObjectID)
	assert.Equal(t, c, records[1].ObjectID)
	assert.Equal(t, uint32(256), records[1].DynamicOffset)
	assert.Equal(t, uint32(3), records[1].FirstVertex)
	assert.Equal(t, uint32(8), r.pool.VertexCount)
	assert.Equal(t, 2, r.pool.Builds)

	assert.ErrorIs(t, r.Destroy(b), core.ErrInvalidArgument)

	// Released ids are handed out again.
	d := addObject(t, r, 3, nil)
	assert.Equal(t, b, d)
	assert.Empty(t, dev.DoubleFrees)
}

func TestRendererInitializeRenderObjectValidation(t *testing.T) {
	r, _ := newTestRenderer(t)

	_, err := r.InitializeRenderObject(nil, metadata.VertexAttributePosition, nil, testMaterial, nil)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	_, err = r.InitializeRenderObject(make([]byte, 13), metadata.VertexAttributePosition, nil, testMaterial, nil)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	_, err = r.InitializeRenderObject(positions(3, 0), metadata.VertexAttributePosition, nil, "missing", nil)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	_, err = r.InitializeRenderObject(positions(3, 0), metadata.VertexAttributePosition, []uint32{0, 1, 3}, testMaterial, nil)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	assert.Empty(t, r.objects)
}

func TestRendererSetTopology(t *testing.T) {
	r, _ := newTestRenderer(t)
	h := addObject(t, r, 4, nil)

	assert.ErrorIs(t, r.SetTopology(h, metadata.PrimitiveTopologyLineLoop), core.ErrInvalidArgument)
	require.NoError(t, r.SetTopology(h, metadata.PrimitiveTopologyLineStrip))
	require.NoError(t, r.Draw())

	p := r.Records()[0].Pipeline.(*gputest.Pipeline)
	assert.Equal(t, metadata.PrimitiveTopologyLineStrip, p.Desc.Topology)
	assert.ErrorIs(t, r.SetTopology(RenderObjectHandle(99), metadata.PrimitiveTopologyPointList), core.ErrInvalidArgument)
}

func TestRendererTransforms(t *testing.T) {
	r, _ := newTestRenderer(t)
	transform := math.TransformFromPosition(math.NewVec3(1, 2, 3))
	h, err := r.InitializeRenderObject(positions(3, 0), metadata.VertexAttributePosition, nil, testMaterial, transform)
	require.NoError(t, err)
	o, ok := r.Object(h)
	require.True(t, ok)
	assert.True(t, o.Model().Equal(transform.GetWorld(), 1e-6))

	transform.SetPosition(math.NewVec3(4, 5, 6))
	r.SyncTransforms()
	assert.True(t, o.Model().Equal(math.NewMat4Translation(math.NewVec3(4, 5, 6)), 1e-6))

	model := math.NewMat4Scale(math.NewVec3(2, 2, 2))
	require.NoError(t, r.UpdateTransform(h, model))
	assert.Equal(t, model, o.Model())
}

func TestRendererVSyncToggle(t *testing.T) {
	r, dev := newTestRenderer(t)
	assert.Equal(t, gpu.PresentModeFifo, r.swapchain.PresentMode)
	swapchains := dev.Created(gputest.KindSwapchain)

	require.NoError(t, r.SetVSyncEnabled(true))
	assert.Equal(t, swapchains, dev.Created(gputest.KindSwapchain))

	require.NoError(t, r.SetVSyncEnabled(false))
	assert.Equal(t, swapchains+1, dev.Created(gputest.KindSwapchain))
	assert.Equal(t, gpu.PresentModeMailbox, r.swapchain.PresentMode)
}

func TestRendererTexturedMaterial(t *testing.T) {
	r, dev := newTestRenderer(t)
	require.NoError(t, r.RegisterShader(metadata.ShaderConfig{
		Name:         "builtin.textured",
		VertexCode:   testSpirv,
		FragmentCode: testSpirv,
		Attributes:   metadata.VertexAttributePosition | metadata.VertexAttributeUV,
		Uniforms:     metadata.UniformModel | metadata.UniformViewProjection | metadata.UniformTextureFlags,
	}))
	diffuse, err := r.LoadTexture(metadata.TextureData{Width: 1, Height: 1, Pixels: []byte{1, 2, 3, 4}})
	require.NoError(t, err)
	assert.NotEmpty(t, diffuse.Name)

	require.NoError(t, r.RegisterMaterial(metadata.MaterialConfig{
		Name:           "crate",
		ShaderName:     "builtin.textured",
		DiffuseMapName: diffuse.Name,
	}))
	m, ok := r.materials.Get("crate")
	require.True(t, ok)
	set := m.Set.(*gputest.DescriptorSet)
	assert.Same(t, diffuse.View, set.Writes[BindingDiffuse].View)
	// Missing maps point at the shared white texture.
	assert.Same(t, r.textures.fallback.View, set.Writes[BindingNormal].View)
	assert.Same(t, r.textures.fallback.View, set.Writes[BindingSpecular].View)
	assert.Equal(t, [4]uint32{1, 0, 0, 0}, TextureFlags(m))

	// Vertex layout must match the shader.
	_, err = r.InitializeRenderObject(positions(3, 0), metadata.VertexAttributePosition, nil, "crate", nil)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	err = r.RegisterMaterial(metadata.MaterialConfig{Name: "broken", ShaderName: "builtin.textured", NormalMapName: "nope"})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
	assert.Empty(t, dev.DoubleFrees)
}

func TestRendererReloadShader(t *testing.T) {
	r, dev := newTestRenderer(t)
	addObject(t, r, 3, nil)
	require.NoError(t, r.Draw())
	before := dev.Created(gputest.KindPipeline)

	require.NoError(t, r.ReloadShader(testShader, testSpirv, testSpirv))
	require.NoError(t, r.Draw())

	assert.Equal(t, before+1, dev.Created(gputest.KindPipeline))
	assert.Equal(t, 1, dev.Live(gputest.KindPipeline))
	assert.ErrorIs(t, r.ReloadShader("missing", testSpirv, testSpirv), core.ErrInvalidArgument)
}

func TestRendererShutdownReleasesEverything(t *testing.T) {
	r, dev := newTestRenderer(t)
	addObject(t, r, 3, []uint32{0, 1, 2})
	_, err := r.LoadTexture(metadata.TextureData{Name: "white", Width: 1, Height: 1, Pixels: []byte{255, 255, 255, 255}})
	require.NoError(t, err)
	require.NoError(t, r.Draw())

	require.NoError(t, r.Shutdown())

	assert.Equal(t, 0, dev.LiveTotal())
	assert.Empty(t, dev.DoubleFrees)
	assert.True(t, dev.IsDestroyed())
}

func TestRendererNoQualifyingDevice(t *testing.T) {
	dev := gputest.NewDevice()
	inst := gputest.NewInstance(dev)
	inst.Devices[0].SamplerAnisotropy = false

	_, err := New(inst, testConfig(), 800, 600)
	assert.ErrorIs(t, err, core.ErrDevice)
	assert.True(t, core.IsFatal(err))
}

func TestRendererEnumerationFailure(t *testing.T) {
	dev := gputest.NewDevice()
	inst := gputest.NewInstance(dev)
	inst.FailEnumerate = errors.New("instance lost")

	_, err := New(inst, testConfig(), 800, 600)
	assert.ErrorIs(t, err, core.ErrDevice)
	assert.Contains(t, err.Error(), "instance lost")
}

func TestRendererGraphicsFamilyWithoutTransferBit(t *testing.T) {
	dev := gputest.NewDevice()
	inst := gputest.NewInstance(dev)
	inst.Devices[0].QueueFamilies = []gpu.QueueFamily{
		{Index: 0, Graphics: true, Compute: true, Present: true},
	}

	r, err := New(inst, testConfig(), 800, 600)
	require.NoError(t, err)
	assert.Equal(t, QueueFamilyIndices{}, r.ctx.Queues)
	require.NoError(t, r.Shutdown())
}

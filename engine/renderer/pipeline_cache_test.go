package renderer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima/engine/core"
	"github.com/spaghettifunk/anima/engine/renderer/gpu"
	"github.com/spaghettifunk/anima/engine/renderer/gpu/gputest"
	"github.com/spaghettifunk/anima/engine/renderer/metadata"
)

const testAttrs = metadata.VertexAttributePosition | metadata.VertexAttributeUV | metadata.VertexAttributeNormal

func newTestCache(t *testing.T) (*PipelineCache, *gputest.Device) {
	t.Helper()
	dev := gputest.NewDevice()
	pc := NewPipelineCache(dev)
	_, err := pc.RegisterShader(metadata.ShaderConfig{
		Name:         testShader,
		VertexCode:   testSpirv,
		FragmentCode: testSpirv,
		Attributes:   testAttrs,
		Uniforms:     metadata.UniformModel | metadata.UniformViewProjection | metadata.UniformTextureFlags,
	})
	require.NoError(t, err)
	pass, err := dev.CreateRenderPass(gpu.RenderPassDesc{ColorFormat: gpu.FormatB8G8R8A8Unorm, DepthFormat: gpu.FormatD32Sfloat})
	require.NoError(t, err)
	pc.SetTarget(pass, gpu.Extent{Width: 800, Height: 600})
	return pc, dev
}

func TestPipelineCacheReusesPipelines(t *testing.T) {
	pc, dev := newTestCache(t)

	a, err := pc.GetOrCreate(testShader, testAttrs, metadata.PrimitiveTopologyTriangleList, metadata.FaceCullModeBack)
	require.NoError(t, err)
	b, err := pc.GetOrCreate(testShader, testAttrs, metadata.PrimitiveTopologyTriangleList, metadata.FaceCullModeBack)
	require.NoError(t, err)
	assert.Same(t, a, b)

	_, err = pc.GetOrCreate(testShader, testAttrs, metadata.PrimitiveTopologyLineList, metadata.FaceCullModeBack)
	require.NoError(t, err)
	assert.Equal(t, 2, dev.Created(gputest.KindPipeline))
	assert.Equal(t, 2, pc.Len())
}

func TestPipelineCacheDescription(t *testing.T) {
	pc, _ := newTestCache(t)

	p, err := pc.GetOrCreate(testShader, testAttrs, metadata.PrimitiveTopologyTriangleStrip, metadata.FaceCullModeNone)
	require.NoError(t, err)
	desc := p.(*gputest.Pipeline).Desc

	assert.Equal(t, uint32(32), desc.VertexStride)
	assert.Equal(t, []gpu.VertexInputAttribute{
		{Location: 0, Format: gpu.FormatR32G32B32Sfloat, Offset: 0},
		{Location: 1, Format: gpu.FormatR32G32Sfloat, Offset: 12},
		{Location: 2, Format: gpu.FormatR32G32B32Sfloat, Offset: 20},
	}, desc.Attributes)
	assert.True(t, desc.DepthTest)
	assert.True(t, desc.DepthWrite)
	assert.Equal(t, gpu.CompareOpLess, desc.DepthCompare)
	assert.False(t, desc.Blend)
	assert.Equal(t, gpu.Extent{Width: 800, Height: 600}, desc.Extent)
	assert.Equal(t, metadata.PrimitiveTopologyTriangleStrip, desc.Topology)
}

func TestPipelineCacheRejectsLineLoop(t *testing.T) {
	pc, dev := newTestCache(t)

	_, err := pc.GetOrCreate(testShader, testAttrs, metadata.PrimitiveTopologyLineLoop, metadata.FaceCullModeBack)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
	assert.Equal(t, 0, dev.Created(gputest.KindPipeline))
}

func TestPipelineCacheReleaseAndRebuild(t *testing.T) {
	pc, dev := newTestCache(t)
	for _, topology := range []metadata.PrimitiveTopology{metadata.PrimitiveTopologyTriangleList, metadata.PrimitiveTopologyPointList} {
		_, err := pc.GetOrCreate(testShader, testAttrs, topology, metadata.FaceCullModeBack)
		require.NoError(t, err)
	}

	pc.Release()
	assert.Equal(t, 0, dev.Live(gputest.KindPipeline))

	pc.SetTarget(pc.pass, gpu.Extent{Width: 1024, Height: 768})
	require.NoError(t, pc.Rebuild())
	assert.Equal(t, 2, dev.Live(gputest.KindPipeline))
	for _, p := range dev.Pipelines[2:] {
		assert.Equal(t, gpu.Extent{Width: 1024, Height: 768}, p.Desc.Extent)
	}
}

func TestPipelineCacheReloadShader(t *testing.T) {
	pc, dev := newTestCache(t)
	_, err := pc.GetOrCreate(testShader, testAttrs, metadata.PrimitiveTopologyTriangleList, metadata.FaceCullModeBack)
	require.NoError(t, err)

	require.NoError(t, pc.ReloadShader(testShader, testSpirv, testSpirv))
	assert.Equal(t, 0, pc.Len())
	assert.Equal(t, 0, dev.Live(gputest.KindPipeline))
	// Old modules released, new ones live.
	assert.Equal(t, 2, dev.Live(gputest.KindShaderModule))

	err = pc.ReloadShader(testShader, []byte{1, 2, 3}, testSpirv)
	assert.ErrorIs(t, err, core.ErrShaderLoad)
	assert.Equal(t, 2, dev.Live(gputest.KindShaderModule))
}

func TestPipelineCacheShaderErrors(t *testing.T) {
	dev := gputest.NewDevice()
	pc := NewPipelineCache(dev)

	_, err := pc.RegisterShader(metadata.ShaderConfig{Name: "broken", VertexCode: nil, FragmentCode: testSpirv})
	assert.ErrorIs(t, err, core.ErrShaderLoad)
	assert.Equal(t, 0, dev.LiveTotal())

	_, err = pc.GetOrCreate("missing", testAttrs, metadata.PrimitiveTopologyTriangleList, metadata.FaceCullModeBack)
	assert.ErrorIs(t, err, core.ErrShaderLoad)
}

func TestShaderBindings(t *testing.T) {
	bindings := ShaderBindings(metadata.UniformModel | metadata.UniformViewProjection | metadata.UniformTextureFlags)
	var got []uint32
	for _, b := range bindings {
		got = append(got, b.Binding)
	}
	assert.Equal(t, []uint32{BindingConstant, BindingObject, BindingDiffuse, BindingNormal, BindingSpecular}, got)
	assert.Equal(t, gpu.DescriptorTypeUniformBufferDynamic, bindings[1].Type)

	assert.Len(t, ShaderBindings(metadata.UniformModel), 1)
}

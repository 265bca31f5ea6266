package renderer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima/engine/renderer/gpu/gputest"
	"github.com/spaghettifunk/anima/engine/renderer/metadata"
)

// Four bytes of SPIR-V magic; enough for the fake to accept a module.
var testSpirv = []byte{0x03, 0x02, 0x23, 0x07}

const (
	testShader   = "builtin.world"
	testMaterial = "world"
)

func testConfig() Config {
	return Config{
		Backend:    metadata.DefaultRendererBackendConfig("anima-test"),
		ClearColor: [3]float32{0.1, 0.2, 0.3},
		Sampler: metadata.SamplerConfig{
			Filter:        metadata.TextureFilterModeLinear,
			Repeat:        metadata.TextureRepeatRepeat,
			MaxAnisotropy: 16,
		},
		MaxMaterials: 8,
	}
}

func newTestRenderer(t *testing.T) (*Renderer, *gputest.Device) {
	t.Helper()
	dev := gputest.NewDevice()
	r, err := New(gputest.NewInstance(dev), testConfig(), 800, 600)
	require.NoError(t, err)
	require.NoError(t, r.RegisterShader(metadata.ShaderConfig{
		Name:         testShader,
		VertexCode:   testSpirv,
		FragmentCode: testSpirv,
		Uniforms:     metadata.UniformModel | metadata.UniformViewProjection,
	}))
	require.NoError(t, r.RegisterMaterial(metadata.MaterialConfig{Name: testMaterial, ShaderName: testShader}))
	return r, dev
}

// positions returns n position-only vertices whose components count up from start.
func positions(n int, start float32) []byte {
	values := make([]float32, n*3)
	for i := range values {
		values[i] = start + float32(i)
	}
	return Float32Bytes(values)
}

func addObject(t *testing.T, r *Renderer, vertices int, indices []uint32) RenderObjectHandle {
	t.Helper()
	h, err := r.InitializeRenderObject(positions(vertices, float32(len(r.objects)*1000)), metadata.VertexAttributePosition, indices, testMaterial, nil)
	require.NoError(t, err)
	return h
}

func commandBuffers(r *Renderer) []*gputest.CommandBuffer {
	out := make([]*gputest.CommandBuffer, 0, len(r.recorder.Buffers))
	for _, cb := range r.recorder.Buffers {
		out = append(out, cb.(*gputest.CommandBuffer))
	}
	return out
}

// firstCreateAfter returns the log index of the first creation at or after mark.
func firstCreateAfter(dev *gputest.Device, mark int) int {
	for i := mark; i < len(dev.Log); i++ {
		if dev.Log[i].Create {
			return i
		}
	}
	return len(dev.Log)
}

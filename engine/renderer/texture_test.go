package renderer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima/engine/core"
	"github.com/spaghettifunk/anima/engine/renderer/gpu"
	"github.com/spaghettifunk/anima/engine/renderer/gpu/gputest"
	"github.com/spaghettifunk/anima/engine/renderer/metadata"
)

func TestTextureLoad(t *testing.T) {
	dev := gputest.NewDevice()
	loader := NewTextureLoader(dev, metadata.SamplerConfig{Filter: metadata.TextureFilterModeLinear, Repeat: metadata.TextureRepeatClampToEdge, MaxAnisotropy: 32})
	pixels := make([]byte, 2*2*4)
	for i := range pixels {
		pixels[i] = byte(i)
	}

	tex, err := loader.Load(pixels, 2, 2)
	require.NoError(t, err)

	img := tex.Image.(*gputest.Image)
	assert.Equal(t, gpu.ImageLayoutShaderReadOnly, img.Layout)
	assert.Equal(t, pixels, img.Pixels)
	assert.Equal(t, gpu.ImageUsageTransferDst|gpu.ImageUsageSampled, img.Desc.Usage)
	assert.Equal(t, []gputest.Transition{
		{Image: img.ID, From: gpu.ImageLayoutUndefined, To: gpu.ImageLayoutTransferDst},
		{Image: img.ID, From: gpu.ImageLayoutTransferDst, To: gpu.ImageLayoutShaderReadOnly},
	}, dev.Transitions)

	sampler := tex.Sampler.(*gputest.Sampler)
	assert.Equal(t, float32(16), sampler.Desc.MaxAnisotropy)
	assert.Equal(t, metadata.TextureRepeatClampToEdge, sampler.Desc.Repeat)

	// The staging buffer is gone.
	assert.Equal(t, 0, dev.Live(gputest.KindBuffer))

	tex.Destroy()
	assert.Equal(t, 0, dev.LiveTotal())
}

func TestTextureLoadRejectsShortPixels(t *testing.T) {
	dev := gputest.NewDevice()
	loader := NewTextureLoader(dev, metadata.SamplerConfig{})

	_, err := loader.Load(make([]byte, 15), 2, 2)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
	_, err = loader.Load(nil, 0, 0)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
	assert.Equal(t, 0, dev.LiveTotal())
}

func TestTextureLoadCleansUpOnFailure(t *testing.T) {
	dev := gputest.NewDevice()
	dev.FailCreate = map[gputest.Kind]error{gputest.KindSampler: errors.New("no samplers left")}
	loader := NewTextureLoader(dev, metadata.SamplerConfig{})

	_, err := loader.Load(make([]byte, 4), 1, 1)
	require.Error(t, err)
	assert.Equal(t, 0, dev.LiveTotal())
	assert.Empty(t, dev.DoubleFrees)
}

func TestTextureAnisotropyDisabled(t *testing.T) {
	dev := gputest.NewDevice()
	loader := NewTextureLoader(dev, metadata.SamplerConfig{MaxAnisotropy: 1})

	tex, err := loader.DefaultTexture()
	require.NoError(t, err)
	assert.Equal(t, float32(0), tex.Sampler.(*gputest.Sampler).Desc.MaxAnisotropy)
	assert.Equal(t, "default", tex.Name)
}

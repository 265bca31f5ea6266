package renderer

import (
	"fmt"

	"github.com/spaghettifunk/anima/engine/core"
	"github.com/spaghettifunk/anima/engine/renderer/gpu"
	"github.com/spaghettifunk/anima/engine/renderer/metadata"
)

// Texture is a sampled RGBA8 image with a single mip level.
type Texture struct {
	Name    string
	Width   uint32
	Height  uint32
	Image   gpu.Image
	View    gpu.ImageView
	Sampler gpu.Sampler
}

func (t *Texture) Destroy() {
	if t.Sampler != nil {
		t.Sampler.Destroy()
		t.Sampler = nil
	}
	if t.View != nil {
		t.View.Destroy()
		t.View = nil
	}
	if t.Image != nil {
		t.Image.Destroy()
		t.Image = nil
	}
}

type TextureLoader struct {
	device gpu.Device
	cfg    metadata.SamplerConfig
	limits gpu.Limits
}

func NewTextureLoader(device gpu.Device, cfg metadata.SamplerConfig) *TextureLoader {
	return &TextureLoader{device: device, cfg: cfg, limits: device.Limits()}
}

// Load uploads tightly packed RGBA8 pixels through a staging buffer.
func (tl *TextureLoader) Load(pixels []byte, width, height uint32) (*Texture, error) {
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("texture of %dx%d: %w", width, height, core.ErrInvalidArgument)
	}
	size := uint64(width) * uint64(height) * 4
	if uint64(len(pixels)) != size {
		return nil, fmt.Errorf("texture of %dx%d expects %d bytes, got %d: %w", width, height, size, len(pixels), core.ErrInvalidArgument)
	}

	// Owns everything until the texture is complete.
	scope := NewScope()
	defer scope.Release()

	staging, err := tl.device.CreateBuffer(gpu.BufferDesc{
		Size:   size,
		Usage:  gpu.BufferUsageTransferSrc,
		Memory: gpu.MemoryHostVisible,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create texture staging buffer: %v: %w", err, core.ErrAllocation)
	}
	scope.Own(staging)
	if err := staging.Write(0, pixels); err != nil {
		return nil, fmt.Errorf("failed to write texture staging buffer: %v: %w", err, core.ErrAllocation)
	}
	if err := staging.Flush(0, size); err != nil {
		return nil, err
	}

	extent := gpu.Extent{Width: width, Height: height}
	image, err := tl.device.CreateImage(gpu.ImageDesc{
		Extent: extent,
		Format: gpu.FormatR8G8B8A8Unorm,
		Usage:  gpu.ImageUsageTransferDst | gpu.ImageUsageSampled,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create texture image: %v: %w", err, core.ErrAllocation)
	}
	scope.Own(image)

	if err := tl.device.TransitionImageLayout(image, gpu.ImageLayoutUndefined, gpu.ImageLayoutTransferDst); err != nil {
		return nil, err
	}
	if err := tl.device.CopyBufferToImage(staging, image); err != nil {
		return nil, err
	}
	if err := tl.device.TransitionImageLayout(image, gpu.ImageLayoutTransferDst, gpu.ImageLayoutShaderReadOnly); err != nil {
		return nil, err
	}

	view, err := tl.device.CreateImageView(image, gpu.ImageAspectColor)
	if err != nil {
		return nil, err
	}
	scope.Own(view)

	sampler, err := tl.device.CreateSampler(gpu.SamplerDesc{
		Filter:        tl.cfg.Filter,
		Repeat:        tl.cfg.Repeat,
		MaxAnisotropy: tl.anisotropy(),
	})
	if err != nil {
		return nil, err
	}

	// Image, view and sampler now belong to the texture.
	scope.Forget()
	staging.Destroy()

	return &Texture{
		Width:   width,
		Height:  height,
		Image:   image,
		View:    view,
		Sampler: sampler,
	}, nil
}

func (tl *TextureLoader) anisotropy() float32 {
	a := tl.cfg.MaxAnisotropy
	if a <= 1 {
		return 0
	}
	if tl.limits.MaxSamplerAnisotropy > 0 && a > tl.limits.MaxSamplerAnisotropy {
		return tl.limits.MaxSamplerAnisotropy
	}
	return a
}

// LoadData loads decoded texture data and keeps its name.
func (tl *TextureLoader) LoadData(data metadata.TextureData) (*Texture, error) {
	t, err := tl.Load(data.Pixels, data.Width, data.Height)
	if err != nil {
		core.LogError("failed to load texture '%s': %s", data.Name, err)
		return nil, err
	}
	t.Name = data.Name
	return t, nil
}

// DefaultTexture is a 1x1 white texture bound wherever a material has no map.
func (tl *TextureLoader) DefaultTexture() (*Texture, error) {
	t, err := tl.Load([]byte{0xFF, 0xFF, 0xFF, 0xFF}, 1, 1)
	if err != nil {
		return nil, err
	}
	t.Name = "default"
	return t, nil
}

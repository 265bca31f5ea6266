package renderer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spaghettifunk/anima/engine/renderer/gpu"
)

func TestChooseSurfaceFormat(t *testing.T) {
	preferred := gpu.SurfaceFormat{Format: gpu.FormatB8G8R8A8Unorm, ColorSpace: gpu.ColorSpaceSrgbNonlinear}
	other := gpu.SurfaceFormat{Format: gpu.FormatR8G8B8A8Srgb, ColorSpace: gpu.ColorSpaceSrgbNonlinear}
	wrongSpace := gpu.SurfaceFormat{Format: gpu.FormatB8G8R8A8Unorm, ColorSpace: gpu.ColorSpaceOther}

	assert.Equal(t, preferred, ChooseSurfaceFormat([]gpu.SurfaceFormat{other, preferred}))
	assert.Equal(t, other, ChooseSurfaceFormat([]gpu.SurfaceFormat{other, wrongSpace}))
}

func TestChoosePresentMode(t *testing.T) {
	all := []gpu.PresentMode{gpu.PresentModeFifo, gpu.PresentModeImmediate, gpu.PresentModeMailbox}

	assert.Equal(t, gpu.PresentModeFifo, ChoosePresentMode(all, true))
	assert.Equal(t, gpu.PresentModeMailbox, ChoosePresentMode(all, false))
	assert.Equal(t, gpu.PresentModeImmediate, ChoosePresentMode([]gpu.PresentMode{gpu.PresentModeFifo, gpu.PresentModeImmediate}, false))
	assert.Equal(t, gpu.PresentModeFifo, ChoosePresentMode([]gpu.PresentMode{gpu.PresentModeFifo}, false))
}

func TestChooseExtent(t *testing.T) {
	caps := gpu.SurfaceCapabilities{
		CurrentExtent: gpu.Extent{Width: gpu.UndefinedExtent, Height: gpu.UndefinedExtent},
		MinExtent:     gpu.Extent{Width: 100, Height: 100},
		MaxExtent:     gpu.Extent{Width: 2000, Height: 1000},
	}
	assert.Equal(t, gpu.Extent{Width: 800, Height: 600}, ChooseExtent(caps, gpu.Extent{Width: 800, Height: 600}))
	assert.Equal(t, gpu.Extent{Width: 2000, Height: 100}, ChooseExtent(caps, gpu.Extent{Width: 4000, Height: 10}))

	caps.CurrentExtent = gpu.Extent{Width: 1280, Height: 720}
	assert.Equal(t, caps.CurrentExtent, ChooseExtent(caps, gpu.Extent{Width: 800, Height: 600}))
}

func TestChooseImageCount(t *testing.T) {
	assert.Equal(t, uint32(3), ChooseImageCount(gpu.SurfaceCapabilities{MinImageCount: 2, MaxImageCount: 8}))
	assert.Equal(t, uint32(2), ChooseImageCount(gpu.SurfaceCapabilities{MinImageCount: 2, MaxImageCount: 2}))
	// Zero maximum means no limit.
	assert.Equal(t, uint32(4), ChooseImageCount(gpu.SurfaceCapabilities{MinImageCount: 3}))
}

package renderer

import (
	"fmt"

	"github.com/spaghettifunk/anima/engine/core"
	"github.com/spaghettifunk/anima/engine/math"
	"github.com/spaghettifunk/anima/engine/renderer/gpu"
)

// SwapchainManager owns the presentable images and everything sized to them.
type SwapchainManager struct {
	device gpu.Device
	VSync  bool

	// Per-extent objects, released together before a rebuild.
	scope *Scope

	Swapchain    gpu.Swapchain
	Format       gpu.SurfaceFormat
	PresentMode  gpu.PresentMode
	Extent       gpu.Extent
	Views        []gpu.ImageView
	RenderPass   gpu.RenderPass
	DepthFormat  gpu.Format
	DepthImage   gpu.Image
	DepthView    gpu.ImageView
	Framebuffers []gpu.Framebuffer
}

func NewSwapchainManager(device gpu.Device, vsync bool) *SwapchainManager {
	return &SwapchainManager{
		device: device,
		VSync:  vsync,
		scope:  NewScope(),
	}
}

// ChooseSurfaceFormat prefers B8G8R8A8_UNORM with an sRGB color space.
func ChooseSurfaceFormat(formats []gpu.SurfaceFormat) gpu.SurfaceFormat {
	for _, f := range formats {
		if f.Format == gpu.FormatB8G8R8A8Unorm && f.ColorSpace == gpu.ColorSpaceSrgbNonlinear {
			return f
		}
	}
	if len(formats) == 0 {
		return gpu.SurfaceFormat{Format: gpu.FormatB8G8R8A8Unorm, ColorSpace: gpu.ColorSpaceSrgbNonlinear}
	}
	return formats[0]
}

// ChoosePresentMode returns FIFO with vsync, otherwise the lowest latency mode available.
func ChoosePresentMode(modes []gpu.PresentMode, vsync bool) gpu.PresentMode {
	if vsync {
		return gpu.PresentModeFifo
	}
	for _, preferred := range []gpu.PresentMode{gpu.PresentModeMailbox, gpu.PresentModeImmediate} {
		for _, m := range modes {
			if m == preferred {
				return m
			}
		}
	}
	// FIFO is the only mode every platform must support.
	return gpu.PresentModeFifo
}

// ChooseExtent uses the surface extent when it is defined, the hint otherwise,
// clamped to what the surface accepts.
func ChooseExtent(caps gpu.SurfaceCapabilities, hint gpu.Extent) gpu.Extent {
	if caps.CurrentExtent.Width != gpu.UndefinedExtent {
		return caps.CurrentExtent
	}
	return gpu.Extent{
		Width:  math.Clamp(hint.Width, caps.MinExtent.Width, caps.MaxExtent.Width),
		Height: math.Clamp(hint.Height, caps.MinExtent.Height, caps.MaxExtent.Height),
	}
}

// ChooseImageCount asks for one image more than the minimum, within the maximum.
func ChooseImageCount(caps gpu.SurfaceCapabilities) uint32 {
	count := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}

// Resolve picks format, present mode and extent for the next swapchain.
// A zero extent means the window is minimized.
func (sm *SwapchainManager) Resolve(hint gpu.Extent) (gpu.SurfaceSupport, gpu.Extent, error) {
	support, err := sm.device.SurfaceSupport()
	if err != nil {
		return support, gpu.Extent{}, fmt.Errorf("failed to query surface support: %v: %w", err, core.ErrDevice)
	}
	return support, ChooseExtent(support.Capabilities, hint), nil
}

// Teardown releases every per-extent object in reverse creation order.
func (sm *SwapchainManager) Teardown() {
	sm.scope.Release()
	sm.Swapchain = nil
	sm.Views = nil
	sm.RenderPass = nil
	sm.DepthImage = nil
	sm.DepthView = nil
	sm.Framebuffers = nil
}

func (sm *SwapchainManager) createSwapchain(support gpu.SurfaceSupport, extent gpu.Extent) error {
	sm.Format = ChooseSurfaceFormat(support.Formats)
	sm.PresentMode = ChoosePresentMode(support.PresentModes, sm.VSync)
	sm.Extent = extent

	sc, err := sm.device.CreateSwapchain(gpu.SwapchainDesc{
		Format:        sm.Format,
		PresentMode:   sm.PresentMode,
		Extent:        extent,
		MinImageCount: ChooseImageCount(support.Capabilities),
	})
	if err != nil {
		return err
	}
	sm.scope.Own(sc)
	sm.Swapchain = sc
	core.LogDebug("Swapchain created: %s, present mode %s, %d images.", extent, sm.PresentMode, len(sc.Images()))
	return nil
}

func (sm *SwapchainManager) createImageViews() error {
	images := sm.Swapchain.Images()
	sm.Views = make([]gpu.ImageView, 0, len(images))
	for _, img := range images {
		view, err := sm.device.CreateImageView(img, gpu.ImageAspectColor)
		if err != nil {
			return err
		}
		sm.scope.Own(view)
		sm.Views = append(sm.Views, view)
	}
	return nil
}

func (sm *SwapchainManager) createRenderPass() error {
	depth, err := sm.device.DepthFormat()
	if err != nil {
		return fmt.Errorf("failed to find a supported depth format: %v: %w", err, core.ErrDevice)
	}
	sm.DepthFormat = depth
	rp, err := sm.device.CreateRenderPass(gpu.RenderPassDesc{
		ColorFormat: sm.Format.Format,
		DepthFormat: depth,
	})
	if err != nil {
		return err
	}
	sm.scope.Own(rp)
	sm.RenderPass = rp
	return nil
}

func (sm *SwapchainManager) createDepthBuffer() error {
	img, err := sm.device.CreateImage(gpu.ImageDesc{
		Extent: sm.Extent,
		Format: sm.DepthFormat,
		Usage:  gpu.ImageUsageDepthStencilAttachment,
	})
	if err != nil {
		return err
	}
	sm.scope.Own(img)
	view, err := sm.device.CreateImageView(img, gpu.ImageAspectDepth)
	if err != nil {
		return err
	}
	sm.scope.Own(view)
	sm.DepthImage = img
	sm.DepthView = view
	return nil
}

func (sm *SwapchainManager) createFramebuffers() error {
	sm.Framebuffers = make([]gpu.Framebuffer, 0, len(sm.Views))
	for _, view := range sm.Views {
		fb, err := sm.device.CreateFramebuffer(sm.RenderPass, []gpu.ImageView{view, sm.DepthView}, sm.Extent)
		if err != nil {
			return err
		}
		sm.scope.Own(fb)
		sm.Framebuffers = append(sm.Framebuffers, fb)
	}
	return nil
}

func (sm *SwapchainManager) ImageCount() int {
	return len(sm.Views)
}

func (sm *SwapchainManager) Destroy() {
	sm.Teardown()
}

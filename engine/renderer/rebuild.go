package renderer

import (
	"fmt"

	"github.com/spaghettifunk/anima/engine/core"
	"github.com/spaghettifunk/anima/engine/renderer/gpu"
)

// RebuildStep names one stage of swapchain recreation, in execution order.
type RebuildStep int

const (
	RebuildDeviceIdle RebuildStep = iota
	RebuildSwapchain
	RebuildImageViews
	RebuildRenderPass
	RebuildPipelines
	RebuildDepthBuffer
	RebuildFramebuffers
	RebuildCommandBuffers
)

func (s RebuildStep) String() string {
	switch s {
	case RebuildDeviceIdle:
		return "device idle"
	case RebuildSwapchain:
		return "swapchain"
	case RebuildImageViews:
		return "image views"
	case RebuildRenderPass:
		return "render pass"
	case RebuildPipelines:
		return "pipelines"
	case RebuildDepthBuffer:
		return "depth buffer"
	case RebuildFramebuffers:
		return "framebuffers"
	case RebuildCommandBuffers:
		return "command buffers"
	}
	return fmt.Sprintf("RebuildStep(%d)", int(s))
}

// recreate rebuilds everything sized to the surface. A zero extent suspends
// drawing and leaves the current objects alone.
func (r *Renderer) recreate(hint gpu.Extent) error {
	support, extent, err := r.swapchain.Resolve(hint)
	if err != nil {
		return err
	}
	if extent.IsZero() {
		r.suspended = true
		return core.ErrSwapchainBooting
	}
	r.suspended = false

	if err := r.device.WaitIdle(); err != nil {
		return fmt.Errorf("swapchain rebuild failed at %s: %v: %w", RebuildDeviceIdle, err, core.ErrDevice)
	}

	// Old objects go before new ones are allocated.
	r.recorder.Release()
	r.pipelines.Release()
	r.swapchain.Teardown()

	steps := []struct {
		step RebuildStep
		fn   func() error
	}{
		{RebuildSwapchain, func() error { return r.swapchain.createSwapchain(support, extent) }},
		{RebuildImageViews, r.swapchain.createImageViews},
		{RebuildRenderPass, r.swapchain.createRenderPass},
		{RebuildPipelines, func() error {
			r.pipelines.SetTarget(r.swapchain.RenderPass, r.swapchain.Extent)
			return r.pipelines.Rebuild()
		}},
		{RebuildDepthBuffer, r.swapchain.createDepthBuffer},
		{RebuildFramebuffers, r.swapchain.createFramebuffers},
		{RebuildCommandBuffers, func() error { return r.recorder.Allocate(r.swapchain.ImageCount()) }},
	}
	for _, s := range steps {
		if err := s.fn(); err != nil {
			// A partial rebuild leaves the swapchain unusable whatever the step reported.
			err = fmt.Errorf("swapchain rebuild failed at %s: %v: %w", s.step, err, core.ErrDevice)
			core.LogError(err.Error())
			return err
		}
	}
	r.extent = extent
	r.recorder.MarkDirty()
	core.LogInfo("Swapchain recreated at %s.", extent)
	return nil
}

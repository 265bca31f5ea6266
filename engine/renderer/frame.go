package renderer

import (
	"errors"
	"fmt"
	"time"

	"github.com/spaghettifunk/anima/engine/core"
	"github.com/spaghettifunk/anima/engine/renderer/gpu"
)

type FrameState int

const (
	FrameIdle FrameState = iota
	FrameAcquiring
	FrameSubmitted
	FramePresenting
	FrameNeedsRecreate
)

func (s FrameState) String() string {
	switch s {
	case FrameIdle:
		return "idle"
	case FrameAcquiring:
		return "acquiring"
	case FrameSubmitted:
		return "submitted"
	case FramePresenting:
		return "presenting"
	case FrameNeedsRecreate:
		return "needs_recreate"
	}
	return fmt.Sprintf("FrameState(%d)", int(s))
}

const frameFenceTimeout = 5 * time.Second

// FrameSynchronizer drives acquire, submit and present. One frame of GPU work
// is in flight at most; InFlight guards it.
type FrameSynchronizer struct {
	device gpu.Device

	ImageAvailable gpu.Semaphore
	RenderComplete gpu.Semaphore
	InFlight       gpu.Fence

	State      FrameState
	ImageIndex uint32
}

func NewFrameSynchronizer(device gpu.Device) (*FrameSynchronizer, error) {
	fs := &FrameSynchronizer{device: device}
	var err error
	if fs.ImageAvailable, err = device.CreateSemaphore(); err != nil {
		return nil, fmt.Errorf("failed to create image available semaphore: %v: %w", err, core.ErrAllocation)
	}
	if fs.RenderComplete, err = device.CreateSemaphore(); err != nil {
		fs.Destroy()
		return nil, fmt.Errorf("failed to create render complete semaphore: %v: %w", err, core.ErrAllocation)
	}
	// Signaled so the first frame does not wait.
	if fs.InFlight, err = device.CreateFence(true); err != nil {
		fs.Destroy()
		return nil, fmt.Errorf("failed to create in flight fence: %v: %w", err, core.ErrAllocation)
	}
	return fs, nil
}

// WaitPrevious blocks until the last submitted frame finished on the GPU.
func (fs *FrameSynchronizer) WaitPrevious() error {
	if err := fs.InFlight.Wait(frameFenceTimeout); err != nil {
		return fmt.Errorf("in flight fence wait: %v: %w", err, core.ErrDevice)
	}
	return nil
}

// Acquire returns false when the surface went stale; the frame must be skipped.
func (fs *FrameSynchronizer) Acquire(swapchain gpu.Swapchain) (bool, error) {
	fs.State = FrameAcquiring
	index, result, err := fs.device.AcquireNextImage(swapchain, fs.ImageAvailable)
	if err != nil {
		fs.State = FrameIdle
		return false, fmt.Errorf("failed to acquire swapchain image: %v: %w", err, core.ErrDevice)
	}
	if result == gpu.ResultOutOfDate {
		fs.State = FrameNeedsRecreate
		return false, nil
	}
	// Suboptimal still delivers an image; present reports it again.
	fs.ImageIndex = index
	return true, nil
}

func (fs *FrameSynchronizer) Submit(cb gpu.CommandBuffer) error {
	if err := fs.InFlight.Reset(); err != nil {
		return fmt.Errorf("in flight fence reset: %v: %w", err, core.ErrDevice)
	}
	if err := fs.device.Submit(cb, fs.ImageAvailable, fs.RenderComplete, fs.InFlight); err != nil {
		fs.State = FrameIdle
		err = fmt.Errorf("failed to submit draw command buffer: %v: %w", err, core.ErrDevice)
		// Nothing will signal the reset fence, so the next wait would time out.
		if rerr := fs.resignal(); rerr != nil {
			return errors.Join(err, rerr)
		}
		return err
	}
	fs.State = FrameSubmitted
	return nil
}

// resignal swaps the in flight fence for a fresh signaled one.
func (fs *FrameSynchronizer) resignal() error {
	fence, err := fs.device.CreateFence(true)
	if err != nil {
		return fmt.Errorf("failed to recreate in flight fence: %v: %w", err, core.ErrAllocation)
	}
	fs.InFlight.Destroy()
	fs.InFlight = fence
	return nil
}

// Present returns false when the swapchain must be recreated.
func (fs *FrameSynchronizer) Present(swapchain gpu.Swapchain) (bool, error) {
	fs.State = FramePresenting
	result, err := fs.device.Present(swapchain, fs.ImageIndex, fs.RenderComplete)
	if err != nil {
		fs.State = FrameIdle
		return false, fmt.Errorf("failed to present swapchain image: %v: %w", err, core.ErrDevice)
	}
	if result == gpu.ResultOutOfDate || result == gpu.ResultSuboptimal {
		fs.State = FrameNeedsRecreate
		return false, nil
	}
	fs.State = FrameIdle
	return true, nil
}

func (fs *FrameSynchronizer) Destroy() {
	if fs.InFlight != nil {
		fs.InFlight.Destroy()
		fs.InFlight = nil
	}
	if fs.RenderComplete != nil {
		fs.RenderComplete.Destroy()
		fs.RenderComplete = nil
	}
	if fs.ImageAvailable != nil {
		fs.ImageAvailable.Destroy()
		fs.ImageAvailable = nil
	}
}

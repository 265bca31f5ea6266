package core

import (
	"errors"
)

var (
	ErrSwapchainBooting = errors.New("swapchain resized or recreated, booting")
	ErrUnknown          = errors.New("unknown")

	// No suitable device, queue family, extension or layer. Not recoverable.
	ErrDevice = errors.New("device error")
	// The swapchain no longer matches the surface (out of date or suboptimal).
	ErrSurfaceStale = errors.New("surface stale")
	// Host or device memory could not be allocated or mapped.
	ErrAllocation = errors.New("allocation error")
	// Pre-compiled shader code is missing or rejected by the driver.
	ErrShaderLoad = errors.New("shader load error")
	// Diagnostic reported by the validation layers.
	ErrValidation = errors.New("validation warning")
	// A caller passed data the renderer cannot use.
	ErrInvalidArgument = errors.New("invalid argument")
)

// IsFatal reports whether the frame loop must stop after err. Stale surfaces,
// validation diagnostics and a minimized window are expected at runtime.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrSurfaceStale),
		errors.Is(err, ErrValidation),
		errors.Is(err, ErrSwapchainBooting):
		return false
	}
	return true
}

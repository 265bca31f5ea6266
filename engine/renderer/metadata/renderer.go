package metadata

/**
 * @brief Everything the backend needs to create its instance and pick a device.
 * Owned by the device context; nothing here is global.
 */
type RendererBackendConfig struct {
	/** @brief The name of the application */
	ApplicationName string
	/** @brief Turns on the validation layers and the debug report callback. */
	EnableValidation bool
	/** @brief Instance extensions on top of the ones the window system needs. */
	InstanceExtensions []string
	/** @brief Validation layers requested when validation is enabled. */
	ValidationLayers []string
	/** @brief Extensions a physical device must expose to be selected. */
	DeviceExtensions []string
	/** @brief Present with FIFO. When off, mailbox or immediate is preferred. */
	VSync bool
}

const (
	ExtensionSwapchain     = "VK_KHR_swapchain"
	ExtensionDebugReport   = "VK_EXT_debug_report"
	LayerKhronosValidation = "VK_LAYER_KHRONOS_validation"
)

// DefaultRendererBackendConfig returns the minimum a presenting renderer needs.
func DefaultRendererBackendConfig(name string) RendererBackendConfig {
	return RendererBackendConfig{
		ApplicationName:  name,
		EnableValidation: false,
		ValidationLayers: []string{LayerKhronosValidation},
		DeviceExtensions: []string{ExtensionSwapchain},
		VSync:            true,
	}
}

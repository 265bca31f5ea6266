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

func capableDevice(index int, name string) gpu.PhysicalDeviceInfo {
	return gpu.PhysicalDeviceInfo{
		Index: index,
		Name:  name,
		Type:  gpu.PhysicalDeviceTypeIntegrated,
		QueueFamilies: []gpu.QueueFamily{
			{Index: 0, Graphics: true, Compute: true, Transfer: true},
			{Index: 1, Transfer: true},
			{Index: 2, Present: true},
		},
		Extensions:        []string{metadata.ExtensionSwapchain},
		SamplerAnisotropy: true,
		Surface: gpu.SurfaceSupport{
			Formats:      []gpu.SurfaceFormat{{Format: gpu.FormatB8G8R8A8Unorm}},
			PresentModes: []gpu.PresentMode{gpu.PresentModeFifo},
		},
	}
}

func defaultRequirements() PhysicalDeviceRequirements {
	return PhysicalDeviceRequirements{
		Graphics:             true,
		Present:              true,
		Transfer:             true,
		SamplerAnisotropy:    true,
		DeviceExtensionNames: []string{metadata.ExtensionSwapchain},
	}
}

func TestPhysicalDeviceQueueFamilies(t *testing.T) {
	indices, ok := PhysicalDeviceMeetsRequirements(capableDevice(0, "a"), defaultRequirements())
	require.True(t, ok)
	assert.Equal(t, QueueFamilyIndices{Graphics: 0, Present: 2, Transfer: 1}, indices)
}

func TestPhysicalDeviceGraphicsFamilyCarriesTransfers(t *testing.T) {
	info := capableDevice(0, "a")
	info.QueueFamilies = []gpu.QueueFamily{
		{Index: 0, Graphics: true, Compute: true, Present: true},
	}

	indices, ok := PhysicalDeviceMeetsRequirements(info, defaultRequirements())
	require.True(t, ok)
	assert.Equal(t, QueueFamilyIndices{Graphics: 0, Present: 0, Transfer: 0}, indices)
}

func TestPhysicalDevicePresentSharesGraphicsFamily(t *testing.T) {
	info := capableDevice(0, "a")
	info.QueueFamilies[0].Present = true

	indices, ok := PhysicalDeviceMeetsRequirements(info, defaultRequirements())
	require.True(t, ok)
	assert.Equal(t, uint32(0), indices.Present)
}

func TestSelectPhysicalDeviceSkipsUnsuitable(t *testing.T) {
	noPresent := capableDevice(0, "no present")
	noPresent.QueueFamilies = noPresent.QueueFamilies[:2]
	noSwapchain := capableDevice(1, "no swapchain")
	noSwapchain.Extensions = nil
	noAnisotropy := capableDevice(2, "no anisotropy")
	noAnisotropy.SamplerAnisotropy = false
	good := capableDevice(3, "good")

	info, _, err := SelectPhysicalDevice([]gpu.PhysicalDeviceInfo{noPresent, noSwapchain, noAnisotropy, good}, defaultRequirements())
	require.NoError(t, err)
	assert.Equal(t, "good", info.Name)
}

func TestSelectPhysicalDeviceNoneQualifies(t *testing.T) {
	_, _, err := SelectPhysicalDevice(nil, defaultRequirements())
	assert.ErrorIs(t, err, core.ErrDevice)

	bad := capableDevice(0, "bad")
	bad.Surface.PresentModes = nil
	_, _, err = SelectPhysicalDevice([]gpu.PhysicalDeviceInfo{bad}, defaultRequirements())
	assert.ErrorIs(t, err, core.ErrDevice)
	assert.True(t, core.IsFatal(err))
}

func TestDeviceContextLifecycle(t *testing.T) {
	dev := gputest.NewDevice()
	inst := gputest.NewInstance(dev)

	ctx, err := NewDeviceContext(inst, metadata.DefaultRendererBackendConfig("test"))
	require.NoError(t, err)
	assert.Equal(t, []string{metadata.ExtensionSwapchain}, inst.Config.Extensions)
	assert.True(t, inst.Config.SamplerAnisotropy)

	ctx.Destroy()
	assert.True(t, dev.IsDestroyed())
	assert.True(t, inst.Destroyed)
}

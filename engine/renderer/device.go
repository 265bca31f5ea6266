package renderer

import (
	"fmt"

	"github.com/spaghettifunk/anima/engine/core"
	"github.com/spaghettifunk/anima/engine/renderer/gpu"
	"github.com/spaghettifunk/anima/engine/renderer/metadata"
)

type PhysicalDeviceRequirements struct {
	Graphics             bool
	Present              bool
	Transfer             bool
	DeviceExtensionNames []string
	SamplerAnisotropy    bool
	DiscreteGPU          bool
}

type QueueFamilyIndices struct {
	Graphics uint32
	Present  uint32
	Transfer uint32
}

// PhysicalDeviceMeetsRequirements checks one device and picks its queue families.
// Graphics and present share a family when the device allows it.
func PhysicalDeviceMeetsRequirements(info gpu.PhysicalDeviceInfo, requirements PhysicalDeviceRequirements) (QueueFamilyIndices, bool) {
	indices := QueueFamilyIndices{}

	if requirements.DiscreteGPU && info.Type != gpu.PhysicalDeviceTypeDiscrete {
		core.LogInfo("Device '%s' is not a discrete GPU, and one is required. Skipping.", info.Name)
		return indices, false
	}

	graphics, present, transfer := -1, -1, -1
	minTransferScore := 255
	for _, family := range info.QueueFamilies {
		score := 0
		if family.Graphics {
			if graphics < 0 {
				graphics = int(family.Index)
			}
			score++
		}
		if family.Compute {
			score++
		}
		// Graphics and compute queues accept transfer work even without the bit.
		// Prefer the least busy family for transfers, most likely a dedicated one.
		canTransfer := family.Transfer || family.Graphics || family.Compute
		if canTransfer && score <= minTransferScore {
			minTransferScore = score
			transfer = int(family.Index)
		}
		if family.Present && (present < 0 || (family.Graphics && int(family.Index) == graphics)) {
			present = int(family.Index)
		}
	}

	core.LogDebug("Graphics | Present | Transfer | Name")
	core.LogDebug("%8t | %7t | %8t | %s", graphics >= 0, present >= 0, transfer >= 0, info.Name)

	if (requirements.Graphics && graphics < 0) ||
		(requirements.Present && present < 0) ||
		(requirements.Transfer && transfer < 0) {
		return indices, false
	}
	if graphics >= 0 {
		indices.Graphics = uint32(graphics)
	}
	if present >= 0 {
		indices.Present = uint32(present)
	}
	if transfer >= 0 {
		indices.Transfer = uint32(transfer)
	}

	if requirements.Present && (len(info.Surface.Formats) == 0 || len(info.Surface.PresentModes) == 0) {
		core.LogInfo("Required swapchain support not present, skipping device.")
		return indices, false
	}

	for _, required := range requirements.DeviceExtensionNames {
		found := false
		for _, available := range info.Extensions {
			if required == available {
				found = true
				break
			}
		}
		if !found {
			core.LogInfo("Required extension not found: '%s', skipping device.", required)
			return indices, false
		}
	}

	if requirements.SamplerAnisotropy && !info.SamplerAnisotropy {
		core.LogInfo("Device does not support samplerAnisotropy, skipping.")
		return indices, false
	}
	return indices, true
}

// SelectPhysicalDevice returns the first device that meets the requirements.
func SelectPhysicalDevice(devices []gpu.PhysicalDeviceInfo, requirements PhysicalDeviceRequirements) (gpu.PhysicalDeviceInfo, QueueFamilyIndices, error) {
	if len(devices) == 0 {
		return gpu.PhysicalDeviceInfo{}, QueueFamilyIndices{}, fmt.Errorf("no devices which support Vulkan were found: %w", core.ErrDevice)
	}
	for _, info := range devices {
		indices, ok := PhysicalDeviceMeetsRequirements(info, requirements)
		if !ok {
			continue
		}
		core.LogInfo("Selected device: '%s'.", info.Name)
		core.LogInfo("GPU type is %s.", info.Type)
		core.LogDebug("Graphics Family Index: %d", indices.Graphics)
		core.LogDebug("Present Family Index:  %d", indices.Present)
		core.LogDebug("Transfer Family Index: %d", indices.Transfer)
		return info, indices, nil
	}
	return gpu.PhysicalDeviceInfo{}, QueueFamilyIndices{}, fmt.Errorf("no physical devices were found which meet the requirements: %w", core.ErrDevice)
}

// DeviceContext owns the instance, the logical device and its queues.
type DeviceContext struct {
	Instance gpu.Instance
	Device   gpu.Device
	Physical gpu.PhysicalDeviceInfo
	Queues   QueueFamilyIndices
	Config   metadata.RendererBackendConfig
}

func NewDeviceContext(instance gpu.Instance, config metadata.RendererBackendConfig) (*DeviceContext, error) {
	devices, err := instance.PhysicalDevices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate physical devices: %v: %w", err, core.ErrDevice)
	}

	requirements := PhysicalDeviceRequirements{
		Graphics:             true,
		Present:              true,
		Transfer:             true,
		SamplerAnisotropy:    true,
		DeviceExtensionNames: config.DeviceExtensions,
	}
	info, queues, err := SelectPhysicalDevice(devices, requirements)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	core.LogInfo("Creating logical device...")
	device, err := instance.CreateDevice(gpu.DeviceConfig{
		PhysicalDevice:    info.Index,
		GraphicsFamily:    queues.Graphics,
		PresentFamily:     queues.Present,
		Extensions:        config.DeviceExtensions,
		SamplerAnisotropy: true,
	})
	if err != nil {
		err = fmt.Errorf("failed to create logical device: %v: %w", err, core.ErrDevice)
		core.LogError(err.Error())
		return nil, err
	}
	core.LogInfo("Logical device created.")

	return &DeviceContext{
		Instance: instance,
		Device:   device,
		Physical: info,
		Queues:   queues,
		Config:   config,
	}, nil
}

func (dc *DeviceContext) Destroy() {
	core.LogInfo("Destroying logical device...")
	if dc.Device != nil {
		dc.Device.Destroy()
		dc.Device = nil
	}
	if dc.Instance != nil {
		dc.Instance.Destroy()
		dc.Instance = nil
	}
}

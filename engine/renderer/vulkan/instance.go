package vulkan

import (
	"fmt"
	"runtime"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima/engine/core"
	"github.com/spaghettifunk/anima/engine/renderer/gpu"
	"github.com/spaghettifunk/anima/engine/renderer/metadata"
)

// SurfaceSource is the window the renderer presents to.
type SurfaceSource interface {
	GetInstanceProcAddress() unsafe.Pointer
	GetRequiredExtensionNames() []string
	CreateSurface(instance vk.Instance) (uintptr, error)
}

// Instance implements gpu.Instance on top of a Vulkan instance and the
// window surface.
type Instance struct {
	context  *VulkanContext
	config   metadata.RendererBackendConfig
	debugger vk.DebugReportCallback
	physical []vk.PhysicalDevice
}

func NewInstance(window SurfaceSource, config metadata.RendererBackendConfig) (*Instance, error) {
	procAddr := window.GetInstanceProcAddress()
	if procAddr == nil {
		return nil, fmt.Errorf("GetInstanceProcAddress is nil: %w", core.ErrDevice)
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize vk: %v: %w", err, core.ErrDevice)
	}

	inst := &Instance{
		context: &VulkanContext{Allocator: nil},
		config:  config,
	}

	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 0, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(config.ApplicationName),
		PEngineName:        VulkanSafeString("Anima Engine"),
	}
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	extensions := []string{"VK_KHR_surface"}
	extensions = appendUnique(extensions, window.GetRequiredExtensionNames()...)
	extensions = appendUnique(extensions, config.InstanceExtensions...)
	if runtime.GOOS == "darwin" {
		extensions = appendUnique(extensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= 1
	}

	var layers []string
	if config.EnableValidation {
		extensions = appendUnique(extensions, metadata.ExtensionDebugReport)
		if err := checkValidationLayers(config.ValidationLayers); err != nil {
			return nil, err
		}
		layers = config.ValidationLayers
	}
	for _, e := range extensions {
		core.LogDebug("Required extension: %s", e)
	}

	createInfo.EnabledExtensionCount = uint32(len(extensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(extensions)
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(layers)

	if res := vk.CreateInstance(&createInfo, inst.context.Allocator, &inst.context.Instance); res != vk.Success {
		return nil, resultError("vkCreateInstance", res)
	}
	if err := vk.InitInstance(inst.context.Instance); err != nil {
		inst.Destroy()
		return nil, fmt.Errorf("failed to load instance functions: %v: %w", err, core.ErrDevice)
	}
	core.LogInfo("Vulkan Instance created.")

	if config.EnableValidation {
		core.LogDebug("Creating Vulkan debugger...")
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType: vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags: vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit |
				vk.DebugReportPerformanceWarningBit | vk.DebugReportInformationBit),
			PfnCallback: dbgCallbackFunc,
		}
		var dbg vk.DebugReportCallback
		if res := vk.CreateDebugReportCallback(inst.context.Instance, &debugCreateInfo, inst.context.Allocator, &dbg); res != vk.Success {
			inst.Destroy()
			return nil, resultError("vkCreateDebugReportCallback", res)
		}
		inst.debugger = dbg
		core.LogDebug("Vulkan debugger created.")
	}

	core.LogDebug("Creating Vulkan surface...")
	surface, err := window.CreateSurface(inst.context.Instance)
	if err != nil || surface == 0 {
		inst.Destroy()
		return nil, fmt.Errorf("failed to create platform surface: %v: %w", err, core.ErrDevice)
	}
	inst.context.Surface = vk.SurfaceFromPointer(surface)
	core.LogDebug("Vulkan surface created.")

	return inst, nil
}

func checkValidationLayers(required []string) error {
	core.LogInfo("Validation layers enabled. Enumerating...")

	var count uint32
	if res := vk.EnumerateInstanceLayerProperties(&count, nil); res != vk.Success {
		return resultError("vkEnumerateInstanceLayerProperties", res)
	}
	available := make([]vk.LayerProperties, count)
	if res := vk.EnumerateInstanceLayerProperties(&count, available); res != vk.Success {
		return resultError("vkEnumerateInstanceLayerProperties", res)
	}

	for _, name := range required {
		found := false
		for i := range available {
			available[i].Deref()
			if cString(available[i].LayerName[:]) == name {
				found = true
				break
			}
		}
		if !found {
			err := fmt.Errorf("required validation layer is missing: %s: %w", name, core.ErrDevice)
			core.LogError(err.Error())
			return err
		}
	}
	core.LogInfo("All required validation layers are present.")
	return nil
}

func appendUnique(list []string, items ...string) []string {
	for _, item := range items {
		found := false
		for _, existing := range list {
			if existing == item {
				found = true
				break
			}
		}
		if !found {
			list = append(list, item)
		}
	}
	return list
}

// PhysicalDevices probes every device against the window surface.
func (inst *Instance) PhysicalDevices() ([]gpu.PhysicalDeviceInfo, error) {
	var count uint32
	if res := vk.EnumeratePhysicalDevices(inst.context.Instance, &count, nil); res != vk.Success {
		return nil, resultError("vkEnumeratePhysicalDevices", res)
	}
	if count == 0 {
		return nil, nil
	}
	devices := make([]vk.PhysicalDevice, count)
	if res := vk.EnumeratePhysicalDevices(inst.context.Instance, &count, devices); res != vk.Success {
		return nil, resultError("vkEnumeratePhysicalDevices", res)
	}
	inst.physical = devices

	infos := make([]gpu.PhysicalDeviceInfo, 0, count)
	for i, device := range devices {
		info, err := probePhysicalDevice(device, inst.context.Surface)
		if err != nil {
			core.LogWarn("Skipping physical device %d: %s", i, err)
			continue
		}
		info.Index = i
		infos = append(infos, info)
	}
	return infos, nil
}

func probePhysicalDevice(device vk.PhysicalDevice, surface vk.Surface) (gpu.PhysicalDeviceInfo, error) {
	var properties vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(device, &properties)
	properties.Deref()
	properties.Limits.Deref()

	var features vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(device, &features)
	features.Deref()

	info := gpu.PhysicalDeviceInfo{
		Name:              cString(properties.DeviceName[:]),
		Type:              fromVkDeviceType(properties.DeviceType),
		SamplerAnisotropy: features.SamplerAnisotropy == vk.True,
		Limits:            limitsFrom(properties.Limits),
	}

	core.LogDebug(
		"Device '%s' driver %d.%d.%d, Vulkan API %d.%d.%d",
		info.Name,
		vk.Version(properties.DriverVersion).Major(),
		vk.Version(properties.DriverVersion).Minor(),
		vk.Version(properties.DriverVersion).Patch(),
		vk.Version(properties.ApiVersion).Major(),
		vk.Version(properties.ApiVersion).Minor(),
		vk.Version(properties.ApiVersion).Patch(),
	)

	var familyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &familyCount, nil)
	families := make([]vk.QueueFamilyProperties, familyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &familyCount, families)
	for i := range families {
		families[i].Deref()
		flags := vk.QueueFlagBits(families[i].QueueFlags)
		var supportsPresent vk.Bool32
		if res := vk.GetPhysicalDeviceSurfaceSupport(device, uint32(i), surface, &supportsPresent); res != vk.Success {
			return info, resultError("vkGetPhysicalDeviceSurfaceSupport", res)
		}
		info.QueueFamilies = append(info.QueueFamilies, gpu.QueueFamily{
			Index:    uint32(i),
			Graphics: flags&vk.QueueGraphicsBit != 0,
			Compute:  flags&vk.QueueComputeBit != 0,
			Transfer: flags&vk.QueueTransferBit != 0,
			Present:  supportsPresent == vk.True,
		})
	}

	extensions, err := deviceExtensions(device)
	if err != nil {
		return info, err
	}
	info.Extensions = extensions

	support, err := querySurfaceSupport(device, surface)
	if err != nil {
		return info, err
	}
	info.Surface = support
	return info, nil
}

func limitsFrom(limits vk.PhysicalDeviceLimits) gpu.Limits {
	return gpu.Limits{
		MinUniformBufferOffsetAlignment: uint64(limits.MinUniformBufferOffsetAlignment),
		NonCoherentAtomSize:             uint64(limits.NonCoherentAtomSize),
		MaxSamplerAnisotropy:            limits.MaxSamplerAnisotropy,
	}
}

func deviceExtensions(device vk.PhysicalDevice) ([]string, error) {
	var count uint32
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &count, nil); res != vk.Success {
		return nil, resultError("vkEnumerateDeviceExtensionProperties", res)
	}
	available := make([]vk.ExtensionProperties, count)
	if count > 0 {
		if res := vk.EnumerateDeviceExtensionProperties(device, "", &count, available); res != vk.Success {
			return nil, resultError("vkEnumerateDeviceExtensionProperties", res)
		}
	}
	names := make([]string, 0, count)
	for i := range available {
		available[i].Deref()
		names = append(names, cString(available[i].ExtensionName[:]))
	}
	return names, nil
}

func querySurfaceSupport(device vk.PhysicalDevice, surface vk.Surface) (gpu.SurfaceSupport, error) {
	support := gpu.SurfaceSupport{}

	var caps vk.SurfaceCapabilities
	if res := vk.GetPhysicalDeviceSurfaceCapabilities(device, surface, &caps); res != vk.Success {
		return support, resultError("vkGetPhysicalDeviceSurfaceCapabilities", res)
	}
	caps.Deref()
	support.Capabilities = gpu.SurfaceCapabilities{
		MinImageCount: caps.MinImageCount,
		MaxImageCount: caps.MaxImageCount,
		CurrentExtent: fromVkExtent(caps.CurrentExtent),
		MinExtent:     fromVkExtent(caps.MinImageExtent),
		MaxExtent:     fromVkExtent(caps.MaxImageExtent),
	}

	var formatCount uint32
	if res := vk.GetPhysicalDeviceSurfaceFormats(device, surface, &formatCount, nil); res != vk.Success {
		return support, resultError("vkGetPhysicalDeviceSurfaceFormats", res)
	}
	if formatCount > 0 {
		surfaceFormats := make([]vk.SurfaceFormat, formatCount)
		if res := vk.GetPhysicalDeviceSurfaceFormats(device, surface, &formatCount, surfaceFormats); res != vk.Success {
			return support, resultError("vkGetPhysicalDeviceSurfaceFormats", res)
		}
		for i := range surfaceFormats {
			surfaceFormats[i].Deref()
			f := fromVkFormat(surfaceFormats[i].Format)
			if f == gpu.FormatUndefined {
				continue
			}
			support.Formats = append(support.Formats, gpu.SurfaceFormat{
				Format:     f,
				ColorSpace: fromVkColorSpace(surfaceFormats[i].ColorSpace),
			})
		}
	}

	var modeCount uint32
	if res := vk.GetPhysicalDeviceSurfacePresentModes(device, surface, &modeCount, nil); res != vk.Success {
		return support, resultError("vkGetPhysicalDeviceSurfacePresentModes", res)
	}
	if modeCount > 0 {
		modes := make([]vk.PresentMode, modeCount)
		if res := vk.GetPhysicalDeviceSurfacePresentModes(device, surface, &modeCount, modes); res != vk.Success {
			return support, resultError("vkGetPhysicalDeviceSurfacePresentModes", res)
		}
		for _, m := range modes {
			if mode, ok := fromVkPresentMode(m); ok {
				support.PresentModes = append(support.PresentModes, mode)
			}
		}
	}
	return support, nil
}

func (inst *Instance) Destroy() {
	if inst.context.Instance == nil {
		return
	}
	if inst.context.Surface != vk.NullSurface {
		core.LogDebug("Destroying Vulkan surface...")
		vk.DestroySurface(inst.context.Instance, inst.context.Surface, inst.context.Allocator)
		inst.context.Surface = vk.NullSurface
	}
	if inst.debugger != vk.NullDebugReportCallback {
		core.LogDebug("Destroying Vulkan debugger...")
		vk.DestroyDebugReportCallback(inst.context.Instance, inst.debugger, inst.context.Allocator)
		inst.debugger = vk.NullDebugReportCallback
	}
	core.LogDebug("Destroying Vulkan instance...")
	vk.DestroyInstance(inst.context.Instance, inst.context.Allocator)
	inst.context.Instance = nil
}

// Validation diagnostics are logged and never stop the renderer.
func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	err := fmt.Errorf("[%s] Code %d : %s: %w", pLayerPrefix, messageCode, pMessage, core.ErrValidation)
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("ERROR: %s", err)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("WARNING: %s", err)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE WARNING: %s", err)
	default:
		core.LogDebug("INFORMATION: %s", err)
	}
	return vk.Bool32(vk.False)
}

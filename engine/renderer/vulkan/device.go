package vulkan

import (
	"fmt"
	"runtime"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vesta/engine/core"
)

// noQueue marks a queue family that was not found.
const noQueue int32 = -1

type VulkanDevice struct {
	PhysicalDevice     vk.PhysicalDevice
	LogicalDevice      vk.Device
	SwapchainSupport   VulkanSwapchainSupportInfo
	GraphicsQueueIndex int32
	PresentQueueIndex  int32
	TransferQueueIndex int32
	ComputeQueueIndex  int32

	GraphicsQueue vk.Queue
	PresentQueue  vk.Queue
	TransferQueue vk.Queue
	ComputeQueue  vk.Queue

	GraphicsCommandPool vk.CommandPool

	Properties vk.PhysicalDeviceProperties
	Features   vk.PhysicalDeviceFeatures
	Memory     vk.PhysicalDeviceMemoryProperties

	DepthFormat vk.Format

	allocator *vk.AllocationCallbacks
	surface   vk.Surface
	locks     *VulkanLockPool
}

type VulkanPhysicalDeviceRequirements struct {
	Graphics             bool
	Present              bool
	Compute              bool
	Transfer             bool
	DeviceExtensionNames []string
	SamplerAnisotropy    bool
	DiscreteGPU          bool
}

type VulkanPhysicalDeviceQueueFamilyInfo struct {
	GraphicsFamilyIndex int32
	PresentFamilyIndex  int32
	ComputeFamilyIndex  int32
	TransferFamilyIndex int32
}

// found reports whether every required queue family was located.
func (q VulkanPhysicalDeviceQueueFamilyInfo) found(r *VulkanPhysicalDeviceRequirements) bool {
	return (!r.Graphics || q.GraphicsFamilyIndex != noQueue) &&
		(!r.Present || q.PresentFamilyIndex != noQueue) &&
		(!r.Compute || q.ComputeFamilyIndex != noQueue) &&
		(!r.Transfer || q.TransferFamilyIndex != noQueue)
}

// NewVulkanDevice selects a physical device able to present to surface and
// creates the logical device, its queues and the graphics command pool.
func NewVulkanDevice(context *VulkanContext) (*VulkanDevice, error) {
	device := &VulkanDevice{
		GraphicsQueueIndex: noQueue,
		PresentQueueIndex:  noQueue,
		TransferQueueIndex: noQueue,
		ComputeQueueIndex:  noQueue,
		allocator:          context.Allocator,
		surface:            context.Surface,
		locks:              NewVulkanLockPool(),
	}
	if err := device.selectPhysicalDevice(context.Instance); err != nil {
		return nil, err
	}
	if err := device.createLogicalDevice(); err != nil {
		return nil, err
	}
	return device, nil
}

func (d *VulkanDevice) createLogicalDevice() error {
	core.LogInfo("Creating logical device...")

	// NOTE: Do not create additional queues for shared indices.
	indices := []uint32{uint32(d.GraphicsQueueIndex)}
	for _, idx := range []int32{d.PresentQueueIndex, d.TransferQueueIndex, d.ComputeQueueIndex} {
		if idx == noQueue {
			continue
		}
		shared := false
		for _, existing := range indices {
			if existing == uint32(idx) {
				shared = true
				break
			}
		}
		if !shared {
			indices = append(indices, uint32(idx))
		}
	}

	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(indices))
	for i, idx := range indices {
		queueCreateInfos[i] = vk.DeviceQueueCreateInfo{
			SType:                                        vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: idx,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
		d.locks.SetQueueFamily(idx)
	}

	extensionNames := []string{vk.KhrSwapchainExtensionName}
	if d.hasExtension("VK_KHR_portability_subset") {
		core.LogInfo("Adding required extension 'VK_KHR_portability_subset'.")
		extensionNames = append(extensionNames, "VK_KHR_portability_subset")
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		EnabledExtensionCount:   uint32(len(extensionNames)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensionNames),
		PEnabledFeatures: []vk.PhysicalDeviceFeatures{{
			SamplerAnisotropy:                      vk.True,
			FillModeNonSolid:                       d.Features.FillModeNonSolid,
			TessellationShader:                     d.Features.TessellationShader,
			WideLines:                              d.Features.WideLines,
			DepthClamp:                             d.Features.DepthClamp,
			MultiDrawIndirect:                      d.Features.MultiDrawIndirect,
			ShaderSampledImageArrayDynamicIndexing: vk.True,
		}},
		// Bindless texture arrays.
		PNext: unsafe.Pointer(&vk.PhysicalDeviceVulkan12Features{
			SType:                                        vk.StructureTypePhysicalDeviceVulkan12Features,
			DescriptorIndexing:                           vk.True,
			DescriptorBindingVariableDescriptorCount:     vk.True,
			DescriptorBindingSampledImageUpdateAfterBind: vk.True,
			DescriptorBindingUpdateUnusedWhilePending:    vk.True,
			DescriptorBindingPartiallyBound:              vk.True,
			RuntimeDescriptorArray:                       vk.True,
			ShaderSampledImageArrayNonUniformIndexing:    vk.True,
		}),
	}

	var logical vk.Device
	if res := vk.CreateDevice(d.PhysicalDevice, &deviceCreateInfo, d.allocator, &logical); res != vk.Success {
		return fmt.Errorf("vkCreateDevice failed with %s: %w", VulkanResultString(res, true), core.ErrVulkan)
	}
	d.LogicalDevice = logical
	core.LogInfo("Logical device created.")

	vk.GetDeviceQueue(d.LogicalDevice, uint32(d.GraphicsQueueIndex), 0, &d.GraphicsQueue)
	vk.GetDeviceQueue(d.LogicalDevice, uint32(d.PresentQueueIndex), 0, &d.PresentQueue)
	vk.GetDeviceQueue(d.LogicalDevice, uint32(d.TransferQueueIndex), 0, &d.TransferQueue)
	if d.ComputeQueueIndex != noQueue {
		vk.GetDeviceQueue(d.LogicalDevice, uint32(d.ComputeQueueIndex), 0, &d.ComputeQueue)
	}
	core.LogInfo("Queues obtained.")

	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: uint32(d.GraphicsQueueIndex),
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	if res := vk.CreateCommandPool(d.LogicalDevice, &poolCreateInfo, d.allocator, &pool); res != vk.Success {
		return fmt.Errorf("vkCreateCommandPool failed with %s: %w", VulkanResultString(res, true), core.ErrVulkan)
	}
	d.GraphicsCommandPool = pool
	core.LogInfo("Graphics command pool created.")

	if !d.DetectDepthFormat() {
		return fmt.Errorf("no supported depth format: %w", core.ErrNotSupported)
	}
	return nil
}

func (d *VulkanDevice) hasExtension(name string) bool {
	for _, ext := range deviceExtensions(d.PhysicalDevice) {
		if ext == name {
			return true
		}
	}
	return false
}

func deviceExtensions(physical vk.PhysicalDevice) []string {
	var count uint32
	if res := vk.EnumerateDeviceExtensionProperties(physical, "", &count, nil); res != vk.Success || count == 0 {
		return nil
	}
	props := make([]vk.ExtensionProperties, count)
	if res := vk.EnumerateDeviceExtensionProperties(physical, "", &count, props); res != vk.Success {
		return nil
	}
	names := make([]string, 0, count)
	for i := range props {
		props[i].Deref()
		end := FindFirstZeroInByteArray(props[i].ExtensionName[:])
		names = append(names, string(props[i].ExtensionName[:end]))
	}
	return names
}

// Destroy releases the command pool and the logical device. Physical devices
// are not destroyed.
func (d *VulkanDevice) Destroy() {
	d.GraphicsQueue = nil
	d.PresentQueue = nil
	d.TransferQueue = nil
	d.ComputeQueue = nil

	core.LogInfo("Destroying command pools...")
	if d.GraphicsCommandPool != nil {
		vk.DestroyCommandPool(d.LogicalDevice, d.GraphicsCommandPool, d.allocator)
		d.GraphicsCommandPool = nil
	}

	core.LogInfo("Destroying logical device...")
	if d.LogicalDevice != nil {
		vk.DestroyDevice(d.LogicalDevice, d.allocator)
		d.LogicalDevice = nil
	}

	d.PhysicalDevice = nil
	d.SwapchainSupport = VulkanSwapchainSupportInfo{}
	d.GraphicsQueueIndex = noQueue
	d.PresentQueueIndex = noQueue
	d.TransferQueueIndex = noQueue
	d.ComputeQueueIndex = noQueue
}

// QuerySwapchainSupport refreshes SwapchainSupport for the current surface.
func (d *VulkanDevice) QuerySwapchainSupport() error {
	return querySwapchainSupport(d.PhysicalDevice, d.surface, &d.SwapchainSupport)
}

func querySwapchainSupport(physicalDevice vk.PhysicalDevice, surface vk.Surface, supportInfo *VulkanSwapchainSupportInfo) error {
	if res := vk.GetPhysicalDeviceSurfaceCapabilities(physicalDevice, surface, &supportInfo.Capabilities); res != vk.Success {
		return fmt.Errorf("vkGetPhysicalDeviceSurfaceCapabilities failed with %s: %w", VulkanResultString(res, true), core.ErrVulkan)
	}
	supportInfo.Capabilities.Deref()
	supportInfo.Capabilities.CurrentExtent.Deref()
	supportInfo.Capabilities.MinImageExtent.Deref()
	supportInfo.Capabilities.MaxImageExtent.Deref()

	if res := vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &supportInfo.FormatCount, nil); res != vk.Success {
		return fmt.Errorf("vkGetPhysicalDeviceSurfaceFormats failed with %s: %w", VulkanResultString(res, true), core.ErrVulkan)
	}
	if supportInfo.FormatCount != 0 {
		supportInfo.Formats = make([]vk.SurfaceFormat, supportInfo.FormatCount)
		if res := vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &supportInfo.FormatCount, supportInfo.Formats); res != vk.Success {
			return fmt.Errorf("vkGetPhysicalDeviceSurfaceFormats failed with %s: %w", VulkanResultString(res, true), core.ErrVulkan)
		}
		for i := range supportInfo.Formats {
			supportInfo.Formats[i].Deref()
		}
	}

	if res := vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &supportInfo.PresentModeCount, nil); res != vk.Success {
		return fmt.Errorf("vkGetPhysicalDeviceSurfacePresentModes failed with %s: %w", VulkanResultString(res, true), core.ErrVulkan)
	}
	if supportInfo.PresentModeCount != 0 {
		supportInfo.PresentModes = make([]vk.PresentMode, supportInfo.PresentModeCount)
		if res := vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &supportInfo.PresentModeCount, supportInfo.PresentModes); res != vk.Success {
			return fmt.Errorf("vkGetPhysicalDeviceSurfacePresentModes failed with %s: %w", VulkanResultString(res, true), core.ErrVulkan)
		}
	}
	return nil
}

// DetectDepthFormat picks the first depth format usable as an optimal-tiling
// attachment.
func (d *VulkanDevice) DetectDepthFormat() bool {
	candidates := []vk.Format{
		vk.FormatD32Sfloat,
		vk.FormatD32SfloatS8Uint,
		vk.FormatD24UnormS8Uint,
	}
	flags := vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)
	for _, candidate := range candidates {
		var properties vk.FormatProperties
		vk.GetPhysicalDeviceFormatProperties(d.PhysicalDevice, candidate, &properties)
		properties.Deref()
		if properties.OptimalTilingFeatures&flags == flags || properties.LinearTilingFeatures&flags == flags {
			d.DepthFormat = candidate
			return true
		}
	}
	d.DepthFormat = vk.FormatUndefined
	return false
}

func (d *VulkanDevice) selectPhysicalDevice(instance vk.Instance) error {
	var physicalDeviceCount uint32
	if res := vk.EnumeratePhysicalDevices(instance, &physicalDeviceCount, nil); res != vk.Success {
		return fmt.Errorf("vkEnumeratePhysicalDevices failed with %s: %w", VulkanResultString(res, true), core.ErrVulkan)
	}
	if physicalDeviceCount == 0 {
		return fmt.Errorf("no devices which support Vulkan were found: %w", core.ErrNotSupported)
	}
	physicalDevices := make([]vk.PhysicalDevice, physicalDeviceCount)
	if res := vk.EnumeratePhysicalDevices(instance, &physicalDeviceCount, physicalDevices); res != vk.Success {
		return fmt.Errorf("vkEnumeratePhysicalDevices failed with %s: %w", VulkanResultString(res, true), core.ErrVulkan)
	}

	requirements := VulkanPhysicalDeviceRequirements{
		Graphics:             true,
		Present:              true,
		Transfer:             true,
		Compute:              true,
		SamplerAnisotropy:    true,
		DiscreteGPU:          runtime.GOOS != "darwin",
		DeviceExtensionNames: []string{vk.KhrSwapchainExtensionName},
	}

	// Prefer a discrete GPU, then settle for anything that meets the rest.
	for _, discrete := range []bool{requirements.DiscreteGPU, false} {
		requirements.DiscreteGPU = discrete
		for _, physical := range physicalDevices {
			var properties vk.PhysicalDeviceProperties
			vk.GetPhysicalDeviceProperties(physical, &properties)
			properties.Deref()
			properties.Limits.Deref()

			var features vk.PhysicalDeviceFeatures
			vk.GetPhysicalDeviceFeatures(physical, &features)
			features.Deref()

			var memory vk.PhysicalDeviceMemoryProperties
			vk.GetPhysicalDeviceMemoryProperties(physical, &memory)
			memory.Deref()

			var support VulkanSwapchainSupportInfo
			queueInfo, ok := physicalDeviceMeetsRequirements(physical, d.surface, &properties, &features, &requirements, &support)
			if !ok {
				continue
			}

			name := vk.ToString(properties.DeviceName[:])
			core.LogInfo("Selected device: '%s'.", name)
			logDeviceInfo(&properties, &memory)

			d.PhysicalDevice = physical
			d.GraphicsQueueIndex = queueInfo.GraphicsFamilyIndex
			d.PresentQueueIndex = queueInfo.PresentFamilyIndex
			d.TransferQueueIndex = queueInfo.TransferFamilyIndex
			d.ComputeQueueIndex = queueInfo.ComputeFamilyIndex
			d.Properties = properties
			d.Features = features
			d.Memory = memory
			d.SwapchainSupport = support
			core.LogInfo("Physical device selected.")
			return nil
		}
	}
	return fmt.Errorf("no physical devices were found which meet the requirements: %w", core.ErrNotSupported)
}

func logDeviceInfo(properties *vk.PhysicalDeviceProperties, memory *vk.PhysicalDeviceMemoryProperties) {
	switch properties.DeviceType {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		core.LogInfo("GPU type is Integrated.")
	case vk.PhysicalDeviceTypeDiscreteGpu:
		core.LogInfo("GPU type is Discrete.")
	case vk.PhysicalDeviceTypeVirtualGpu:
		core.LogInfo("GPU type is Virtual.")
	case vk.PhysicalDeviceTypeCpu:
		core.LogInfo("GPU type is CPU.")
	default:
		core.LogInfo("GPU type is Unknown.")
	}

	driver := vk.Version(properties.DriverVersion)
	core.LogInfo("GPU Driver version: %d.%d.%d", driver.Major(), driver.Minor(), driver.Patch())
	api := vk.Version(properties.ApiVersion)
	core.LogInfo("Vulkan API version: %d.%d.%d", api.Major(), api.Minor(), api.Patch())

	for j := 0; j < int(memory.MemoryHeapCount); j++ {
		memory.MemoryHeaps[j].Deref()
		sizeGib := float64(memory.MemoryHeaps[j].Size) / 1024.0 / 1024.0 / 1024.0
		if vk.MemoryHeapFlags(memory.MemoryHeaps[j].Flags)&vk.MemoryHeapFlags(vk.MemoryHeapDeviceLocalBit) != 0 {
			core.LogInfo("Local GPU memory: %.2f GiB", sizeGib)
		} else {
			core.LogInfo("Shared System memory: %.2f GiB", sizeGib)
		}
	}
}

func physicalDeviceMeetsRequirements(
	device vk.PhysicalDevice,
	surface vk.Surface,
	properties *vk.PhysicalDeviceProperties,
	features *vk.PhysicalDeviceFeatures,
	requirements *VulkanPhysicalDeviceRequirements,
	outSwapchainSupport *VulkanSwapchainSupportInfo,
) (VulkanPhysicalDeviceQueueFamilyInfo, bool) {
	queueInfo := VulkanPhysicalDeviceQueueFamilyInfo{
		GraphicsFamilyIndex: noQueue,
		PresentFamilyIndex:  noQueue,
		ComputeFamilyIndex:  noQueue,
		TransferFamilyIndex: noQueue,
	}

	if requirements.DiscreteGPU && properties.DeviceType != vk.PhysicalDeviceTypeDiscreteGpu {
		core.LogInfo("Device is not a discrete GPU, and one is required. Skipping.")
		return queueInfo, false
	}

	var queueFamilyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, nil)
	queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, queueFamilies)

	// The transfer family with the fewest other capabilities is most likely
	// a dedicated one.
	minTransferScore := 255
	for i := range queueFamilies {
		queueFamilies[i].Deref()
		flags := queueFamilies[i].QueueFlags
		score := 0

		if flags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 {
			if queueInfo.GraphicsFamilyIndex == noQueue {
				queueInfo.GraphicsFamilyIndex = int32(i)
			}
			score++
		}
		if flags&vk.QueueFlags(vk.QueueComputeBit) != 0 {
			if queueInfo.ComputeFamilyIndex == noQueue {
				queueInfo.ComputeFamilyIndex = int32(i)
			}
			score++
		}
		if flags&vk.QueueFlags(vk.QueueTransferBit) != 0 && score <= minTransferScore {
			minTransferScore = score
			queueInfo.TransferFamilyIndex = int32(i)
		}

		var supportsPresent vk.Bool32
		if res := vk.GetPhysicalDeviceSurfaceSupport(device, uint32(i), surface, &supportsPresent); res != vk.Success {
			return queueInfo, false
		}
		if supportsPresent == vk.True && queueInfo.PresentFamilyIndex == noQueue {
			queueInfo.PresentFamilyIndex = int32(i)
		}
	}

	core.LogInfo("Graphics | Present | Compute | Transfer | Name")
	core.LogInfo("   %5t |   %5t |   %5t |    %5t | %s",
		queueInfo.GraphicsFamilyIndex != noQueue,
		queueInfo.PresentFamilyIndex != noQueue,
		queueInfo.ComputeFamilyIndex != noQueue,
		queueInfo.TransferFamilyIndex != noQueue,
		vk.ToString(properties.DeviceName[:]))

	if !queueInfo.found(requirements) {
		return queueInfo, false
	}
	core.LogInfo("Device meets queue requirements.")
	core.LogDebug("Graphics Family Index: %d", queueInfo.GraphicsFamilyIndex)
	core.LogDebug("Present Family Index:  %d", queueInfo.PresentFamilyIndex)
	core.LogDebug("Transfer Family Index: %d", queueInfo.TransferFamilyIndex)
	core.LogDebug("Compute Family Index:  %d", queueInfo.ComputeFamilyIndex)

	if err := querySwapchainSupport(device, surface, outSwapchainSupport); err != nil {
		core.LogWarn("%s", err)
		return queueInfo, false
	}
	if outSwapchainSupport.FormatCount < 1 || outSwapchainSupport.PresentModeCount < 1 {
		core.LogInfo("Required swapchain support not present, skipping device.")
		return queueInfo, false
	}

	available := deviceExtensions(device)
	for _, required := range requirements.DeviceExtensionNames {
		found := false
		for _, ext := range available {
			if ext == required {
				found = true
				break
			}
		}
		if !found {
			core.LogInfo("Required extension not found: '%s', skipping device.", required)
			return queueInfo, false
		}
	}

	if requirements.SamplerAnisotropy && features.SamplerAnisotropy == vk.False {
		core.LogInfo("Device does not support samplerAnisotropy, skipping.")
		return queueInfo, false
	}
	return queueInfo, true
}

// FindMemoryIndex returns the first memory type allowed by typeFilter that has
// every property in flags.
func (d *VulkanDevice) FindMemoryIndex(typeFilter uint32, flags vk.MemoryPropertyFlags) (uint32, error) {
	for i := uint32(0); i < d.Memory.MemoryTypeCount; i++ {
		d.Memory.MemoryTypes[i].Deref()
		if typeFilter&(1<<i) != 0 && d.Memory.MemoryTypes[i].PropertyFlags&flags == flags {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unable to find suitable memory type (filter 0x%x, flags 0x%x): %w", typeFilter, flags, core.ErrNotSupported)
}

func memoryFlags(policy MemoryPolicy) vk.MemoryPropertyFlags {
	switch policy {
	case MemoryHostCoherent, MemoryUpload:
		return vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	case MemoryReadBack:
		return vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCachedBit)
	}
	return vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
}

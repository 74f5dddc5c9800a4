package vulkan

import (
	"fmt"
	"math"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vesta/engine/core"
	vmath "github.com/spaghettifunk/vesta/engine/math"
)

type VulkanSwapchain struct {
	ImageFormat vk.SurfaceFormat
	Extent      vk.Extent2D
	Handle      vk.Swapchain
	ImageCount  uint32
	Images      []vk.Image
	Views       []vk.ImageView

	vsync bool
}

type VulkanSwapchainSupportInfo struct {
	Capabilities     vk.SurfaceCapabilities
	FormatCount      uint32
	Formats          []vk.SurfaceFormat
	PresentModeCount uint32
	PresentModes     []vk.PresentMode
}

func NewSwapchain(device *VulkanDevice, width uint32, height uint32, vsync bool) (*VulkanSwapchain, error) {
	swapchain := &VulkanSwapchain{vsync: vsync}
	if err := swapchain.create(device, width, height); err != nil {
		return nil, err
	}
	return swapchain, nil
}

// Recreate destroys the old swapchain and builds a new one for the given size.
func (vs *VulkanSwapchain) Recreate(device *VulkanDevice, width uint32, height uint32) error {
	vs.Destroy(device)
	return vs.create(device, width, height)
}

// AcquireNextImageIndex returns the next presentable image. ok is false when
// the swapchain is out of date and must be recreated before rendering.
func (vs *VulkanSwapchain) AcquireNextImageIndex(device *VulkanDevice, timeoutNS uint64, imageAvailableSemaphore vk.Semaphore) (imageIndex uint32, ok bool, err error) {
	res := vk.AcquireNextImage(device.LogicalDevice, vs.Handle, timeoutNS, imageAvailableSemaphore, vk.NullFence, &imageIndex)
	switch res {
	case vk.Success, vk.Suboptimal:
		return imageIndex, true, nil
	case vk.ErrorOutOfDate:
		return 0, false, nil
	}
	return 0, false, fmt.Errorf("vkAcquireNextImageKHR failed with %s: %w", VulkanResultString(res, true), core.ErrVulkan)
}

// Present returns the image to the swapchain. ok is false when the swapchain
// is out of date or suboptimal and should be recreated.
func (vs *VulkanSwapchain) Present(device *VulkanDevice, presentQueue vk.Queue, renderCompleteSemaphore vk.Semaphore, presentImageIndex uint32) (ok bool, err error) {
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{renderCompleteSemaphore},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{vs.Handle},
		PImageIndices:      []uint32{presentImageIndex},
	}

	var res vk.Result
	_ = device.locks.SafeQueueCall(uint32(device.PresentQueueIndex), func() error {
		res = vk.QueuePresent(presentQueue, &presentInfo)
		return nil
	})
	switch res {
	case vk.Success:
		return true, nil
	case vk.ErrorOutOfDate, vk.Suboptimal:
		return false, nil
	}
	return false, fmt.Errorf("vkQueuePresentKHR failed with %s: %w", VulkanResultString(res, true), core.ErrVulkan)
}

func (vs *VulkanSwapchain) create(device *VulkanDevice, width, height uint32) error {
	if err := device.QuerySwapchainSupport(); err != nil {
		return err
	}
	support := &device.SwapchainSupport
	if support.FormatCount == 0 {
		return fmt.Errorf("surface exposes no formats: %w", core.ErrNotSupported)
	}

	// Choose a swap surface format.
	vs.ImageFormat = support.Formats[0]
	for i := 0; i < int(support.FormatCount); i++ {
		format := support.Formats[i]
		// Preferred formats
		if format.Format == vk.FormatB8g8r8a8Unorm && format.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			vs.ImageFormat = format
			break
		}
	}

	presentMode := vk.PresentModeFifo
	if !vs.vsync {
		for i := 0; i < int(support.PresentModeCount); i++ {
			if support.PresentModes[i] == vk.PresentModeMailbox {
				presentMode = vk.PresentModeMailbox
				break
			}
		}
	}

	// Swapchain extent
	extent := vk.Extent2D{Width: width, Height: height}
	if support.Capabilities.CurrentExtent.Width != math.MaxUint32 {
		extent = support.Capabilities.CurrentExtent
	}

	// Clamp to the value allowed by the GPU.
	minExtent := support.Capabilities.MinImageExtent
	maxExtent := support.Capabilities.MaxImageExtent
	extent.Width = vmath.Clamp(extent.Width, minExtent.Width, maxExtent.Width)
	extent.Height = vmath.Clamp(extent.Height, minExtent.Height, maxExtent.Height)
	vs.Extent = extent

	imageCount := support.Capabilities.MinImageCount + 1
	if support.Capabilities.MaxImageCount > 0 && imageCount > support.Capabilities.MaxImageCount {
		imageCount = support.Capabilities.MaxImageCount
	}

	createInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          device.surface,
		MinImageCount:    imageCount,
		ImageFormat:      vs.ImageFormat.Format,
		ImageColorSpace:  vs.ImageFormat.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     support.Capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      presentMode,
		Clipped:          vk.True,
		ImageSharingMode: vk.SharingModeExclusive,
	}

	// Setup the queue family indices
	if device.GraphicsQueueIndex != device.PresentQueueIndex {
		createInfo.ImageSharingMode = vk.SharingModeConcurrent
		createInfo.QueueFamilyIndexCount = 2
		createInfo.PQueueFamilyIndices = []uint32{
			uint32(device.GraphicsQueueIndex),
			uint32(device.PresentQueueIndex),
		}
	}

	var handle vk.Swapchain
	err := device.locks.SafeCall(SwapchainManagement, func() error {
		if res := vk.CreateSwapchain(device.LogicalDevice, &createInfo, device.allocator, &handle); res != vk.Success {
			return fmt.Errorf("vkCreateSwapchainKHR failed with %s: %w", VulkanResultString(res, true), core.ErrVulkan)
		}
		return nil
	})
	if err != nil {
		return err
	}
	vs.Handle = handle

	// Images
	vs.ImageCount = 0
	if res := vk.GetSwapchainImages(device.LogicalDevice, vs.Handle, &vs.ImageCount, nil); res != vk.Success {
		return fmt.Errorf("vkGetSwapchainImagesKHR failed with %s: %w", VulkanResultString(res, true), core.ErrVulkan)
	}
	vs.Images = make([]vk.Image, vs.ImageCount)
	vs.Views = make([]vk.ImageView, vs.ImageCount)
	if res := vk.GetSwapchainImages(device.LogicalDevice, vs.Handle, &vs.ImageCount, vs.Images); res != vk.Success {
		return fmt.Errorf("vkGetSwapchainImagesKHR failed with %s: %w", VulkanResultString(res, true), core.ErrVulkan)
	}

	// Views
	for i := 0; i < int(vs.ImageCount); i++ {
		viewInfo := vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    vs.Images[i],
			ViewType: vk.ImageViewType2d,
			Format:   vs.ImageFormat.Format,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LevelCount: 1,
				LayerCount: 1,
			},
		}
		if res := vk.CreateImageView(device.LogicalDevice, &viewInfo, device.allocator, &vs.Views[i]); res != vk.Success {
			return fmt.Errorf("vkCreateImageView failed with %s: %w", VulkanResultString(res, true), core.ErrVulkan)
		}
	}

	core.LogInfo("Swapchain created successfully (%dx%d, %d images).", extent.Width, extent.Height, vs.ImageCount)
	return nil
}

func (vs *VulkanSwapchain) Destroy(device *VulkanDevice) {
	vk.DeviceWaitIdle(device.LogicalDevice)

	// Only destroy the views, not the images, since those are owned by the swapchain and are thus
	// destroyed when it is.
	for i := range vs.Views {
		if vs.Views[i] != nil {
			vk.DestroyImageView(device.LogicalDevice, vs.Views[i], device.allocator)
		}
	}
	vs.Views = nil
	vs.Images = nil

	if vs.Handle != vk.NullSwapchain {
		vk.DestroySwapchain(device.LogicalDevice, vs.Handle, device.allocator)
		vs.Handle = vk.NullSwapchain
	}
}

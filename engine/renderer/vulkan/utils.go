package vulkan

import (
	vk "github.com/goki/vulkan"
)

type resultDescription struct {
	name     string
	extended string
}

// From: https://www.khronos.org/registry/vulkan/specs/1.3-extensions/man/html/VkResult.html
var resultDescriptions = map[vk.Result]resultDescription{
	vk.Success: {
		"VK_SUCCESS",
		"Command successfully completed",
	},
	vk.NotReady: {
		"VK_NOT_READY",
		"A fence or query has not yet completed",
	},
	vk.Timeout: {
		"VK_TIMEOUT",
		"A wait operation has not completed in the specified time",
	},
	vk.EventSet: {
		"VK_EVENT_SET",
		"An event is signaled",
	},
	vk.EventReset: {
		"VK_EVENT_RESET",
		"An event is unsignaled",
	},
	vk.Incomplete: {
		"VK_INCOMPLETE",
		"A return array was too small for the result",
	},
	vk.Suboptimal: {
		"VK_SUBOPTIMAL_KHR",
		"A swapchain no longer matches the surface properties exactly, but can still be used to present to the surface successfully.",
	},
	vk.ThreadIdle: {
		"VK_THREAD_IDLE_KHR",
		"A deferred operation is not complete but there is currently no work for this thread to do at the time of this call.",
	},
	vk.ThreadDone: {
		"VK_THREAD_DONE_KHR",
		"A deferred operation is not complete but there is no work remaining to assign to additional threads.",
	},
	vk.OperationDeferred: {
		"VK_OPERATION_DEFERRED_KHR",
		"A deferred operation was requested and at least some of the work was deferred.",
	},
	vk.OperationNotDeferred: {
		"VK_OPERATION_NOT_DEFERRED_KHR",
		"A deferred operation was requested and no operations were deferred.",
	},
	vk.PipelineCompileRequired: {
		"VK_PIPELINE_COMPILE_REQUIRED_EXT",
		"A requested pipeline creation would have required compilation, but the application requested compilation to not be performed.",
	},
	vk.ErrorOutOfHostMemory: {
		"VK_ERROR_OUT_OF_HOST_MEMORY",
		"A host memory allocation has failed.",
	},
	vk.ErrorOutOfDeviceMemory: {
		"VK_ERROR_OUT_OF_DEVICE_MEMORY",
		"A device memory allocation has failed.",
	},
	vk.ErrorInitializationFailed: {
		"VK_ERROR_INITIALIZATION_FAILED",
		"Initialization of an object could not be completed for implementation-specific reasons.",
	},
	vk.ErrorDeviceLost: {
		"VK_ERROR_DEVICE_LOST",
		"The logical or physical device has been lost. See Lost Device",
	},
	vk.ErrorMemoryMapFailed: {
		"VK_ERROR_MEMORY_MAP_FAILED",
		"Mapping of a memory object has failed.",
	},
	vk.ErrorLayerNotPresent: {
		"VK_ERROR_LAYER_NOT_PRESENT",
		"A requested layer is not present or could not be loaded.",
	},
	vk.ErrorExtensionNotPresent: {
		"VK_ERROR_EXTENSION_NOT_PRESENT",
		"A requested extension is not supported.",
	},
	vk.ErrorFeatureNotPresent: {
		"VK_ERROR_FEATURE_NOT_PRESENT",
		"A requested feature is not supported.",
	},
	vk.ErrorIncompatibleDriver: {
		"VK_ERROR_INCOMPATIBLE_DRIVER",
		"The requested version of Vulkan is not supported by the driver or is otherwise incompatible for implementation-specific reasons.",
	},
	vk.ErrorTooManyObjects: {
		"VK_ERROR_TOO_MANY_OBJECTS",
		"Too many objects of the type have already been created.",
	},
	vk.ErrorFormatNotSupported: {
		"VK_ERROR_FORMAT_NOT_SUPPORTED",
		"A requested format is not supported on this device.",
	},
	vk.ErrorFragmentedPool: {
		"VK_ERROR_FRAGMENTED_POOL",
		"A pool allocation has failed due to fragmentation of the pool's memory. This must only be returned if no attempt to allocate host or device memory was made to accommodate the new allocation. This should be returned in preference to VK_ERROR_OUT_OF_POOL_MEMORY, but only if the implementation is certain that the pool allocation failure was due to fragmentation.",
	},
	vk.ErrorSurfaceLost: {
		"VK_ERROR_SURFACE_LOST_KHR",
		"A surface is no longer available.",
	},
	vk.ErrorNativeWindowInUse: {
		"VK_ERROR_NATIVE_WINDOW_IN_USE_KHR",
		"The requested window is already in use by Vulkan or another API in a manner which prevents it from being used again.",
	},
	vk.ErrorOutOfDate: {
		"VK_ERROR_OUT_OF_DATE_KHR",
		"A surface has changed in such a way that it is no longer compatible with the swapchain, and further presentation requests using the swapchain will fail. Applications must query the new surface properties and recreate their swapchain if they wish to continue presenting to the surface.",
	},
	vk.ErrorIncompatibleDisplay: {
		"VK_ERROR_INCOMPATIBLE_DISPLAY_KHR",
		"The display used by a swapchain does not use the same presentable image layout, or is incompatible in a way that prevents sharing an image.",
	},
	vk.ErrorInvalidShaderNv: {
		"VK_ERROR_INVALID_SHADER_NV",
		"One or more shaders failed to compile or link. More details are reported back to the application via VK_EXT_debug_report if enabled.",
	},
	vk.ErrorOutOfPoolMemory: {
		"VK_ERROR_OUT_OF_POOL_MEMORY",
		"A pool memory allocation has failed. This must only be returned if no attempt to allocate host or device memory was made to accommodate the new allocation. If the failure was definitely due to fragmentation of the pool, VK_ERROR_FRAGMENTED_POOL should be returned instead.",
	},
	vk.ErrorInvalidExternalHandle: {
		"VK_ERROR_INVALID_EXTERNAL_HANDLE",
		"An external handle is not a valid handle of the specified type.",
	},
	vk.ErrorFragmentation: {
		"VK_ERROR_FRAGMENTATION",
		"A descriptor pool creation has failed due to fragmentation.",
	},
	vk.ErrorInvalidDeviceAddress: {
		"VK_ERROR_INVALID_DEVICE_ADDRESS_EXT",
		"A buffer creation failed because the requested address is not available.",
	},
	vk.ErrorFullScreenExclusiveModeLost: {
		"VK_ERROR_FULL_SCREEN_EXCLUSIVE_MODE_LOST_EXT",
		"An operation on a swapchain created with VK_FULL_SCREEN_EXCLUSIVE_APPLICATION_CONTROLLED_EXT failed as it did not have exlusive full-screen access. This may occur due to implementation-dependent reasons, outside of the application's control.",
	},
	vk.ErrorUnknown: {
		"VK_ERROR_UNKNOWN",
		"An unknown error has occurred; either the application has provided invalid input, or an implementation failure has occurred.",
	},
}

// VulkanResultString returns the symbolic name of result, followed by its
// description when getExtended is set.
func VulkanResultString(result vk.Result, getExtended bool) string {
	desc, ok := resultDescriptions[result]
	if !ok {
		desc = resultDescriptions[vk.ErrorUnknown]
	}
	if !getExtended {
		return desc.name
	}
	return desc.name + " " + desc.extended
}

// VulkanResultIsSuccess reports whether result is one of the success codes.
func VulkanResultIsSuccess(result vk.Result) bool {
	return result >= vk.Success
}

var end = "\x00"
var endChar byte = '\x00'

func VulkanSafeString(s string) string {
	if len(s) == 0 {
		return end
	}
	if s[len(s)-1] != endChar {
		return s + end
	}
	return s
}

func VulkanSafeStrings(list []string) []string {
	for i := range list {
		list[i] = VulkanSafeString(list[i])
	}
	return list
}

// FindFirstZeroInByteArray returns the length of a NUL terminated byte array.
func FindFirstZeroInByteArray(arr []byte) int {
	for i, b := range arr {
		if b == 0 {
			return i
		}
	}
	return len(arr)
}

package vulkan

import (
	"fmt"
	"math"
	"runtime"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vesta/engine/core"
	"github.com/spaghettifunk/vesta/engine/platform"
)

// ResizeListener is notified after the swapchain and G-buffer were rebuilt.
type ResizeListener func(width, height uint32, gbuffer *GBuffer)

type VulkanRenderer struct {
	platform                *platform.Platform
	FrameNumber             uint64
	context                 *VulkanContext
	cachedFramebufferWidth  uint32
	cachedFramebufferHeight uint32

	vsync     bool
	debug     bool
	listeners []ResizeListener
}

func New(p *platform.Platform, config *core.EngineConfig) *VulkanRenderer {
	return &VulkanRenderer{
		platform: p,
		context: &VulkanContext{
			FramesInFlight: config.FramesInFlight,
		},
		vsync: config.VSync,
		debug: config.Validation,
	}
}

func (vr *VulkanRenderer) Initialize(appName string, appWidth, appHeight uint32) error {
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		return fmt.Errorf("GetInstanceProcAddress is nil: %w", core.ErrNotSupported)
	}
	vk.SetGetInstanceProcAddr(procAddr)

	if err := vk.Init(); err != nil {
		return fmt.Errorf("failed to initialize vk: %s: %w", err, core.ErrVulkan)
	}

	vr.context.FramebufferWidth = appWidth
	vr.context.FramebufferHeight = appHeight

	if err := vr.createInstance(appName); err != nil {
		return err
	}

	// Debugger
	if vr.debug {
		if err := vr.createDebugCallback(); err != nil {
			return err
		}
	}

	// Surface
	core.LogDebug("Creating Vulkan surface...")
	surface, err := vr.platform.Window.CreateWindowSurface(vr.context.Instance, nil)
	if err != nil {
		return fmt.Errorf("vulkan surface creation failed: %s: %w", err, core.ErrVulkan)
	}
	vr.context.Surface = vk.SurfaceFromPointer(surface)
	core.LogDebug("Vulkan surface created.")

	// Device creation
	device, err := NewVulkanDevice(vr.context)
	if err != nil {
		return err
	}
	vr.context.Device = device

	// Swapchain
	sc, err := NewSwapchain(device, vr.context.FramebufferWidth, vr.context.FramebufferHeight, vr.vsync)
	if err != nil {
		return err
	}
	vr.context.Swapchain = sc
	vr.context.FramebufferWidth = sc.Extent.Width
	vr.context.FramebufferHeight = sc.Extent.Height

	rp, err := NewDeferredRenderpass(device, sc.ImageFormat.Format, float32(sc.Extent.Width), float32(sc.Extent.Height))
	if err != nil {
		return err
	}
	vr.context.MainRenderpass = rp

	if err := vr.createTargets(); err != nil {
		return err
	}
	if err := vr.createCommandBuffers(); err != nil {
		return err
	}
	if err := vr.createSyncObjects(); err != nil {
		return err
	}

	core.LogInfo("Vulkan renderer initialized successfully.")
	return nil
}

func (vr *VulkanRenderer) createInstance(appName string) error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 2, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(appName),
		PEngineName:        VulkanSafeString("Vesta Engine"),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	// Obtain a list of required extensions
	requiredExtensions := []string{vk.KhrSurfaceExtensionName}
	requiredExtensions = append(requiredExtensions, vr.platform.GetRequiredExtensionNames()...)
	if runtime.GOOS == "darwin" {
		requiredExtensions = append(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= 1
	}
	if vr.debug {
		requiredExtensions = append(requiredExtensions, vk.ExtDebugReportExtensionName)
	}
	for _, ext := range requiredExtensions {
		core.LogDebug("Required extension: %s", ext)
	}
	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(requiredExtensions)

	// Validation layers should only be enabled on non-release builds.
	var layers []string
	if vr.debug {
		var err error
		if layers, err = requireLayers("VK_LAYER_KHRONOS_validation"); err != nil {
			return err
		}
	}
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(layers)

	if res := vk.CreateInstance(&createInfo, vr.context.Allocator, &vr.context.Instance); res != vk.Success {
		return fmt.Errorf("vkCreateInstance failed with %s: %w", VulkanResultString(res, true), core.ErrVulkan)
	}
	if err := vk.InitInstance(vr.context.Instance); err != nil {
		return fmt.Errorf("failed to load instance functions: %s: %w", err, core.ErrVulkan)
	}
	core.LogInfo("Vulkan Instance created.")
	return nil
}

// requireLayers checks every named layer is installed.
func requireLayers(names ...string) ([]string, error) {
	core.LogInfo("Validation layers enabled. Enumerating...")
	var count uint32
	if res := vk.EnumerateInstanceLayerProperties(&count, nil); res != vk.Success {
		return nil, fmt.Errorf("vkEnumerateInstanceLayerProperties failed with %s: %w", VulkanResultString(res, true), core.ErrVulkan)
	}
	available := make([]vk.LayerProperties, count)
	if res := vk.EnumerateInstanceLayerProperties(&count, available); res != vk.Success {
		return nil, fmt.Errorf("vkEnumerateInstanceLayerProperties failed with %s: %w", VulkanResultString(res, true), core.ErrVulkan)
	}

	for _, name := range names {
		found := false
		for j := range available {
			available[j].Deref()
			end := FindFirstZeroInByteArray(available[j].LayerName[:])
			if name == string(available[j].LayerName[:end]) {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("required validation layer is missing: %s: %w", name, core.ErrNotSupported)
		}
		core.LogInfo("Found layer %s.", name)
	}
	return names, nil
}

func (vr *VulkanRenderer) createDebugCallback() error {
	core.LogDebug("Creating Vulkan debugger...")
	debugCreateInfo := vk.DebugReportCallbackCreateInfo{
		SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
		Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
		PfnCallback: dbgCallbackFunc,
	}

	var dbg vk.DebugReportCallback
	if err := vk.Error(vk.CreateDebugReportCallback(vr.context.Instance, &debugCreateInfo, nil, &dbg)); err != nil {
		return fmt.Errorf("vkCreateDebugReportCallback failed with %s: %w", err, core.ErrVulkan)
	}
	vr.context.debugMessenger = dbg
	core.LogDebug("Vulkan debugger created.")
	return nil
}

func (vr *VulkanRenderer) createSyncObjects() error {
	frames := vr.context.FramesInFlight
	vr.context.ImageAvailableSemaphores = make([]vk.Semaphore, frames)
	vr.context.QueueCompleteSemaphores = make([]vk.Semaphore, frames)
	vr.context.InFlightFences = make([]*VulkanFence, frames)

	device := vr.context.Device
	semaphoreCreateInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	for i := uint32(0); i < frames; i++ {
		if res := vk.CreateSemaphore(device.LogicalDevice, &semaphoreCreateInfo, vr.context.Allocator, &vr.context.ImageAvailableSemaphores[i]); res != vk.Success {
			return fmt.Errorf("vkCreateSemaphore failed with %s: %w", VulkanResultString(res, true), core.ErrVulkan)
		}
		if res := vk.CreateSemaphore(device.LogicalDevice, &semaphoreCreateInfo, vr.context.Allocator, &vr.context.QueueCompleteSemaphores[i]); res != vk.Success {
			return fmt.Errorf("vkCreateSemaphore failed with %s: %w", VulkanResultString(res, true), core.ErrVulkan)
		}

		// Create the fence in a signaled state, indicating that the first frame has already been "rendered".
		f, err := NewFence(device, true)
		if err != nil {
			return err
		}
		vr.context.InFlightFences[i] = f
	}

	// Fences are owned by InFlightFences; this only records which frame uses an image.
	vr.context.ImagesInFlight = make([]*VulkanFence, vr.context.Swapchain.ImageCount)
	return nil
}

func (vr *VulkanRenderer) createCommandBuffers() error {
	device := vr.context.Device
	if len(vr.context.GraphicsCommandBuffers) == 0 {
		vr.context.GraphicsCommandBuffers = make([]*VulkanCommandBuffer, vr.context.FramesInFlight)
	}
	for i := range vr.context.GraphicsCommandBuffers {
		if cb := vr.context.GraphicsCommandBuffers[i]; cb != nil {
			cb.Free(device, device.GraphicsCommandPool)
		}
		cb, err := NewVulkanCommandBuffer(device, device.GraphicsCommandPool, true)
		if err != nil {
			return err
		}
		vr.context.GraphicsCommandBuffers[i] = cb
	}
	core.LogDebug("Vulkan command buffers created.")
	return nil
}

// createTargets builds the G-buffer and one framebuffer per swapchain image.
func (vr *VulkanRenderer) createTargets() error {
	ctx := vr.context
	gbuffer, err := NewGBuffer(ctx.Device, ctx.FramebufferWidth, ctx.FramebufferHeight, ctx.Device.DepthFormat)
	if err != nil {
		return err
	}
	ctx.GBuffer = gbuffer

	ctx.Framebuffers = make([]*VulkanFramebuffer, ctx.Swapchain.ImageCount)
	for i := range ctx.Framebuffers {
		attachments := ctx.MainRenderpass.Attachments(ctx.Swapchain.Views[i], gbuffer)
		fb, err := NewFramebuffer(ctx.Device, ctx.MainRenderpass, ctx.FramebufferWidth, ctx.FramebufferHeight, attachments)
		if err != nil {
			return err
		}
		ctx.Framebuffers[i] = fb
	}
	return nil
}

func (vr *VulkanRenderer) destroyTargets() {
	ctx := vr.context
	for _, fb := range ctx.Framebuffers {
		fb.Destroy(ctx.Device)
	}
	ctx.Framebuffers = nil
	if ctx.GBuffer != nil {
		ctx.GBuffer.Destroy(ctx.Device)
		ctx.GBuffer = nil
	}
}

func (vr *VulkanRenderer) Shutdown() error {
	ctx := vr.context
	if ctx.Device == nil {
		return nil
	}
	device := ctx.Device
	vk.DeviceWaitIdle(device.LogicalDevice)

	// Destroy in the opposite order of creation.
	for i := range ctx.InFlightFences {
		vk.DestroySemaphore(device.LogicalDevice, ctx.ImageAvailableSemaphores[i], ctx.Allocator)
		vk.DestroySemaphore(device.LogicalDevice, ctx.QueueCompleteSemaphores[i], ctx.Allocator)
		ctx.InFlightFences[i].Destroy(device)
	}
	ctx.ImageAvailableSemaphores = nil
	ctx.QueueCompleteSemaphores = nil
	ctx.InFlightFences = nil
	ctx.ImagesInFlight = nil

	for _, cb := range ctx.GraphicsCommandBuffers {
		cb.Free(device, device.GraphicsCommandPool)
	}
	ctx.GraphicsCommandBuffers = nil

	vr.destroyTargets()
	ctx.MainRenderpass.Destroy(device)
	ctx.Swapchain.Destroy(device)

	core.LogDebug("Destroying Vulkan device...")
	device.Destroy()
	ctx.Device = nil

	core.LogDebug("Destroying Vulkan surface...")
	if ctx.Surface != vk.NullSurface {
		vk.DestroySurface(ctx.Instance, ctx.Surface, ctx.Allocator)
		ctx.Surface = vk.NullSurface
	}

	if ctx.debugMessenger != vk.NullDebugReportCallback {
		core.LogDebug("Destroying Vulkan debugger...")
		vk.DestroyDebugReportCallback(ctx.Instance, ctx.debugMessenger, ctx.Allocator)
		ctx.debugMessenger = vk.NullDebugReportCallback
	}

	core.LogDebug("Destroying Vulkan instance...")
	vk.DestroyInstance(ctx.Instance, ctx.Allocator)
	return nil
}

// Device exposes the graphics device to the scene and feature systems.
func (vr *VulkanRenderer) Device() *VulkanDevice {
	return vr.context.Device
}

// RenderPass is the deferred render pass every scene pipeline targets.
func (vr *VulkanRenderer) RenderPass() *RenderPass {
	return vr.context.MainRenderpass.Pass
}

func (vr *VulkanRenderer) GBuffer() *GBuffer {
	return vr.context.GBuffer
}

// Extent returns the current framebuffer size.
func (vr *VulkanRenderer) Extent() (uint32, uint32) {
	return vr.context.FramebufferWidth, vr.context.FramebufferHeight
}

func (vr *VulkanRenderer) FramesInFlight() uint32 {
	return vr.context.FramesInFlight
}

// OnResize registers fn to run after every successful swapchain recreation.
func (vr *VulkanRenderer) OnResize(fn ResizeListener) {
	vr.listeners = append(vr.listeners, fn)
}

// Resized records a new framebuffer size. The swapchain is rebuilt at the
// start of the next frame.
func (vr *VulkanRenderer) Resized(width, height uint32) {
	// Update the "framebuffer size generation", a counter which indicates when the
	// framebuffer size has been updated.
	vr.cachedFramebufferWidth = width
	vr.cachedFramebufferHeight = height
	vr.context.FramebufferSizeGeneration++

	core.LogInfo("Vulkan renderer backend->resized: w/h/gen: %d/%d/%d", width, height, vr.context.FramebufferSizeGeneration)
}

/**
 * @brief Waits for the current frame slot, acquires a swapchain image and
 * begins recording. ok is false when the frame must be skipped, e.g. while
 * the swapchain is being rebuilt.
 */
func (vr *VulkanRenderer) BeginFrame() (cb *VulkanCommandBuffer, frameIndex uint32, ok bool, err error) {
	ctx := vr.context
	device := ctx.Device

	// Check if recreating swap chain and boot out.
	if ctx.RecreatingSwapchain {
		if err := device.WaitIdle(); err != nil {
			return nil, 0, false, err
		}
		core.LogInfo("Recreating swapchain, booting.")
		return nil, 0, false, nil
	}

	// Check if the framebuffer has been resized. If so, a new swapchain must be created.
	if ctx.FramebufferSizeGeneration != ctx.FramebufferSizeLastGeneration {
		if err := vr.recreateSwapchain(); err != nil {
			return nil, 0, false, err
		}
		core.LogInfo("Resized, booting.")
		return nil, 0, false, nil
	}

	// Wait for the execution of the current frame to complete. The fence being free will allow this one to move on.
	if err := ctx.InFlightFences[ctx.CurrentFrame].Wait(device, math.MaxUint64); err != nil {
		return nil, 0, false, err
	}

	// Acquire the next image from the swap chain. The semaphore is waited on by the queue submission.
	imageIndex, acquired, err := ctx.Swapchain.AcquireNextImageIndex(device, math.MaxUint64, ctx.ImageAvailableSemaphores[ctx.CurrentFrame])
	if err != nil {
		return nil, 0, false, err
	}
	if !acquired {
		// Trigger swapchain recreation, then boot out of the render loop.
		vr.markOutOfDate()
		return nil, 0, false, nil
	}
	ctx.ImageIndex = imageIndex

	// Begin recording commands.
	cb = ctx.GraphicsCommandBuffers[ctx.CurrentFrame]
	if err := cb.Reset(); err != nil {
		return nil, 0, false, err
	}
	if err := cb.Begin(false, false, false); err != nil {
		return nil, 0, false, err
	}
	return cb, ctx.CurrentFrame, true, nil
}

// BeginRenderPass starts the deferred pass on the current swapchain image.
func (vr *VulkanRenderer) BeginRenderPass(cb *VulkanCommandBuffer) {
	ctx := vr.context
	ctx.MainRenderpass.W = float32(ctx.FramebufferWidth)
	ctx.MainRenderpass.H = float32(ctx.FramebufferHeight)
	ctx.MainRenderpass.Begin(cb, ctx.Framebuffers[ctx.ImageIndex].Handle)
	cb.SetViewport(0, 0, float32(ctx.FramebufferWidth), float32(ctx.FramebufferHeight))
	cb.SetScissor(ctx.FramebufferWidth, ctx.FramebufferHeight)
}

func (vr *VulkanRenderer) EndRenderPass(cb *VulkanCommandBuffer) {
	vr.context.MainRenderpass.End(cb)
}

// EndFrame submits the recorded commands and presents the image.
func (vr *VulkanRenderer) EndFrame(cb *VulkanCommandBuffer) error {
	ctx := vr.context
	device := ctx.Device

	if err := cb.End(); err != nil {
		return err
	}

	// Make sure the previous frame is not using this image (i.e. its fence is being waited on)
	if fence := ctx.ImagesInFlight[ctx.ImageIndex]; fence != nil {
		if err := fence.Wait(device, math.MaxUint64); err != nil {
			return err
		}
	}

	// Mark the image fence as in-use by this frame.
	inFlight := ctx.InFlightFences[ctx.CurrentFrame]
	ctx.ImagesInFlight[ctx.ImageIndex] = inFlight

	// Reset the fence for use on the next frame
	if err := inFlight.Reset(device); err != nil {
		return err
	}

	// VK_PIPELINE_STAGE_COLOR_ATTACHMENT_OUTPUT_BIT prevents subsequent colour attachment
	// writes from executing until the semaphore signals (i.e. one frame is presented at a time)
	submitInfo := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{cb.Handle},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{ctx.QueueCompleteSemaphores[ctx.CurrentFrame]},
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vk.Semaphore{ctx.ImageAvailableSemaphores[ctx.CurrentFrame]},
		PWaitDstStageMask:    []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)},
	}
	err := device.locks.SafeQueueCall(uint32(device.GraphicsQueueIndex), func() error {
		if res := vk.QueueSubmit(device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, inFlight.Handle); res != vk.Success {
			return fmt.Errorf("vkQueueSubmit failed with %s: %w", VulkanResultString(res, true), core.ErrVulkan)
		}
		return nil
	})
	if err != nil {
		return err
	}
	cb.UpdateSubmitted()

	// Give the image back to the swapchain.
	presented, err := ctx.Swapchain.Present(device, device.PresentQueue, ctx.QueueCompleteSemaphores[ctx.CurrentFrame], ctx.ImageIndex)
	if err != nil {
		return err
	}
	if !presented {
		// Swapchain is out of date, suboptimal or a framebuffer resize has occurred.
		vr.markOutOfDate()
	}

	// Increment (and loop) the index.
	ctx.CurrentFrame = (ctx.CurrentFrame + 1) % ctx.FramesInFlight
	vr.FrameNumber++
	return nil
}

// markOutOfDate schedules a swapchain rebuild at the current window size.
func (vr *VulkanRenderer) markOutOfDate() {
	if vr.cachedFramebufferWidth == 0 && vr.cachedFramebufferHeight == 0 {
		vr.cachedFramebufferWidth, vr.cachedFramebufferHeight = vr.platform.FramebufferSize()
	}
	vr.context.FramebufferSizeGeneration++
}

func (vr *VulkanRenderer) recreateSwapchain() error {
	ctx := vr.context

	// Detect if the window is too small to be drawn to
	if vr.cachedFramebufferWidth == 0 || vr.cachedFramebufferHeight == 0 {
		core.LogDebug("recreate_swapchain called when window is < 1 in a dimension. Booting.")
		return nil
	}

	// Mark as recreating if the dimensions are valid.
	ctx.RecreatingSwapchain = true
	defer func() { ctx.RecreatingSwapchain = false }()

	// Wait for any operations to complete.
	if err := ctx.Device.WaitIdle(); err != nil {
		return err
	}

	// Clear these out just in case.
	for i := range ctx.ImagesInFlight {
		ctx.ImagesInFlight[i] = nil
	}

	vr.destroyTargets()
	if err := ctx.Swapchain.Recreate(ctx.Device, vr.cachedFramebufferWidth, vr.cachedFramebufferHeight); err != nil {
		return err
	}

	// Sync the framebuffer size with the swapchain extent.
	ctx.FramebufferWidth = ctx.Swapchain.Extent.Width
	ctx.FramebufferHeight = ctx.Swapchain.Extent.Height
	vr.cachedFramebufferWidth = 0
	vr.cachedFramebufferHeight = 0

	if err := vr.createTargets(); err != nil {
		return err
	}
	if uint32(len(ctx.ImagesInFlight)) != ctx.Swapchain.ImageCount {
		ctx.ImagesInFlight = make([]*VulkanFence, ctx.Swapchain.ImageCount)
	}

	// Update framebuffer size generation.
	ctx.FramebufferSizeLastGeneration = ctx.FramebufferSizeGeneration

	for _, listener := range vr.listeners {
		listener(ctx.FramebufferWidth, ctx.FramebufferHeight, ctx.GBuffer)
	}
	return nil
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportDebugBit) != 0:
		core.LogDebug("DEBUG: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogInfo("INFORMATION: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}

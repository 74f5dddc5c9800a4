package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vesta/engine/core"
)

// Subpasses of the deferred render pass, in execution order.
const (
	SubpassGBuffer uint32 = iota
	SubpassDeferred
	SubpassTranslucent
	subpassCount
)

// Attachment indices of the deferred render pass.
const (
	attachmentPresent uint32 = iota
	attachmentPosition
	attachmentNormal
	attachmentAlbedo
	attachmentPBR
	attachmentEmissive
	attachmentDepth
	attachmentCount
)

// GBufferColorTargets is the number of colour targets written by the geometry subpass.
const GBufferColorTargets = int(attachmentEmissive - attachmentPosition + 1)

type VulkanRenderpass struct {
	Handle     vk.RenderPass
	Pass       *RenderPass
	X, Y, W, H float32
	ClearColor [4]float32
	Depth      float32
	Stencil    uint32
}

func colorAttachment(format vk.Format, finalLayout vk.ImageLayout, store vk.AttachmentStoreOp) vk.AttachmentDescription {
	return vk.AttachmentDescription{
		Format:         format,
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        store,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined, // Do not expect any particular layout before render pass starts.
		FinalLayout:    finalLayout,
	}
}

func attachmentRef(index uint32, layout vk.ImageLayout) vk.AttachmentReference {
	return vk.AttachmentReference{Attachment: index, Layout: layout}
}

/**
 * @brief Creates the deferred render pass: a G-buffer subpass, a full-screen
 * shading subpass reading the G-buffer as input attachments and a forward
 * subpass for translucent geometry drawn on top.
 */
func NewDeferredRenderpass(device *VulkanDevice, presentFormat vk.Format, w, h float32) (*VulkanRenderpass, error) {
	outRenderpass := &VulkanRenderpass{
		W:          w,
		H:          h,
		ClearColor: [4]float32{0, 0, 0, 0},
		Depth:      1.0,
	}

	attachments := make([]vk.AttachmentDescription, attachmentCount)
	attachments[attachmentPresent] = colorAttachment(presentFormat, vk.ImageLayoutPresentSrc, vk.AttachmentStoreOpStore)
	attachments[attachmentPosition] = colorAttachment(GBufferPositionFormat, vk.ImageLayoutColorAttachmentOptimal, vk.AttachmentStoreOpDontCare)
	attachments[attachmentNormal] = colorAttachment(GBufferNormalFormat, vk.ImageLayoutColorAttachmentOptimal, vk.AttachmentStoreOpDontCare)
	attachments[attachmentAlbedo] = colorAttachment(GBufferColorFormat, vk.ImageLayoutColorAttachmentOptimal, vk.AttachmentStoreOpDontCare)
	attachments[attachmentPBR] = colorAttachment(GBufferColorFormat, vk.ImageLayoutColorAttachmentOptimal, vk.AttachmentStoreOpDontCare)
	attachments[attachmentEmissive] = colorAttachment(GBufferColorFormat, vk.ImageLayoutColorAttachmentOptimal, vk.AttachmentStoreOpDontCare)
	attachments[attachmentDepth] = colorAttachment(device.DepthFormat, vk.ImageLayoutDepthStencilReadOnlyOptimal, vk.AttachmentStoreOpDontCare)

	gbufferColors := make([]vk.AttachmentReference, 0, GBufferColorTargets)
	gbufferInputs := make([]vk.AttachmentReference, 0, GBufferColorTargets+1)
	for i := attachmentPosition; i <= attachmentEmissive; i++ {
		gbufferColors = append(gbufferColors, attachmentRef(i, vk.ImageLayoutColorAttachmentOptimal))
		gbufferInputs = append(gbufferInputs, attachmentRef(i, vk.ImageLayoutShaderReadOnlyOptimal))
	}
	gbufferInputs = append(gbufferInputs, attachmentRef(attachmentDepth, vk.ImageLayoutDepthStencilReadOnlyOptimal))
	depthWrite := attachmentRef(attachmentDepth, vk.ImageLayoutDepthStencilAttachmentOptimal)
	depthRead := attachmentRef(attachmentDepth, vk.ImageLayoutDepthStencilReadOnlyOptimal)
	present := []vk.AttachmentReference{attachmentRef(attachmentPresent, vk.ImageLayoutColorAttachmentOptimal)}

	subpasses := []vk.SubpassDescription{
		SubpassGBuffer: {
			PipelineBindPoint:       vk.PipelineBindPointGraphics,
			ColorAttachmentCount:    uint32(len(gbufferColors)),
			PColorAttachments:       gbufferColors,
			PDepthStencilAttachment: &depthWrite,
		},
		SubpassDeferred: {
			PipelineBindPoint:    vk.PipelineBindPointGraphics,
			ColorAttachmentCount: 1,
			PColorAttachments:    present,
			InputAttachmentCount: uint32(len(gbufferInputs)),
			PInputAttachments:    gbufferInputs,
		},
		SubpassTranslucent: {
			PipelineBindPoint:       vk.PipelineBindPointGraphics,
			ColorAttachmentCount:    1,
			PColorAttachments:       present,
			PDepthStencilAttachment: &depthRead,
		},
	}

	byRegion := vk.DependencyFlags(vk.DependencyByRegionBit)
	dependencies := []vk.SubpassDependency{
		{
			SrcSubpass:      vk.SubpassExternal,
			DstSubpass:      SubpassGBuffer,
			SrcStageMask:    vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit),
			DstStageMask:    vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageEarlyFragmentTestsBit),
			SrcAccessMask:   vk.AccessFlags(vk.AccessMemoryReadBit),
			DstAccessMask:   vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit | vk.AccessDepthStencilAttachmentWriteBit),
			DependencyFlags: byRegion,
		},
		{
			SrcSubpass:      SubpassGBuffer,
			DstSubpass:      SubpassDeferred,
			SrcStageMask:    vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageLateFragmentTestsBit),
			DstStageMask:    vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
			SrcAccessMask:   vk.AccessFlags(vk.AccessColorAttachmentWriteBit | vk.AccessDepthStencilAttachmentWriteBit),
			DstAccessMask:   vk.AccessFlags(vk.AccessInputAttachmentReadBit),
			DependencyFlags: byRegion,
		},
		{
			SrcSubpass:      SubpassDeferred,
			DstSubpass:      SubpassTranslucent,
			SrcStageMask:    vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
			DstStageMask:    vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit | vk.PipelineStageLateFragmentTestsBit | vk.PipelineStageColorAttachmentOutputBit),
			SrcAccessMask:   vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
			DstAccessMask:   vk.AccessFlags(vk.AccessDepthStencilAttachmentReadBit | vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit),
			DependencyFlags: byRegion,
		},
		{
			SrcSubpass:      SubpassTranslucent,
			DstSubpass:      vk.SubpassExternal,
			SrcStageMask:    vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
			DstStageMask:    vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit),
			SrcAccessMask:   vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit),
			DstAccessMask:   vk.AccessFlags(vk.AccessMemoryReadBit),
			DependencyFlags: byRegion,
		},
	}

	createInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    uint32(len(subpasses)),
		PSubpasses:      subpasses,
		DependencyCount: uint32(len(dependencies)),
		PDependencies:   dependencies,
	}

	var handle vk.RenderPass
	err := device.locks.SafeCall(RenderpassManagement, func() error {
		if res := vk.CreateRenderPass(device.LogicalDevice, &createInfo, device.allocator, &handle); res != vk.Success {
			return fmt.Errorf("vkCreateRenderPass failed with %s: %w", VulkanResultString(res, true), core.ErrVulkan)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	outRenderpass.Handle = handle
	outRenderpass.Pass = &RenderPass{Handle: handle, Subpasses: subpassCount}
	core.LogDebug("Deferred render pass created with %d subpasses.", subpassCount)
	return outRenderpass, nil
}

// Attachments orders the swapchain view and the G-buffer views for a framebuffer.
func (vr *VulkanRenderpass) Attachments(presentView vk.ImageView, gbuffer *GBuffer) []vk.ImageView {
	return append([]vk.ImageView{presentView}, gbuffer.Views()...)
}

func (vr *VulkanRenderpass) Destroy(device *VulkanDevice) {
	if vr.Handle != nil {
		vk.DestroyRenderPass(device.LogicalDevice, vr.Handle, device.allocator)
		vr.Handle = nil
		vr.Pass = nil
	}
}

func (vr *VulkanRenderpass) Begin(commandBuffer *VulkanCommandBuffer, frameBuffer vk.Framebuffer) {
	clearValues := make([]vk.ClearValue, attachmentCount)
	for i := attachmentPresent; i < attachmentDepth; i++ {
		clearValues[i].SetColor(vr.ClearColor[:])
	}
	clearValues[attachmentDepth].SetDepthStencil(vr.Depth, vr.Stencil)

	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  vr.Handle,
		Framebuffer: frameBuffer,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: int32(vr.X), Y: int32(vr.Y)},
			Extent: vk.Extent2D{Width: uint32(vr.W), Height: uint32(vr.H)},
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}

	vk.CmdBeginRenderPass(commandBuffer.Handle, &beginInfo, vk.SubpassContentsInline)
	commandBuffer.State = COMMAND_BUFFER_STATE_IN_RENDER_PASS
}

func (vr *VulkanRenderpass) End(commandBuffer *VulkanCommandBuffer) {
	vk.CmdEndRenderPass(commandBuffer.Handle)
	commandBuffer.State = COMMAND_BUFFER_STATE_RECORDING
}

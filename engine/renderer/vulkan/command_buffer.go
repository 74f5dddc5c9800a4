package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vesta/engine/core"
)

type VulkanCommandBufferState int

const (
	COMMAND_BUFFER_STATE_READY VulkanCommandBufferState = iota
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_IN_RENDER_PASS
	COMMAND_BUFFER_STATE_RECORDING_ENDED
	COMMAND_BUFFER_STATE_SUBMITTED
	COMMAND_BUFFER_STATE_NOT_ALLOCATED
)

type VulkanCommandBuffer struct {
	Handle vk.CommandBuffer
	// Command buffer state.
	State VulkanCommandBufferState
}

var _ CommandRecorder = (*VulkanCommandBuffer)(nil)

func NewVulkanCommandBuffer(device *VulkanDevice, pool vk.CommandPool, isPrimary bool) (*VulkanCommandBuffer, error) {
	level := vk.CommandBufferLevelSecondary
	if isPrimary {
		level = vk.CommandBufferLevelPrimary
	}
	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		CommandBufferCount: 1,
		Level:              level,
	}

	handles := make([]vk.CommandBuffer, 1)
	err := device.locks.SafeCall(CommandBufferManagement, func() error {
		if res := vk.AllocateCommandBuffers(device.LogicalDevice, &allocateInfo, handles); res != vk.Success {
			return fmt.Errorf("vkAllocateCommandBuffers failed with %s: %w", VulkanResultString(res, true), core.ErrVulkan)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &VulkanCommandBuffer{Handle: handles[0], State: COMMAND_BUFFER_STATE_READY}, nil
}

func (v *VulkanCommandBuffer) Free(device *VulkanDevice, pool vk.CommandPool) {
	if v.Handle == nil {
		return
	}
	_ = device.locks.SafeCall(CommandBufferManagement, func() error {
		vk.FreeCommandBuffers(device.LogicalDevice, pool, 1, []vk.CommandBuffer{v.Handle})
		return nil
	})
	v.Handle = nil
	v.State = COMMAND_BUFFER_STATE_NOT_ALLOCATED
}

func (v *VulkanCommandBuffer) Begin(isSingleUse, isRenderpassContinue, isSimultaneousUse bool) error {
	beginInfo := &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if isSingleUse {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	if isRenderpassContinue {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageRenderPassContinueBit)
	}
	if isSimultaneousUse {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageSimultaneousUseBit)
	}
	if res := vk.BeginCommandBuffer(v.Handle, beginInfo); res != vk.Success {
		return fmt.Errorf("vkBeginCommandBuffer failed with %s: %w", VulkanResultString(res, true), core.ErrVulkan)
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING
	return nil
}

func (v *VulkanCommandBuffer) End() error {
	if res := vk.EndCommandBuffer(v.Handle); res != vk.Success {
		return fmt.Errorf("vkEndCommandBuffer failed with %s: %w", VulkanResultString(res, true), core.ErrVulkan)
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING_ENDED
	return nil
}

func (v *VulkanCommandBuffer) UpdateSubmitted() {
	v.State = COMMAND_BUFFER_STATE_SUBMITTED
}

func (v *VulkanCommandBuffer) Reset() error {
	if res := vk.ResetCommandBuffer(v.Handle, 0); res != vk.Success {
		return fmt.Errorf("vkResetCommandBuffer failed with %s: %w", VulkanResultString(res, true), core.ErrVulkan)
	}
	v.State = COMMAND_BUFFER_STATE_READY
	return nil
}

/**
 * Allocates and begins recording a single-use primary command buffer.
 */
func AllocateAndBeginSingleUse(device *VulkanDevice, pool vk.CommandPool) (*VulkanCommandBuffer, error) {
	cb, err := NewVulkanCommandBuffer(device, pool, true)
	if err != nil {
		return nil, err
	}
	if err := cb.Begin(true, false, false); err != nil {
		cb.Free(device, pool)
		return nil, err
	}
	return cb, nil
}

/**
 * Ends recording, submits to and waits for queue operation and frees the provided command buffer.
 */
func (v *VulkanCommandBuffer) EndSingleUse(device *VulkanDevice, pool vk.CommandPool, queue vk.Queue, queueFamily uint32) error {
	defer v.Free(device, pool)
	if err := v.End(); err != nil {
		return err
	}
	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{v.Handle},
	}
	return device.locks.SafeQueueCall(queueFamily, func() error {
		if res := vk.QueueSubmit(queue, 1, []vk.SubmitInfo{submitInfo}, vk.NullFence); res != vk.Success {
			return fmt.Errorf("vkQueueSubmit failed with %s: %w", VulkanResultString(res, true), core.ErrVulkan)
		}
		if res := vk.QueueWaitIdle(queue); res != vk.Success {
			return fmt.Errorf("vkQueueWaitIdle failed with %s: %w", VulkanResultString(res, true), core.ErrVulkan)
		}
		return nil
	})
}

func (v *VulkanCommandBuffer) BindPipeline(pipeline *Pipeline) {
	vk.CmdBindPipeline(v.Handle, pipeline.BindPoint, pipeline.Handle)
}

func (v *VulkanCommandBuffer) BindDescriptorSets(bindPoint vk.PipelineBindPoint, layout *PipelineLayout, firstSet uint32, sets []*DescriptorSet) {
	handles := make([]vk.DescriptorSet, len(sets))
	for i, set := range sets {
		handles[i] = set.Handle
	}
	vk.CmdBindDescriptorSets(v.Handle, bindPoint, layout.Handle, firstSet, uint32(len(handles)), handles, 0, nil)
}

func (v *VulkanCommandBuffer) PushConstants(layout *PipelineLayout, stages vk.ShaderStageFlags, offset uint32, data []byte) {
	if len(data) == 0 {
		return
	}
	vk.CmdPushConstants(v.Handle, layout.Handle, stages, offset, uint32(len(data)), unsafe.Pointer(&data[0]))
}

func (v *VulkanCommandBuffer) BindVertexBuffers(first uint32, buffers []*Buffer, offsets []uint64) {
	handles := make([]vk.Buffer, len(buffers))
	sizes := make([]vk.DeviceSize, len(buffers))
	for i, b := range buffers {
		handles[i] = b.Handle
		if i < len(offsets) {
			sizes[i] = vk.DeviceSize(offsets[i])
		}
	}
	vk.CmdBindVertexBuffers(v.Handle, first, uint32(len(handles)), handles, sizes)
}

func (v *VulkanCommandBuffer) BindIndexBuffer(buffer *Buffer, offset uint64, indexType vk.IndexType) {
	vk.CmdBindIndexBuffer(v.Handle, buffer.Handle, vk.DeviceSize(offset), indexType)
}

func (v *VulkanCommandBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	vk.CmdDraw(v.Handle, vertexCount, instanceCount, firstVertex, firstInstance)
}

func (v *VulkanCommandBuffer) DrawIndexedIndirect(buffer *Buffer, offset uint64, drawCount, stride uint32) {
	if drawCount == 0 {
		return
	}
	vk.CmdDrawIndexedIndirect(v.Handle, buffer.Handle, vk.DeviceSize(offset), drawCount, stride)
}

func (v *VulkanCommandBuffer) Dispatch(x, y, z uint32) {
	vk.CmdDispatch(v.Handle, x, y, z)
}

func (v *VulkanCommandBuffer) NextSubpass() {
	vk.CmdNextSubpass(v.Handle, vk.SubpassContentsInline)
}

func (v *VulkanCommandBuffer) SetViewport(x, y, width, height float32) {
	vk.CmdSetViewport(v.Handle, 0, 1, []vk.Viewport{{
		X:        x,
		Y:        y,
		Width:    width,
		Height:   height,
		MinDepth: 0,
		MaxDepth: 1,
	}})
}

func (v *VulkanCommandBuffer) SetScissor(width, height uint32) {
	vk.CmdSetScissor(v.Handle, 0, 1, []vk.Rect2D{{
		Extent: vk.Extent2D{Width: width, Height: height},
	}})
}

func (v *VulkanCommandBuffer) PipelineBarrier(srcStage, dstStage vk.PipelineStageFlags, barriers []ImageBarrier) {
	imageBarriers := make([]vk.ImageMemoryBarrier, len(barriers))
	for i, b := range barriers {
		imageBarriers[i] = vk.ImageMemoryBarrier{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       b.SrcAccess,
			DstAccessMask:       b.DstAccess,
			OldLayout:           b.OldLayout,
			NewLayout:           b.NewLayout,
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               b.Image.Handle,
			SubresourceRange:    b.Range,
		}
	}
	vk.CmdPipelineBarrier(v.Handle, srcStage, dstStage, 0, 0, nil, 0, nil, uint32(len(imageBarriers)), imageBarriers)
}

// MemoryBarrier orders global memory accesses, e.g. compute writes consumed
// as vertex input.
func (v *VulkanCommandBuffer) MemoryBarrier(srcStage, dstStage vk.PipelineStageFlags, srcAccess, dstAccess vk.AccessFlags) {
	barrier := vk.MemoryBarrier{
		SType:         vk.StructureTypeMemoryBarrier,
		SrcAccessMask: srcAccess,
		DstAccessMask: dstAccess,
	}
	vk.CmdPipelineBarrier(v.Handle, srcStage, dstStage, 0, 1, []vk.MemoryBarrier{barrier}, 0, nil, 0, nil)
}

func (v *VulkanCommandBuffer) CopyBuffer(src, dst *Buffer, regions []vk.BufferCopy) {
	vk.CmdCopyBuffer(v.Handle, src.Handle, dst.Handle, uint32(len(regions)), regions)
}

func (v *VulkanCommandBuffer) CopyBufferToImage(src *Buffer, dst *Image, regions []vk.BufferImageCopy) {
	vk.CmdCopyBufferToImage(v.Handle, src.Handle, dst.Handle, vk.ImageLayoutTransferDstOptimal, uint32(len(regions)), regions)
}

package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"
)

// MemoryPolicy selects the memory heap and mapping behaviour of a buffer.
type MemoryPolicy uint8

const (
	// MemoryDeviceLocal buffers are only reachable through transfers.
	MemoryDeviceLocal MemoryPolicy = iota
	// MemoryHostCoherent buffers are persistently mapped; stores are visible
	// to the GPU without an explicit flush.
	MemoryHostCoherent
	// MemoryUpload is a transient staging buffer used as a transfer source.
	MemoryUpload
	// MemoryReadBack is host visible and cached, used as a transfer target.
	MemoryReadBack
)

func (p MemoryPolicy) String() string {
	switch p {
	case MemoryDeviceLocal:
		return "device-local"
	case MemoryHostCoherent:
		return "host-coherent"
	case MemoryUpload:
		return "upload"
	case MemoryReadBack:
		return "read-back"
	}
	return "unknown"
}

// HostVisible reports whether buffers with this policy can be mapped.
func (p MemoryPolicy) HostVisible() bool {
	return p != MemoryDeviceLocal
}

/**
 * @brief A GPU buffer together with its backing memory.
 */
type Buffer struct {
	Handle vk.Buffer
	Memory vk.DeviceMemory
	Name   string
	Size   uint64
	Usage  vk.BufferUsageFlags
	Policy MemoryPolicy
	/** @brief Base of the persistent mapping, nil for device-local buffers. */
	Mapped unsafe.Pointer
}

/**
 * @brief Everything needed to create an image and its default view.
 */
type ImageInfo struct {
	Name        string
	Width       uint32
	Height      uint32
	Depth       uint32
	MipLevels   uint32
	ArrayLayers uint32
	Format      vk.Format
	Usage       vk.ImageUsageFlags
	Aspect      vk.ImageAspectFlags
	Samples     vk.SampleCountFlagBits
	Type        vk.ImageType
	ViewType    vk.ImageViewType
	Flags       vk.ImageCreateFlags
}

type Sampler struct {
	Handle vk.Sampler
	Info   vk.SamplerCreateInfo
}

type DescriptorSetLayout struct {
	Handle   vk.DescriptorSetLayout
	Bindings []vk.DescriptorSetLayoutBinding
	Flags    []vk.DescriptorBindingFlags
	// VariableBinding is the index of the variable-count binding or -1.
	VariableBinding int
	UpdateAfterBind bool
}

// VariableCount returns the declared maximum of the variable-count binding.
func (l *DescriptorSetLayout) VariableCount() uint32 {
	if l.VariableBinding < 0 {
		return 0
	}
	return l.Bindings[l.VariableBinding].DescriptorCount
}

type DescriptorPool struct {
	Handle          vk.DescriptorPool
	MaxSets         uint32
	Sizes           []vk.DescriptorPoolSize
	UpdateAfterBind bool
}

type DescriptorSet struct {
	Handle        vk.DescriptorSet
	Layout        *DescriptorSetLayout
	VariableCount uint32
}

type PipelineLayout struct {
	Handle        vk.PipelineLayout
	SetLayouts    []*DescriptorSetLayout
	PushConstants []vk.PushConstantRange
}

type Pipeline struct {
	Handle    vk.Pipeline
	Name      string
	BindPoint vk.PipelineBindPoint
	Layout    *PipelineLayout
}

type ShaderModule struct {
	Handle vk.ShaderModule
	Stage  vk.ShaderStageFlagBits
	Entry  string
}

type RenderPass struct {
	Handle    vk.RenderPass
	Subpasses uint32
}

type DescriptorBufferInfo struct {
	Buffer *Buffer
	Offset uint64
	Range  uint64
}

type DescriptorImageInfo struct {
	Sampler *Sampler
	Image   *Image
	Layout  vk.ImageLayout
}

/**
 * @brief One pending write into a descriptor set binding. Exactly one of
 * Buffers, Images or AccelerationStructures is populated.
 */
type DescriptorWrite struct {
	Set                    *DescriptorSet
	Binding                uint32
	ArrayElement           uint32
	Type                   vk.DescriptorType
	Buffers                []DescriptorBufferInfo
	Images                 []DescriptorImageInfo
	AccelerationStructures []uint64
}

// Count returns the number of descriptors written.
func (w *DescriptorWrite) Count() uint32 {
	switch {
	case len(w.Buffers) > 0:
		return uint32(len(w.Buffers))
	case len(w.Images) > 0:
		return uint32(len(w.Images))
	}
	return uint32(len(w.AccelerationStructures))
}

/**
 * @brief A layout transition of one image recorded by PipelineBarrier.
 */
type ImageBarrier struct {
	Image     *Image
	OldLayout vk.ImageLayout
	NewLayout vk.ImageLayout
	SrcAccess vk.AccessFlags
	DstAccess vk.AccessFlags
	Range     vk.ImageSubresourceRange
}

// Device is the graphics-device collaborator every engine component talks to.
// All wrapper objects it returns are owned by the caller and must be released
// through the matching Destroy call.
type Device interface {
	CreateBuffer(name string, size uint64, usage vk.BufferUsageFlags, policy MemoryPolicy) (*Buffer, error)
	DestroyBuffer(buffer *Buffer)
	MapPersistent(buffer *Buffer) (unsafe.Pointer, error)

	CreateImage(info ImageInfo) (*Image, error)
	DestroyImage(image *Image)
	CreateSampler(info vk.SamplerCreateInfo) (*Sampler, error)
	DestroySampler(sampler *Sampler)

	CreateDescriptorSetLayout(layout *DescriptorSetLayout) error
	DestroyDescriptorSetLayout(layout *DescriptorSetLayout)
	CreateDescriptorPool(pool *DescriptorPool) error
	DestroyDescriptorPool(pool *DescriptorPool)
	AllocateDescriptorSet(pool *DescriptorPool, layout *DescriptorSetLayout, variableCount uint32) (*DescriptorSet, error)
	UpdateDescriptorSets(writes []DescriptorWrite)

	CreatePipelineLayout(layout *PipelineLayout) error
	DestroyPipelineLayout(layout *PipelineLayout)
	CreateShaderModule(code []uint32, stage vk.ShaderStageFlagBits) (*ShaderModule, error)
	DestroyShaderModule(module *ShaderModule)
	CreateGraphicsPipeline(desc *GraphicsPipelineDesc) (*Pipeline, error)
	CreateComputePipeline(desc *ComputePipelineDesc) (*Pipeline, error)
	DestroyPipeline(pipeline *Pipeline)

	// ExecuteImmediately records fn into a one-shot command buffer, submits
	// it and blocks until the GPU has finished.
	ExecuteImmediately(fn func(cb CommandRecorder) error) error
	WaitIdle() error
}

// CommandRecorder is the subset of command-buffer recording the engine uses.
type CommandRecorder interface {
	BindPipeline(pipeline *Pipeline)
	BindDescriptorSets(bindPoint vk.PipelineBindPoint, layout *PipelineLayout, firstSet uint32, sets []*DescriptorSet)
	PushConstants(layout *PipelineLayout, stages vk.ShaderStageFlags, offset uint32, data []byte)
	BindVertexBuffers(first uint32, buffers []*Buffer, offsets []uint64)
	BindIndexBuffer(buffer *Buffer, offset uint64, indexType vk.IndexType)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	DrawIndexedIndirect(buffer *Buffer, offset uint64, drawCount, stride uint32)
	Dispatch(x, y, z uint32)
	NextSubpass()
	SetViewport(x, y, width, height float32)
	SetScissor(width, height uint32)
	PipelineBarrier(srcStage, dstStage vk.PipelineStageFlags, barriers []ImageBarrier)
	MemoryBarrier(srcStage, dstStage vk.PipelineStageFlags, srcAccess, dstAccess vk.AccessFlags)
	CopyBuffer(src, dst *Buffer, regions []vk.BufferCopy)
	CopyBufferToImage(src *Buffer, dst *Image, regions []vk.BufferImageCopy)
}

// DrawIndexedIndirectCommand mirrors VkDrawIndexedIndirectCommand byte for
// byte so it can live inside indirect buffers.
type DrawIndexedIndirectCommand struct {
	IndexCount    uint32
	InstanceCount uint32
	FirstIndex    uint32
	VertexOffset  int32
	FirstInstance uint32
}

// DrawIndexedIndirectStride is the byte size of one indirect command.
const DrawIndexedIndirectStride = 20

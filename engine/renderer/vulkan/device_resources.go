package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vesta/engine/core"
)

var _ Device = (*VulkanDevice)(nil)

func (d *VulkanDevice) allocateMemory(reqs vk.MemoryRequirements, policy MemoryPolicy) (vk.DeviceMemory, error) {
	index, err := d.FindMemoryIndex(reqs.MemoryTypeBits, memoryFlags(policy))
	if err != nil && policy == MemoryReadBack {
		index, err = d.FindMemoryIndex(reqs.MemoryTypeBits, memoryFlags(MemoryHostCoherent))
	}
	if err != nil {
		return vk.NullDeviceMemory, err
	}
	var memory vk.DeviceMemory
	res := vk.AllocateMemory(d.LogicalDevice, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: index,
	}, d.allocator, &memory)
	if res != vk.Success {
		return vk.NullDeviceMemory, fmt.Errorf("vkAllocateMemory failed with %s: %w", VulkanResultString(res, true), core.ErrVulkan)
	}
	return memory, nil
}

func (d *VulkanDevice) CreateBuffer(name string, size uint64, usage vk.BufferUsageFlags, policy MemoryPolicy) (*Buffer, error) {
	if size == 0 {
		return nil, fmt.Errorf("buffer %q has zero size: %w", name, core.ErrInvariantViolation)
	}
	buffer := &Buffer{Name: name, Size: size, Usage: usage, Policy: policy}
	err := d.locks.SafeCall(BufferManagement, func() error {
		var handle vk.Buffer
		res := vk.CreateBuffer(d.LogicalDevice, &vk.BufferCreateInfo{
			SType:       vk.StructureTypeBufferCreateInfo,
			Size:        vk.DeviceSize(size),
			Usage:       usage,
			SharingMode: vk.SharingModeExclusive,
		}, d.allocator, &handle)
		if res != vk.Success {
			return fmt.Errorf("vkCreateBuffer failed with %s: %w", VulkanResultString(res, true), core.ErrVulkan)
		}
		buffer.Handle = handle

		var reqs vk.MemoryRequirements
		vk.GetBufferMemoryRequirements(d.LogicalDevice, handle, &reqs)
		reqs.Deref()
		memory, err := d.allocateMemory(reqs, policy)
		if err != nil {
			vk.DestroyBuffer(d.LogicalDevice, handle, d.allocator)
			return err
		}
		buffer.Memory = memory
		if res := vk.BindBufferMemory(d.LogicalDevice, handle, memory, 0); res != vk.Success {
			vk.FreeMemory(d.LogicalDevice, memory, d.allocator)
			vk.DestroyBuffer(d.LogicalDevice, handle, d.allocator)
			return fmt.Errorf("vkBindBufferMemory failed with %s: %w", VulkanResultString(res, true), core.ErrVulkan)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	core.LogDebug("Buffer '%s' created (%d bytes, %s).", name, size, policy)
	return buffer, nil
}

func (d *VulkanDevice) DestroyBuffer(buffer *Buffer) {
	if buffer == nil {
		return
	}
	_ = d.locks.SafeCall(BufferManagement, func() error {
		if buffer.Mapped != nil {
			vk.UnmapMemory(d.LogicalDevice, buffer.Memory)
			buffer.Mapped = nil
		}
		if buffer.Memory != vk.NullDeviceMemory {
			vk.FreeMemory(d.LogicalDevice, buffer.Memory, d.allocator)
			buffer.Memory = vk.NullDeviceMemory
		}
		if buffer.Handle != vk.NullBuffer {
			vk.DestroyBuffer(d.LogicalDevice, buffer.Handle, d.allocator)
			buffer.Handle = vk.NullBuffer
		}
		return nil
	})
}

// MapPersistent maps the whole buffer once. Later calls return the same address.
func (d *VulkanDevice) MapPersistent(buffer *Buffer) (unsafe.Pointer, error) {
	if buffer.Mapped != nil {
		return buffer.Mapped, nil
	}
	if !buffer.Policy.HostVisible() {
		return nil, fmt.Errorf("buffer %q is %s and cannot be mapped: %w", buffer.Name, buffer.Policy, core.ErrInvariantViolation)
	}
	var ptr unsafe.Pointer
	if res := vk.MapMemory(d.LogicalDevice, buffer.Memory, 0, vk.DeviceSize(vk.WholeSize), 0, &ptr); res != vk.Success {
		return nil, fmt.Errorf("vkMapMemory failed with %s: %w", VulkanResultString(res, true), core.ErrVulkan)
	}
	buffer.Mapped = ptr
	return ptr, nil
}

func (d *VulkanDevice) CreateImage(info ImageInfo) (*Image, error) {
	if info.Depth == 0 {
		info.Depth = 1
	}
	if info.MipLevels == 0 {
		info.MipLevels = 1
	}
	if info.ArrayLayers == 0 {
		info.ArrayLayers = 1
	}
	if info.Samples == 0 {
		info.Samples = vk.SampleCount1Bit
	}
	img := &Image{Info: info, layout: vk.ImageLayoutUndefined}
	err := d.locks.SafeCall(ImageManagement, func() error {
		var handle vk.Image
		res := vk.CreateImage(d.LogicalDevice, &vk.ImageCreateInfo{
			SType:         vk.StructureTypeImageCreateInfo,
			Flags:         info.Flags,
			ImageType:     info.Type,
			Format:        info.Format,
			Extent:        vk.Extent3D{Width: info.Width, Height: info.Height, Depth: info.Depth},
			MipLevels:     info.MipLevels,
			ArrayLayers:   info.ArrayLayers,
			Samples:       info.Samples,
			Tiling:        vk.ImageTilingOptimal,
			Usage:         info.Usage,
			SharingMode:   vk.SharingModeExclusive,
			InitialLayout: vk.ImageLayoutUndefined,
		}, d.allocator, &handle)
		if res != vk.Success {
			return fmt.Errorf("vkCreateImage failed with %s: %w", VulkanResultString(res, true), core.ErrVulkan)
		}
		img.Handle = handle

		var reqs vk.MemoryRequirements
		vk.GetImageMemoryRequirements(d.LogicalDevice, handle, &reqs)
		reqs.Deref()
		memory, err := d.allocateMemory(reqs, MemoryDeviceLocal)
		if err != nil {
			return err
		}
		img.Memory = memory
		if res := vk.BindImageMemory(d.LogicalDevice, handle, memory, 0); res != vk.Success {
			return fmt.Errorf("vkBindImageMemory failed with %s: %w", VulkanResultString(res, true), core.ErrVulkan)
		}

		var view vk.ImageView
		res = vk.CreateImageView(d.LogicalDevice, &vk.ImageViewCreateInfo{
			SType:            vk.StructureTypeImageViewCreateInfo,
			Image:            handle,
			ViewType:         info.ViewType,
			Format:           info.Format,
			SubresourceRange: img.FullRange(),
		}, d.allocator, &view)
		if res != vk.Success {
			return fmt.Errorf("vkCreateImageView failed with %s: %w", VulkanResultString(res, true), core.ErrVulkan)
		}
		img.View = view
		return nil
	})
	if err != nil {
		d.DestroyImage(img)
		return nil, err
	}
	core.LogDebug("Image '%s' created (%dx%d, %d mips, %d layers).", info.Name, info.Width, info.Height, info.MipLevels, info.ArrayLayers)
	return img, nil
}

func (d *VulkanDevice) DestroyImage(img *Image) {
	if img == nil {
		return
	}
	_ = d.locks.SafeCall(ImageManagement, func() error {
		if img.View != nil {
			vk.DestroyImageView(d.LogicalDevice, img.View, d.allocator)
			img.View = nil
		}
		if img.Memory != vk.NullDeviceMemory {
			vk.FreeMemory(d.LogicalDevice, img.Memory, d.allocator)
			img.Memory = vk.NullDeviceMemory
		}
		if img.Handle != vk.NullImage {
			vk.DestroyImage(d.LogicalDevice, img.Handle, d.allocator)
			img.Handle = vk.NullImage
		}
		return nil
	})
}

func (d *VulkanDevice) CreateSampler(info vk.SamplerCreateInfo) (*Sampler, error) {
	info.SType = vk.StructureTypeSamplerCreateInfo
	if info.AnisotropyEnable == vk.True {
		limit := d.Properties.Limits.MaxSamplerAnisotropy
		if info.MaxAnisotropy > limit {
			info.MaxAnisotropy = limit
		}
	}
	var handle vk.Sampler
	err := d.locks.SafeCall(SamplerManagement, func() error {
		if res := vk.CreateSampler(d.LogicalDevice, &info, d.allocator, &handle); res != vk.Success {
			return fmt.Errorf("vkCreateSampler failed with %s: %w", VulkanResultString(res, true), core.ErrVulkan)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Sampler{Handle: handle, Info: info}, nil
}

func (d *VulkanDevice) DestroySampler(sampler *Sampler) {
	if sampler == nil || sampler.Handle == vk.NullSampler {
		return
	}
	vk.DestroySampler(d.LogicalDevice, sampler.Handle, d.allocator)
	sampler.Handle = vk.NullSampler
}

func (d *VulkanDevice) CreateDescriptorSetLayout(layout *DescriptorSetLayout) error {
	info := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(layout.Bindings)),
		PBindings:    layout.Bindings,
	}
	if len(layout.Flags) > 0 {
		info.PNext = unsafe.Pointer(&vk.DescriptorSetLayoutBindingFlagsCreateInfo{
			SType:         vk.StructureTypeDescriptorSetLayoutBindingFlagsCreateInfo,
			BindingCount:  uint32(len(layout.Flags)),
			PBindingFlags: layout.Flags,
		})
	}
	if layout.UpdateAfterBind {
		info.Flags = vk.DescriptorSetLayoutCreateFlags(vk.DescriptorSetLayoutCreateUpdateAfterBindPoolBit)
	}
	var handle vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(d.LogicalDevice, &info, d.allocator, &handle); res != vk.Success {
		return fmt.Errorf("vkCreateDescriptorSetLayout failed with %s: %w", VulkanResultString(res, true), core.ErrVulkan)
	}
	layout.Handle = handle
	return nil
}

func (d *VulkanDevice) DestroyDescriptorSetLayout(layout *DescriptorSetLayout) {
	if layout == nil || layout.Handle == vk.NullDescriptorSetLayout {
		return
	}
	vk.DestroyDescriptorSetLayout(d.LogicalDevice, layout.Handle, d.allocator)
	layout.Handle = vk.NullDescriptorSetLayout
}

func (d *VulkanDevice) CreateDescriptorPool(pool *DescriptorPool) error {
	info := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       pool.MaxSets,
		PoolSizeCount: uint32(len(pool.Sizes)),
		PPoolSizes:    pool.Sizes,
	}
	if pool.UpdateAfterBind {
		info.Flags = vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateUpdateAfterBindBit)
	}
	var handle vk.DescriptorPool
	if res := vk.CreateDescriptorPool(d.LogicalDevice, &info, d.allocator, &handle); res != vk.Success {
		return fmt.Errorf("vkCreateDescriptorPool failed with %s: %w", VulkanResultString(res, true), core.ErrVulkan)
	}
	pool.Handle = handle
	return nil
}

func (d *VulkanDevice) DestroyDescriptorPool(pool *DescriptorPool) {
	if pool == nil || pool.Handle == vk.NullDescriptorPool {
		return
	}
	vk.DestroyDescriptorPool(d.LogicalDevice, pool.Handle, d.allocator)
	pool.Handle = vk.NullDescriptorPool
}

func (d *VulkanDevice) AllocateDescriptorSet(pool *DescriptorPool, layout *DescriptorSetLayout, variableCount uint32) (*DescriptorSet, error) {
	info := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool.Handle,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout.Handle},
	}
	if layout.VariableBinding >= 0 {
		info.PNext = unsafe.Pointer(&vk.DescriptorSetVariableDescriptorCountAllocateInfo{
			SType:              vk.StructureTypeDescriptorSetVariableDescriptorCountAllocateInfo,
			DescriptorSetCount: 1,
			PDescriptorCounts:  []uint32{variableCount},
		})
	}
	var handle vk.DescriptorSet
	if res := vk.AllocateDescriptorSets(d.LogicalDevice, &info, &handle); res != vk.Success {
		return nil, fmt.Errorf("vkAllocateDescriptorSets failed with %s: %w", VulkanResultString(res, true), core.ErrVulkan)
	}
	return &DescriptorSet{Handle: handle, Layout: layout, VariableCount: variableCount}, nil
}

func (d *VulkanDevice) UpdateDescriptorSets(writes []DescriptorWrite) {
	vkWrites := make([]vk.WriteDescriptorSet, 0, len(writes))
	for i := range writes {
		w := &writes[i]
		if w.Type == DescriptorTypeAccelerationStructure {
			core.LogWarn("acceleration structure write to binding %d skipped: the extension is not exposed", w.Binding)
			continue
		}
		vkw := vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          w.Set.Handle,
			DstBinding:      w.Binding,
			DstArrayElement: w.ArrayElement,
			DescriptorCount: w.Count(),
			DescriptorType:  w.Type,
		}
		if len(w.Buffers) > 0 {
			infos := make([]vk.DescriptorBufferInfo, len(w.Buffers))
			for j, b := range w.Buffers {
				infos[j] = vk.DescriptorBufferInfo{
					Buffer: b.Buffer.Handle,
					Offset: vk.DeviceSize(b.Offset),
					Range:  vk.DeviceSize(b.Range),
				}
			}
			vkw.PBufferInfo = infos
		}
		if len(w.Images) > 0 {
			infos := make([]vk.DescriptorImageInfo, len(w.Images))
			for j, im := range w.Images {
				info := vk.DescriptorImageInfo{ImageLayout: im.Layout}
				if im.Sampler != nil {
					info.Sampler = im.Sampler.Handle
				}
				if im.Image != nil {
					info.ImageView = im.Image.View
				}
				infos[j] = info
			}
			vkw.PImageInfo = infos
		}
		vkWrites = append(vkWrites, vkw)
	}
	if len(vkWrites) == 0 {
		return
	}
	vk.UpdateDescriptorSets(d.LogicalDevice, uint32(len(vkWrites)), vkWrites, 0, nil)
}

func (d *VulkanDevice) CreatePipelineLayout(layout *PipelineLayout) error {
	setLayouts := make([]vk.DescriptorSetLayout, len(layout.SetLayouts))
	for i, set := range layout.SetLayouts {
		setLayouts[i] = set.Handle
	}
	info := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         uint32(len(setLayouts)),
		PSetLayouts:            setLayouts,
		PushConstantRangeCount: uint32(len(layout.PushConstants)),
		PPushConstantRanges:    layout.PushConstants,
	}
	var handle vk.PipelineLayout
	if res := vk.CreatePipelineLayout(d.LogicalDevice, &info, d.allocator, &handle); res != vk.Success {
		return fmt.Errorf("vkCreatePipelineLayout failed with %s: %w", VulkanResultString(res, true), core.ErrVulkan)
	}
	layout.Handle = handle
	return nil
}

func (d *VulkanDevice) DestroyPipelineLayout(layout *PipelineLayout) {
	if layout == nil || layout.Handle == nil {
		return
	}
	vk.DestroyPipelineLayout(d.LogicalDevice, layout.Handle, d.allocator)
	layout.Handle = nil
}

func (d *VulkanDevice) CreateShaderModule(code []uint32, stage vk.ShaderStageFlagBits) (*ShaderModule, error) {
	var handle vk.ShaderModule
	err := d.locks.SafeCall(ShaderManagement, func() error {
		res := vk.CreateShaderModule(d.LogicalDevice, &vk.ShaderModuleCreateInfo{
			SType:    vk.StructureTypeShaderModuleCreateInfo,
			CodeSize: uint(len(code) * 4),
			PCode:    code,
		}, d.allocator, &handle)
		if res != vk.Success {
			return fmt.Errorf("vkCreateShaderModule failed with %s: %w", VulkanResultString(res, true), core.ErrVulkan)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ShaderModule{Handle: handle, Stage: stage, Entry: "main"}, nil
}

func (d *VulkanDevice) DestroyShaderModule(module *ShaderModule) {
	if module == nil || module.Handle == vk.NullShaderModule {
		return
	}
	vk.DestroyShaderModule(d.LogicalDevice, module.Handle, d.allocator)
	module.Handle = vk.NullShaderModule
}

func shaderStages(modules []*ShaderModule) []vk.PipelineShaderStageCreateInfo {
	stages := make([]vk.PipelineShaderStageCreateInfo, len(modules))
	for i, m := range modules {
		stages[i] = vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  m.Stage,
			Module: m.Handle,
			PName:  VulkanSafeString(m.Entry),
		}
	}
	return stages
}

func boolean(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}

func (d *VulkanDevice) CreateGraphicsPipeline(desc *GraphicsPipelineDesc) (*Pipeline, error) {
	stages := shaderStages(desc.Stages)
	info := vk.GraphicsPipelineCreateInfo{
		SType:      vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount: uint32(len(stages)),
		PStages:    stages,
		PVertexInputState: &vk.PipelineVertexInputStateCreateInfo{
			SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
			VertexBindingDescriptionCount:   uint32(len(desc.VertexBindings)),
			PVertexBindingDescriptions:      desc.VertexBindings,
			VertexAttributeDescriptionCount: uint32(len(desc.VertexAttributes)),
			PVertexAttributeDescriptions:    desc.VertexAttributes,
		},
		PInputAssemblyState: &vk.PipelineInputAssemblyStateCreateInfo{
			SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
			Topology: desc.Topology,
		},
		PViewportState: &vk.PipelineViewportStateCreateInfo{
			SType:         vk.StructureTypePipelineViewportStateCreateInfo,
			ViewportCount: 1,
			PViewports:    []vk.Viewport{desc.Viewport},
			ScissorCount:  1,
			PScissors:     []vk.Rect2D{desc.Scissor},
		},
		PRasterizationState: &vk.PipelineRasterizationStateCreateInfo{
			SType:            vk.StructureTypePipelineRasterizationStateCreateInfo,
			DepthClampEnable: boolean(desc.DepthClamp),
			PolygonMode:      desc.PolygonMode,
			CullMode:         desc.CullMode,
			FrontFace:        desc.FrontFace,
			DepthBiasEnable:  boolean(desc.DepthBias),
			LineWidth:        desc.LineWidth,
		},
		PMultisampleState: &vk.PipelineMultisampleStateCreateInfo{
			SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
			RasterizationSamples: desc.Samples,
			MinSampleShading:     1,
		},
		PDepthStencilState: &vk.PipelineDepthStencilStateCreateInfo{
			SType:            vk.StructureTypePipelineDepthStencilStateCreateInfo,
			DepthTestEnable:  boolean(desc.DepthTest),
			DepthWriteEnable: boolean(desc.DepthWrite),
			DepthCompareOp:   desc.DepthCompare,
			MaxDepthBounds:   1,
		},
		PColorBlendState: &vk.PipelineColorBlendStateCreateInfo{
			SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
			LogicOp:         vk.LogicOpCopy,
			AttachmentCount: uint32(len(desc.BlendAttachments)),
			PAttachments:    desc.BlendAttachments,
		},
		Subpass:            desc.Subpass,
		BasePipelineHandle: vk.NullPipeline,
		BasePipelineIndex:  -1,
	}
	if desc.Layout != nil {
		info.Layout = desc.Layout.Handle
	}
	if desc.RenderPass != nil {
		info.RenderPass = desc.RenderPass.Handle
	}
	if desc.Topology == vk.PrimitiveTopologyPatchList {
		info.PTessellationState = &vk.PipelineTessellationStateCreateInfo{
			SType:              vk.StructureTypePipelineTessellationStateCreateInfo,
			PatchControlPoints: desc.PatchControlPoints,
		}
	}
	if len(desc.DynamicStates) > 0 {
		info.PDynamicState = &vk.PipelineDynamicStateCreateInfo{
			SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
			DynamicStateCount: uint32(len(desc.DynamicStates)),
			PDynamicStates:    desc.DynamicStates,
		}
	}

	pipelines := make([]vk.Pipeline, 1)
	err := d.locks.SafeCall(PipelineManagement, func() error {
		res := vk.CreateGraphicsPipelines(d.LogicalDevice, vk.NullPipelineCache, 1, []vk.GraphicsPipelineCreateInfo{info}, d.allocator, pipelines)
		if res != vk.Success {
			return fmt.Errorf("vkCreateGraphicsPipelines for %q failed with %s: %w", desc.Name, VulkanResultString(res, true), core.ErrVulkan)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Pipeline{Handle: pipelines[0], Name: desc.Name, BindPoint: vk.PipelineBindPointGraphics, Layout: desc.Layout}, nil
}

func (d *VulkanDevice) CreateComputePipeline(desc *ComputePipelineDesc) (*Pipeline, error) {
	info := vk.ComputePipelineCreateInfo{
		SType:              vk.StructureTypeComputePipelineCreateInfo,
		Stage:              shaderStages([]*ShaderModule{desc.Shader})[0],
		BasePipelineHandle: vk.NullPipeline,
		BasePipelineIndex:  -1,
	}
	if desc.Layout != nil {
		info.Layout = desc.Layout.Handle
	}
	pipelines := make([]vk.Pipeline, 1)
	err := d.locks.SafeCall(PipelineManagement, func() error {
		res := vk.CreateComputePipelines(d.LogicalDevice, vk.NullPipelineCache, 1, []vk.ComputePipelineCreateInfo{info}, d.allocator, pipelines)
		if res != vk.Success {
			return fmt.Errorf("vkCreateComputePipelines for %q failed with %s: %w", desc.Name, VulkanResultString(res, true), core.ErrVulkan)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Pipeline{Handle: pipelines[0], Name: desc.Name, BindPoint: vk.PipelineBindPointCompute, Layout: desc.Layout}, nil
}

func (d *VulkanDevice) DestroyPipeline(pipeline *Pipeline) {
	if pipeline == nil || pipeline.Handle == vk.NullPipeline {
		return
	}
	vk.DestroyPipeline(d.LogicalDevice, pipeline.Handle, d.allocator)
	pipeline.Handle = vk.NullPipeline
}

// ExecuteImmediately records fn into a single-use command buffer on the
// graphics queue and waits for the queue to drain.
func (d *VulkanDevice) ExecuteImmediately(fn func(cb CommandRecorder) error) error {
	cb, err := AllocateAndBeginSingleUse(d, d.GraphicsCommandPool)
	if err != nil {
		return err
	}
	if err := fn(cb); err != nil {
		cb.Free(d, d.GraphicsCommandPool)
		return err
	}
	return cb.EndSingleUse(d, d.GraphicsCommandPool, d.GraphicsQueue, uint32(d.GraphicsQueueIndex))
}

func (d *VulkanDevice) WaitIdle() error {
	if res := vk.DeviceWaitIdle(d.LogicalDevice); res != vk.Success {
		return fmt.Errorf("vkDeviceWaitIdle failed with %s: %w", VulkanResultString(res, true), core.ErrVulkan)
	}
	return nil
}

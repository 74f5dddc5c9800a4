package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vesta/engine/core"
)

// DescriptorSetUpdater batches descriptor writes. Flush submits the batch and
// empties it so the same updater serves every frame.
type DescriptorSetUpdater struct {
	writes []DescriptorWrite
}

func (u *DescriptorSetUpdater) Pending() int {
	return len(u.writes)
}

func (u *DescriptorSetUpdater) Buffers(binding, arrayElement uint32, descriptorType vk.DescriptorType, infos ...DescriptorBufferInfo) *DescriptorSetUpdater {
	u.writes = append(u.writes, DescriptorWrite{
		Binding:      binding,
		ArrayElement: arrayElement,
		Type:         descriptorType,
		Buffers:      infos,
	})
	return u
}

func (u *DescriptorSetUpdater) Images(binding, arrayElement uint32, descriptorType vk.DescriptorType, infos ...DescriptorImageInfo) *DescriptorSetUpdater {
	u.writes = append(u.writes, DescriptorWrite{
		Binding:      binding,
		ArrayElement: arrayElement,
		Type:         descriptorType,
		Images:       infos,
	})
	return u
}

func (u *DescriptorSetUpdater) Uniform(binding uint32, buffer *Buffer) *DescriptorSetUpdater {
	return u.Buffers(binding, 0, vk.DescriptorTypeUniformBuffer, DescriptorBufferInfo{Buffer: buffer, Range: buffer.Size})
}

func (u *DescriptorSetUpdater) UniformDynamic(binding uint32, buffer *Buffer, rng uint64) *DescriptorSetUpdater {
	return u.Buffers(binding, 0, vk.DescriptorTypeUniformBufferDynamic, DescriptorBufferInfo{Buffer: buffer, Range: rng})
}

func (u *DescriptorSetUpdater) Storage(binding uint32, buffer *Buffer) *DescriptorSetUpdater {
	return u.Buffers(binding, 0, vk.DescriptorTypeStorageBuffer, DescriptorBufferInfo{Buffer: buffer, Range: buffer.Size})
}

func (u *DescriptorSetUpdater) Sampler2D(binding uint32, sampler *Sampler, image *Image) *DescriptorSetUpdater {
	return u.Images(binding, 0, vk.DescriptorTypeCombinedImageSampler,
		DescriptorImageInfo{Sampler: sampler, Image: image, Layout: vk.ImageLayoutShaderReadOnlyOptimal})
}

func (u *DescriptorSetUpdater) Input(binding uint32, image *Image) *DescriptorSetUpdater {
	return u.Images(binding, 0, vk.DescriptorTypeInputAttachment,
		DescriptorImageInfo{Image: image, Layout: vk.ImageLayoutShaderReadOnlyOptimal})
}

func (u *DescriptorSetUpdater) StorageImage(binding uint32, image *Image) *DescriptorSetUpdater {
	return u.Images(binding, 0, vk.DescriptorTypeStorageImage,
		DescriptorImageInfo{Image: image, Layout: vk.ImageLayoutGeneral})
}

func (u *DescriptorSetUpdater) AccelerationStructure(binding uint32, handle uint64) *DescriptorSetUpdater {
	u.writes = append(u.writes, DescriptorWrite{
		Binding:                binding,
		Type:                   DescriptorTypeAccelerationStructure,
		AccelerationStructures: []uint64{handle},
	})
	return u
}

// Flush writes every pending descriptor into set and clears the batch.
func (u *DescriptorSetUpdater) Flush(device Device, set *DescriptorSet) {
	if len(u.writes) == 0 {
		return
	}
	for i := range u.writes {
		u.writes[i].Set = set
	}
	device.UpdateDescriptorSets(u.writes)
	u.writes = u.writes[:0]
}

// Reset drops pending writes.
func (u *DescriptorSetUpdater) Reset() {
	u.writes = u.writes[:0]
}

/**
 * @brief A descriptor-set definition: a layout declaration plus an updater.
 * Concrete sets embed it and keep the binding handles it returns as fields.
 */
type DescriptorSetDef struct {
	Builder DescriptorSetLayoutBuilder
	Layout  *DescriptorSetLayout

	updater DescriptorSetUpdater
	device  Device
}

// Init creates the device layout. No bindings may be declared afterwards.
func (d *DescriptorSetDef) Init(device Device) error {
	layout, err := d.Builder.Build(device)
	if err != nil {
		return err
	}
	d.Layout = layout
	d.device = device
	return nil
}

// CreateSet allocates one set of this definition from pool.
func (d *DescriptorSetDef) CreateSet(pool *DescriptorPool) (*DescriptorSet, error) {
	if d.Layout == nil {
		return nil, fmt.Errorf("descriptor set layout hasn't been created: %w", core.ErrInvariantViolation)
	}
	return pool.Allocate(d.device, d.Layout)
}

// Update flushes the pending writes into set.
func (d *DescriptorSetDef) Update(set *DescriptorSet) error {
	if d.device == nil {
		return fmt.Errorf("call Init before Update: %w", core.ErrInvariantViolation)
	}
	d.updater.Flush(d.device, set)
	return nil
}

func (d *DescriptorSetDef) Destroy() {
	if d.device != nil && d.Layout != nil {
		d.device.DestroyDescriptorSetLayout(d.Layout)
		d.Layout = nil
	}
}

// Pending reports how many writes wait for the next Update.
func (d *DescriptorSetDef) Pending() int {
	return d.updater.Pending()
}

func (d *DescriptorSetDef) Uniform(stages vk.ShaderStageFlags) UniformBinding {
	return UniformBinding{d: d, Index: d.Builder.Uniform(stages)}
}

func (d *DescriptorSetDef) UniformDynamic(stages vk.ShaderStageFlags) UniformDynamicBinding {
	return UniformDynamicBinding{d: d, Index: d.Builder.UniformDynamic(stages)}
}

func (d *DescriptorSetDef) Buffer(stages vk.ShaderStageFlags) BufferBinding {
	return BufferBinding{d: d, Index: d.Builder.Storage(stages)}
}

func (d *DescriptorSetDef) Sampler(stages vk.ShaderStageFlags) SamplerBinding {
	return SamplerBinding{d: d, Index: d.Builder.Sampler2D(stages, 1, 0)}
}

// Samplers declares an array of combined image samplers.
func (d *DescriptorSetDef) Samplers(stages vk.ShaderStageFlags, count uint32, flags vk.DescriptorBindingFlags) SamplerBinding {
	return SamplerBinding{d: d, Index: d.Builder.Sampler2D(stages, count, flags)}
}

func (d *DescriptorSetDef) StorageImage(stages vk.ShaderStageFlags) StorageImageBinding {
	return StorageImageBinding{d: d, Index: d.Builder.StorageImage(stages)}
}

func (d *DescriptorSetDef) Input(stages vk.ShaderStageFlags) InputBinding {
	return InputBinding{d: d, Index: d.Builder.Input(stages)}
}

func (d *DescriptorSetDef) AccelerationStructure(stages vk.ShaderStageFlags) ASBinding {
	return ASBinding{d: d, Index: d.Builder.AccelerationStructure(stages)}
}

type UniformBinding struct {
	d     *DescriptorSetDef
	Index uint32
}

func (b UniformBinding) Set(buffer *Buffer) {
	b.d.updater.Uniform(b.Index, buffer)
}

type UniformDynamicBinding struct {
	d     *DescriptorSetDef
	Index uint32
}

func (b UniformDynamicBinding) Set(buffer *Buffer, rng uint64) {
	b.d.updater.UniformDynamic(b.Index, buffer, rng)
}

type BufferBinding struct {
	d     *DescriptorSetDef
	Index uint32
}

func (b BufferBinding) Set(buffer *Buffer) {
	b.d.updater.Storage(b.Index, buffer)
}

// SetRange binds a sub-range of buffer.
func (b BufferBinding) SetRange(buffer *Buffer, offset, rng uint64) {
	b.d.updater.Buffers(b.Index, 0, vk.DescriptorTypeStorageBuffer,
		DescriptorBufferInfo{Buffer: buffer, Offset: offset, Range: rng})
}

type SamplerBinding struct {
	d     *DescriptorSetDef
	Index uint32
}

func (b SamplerBinding) Set(sampler *Sampler, image *Image) {
	b.d.updater.Sampler2D(b.Index, sampler, image)
}

// SetArray writes infos starting at arrayElement.
func (b SamplerBinding) SetArray(arrayElement uint32, infos []DescriptorImageInfo) {
	b.d.updater.Images(b.Index, arrayElement, vk.DescriptorTypeCombinedImageSampler, infos...)
}

type StorageImageBinding struct {
	d     *DescriptorSetDef
	Index uint32
}

func (b StorageImageBinding) Set(image *Image) {
	b.d.updater.StorageImage(b.Index, image)
}

type InputBinding struct {
	d     *DescriptorSetDef
	Index uint32
}

func (b InputBinding) Set(image *Image) {
	b.d.updater.Input(b.Index, image)
}

type ASBinding struct {
	d     *DescriptorSetDef
	Index uint32
}

func (b ASBinding) Set(handle uint64) {
	b.d.updater.AccelerationStructure(b.Index, handle)
}

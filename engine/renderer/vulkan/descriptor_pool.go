package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vesta/engine/core"
)

// poolTypeOrder fixes the order of the pool sizes handed to the driver.
var poolTypeOrder = []vk.DescriptorType{
	vk.DescriptorTypeSampler,
	vk.DescriptorTypeCombinedImageSampler,
	vk.DescriptorTypeSampledImage,
	vk.DescriptorTypeStorageImage,
	vk.DescriptorTypeUniformTexelBuffer,
	vk.DescriptorTypeStorageTexelBuffer,
	vk.DescriptorTypeUniformBuffer,
	vk.DescriptorTypeStorageBuffer,
	vk.DescriptorTypeUniformBufferDynamic,
	vk.DescriptorTypeStorageBufferDynamic,
	vk.DescriptorTypeInputAttachment,
	DescriptorTypeAccelerationStructure,
}

/**
 * @brief Accumulates per-type descriptor totals of every set layout
 * registered against it and creates a pool large enough for all of them.
 */
type DescriptorPoolBuilder struct {
	counts          map[vk.DescriptorType]uint32
	sets            uint32
	updateAfterBind bool
}

func NewDescriptorPoolBuilder() *DescriptorPoolBuilder {
	return &DescriptorPoolBuilder{counts: make(map[vk.DescriptorType]uint32)}
}

// SetLayout registers numSets sets of the given layout.
func (p *DescriptorPoolBuilder) SetLayout(layout *DescriptorSetLayout, numSets uint32) *DescriptorPoolBuilder {
	for _, binding := range layout.Bindings {
		p.counts[binding.DescriptorType] += binding.DescriptorCount * numSets
	}
	if layout.UpdateAfterBind {
		p.updateAfterBind = true
	}
	p.sets += numSets
	return p
}

// PipelineLayout registers one set of every layout used by a pipeline layout.
func (p *DescriptorPoolBuilder) PipelineLayout(layout *PipelineLayout) *DescriptorPoolBuilder {
	for _, set := range layout.SetLayouts {
		p.SetLayout(set, 1)
	}
	return p
}

// Descriptors adds raw descriptor capacity of one type.
func (p *DescriptorPoolBuilder) Descriptors(descriptorType vk.DescriptorType, count uint32) *DescriptorPoolBuilder {
	p.counts[descriptorType] += count
	return p
}

// Sets adds set capacity without descriptors.
func (p *DescriptorPoolBuilder) Sets(n uint32) *DescriptorPoolBuilder {
	p.sets += n
	return p
}

// Count reports the accumulated total for one descriptor type.
func (p *DescriptorPoolBuilder) Count(descriptorType vk.DescriptorType) uint32 {
	return p.counts[descriptorType]
}

// Sizes lists the non-zero totals.
func (p *DescriptorPoolBuilder) Sizes() []vk.DescriptorPoolSize {
	sizes := make([]vk.DescriptorPoolSize, 0, len(p.counts))
	for _, t := range poolTypeOrder {
		if n := p.counts[t]; n > 0 {
			sizes = append(sizes, vk.DescriptorPoolSize{Type: t, DescriptorCount: n})
		}
	}
	return sizes
}

func (p *DescriptorPoolBuilder) Build(device Device) (*DescriptorPool, error) {
	if p.sets == 0 {
		return nil, fmt.Errorf("descriptor pool without sets: %w", core.ErrInvariantViolation)
	}
	pool := &DescriptorPool{
		MaxSets:         p.sets,
		Sizes:           p.Sizes(),
		UpdateAfterBind: p.updateAfterBind,
	}
	if err := device.CreateDescriptorPool(pool); err != nil {
		return nil, err
	}
	return pool, nil
}

// Allocate allocates one set, sizing a variable-count binding to its
// declared maximum.
func (pool *DescriptorPool) Allocate(device Device, layout *DescriptorSetLayout) (*DescriptorSet, error) {
	return pool.AllocateVariable(device, layout, layout.VariableCount())
}

// AllocateVariable allocates one set with an explicit runtime count for the
// variable-count binding.
func (pool *DescriptorPool) AllocateVariable(device Device, layout *DescriptorSetLayout, count uint32) (*DescriptorSet, error) {
	if layout.VariableBinding < 0 && count > 0 {
		return nil, fmt.Errorf("layout has no variable binding but count %d was requested: %w", count, core.ErrInvariantViolation)
	}
	if count > layout.VariableCount() {
		return nil, fmt.Errorf("variable descriptor count %d exceeds declared maximum %d: %w",
			count, layout.VariableCount(), core.ErrCapacityExhausted)
	}
	return device.AllocateDescriptorSet(pool, layout, count)
}

package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vesta/engine/core"
)

// DescriptorTypeAccelerationStructure is VK_DESCRIPTOR_TYPE_ACCELERATION_STRUCTURE_KHR.
const DescriptorTypeAccelerationStructure vk.DescriptorType = 1000150000

// BindlessFlags are the binding flags of a bindless texture array.
const BindlessFlags = vk.DescriptorBindingFlags(vk.DescriptorBindingUpdateAfterBindBit |
	vk.DescriptorBindingPartiallyBoundBit |
	vk.DescriptorBindingVariableDescriptorCountBit)

/**
 * @brief Declarative list of descriptor bindings that becomes a
 * descriptor-set layout. Bindings take the next free index in declaration
 * order.
 */
type DescriptorSetLayoutBuilder struct {
	bindings        []vk.DescriptorSetLayoutBinding
	flags           []vk.DescriptorBindingFlags
	indexing        bool
	updateAfterBind bool
	hasVariable     bool
	variable        uint32
	variables       int
	next            uint32
}

func NewDescriptorSetLayoutBuilder() *DescriptorSetLayoutBuilder {
	return &DescriptorSetLayoutBuilder{}
}

// DeclareBinding appends a binding at the next free index and returns it.
func (b *DescriptorSetLayoutBuilder) DeclareBinding(descriptorType vk.DescriptorType, stages vk.ShaderStageFlags, count uint32, flags vk.DescriptorBindingFlags) uint32 {
	binding := b.next
	b.next++
	b.bindings = append(b.bindings, vk.DescriptorSetLayoutBinding{
		Binding:         binding,
		DescriptorType:  descriptorType,
		DescriptorCount: count,
		StageFlags:      stages,
	})
	b.flags = append(b.flags, flags)
	if flags != 0 {
		b.indexing = true
	}
	if flags&vk.DescriptorBindingFlags(vk.DescriptorBindingUpdateAfterBindBit) != 0 {
		b.updateAfterBind = true
	}
	if flags&vk.DescriptorBindingFlags(vk.DescriptorBindingVariableDescriptorCountBit) != 0 {
		b.hasVariable = true
		b.variable = binding
		b.variables++
	}
	return binding
}

func (b *DescriptorSetLayoutBuilder) Uniform(stages vk.ShaderStageFlags) uint32 {
	return b.DeclareBinding(vk.DescriptorTypeUniformBuffer, stages, 1, 0)
}

func (b *DescriptorSetLayoutBuilder) UniformDynamic(stages vk.ShaderStageFlags) uint32 {
	return b.DeclareBinding(vk.DescriptorTypeUniformBufferDynamic, stages, 1, 0)
}

func (b *DescriptorSetLayoutBuilder) Storage(stages vk.ShaderStageFlags) uint32 {
	return b.DeclareBinding(vk.DescriptorTypeStorageBuffer, stages, 1, 0)
}

func (b *DescriptorSetLayoutBuilder) Sampler2D(stages vk.ShaderStageFlags, count uint32, flags vk.DescriptorBindingFlags) uint32 {
	return b.DeclareBinding(vk.DescriptorTypeCombinedImageSampler, stages, count, flags)
}

func (b *DescriptorSetLayoutBuilder) StorageImage(stages vk.ShaderStageFlags) uint32 {
	return b.DeclareBinding(vk.DescriptorTypeStorageImage, stages, 1, 0)
}

func (b *DescriptorSetLayoutBuilder) Input(stages vk.ShaderStageFlags) uint32 {
	return b.DeclareBinding(vk.DescriptorTypeInputAttachment, stages, 1, 0)
}

func (b *DescriptorSetLayoutBuilder) AccelerationStructure(stages vk.ShaderStageFlags) uint32 {
	return b.DeclareBinding(DescriptorTypeAccelerationStructure, stages, 1, 0)
}

// Bindings returns the declared bindings in index order.
func (b *DescriptorSetLayoutBuilder) Bindings() []vk.DescriptorSetLayoutBinding {
	return b.bindings
}

// Layout validates the declaration and returns the layout description
// without creating a device object.
func (b *DescriptorSetLayoutBuilder) Layout() (*DescriptorSetLayout, error) {
	variable := -1
	if b.variables > 1 {
		return nil, fmt.Errorf("%d variable descriptor bindings declared, only one is allowed: %w",
			b.variables, core.ErrInvariantViolation)
	}
	if b.hasVariable {
		variable = int(b.variable)
		last := uint32(0)
		for _, binding := range b.bindings {
			if binding.Binding > last {
				last = binding.Binding
			}
		}
		if b.variable != last {
			return nil, fmt.Errorf("variable descriptor should only be the last binding (binding %d, last %d): %w",
				b.variable, last, core.ErrInvariantViolation)
		}
	}
	layout := &DescriptorSetLayout{
		Bindings:        append([]vk.DescriptorSetLayoutBinding(nil), b.bindings...),
		VariableBinding: variable,
		UpdateAfterBind: b.updateAfterBind,
	}
	if b.indexing {
		layout.Flags = append([]vk.DescriptorBindingFlags(nil), b.flags...)
	}
	return layout, nil
}

// Build validates the declaration and creates the layout on the device.
func (b *DescriptorSetLayoutBuilder) Build(device Device) (*DescriptorSetLayout, error) {
	layout, err := b.Layout()
	if err != nil {
		return nil, err
	}
	if err := device.CreateDescriptorSetLayout(layout); err != nil {
		return nil, err
	}
	return layout, nil
}

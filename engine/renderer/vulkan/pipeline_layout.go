package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vesta/engine/core"
)

// maxPushConstantBytes is the size every implementation guarantees.
const maxPushConstantBytes = 128

/**
 * @brief Aggregates descriptor-set layouts by set index plus push-constant
 * ranges laid out back to back.
 */
type PipelineLayoutBuilder struct {
	sets   []*DescriptorSetLayout
	ranges []vk.PushConstantRange
	offset uint32
}

func NewPipelineLayoutBuilder() *PipelineLayoutBuilder {
	return &PipelineLayoutBuilder{}
}

// DescriptorSetLayout places layout at set index set.
func (b *PipelineLayoutBuilder) DescriptorSetLayout(set uint32, layout *DescriptorSetLayout) *PipelineLayoutBuilder {
	for uint32(len(b.sets)) <= set {
		b.sets = append(b.sets, nil)
	}
	b.sets[set] = layout
	return b
}

// NextSet appends layout at the next free set index and returns that index.
func (b *PipelineLayoutBuilder) NextSet(layout *DescriptorSetLayout) uint32 {
	set := uint32(len(b.sets))
	b.sets = append(b.sets, layout)
	return set
}

// PushConstantRange appends a range starting where the previous one ended
// and returns its offset.
func (b *PipelineLayoutBuilder) PushConstantRange(stages vk.ShaderStageFlags, size uint32) uint32 {
	offset := b.offset
	b.ranges = append(b.ranges, vk.PushConstantRange{
		StageFlags: stages,
		Offset:     offset,
		Size:       size,
	})
	b.offset += size
	return offset
}

func (b *PipelineLayoutBuilder) Build(device Device) (*PipelineLayout, error) {
	for i, set := range b.sets {
		if set == nil {
			return nil, fmt.Errorf("pipeline layout set %d has no descriptor set layout: %w", i, core.ErrInvariantViolation)
		}
	}
	if b.offset > maxPushConstantBytes {
		return nil, fmt.Errorf("push constants take %d bytes, more than %d: %w", b.offset, maxPushConstantBytes, core.ErrCapacityExhausted)
	}
	layout := &PipelineLayout{
		SetLayouts:    append([]*DescriptorSetLayout(nil), b.sets...),
		PushConstants: append([]vk.PushConstantRange(nil), b.ranges...),
	}
	if err := device.CreatePipelineLayout(layout); err != nil {
		return nil, err
	}
	return layout, nil
}

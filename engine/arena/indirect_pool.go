package arena

import (
	"fmt"
	"unsafe"

	"github.com/spaghettifunk/vesta/engine/core"
	"github.com/spaghettifunk/vesta/engine/renderer/vulkan"
)

/**
 * @brief A mapped indirect buffer allocated monotonically. Live elements are
 * always packed in [0, Count) so Count can be handed to drawIndirect as is.
 * Elements leave through SwapRemove, which moves the last one into the hole.
 */
type IndirectPool[T any] struct {
	buffer   *vulkan.Buffer
	items    []T
	count    uint32
	capacity uint32
}

func NewIndirectPool[T any](device vulkan.Device, name string, capacity uint32) (*IndirectPool[T], error) {
	if capacity == 0 {
		return nil, fmt.Errorf("indirect pool %q needs a non-zero capacity: %w", name, core.ErrInvariantViolation)
	}
	var zero T
	buf, err := vulkan.NewIndirectBuffer(device, name, uint64(capacity)*uint64(unsafe.Sizeof(zero)))
	if err != nil {
		return nil, err
	}
	return &IndirectPool[T]{
		buffer:   buf,
		items:    vulkan.Slice[T](buf, int(capacity)),
		capacity: capacity,
	}, nil
}

func (p *IndirectPool[T]) Allocate() (Allocation[T], error) {
	if p.count >= p.capacity {
		core.LogError("%s is full (%d commands)", p.buffer.Name, p.capacity)
		return Allocation[T]{}, fmt.Errorf("%s is full with %d commands: %w", p.buffer.Name, p.capacity, core.ErrCapacityExhausted)
	}
	offset := p.count
	p.count++
	var zero T
	p.items[offset] = zero
	return Allocation[T]{Offset: offset, Ptr: &p.items[offset]}, nil
}

// SwapRemove frees the element at offset by moving the last live element
// into it. It returns the former offset of the moved element and whether a
// move happened at all (removing the last element moves nothing).
func (p *IndirectPool[T]) SwapRemove(offset uint32) (from uint32, moved bool, err error) {
	if offset >= p.count {
		return 0, false, fmt.Errorf("command %d of %s is not live (count %d): %w", offset, p.buffer.Name, p.count, core.ErrStaleAllocation)
	}
	last := p.count - 1
	var zero T
	if offset != last {
		p.items[offset] = p.items[last]
		moved = true
	}
	p.items[last] = zero
	p.count--
	return last, moved, nil
}

// Deallocate checks a at the pool's address and swap-removes it.
func (p *IndirectPool[T]) Deallocate(a Allocation[T]) (from uint32, moved bool, err error) {
	if a.Offset >= p.capacity || a.Ptr != &p.items[a.Offset] {
		return 0, false, fmt.Errorf("command %d does not belong to %s: %w", a.Offset, p.buffer.Name, core.ErrStaleAllocation)
	}
	return p.SwapRemove(a.Offset)
}

func (p *IndirectPool[T]) At(offset uint32) *T {
	return &p.items[offset]
}

func (p *IndirectPool[T]) Buffer() *vulkan.Buffer {
	return p.buffer
}

// Count is the number of live elements.
func (p *IndirectPool[T]) Count() uint32 {
	return p.count
}

func (p *IndirectPool[T]) Capacity() uint32 {
	return p.capacity
}

func (p *IndirectPool[T]) Destroy(device vulkan.Device) {
	if p.buffer != nil {
		device.DestroyBuffer(p.buffer)
		p.buffer, p.items = nil, nil
	}
}

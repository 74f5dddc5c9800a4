// Package arena holds the fixed-capacity GPU buffers the scene writes into:
// free-list slot pools over persistently mapped storage buffers, monotonic
// pools of indirect draw commands and bump-allocated device-local vertex and
// index arenas.
package arena

import (
	"fmt"
	"unsafe"

	"github.com/spaghettifunk/vesta/engine/containers"
	"github.com/spaghettifunk/vesta/engine/core"
	"github.com/spaghettifunk/vesta/engine/renderer/vulkan"
)

// Allocation is one slot of a pool: its element offset and the mapped
// address of the element. Stores through Ptr are visible to the GPU.
type Allocation[T any] struct {
	Offset uint32
	Ptr    *T
}

// Valid reports whether the allocation points anywhere.
func (a Allocation[T]) Valid() bool {
	return a.Ptr != nil
}

/**
 * @brief A host-coherent storage buffer presented as an array of T with
 * free-list allocation. Capacity is fixed at construction.
 */
type SlotPool[T any] struct {
	buffer *vulkan.Buffer
	items  []T
	free   *containers.FreeList[uint32]
	live   []bool
}

func NewSlotPool[T any](device vulkan.Device, name string, capacity uint32) (*SlotPool[T], error) {
	if capacity == 0 {
		return nil, fmt.Errorf("pool %q needs a non-zero capacity: %w", name, core.ErrInvariantViolation)
	}
	var zero T
	buf, err := vulkan.NewStorageBuffer(device, name, uint64(capacity)*uint64(unsafe.Sizeof(zero)))
	if err != nil {
		return nil, err
	}
	return &SlotPool[T]{
		buffer: buf,
		items:  vulkan.Slice[T](buf, int(capacity)),
		free:   containers.NewFreeList(capacity),
		live:   make([]bool, capacity),
	}, nil
}

// Allocate pops the most recently freed slot and clears it.
func (p *SlotPool[T]) Allocate() (Allocation[T], error) {
	offset, err := p.free.Pop()
	if err != nil {
		core.LogError("%s is full (%d slots)", p.buffer.Name, p.free.Capacity())
		return Allocation[T]{}, fmt.Errorf("%s is full with %d slots: %w", p.buffer.Name, p.free.Capacity(), core.ErrCapacityExhausted)
	}
	var zero T
	p.items[offset] = zero
	p.live[offset] = true
	return Allocation[T]{Offset: offset, Ptr: &p.items[offset]}, nil
}

// Deallocate returns a slot. The allocation must come from this pool and be
// live.
func (p *SlotPool[T]) Deallocate(a Allocation[T]) error {
	if a.Offset >= p.free.Capacity() || a.Ptr != &p.items[a.Offset] {
		return fmt.Errorf("slot %d does not belong to %s: %w", a.Offset, p.buffer.Name, core.ErrStaleAllocation)
	}
	if !p.live[a.Offset] {
		return fmt.Errorf("slot %d of %s is already free: %w", a.Offset, p.buffer.Name, core.ErrStaleAllocation)
	}
	p.live[a.Offset] = false
	p.free.Push(a.Offset)
	return nil
}

// At returns the mapped element at offset.
func (p *SlotPool[T]) At(offset uint32) *T {
	return &p.items[offset]
}

func (p *SlotPool[T]) Buffer() *vulkan.Buffer {
	return p.buffer
}

func (p *SlotPool[T]) Capacity() uint32 {
	return p.free.Capacity()
}

// Used is the number of live slots.
func (p *SlotPool[T]) Used() uint32 {
	return p.free.Used()
}

func (p *SlotPool[T]) Destroy(device vulkan.Device) {
	if p.buffer != nil {
		device.DestroyBuffer(p.buffer)
		p.buffer, p.items = nil, nil
	}
}

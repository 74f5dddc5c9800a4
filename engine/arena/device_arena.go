package arena

import (
	"bytes"
	"fmt"
	"unsafe"

	"github.com/spaghettifunk/vesta/engine/core"
	"github.com/spaghettifunk/vesta/engine/renderer/vulkan"
)

// Range is a run of elements inside an arena.
type Range struct {
	Offset uint32
	Size   uint32
}

func (r Range) End() uint32 {
	return r.Offset + r.Size
}

// Frame returns the sub-range of frame when r holds frames equal copies.
// Frame indices wrap modulo frames, like the per-frame draw queues.
func (r Range) Frame(frame, frames uint32) Range {
	if frames <= 1 {
		return r
	}
	size := r.Size / frames
	return Range{Offset: r.Offset + (frame%frames)*size, Size: size}
}

/**
 * @brief A device-local buffer filled front to back. Data reaches the GPU
 * through a staging copy; nothing is ever freed.
 */
type DeviceArena[T any] struct {
	device   vulkan.Device
	buffer   *vulkan.Buffer
	count    uint32
	capacity uint32
}

type newBufferFunc func(device vulkan.Device, name string, size uint64) (*vulkan.Buffer, error)

func newDeviceArena[T any](device vulkan.Device, name string, capacity uint32, create newBufferFunc) (*DeviceArena[T], error) {
	if capacity == 0 {
		return nil, fmt.Errorf("arena %q needs a non-zero capacity: %w", name, core.ErrInvariantViolation)
	}
	var zero T
	buf, err := create(device, name, uint64(capacity)*uint64(unsafe.Sizeof(zero)))
	if err != nil {
		return nil, err
	}
	return &DeviceArena[T]{device: device, buffer: buf, capacity: capacity}, nil
}

// NewVertexArena creates an arena usable as a vertex buffer and as compute
// storage.
func NewVertexArena[T any](device vulkan.Device, name string, capacity uint32) (*DeviceArena[T], error) {
	return newDeviceArena[T](device, name, capacity, vulkan.NewVertexBuffer)
}

func NewIndexArena(device vulkan.Device, name string, capacity uint32) (*DeviceArena[uint32], error) {
	return newDeviceArena[uint32](device, name, capacity, vulkan.NewIndexBuffer)
}

// Ensure fails when n more elements would not fit.
func (a *DeviceArena[T]) Ensure(n uint32) error {
	if uint64(a.count)+uint64(n) > uint64(a.capacity) {
		core.LogError("%s: adding %d elements exceeds %d/%d", a.buffer.Name, n, a.count, a.capacity)
		return fmt.Errorf("exceeding max number of data in %s (%d + %d > %d): %w",
			a.buffer.Name, a.count, n, a.capacity, core.ErrCapacityExhausted)
	}
	return nil
}

// Add uploads frames consecutive copies of data and returns the range
// covering all of them.
func (a *DeviceArena[T]) Add(data []T, frames uint32) (Range, error) {
	if frames == 0 {
		frames = 1
	}
	n := uint32(len(data)) * frames
	if err := a.Ensure(n); err != nil {
		return Range{}, err
	}
	var zero T
	stride := uint64(unsafe.Sizeof(zero))
	payload := bytes.Repeat(vulkan.AsBytes(data), int(frames))
	if err := vulkan.UploadToDevice(a.device, a.buffer, uint64(a.count)*stride, payload); err != nil {
		return Range{}, err
	}
	r := Range{Offset: a.count, Size: n}
	a.count += n
	return r, nil
}

// Reserve claims n elements without writing them. Compute shaders fill
// reserved ranges.
func (a *DeviceArena[T]) Reserve(n uint32) (Range, error) {
	if err := a.Ensure(n); err != nil {
		return Range{}, err
	}
	r := Range{Offset: a.count, Size: n}
	a.count += n
	return r, nil
}

func (a *DeviceArena[T]) Buffer() *vulkan.Buffer {
	return a.buffer
}

func (a *DeviceArena[T]) Count() uint32 {
	return a.count
}

func (a *DeviceArena[T]) Capacity() uint32 {
	return a.capacity
}

func (a *DeviceArena[T]) Destroy() {
	if a != nil && a.buffer != nil {
		a.device.DestroyBuffer(a.buffer)
		a.buffer = nil
	}
}

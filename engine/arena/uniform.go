package arena

import (
	"unsafe"

	"github.com/spaghettifunk/vesta/engine/renderer/vulkan"
)

// HostUniform is a single mapped uniform struct.
type HostUniform[T any] struct {
	buffer *vulkan.Buffer
	value  *T
}

func NewHostUniform[T any](device vulkan.Device, name string) (*HostUniform[T], error) {
	var zero T
	buf, err := vulkan.NewUniformBuffer(device, name, uint64(unsafe.Sizeof(zero)))
	if err != nil {
		return nil, err
	}
	return &HostUniform[T]{buffer: buf, value: (*T)(buf.Mapped)}, nil
}

func (u *HostUniform[T]) Update(v T) {
	*u.value = v
}

func (u *HostUniform[T]) Value() T {
	return *u.value
}

func (u *HostUniform[T]) Buffer() *vulkan.Buffer {
	return u.buffer
}

func (u *HostUniform[T]) Destroy(device vulkan.Device) {
	if u.buffer != nil {
		device.DestroyBuffer(u.buffer)
		u.buffer, u.value = nil, nil
	}
}

package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vesta/engine/core"
)

// Bytes is a view of the mapped memory of a host-visible buffer.
func (b *Buffer) Bytes() []byte {
	if b.Mapped == nil {
		return nil
	}
	return unsafe.Slice((*byte)(b.Mapped), b.Size)
}

// Ptr returns the mapped address of byte offset.
func (b *Buffer) Ptr(offset uint64) unsafe.Pointer {
	return unsafe.Add(b.Mapped, offset)
}

// UpdateRaw copies data into the mapped memory at offset.
func (b *Buffer) UpdateRaw(offset uint64, data []byte) error {
	if b.Mapped == nil {
		return fmt.Errorf("buffer %q is not host visible: %w", b.Name, core.ErrInvariantViolation)
	}
	if offset+uint64(len(data)) > b.Size {
		return fmt.Errorf("write of %d bytes at %d overflows buffer %q of %d bytes: %w",
			len(data), offset, b.Name, b.Size, core.ErrCapacityExhausted)
	}
	copy(b.Bytes()[offset:], data)
	return nil
}

// Slice reinterprets the mapped memory of b as n elements of T.
func Slice[T any](b *Buffer, n int) []T {
	if b.Mapped == nil {
		return nil
	}
	return unsafe.Slice((*T)(b.Mapped), n)
}

// AsBytes reinterprets a slice of plain structs as bytes.
func AsBytes[T any](items []T) []byte {
	if len(items) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(&items[0])), len(items)*int(unsafe.Sizeof(zero)))
}

// ValueBytes reinterprets a single plain struct as bytes.
func ValueBytes[T any](v *T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), unsafe.Sizeof(*v))
}

func newHostCoherent(device Device, name string, size uint64, usage vk.BufferUsageFlagBits) (*Buffer, error) {
	buf, err := device.CreateBuffer(name, size, vk.BufferUsageFlags(usage), MemoryHostCoherent)
	if err != nil {
		return nil, err
	}
	if _, err := device.MapPersistent(buf); err != nil {
		device.DestroyBuffer(buf)
		return nil, err
	}
	return buf, nil
}

// NewUniformBuffer creates a persistently mapped uniform buffer.
func NewUniformBuffer(device Device, name string, size uint64) (*Buffer, error) {
	return newHostCoherent(device, name, size, vk.BufferUsageUniformBufferBit)
}

// NewStorageBuffer creates a persistently mapped storage buffer.
func NewStorageBuffer(device Device, name string, size uint64) (*Buffer, error) {
	return newHostCoherent(device, name, size, vk.BufferUsageStorageBufferBit)
}

// NewIndirectBuffer creates a persistently mapped buffer of indirect draw
// commands that shaders may also read as storage.
func NewIndirectBuffer(device Device, name string, size uint64) (*Buffer, error) {
	return newHostCoherent(device, name, size, vk.BufferUsageIndirectBufferBit|vk.BufferUsageStorageBufferBit)
}

// NewVertexBuffer creates a device-local vertex buffer that compute shaders
// can also write.
func NewVertexBuffer(device Device, name string, size uint64) (*Buffer, error) {
	usage := vk.BufferUsageVertexBufferBit | vk.BufferUsageStorageBufferBit | vk.BufferUsageTransferDstBit
	return device.CreateBuffer(name, size, vk.BufferUsageFlags(usage), MemoryDeviceLocal)
}

// NewIndexBuffer creates a device-local index buffer.
func NewIndexBuffer(device Device, name string, size uint64) (*Buffer, error) {
	usage := vk.BufferUsageIndexBufferBit | vk.BufferUsageStorageBufferBit | vk.BufferUsageTransferDstBit
	return device.CreateBuffer(name, size, vk.BufferUsageFlags(usage), MemoryDeviceLocal)
}

// NewStagingBuffer creates a mapped transfer source holding a copy of data.
func NewStagingBuffer(device Device, name string, data []byte) (*Buffer, error) {
	buf, err := device.CreateBuffer(name, uint64(len(data)), vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit), MemoryUpload)
	if err != nil {
		return nil, err
	}
	if _, err := device.MapPersistent(buf); err != nil {
		device.DestroyBuffer(buf)
		return nil, err
	}
	copy(buf.Bytes(), data)
	return buf, nil
}

// UploadToDevice copies data into dst at dstOffset through a staging buffer
// and blocks until the transfer completes.
func UploadToDevice(device Device, dst *Buffer, dstOffset uint64, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if dstOffset+uint64(len(data)) > dst.Size {
		return fmt.Errorf("upload of %d bytes at %d overflows buffer %q: %w",
			len(data), dstOffset, dst.Name, core.ErrCapacityExhausted)
	}
	staging, err := NewStagingBuffer(device, dst.Name+"-staging", data)
	if err != nil {
		return err
	}
	defer device.DestroyBuffer(staging)

	return device.ExecuteImmediately(func(cb CommandRecorder) error {
		cb.CopyBuffer(staging, dst, []vk.BufferCopy{{
			SrcOffset: 0,
			DstOffset: vk.DeviceSize(dstOffset),
			Size:      vk.DeviceSize(len(data)),
		}})
		return nil
	})
}

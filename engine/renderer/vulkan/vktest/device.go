// Package vktest provides in-memory fakes of the vulkan.Device and
// vulkan.CommandRecorder interfaces. Buffers are backed by Go memory so
// engine code that writes through mapped pointers can be checked without a
// GPU.
package vktest

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vesta/engine/core"
	"github.com/spaghettifunk/vesta/engine/renderer/vulkan"
)

var _ vulkan.Device = (*Device)(nil)

type Device struct {
	Buffers          []*vulkan.Buffer
	Images           []*vulkan.Image
	Samplers         []*vulkan.Sampler
	SetLayouts       []*vulkan.DescriptorSetLayout
	Pools            []*vulkan.DescriptorPool
	Sets             []*vulkan.DescriptorSet
	PipelineLayouts  []*vulkan.PipelineLayout
	Shaders          []*vulkan.ShaderModule
	GraphicsPipes    []vulkan.GraphicsPipelineDesc
	ComputePipes     []vulkan.ComputePipelineDesc
	Writes           []vulkan.DescriptorWrite
	DestroyedBuffers int
	DestroyedImages  int
	DestroyedPipes   int
	Immediate        int

	// Recorder receives every command recorded through ExecuteImmediately.
	Recorder *Recorder

	// FailCreateBuffer makes the next CreateBuffer call fail.
	FailCreateBuffer bool

	memory map[*vulkan.Buffer][]byte
}

func NewDevice() *Device {
	d := &Device{memory: make(map[*vulkan.Buffer][]byte)}
	d.Recorder = NewRecorder(d)
	return d
}

// Memory returns the backing bytes of buffer, mapped or not.
func (d *Device) Memory(buffer *vulkan.Buffer) []byte {
	return d.memory[buffer]
}

// BufferByName returns the first live buffer with the given name.
func (d *Device) BufferByName(name string) *vulkan.Buffer {
	for _, b := range d.Buffers {
		if b.Name == name {
			return b
		}
	}
	return nil
}

// WritesTo returns the descriptor writes recorded for binding of set.
func (d *Device) WritesTo(set *vulkan.DescriptorSet, binding uint32) []vulkan.DescriptorWrite {
	var out []vulkan.DescriptorWrite
	for _, w := range d.Writes {
		if w.Set == set && w.Binding == binding {
			out = append(out, w)
		}
	}
	return out
}

func (d *Device) CreateBuffer(name string, size uint64, usage vk.BufferUsageFlags, policy vulkan.MemoryPolicy) (*vulkan.Buffer, error) {
	if d.FailCreateBuffer {
		d.FailCreateBuffer = false
		return nil, fmt.Errorf("fake allocation of %q failed: %w", name, core.ErrVulkan)
	}
	if size == 0 {
		return nil, fmt.Errorf("buffer %q has zero size: %w", name, core.ErrInvariantViolation)
	}
	buf := &vulkan.Buffer{Name: name, Size: size, Usage: usage, Policy: policy}
	d.memory[buf] = make([]byte, size)
	d.Buffers = append(d.Buffers, buf)
	return buf, nil
}

func (d *Device) DestroyBuffer(buffer *vulkan.Buffer) {
	delete(d.memory, buffer)
	for i, b := range d.Buffers {
		if b == buffer {
			d.Buffers = append(d.Buffers[:i], d.Buffers[i+1:]...)
			break
		}
	}
	buffer.Mapped = nil
	d.DestroyedBuffers++
}

func (d *Device) MapPersistent(buffer *vulkan.Buffer) (unsafe.Pointer, error) {
	if !buffer.Policy.HostVisible() {
		return nil, fmt.Errorf("buffer %q is %s: %w", buffer.Name, buffer.Policy, core.ErrInvariantViolation)
	}
	mem, ok := d.memory[buffer]
	if !ok {
		return nil, fmt.Errorf("buffer %q does not belong to this device: %w", buffer.Name, core.ErrStaleAllocation)
	}
	buffer.Mapped = unsafe.Pointer(&mem[0])
	return buffer.Mapped, nil
}

func (d *Device) CreateImage(info vulkan.ImageInfo) (*vulkan.Image, error) {
	if info.Width == 0 || info.Height == 0 {
		return nil, fmt.Errorf("image %q has an empty extent: %w", info.Name, core.ErrInvariantViolation)
	}
	img := &vulkan.Image{Info: info}
	d.Images = append(d.Images, img)
	return img, nil
}

func (d *Device) DestroyImage(image *vulkan.Image) {
	d.DestroyedImages++
}

func (d *Device) CreateSampler(info vk.SamplerCreateInfo) (*vulkan.Sampler, error) {
	s := &vulkan.Sampler{Info: info}
	d.Samplers = append(d.Samplers, s)
	return s, nil
}

func (d *Device) DestroySampler(sampler *vulkan.Sampler) {}

func (d *Device) CreateDescriptorSetLayout(layout *vulkan.DescriptorSetLayout) error {
	d.SetLayouts = append(d.SetLayouts, layout)
	return nil
}

func (d *Device) DestroyDescriptorSetLayout(layout *vulkan.DescriptorSetLayout) {}

func (d *Device) CreateDescriptorPool(pool *vulkan.DescriptorPool) error {
	d.Pools = append(d.Pools, pool)
	return nil
}

func (d *Device) DestroyDescriptorPool(pool *vulkan.DescriptorPool) {}

func (d *Device) AllocateDescriptorSet(pool *vulkan.DescriptorPool, layout *vulkan.DescriptorSetLayout, variableCount uint32) (*vulkan.DescriptorSet, error) {
	set := &vulkan.DescriptorSet{Layout: layout, VariableCount: variableCount}
	d.Sets = append(d.Sets, set)
	return set, nil
}

// UpdateDescriptorSets keeps deep copies because updaters reuse their batch.
func (d *Device) UpdateDescriptorSets(writes []vulkan.DescriptorWrite) {
	for _, w := range writes {
		w.Buffers = append([]vulkan.DescriptorBufferInfo(nil), w.Buffers...)
		w.Images = append([]vulkan.DescriptorImageInfo(nil), w.Images...)
		w.AccelerationStructures = append([]uint64(nil), w.AccelerationStructures...)
		d.Writes = append(d.Writes, w)
	}
}

func (d *Device) CreatePipelineLayout(layout *vulkan.PipelineLayout) error {
	d.PipelineLayouts = append(d.PipelineLayouts, layout)
	return nil
}

func (d *Device) DestroyPipelineLayout(layout *vulkan.PipelineLayout) {}

func (d *Device) CreateShaderModule(code []uint32, stage vk.ShaderStageFlagBits) (*vulkan.ShaderModule, error) {
	if len(code) == 0 {
		return nil, fmt.Errorf("empty shader: %w", core.ErrExternalResource)
	}
	m := &vulkan.ShaderModule{Stage: stage, Entry: "main"}
	d.Shaders = append(d.Shaders, m)
	return m, nil
}

func (d *Device) DestroyShaderModule(module *vulkan.ShaderModule) {}

func (d *Device) CreateGraphicsPipeline(desc *vulkan.GraphicsPipelineDesc) (*vulkan.Pipeline, error) {
	d.GraphicsPipes = append(d.GraphicsPipes, *desc)
	return &vulkan.Pipeline{Name: desc.Name, BindPoint: vk.PipelineBindPointGraphics, Layout: desc.Layout}, nil
}

func (d *Device) CreateComputePipeline(desc *vulkan.ComputePipelineDesc) (*vulkan.Pipeline, error) {
	d.ComputePipes = append(d.ComputePipes, *desc)
	return &vulkan.Pipeline{Name: desc.Name, BindPoint: vk.PipelineBindPointCompute, Layout: desc.Layout}, nil
}

func (d *Device) DestroyPipeline(pipeline *vulkan.Pipeline) {
	d.DestroyedPipes++
}

func (d *Device) ExecuteImmediately(fn func(cb vulkan.CommandRecorder) error) error {
	d.Immediate++
	return fn(d.Recorder)
}

func (d *Device) WaitIdle() error {
	return nil
}

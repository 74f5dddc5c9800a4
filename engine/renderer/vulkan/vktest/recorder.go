package vktest

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vesta/engine/renderer/vulkan"
)

var _ vulkan.CommandRecorder = (*Recorder)(nil)

// Call is one recorded command. Args holds the command's parameters in
// declaration order.
type Call struct {
	Name string
	Args []any
}

type IndirectDraw struct {
	Buffer    *vulkan.Buffer
	Offset    uint64
	DrawCount uint32
	Stride    uint32
}

type Recorder struct {
	Calls         []Call
	Pipelines     []*vulkan.Pipeline
	IndirectDraws []IndirectDraw
	PushConstants [][]byte
	Dispatches    [][3]uint32
	Barriers      []vulkan.ImageBarrier
	Subpasses     int

	device *Device
}

func NewRecorder(device *Device) *Recorder {
	return &Recorder{device: device}
}

// Reset forgets everything recorded so far.
func (r *Recorder) Reset() {
	*r = Recorder{device: r.device}
}

// Names lists the recorded command names in order.
func (r *Recorder) Names() []string {
	names := make([]string, len(r.Calls))
	for i, c := range r.Calls {
		names[i] = c.Name
	}
	return names
}

// Count returns how often the named command was recorded.
func (r *Recorder) Count(name string) int {
	n := 0
	for _, c := range r.Calls {
		if c.Name == name {
			n++
		}
	}
	return n
}

func (r *Recorder) record(name string, args ...any) {
	r.Calls = append(r.Calls, Call{Name: name, Args: args})
}

func (r *Recorder) BindPipeline(pipeline *vulkan.Pipeline) {
	r.Pipelines = append(r.Pipelines, pipeline)
	r.record("BindPipeline", pipeline)
}

func (r *Recorder) BindDescriptorSets(bindPoint vk.PipelineBindPoint, layout *vulkan.PipelineLayout, firstSet uint32, sets []*vulkan.DescriptorSet) {
	r.record("BindDescriptorSets", bindPoint, layout, firstSet, append([]*vulkan.DescriptorSet(nil), sets...))
}

func (r *Recorder) PushConstants(layout *vulkan.PipelineLayout, stages vk.ShaderStageFlags, offset uint32, data []byte) {
	r.PushConstants = append(r.PushConstants, append([]byte(nil), data...))
	r.record("PushConstants", layout, stages, offset)
}

func (r *Recorder) BindVertexBuffers(first uint32, buffers []*vulkan.Buffer, offsets []uint64) {
	r.record("BindVertexBuffers", first, append([]*vulkan.Buffer(nil), buffers...), append([]uint64(nil), offsets...))
}

func (r *Recorder) BindIndexBuffer(buffer *vulkan.Buffer, offset uint64, indexType vk.IndexType) {
	r.record("BindIndexBuffer", buffer, offset, indexType)
}

func (r *Recorder) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	r.record("Draw", vertexCount, instanceCount, firstVertex, firstInstance)
}

func (r *Recorder) DrawIndexedIndirect(buffer *vulkan.Buffer, offset uint64, drawCount, stride uint32) {
	r.IndirectDraws = append(r.IndirectDraws, IndirectDraw{Buffer: buffer, Offset: offset, DrawCount: drawCount, Stride: stride})
	r.record("DrawIndexedIndirect", buffer, offset, drawCount, stride)
}

func (r *Recorder) Dispatch(x, y, z uint32) {
	r.Dispatches = append(r.Dispatches, [3]uint32{x, y, z})
	r.record("Dispatch", x, y, z)
}

func (r *Recorder) NextSubpass() {
	r.Subpasses++
	r.record("NextSubpass")
}

func (r *Recorder) SetViewport(x, y, width, height float32) {
	r.record("SetViewport", x, y, width, height)
}

func (r *Recorder) SetScissor(width, height uint32) {
	r.record("SetScissor", width, height)
}

func (r *Recorder) PipelineBarrier(srcStage, dstStage vk.PipelineStageFlags, barriers []vulkan.ImageBarrier) {
	r.Barriers = append(r.Barriers, barriers...)
	r.record("PipelineBarrier", srcStage, dstStage)
}

func (r *Recorder) MemoryBarrier(srcStage, dstStage vk.PipelineStageFlags, srcAccess, dstAccess vk.AccessFlags) {
	r.record("MemoryBarrier", srcStage, dstStage, srcAccess, dstAccess)
}

// CopyBuffer performs the copy on the backing memory right away.
func (r *Recorder) CopyBuffer(src, dst *vulkan.Buffer, regions []vk.BufferCopy) {
	from, to := r.device.Memory(src), r.device.Memory(dst)
	for _, region := range regions {
		s, d, n := uint64(region.SrcOffset), uint64(region.DstOffset), uint64(region.Size)
		copy(to[d:d+n], from[s:s+n])
	}
	r.record("CopyBuffer", src, dst, append([]vk.BufferCopy(nil), regions...))
}

func (r *Recorder) CopyBufferToImage(src *vulkan.Buffer, dst *vulkan.Image, regions []vk.BufferImageCopy) {
	r.record("CopyBufferToImage", src, dst, append([]vk.BufferImageCopy(nil), regions...))
}

package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vesta/engine/core"
)

// ColorWriteAll enables writes to every colour channel.
const ColorWriteAll = vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit |
	vk.ColorComponentBBit | vk.ColorComponentABit)

/**
 * @brief The fixed-function and shader state of a graphics pipeline. The
 * device turns it into a vk.GraphicsPipelineCreateInfo.
 */
type GraphicsPipelineDesc struct {
	Name       string
	Layout     *PipelineLayout
	RenderPass *RenderPass
	Subpass    uint32
	Stages     []*ShaderModule

	VertexBindings   []vk.VertexInputBindingDescription
	VertexAttributes []vk.VertexInputAttributeDescription

	Topology           vk.PrimitiveTopology
	PatchControlPoints uint32

	Viewport vk.Viewport
	Scissor  vk.Rect2D

	PolygonMode vk.PolygonMode
	CullMode    vk.CullModeFlags
	FrontFace   vk.FrontFace
	LineWidth   float32
	DepthBias   bool
	DepthClamp  bool

	Samples vk.SampleCountFlagBits

	DepthTest    bool
	DepthWrite   bool
	DepthCompare vk.CompareOp

	BlendAttachments []vk.PipelineColorBlendAttachmentState
	DynamicStates    []vk.DynamicState
}

// ComputePipelineDesc is a single compute shader bound to a layout.
type ComputePipelineDesc struct {
	Name   string
	Layout *PipelineLayout
	Shader *ShaderModule
}

// GraphicsPipelineBuilder assembles a GraphicsPipelineDesc with fluent setters.
type GraphicsPipelineBuilder struct {
	desc GraphicsPipelineDesc
}

// NewGraphicsPipelineBuilder starts from a filled, depth-tested triangle list
// covering a width x height viewport.
func NewGraphicsPipelineBuilder(width, height uint32) *GraphicsPipelineBuilder {
	return &GraphicsPipelineBuilder{desc: GraphicsPipelineDesc{
		Topology: vk.PrimitiveTopologyTriangleList,
		Viewport: vk.Viewport{
			Width:    float32(width),
			Height:   float32(height),
			MinDepth: 0,
			MaxDepth: 1,
		},
		Scissor:      vk.Rect2D{Extent: vk.Extent2D{Width: width, Height: height}},
		PolygonMode:  vk.PolygonModeFill,
		CullMode:     vk.CullModeFlags(vk.CullModeNone),
		FrontFace:    vk.FrontFaceCounterClockwise,
		LineWidth:    1,
		Samples:      vk.SampleCount1Bit,
		DepthTest:    true,
		DepthWrite:   true,
		DepthCompare: vk.CompareOpLessOrEqual,
	}}
}

func (b *GraphicsPipelineBuilder) Shader(module *ShaderModule) *GraphicsPipelineBuilder {
	b.desc.Stages = append(b.desc.Stages, module)
	return b
}

func (b *GraphicsPipelineBuilder) ClearShaders() *GraphicsPipelineBuilder {
	b.desc.Stages = nil
	return b
}

func (b *GraphicsPipelineBuilder) Subpass(subpass uint32) *GraphicsPipelineBuilder {
	b.desc.Subpass = subpass
	return b
}

func (b *GraphicsPipelineBuilder) VertexBinding(binding, stride uint32) *GraphicsPipelineBuilder {
	b.desc.VertexBindings = append(b.desc.VertexBindings, vk.VertexInputBindingDescription{
		Binding:   binding,
		Stride:    stride,
		InputRate: vk.VertexInputRateVertex,
	})
	return b
}

func (b *GraphicsPipelineBuilder) VertexAttribute(location, binding uint32, format vk.Format, offset uint32) *GraphicsPipelineBuilder {
	b.desc.VertexAttributes = append(b.desc.VertexAttributes, vk.VertexInputAttributeDescription{
		Location: location,
		Binding:  binding,
		Format:   format,
		Offset:   offset,
	})
	return b
}

func (b *GraphicsPipelineBuilder) ClearVertexInput() *GraphicsPipelineBuilder {
	b.desc.VertexBindings = nil
	b.desc.VertexAttributes = nil
	return b
}

func (b *GraphicsPipelineBuilder) Topology(topology vk.PrimitiveTopology) *GraphicsPipelineBuilder {
	b.desc.Topology = topology
	return b
}

// Patches switches to patch lists with the given control point count.
func (b *GraphicsPipelineBuilder) Patches(controlPoints uint32) *GraphicsPipelineBuilder {
	b.desc.Topology = vk.PrimitiveTopologyPatchList
	b.desc.PatchControlPoints = controlPoints
	return b
}

func (b *GraphicsPipelineBuilder) Viewport(width, height uint32) *GraphicsPipelineBuilder {
	b.desc.Viewport.Width = float32(width)
	b.desc.Viewport.Height = float32(height)
	b.desc.Scissor.Extent = vk.Extent2D{Width: width, Height: height}
	return b
}

func (b *GraphicsPipelineBuilder) PolygonMode(mode vk.PolygonMode) *GraphicsPipelineBuilder {
	b.desc.PolygonMode = mode
	return b
}

func (b *GraphicsPipelineBuilder) CullMode(mode vk.CullModeFlagBits) *GraphicsPipelineBuilder {
	b.desc.CullMode = vk.CullModeFlags(mode)
	return b
}

func (b *GraphicsPipelineBuilder) FrontFace(face vk.FrontFace) *GraphicsPipelineBuilder {
	b.desc.FrontFace = face
	return b
}

func (b *GraphicsPipelineBuilder) LineWidth(width float32) *GraphicsPipelineBuilder {
	b.desc.LineWidth = width
	return b
}

func (b *GraphicsPipelineBuilder) DepthBias(enable bool) *GraphicsPipelineBuilder {
	b.desc.DepthBias = enable
	return b
}

func (b *GraphicsPipelineBuilder) DepthClamp(enable bool) *GraphicsPipelineBuilder {
	b.desc.DepthClamp = enable
	return b
}

func (b *GraphicsPipelineBuilder) Samples(samples vk.SampleCountFlagBits) *GraphicsPipelineBuilder {
	b.desc.Samples = samples
	return b
}

func (b *GraphicsPipelineBuilder) DepthTest(test, write bool) *GraphicsPipelineBuilder {
	b.desc.DepthTest = test
	b.desc.DepthWrite = write
	return b
}

func (b *GraphicsPipelineBuilder) DepthCompare(op vk.CompareOp) *GraphicsPipelineBuilder {
	b.desc.DepthCompare = op
	return b
}

// OpaqueAttachments adds n colour attachments without blending.
func (b *GraphicsPipelineBuilder) OpaqueAttachments(n int) *GraphicsPipelineBuilder {
	for i := 0; i < n; i++ {
		b.desc.BlendAttachments = append(b.desc.BlendAttachments, vk.PipelineColorBlendAttachmentState{
			BlendEnable:    vk.False,
			ColorWriteMask: ColorWriteAll,
		})
	}
	return b
}

// AlphaBlendAttachment adds a colour attachment with src-alpha blending.
func (b *GraphicsPipelineBuilder) AlphaBlendAttachment() *GraphicsPipelineBuilder {
	b.desc.BlendAttachments = append(b.desc.BlendAttachments, vk.PipelineColorBlendAttachmentState{
		BlendEnable:         vk.True,
		SrcColorBlendFactor: vk.BlendFactorSrcAlpha,
		DstColorBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
		ColorBlendOp:        vk.BlendOpAdd,
		SrcAlphaBlendFactor: vk.BlendFactorOne,
		DstAlphaBlendFactor: vk.BlendFactorZero,
		AlphaBlendOp:        vk.BlendOpAdd,
		ColorWriteMask:      ColorWriteAll,
	})
	return b
}

func (b *GraphicsPipelineBuilder) ClearBlendAttachments() *GraphicsPipelineBuilder {
	b.desc.BlendAttachments = nil
	return b
}

func (b *GraphicsPipelineBuilder) DynamicState(states ...vk.DynamicState) *GraphicsPipelineBuilder {
	b.desc.DynamicStates = append(b.desc.DynamicStates, states...)
	return b
}

// Desc returns a copy of the accumulated description.
func (b *GraphicsPipelineBuilder) Desc() GraphicsPipelineDesc {
	return b.desc
}

// Build creates the pipeline. The builder stays usable, so variants such as
// wireframe pipelines are built by changing one setter and building again.
func (b *GraphicsPipelineBuilder) Build(device Device, name string, layout *PipelineLayout, pass *RenderPass) (*Pipeline, error) {
	if len(b.desc.Stages) == 0 {
		return nil, fmt.Errorf("graphics pipeline %q has no shader stages: %w", name, core.ErrInvariantViolation)
	}
	if pass != nil && b.desc.Subpass >= pass.Subpasses {
		return nil, fmt.Errorf("graphics pipeline %q targets subpass %d of %d: %w",
			name, b.desc.Subpass, pass.Subpasses, core.ErrInvariantViolation)
	}
	desc := b.desc
	desc.Name = name
	desc.Layout = layout
	desc.RenderPass = pass
	desc.Stages = append([]*ShaderModule(nil), b.desc.Stages...)
	desc.BlendAttachments = append([]vk.PipelineColorBlendAttachmentState(nil), b.desc.BlendAttachments...)
	desc.DynamicStates = append([]vk.DynamicState(nil), b.desc.DynamicStates...)
	pipeline, err := device.CreateGraphicsPipeline(&desc)
	if err != nil {
		return nil, err
	}
	core.LogDebug("Graphics pipeline '%s' created.", name)
	return pipeline, nil
}

// NewComputePipeline creates a compute pipeline from one shader.
func NewComputePipeline(device Device, name string, layout *PipelineLayout, shader *ShaderModule) (*Pipeline, error) {
	if shader == nil || shader.Stage != vk.ShaderStageComputeBit {
		return nil, fmt.Errorf("compute pipeline %q needs a compute shader: %w", name, core.ErrInvariantViolation)
	}
	pipeline, err := device.CreateComputePipeline(&ComputePipelineDesc{Name: name, Layout: layout, Shader: shader})
	if err != nil {
		return nil, err
	}
	core.LogDebug("Compute pipeline '%s' created.", name)
	return pipeline, nil
}

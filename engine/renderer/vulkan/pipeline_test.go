package vulkan_test

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vesta/engine/core"
	"github.com/spaghettifunk/vesta/engine/renderer/vulkan"
	"github.com/spaghettifunk/vesta/engine/renderer/vulkan/vktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushConstantOffsetsIncrease(t *testing.T) {
	b := vulkan.NewPipelineLayoutBuilder()
	assert.Equal(t, uint32(0), b.PushConstantRange(vk.ShaderStageFlags(vk.ShaderStageVertexBit), 16))
	assert.Equal(t, uint32(16), b.PushConstantRange(vk.ShaderStageFlags(vk.ShaderStageFragmentBit), 64))
	assert.Equal(t, uint32(80), b.PushConstantRange(vk.ShaderStageFlags(vk.ShaderStageComputeBit), 4))

	layout, err := b.Build(vktest.NewDevice())
	require.NoError(t, err)
	require.Len(t, layout.PushConstants, 3)
	assert.Equal(t, uint32(64), layout.PushConstants[1].Size)
}

func TestPushConstantLimit(t *testing.T) {
	b := vulkan.NewPipelineLayoutBuilder()
	b.PushConstantRange(allStages, 100)
	b.PushConstantRange(allStages, 100)
	_, err := b.Build(vktest.NewDevice())
	assert.ErrorIs(t, err, core.ErrCapacityExhausted)
}

func TestPipelineLayoutSetsMustBeContiguous(t *testing.T) {
	set := &vulkan.DescriptorSetLayout{VariableBinding: -1}
	b := vulkan.NewPipelineLayoutBuilder().DescriptorSetLayout(2, set)
	_, err := b.Build(vktest.NewDevice())
	require.ErrorIs(t, err, core.ErrInvariantViolation)

	b.DescriptorSetLayout(0, set).DescriptorSetLayout(1, set)
	layout, err := b.Build(vktest.NewDevice())
	require.NoError(t, err)
	assert.Len(t, layout.SetLayouts, 3)
	assert.Equal(t, uint32(3), vulkan.NewPipelineLayoutBuilder().
		DescriptorSetLayout(0, set).
		DescriptorSetLayout(2, set).
		NextSet(set))
}

func TestGraphicsPipelineBuilderVariants(t *testing.T) {
	device := vktest.NewDevice()
	vert, err := device.CreateShaderModule([]uint32{0x07230203}, vk.ShaderStageVertexBit)
	require.NoError(t, err)
	pass := &vulkan.RenderPass{Subpasses: 3}

	b := vulkan.NewGraphicsPipelineBuilder(800, 600).Shader(vert).OpaqueAttachments(5)
	_, err = b.Build(device, "gbuffer", nil, pass)
	require.NoError(t, err)
	_, err = b.PolygonMode(vk.PolygonModeLine).Build(device, "gbuffer-wireframe", nil, pass)
	require.NoError(t, err)

	require.Len(t, device.GraphicsPipes, 2)
	assert.Equal(t, vk.PolygonModeFill, device.GraphicsPipes[0].PolygonMode)
	assert.Equal(t, vk.PolygonModeLine, device.GraphicsPipes[1].PolygonMode)
	assert.Len(t, device.GraphicsPipes[1].BlendAttachments, 5)

	_, err = b.Subpass(3).Build(device, "out-of-range", nil, pass)
	assert.ErrorIs(t, err, core.ErrInvariantViolation)

	_, err = vulkan.NewGraphicsPipelineBuilder(1, 1).Build(device, "no-shaders", nil, pass)
	assert.ErrorIs(t, err, core.ErrInvariantViolation)
}

func TestComputePipelineNeedsComputeShader(t *testing.T) {
	device := vktest.NewDevice()
	frag, err := device.CreateShaderModule([]uint32{1}, vk.ShaderStageFragmentBit)
	require.NoError(t, err)
	_, err = vulkan.NewComputePipeline(device, "bad", nil, frag)
	require.ErrorIs(t, err, core.ErrInvariantViolation)

	comp, err := device.CreateShaderModule([]uint32{1}, vk.ShaderStageComputeBit)
	require.NoError(t, err)
	p, err := vulkan.NewComputePipeline(device, "skin", nil, comp)
	require.NoError(t, err)
	assert.Equal(t, vk.PipelineBindPointCompute, p.BindPoint)
}

func TestShaderHelpers(t *testing.T) {
	_, err := vulkan.SpirvWords([]byte{1, 2, 3})
	assert.ErrorIs(t, err, core.ErrExternalResource)
	_, err = vulkan.SpirvWords([]byte{0, 0, 0, 0})
	assert.ErrorIs(t, err, core.ErrExternalResource)
	words, err := vulkan.SpirvWords([]byte{0x03, 0x02, 0x23, 0x07, 1, 0, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, []uint32{0x07230203, 1}, words)

	stage, err := vulkan.StageFromFileName("shaders/gbuffer.frag.spv")
	require.NoError(t, err)
	assert.Equal(t, vk.ShaderStageFragmentBit, stage)
	_, err = vulkan.StageFromFileName("shaders/readme.txt")
	assert.ErrorIs(t, err, core.ErrNotSupported)
}

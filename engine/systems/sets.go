package systems

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vesta/engine/renderer/vulkan"
)

const (
	stageVertex   = vk.ShaderStageFlags(vk.ShaderStageVertexBit)
	stageFragment = vk.ShaderStageFlags(vk.ShaderStageFragmentBit)
	stageTessCtl  = vk.ShaderStageFlags(vk.ShaderStageTessellationControlBit)
	stageTessEval = vk.ShaderStageFlags(vk.ShaderStageTessellationEvaluationBit)
	stageCompute  = vk.ShaderStageFlags(vk.ShaderStageComputeBit)
)

// Pipeline layout set indices of the scene pipelines.
const (
	SetBasic uint32 = iota
	SetDeferred
	SetIBL
	SetSky
)

// BasicSet is bound by every scene pipeline: the camera, the entity pools
// and the bindless texture array.
type BasicSet struct {
	vulkan.DescriptorSetDef

	Camera        vulkan.UniformBinding
	Primitives    vulkan.BufferBinding
	MeshInstances vulkan.BufferBinding
	Transforms    vulkan.BufferBinding
	Materials     vulkan.BufferBinding
	Lighting      vulkan.UniformBinding
	Lights        vulkan.BufferBinding
	// Textures has a variable count and stays the last binding.
	Textures vulkan.SamplerBinding
}

func NewBasicSet(maxTextures uint32) *BasicSet {
	s := &BasicSet{}
	s.Camera = s.Uniform(stageVertex | stageFragment | stageTessCtl | stageTessEval)
	s.Primitives = s.Buffer(stageVertex | stageTessCtl)
	s.MeshInstances = s.Buffer(stageVertex | stageTessCtl)
	s.Transforms = s.Buffer(stageVertex | stageTessCtl)
	s.Materials = s.Buffer(stageVertex | stageFragment | stageTessCtl)
	s.Lighting = s.Uniform(stageFragment)
	s.Lights = s.Buffer(stageFragment)
	s.Textures = s.Samplers(stageVertex|stageFragment|stageTessCtl|stageTessEval, maxTextures, vulkan.BindlessFlags)
	return s
}

// DeferredSet reads the G-buffer targets as input attachments.
type DeferredSet struct {
	vulkan.DescriptorSetDef

	Position vulkan.InputBinding
	Normal   vulkan.InputBinding
	Albedo   vulkan.InputBinding
	PBR      vulkan.InputBinding
	Emissive vulkan.InputBinding
	Depth    vulkan.InputBinding
}

func NewDeferredSet() *DeferredSet {
	s := &DeferredSet{}
	s.Position = s.Input(stageFragment)
	s.Normal = s.Input(stageFragment)
	s.Albedo = s.Input(stageFragment)
	s.PBR = s.Input(stageFragment)
	s.Emissive = s.Input(stageFragment)
	s.Depth = s.Input(stageFragment)
	return s
}

// Bind points every input at the targets of gbuffer.
func (s *DeferredSet) Bind(gbuffer *vulkan.GBuffer) {
	s.Position.Set(gbuffer.Position)
	s.Normal.Set(gbuffer.Normal)
	s.Albedo.Set(gbuffer.Albedo)
	s.PBR.Set(gbuffer.PBR)
	s.Emissive.Set(gbuffer.Emissive)
	s.Depth.Set(gbuffer.Depth)
}

type IBLSet struct {
	vulkan.DescriptorSetDef

	Irradiance  vulkan.SamplerBinding
	Prefiltered vulkan.SamplerBinding
	BRDFLUT     vulkan.SamplerBinding
}

func NewIBLSet() *IBLSet {
	s := &IBLSet{}
	s.Irradiance = s.Sampler(stageFragment)
	s.Prefiltered = s.Sampler(stageFragment)
	s.BRDFLUT = s.Sampler(stageFragment)
	return s
}

// SkySet holds the precomputed atmosphere textures and their parameters.
type SkySet struct {
	vulkan.DescriptorSetDef

	Atmosphere    vulkan.UniformBinding
	Sun           vulkan.UniformBinding
	Transmittance vulkan.SamplerBinding
	Scattering    vulkan.SamplerBinding
	Irradiance    vulkan.SamplerBinding
}

func NewSkySet() *SkySet {
	s := &SkySet{}
	s.Atmosphere = s.Uniform(stageFragment)
	s.Sun = s.Uniform(stageFragment)
	s.Transmittance = s.Sampler(stageFragment)
	s.Scattering = s.Sampler(stageFragment)
	s.Irradiance = s.Sampler(stageFragment)
	return s
}

// ComputeMeshSet exposes the shared vertex arenas to compute shaders.
type ComputeMeshSet struct {
	vulkan.DescriptorSetDef

	Positions vulkan.BufferBinding
	Normals   vulkan.BufferBinding
}

func NewComputeMeshSet() *ComputeMeshSet {
	s := &ComputeMeshSet{}
	s.Positions = s.Buffer(stageCompute)
	s.Normals = s.Buffer(stageCompute)
	return s
}

// ComputeMeshConstant is pushed before each compute-mesh dispatch. Offsets
// and counts are in vertices.
type ComputeMeshConstant struct {
	PositionOffset uint32
	NormalOffset   uint32
	VertexCount    uint32
	Time           float32
}

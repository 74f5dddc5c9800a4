package systems

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vesta/engine/core"
	"github.com/spaghettifunk/vesta/engine/renderer/vulkan"
)

// ShaderSource hands out SPIR-V bytecode by name, e.g. "basic/gbuffer.vert.spv".
type ShaderSource interface {
	Shader(name string) ([]byte, error)
}

// ShaderMap is an in-memory ShaderSource.
type ShaderMap map[string][]byte

func (m ShaderMap) Shader(name string) ([]byte, error) {
	code, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("shader %s not found: %w", name, core.ErrExternalResource)
	}
	return code, nil
}

// Shader files used by the scene pipelines.
const (
	shaderGBufferVert     = "basic/gbuffer.vert.spv"
	shaderGBufferFrag     = "basic/gbuffer.frag.spv"
	shaderLineVert        = "basic/line.vert.spv"
	shaderLineFrag        = "basic/line.frag.spv"
	shaderTerrainVert     = "terrain/terrain.vert.spv"
	shaderTerrainTesc     = "terrain/terrain.tesc.spv"
	shaderTerrainTese     = "terrain/terrain.tese.spv"
	shaderTerrainFrag     = "terrain/terrain.frag.spv"
	shaderDeferredVert    = "basic/deferred.vert.spv"
	shaderDeferredFrag    = "basic/deferred.frag.spv"
	shaderDeferredIBLFrag = "basic/deferred_ibl.frag.spv"
	shaderDeferredSkyFrag = "basic/deferred_sky.frag.spv"
	shaderTransFrag       = "basic/translucent.frag.spv"
	shaderTransLineFrag   = "basic/translucent_line.frag.spv"
)

// SceneShaders lists every shader BuildScenePipelines loads.
var SceneShaders = []string{
	shaderGBufferVert, shaderGBufferFrag, shaderLineVert, shaderLineFrag,
	shaderTerrainVert, shaderTerrainTesc, shaderTerrainTese, shaderTerrainFrag,
	shaderDeferredVert, shaderDeferredFrag, shaderDeferredIBLFrag, shaderDeferredSkyFrag,
	shaderTransFrag, shaderTransLineFrag,
}

/**
 * @brief The graphics pipelines of the three scene subpasses. All of them
 * share the scene pipeline layout.
 */
type ScenePipelines struct {
	OpaqueTri            *vulkan.Pipeline
	OpaqueTriWireframe   *vulkan.Pipeline
	TerrainTess          *vulkan.Pipeline
	TerrainTessWireframe *vulkan.Pipeline
	OpaqueLine           *vulkan.Pipeline
	Deferred             *vulkan.Pipeline
	DeferredIBL          *vulkan.Pipeline
	DeferredSky          *vulkan.Pipeline
	TransTri             *vulkan.Pipeline
	TransLine            *vulkan.Pipeline
}

func (p *ScenePipelines) all() []**vulkan.Pipeline {
	return []**vulkan.Pipeline{
		&p.OpaqueTri, &p.OpaqueTriWireframe, &p.TerrainTess, &p.TerrainTessWireframe, &p.OpaqueLine,
		&p.Deferred, &p.DeferredIBL, &p.DeferredSky, &p.TransTri, &p.TransLine,
	}
}

func (p *ScenePipelines) Destroy(device vulkan.Device) {
	for _, pipe := range p.all() {
		if *pipe != nil {
			device.DestroyPipeline(*pipe)
			*pipe = nil
		}
	}
}

type shaderCache struct {
	device  vulkan.Device
	source  ShaderSource
	modules map[string]*vulkan.ShaderModule
}

func (c *shaderCache) get(name string) (*vulkan.ShaderModule, error) {
	if m, ok := c.modules[name]; ok {
		return m, nil
	}
	code, err := c.source.Shader(name)
	if err != nil {
		return nil, err
	}
	stage, err := vulkan.StageFromFileName(name)
	if err != nil {
		return nil, err
	}
	m, err := vulkan.NewShaderModule(c.device, code, stage)
	if err != nil {
		return nil, fmt.Errorf("shader %s: %w", name, err)
	}
	c.modules[name] = m
	return m, nil
}

func (c *shaderCache) destroy() {
	for _, m := range c.modules {
		c.device.DestroyShaderModule(m)
	}
}

// sceneVertexInput matches the bound vertex arenas: 0 position, 1 normal,
// 2 uv.
func sceneVertexInput(b *vulkan.GraphicsPipelineBuilder) *vulkan.GraphicsPipelineBuilder {
	return b.ClearVertexInput().
		VertexBinding(0, 12).VertexAttribute(0, 0, vk.FormatR32g32b32Sfloat, 0).
		VertexBinding(1, 12).VertexAttribute(1, 1, vk.FormatR32g32b32Sfloat, 0).
		VertexBinding(2, 8).VertexAttribute(2, 2, vk.FormatR32g32Sfloat, 0)
}

// BuildScenePipelines compiles every scene pipeline against layout and the
// deferred render pass. Shader modules are released once the pipelines
// exist.
func BuildScenePipelines(device vulkan.Device, layout *vulkan.PipelineLayout, pass *vulkan.RenderPass, width, height uint32, source ShaderSource) (*ScenePipelines, error) {
	shaders := &shaderCache{device: device, source: source, modules: make(map[string]*vulkan.ShaderModule)}
	defer shaders.destroy()

	p := &ScenePipelines{}
	type variant struct {
		dst     **vulkan.Pipeline
		name    string
		shaders []string
		setup   func(b *vulkan.GraphicsPipelineBuilder)
	}
	gbuffer := func(b *vulkan.GraphicsPipelineBuilder) {
		sceneVertexInput(b).Subpass(vulkan.SubpassGBuffer).OpaqueAttachments(vulkan.GBufferColorTargets)
	}
	fullscreen := func(b *vulkan.GraphicsPipelineBuilder) {
		b.ClearVertexInput().Subpass(vulkan.SubpassDeferred).DepthTest(false, false).OpaqueAttachments(1)
	}
	translucent := func(b *vulkan.GraphicsPipelineBuilder) {
		sceneVertexInput(b).Subpass(vulkan.SubpassTranslucent).DepthTest(true, false).AlphaBlendAttachment()
	}
	lines := func(b *vulkan.GraphicsPipelineBuilder) { b.Topology(vk.PrimitiveTopologyLineList) }
	wireframe := func(b *vulkan.GraphicsPipelineBuilder) { b.PolygonMode(vk.PolygonModeLine) }
	patches := func(b *vulkan.GraphicsPipelineBuilder) { b.Patches(4) }
	with := func(fns ...func(*vulkan.GraphicsPipelineBuilder)) func(*vulkan.GraphicsPipelineBuilder) {
		return func(b *vulkan.GraphicsPipelineBuilder) {
			for _, fn := range fns {
				fn(b)
			}
		}
	}
	terrain := []string{shaderTerrainVert, shaderTerrainTesc, shaderTerrainTese, shaderTerrainFrag}

	variants := []variant{
		{&p.OpaqueTri, "opaque-triangles", []string{shaderGBufferVert, shaderGBufferFrag}, gbuffer},
		{&p.OpaqueTriWireframe, "opaque-triangles-wireframe", []string{shaderGBufferVert, shaderGBufferFrag}, with(gbuffer, wireframe)},
		{&p.TerrainTess, "terrain", terrain, with(gbuffer, patches)},
		{&p.TerrainTessWireframe, "terrain-wireframe", terrain, with(gbuffer, patches, wireframe)},
		{&p.OpaqueLine, "opaque-lines", []string{shaderLineVert, shaderLineFrag}, with(gbuffer, lines)},
		{&p.Deferred, "deferred", []string{shaderDeferredVert, shaderDeferredFrag}, fullscreen},
		{&p.DeferredIBL, "deferred-ibl", []string{shaderDeferredVert, shaderDeferredIBLFrag}, fullscreen},
		{&p.DeferredSky, "deferred-sky", []string{shaderDeferredVert, shaderDeferredSkyFrag}, fullscreen},
		{&p.TransTri, "translucent-triangles", []string{shaderGBufferVert, shaderTransFrag}, translucent},
		{&p.TransLine, "translucent-lines", []string{shaderLineVert, shaderTransLineFrag}, with(translucent, lines)},
	}
	for _, v := range variants {
		b := vulkan.NewGraphicsPipelineBuilder(width, height).
			DynamicState(vk.DynamicStateViewport, vk.DynamicStateScissor)
		for _, name := range v.shaders {
			m, err := shaders.get(name)
			if err != nil {
				p.Destroy(device)
				return nil, err
			}
			b.Shader(m)
		}
		v.setup(b)
		pipe, err := b.Build(device, v.name, layout, pass)
		if err != nil {
			p.Destroy(device)
			return nil, err
		}
		*v.dst = pipe
	}
	return p, nil
}

package systems

import (
	"fmt"
	"strings"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vesta/engine/arena"
	"github.com/spaghettifunk/vesta/engine/core"
	"github.com/spaghettifunk/vesta/engine/math"
	"github.com/spaghettifunk/vesta/engine/renderer/components"
	"github.com/spaghettifunk/vesta/engine/renderer/vulkan"
	"github.com/spaghettifunk/vesta/engine/scene"
	"golang.org/x/exp/slices"
)

// IBLMaps are the precomputed image-based lighting inputs.
type IBLMaps struct {
	Irradiance  *vulkan.Texture
	Prefiltered *vulkan.Texture
	BRDFLUT     *vulkan.Texture
}

/**
 * @brief Owns the shared vertex and index arenas, the scene graph with its
 * GPU pools, the camera and lighting uniforms, the bindless texture array
 * and the scene descriptor sets. Entities are only created through its
 * factories; UpdateScene pushes pending changes and DrawScene records the
 * three scene subpasses.
 */
type SceneManager struct {
	device vulkan.Device
	config ModelConfig
	frames uint32
	pass   *vulkan.RenderPass
	width  uint32
	height uint32

	positions *arena.DeviceArena[math.Vec3]
	normals   *arena.DeviceArena[math.Vec3]
	uvs       *arena.DeviceArena[math.Vec2]
	joints0   *arena.DeviceArena[math.Vec4]
	weights0  *arena.DeviceArena[math.Vec4]
	indices   *arena.DeviceArena[uint32]

	buffers *scene.Buffers
	graph   *scene.Graph

	camera      *components.PerspectiveCamera
	cameraUBO   *arena.HostUniform[components.CameraUBO]
	lighting    scene.Lighting
	lightingUBO *arena.HostUniform[scene.LightingUBO]

	basicSet    *BasicSet
	deferredSet *DeferredSet
	iblSet      *IBLSet
	skySet      *SkySet
	computeSet  *ComputeMeshSet
	pool        *vulkan.DescriptorPool
	basic       *vulkan.DescriptorSet
	deferred    *vulkan.DescriptorSet
	ibl         *vulkan.DescriptorSet
	sky         *vulkan.DescriptorSet
	compute     *vulkan.DescriptorSet

	layout        *vulkan.PipelineLayout
	computeLayout *vulkan.PipelineLayout
	pipelines     *ScenePipelines

	defaultSampler *vulkan.Sampler
	mipSamplers    map[uint32]*vulkan.Sampler
	textures       textureArray
	cubeTextures   []*vulkan.Texture

	computeMeshes computeMeshState
	modelLoader   ModelLoader
	jobs          *JobSystem

	useEnvironmentMap bool
	useSky            bool
	wireframe         bool
}

// NewSceneManager creates every pool sized by cfg and binds the scene
// descriptor sets. gbuffer is the current set of deferred targets.
func NewSceneManager(device vulkan.Device, pass *vulkan.RenderPass, gbuffer *vulkan.GBuffer, width, height, frames uint32, cfg ModelConfig) (*SceneManager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if frames == 0 {
		return nil, fmt.Errorf("scene manager needs at least one frame in flight: %w", core.ErrInvariantViolation)
	}
	sm := &SceneManager{
		device:      device,
		config:      cfg,
		frames:      frames,
		pass:        pass,
		width:       width,
		height:      height,
		mipSamplers: make(map[uint32]*vulkan.Sampler),
		modelLoader: &OBJModelLoader{},
	}
	if err := sm.init(gbuffer); err != nil {
		sm.Destroy()
		return nil, err
	}
	core.LogInfo("Scene manager created (%d frames in flight).", frames)
	return sm, nil
}

func (sm *SceneManager) init(gbuffer *vulkan.GBuffer) error {
	var err error
	cfg := sm.config
	vertices := cfg.MaxNumVertex + cfg.MaxNumDynamicVertex*sm.frames
	if sm.positions, err = arena.NewVertexArena[math.Vec3](sm.device, "positions", vertices); err != nil {
		return err
	}
	if sm.normals, err = arena.NewVertexArena[math.Vec3](sm.device, "normals", vertices); err != nil {
		return err
	}
	if sm.uvs, err = arena.NewVertexArena[math.Vec2](sm.device, "uvs", vertices); err != nil {
		return err
	}
	if sm.joints0, err = arena.NewVertexArena[math.Vec4](sm.device, "joints0", vertices); err != nil {
		return err
	}
	if sm.weights0, err = arena.NewVertexArena[math.Vec4](sm.device, "weights0", vertices); err != nil {
		return err
	}
	if sm.indices, err = arena.NewIndexArena(sm.device, "indices", cfg.MaxNumIndex+cfg.MaxNumDynamicIndex*sm.frames); err != nil {
		return err
	}
	if sm.buffers, err = scene.NewBuffers(sm.device, cfg.Capacities(sm.frames)); err != nil {
		return err
	}
	sm.graph = scene.NewGraph(sm.buffers)

	sm.camera = components.NewPerspectiveCamera(math.NewVec3(10, 10, 10), math.NewVec3Zero())
	sm.camera.ChangeDimension(sm.width, sm.height)
	if sm.cameraUBO, err = arena.NewHostUniform[components.CameraUBO](sm.device, "camera"); err != nil {
		return err
	}
	sm.lighting = scene.NewLighting(cfg.MaxNumLights)
	if sm.lightingUBO, err = arena.NewHostUniform[scene.LightingUBO](sm.device, "lighting"); err != nil {
		return err
	}

	if err := sm.initDescriptors(gbuffer); err != nil {
		return err
	}

	// Material 0 is what meshes without a material of their own use.
	if _, err := sm.NewMaterial(scene.MaterialBRDF); err != nil {
		return err
	}
	return nil
}

func (sm *SceneManager) initDescriptors(gbuffer *vulkan.GBuffer) error {
	var err error
	sm.basicSet = NewBasicSet(sm.config.MaxNumTexture)
	sm.deferredSet = NewDeferredSet()
	sm.iblSet = NewIBLSet()
	sm.skySet = NewSkySet()
	sm.computeSet = NewComputeMeshSet()
	for _, def := range sm.setDefs() {
		if err := def.Init(sm.device); err != nil {
			return err
		}
	}

	sm.pool, err = vulkan.NewDescriptorPoolBuilder().
		SetLayout(sm.basicSet.Layout, 1).
		SetLayout(sm.deferredSet.Layout, 1).
		SetLayout(sm.iblSet.Layout, 1).
		SetLayout(sm.computeSet.Layout, 1).
		Build(sm.device)
	if err != nil {
		return err
	}
	if sm.basic, err = sm.basicSet.CreateSet(sm.pool); err != nil {
		return err
	}
	if sm.deferred, err = sm.deferredSet.CreateSet(sm.pool); err != nil {
		return err
	}
	if sm.ibl, err = sm.iblSet.CreateSet(sm.pool); err != nil {
		return err
	}
	if sm.compute, err = sm.computeSet.CreateSet(sm.pool); err != nil {
		return err
	}

	sm.layout, err = vulkan.NewPipelineLayoutBuilder().
		DescriptorSetLayout(SetBasic, sm.basicSet.Layout).
		DescriptorSetLayout(SetDeferred, sm.deferredSet.Layout).
		DescriptorSetLayout(SetIBL, sm.iblSet.Layout).
		DescriptorSetLayout(SetSky, sm.skySet.Layout).
		Build(sm.device)
	if err != nil {
		return err
	}
	computeLayout := vulkan.NewPipelineLayoutBuilder().DescriptorSetLayout(0, sm.computeSet.Layout)
	computeLayout.PushConstantRange(stageCompute, uint32(unsafe.Sizeof(ComputeMeshConstant{})))
	if sm.computeLayout, err = computeLayout.Build(sm.device); err != nil {
		return err
	}

	if sm.defaultSampler, err = vulkan.NewSamplerBuilder().Build(sm.device); err != nil {
		return err
	}
	if err := sm.textures.init(sm.device, sm.defaultSampler, sm.config.MaxNumTexture); err != nil {
		return err
	}

	sm.basicSet.Camera.Set(sm.cameraUBO.Buffer())
	sm.basicSet.Primitives.Set(sm.buffers.Primitives.Buffer())
	sm.basicSet.MeshInstances.Set(sm.buffers.MeshInstances.Buffer())
	sm.basicSet.Transforms.Set(sm.buffers.Transforms.Buffer())
	sm.basicSet.Materials.Set(sm.buffers.Materials.Buffer())
	sm.basicSet.Textures.SetArray(0, sm.textures.infos)
	sm.basicSet.Lighting.Set(sm.lightingUBO.Buffer())
	sm.basicSet.Lights.Set(sm.buffers.Lights.Buffer())
	if err := sm.basicSet.Update(sm.basic); err != nil {
		return err
	}

	sm.deferredSet.Bind(gbuffer)
	if err := sm.deferredSet.Update(sm.deferred); err != nil {
		return err
	}

	sm.computeSet.Positions.Set(sm.positions.Buffer())
	sm.computeSet.Normals.Set(sm.normals.Buffer())
	return sm.computeSet.Update(sm.compute)
}

func (sm *SceneManager) setDefs() []*vulkan.DescriptorSetDef {
	var defs []*vulkan.DescriptorSetDef
	if sm.basicSet != nil {
		defs = append(defs, &sm.basicSet.DescriptorSetDef)
	}
	if sm.deferredSet != nil {
		defs = append(defs, &sm.deferredSet.DescriptorSetDef)
	}
	if sm.iblSet != nil {
		defs = append(defs, &sm.iblSet.DescriptorSetDef)
	}
	if sm.skySet != nil {
		defs = append(defs, &sm.skySet.DescriptorSetDef)
	}
	if sm.computeSet != nil {
		defs = append(defs, &sm.computeSet.DescriptorSetDef)
	}
	return defs
}

// BuildPipelines compiles the scene pipelines. DrawScene fails until it
// has been called once.
func (sm *SceneManager) BuildPipelines(source ShaderSource) error {
	pipelines, err := BuildScenePipelines(sm.device, sm.layout, sm.pass, sm.width, sm.height, source)
	if err != nil {
		return err
	}
	if sm.pipelines != nil {
		sm.pipelines.Destroy(sm.device)
	}
	sm.pipelines = pipelines
	return nil
}

func (sm *SceneManager) Device() vulkan.Device                    { return sm.device }
func (sm *SceneManager) Config() ModelConfig                      { return sm.config }
func (sm *SceneManager) Frames() uint32                           { return sm.frames }
func (sm *SceneManager) RenderPass() *vulkan.RenderPass           { return sm.pass }
func (sm *SceneManager) Graph() *scene.Graph                      { return sm.graph }
func (sm *SceneManager) Buffers() *scene.Buffers                  { return sm.buffers }
func (sm *SceneManager) Camera() *components.PerspectiveCamera    { return sm.camera }
func (sm *SceneManager) Lighting() *scene.Lighting                { return &sm.lighting }
func (sm *SceneManager) PipelineLayout() *vulkan.PipelineLayout   { return sm.layout }
func (sm *SceneManager) Pipelines() *ScenePipelines               { return sm.pipelines }
func (sm *SceneManager) BasicSet() *BasicSet                      { return sm.basicSet }
func (sm *SceneManager) BasicDescriptor() *vulkan.DescriptorSet   { return sm.basic }
func (sm *SceneManager) DeferredSet() *DeferredSet                { return sm.deferredSet }
func (sm *SceneManager) SkySet() *SkySet                          { return sm.skySet }
func (sm *SceneManager) IBLSet() *IBLSet                          { return sm.iblSet }
func (sm *SceneManager) DefaultSampler() *vulkan.Sampler          { return sm.defaultSampler }
func (sm *SceneManager) Positions() *arena.DeviceArena[math.Vec3] { return sm.positions }
func (sm *SceneManager) Normals() *arena.DeviceArena[math.Vec3]   { return sm.normals }
func (sm *SceneManager) UVs() *arena.DeviceArena[math.Vec2]       { return sm.uvs }
func (sm *SceneManager) Indices() *arena.DeviceArena[uint32]      { return sm.indices }
func (sm *SceneManager) Wireframe() bool                          { return sm.wireframe }
func (sm *SceneManager) UsesEnvironmentMap() bool                 { return sm.useEnvironmentMap }
func (sm *SceneManager) UsesSky() bool                            { return sm.useSky }

// Extent is the size the camera and the pipelines' viewport were set up for.
func (sm *SceneManager) Extent() (uint32, uint32) {
	return sm.width, sm.height
}

// SetWireframe draws opaque triangles and terrain as lines from the next
// DrawScene on.
func (sm *SceneManager) SetWireframe(enable bool) {
	sm.wireframe = enable
}

// SetModelLoader replaces the loader used by LoadModel.
func (sm *SceneManager) SetModelLoader(loader ModelLoader) {
	sm.modelLoader = loader
}

// NewPrimitive copies data into the shared arenas. Normals and uvs are
// zero padded to the position count since all vertex buffers share one
// vertex offset. Dynamic primitives hold one copy per frame in flight.
func (sm *SceneManager) NewPrimitive(data scene.VertexData, aabb math.AABB, topology scene.Topology, lifetime scene.DynamicType) (*scene.Primitive, error) {
	frames := uint32(1)
	if lifetime == scene.Dynamic {
		frames = sm.frames
	}
	n := uint32(len(data.Positions))
	if n == 0 {
		return nil, fmt.Errorf("primitive without vertices: %w", core.ErrInvariantViolation)
	}
	if len(data.Normals) > int(n) || len(data.UVs) > int(n) {
		return nil, fmt.Errorf("primitive has %d positions but %d normals and %d uvs: %w",
			n, len(data.Normals), len(data.UVs), core.ErrInvariantViolation)
	}
	for _, check := range []error{
		sm.positions.Ensure(n * frames),
		sm.normals.Ensure(n * frames),
		sm.uvs.Ensure(n * frames),
		sm.indices.Ensure(uint32(len(data.Indices)) * frames),
	} {
		if check != nil {
			return nil, check
		}
	}
	if len(data.Joints0) > 0 {
		if err := sm.joints0.Ensure(uint32(len(data.Joints0)) * frames); err != nil {
			return nil, err
		}
	}
	if len(data.Weights0) > 0 {
		if err := sm.weights0.Ensure(uint32(len(data.Weights0)) * frames); err != nil {
			return nil, err
		}
	}

	var ranges scene.PrimitiveRanges
	var err error
	if ranges.Position, err = sm.positions.Add(data.Positions, frames); err != nil {
		return nil, err
	}
	if ranges.Normal, err = sm.normals.Add(padded(data.Normals, n), frames); err != nil {
		return nil, err
	}
	if ranges.UV, err = sm.uvs.Add(padded(data.UVs, n), frames); err != nil {
		return nil, err
	}
	if len(data.Indices) > 0 {
		if ranges.Index, err = sm.indices.Add(data.Indices, frames); err != nil {
			return nil, err
		}
	}
	if len(data.Joints0) > 0 {
		if ranges.Joint0, err = sm.joints0.Add(data.Joints0, frames); err != nil {
			return nil, err
		}
	}
	if len(data.Weights0) > 0 {
		if ranges.Weight0, err = sm.weights0.Add(data.Weights0, frames); err != nil {
			return nil, err
		}
	}
	return sm.graph.NewPrimitive(ranges, aabb, topology, lifetime)
}

func padded[T any](items []T, n uint32) []T {
	if uint32(len(items)) == n {
		return items
	}
	out := make([]T, n)
	copy(out, items)
	return out
}

// NewPrimitives uploads every primitive recorded by builder.
func (sm *SceneManager) NewPrimitives(builder *scene.PrimitiveBuilder) ([]*scene.Primitive, error) {
	built := builder.Primitives()
	out := make([]*scene.Primitive, 0, len(built))
	for i, p := range built {
		prim, err := sm.NewPrimitive(builder.Slice(i), p.AABB, p.Topology, p.Type)
		if err != nil {
			return out, err
		}
		out = append(out, prim)
	}
	return out, nil
}

// NewDynamicPrimitive reserves per-frame ranges for a primitive whose
// vertices are written on the GPU, e.g. by ComputeMesh.
func (sm *SceneManager) NewDynamicPrimitive(numVertices, numIndices uint32, aabb math.AABB, topology scene.Topology) (*scene.Primitive, error) {
	v, i := numVertices*sm.frames, numIndices*sm.frames
	for _, check := range []error{sm.positions.Ensure(v), sm.normals.Ensure(v), sm.uvs.Ensure(v), sm.indices.Ensure(i)} {
		if check != nil {
			return nil, check
		}
	}
	var ranges scene.PrimitiveRanges
	var err error
	if ranges.Position, err = sm.positions.Reserve(v); err != nil {
		return nil, err
	}
	if ranges.Normal, err = sm.normals.Reserve(v); err != nil {
		return nil, err
	}
	if ranges.UV, err = sm.uvs.Reserve(v); err != nil {
		return nil, err
	}
	if ranges.Index, err = sm.indices.Reserve(i); err != nil {
		return nil, err
	}
	return sm.graph.NewPrimitive(ranges, aabb, topology, scene.Dynamic)
}

func (sm *SceneManager) NewMaterial(t scene.MaterialType) (*scene.Material, error) {
	return sm.graph.NewMaterial(t)
}

func (sm *SceneManager) NewMesh(primitive *scene.Primitive, material *scene.Material) (*scene.Mesh, error) {
	return sm.graph.NewMesh(primitive.ID(), material.ID())
}

func (sm *SceneManager) NewNode(transform math.Transform, name string) (*scene.Node, error) {
	return sm.graph.NewNode(transform, name)
}

func (sm *SceneManager) NewModel(roots []scene.NodeID, animations []*scene.Animation) (*scene.Model, error) {
	return sm.graph.NewModel(roots, animations)
}

func (sm *SceneManager) NewModelInstance(model *scene.Model, transform math.Transform) (*scene.ModelInstance, error) {
	return sm.graph.NewModelInstance(model.ID(), transform)
}

// SpawnMesh places a single mesh into the scene: one node holding the
// mesh, one model around the node and one instance of it at transform.
func (sm *SceneManager) SpawnMesh(primitive *scene.Primitive, material *scene.Material, name string, transform math.Transform) (*scene.ModelInstance, error) {
	mesh, err := sm.NewMesh(primitive, material)
	if err != nil {
		return nil, err
	}
	node, err := sm.NewNode(math.TransformCreate(), name)
	if err != nil {
		return nil, err
	}
	if err := node.AddMesh(mesh.ID()); err != nil {
		return nil, err
	}
	model, err := sm.NewModel([]scene.NodeID{node.ID()}, nil)
	if err != nil {
		return nil, err
	}
	return sm.NewModelInstance(model, transform)
}

func (sm *SceneManager) AddLight(t scene.LightType, direction, color, location math.Vec3) (*scene.Light, error) {
	return sm.graph.AddLight(t, direction, color, location)
}

// LoadModel builds a model graph from a file through the model loader.
func (sm *SceneManager) LoadModel(path string) (*scene.Model, error) {
	if sm.modelLoader == nil {
		return nil, fmt.Errorf("no model loader for %s: %w", path, core.ErrNotSupported)
	}
	return sm.modelLoader.LoadModel(sm, path)
}

// UseEnvironmentMap binds precomputed IBL maps; the deferred pass switches
// to image-based lighting.
func (sm *SceneManager) UseEnvironmentMap(maps IBLMaps) error {
	if maps.Irradiance == nil || maps.Prefiltered == nil || maps.BRDFLUT == nil {
		return fmt.Errorf("incomplete environment maps: %w", core.ErrInvariantViolation)
	}
	sm.iblSet.Irradiance.Set(maps.Irradiance.Sampler, maps.Irradiance.Image)
	sm.iblSet.Prefiltered.Set(maps.Prefiltered.Sampler, maps.Prefiltered.Image)
	sm.iblSet.BRDFLUT.Set(maps.BRDFLUT.Sampler, maps.BRDFLUT.Image)
	if err := sm.iblSet.Update(sm.ibl); err != nil {
		return err
	}
	sm.useEnvironmentMap = true
	return nil
}

// BindSky makes set, allocated from SkySet's layout, the sky of the
// deferred pass. A nil set turns the sky off.
func (sm *SceneManager) BindSky(set *vulkan.DescriptorSet) {
	sm.sky = set
	sm.useSky = set != nil
}

const (
	hostToShaderStages = vk.PipelineStageFlags(vk.PipelineStageDrawIndirectBit | vk.PipelineStageVertexShaderBit |
		vk.PipelineStageTessellationControlShaderBit | vk.PipelineStageFragmentShaderBit)
	hostToShaderAccess = vk.AccessFlags(vk.AccessIndirectCommandReadBit | vk.AccessShaderReadBit | vk.AccessUniformReadBit)
)

// UpdateScene settles dirty draws, flushes the camera and lighting
// uniforms, publishes textures added since the last call and records the
// compute-mesh dispatches of this frame into compute. When nothing changed
// it writes nothing and records nothing into transfer.
func (sm *SceneManager) UpdateScene(transfer, compute vulkan.CommandRecorder, frame uint32, elapsed float32) error {
	moved, err := sm.graph.Flush()
	if err != nil {
		return err
	}
	written := moved > 0
	if sm.camera.Incoherent() {
		sm.cameraUBO.Update(sm.camera.Flush())
		written = true
	}
	if sm.lighting.Incoherent() {
		sm.lightingUBO.Update(sm.lighting.Flush())
		written = true
	}
	if err := sm.updateTextures(); err != nil {
		return err
	}
	if written && transfer != nil {
		transfer.MemoryBarrier(vk.PipelineStageFlags(vk.PipelineStageHostBit), hostToShaderStages,
			vk.AccessFlags(vk.AccessHostWriteBit), hostToShaderAccess)
	}
	if compute != nil {
		sm.dispatchComputeMeshes(compute, frame, elapsed)
	}
	return nil
}

// DrawScene records the geometry, deferred and translucent subpasses. The
// render pass must have been begun on cb.
func (sm *SceneManager) DrawScene(cb vulkan.CommandRecorder, frame uint32) error {
	if sm.pipelines == nil {
		return fmt.Errorf("scene pipelines have not been built: %w", core.ErrInvariantViolation)
	}
	p := sm.pipelines
	graphics := vk.PipelineBindPointGraphics
	cb.BindDescriptorSets(graphics, sm.layout, SetBasic, []*vulkan.DescriptorSet{sm.basic, sm.deferred})
	if sm.useEnvironmentMap {
		cb.BindDescriptorSets(graphics, sm.layout, SetIBL, []*vulkan.DescriptorSet{sm.ibl})
	}
	if sm.useSky {
		cb.BindDescriptorSets(graphics, sm.layout, SetSky, []*vulkan.DescriptorSet{sm.sky})
	}
	cb.BindVertexBuffers(0, []*vulkan.Buffer{sm.positions.Buffer(), sm.normals.Buffer(), sm.uvs.Buffer()}, []uint64{0, 0, 0})
	cb.BindIndexBuffer(sm.indices.Buffer(), 0, vk.IndexTypeUint32)

	queue := sm.buffers.DrawQueue
	draw := func(pipeline *vulkan.Pipeline, t scene.DrawType) {
		cb.BindPipeline(pipeline)
		cb.DrawIndexedIndirect(queue.Buffer(t), 0, queue.Count(t), vulkan.DrawIndexedIndirectStride)
		cb.DrawIndexedIndirect(queue.FrameBuffer(t, frame), 0, queue.FrameCount(t, frame), vulkan.DrawIndexedIndirectStride)
	}
	opaque, terrain := p.OpaqueTri, p.TerrainTess
	if sm.wireframe {
		opaque, terrain = p.OpaqueTriWireframe, p.TerrainTessWireframe
	}
	draw(opaque, scene.OpaqueTriangles)
	draw(terrain, scene.Terrain)
	draw(p.OpaqueLine, scene.OpaqueLines)

	cb.NextSubpass()
	switch {
	case sm.useEnvironmentMap:
		cb.BindPipeline(p.DeferredIBL)
	case sm.useSky:
		cb.BindPipeline(p.DeferredSky)
	default:
		cb.BindPipeline(p.Deferred)
	}
	cb.Draw(3, 1, 0, 0)

	cb.NextSubpass()
	draw(p.TransTri, scene.TransparentTriangles)
	draw(p.TransLine, scene.TransparentLines)
	return nil
}

// Resize follows a swapchain recreation: the camera takes the new aspect
// ratio and the deferred inputs point at the recreated targets.
func (sm *SceneManager) Resize(width, height uint32, gbuffer *vulkan.GBuffer) error {
	sm.width, sm.height = width, height
	sm.camera.ChangeDimension(width, height)
	sm.deferredSet.Bind(gbuffer)
	return sm.deferredSet.Update(sm.deferred)
}

// DebugEntry is the usage of one fixed-capacity pool.
type DebugEntry struct {
	Name string
	Used uint32
	Max  uint32
}

// DebugInfo reports every pool's usage sorted by name.
func (sm *SceneManager) DebugInfo() []DebugEntry {
	entries := []DebugEntry{
		{"vertices", sm.positions.Count(), sm.positions.Capacity()},
		{"indices", sm.indices.Count(), sm.indices.Capacity()},
		{"transforms", sm.buffers.Transforms.Used(), sm.buffers.Transforms.Capacity()},
		{"materials", sm.buffers.Materials.Used(), sm.buffers.Materials.Capacity()},
		{"primitives", sm.buffers.Primitives.Used(), sm.buffers.Primitives.Capacity()},
		{"mesh instances", sm.buffers.MeshInstances.Used(), sm.buffers.MeshInstances.Capacity()},
		{"lights", sm.buffers.Lights.Used(), sm.buffers.Lights.Capacity()},
		{"textures", uint32(len(sm.textures.textures)), sm.config.MaxNumTexture},
		{"compute meshes", uint32(len(sm.computeMeshes.meshes)), sm.config.MaxNumDynamicMeshes},
	}
	slices.SortFunc(entries, func(a, b DebugEntry) int { return strings.Compare(a.Name, b.Name) })
	return entries
}

func (sm *SceneManager) LogDebugInfo() {
	for _, e := range sm.DebugInfo() {
		core.LogDebug("%s: %d/%d", e.Name, e.Used, e.Max)
	}
}

func (sm *SceneManager) Destroy() {
	d := sm.device
	sm.destroyComputeMeshes()
	if sm.pipelines != nil {
		sm.pipelines.Destroy(d)
		sm.pipelines = nil
	}
	if sm.layout != nil {
		d.DestroyPipelineLayout(sm.layout)
		sm.layout = nil
	}
	if sm.computeLayout != nil {
		d.DestroyPipelineLayout(sm.computeLayout)
		sm.computeLayout = nil
	}
	if sm.pool != nil {
		d.DestroyDescriptorPool(sm.pool)
		sm.pool = nil
	}
	for _, def := range sm.setDefs() {
		def.Destroy()
	}
	sm.textures.destroy(d)
	for _, t := range sm.cubeTextures {
		t.Destroy(d)
	}
	sm.cubeTextures = nil
	for _, s := range sm.mipSamplers {
		d.DestroySampler(s)
	}
	clear(sm.mipSamplers)
	if sm.defaultSampler != nil {
		d.DestroySampler(sm.defaultSampler)
		sm.defaultSampler = nil
	}
	if sm.cameraUBO != nil {
		sm.cameraUBO.Destroy(d)
	}
	if sm.lightingUBO != nil {
		sm.lightingUBO.Destroy(d)
	}
	if sm.buffers != nil {
		sm.buffers.Destroy(d)
		sm.buffers = nil
	}
	sm.positions.Destroy()
	sm.normals.Destroy()
	sm.uvs.Destroy()
	sm.joints0.Destroy()
	sm.weights0.Destroy()
	sm.indices.Destroy()
}

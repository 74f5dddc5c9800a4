package systems

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	gomath "math"
	"os"
	"path/filepath"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vesta/engine/core"
	"github.com/spaghettifunk/vesta/engine/math"
	"github.com/spaghettifunk/vesta/engine/renderer/vulkan"
	"github.com/spaghettifunk/vesta/engine/renderer/vulkan/vktest"
	"github.com/spaghettifunk/vesta/engine/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fakeSpirv = []byte{0x03, 0x02, 0x23, 0x07}

func tinyConfig() ModelConfig {
	return ModelConfig{
		MaxNumVertex:        64,
		MaxNumIndex:         64,
		MaxNumDynamicVertex: 16,
		MaxNumDynamicIndex:  16,
		MaxNumTransform:     16,
		MaxNumMaterial:      4,
		MaxNumPrimitives:    8,

		MaxNumMeshes:                4,
		MaxNumLineMeshes:            2,
		MaxNumTransparentMeshes:     2,
		MaxNumTransparentLineMeshes: 2,
		MaxNumTerrainMeshes:         2,

		MaxNumDynamicMeshes:                2,
		MaxNumDynamicLineMeshes:            1,
		MaxNumDynamicTransparentMeshes:     1,
		MaxNumDynamicTransparentLineMeshes: 1,
		MaxNumDynamicTerrainMeshes:         1,

		MaxNumTexture: 4,
		MaxNumLights:  2,
	}
}

func sceneShaders() ShaderMap {
	m := ShaderMap{}
	for _, name := range SceneShaders {
		m[name] = fakeSpirv
	}
	return m
}

func newSceneManager(t *testing.T, cfg ModelConfig) (*SceneManager, *vktest.Device) {
	t.Helper()
	device := vktest.NewDevice()
	gbuffer, err := vulkan.NewGBuffer(device, 64, 32, vk.FormatD32Sfloat)
	require.NoError(t, err)
	sm, err := NewSceneManager(device, &vulkan.RenderPass{Subpasses: 3}, gbuffer, 64, 32, 2, cfg)
	require.NoError(t, err)
	t.Cleanup(sm.Destroy)
	return sm, device
}

func triangle() scene.VertexData {
	return scene.VertexData{
		Positions: []math.Vec3{math.NewVec3(0, 0, 0), math.NewVec3(1, 0, 0), math.NewVec3(0, 1, 0)},
		Indices:   []uint32{0, 1, 2},
	}
}

func unitBox() math.AABB {
	return math.NewAABB(math.NewVec3(-1, -1, -1), math.NewVec3(1, 1, 1))
}

func TestNewSceneManagerBindsSets(t *testing.T) {
	sm, device := newSceneManager(t, tinyConfig())

	assert.Equal(t, 1, sm.Graph().Stats().Materials, "default material")
	assert.Equal(t, scene.MaterialBRDF, sm.Graph().Material(0).Type())

	textures := device.WritesTo(sm.BasicDescriptor(), sm.BasicSet().Textures.Index)
	require.Len(t, textures, 1)
	assert.Equal(t, uint32(4), textures[0].Count(), "every element starts on the white texture")
	for _, info := range textures[0].Images {
		assert.Same(t, sm.Texture(0).Image, info.Image)
	}
	assert.Len(t, device.WritesTo(sm.BasicDescriptor(), sm.BasicSet().Camera.Index), 1)
	assert.Len(t, device.WritesTo(sm.BasicDescriptor(), sm.BasicSet().Lights.Index), 1)
	assert.Nil(t, sm.Texture(scene.NoTexture))
	assert.Nil(t, sm.Texture(1))
}

func TestNewSceneManagerRejectsBadConfig(t *testing.T) {
	device := vktest.NewDevice()
	cfg := tinyConfig()
	cfg.MaxNumLights = 0
	_, err := NewSceneManager(device, &vulkan.RenderPass{Subpasses: 3}, &vulkan.GBuffer{}, 64, 32, 2, cfg)
	assert.ErrorIs(t, err, core.ErrInvariantViolation)

	_, err = NewSceneManager(device, &vulkan.RenderPass{Subpasses: 3}, &vulkan.GBuffer{}, 64, 32, 0, tinyConfig())
	assert.ErrorIs(t, err, core.ErrInvariantViolation)
}

func TestNewPrimitivePadsAttributes(t *testing.T) {
	sm, _ := newSceneManager(t, tinyConfig())

	static, err := sm.NewPrimitive(triangle(), unitBox(), scene.Triangles, scene.Static)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), static.Position().Size)
	assert.Equal(t, static.Position(), static.Normal(), "normals share the vertex offset")
	assert.Equal(t, static.Position(), static.UV())
	assert.Equal(t, uint32(3), sm.UVs().Count())

	dynamic, err := sm.NewPrimitive(triangle(), unitBox(), scene.Triangles, scene.Dynamic)
	require.NoError(t, err)
	assert.Equal(t, uint32(6), dynamic.Position().Size, "one copy per frame in flight")
	assert.Equal(t, uint32(6), dynamic.Index().Size)
	assert.Equal(t, uint32(9), sm.Positions().Count())

	bad := triangle()
	bad.Normals = make([]math.Vec3, 4)
	_, err = sm.NewPrimitive(bad, unitBox(), scene.Triangles, scene.Static)
	assert.ErrorIs(t, err, core.ErrInvariantViolation)
}

func TestNewPrimitiveCapacity(t *testing.T) {
	cfg := tinyConfig()
	cfg.MaxNumVertex = 4
	cfg.MaxNumDynamicVertex = 1
	sm, _ := newSceneManager(t, cfg)

	_, err := sm.NewPrimitive(triangle(), unitBox(), scene.Triangles, scene.Static)
	require.NoError(t, err)
	_, err = sm.NewPrimitive(triangle(), unitBox(), scene.Triangles, scene.Static)
	require.ErrorIs(t, err, core.ErrCapacityExhausted)
	assert.Contains(t, err.Error(), "exceeding max number of data in positions")
	assert.Equal(t, uint32(3), sm.Positions().Count(), "failed primitive claims nothing")
	assert.Equal(t, uint32(3), sm.Normals().Count())
	assert.Equal(t, uint32(3), sm.Indices().Count())
}

func TestNewPrimitivesFromBuilder(t *testing.T) {
	sm, _ := newSceneManager(t, tinyConfig())
	b := scene.NewPrimitiveBuilder().
		Triangle(math.NewVec3(0, 0, 0), math.NewVec3(1, 0, 0), math.NewVec3(0, 1, 0)).
		NewPrimitive(scene.Triangles, scene.Static).
		Line(math.NewVec3(0, 0, 0), math.NewVec3(0, 0, 1)).
		NewPrimitive(scene.Lines, scene.Static)

	prims, err := sm.NewPrimitives(b)
	require.NoError(t, err)
	require.Len(t, prims, 2)
	assert.Equal(t, scene.Triangles, prims[0].Topology())
	assert.Equal(t, scene.Lines, prims[1].Topology())
	assert.Equal(t, prims[0].Position().End(), prims[1].Position().Offset)
}

func placeTriangle(t *testing.T, sm *SceneManager, material *scene.Material, lifetime scene.DynamicType) *scene.ModelInstance {
	t.Helper()
	prim, err := sm.NewPrimitive(triangle(), unitBox(), scene.Triangles, lifetime)
	require.NoError(t, err)
	mesh, err := sm.NewMesh(prim, material)
	require.NoError(t, err)
	node, err := sm.NewNode(math.TransformCreate(), "triangle")
	require.NoError(t, err)
	require.NoError(t, node.AddMesh(mesh.ID()))
	model, err := sm.NewModel([]scene.NodeID{node.ID()}, nil)
	require.NoError(t, err)
	inst, err := sm.NewModelInstance(model, math.TransformCreate())
	require.NoError(t, err)
	return inst
}

func TestUpdateSceneIsIdempotent(t *testing.T) {
	sm, device := newSceneManager(t, tinyConfig())
	_ = placeTriangle(t, sm, sm.Graph().Material(0), scene.Static)
	_, err := sm.AddLight(scene.LightDirectional, math.NewVec3(0, -1, 0), math.NewVec3(1, 1, 1), math.NewVec3Zero())
	require.NoError(t, err)

	transfer := vktest.NewRecorder(device)
	require.NoError(t, sm.UpdateScene(transfer, nil, 0, 0.016))
	assert.Equal(t, 1, transfer.Count("MemoryBarrier"), "camera and lighting were flushed")
	assert.False(t, sm.Camera().Incoherent())
	assert.False(t, sm.Lighting().Incoherent())

	writes := len(device.Writes)
	transfer.Reset()
	require.NoError(t, sm.UpdateScene(transfer, nil, 1, 0.016))
	assert.Empty(t, transfer.Calls, "nothing changed")
	assert.Len(t, device.Writes, writes)

	sm.Camera().SetLocation(math.NewVec3(1, 2, 3))
	require.NoError(t, sm.UpdateScene(transfer, nil, 0, 0.016))
	assert.Equal(t, 1, transfer.Count("MemoryBarrier"))
}

func TestDrawSceneOrder(t *testing.T) {
	sm, device := newSceneManager(t, tinyConfig())
	cb := vktest.NewRecorder(device)
	require.ErrorIs(t, sm.DrawScene(cb, 0), core.ErrInvariantViolation)

	require.NoError(t, sm.BuildPipelines(sceneShaders()))
	_ = placeTriangle(t, sm, sm.Graph().Material(0), scene.Static)
	require.NoError(t, sm.UpdateScene(nil, nil, 0, 0))

	require.NoError(t, sm.DrawScene(cb, 1))
	var names []string
	for _, p := range cb.Pipelines {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{
		"opaque-triangles", "terrain", "opaque-lines",
		"deferred",
		"translucent-triangles", "translucent-lines",
	}, names)
	assert.Equal(t, 2, cb.Subpasses)
	assert.Equal(t, 1, cb.Count("Draw"))
	require.Len(t, cb.IndirectDraws, 10, "static and dynamic queue per draw type")
	for _, d := range cb.IndirectDraws {
		assert.Equal(t, uint32(vulkan.DrawIndexedIndirectStride), d.Stride)
	}
	queue := sm.Buffers().DrawQueue
	assert.Same(t, queue.Buffer(scene.OpaqueTriangles), cb.IndirectDraws[0].Buffer)
	assert.Equal(t, uint32(1), cb.IndirectDraws[0].DrawCount)
	assert.Same(t, queue.FrameBuffer(scene.OpaqueTriangles, 1), cb.IndirectDraws[1].Buffer)
	assert.Equal(t, 1, cb.Count("BindDescriptorSets"), "no IBL or sky yet")

	sm.SetWireframe(true)
	cb.Reset()
	require.NoError(t, sm.DrawScene(cb, 0))
	assert.Equal(t, "opaque-triangles-wireframe", cb.Pipelines[0].Name)
	assert.Equal(t, "terrain-wireframe", cb.Pipelines[1].Name)
}

func TestDrawScenePicksDeferredVariant(t *testing.T) {
	sm, device := newSceneManager(t, tinyConfig())
	require.NoError(t, sm.BuildPipelines(sceneShaders()))
	cb := vktest.NewRecorder(device)

	set, err := sm.SkySet().CreateSet(device.Pools[0])
	require.NoError(t, err)
	sm.BindSky(set)
	require.NoError(t, sm.DrawScene(cb, 0))
	assert.Equal(t, "deferred-sky", cb.Pipelines[3].Name)
	assert.Equal(t, 2, cb.Count("BindDescriptorSets"))

	white := sm.Texture(0)
	require.ErrorIs(t, sm.UseEnvironmentMap(IBLMaps{Irradiance: white}), core.ErrInvariantViolation)
	require.NoError(t, sm.UseEnvironmentMap(IBLMaps{Irradiance: white, Prefiltered: white, BRDFLUT: white}))
	cb.Reset()
	require.NoError(t, sm.DrawScene(cb, 0))
	assert.Equal(t, "deferred-ibl", cb.Pipelines[3].Name, "IBL wins over the sky")
	assert.Equal(t, 3, cb.Count("BindDescriptorSets"))
}

func TestBuildPipelinesMissingShader(t *testing.T) {
	sm, _ := newSceneManager(t, tinyConfig())
	shaders := sceneShaders()
	delete(shaders, shaderTerrainTese)
	err := sm.BuildPipelines(shaders)
	require.ErrorIs(t, err, core.ErrExternalResource)
	assert.Nil(t, sm.Pipelines())
}

func TestComputeMesh(t *testing.T) {
	sm, device := newSceneManager(t, tinyConfig())

	static, err := sm.NewPrimitive(triangle(), unitBox(), scene.Triangles, scene.Static)
	require.NoError(t, err)
	_, err = sm.ComputeMesh("wave.comp.spv", fakeSpirv, static, 1, 1, 1)
	require.ErrorIs(t, err, core.ErrInvariantViolation)
	assert.Contains(t, err.Error(), "compute mesh should be dynamic primitive!")

	prim, err := sm.NewDynamicPrimitive(4, 6, unitBox(), scene.Triangles)
	require.NoError(t, err)
	assert.Equal(t, uint32(8), prim.Position().Size)
	_, err = sm.ComputeMesh("wave.comp.spv", fakeSpirv, prim, 2, 1, 1)
	require.NoError(t, err)
	require.Len(t, device.ComputePipes, 1)

	compute := vktest.NewRecorder(device)
	require.NoError(t, sm.UpdateScene(nil, compute, 1, 0.25))
	require.NoError(t, sm.UpdateScene(nil, compute, 1, 0.25))
	assert.InDelta(t, 0.5, sm.ComputeTime(), 1e-6)
	require.Len(t, compute.PushConstants, 2)
	require.Equal(t, [][3]uint32{{2, 1, 1}, {2, 1, 1}}, compute.Dispatches)
	assert.Equal(t, 2, compute.Count("MemoryBarrier"))

	pc := compute.PushConstants[1]
	require.Len(t, pc, 16)
	assert.Equal(t, prim.Position().Offset+4, binary.LittleEndian.Uint32(pc[0:]), "second frame copy")
	assert.Equal(t, prim.Normal().Offset+4, binary.LittleEndian.Uint32(pc[4:]))
	assert.Equal(t, uint32(4), binary.LittleEndian.Uint32(pc[8:]))
	assert.InDelta(t, 0.5, gomath.Float32frombits(binary.LittleEndian.Uint32(pc[12:])), 1e-6)

	wrapped := vktest.NewRecorder(device)
	require.NoError(t, sm.UpdateScene(nil, wrapped, 3, 0))
	require.Len(t, wrapped.PushConstants, 1)
	assert.Equal(t, pc[:8], wrapped.PushConstants[0][:8], "frame 3 of 2 wraps to the second copy")

	require.NoError(t, sm.ReloadComputeShader("wave.comp.spv", fakeSpirv))
	assert.Len(t, device.ComputePipes, 2)
	assert.Error(t, sm.ReloadComputeShader("wave.comp.spv", []byte{1, 2, 3, 4}))
	require.NoError(t, sm.ReloadComputeShader("unknown.comp.spv", nil))
}

func TestComputeMeshCapacity(t *testing.T) {
	cfg := tinyConfig()
	cfg.MaxNumDynamicMeshes = 1
	sm, _ := newSceneManager(t, cfg)
	prim, err := sm.NewDynamicPrimitive(2, 3, unitBox(), scene.Triangles)
	require.NoError(t, err)
	_, err = sm.ComputeMesh("a.comp.spv", fakeSpirv, prim, 1, 1, 1)
	require.NoError(t, err)
	_, err = sm.ComputeMesh("a.comp.spv", fakeSpirv, prim, 1, 1, 1)
	require.ErrorIs(t, err, core.ErrCapacityExhausted)
	assert.Contains(t, err.Error(), "exceeding max number of dynamic meshes!")
}

func TestTexturesPublishedOnUpdate(t *testing.T) {
	sm, device := newSceneManager(t, tinyConfig())
	pixels := bytes.Repeat([]byte{255, 0, 0, 255}, 4)

	id, err := sm.NewTextureFromPixels(2, 2, pixels, nil)
	require.NoError(t, err)
	assert.Equal(t, scene.TextureID(1), id)
	gray, err := sm.NewGrayTexture(2, 2, []byte{1, 2, 3, 4}, nil)
	require.NoError(t, err)
	assert.Equal(t, scene.TextureID(2), gray)

	require.NoError(t, sm.UpdateScene(nil, nil, 0, 0))
	writes := device.WritesTo(sm.BasicDescriptor(), sm.BasicSet().Textures.Index)
	require.Len(t, writes, 2)
	assert.Equal(t, uint32(1), writes[1].ArrayElement, "only the new textures")
	assert.Equal(t, uint32(2), writes[1].Count())

	require.NoError(t, sm.UpdateScene(nil, nil, 0, 0))
	assert.Len(t, device.WritesTo(sm.BasicDescriptor(), sm.BasicSet().Textures.Index), 2)

	_, err = sm.NewTextureFromPixels(2, 2, pixels, nil)
	require.NoError(t, err)
	_, err = sm.NewTextureFromPixels(2, 2, pixels, nil)
	require.ErrorIs(t, err, core.ErrCapacityExhausted)
	assert.Contains(t, err.Error(), "exceeding maximum number of textures!")
}

func TestResizeRebindsDeferredInputs(t *testing.T) {
	sm, device := newSceneManager(t, tinyConfig())
	gbuffer, err := vulkan.NewGBuffer(device, 128, 96, vk.FormatD32Sfloat)
	require.NoError(t, err)

	require.NoError(t, sm.Resize(128, 96, gbuffer))
	w, h := sm.Extent()
	assert.Equal(t, uint32(128), w)
	assert.Equal(t, uint32(96), h)
	assert.Equal(t, uint32(128), sm.Camera().Width())
	assert.True(t, sm.Camera().Incoherent())

	set := device.Sets[1]
	for i, img := range gbuffer.Images() {
		writes := device.WritesTo(set, uint32(i))
		require.Len(t, writes, 2, "initial bind plus resize")
		assert.Same(t, img, writes[1].Images[0].Image)
	}
}

func TestDebugInfoSorted(t *testing.T) {
	sm, _ := newSceneManager(t, tinyConfig())
	entries := sm.DebugInfo()
	require.NotEmpty(t, entries)
	for i := 1; i < len(entries); i++ {
		assert.Less(t, entries[i-1].Name, entries[i].Name)
	}
	for _, e := range entries {
		if e.Name == "materials" {
			assert.Equal(t, uint32(1), e.Used)
			assert.Equal(t, uint32(4), e.Max)
		}
	}
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	img.Set(0, 0, color.RGBA{255, 0, 0, 255})
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestLoadModel(t *testing.T) {
	dir := t.TempDir()
	obj := `o quad
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
usemtl red
f 1 2 3 4
o other
usemtl missing
f 1 2 3
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "quad.obj"), []byte(obj), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "red.vmt"), []byte(`
name = "red"
color_factor = [1, 0, 0, 1]

[maps]
color = "red.png"
height = "red.png"
`), 0o644))
	writePNG(t, filepath.Join(dir, "red.png"))

	sm, _ := newSceneManager(t, tinyConfig())
	js, err := NewJobSystem(2, 4)
	require.NoError(t, err)
	defer js.Shutdown()
	sm.SetJobSystem(js)

	model, err := sm.LoadModel(filepath.Join(dir, "quad.obj"))
	require.NoError(t, err)
	require.Len(t, model.Roots(), 1)
	root := sm.Graph().Node(model.Roots()[0])
	require.Len(t, root.Children(), 2)

	first := sm.Graph().Node(root.Children()[0])
	require.Len(t, first.Meshes(), 1)
	red := sm.Graph().Material(sm.Graph().Mesh(first.Meshes()[0]).Material())
	assert.Equal(t, math.NewVec4(1, 0, 0, 1), red.ColorFactor())
	assert.Equal(t, scene.TextureID(1), red.ColorTex())
	assert.Equal(t, scene.TextureID(2), red.HeightTex())
	assert.Equal(t, scene.MaterialBRDF, red.Type())

	second := sm.Graph().Node(root.Children()[1])
	assert.Equal(t, scene.MaterialID(0), sm.Graph().Mesh(second.Meshes()[0]).Material(), "default material")

	_, err = sm.LoadModel(filepath.Join(dir, "nope.obj"))
	assert.ErrorIs(t, err, core.ErrExternalResource)
}

func TestLoadMaterialErrors(t *testing.T) {
	dir := t.TempDir()
	sm, _ := newSceneManager(t, tinyConfig())

	path := filepath.Join(dir, "odd.vmt")
	require.NoError(t, os.WriteFile(path, []byte("name = \"odd\"\ntype = \"velvet\"\n"), 0o644))
	_, err := sm.LoadMaterial(path)
	assert.ErrorIs(t, err, core.ErrNotSupported)

	path = filepath.Join(dir, "broken.vmt")
	require.NoError(t, os.WriteFile(path, []byte("name = \"broken\"\n[maps]\ncolor = \"missing.png\"\n"), 0o644))
	before := sm.Graph().Stats().Materials
	_, err = sm.LoadMaterial(path)
	assert.ErrorIs(t, err, core.ErrExternalResource)
	assert.Equal(t, before, sm.Graph().Stats().Materials, "no material for unreadable maps")
}

package scene

import (
	"bytes"
	"encoding/binary"
	gomath "math"
	"testing"
	"unsafe"

	"github.com/spaghettifunk/vesta/engine/arena"
	"github.com/spaghettifunk/vesta/engine/core"
	"github.com/spaghettifunk/vesta/engine/math"
	"github.com/spaghettifunk/vesta/engine/renderer/vulkan"
	"github.com/spaghettifunk/vesta/engine/renderer/vulkan/vktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGraph(t *testing.T, materials uint32) (*Graph, *vktest.Device) {
	t.Helper()
	device := vktest.NewDevice()
	draws := QueueCapacities{8, 8, 8, 8, 8}
	b, err := NewBuffers(device, PoolCapacities{
		Transforms:    32,
		Materials:     materials,
		Primitives:    8,
		MeshInstances: 16,
		Lights:        2,
		StaticDraws:   draws,
		DynamicDraws:  draws,
		Frames:        2,
	})
	require.NoError(t, err)
	return NewGraph(b), device
}

func unitBox() math.AABB {
	return math.NewAABB(math.NewVec3(-1, -1, -1), math.NewVec3(1, 1, 1))
}

func staticTriangles(t *testing.T, g *Graph, first uint32) *Primitive {
	t.Helper()
	p, err := g.NewPrimitive(PrimitiveRanges{
		Index:    arena.Range{Offset: first * 3, Size: 3},
		Position: arena.Range{Offset: first * 3, Size: 3},
	}, unitBox(), Triangles, Static)
	require.NoError(t, err)
	return p
}

// placeMeshes builds one model with one node per mesh and instances it once.
func placeMeshes(t *testing.T, g *Graph, meshes ...*Mesh) *ModelInstance {
	t.Helper()
	var roots []NodeID
	for _, m := range meshes {
		n, err := g.NewNode(math.TransformCreate(), "node")
		require.NoError(t, err)
		require.NoError(t, n.AddMesh(m.ID()))
		roots = append(roots, n.ID())
	}
	model, err := g.NewModel(roots, nil)
	require.NoError(t, err)
	inst, err := g.NewModelInstance(model.ID(), math.TransformCreate())
	require.NoError(t, err)
	return inst
}

func TestGPUStructSizes(t *testing.T) {
	assert.Equal(t, uintptr(96), unsafe.Sizeof(PrimitiveUBO{}))
	assert.Equal(t, uintptr(96), unsafe.Sizeof(MaterialUBO{}))
	assert.Equal(t, uintptr(16), unsafe.Sizeof(MeshInstanceUBO{}))
	assert.Equal(t, uintptr(64), unsafe.Sizeof(LightUBO{}))
	assert.Equal(t, uintptr(16), unsafe.Sizeof(LightingUBO{}))
	assert.Equal(t, uintptr(vulkan.DrawIndexedIndirectStride), unsafe.Sizeof(vulkan.DrawIndexedIndirectCommand{}))
}

func TestClassifyIsTotal(t *testing.T) {
	topologies := []Topology{Triangles, Lines, Procedural, Patches}
	materials := []MaterialType{
		MaterialBRDF, MaterialBRDFSG, MaterialReflective, MaterialRefractive,
		MaterialNone, MaterialTranslucent, MaterialTerrain,
	}
	for _, top := range topologies {
		for _, mat := range materials {
			d, err := Classify(top, mat)
			again, errAgain := Classify(top, mat)
			assert.Equal(t, d, again)
			assert.Equal(t, err == nil, errAgain == nil)
			if err != nil {
				assert.ErrorIs(t, err, core.ErrNotSupported, "%s/%s", top, mat)
				continue
			}
			assert.Less(t, d, NumDrawTypes)
		}
	}

	tests := []struct {
		topology Topology
		material MaterialType
		want     DrawType
	}{
		{Triangles, MaterialBRDF, OpaqueTriangles},
		{Lines, MaterialNone, OpaqueLines},
		{Triangles, MaterialTranslucent, TransparentTriangles},
		{Lines, MaterialTranslucent, TransparentLines},
		{Patches, MaterialTerrain, Terrain},
	}
	for _, tt := range tests {
		got, err := Classify(tt.topology, tt.material)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := Classify(Triangles, MaterialTerrain)
	assert.ErrorIs(t, err, core.ErrNotSupported)
	_, err = Classify(Patches, MaterialBRDF)
	assert.ErrorIs(t, err, core.ErrNotSupported)
}

func TestMaterialWritesThrough(t *testing.T) {
	g, device := newGraph(t, 4)
	m, err := g.NewMaterial(MaterialBRDF)
	require.NoError(t, err)
	assert.Equal(t, NoTexture, m.ColorTex())

	m.SetColorFactor(math.NewVec4(0.5, 0.25, 1, 1)).SetColorTex(3)

	mem := device.Memory(g.Buffers().Materials.Buffer())
	off := m.Slot() * uint32(unsafe.Sizeof(MaterialUBO{}))
	assert.Equal(t, gomath.Float32bits(0.5), binary.LittleEndian.Uint32(mem[off:]))
	assert.Equal(t, gomath.Float32bits(0.25), binary.LittleEndian.Uint32(mem[off+4:]))
	// ColorTex follows the three factors and two scalars.
	assert.Equal(t, uint32(3), binary.LittleEndian.Uint32(mem[off+56:]))
	assert.Equal(t, m.UBO(), *g.Buffers().Materials.At(m.Slot()))
}

func TestMaterialCapacity(t *testing.T) {
	g, _ := newGraph(t, 2)
	_, err := g.NewMaterial(MaterialBRDF)
	require.NoError(t, err)
	_, err = g.NewMaterial(MaterialTranslucent)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = g.NewMaterial(MaterialBRDF)
		require.ErrorIs(t, err, core.ErrCapacityExhausted)
	}
	assert.Equal(t, 2, g.Stats().Materials)
}

func TestLightWritesThrough(t *testing.T) {
	g, _ := newGraph(t, 2)
	l, err := g.AddLight(LightPoint, math.NewVec3(0, -1, 0), math.NewVec3One(), math.NewVec3(1, 2, 3))
	require.NoError(t, err)
	l.SetIntensity(7)
	l.SetSpotCone(0.1, 0.2)

	got := *g.Buffers().Lights.At(l.Slot())
	assert.Equal(t, float32(7), got.Intensity)
	assert.Equal(t, float32(0.2), got.SpotOuterConeAngle)
	assert.Equal(t, math.NewVec3(1, 2, 3), got.Location)
	assert.Equal(t, uint32(LightPoint), got.Type)

	_, err = g.AddLight(LightSpot, math.NewVec3Zero(), math.NewVec3One(), math.NewVec3Zero())
	require.NoError(t, err)
	_, err = g.AddLight(LightSpot, math.NewVec3Zero(), math.NewVec3One(), math.NewVec3Zero())
	assert.ErrorIs(t, err, core.ErrCapacityExhausted)
}

func TestLightingFlush(t *testing.T) {
	l := NewLighting(3)
	require.True(t, l.Incoherent())
	ubo := l.Flush()
	assert.False(t, l.Incoherent())
	assert.Equal(t, LightingUBO{NumLights: 3, Exposure: 4.5, Gamma: 2.2}, ubo)
	l.SetExposure(1)
	assert.True(t, l.Incoherent())
}

func TestNodeChainComposesTransforms(t *testing.T) {
	g, _ := newGraph(t, 2)
	const depth = 5
	nodes := make([]*Node, depth)
	for i := range nodes {
		tr := math.TransformFromPositionRotation(
			math.NewVec3(float32(i+1), 0, 0),
			math.NewQuatFromAxisAngle(math.NewVec3Up(), 0.3*float32(i), true),
		)
		n, err := g.NewNode(tr, "chain")
		require.NoError(t, err)
		nodes[i] = n
		if i > 0 {
			require.NoError(t, nodes[i-1].AddChild(n.ID()))
		}
	}

	root := math.TransformFromPosition(math.NewVec3(0, 5, 0))
	root.Scale = math.NewVec3(2, 2, 2)
	nodes[0].SetTransform(root)

	want := math.NewMat4Identity()
	for _, n := range nodes {
		want = want.Mul(n.Transform().Matrix())
	}
	leaf := nodes[depth-1]
	assert.True(t, leaf.GlobalMatrix().Compare(want, 1e-4))
	assert.True(t, g.Buffers().Transforms.At(leaf.Slot()).Compare(want, 1e-4))

	before := make([]math.Mat4, depth-1)
	for i := range before {
		before[i] = nodes[i].GlobalMatrix()
	}
	leaf.SetTransform(math.TransformFromPosition(math.NewVec3(0, 0, 9)))
	for i := range before {
		assert.Equal(t, before[i], nodes[i].GlobalMatrix())
		assert.Equal(t, before[i], *g.Buffers().Transforms.At(nodes[i].Slot()))
	}
}

func TestOwnershipErrors(t *testing.T) {
	g, _ := newGraph(t, 2)
	a, err := g.NewNode(math.TransformCreate(), "a")
	require.NoError(t, err)
	b, err := g.NewNode(math.TransformCreate(), "b")
	require.NoError(t, err)
	c, err := g.NewNode(math.TransformCreate(), "c")
	require.NoError(t, err)

	require.NoError(t, a.AddChild(b.ID()))
	assert.ErrorIs(t, c.AddChild(b.ID()), core.ErrInvariantViolation)
	assert.ErrorIs(t, b.AddChild(a.ID()), core.ErrInvariantViolation)
	assert.ErrorIs(t, a.AddChild(NodeID(99)), core.ErrInvariantViolation)

	prim := staticTriangles(t, g, 0)
	mat, err := g.NewMaterial(MaterialBRDF)
	require.NoError(t, err)
	mesh, err := g.NewMesh(prim.ID(), mat.ID())
	require.NoError(t, err)
	require.NoError(t, b.AddMesh(mesh.ID()))
	assert.ErrorIs(t, c.AddMesh(mesh.ID()), core.ErrInvariantViolation)

	_, err = g.NewMesh(PrimitiveID(42), mat.ID())
	assert.ErrorIs(t, err, core.ErrInvariantViolation)

	_, err = g.NewModel([]NodeID{b.ID()}, nil)
	assert.ErrorIs(t, err, core.ErrInvariantViolation, "a child cannot be a model root")

	model, err := g.NewModel([]NodeID{a.ID()}, nil)
	require.NoError(t, err)
	assert.Equal(t, model.ID(), b.Model())
	_, err = g.NewModel([]NodeID{a.ID()}, nil)
	assert.ErrorIs(t, err, core.ErrInvariantViolation)

	assert.ErrorIs(t, b.AddChild(c.ID()), core.ErrInvariantViolation, "models are immutable")
	assert.Equal(t, NoNode, c.Parent())
	assert.Equal(t, NoModel, c.Model())

	inst, err := g.NewModelInstance(model.ID(), math.TransformCreate())
	require.NoError(t, err)
	assert.ErrorIs(t, inst.ApplyModel(model.ID()), core.ErrInvariantViolation)
	assert.Len(t, inst.MeshInstances(), 1)
}

func TestModelReleasesNodesOnError(t *testing.T) {
	g, _ := newGraph(t, 2)
	a, err := g.NewNode(math.TransformCreate(), "a")
	require.NoError(t, err)
	_, err = g.NewModel([]NodeID{a.ID(), NodeID(77)}, nil)
	require.Error(t, err)
	assert.Equal(t, NoModel, a.Model())
}

func TestMeshInstanceDrawCommand(t *testing.T) {
	g, _ := newGraph(t, 2)
	prim, err := g.NewPrimitive(PrimitiveRanges{
		Index:    arena.Range{Offset: 30, Size: 36},
		Position: arena.Range{Offset: 100, Size: 24},
	}, unitBox(), Triangles, Static)
	require.NoError(t, err)
	mat, err := g.NewMaterial(MaterialBRDF)
	require.NoError(t, err)
	mesh, err := g.NewMesh(prim.ID(), mat.ID())
	require.NoError(t, err)
	inst := placeMeshes(t, g, mesh)

	queue := g.Buffers().DrawQueue
	require.Equal(t, uint32(1), queue.Count(OpaqueTriangles))
	mi := g.MeshInstance(inst.MeshInstances()[0])
	require.Len(t, mi.Draws(), 1)

	cmd := *queue.Command(mi.Draws()[0])
	assert.Equal(t, vulkan.DrawIndexedIndirectCommand{
		IndexCount:    36,
		InstanceCount: 1,
		FirstIndex:    30,
		VertexOffset:  100,
		FirstInstance: mi.Slot(),
	}, cmd)

	ubo := *g.Buffers().MeshInstances.At(mi.Slot())
	assert.Equal(t, prim.Slot(), ubo.Primitive)
	assert.Equal(t, mat.Slot(), ubo.Material)
	assert.Equal(t, g.Node(mesh.Node()).Slot(), ubo.Node)
	assert.Equal(t, inst.Slot(), ubo.Instance)

	mesh.SetVisible(false)
	assert.Equal(t, uint32(0), queue.Command(mi.Draws()[0]).InstanceCount)
	mesh.SetVisible(true)
	inst.SetVisible(false)
	assert.Equal(t, uint32(0), queue.Command(mi.Draws()[0]).InstanceCount)
}

func TestDynamicPrimitiveGetsOneDrawPerFrame(t *testing.T) {
	g, _ := newGraph(t, 2)
	prim, err := g.NewPrimitive(PrimitiveRanges{
		Index:    arena.Range{Offset: 0, Size: 12},
		Position: arena.Range{Offset: 40, Size: 8},
	}, unitBox(), Triangles, Dynamic)
	require.NoError(t, err)
	mat, err := g.NewMaterial(MaterialBRDF)
	require.NoError(t, err)
	mesh, err := g.NewMesh(prim.ID(), mat.ID())
	require.NoError(t, err)
	inst := placeMeshes(t, g, mesh)

	queue := g.Buffers().DrawQueue
	assert.Equal(t, uint32(0), queue.Count(OpaqueTriangles))
	assert.Equal(t, uint32(1), queue.FrameCount(OpaqueTriangles, 0))
	assert.Equal(t, uint32(1), queue.FrameCount(OpaqueTriangles, 1))

	mi := g.MeshInstance(inst.MeshInstances()[0])
	require.Len(t, mi.Draws(), 2)
	second := queue.Command(mi.Draws()[1])
	assert.Equal(t, uint32(6), second.IndexCount)
	assert.Equal(t, uint32(6), second.FirstIndex)
	assert.Equal(t, int32(44), second.VertexOffset)
}

func TestMaterialChangeRelocatesDraw(t *testing.T) {
	g, _ := newGraph(t, 4)
	opaque, err := g.NewMaterial(MaterialBRDF)
	require.NoError(t, err)
	glass, err := g.NewMaterial(MaterialTranslucent)
	require.NoError(t, err)

	var meshes []*Mesh
	for i := uint32(0); i < 3; i++ {
		m, err := g.NewMesh(staticTriangles(t, g, i).ID(), opaque.ID())
		require.NoError(t, err)
		meshes = append(meshes, m)
	}
	placeMeshes(t, g, meshes...)

	queue := g.Buffers().DrawQueue
	require.Equal(t, uint32(3), queue.Count(OpaqueTriangles))
	last := g.MeshInstance(meshes[2].Instances()[0])
	require.Equal(t, uint32(2), last.Draws()[0].Offset)

	require.NoError(t, meshes[0].SetMaterial(glass.ID()))
	assert.Equal(t, 1, g.Dirty())
	// Nothing moves before the flush.
	assert.Equal(t, uint32(3), queue.Count(OpaqueTriangles))

	n, err := g.Flush()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, uint32(2), queue.Count(OpaqueTriangles))
	assert.Equal(t, uint32(1), queue.Count(TransparentTriangles))

	// The last opaque draw was swapped into the hole and knows it.
	assert.Equal(t, uint32(0), last.Draws()[0].Offset)
	assert.Equal(t, uint32(last.ID()), queue.Owner(last.Draws()[0]))
	assert.Equal(t, last.Slot(), queue.Command(last.Draws()[0]).FirstInstance)

	moved := g.MeshInstance(meshes[0].Instances()[0])
	assert.Equal(t, TransparentTriangles, moved.DrawType())
	assert.Equal(t, glass.Slot(), g.Buffers().MeshInstances.At(moved.Slot()).Material)
}

func TestFlushIsIdempotent(t *testing.T) {
	g, device := newGraph(t, 4)
	opaque, err := g.NewMaterial(MaterialBRDF)
	require.NoError(t, err)
	glass, err := g.NewMaterial(MaterialTranslucent)
	require.NoError(t, err)
	mesh, err := g.NewMesh(staticTriangles(t, g, 0).ID(), opaque.ID())
	require.NoError(t, err)
	placeMeshes(t, g, mesh)

	require.NoError(t, mesh.SetMaterial(glass.ID()))
	require.NoError(t, mesh.SetMaterial(opaque.ID()))
	require.NoError(t, mesh.SetMaterial(glass.ID()))
	assert.Equal(t, 1, g.Dirty(), "a mesh is queued once")
	_, err = g.Flush()
	require.NoError(t, err)

	queue := g.Buffers().DrawQueue
	snapshot := func() [][]byte {
		var out [][]byte
		for d := DrawType(0); d < NumDrawTypes; d++ {
			out = append(out, bytes.Clone(device.Memory(queue.Buffer(d))))
		}
		out = append(out, bytes.Clone(device.Memory(g.Buffers().MeshInstances.Buffer())))
		return out
	}
	before := snapshot()
	n, err := g.Flush()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, before, snapshot())
}

func TestUnsupportedPairFailsRouting(t *testing.T) {
	g, _ := newGraph(t, 2)
	terrain, err := g.NewMaterial(MaterialTerrain)
	require.NoError(t, err)
	mesh, err := g.NewMesh(staticTriangles(t, g, 0).ID(), terrain.ID())
	require.NoError(t, err)
	n, err := g.NewNode(math.TransformCreate(), "n")
	require.NoError(t, err)
	require.NoError(t, n.AddMesh(mesh.ID()))
	model, err := g.NewModel([]NodeID{n.ID()}, nil)
	require.NoError(t, err)
	_, err = g.NewModelInstance(model.ID(), math.TransformCreate())
	assert.ErrorIs(t, err, core.ErrNotSupported)
}

func TestFailedInstanceLeavesNoState(t *testing.T) {
	g, _ := newGraph(t, 2)
	brdf, err := g.NewMaterial(MaterialBRDF)
	require.NoError(t, err)
	terrain, err := g.NewMaterial(MaterialTerrain)
	require.NoError(t, err)
	good, err := g.NewMesh(staticTriangles(t, g, 0).ID(), brdf.ID())
	require.NoError(t, err)
	bad, err := g.NewMesh(staticTriangles(t, g, 1).ID(), terrain.ID())
	require.NoError(t, err)

	root, err := g.NewNode(math.TransformCreate(), "root")
	require.NoError(t, err)
	require.NoError(t, root.AddMesh(good.ID()))
	leaf, err := g.NewNode(math.TransformCreate(), "leaf")
	require.NoError(t, err)
	require.NoError(t, leaf.AddMesh(bad.ID()))
	require.NoError(t, root.AddChild(leaf.ID()))
	model, err := g.NewModel([]NodeID{root.ID()}, nil)
	require.NoError(t, err)

	b := g.Buffers()
	transforms, meshInstances := b.Transforms.Used(), b.MeshInstances.Used()
	inst, err := g.NewModelInstance(model.ID(), math.TransformCreate())
	require.ErrorIs(t, err, core.ErrNotSupported)
	assert.Nil(t, inst)

	stats := g.Stats()
	assert.Equal(t, 0, stats.Instances)
	assert.Equal(t, 0, stats.MeshInstances)
	assert.Equal(t, transforms, b.Transforms.Used())
	assert.Equal(t, meshInstances, b.MeshInstances.Used())
	assert.Equal(t, uint32(0), b.DrawQueue.Count(OpaqueTriangles))
	assert.Empty(t, good.Instances())

	// the graph stays usable once the mesh is fixed
	require.NoError(t, bad.SetMaterial(brdf.ID()))
	inst, err = g.NewModelInstance(model.ID(), math.TransformCreate())
	require.NoError(t, err)
	assert.Equal(t, InstanceID(0), inst.ID())
	assert.Len(t, inst.MeshInstances(), 2)
	assert.Equal(t, uint32(2), b.DrawQueue.Count(OpaqueTriangles))
}

func TestNodeAABB(t *testing.T) {
	g, _ := newGraph(t, 2)
	mat, err := g.NewMaterial(MaterialBRDF)
	require.NoError(t, err)
	mesh, err := g.NewMesh(staticTriangles(t, g, 0).ID(), mat.ID())
	require.NoError(t, err)
	n, err := g.NewNode(math.TransformFromPosition(math.NewVec3(10, 0, 0)), "n")
	require.NoError(t, err)
	require.NoError(t, n.AddMesh(mesh.ID()))

	box := n.AABB()
	assert.True(t, box.Min.Compare(math.NewVec3(9, -1, -1), 1e-5))
	assert.True(t, box.Max.Compare(math.NewVec3(11, 1, 1), 1e-5))
}

// Package scene is the CPU side of the scene: primitives, materials, meshes,
// nodes, models, model instances and lights kept in index-linked arenas.
// Every entity owns slots in the GPU pools of Buffers and writes its shader
// view straight through the mapped slot. Only the draw-queue membership of
// meshes is tracked as dirty and settled by Flush.
package scene

import (
	"fmt"

	"github.com/spaghettifunk/vesta/engine/arena"
	"github.com/spaghettifunk/vesta/engine/core"
	"github.com/spaghettifunk/vesta/engine/math"
	"github.com/spaghettifunk/vesta/engine/renderer/vulkan"
)

// Buffers are the GPU pools the graph allocates from.
type Buffers struct {
	Transforms    *arena.SlotPool[math.Mat4]
	Materials     *arena.SlotPool[MaterialUBO]
	Primitives    *arena.SlotPool[PrimitiveUBO]
	MeshInstances *arena.SlotPool[MeshInstanceUBO]
	Lights        *arena.SlotPool[LightUBO]
	DrawQueue     *DrawQueue
}

// PoolCapacities sizes NewBuffers.
type PoolCapacities struct {
	Transforms    uint32
	Materials     uint32
	Primitives    uint32
	MeshInstances uint32
	Lights        uint32
	StaticDraws   QueueCapacities
	DynamicDraws  QueueCapacities
	Frames        uint32
}

func NewBuffers(device vulkan.Device, c PoolCapacities) (*Buffers, error) {
	b := &Buffers{}
	var err error
	if b.Transforms, err = arena.NewSlotPool[math.Mat4](device, "transforms", c.Transforms); err != nil {
		return nil, err
	}
	if b.Materials, err = arena.NewSlotPool[MaterialUBO](device, "materials", c.Materials); err != nil {
		b.Destroy(device)
		return nil, err
	}
	if b.Primitives, err = arena.NewSlotPool[PrimitiveUBO](device, "primitives", c.Primitives); err != nil {
		b.Destroy(device)
		return nil, err
	}
	if b.MeshInstances, err = arena.NewSlotPool[MeshInstanceUBO](device, "mesh instances", c.MeshInstances); err != nil {
		b.Destroy(device)
		return nil, err
	}
	if b.Lights, err = arena.NewSlotPool[LightUBO](device, "lights", c.Lights); err != nil {
		b.Destroy(device)
		return nil, err
	}
	if b.DrawQueue, err = NewDrawQueue(device, c.StaticDraws, c.DynamicDraws, c.Frames); err != nil {
		b.Destroy(device)
		return nil, err
	}
	return b, nil
}

func (b *Buffers) Destroy(device vulkan.Device) {
	if b.Transforms != nil {
		b.Transforms.Destroy(device)
	}
	if b.Materials != nil {
		b.Materials.Destroy(device)
	}
	if b.Primitives != nil {
		b.Primitives.Destroy(device)
	}
	if b.MeshInstances != nil {
		b.MeshInstances.Destroy(device)
	}
	if b.Lights != nil {
		b.Lights.Destroy(device)
	}
	if b.DrawQueue != nil {
		b.DrawQueue.Destroy(device)
	}
}

/**
 * @brief The scene arenas. Entities are stored by pointer so references
 * handed to callers stay valid while the arenas grow; links between
 * entities are always IDs.
 */
type Graph struct {
	buffers *Buffers
	frames  uint32

	primitives    []*Primitive
	materials     []*Material
	meshes        []*Mesh
	nodes         []*Node
	models        []*Model
	instances     []*ModelInstance
	meshInstances []*MeshInstance
	lights        []*Light

	dirtyMeshes []MeshID
}

func NewGraph(buffers *Buffers) *Graph {
	return &Graph{buffers: buffers, frames: buffers.DrawQueue.Frames()}
}

func (g *Graph) Buffers() *Buffers {
	return g.buffers
}

// Frames is the number of frames in flight dynamic data is replicated for.
func (g *Graph) Frames() uint32 {
	return g.frames
}

func (g *Graph) Primitive(id PrimitiveID) *Primitive {
	if int(id) >= len(g.primitives) {
		return nil
	}
	return g.primitives[id]
}

func (g *Graph) Material(id MaterialID) *Material {
	if int(id) >= len(g.materials) {
		return nil
	}
	return g.materials[id]
}

func (g *Graph) Mesh(id MeshID) *Mesh {
	if int(id) >= len(g.meshes) {
		return nil
	}
	return g.meshes[id]
}

func (g *Graph) Node(id NodeID) *Node {
	if int(id) >= len(g.nodes) {
		return nil
	}
	return g.nodes[id]
}

func (g *Graph) Model(id ModelID) *Model {
	if int(id) >= len(g.models) {
		return nil
	}
	return g.models[id]
}

func (g *Graph) Instance(id InstanceID) *ModelInstance {
	if int(id) >= len(g.instances) {
		return nil
	}
	return g.instances[id]
}

func (g *Graph) MeshInstance(id MeshInstanceID) *MeshInstance {
	if int(id) >= len(g.meshInstances) {
		return nil
	}
	return g.meshInstances[id]
}

func (g *Graph) Light(id LightID) *Light {
	if int(id) >= len(g.lights) {
		return nil
	}
	return g.lights[id]
}

// Stats is the number of entities of each kind.
type Stats struct {
	Primitives, Materials, Meshes, Nodes, Models, Instances, MeshInstances, Lights int
}

func (g *Graph) Stats() Stats {
	return Stats{
		Primitives:    len(g.primitives),
		Materials:     len(g.materials),
		Meshes:        len(g.meshes),
		Nodes:         len(g.nodes),
		Models:        len(g.models),
		Instances:     len(g.instances),
		MeshInstances: len(g.meshInstances),
		Lights:        len(g.lights),
	}
}

func (g *Graph) markMeshDirty(m *Mesh) {
	if m.dirty {
		return
	}
	m.dirty = true
	g.dirtyMeshes = append(g.dirtyMeshes, m.id)
}

// Dirty reports how many meshes wait for Flush.
func (g *Graph) Dirty() int {
	return len(g.dirtyMeshes)
}

// Flush settles the draw-queue membership of every mesh changed since the
// last call and returns how many meshes were visited. A second Flush without
// mutations in between writes nothing.
func (g *Graph) Flush() (int, error) {
	n := len(g.dirtyMeshes)
	for i, id := range g.dirtyMeshes {
		m := g.meshes[id]
		for _, mi := range m.instances {
			if err := g.meshInstances[mi].sync(); err != nil {
				// Keep the meshes that were not reached queued for the next call.
				g.dirtyMeshes = g.dirtyMeshes[i:]
				return i, err
			}
		}
		m.dirty = false
	}
	g.dirtyMeshes = g.dirtyMeshes[:0]
	return n, nil
}

func invalidID(kind string, id uint32) error {
	return fmt.Errorf("%s %d does not exist: %w", kind, id, core.ErrInvariantViolation)
}

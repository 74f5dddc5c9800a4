package scene

import (
	"fmt"

	"github.com/spaghettifunk/vesta/engine/arena"
	"github.com/spaghettifunk/vesta/engine/core"
	"github.com/spaghettifunk/vesta/engine/math"
)

/**
 * @brief One placement of a model. Owns the instance transform slot and the
 * mesh instances created when the model is applied.
 */
type ModelInstance struct {
	g  *Graph
	id InstanceID

	model         ModelID
	transform     math.Transform
	visible       bool
	meshInstances []MeshInstanceID

	slot arena.Allocation[math.Mat4]
}

// NewModelInstance places model with transform. Passing NoModel creates an
// empty instance that ApplyModel fills later.
func (g *Graph) NewModelInstance(model ModelID, transform math.Transform) (*ModelInstance, error) {
	if model != NoModel && g.Model(model) == nil {
		return nil, invalidID("model", uint32(model))
	}
	slot, err := g.buffers.Transforms.Allocate()
	if err != nil {
		return nil, err
	}
	inst := &ModelInstance{
		g:         g,
		id:        InstanceID(len(g.instances)),
		model:     NoModel,
		transform: transform,
		visible:   true,
		slot:      slot,
	}
	*inst.slot.Ptr = transform.Matrix()
	g.instances = append(g.instances, inst)
	if model != NoModel {
		if err := inst.ApplyModel(model); err != nil {
			g.instances = g.instances[:inst.id]
			_ = g.buffers.Transforms.Deallocate(slot)
			return nil, err
		}
	}
	core.LogDebug("model instance %d of model %d", inst.id, model)
	return inst, nil
}

func (mi *ModelInstance) ID() InstanceID                  { return mi.id }
func (mi *ModelInstance) Model() ModelID                  { return mi.model }
func (mi *ModelInstance) Transform() math.Transform       { return mi.transform }
func (mi *ModelInstance) Visible() bool                   { return mi.visible }
func (mi *ModelInstance) MeshInstances() []MeshInstanceID { return mi.meshInstances }

// Slot is the offset of the instance matrix in the transforms buffer.
func (mi *ModelInstance) Slot() uint32 { return mi.slot.Offset }

func (mi *ModelInstance) SetTransform(t math.Transform) {
	mi.transform = t
	*mi.slot.Ptr = t.Matrix()
}

func (mi *ModelInstance) SetVisible(visible bool) {
	mi.visible = visible
	for _, id := range mi.meshInstances {
		mi.g.meshInstances[id].writeCommands()
	}
}

// AABB is the model's box placed by the instance transform.
func (mi *ModelInstance) AABB() math.AABB {
	if mi.model == NoModel {
		return math.NewAABBEmpty()
	}
	return mi.g.models[mi.model].AABB().Transform(mi.transform.Matrix())
}

// ApplyModel expands every mesh of model into a mesh instance routed to its
// draw queue. An instance takes a model once. On failure the mesh instances
// created so far are discarded and the instance stays empty.
func (mi *ModelInstance) ApplyModel(model ModelID) error {
	if mi.model != NoModel {
		return fmt.Errorf("model instance %d already has model %d: %w", mi.id, mi.model, core.ErrInvariantViolation)
	}
	m := mi.g.Model(model)
	if m == nil {
		return invalidID("model", uint32(model))
	}
	mi.model = model
	for _, n := range m.Nodes() {
		for _, mesh := range mi.g.nodes[n].meshes {
			if _, err := mi.g.newMeshInstance(mesh, mi.id); err != nil {
				mi.rollback()
				return err
			}
		}
	}
	return nil
}

// rollback drops every mesh instance of mi, newest first. They are the tail
// of the graph's mesh instances since ApplyModel created them last.
func (mi *ModelInstance) rollback() {
	for k := len(mi.meshInstances) - 1; k >= 0; k-- {
		inst := mi.g.meshInstances[mi.meshInstances[k]]
		inst.discard()
		m := mi.g.meshes[inst.mesh]
		m.instances = m.instances[:len(m.instances)-1]
		mi.g.meshInstances = mi.g.meshInstances[:inst.id]
	}
	mi.meshInstances = nil
	mi.model = NoModel
}

/**
 * @brief The GPU draw unit of one mesh inside one model instance. It owns a
 * slot in the mesh instances buffer and one draw command per queue it is
 * routed to: one for static primitives, one per frame in flight for dynamic
 * ones. The primitive and material it was routed with are kept so that a
 * pending mesh change can be detected and moved by sync.
 */
type MeshInstance struct {
	g  *Graph
	id MeshInstanceID

	mesh     MeshID
	instance InstanceID

	primitive PrimitiveID
	material  MaterialID
	drawType  DrawType
	dynamic   bool
	draws     []DrawQueueIndex

	slot arena.Allocation[MeshInstanceUBO]
}

func (g *Graph) newMeshInstance(mesh MeshID, instance InstanceID) (*MeshInstance, error) {
	m := g.meshes[mesh]
	slot, err := g.buffers.MeshInstances.Allocate()
	if err != nil {
		return nil, err
	}
	mi := &MeshInstance{
		g:         g,
		id:        MeshInstanceID(len(g.meshInstances)),
		mesh:      mesh,
		instance:  instance,
		primitive: m.primitive,
		material:  m.material,
		slot:      slot,
	}
	if err := mi.route(); err != nil {
		_ = g.buffers.MeshInstances.Deallocate(slot)
		return nil, err
	}
	g.meshInstances = append(g.meshInstances, mi)
	m.instances = append(m.instances, mi.id)
	g.instances[instance].meshInstances = append(g.instances[instance].meshInstances, mi.id)
	mi.writeUBO()
	mi.writeCommands()
	return mi, nil
}

func (mi *MeshInstance) ID() MeshInstanceID      { return mi.id }
func (mi *MeshInstance) Mesh() MeshID            { return mi.mesh }
func (mi *MeshInstance) Instance() InstanceID    { return mi.instance }
func (mi *MeshInstance) DrawType() DrawType      { return mi.drawType }
func (mi *MeshInstance) Draws() []DrawQueueIndex { return mi.draws }

// Slot is the offset of the mesh instance; draws use it as firstInstance.
func (mi *MeshInstance) Slot() uint32 { return mi.slot.Offset }

// route classifies the current primitive and material and allocates the
// draws. The previous draws, if any, are released only once the new ones
// exist so a failure leaves the instance where it was.
func (mi *MeshInstance) route() error {
	prim := mi.g.primitives[mi.primitive]
	mat := mi.g.materials[mi.material]
	t, err := Classify(prim.topology, mat.Type())
	if err != nil {
		return err
	}
	dynamic := prim.lifetime == Dynamic
	if mi.draws != nil && t == mi.drawType && dynamic == mi.dynamic {
		return nil
	}
	queue := mi.g.buffers.DrawQueue
	draws, err := queue.Allocate(t, dynamic, uint32(mi.id))
	if err != nil {
		return err
	}
	for _, old := range mi.draws {
		owner, moved, err := queue.Remove(old)
		if err != nil {
			return err
		}
		if moved {
			mi.g.meshInstances[owner].relocated(old)
		}
	}
	mi.drawType, mi.dynamic, mi.draws = t, dynamic, draws
	return nil
}

// discard releases the draws and the slot of mi.
func (mi *MeshInstance) discard() {
	queue := mi.g.buffers.DrawQueue
	for _, idx := range mi.draws {
		owner, moved, err := queue.Remove(idx)
		if err == nil && moved {
			mi.g.meshInstances[owner].relocated(idx)
		}
	}
	mi.draws = nil
	_ = mi.g.buffers.MeshInstances.Deallocate(mi.slot)
}

// relocated updates the draw that was swapped into idx.
func (mi *MeshInstance) relocated(idx DrawQueueIndex) {
	for k := range mi.draws {
		if mi.draws[k].Queue == idx.Queue {
			mi.draws[k].Offset = idx.Offset
			return
		}
	}
}

func (mi *MeshInstance) writeUBO() {
	m := mi.g.meshes[mi.mesh]
	node := uint32(0)
	if m.node != NoNode {
		node = mi.g.nodes[m.node].Slot()
	}
	*mi.slot.Ptr = MeshInstanceUBO{
		Primitive: mi.g.primitives[mi.primitive].Slot(),
		Material:  mi.g.materials[mi.material].Slot(),
		Node:      node,
		Instance:  mi.g.instances[mi.instance].Slot(),
	}
}

func (mi *MeshInstance) writeCommands() {
	prim := mi.g.primitives[mi.primitive]
	var count uint32
	if mi.g.meshes[mi.mesh].visible && mi.g.instances[mi.instance].visible {
		count = 1
	}
	frames := uint32(len(mi.draws))
	for f, idx := range mi.draws {
		index, position := prim.ranges.Index, prim.ranges.Position
		if mi.dynamic {
			index, position = index.Frame(uint32(f), frames), position.Frame(uint32(f), frames)
		}
		cmd := mi.g.buffers.DrawQueue.Command(idx)
		cmd.IndexCount = index.Size
		cmd.InstanceCount = count
		cmd.FirstIndex = index.Offset
		cmd.VertexOffset = int32(position.Offset)
		cmd.FirstInstance = mi.slot.Offset
	}
}

// sync brings the instance in line with its mesh after SetPrimitive or
// SetMaterial.
func (mi *MeshInstance) sync() error {
	m := mi.g.meshes[mi.mesh]
	prevPrim, prevMat := mi.primitive, mi.material
	mi.primitive, mi.material = m.primitive, m.material
	if err := mi.route(); err != nil {
		mi.primitive, mi.material = prevPrim, prevMat
		return err
	}
	mi.writeUBO()
	mi.writeCommands()
	return nil
}

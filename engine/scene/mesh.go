package scene

import (
	"github.com/spaghettifunk/vesta/engine/core"
)

/**
 * @brief Binds one primitive to one material. The node link is set when the
 * mesh is attached with Node.AddMesh. Changing the primitive or the material
 * can change the draw queue of every instance of the mesh, so those setters
 * only mark the mesh dirty; Graph.Flush moves the draws.
 */
type Mesh struct {
	g  *Graph
	id MeshID

	primitive PrimitiveID
	material  MaterialID
	node      NodeID
	instances []MeshInstanceID

	visible bool
	dirty   bool
}

func (g *Graph) NewMesh(primitive PrimitiveID, material MaterialID) (*Mesh, error) {
	if g.Primitive(primitive) == nil {
		return nil, invalidID("primitive", uint32(primitive))
	}
	if g.Material(material) == nil {
		return nil, invalidID("material", uint32(material))
	}
	m := &Mesh{
		g:         g,
		id:        MeshID(len(g.meshes)),
		primitive: primitive,
		material:  material,
		node:      NoNode,
		visible:   true,
	}
	g.meshes = append(g.meshes, m)
	core.LogDebug("mesh %d: primitive %d material %d", m.id, primitive, material)
	return m, nil
}

func (m *Mesh) ID() MeshID                  { return m.id }
func (m *Mesh) Primitive() PrimitiveID      { return m.primitive }
func (m *Mesh) Material() MaterialID        { return m.material }
func (m *Mesh) Node() NodeID                { return m.node }
func (m *Mesh) Instances() []MeshInstanceID { return m.instances }
func (m *Mesh) Visible() bool               { return m.visible }
func (m *Mesh) Dirty() bool                 { return m.dirty }

func (m *Mesh) SetMaterial(material MaterialID) error {
	if m.g.Material(material) == nil {
		return invalidID("material", uint32(material))
	}
	if material == m.material {
		return nil
	}
	m.material = material
	m.g.markMeshDirty(m)
	return nil
}

func (m *Mesh) SetPrimitive(primitive PrimitiveID) error {
	if m.g.Primitive(primitive) == nil {
		return invalidID("primitive", uint32(primitive))
	}
	if primitive == m.primitive {
		return nil
	}
	m.primitive = primitive
	m.g.markMeshDirty(m)
	return nil
}

// SetVisible rewrites the instance count of every draw of the mesh.
func (m *Mesh) SetVisible(visible bool) {
	m.visible = visible
	for _, mi := range m.instances {
		m.g.meshInstances[mi].writeCommands()
	}
}

package scene

import (
	"fmt"

	"github.com/spaghettifunk/vesta/engine/arena"
	"github.com/spaghettifunk/vesta/engine/core"
	"github.com/spaghettifunk/vesta/engine/math"
)

/**
 * @brief A transform in the hierarchy. The parent link is an index with
 * NoNode for roots; children and meshes are owned by index.
 *
 * The global matrix is computed lazily and cached. Changing the local
 * transform invalidates the whole subtree and writes the new global
 * matrices to the transform slots of every node in it.
 */
type Node struct {
	g  *Graph
	id NodeID

	name      string
	transform math.Transform

	parent   NodeID
	children []NodeID
	meshes   []MeshID
	model    ModelID

	global      math.Mat4
	globalDirty bool
	visible     bool

	slot arena.Allocation[math.Mat4]
}

func (g *Graph) NewNode(transform math.Transform, name string) (*Node, error) {
	slot, err := g.buffers.Transforms.Allocate()
	if err != nil {
		return nil, err
	}
	n := &Node{
		g:           g,
		id:          NodeID(len(g.nodes)),
		name:        name,
		transform:   transform,
		parent:      NoNode,
		model:       NoModel,
		globalDirty: true,
		visible:     true,
		slot:        slot,
	}
	g.nodes = append(g.nodes, n)
	*n.slot.Ptr = n.GlobalMatrix()
	core.LogDebug("node %d %q", n.id, name)
	return n, nil
}

func (n *Node) ID() NodeID                { return n.id }
func (n *Node) Name() string              { return n.name }
func (n *Node) SetName(name string)       { n.name = name }
func (n *Node) Parent() NodeID            { return n.parent }
func (n *Node) Children() []NodeID        { return n.children }
func (n *Node) Meshes() []MeshID          { return n.meshes }
func (n *Node) Model() ModelID            { return n.model }
func (n *Node) Visible() bool             { return n.visible }
func (n *Node) Transform() math.Transform { return n.transform }

// Slot is the offset of the node's global matrix in the transforms buffer.
func (n *Node) Slot() uint32 { return n.slot.Offset }

func (n *Node) SetTransform(t math.Transform) {
	n.transform = t
	n.invalidate()
	n.writeSubtree()
}

func (n *Node) invalidate() {
	n.globalDirty = true
	for _, c := range n.children {
		n.g.nodes[c].invalidate()
	}
}

func (n *Node) writeSubtree() {
	*n.slot.Ptr = n.GlobalMatrix()
	for _, c := range n.children {
		n.g.nodes[c].writeSubtree()
	}
}

// GlobalMatrix is parent.GlobalMatrix() * local.
func (n *Node) GlobalMatrix() math.Mat4 {
	if !n.globalDirty {
		return n.global
	}
	m := n.transform.Matrix()
	if n.parent != NoNode {
		m = n.g.nodes[n.parent].GlobalMatrix().Mul(m)
	}
	n.global = m
	n.globalDirty = false
	return n.global
}

// AddChild links child under n. A child can have one parent only and the
// link must not create a cycle. Nodes owned by a model are frozen.
func (n *Node) AddChild(child NodeID) error {
	c := n.g.Node(child)
	if c == nil {
		return invalidID("node", uint32(child))
	}
	if n.model != NoModel {
		return fmt.Errorf("node %d belongs to model %d and cannot take children: %w", n.id, n.model, core.ErrInvariantViolation)
	}
	if c.parent != NoNode {
		return fmt.Errorf("node %d already has parent %d: %w", child, c.parent, core.ErrInvariantViolation)
	}
	if c.model != NoModel {
		return fmt.Errorf("node %d already owned by model %d: %w", child, c.model, core.ErrInvariantViolation)
	}
	for p := n.id; p != NoNode; p = n.g.nodes[p].parent {
		if p == child {
			return fmt.Errorf("node %d is an ancestor of node %d: %w", child, n.id, core.ErrInvariantViolation)
		}
	}
	n.children = append(n.children, child)
	c.parent = n.id
	c.invalidate()
	c.writeSubtree()
	return nil
}

// AddMesh attaches a mesh that is not attached to any node yet.
func (n *Node) AddMesh(mesh MeshID) error {
	m := n.g.Mesh(mesh)
	if m == nil {
		return invalidID("mesh", uint32(mesh))
	}
	if m.node != NoNode {
		return fmt.Errorf("mesh %d already owned by node %d: %w", mesh, m.node, core.ErrInvariantViolation)
	}
	m.node = n.id
	n.meshes = append(n.meshes, mesh)
	return nil
}

// SetVisible hides or shows the meshes of this node and its descendants.
func (n *Node) SetVisible(visible bool) {
	n.visible = visible
	for _, m := range n.meshes {
		n.g.meshes[m].SetVisible(visible)
	}
	for _, c := range n.children {
		n.g.nodes[c].SetVisible(visible)
	}
}

// AABB is the world-space box around the meshes of the subtree.
func (n *Node) AABB() math.AABB {
	box := math.NewAABBEmpty()
	m := n.GlobalMatrix()
	for _, id := range n.meshes {
		prim := n.g.primitives[n.g.meshes[id].primitive]
		box = box.Merge(prim.AABB().Transform(m))
	}
	for _, c := range n.children {
		box = box.Merge(n.g.nodes[c].AABB())
	}
	return box
}

// walk visits n and its descendants depth first.
func (n *Node) walk(fn func(*Node) error) error {
	if err := fn(n); err != nil {
		return err
	}
	for _, c := range n.children {
		if err := n.g.nodes[c].walk(fn); err != nil {
			return err
		}
	}
	return nil
}

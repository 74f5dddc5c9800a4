package scene

import (
	"fmt"

	"github.com/spaghettifunk/vesta/engine/core"
	"github.com/spaghettifunk/vesta/engine/math"
)

/**
 * @brief An immutable template: a forest of root nodes plus animations.
 * Models are never drawn directly; a ModelInstance places one in the world.
 */
type Model struct {
	g  *Graph
	id ModelID

	roots      []NodeID
	animations []*Animation
}

// NewModel takes ownership of the subtrees under roots. Roots must not have
// a parent and no node may belong to another model.
func (g *Graph) NewModel(roots []NodeID, animations []*Animation) (*Model, error) {
	id := ModelID(len(g.models))
	var owned []*Node
	claim := func(n *Node) error {
		if n.model != NoModel {
			return fmt.Errorf("node %d already owned by model %d: %w", n.id, n.model, core.ErrInvariantViolation)
		}
		n.model = id
		owned = append(owned, n)
		return nil
	}
	for _, r := range roots {
		root := g.Node(r)
		if root == nil {
			release(owned)
			return nil, invalidID("node", uint32(r))
		}
		if root.parent != NoNode {
			release(owned)
			return nil, fmt.Errorf("model root %d has parent %d: %w", r, root.parent, core.ErrInvariantViolation)
		}
		if err := root.walk(claim); err != nil {
			release(owned)
			return nil, err
		}
	}
	for _, a := range animations {
		for _, ch := range a.Channels {
			if g.Node(ch.Node) == nil || g.nodes[ch.Node].model != id {
				release(owned)
				return nil, fmt.Errorf("animation %q targets node %d outside the model: %w", a.Name, ch.Node, core.ErrInvariantViolation)
			}
			if int(ch.Sampler) >= len(a.Samplers) {
				release(owned)
				return nil, fmt.Errorf("animation %q has no sampler %d: %w", a.Name, ch.Sampler, core.ErrInvariantViolation)
			}
		}
	}
	m := &Model{g: g, id: id, roots: append([]NodeID(nil), roots...), animations: animations}
	g.models = append(g.models, m)
	core.LogDebug("model %d: %d roots, %d nodes, %d animations", id, len(roots), len(owned), len(animations))
	return m, nil
}

func release(nodes []*Node) {
	for _, n := range nodes {
		n.model = NoModel
	}
}

func (m *Model) ID() ModelID              { return m.id }
func (m *Model) Roots() []NodeID          { return m.roots }
func (m *Model) Animations() []*Animation { return m.animations }

// Nodes returns every node of the model, depth first from each root.
func (m *Model) Nodes() []NodeID {
	var out []NodeID
	for _, r := range m.roots {
		_ = m.g.nodes[r].walk(func(n *Node) error {
			out = append(out, n.id)
			return nil
		})
	}
	return out
}

func (m *Model) AABB() math.AABB {
	box := math.NewAABBEmpty()
	for _, r := range m.roots {
		box = box.Merge(m.g.nodes[r].AABB())
	}
	return box
}

// Animate poses the model with animation index at time t.
func (m *Model) Animate(index int, t float32) error {
	if index < 0 || index >= len(m.animations) {
		return fmt.Errorf("model %d has no animation %d: %w", m.id, index, core.ErrInvariantViolation)
	}
	m.animations[index].Animate(m.g, t)
	return nil
}

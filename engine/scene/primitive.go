package scene

import (
	"github.com/spaghettifunk/vesta/engine/arena"
	"github.com/spaghettifunk/vesta/engine/core"
	"github.com/spaghettifunk/vesta/engine/math"
)

// PrimitiveRanges locate a primitive's data in the shared vertex and index
// arenas. Unused attributes keep a zero range.
type PrimitiveRanges struct {
	Index    arena.Range
	Position arena.Range
	Normal   arena.Range
	UV       arena.Range
	Joint0   arena.Range
	Weight0  arena.Range
}

/**
 * @brief Geometry ranges plus bounds. Topology and lifetime never change
 * after creation.
 */
type Primitive struct {
	id       PrimitiveID
	ranges   PrimitiveRanges
	aabb     math.AABB
	topology Topology
	lifetime DynamicType

	tesselationLevel float32
	slot             arena.Allocation[PrimitiveUBO]
}

func (g *Graph) NewPrimitive(ranges PrimitiveRanges, aabb math.AABB, topology Topology, lifetime DynamicType) (*Primitive, error) {
	slot, err := g.buffers.Primitives.Allocate()
	if err != nil {
		return nil, err
	}
	p := &Primitive{
		id:               PrimitiveID(len(g.primitives)),
		ranges:           ranges,
		aabb:             aabb,
		topology:         topology,
		lifetime:         lifetime,
		tesselationLevel: 1,
		slot:             slot,
	}
	p.write()
	g.primitives = append(g.primitives, p)
	core.LogDebug("primitive %d: %d indices, %d vertices, %s", p.id, ranges.Index.Size, ranges.Position.Size, topology)
	return p, nil
}

func (p *Primitive) write() {
	*p.slot.Ptr = PrimitiveUBO{
		Index:            p.ranges.Index,
		Position:         p.ranges.Position,
		Normal:           p.ranges.Normal,
		UV:               p.ranges.UV,
		Joint0:           p.ranges.Joint0,
		Weight0:          p.ranges.Weight0,
		AABBMin:          p.aabb.Min,
		AABBMax:          p.aabb.Max,
		TesselationLevel: p.tesselationLevel,
		Topology:         uint32(p.topology),
		Type:             uint32(p.lifetime),
	}
}

func (p *Primitive) ID() PrimitiveID         { return p.id }
func (p *Primitive) Ranges() PrimitiveRanges { return p.ranges }
func (p *Primitive) Index() arena.Range      { return p.ranges.Index }
func (p *Primitive) Position() arena.Range   { return p.ranges.Position }
func (p *Primitive) Normal() arena.Range     { return p.ranges.Normal }
func (p *Primitive) UV() arena.Range         { return p.ranges.UV }
func (p *Primitive) Topology() Topology      { return p.topology }
func (p *Primitive) Type() DynamicType       { return p.lifetime }
func (p *Primitive) AABB() math.AABB         { return p.aabb }

// Slot is the offset of the primitive in the primitives buffer.
func (p *Primitive) Slot() uint32 { return p.slot.Offset }

func (p *Primitive) SetAABB(aabb math.AABB) {
	p.aabb = aabb
	p.slot.Ptr.AABBMin = aabb.Min
	p.slot.Ptr.AABBMax = aabb.Max
}

func (p *Primitive) TesselationLevel() float32 { return p.tesselationLevel }

func (p *Primitive) SetTesselationLevel(level float32) {
	p.tesselationLevel = level
	p.slot.Ptr.TesselationLevel = level
}

package scene

import (
	"github.com/chewxy/math32"
	"github.com/spaghettifunk/vesta/engine/arena"
	"github.com/spaghettifunk/vesta/engine/math"
)

// VertexData is CPU-side geometry ready to be copied into the vertex and
// index arenas.
type VertexData struct {
	Positions []math.Vec3
	Normals   []math.Vec3
	UVs       []math.Vec2
	Indices   []uint32
	// Joints0 and Weights0 are optional skinning attributes.
	Joints0  []math.Vec4
	Weights0 []math.Vec4
}

// BuiltPrimitive is one primitive recorded by a PrimitiveBuilder. Ranges
// index into the builder's own buffers and indices are relative to the
// primitive's first vertex.
type BuiltPrimitive struct {
	Ranges   PrimitiveRanges
	AABB     math.AABB
	Topology Topology
	Type     DynamicType
}

/**
 * @brief Accumulates shapes into one set of vertex buffers. Shapes added
 * between two NewPrimitive calls belong to the same primitive; NewPrimitive
 * closes the current one.
 */
type PrimitiveBuilder struct {
	data       VertexData
	aabb       math.AABB
	primitives []BuiltPrimitive
}

func NewPrimitiveBuilder() *PrimitiveBuilder {
	return &PrimitiveBuilder{aabb: math.NewAABBEmpty()}
}

func (b *PrimitiveBuilder) Data() VertexData             { return b.data }
func (b *PrimitiveBuilder) Primitives() []BuiltPrimitive { return b.primitives }

// Slice returns the vertex data of primitive i.
func (b *PrimitiveBuilder) Slice(i int) VertexData {
	r := b.primitives[i].Ranges
	return VertexData{
		Positions: b.data.Positions[r.Position.Offset:r.Position.End()],
		Normals:   b.data.Normals[r.Normal.Offset:r.Normal.End()],
		UVs:       b.data.UVs[r.UV.Offset:r.UV.End()],
		Indices:   b.data.Indices[r.Index.Offset:r.Index.End()],
	}
}

func (b *PrimitiveBuilder) lastEnd() PrimitiveRanges {
	if len(b.primitives) == 0 {
		return PrimitiveRanges{}
	}
	return b.primitives[len(b.primitives)-1].Ranges
}

// NewPrimitive closes everything added since the previous call into one
// primitive of the given topology.
func (b *PrimitiveBuilder) NewPrimitive(topology Topology, lifetime DynamicType) *PrimitiveBuilder {
	last := b.lastEnd()
	next := func(prev arena.Range, n int) arena.Range {
		return arena.Range{Offset: prev.End(), Size: uint32(n) - prev.End()}
	}
	b.primitives = append(b.primitives, BuiltPrimitive{
		Ranges: PrimitiveRanges{
			Index:    next(last.Index, len(b.data.Indices)),
			Position: next(last.Position, len(b.data.Positions)),
			Normal:   next(last.Normal, len(b.data.Normals)),
			UV:       next(last.UV, len(b.data.UVs)),
		},
		AABB:     b.aabb,
		Topology: topology,
		Type:     lifetime,
	})
	b.aabb = math.NewAABBEmpty()
	return b
}

// vertexID is the index of the next vertex relative to the open primitive.
func (b *PrimitiveBuilder) vertexID() uint32 {
	return uint32(len(b.data.Positions)) - b.lastEnd().Position.End()
}

func (b *PrimitiveBuilder) push(p, n math.Vec3, uv math.Vec2) {
	b.data.Positions = append(b.data.Positions, p)
	b.data.Normals = append(b.data.Normals, n)
	b.data.UVs = append(b.data.UVs, uv)
	b.aabb = b.aabb.MergePoint(p)
}

func (b *PrimitiveBuilder) indices(base uint32, idx ...uint32) {
	for _, i := range idx {
		b.data.Indices = append(b.data.Indices, base+i)
	}
}

// From appends predefined geometry. Missing normals and uvs are zero.
func (b *PrimitiveBuilder) From(data VertexData) *PrimitiveBuilder {
	id := b.vertexID()
	for i, p := range data.Positions {
		var n math.Vec3
		var uv math.Vec2
		if i < len(data.Normals) {
			n = data.Normals[i]
		}
		if i < len(data.UVs) {
			uv = data.UVs[i]
		}
		b.push(p, n, uv)
	}
	b.indices(id, data.Indices...)
	return b
}

// Triangle takes its corners in counter-clockwise order.
func (b *PrimitiveBuilder) Triangle(p1, p2, p3 math.Vec3) *PrimitiveBuilder {
	n := p2.Sub(p1).Cross(p3.Sub(p1)).Normalize()
	id := b.vertexID()
	b.push(p1, n, math.NewVec2(0, 0))
	b.push(p2, n, math.NewVec2(1, 0))
	b.push(p3, n, math.NewVec2(0, 1))
	b.indices(id, 0, 1, 2)
	return b
}

// Rectangle spans center±x±y.
func (b *PrimitiveBuilder) Rectangle(center, x, y math.Vec3) *PrimitiveBuilder {
	n := x.Cross(y).Normalize()
	id := b.vertexID()
	b.push(center.Add(x).Add(y), n, math.NewVec2(0, 0))
	b.push(center.Sub(x).Add(y), n, math.NewVec2(1, 0))
	b.push(center.Sub(x).Sub(y), n, math.NewVec2(1, 1))
	b.push(center.Add(x).Sub(y), n, math.NewVec2(0, 1))
	b.indices(id, 0, 1, 2, 0, 2, 3)
	return b
}

// Box is six rectangles around center; halfZ extends along x×y.
func (b *PrimitiveBuilder) Box(center, x, y math.Vec3, halfZ float32) *PrimitiveBuilder {
	z := x.Cross(y).Normalize().MulScalar(halfZ)
	neg := func(v math.Vec3) math.Vec3 { return v.MulScalar(-1) }
	b.Rectangle(center.Add(x), y, z)
	b.Rectangle(center.Sub(x), neg(y), z)
	b.Rectangle(center.Add(z), y, neg(x))
	b.Rectangle(center.Sub(z), y, x)
	b.Rectangle(center.Add(y), z, x)
	b.Rectangle(center.Sub(y), z, neg(x))
	return b
}

// Circle is a triangle fan facing z.
func (b *PrimitiveBuilder) Circle(center, z math.Vec3, radius float32, segments int) *PrimitiveBuilder {
	z = z.Normalize()
	right := z.Cross(math.NewVec3(0, 0, 1))
	if right.Length() < 1e-6 {
		right = math.NewVec3(1, 0, 0)
	}
	right = right.Normalize().MulScalar(radius)
	angle := 2 * math32.Pi / float32(segments)
	step := math.NewQuatFromAxisAngle(z, angle, true).ToMat4()

	id := b.vertexID()
	b.push(center, z, math.NewVec2(0.5, 0.5))
	b.push(center.Add(right), z, math.NewVec2(0.5, 1))
	for i := 2; i <= segments; i++ {
		right = right.Transform(step)
		a := float32(i-1) * angle
		b.push(center.Add(right), z, math.NewVec2(0.5+0.5*math32.Sin(a), 0.5+0.5*math32.Cos(a)))
		b.indices(id, 0, uint32(i-1), uint32(i))
	}
	b.indices(id, 0, uint32(segments), 1)
	return b
}

// Sphere is a latitude/longitude sphere.
func (b *PrimitiveBuilder) Sphere(center math.Vec3, radius float32, rings, sectors uint32) *PrimitiveBuilder {
	id := b.vertexID()
	for r := uint32(0); r <= rings; r++ {
		phi := math32.Pi * float32(r) / float32(rings)
		for s := uint32(0); s <= sectors; s++ {
			theta := 2 * math32.Pi * float32(s) / float32(sectors)
			n := math.NewVec3(math32.Sin(phi)*math32.Cos(theta), math32.Cos(phi), math32.Sin(phi)*math32.Sin(theta))
			b.push(center.Add(n.MulScalar(radius)), n, math.NewVec2(float32(s)/float32(sectors), float32(r)/float32(rings)))
		}
	}
	for r := uint32(0); r < rings; r++ {
		for s := uint32(0); s < sectors; s++ {
			a := r*(sectors+1) + s
			c := a + sectors + 1
			b.indices(id, a, c, a+1, a+1, c, c+1)
		}
	}
	return b
}

func (b *PrimitiveBuilder) gridVertices(nx, ny uint32, center, x, y math.Vec3, wx, wy float32) uint32 {
	ux, uy := x.Normalize(), y.Normalize()
	n := ux.Cross(uy)
	origin := center.Add(ux.MulScalar(float32(nx) * wx / 2)).Sub(uy.MulScalar(float32(ny) * wy / 2))
	dx, dy := ux.MulScalar(-wx), uy.MulScalar(wy)
	id := b.vertexID()
	for row := uint32(0); row <= ny; row++ {
		for col := uint32(0); col <= nx; col++ {
			p := origin.Add(dx.MulScalar(float32(col))).Add(dy.MulScalar(float32(row)))
			b.push(p, n, math.NewVec2(float32(col)/float32(nx), float32(row)/float32(ny)))
		}
	}
	return id
}

// Grid is an nx by ny triangulated plane of wx by wy cells.
func (b *PrimitiveBuilder) Grid(nx, ny uint32, center, x, y math.Vec3, wx, wy float32) *PrimitiveBuilder {
	id := b.gridVertices(nx, ny, center, x, y, wx, wy)
	for row := uint32(0); row < ny; row++ {
		for col := uint32(0); col < nx; col++ {
			s0, s1 := (nx+1)*row+col, (nx+1)*(row+1)+col
			b.indices(id, s0, s1, s1+1, s0, s1+1, s0+1)
		}
	}
	return b
}

// GridPatch emits one four-point patch per cell for tessellation.
func (b *PrimitiveBuilder) GridPatch(nx, ny uint32, center, x, y math.Vec3, wx, wy float32) *PrimitiveBuilder {
	id := b.gridVertices(nx, ny, center, x, y, wx, wy)
	for row := uint32(0); row < ny; row++ {
		for col := uint32(0); col < nx; col++ {
			s0, s1 := (nx+1)*row+col, (nx+1)*(row+1)+col
			b.indices(id, s0, s1, s1+1, s0+1)
		}
	}
	return b
}

func (b *PrimitiveBuilder) Line(p1, p2 math.Vec3) *PrimitiveBuilder {
	id := b.vertexID()
	b.push(p1, math.Vec3{}, math.Vec2{})
	b.push(p2, math.Vec3{}, math.Vec2{})
	b.indices(id, 0, 1)
	return b
}

func (b *PrimitiveBuilder) RectangleLine(center, x, y math.Vec3) *PrimitiveBuilder {
	id := b.vertexID()
	for _, p := range []math.Vec3{center.Add(x).Add(y), center.Sub(x).Add(y), center.Sub(x).Sub(y), center.Add(x).Sub(y)} {
		b.push(p, math.Vec3{}, math.Vec2{})
	}
	b.indices(id, 0, 1, 1, 2, 2, 3, 3, 0)
	return b
}

// BoxLine is the twelve edges of a box.
func (b *PrimitiveBuilder) BoxLine(center, x, y math.Vec3, halfZ float32) *PrimitiveBuilder {
	z := x.Cross(y).Normalize().MulScalar(halfZ)
	id := b.vertexID()
	for _, dz := range []math.Vec3{z.MulScalar(-1), z} {
		c := center.Add(dz)
		for _, p := range []math.Vec3{c.Add(x).Add(y), c.Sub(x).Add(y), c.Sub(x).Sub(y), c.Add(x).Sub(y)} {
			b.push(p, math.Vec3{}, math.Vec2{})
		}
	}
	b.indices(id,
		0, 1, 1, 2, 2, 3, 3, 0,
		4, 5, 5, 6, 6, 7, 7, 4,
		0, 4, 1, 5, 2, 6, 3, 7)
	return b
}

package math

// NewAABBEmpty returns a box that contains nothing.
func NewAABBEmpty() AABB {
	return AABB{
		Min: Vec3{K_INFINITY, K_INFINITY, K_INFINITY},
		Max: Vec3{-K_INFINITY, -K_INFINITY, -K_INFINITY},
	}
}

func NewAABB(min, max Vec3) AABB {
	return AABB{Min: min, Max: max}
}

// Valid reports whether the box contains at least one point.
func (b AABB) Valid() bool {
	return b.Min.X <= b.Max.X && b.Min.Y <= b.Max.Y && b.Min.Z <= b.Max.Z
}

// Merge returns the smallest box containing both boxes.
func (b AABB) Merge(other AABB) AABB {
	if !other.Valid() {
		return b
	}
	if !b.Valid() {
		return other
	}
	return AABB{Min: b.Min.Min(other.Min), Max: b.Max.Max(other.Max)}
}

// MergePoint grows the box to contain p.
func (b AABB) MergePoint(p Vec3) AABB {
	return AABB{Min: b.Min.Min(p), Max: b.Max.Max(p)}
}

func (b AABB) Center() Vec3 {
	return b.Min.Add(b.Max).MulScalar(0.5)
}

func (b AABB) HalfRange() Vec3 {
	return b.Max.Sub(b.Min).MulScalar(0.5)
}

/**
 * @brief Transforms the eight corners of the box by m and
 * returns the axis-aligned box around the result.
 */
func (b AABB) Transform(m Mat4) AABB {
	if !b.Valid() {
		return b
	}
	out := NewAABBEmpty()
	for i := 0; i < 8; i++ {
		c := Vec3{b.Min.X, b.Min.Y, b.Min.Z}
		if i&1 != 0 {
			c.X = b.Max.X
		}
		if i&2 != 0 {
			c.Y = b.Max.Y
		}
		if i&4 != 0 {
			c.Z = b.Max.Z
		}
		out = out.MergePoint(c.Transform(m))
	}
	return out
}

package math

func TransformCreate() Transform {
	return Transform{
		Translation: NewVec3Zero(),
		Scale:       NewVec3One(),
		Rotation:    NewQuatIdentity(),
	}
}

func TransformFromPosition(position Vec3) Transform {
	t := TransformCreate()
	t.Translation = position
	return t
}

func TransformFromPositionRotation(position Vec3, rotation Quaternion) Transform {
	t := TransformCreate()
	t.Translation = position
	t.Rotation = rotation
	return t
}

func TransformFromPositionRotationScale(position Vec3, rotation Quaternion, scale Vec3) Transform {
	return Transform{Translation: position, Scale: scale, Rotation: rotation}
}

// Translate returns a copy moved by translation.
func (t Transform) Translate(translation Vec3) Transform {
	t.Translation = t.Translation.Add(translation)
	return t
}

// Rotate returns a copy with rotation applied after the current one.
func (t Transform) Rotate(rotation Quaternion) Transform {
	t.Rotation = rotation.Mul(t.Rotation).Normalize()
	return t
}

/**
 * @brief Composes the local matrix T * R * S.
 */
func (t Transform) Matrix() Mat4 {
	m := t.Rotation.ToMat4()
	m.Data[0] *= t.Scale.X
	m.Data[1] *= t.Scale.X
	m.Data[2] *= t.Scale.X
	m.Data[4] *= t.Scale.Y
	m.Data[5] *= t.Scale.Y
	m.Data[6] *= t.Scale.Y
	m.Data[8] *= t.Scale.Z
	m.Data[9] *= t.Scale.Z
	m.Data[10] *= t.Scale.Z
	m.Data[12] = t.Translation.X
	m.Data[13] = t.Translation.Y
	m.Data[14] = t.Translation.Z
	return m
}

package math

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const tolerance float32 = 1e-5

func TestMat4MulIdentity(t *testing.T) {
	m := NewMat4Translation(NewVec3(1, 2, 3))
	assert.True(t, m.Mul(NewMat4Identity()).Compare(m, tolerance))
	assert.True(t, NewMat4Identity().Mul(m).Compare(m, tolerance))
}

func TestMat4MulOrder(t *testing.T) {
	tr := NewMat4Translation(NewVec3(10, 0, 0))
	sc := NewMat4Scale(NewVec3(2, 2, 2))

	// Scale first, then translate.
	p := NewVec3(1, 0, 0).Transform(tr.Mul(sc))
	assert.True(t, p.Compare(NewVec3(12, 0, 0), tolerance))

	// Translate first, then scale.
	p = NewVec3(1, 0, 0).Transform(sc.Mul(tr))
	assert.True(t, p.Compare(NewVec3(22, 0, 0), tolerance))
}

func TestMat4Inverse(t *testing.T) {
	tr := TransformFromPositionRotationScale(
		NewVec3(1, -2, 5),
		NewQuatFromAxisAngle(NewVec3(0, 1, 0), DegToRad(35), true),
		NewVec3(2, 3, 4),
	)
	m := tr.Matrix()
	assert.True(t, m.Mul(m.Inverse()).Compare(NewMat4Identity(), 1e-4))
}

func TestMat4InverseSingular(t *testing.T) {
	assert.Equal(t, NewMat4Identity(), Mat4{}.Inverse())
}

func TestMat4Transposed(t *testing.T) {
	m := NewMat4Translation(NewVec3(1, 2, 3))
	tt := m.Transposed()
	assert.Equal(t, float32(1), tt.At(3, 0))
	assert.Equal(t, float32(3), tt.At(3, 2))
	assert.Equal(t, m, tt.Transposed())
}

func TestQuaternionToMat4(t *testing.T) {
	q := NewQuatFromAxisAngle(NewVec3(0, 0, 1), K_HALF_PI, true)
	p := NewVec3(1, 0, 0).Transform(q.ToMat4())
	assert.True(t, p.Compare(NewVec3(0, 1, 0), tolerance))

	// Non-unit quaternions are normalized before conversion.
	scaled := Quaternion{q.X * 3, q.Y * 3, q.Z * 3, q.W * 3}
	assert.True(t, scaled.ToMat4().Compare(q.ToMat4(), tolerance))
}

func TestQuaternionMulComposesRotations(t *testing.T) {
	a := NewQuatFromAxisAngle(NewVec3(0, 1, 0), 0.3, true)
	b := NewQuatFromAxisAngle(NewVec3(1, 0, 0), 0.7, true)
	assert.True(t, a.Mul(b).ToMat4().Compare(a.ToMat4().Mul(b.ToMat4()), 1e-5))
}

func TestQuaternionSlerp(t *testing.T) {
	a := NewQuatIdentity()
	b := NewQuatFromAxisAngle(NewVec3(0, 1, 0), K_HALF_PI, true)
	half := a.Slerp(b, 0.5)
	expected := NewQuatFromAxisAngle(NewVec3(0, 1, 0), K_HALF_PI/2, true)
	assert.True(t, Vec4(half).Compare(Vec4(expected), 1e-5))
	assert.True(t, Vec4(a.Slerp(b, 1)).Compare(Vec4(b), 1e-5))
}

func TestTransformMatrixIsTRS(t *testing.T) {
	tr := TransformFromPositionRotationScale(
		NewVec3(1, 2, 3),
		NewQuatFromAxisAngle(NewVec3(0, 0, 1), 0.5, true),
		NewVec3(2, 1, 0.5),
	)
	expected := NewMat4Translation(tr.Translation).
		Mul(tr.Rotation.ToMat4()).
		Mul(NewMat4Scale(tr.Scale))
	assert.True(t, tr.Matrix().Compare(expected, tolerance))
}

func TestLookAt(t *testing.T) {
	view := NewMat4LookAt(NewVec3(0, 0, 5), NewVec3Zero(), NewVec3Up())
	p := NewVec3Zero().Transform(view)
	assert.True(t, p.Compare(NewVec3(0, 0, -5), tolerance))
}

func TestAABBMergeAndTransform(t *testing.T) {
	empty := NewAABBEmpty()
	assert.False(t, empty.Valid())

	a := NewAABB(NewVec3(-1, -1, -1), NewVec3(1, 1, 1))
	assert.Equal(t, a, empty.Merge(a))
	assert.Equal(t, a, a.Merge(empty))

	b := NewAABB(NewVec3(0, 0, 0), NewVec3(3, 2, 1))
	m := a.Merge(b)
	assert.Equal(t, NewVec3(-1, -1, -1), m.Min)
	assert.Equal(t, NewVec3(3, 2, 1), m.Max)

	moved := a.Transform(NewMat4Translation(NewVec3(10, 0, 0)))
	assert.True(t, moved.Center().Compare(NewVec3(10, 0, 0), tolerance))
	assert.True(t, moved.HalfRange().Compare(NewVec3(1, 1, 1), tolerance))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 5, Clamp(7, 0, 5))
	assert.Equal(t, float32(0), Clamp(float32(-1), 0, 1))
	assert.Equal(t, uint32(3), Clamp(uint32(3), 1, 4))
}

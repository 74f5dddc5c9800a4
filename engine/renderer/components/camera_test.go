package components

import (
	"testing"
	"unsafe"

	"github.com/spaghettifunk/vesta/engine/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCameraUBOLayout(t *testing.T) {
	// 3 mat4, 3 vec4, 6 planes, 5 scalars padded to a vec4 boundary.
	assert.Equal(t, uintptr(3*64+3*16+6*16+32), unsafe.Sizeof(CameraUBO{}))
}

func TestCameraFlushClearsIncoherent(t *testing.T) {
	c := NewPerspectiveCamera(math.NewVec3(0, 0, 5), math.NewVec3Zero())
	require.True(t, c.Incoherent())

	ubo := c.Flush()
	assert.False(t, c.Incoherent())
	assert.Equal(t, math.NewVec4(0, 0, 5, 1), ubo.Eye)
	assert.True(t, ubo.ProjView.Compare(ubo.Proj.Mul(ubo.View), 1e-5))

	c.MoveForward(1)
	assert.True(t, c.Incoherent())
	ubo = c.Flush()
	assert.True(t, ubo.Eye.Compare(math.NewVec4(0, 0, 4, 1), 1e-5))
}

func TestCameraChangeDimension(t *testing.T) {
	c := NewPerspectiveCamera(math.NewVec3(0, 0, 5), math.NewVec3Zero())
	c.Flush()

	c.ChangeDimension(0, 600)
	assert.False(t, c.Incoherent(), "a zero extent is ignored")

	c.ChangeDimension(800, 600)
	require.True(t, c.Incoherent())
	ubo := c.Flush()
	assert.Equal(t, float32(800), ubo.W)
	assert.Equal(t, float32(600), ubo.H)
	assert.True(t, ubo.Proj.Compare(math.NewMat4Perspective(DefaultFOV, 800.0/600.0, 0.1, 1000), 1e-6))
}

func TestCameraPitchStopsAtPole(t *testing.T) {
	c := NewPerspectiveCamera(math.NewVec3Zero(), math.NewVec3(0, 0, -1))
	c.Pitch(10)
	dir := c.Focus().Sub(c.Location()).Normalize()
	assert.Less(t, dir.Dot(math.NewVec3Up()), float32(0.9999))
	assert.Greater(t, dir.Dot(math.NewVec3Up()), float32(0.99))
}

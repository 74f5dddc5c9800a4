package ocean

import (
	"testing"
	"unsafe"

	"github.com/spaghettifunk/vesta/engine/core"
	"github.com/spaghettifunk/vesta/engine/math"
	"github.com/spaghettifunk/vesta/engine/renderer/vulkan"
	"github.com/spaghettifunk/vesta/engine/renderer/vulkan/vktest"
	"github.com/spaghettifunk/vesta/engine/scene"
	"github.com/spaghettifunk/vesta/engine/systems/systemstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOcean(t *testing.T) (*Ocean, *vktest.Device) {
	t.Helper()
	sm, device := systemstest.NewSceneManager(t, systemstest.Config())
	o := New(systemstest.Shaders(ShaderPing, ShaderPong), 7)
	require.NoError(t, o.Init(sm))
	t.Cleanup(o.Destroy)
	return o, device
}

func TestBitReversal(t *testing.T) {
	assert.Equal(t, []int32{0, 4, 2, 6, 1, 5, 3, 7}, BitReversal(8))
	assert.Equal(t, []int32{0, 1}, BitReversal(2))
}

func TestPhillips(t *testing.T) {
	o := New(nil, 1)
	assert.Zero(t, o.Phillips(math.NewVec2(0, 0)))

	along := o.Phillips(math.NewVec2(0.08, 0.06))
	against := o.Phillips(math.NewVec2(-0.08, -0.06))
	across := o.Phillips(math.NewVec2(-0.06, 0.08))
	assert.Greater(t, along, float32(0))
	assert.InDelta(t, along*againstWindScale, against, 1e-6*along)
	assert.InDelta(t, 0, across, 1e-6*along, "no waves perpendicular to the wind")
}

func TestNewField(t *testing.T) {
	o, device := newOcean(t)
	field, err := o.NewField(100, 16)
	require.NoError(t, err)
	require.NotNil(t, field)
	assert.True(t, o.Enabled())

	prim := o.Primitive()
	assert.Equal(t, scene.Dynamic, prim.Type())
	assert.Equal(t, uint32(16*16), prim.Position().Size/systemstest.Frames)
	assert.Len(t, device.ComputePipes, 2)
	assert.Equal(t, ShaderPing, device.ComputePipes[0].Name)

	rev := vulkan.Slice[int32](device.BufferByName("ocean-bit-reversal"), 16)
	assert.Equal(t, BitReversal(16), rev)

	data := vulkan.Slice[Datum](device.BufferByName("ocean-datum"), 2*16*16)
	assert.Equal(t, math.NewVec2(0, 0), data[8*16+8].H0, "no energy at k = 0")
	var energy float32
	for _, d := range data {
		energy += d.H0.X*d.H0.X + d.H0.Y*d.H0.Y
	}
	assert.Greater(t, energy, float32(0))

	_, err = o.NewField(100, 16)
	assert.ErrorIs(t, err, core.ErrInvariantViolation, "one field per ocean")
}

func TestNewFieldErrors(t *testing.T) {
	o := New(systemstest.Shaders(), 1)
	_, err := o.NewField(100, 16)
	assert.ErrorIs(t, err, core.ErrInvariantViolation, "used before Init")

	o, _ = newOcean(t)
	for _, n := range []int{0, 1, 12} {
		_, err := o.NewField(100, n)
		assert.ErrorIs(t, err, core.ErrInvariantViolation, "n=%d", n)
	}
	_, err = o.NewField(0, 16)
	assert.ErrorIs(t, err, core.ErrInvariantViolation)
}

func TestMissingShader(t *testing.T) {
	sm, _ := systemstest.NewSceneManager(t, systemstest.Config())
	o := New(systemstest.Shaders(ShaderPing), 1)
	require.NoError(t, o.Init(sm))
	t.Cleanup(o.Destroy)
	_, err := o.NewField(100, 16)
	assert.ErrorIs(t, err, core.ErrExternalResource)
}

func TestUpdate(t *testing.T) {
	o, device := newOcean(t)
	cb := vktest.NewRecorder(device)
	require.NoError(t, o.Update(cb, 0, 0.1))
	assert.Empty(t, cb.Calls, "nothing to do without a field")

	_, err := o.NewField(100, 16)
	require.NoError(t, err)
	require.NoError(t, o.Update(cb, 1, 0.25))
	require.NoError(t, o.Update(cb, 0, 0.25))

	assert.Equal(t, [][3]uint32{{1, 1, 5}, {1, 1, 5}, {1, 1, 5}, {1, 1, 5}}, cb.Dispatches)
	assert.Equal(t, 4, cb.Count("MemoryBarrier"))
	assert.InDelta(t, 0.5, o.Time(), 1e-6)

	require.Len(t, cb.PushConstants, 4)
	pushed := func(i int) OceanConstant {
		return *(*OceanConstant)(unsafe.Pointer(&cb.PushConstants[i][0]))
	}
	frame1, frame0 := pushed(0), pushed(2)
	pos := o.Primitive().Position()
	assert.Equal(t, int32(pos.Frame(1, systemstest.Frames).Offset), frame1.PositionOffset)
	assert.Equal(t, int32(pos.Frame(0, systemstest.Frames).Offset), frame0.PositionOffset)
	assert.InDelta(t, 0.25, frame1.Time, 1e-6)
	assert.InDelta(t, 0.5, frame0.Time, 1e-6)
	assert.Equal(t, float32(100), frame0.PatchSize)
	assert.Equal(t, int32(16), frame0.N)
	assert.Equal(t, float32(-1), frame0.ChoppyScale)
}

func TestUpdateWind(t *testing.T) {
	o, device := newOcean(t)
	_, err := o.NewField(100, 16)
	require.NoError(t, err)
	data := vulkan.Slice[Datum](device.BufferByName("ocean-datum"), 16*16)
	before := data[3*16+5].H0

	o.UpdateWind(math.NewVec2(0, 1), 30)
	assert.NotEqual(t, before, data[3*16+5].H0)
	o.UpdateWaveAmplitude(0)
	for _, d := range data {
		assert.Equal(t, math.NewVec2(0, 0), d.H0)
	}
}

func TestDestroy(t *testing.T) {
	sm, device := systemstest.NewSceneManager(t, systemstest.Config())
	o := New(systemstest.Shaders(ShaderPing, ShaderPong), 1)
	require.NoError(t, o.Init(sm))
	_, err := o.NewField(50, 8)
	require.NoError(t, err)
	pipes, buffers := device.DestroyedPipes, device.DestroyedBuffers
	o.Destroy()
	assert.Equal(t, pipes+2, device.DestroyedPipes)
	assert.Equal(t, buffers+2, device.DestroyedBuffers)
	assert.False(t, o.Enabled())
	require.NoError(t, o.Update(vktest.NewRecorder(device), 0, 1))
}

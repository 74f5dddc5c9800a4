package shadow

import (
	"testing"

	"github.com/chewxy/math32"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vesta/engine/core"
	"github.com/spaghettifunk/vesta/engine/math"
	"github.com/spaghettifunk/vesta/engine/renderer/vulkan"
	"github.com/spaghettifunk/vesta/engine/renderer/vulkan/vktest"
	"github.com/spaghettifunk/vesta/engine/systems/systemstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDepthBias(t *testing.T) {
	assert.Equal(t, float32(0.0025), DepthBias(4096))
	assert.Equal(t, float32(0.0025), DepthBias(2048))
	assert.Equal(t, float32(0.005), DepthBias(1024))
	assert.Equal(t, float32(0.0075), DepthBias(512))
}

func TestCascadeSplits(t *testing.T) {
	splits := CascadeSplits(0.1, 1000, 0.95, 4)
	require.Len(t, splits, 4)
	prev := float32(0.1)
	for _, s := range splits {
		assert.Greater(t, s, prev)
		prev = s
	}
	assert.Equal(t, float32(1000), splits[3])

	linear := CascadeSplits(1, 100, 0, 4)
	assert.InDelta(t, 25.75, linear[0], 1e-4)
	assert.InDelta(t, 50.5, linear[1], 1e-4)

	log := CascadeSplits(1, 100, 1, 2)
	assert.InDelta(t, 10, log[0], 1e-4)
}

func TestFitCascades(t *testing.T) {
	settings := DefaultSettings()
	dir := math.NewVec3(-0.5, -1, -0.3)
	location := math.NewVec3(3, 2, 1)
	view := math.NewMat4LookAt(location, math.NewVec3(3, 2, -10), math.NewVec3Up())
	fov, aspect := math.DegToRad(45), float32(16.0/9.0)
	cascades := FitCascades(view, fov, aspect, 0.1, 100, dir, settings)
	require.Len(t, cascades, 4)

	lightView := LightView(dir)
	invView := view.Inverse()
	tanHalf := math32.Tan(fov / 2)
	for i, c := range cascades {
		toMap := c.Proj.Mul(lightView)
		for _, z := range []float32{c.Start, c.End} {
			h := z * tanHalf
			w := h * aspect
			for _, corner := range []math.Vec3{{X: -w, Y: -h, Z: -z}, {X: w, Y: h, Z: -z}, {X: w, Y: -h, Z: -z}} {
				p := corner.Transform(invView).Transform(toMap)
				assert.LessOrEqual(t, math32.Abs(p.X), float32(1.01), "cascade %d", i)
				assert.LessOrEqual(t, math32.Abs(p.Y), float32(1.01), "cascade %d", i)
				assert.GreaterOrEqual(t, p.Z, float32(0), "cascade %d", i)
				assert.LessOrEqual(t, p.Z, float32(1), "cascade %d", i)
			}
		}
	}
	assert.Equal(t, float32(0.1), cascades[0].Start)
	assert.Equal(t, cascades[0].End, cascades[1].Start)

	turned := math.NewMat4LookAt(location, math.NewVec3(-8, 2, 1), math.NewVec3Up())
	for i, c := range FitCascades(turned, fov, aspect, 0.1, 100, dir, settings) {
		assert.Equal(t, cascades[i].Radius, c.Radius, "extents do not depend on the camera rotation")
	}
}

func TestLightViewStraightDown(t *testing.T) {
	m := LightView(math.NewVec3(0, -1, 0))
	p := math.NewVec3(0, -5, 0).Transform(m)
	assert.InDelta(t, -5, p.Z, 1e-5, "the light looks down its -Z axis")
	assert.False(t, math32.IsNaN(m.Data[0]))
}

func TestInit(t *testing.T) {
	sm, device := systemstest.NewSceneManager(t, systemstest.Config())
	s := New(DefaultSettings())
	require.NoError(t, s.Init(sm))
	t.Cleanup(s.Destroy)

	info := s.ShadowMap().Image.Info
	assert.Equal(t, uint32(2048), info.Width)
	assert.Equal(t, uint32(4), info.ArrayLayers)
	assert.Equal(t, vk.FormatD16Unorm, info.Format)
	assert.Equal(t, vk.ImageViewType2dArray, info.ViewType)

	sampler := s.ShadowMap().Sampler.Info
	assert.Equal(t, vk.Bool32(vk.True), sampler.CompareEnable)
	assert.Equal(t, vk.CompareOpLess, sampler.CompareOp)
	assert.NotNil(t, device.BufferByName("shadow-light"))

	for _, n := range []uint32{0, MaxCascades + 1} {
		settings := DefaultSettings()
		settings.NumCascades = n
		assert.ErrorIs(t, New(settings).Init(sm), core.ErrInvariantViolation, "%d cascades", n)
	}
}

func TestUpdate(t *testing.T) {
	sm, device := systemstest.NewSceneManager(t, systemstest.Config())
	s := New(DefaultSettings())
	require.NoError(t, s.Init(sm))
	t.Cleanup(s.Destroy)
	sm.Camera().ChangeDimension(160, 90)

	cb := vktest.NewRecorder(device)
	require.NoError(t, s.Update(cb, 0, 0.016))
	assert.Equal(t, 1, cb.Count("MemoryBarrier"))
	require.Len(t, s.Cascades(), 4)

	light := vulkan.Slice[LightAttribs](device.BufferByName("shadow-light"), 1)[0]
	assert.Equal(t, int32(4), light.Shadow.NumCascades)
	assert.Equal(t, float32(0.0025), light.Shadow.FixedDepthBias)
	assert.Equal(t, sm.Camera().ZFar(), light.Shadow.CascadeCamSpaceZEnd[0].W)
	assert.Equal(t, s.Cascades()[0].End, light.Shadow.Cascades[0].StartEndZ.Y)

	require.NoError(t, s.Update(cb, 1, 0.016))
	assert.Equal(t, 1, cb.Count("MemoryBarrier"), "nothing moved")

	require.NoError(t, s.SetLightDirection(math.NewVec3(0, -1, 0)))
	require.NoError(t, s.Update(cb, 0, 0.016))
	assert.Equal(t, 2, cb.Count("MemoryBarrier"))
	assert.InDelta(t, -1, s.Light().Direction.Y, 1e-6)

	sm.Camera().MoveForward(1)
	require.NoError(t, s.Update(cb, 1, 0.016))
	assert.Equal(t, 3, cb.Count("MemoryBarrier"))

	assert.ErrorIs(t, s.SetLightDirection(math.NewVec3Zero()), core.ErrInvariantViolation)
}

func TestDestroy(t *testing.T) {
	sm, device := systemstest.NewSceneManager(t, systemstest.Config())
	s := New(DefaultSettings())
	require.NoError(t, s.Init(sm))
	images, buffers := device.DestroyedImages, device.DestroyedBuffers
	s.Destroy()
	assert.Equal(t, images+1, device.DestroyedImages)
	assert.Equal(t, buffers+1, device.DestroyedBuffers)
	assert.Nil(t, s.ShadowMap())
	require.NoError(t, s.Update(vktest.NewRecorder(device), 0, 1))
	s.Destroy()
}

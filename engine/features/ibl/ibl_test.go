package ibl

import (
	"testing"

	"github.com/spaghettifunk/vesta/engine/core"
	"github.com/spaghettifunk/vesta/engine/math"
	"github.com/spaghettifunk/vesta/engine/renderer/vulkan"
	"github.com/spaghettifunk/vesta/engine/systems"
	"github.com/spaghettifunk/vesta/engine/systems/systemstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallOptions() Options {
	return Options{
		BRDFSize:         8,
		BRDFSamples:      64,
		IrradianceSize:   4,
		IrradianceSteps:  IrradianceSteps{Phi: 36, Theta: 16},
		PrefilteredSize:  8,
		PrefilterSamples: 16,
	}
}

func TestCubeCoord(t *testing.T) {
	for face := 0; face < 6; face++ {
		for _, uv := range [][2]float32{{0.1, 0.2}, {0.5, 0.5}, {0.9, 0.7}} {
			dir := faceDirection(face, uv[0], uv[1])
			f, u, v := cubeCoord(dir)
			assert.Equal(t, face, f)
			assert.InDelta(t, uv[0], u, 1e-5, "face %d", face)
			assert.InDelta(t, uv[1], v, 1e-5, "face %d", face)
		}
	}
	f, _, _ := cubeCoord(math.NewVec3(0, -1, 0))
	assert.Equal(t, 3, f)
}

func TestHammersley(t *testing.T) {
	assert.Equal(t, math.NewVec2(0, 0), Hammersley(0, 4))
	p := Hammersley(1, 4)
	assert.InDelta(t, 0.25, p.X, 1e-6)
	assert.InDelta(t, 0.5, p.Y, 1e-6)
	assert.InDelta(t, 0.75, Hammersley(3, 4).Y, 1e-6)
}

func TestImportanceSampleGGX(t *testing.T) {
	n := math.NewVec3(0, 1, 0)
	for i := uint32(0); i < 16; i++ {
		h := ImportanceSampleGGX(Hammersley(i, 16), n, 0.5)
		assert.InDelta(t, 1, h.Length(), 1e-5)
		assert.GreaterOrEqual(t, h.Dot(n), float32(0))
	}
	smooth := ImportanceSampleGGX(math.NewVec2(0.3, 0.7), n, 0)
	assert.True(t, smooth.Compare(n, 1e-3), "a mirror only reflects along n")
}

func TestIntegrateBRDF(t *testing.T) {
	scale, bias := IntegrateBRDF(1, 0.001, 64)
	assert.InDelta(t, 1, scale, 0.02)
	assert.InDelta(t, 0, bias, 0.02)

	for _, r := range []float32{0.25, 0.5, 1} {
		scale, bias := IntegrateBRDF(0.5, r, 128)
		assert.Greater(t, scale, float32(0))
		assert.GreaterOrEqual(t, bias, float32(0))
		assert.LessOrEqual(t, scale+bias, float32(1.01))
	}
}

func TestUniformEnvironment(t *testing.T) {
	c := math.NewVec3(0.2, 0.4, 0.6)
	env := UniformEnvironment(4, c)
	irr := env.Irradiance(math.NewVec3(0.3, 0.9, 0.1).Normalize(), IrradianceSteps{Phi: 36, Theta: 16})
	assert.True(t, irr.Compare(c, 0.05), "got %v", irr)
	pre := env.Prefilter(math.NewVec3(1, 0, 0), 0.7, 16)
	assert.True(t, pre.Compare(c, 1e-4), "got %v", pre)
}

func TestNewEnvironment(t *testing.T) {
	faces := make([]byte, 2*2*4*6)
	faces[0] = 255
	env, err := NewEnvironment(2, faces)
	require.NoError(t, err)
	assert.Equal(t, float32(1), env.Faces[0])

	_, err = NewEnvironment(2, faces[:10])
	assert.ErrorIs(t, err, core.ErrInvariantViolation)
}

func TestDownsample(t *testing.T) {
	level := UniformEnvironment(4, math.NewVec3One()).Faces
	out := downsample(level, 4)
	assert.Len(t, out, 2*2*4*6)
	for _, v := range out {
		assert.Equal(t, float32(1), v)
	}
	assert.Len(t, downsample(downsample(out, 2), 1), 4*6)
}

func TestGenerate(t *testing.T) {
	sm, device := systemstest.NewSceneManager(t, systemstest.Config())
	js, err := systems.NewJobSystem(2, 8)
	require.NoError(t, err)
	defer js.Shutdown()
	sm.SetJobSystem(js)

	b := New(smallOptions())
	assert.ErrorIs(t, b.Generate(UniformEnvironment(4, math.NewVec3One())), core.ErrInvariantViolation, "used before Init")
	require.NoError(t, b.Init(sm))
	t.Cleanup(b.Destroy)

	images := len(device.Images)
	require.NoError(t, b.Generate(UniformEnvironment(4, math.NewVec3(0.5, 0.5, 0.5))))
	assert.True(t, sm.UsesEnvironmentMap())
	require.Len(t, device.Images, images+3)

	maps := b.Maps()
	assert.Equal(t, uint32(8), maps.BRDFLUT.Image.Info.Width)
	assert.Equal(t, uint32(3), maps.Irradiance.Image.Info.MipLevels)
	assert.Equal(t, uint32(6), maps.Irradiance.Image.Info.ArrayLayers)
	assert.Equal(t, vulkan.MipLevels(8, 8), maps.Prefiltered.Image.Info.MipLevels)

	destroyed := device.DestroyedImages
	require.NoError(t, b.Generate(UniformEnvironment(4, math.NewVec3One())))
	assert.Len(t, device.Images, images+5, "the BRDF table is kept")
	assert.Equal(t, destroyed+2, device.DestroyedImages, "previous cubes are released")
	assert.Same(t, maps.BRDFLUT, b.Maps().BRDFLUT)

	assert.ErrorIs(t, b.Generate(nil), core.ErrInvariantViolation)
}

func TestGenerateBRDFLUTInline(t *testing.T) {
	sm, _ := systemstest.NewSceneManager(t, systemstest.Config())
	b := New(smallOptions())
	require.NoError(t, b.Init(sm))
	t.Cleanup(b.Destroy)
	lut, err := b.GenerateBRDFLUT()
	require.NoError(t, err)
	assert.Equal(t, uint32(8), lut.Image.Info.Height)
	lut.Destroy(sm.Device())

	want := BRDFLUT(4, 16)
	assert.Len(t, want, 4*4*4)
	assert.Equal(t, float32(1), want[3])
}

func TestOptionsValidate(t *testing.T) {
	sm, _ := systemstest.NewSceneManager(t, systemstest.Config())
	opts := smallOptions()
	opts.PrefilterSamples = 0
	assert.ErrorIs(t, New(opts).Init(sm), core.ErrInvariantViolation)
	assert.NoError(t, DefaultOptions().validate())
}

func TestDestroy(t *testing.T) {
	sm, device := systemstest.NewSceneManager(t, systemstest.Config())
	b := New(smallOptions())
	require.NoError(t, b.Init(sm))
	require.NoError(t, b.Generate(UniformEnvironment(2, math.NewVec3One())))
	destroyed := device.DestroyedImages
	b.Destroy()
	assert.Equal(t, destroyed+3, device.DestroyedImages)
	b.Destroy()
}

package sky

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/vesta/engine/core"
	"github.com/spaghettifunk/vesta/engine/math"
	"github.com/spaghettifunk/vesta/engine/renderer/vulkan"
	"github.com/spaghettifunk/vesta/engine/renderer/vulkan/vktest"
	"github.com/spaghettifunk/vesta/engine/systems"
	"github.com/spaghettifunk/vesta/engine/systems/systemstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallOptions() Options {
	return Options{
		TransmittanceWidth:  16,
		TransmittanceHeight: 8,
		Scattering:          ScatteringSize{R: 2, Mu: 4, MuS: 4, Nu: 2},
		IrradianceWidth:     8,
		IrradianceHeight:    4,
		Exposure:            10,
	}
}

func TestTransmittanceToTop(t *testing.T) {
	a := EarthAtmosphere()
	zenith := a.TransmittanceToTop(a.BottomRadius, 1)
	horizon := a.TransmittanceToTop(a.BottomRadius, 0.05)
	assert.Greater(t, zenith.X, horizon.X)
	assert.Greater(t, zenith.X, zenith.Z, "blue is scattered more than red")
	assert.LessOrEqual(t, zenith.X, float32(1))

	space := a.TransmittanceToTop(a.TopRadius, 1)
	assert.InDelta(t, 1, space.X, 1e-4, "nothing left to cross at the top")
}

func TestTransmittanceMapping(t *testing.T) {
	a := EarthAtmosphere()
	r, mu := a.BottomRadius+10, float32(0.3)
	u, v := a.transmittanceUV(r, mu, 256, 64)
	r2, mu2 := a.transmittanceRMu(u, v, 256, 64)
	assert.InDelta(t, r, r2, 1e-2)
	assert.InDelta(t, mu, mu2, 1e-3)
}

func TestDensityProfile(t *testing.T) {
	a := EarthAtmosphere()
	assert.InDelta(t, 1, a.RayleighDensity.density(0), 1e-6)
	assert.InDelta(t, 0.3679, a.RayleighDensity.density(8), 1e-3)
	assert.InDelta(t, 1, a.AbsorptionDensity.density(25), 1e-5, "ozone peaks at 25km")
	assert.Zero(t, a.AbsorptionDensity.density(0))
	assert.True(t, a.rayIntersectsGround(a.BottomRadius+1, -0.5))
	assert.False(t, a.rayIntersectsGround(a.BottomRadius+1, 0.5))
}

func TestEnable(t *testing.T) {
	sm, device := systemstest.NewSceneManager(t, systemstest.Config())
	sky := New(EarthAtmosphere(), smallOptions())
	assert.ErrorIs(t, sky.Enable(), core.ErrInvariantViolation, "used before Init")

	require.NoError(t, sky.Init(sm))
	images := len(device.Images)
	require.NoError(t, sky.Enable())
	assert.True(t, sky.Enabled())
	assert.True(t, sm.UsesSky())

	created := device.Images[images:]
	require.Len(t, created, 3)
	assert.Equal(t, uint32(16), created[0].Info.Width)
	assert.Equal(t, uint32(8), created[1].Info.Width, "nu times mu_s")
	assert.Equal(t, uint32(4), created[1].Info.Height)
	assert.Equal(t, uint32(2), created[1].Info.Depth)

	atmosphere := device.BufferByName("sky-atmosphere")
	require.NotNil(t, atmosphere)
	u := vulkan.Slice[AtmosphereUniform](atmosphere, 1)[0]
	assert.Equal(t, int32(16), u.TransmittanceTextureWidth)
	assert.Equal(t, int32(4), u.ScatteringTextureMuSize)
	assert.Equal(t, float32(6360), u.Atmosphere.BottomRadius)

	sky.Disable()
	assert.False(t, sm.UsesSky())
	require.NoError(t, sky.Enable())
	assert.Len(t, device.Images, images+3, "tables are computed once")

	destroyed := device.DestroyedImages
	sky.Destroy()
	assert.False(t, sm.UsesSky())
	assert.Equal(t, destroyed+3, device.DestroyedImages)
}

func TestScatteringIsPositive(t *testing.T) {
	sm, _ := systemstest.NewSceneManager(t, systemstest.Config())
	sky := New(EarthAtmosphere(), smallOptions())
	require.NoError(t, sky.Init(sm))
	tables, err := sky.tables()
	require.NoError(t, err)

	w, h, d := smallOptions().Scattering.Extent()
	require.Len(t, tables.scattering, w*h*d*4)
	var sum float32
	for i := 0; i < len(tables.scattering); i += 4 {
		assert.GreaterOrEqual(t, tables.scattering[i], float32(0))
		sum += tables.scattering[i+2]
	}
	assert.Greater(t, sum, float32(0), "some blue light is scattered")
	assert.Len(t, tables.irradiance, 8*4*4)
}

func TestTablesFromDir(t *testing.T) {
	dir := t.TempDir()
	opts := smallOptions()
	opts.TableDir = dir
	want := make([]float32, opts.TransmittanceWidth*opts.TransmittanceHeight*4)
	for i := range want {
		want[i] = 0.5
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, transmittanceFile), vulkan.AsBytes(want), 0o644))

	sm, _ := systemstest.NewSceneManager(t, systemstest.Config())
	sky := New(EarthAtmosphere(), opts)
	require.NoError(t, sky.Init(sm))
	tables, err := sky.tables()
	require.NoError(t, err)
	assert.Equal(t, want, tables.transmittance)
	assert.NotEmpty(t, tables.scattering, "missing tables are computed")

	opts.Scattering.Nu = 0
	bad := New(EarthAtmosphere(), opts)
	require.NoError(t, bad.Init(sm))
	_, err = bad.tables()
	assert.ErrorIs(t, err, core.ErrInvariantViolation)
}

func TestSetSunPosition(t *testing.T) {
	sm, device := systemstest.NewSceneManager(t, systemstest.Config())
	js, err := systems.NewJobSystem(2, 4)
	require.NoError(t, err)
	defer js.Shutdown()
	sm.SetJobSystem(js)

	sky := New(EarthAtmosphere(), smallOptions())
	require.NoError(t, sky.Init(sm))
	t.Cleanup(sky.Destroy)
	require.NoError(t, sky.Enable())

	sky.SetSunPosition(0, 0)
	assert.True(t, sky.SunDirection().Compare(math.NewVec3Up(), 1e-6))
	sun := vulkan.Slice[SunUniform](device.BufferByName("sky-sun"), 1)[0]
	assert.InDelta(t, 1, sun.SunDirection.Y, 1e-6)
	assert.InDelta(t, 10*exposureScale, sun.Exposure, 1e-9)

	cb := vktest.NewRecorder(device)
	require.NoError(t, sky.Update(cb, 0, 0.016))
	assert.Equal(t, 1, cb.Count("MemoryBarrier"))
	require.NoError(t, sky.Update(cb, 1, 0.016))
	assert.Equal(t, 1, cb.Count("MemoryBarrier"), "nothing moved")

	sky.SetSunPosition(90, 90)
	dir := sky.SunDirection()
	assert.InDelta(t, 0, dir.Y, 1e-6)
	assert.InDelta(t, 1, dir.Z, 1e-6)
}

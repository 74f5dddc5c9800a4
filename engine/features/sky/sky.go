// Package sky precomputes a single-scattering atmosphere and binds it as the
// background of the deferred pass.
package sky

import (
	"fmt"
	"path/filepath"

	"github.com/chewxy/math32"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vesta/engine/arena"
	"github.com/spaghettifunk/vesta/engine/assets/loaders"
	"github.com/spaghettifunk/vesta/engine/core"
	"github.com/spaghettifunk/vesta/engine/math"
	"github.com/spaghettifunk/vesta/engine/renderer/vulkan"
	"github.com/spaghettifunk/vesta/engine/systems"
)

// AtmosphereUniform is the layout of the atmosphere uniform of the sky set.
type AtmosphereUniform struct {
	TransmittanceTextureWidth  int32
	TransmittanceTextureHeight int32
	ScatteringTextureRSize     int32
	ScatteringTextureMuSize    int32
	ScatteringTextureMuSSize   int32
	ScatteringTextureNuSize    int32
	IrradianceTextureWidth     int32
	IrradianceTextureHeight    int32

	SkySpectralRadianceToLuminance math.Vec4
	SunSpectralRadianceToLuminance math.Vec4
	Atmosphere                     AtmosphereParameters
}

type SunUniform struct {
	WhitePoint   math.Vec4
	EarthCenter  math.Vec4
	SunDirection math.Vec4
	SunSize      math.Vec2
	Exposure     float32
	_            float32
}

// Radiance to luminance factors of the three precomputed wavelengths.
var (
	skyRadianceToLuminance = math.NewVec4(114974.916, 71305.954, 65310.548, 0)
	sunRadianceToLuminance = math.NewVec4(98242.786, 69954.398, 66475.012, 0)
)

const (
	exposureScale float32 = 1e-5

	transmittanceFile = "transmittance.dat"
	scatteringFile    = "scattering.dat"
	irradianceFile    = "irradiance.dat"
)

/**
 * @brief Table sizes and the optional folder of prebaked tables. A table
 * found in TableDir replaces its CPU precomputation; its size must match.
 */
type Options struct {
	TransmittanceWidth  int
	TransmittanceHeight int
	Scattering          ScatteringSize
	IrradianceWidth     int
	IrradianceHeight    int
	Exposure            float32
	TableDir            string
}

func DefaultOptions() Options {
	return Options{
		TransmittanceWidth:  256,
		TransmittanceHeight: 64,
		Scattering:          ScatteringSize{R: 8, Mu: 32, MuS: 16, Nu: 4},
		IrradianceWidth:     64,
		IrradianceHeight:    16,
		Exposure:            10,
	}
}

type Sky struct {
	sm      *systems.SceneManager
	opts    Options
	params  AtmosphereParameters
	enabled bool
	dirty   bool

	zenith  float32
	azimuth float32

	atmosphereUBO *arena.HostUniform[AtmosphereUniform]
	sunUBO        *arena.HostUniform[SunUniform]
	sampler       *vulkan.Sampler
	transmittance *vulkan.Texture
	scattering    *vulkan.Texture
	irradiance    *vulkan.Texture
	pool          *vulkan.DescriptorPool
	set           *vulkan.DescriptorSet
}

func New(params AtmosphereParameters, opts Options) *Sky {
	return &Sky{params: params, opts: opts, zenith: math.DegToRad(60)}
}

func (s *Sky) Name() string { return "sky" }

func (s *Sky) Init(sm *systems.SceneManager) error {
	s.sm = sm
	return nil
}

func (s *Sky) Enabled() bool                     { return s.enabled }
func (s *Sky) Atmosphere() *AtmosphereParameters { return &s.params }

// Enable precomputes the tables on first use and binds the sky set.
func (s *Sky) Enable() error {
	if s.sm == nil {
		return fmt.Errorf("sky used before Init: %w", core.ErrInvariantViolation)
	}
	if s.enabled {
		return nil
	}
	if s.set == nil {
		if err := s.build(); err != nil {
			s.destroyResources()
			return err
		}
	}
	s.sm.BindSky(s.set)
	s.enabled = true
	core.LogInfo("Sky enabled.")
	return nil
}

func (s *Sky) Disable() {
	if s.sm != nil && s.enabled {
		s.sm.BindSky(nil)
	}
	s.enabled = false
}

// SetSunPosition places the sun by its zenith and azimuth angles in degrees.
func (s *Sky) SetSunPosition(zenithDeg, azimuthDeg float32) {
	s.zenith, s.azimuth = math.DegToRad(zenithDeg), math.DegToRad(azimuthDeg)
	if s.sunUBO != nil {
		sun := s.sunUBO.Value()
		sun.SunDirection = s.SunDirection().ToVec4(0)
		s.sunUBO.Update(sun)
		s.dirty = true
	}
}

// SunDirection points from the ground towards the sun, +Y up.
func (s *Sky) SunDirection() math.Vec3 {
	sinZ, cosZ := math32.Sincos(s.zenith)
	sinA, cosA := math32.Sincos(s.azimuth)
	return math.NewVec3(cosA*sinZ, cosZ, sinA*sinZ)
}

// Update makes a moved sun visible to the deferred pass.
func (s *Sky) Update(cb vulkan.CommandRecorder, frame uint32, elapsed float32) error {
	if s.dirty && cb != nil {
		cb.MemoryBarrier(vk.PipelineStageFlags(vk.PipelineStageHostBit), vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
			vk.AccessFlags(vk.AccessHostWriteBit), vk.AccessFlags(vk.AccessUniformReadBit))
	}
	s.dirty = false
	return nil
}

func (s *Sky) Resize(width, height uint32) error {
	return nil
}

func (s *Sky) Destroy() {
	s.Disable()
	s.destroyResources()
}

func (s *Sky) destroyResources() {
	if s.sm == nil {
		return
	}
	d := s.sm.Device()
	for _, t := range []*vulkan.Texture{s.transmittance, s.scattering, s.irradiance} {
		if t != nil {
			t.Destroy(d)
		}
	}
	s.transmittance, s.scattering, s.irradiance = nil, nil, nil
	if s.sampler != nil {
		d.DestroySampler(s.sampler)
		s.sampler = nil
	}
	if s.atmosphereUBO != nil {
		s.atmosphereUBO.Destroy(d)
		s.atmosphereUBO = nil
	}
	if s.sunUBO != nil {
		s.sunUBO.Destroy(d)
		s.sunUBO = nil
	}
	if s.pool != nil {
		d.DestroyDescriptorPool(s.pool)
		s.pool = nil
	}
	s.set = nil
}

func (s *Sky) build() error {
	d := s.sm.Device()
	o := s.opts
	tables, err := s.tables()
	if err != nil {
		return err
	}

	s.sampler, err = vulkan.NewSamplerBuilder().AddressMode(vk.SamplerAddressModeClampToEdge).Build(d)
	if err != nil {
		return err
	}
	s.transmittance, err = vulkan.NewFloatTexture2D(d, "sky-transmittance",
		uint32(o.TransmittanceWidth), uint32(o.TransmittanceHeight), tables.transmittance, s.sampler)
	if err != nil {
		return err
	}
	w, h, depth := o.Scattering.Extent()
	s.scattering, err = vulkan.NewFloatTexture3D(d, "sky-scattering", uint32(w), uint32(h), uint32(depth), tables.scattering, s.sampler)
	if err != nil {
		return err
	}
	s.irradiance, err = vulkan.NewFloatTexture2D(d, "sky-irradiance",
		uint32(o.IrradianceWidth), uint32(o.IrradianceHeight), tables.irradiance, s.sampler)
	if err != nil {
		return err
	}

	if s.atmosphereUBO, err = arena.NewHostUniform[AtmosphereUniform](d, "sky-atmosphere"); err != nil {
		return err
	}
	s.atmosphereUBO.Update(s.atmosphereUniform())
	if s.sunUBO, err = arena.NewHostUniform[SunUniform](d, "sky-sun"); err != nil {
		return err
	}
	s.sunUBO.Update(s.sunUniform())

	def := s.sm.SkySet()
	if s.pool, err = vulkan.NewDescriptorPoolBuilder().SetLayout(def.Layout, 1).Build(d); err != nil {
		return err
	}
	if s.set, err = def.CreateSet(s.pool); err != nil {
		return err
	}
	def.Atmosphere.Set(s.atmosphereUBO.Buffer())
	def.Sun.Set(s.sunUBO.Buffer())
	def.Transmittance.Set(s.sampler, s.transmittance.Image)
	def.Scattering.Set(s.sampler, s.scattering.Image)
	def.Irradiance.Set(s.sampler, s.irradiance.Image)
	return def.Update(s.set)
}

func (s *Sky) atmosphereUniform() AtmosphereUniform {
	o := s.opts
	return AtmosphereUniform{
		TransmittanceTextureWidth:      int32(o.TransmittanceWidth),
		TransmittanceTextureHeight:     int32(o.TransmittanceHeight),
		ScatteringTextureRSize:         int32(o.Scattering.R),
		ScatteringTextureMuSize:        int32(o.Scattering.Mu),
		ScatteringTextureMuSSize:       int32(o.Scattering.MuS),
		ScatteringTextureNuSize:        int32(o.Scattering.Nu),
		IrradianceTextureWidth:         int32(o.IrradianceWidth),
		IrradianceTextureHeight:        int32(o.IrradianceHeight),
		SkySpectralRadianceToLuminance: skyRadianceToLuminance,
		SunSpectralRadianceToLuminance: sunRadianceToLuminance,
		Atmosphere:                     s.params,
	}
}

func (s *Sky) sunUniform() SunUniform {
	r := s.params.SunAngularRadius
	return SunUniform{
		WhitePoint:   math.NewVec4(1, 1, 1, 0),
		EarthCenter:  math.NewVec4(0, -s.params.BottomRadius, 0, 0),
		SunDirection: s.SunDirection().ToVec4(0),
		SunSize:      math.NewVec2(math32.Tan(r), math32.Cos(r)),
		Exposure:     s.opts.Exposure * exposureScale,
	}
}

type skyTables struct {
	transmittance []float32
	scattering    []float32
	irradiance    []float32
}

// tables loads the prebaked tables of TableDir and computes the others. The
// scattering volume is split into one job per depth slice.
func (s *Sky) tables() (*skyTables, error) {
	o := s.opts
	if o.TransmittanceWidth <= 0 || o.TransmittanceHeight <= 0 || o.IrradianceWidth <= 0 || o.IrradianceHeight <= 0 ||
		o.Scattering.R <= 0 || o.Scattering.Mu <= 0 || o.Scattering.MuS <= 0 || o.Scattering.Nu <= 0 {
		return nil, fmt.Errorf("sky table sizes %+v: %w", o, core.ErrInvariantViolation)
	}
	sw, sh, sd := o.Scattering.Extent()
	t := &skyTables{}
	load := func(name string, count int) []float32 {
		if o.TableDir == "" {
			return nil
		}
		path := filepath.Join(o.TableDir, name)
		data, err := loaders.LoadFloatTable(path, count)
		if err != nil {
			core.LogDebug("Sky table %s not loaded: %v", path, err)
			return nil
		}
		return data
	}
	if t.transmittance = load(transmittanceFile, o.TransmittanceWidth*o.TransmittanceHeight*4); t.transmittance == nil {
		t.transmittance = s.params.ComputeTransmittance(o.TransmittanceWidth, o.TransmittanceHeight)
	}
	p := &precomputed{
		atmosphere:    &s.params,
		transmittance: &table2D{Width: o.TransmittanceWidth, Height: o.TransmittanceHeight, Data: t.transmittance},
	}
	if t.irradiance = load(irradianceFile, o.IrradianceWidth*o.IrradianceHeight*4); t.irradiance == nil {
		t.irradiance = p.directIrradiance(o.IrradianceWidth, o.IrradianceHeight)
	}
	if t.scattering = load(scatteringFile, sw*sh*sd*4); t.scattering == nil {
		t.scattering = make([]float32, sw*sh*sd*4)
		jobs := make([]systems.Job, sd)
		for z := range jobs {
			jobs[z] = func() error {
				p.scatteringSlice(t.scattering, z, o.Scattering)
				return nil
			}
		}
		if err := s.sm.RunJobs(jobs...); err != nil {
			return nil, err
		}
	}
	return t, nil
}

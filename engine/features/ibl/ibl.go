// Package ibl precomputes the image based lighting maps of an environment
// cube: the split sum BRDF table, the diffuse irradiance cube and the
// roughness prefiltered specular cube.
package ibl

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vesta/engine/assets/loaders"
	"github.com/spaghettifunk/vesta/engine/core"
	"github.com/spaghettifunk/vesta/engine/math"
	"github.com/spaghettifunk/vesta/engine/renderer/vulkan"
	"github.com/spaghettifunk/vesta/engine/systems"
)

type Options struct {
	BRDFSize         uint32
	BRDFSamples      uint32
	IrradianceSize   uint32
	IrradianceSteps  IrradianceSteps
	PrefilteredSize  uint32
	PrefilterSamples uint32
}

func DefaultOptions() Options {
	return Options{
		BRDFSize:         128,
		BRDFSamples:      256,
		IrradianceSize:   16,
		IrradianceSteps:  IrradianceSteps{Phi: 180, Theta: 64},
		PrefilteredSize:  128,
		PrefilterSamples: 32,
	}
}

func (o Options) validate() error {
	if o.BRDFSize == 0 || o.IrradianceSize == 0 || o.PrefilteredSize == 0 {
		return fmt.Errorf("environment map sizes must be positive: %w", core.ErrInvariantViolation)
	}
	if o.BRDFSamples == 0 || o.PrefilterSamples == 0 || o.IrradianceSteps.Phi == 0 || o.IrradianceSteps.Theta == 0 {
		return fmt.Errorf("environment map sample counts must be positive: %w", core.ErrInvariantViolation)
	}
	return nil
}

type IBL struct {
	sm   *systems.SceneManager
	opts Options

	lutSampler  *vulkan.Sampler
	cubeSampler *vulkan.Sampler
	brdfLUT     *vulkan.Texture
	maps        systems.IBLMaps
}

func New(opts Options) *IBL {
	return &IBL{opts: opts}
}

func (b *IBL) Name() string { return "ibl" }

func (b *IBL) Init(sm *systems.SceneManager) error {
	if err := b.opts.validate(); err != nil {
		return err
	}
	b.sm = sm
	var err error
	b.lutSampler, err = vulkan.NewSamplerBuilder().
		AddressMode(vk.SamplerAddressModeClampToEdge).
		Build(sm.Device())
	if err != nil {
		return err
	}
	b.cubeSampler, err = vulkan.NewSamplerBuilder().
		AddressMode(vk.SamplerAddressModeClampToEdge).
		MipmapMode(vk.SamplerMipmapModeLinear).
		MaxLod(float32(vulkan.MipLevels(b.opts.PrefilteredSize, b.opts.PrefilteredSize))).
		Build(sm.Device())
	return err
}

func (b *IBL) Maps() systems.IBLMaps { return b.maps }

// GenerateBRDFLUT computes the split sum table. It does not depend on the
// environment and is kept across Generate calls.
func (b *IBL) GenerateBRDFLUT() (*vulkan.Texture, error) {
	if b.sm == nil {
		return nil, fmt.Errorf("ibl used before Init: %w", core.ErrInvariantViolation)
	}
	size := b.opts.BRDFSize
	out := make([]float32, size*size*4)
	jobs := make([]systems.Job, size)
	for y := range jobs {
		row := uint32(y)
		jobs[y] = func() error {
			brdfRow(out, row, size, b.opts.BRDFSamples)
			return nil
		}
	}
	if err := b.sm.RunJobs(jobs...); err != nil {
		return nil, err
	}
	return vulkan.NewFloatTexture2D(b.sm.Device(), "ibl-brdf-lut", size, size, out, b.lutSampler)
}

// GenerateIrradiance convolves env into a diffuse irradiance cube with a
// box filtered mip chain.
func (b *IBL) GenerateIrradiance(env *Environment) (*vulkan.Texture, error) {
	if b.sm == nil {
		return nil, fmt.Errorf("ibl used before Init: %w", core.ErrInvariantViolation)
	}
	size := b.opts.IrradianceSize
	base := make([]float32, size*size*4*6)
	err := b.perFace(func(face int) {
		fillFace(base, face, size, func(dir math.Vec3) math.Vec3 {
			return env.Irradiance(dir, b.opts.IrradianceSteps)
		})
	})
	if err != nil {
		return nil, err
	}
	levels := [][]float32{base}
	for l := 1; l < int(vulkan.MipLevels(size, size)); l++ {
		levels = append(levels, downsample(levels[l-1], mipSize(size, l-1)))
	}
	return vulkan.NewFloatTextureCube(b.sm.Device(), "ibl-irradiance", size, levels, b.cubeSampler)
}

// GeneratePrefiltered stores one roughness per mip level, from 0 at the
// base level to 1 at the last.
func (b *IBL) GeneratePrefiltered(env *Environment) (*vulkan.Texture, error) {
	if b.sm == nil {
		return nil, fmt.Errorf("ibl used before Init: %w", core.ErrInvariantViolation)
	}
	size := b.opts.PrefilteredSize
	count := int(vulkan.MipLevels(size, size))
	levels := make([][]float32, count)
	var jobs []systems.Job
	for l := range levels {
		s := mipSize(size, l)
		levels[l] = make([]float32, s*s*4*6)
		roughness := float32(0)
		if count > 1 {
			roughness = float32(l) / float32(count-1)
		}
		for face := 0; face < 6; face++ {
			level, face := levels[l], face
			jobs = append(jobs, func() error {
				fillFace(level, face, s, func(dir math.Vec3) math.Vec3 {
					return env.Prefilter(dir, roughness, b.opts.PrefilterSamples)
				})
				return nil
			})
		}
	}
	if err := b.sm.RunJobs(jobs...); err != nil {
		return nil, err
	}
	return vulkan.NewFloatTextureCube(b.sm.Device(), "ibl-prefiltered", size, levels, b.cubeSampler)
}

func (b *IBL) perFace(fn func(face int)) error {
	jobs := make([]systems.Job, 6)
	for face := range jobs {
		f := face
		jobs[face] = func() error {
			fn(f)
			return nil
		}
	}
	return b.sm.RunJobs(jobs...)
}

// Generate builds every map of env and binds them to the deferred pass.
// Maps of a previous environment are released once the new ones are bound.
func (b *IBL) Generate(env *Environment) error {
	if b.sm == nil {
		return fmt.Errorf("ibl used before Init: %w", core.ErrInvariantViolation)
	}
	if env == nil || env.Size == 0 {
		return fmt.Errorf("empty environment: %w", core.ErrInvariantViolation)
	}
	if b.brdfLUT == nil {
		lut, err := b.GenerateBRDFLUT()
		if err != nil {
			return err
		}
		b.brdfLUT = lut
	}
	irradiance, err := b.GenerateIrradiance(env)
	if err != nil {
		return err
	}
	prefiltered, err := b.GeneratePrefiltered(env)
	if err != nil {
		irradiance.Destroy(b.sm.Device())
		return err
	}
	maps := systems.IBLMaps{Irradiance: irradiance, Prefiltered: prefiltered, BRDFLUT: b.brdfLUT}
	if err := b.sm.UseEnvironmentMap(maps); err != nil {
		irradiance.Destroy(b.sm.Device())
		prefiltered.Destroy(b.sm.Device())
		return err
	}
	b.releaseCubes()
	b.maps = maps
	core.LogInfo("Environment maps generated from a %d texel cube.", env.Size)
	return nil
}

// GenerateFromFiles loads six face images (+X, -X, +Y, -Y, +Z, -Z).
func (b *IBL) GenerateFromFiles(paths [6]string) error {
	size, faces, err := loaders.LoadCube(paths)
	if err != nil {
		return err
	}
	env, err := NewEnvironment(size, faces)
	if err != nil {
		return err
	}
	return b.Generate(env)
}

func (b *IBL) Update(cb vulkan.CommandRecorder, frame uint32, elapsed float32) error { return nil }
func (b *IBL) Resize(width, height uint32) error                                     { return nil }

func (b *IBL) releaseCubes() {
	device := b.sm.Device()
	if b.maps.Irradiance != nil {
		b.maps.Irradiance.Destroy(device)
	}
	if b.maps.Prefiltered != nil {
		b.maps.Prefiltered.Destroy(device)
	}
	b.maps = systems.IBLMaps{}
}

func (b *IBL) Destroy() {
	if b.sm == nil {
		return
	}
	device := b.sm.Device()
	b.releaseCubes()
	if b.brdfLUT != nil {
		b.brdfLUT.Destroy(device)
		b.brdfLUT = nil
	}
	for _, s := range []*vulkan.Sampler{b.lutSampler, b.cubeSampler} {
		if s != nil {
			device.DestroySampler(s)
		}
	}
	b.lutSampler, b.cubeSampler = nil, nil
	b.sm = nil
}

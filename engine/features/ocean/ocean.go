// Package ocean animates a translucent sea patch with an FFT wave model.
// The initial spectrum is generated on the CPU, the per-frame transform
// runs in two compute passes that write the patch vertices in place.
package ocean

import (
	"fmt"
	"math/bits"
	"math/rand/v2"
	"unsafe"

	"github.com/chewxy/math32"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vesta/engine/core"
	"github.com/spaghettifunk/vesta/engine/math"
	"github.com/spaghettifunk/vesta/engine/renderer/vulkan"
	"github.com/spaghettifunk/vesta/engine/scene"
	"github.com/spaghettifunk/vesta/engine/systems"
)

const (
	ShaderPing = "ocean/wave_fft_ping.comp.spv"
	ShaderPong = "ocean/wave_fft_pong.comp.spv"

	DefaultPatchSize float32 = 500
	DefaultN                 = 128

	gravity          float32 = 9.8
	spectrumDamping  float32 = 0.001
	againstWindScale float32 = 0.07
	// local_size_x of both wave shaders
	workGroupSize uint32 = 128
	// one z layer per output: height, x and z displacement, x and z slope
	dispatchLayers uint32 = 5
)

var (
	SeaColor = math.NewVec4(39.0/255.0, 93.0/255.0, 121.0/255.0, 0.8)
	SeaPBR   = math.NewVec4(0, 0.5, 0.3, 0)
)

var stageCompute = vk.ShaderStageFlags(vk.ShaderStageComputeBit)

// OceanSet exposes the wave data and the shared vertex arenas.
type OceanSet struct {
	vulkan.DescriptorSetDef

	BitReversal vulkan.BufferBinding
	Datum       vulkan.BufferBinding
	Positions   vulkan.BufferBinding
	Normals     vulkan.BufferBinding
}

func NewOceanSet() *OceanSet {
	s := &OceanSet{}
	s.BitReversal = s.Buffer(stageCompute)
	s.Datum = s.Buffer(stageCompute)
	s.Positions = s.Buffer(stageCompute)
	s.Normals = s.Buffer(stageCompute)
	return s
}

// OceanConstant is pushed before both passes. Offsets are in vertices.
type OceanConstant struct {
	PositionOffset int32
	NormalOffset   int32
	DataOffset     int32
	PatchSize      float32
	ChoppyScale    float32
	TimeScale      float32
	Time           float32
	N              int32
}

// Datum is one cell of the wave field.
type Datum struct {
	H0     math.Vec2
	Ht     math.Vec2
	HDx    math.Vec2
	HDz    math.Vec2
	SlopeX math.Vec2
	SlopeZ math.Vec2
}

type Ocean struct {
	sm     *systems.SceneManager
	source systems.ShaderSource
	rng    *rand.Rand

	set      *OceanSet
	layout   *vulkan.PipelineLayout
	pool     *vulkan.DescriptorPool
	oceanSet *vulkan.DescriptorSet
	ping     *vulkan.Pipeline
	pong     *vulkan.Pipeline

	bitReversal *vulkan.Buffer
	datum       *vulkan.Buffer
	primitive   *scene.Primitive
	field       *scene.ModelInstance

	constant      OceanConstant
	n             int
	windDir       math.Vec2
	windSpeed     float32
	waveAmplitude float32
	time          float32
}

// New creates an ocean whose shaders come from source. seed drives the
// random phases of the spectrum.
func New(source systems.ShaderSource, seed uint64) *Ocean {
	return &Ocean{
		source:        source,
		rng:           rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		constant:      OceanConstant{PatchSize: DefaultPatchSize, ChoppyScale: -1, TimeScale: 5},
		n:             DefaultN,
		windDir:       math.NewVec2(0.8, 0.6),
		windSpeed:     60,
		waveAmplitude: 10,
	}
}

func (o *Ocean) Name() string { return "ocean" }

func (o *Ocean) Init(sm *systems.SceneManager) error {
	o.sm = sm
	o.set = NewOceanSet()
	if err := o.set.Init(sm.Device()); err != nil {
		return err
	}
	b := vulkan.NewPipelineLayoutBuilder().DescriptorSetLayout(0, o.set.Layout)
	b.PushConstantRange(stageCompute, uint32(unsafe.Sizeof(OceanConstant{})))
	var err error
	if o.layout, err = b.Build(sm.Device()); err != nil {
		return err
	}
	if o.pool, err = vulkan.NewDescriptorPoolBuilder().SetLayout(o.set.Layout, 1).Build(sm.Device()); err != nil {
		return err
	}
	o.oceanSet, err = o.set.CreateSet(o.pool)
	return err
}

func (o *Ocean) Enabled() bool               { return o.field != nil }
func (o *Ocean) Field() *scene.ModelInstance { return o.field }
func (o *Ocean) Primitive() *scene.Primitive { return o.primitive }
func (o *Ocean) Constant() OceanConstant     { return o.constant }
func (o *Ocean) Time() float32               { return o.time }

// NewField spawns an n by n vertex patch of patchSize meters centred on the
// origin. n must be a power of two. Only one field exists per ocean.
func (o *Ocean) NewField(patchSize float32, n int) (*scene.ModelInstance, error) {
	switch {
	case o.sm == nil:
		return nil, fmt.Errorf("ocean used before Init: %w", core.ErrInvariantViolation)
	case o.field != nil:
		return nil, fmt.Errorf("ocean already has a field: %w", core.ErrInvariantViolation)
	case n < 2 || bits.OnesCount(uint(n)) != 1:
		return nil, fmt.Errorf("ocean resolution %d is not a power of two: %w", n, core.ErrInvariantViolation)
	case patchSize <= 0:
		return nil, fmt.Errorf("ocean patch size %v: %w", patchSize, core.ErrInvariantViolation)
	}
	d := o.sm.Device()
	o.n = n
	o.constant.PatchSize = patchSize
	o.constant.N = int32(n)

	var err error
	if o.bitReversal, err = vulkan.NewStorageBuffer(d, "ocean-bit-reversal", uint64(n)*4); err != nil {
		return nil, err
	}
	copy(vulkan.Slice[int32](o.bitReversal, n), BitReversal(n))
	cells := uint64(o.sm.Frames()) * uint64(n*n)
	if o.datum, err = vulkan.NewStorageBuffer(d, "ocean-datum", cells*uint64(unsafe.Sizeof(Datum{}))); err != nil {
		return nil, err
	}
	o.initSpectrum()

	cell := patchSize / float32(n-1)
	b := scene.NewPrimitiveBuilder().
		Grid(uint32(n-1), uint32(n-1), math.NewVec3Zero(), math.NewVec3(0, 0, 1), math.NewVec3(1, 0, 0), cell, cell).
		NewPrimitive(scene.Triangles, scene.Dynamic)
	prims, err := o.sm.NewPrimitives(b)
	if err != nil {
		return nil, err
	}
	o.primitive = prims[0]

	mat, err := o.sm.NewMaterial(scene.MaterialTranslucent)
	if err != nil {
		return nil, err
	}
	mat.SetColorFactor(SeaColor).SetPbrFactor(SeaPBR)
	if o.field, err = o.sm.SpawnMesh(o.primitive, mat, "ocean", math.TransformCreate()); err != nil {
		return nil, err
	}

	o.set.BitReversal.Set(o.bitReversal)
	o.set.Datum.Set(o.datum)
	o.set.Positions.Set(o.sm.Positions().Buffer())
	o.set.Normals.Set(o.sm.Normals().Buffer())
	if err := o.set.Update(o.oceanSet); err != nil {
		return nil, err
	}
	if err := o.buildPipelines(); err != nil {
		return nil, err
	}
	core.LogInfo("Ocean field created (%dx%d, %.0fm).", n, n, patchSize)
	return o.field, nil
}

func (o *Ocean) buildPipeline(name string) (*vulkan.Pipeline, error) {
	code, err := o.source.Shader(name)
	if err != nil {
		return nil, err
	}
	d := o.sm.Device()
	module, err := vulkan.NewShaderModule(d, code, vk.ShaderStageComputeBit)
	if err != nil {
		return nil, fmt.Errorf("ocean shader %s: %w", name, err)
	}
	defer d.DestroyShaderModule(module)
	return vulkan.NewComputePipeline(d, name, o.layout, module)
}

func (o *Ocean) buildPipelines() error {
	ping, err := o.buildPipeline(ShaderPing)
	if err != nil {
		return err
	}
	pong, err := o.buildPipeline(ShaderPong)
	if err != nil {
		o.sm.Device().DestroyPipeline(ping)
		return err
	}
	o.destroyPipelines()
	o.ping, o.pong = ping, pong
	return nil
}

// ReloadShaders rebuilds both passes after a shader changed on disk. The
// old pipelines stay when either fails to build.
func (o *Ocean) ReloadShaders() error {
	if o.field == nil {
		return nil
	}
	if err := o.sm.Device().WaitIdle(); err != nil {
		return err
	}
	return o.buildPipelines()
}

// ReloadShader rebuilds the pipelines when one of the FFT shaders changed.
func (o *Ocean) ReloadShader(name string) error {
	if name != ShaderPing && name != ShaderPong {
		return nil
	}
	return o.ReloadShaders()
}

func (o *Ocean) UpdateWind(direction math.Vec2, speed float32) {
	o.windDir, o.windSpeed = direction, speed
	if o.datum != nil {
		o.initSpectrum()
	}
}

func (o *Ocean) UpdateWaveAmplitude(amplitude float32) {
	o.waveAmplitude = amplitude
	if o.datum != nil {
		o.initSpectrum()
	}
}

// BitReversal maps every index below n to its log2(n)-bit reversal.
func BitReversal(n int) []int32 {
	rev := make([]int32, n)
	width := bits.TrailingZeros(uint(n))
	for i := range rev {
		rev[i] = (rev[i>>1] >> 1) | int32((i&1)<<(width-1))
	}
	return rev
}

// Phillips is the Phillips spectrum at wave vector k for the current wind.
func (o *Ocean) Phillips(k math.Vec2) float32 {
	l := o.windSpeed * o.windSpeed / gravity
	small := l * spectrumDamping
	sqrK := k.X*k.X + k.Y*k.Y
	if sqrK == 0 {
		return 0
	}
	cosK := k.X*o.windDir.X + k.Y*o.windDir.Y
	p := o.waveAmplitude * math32.Exp(-1/(sqrK*l*l)) / (sqrK * sqrK * sqrK) * (cosK * cosK)
	if cosK < 0 {
		p *= againstWindScale
	}
	return p * math32.Exp(-sqrK*small*small)
}

func (o *Ocean) h0(k math.Vec2) math.Vec2 {
	amp := math32.Sqrt(o.Phillips(k)) / math32.Sqrt2
	return math.NewVec2(float32(o.rng.NormFloat64())*amp, float32(o.rng.NormFloat64())*amp)
}

// initSpectrum writes h0 of every frame's block of the datum buffer.
func (o *Ocean) initSpectrum() {
	n := o.n
	frames := int(o.sm.Frames())
	data := vulkan.Slice[Datum](o.datum, frames*n*n)
	step := 2 * math32.Pi / o.constant.PatchSize
	for f := 0; f < frames; f++ {
		block := data[f*n*n : (f+1)*n*n]
		for row := 0; row < n; row++ {
			ky := (float32(-n)/2 + float32(row)) * step
			for col := 0; col < n; col++ {
				kx := (float32(-n)/2 + float32(col)) * step
				block[row*n+col].H0 = o.h0(math.NewVec2(kx, ky))
			}
		}
	}
}

// Update advances the wave time and records both FFT passes for frame.
func (o *Ocean) Update(cb vulkan.CommandRecorder, frame uint32, elapsed float32) error {
	if o.field == nil || cb == nil {
		return nil
	}
	o.time += elapsed
	frames := o.sm.Frames()
	o.constant.PositionOffset = int32(o.primitive.Position().Frame(frame, frames).Offset)
	o.constant.NormalOffset = int32(o.primitive.Normal().Frame(frame, frames).Offset)
	o.constant.DataOffset = 0
	o.constant.Time = o.time

	groups := max(uint32(o.n)/workGroupSize, 1)
	cb.BindDescriptorSets(vk.PipelineBindPointCompute, o.layout, 0, []*vulkan.DescriptorSet{o.oceanSet})
	cb.BindPipeline(o.ping)
	cb.PushConstants(o.layout, stageCompute, 0, vulkan.ValueBytes(&o.constant))
	cb.Dispatch(groups, 1, dispatchLayers)
	cb.MemoryBarrier(vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit), vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit),
		vk.AccessFlags(vk.AccessShaderWriteBit), vk.AccessFlags(vk.AccessShaderReadBit))
	cb.BindPipeline(o.pong)
	cb.PushConstants(o.layout, stageCompute, 0, vulkan.ValueBytes(&o.constant))
	cb.Dispatch(groups, 1, dispatchLayers)
	cb.MemoryBarrier(vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit), vk.PipelineStageFlags(vk.PipelineStageVertexInputBit),
		vk.AccessFlags(vk.AccessShaderWriteBit), vk.AccessFlags(vk.AccessVertexAttributeReadBit))
	return nil
}

func (o *Ocean) Resize(width, height uint32) error {
	return nil
}

func (o *Ocean) destroyPipelines() {
	d := o.sm.Device()
	if o.ping != nil {
		d.DestroyPipeline(o.ping)
		o.ping = nil
	}
	if o.pong != nil {
		d.DestroyPipeline(o.pong)
		o.pong = nil
	}
}

// Destroy releases the wave buffers and pipelines. The field's entities
// belong to the scene graph.
func (o *Ocean) Destroy() {
	if o.sm == nil {
		return
	}
	d := o.sm.Device()
	o.destroyPipelines()
	for _, b := range []**vulkan.Buffer{&o.bitReversal, &o.datum} {
		if *b != nil {
			d.DestroyBuffer(*b)
			*b = nil
		}
	}
	if o.pool != nil {
		d.DestroyDescriptorPool(o.pool)
		o.pool = nil
	}
	if o.layout != nil {
		d.DestroyPipelineLayout(o.layout)
		o.layout = nil
	}
	if o.set != nil {
		o.set.Destroy()
	}
	o.field, o.primitive = nil, nil
}

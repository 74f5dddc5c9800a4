// Package shadow owns the cascaded shadow map of the directional light and
// fits one orthographic light projection per cascade to the camera frustum.
package shadow

import (
	"fmt"

	"github.com/chewxy/math32"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vesta/engine/arena"
	"github.com/spaghettifunk/vesta/engine/core"
	"github.com/spaghettifunk/vesta/engine/math"
	"github.com/spaghettifunk/vesta/engine/renderer/vulkan"
	"github.com/spaghettifunk/vesta/engine/systems"
)

const (
	MaxCascades = 8

	defaultFilterSize      int32   = 5
	defaultFilterWorldSize float32 = 0.1
	transitionRegion       float32 = 0.1

	// Casters up to this many cascade radii behind the cascade towards the
	// light still land in the map.
	casterExtension float32 = 2
)

// Settings of the shadow map. Changing them requires a new Shadow.
type Settings struct {
	Resolution         uint32
	NumCascades        uint32
	PartitioningFactor float32
	Format             vk.Format
	SnapCascades       bool
	StabilizeExtents   bool
}

func DefaultSettings() Settings {
	return Settings{
		Resolution:         2048,
		NumCascades:        4,
		PartitioningFactor: 0.95,
		Format:             vk.FormatD16Unorm,
		SnapCascades:       true,
		StabilizeExtents:   true,
	}
}

// DepthBias is the fixed bias applied to every cascade; lower resolutions
// need more of it.
func DepthBias(resolution uint32) float32 {
	switch {
	case resolution >= 2048:
		return 0.0025
	case resolution >= 1024:
		return 0.005
	default:
		return 0.0075
	}
}

type CascadeAttribs struct {
	LightSpaceScale      math.Vec4
	LightSpaceScaledBias math.Vec4
	StartEndZ            math.Vec4
	MarginProjSpace      math.Vec4
}

// ShadowMapAttribs follows the std140 layout of the lighting shaders.
type ShadowMapAttribs struct {
	WorldToLightView        math.Mat4
	Cascades                [MaxCascades]CascadeAttribs
	WorldToShadowMapUVDepth [MaxCascades]math.Mat4
	CascadeCamSpaceZEnd     [MaxCascades / 4]math.Vec4
	ShadowMapDim            math.Vec4

	NumCascades                 int32
	FNumCascades                float32
	VisualizeCascades           int32
	VisualizeShadowing          int32
	ReceiverPlaneDepthBiasClamp float32
	FixedDepthBias              float32
	CascadeTransitionRegion     float32
	MaxAnisotropy               int32
	FixedFilterSize             int32
	FilterWorldSize             float32
	_                           [2]float32
}

type LightAttribs struct {
	Direction    math.Vec4
	AmbientLight math.Vec4
	Intensity    math.Vec4
	Shadow       ShadowMapAttribs
}

// Cascade is one slice of the view frustum with its light projection.
type Cascade struct {
	Start  float32
	End    float32
	Center math.Vec3
	Radius float32
	// Proj maps light view space to the cascade's clip space.
	Proj math.Mat4
}

type Shadow struct {
	sm       *systems.SceneManager
	settings Settings
	light    LightAttribs
	cascades []Cascade
	dirty    bool

	lastView math.Mat4
	lastProj math.Mat4

	ubo       *arena.HostUniform[LightAttribs]
	shadowMap *vulkan.Texture
}

func New(settings Settings) *Shadow {
	s := &Shadow{settings: settings, dirty: true}
	s.light.Direction = math.NewVec4(-0.522699475, -0.481321275, -0.703671455, 1)
	s.light.Intensity = math.NewVec4(1, 0.8, 0.5, 1)
	s.light.AmbientLight = math.NewVec4(0.125, 0.125, 0.125, 1)

	attribs := &s.light.Shadow
	attribs.NumCascades = int32(settings.NumCascades)
	attribs.FNumCascades = float32(settings.NumCascades)
	attribs.FixedDepthBias = DepthBias(settings.Resolution)
	attribs.FixedFilterSize = defaultFilterSize
	attribs.FilterWorldSize = defaultFilterWorldSize
	attribs.CascadeTransitionRegion = transitionRegion
	attribs.ReceiverPlaneDepthBiasClamp = 10
	attribs.MaxAnisotropy = 4
	res := float32(settings.Resolution)
	attribs.ShadowMapDim = math.NewVec4(res, res, 1/res, 1/res)
	return s
}

func (s *Shadow) Name() string { return "shadow" }

func (s *Shadow) Init(sm *systems.SceneManager) error {
	if s.settings.NumCascades == 0 || s.settings.NumCascades > MaxCascades {
		return fmt.Errorf("%d shadow cascades, want 1 to %d: %w", s.settings.NumCascades, MaxCascades, core.ErrInvariantViolation)
	}
	if s.settings.Resolution == 0 {
		return fmt.Errorf("shadow map resolution is zero: %w", core.ErrInvariantViolation)
	}
	s.sm = sm
	device := sm.Device()

	image, err := device.CreateImage(vulkan.DepthArrayImageInfo("shadow-map", s.settings.Resolution, s.settings.NumCascades, s.settings.Format))
	if err != nil {
		return err
	}
	s.shadowMap = &vulkan.Texture{Image: image}
	s.shadowMap.Sampler, err = vulkan.NewSamplerBuilder().
		MinFilter(vk.FilterLinear).
		MagFilter(vk.FilterLinear).
		AddressMode(vk.SamplerAddressModeClampToEdge).
		Compare(vk.CompareOpLess).
		Build(device)
	if err != nil {
		s.Destroy()
		return err
	}
	if s.ubo, err = arena.NewHostUniform[LightAttribs](device, "shadow-light"); err != nil {
		s.Destroy()
		return err
	}
	core.LogInfo("Shadow map of %d cascades at %dx%d.", s.settings.NumCascades, s.settings.Resolution, s.settings.Resolution)
	return nil
}

func (s *Shadow) Settings() Settings                        { return s.settings }
func (s *Shadow) ShadowMap() *vulkan.Texture                { return s.shadowMap }
func (s *Shadow) Cascades() []Cascade                       { return s.cascades }
func (s *Shadow) Light() LightAttribs                       { return s.light }
func (s *Shadow) Uniform() *arena.HostUniform[LightAttribs] { return s.ubo }

// SetLightDirection points the light along dir, the direction light travels.
func (s *Shadow) SetLightDirection(dir math.Vec3) error {
	if dir.Length() < math.K_FLOAT_EPSILON {
		return fmt.Errorf("light direction is a zero vector: %w", core.ErrInvariantViolation)
	}
	s.light.Direction = dir.Normalize().ToVec4(1)
	s.dirty = true
	return nil
}

func (s *Shadow) SetIntensity(intensity, ambient math.Vec3) {
	s.light.Intensity = intensity.ToVec4(1)
	s.light.AmbientLight = ambient.ToVec4(1)
	s.dirty = true
}

// Update refits the cascades whenever the camera or the light moved.
func (s *Shadow) Update(cb vulkan.CommandRecorder, frame uint32, elapsed float32) error {
	if s.ubo == nil {
		return nil
	}
	camera := s.sm.Camera()
	view, proj := camera.View(), camera.Projection()
	if !s.dirty && view == s.lastView && proj == s.lastProj {
		return nil
	}
	aspect := float32(camera.Width()) / float32(camera.Height())
	s.cascades = FitCascades(view, camera.FOV(), aspect, camera.ZNear(), camera.ZFar(),
		s.light.Direction.ToVec3(), s.settings)
	s.writeAttribs()
	s.ubo.Update(s.light)
	cb.MemoryBarrier(vk.PipelineStageFlags(vk.PipelineStageHostBit), vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
		vk.AccessFlags(vk.AccessHostWriteBit), vk.AccessFlags(vk.AccessUniformReadBit))
	s.lastView, s.lastProj = view, proj
	s.dirty = false
	return nil
}

func (s *Shadow) writeAttribs() {
	attribs := &s.light.Shadow
	lightView := LightView(s.light.Direction.ToVec3())
	attribs.WorldToLightView = lightView

	margin := 2 * float32(attribs.FixedFilterSize) / float32(s.settings.Resolution)
	for i, c := range s.cascades {
		d := &c.Proj.Data
		attribs.Cascades[i] = CascadeAttribs{
			LightSpaceScale:      math.NewVec4(d[0], d[5], d[10], 1),
			LightSpaceScaledBias: math.NewVec4(d[12], d[13], d[14], 0),
			StartEndZ:            math.NewVec4(c.Start, c.End, 0, 0),
			MarginProjSpace:      math.NewVec4(margin, margin, 0, 0),
		}
		attribs.WorldToShadowMapUVDepth[i] = uvBias().Mul(c.Proj.Mul(lightView))
		end := &attribs.CascadeCamSpaceZEnd[i/4]
		switch i % 4 {
		case 0:
			end.X = c.End
		case 1:
			end.Y = c.End
		case 2:
			end.Z = c.End
		case 3:
			end.W = c.End
		}
	}
}

// uvBias maps clip space xy to texture coordinates and keeps depth.
func uvBias() math.Mat4 {
	m := math.NewMat4Identity()
	m.Data[0], m.Data[5] = 0.5, 0.5
	m.Data[12], m.Data[13] = 0.5, 0.5
	return m
}

// Resize marks the cascades stale; the aspect ratio is read on Update.
func (s *Shadow) Resize(width, height uint32) error {
	s.dirty = true
	return nil
}

func (s *Shadow) Destroy() {
	if s.sm == nil {
		return
	}
	device := s.sm.Device()
	if s.ubo != nil {
		s.ubo.Destroy(device)
		s.ubo = nil
	}
	if s.shadowMap != nil {
		s.shadowMap.Destroy(device)
		s.shadowMap = nil
	}
	s.cascades = nil
}

// CascadeSplits returns the far distance of every cascade, mixing a linear
// and a logarithmic partition of [near, far] by factor.
func CascadeSplits(near, far, factor float32, n uint32) []float32 {
	splits := make([]float32, n)
	for i := range splits {
		t := float32(i+1) / float32(n)
		linear := near + (far-near)*t
		log := near * math32.Pow(far/near, t)
		splits[i] = math.Lerp(linear, log, factor)
	}
	splits[n-1] = far
	return splits
}

// LightView is a rotation into a space looking along dir.
func LightView(dir math.Vec3) math.Mat4 {
	dir = dir.Normalize()
	up := math.NewVec3Up()
	if math32.Abs(dir.Dot(up)) > 0.99 {
		up = math.NewVec3(0, 0, 1)
	}
	return math.NewMat4LookAt(math.NewVec3Zero(), dir, up)
}

/**
 * @brief Fits a bounding sphere around every cascade slice of the camera
 * frustum and builds an orthographic projection around it in light space.
 * With StabilizeExtents the projection size only depends on the sphere, so
 * it does not change when the camera rotates. With SnapCascades the centre
 * moves in whole shadow map texels.
 */
func FitCascades(view math.Mat4, fov, aspect, near, far float32, lightDir math.Vec3, settings Settings) []Cascade {
	splits := CascadeSplits(near, far, settings.PartitioningFactor, settings.NumCascades)
	invView := view.Inverse()
	lightView := LightView(lightDir)
	tanHalf := math32.Tan(fov * 0.5)

	cascades := make([]Cascade, len(splits))
	start := near
	for i, end := range splits {
		var corners [8]math.Vec3
		for j, z := range [2]float32{start, end} {
			h := z * tanHalf
			w := h * aspect
			corners[j*4+0] = math.NewVec3(-w, -h, -z).Transform(invView)
			corners[j*4+1] = math.NewVec3(w, -h, -z).Transform(invView)
			corners[j*4+2] = math.NewVec3(w, h, -z).Transform(invView)
			corners[j*4+3] = math.NewVec3(-w, h, -z).Transform(invView)
		}
		center := math.NewVec3Zero()
		for _, c := range corners {
			center = center.Add(c)
		}
		center = center.MulScalar(1.0 / 8.0)
		var radius float32
		for _, c := range corners {
			radius = math32.Max(radius, c.Sub(center).Length())
		}
		if settings.StabilizeExtents {
			radius = math32.Ceil(radius*16) / 16
		}

		lc := center.Transform(lightView)
		if settings.SnapCascades {
			texel := 2 * radius / float32(settings.Resolution)
			lc.X = math32.Floor(lc.X/texel) * texel
			lc.Y = math32.Floor(lc.Y/texel) * texel
		}
		cascades[i] = Cascade{
			Start:  start,
			End:    end,
			Center: center,
			Radius: radius,
			Proj: math.NewMat4Orthographic(lc.X-radius, lc.X+radius, lc.Y-radius, lc.Y+radius,
				-lc.Z-radius*(1+casterExtension), -lc.Z+radius),
		}
		start = end
	}
	return cascades
}

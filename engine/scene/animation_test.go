package scene

import (
	"testing"

	"github.com/spaghettifunk/vesta/engine/core"
	"github.com/spaghettifunk/vesta/engine/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vec4(x, y float32) math.Vec4 {
	return math.NewVec4(x, y, 0, 0)
}

func TestSamplerInterpolation(t *testing.T) {
	linear := AnimationSampler{
		Interpolation: InterpolationLinear,
		Inputs:        []float32{0, 1, 2},
		Outputs:       []math.Vec4{vec4(0, 0), vec4(10, 0), vec4(10, 20)},
	}
	step := linear
	step.Interpolation = InterpolationStep
	// in-tangent, value, out-tangent per key
	cubic := AnimationSampler{
		Interpolation: InterpolationCubicSpline,
		Inputs:        []float32{0, 2},
		Outputs: []math.Vec4{
			vec4(9, 9), vec4(0, 0), vec4(1, 0),
			vec4(0, 0), vec4(4, 0), vec4(9, 9),
		},
	}

	tests := []struct {
		name    string
		sampler *AnimationSampler
		t       float32
		want    math.Vec4
	}{
		{"linear first segment", &linear, 0.5, vec4(5, 0)},
		{"linear second segment", &linear, 1.5, vec4(10, 10)},
		{"linear on a key", &linear, 1, vec4(10, 0)},
		{"linear before first key", &linear, -1, vec4(0, 0)},
		{"linear after last key", &linear, 5, vec4(10, 20)},
		{"step holds the previous key", &step, 0.9, vec4(0, 0)},
		{"step second segment", &step, 1.5, vec4(10, 0)},
		{"step after last key", &step, 3, vec4(10, 20)},
		// hermite at u=0.5 with dt=2: 0*0.5 + (1*2)*0.125 + 4*0.5
		{"cubic spline midpoint", &cubic, 1, vec4(2.25, 0)},
		{"cubic spline before first key", &cubic, -2, vec4(0, 0)},
		{"cubic spline after last key", &cubic, 3, vec4(4, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.sampler.Sample(tt.t, false)
			assert.True(t, got.Compare(tt.want, 1e-5), "got %v, want %v", got, tt.want)
		})
	}
}

func TestSamplerRotationSlerps(t *testing.T) {
	quarter := math.NewQuatFromAxisAngle(math.NewVec3Up(), math.K_HALF_PI, true)
	s := AnimationSampler{
		Interpolation: InterpolationLinear,
		Inputs:        []float32{0, 1},
		Outputs:       []math.Vec4{math.Vec4(math.NewQuatIdentity()), math.Vec4(quarter)},
	}
	half := math.NewQuatFromAxisAngle(math.NewVec3Up(), math.K_HALF_PI/2, true)
	assert.True(t, s.Sample(0.5, true).Compare(math.Vec4(half), 1e-5))
}

func TestAnimateLoopsAndWritesTransforms(t *testing.T) {
	g, _ := newGraph(t, 2)
	base := math.TransformFromPosition(math.NewVec3(0, 7, 0))
	base.Scale = math.NewVec3(3, 3, 3)
	n, err := g.NewNode(base, "animated")
	require.NoError(t, err)

	a := NewAnimation("slide", []AnimationSampler{{
		Interpolation: InterpolationLinear,
		Inputs:        []float32{0, 2},
		Outputs:       []math.Vec4{vec4(0, 0), vec4(4, 0)},
	}}, []AnimationChannel{{Path: PathTranslation, Node: n.ID(), Sampler: 0}})
	assert.Equal(t, float32(0), a.Start)
	assert.Equal(t, float32(2), a.End)
	model, err := g.NewModel([]NodeID{n.ID()}, []*Animation{a})
	require.NoError(t, err)

	tests := []struct {
		t    float32
		want float32
	}{
		{0.5, 1},
		{3, 2},
		{4.5, 1},
		{-0.5, 3},
	}
	for _, tt := range tests {
		require.NoError(t, model.Animate(0, tt.t))
		tr := n.Transform()
		assert.True(t, tr.Translation.Compare(math.NewVec3(tt.want, 0, 0), 1e-5), "t=%v: %v", tt.t, tr.Translation)
		assert.Equal(t, base.Scale, tr.Scale, "unanimated paths are kept")
		assert.Equal(t, base.Rotation, tr.Rotation)
		assert.True(t, g.Buffers().Transforms.At(n.Slot()).Compare(tr.Matrix(), 1e-5))
	}

	assert.ErrorIs(t, model.Animate(1, 0), core.ErrInvariantViolation)
}

func TestModelRejectsBadAnimations(t *testing.T) {
	g, _ := newGraph(t, 2)
	inside, err := g.NewNode(math.TransformCreate(), "inside")
	require.NoError(t, err)
	outside, err := g.NewNode(math.TransformCreate(), "outside")
	require.NoError(t, err)
	samplers := []AnimationSampler{{Inputs: []float32{0, 1}, Outputs: []math.Vec4{vec4(0, 0), vec4(1, 0)}}}

	foreign := NewAnimation("foreign", samplers, []AnimationChannel{{Path: PathScale, Node: outside.ID()}})
	_, err = g.NewModel([]NodeID{inside.ID()}, []*Animation{foreign})
	require.ErrorIs(t, err, core.ErrInvariantViolation)
	assert.Contains(t, err.Error(), "outside the model")
	assert.Equal(t, NoModel, inside.Model())

	missing := NewAnimation("missing", samplers, []AnimationChannel{{Path: PathScale, Node: inside.ID(), Sampler: 3}})
	_, err = g.NewModel([]NodeID{inside.ID()}, []*Animation{missing})
	require.ErrorIs(t, err, core.ErrInvariantViolation)
	assert.Contains(t, err.Error(), "has no sampler 3")
	assert.Equal(t, NoModel, inside.Model())

	empty := NewAnimation("empty", nil, nil)
	assert.Equal(t, float32(0), empty.Duration())
	model, err := g.NewModel([]NodeID{inside.ID()}, []*Animation{empty})
	require.NoError(t, err)
	require.NoError(t, model.Animate(0, 10))
}

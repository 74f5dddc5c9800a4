package scene

import (
	"github.com/chewxy/math32"
	"golang.org/x/exp/slices"

	"github.com/spaghettifunk/vesta/engine/math"
)

type AnimationPath uint32

const (
	PathTranslation AnimationPath = iota
	PathRotation
	PathScale
)

type Interpolation uint32

const (
	InterpolationLinear Interpolation = iota
	InterpolationStep
	// CubicSpline samplers store three outputs per key: in-tangent, value,
	// out-tangent.
	InterpolationCubicSpline
)

// AnimationChannel drives one path of one node from a sampler.
type AnimationChannel struct {
	Path    AnimationPath
	Node    NodeID
	Sampler uint32
}

type AnimationSampler struct {
	Interpolation Interpolation
	Inputs        []float32
	Outputs       []math.Vec4
}

type Animation struct {
	Name     string
	Samplers []AnimationSampler
	Channels []AnimationChannel
	Start    float32
	End      float32
}

// NewAnimation derives the time span from the sampler inputs.
func NewAnimation(name string, samplers []AnimationSampler, channels []AnimationChannel) *Animation {
	a := &Animation{Name: name, Samplers: samplers, Channels: channels, Start: math.K_INFINITY, End: -math.K_INFINITY}
	for _, s := range samplers {
		if len(s.Inputs) == 0 {
			continue
		}
		a.Start = math32.Min(a.Start, s.Inputs[0])
		a.End = math32.Max(a.End, s.Inputs[len(s.Inputs)-1])
	}
	if a.Start > a.End {
		a.Start, a.End = 0, 0
	}
	return a
}

// Duration is End - Start.
func (a *Animation) Duration() float32 {
	return a.End - a.Start
}

// Animate poses the channel targets at time t, looping over [Start, End).
func (a *Animation) Animate(g *Graph, t float32) {
	if d := a.Duration(); d > 0 {
		local := math32.Mod(t-a.Start, d)
		if local < 0 {
			local += d
		}
		t = a.Start + local
	} else {
		t = a.Start
	}

	posed := map[NodeID]math.Transform{}
	var order []NodeID
	for _, ch := range a.Channels {
		n := g.Node(ch.Node)
		if n == nil || int(ch.Sampler) >= len(a.Samplers) {
			continue
		}
		tr, ok := posed[ch.Node]
		if !ok {
			tr = n.transform
			order = append(order, ch.Node)
		}
		s := &a.Samplers[ch.Sampler]
		if len(s.Inputs) == 0 {
			continue
		}
		v := s.Sample(t, ch.Path == PathRotation)
		switch ch.Path {
		case PathTranslation:
			tr.Translation = v.ToVec3()
		case PathRotation:
			tr.Rotation = math.Quaternion(v)
		case PathScale:
			tr.Scale = v.ToVec3()
		}
		posed[ch.Node] = tr
	}
	for _, id := range order {
		g.nodes[id].SetTransform(posed[id])
	}
}

func (s *AnimationSampler) value(k int) math.Vec4 {
	if s.Interpolation == InterpolationCubicSpline {
		return s.Outputs[3*k+1]
	}
	return s.Outputs[k]
}

/**
 * @brief Evaluates the sampler at t. Times outside the key range clamp to the
 * first or last key. Rotations are slerped and normalized.
 */
func (s *AnimationSampler) Sample(t float32, rotation bool) math.Vec4 {
	n := len(s.Inputs)
	if t <= s.Inputs[0] {
		return s.value(0)
	}
	if t >= s.Inputs[n-1] {
		return s.value(n - 1)
	}
	i, found := slices.BinarySearch(s.Inputs, t)
	if found {
		return s.value(i)
	}
	k := i - 1
	t0, t1 := s.Inputs[k], s.Inputs[k+1]
	dt := t1 - t0
	u := (t - t0) / dt

	switch s.Interpolation {
	case InterpolationStep:
		return s.value(k)
	case InterpolationCubicSpline:
		u2, u3 := u*u, u*u*u
		p0, m0 := s.Outputs[3*k+1], s.Outputs[3*k+2].MulScalar(dt)
		p1, m1 := s.Outputs[3*(k+1)+1], s.Outputs[3*(k+1)].MulScalar(dt)
		v := p0.MulScalar(2*u3 - 3*u2 + 1).
			Add(m0.MulScalar(u3 - 2*u2 + u)).
			Add(p1.MulScalar(-2*u3 + 3*u2)).
			Add(m1.MulScalar(u3 - u2))
		if rotation {
			return math.Vec4(math.Quaternion(v).Normalize())
		}
		return v
	}

	a, b := s.value(k), s.value(k+1)
	if rotation {
		return math.Vec4(math.Quaternion(a).Slerp(math.Quaternion(b), u))
	}
	return math.Vec4{
		X: math.Lerp(a.X, b.X, u),
		Y: math.Lerp(a.Y, b.Y, u),
		Z: math.Lerp(a.Z, b.Z, u),
		W: math.Lerp(a.W, b.W, u),
	}
}

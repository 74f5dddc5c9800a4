package ibl

import (
	"fmt"
	"math/bits"

	"github.com/chewxy/math32"
	"github.com/spaghettifunk/vesta/engine/core"
	"github.com/spaghettifunk/vesta/engine/math"
)

// Environment is a linear RGBA cube map held on the CPU. Faces are stored
// +X, -X, +Y, -Y, +Z, -Z back to back, rows top to bottom.
type Environment struct {
	Size  uint32
	Faces []float32
}

// NewEnvironment converts six packed RGBA8 faces to linear floats.
func NewEnvironment(size uint32, rgba8 []byte) (*Environment, error) {
	if size == 0 || uint32(len(rgba8)) != size*size*4*6 {
		return nil, fmt.Errorf("environment of size %d holds %d bytes: %w", size, len(rgba8), core.ErrInvariantViolation)
	}
	env := &Environment{Size: size, Faces: make([]float32, len(rgba8))}
	for i, b := range rgba8 {
		env.Faces[i] = float32(b) / 255
	}
	return env, nil
}

// UniformEnvironment is a cube of a single colour.
func UniformEnvironment(size uint32, c math.Vec3) *Environment {
	env := &Environment{Size: size, Faces: make([]float32, size*size*4*6)}
	for i := 0; i < len(env.Faces); i += 4 {
		env.Faces[i], env.Faces[i+1], env.Faces[i+2], env.Faces[i+3] = c.X, c.Y, c.Z, 1
	}
	return env
}

// Sample returns the nearest texel in direction dir.
func (e *Environment) Sample(dir math.Vec3) math.Vec3 {
	face, u, v := cubeCoord(dir)
	size := float32(e.Size)
	x := min(uint32(u*size), e.Size-1)
	y := min(uint32(v*size), e.Size-1)
	i := ((uint32(face)*e.Size+y)*e.Size + x) * 4
	return math.NewVec3(e.Faces[i], e.Faces[i+1], e.Faces[i+2])
}

// cubeCoord picks the face of the major axis of dir and the [0,1] texture
// coordinates on it.
func cubeCoord(dir math.Vec3) (face int, u, v float32) {
	ax, ay, az := math32.Abs(dir.X), math32.Abs(dir.Y), math32.Abs(dir.Z)
	var sc, tc, ma float32
	switch {
	case ax >= ay && ax >= az:
		ma = ax
		if dir.X > 0 {
			face, sc, tc = 0, -dir.Z, -dir.Y
		} else {
			face, sc, tc = 1, dir.Z, -dir.Y
		}
	case ay >= az:
		ma = ay
		if dir.Y > 0 {
			face, sc, tc = 2, dir.X, dir.Z
		} else {
			face, sc, tc = 3, dir.X, -dir.Z
		}
	default:
		ma = az
		if dir.Z > 0 {
			face, sc, tc = 4, dir.X, -dir.Y
		} else {
			face, sc, tc = 5, -dir.X, -dir.Y
		}
	}
	return face, (sc/ma + 1) / 2, (tc/ma + 1) / 2
}

// faceDirection is the inverse of cubeCoord; the result is normalized.
func faceDirection(face int, u, v float32) math.Vec3 {
	a, b := 2*u-1, 2*v-1
	var d math.Vec3
	switch face {
	case 0:
		d = math.NewVec3(1, -b, -a)
	case 1:
		d = math.NewVec3(-1, -b, a)
	case 2:
		d = math.NewVec3(a, 1, b)
	case 3:
		d = math.NewVec3(a, -1, -b)
	case 4:
		d = math.NewVec3(a, -b, 1)
	default:
		d = math.NewVec3(-a, -b, -1)
	}
	return d.Normalize()
}

// Hammersley returns the i-th point of an n point low discrepancy set.
func Hammersley(i, n uint32) math.Vec2 {
	return math.NewVec2(float32(i)/float32(n), float32(bits.Reverse32(i))*2.3283064365386963e-10)
}

// tangentBasis returns two unit vectors orthogonal to n and to each other.
func tangentBasis(n math.Vec3) (math.Vec3, math.Vec3) {
	up := math.NewVec3(0, 0, 1)
	if math32.Abs(n.Z) >= 0.999 {
		up = math.NewVec3(1, 0, 0)
	}
	tx := up.Cross(n).Normalize()
	return tx, n.Cross(tx)
}

// ImportanceSampleGGX maps xi to a half vector around n distributed by the
// GGX lobe of the given roughness.
func ImportanceSampleGGX(xi math.Vec2, n math.Vec3, roughness float32) math.Vec3 {
	a := roughness * roughness
	phi := 2 * math32.Pi * xi.X
	cosTheta := math32.Sqrt((1 - xi.Y) / (1 + (a*a-1)*xi.Y))
	sinTheta := math32.Sqrt(1 - cosTheta*cosTheta)
	sinPhi, cosPhi := math32.Sincos(phi)

	tx, ty := tangentBasis(n)
	return tx.MulScalar(sinTheta * cosPhi).
		Add(ty.MulScalar(sinTheta * sinPhi)).
		Add(n.MulScalar(cosTheta)).
		Normalize()
}

func geometrySchlickGGX(nDotV, roughness float32) float32 {
	k := roughness * roughness / 2
	return nDotV / (nDotV*(1-k) + k)
}

// IntegrateBRDF returns the scale and bias applied to F0 by the split sum
// approximation of the specular lobe.
func IntegrateBRDF(nDotV, roughness float32, samples uint32) (scale, bias float32) {
	v := math.NewVec3(math32.Sqrt(1-nDotV*nDotV), 0, nDotV)
	n := math.NewVec3(0, 0, 1)
	for i := uint32(0); i < samples; i++ {
		h := ImportanceSampleGGX(Hammersley(i, samples), n, roughness)
		vDotH := v.Dot(h)
		l := h.MulScalar(2 * vDotH).Sub(v)
		nDotL := math32.Max(l.Z, 0)
		nDotH := math32.Max(h.Z, 0)
		vDotH = math32.Max(vDotH, 0)
		if nDotL <= 0 {
			continue
		}
		g := geometrySchlickGGX(nDotV, roughness) * geometrySchlickGGX(nDotL, roughness)
		gVis := g * vDotH / (nDotH * nDotV)
		fc := math32.Pow(1-vDotH, 5)
		scale += (1 - fc) * gVis
		bias += fc * gVis
	}
	return scale / float32(samples), bias / float32(samples)
}

// BRDFLUT fills a size x size RGBA table; u is n.v and v is the roughness.
func BRDFLUT(size, samples uint32) []float32 {
	out := make([]float32, size*size*4)
	for y := uint32(0); y < size; y++ {
		brdfRow(out, y, size, samples)
	}
	return out
}

func brdfRow(out []float32, y, size, samples uint32) {
	roughness := (float32(y) + 0.5) / float32(size)
	for x := uint32(0); x < size; x++ {
		nDotV := (float32(x) + 0.5) / float32(size)
		scale, bias := IntegrateBRDF(nDotV, roughness, samples)
		i := (y*size + x) * 4
		out[i], out[i+1], out[i+2], out[i+3] = scale, bias, 0, 1
	}
}

// IrradianceSteps is the angular step count of the hemisphere convolution.
type IrradianceSteps struct {
	Phi   uint32
	Theta uint32
}

// Irradiance convolves env over the cosine weighted hemisphere around n.
func (e *Environment) Irradiance(n math.Vec3, steps IrradianceSteps) math.Vec3 {
	tx, ty := tangentBasis(n)
	dPhi := 2 * math32.Pi / float32(steps.Phi)
	dTheta := 0.5 * math32.Pi / float32(steps.Theta)
	sum := math.NewVec3Zero()
	for p := uint32(0); p < steps.Phi; p++ {
		sinPhi, cosPhi := math32.Sincos(float32(p) * dPhi)
		for t := uint32(0); t < steps.Theta; t++ {
			sinTheta, cosTheta := math32.Sincos(float32(t) * dTheta)
			dir := tx.MulScalar(sinTheta * cosPhi).
				Add(ty.MulScalar(sinTheta * sinPhi)).
				Add(n.MulScalar(cosTheta))
			sum = sum.Add(e.Sample(dir).MulScalar(cosTheta * sinTheta))
		}
	}
	return sum.MulScalar(math32.Pi / float32(steps.Phi*steps.Theta))
}

// Prefilter integrates env over the GGX lobe around n, assuming n = v = r.
func (e *Environment) Prefilter(n math.Vec3, roughness float32, samples uint32) math.Vec3 {
	if roughness == 0 {
		return e.Sample(n)
	}
	sum := math.NewVec3Zero()
	var weight float32
	for i := uint32(0); i < samples; i++ {
		h := ImportanceSampleGGX(Hammersley(i, samples), n, roughness)
		l := h.MulScalar(2 * n.Dot(h)).Sub(n)
		nDotL := n.Dot(l)
		if nDotL > 0 {
			sum = sum.Add(e.Sample(l).MulScalar(nDotL))
			weight += nDotL
		}
	}
	if weight == 0 {
		return e.Sample(n)
	}
	return sum.MulScalar(1 / weight)
}

// fillFace evaluates fn at every texel centre of one face of a size x size
// cube level.
func fillFace(level []float32, face int, size uint32, fn func(dir math.Vec3) math.Vec3) {
	base := uint32(face) * size * size * 4
	for y := uint32(0); y < size; y++ {
		for x := uint32(0); x < size; x++ {
			dir := faceDirection(face, (float32(x)+0.5)/float32(size), (float32(y)+0.5)/float32(size))
			c := fn(dir)
			i := base + (y*size+x)*4
			level[i], level[i+1], level[i+2], level[i+3] = c.X, c.Y, c.Z, 1
		}
	}
}

// downsample box filters every face of a cube level to half its size.
func downsample(level []float32, size uint32) []float32 {
	half := max(size/2, 1)
	out := make([]float32, half*half*4*6)
	for f := uint32(0); f < 6; f++ {
		src, dst := f*size*size*4, f*half*half*4
		for y := uint32(0); y < half; y++ {
			for x := uint32(0); x < half; x++ {
				x1, y1 := min(2*x+1, size-1), min(2*y+1, size-1)
				for c := uint32(0); c < 4; c++ {
					sum := level[src+(2*y*size+2*x)*4+c] + level[src+(2*y*size+x1)*4+c] +
						level[src+(y1*size+2*x)*4+c] + level[src+(y1*size+x1)*4+c]
					out[dst+(y*half+x)*4+c] = sum / 4
				}
			}
		}
	}
	return out
}

func mipSize(size uint32, level int) uint32 {
	return max(size>>uint(level), 1)
}

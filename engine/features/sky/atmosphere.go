package sky

import (
	"github.com/chewxy/math32"
	"github.com/spaghettifunk/vesta/engine/math"
)

// DensityProfileLayer is a layer of width Width whose density at altitude h
// is ExpTerm*exp(ExpScale*h) + LinearTerm*h + ConstantTerm, clamped to [0,1].
type DensityProfileLayer struct {
	Width        float32
	ExpTerm      float32
	ExpScale     float32
	LinearTerm   float32
	ConstantTerm float32
	_            [3]float32
}

// DensityProfile holds two layers sorted from bottom to top. The last layer
// extends up to the top of the atmosphere.
type DensityProfile struct {
	Layers [2]DensityProfileLayer
}

/**
 * @brief Physical description of the atmosphere, in sky length units (km)
 * and for the three precomputed wavelengths. The field order follows the
 * std140 layout of the shader uniform.
 */
type AtmosphereParameters struct {
	SolarIrradiance      math.Vec3
	SunAngularRadius     float32
	RayleighScattering   math.Vec3
	BottomRadius         float32
	MieScattering        math.Vec3
	TopRadius            float32
	MieExtinction        math.Vec3
	MiePhaseFunctionG    float32
	AbsorptionExtinction math.Vec3
	MuSMin               float32
	GroundAlbedo         math.Vec3
	_                    float32
	RayleighDensity      DensityProfile
	MieDensity           DensityProfile
	AbsorptionDensity    DensityProfile
}

const (
	// Precomputed wavelengths in nanometers.
	LambdaR float32 = 680
	LambdaG float32 = 550
	LambdaB float32 = 440

	maxSunZenithDegrees float32 = 102
)

// EarthAtmosphere is a clear sky over a planet of earth size with an ozone
// layer, lengths in kilometers.
func EarthAtmosphere() AtmosphereParameters {
	return AtmosphereParameters{
		SolarIrradiance:    math.NewVec3(1.474, 1.8504, 1.91198),
		SunAngularRadius:   0.004675,
		RayleighScattering: math.NewVec3(0.005802, 0.013558, 0.033100),
		BottomRadius:       6360,
		MieScattering:      math.NewVec3(0.003996, 0.003996, 0.003996),
		TopRadius:          6420,
		MieExtinction:      math.NewVec3(0.004440, 0.004440, 0.004440),
		MiePhaseFunctionG:  0.8,
		// ozone
		AbsorptionExtinction: math.NewVec3(0.000650, 0.001881, 0.000085),
		MuSMin:               math32.Cos(math.DegToRad(maxSunZenithDegrees)),
		GroundAlbedo:         math.NewVec3(0.1, 0.1, 0.1),
		RayleighDensity: DensityProfile{Layers: [2]DensityProfileLayer{
			{},
			{ExpTerm: 1, ExpScale: -1.0 / 8.0},
		}},
		MieDensity: DensityProfile{Layers: [2]DensityProfileLayer{
			{},
			{ExpTerm: 1, ExpScale: -1.0 / 1.2},
		}},
		AbsorptionDensity: DensityProfile{Layers: [2]DensityProfileLayer{
			{Width: 25, LinearTerm: 1.0 / 15.0, ConstantTerm: -2.0 / 3.0},
			{LinearTerm: -1.0 / 15.0, ConstantTerm: 8.0 / 3.0},
		}},
	}
}

func (l DensityProfileLayer) density(altitude float32) float32 {
	d := l.ExpTerm*math32.Exp(l.ExpScale*altitude) + l.LinearTerm*altitude + l.ConstantTerm
	return math.Clamp(d, 0, 1)
}

func (p DensityProfile) density(altitude float32) float32 {
	if altitude < p.Layers[0].Width {
		return p.Layers[0].density(altitude)
	}
	return p.Layers[1].density(altitude)
}

func clampCosine(mu float32) float32 {
	return math.Clamp(mu, -1, 1)
}

func safeSqrt(a float32) float32 {
	return math32.Sqrt(max(a, 0))
}

func (a *AtmosphereParameters) clampRadius(r float32) float32 {
	return math.Clamp(r, a.BottomRadius, a.TopRadius)
}

func (a *AtmosphereParameters) horizon() float32 {
	return math32.Sqrt(a.TopRadius*a.TopRadius - a.BottomRadius*a.BottomRadius)
}

func (a *AtmosphereParameters) distanceToTop(r, mu float32) float32 {
	disc := r*r*(mu*mu-1) + a.TopRadius*a.TopRadius
	return max(-r*mu+safeSqrt(disc), 0)
}

func (a *AtmosphereParameters) distanceToBottom(r, mu float32) float32 {
	disc := r*r*(mu*mu-1) + a.BottomRadius*a.BottomRadius
	return max(-r*mu-safeSqrt(disc), 0)
}

func (a *AtmosphereParameters) rayIntersectsGround(r, mu float32) bool {
	return mu < 0 && r*r*(mu*mu-1)+a.BottomRadius*a.BottomRadius >= 0
}

func (a *AtmosphereParameters) distanceToNearestBoundary(r, mu float32, ground bool) float32 {
	if ground {
		return a.distanceToBottom(r, mu)
	}
	return a.distanceToTop(r, mu)
}

// textureCoord maps x in [0,1] to the centre of the first and last texel.
func textureCoord(x float32, size int) float32 {
	return 0.5/float32(size) + x*(1-1/float32(size))
}

// unitRange is the inverse of textureCoord.
func unitRange(u float32, size int) float32 {
	return (u - 0.5/float32(size)) / (1 - 1/float32(size))
}

const transmittanceSamples = 40

// opticalLength integrates profile along the ray up to the top boundary.
func (a *AtmosphereParameters) opticalLength(profile DensityProfile, r, mu float32) float32 {
	dx := a.distanceToTop(r, mu) / transmittanceSamples
	var result float32
	for i := 0; i <= transmittanceSamples; i++ {
		d := float32(i) * dx
		ri := math32.Sqrt(d*d + 2*r*mu*d + r*r)
		w := float32(1)
		if i == 0 || i == transmittanceSamples {
			w = 0.5
		}
		result += profile.density(ri-a.BottomRadius) * w * dx
	}
	return result
}

// TransmittanceToTop is the fraction of light reaching r from the top of
// the atmosphere along direction mu, per channel.
func (a *AtmosphereParameters) TransmittanceToTop(r, mu float32) math.Vec3 {
	rayleigh := a.RayleighScattering.MulScalar(a.opticalLength(a.RayleighDensity, r, mu))
	mie := a.MieExtinction.MulScalar(a.opticalLength(a.MieDensity, r, mu))
	absorption := a.AbsorptionExtinction.MulScalar(a.opticalLength(a.AbsorptionDensity, r, mu))
	depth := rayleigh.Add(mie).Add(absorption)
	return math.NewVec3(math32.Exp(-depth.X), math32.Exp(-depth.Y), math32.Exp(-depth.Z))
}

func (a *AtmosphereParameters) transmittanceRMu(x, y float32, width, height int) (r, mu float32) {
	xMu, xR := unitRange(x, width), unitRange(y, height)
	h := a.horizon()
	rho := h * xR
	r = math32.Sqrt(rho*rho + a.BottomRadius*a.BottomRadius)
	dMin := a.TopRadius - r
	dMax := rho + h
	d := dMin + xMu*(dMax-dMin)
	if d == 0 {
		return r, 1
	}
	return r, clampCosine((h*h - rho*rho - d*d) / (2 * r * d))
}

func (a *AtmosphereParameters) transmittanceUV(r, mu float32, width, height int) (u, v float32) {
	h := a.horizon()
	rho := safeSqrt(r*r - a.BottomRadius*a.BottomRadius)
	d := a.distanceToTop(r, mu)
	dMin := a.TopRadius - r
	dMax := rho + h
	return textureCoord((d-dMin)/(dMax-dMin), width), textureCoord(rho/h, height)
}

/**
 * @brief A CPU-side RGBA32F table with bilinear lookups. Row y starts at
 * y*Width*4.
 */
type table2D struct {
	Width, Height int
	Data          []float32
}

func newTable2D(width, height int) *table2D {
	return &table2D{Width: width, Height: height, Data: make([]float32, width*height*4)}
}

func (t *table2D) set(x, y int, v math.Vec4) {
	i := (y*t.Width + x) * 4
	t.Data[i], t.Data[i+1], t.Data[i+2], t.Data[i+3] = v.X, v.Y, v.Z, v.W
}

func (t *table2D) at(x, y int) math.Vec4 {
	x = math.Clamp(x, 0, t.Width-1)
	y = math.Clamp(y, 0, t.Height-1)
	i := (y*t.Width + x) * 4
	return math.NewVec4(t.Data[i], t.Data[i+1], t.Data[i+2], t.Data[i+3])
}

// sample is a clamped bilinear lookup at normalized coordinates.
func (t *table2D) sample(u, v float32) math.Vec4 {
	fx := u*float32(t.Width) - 0.5
	fy := v*float32(t.Height) - 0.5
	x0, y0 := int(math32.Floor(fx)), int(math32.Floor(fy))
	tx, ty := fx-float32(x0), fy-float32(y0)
	top := t.at(x0, y0).MulScalar(1 - tx).Add(t.at(x0+1, y0).MulScalar(tx))
	bottom := t.at(x0, y0+1).MulScalar(1 - tx).Add(t.at(x0+1, y0+1).MulScalar(tx))
	return top.MulScalar(1 - ty).Add(bottom.MulScalar(ty))
}

// ComputeTransmittance fills the transmittance table over (mu, r).
func (a *AtmosphereParameters) ComputeTransmittance(width, height int) []float32 {
	t := newTable2D(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, mu := a.transmittanceRMu((float32(x)+0.5)/float32(width), (float32(y)+0.5)/float32(height), width, height)
			t.set(x, y, a.TransmittanceToTop(r, mu).ToVec4(1))
		}
	}
	return t.Data
}

type precomputed struct {
	atmosphere    *AtmosphereParameters
	transmittance *table2D
}

func (p *precomputed) toTop(r, mu float32) math.Vec3 {
	u, v := p.atmosphere.transmittanceUV(r, mu, p.transmittance.Width, p.transmittance.Height)
	return p.transmittance.sample(u, v).ToVec3()
}

func div3(a, b math.Vec3) math.Vec3 {
	return math.NewVec3(a.X/max(b.X, 1e-9), a.Y/max(b.Y, 1e-9), a.Z/max(b.Z, 1e-9))
}

// transmittance between the point at (r, mu) and the point d further along
// the ray.
func (p *precomputed) transmittance(r, mu, d float32, ground bool) math.Vec3 {
	a := p.atmosphere
	rd := a.clampRadius(math32.Sqrt(d*d + 2*r*mu*d + r*r))
	muD := clampCosine((r*mu + d) / rd)
	if ground {
		return div3(p.toTop(rd, -muD), p.toTop(r, -mu)).Min(math.NewVec3One())
	}
	return div3(p.toTop(r, mu), p.toTop(rd, muD)).Min(math.NewVec3One())
}

func smoothstep(e0, e1, x float32) float32 {
	t := math.Clamp((x-e0)/(e1-e0), 0, 1)
	return t * t * (3 - 2*t)
}

func (p *precomputed) toSun(r, muS float32) math.Vec3 {
	a := p.atmosphere
	sinH := a.BottomRadius / r
	cosH := -safeSqrt(1 - sinH*sinH)
	visible := smoothstep(-sinH*a.SunAngularRadius, sinH*a.SunAngularRadius, muS-cosH)
	return p.toTop(r, muS).MulScalar(visible)
}

// directIrradiance fills the ground irradiance table over (mu_s, r).
func (p *precomputed) directIrradiance(width, height int) []float32 {
	a := p.atmosphere
	t := newTable2D(width, height)
	alpha := a.SunAngularRadius
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			xMuS := unitRange((float32(x)+0.5)/float32(width), width)
			xR := unitRange((float32(y)+0.5)/float32(height), height)
			r := a.BottomRadius + xR*(a.TopRadius-a.BottomRadius)
			muS := clampCosine(2*xMuS - 1)
			// approximate average of the cosine over the visible sun disk
			var cosine float32
			switch {
			case muS < -alpha:
				cosine = 0
			case muS > alpha:
				cosine = muS
			default:
				cosine = (muS + alpha) * (muS + alpha) / (4 * alpha)
			}
			t.set(x, y, a.SolarIrradiance.Mul(p.toTop(r, muS)).MulScalar(cosine).ToVec4(1))
		}
	}
	return t.Data
}

// ScatteringSize is the 4D (r, mu, mu_s, nu) scattering table resolution,
// flattened into a 3D texture of NU*MuS by Mu by R texels.
type ScatteringSize struct {
	R, Mu, MuS, Nu int
}

func (s ScatteringSize) Extent() (width, height, depth int) {
	return s.Nu * s.MuS, s.Mu, s.R
}

func (p *precomputed) scatteringParams(x, y, z int, size ScatteringSize) (r, mu, muS, nu float32, ground bool) {
	a := p.atmosphere
	fragNu := float32(x / size.MuS)
	fragMuS := float32(x % size.MuS)
	uvwzX := (fragNu + 0.5) / float32(size.Nu)
	// nu coordinates span the full range, first and last texel included
	if size.Nu > 1 {
		uvwzX = fragNu / float32(size.Nu-1)
	}
	uvwzY := (fragMuS + 0.5) / float32(size.MuS)
	uvwzZ := (float32(y) + 0.5) / float32(size.Mu)
	uvwzW := (float32(z) + 0.5) / float32(size.R)

	h := a.horizon()
	rho := h * unitRange(uvwzW, size.R)
	r = math32.Sqrt(rho*rho + a.BottomRadius*a.BottomRadius)

	half := max(size.Mu/2, 1)
	if uvwzZ < 0.5 {
		dMin := r - a.BottomRadius
		dMax := rho
		d := dMin + (dMax-dMin)*unitRange(1-2*uvwzZ, half)
		mu = -1
		if d != 0 {
			mu = clampCosine(-(rho*rho + d*d) / (2 * r * d))
		}
		ground = true
	} else {
		dMin := a.TopRadius - r
		dMax := rho + h
		d := dMin + (dMax-dMin)*unitRange(2*uvwzZ-1, half)
		mu = 1
		if d != 0 {
			mu = clampCosine((h*h - rho*rho - d*d) / (2 * r * d))
		}
	}

	xMuS := unitRange(uvwzY, size.MuS)
	dMin := a.TopRadius - a.BottomRadius
	dMax := h
	bigD := a.distanceToTop(a.BottomRadius, a.MuSMin)
	bigA := (bigD - dMin) / (dMax - dMin)
	small := (bigA - xMuS*bigA) / (1 + xMuS*bigA)
	d := dMin + min(small, bigA)*(dMax-dMin)
	muS = 1
	if d != 0 {
		muS = clampCosine((h*h - d*d) / (2 * a.BottomRadius * d))
	}

	nu = clampCosine(uvwzX*2 - 1)
	spread := math32.Sqrt((1 - mu*mu) * (1 - muS*muS))
	nu = math.Clamp(nu, mu*muS-spread, mu*muS+spread)
	return r, mu, muS, nu, ground
}

const scatteringSamples = 24

// singleScattering integrates Rayleigh and Mie in-scattering along the view
// ray, without the phase functions.
func (p *precomputed) singleScattering(r, mu, muS, nu float32, ground bool) (rayleigh, mie math.Vec3) {
	a := p.atmosphere
	dx := a.distanceToNearestBoundary(r, mu, ground) / scatteringSamples
	var rSum, mSum math.Vec3
	for i := 0; i <= scatteringSamples; i++ {
		d := float32(i) * dx
		rd := a.clampRadius(math32.Sqrt(d*d + 2*r*mu*d + r*r))
		muSD := clampCosine((r*muS + d*nu) / rd)
		trans := p.transmittance(r, mu, d, ground).Mul(p.toSun(rd, muSD))
		w := float32(1)
		if i == 0 || i == scatteringSamples {
			w = 0.5
		}
		rSum = rSum.Add(trans.MulScalar(a.RayleighDensity.density(rd-a.BottomRadius) * w))
		mSum = mSum.Add(trans.MulScalar(a.MieDensity.density(rd-a.BottomRadius) * w))
	}
	rayleigh = rSum.MulScalar(dx).Mul(a.SolarIrradiance).Mul(a.RayleighScattering)
	mie = mSum.MulScalar(dx).Mul(a.SolarIrradiance).Mul(a.MieScattering)
	return rayleigh, mie
}

// scatteringSlice fills depth slice z of the combined scattering texture:
// Rayleigh in rgb and the red channel of Mie in alpha.
func (p *precomputed) scatteringSlice(out []float32, z int, size ScatteringSize) {
	w, h, _ := size.Extent()
	base := z * w * h * 4
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, mu, muS, nu, ground := p.scatteringParams(x, y, z, size)
			rayleigh, mie := p.singleScattering(r, mu, muS, nu, ground)
			i := base + (y*w+x)*4
			out[i], out[i+1], out[i+2], out[i+3] = rayleigh.X, rayleigh.Y, rayleigh.Z, mie.X
		}
	}
}

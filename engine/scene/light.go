package scene

import (
	"github.com/spaghettifunk/vesta/engine/arena"
	"github.com/spaghettifunk/vesta/engine/core"
	"github.com/spaghettifunk/vesta/engine/math"
)

/**
 * @brief A light source written straight through to its slot in the lights
 * buffer.
 */
type Light struct {
	id   LightID
	data LightUBO
	slot arena.Allocation[LightUBO]
}

func (g *Graph) AddLight(t LightType, direction, color, location math.Vec3) (*Light, error) {
	slot, err := g.buffers.Lights.Allocate()
	if err != nil {
		return nil, err
	}
	l := &Light{
		id: LightID(len(g.lights)),
		data: LightUBO{
			Color:     color,
			Intensity: 1,
			Direction: direction,
			Range:     1,
			Location:  location,
			Type:      uint32(t),
		},
		slot: slot,
	}
	l.write()
	g.lights = append(g.lights, l)
	core.LogDebug("light %d: type %d at %v", l.id, t, location)
	return l, nil
}

func (l *Light) write() {
	*l.slot.Ptr = l.data
}

func (l *Light) ID() LightID          { return l.id }
func (l *Light) Slot() uint32         { return l.slot.Offset }
func (l *Light) Type() LightType      { return LightType(l.data.Type) }
func (l *Light) Color() math.Vec3     { return l.data.Color }
func (l *Light) Direction() math.Vec3 { return l.data.Direction }
func (l *Light) Location() math.Vec3  { return l.data.Location }
func (l *Light) Intensity() float32   { return l.data.Intensity }
func (l *Light) Range() float32       { return l.data.Range }

func (l *Light) SetType(t LightType) {
	l.data.Type = uint32(t)
	l.write()
}

func (l *Light) SetColor(c math.Vec3) {
	l.data.Color = c
	l.write()
}

func (l *Light) SetDirection(d math.Vec3) {
	l.data.Direction = d
	l.write()
}

func (l *Light) SetLocation(p math.Vec3) {
	l.data.Location = p
	l.write()
}

func (l *Light) SetIntensity(i float32) {
	l.data.Intensity = i
	l.write()
}

func (l *Light) SetRange(r float32) {
	l.data.Range = r
	l.write()
}

// SetSpotCone sets the inner and outer cone angles in radians.
func (l *Light) SetSpotCone(inner, outer float32) {
	l.data.SpotInnerConeAngle = inner
	l.data.SpotOuterConeAngle = outer
	l.write()
}

/**
 * @brief Global lighting parameters. Unlike lights these live in a single
 * uniform block and are flushed by the scene update when incoherent.
 */
type Lighting struct {
	numLights  uint32
	exposure   float32
	gamma      float32
	incoherent bool
}

func NewLighting(numLights uint32) Lighting {
	return Lighting{numLights: numLights, exposure: 4.5, gamma: 2.2, incoherent: true}
}

func (l *Lighting) NumLights() uint32 { return l.numLights }
func (l *Lighting) Exposure() float32 { return l.exposure }
func (l *Lighting) Gamma() float32    { return l.gamma }
func (l *Lighting) Incoherent() bool  { return l.incoherent }

func (l *Lighting) SetNumLights(n uint32) {
	l.numLights = n
	l.incoherent = true
}

func (l *Lighting) SetExposure(e float32) {
	l.exposure = e
	l.incoherent = true
}

func (l *Lighting) SetGamma(g float32) {
	l.gamma = g
	l.incoherent = true
}

func (l *Lighting) Flush() LightingUBO {
	l.incoherent = false
	return LightingUBO{NumLights: l.numLights, Exposure: l.exposure, Gamma: l.gamma}
}

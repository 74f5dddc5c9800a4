package scene

import (
	"github.com/spaghettifunk/vesta/engine/arena"
	"github.com/spaghettifunk/vesta/engine/core"
	"github.com/spaghettifunk/vesta/engine/math"
)

/**
 * @brief A PBR material. Its slot in the materials buffer is the only
 * copy the GPU reads; every setter stores straight into it.
 */
type Material struct {
	id   MaterialID
	data MaterialUBO
	slot arena.Allocation[MaterialUBO]
}

// NewMaterial allocates a material of type t. The type cannot change later.
func (g *Graph) NewMaterial(t MaterialType) (*Material, error) {
	slot, err := g.buffers.Materials.Allocate()
	if err != nil {
		return nil, err
	}
	m := &Material{
		id: MaterialID(len(g.materials)),
		data: MaterialUBO{
			BaseColorFactor:   math.NewVec4One(),
			PbrFactor:         math.Vec4{X: 0, Y: 1, Z: 0, W: 0},
			EmissiveFactor:    math.NewVec4Zero(),
			OcclusionStrength: 1,
			AlphaCutoff:       0,
			ColorTex:          int32(NoTexture),
			PbrTex:            int32(NoTexture),
			NormalTex:         int32(NoTexture),
			OcclusionTex:      int32(NoTexture),
			EmissiveTex:       int32(NoTexture),
			HeightTex:         int32(NoTexture),
			Type:              uint32(t),
		},
		slot: slot,
	}
	m.write()
	g.materials = append(g.materials, m)
	core.LogDebug("material %d: %s", m.id, t)
	return m, nil
}

func (m *Material) write() {
	*m.slot.Ptr = m.data
}

func (m *Material) ID() MaterialID     { return m.id }
func (m *Material) Type() MaterialType { return MaterialType(m.data.Type) }

// Slot is the offset of the material in the materials buffer.
func (m *Material) Slot() uint32 { return m.slot.Offset }

// UBO returns the shader view of the material.
func (m *Material) UBO() MaterialUBO { return m.data }

func (m *Material) ColorTex() TextureID     { return TextureID(m.data.ColorTex) }
func (m *Material) PbrTex() TextureID       { return TextureID(m.data.PbrTex) }
func (m *Material) NormalTex() TextureID    { return TextureID(m.data.NormalTex) }
func (m *Material) OcclusionTex() TextureID { return TextureID(m.data.OcclusionTex) }
func (m *Material) EmissiveTex() TextureID  { return TextureID(m.data.EmissiveTex) }
func (m *Material) HeightTex() TextureID    { return TextureID(m.data.HeightTex) }

func (m *Material) SetColorTex(tex TextureID) *Material {
	m.data.ColorTex = int32(tex)
	m.write()
	return m
}

func (m *Material) SetPbrTex(tex TextureID) *Material {
	m.data.PbrTex = int32(tex)
	m.write()
	return m
}

func (m *Material) SetNormalTex(tex TextureID) *Material {
	m.data.NormalTex = int32(tex)
	m.write()
	return m
}

func (m *Material) SetOcclusionTex(tex TextureID) *Material {
	m.data.OcclusionTex = int32(tex)
	m.write()
	return m
}

func (m *Material) SetEmissiveTex(tex TextureID) *Material {
	m.data.EmissiveTex = int32(tex)
	m.write()
	return m
}

// SetHeightTex is read by terrain materials only.
func (m *Material) SetHeightTex(tex TextureID) *Material {
	m.data.HeightTex = int32(tex)
	m.write()
	return m
}

func (m *Material) ColorFactor() math.Vec4 { return m.data.BaseColorFactor }

func (m *Material) SetColorFactor(c math.Vec4) *Material {
	m.data.BaseColorFactor = c
	m.write()
	return m
}

func (m *Material) PbrFactor() math.Vec4 { return m.data.PbrFactor }

// SetPbrFactor takes (occlusion, roughness, metallic, unused).
func (m *Material) SetPbrFactor(f math.Vec4) *Material {
	m.data.PbrFactor = f
	m.write()
	return m
}

func (m *Material) EmissiveFactor() math.Vec4 { return m.data.EmissiveFactor }

func (m *Material) SetEmissiveFactor(f math.Vec4) *Material {
	m.data.EmissiveFactor = f
	m.write()
	return m
}

func (m *Material) OcclusionStrength() float32 { return m.data.OcclusionStrength }

func (m *Material) SetOcclusionStrength(s float32) *Material {
	m.data.OcclusionStrength = s
	m.write()
	return m
}

func (m *Material) AlphaCutoff() float32 { return m.data.AlphaCutoff }

func (m *Material) SetAlphaCutoff(c float32) *Material {
	m.data.AlphaCutoff = c
	m.write()
	return m
}

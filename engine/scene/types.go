package scene

import (
	"fmt"

	"github.com/spaghettifunk/vesta/engine/core"
)

// Every entity is addressed by its index in the graph's arena of that kind.
// Back-references use the same indices; the None* values mean "no link".
type (
	PrimitiveID    uint32
	MaterialID     uint32
	MeshID         uint32
	NodeID         uint32
	ModelID        uint32
	InstanceID     uint32
	MeshInstanceID uint32
	LightID        uint32
)

const noIndex = ^uint32(0)

const (
	NoNode     = NodeID(noIndex)
	NoModel    = ModelID(noIndex)
	NoInstance = InstanceID(noIndex)
)

// TextureID is an index into the bindless texture array.
type TextureID int32

// NoTexture is never a valid array index.
const NoTexture TextureID = -1

// Topology is fixed when a primitive is created.
type Topology uint32

const (
	Triangles Topology = iota
	Lines
	Procedural
	Patches
)

func (t Topology) String() string {
	switch t {
	case Triangles:
		return "triangles"
	case Lines:
		return "lines"
	case Procedural:
		return "procedural"
	case Patches:
		return "patches"
	}
	return fmt.Sprintf("topology(%d)", uint32(t))
}

type DynamicType uint32

const (
	Static DynamicType = iota
	// Dynamic primitives hold one copy of their ranges per frame in flight.
	Dynamic
)

type MaterialType uint32

const (
	MaterialBRDF        MaterialType = 0x1  // BRDF without reflection trace
	MaterialBRDFSG      MaterialType = 0x2  // BRDF, spherical-gaussian lighting
	MaterialReflective  MaterialType = 0x4  // BRDF with reflection trace
	MaterialRefractive  MaterialType = 0x8  // BRDF with reflection and refraction trace
	MaterialNone        MaterialType = 0x10 // diffuse colouring only
	MaterialTranslucent MaterialType = 0x20 // translucent colour blending
	MaterialTerrain     MaterialType = 0x40
)

func (m MaterialType) String() string {
	switch m {
	case MaterialBRDF:
		return "brdf"
	case MaterialBRDFSG:
		return "brdf-sg"
	case MaterialReflective:
		return "reflective"
	case MaterialRefractive:
		return "refractive"
	case MaterialNone:
		return "none"
	case MaterialTranslucent:
		return "translucent"
	case MaterialTerrain:
		return "terrain"
	}
	return fmt.Sprintf("material(%#x)", uint32(m))
}

var materialTypes = []MaterialType{
	MaterialBRDF, MaterialBRDFSG, MaterialReflective, MaterialRefractive,
	MaterialNone, MaterialTranslucent, MaterialTerrain,
}

// ParseMaterialType is the inverse of MaterialType.String.
func ParseMaterialType(name string) (MaterialType, error) {
	for _, t := range materialTypes {
		if t.String() == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown material type %q: %w", name, core.ErrNotSupported)
}

type LightType uint32

const (
	LightDirectional LightType = 1
	LightPoint       LightType = 2
	LightSpot        LightType = 3
)

package scene

import (
	"github.com/spaghettifunk/vesta/engine/arena"
	"github.com/spaghettifunk/vesta/engine/math"
)

// The structs in this file are read by shaders as std430 blocks. Field order
// and padding must not change.

type PrimitiveUBO struct {
	Index    arena.Range
	Position arena.Range
	Normal   arena.Range
	UV       arena.Range
	Joint0   arena.Range
	Weight0  arena.Range
	AABBMin  math.Vec3
	_        float32
	AABBMax  math.Vec3
	_        float32

	TesselationLevel float32
	Topology         uint32
	Type             uint32
	_                uint32
}

type MaterialUBO struct {
	BaseColorFactor   math.Vec4
	PbrFactor         math.Vec4
	EmissiveFactor    math.Vec4
	OcclusionStrength float32
	AlphaCutoff       float32
	ColorTex          int32
	PbrTex            int32
	NormalTex         int32
	OcclusionTex      int32
	EmissiveTex       int32
	HeightTex         int32
	Type              uint32
	_                 [3]uint32
}

// MeshInstanceUBO links one draw to its primitive, material and the two
// transform slots (node and instance).
type MeshInstanceUBO struct {
	Primitive uint32
	Material  uint32
	Node      uint32
	Instance  uint32
}

type LightUBO struct {
	Color              math.Vec3
	Intensity          float32
	Direction          math.Vec3
	Range              float32
	Location           math.Vec3
	SpotInnerConeAngle float32
	SpotOuterConeAngle float32
	Type               uint32
	_                  [2]uint32
}

type LightingUBO struct {
	NumLights uint32
	Exposure  float32
	Gamma     float32
	_         uint32
}

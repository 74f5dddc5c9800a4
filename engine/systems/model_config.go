package systems

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"github.com/spaghettifunk/vesta/engine/core"
	"github.com/spaghettifunk/vesta/engine/scene"
)

// ModelConfig holds the fixed capacities of every scene pool. It is decoded
// from the [model] table of the engine config; zero fields take the default.
type ModelConfig struct {
	MaxNumVertex        uint32 `toml:"max_num_vertex"`
	MaxNumIndex         uint32 `toml:"max_num_index"`
	MaxNumDynamicVertex uint32 `toml:"max_num_dynamic_vertex"`
	MaxNumDynamicIndex  uint32 `toml:"max_num_dynamic_index"`
	MaxNumTransform     uint32 `toml:"max_num_transform"`
	MaxNumMaterial      uint32 `toml:"max_num_material"`
	MaxNumPrimitives    uint32 `toml:"max_num_primitives"`

	MaxNumMeshes                uint32 `toml:"max_num_meshes"`
	MaxNumLineMeshes            uint32 `toml:"max_num_line_meshes"`
	MaxNumTransparentMeshes     uint32 `toml:"max_num_transparent_meshes"`
	MaxNumTransparentLineMeshes uint32 `toml:"max_num_transparent_line_meshes"`
	MaxNumTerrainMeshes         uint32 `toml:"max_num_terrain_meshes"`

	MaxNumDynamicMeshes                uint32 `toml:"max_num_dynamic_meshes"`
	MaxNumDynamicLineMeshes            uint32 `toml:"max_num_dynamic_line_meshes"`
	MaxNumDynamicTransparentMeshes     uint32 `toml:"max_num_dynamic_transparent_meshes"`
	MaxNumDynamicTransparentLineMeshes uint32 `toml:"max_num_dynamic_transparent_line_meshes"`
	MaxNumDynamicTerrainMeshes         uint32 `toml:"max_num_dynamic_terrain_meshes"`

	MaxNumTexture uint32 `toml:"max_num_texture"`
	MaxNumLights  uint32 `toml:"max_num_lights"`
}

func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		MaxNumVertex:        10_000_000,
		MaxNumIndex:         10_000_000,
		MaxNumDynamicVertex: 10_000,
		MaxNumDynamicIndex:  10_000,
		MaxNumTransform:     100_000,
		MaxNumMaterial:      10_000,
		MaxNumPrimitives:    10_000,

		MaxNumMeshes:                1_000_000,
		MaxNumLineMeshes:            1_000,
		MaxNumTransparentMeshes:     1_000,
		MaxNumTransparentLineMeshes: 1_000,
		MaxNumTerrainMeshes:         1_000,

		MaxNumDynamicMeshes:                10_000,
		MaxNumDynamicLineMeshes:            1_000,
		MaxNumDynamicTransparentMeshes:     1_000,
		MaxNumDynamicTransparentLineMeshes: 1_000,
		MaxNumDynamicTerrainMeshes:         1_000,

		MaxNumTexture: 1_000,
		MaxNumLights:  1,
	}
}

// ParseModelConfig reads the [model] table out of a full engine config file.
// A file without the table yields the defaults.
func ParseModelConfig(data []byte) (ModelConfig, error) {
	var file struct {
		Model ModelConfig `toml:"model"`
	}
	if err := toml.Unmarshal(data, &file); err != nil {
		return DefaultModelConfig(), fmt.Errorf("failed to decode model config: %v: %w", err, core.ErrExternalResource)
	}
	cfg := file.Model.withDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c ModelConfig) withDefaults() ModelConfig {
	d := DefaultModelConfig()
	fill := func(v *uint32, def uint32) {
		if *v == 0 {
			*v = def
		}
	}
	fill(&c.MaxNumVertex, d.MaxNumVertex)
	fill(&c.MaxNumIndex, d.MaxNumIndex)
	fill(&c.MaxNumDynamicVertex, d.MaxNumDynamicVertex)
	fill(&c.MaxNumDynamicIndex, d.MaxNumDynamicIndex)
	fill(&c.MaxNumTransform, d.MaxNumTransform)
	fill(&c.MaxNumMaterial, d.MaxNumMaterial)
	fill(&c.MaxNumPrimitives, d.MaxNumPrimitives)
	fill(&c.MaxNumMeshes, d.MaxNumMeshes)
	fill(&c.MaxNumLineMeshes, d.MaxNumLineMeshes)
	fill(&c.MaxNumTransparentMeshes, d.MaxNumTransparentMeshes)
	fill(&c.MaxNumTransparentLineMeshes, d.MaxNumTransparentLineMeshes)
	fill(&c.MaxNumTerrainMeshes, d.MaxNumTerrainMeshes)
	fill(&c.MaxNumDynamicMeshes, d.MaxNumDynamicMeshes)
	fill(&c.MaxNumDynamicLineMeshes, d.MaxNumDynamicLineMeshes)
	fill(&c.MaxNumDynamicTransparentMeshes, d.MaxNumDynamicTransparentMeshes)
	fill(&c.MaxNumDynamicTransparentLineMeshes, d.MaxNumDynamicTransparentLineMeshes)
	fill(&c.MaxNumDynamicTerrainMeshes, d.MaxNumDynamicTerrainMeshes)
	fill(&c.MaxNumTexture, d.MaxNumTexture)
	fill(&c.MaxNumLights, d.MaxNumLights)
	return c
}

func (c ModelConfig) Validate() error {
	if c.MaxNumLights == 0 {
		return fmt.Errorf("max_num_lights must be at least 1: %w", core.ErrInvariantViolation)
	}
	if c.MaxNumTexture == 0 {
		return fmt.Errorf("max_num_texture must be at least 1: %w", core.ErrInvariantViolation)
	}
	return nil
}

// TotalMeshes is the number of static mesh instances the draw queues hold.
func (c ModelConfig) TotalMeshes() uint32 {
	return c.MaxNumMeshes + c.MaxNumLineMeshes + c.MaxNumTransparentMeshes +
		c.MaxNumTransparentLineMeshes + c.MaxNumTerrainMeshes
}

// TotalDynamicMeshes is the number of dynamic mesh instances per frame.
func (c ModelConfig) TotalDynamicMeshes() uint32 {
	return c.MaxNumDynamicMeshes + c.MaxNumDynamicLineMeshes + c.MaxNumDynamicTransparentMeshes +
		c.MaxNumDynamicTransparentLineMeshes + c.MaxNumDynamicTerrainMeshes
}

// Capacities sizes the scene pools for frames in flight.
func (c ModelConfig) Capacities(frames uint32) scene.PoolCapacities {
	var static, dynamic scene.QueueCapacities
	static[scene.OpaqueTriangles] = c.MaxNumMeshes
	static[scene.OpaqueLines] = c.MaxNumLineMeshes
	static[scene.TransparentTriangles] = c.MaxNumTransparentMeshes
	static[scene.TransparentLines] = c.MaxNumTransparentLineMeshes
	static[scene.Terrain] = c.MaxNumTerrainMeshes
	dynamic[scene.OpaqueTriangles] = c.MaxNumDynamicMeshes
	dynamic[scene.OpaqueLines] = c.MaxNumDynamicLineMeshes
	dynamic[scene.TransparentTriangles] = c.MaxNumDynamicTransparentMeshes
	dynamic[scene.TransparentLines] = c.MaxNumDynamicTransparentLineMeshes
	dynamic[scene.Terrain] = c.MaxNumDynamicTerrainMeshes
	return scene.PoolCapacities{
		Transforms:    c.MaxNumTransform,
		Materials:     c.MaxNumMaterial,
		Primitives:    c.MaxNumPrimitives,
		MeshInstances: c.TotalMeshes() + c.TotalDynamicMeshes(),
		Lights:        c.MaxNumLights,
		StaticDraws:   static,
		DynamicDraws:  dynamic,
		Frames:        frames,
	}
}

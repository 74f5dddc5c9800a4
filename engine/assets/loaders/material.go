package loaders

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spaghettifunk/vesta/engine/core"
	"github.com/spaghettifunk/vesta/engine/math"
)

// MaterialMaps are texture paths relative to the material file's directory.
type MaterialMaps struct {
	Color     string `toml:"color"`
	PBR       string `toml:"pbr"`
	Normal    string `toml:"normal"`
	Occlusion string `toml:"occlusion"`
	Emissive  string `toml:"emissive"`
	Height    string `toml:"height"`
}

/**
 * @brief A material description as written in a .vmt file.
 */
type MaterialConfig struct {
	Name              string       `toml:"name"`
	Type              string       `toml:"type"`
	ColorFactor       [4]float32   `toml:"color_factor"`
	PbrFactor         [4]float32   `toml:"pbr_factor"`
	EmissiveFactor    [4]float32   `toml:"emissive_factor"`
	OcclusionStrength float32      `toml:"occlusion_strength"`
	AlphaCutoff       float32      `toml:"alpha_cutoff"`
	Maps              MaterialMaps `toml:"maps"`
}

func defaultMaterialConfig() MaterialConfig {
	return MaterialConfig{
		Type:              "brdf",
		ColorFactor:       [4]float32{1, 1, 1, 1},
		PbrFactor:         [4]float32{0, 1, 0, 0},
		OcclusionStrength: 1,
	}
}

func (c MaterialConfig) Color() math.Vec4    { return vec4(c.ColorFactor) }
func (c MaterialConfig) PBR() math.Vec4      { return vec4(c.PbrFactor) }
func (c MaterialConfig) Emissive() math.Vec4 { return vec4(c.EmissiveFactor) }

func vec4(v [4]float32) math.Vec4 {
	return math.NewVec4(v[0], v[1], v[2], v[3])
}

type MaterialLoader struct{}

func (ml *MaterialLoader) Load(path string, assetType ResourceType, params any) (*Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read material %s: %v: %w", path, err, core.ErrExternalResource)
	}
	cfg, err := ParseMaterial(data)
	if err != nil {
		return nil, fmt.Errorf("material %s: %w", path, err)
	}
	return &Resource{
		Name:     cfg.Name,
		FullPath: path,
		Type:     ResourceTypeMaterial,
		DataSize: uint64(len(data)),
		Data:     cfg,
	}, nil
}

func (ml *MaterialLoader) Unload(*Resource) error {
	return nil
}

// ParseMaterial decodes and validates a material description. Missing
// fields keep the defaults of a plain white BRDF material.
func ParseMaterial(data []byte) (*MaterialConfig, error) {
	cfg := defaultMaterialConfig()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode material: %v: %w", err, core.ErrExternalResource)
	}
	if err := validateMaterial(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validateMaterial(material *MaterialConfig) error {
	if material.Name == "" {
		return fmt.Errorf("material name is required: %w", core.ErrExternalResource)
	}
	for _, v := range material.ColorFactor {
		if v < 0 || v > 1 {
			return fmt.Errorf("color_factor values must be between 0.0 and 1.0: %w", core.ErrExternalResource)
		}
	}
	if material.OcclusionStrength < 0 {
		return fmt.Errorf("occlusion_strength must be a non-negative value: %w", core.ErrExternalResource)
	}
	if material.AlphaCutoff < 0 || material.AlphaCutoff > 1 {
		return fmt.Errorf("alpha_cutoff must be between 0.0 and 1.0: %w", core.ErrExternalResource)
	}
	return nil
}

package core

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// EngineConfig holds the settings read from the engine TOML file. Tables
// owned by other packages (for example [model]) are decoded separately from
// the same bytes.
type EngineConfig struct {
	Title          string `toml:"title"`
	Width          uint32 `toml:"width"`
	Height         uint32 `toml:"height"`
	FramesInFlight uint32 `toml:"frames_in_flight"`
	LogLevel       string `toml:"log_level"`
	AssetRoot      string `toml:"asset_root"`
	VSync          bool   `toml:"vsync"`
	Validation     bool   `toml:"validation"`
	HotReload      bool   `toml:"hot_reload"`
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Title:          "Vesta",
		Width:          1280,
		Height:         720,
		FramesInFlight: 2,
		LogLevel:       "info",
		AssetRoot:      "assets",
		VSync:          true,
	}
}

// ParseEngineConfig decodes data on top of the defaults.
func ParseEngineConfig(data []byte) (EngineConfig, error) {
	cfg := DefaultEngineConfig()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to decode engine config: %v: %w", err, ErrExternalResource)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadEngineConfig reads and decodes the file at path. A missing file yields
// the defaults.
func LoadEngineConfig(path string) (EngineConfig, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			LogWarn("config file `%s` not found, using defaults", path)
			return DefaultEngineConfig(), nil, nil
		}
		return EngineConfig{}, nil, fmt.Errorf("failed to read config `%s`: %v: %w", path, err, ErrExternalResource)
	}
	cfg, err := ParseEngineConfig(data)
	return cfg, data, err
}

func (c EngineConfig) Validate() error {
	if c.FramesInFlight == 0 {
		return fmt.Errorf("frames_in_flight must be at least 1: %w", ErrInvariantViolation)
	}
	if c.Width == 0 || c.Height == 0 {
		return fmt.Errorf("window extent %dx%d is empty: %w", c.Width, c.Height, ErrInvariantViolation)
	}
	return nil
}

package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/vesta/engine/core"
	"github.com/spaghettifunk/vesta/engine/systems"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	cfg, model, err := loadConfig(&ApplicationConfig{})
	require.NoError(t, err)
	assert.Equal(t, core.DefaultEngineConfig(), cfg)
	assert.Equal(t, systems.DefaultModelConfig(), model)

	path := filepath.Join(t.TempDir(), "vesta.toml")
	data := []byte(`
title = "ignored"
width = 640
height = 480

[model]
max_num_lights = 4
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	cfg, model, err = loadConfig(&ApplicationConfig{ConfigPath: path, Name: "Testbed"})
	require.NoError(t, err)
	assert.Equal(t, "Testbed", cfg.Title)
	assert.Equal(t, uint32(640), cfg.Width)
	assert.Equal(t, uint32(2), cfg.FramesInFlight)
	assert.Equal(t, uint32(4), model.MaxNumLights)
	assert.Equal(t, systems.DefaultModelConfig().MaxNumMeshes, model.MaxNumMeshes)

	_, _, err = loadConfig(&ApplicationConfig{ConfigPath: filepath.Join(t.TempDir(), "missing.toml")})
	assert.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("frames_in_flight = 0\n"), 0o644))
	_, _, err = loadConfig(&ApplicationConfig{ConfigPath: path})
	assert.ErrorIs(t, err, core.ErrInvariantViolation)
}

func TestSystemManagerConfig(t *testing.T) {
	e := &Engine{
		gameInstance: &Game{ApplicationConfig: &ApplicationConfig{Workers: 3}},
		config:       core.DefaultEngineConfig(),
	}
	cfg := e.systemManagerConfig()
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 12, cfg.JobQueue)
	assert.Equal(t, "assets", cfg.AssetRoot)

	e.gameInstance.ApplicationConfig.Workers = 0
	assert.GreaterOrEqual(t, e.systemManagerConfig().Workers, 1)
}

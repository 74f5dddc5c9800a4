package assets

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spaghettifunk/vesta/engine/assets/loaders"
	"github.com/spaghettifunk/vesta/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadAssetIndexesRoot(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "materials", "red.vmt"), "name = \"red\"\ncolor_factor = [1, 0, 0, 1]\n")
	writeFile(t, filepath.Join(root, "notes.txt"), "ignored")

	am := NewAssetManager(root)
	require.NoError(t, am.Initialize(false))
	assert.Equal(t, []string{filepath.Join(root, "materials", "red.vmt")}, am.Assets(loaders.ResourceTypeMaterial))

	res, err := am.LoadAsset("materials/red.vmt", nil)
	require.NoError(t, err)
	assert.Equal(t, loaders.ResourceTypeMaterial, res.Type)
	cfg, ok := res.Data.(*loaders.MaterialConfig)
	require.True(t, ok)
	assert.Equal(t, "red", cfg.Name)

	_, err = am.LoadAsset("materials/blue.vmt", nil)
	assert.ErrorIs(t, err, core.ErrExternalResource)
	_, err = am.LoadAsset("notes.txt", nil)
	assert.ErrorIs(t, err, core.ErrExternalResource)
}

func TestInitializeMissingRoot(t *testing.T) {
	am := NewAssetManager(filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, am.Initialize(false), core.ErrExternalResource)
}

func TestPollRunsReloadHandlers(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "m.vmt")
	writeFile(t, path, "name = \"first\"\n")

	am := NewAssetManager(root)
	require.NoError(t, am.Initialize(false))
	var names []string
	am.OnReload(loaders.ResourceTypeMaterial, func(res *loaders.Resource) error {
		names = append(names, res.Data.(*loaders.MaterialConfig).Name)
		return nil
	})

	n, err := am.Poll()
	require.NoError(t, err)
	assert.Zero(t, n)

	writeFile(t, path, "name = \"second\"\n")
	am.queue(path)
	am.queue(path)
	n, err = am.Poll()
	require.NoError(t, err)
	assert.Equal(t, 1, n, "duplicate events collapse")
	assert.Equal(t, []string{"second"}, names)

	writeFile(t, path, "name = ")
	am.queue(path)
	_, err = am.Poll()
	assert.ErrorIs(t, err, core.ErrExternalResource)
}

func TestWatcherQueuesChangedFiles(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "shaders", "wave.comp.spv")
	spirv := string([]byte{0x03, 0x02, 0x23, 0x07, 0, 0, 0, 0})
	writeFile(t, path, spirv)

	am := NewAssetManager(root)
	require.NoError(t, am.Initialize(true))
	defer am.Shutdown()

	reloaded := 0
	am.OnReload(loaders.ResourceTypeShader, func(res *loaders.Resource) error {
		reloaded++
		return nil
	})
	writeFile(t, path, spirv)

	require.Eventually(t, func() bool {
		_, err := am.Poll()
		return err == nil && reloaded > 0
	}, 5*time.Second, 20*time.Millisecond)
}

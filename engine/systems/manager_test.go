package systems

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vesta/engine/assets/loaders"
	"github.com/spaghettifunk/vesta/engine/core"
	"github.com/spaghettifunk/vesta/engine/renderer/vulkan"
	"github.com/spaghettifunk/vesta/engine/renderer/vulkan/vktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingFeature struct {
	name     string
	log      *[]string
	initErr  error
	updates  int
	reloaded []string
}

func (f *recordingFeature) Name() string { return f.name }

func (f *recordingFeature) Init(sm *SceneManager) error {
	*f.log = append(*f.log, "init "+f.name)
	return f.initErr
}

func (f *recordingFeature) Update(cb vulkan.CommandRecorder, frame uint32, elapsed float32) error {
	f.updates++
	return nil
}

func (f *recordingFeature) Resize(width, height uint32) error {
	*f.log = append(*f.log, "resize "+f.name)
	return nil
}

func (f *recordingFeature) Destroy() {
	*f.log = append(*f.log, "destroy "+f.name)
}

func (f *recordingFeature) ReloadShader(name string) error {
	f.reloaded = append(f.reloaded, name)
	return nil
}

func writeShaders(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(root, ShaderDir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, fakeSpirv, 0o644))
	}
}

func newSystemManager(t *testing.T) (*SystemManager, *vktest.Device, string) {
	t.Helper()
	root := t.TempDir()
	writeShaders(t, root, SceneShaders...)
	device := vktest.NewDevice()
	gbuffer, err := vulkan.NewGBuffer(device, 64, 32, vk.FormatD32Sfloat)
	require.NoError(t, err)
	scene, err := NewSceneManager(device, &vulkan.RenderPass{Subpasses: 3}, gbuffer, 64, 32, 2, tinyConfig())
	require.NoError(t, err)
	m, err := NewSystemManager(scene, SystemManagerConfig{AssetRoot: root, Workers: 2, JobQueue: 4})
	require.NoError(t, err)
	return m, device, root
}

func TestNewSystemManager(t *testing.T) {
	m, device, _ := newSystemManager(t)
	defer m.Destroy()
	assert.NotNil(t, m.Scene().Pipelines())
	assert.NotEmpty(t, device.GraphicsPipes)

	code, err := m.Shaders().Shader(shaderGBufferVert)
	require.NoError(t, err)
	assert.Equal(t, fakeSpirv, code)
	_, err = m.Shaders().Shader("basic/missing.frag.spv")
	assert.ErrorIs(t, err, core.ErrExternalResource)

	ran := false
	require.NoError(t, m.Scene().RunJobs(func() error { ran = true; return nil }))
	assert.True(t, ran)
}

func TestNewSystemManagerMissingShaders(t *testing.T) {
	device := vktest.NewDevice()
	gbuffer, err := vulkan.NewGBuffer(device, 64, 32, vk.FormatD32Sfloat)
	require.NoError(t, err)
	scene, err := NewSceneManager(device, &vulkan.RenderPass{Subpasses: 3}, gbuffer, 64, 32, 2, tinyConfig())
	require.NoError(t, err)
	defer scene.Destroy()

	_, err = NewSystemManager(scene, SystemManagerConfig{AssetRoot: t.TempDir(), Workers: 1})
	assert.ErrorIs(t, err, core.ErrExternalResource)
	_, err = NewSystemManager(scene, SystemManagerConfig{AssetRoot: filepath.Join(t.TempDir(), "nope"), Workers: 1})
	assert.ErrorIs(t, err, core.ErrExternalResource)
	_, err = NewSystemManager(scene, SystemManagerConfig{AssetRoot: t.TempDir()})
	assert.ErrorIs(t, err, ErrNoWorkers)
}

func TestFeatureLifecycle(t *testing.T) {
	m, device, _ := newSystemManager(t)
	var log []string
	a := &recordingFeature{name: "a", log: &log}
	b := &recordingFeature{name: "b", log: &log}
	require.NoError(t, m.Register(a))
	require.NoError(t, m.Register(b))
	assert.ErrorIs(t, m.Register(&recordingFeature{name: "a", log: &log}), core.ErrInvariantViolation)
	assert.Error(t, m.Register(&recordingFeature{name: "c", log: &log, initErr: errors.New("boom")}))
	assert.Len(t, m.Features(), 2)
	assert.Same(t, b, m.Feature("b"))
	assert.Nil(t, m.Feature("c"))

	transfer, compute := vktest.NewRecorder(device), vktest.NewRecorder(device)
	require.NoError(t, m.Update(transfer, compute, 0, 0.016))
	require.NoError(t, m.Update(transfer, compute, 1, 0.016))
	assert.Equal(t, 2, a.updates)
	assert.Equal(t, 2, b.updates)

	gbuffer, err := vulkan.NewGBuffer(device, 128, 64, vk.FormatD32Sfloat)
	require.NoError(t, err)
	require.NoError(t, m.Resize(128, 64, gbuffer))
	assert.Equal(t, uint32(128), m.Scene().Camera().Width())

	m.Destroy()
	assert.Equal(t, []string{
		"init a", "init b", "init c",
		"resize a", "resize b",
		"destroy b", "destroy a",
	}, log)
}

func TestReloadShader(t *testing.T) {
	m, _, root := newSystemManager(t)
	defer m.Destroy()
	var log []string
	f := &recordingFeature{name: "f", log: &log}
	require.NoError(t, m.Register(f))

	name := "ocean/wave_fft_ping.comp.spv"
	writeShaders(t, root, name)
	res, err := m.Assets().LoadAsset(filepath.Join(ShaderDir, name), nil)
	require.NoError(t, err)
	require.NoError(t, m.reloadShader(res))
	assert.Equal(t, []string{name}, f.reloaded)

	bad := &loaders.Resource{FullPath: res.FullPath, Data: "text"}
	assert.ErrorIs(t, m.reloadShader(bad), core.ErrInvariantViolation)
}

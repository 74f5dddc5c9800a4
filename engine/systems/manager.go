package systems

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"

	"github.com/spaghettifunk/vesta/engine/assets"
	"github.com/spaghettifunk/vesta/engine/assets/loaders"
	"github.com/spaghettifunk/vesta/engine/core"
	"github.com/spaghettifunk/vesta/engine/renderer/vulkan"
)

// ShaderDir is the folder of compiled shaders below the asset root.
const ShaderDir = "shaders"

type SystemManagerConfig struct {
	AssetRoot string
	HotReload bool
	Workers   int
	JobQueue  int
}

// ShaderReloader is implemented by features that compile their own
// pipelines from the shared shader source.
type ShaderReloader interface {
	ReloadShader(name string) error
}

/**
 * @brief Owns the scene manager together with the job system, the asset
 * manager and the registered features. Features are updated in
 * registration order and destroyed in reverse.
 */
type SystemManager struct {
	scene    *SceneManager
	jobs     *JobSystem
	assets   *assets.AssetManager
	shaders  ShaderSource
	features []Feature
}

// NewSystemManager takes ownership of scene and builds its pipelines from
// the shaders below the asset root.
func NewSystemManager(scene *SceneManager, cfg SystemManagerConfig) (*SystemManager, error) {
	js, err := NewJobSystem(cfg.Workers, cfg.JobQueue)
	if err != nil {
		return nil, err
	}
	am := assets.NewAssetManager(cfg.AssetRoot)
	if err := am.Initialize(cfg.HotReload); err != nil {
		js.Shutdown()
		return nil, err
	}
	m := &SystemManager{
		scene:   scene,
		jobs:    js,
		assets:  am,
		shaders: &assetShaders{am: am},
	}
	scene.SetJobSystem(js)
	am.OnReload(loaders.ResourceTypeShader, m.reloadShader)
	if err := scene.BuildPipelines(m.shaders); err != nil {
		am.Shutdown()
		js.Shutdown()
		return nil, err
	}
	return m, nil
}

func (m *SystemManager) Scene() *SceneManager         { return m.scene }
func (m *SystemManager) Jobs() *JobSystem             { return m.jobs }
func (m *SystemManager) Assets() *assets.AssetManager { return m.assets }
func (m *SystemManager) Shaders() ShaderSource        { return m.shaders }
func (m *SystemManager) Features() []Feature          { return m.features }

// Register initializes f and appends it to the update order.
func (m *SystemManager) Register(f Feature) error {
	if m.Feature(f.Name()) != nil {
		return fmt.Errorf("feature %s registered twice: %w", f.Name(), core.ErrInvariantViolation)
	}
	if err := f.Init(m.scene); err != nil {
		return fmt.Errorf("feature %s: %w", f.Name(), err)
	}
	m.features = append(m.features, f)
	core.LogInfo("Feature %s registered.", f.Name())
	return nil
}

func (m *SystemManager) Feature(name string) Feature {
	for _, f := range m.features {
		if f.Name() == name {
			return f
		}
	}
	return nil
}

// Update applies pending asset reloads, records the feature passes and
// pushes the scene changes of the frame.
func (m *SystemManager) Update(transfer, compute vulkan.CommandRecorder, frame uint32, elapsed float32) error {
	if _, err := m.assets.Poll(); err != nil {
		core.LogWarn("Asset reload: %v", err)
	}
	for _, f := range m.features {
		if err := f.Update(compute, frame, elapsed); err != nil {
			return fmt.Errorf("feature %s: %w", f.Name(), err)
		}
	}
	return m.scene.UpdateScene(transfer, compute, frame, elapsed)
}

func (m *SystemManager) Draw(cb vulkan.CommandRecorder, frame uint32) error {
	return m.scene.DrawScene(cb, frame)
}

func (m *SystemManager) Resize(width, height uint32, gbuffer *vulkan.GBuffer) error {
	if err := m.scene.Resize(width, height, gbuffer); err != nil {
		return err
	}
	for _, f := range m.features {
		if err := f.Resize(width, height); err != nil {
			return fmt.Errorf("feature %s: %w", f.Name(), err)
		}
	}
	return nil
}

func (m *SystemManager) Destroy() {
	for i := len(m.features) - 1; i >= 0; i-- {
		m.features[i].Destroy()
	}
	m.features = nil
	m.scene.Destroy()
	m.assets.Shutdown()
	if err := m.jobs.Shutdown(); err != nil {
		core.LogError("Job system shutdown: %v", err)
	}
}

func (m *SystemManager) reloadShader(res *loaders.Resource) error {
	rel, err := filepath.Rel(m.assets.Path(ShaderDir), res.FullPath)
	if err != nil {
		return err
	}
	name := filepath.ToSlash(rel)
	data, ok := res.Data.(*loaders.ShaderData)
	if !ok {
		return fmt.Errorf("shader %s carries %T: %w", name, res.Data, core.ErrInvariantViolation)
	}
	var errs []error
	errs = append(errs, m.scene.ReloadComputeShader(name, data.Code))
	for _, f := range m.features {
		if r, ok := f.(ShaderReloader); ok {
			errs = append(errs, r.ReloadShader(name))
		}
	}
	return errors.Join(errs...)
}

// assetShaders reads compiled shaders through the asset manager.
type assetShaders struct {
	am *assets.AssetManager
}

func (s *assetShaders) Shader(name string) ([]byte, error) {
	res, err := s.am.LoadAsset(path.Join(ShaderDir, name), nil)
	if err != nil {
		return nil, err
	}
	data, ok := res.Data.(*loaders.ShaderData)
	if !ok {
		return nil, fmt.Errorf("%s is not a shader: %w", name, core.ErrInvariantViolation)
	}
	return data.Code, nil
}

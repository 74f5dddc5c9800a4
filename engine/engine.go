package engine

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/spaghettifunk/vesta/engine/core"
	"github.com/spaghettifunk/vesta/engine/platform"
	"github.com/spaghettifunk/vesta/engine/renderer/vulkan"
	"github.com/spaghettifunk/vesta/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

// metricsReportSeconds is the interval between two frame time log lines.
const metricsReportSeconds = 5.0

type Engine struct {
	currentStage  Stage
	gameInstance  *Game
	config        core.EngineConfig
	modelConfig   systems.ModelConfig
	isRunning     atomic.Bool
	isSuspended   bool
	platform      *platform.Platform
	renderer      *vulkan.VulkanRenderer
	systemManager *systems.SystemManager
	width         uint32
	height        uint32
	clock         *core.Clock
	metrics       *core.FrameMetrics
	lastTime      float64
	lastReport    float64
}

func New(g *Game) (*Engine, error) {
	if g == nil || g.ApplicationConfig == nil {
		return nil, fmt.Errorf("game without application config: %w", core.ErrInvariantViolation)
	}
	cfg, model, err := loadConfig(g.ApplicationConfig)
	if err != nil {
		return nil, err
	}
	if err := core.SetLogLevel(cfg.LogLevel); err != nil {
		return nil, err
	}

	p, err := platform.New()
	if err != nil {
		return nil, err
	}

	return &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		config:       cfg,
		modelConfig:  model,
		platform:     p,
		renderer:     vulkan.New(p, &cfg),
		clock:        core.NewClock(),
		metrics:      core.NewFrameMetrics(),
		width:        cfg.Width,
		height:       cfg.Height,
	}, nil
}

// loadConfig reads the engine settings and the [model] table of the same
// file.
func loadConfig(app *ApplicationConfig) (core.EngineConfig, systems.ModelConfig, error) {
	cfg := core.DefaultEngineConfig()
	model := systems.DefaultModelConfig()
	if app.ConfigPath != "" {
		var data []byte
		var err error
		if cfg, data, err = core.LoadEngineConfig(app.ConfigPath); err != nil {
			return cfg, model, err
		}
		if data != nil {
			if model, err = systems.ParseModelConfig(data); err != nil {
				return cfg, model, err
			}
		}
	}
	if app.Name != "" {
		cfg.Title = app.Name
	}
	return cfg, model, nil
}

func (e *Engine) systemManagerConfig() systems.SystemManagerConfig {
	app := e.gameInstance.ApplicationConfig
	workers := app.Workers
	if workers <= 0 {
		workers = max(runtime.NumCPU()-1, 1)
	}
	queue := app.JobQueue
	if queue <= 0 {
		queue = 4 * workers
	}
	return systems.SystemManagerConfig{
		AssetRoot: e.config.AssetRoot,
		HotReload: e.config.HotReload,
		Workers:   workers,
		JobQueue:  queue,
	}
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing

	// initialize input
	if err := core.InputInitialize(); err != nil {
		return err
	}

	// initialize events
	if !core.EventSystemInitialize() {
		return fmt.Errorf("failed to initialize the event system: %w", core.ErrInvariantViolation)
	}

	// register some events
	core.EventRegister(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	core.EventRegister(core.EVENT_CODE_KEY_PRESSED, e, e.onKey)
	core.EventRegister(core.EVENT_CODE_RESIZED, e, e.onResized)

	app := e.gameInstance.ApplicationConfig
	if err := e.platform.Startup(e.config.Title, app.StartPosX, app.StartPosY, e.width, e.height); err != nil {
		return err
	}
	e.platform.OnResize(func(width, height uint32) {
		core.EventFire(core.EventContext{Type: core.EVENT_CODE_RESIZED, Data: &core.ResizeEvent{Width: width, Height: height}})
	})

	if err := e.renderer.Initialize(e.config.Title, e.width, e.height); err != nil {
		return err
	}
	e.width, e.height = e.renderer.Extent()

	scene, err := systems.NewSceneManager(e.renderer.Device(), e.renderer.RenderPass(), e.renderer.GBuffer(),
		e.width, e.height, e.renderer.FramesInFlight(), e.modelConfig)
	if err != nil {
		return err
	}
	sm, err := systems.NewSystemManager(scene, e.systemManagerConfig())
	if err != nil {
		scene.Destroy()
		return err
	}
	e.systemManager = sm
	e.gameInstance.SystemManager = sm

	// the renderer rebuilds the swapchain lazily; the scene follows once the
	// new G-buffer exists
	e.renderer.OnResize(e.onSwapchainResized)

	if err := e.gameInstance.FnInitialize(); err != nil {
		return err
	}
	if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
		return err
	}

	e.currentStage = EngineStageInitialized
	return nil
}

func (e *Engine) Run() error {
	e.currentStage = EngineStageRunning
	e.isRunning.Store(true)

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	for e.isRunning.Load() {
		if !e.platform.PumpMessages() {
			e.isRunning.Store(false)
			break
		}
		if e.isSuspended {
			continue
		}

		// Update clock and get delta time.
		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime
		frameStartTime := e.platform.Time()

		if err := e.gameInstance.FnUpdate(delta); err != nil {
			core.LogError("Game update failed, shutting down: %v", err)
			return err
		}
		if err := e.drawFrame(float32(delta)); err != nil {
			core.LogError("Frame failed, shutting down: %v", err)
			return err
		}

		e.metrics.Update(e.platform.Time() - frameStartTime)
		if currentTime-e.lastReport >= metricsReportSeconds {
			e.lastReport = currentTime
			core.LogDebug("FPS: %5.1f (%4.2fms)", e.metrics.FPS(), e.metrics.FrameTime())
		}

		// NOTE: Input update/state copying should always be handled
		// after any input should be recorded; I.E. before this line.
		core.InputUpdate()

		e.lastTime = currentTime
	}
	return nil
}

// drawFrame records one frame: feature passes and scene uploads first, then
// the deferred pass.
func (e *Engine) drawFrame(delta float32) error {
	cb, frame, ok, err := e.renderer.BeginFrame()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := e.systemManager.Update(cb, cb, frame, delta); err != nil {
		return err
	}
	e.renderer.BeginRenderPass(cb)
	drawErr := e.systemManager.Draw(cb, frame)
	e.renderer.EndRenderPass(cb)
	if drawErr != nil {
		return drawErr
	}
	return e.renderer.EndFrame(cb)
}

// Stop ends the frame loop at the next iteration. Safe to call from any
// goroutine.
func (e *Engine) Stop() {
	e.isRunning.Store(false)
}

// Shutdown releases everything in the reverse order of Initialize.
func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown
	var shutdownErr error
	if e.gameInstance.FnShutdown != nil {
		shutdownErr = e.gameInstance.FnShutdown()
	}
	if e.systemManager != nil {
		if err := e.renderer.Device().WaitIdle(); err != nil {
			core.LogError("Device wait: %v", err)
		}
		e.systemManager.Destroy()
		e.systemManager = nil
		e.gameInstance.SystemManager = nil
	}
	if err := e.renderer.Shutdown(); err != nil {
		return err
	}
	if err := e.platform.Shutdown(); err != nil {
		return err
	}
	if err := core.EventSystemShutdown(); err != nil {
		return err
	}
	if err := core.InputShutdown(); err != nil {
		return err
	}
	e.currentStage = EngineStageUninitialized
	return shutdownErr
}

// ApplicationGetFramebufferSize returns the width and height (in this order)
// of the application Framebuffer
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

func (e *Engine) Stage() Stage {
	return e.currentStage
}

func (e *Engine) onEvent(listener any, context core.EventContext) bool {
	switch context.Type {
	case core.EVENT_CODE_APPLICATION_QUIT:
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning.Store(false)
		return true
	}
	return false
}

func (e *Engine) onKey(listener any, context core.EventContext) bool {
	ke, ok := context.Data.(*core.KeyEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return false
	}
	if ke.KeyCode == core.KEY_ESCAPE {
		// NOTE: Technically firing an event to itself, but there may be other listeners.
		core.EventFire(core.EventContext{Type: core.EVENT_CODE_APPLICATION_QUIT})
		// Block anything else from processing this.
		return true
	}
	return false
}

func (e *Engine) onResized(listener any, context core.EventContext) bool {
	re, ok := context.Data.(*core.ResizeEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return false
	}
	if re.Width == e.width && re.Height == e.height {
		return false
	}
	e.width, e.height = re.Width, re.Height
	core.LogDebug("Window resize: %d, %d", re.Width, re.Height)

	// Handle minimization
	if re.Width == 0 || re.Height == 0 {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended = true
		return true
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
	}
	e.renderer.Resized(re.Width, re.Height)
	return false
}

func (e *Engine) onSwapchainResized(width, height uint32, gbuffer *vulkan.GBuffer) {
	e.width, e.height = width, height
	if err := e.systemManager.Resize(width, height, gbuffer); err != nil {
		core.LogError("Scene resize: %v", err)
		e.isRunning.Store(false)
		return
	}
	if err := e.gameInstance.FnOnResize(width, height); err != nil {
		core.LogError("Game resize: %v", err)
	}
}

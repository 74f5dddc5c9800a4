package testbed

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/spaghettifunk/vesta/engine"
	"github.com/spaghettifunk/vesta/engine/core"
	"github.com/spaghettifunk/vesta/engine/features/ibl"
	"github.com/spaghettifunk/vesta/engine/features/ocean"
	"github.com/spaghettifunk/vesta/engine/features/shadow"
	"github.com/spaghettifunk/vesta/engine/features/sky"
	"github.com/spaghettifunk/vesta/engine/features/terrain"
	"github.com/spaghettifunk/vesta/engine/math"
	"github.com/spaghettifunk/vesta/engine/systems"
)

const (
	tempMoveSpeed float32 = 50.0
	tempTurnSpeed float32 = 1.0

	sunZenith  float32 = 60
	sunAzimuth float32 = 30

	oceanPatchSize float32 = 1000
	oceanSeed      uint64  = 1
)

var skyboxFaces = [6]string{"px.png", "nx.png", "py.png", "ny.png", "pz.png", "nz.png"}

type TestGame struct {
	*engine.Game
}

type gameState struct {
	width  uint32
	height uint32

	terrain *terrain.Terrain
	sky     *sky.Sky
	ocean   *ocean.Ocean
	shadow  *shadow.Shadow
	ibl     *ibl.IBL
}

func NewTestGame() (*TestGame, error) {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: &engine.ApplicationConfig{
				StartPosX:  100,
				StartPosY:  100,
				ConfigPath: "vesta.toml",
			},
			State: &gameState{},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown

	return tg, nil
}

func (g *TestGame) Initialize() error {
	core.LogInfo("initializing testbed...")
	state := g.State.(*gameState)
	sm := g.SystemManager

	state.terrain = terrain.New()
	state.sky = sky.New(sky.EarthAtmosphere(), sky.DefaultOptions())
	state.ocean = ocean.New(sm.Shaders(), oceanSeed)
	state.shadow = shadow.New(shadow.DefaultSettings())
	state.ibl = ibl.New(ibl.DefaultOptions())
	features := []systems.Feature{state.terrain, state.sky, state.ocean, state.shadow, state.ibl}
	for _, f := range features {
		if err := sm.Register(f); err != nil {
			return err
		}
	}

	if err := state.sky.Enable(); err != nil {
		return err
	}
	state.sky.SetSunPosition(sunZenith, sunAzimuth)
	if err := state.shadow.SetLightDirection(state.sky.SunDirection().MulScalar(-1)); err != nil {
		return err
	}

	if err := g.loadEnvironment(); err != nil {
		return err
	}
	if err := g.loadTerrain(); err != nil {
		return err
	}
	if _, err := state.ocean.NewField(oceanPatchSize, ocean.DefaultN); err != nil {
		return err
	}

	camera := sm.Scene().Camera()
	camera.SetLocation(math.NewVec3(0, 200, 600))
	camera.FocusOn(math.NewVec3(0, 0, 0))
	return nil
}

// loadEnvironment lights the scene from the skybox faces when they exist and
// from a flat grey environment otherwise.
func (g *TestGame) loadEnvironment() error {
	state := g.State.(*gameState)
	folder := g.SystemManager.Assets().Path("skybox")
	var paths [6]string
	for i, face := range skyboxFaces {
		paths[i] = filepath.Join(folder, face)
	}
	err := state.ibl.GenerateFromFiles(paths)
	if err == nil || !errors.Is(err, core.ErrExternalResource) {
		return err
	}
	core.LogWarn("No skybox in %s, using a uniform environment: %v", folder, err)
	return state.ibl.Generate(ibl.UniformEnvironment(16, math.NewVec3(0.5, 0.5, 0.5)))
}

func (g *TestGame) loadTerrain() error {
	state := g.State.(*gameState)
	folder := g.SystemManager.Assets().Path("terrain")
	if _, err := os.Stat(folder); err != nil {
		core.LogWarn("No terrain in %s, skipping.", folder)
		return nil
	}
	aabb := math.NewAABB(math.NewVec3(-2000, -100, -2000), math.NewVec3(2000, 300, 2000))
	prefixes := terrain.Maps{Height: "height", Normal: "normal", Albedo: "albedo"}
	opts := terrain.Options{NumVertexX: 64, NumVertexY: 64, SeaLevelRatio: 0.25}
	return state.terrain.LoadPatches(folder, prefixes, 2, 2, aabb, opts)
}

func (g *TestGame) Update(deltaTime float64) error {
	state := g.State.(*gameState)
	sm := g.SystemManager.Scene()
	camera := sm.Camera()
	dt := float32(deltaTime)

	// HACK: temp hack to move camera around.
	if core.InputIsKeyDown(core.KEY_A) {
		camera.MoveRight(-tempMoveSpeed * dt)
	}
	if core.InputIsKeyDown(core.KEY_D) {
		camera.MoveRight(tempMoveSpeed * dt)
	}
	if core.InputIsKeyDown(core.KEY_W) {
		camera.MoveForward(tempMoveSpeed * dt)
	}
	if core.InputIsKeyDown(core.KEY_S) {
		camera.MoveForward(-tempMoveSpeed * dt)
	}
	if core.InputIsKeyDown(core.KEY_E) || core.InputIsKeyDown(core.KEY_SPACE) {
		camera.MoveUp(tempMoveSpeed * dt)
	}
	if core.InputIsKeyDown(core.KEY_Q) {
		camera.MoveUp(-tempMoveSpeed * dt)
	}
	if core.InputIsKeyDown(core.KEY_LEFT) {
		camera.Yaw(tempTurnSpeed * dt)
	}
	if core.InputIsKeyDown(core.KEY_RIGHT) {
		camera.Yaw(-tempTurnSpeed * dt)
	}
	if core.InputIsKeyDown(core.KEY_UP) {
		camera.Pitch(tempTurnSpeed * dt)
	}
	if core.InputIsKeyDown(core.KEY_DOWN) {
		camera.Pitch(-tempTurnSpeed * dt)
	}

	// RENDERER DEBUG FUNCTIONS
	if pressed(core.KEY_F1) {
		sm.SetWireframe(!sm.Wireframe())
	}
	if pressed(core.KEY_Z) {
		if state.sky.Enabled() {
			state.sky.Disable()
		} else if err := state.sky.Enable(); err != nil {
			return err
		}
	}
	if pressed(core.KEY_F12) {
		sm.LogDebugInfo()
	}
	return nil
}

// pressed reports a key that went down during the current frame.
func pressed(key core.KeyCode) bool {
	return core.InputIsKeyDown(key) && !core.InputWasKeyDown(key)
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	state := g.State.(*gameState)
	state.width = width
	state.height = height
	return nil
}

// Shutdown drops the feature handles. The system manager destroys the
// features themselves.
func (g *TestGame) Shutdown() error {
	*g.State.(*gameState) = gameState{}
	core.LogInfo("testbed shut down.")
	return nil
}

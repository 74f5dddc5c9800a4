package systems

import (
	"github.com/spaghettifunk/vesta/engine/renderer/vulkan"
)

/**
 * @brief An optional rendering subsystem built on top of the scene manager:
 * terrain, sky, ocean, shadows or image based lighting. Init runs once
 * after the scene manager exists. Update is recorded outside of the render
 * pass, before the scene is drawn.
 */
type Feature interface {
	Name() string
	Init(sm *SceneManager) error
	Update(cb vulkan.CommandRecorder, frame uint32, elapsed float32) error
	Resize(width, height uint32) error
	Destroy()
}

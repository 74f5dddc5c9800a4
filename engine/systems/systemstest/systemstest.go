// Package systemstest builds scene managers on top of the in-memory device
// of vktest for the tests of packages layered on the systems package.
package systemstest

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vesta/engine/renderer/vulkan"
	"github.com/spaghettifunk/vesta/engine/renderer/vulkan/vktest"
	"github.com/spaghettifunk/vesta/engine/systems"
	"github.com/stretchr/testify/require"
)

// Frames is the number of frames in flight of every scene manager built
// here.
const Frames = 2

// FakeSpirv starts with the SPIR-V magic number, enough for the fake device.
var FakeSpirv = []byte{0x03, 0x02, 0x23, 0x07}

// Config is a small model configuration that still fits a few features.
func Config() systems.ModelConfig {
	return systems.ModelConfig{
		MaxNumVertex:        100_000,
		MaxNumIndex:         400_000,
		MaxNumDynamicVertex: 20_000,
		MaxNumDynamicIndex:  100_000,
		MaxNumTransform:     64,
		MaxNumMaterial:      16,
		MaxNumPrimitives:    16,

		MaxNumMeshes:                16,
		MaxNumLineMeshes:            4,
		MaxNumTransparentMeshes:     8,
		MaxNumTransparentLineMeshes: 4,
		MaxNumTerrainMeshes:         8,

		MaxNumDynamicMeshes:                4,
		MaxNumDynamicLineMeshes:            1,
		MaxNumDynamicTransparentMeshes:     4,
		MaxNumDynamicTransparentLineMeshes: 1,
		MaxNumDynamicTerrainMeshes:         1,

		MaxNumTexture: 16,
		MaxNumLights:  2,
	}
}

// Shaders maps every name to FakeSpirv.
func Shaders(names ...string) systems.ShaderMap {
	m := systems.ShaderMap{}
	for _, name := range append(names, systems.SceneShaders...) {
		m[name] = FakeSpirv
	}
	return m
}

// NewSceneManager creates a 64x32 scene manager destroyed with the test.
func NewSceneManager(t testing.TB, cfg systems.ModelConfig) (*systems.SceneManager, *vktest.Device) {
	t.Helper()
	device := vktest.NewDevice()
	gbuffer, err := vulkan.NewGBuffer(device, 64, 32, vk.FormatD32Sfloat)
	require.NoError(t, err)
	sm, err := systems.NewSceneManager(device, &vulkan.RenderPass{Subpasses: 3}, gbuffer, 64, 32, Frames, cfg)
	require.NoError(t, err)
	t.Cleanup(sm.Destroy)
	return sm, device
}

// WritePNG writes a w by h image filled with c to dir/name.
func WritePNG(t testing.TB, dir, name string, w, h int, c color.RGBA) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

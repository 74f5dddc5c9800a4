package systems

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spaghettifunk/vesta/engine/assets/loaders"
	"github.com/spaghettifunk/vesta/engine/core"
	"github.com/spaghettifunk/vesta/engine/renderer/vulkan"
	"github.com/spaghettifunk/vesta/engine/scene"
)

// textureArray backs the bindless sampler array of the basic set. Every
// element not yet holding a texture points at the white texture so the
// whole array is always valid.
type textureArray struct {
	white     *vulkan.Texture
	textures  []*vulkan.Texture
	infos     []vulkan.DescriptorImageInfo
	lastCount int
}

func (a *textureArray) init(device vulkan.Device, sampler *vulkan.Sampler, capacity uint32) error {
	white, err := vulkan.NewWhiteTexture(device, sampler)
	if err != nil {
		return err
	}
	a.white = white
	a.textures = append(a.textures[:0], white)
	a.infos = make([]vulkan.DescriptorImageInfo, capacity)
	for i := range a.infos {
		a.infos[i] = white.Descriptor()
	}
	a.lastCount = 1
	return nil
}

func (a *textureArray) add(t *vulkan.Texture) scene.TextureID {
	id := scene.TextureID(len(a.textures))
	a.textures = append(a.textures, t)
	a.infos[id] = t.Descriptor()
	return id
}

func (a *textureArray) destroy(device vulkan.Device) {
	for _, t := range a.textures {
		t.Destroy(device)
	}
	a.textures = nil
	a.white = nil
}

func (sm *SceneManager) ensureTextures(n int) error {
	if uint32(len(sm.textures.textures)+n) > sm.config.MaxNumTexture {
		core.LogError("exceeding maximum number of textures!")
		return fmt.Errorf("exceeding maximum number of textures! (%d + %d > %d): %w",
			len(sm.textures.textures), n, sm.config.MaxNumTexture, core.ErrCapacityExhausted)
	}
	return nil
}

// updateTextures writes the descriptors of textures added since the last
// call.
func (sm *SceneManager) updateTextures() error {
	a := &sm.textures
	if len(a.textures) == a.lastCount {
		return nil
	}
	sm.basicSet.Textures.SetArray(uint32(a.lastCount), a.infos[a.lastCount:len(a.textures)])
	if err := sm.basicSet.Update(sm.basic); err != nil {
		return err
	}
	a.lastCount = len(a.textures)
	return nil
}

// Texture returns the texture registered under id, or nil.
func (sm *SceneManager) Texture(id scene.TextureID) *vulkan.Texture {
	if id == scene.NoTexture || int(id) >= len(sm.textures.textures) {
		return nil
	}
	return sm.textures.textures[id]
}

func (sm *SceneManager) mipSampler(levels uint32) (*vulkan.Sampler, error) {
	if levels <= 1 {
		return sm.defaultSampler, nil
	}
	if s, ok := sm.mipSamplers[levels]; ok {
		return s, nil
	}
	s, err := vulkan.NewSamplerBuilder().MaxLod(float32(levels)).Anisotropy(16).Build(sm.device)
	if err != nil {
		return nil, err
	}
	sm.mipSamplers[levels] = s
	return s, nil
}

func debugName(prefix string) string {
	return prefix + "-" + uuid.NewString()[:8]
}

// NewTexture loads an image file into the texture array. A nil sampler
// picks one matching the mip chain.
func (sm *SceneManager) NewTexture(path string, mipmap bool, sampler *vulkan.Sampler) (scene.TextureID, error) {
	img, err := loaders.LoadImage(path, loaders.ImageParams{Mipmaps: mipmap})
	if err != nil {
		return scene.NoTexture, err
	}
	return sm.NewTextureFromImage(img, sampler)
}

// NewTextureFromImage uploads decoded RGBA pixels.
func (sm *SceneManager) NewTextureFromImage(img *loaders.ImageData, sampler *vulkan.Sampler) (scene.TextureID, error) {
	if err := sm.ensureTextures(1); err != nil {
		return scene.NoTexture, err
	}
	if sampler == nil {
		var err error
		if sampler, err = sm.mipSampler(uint32(len(img.Levels))); err != nil {
			return scene.NoTexture, err
		}
	}
	tex, err := vulkan.NewTexture2D(sm.device, debugName("texture"), img.Width, img.Height, img.Levels, sampler)
	if err != nil {
		return scene.NoTexture, err
	}
	return sm.textures.add(tex), nil
}

// NewTextureFromPixels uploads one RGBA8 level.
func (sm *SceneManager) NewTextureFromPixels(width, height uint32, pixels []byte, sampler *vulkan.Sampler) (scene.TextureID, error) {
	return sm.NewTextureFromImage(&loaders.ImageData{Width: width, Height: height, Channels: 4, Levels: [][]byte{pixels}}, sampler)
}

// NewGrayTexture uploads a single channel R8 image, e.g. a height map.
func (sm *SceneManager) NewGrayTexture(width, height uint32, pixels []byte, sampler *vulkan.Sampler) (scene.TextureID, error) {
	if err := sm.ensureTextures(1); err != nil {
		return scene.NoTexture, err
	}
	if sampler == nil {
		sampler = sm.defaultSampler
	}
	tex, err := vulkan.NewGrayTexture(sm.device, debugName("gray"), width, height, pixels, sampler)
	if err != nil {
		return scene.NoTexture, err
	}
	return sm.textures.add(tex), nil
}

// NewCubeTexture loads six square faces, ordered +X -X +Y -Y +Z -Z. Cube
// textures live outside the 2D array and are bound by the features that
// use them.
func (sm *SceneManager) NewCubeTexture(paths [6]string, sampler *vulkan.Sampler) (*vulkan.Texture, error) {
	size, faces, err := loaders.LoadCube(paths)
	if err != nil {
		return nil, err
	}
	return sm.NewCubeTextureFromFaces(size, faces, sampler)
}

func (sm *SceneManager) NewCubeTextureFromFaces(size uint32, faces []byte, sampler *vulkan.Sampler) (*vulkan.Texture, error) {
	if sampler == nil {
		sampler = sm.defaultSampler
	}
	tex, err := vulkan.NewTextureCubeFromFaces(sm.device, debugName("cube"), size, faces, sampler)
	if err != nil {
		return nil, err
	}
	sm.cubeTextures = append(sm.cubeTextures, tex)
	return tex, nil
}

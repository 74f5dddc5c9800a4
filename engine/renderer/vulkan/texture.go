package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vesta/engine/core"
)

/**
 * @brief A sampled image. Textures borrow their sampler; samplers are shared
 * and destroyed by whoever built them.
 */
type Texture struct {
	Image   *Image
	Sampler *Sampler
}

// Descriptor is the image info bound into sampler bindings.
func (t *Texture) Descriptor() DescriptorImageInfo {
	return DescriptorImageInfo{Sampler: t.Sampler, Image: t.Image, Layout: vk.ImageLayoutShaderReadOnlyOptimal}
}

func (t *Texture) Destroy(device Device) {
	if t.Image != nil {
		device.DestroyImage(t.Image)
		t.Image = nil
	}
}

// NewTexture2D creates an RGBA8 texture from a mip chain. levels[0] is the
// full-size image, every next level halves both sides down to 1.
func NewTexture2D(device Device, name string, width, height uint32, levels [][]byte, sampler *Sampler) (*Texture, error) {
	return newTexture2D(device, name, width, height, levels, vk.FormatR8g8b8a8Unorm, 4, sampler)
}

// NewGrayTexture creates a single-channel R8 texture.
func NewGrayTexture(device Device, name string, width, height uint32, pixels []byte, sampler *Sampler) (*Texture, error) {
	return newTexture2D(device, name, width, height, [][]byte{pixels}, vk.FormatR8Unorm, 1, sampler)
}

// NewWhiteTexture is a 1x1 opaque white texture bound to unused array slots.
func NewWhiteTexture(device Device, sampler *Sampler) (*Texture, error) {
	return NewTexture2D(device, "white", 1, 1, [][]byte{{255, 255, 255, 255}}, sampler)
}

func newTexture2D(device Device, name string, width, height uint32, levels [][]byte, format vk.Format, texel uint32, sampler *Sampler) (*Texture, error) {
	if len(levels) == 0 {
		return nil, fmt.Errorf("texture %q has no pixel data: %w", name, core.ErrInvariantViolation)
	}
	for l, data := range levels {
		w, h := mipExtent(width, l), mipExtent(height, l)
		if uint32(len(data)) != w*h*texel {
			return nil, fmt.Errorf("texture %q level %d holds %d bytes, want %d: %w",
				name, l, len(data), w*h*texel, core.ErrInvariantViolation)
		}
	}
	img, err := device.CreateImage(ColorImageInfo(name, width, height, uint32(len(levels)), format))
	if err != nil {
		return nil, err
	}
	if err := img.UploadLevels(device, levels); err != nil {
		device.DestroyImage(img)
		return nil, err
	}
	core.LogDebug("Texture '%s' created (%dx%d, %d levels).", name, width, height, len(levels))
	return &Texture{Image: img, Sampler: sampler}, nil
}

// NewTextureCube creates an empty cube map. It starts in General layout so
// compute passes can write every face and mip directly.
func NewTextureCube(device Device, name string, size, mipLevels uint32, format vk.Format, sampler *Sampler) (*Texture, error) {
	img, err := device.CreateImage(CubeImageInfo(name, size, mipLevels, format))
	if err != nil {
		return nil, err
	}
	err = device.ExecuteImmediately(func(cb CommandRecorder) error {
		return img.SetLayout(cb, vk.ImageLayoutGeneral)
	})
	if err != nil {
		device.DestroyImage(img)
		return nil, err
	}
	return &Texture{Image: img, Sampler: sampler}, nil
}

// NewTextureCubeFromFaces uploads six RGBA8 faces (+X, -X, +Y, -Y, +Z, -Z)
// packed back to back.
func NewTextureCubeFromFaces(device Device, name string, size uint32, faces []byte, sampler *Sampler) (*Texture, error) {
	if uint32(len(faces)) != size*size*4*6 {
		return nil, fmt.Errorf("cube texture %q holds %d bytes, want %d: %w",
			name, len(faces), size*size*4*6, core.ErrInvariantViolation)
	}
	img, err := device.CreateImage(CubeImageInfo(name, size, 1, vk.FormatR8g8b8a8Unorm))
	if err != nil {
		return nil, err
	}
	if err := img.Upload(device, faces); err != nil {
		device.DestroyImage(img)
		return nil, err
	}
	return &Texture{Image: img, Sampler: sampler}, nil
}

func mipExtent(size uint32, level int) uint32 {
	size >>= uint(level)
	if size == 0 {
		return 1
	}
	return size
}

// UploadLevels copies one buffer per mip level through a single staging
// buffer and leaves the image in ShaderReadOnlyOptimal. Each level holds
// every array layer back to back.
func (img *Image) UploadLevels(device Device, levels [][]byte) error {
	if uint32(len(levels)) > img.Info.MipLevels {
		return fmt.Errorf("image %q has %d mip levels, got %d: %w",
			img.Info.Name, img.Info.MipLevels, len(levels), core.ErrInvariantViolation)
	}
	layers := img.Info.ArrayLayers
	if layers == 0 {
		layers = 1
	}
	var packed []byte
	regions := make([]vk.BufferImageCopy, 0, len(levels)*int(layers))
	for l, data := range levels {
		layerSize := len(data) / int(layers)
		for layer := uint32(0); layer < layers; layer++ {
			regions = append(regions, vk.BufferImageCopy{
				BufferOffset: vk.DeviceSize(len(packed) + int(layer)*layerSize),
				ImageSubresource: vk.ImageSubresourceLayers{
					AspectMask:     img.Info.Aspect,
					MipLevel:       uint32(l),
					BaseArrayLayer: layer,
					LayerCount:     1,
				},
				ImageExtent: vk.Extent3D{
					Width:  mipExtent(img.Info.Width, l),
					Height: mipExtent(img.Info.Height, l),
					Depth:  mipExtent(max(img.Info.Depth, 1), l),
				},
			})
		}
		packed = append(packed, data...)
	}
	staging, err := NewStagingBuffer(device, img.Info.Name+"-staging", packed)
	if err != nil {
		return err
	}
	defer device.DestroyBuffer(staging)

	return device.ExecuteImmediately(func(cb CommandRecorder) error {
		if err := img.SetLayout(cb, vk.ImageLayoutTransferDstOptimal); err != nil {
			return err
		}
		cb.CopyBufferToImage(staging, img, regions)
		return img.SetLayout(cb, vk.ImageLayoutShaderReadOnlyOptimal)
	})
}

const floatTexel = 16

// NewFloatTexture2D creates an RGBA32F texture, e.g. a precomputed lookup
// table.
func NewFloatTexture2D(device Device, name string, width, height uint32, rgba []float32, sampler *Sampler) (*Texture, error) {
	return newTexture2D(device, name, width, height, [][]byte{AsBytes(rgba)}, vk.FormatR32g32b32a32Sfloat, floatTexel, sampler)
}

// NewFloatTexture3D creates an RGBA32F volume texture.
func NewFloatTexture3D(device Device, name string, width, height, depth uint32, rgba []float32, sampler *Sampler) (*Texture, error) {
	if uint32(len(rgba))*4 != width*height*depth*floatTexel {
		return nil, fmt.Errorf("volume texture %q holds %d floats, want %d: %w",
			name, len(rgba), width*height*depth*4, core.ErrInvariantViolation)
	}
	info := ColorImageInfo(name, width, height, 1, vk.FormatR32g32b32a32Sfloat)
	info.Depth = depth
	info.Type = vk.ImageType3d
	info.ViewType = vk.ImageViewType3d
	img, err := device.CreateImage(info)
	if err != nil {
		return nil, err
	}
	if err := img.UploadLevels(device, [][]byte{AsBytes(rgba)}); err != nil {
		device.DestroyImage(img)
		return nil, err
	}
	return &Texture{Image: img, Sampler: sampler}, nil
}

// NewFloatTextureCube creates an RGBA32F cube map from a mip chain. Every
// level holds the six faces (+X, -X, +Y, -Y, +Z, -Z) back to back.
func NewFloatTextureCube(device Device, name string, size uint32, levels [][]float32, sampler *Sampler) (*Texture, error) {
	if len(levels) == 0 {
		return nil, fmt.Errorf("cube texture %q has no pixel data: %w", name, core.ErrInvariantViolation)
	}
	raw := make([][]byte, len(levels))
	for l, data := range levels {
		s := mipExtent(size, l)
		if uint32(len(data)) != s*s*4*6 {
			return nil, fmt.Errorf("cube texture %q level %d holds %d floats, want %d: %w",
				name, l, len(data), s*s*4*6, core.ErrInvariantViolation)
		}
		raw[l] = AsBytes(data)
	}
	img, err := device.CreateImage(CubeImageInfo(name, size, uint32(len(levels)), vk.FormatR32g32b32a32Sfloat))
	if err != nil {
		return nil, err
	}
	if err := img.UploadLevels(device, raw); err != nil {
		device.DestroyImage(img)
		return nil, err
	}
	return &Texture{Image: img, Sampler: sampler}, nil
}

package vulkan

import (
	vk "github.com/goki/vulkan"
)

// Image owns a GPU image, its memory and a default view. The layout it was
// last transitioned to is tracked on the CPU side.
type Image struct {
	Handle vk.Image
	Memory vk.DeviceMemory
	View   vk.ImageView
	Info   ImageInfo

	layout vk.ImageLayout
}

func (img *Image) Width() uint32  { return img.Info.Width }
func (img *Image) Height() uint32 { return img.Info.Height }

// CurrentLayout is the layout recorded by the last transition.
func (img *Image) CurrentLayout() vk.ImageLayout {
	return img.layout
}

// FullRange covers every mip level and array layer of the image.
func (img *Image) FullRange() vk.ImageSubresourceRange {
	return vk.ImageSubresourceRange{
		AspectMask:     img.Info.Aspect,
		BaseMipLevel:   0,
		LevelCount:     img.Info.MipLevels,
		BaseArrayLayer: 0,
		LayerCount:     img.Info.ArrayLayers,
	}
}

// SetLayout records a barrier from the current layout to newLayout. It is a
// no-op when the image already is in newLayout.
func (img *Image) SetLayout(cb CommandRecorder, newLayout vk.ImageLayout) error {
	return img.SetLayoutRange(cb, newLayout, img.FullRange())
}

func (img *Image) SetLayoutRange(cb CommandRecorder, newLayout vk.ImageLayout, rng vk.ImageSubresourceRange) error {
	if img.layout == newLayout {
		return nil
	}
	barrier, err := LayoutBarrier(img, img.layout, newLayout, rng)
	if err != nil {
		return err
	}
	cb.PipelineBarrier(
		vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit),
		vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit),
		[]ImageBarrier{barrier})
	img.layout = newLayout
	return nil
}

// Upload copies pixel data of every layer into mip level 0 and leaves the
// image in ShaderReadOnlyOptimal.
func (img *Image) Upload(device Device, pixels []byte) error {
	return img.UploadLevels(device, [][]byte{pixels})
}

// ColorImageInfo describes a sampled 2D colour image with optional mips.
func ColorImageInfo(name string, width, height, mipLevels uint32, format vk.Format) ImageInfo {
	return ImageInfo{
		Name:        name,
		Width:       width,
		Height:      height,
		Depth:       1,
		MipLevels:   mipLevels,
		ArrayLayers: 1,
		Format:      format,
		Usage: vk.ImageUsageFlags(vk.ImageUsageSampledBit | vk.ImageUsageTransferDstBit |
			vk.ImageUsageTransferSrcBit),
		Aspect:   vk.ImageAspectFlags(vk.ImageAspectColorBit),
		Samples:  vk.SampleCount1Bit,
		Type:     vk.ImageType2d,
		ViewType: vk.ImageViewType2d,
	}
}

// CubeImageInfo describes a six-layer cube-compatible image.
func CubeImageInfo(name string, size, mipLevels uint32, format vk.Format) ImageInfo {
	info := ColorImageInfo(name, size, size, mipLevels, format)
	info.ArrayLayers = 6
	info.ViewType = vk.ImageViewTypeCube
	info.Flags = vk.ImageCreateFlags(vk.ImageCreateCubeCompatibleBit)
	info.Usage |= vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageStorageBit)
	return info
}

// AttachmentImageInfo describes a render target that is also read back as an
// input attachment or sampled texture.
func AttachmentImageInfo(name string, width, height uint32, format vk.Format, depth bool) ImageInfo {
	info := ColorImageInfo(name, width, height, 1, format)
	if depth {
		info.Usage = vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit | vk.ImageUsageInputAttachmentBit |
			vk.ImageUsageSampledBit)
		info.Aspect = vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	} else {
		info.Usage = vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageInputAttachmentBit |
			vk.ImageUsageSampledBit)
	}
	return info
}

// DepthArrayImageInfo describes a layered depth target that is sampled
// afterwards, e.g. shadow cascades.
func DepthArrayImageInfo(name string, size, layers uint32, format vk.Format) ImageInfo {
	info := AttachmentImageInfo(name, size, size, format, true)
	info.Usage = vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit | vk.ImageUsageSampledBit |
		vk.ImageUsageTransferSrcBit)
	info.ArrayLayers = layers
	info.ViewType = vk.ImageViewType2dArray
	return info
}

// MipLevels returns the length of a full mip chain for the given extent.
func MipLevels(width, height uint32) uint32 {
	size := width
	if height > size {
		size = height
	}
	levels := uint32(1)
	for size > 1 {
		size >>= 1
		levels++
	}
	return levels
}

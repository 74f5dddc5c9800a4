package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vesta/engine/core"
)

const (
	// GBufferPositionFormat stores world-space position.
	GBufferPositionFormat = vk.FormatR32g32b32a32Sfloat
	// GBufferNormalFormat stores world-space normal.
	GBufferNormalFormat = vk.FormatR32g32b32a32Sfloat
	// GBufferColorFormat is used for albedo, pbr and emissive targets.
	GBufferColorFormat = vk.FormatR8g8b8a8Unorm
)

/**
 * @brief The deferred-shading render targets. They are written by the
 * geometry subpass and read as input attachments by the shading subpass.
 */
type GBuffer struct {
	Position *Image
	Normal   *Image
	Albedo   *Image
	PBR      *Image
	Emissive *Image
	Depth    *Image
}

// NewGBuffer creates all targets for a width x height framebuffer.
func NewGBuffer(device Device, width, height uint32, depthFormat vk.Format) (*GBuffer, error) {
	g := &GBuffer{}
	targets := []struct {
		dst    **Image
		name   string
		format vk.Format
		depth  bool
	}{
		{&g.Position, "gbuffer-position", GBufferPositionFormat, false},
		{&g.Normal, "gbuffer-normal", GBufferNormalFormat, false},
		{&g.Albedo, "gbuffer-albedo", GBufferColorFormat, false},
		{&g.PBR, "gbuffer-pbr", GBufferColorFormat, false},
		{&g.Emissive, "gbuffer-emissive", GBufferColorFormat, false},
		{&g.Depth, "gbuffer-depth", depthFormat, true},
	}
	for _, t := range targets {
		img, err := device.CreateImage(AttachmentImageInfo(t.name, width, height, t.format, t.depth))
		if err != nil {
			g.Destroy(device)
			return nil, err
		}
		*t.dst = img
	}
	core.LogDebug("G-buffer created (%dx%d).", width, height)
	return g, nil
}

// Images returns the targets in render-pass attachment order.
func (g *GBuffer) Images() []*Image {
	return []*Image{g.Position, g.Normal, g.Albedo, g.PBR, g.Emissive, g.Depth}
}

// Views returns the image views in render-pass attachment order.
func (g *GBuffer) Views() []vk.ImageView {
	images := g.Images()
	views := make([]vk.ImageView, len(images))
	for i, img := range images {
		views[i] = img.View
	}
	return views
}

func (g *GBuffer) Destroy(device Device) {
	for _, img := range g.Images() {
		if img != nil {
			device.DestroyImage(img)
		}
	}
	*g = GBuffer{}
}

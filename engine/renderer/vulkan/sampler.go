package vulkan

import (
	vk "github.com/goki/vulkan"
)

// SamplerBuilder assembles a sampler description with fluent setters.
type SamplerBuilder struct {
	info vk.SamplerCreateInfo
}

// NewSamplerBuilder starts from a linear, repeating, non-anisotropic sampler.
func NewSamplerBuilder() *SamplerBuilder {
	return &SamplerBuilder{info: vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.FilterLinear,
		MinFilter:               vk.FilterLinear,
		MipmapMode:              vk.SamplerMipmapModeLinear,
		AddressModeU:            vk.SamplerAddressModeRepeat,
		AddressModeV:            vk.SamplerAddressModeRepeat,
		AddressModeW:            vk.SamplerAddressModeRepeat,
		MipLodBias:              0,
		AnisotropyEnable:        vk.False,
		MaxAnisotropy:           1,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpNever,
		MinLod:                  0,
		MaxLod:                  1,
		BorderColor:             vk.BorderColorFloatOpaqueWhite,
		UnnormalizedCoordinates: vk.False,
	}}
}

func (b *SamplerBuilder) MagFilter(f vk.Filter) *SamplerBuilder {
	b.info.MagFilter = f
	return b
}

func (b *SamplerBuilder) MinFilter(f vk.Filter) *SamplerBuilder {
	b.info.MinFilter = f
	return b
}

func (b *SamplerBuilder) MipmapMode(m vk.SamplerMipmapMode) *SamplerBuilder {
	b.info.MipmapMode = m
	return b
}

// AddressMode sets U, V and W to the same mode.
func (b *SamplerBuilder) AddressMode(m vk.SamplerAddressMode) *SamplerBuilder {
	b.info.AddressModeU = m
	b.info.AddressModeV = m
	b.info.AddressModeW = m
	return b
}

func (b *SamplerBuilder) AddressModeUVW(u, v, w vk.SamplerAddressMode) *SamplerBuilder {
	b.info.AddressModeU = u
	b.info.AddressModeV = v
	b.info.AddressModeW = w
	return b
}

func (b *SamplerBuilder) MaxLod(lod float32) *SamplerBuilder {
	b.info.MaxLod = lod
	return b
}

// Anisotropy enables anisotropic filtering when max is greater than one.
func (b *SamplerBuilder) Anisotropy(max float32) *SamplerBuilder {
	if max > 1 {
		b.info.AnisotropyEnable = vk.True
	} else {
		b.info.AnisotropyEnable = vk.False
	}
	b.info.MaxAnisotropy = max
	return b
}

// Compare turns the sampler into a depth-comparison sampler.
func (b *SamplerBuilder) Compare(op vk.CompareOp) *SamplerBuilder {
	b.info.CompareEnable = vk.True
	b.info.CompareOp = op
	return b
}

func (b *SamplerBuilder) BorderColor(c vk.BorderColor) *SamplerBuilder {
	b.info.BorderColor = c
	return b
}

func (b *SamplerBuilder) Info() vk.SamplerCreateInfo {
	return b.info
}

func (b *SamplerBuilder) Build(device Device) (*Sampler, error) {
	return device.CreateSampler(b.info)
}

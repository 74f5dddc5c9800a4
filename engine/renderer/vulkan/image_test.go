package vulkan_test

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vesta/engine/core"
	"github.com/spaghettifunk/vesta/engine/renderer/vulkan"
	"github.com/spaghettifunk/vesta/engine/renderer/vulkan/vktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayoutAccessTable(t *testing.T) {
	tests := []struct {
		layout vk.ImageLayout
		src    vk.AccessFlagBits
		dst    vk.AccessFlagBits
	}{
		{vk.ImageLayoutUndefined, 0, 0},
		{vk.ImageLayoutGeneral, vk.AccessTransferWriteBit, vk.AccessTransferWriteBit},
		{vk.ImageLayoutColorAttachmentOptimal, vk.AccessColorAttachmentWriteBit, vk.AccessColorAttachmentWriteBit},
		{vk.ImageLayoutDepthStencilAttachmentOptimal, vk.AccessDepthStencilAttachmentWriteBit, vk.AccessDepthStencilAttachmentWriteBit},
		{vk.ImageLayoutDepthStencilReadOnlyOptimal, vk.AccessDepthStencilAttachmentReadBit, vk.AccessDepthStencilAttachmentReadBit},
		{vk.ImageLayoutShaderReadOnlyOptimal, vk.AccessShaderReadBit, vk.AccessShaderReadBit},
		{vk.ImageLayoutTransferSrcOptimal, vk.AccessTransferReadBit, vk.AccessTransferReadBit},
		{vk.ImageLayoutTransferDstOptimal, vk.AccessTransferWriteBit, vk.AccessTransferWriteBit},
		{vk.ImageLayoutPreinitialized, vk.AccessTransferWriteBit | vk.AccessHostWriteBit, vk.AccessTransferWriteBit},
		{vk.ImageLayoutPresentSrc, vk.AccessMemoryReadBit, vk.AccessMemoryReadBit},
	}
	for _, tt := range tests {
		src, dst, err := vulkan.LayoutAccess(tt.layout)
		require.NoError(t, err, "layout %d", tt.layout)
		assert.Equal(t, vk.AccessFlags(tt.src), src, "layout %d", tt.layout)
		assert.Equal(t, vk.AccessFlags(tt.dst), dst, "layout %d", tt.layout)
	}

	_, _, err := vulkan.LayoutAccess(vk.ImageLayout(123456))
	assert.ErrorIs(t, err, core.ErrNotSupported)
}

func TestSetLayoutRecordsOneBarrier(t *testing.T) {
	device := vktest.NewDevice()
	img, err := device.CreateImage(vulkan.ColorImageInfo("albedo", 4, 4, 1, vk.FormatR8g8b8a8Unorm))
	require.NoError(t, err)
	rec := device.Recorder

	require.NoError(t, img.SetLayout(rec, vk.ImageLayoutTransferDstOptimal))
	require.Len(t, rec.Barriers, 1)
	b := rec.Barriers[0]
	assert.Equal(t, vk.ImageLayoutUndefined, b.OldLayout)
	assert.Equal(t, vk.ImageLayoutTransferDstOptimal, b.NewLayout)
	assert.Equal(t, vk.AccessFlags(0), b.SrcAccess)
	assert.Equal(t, vk.AccessFlags(vk.AccessTransferWriteBit), b.DstAccess)
	assert.Equal(t, vk.ImageLayoutTransferDstOptimal, img.CurrentLayout())

	// Same layout: nothing recorded.
	require.NoError(t, img.SetLayout(rec, vk.ImageLayoutTransferDstOptimal))
	assert.Len(t, rec.Barriers, 1)

	err = img.SetLayout(rec, vk.ImageLayout(99999))
	require.ErrorIs(t, err, core.ErrNotSupported)
	assert.Equal(t, vk.ImageLayoutTransferDstOptimal, img.CurrentLayout())
}

func TestImageUploadTransitions(t *testing.T) {
	device := vktest.NewDevice()
	img, err := device.CreateImage(vulkan.CubeImageInfo("sky", 2, 1, vk.FormatR8g8b8a8Unorm))
	require.NoError(t, err)

	pixels := make([]byte, 2*2*4*6)
	require.NoError(t, img.Upload(device, pixels))
	assert.Equal(t, 1, device.Immediate)
	assert.Equal(t, vk.ImageLayoutShaderReadOnlyOptimal, img.CurrentLayout())
	assert.Equal(t, []string{"PipelineBarrier", "CopyBufferToImage", "PipelineBarrier"}, device.Recorder.Names())

	regions := device.Recorder.Calls[1].Args[2].([]vk.BufferImageCopy)
	require.Len(t, regions, 6)
	assert.Equal(t, vk.DeviceSize(5*16), regions[5].BufferOffset)
	// The staging buffer is released again.
	assert.Equal(t, 1, device.DestroyedBuffers)
}

func TestMipLevels(t *testing.T) {
	assert.Equal(t, uint32(1), vulkan.MipLevels(1, 1))
	assert.Equal(t, uint32(11), vulkan.MipLevels(1024, 512))
	assert.Equal(t, uint32(10), vulkan.MipLevels(300, 512))
}

func TestGBufferTargets(t *testing.T) {
	device := vktest.NewDevice()
	g, err := vulkan.NewGBuffer(device, 640, 480, vk.FormatD32Sfloat)
	require.NoError(t, err)

	images := g.Images()
	require.Len(t, images, 6)
	assert.Equal(t, vulkan.GBufferPositionFormat, g.Position.Info.Format)
	assert.Equal(t, vk.FormatD32Sfloat, g.Depth.Info.Format)
	assert.Equal(t, vk.ImageAspectFlags(vk.ImageAspectDepthBit), g.Depth.Info.Aspect)
	for _, img := range images[:vulkan.GBufferColorTargets] {
		assert.NotZero(t, img.Info.Usage&vk.ImageUsageFlags(vk.ImageUsageInputAttachmentBit), img.Info.Name)
		assert.Equal(t, uint32(640), img.Width())
	}

	g.Destroy(device)
	assert.Equal(t, 6, device.DestroyedImages)
	assert.Nil(t, g.Position)
}

func TestHostBuffers(t *testing.T) {
	device := vktest.NewDevice()
	buf, err := vulkan.NewStorageBuffer(device, "lights", 16)
	require.NoError(t, err)
	require.NotNil(t, buf.Mapped)

	require.NoError(t, buf.UpdateRaw(8, []byte{1, 2, 3, 4}))
	assert.Equal(t, []byte{1, 2, 3, 4}, buf.Bytes()[8:12])
	assert.ErrorIs(t, buf.UpdateRaw(14, []byte{1, 2, 3}), core.ErrCapacityExhausted)

	words := vulkan.Slice[uint32](buf, 4)
	words[0] = 0xdeadbeef
	assert.Equal(t, byte(0xef), buf.Bytes()[0])

	local, err := vulkan.NewVertexBuffer(device, "positions", 32)
	require.NoError(t, err)
	assert.Nil(t, local.Bytes())
	assert.ErrorIs(t, local.UpdateRaw(0, []byte{1}), core.ErrInvariantViolation)

	require.NoError(t, vulkan.UploadToDevice(device, local, 4, []byte{9, 9}))
	assert.Equal(t, []byte{9, 9}, device.Memory(local)[4:6])
	assert.ErrorIs(t, vulkan.UploadToDevice(device, local, 31, []byte{1, 2}), core.ErrCapacityExhausted)
}

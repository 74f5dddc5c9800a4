package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vesta/engine/core"
)

type layoutAccess struct {
	src vk.AccessFlagBits
	dst vk.AccessFlagBits
}

// layoutAccessTable maps every supported image layout to the access mask used
// when leaving it (src) and when entering it (dst).
var layoutAccessTable = map[vk.ImageLayout]layoutAccess{
	vk.ImageLayoutUndefined: {0, 0},
	vk.ImageLayoutGeneral:   {vk.AccessTransferWriteBit, vk.AccessTransferWriteBit},
	vk.ImageLayoutColorAttachmentOptimal: {
		vk.AccessColorAttachmentWriteBit, vk.AccessColorAttachmentWriteBit,
	},
	vk.ImageLayoutDepthStencilAttachmentOptimal: {
		vk.AccessDepthStencilAttachmentWriteBit, vk.AccessDepthStencilAttachmentWriteBit,
	},
	vk.ImageLayoutDepthStencilReadOnlyOptimal: {
		vk.AccessDepthStencilAttachmentReadBit, vk.AccessDepthStencilAttachmentReadBit,
	},
	vk.ImageLayoutShaderReadOnlyOptimal: {vk.AccessShaderReadBit, vk.AccessShaderReadBit},
	vk.ImageLayoutTransferSrcOptimal:    {vk.AccessTransferReadBit, vk.AccessTransferReadBit},
	vk.ImageLayoutTransferDstOptimal:    {vk.AccessTransferWriteBit, vk.AccessTransferWriteBit},
	vk.ImageLayoutPreinitialized: {
		vk.AccessTransferWriteBit | vk.AccessHostWriteBit, vk.AccessTransferWriteBit,
	},
	vk.ImageLayoutPresentSrc: {vk.AccessMemoryReadBit, vk.AccessMemoryReadBit},
}

// LayoutAccess returns the source and destination access masks of a layout.
func LayoutAccess(layout vk.ImageLayout) (src, dst vk.AccessFlags, err error) {
	entry, ok := layoutAccessTable[layout]
	if !ok {
		return 0, 0, fmt.Errorf("image layout %d has no access mapping: %w", layout, core.ErrNotSupported)
	}
	return vk.AccessFlags(entry.src), vk.AccessFlags(entry.dst), nil
}

// LayoutBarrier builds the barrier that moves img from oldLayout to newLayout.
func LayoutBarrier(img *Image, oldLayout, newLayout vk.ImageLayout, rng vk.ImageSubresourceRange) (ImageBarrier, error) {
	src, _, err := LayoutAccess(oldLayout)
	if err != nil {
		return ImageBarrier{}, err
	}
	_, dst, err := LayoutAccess(newLayout)
	if err != nil {
		return ImageBarrier{}, err
	}
	return ImageBarrier{
		Image:     img,
		OldLayout: oldLayout,
		NewLayout: newLayout,
		SrcAccess: src,
		DstAccess: dst,
		Range:     rng,
	}, nil
}

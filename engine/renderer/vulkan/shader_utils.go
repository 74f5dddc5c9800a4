package vulkan

import (
	"encoding/binary"
	"fmt"
	"path/filepath"
	"strings"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vesta/engine/core"
)

// spirvMagic is the first word of every SPIR-V module.
const spirvMagic uint32 = 0x07230203

// SpirvWords converts little-endian SPIR-V bytecode to words.
func SpirvWords(code []byte) ([]uint32, error) {
	if len(code) < 4 || len(code)%4 != 0 {
		return nil, fmt.Errorf("spir-v size %d is not a multiple of 4: %w", len(code), core.ErrExternalResource)
	}
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	if words[0] != spirvMagic {
		return nil, fmt.Errorf("bad spir-v magic 0x%08x: %w", words[0], core.ErrExternalResource)
	}
	return words, nil
}

// StageFromFileName guesses the shader stage from names like "gbuffer.frag.spv".
func StageFromFileName(name string) (vk.ShaderStageFlagBits, error) {
	base := strings.TrimSuffix(filepath.Base(name), ".spv")
	switch filepath.Ext(base) {
	case ".vert":
		return vk.ShaderStageVertexBit, nil
	case ".frag":
		return vk.ShaderStageFragmentBit, nil
	case ".comp":
		return vk.ShaderStageComputeBit, nil
	case ".tesc":
		return vk.ShaderStageTessellationControlBit, nil
	case ".tese":
		return vk.ShaderStageTessellationEvaluationBit, nil
	case ".geom":
		return vk.ShaderStageGeometryBit, nil
	}
	return 0, fmt.Errorf("cannot derive shader stage of %q: %w", name, core.ErrNotSupported)
}

// NewShaderModule compiles SPIR-V bytecode into a shader module.
func NewShaderModule(device Device, code []byte, stage vk.ShaderStageFlagBits) (*ShaderModule, error) {
	words, err := SpirvWords(code)
	if err != nil {
		return nil, err
	}
	return device.CreateShaderModule(words, stage)
}

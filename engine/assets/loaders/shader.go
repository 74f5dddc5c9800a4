package loaders

import (
	"fmt"
	"os"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vesta/engine/core"
	"github.com/spaghettifunk/vesta/engine/renderer/vulkan"
)

// ShaderData is one compiled stage. Code is validated SPIR-V.
type ShaderData struct {
	Stage vk.ShaderStageFlagBits
	Code  []byte
}

type ShaderLoader struct{}

func (sl *ShaderLoader) Load(path string, assetType ResourceType, params any) (*Resource, error) {
	data, err := LoadShader(path)
	if err != nil {
		return nil, err
	}
	return &Resource{
		Name:     baseName(path),
		FullPath: path,
		Type:     ResourceTypeShader,
		DataSize: uint64(len(data.Code)),
		Data:     data,
	}, nil
}

func (sl *ShaderLoader) Unload(*Resource) error {
	return nil
}

// LoadShader reads a "name.stage.spv" file and checks its header.
func LoadShader(path string) (*ShaderData, error) {
	stage, err := vulkan.StageFromFileName(path)
	if err != nil {
		return nil, err
	}
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read shader %s: %v: %w", path, err, core.ErrExternalResource)
	}
	if _, err := vulkan.SpirvWords(code); err != nil {
		return nil, fmt.Errorf("shader %s: %w", path, err)
	}
	return &ShaderData{Stage: stage, Code: code}, nil
}

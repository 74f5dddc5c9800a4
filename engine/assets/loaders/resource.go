// Package loaders turns files on disk into CPU-side data the scene manager
// uploads: decoded pixels, SPIR-V bytecode, material descriptions and
// triangle meshes. Loaders never touch the GPU.
package loaders

import "path/filepath"

type ResourceType int

/** @brief Pre-defined resource types. */
const (
	/** @brief Files no loader handles. */
	ResourceTypeNone ResourceType = iota
	/** @brief Raw bytes, e.g. precomputed lookup tables. */
	ResourceTypeBinary
	/** @brief Decodable images (png, jpeg, bmp, tiff, webp). */
	ResourceTypeImage
	/** @brief Material descriptions in TOML. */
	ResourceTypeMaterial
	/** @brief Compiled SPIR-V shader stages. */
	ResourceTypeShader
	/** @brief Triangle meshes (Wavefront obj). */
	ResourceTypeModel
)

func (t ResourceType) String() string {
	switch t {
	case ResourceTypeBinary:
		return "binary"
	case ResourceTypeImage:
		return "image"
	case ResourceTypeMaterial:
		return "material"
	case ResourceTypeShader:
		return "shader"
	case ResourceTypeModel:
		return "model"
	}
	return "none"
}

/**
 * @brief A generic structure for a resource. All resource loaders
 * load data into these.
 */
type Resource struct {
	/** @brief The name of the resource. */
	Name string
	/** @brief The full file path of the resource. */
	FullPath string
	Type     ResourceType
	/** @brief The size of the resource data in bytes. */
	DataSize uint64
	/** @brief The resource data; its concrete type depends on Type. */
	Data any
}

// TypeOf classifies a file by its extension.
func TypeOf(path string) ResourceType {
	switch filepath.Ext(path) {
	case ".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff", ".webp":
		return ResourceTypeImage
	case ".spv":
		return ResourceTypeShader
	case ".vmt":
		return ResourceTypeMaterial
	case ".obj":
		return ResourceTypeModel
	case ".bin", ".dat":
		return ResourceTypeBinary
	}
	return ResourceTypeNone
}

func baseName(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}

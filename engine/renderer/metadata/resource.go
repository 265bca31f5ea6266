package metadata

type ResourceType int

/** @brief Resource types the asset manager indexes. */
const (
	ResourceTypeNone ResourceType = iota
	/** @brief A pre-compiled SPIR-V stage (`.spv`). */
	ResourceTypeShader
	/** @brief An image decoded into RGBA8 texture data. */
	ResourceTypeImage
)

func (t ResourceType) String() string {
	switch t {
	case ResourceTypeShader:
		return "shader"
	case ResourceTypeImage:
		return "image"
	}
	return "none"
}

/** @brief SPIR-V magic number, first word of every module. */
const SpirvMagic uint32 = 0x07230203

/**
 * @brief A generic structure for a resource. All resource loaders
 * load data into these.
 */
type Resource struct {
	/** @brief The name of the resource. */
	Name string
	/** @brief The full file path of the resource. */
	FullPath string
	/** @brief The size of the resource data in bytes. */
	DataSize uint64
	/** @brief []byte for shaders, TextureData for images. */
	Data interface{}
}

package metadata

/** @brief Represents supported texture filtering modes. */
type TextureFilter int

const (
	/** @brief Nearest-neighbor filtering. */
	TextureFilterModeNearest TextureFilter = 0x0
	/** @brief Linear (i.e. bilinear) filtering.*/
	TextureFilterModeLinear TextureFilter = 0x1
)

type TextureRepeat int

const (
	TextureRepeatRepeat         TextureRepeat = 0x1
	TextureRepeatMirroredRepeat TextureRepeat = 0x2
	TextureRepeatClampToEdge    TextureRepeat = 0x3
	TextureRepeatClampToBorder  TextureRepeat = 0x4
)

// ParseTextureRepeat maps config names onto repeat modes.
func ParseTextureRepeat(name string) (TextureRepeat, bool) {
	switch name {
	case "", "repeat":
		return TextureRepeatRepeat, true
	case "mirrored_repeat":
		return TextureRepeatMirroredRepeat, true
	case "clamp_to_edge":
		return TextureRepeatClampToEdge, true
	case "clamp_to_border":
		return TextureRepeatClampToBorder, true
	}
	return TextureRepeatRepeat, false
}

/** @brief Sampler settings applied to every loaded texture. */
type SamplerConfig struct {
	Filter TextureFilter
	Repeat TextureRepeat
	/** @brief Capped to the device limit; 0 or 1 disables anisotropic filtering. */
	MaxAnisotropy float32
}

/**
 * @brief Decoded texture data. Pixels are tightly packed RGBA8.
 */
type TextureData struct {
	Name   string
	Width  uint32
	Height uint32
	Pixels []uint8
}

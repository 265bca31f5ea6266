package engine

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/anima/engine/core"
	"github.com/spaghettifunk/anima/engine/renderer"
	"github.com/spaghettifunk/anima/engine/renderer/metadata"
)

type RendererConfig struct {
	VSync      bool       `toml:"vsync"`
	ClearColor [3]float32 `toml:"clear_color"`
	// Turns on the validation layers and the debug report callback.
	Validation         bool     `toml:"validation"`
	InstanceExtensions []string `toml:"instance_extensions"`
	ValidationLayers   []string `toml:"validation_layers"`
	DeviceExtensions   []string `toml:"device_extensions"`
	MaxAnisotropy      float32  `toml:"max_anisotropy"`
	// repeat, mirrored_repeat, clamp_to_edge or clamp_to_border.
	TextureRepeat string `toml:"texture_repeat"`
	// linear or nearest.
	TextureFilter string `toml:"texture_filter"`
	MaxMaterials  uint32 `toml:"max_materials"`
}

type AssetsConfig struct {
	Root      string `toml:"root"`
	HotReload bool   `toml:"hot_reload"`
	// Decode textures with the first row at the bottom.
	FlipTextures bool `toml:"flip_textures"`
}

// DefaultConfig returns the settings used for every key the config file omits.
func DefaultConfig() *ApplicationConfig {
	backend := metadata.DefaultRendererBackendConfig("Anima Game Engine")
	return &ApplicationConfig{
		Name:               backend.ApplicationName,
		StartPosX:          100,
		StartPosY:          100,
		StartWidth:         1280,
		StartHeight:        720,
		LogLevel:           "info",
		MetricsEveryFrames: 600,
		Renderer: RendererConfig{
			VSync:            backend.VSync,
			ClearColor:       [3]float32{0.0, 0.0, 0.2},
			Validation:       backend.EnableValidation,
			ValidationLayers: backend.ValidationLayers,
			DeviceExtensions: backend.DeviceExtensions,
			MaxAnisotropy:    16,
			TextureRepeat:    "repeat",
			TextureFilter:    "linear",
			MaxMaterials:     64,
		},
		Assets: AssetsConfig{
			Root:      "assets",
			HotReload: true,
		},
	}
}

// LoadConfig decodes a TOML file over DefaultConfig. Unknown keys are errors.
func LoadConfig(path string) (*ApplicationConfig, error) {
	cfg := DefaultConfig()

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	d := toml.NewDecoder(f)
	d.DisallowUnknownFields()
	if err := d.Decode(cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, fmt.Errorf("%s:%d:%d: %v: %w", path, row, col, derr, core.ErrInvalidArgument)
		}
		return nil, fmt.Errorf("%s: %v: %w", path, err, core.ErrInvalidArgument)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *ApplicationConfig) Validate() error {
	if c.StartWidth == 0 || c.StartHeight == 0 {
		return fmt.Errorf("window size %dx%d: %w", c.StartWidth, c.StartHeight, core.ErrInvalidArgument)
	}
	if _, err := core.ParseLogLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%v: %w", err, core.ErrInvalidArgument)
	}
	if _, ok := metadata.ParseTextureRepeat(c.Renderer.TextureRepeat); !ok {
		return fmt.Errorf("unknown texture_repeat `%s`: %w", c.Renderer.TextureRepeat, core.ErrInvalidArgument)
	}
	if _, ok := parseTextureFilter(c.Renderer.TextureFilter); !ok {
		return fmt.Errorf("unknown texture_filter `%s`: %w", c.Renderer.TextureFilter, core.ErrInvalidArgument)
	}
	if c.Renderer.MaxMaterials == 0 {
		return fmt.Errorf("max_materials must be positive: %w", core.ErrInvalidArgument)
	}
	return nil
}

func parseTextureFilter(name string) (metadata.TextureFilter, bool) {
	switch name {
	case "", "linear":
		return metadata.TextureFilterModeLinear, true
	case "nearest":
		return metadata.TextureFilterModeNearest, true
	}
	return metadata.TextureFilterModeLinear, false
}

// RendererConfig converts the file settings into what the renderer consumes.
// Call Validate first; unknown names fall back to the defaults here.
func (c *ApplicationConfig) RendererConfig() renderer.Config {
	repeat, _ := metadata.ParseTextureRepeat(c.Renderer.TextureRepeat)
	filter, _ := parseTextureFilter(c.Renderer.TextureFilter)
	return renderer.Config{
		Backend: metadata.RendererBackendConfig{
			ApplicationName:    c.Name,
			EnableValidation:   c.Renderer.Validation,
			InstanceExtensions: c.Renderer.InstanceExtensions,
			ValidationLayers:   c.Renderer.ValidationLayers,
			DeviceExtensions:   c.Renderer.DeviceExtensions,
			VSync:              c.Renderer.VSync,
		},
		ClearColor: c.Renderer.ClearColor,
		Sampler: metadata.SamplerConfig{
			Filter:        filter,
			Repeat:        repeat,
			MaxAnisotropy: c.Renderer.MaxAnisotropy,
		},
		MaxMaterials: c.Renderer.MaxMaterials,
	}
}

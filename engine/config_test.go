package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/anima/engine/core"
	"github.com/spaghettifunk/anima/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "anima.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, uint32(64), cfg.Renderer.MaxMaterials)
	assert.Contains(t, cfg.Renderer.DeviceExtensions, metadata.ExtensionSwapchain)
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
name = "Cubes"
start_width = 800
start_height = 600
log_level = "warn"

[renderer]
vsync = false
clear_color = [0.1, 0.2, 0.3]
validation = true
texture_repeat = "clamp_to_edge"
texture_filter = "nearest"

[assets]
root = "data"
hot_reload = false
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "Cubes", cfg.Name)
	assert.Equal(t, uint32(800), cfg.StartWidth)
	// Keys missing from the file keep their defaults.
	assert.Equal(t, uint32(100), cfg.StartPosX)
	assert.Equal(t, float32(16), cfg.Renderer.MaxAnisotropy)
	assert.Equal(t, "data", cfg.Assets.Root)
	assert.False(t, cfg.Assets.HotReload)

	rc := cfg.RendererConfig()
	assert.Equal(t, "Cubes", rc.Backend.ApplicationName)
	assert.True(t, rc.Backend.EnableValidation)
	assert.False(t, rc.Backend.VSync)
	assert.Equal(t, [3]float32{0.1, 0.2, 0.3}, rc.ClearColor)
	assert.Equal(t, metadata.TextureRepeatClampToEdge, rc.Sampler.Repeat)
	assert.Equal(t, metadata.TextureFilterModeNearest, rc.Sampler.Filter)
	assert.Equal(t, uint32(64), rc.MaxMaterials)
}

func TestLoadConfigRejects(t *testing.T) {
	cases := map[string]string{
		"unknown key":    "fullscreen = true\n",
		"zero width":     "start_width = 0\n",
		"bad log level":  "log_level = \"loud\"\n",
		"bad repeat":     "[renderer]\ntexture_repeat = \"wrap\"\n",
		"bad filter":     "[renderer]\ntexture_filter = \"cubic\"\n",
		"zero materials": "[renderer]\nmax_materials = 0\n",
		"syntax":         "name = \n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, body))
			assert.ErrorIs(t, err, core.ErrInvalidArgument)
		})
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

package engine

import (
	"github.com/spaghettifunk/anima/engine/assets"
	"github.com/spaghettifunk/anima/engine/renderer"
)

// Game is the set of hooks the engine loop calls into.
type Game struct {
	ApplicationConfig *ApplicationConfig
	State             interface{}
	FnInitialize      Initialize
	FnUpdate          Update
	FnOnResize        OnResize
	FnShutdown        Shutdown
}

// Initialize registers shaders, textures, materials and render objects.
type Initialize func(r *renderer.Renderer, am *assets.AssetManager) error

// Update runs once per frame before the renderer draws.
type Update func(r *renderer.Renderer, deltaTime float64) error

type OnResize func(r *renderer.Renderer, width uint32, height uint32) error

type Shutdown func() error

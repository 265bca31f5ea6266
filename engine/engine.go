package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/spaghettifunk/anima/engine/assets"
	"github.com/spaghettifunk/anima/engine/core"
	"github.com/spaghettifunk/anima/engine/platform"
	"github.com/spaghettifunk/anima/engine/renderer"
	"github.com/spaghettifunk/anima/engine/renderer/metadata"
	"github.com/spaghettifunk/anima/engine/renderer/vulkan"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

// How long a suspended (minimized) loop sleeps between polls.
const suspendedPollInterval = 100 * time.Millisecond

type Engine struct {
	currentStage Stage
	gameInstance *Game
	config       *ApplicationConfig
	isRunning    bool
	isSuspended  bool
	platform     *platform.Platform
	assetManager *assets.AssetManager
	renderer     *renderer.Renderer
	width        uint32
	height       uint32
	clock        *core.Clock
	lastTime     float64
}

func New(g *Game) (*Engine, error) {
	cfg := g.ApplicationConfig
	if cfg == nil {
		cfg = DefaultConfig()
		g.ApplicationConfig = cfg
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	level, _ := core.ParseLogLevel(cfg.LogLevel)
	core.SetLogLevel(level)

	am, err := assets.NewAssetManager(cfg.Assets.Root, cfg.Assets.HotReload)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	am.SetTextureFlip(cfg.Assets.FlipTextures)

	return &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		config:       cfg,
		clock:        core.NewClock(),
		platform:     platform.New(),
		assetManager: am,
		width:        cfg.StartWidth,
		height:       cfg.StartHeight,
	}, nil
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing

	if err := core.InputInitialize(); err != nil {
		return err
	}
	if !core.EventInitialize() {
		return fmt.Errorf("failed to initialize the event system")
	}
	if err := core.MetricsInitialize(); err != nil {
		return err
	}

	core.EventRegister(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	core.EventRegister(core.EVENT_CODE_KEY_PRESSED, e, e.onKey)
	core.EventRegister(core.EVENT_CODE_RESIZED, e, e.onResized)
	core.EventRegister(core.EVENT_CODE_ASSET_CHANGED, e, e.onAssetChanged)

	if err := e.platform.Startup(e.config.Name, e.config.StartPosX, e.config.StartPosY, e.config.StartWidth, e.config.StartHeight); err != nil {
		return err
	}
	if err := e.assetManager.Initialize(); err != nil {
		return err
	}

	rendererConfig := e.config.RendererConfig()
	instance, err := vulkan.NewInstance(e.platform, rendererConfig.Backend)
	if err != nil {
		return err
	}
	// The window may already differ from the requested size (HiDPI, tiling WMs).
	e.width, e.height = e.platform.FramebufferSize()
	r, err := renderer.New(instance, rendererConfig, e.width, e.height)
	if err != nil {
		instance.Destroy()
		return err
	}
	e.renderer = r
	e.isSuspended = r.Suspended()

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(r, e.assetManager); err != nil {
			return err
		}
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(r, e.width, e.height); err != nil {
			return err
		}
	}

	e.currentStage = EngineStageInitialized
	e.isRunning = true
	return nil
}

// Run drives the frame loop until the window closes, a quit event arrives or
// a fatal renderer error occurs.
func (e *Engine) Run() error {
	e.currentStage = EngineStageRunning
	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	var runErr error
	for e.isRunning {
		if !e.platform.PumpMessages() {
			e.isRunning = false
		}
		core.EventDispatch()
		if !e.isRunning {
			break
		}

		if e.isSuspended {
			e.platform.Sleep(suspendedPollInterval)
			continue
		}

		// Update clock and get delta time.
		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime
		frameStartTime := e.platform.AbsoluteTime()

		if e.gameInstance.FnUpdate != nil {
			if err := e.gameInstance.FnUpdate(e.renderer, delta); err != nil {
				core.LogError("Game update failed, shutting down: %s", err)
				runErr = err
				break
			}
		}

		e.renderer.SyncTransforms()
		if err := e.renderer.Draw(); err != nil {
			switch {
			case errors.Is(err, core.ErrSwapchainBooting):
				core.LogInfo("Window minimized, suspending application.")
				e.isSuspended = true
			case core.IsFatal(err):
				core.LogError("Renderer failed, shutting down: %s", err)
				runErr = err
				e.isRunning = false
			default:
				core.LogWarn("frame dropped: %s", err)
			}
		}

		frameElapsedTime := e.platform.AbsoluteTime() - frameStartTime
		core.MetricsUpdate(frameElapsedTime)
		if every := e.config.MetricsEveryFrames; every > 0 && core.MetricsTotalFrames()%every == 0 {
			fps, ms := core.MetricsFrame()
			core.LogInfo("FPS: %.0f, frame time: %.3f ms", fps, ms)
		}

		// Input state copying is the last thing to happen in a frame.
		core.InputUpdate()
		e.lastTime = currentTime
	}
	return runErr
}

// Shutdown releases the game, the renderer, the assets and the window in
// reverse initialization order. Errors are logged and the first is returned.
func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown
	var errs []error

	if e.gameInstance.FnShutdown != nil {
		errs = append(errs, e.gameInstance.FnShutdown())
	}
	if e.renderer != nil {
		errs = append(errs, e.renderer.Shutdown())
		e.renderer = nil
	}
	errs = append(errs, e.assetManager.Shutdown())
	errs = append(errs, core.EventShutdown())
	errs = append(errs, core.InputShutdown())
	errs = append(errs, e.platform.Shutdown())

	e.currentStage = EngineStageUninitialized
	for _, err := range errs {
		if err != nil {
			core.LogError("shutdown: %s", err)
			return err
		}
	}
	return nil
}

// GetFramebufferSize returns the width and height (in this order)
// of the application Framebuffer
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

func (e *Engine) onEvent(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
	if code == core.EVENT_CODE_APPLICATION_QUIT {
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning = false
		return true
	}
	return false
}

func (e *Engine) onKey(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
	if core.KeyCode(data.Data.U16[0]) == core.KEY_ESCAPE {
		// NOTE: Technically firing an event to itself, but there may be other listeners.
		core.EventFire(core.EVENT_CODE_APPLICATION_QUIT, e, core.EventContext{})
		// Block anything else from processing this.
		return true
	}
	return false
}

func (e *Engine) onResized(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
	width, height := data.Data.U32[0], data.Data.U32[1]
	if width == e.width && height == e.height && !e.isSuspended {
		return false
	}
	e.width, e.height = width, height
	core.LogDebug("Window resize: %d, %d", width, height)

	if err := e.renderer.OnWindowResize(width, height); err != nil {
		if errors.Is(err, core.ErrSwapchainBooting) {
			e.isSuspended = true
			return false
		}
		core.LogError("resize: %s", err)
		if core.IsFatal(err) {
			e.isRunning = false
		}
		return false
	}

	// Handle minimization
	if width == 0 || height == 0 {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended = true
		return false
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(e.renderer, width, height); err != nil {
			core.LogError(err.Error())
		}
	}
	return false
}

// onAssetChanged reloads a shader whose SPIR-V was rewritten on disk.
func (e *Engine) onAssetChanged(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
	if metadata.ResourceType(data.Data.U32[0]) != metadata.ResourceTypeShader {
		return false
	}
	name, ok := assets.ShaderName(data.Data.C[0])
	if !ok {
		return false
	}
	vertex, fragment, err := e.assetManager.LoadShader(name)
	if err != nil {
		core.LogWarn("shader '%s' not reloaded: %s", name, err)
		return false
	}
	if err := e.renderer.ReloadShader(name, vertex, fragment); err != nil {
		core.LogWarn("shader '%s' not reloaded: %s", name, err)
		return false
	}
	core.LogInfo("Shader '%s' reloaded.", name)
	return true
}

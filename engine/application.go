package engine

// ApplicationConfig is the top level of the engine TOML file.
type ApplicationConfig struct {
	// The application name used in windowing and as the Vulkan application name.
	Name string `toml:"name"`
	// Window starting position x axis, if applicable.
	StartPosX uint32 `toml:"start_pos_x"`
	// Window starting position y axis, if applicable.
	StartPosY uint32 `toml:"start_pos_y"`
	// Window starting width, if applicable.
	StartWidth uint32 `toml:"start_width"`
	// Window starting height, if applicable.
	StartHeight uint32 `toml:"start_height"`
	// One of debug, info, warn, error, fatal.
	LogLevel string `toml:"log_level"`
	// Log FPS and frame time every this many frames, 0 disables it.
	MetricsEveryFrames uint64 `toml:"metrics_every_frames"`

	Renderer RendererConfig `toml:"renderer"`
	Assets   AssetsConfig   `toml:"assets"`
}

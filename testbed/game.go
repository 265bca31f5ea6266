package testbed

import (
	"image"
	"image/color"

	"github.com/spaghettifunk/anima/engine"
	"github.com/spaghettifunk/anima/engine/assets"
	"github.com/spaghettifunk/anima/engine/assets/loaders"
	"github.com/spaghettifunk/anima/engine/core"
	"github.com/spaghettifunk/anima/engine/math"
	"github.com/spaghettifunk/anima/engine/renderer"
	"github.com/spaghettifunk/anima/engine/renderer/metadata"
)

const (
	builtinShader  = "builtin"
	crateTexture   = "crate"
	cubeMaterial   = "cube"
	cameraSpeed    = 2.5
	rotationPerSec = 45.0
)

var cubeAttributes = metadata.VertexAttributePosition | metadata.VertexAttributeUV | metadata.VertexAttributeNormal

var cubeUniforms = metadata.UniformModel |
	metadata.UniformModelInvTranspose |
	metadata.UniformViewProjection |
	metadata.UniformCameraPosition |
	metadata.UniformLightDirection |
	metadata.UniformAmbientColor |
	metadata.UniformSpecularColor |
	metadata.UniformTextureFlags

var clearColors = [][3]float32{
	{0.0, 0.0, 0.2},
	{0.1, 0.1, 0.1},
	{0.3, 0.0, 0.1},
}

var topologies = []metadata.PrimitiveTopology{
	metadata.PrimitiveTopologyTriangleList,
	metadata.PrimitiveTopologyLineList,
	metadata.PrimitiveTopologyPointList,
}

type TestGame struct {
	*engine.Game
}

type gameState struct {
	renderer *renderer.Renderer
	camera   *Camera

	cubes      []renderer.RenderObjectHandle
	transforms []*math.Transform
	floor      renderer.RenderObjectHandle

	vsync      bool
	clearIndex int
	topology   int
}

func NewTestGame(cfg *engine.ApplicationConfig) (*TestGame, error) {
	if cfg == nil {
		cfg = engine.DefaultConfig()
	}
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: cfg,
			State: &gameState{
				camera: NewCamera(),
				vsync:  cfg.Renderer.VSync,
			},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown

	return tg, nil
}

func (g *TestGame) state() *gameState {
	return g.State.(*gameState)
}

func (g *TestGame) Initialize(r *renderer.Renderer, am *assets.AssetManager) error {
	core.LogDebug("initializing testbed...")
	state := g.state()
	state.renderer = r

	vertex, fragment, err := am.LoadShader(builtinShader)
	if err != nil {
		return err
	}
	if err := r.RegisterShader(metadata.ShaderConfig{
		Name:         builtinShader,
		VertexCode:   vertex,
		FragmentCode: fragment,
		Attributes:   cubeAttributes,
		Uniforms:     cubeUniforms,
	}); err != nil {
		return err
	}

	var diffuse metadata.TextureData
	if decoded, err := am.LoadTextures(crateTexture); err == nil {
		diffuse = decoded[0]
	} else {
		core.LogWarn("texture '%s' not found, using a generated checkerboard: %s", crateTexture, err)
		diffuse = checkerboard(crateTexture, 64, 8)
	}
	if _, err := r.LoadTexture(diffuse); err != nil {
		return err
	}

	if err := r.RegisterMaterial(metadata.MaterialConfig{
		Name:           cubeMaterial,
		ShaderName:     builtinShader,
		DiffuseColour:  math.NewVec4(1, 1, 1, 1),
		CullMode:       metadata.FaceCullModeBack,
		DiffuseMapName: crateTexture,
	}); err != nil {
		return err
	}
	// Untextured material. The diffuse flag is off so the shader uses a flat colour.
	if err := r.RegisterMaterial(metadata.MaterialConfig{
		Name:          metadata.DefaultMaterialName,
		ShaderName:    builtinShader,
		DiffuseColour: math.NewVec4(0.4, 0.6, 0.4, 1),
		CullMode:      metadata.FaceCullModeNone,
	}); err != nil {
		return err
	}

	vertices, indices := cubeGeometry()
	for i, pos := range []math.Vec3{
		math.NewVec3(-2, 0, 0),
		math.NewVec3(0, 0, 0),
		math.NewVec3(2, 0, 0),
	} {
		t := math.TransformFromPosition(pos)
		t.SetScale(math.NewVec3(0.5+float32(i)*0.25, 0.5+float32(i)*0.25, 0.5+float32(i)*0.25))
		h, err := r.InitializeRenderObject(vertices, cubeAttributes, indices, cubeMaterial, t)
		if err != nil {
			return err
		}
		state.cubes = append(state.cubes, h)
		state.transforms = append(state.transforms, t)
	}

	floor := math.TransformFromPosition(math.NewVec3(0, -1.5, 0))
	floor.SetScale(math.NewVec3(8, 1, 8))
	if state.floor, err = r.InitializeRenderObject(floorGeometry(), cubeAttributes, nil, metadata.DefaultMaterialName, floor); err != nil {
		return err
	}

	r.SetSceneLighting(metadata.SceneLighting{
		LightDirection: math.NewVec3(-0.57735, -0.57735, -0.57735),
		AmbientColour:  math.NewVec4(0.25, 0.25, 0.25, 1),
		SpecularColour: math.NewVec4(1, 1, 1, 32),
	})

	state.camera.SetPosition(math.NewVec3(0, 1, 8))
	state.camera.Pitch(math.DegToRad(-7))

	core.EventRegister(core.EVENT_CODE_KEY_PRESSED, state, g.onKey)
	return nil
}

func (g *TestGame) Update(r *renderer.Renderer, deltaTime float64) error {
	state := g.state()
	dt := float32(deltaTime)

	angle := math.DegToRad(rotationPerSec * dt)
	// The engine syncs transforms into the renderer after Update.
	for i, t := range state.transforms {
		axis := math.NewVec3(0, 1, 0)
		if i%2 == 1 {
			axis = math.NewVec3(1, 1, 0)
		}
		t.Rotate(math.NewQuatFromAxisAngle(axis, angle, true))
	}

	if core.InputIsKeyDown(core.KEY_UP) {
		state.camera.MoveForward(cameraSpeed * dt)
	}
	if core.InputIsKeyDown(core.KEY_DOWN) {
		state.camera.MoveBackward(cameraSpeed * dt)
	}
	if core.InputIsKeyDown(core.KEY_LEFT) {
		state.camera.Yaw(dt)
	}
	if core.InputIsKeyDown(core.KEY_RIGHT) {
		state.camera.Yaw(-dt)
	}
	if core.InputIsKeyDown(core.KEY_SPACE) {
		state.camera.MoveUp(cameraSpeed * dt)
	}
	r.SetCamera(state.camera.State())
	return nil
}

func (g *TestGame) OnResize(r *renderer.Renderer, width uint32, height uint32) error {
	state := g.state()
	state.camera.Resize(width, height)
	r.SetCamera(state.camera.State())
	return nil
}

func (g *TestGame) Shutdown() error {
	core.EventUnregister(core.EVENT_CODE_KEY_PRESSED, g.state())
	core.LogDebug("shutting down testbed...")
	return nil
}

// onKey toggles vsync (V), cycles the clear colour (C) and the cube topology (T).
func (g *TestGame) onKey(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
	state := listener.(*gameState)
	r := state.renderer

	switch core.KeyCode(data.Data.U16[0]) {
	case core.KEY_V:
		state.vsync = !state.vsync
		core.LogInfo("vsync: %t", state.vsync)
		if r != nil {
			if err := r.SetVSyncEnabled(state.vsync); err != nil {
				core.LogError(err.Error())
			}
		}
		return true
	case core.KEY_C:
		state.clearIndex = (state.clearIndex + 1) % len(clearColors)
		c := clearColors[state.clearIndex]
		if r != nil {
			r.SetClearColor(c[0], c[1], c[2])
		}
		return true
	case core.KEY_T:
		state.topology = (state.topology + 1) % len(topologies)
		core.LogInfo("topology: %s", topologies[state.topology])
		if r != nil {
			for _, h := range state.cubes {
				if err := r.SetTopology(h, topologies[state.topology]); err != nil {
					core.LogError(err.Error())
				}
			}
		}
		return true
	}
	return false
}

// cubeGeometry returns a unit cube with one quad per face so every face has
// its own normal and uv range.
func cubeGeometry() ([]byte, []uint32) {
	type face struct {
		normal  math.Vec3
		corners [4]math.Vec3
	}
	faces := []face{
		{math.NewVec3(0, 0, 1), [4]math.Vec3{{X: -1, Y: -1, Z: 1}, {X: 1, Y: -1, Z: 1}, {X: 1, Y: 1, Z: 1}, {X: -1, Y: 1, Z: 1}}},
		{math.NewVec3(0, 0, -1), [4]math.Vec3{{X: 1, Y: -1, Z: -1}, {X: -1, Y: -1, Z: -1}, {X: -1, Y: 1, Z: -1}, {X: 1, Y: 1, Z: -1}}},
		{math.NewVec3(1, 0, 0), [4]math.Vec3{{X: 1, Y: -1, Z: 1}, {X: 1, Y: -1, Z: -1}, {X: 1, Y: 1, Z: -1}, {X: 1, Y: 1, Z: 1}}},
		{math.NewVec3(-1, 0, 0), [4]math.Vec3{{X: -1, Y: -1, Z: -1}, {X: -1, Y: -1, Z: 1}, {X: -1, Y: 1, Z: 1}, {X: -1, Y: 1, Z: -1}}},
		{math.NewVec3(0, 1, 0), [4]math.Vec3{{X: -1, Y: 1, Z: 1}, {X: 1, Y: 1, Z: 1}, {X: 1, Y: 1, Z: -1}, {X: -1, Y: 1, Z: -1}}},
		{math.NewVec3(0, -1, 0), [4]math.Vec3{{X: -1, Y: -1, Z: -1}, {X: 1, Y: -1, Z: -1}, {X: 1, Y: -1, Z: 1}, {X: -1, Y: -1, Z: 1}}},
	}
	uvs := [4][2]float32{{0, 1}, {1, 1}, {1, 0}, {0, 0}}

	values := make([]float32, 0, len(faces)*4*8)
	indices := make([]uint32, 0, len(faces)*6)
	for i, f := range faces {
		for c, p := range f.corners {
			values = append(values, p.X, p.Y, p.Z, uvs[c][0], uvs[c][1], f.normal.X, f.normal.Y, f.normal.Z)
		}
		base := uint32(i * 4)
		indices = append(indices, base, base+1, base+2, base, base+2, base+3)
	}
	return renderer.Float32Bytes(values), indices
}

// floorGeometry is a non-indexed quad in the XZ plane.
func floorGeometry() []byte {
	n := [3]float32{0, 1, 0}
	corner := func(x, z, u, v float32) []float32 {
		return []float32{x, 0, z, u, v, n[0], n[1], n[2]}
	}
	var values []float32
	for _, c := range [][]float32{
		corner(-1, 1, 0, 1), corner(1, 1, 1, 1), corner(1, -1, 1, 0),
		corner(-1, 1, 0, 1), corner(1, -1, 1, 0), corner(-1, -1, 0, 0),
	} {
		values = append(values, c...)
	}
	return renderer.Float32Bytes(values)
}

func checkerboard(name string, size, cells int) metadata.TextureData {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	cell := size / cells
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			c := color.RGBA{R: 200, G: 140, B: 60, A: 255}
			if (x/cell+y/cell)%2 == 0 {
				c = color.RGBA{R: 90, G: 60, B: 30, A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	data := loaders.ToTextureData(img, false)
	data.Name = name
	return data
}

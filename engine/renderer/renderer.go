package renderer

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/spaghettifunk/anima/engine/core"
	"github.com/spaghettifunk/anima/engine/math"
	"github.com/spaghettifunk/anima/engine/renderer/gpu"
	"github.com/spaghettifunk/anima/engine/renderer/metadata"
)

type Config struct {
	Backend    metadata.RendererBackendConfig
	ClearColor [3]float32
	Sampler    metadata.SamplerConfig
	// Upper bound of registered materials, one descriptor set each.
	MaxMaterials uint32
}

// Renderer draws every registered object each frame into the swapchain.
// It is not safe for concurrent use; the engine loop owns it.
type Renderer struct {
	cfg    Config
	ctx    *DeviceContext
	device gpu.Device
	// Owns every component, released in reverse order on Shutdown.
	scope *Scope

	swapchain *SwapchainManager
	pool      *BufferPool
	loader    *TextureLoader
	textures  *textureSet
	pipelines *PipelineCache
	materials *MaterialRegistry
	uniforms  *UniformStream
	recorder  *CommandRecorder
	frame     *FrameSynchronizer

	ids     *core.Identifiers
	objects []*RenderObject
	byID    map[RenderObjectHandle]*RenderObject

	camera   metadata.CameraState
	lighting metadata.SceneLighting

	// Last size the window reported.
	hint      gpu.Extent
	extent    gpu.Extent
	suspended bool
}

// textureSet releases every loaded texture.
type textureSet struct {
	byName   map[string]*Texture
	fallback *Texture
}

func (ts *textureSet) Destroy() {
	for name, t := range ts.byName {
		t.Destroy()
		delete(ts.byName, name)
	}
	if ts.fallback != nil {
		ts.fallback.Destroy()
		ts.fallback = nil
	}
}

func New(instance gpu.Instance, cfg Config, width, height uint32) (*Renderer, error) {
	ctx, err := NewDeviceContext(instance, cfg.Backend)
	if err != nil {
		return nil, err
	}
	r := &Renderer{
		cfg:      cfg,
		ctx:      ctx,
		device:   ctx.Device,
		scope:    NewScope(),
		ids:      core.NewIdentifiers(),
		byID:     make(map[RenderObjectHandle]*RenderObject),
		hint:     gpu.Extent{Width: width, Height: height},
		camera:   defaultCamera(width, height),
		lighting: defaultLighting(),
	}
	r.scope.Own(ctx)

	if err := r.initialize(); err != nil {
		r.scope.Release()
		return nil, err
	}
	core.LogInfo("Vulkan renderer initialized successfully.")
	return r, nil
}

func (r *Renderer) initialize() error {
	uniforms, err := NewUniformStream(r.device)
	if err != nil {
		return err
	}
	r.scope.Own(uniforms)
	r.uniforms = uniforms

	materials, err := NewMaterialRegistry(r.device, r.cfg.MaxMaterials)
	if err != nil {
		return err
	}
	r.scope.Own(materials)
	r.materials = materials

	r.loader = NewTextureLoader(r.device, r.cfg.Sampler)
	r.textures = &textureSet{byName: make(map[string]*Texture)}
	r.scope.Own(r.textures)

	r.pipelines = NewPipelineCache(r.device)
	r.scope.Own(r.pipelines)

	r.swapchain = NewSwapchainManager(r.device, r.cfg.Backend.VSync)
	r.scope.Own(r.swapchain)

	r.recorder = NewCommandRecorder(r.device, r.cfg.ClearColor)
	r.scope.Own(r.recorder)

	frame, err := NewFrameSynchronizer(r.device)
	if err != nil {
		return err
	}
	r.scope.Own(frame)
	r.frame = frame

	r.pool = NewBufferPool(r.device)
	r.scope.Own(r.pool)

	// A minimized window at startup waits for the first resize.
	if err := r.recreate(r.hint); err != nil && !errors.Is(err, core.ErrSwapchainBooting) {
		return err
	}
	return nil
}

func defaultCamera(width, height uint32) metadata.CameraState {
	aspect := float32(1)
	if height > 0 {
		aspect = float32(width) / float32(height)
	}
	position := math.NewVec3(0, 0, 10)
	return metadata.CameraState{
		View:       math.NewMat4LookAt(position, math.NewVec3Zero(), math.NewVec3Up()),
		Projection: math.NewMat4Perspective(math.DegToRad(45), aspect, 0.1, 1000),
		Position:   position,
	}
}

func defaultLighting() metadata.SceneLighting {
	return metadata.SceneLighting{
		LightDirection: math.NewVec3(-0.57735, -0.57735, -0.57735),
		AmbientColour:  math.NewVec4(0.25, 0.25, 0.25, 1),
		SpecularColour: math.NewVec4(1, 1, 1, 1),
	}
}

// RegisterShader compiles the stages of a shader so materials can use it.
func (r *Renderer) RegisterShader(cfg metadata.ShaderConfig) error {
	_, err := r.pipelines.RegisterShader(cfg)
	if err != nil {
		core.LogError("failed to register shader '%s': %s", cfg.Name, err)
	}
	return err
}

// LoadTexture uploads decoded pixels. Unnamed textures get a generated name.
func (r *Renderer) LoadTexture(data metadata.TextureData) (*Texture, error) {
	if data.Name == "" {
		data.Name = uuid.NewString()
	}
	if _, ok := r.textures.byName[data.Name]; ok {
		return nil, fmt.Errorf("texture '%s' already loaded: %w", data.Name, core.ErrInvalidArgument)
	}
	t, err := r.loader.LoadData(data)
	if err != nil {
		return nil, err
	}
	r.textures.byName[data.Name] = t
	return t, nil
}

func (r *Renderer) RegisterMaterial(cfg metadata.MaterialConfig) error {
	shader, ok := r.pipelines.Shader(cfg.ShaderName)
	if !ok {
		return fmt.Errorf("material '%s' uses unknown shader '%s': %w", cfg.Name, cfg.ShaderName, core.ErrInvalidArgument)
	}
	diffuse, err := r.texture(cfg.DiffuseMapName)
	if err != nil {
		return err
	}
	normal, err := r.texture(cfg.NormalMapName)
	if err != nil {
		return err
	}
	specular, err := r.texture(cfg.SpecularMapName)
	if err != nil {
		return err
	}
	m, err := r.materials.Register(cfg, shader, diffuse, normal, specular)
	if err != nil {
		return err
	}
	var fallback *Texture
	if shader.Config.Uniforms.Has(metadata.UniformTextureFlags) {
		if fallback, err = r.fallbackTexture(); err != nil {
			return err
		}
	}
	r.materials.WriteSet(m, r.uniforms, fallback)
	return nil
}

func (r *Renderer) texture(name string) (*Texture, error) {
	if name == "" {
		return nil, nil
	}
	t, ok := r.textures.byName[name]
	if !ok {
		return nil, fmt.Errorf("unknown texture '%s': %w", name, core.ErrInvalidArgument)
	}
	return t, nil
}

func (r *Renderer) fallbackTexture() (*Texture, error) {
	if r.textures.fallback != nil {
		return r.textures.fallback, nil
	}
	t, err := r.loader.DefaultTexture()
	if err != nil {
		return nil, err
	}
	r.textures.fallback = t
	return t, nil
}

// InitializeRenderObject registers interleaved vertex data and optional
// 32-bit indices. The data is uploaded on the next Draw.
func (r *Renderer) InitializeRenderObject(vertexData []byte, attrs metadata.VertexAttributes, indices []uint32, material string, transform *math.Transform) (RenderObjectHandle, error) {
	stride := attrs.Stride()
	if len(vertexData) == 0 || stride == 0 {
		return 0, fmt.Errorf("render object without vertex data: %w", core.ErrInvalidArgument)
	}
	if uint32(len(vertexData))%stride != 0 {
		return 0, fmt.Errorf("%d bytes of vertex data is not a multiple of stride %d (%s): %w", len(vertexData), stride, attrs, core.ErrInvalidArgument)
	}
	m, ok := r.materials.Get(material)
	if !ok {
		return 0, fmt.Errorf("unknown material '%s': %w", material, core.ErrInvalidArgument)
	}
	if want := m.Shader.Config.Attributes; want != metadata.VertexAttributeNone && want != attrs {
		return 0, fmt.Errorf("shader '%s' expects %s, got %s: %w", m.Shader.Name, want, attrs, core.ErrInvalidArgument)
	}
	vertexCount := uint32(len(vertexData)) / stride
	for _, i := range indices {
		if i >= vertexCount {
			return 0, fmt.Errorf("index %d out of range of %d vertices: %w", i, vertexCount, core.ErrInvalidArgument)
		}
	}

	o := &RenderObject{
		Material:   m,
		Attributes: attrs,
		Topology:   metadata.PrimitiveTopologyTriangleList,
		Transform:  transform,
		vertices:   append([]byte(nil), vertexData...),
		indices:    append([]uint32(nil), indices...),
		Slot:       uint32(len(r.objects)),
		model:      math.NewMat4Identity(),
	}
	if transform != nil {
		o.model = transform.GetWorld()
	}
	o.ID = RenderObjectHandle(r.ids.Acquire(o))
	r.objects = append(r.objects, o)
	r.byID[o.ID] = o
	r.pool.MarkDirty()
	r.recorder.MarkDirty()
	return o.ID, nil
}

func (r *Renderer) object(h RenderObjectHandle) (*RenderObject, error) {
	o, ok := r.byID[h]
	if !ok {
		return nil, fmt.Errorf("unknown render object %d: %w", h, core.ErrInvalidArgument)
	}
	return o, nil
}

// UpdateTransform sets the model matrix written for the object next frame.
func (r *Renderer) UpdateTransform(h RenderObjectHandle, model math.Mat4) error {
	o, err := r.object(h)
	if err != nil {
		return err
	}
	o.model = model
	return nil
}

// SyncTransforms copies the world matrix of every object's transform.
func (r *Renderer) SyncTransforms() {
	for _, o := range r.objects {
		if o.Transform != nil {
			o.model = o.Transform.GetWorld()
		}
	}
}

func (r *Renderer) SetTopology(h RenderObjectHandle, topology metadata.PrimitiveTopology) error {
	o, err := r.object(h)
	if err != nil {
		return err
	}
	if !topology.Supported() {
		return fmt.Errorf("topology %s is not supported: %w", topology, core.ErrInvalidArgument)
	}
	if o.Topology != topology {
		o.Topology = topology
		r.recorder.MarkDirty()
	}
	return nil
}

// Destroy removes an object. Slots of the objects after it shift down.
func (r *Renderer) Destroy(h RenderObjectHandle) error {
	o, err := r.object(h)
	if err != nil {
		return err
	}
	for i, other := range r.objects {
		if other == o {
			r.objects = append(r.objects[:i], r.objects[i+1:]...)
			break
		}
	}
	for i, other := range r.objects {
		other.Slot = uint32(i)
	}
	delete(r.byID, h)
	if err := r.ids.Release(uint32(h)); err != nil {
		core.LogWarn(err.Error())
	}
	r.pool.MarkDirty()
	r.recorder.MarkDirty()
	return nil
}

func (r *Renderer) SetCamera(camera metadata.CameraState) {
	r.camera = camera
}

func (r *Renderer) SetSceneLighting(lighting metadata.SceneLighting) {
	r.lighting = lighting
}

func (r *Renderer) SetClearColor(red, green, blue float32) {
	r.recorder.ClearColor = [3]float32{red, green, blue}
	r.recorder.MarkDirty()
}

// SetVSyncEnabled switches the present mode, recreating the swapchain if it changed.
func (r *Renderer) SetVSyncEnabled(enabled bool) error {
	if r.swapchain.VSync == enabled {
		return nil
	}
	r.swapchain.VSync = enabled
	if r.suspended {
		return nil
	}
	return r.recreate(r.hint)
}

// OnWindowResize recreates the swapchain, or suspends drawing for a minimized window.
func (r *Renderer) OnWindowResize(width, height uint32) error {
	r.hint = gpu.Extent{Width: width, Height: height}
	if r.hint.IsZero() {
		core.LogDebug("Window minimized, drawing suspended.")
		r.suspended = true
		return nil
	}
	return r.recreate(r.hint)
}

// ReloadShader swaps the code of a registered shader.
func (r *Renderer) ReloadShader(name string, vertex, fragment []byte) error {
	if err := r.device.WaitIdle(); err != nil {
		return fmt.Errorf("shader reload: %v: %w", err, core.ErrDevice)
	}
	if err := r.pipelines.ReloadShader(name, vertex, fragment); err != nil {
		core.LogError(err.Error())
		return err
	}
	r.recorder.MarkDirty()
	return nil
}

// syncPool rebuilds the shared buffers once nothing reads them anymore.
func (r *Renderer) syncPool() error {
	if !r.pool.Dirty() {
		return nil
	}
	if err := r.device.WaitIdle(); err != nil {
		return fmt.Errorf("buffer pool rebuild: %v: %w", err, core.ErrDevice)
	}
	if err := r.pool.Build(r.objects); err != nil {
		return err
	}
	r.recorder.MarkDirty()
	return nil
}

// RebuildIfDirty re-records the command buffers after the object set, a
// topology or the swapchain changed. Otherwise it does nothing.
func (r *Renderer) RebuildIfDirty() error {
	if r.suspended {
		return nil
	}
	if err := r.syncPool(); err != nil {
		return err
	}
	if !r.recorder.Dirty() {
		return nil
	}
	return r.recorder.Record(recordTarget{
		swapchain: r.swapchain,
		pool:      r.pool,
		pipelines: r.pipelines,
		uniforms:  r.uniforms,
		objects:   r.objects,
	})
}

// Draw renders one frame. A stale surface costs the frame and recreates the
// swapchain; ErrSwapchainBooting is returned while the window is minimized.
func (r *Renderer) Draw() error {
	if r.suspended {
		return core.ErrSwapchainBooting
	}
	if err := r.frame.WaitPrevious(); err != nil {
		return err
	}
	if err := r.syncPool(); err != nil {
		return err
	}

	grown, err := r.uniforms.EnsureCapacity(uint32(len(r.objects)))
	if err != nil {
		return err
	}
	if grown {
		r.materials.WriteObjectBindings(r.uniforms)
		r.recorder.MarkDirty()
	}
	if err := r.uniforms.PrepareFrame(r.camera, r.lighting); err != nil {
		return fmt.Errorf("constant uniforms: %v: %w", err, core.ErrAllocation)
	}
	for _, o := range r.objects {
		if err := r.uniforms.WriteObject(o.Slot, o.model, TextureFlags(o.Material)); err != nil {
			return fmt.Errorf("object %d uniforms: %w", o.ID, err)
		}
	}

	if err := r.RebuildIfDirty(); err != nil {
		return err
	}

	acquired, err := r.frame.Acquire(r.swapchain.Swapchain)
	if err != nil {
		return err
	}
	if !acquired {
		core.LogDebug("Swapchain out of date on acquire, recreating.")
		return r.recreateAfterStale()
	}

	if err := r.frame.Submit(r.recorder.Buffers[r.frame.ImageIndex]); err != nil {
		return err
	}

	presented, err := r.frame.Present(r.swapchain.Swapchain)
	if err != nil {
		return err
	}
	if !presented {
		core.LogDebug("Swapchain stale on present, recreating.")
		return r.recreateAfterStale()
	}
	return nil
}

func (r *Renderer) recreateAfterStale() error {
	err := r.recreate(r.hint)
	r.frame.State = FrameIdle
	if errors.Is(err, core.ErrSwapchainBooting) {
		return nil
	}
	return err
}

// Shutdown waits for the device and releases everything in reverse creation order.
func (r *Renderer) Shutdown() error {
	var err error
	if r.device != nil {
		if err = r.device.WaitIdle(); err != nil {
			core.LogError("device wait idle on shutdown: %s", err)
		}
	}
	r.objects = nil
	r.byID = make(map[RenderObjectHandle]*RenderObject)
	r.scope.Release()
	core.LogInfo("Vulkan renderer shut down.")
	return err
}

// Records returns what the last command buffer recording drew.
func (r *Renderer) Records() []DrawRecord {
	return r.recorder.Records()
}

func (r *Renderer) Extent() gpu.Extent {
	return r.extent
}

func (r *Renderer) Suspended() bool {
	return r.suspended
}

func (r *Renderer) FrameState() FrameState {
	return r.frame.State
}

func (r *Renderer) Object(h RenderObjectHandle) (*RenderObject, bool) {
	o, ok := r.byID[h]
	return o, ok
}

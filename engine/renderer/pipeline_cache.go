package renderer

import (
	"fmt"

	"github.com/spaghettifunk/anima/engine/core"
	"github.com/spaghettifunk/anima/engine/renderer/gpu"
	"github.com/spaghettifunk/anima/engine/renderer/metadata"
)

// Descriptor bindings every shader layout is built from.
const (
	BindingConstant uint32 = iota
	BindingObject
	BindingDiffuse
	BindingNormal
	BindingSpecular
)

// Shader holds the compiled stages of a program and its descriptor set layout.
type Shader struct {
	Name     string
	Config   metadata.ShaderConfig
	Vertex   gpu.ShaderModule
	Fragment gpu.ShaderModule
	Layout   gpu.DescriptorSetLayout
	Bindings []gpu.DescriptorBinding
}

// ShaderBindings derives the descriptor bindings from the uniforms a shader reads.
func ShaderBindings(uniforms metadata.UniformRequirements) []gpu.DescriptorBinding {
	stages := metadata.ShaderStageVertex | metadata.ShaderStageFragment
	var bindings []gpu.DescriptorBinding
	if uniforms.NeedsConstant() {
		bindings = append(bindings, gpu.DescriptorBinding{Binding: BindingConstant, Type: gpu.DescriptorTypeUniformBuffer, Stages: stages})
	}
	if uniforms.NeedsDynamic() {
		bindings = append(bindings, gpu.DescriptorBinding{Binding: BindingObject, Type: gpu.DescriptorTypeUniformBufferDynamic, Stages: stages})
	}
	if uniforms.Has(metadata.UniformTextureFlags) {
		for _, b := range []uint32{BindingDiffuse, BindingNormal, BindingSpecular} {
			bindings = append(bindings, gpu.DescriptorBinding{Binding: b, Type: gpu.DescriptorTypeCombinedImageSampler, Stages: metadata.ShaderStageFragment})
		}
	}
	return bindings
}

func (s *Shader) createModules(device gpu.Device, vertex, fragment []byte) error {
	vert, err := device.CreateShaderModule(vertex)
	if err != nil {
		return fmt.Errorf("shader '%s' vertex stage: %v: %w", s.Name, err, core.ErrShaderLoad)
	}
	frag, err := device.CreateShaderModule(fragment)
	if err != nil {
		vert.Destroy()
		return fmt.Errorf("shader '%s' fragment stage: %v: %w", s.Name, err, core.ErrShaderLoad)
	}
	s.releaseModules()
	s.Vertex = vert
	s.Fragment = frag
	s.Config.VertexCode = vertex
	s.Config.FragmentCode = fragment
	return nil
}

func (s *Shader) releaseModules() {
	if s.Fragment != nil {
		s.Fragment.Destroy()
		s.Fragment = nil
	}
	if s.Vertex != nil {
		s.Vertex.Destroy()
		s.Vertex = nil
	}
}

func (s *Shader) Destroy() {
	s.releaseModules()
	if s.Layout != nil {
		s.Layout.Destroy()
		s.Layout = nil
	}
}

type PipelineKey struct {
	Shader     string
	Attributes metadata.VertexAttributes
	Topology   metadata.PrimitiveTopology
	CullMode   metadata.FaceCullMode
}

func (k PipelineKey) String() string {
	return fmt.Sprintf("%s[%s,%s,%s]", k.Shader, k.Attributes, k.Topology, k.CullMode)
}

// PipelineCache creates one graphics pipeline per distinct key and rebuilds
// all of them against a new render pass and extent.
type PipelineCache struct {
	device  gpu.Device
	shaders map[string]*Shader

	pass   gpu.RenderPass
	extent gpu.Extent

	pipelines map[PipelineKey]gpu.Pipeline
	// Creation order, kept across releases.
	keys []PipelineKey
}

func NewPipelineCache(device gpu.Device) *PipelineCache {
	return &PipelineCache{
		device:    device,
		shaders:   make(map[string]*Shader),
		pipelines: make(map[PipelineKey]gpu.Pipeline),
	}
}

func (pc *PipelineCache) RegisterShader(cfg metadata.ShaderConfig) (*Shader, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("shader without a name: %w", core.ErrInvalidArgument)
	}
	if _, ok := pc.shaders[cfg.Name]; ok {
		return nil, fmt.Errorf("shader '%s' already registered: %w", cfg.Name, core.ErrInvalidArgument)
	}
	s := &Shader{Name: cfg.Name, Config: cfg, Bindings: ShaderBindings(cfg.Uniforms)}
	if err := s.createModules(pc.device, cfg.VertexCode, cfg.FragmentCode); err != nil {
		return nil, err
	}
	layout, err := pc.device.CreateDescriptorSetLayout(s.Bindings)
	if err != nil {
		s.Destroy()
		return nil, fmt.Errorf("shader '%s' descriptor set layout: %v: %w", cfg.Name, err, core.ErrAllocation)
	}
	s.Layout = layout
	pc.shaders[cfg.Name] = s
	core.LogDebug("Shader '%s' registered with attributes %s.", cfg.Name, cfg.Attributes)
	return s, nil
}

func (pc *PipelineCache) Shader(name string) (*Shader, bool) {
	s, ok := pc.shaders[name]
	return s, ok
}

// SetTarget points new pipelines at pass and extent.
func (pc *PipelineCache) SetTarget(pass gpu.RenderPass, extent gpu.Extent) {
	pc.pass = pass
	pc.extent = extent
}

func (pc *PipelineCache) GetOrCreate(shaderName string, attrs metadata.VertexAttributes, topology metadata.PrimitiveTopology, cull metadata.FaceCullMode) (gpu.Pipeline, error) {
	key := PipelineKey{Shader: shaderName, Attributes: attrs, Topology: topology, CullMode: cull}
	if p, ok := pc.pipelines[key]; ok && p != nil {
		return p, nil
	}
	p, err := pc.create(key)
	if err != nil {
		return nil, err
	}
	if _, known := pc.pipelines[key]; !known {
		pc.keys = append(pc.keys, key)
	}
	pc.pipelines[key] = p
	return p, nil
}

func (pc *PipelineCache) create(key PipelineKey) (gpu.Pipeline, error) {
	if !key.Topology.Supported() {
		return nil, fmt.Errorf("topology %s is not supported: %w", key.Topology, core.ErrInvalidArgument)
	}
	s, ok := pc.shaders[key.Shader]
	if !ok {
		return nil, fmt.Errorf("unknown shader '%s': %w", key.Shader, core.ErrShaderLoad)
	}
	if pc.pass == nil {
		return nil, fmt.Errorf("pipeline %s requested without a render pass: %w", key, core.ErrUnknown)
	}
	p, err := pc.device.CreatePipeline(gpu.PipelineDesc{
		RenderPass:     pc.pass,
		VertexShader:   s.Vertex,
		FragmentShader: s.Fragment,
		VertexStride:   key.Attributes.Stride(),
		Attributes:     VertexInputAttributes(key.Attributes),
		Topology:       key.Topology,
		CullMode:       key.CullMode,
		Extent:         pc.extent,
		SetLayout:      s.Layout,
		DepthTest:      true,
		DepthWrite:     true,
		DepthCompare:   gpu.CompareOpLess,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline %s: %v: %w", key, err, core.ErrShaderLoad)
	}
	core.LogDebug("Pipeline %s created.", key)
	return p, nil
}

// VertexInputAttributes assigns consecutive locations in layout order.
func VertexInputAttributes(attrs metadata.VertexAttributes) []gpu.VertexInputAttribute {
	var out []gpu.VertexInputAttribute
	attrs.Each(func(attr metadata.VertexAttributes, offset uint32) {
		out = append(out, gpu.VertexInputAttribute{
			Location: uint32(len(out)),
			Format:   vertexFormat(attr),
			Offset:   offset,
		})
	})
	return out
}

func vertexFormat(attr metadata.VertexAttributes) gpu.Format {
	switch attr {
	case metadata.VertexAttributePosition2D, metadata.VertexAttributeUV:
		return gpu.FormatR32G32Sfloat
	case metadata.VertexAttributeColorR8G8B8A8:
		return gpu.FormatR8G8B8A8Unorm
	case metadata.VertexAttributeColorR32G32B32A32:
		return gpu.FormatR32G32B32A32Sfloat
	default:
		return gpu.FormatR32G32B32Sfloat
	}
}

// Release destroys every pipeline but remembers the keys for Rebuild.
func (pc *PipelineCache) Release() {
	for i := len(pc.keys) - 1; i >= 0; i-- {
		key := pc.keys[i]
		if p := pc.pipelines[key]; p != nil {
			p.Destroy()
			pc.pipelines[key] = nil
		}
	}
}

// Rebuild recreates every known pipeline against the current target.
func (pc *PipelineCache) Rebuild() error {
	for _, key := range pc.keys {
		if pc.pipelines[key] != nil {
			continue
		}
		p, err := pc.create(key)
		if err != nil {
			return err
		}
		pc.pipelines[key] = p
	}
	return nil
}

// ReloadShader swaps the stages of a shader and forgets its pipelines.
func (pc *PipelineCache) ReloadShader(name string, vertex, fragment []byte) error {
	s, ok := pc.shaders[name]
	if !ok {
		return fmt.Errorf("reload of unknown shader '%s': %w", name, core.ErrInvalidArgument)
	}
	if err := s.createModules(pc.device, vertex, fragment); err != nil {
		return err
	}
	pc.dropShader(name)
	core.LogInfo("Shader '%s' reloaded.", name)
	return nil
}

func (pc *PipelineCache) dropShader(name string) {
	keys := pc.keys[:0]
	for _, key := range pc.keys {
		if key.Shader != name {
			keys = append(keys, key)
			continue
		}
		if p := pc.pipelines[key]; p != nil {
			p.Destroy()
		}
		delete(pc.pipelines, key)
	}
	pc.keys = keys
}

// Len returns the number of known pipeline keys.
func (pc *PipelineCache) Len() int {
	return len(pc.keys)
}

func (pc *PipelineCache) Destroy() {
	pc.Release()
	pc.pipelines = make(map[PipelineKey]gpu.Pipeline)
	pc.keys = nil
	for name, s := range pc.shaders {
		s.Destroy()
		delete(pc.shaders, name)
	}
}

package renderer

import (
	"fmt"

	"github.com/spaghettifunk/anima/engine/core"
	"github.com/spaghettifunk/anima/engine/renderer/gpu"
	"github.com/spaghettifunk/anima/engine/renderer/metadata"
)

const DefaultMaxMaterials uint32 = 64

type Material struct {
	ID       uint32
	Name     string
	Config   metadata.MaterialConfig
	Shader   *Shader
	Diffuse  *Texture
	Normal   *Texture
	Specular *Texture
	// Freed with the descriptor pool.
	Set gpu.DescriptorSet
}

// MaterialRegistry allocates one descriptor set per material from a single pool.
type MaterialRegistry struct {
	device    gpu.Device
	pool      gpu.DescriptorPool
	ids       *core.Identifiers
	materials map[string]*Material
	order     []*Material
	max       uint32
}

func NewMaterialRegistry(device gpu.Device, maxMaterials uint32) (*MaterialRegistry, error) {
	if maxMaterials == 0 {
		maxMaterials = DefaultMaxMaterials
	}
	pool, err := device.CreateDescriptorPool(gpu.DescriptorPoolDesc{
		MaxSets: maxMaterials,
		Sizes: map[gpu.DescriptorType]uint32{
			gpu.DescriptorTypeUniformBuffer:        maxMaterials,
			gpu.DescriptorTypeUniformBufferDynamic: maxMaterials,
			gpu.DescriptorTypeCombinedImageSampler: maxMaterials * 3,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create descriptor pool: %v: %w", err, core.ErrAllocation)
	}
	return &MaterialRegistry{
		device:    device,
		pool:      pool,
		ids:       core.NewIdentifiers(),
		materials: make(map[string]*Material),
		max:       maxMaterials,
	}, nil
}

func (mr *MaterialRegistry) Get(name string) (*Material, bool) {
	m, ok := mr.materials[name]
	return m, ok
}

func (mr *MaterialRegistry) Len() int {
	return len(mr.order)
}

// Register creates the material's descriptor set. Textures are resolved by
// the caller; missing maps stay nil.
func (mr *MaterialRegistry) Register(cfg metadata.MaterialConfig, shader *Shader, diffuse, normal, specular *Texture) (*Material, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("material without a name: %w", core.ErrInvalidArgument)
	}
	if _, ok := mr.materials[cfg.Name]; ok {
		return nil, fmt.Errorf("material '%s' already registered: %w", cfg.Name, core.ErrInvalidArgument)
	}
	if uint32(len(mr.order)) >= mr.max {
		return nil, fmt.Errorf("material '%s': limit of %d materials reached: %w", cfg.Name, mr.max, core.ErrAllocation)
	}
	set, err := mr.device.AllocateDescriptorSet(mr.pool, shader.Layout)
	if err != nil {
		return nil, fmt.Errorf("material '%s' descriptor set: %v: %w", cfg.Name, err, core.ErrAllocation)
	}
	m := &Material{
		Name:     cfg.Name,
		Config:   cfg,
		Shader:   shader,
		Diffuse:  diffuse,
		Normal:   normal,
		Specular: specular,
		Set:      set,
	}
	m.ID = mr.ids.Acquire(m)
	mr.materials[cfg.Name] = m
	mr.order = append(mr.order, m)
	return m, nil
}

// WriteSet points every binding of m at the uniform buffers and its textures.
// fallback stands in for missing maps.
func (mr *MaterialRegistry) WriteSet(m *Material, uniforms *UniformStream, fallback *Texture) {
	var writes []gpu.DescriptorWrite
	for _, b := range m.Shader.Bindings {
		switch b.Binding {
		case BindingConstant:
			writes = append(writes, gpu.DescriptorWrite{
				Binding: b.Binding,
				Type:    b.Type,
				Buffer:  uniforms.Constant,
				Range:   ConstantUniformSize,
			})
		case BindingObject:
			writes = append(writes, gpu.DescriptorWrite{
				Binding: b.Binding,
				Type:    b.Type,
				Buffer:  uniforms.Dynamic,
				Range:   ObjectUniformSize,
			})
		default:
			t := mr.textureFor(m, b.Binding)
			if t == nil {
				t = fallback
			}
			if t == nil {
				continue
			}
			writes = append(writes, gpu.DescriptorWrite{
				Binding: b.Binding,
				Type:    b.Type,
				View:    t.View,
				Sampler: t.Sampler,
			})
		}
	}
	m.Set.Update(writes...)
}

// WriteObjectBindings rewrites the dynamic uniform binding of every material.
func (mr *MaterialRegistry) WriteObjectBindings(uniforms *UniformStream) {
	for _, m := range mr.order {
		if !m.Shader.Config.Uniforms.NeedsDynamic() {
			continue
		}
		m.Set.Update(gpu.DescriptorWrite{
			Binding: BindingObject,
			Type:    gpu.DescriptorTypeUniformBufferDynamic,
			Buffer:  uniforms.Dynamic,
			Range:   ObjectUniformSize,
		})
	}
}

func (mr *MaterialRegistry) textureFor(m *Material, binding uint32) *Texture {
	switch binding {
	case BindingDiffuse:
		return m.Diffuse
	case BindingNormal:
		return m.Normal
	case BindingSpecular:
		return m.Specular
	}
	return nil
}

// Destroy frees the pool and with it every descriptor set.
func (mr *MaterialRegistry) Destroy() {
	if mr.pool != nil {
		mr.pool.Destroy()
		mr.pool = nil
	}
	for _, m := range mr.order {
		_ = mr.ids.Release(m.ID)
		m.Set = nil
	}
	mr.order = nil
	mr.materials = make(map[string]*Material)
}

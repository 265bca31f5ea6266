package gputest

import (
	"errors"
	"fmt"
	"time"

	"github.com/spaghettifunk/anima/engine/renderer/gpu"
)

type Buffer struct {
	resource
	Desc gpu.BufferDesc
	data []byte
}

func (b *Buffer) Size() uint64 {
	return b.Desc.Size
}

func (b *Buffer) Write(offset uint64, data []byte) error {
	if b.Desc.Memory != gpu.MemoryHostVisible {
		return errors.New("write to device local buffer")
	}
	if offset+uint64(len(data)) > b.Desc.Size {
		return fmt.Errorf("write of %d bytes at %d overflows buffer of %d", len(data), offset, b.Desc.Size)
	}
	copy(b.data[offset:], data)
	return nil
}

func (b *Buffer) Flush(offset, size uint64) error {
	if offset+size > b.Desc.Size {
		return fmt.Errorf("flush of %d bytes at %d overflows buffer of %d", size, offset, b.Desc.Size)
	}
	b.dev.Flushes = append(b.dev.Flushes, FlushRange{Buffer: b.ID, Offset: offset, Size: size})
	return nil
}

// Bytes returns the buffer contents, including device local ones filled by copies.
func (b *Buffer) Bytes() []byte {
	return b.data
}

func (d *Device) CreateBuffer(desc gpu.BufferDesc) (gpu.Buffer, error) {
	if desc.Size == 0 {
		return nil, errors.New("zero sized buffer")
	}
	if d.MemoryLimit > 0 && desc.Size > d.MemoryLimit {
		return nil, fmt.Errorf("out of device memory: %d > %d", desc.Size, d.MemoryLimit)
	}
	r, err := d.create(KindBuffer)
	if err != nil {
		return nil, err
	}
	b := &Buffer{resource: r, Desc: desc, data: make([]byte, desc.Size)}
	d.Buffers = append(d.Buffers, b)
	return b, nil
}

func (d *Device) CopyBuffer(src gpu.Buffer, srcOffset uint64, dst gpu.Buffer, dstOffset uint64, size uint64) error {
	s, t := src.(*Buffer), dst.(*Buffer)
	if s.Destroyed || t.Destroyed {
		return errors.New("copy with destroyed buffer")
	}
	if srcOffset+size > s.Desc.Size || dstOffset+size > t.Desc.Size {
		return fmt.Errorf("copy of %d bytes overflows", size)
	}
	copy(t.data[dstOffset:dstOffset+size], s.data[srcOffset:srcOffset+size])
	return nil
}

type Image struct {
	resource
	Desc   gpu.ImageDesc
	Layout gpu.ImageLayout
	// Pixels holds what CopyBufferToImage wrote.
	Pixels []byte
	owned  bool
}

func (i *Image) Extent() gpu.Extent {
	return i.Desc.Extent
}

func (i *Image) Format() gpu.Format {
	return i.Desc.Format
}

func (i *Image) Destroy() {
	if !i.owned {
		// Swapchain images go away with their swapchain.
		return
	}
	i.resource.Destroy()
}

func (d *Device) CreateImage(desc gpu.ImageDesc) (gpu.Image, error) {
	if desc.Extent.IsZero() {
		return nil, errors.New("zero sized image")
	}
	r, err := d.create(KindImage)
	if err != nil {
		return nil, err
	}
	img := &Image{resource: r, Desc: desc, owned: true}
	d.Images = append(d.Images, img)
	return img, nil
}

func (d *Device) TransitionImageLayout(image gpu.Image, from, to gpu.ImageLayout) error {
	img := image.(*Image)
	if img.Layout != from {
		return fmt.Errorf("image in layout %s, expected %s", img.Layout, from)
	}
	img.Layout = to
	d.Transitions = append(d.Transitions, Transition{Image: img.ID, From: from, To: to})
	return nil
}

func (d *Device) CopyBufferToImage(src gpu.Buffer, dst gpu.Image) error {
	b, img := src.(*Buffer), dst.(*Image)
	if img.Layout != gpu.ImageLayoutTransferDst {
		return fmt.Errorf("copy into image in layout %s", img.Layout)
	}
	img.Pixels = append([]byte(nil), b.data...)
	return nil
}

type ImageView struct {
	resource
	Image  *Image
	Aspect gpu.ImageAspect
}

func (d *Device) CreateImageView(image gpu.Image, aspect gpu.ImageAspect) (gpu.ImageView, error) {
	r, err := d.create(KindImageView)
	if err != nil {
		return nil, err
	}
	return &ImageView{resource: r, Image: image.(*Image), Aspect: aspect}, nil
}

type Sampler struct {
	resource
	Desc gpu.SamplerDesc
}

func (d *Device) CreateSampler(desc gpu.SamplerDesc) (gpu.Sampler, error) {
	r, err := d.create(KindSampler)
	if err != nil {
		return nil, err
	}
	s := &Sampler{resource: r, Desc: desc}
	d.Samplers = append(d.Samplers, s)
	return s, nil
}

type Swapchain struct {
	resource
	Desc   gpu.SwapchainDesc
	images []gpu.Image
	next   uint32
}

func (s *Swapchain) Images() []gpu.Image {
	return s.images
}

func (s *Swapchain) Format() gpu.SurfaceFormat {
	return s.Desc.Format
}

func (s *Swapchain) Extent() gpu.Extent {
	return s.Desc.Extent
}

func (d *Device) CreateSwapchain(desc gpu.SwapchainDesc) (gpu.Swapchain, error) {
	if desc.Extent.IsZero() {
		return nil, errors.New("zero sized swapchain")
	}
	r, err := d.create(KindSwapchain)
	if err != nil {
		return nil, err
	}
	sc := &Swapchain{resource: r, Desc: desc}
	for i := uint32(0); i < desc.MinImageCount; i++ {
		d.nextID++
		sc.images = append(sc.images, &Image{
			resource: resource{dev: d, kind: KindImage, ID: d.nextID},
			Desc:     gpu.ImageDesc{Extent: desc.Extent, Format: desc.Format.Format, Usage: gpu.ImageUsageColorAttachment},
		})
	}
	d.Swapchains = append(d.Swapchains, sc)
	return sc, nil
}

type RenderPass struct {
	resource
	Desc gpu.RenderPassDesc
}

func (d *Device) CreateRenderPass(desc gpu.RenderPassDesc) (gpu.RenderPass, error) {
	r, err := d.create(KindRenderPass)
	if err != nil {
		return nil, err
	}
	return &RenderPass{resource: r, Desc: desc}, nil
}

type Framebuffer struct {
	resource
	Pass        *RenderPass
	Attachments []gpu.ImageView
	extent      gpu.Extent
}

func (f *Framebuffer) Extent() gpu.Extent {
	return f.extent
}

func (d *Device) CreateFramebuffer(pass gpu.RenderPass, attachments []gpu.ImageView, extent gpu.Extent) (gpu.Framebuffer, error) {
	r, err := d.create(KindFramebuffer)
	if err != nil {
		return nil, err
	}
	fb := &Framebuffer{resource: r, Pass: pass.(*RenderPass), Attachments: attachments, extent: extent}
	d.Framebuffers = append(d.Framebuffers, fb)
	return fb, nil
}

type ShaderModule struct {
	resource
	Code []byte
}

func (d *Device) CreateShaderModule(code []byte) (gpu.ShaderModule, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, fmt.Errorf("invalid shader code of %d bytes", len(code))
	}
	r, err := d.create(KindShaderModule)
	if err != nil {
		return nil, err
	}
	return &ShaderModule{resource: r, Code: code}, nil
}

type DescriptorSetLayout struct {
	resource
	Bindings []gpu.DescriptorBinding
}

func (d *Device) CreateDescriptorSetLayout(bindings []gpu.DescriptorBinding) (gpu.DescriptorSetLayout, error) {
	r, err := d.create(KindDescriptorSetLayout)
	if err != nil {
		return nil, err
	}
	return &DescriptorSetLayout{resource: r, Bindings: bindings}, nil
}

type DescriptorPool struct {
	resource
	Desc gpu.DescriptorPoolDesc
	sets []*DescriptorSet
}

// Destroy frees every set allocated from the pool.
func (p *DescriptorPool) Destroy() {
	for _, s := range p.sets {
		if !s.Destroyed {
			s.resource.Destroy()
		}
	}
	p.resource.Destroy()
}

func (d *Device) CreateDescriptorPool(desc gpu.DescriptorPoolDesc) (gpu.DescriptorPool, error) {
	r, err := d.create(KindDescriptorPool)
	if err != nil {
		return nil, err
	}
	return &DescriptorPool{resource: r, Desc: desc}, nil
}

type DescriptorSet struct {
	resource
	Layout *DescriptorSetLayout
	Writes map[uint32]gpu.DescriptorWrite
}

func (s *DescriptorSet) Update(writes ...gpu.DescriptorWrite) {
	for _, w := range writes {
		s.Writes[w.Binding] = w
	}
}

func (d *Device) AllocateDescriptorSet(pool gpu.DescriptorPool, layout gpu.DescriptorSetLayout) (gpu.DescriptorSet, error) {
	p := pool.(*DescriptorPool)
	if uint32(len(p.sets)) >= p.Desc.MaxSets {
		return nil, errors.New("descriptor pool exhausted")
	}
	r, err := d.create(KindDescriptorSet)
	if err != nil {
		return nil, err
	}
	s := &DescriptorSet{resource: r, Layout: layout.(*DescriptorSetLayout), Writes: map[uint32]gpu.DescriptorWrite{}}
	p.sets = append(p.sets, s)
	d.DescriptorSets = append(d.DescriptorSets, s)
	return s, nil
}

type Pipeline struct {
	resource
	Desc gpu.PipelineDesc
}

func (d *Device) CreatePipeline(desc gpu.PipelineDesc) (gpu.Pipeline, error) {
	if desc.VertexShader == nil || desc.FragmentShader == nil {
		return nil, errors.New("pipeline without shader stages")
	}
	r, err := d.create(KindPipeline)
	if err != nil {
		return nil, err
	}
	p := &Pipeline{resource: r, Desc: desc}
	d.Pipelines = append(d.Pipelines, p)
	return p, nil
}

type Semaphore struct {
	resource
}

func (d *Device) CreateSemaphore() (gpu.Semaphore, error) {
	r, err := d.create(KindSemaphore)
	if err != nil {
		return nil, err
	}
	return &Semaphore{resource: r}, nil
}

type Fence struct {
	resource
	Signaled bool
	Waits    int
	Resets   int
}

func (f *Fence) Wait(timeout time.Duration) error {
	f.Waits++
	if !f.Signaled {
		return errors.New("wait on a fence that is never signaled")
	}
	return nil
}

func (f *Fence) Reset() error {
	f.Resets++
	f.Signaled = false
	return nil
}

func (d *Device) CreateFence(signaled bool) (gpu.Fence, error) {
	r, err := d.create(KindFence)
	if err != nil {
		return nil, err
	}
	return &Fence{resource: r, Signaled: signaled}, nil
}

// Package gputest provides an in-memory gpu.Device that records every call.
package gputest

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/anima/engine/renderer/gpu"
)

type Kind string

const (
	KindBuffer              Kind = "buffer"
	KindImage               Kind = "image"
	KindImageView           Kind = "image_view"
	KindSampler             Kind = "sampler"
	KindSwapchain           Kind = "swapchain"
	KindRenderPass          Kind = "render_pass"
	KindFramebuffer         Kind = "framebuffer"
	KindShaderModule        Kind = "shader_module"
	KindDescriptorSetLayout Kind = "descriptor_set_layout"
	KindDescriptorPool      Kind = "descriptor_pool"
	KindDescriptorSet       Kind = "descriptor_set"
	KindPipeline            Kind = "pipeline"
	KindCommandBuffer       Kind = "command_buffer"
	KindSemaphore           Kind = "semaphore"
	KindFence               Kind = "fence"
)

var ErrDestroyedTwice = errors.New("resource destroyed twice")

// Event is one entry of the create/destroy log.
type Event struct {
	Create bool
	Kind   Kind
	ID     int
}

func (e Event) String() string {
	op := "destroy"
	if e.Create {
		op = "create"
	}
	return fmt.Sprintf("%s %s#%d", op, e.Kind, e.ID)
}

type FlushRange struct {
	Buffer int
	Offset uint64
	Size   uint64
}

type Transition struct {
	Image int
	From  gpu.ImageLayout
	To    gpu.ImageLayout
}

type Submission struct {
	CommandBuffer *CommandBuffer
	Wait          *Semaphore
	Signal        *Semaphore
	Fence         *Fence
}

// Device implements gpu.Device without a GPU.
type Device struct {
	Lims        gpu.Limits
	Support     gpu.SurfaceSupport
	Depth       gpu.Format
	MemoryLimit uint64

	// Scripted acquire and present results, consumed front first.
	AcquireResults []gpu.Result
	PresentResults []gpu.Result
	// FailCreate makes the next creation of a kind return the error.
	FailCreate map[Kind]error
	// FailSubmit makes the next queue submission return the error.
	FailSubmit error

	Log         []Event
	Flushes     []FlushRange
	Transitions []Transition
	Submits     []Submission
	Presents    int
	Acquires    int
	WaitIdles   int
	// Destroy calls on already destroyed objects.
	DoubleFrees []Event

	Buffers        []*Buffer
	Images         []*Image
	Framebuffers   []*Framebuffer
	Pipelines      []*Pipeline
	CommandBuffers []*CommandBuffer
	DescriptorSets []*DescriptorSet
	Samplers       []*Sampler
	Swapchains     []*Swapchain

	nextID    int
	live      map[Kind]int
	created   map[Kind]int
	destroyed bool
}

func NewDevice() *Device {
	return &Device{
		Lims: gpu.Limits{
			MinUniformBufferOffsetAlignment: 256,
			NonCoherentAtomSize:             64,
			MaxSamplerAnisotropy:            16,
		},
		Support: gpu.SurfaceSupport{
			Capabilities: gpu.SurfaceCapabilities{
				MinImageCount: 2,
				MaxImageCount: 3,
				CurrentExtent: gpu.Extent{Width: gpu.UndefinedExtent, Height: gpu.UndefinedExtent},
				MinExtent:     gpu.Extent{Width: 1, Height: 1},
				MaxExtent:     gpu.Extent{Width: 4096, Height: 4096},
			},
			Formats: []gpu.SurfaceFormat{
				{Format: gpu.FormatR8G8B8A8Unorm, ColorSpace: gpu.ColorSpaceSrgbNonlinear},
				{Format: gpu.FormatB8G8R8A8Unorm, ColorSpace: gpu.ColorSpaceSrgbNonlinear},
			},
			PresentModes: []gpu.PresentMode{gpu.PresentModeFifo, gpu.PresentModeMailbox, gpu.PresentModeImmediate},
		},
		Depth:   gpu.FormatD32Sfloat,
		live:    map[Kind]int{},
		created: map[Kind]int{},
	}
}

// resource is embedded by every fake handle.
type resource struct {
	dev       *Device
	kind      Kind
	ID        int
	Destroyed bool
}

func (r *resource) Destroy() {
	if r.Destroyed {
		r.dev.DoubleFrees = append(r.dev.DoubleFrees, Event{Kind: r.kind, ID: r.ID})
		return
	}
	r.Destroyed = true
	r.dev.live[r.kind]--
	r.dev.Log = append(r.dev.Log, Event{Create: false, Kind: r.kind, ID: r.ID})
}

func (d *Device) create(kind Kind) (resource, error) {
	if err := d.FailCreate[kind]; err != nil {
		delete(d.FailCreate, kind)
		return resource{}, err
	}
	d.nextID++
	d.live[kind]++
	d.created[kind]++
	d.Log = append(d.Log, Event{Create: true, Kind: kind, ID: d.nextID})
	return resource{dev: d, kind: kind, ID: d.nextID}, nil
}

// Live returns how many objects of kind exist right now.
func (d *Device) Live(kind Kind) int {
	return d.live[kind]
}

// Created returns how many objects of kind were ever created.
func (d *Device) Created(kind Kind) int {
	return d.created[kind]
}

// LiveTotal sums live objects over every kind.
func (d *Device) LiveTotal() int {
	total := 0
	for _, n := range d.live {
		total += n
	}
	return total
}

// LiveAt replays the log up to (excluding) index and returns the live count of kind.
func (d *Device) LiveAt(index int, kind Kind) int {
	n := 0
	for _, e := range d.Log[:index] {
		if e.Kind != kind {
			continue
		}
		if e.Create {
			n++
		} else {
			n--
		}
	}
	return n
}

// LogMark returns the current log length, to slice the log later.
func (d *Device) LogMark() int {
	return len(d.Log)
}

// Draws returns every draw recorded into cb.
func (d *Device) Draws(cb *CommandBuffer) []Command {
	return cb.Draws()
}

// LastSubmit returns the most recent submission, or nil.
func (d *Device) LastSubmit() *Submission {
	if len(d.Submits) == 0 {
		return nil
	}
	return &d.Submits[len(d.Submits)-1]
}

func (d *Device) Limits() gpu.Limits {
	return d.Lims
}

func (d *Device) SurfaceSupport() (gpu.SurfaceSupport, error) {
	return d.Support, nil
}

// SetWindowExtent makes the surface report a fixed current extent.
func (d *Device) SetWindowExtent(width, height uint32) {
	d.Support.Capabilities.CurrentExtent = gpu.Extent{Width: width, Height: height}
}

func (d *Device) DepthFormat() (gpu.Format, error) {
	if d.Depth == gpu.FormatUndefined {
		return gpu.FormatUndefined, errors.New("no depth format")
	}
	return d.Depth, nil
}

func (d *Device) WaitIdle() error {
	d.WaitIdles++
	return nil
}

func (d *Device) Destroy() {
	d.destroyed = true
}

func (d *Device) IsDestroyed() bool {
	return d.destroyed
}

func nextResult(results *[]gpu.Result) gpu.Result {
	if len(*results) == 0 {
		return gpu.ResultSuccess
	}
	r := (*results)[0]
	*results = (*results)[1:]
	return r
}

func (d *Device) AcquireNextImage(swapchain gpu.Swapchain, signal gpu.Semaphore) (uint32, gpu.Result, error) {
	d.Acquires++
	sc := swapchain.(*Swapchain)
	if sc.Destroyed {
		return 0, gpu.ResultSuccess, errors.New("acquire on destroyed swapchain")
	}
	r := nextResult(&d.AcquireResults)
	if r == gpu.ResultOutOfDate {
		return 0, r, nil
	}
	index := sc.next
	sc.next = (sc.next + 1) % uint32(len(sc.images))
	return index, r, nil
}

func (d *Device) Submit(cb gpu.CommandBuffer, wait, signal gpu.Semaphore, fence gpu.Fence) error {
	if err := d.FailSubmit; err != nil {
		d.FailSubmit = nil
		return err
	}
	c := cb.(*CommandBuffer)
	if c.Recording {
		return errors.New("submit of a command buffer still recording")
	}
	s := Submission{CommandBuffer: c}
	if wait != nil {
		s.Wait = wait.(*Semaphore)
	}
	if signal != nil {
		s.Signal = signal.(*Semaphore)
	}
	if fence != nil {
		f := fence.(*Fence)
		f.Signaled = true
		s.Fence = f
	}
	d.Submits = append(d.Submits, s)
	return nil
}

func (d *Device) Present(swapchain gpu.Swapchain, imageIndex uint32, wait gpu.Semaphore) (gpu.Result, error) {
	d.Presents++
	if int(imageIndex) >= len(swapchain.Images()) {
		return gpu.ResultSuccess, fmt.Errorf("present of image %d out of range", imageIndex)
	}
	return nextResult(&d.PresentResults), nil
}

package gpu

import (
	"fmt"

	"github.com/spaghettifunk/anima/engine/renderer/metadata"
)

// Extent is a width/height pair in pixels.
type Extent struct {
	Width  uint32
	Height uint32
}

func (e Extent) IsZero() bool {
	return e.Width == 0 || e.Height == 0
}

func (e Extent) String() string {
	return fmt.Sprintf("%dx%d", e.Width, e.Height)
}

// UndefinedExtent is reported by surfaces whose size is chosen by the swapchain.
const UndefinedExtent uint32 = 0xFFFFFFFF

type Format int

const (
	FormatUndefined Format = iota
	FormatB8G8R8A8Unorm
	FormatB8G8R8A8Srgb
	FormatR8G8B8A8Unorm
	FormatR8G8B8A8Srgb
	FormatD32Sfloat
	FormatD32SfloatS8Uint
	FormatD24UnormS8Uint
	FormatR32G32Sfloat
	FormatR32G32B32Sfloat
	FormatR32G32B32A32Sfloat
)

func (f Format) HasStencil() bool {
	return f == FormatD32SfloatS8Uint || f == FormatD24UnormS8Uint
}

type ColorSpace int

const (
	ColorSpaceSrgbNonlinear ColorSpace = iota
	ColorSpaceOther
)

type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
}

type PresentMode int

const (
	PresentModeImmediate PresentMode = iota
	PresentModeMailbox
	PresentModeFifo
	PresentModeFifoRelaxed
)

func (m PresentMode) String() string {
	switch m {
	case PresentModeImmediate:
		return "immediate"
	case PresentModeMailbox:
		return "mailbox"
	case PresentModeFifo:
		return "fifo"
	case PresentModeFifoRelaxed:
		return "fifo_relaxed"
	}
	return fmt.Sprintf("PresentMode(%d)", int(m))
}

type SurfaceCapabilities struct {
	MinImageCount uint32
	// Zero means no limit.
	MaxImageCount uint32
	// Width is UndefinedExtent when the swapchain decides the size.
	CurrentExtent Extent
	MinExtent     Extent
	MaxExtent     Extent
}

type SurfaceSupport struct {
	Capabilities SurfaceCapabilities
	Formats      []SurfaceFormat
	PresentModes []PresentMode
}

type PhysicalDeviceType int

const (
	PhysicalDeviceTypeOther PhysicalDeviceType = iota
	PhysicalDeviceTypeIntegrated
	PhysicalDeviceTypeDiscrete
	PhysicalDeviceTypeVirtual
	PhysicalDeviceTypeCPU
)

func (t PhysicalDeviceType) String() string {
	switch t {
	case PhysicalDeviceTypeIntegrated:
		return "Integrated"
	case PhysicalDeviceTypeDiscrete:
		return "Discrete"
	case PhysicalDeviceTypeVirtual:
		return "Virtual"
	case PhysicalDeviceTypeCPU:
		return "CPU"
	}
	return "Unknown"
}

type QueueFamily struct {
	Index    uint32
	Graphics bool
	Compute  bool
	Transfer bool
	// Present is true when the family can present to the window surface.
	Present bool
}

type Limits struct {
	MinUniformBufferOffsetAlignment uint64
	NonCoherentAtomSize             uint64
	MaxSamplerAnisotropy            float32
}

// PhysicalDeviceInfo is everything device selection looks at.
type PhysicalDeviceInfo struct {
	// Index into the instance's device enumeration.
	Index             int
	Name              string
	Type              PhysicalDeviceType
	QueueFamilies     []QueueFamily
	Extensions        []string
	SamplerAnisotropy bool
	Limits            Limits
	Surface           SurfaceSupport
}

type DeviceConfig struct {
	PhysicalDevice    int
	GraphicsFamily    uint32
	PresentFamily     uint32
	Extensions        []string
	SamplerAnisotropy bool
}

// Result is the status of acquire and present.
type Result int

const (
	ResultSuccess Result = iota
	// The swapchain still works but no longer matches the surface.
	ResultSuboptimal
	// The swapchain can no longer present to the surface.
	ResultOutOfDate
)

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultSuboptimal:
		return "suboptimal"
	case ResultOutOfDate:
		return "out_of_date"
	}
	return fmt.Sprintf("Result(%d)", int(r))
}

type BufferUsage uint32

const (
	BufferUsageTransferSrc BufferUsage = 1 << iota
	BufferUsageTransferDst
	BufferUsageVertex
	BufferUsageIndex
	BufferUsageUniform
)

type MemoryLocation int

const (
	// Only reachable through transfers.
	MemoryDeviceLocal MemoryLocation = iota
	// Mappable, not necessarily coherent. Writes must be flushed.
	MemoryHostVisible
)

type BufferDesc struct {
	Size   uint64
	Usage  BufferUsage
	Memory MemoryLocation
}

type ImageUsage uint32

const (
	ImageUsageTransferDst ImageUsage = 1 << iota
	ImageUsageSampled
	ImageUsageColorAttachment
	ImageUsageDepthStencilAttachment
)

type ImageDesc struct {
	Extent Extent
	Format Format
	Usage  ImageUsage
}

type ImageAspect int

const (
	ImageAspectColor ImageAspect = iota
	ImageAspectDepth
)

type ImageLayout int

const (
	ImageLayoutUndefined ImageLayout = iota
	ImageLayoutTransferDst
	ImageLayoutShaderReadOnly
	ImageLayoutDepthStencilAttachment
	ImageLayoutPresentSrc
)

func (l ImageLayout) String() string {
	switch l {
	case ImageLayoutUndefined:
		return "undefined"
	case ImageLayoutTransferDst:
		return "transfer_dst"
	case ImageLayoutShaderReadOnly:
		return "shader_read_only"
	case ImageLayoutDepthStencilAttachment:
		return "depth_stencil_attachment"
	case ImageLayoutPresentSrc:
		return "present_src"
	}
	return fmt.Sprintf("ImageLayout(%d)", int(l))
}

type SamplerDesc struct {
	Filter metadata.TextureFilter
	Repeat metadata.TextureRepeat
	// Zero disables anisotropic filtering.
	MaxAnisotropy float32
}

type SwapchainDesc struct {
	Format        SurfaceFormat
	PresentMode   PresentMode
	Extent        Extent
	MinImageCount uint32
}

type RenderPassDesc struct {
	ColorFormat Format
	DepthFormat Format
}

type DescriptorType int

const (
	DescriptorTypeUniformBuffer DescriptorType = iota
	DescriptorTypeUniformBufferDynamic
	DescriptorTypeCombinedImageSampler
)

type DescriptorBinding struct {
	Binding uint32
	Type    DescriptorType
	Stages  metadata.ShaderStage
}

type DescriptorPoolDesc struct {
	MaxSets uint32
	Sizes   map[DescriptorType]uint32
}

// DescriptorWrite points a binding at a buffer range or at a view and sampler.
type DescriptorWrite struct {
	Binding uint32
	Type    DescriptorType
	Buffer  Buffer
	Offset  uint64
	Range   uint64
	View    ImageView
	Sampler Sampler
}

type VertexInputAttribute struct {
	Location uint32
	Format   Format
	Offset   uint32
}

type CompareOp int

const (
	CompareOpLess CompareOp = iota
	CompareOpLessOrEqual
	CompareOpAlways
)

type PipelineDesc struct {
	RenderPass     RenderPass
	VertexShader   ShaderModule
	FragmentShader ShaderModule
	VertexStride   uint32
	Attributes     []VertexInputAttribute
	Topology       metadata.PrimitiveTopology
	CullMode       metadata.FaceCullMode
	Extent         Extent
	SetLayout      DescriptorSetLayout
	DepthTest      bool
	DepthWrite     bool
	DepthCompare   CompareOp
	Blend          bool
}

type CommandBufferUsage uint32

const (
	CommandBufferUsageOneTimeSubmit CommandBufferUsage = 1 << iota
	CommandBufferUsageSimultaneousUse
)

type ClearValues struct {
	Color   [4]float32
	Depth   float32
	Stencil uint32
}

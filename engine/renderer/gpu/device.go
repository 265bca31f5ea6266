// Package gpu is the device interface the renderer draws through. The Vulkan
// backend implements it on real hardware and gputest records calls for tests.
package gpu

import "time"

// Releaser is any object owning device memory or a device handle.
type Releaser interface {
	Destroy()
}

type Instance interface {
	PhysicalDevices() ([]PhysicalDeviceInfo, error)
	CreateDevice(cfg DeviceConfig) (Device, error)
	Destroy()
}

type Device interface {
	Limits() Limits
	SurfaceSupport() (SurfaceSupport, error)
	DepthFormat() (Format, error)
	WaitIdle() error

	CreateBuffer(desc BufferDesc) (Buffer, error)
	// CopyBuffer runs a one-shot transfer and waits for it to finish.
	CopyBuffer(src Buffer, srcOffset uint64, dst Buffer, dstOffset uint64, size uint64) error
	CreateImage(desc ImageDesc) (Image, error)
	TransitionImageLayout(image Image, from, to ImageLayout) error
	CopyBufferToImage(src Buffer, dst Image) error
	CreateImageView(image Image, aspect ImageAspect) (ImageView, error)
	CreateSampler(desc SamplerDesc) (Sampler, error)

	CreateSwapchain(desc SwapchainDesc) (Swapchain, error)
	CreateRenderPass(desc RenderPassDesc) (RenderPass, error)
	CreateFramebuffer(pass RenderPass, attachments []ImageView, extent Extent) (Framebuffer, error)
	CreateShaderModule(code []byte) (ShaderModule, error)
	CreateDescriptorSetLayout(bindings []DescriptorBinding) (DescriptorSetLayout, error)
	CreateDescriptorPool(desc DescriptorPoolDesc) (DescriptorPool, error)
	AllocateDescriptorSet(pool DescriptorPool, layout DescriptorSetLayout) (DescriptorSet, error)
	CreatePipeline(desc PipelineDesc) (Pipeline, error)
	AllocateCommandBuffers(count int) ([]CommandBuffer, error)
	CreateSemaphore() (Semaphore, error)
	CreateFence(signaled bool) (Fence, error)

	AcquireNextImage(swapchain Swapchain, signal Semaphore) (uint32, Result, error)
	Submit(cb CommandBuffer, wait, signal Semaphore, fence Fence) error
	Present(swapchain Swapchain, imageIndex uint32, wait Semaphore) (Result, error)

	Destroy()
}

type Buffer interface {
	Releaser
	Size() uint64
	// Write copies data into host visible memory at offset.
	Write(offset uint64, data []byte) error
	// Flush makes a written range visible to the device.
	Flush(offset, size uint64) error
}

type Image interface {
	Releaser
	Extent() Extent
	Format() Format
}

type ImageView interface{ Releaser }

type Sampler interface{ Releaser }

type Swapchain interface {
	Releaser
	Images() []Image
	Format() SurfaceFormat
	Extent() Extent
}

type RenderPass interface{ Releaser }

type Framebuffer interface {
	Releaser
	Extent() Extent
}

type ShaderModule interface{ Releaser }

type DescriptorSetLayout interface{ Releaser }

type DescriptorPool interface{ Releaser }

type DescriptorSet interface {
	Releaser
	Update(writes ...DescriptorWrite)
}

type Pipeline interface{ Releaser }

type Semaphore interface{ Releaser }

type Fence interface {
	Releaser
	Wait(timeout time.Duration) error
	Reset() error
}

type CommandBuffer interface {
	Releaser
	Begin(usage CommandBufferUsage) error
	End() error
	Reset() error

	BeginRenderPass(pass RenderPass, fb Framebuffer, extent Extent, clear ClearValues)
	EndRenderPass()
	SetViewport(extent Extent)
	SetScissor(extent Extent)
	BindPipeline(pipeline Pipeline)
	BindVertexBuffer(buffer Buffer, offset uint64)
	BindIndexBuffer(buffer Buffer, offset uint64)
	BindDescriptorSet(pipeline Pipeline, set DescriptorSet, dynamicOffsets ...uint32)
	Draw(vertexCount, firstVertex uint32)
	DrawIndexed(indexCount, firstIndex uint32, vertexOffset int32)
}

package renderer

import (
	"fmt"

	"github.com/spaghettifunk/anima/engine/core"
	"github.com/spaghettifunk/anima/engine/renderer/gpu"
)

const indexSize = 4

// BufferPool consolidates the vertex and index data of every object into one
// device local vertex buffer and one device local index buffer.
type BufferPool struct {
	device gpu.Device
	dirty  bool

	VertexBuffer gpu.Buffer
	IndexBuffer  gpu.Buffer
	VertexBytes  uint64
	VertexCount  uint32
	IndexCount   uint32
	Builds       int
}

func NewBufferPool(device gpu.Device) *BufferPool {
	return &BufferPool{device: device}
}

func (p *BufferPool) MarkDirty() {
	p.dirty = true
}

func (p *BufferPool) Dirty() bool {
	return p.dirty
}

// Build lays out every object's data and uploads it through one staging buffer.
// Objects keep their data at a multiple of their own stride so VertexOffset
// addresses whole vertices; objects sharing a layout are packed without gaps.
func (p *BufferPool) Build(objects []*RenderObject) error {
	p.release()
	p.dirty = false
	if len(objects) == 0 {
		return nil
	}

	vertexBytes := uint64(0)
	vertexCount := uint32(0)
	indexCount := uint32(0)
	for _, o := range objects {
		stride := uint64(o.Stride())
		if rem := vertexBytes % stride; rem != 0 {
			vertexBytes += stride - rem
		}
		o.VertexOffset = uint32(vertexBytes / stride)
		o.VertexCount = uint32(o.VertexBytes() / stride)
		vertexBytes += o.VertexBytes()
		vertexCount += o.VertexCount

		o.IndexOffset = indexCount
		o.IndexCount = uint32(len(o.indices))
		indexCount += o.IndexCount
	}
	indexBytes := uint64(indexCount) * indexSize

	staging, err := p.device.CreateBuffer(gpu.BufferDesc{
		Size:   vertexBytes + indexBytes,
		Usage:  gpu.BufferUsageTransferSrc,
		Memory: gpu.MemoryHostVisible,
	})
	if err != nil {
		return p.fail("staging buffer", err)
	}
	defer staging.Destroy()

	for _, o := range objects {
		if err := staging.Write(uint64(o.VertexOffset)*uint64(o.Stride()), o.vertices); err != nil {
			return p.fail("staging vertex write", err)
		}
		if o.Indexed() {
			if err := staging.Write(vertexBytes+uint64(o.IndexOffset)*indexSize, uint32Bytes(o.indices)); err != nil {
				return p.fail("staging index write", err)
			}
		}
	}
	if err := staging.Flush(0, staging.Size()); err != nil {
		return p.fail("staging flush", err)
	}

	vb, err := p.device.CreateBuffer(gpu.BufferDesc{
		Size:   vertexBytes,
		Usage:  gpu.BufferUsageVertex | gpu.BufferUsageTransferDst,
		Memory: gpu.MemoryDeviceLocal,
	})
	if err != nil {
		return p.fail("vertex buffer", err)
	}
	p.VertexBuffer = vb
	if err := p.device.CopyBuffer(staging, 0, vb, 0, vertexBytes); err != nil {
		return p.fail("vertex upload", err)
	}

	if indexCount > 0 {
		ib, err := p.device.CreateBuffer(gpu.BufferDesc{
			Size:   indexBytes,
			Usage:  gpu.BufferUsageIndex | gpu.BufferUsageTransferDst,
			Memory: gpu.MemoryDeviceLocal,
		})
		if err != nil {
			return p.fail("index buffer", err)
		}
		p.IndexBuffer = ib
		if err := p.device.CopyBuffer(staging, vertexBytes, ib, 0, indexBytes); err != nil {
			return p.fail("index upload", err)
		}
	}

	p.VertexBytes = vertexBytes
	p.VertexCount = vertexCount
	p.IndexCount = indexCount
	p.Builds++
	core.LogDebug("Buffer pool built: %d objects, %d vertices (%d bytes), %d indices.", len(objects), vertexCount, vertexBytes, indexCount)
	return nil
}

func (p *BufferPool) fail(what string, err error) error {
	p.release()
	err = fmt.Errorf("buffer pool %s: %v: %w", what, err, core.ErrAllocation)
	core.LogError(err.Error())
	return err
}

func (p *BufferPool) release() {
	if p.IndexBuffer != nil {
		p.IndexBuffer.Destroy()
		p.IndexBuffer = nil
	}
	if p.VertexBuffer != nil {
		p.VertexBuffer.Destroy()
		p.VertexBuffer = nil
	}
	p.VertexBytes = 0
	p.VertexCount = 0
	p.IndexCount = 0
}

func (p *BufferPool) Destroy() {
	p.release()
}

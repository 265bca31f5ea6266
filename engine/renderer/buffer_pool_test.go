package renderer

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima/engine/core"
	"github.com/spaghettifunk/anima/engine/renderer/gpu/gputest"
	"github.com/spaghettifunk/anima/engine/renderer/metadata"
)

func poolObject(vertices int, start float32, indices []uint32) *RenderObject {
	return &RenderObject{
		Attributes: metadata.VertexAttributePosition,
		vertices:   positions(vertices, start),
		indices:    indices,
	}
}

func TestBufferPoolVertexOffsets(t *testing.T) {
	dev := gputest.NewDevice()
	pool := NewBufferPool(dev)
	objects := []*RenderObject{poolObject(3, 0, nil), poolObject(36, 100, nil), poolObject(4, 1000, nil)}

	require.NoError(t, pool.Build(objects))

	assert.Equal(t, uint32(43), pool.VertexCount)
	var offsets []uint32
	for _, o := range objects {
		offsets = append(offsets, o.VertexOffset)
	}
	assert.Equal(t, []uint32{0, 3, 39}, offsets)
	assert.Equal(t, uint64(43*12), pool.VertexBytes)
}

func TestBufferPoolRoundTrip(t *testing.T) {
	dev := gputest.NewDevice()
	pool := NewBufferPool(dev)
	objects := []*RenderObject{
		poolObject(3, 0, []uint32{0, 1, 2}),
		poolObject(4, 50, nil),
		poolObject(4, 500, []uint32{0, 1, 2, 2, 3, 0}),
	}
	require.NoError(t, pool.Build(objects))

	vb := pool.VertexBuffer.(*gputest.Buffer)
	for _, o := range objects {
		start := uint64(o.VertexOffset) * uint64(o.Stride())
		assert.Equal(t, o.vertices, vb.Bytes()[start:start+o.VertexBytes()])
	}

	ib := pool.IndexBuffer.(*gputest.Buffer)
	for _, o := range objects {
		for i, want := range o.indices {
			at := (o.IndexOffset + uint32(i)) * 4
			assert.Equal(t, want, binary.LittleEndian.Uint32(ib.Bytes()[at:]))
		}
	}

	// Only the device local pair survives the upload.
	assert.Equal(t, 2, dev.Live(gputest.KindBuffer))
}

func TestBufferPoolIndexOffsetSkipsNonIndexed(t *testing.T) {
	dev := gputest.NewDevice()
	pool := NewBufferPool(dev)
	objects := []*RenderObject{
		poolObject(3, 0, nil),
		poolObject(3, 10, nil),
		poolObject(4, 20, []uint32{0, 1, 2, 2, 3, 0}),
		poolObject(3, 30, []uint32{0, 1, 2}),
	}
	require.NoError(t, pool.Build(objects))

	assert.Equal(t, uint32(0), objects[2].IndexOffset)
	assert.Equal(t, uint32(6), objects[3].IndexOffset)
	assert.Equal(t, uint32(9), pool.IndexCount)
}

func TestBufferPoolZeroObjects(t *testing.T) {
	dev := gputest.NewDevice()
	pool := NewBufferPool(dev)
	pool.MarkDirty()

	require.NoError(t, pool.Build(nil))

	assert.Nil(t, pool.VertexBuffer)
	assert.Nil(t, pool.IndexBuffer)
	assert.False(t, pool.Dirty())
	assert.Equal(t, 0, dev.Live(gputest.KindBuffer))
}

func TestBufferPoolNoIndexBufferWithoutIndices(t *testing.T) {
	dev := gputest.NewDevice()
	pool := NewBufferPool(dev)
	require.NoError(t, pool.Build([]*RenderObject{poolObject(3, 0, nil)}))

	assert.NotNil(t, pool.VertexBuffer)
	assert.Nil(t, pool.IndexBuffer)
}

func TestBufferPoolMixedStrides(t *testing.T) {
	dev := gputest.NewDevice()
	pool := NewBufferPool(dev)
	wide := &RenderObject{
		Attributes: metadata.VertexAttributePosition | metadata.VertexAttributeNormal,
		vertices:   Float32Bytes(make([]float32, 6*2)),
	}
	objects := []*RenderObject{poolObject(1, 0, nil), wide}
	require.NoError(t, pool.Build(objects))

	// 12 bytes written, next 24 byte stride boundary is 24.
	assert.Equal(t, uint32(1), wide.VertexOffset)
	assert.Equal(t, uint64(24+48), pool.VertexBytes)
}

func TestBufferPoolRebuildReleasesOldBuffers(t *testing.T) {
	dev := gputest.NewDevice()
	pool := NewBufferPool(dev)
	require.NoError(t, pool.Build([]*RenderObject{poolObject(3, 0, []uint32{0, 1, 2})}))
	require.NoError(t, pool.Build([]*RenderObject{poolObject(3, 0, nil)}))

	assert.Equal(t, 1, dev.Live(gputest.KindBuffer))
	assert.Empty(t, dev.DoubleFrees)
}

func TestBufferPoolAllocationFailure(t *testing.T) {
	dev := gputest.NewDevice()
	dev.MemoryLimit = 16
	pool := NewBufferPool(dev)

	err := pool.Build([]*RenderObject{poolObject(3, 0, nil)})
	assert.ErrorIs(t, err, core.ErrAllocation)
	assert.Equal(t, 0, dev.Live(gputest.KindBuffer))
}

package renderer

import (
	"encoding/binary"
	gomath "math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima/engine/math"
	"github.com/spaghettifunk/anima/engine/renderer/gpu/gputest"
)

func TestComputeDynamicAlignment(t *testing.T) {
	cases := []struct {
		size, min, want uint64
	}{
		{ObjectUniformSize, 256, 256},
		{ObjectUniformSize, 64, 192},
		{ObjectUniformSize, 16, 144},
		{ObjectUniformSize, 0, 144},
		{256, 256, 256},
		{257, 256, 512},
	}
	for _, c := range cases {
		got := ComputeDynamicAlignment(c.size, c.min)
		assert.Equal(t, c.want, got, "size %d, min alignment %d", c.size, c.min)
		assert.GreaterOrEqual(t, got, c.size)
		if c.min > 0 {
			assert.Zero(t, got%c.min)
		}
	}
}

func TestUniformStreamWriteObject(t *testing.T) {
	dev := gputest.NewDevice()
	us, err := NewUniformStream(dev)
	require.NoError(t, err)
	_, err = us.EnsureCapacity(4)
	require.NoError(t, err)

	model := math.NewMat4Translation(math.NewVec3(1, 2, 3))
	require.NoError(t, us.WriteObject(2, model, [4]uint32{1, 0, 1, 0}))

	dynamic := us.Dynamic.(*gputest.Buffer)
	data := dynamic.Bytes()[512:]
	for i, want := range model.Data {
		assert.Equal(t, want, gomath.Float32frombits(binary.LittleEndian.Uint32(data[i*4:])))
	}
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(data[128:]))
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(data[136:]))

	last := dev.Flushes[len(dev.Flushes)-1]
	assert.Equal(t, gputest.FlushRange{Buffer: dynamic.ID, Offset: 512, Size: 192}, last)
}

func TestUniformStreamFlushClampedToBuffer(t *testing.T) {
	dev := gputest.NewDevice()
	dev.Lims.MinUniformBufferOffsetAlignment = 16
	dev.Lims.NonCoherentAtomSize = 256
	us, err := NewUniformStream(dev)
	require.NoError(t, err)

	require.NoError(t, us.WriteObject(0, math.NewMat4Identity(), [4]uint32{}))
	last := dev.Flushes[len(dev.Flushes)-1]
	assert.Equal(t, uint64(ObjectUniformSize), last.Size)
}

func TestUniformStreamFlushAlignedToAtom(t *testing.T) {
	dev := gputest.NewDevice()
	dev.Lims.MinUniformBufferOffsetAlignment = 16
	dev.Lims.NonCoherentAtomSize = 64
	us, err := NewUniformStream(dev)
	require.NoError(t, err)
	_, err = us.EnsureCapacity(4)
	require.NoError(t, err)
	require.Equal(t, uint32(144), us.SlotOffset(1))

	require.NoError(t, us.WriteObject(1, math.NewMat4Identity(), [4]uint32{}))
	last := dev.Flushes[len(dev.Flushes)-1]
	assert.Zero(t, last.Offset%64)
	assert.Zero(t, last.Size%64)
	assert.LessOrEqual(t, last.Offset, uint64(144))
	assert.GreaterOrEqual(t, last.Offset+last.Size, uint64(144+ObjectUniformSize))
	assert.Equal(t, gputest.FlushRange{Buffer: us.Dynamic.(*gputest.Buffer).ID, Offset: 128, Size: 192}, last)
}

func TestUniformStreamGrowth(t *testing.T) {
	dev := gputest.NewDevice()
	us, err := NewUniformStream(dev)
	require.NoError(t, err)

	grown, err := us.EnsureCapacity(1)
	require.NoError(t, err)
	assert.False(t, grown)

	grown, err = us.EnsureCapacity(5)
	require.NoError(t, err)
	assert.True(t, grown)
	assert.Equal(t, uint32(8), us.Capacity)
	assert.Equal(t, uint64(8*256), us.Dynamic.Size())
	// constant + dynamic
	assert.Equal(t, 2, dev.Live(gputest.KindBuffer))

	assert.Error(t, us.WriteObject(8, math.NewMat4Identity(), [4]uint32{}))
}

func TestTextureFlags(t *testing.T) {
	assert.Equal(t, [4]uint32{}, TextureFlags(nil))
	m := &Material{Diffuse: &Texture{}, Specular: &Texture{}}
	assert.Equal(t, [4]uint32{1, 0, 1, 0}, TextureFlags(m))
}

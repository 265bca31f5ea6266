package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVertexStrideSumsPresentAttributes(t *testing.T) {
	assert.Equal(t, uint32(0), VertexAttributeNone.Stride())
	assert.Equal(t, uint32(12), VertexAttributePosition.Stride())

	full := VertexAttributePosition | VertexAttributeColorR32G32B32A32 | VertexAttributeTangent |
		VertexAttributeBitangent | VertexAttributeNormal | VertexAttributeUV
	assert.Equal(t, uint32(12+16+12+12+12+8), full.Stride())

	assert.Equal(t, uint32(8+4+12), (VertexAttributePosition2D | VertexAttributeColorR8G8B8A8 | VertexAttributeUVW).Stride())
}

func TestVertexAttributeOffsets(t *testing.T) {
	attrs := VertexAttributePosition | VertexAttributeUV | VertexAttributeNormal
	var offsets []uint32
	var seen []VertexAttributes
	attrs.Each(func(a VertexAttributes, offset uint32) {
		seen = append(seen, a)
		offsets = append(offsets, offset)
	})
	assert.Equal(t, []VertexAttributes{VertexAttributePosition, VertexAttributeUV, VertexAttributeNormal}, seen)
	assert.Equal(t, []uint32{0, 12, 20}, offsets)
	assert.Equal(t, "position|uv|normal", attrs.String())
}

func TestTopologySupport(t *testing.T) {
	assert.True(t, PrimitiveTopologyTriangleList.Supported())
	assert.True(t, PrimitiveTopologyTriangleFan.Supported())
	assert.True(t, PrimitiveTopologyPointList.Supported())
	assert.False(t, PrimitiveTopologyLineLoop.Supported())
	assert.False(t, PrimitiveTopology(99).Supported())
	assert.Equal(t, "line_strip", PrimitiveTopologyLineStrip.String())
}

func TestUniformRequirements(t *testing.T) {
	u := UniformModel | UniformViewProjection
	assert.True(t, u.NeedsConstant())
	assert.True(t, u.NeedsDynamic())
	assert.False(t, UniformModel.NeedsConstant())
	assert.False(t, UniformLightDirection.NeedsDynamic())
}

package metadata

import "strings"

/** @brief Bitmask of the attributes present in an interleaved vertex. */
type VertexAttributes uint32

/**
 * @brief A single vertex attribute. Attributes are laid out in the vertex
 * in the order they are declared here.
 */
const (
	VertexAttributePosition VertexAttributes = 1 << iota
	VertexAttributePosition2D
	VertexAttributeUV
	VertexAttributeUVW
	VertexAttributeColorR8G8B8A8
	VertexAttributeColorR32G32B32A32
	VertexAttributeTangent
	VertexAttributeBitangent
	VertexAttributeNormal

	VertexAttributeNone VertexAttributes = 0
)

// OrderedVertexAttributes lists every attribute in layout order.
var OrderedVertexAttributes = []VertexAttributes{
	VertexAttributePosition,
	VertexAttributePosition2D,
	VertexAttributeUV,
	VertexAttributeUVW,
	VertexAttributeColorR8G8B8A8,
	VertexAttributeColorR32G32B32A32,
	VertexAttributeTangent,
	VertexAttributeBitangent,
	VertexAttributeNormal,
}

var vertexAttributeSizes = map[VertexAttributes]uint32{
	VertexAttributePosition:          12,
	VertexAttributePosition2D:        8,
	VertexAttributeUV:                8,
	VertexAttributeUVW:               12,
	VertexAttributeColorR8G8B8A8:     4,
	VertexAttributeColorR32G32B32A32: 16,
	VertexAttributeTangent:           12,
	VertexAttributeBitangent:         12,
	VertexAttributeNormal:            12,
}

var vertexAttributeNames = map[VertexAttributes]string{
	VertexAttributePosition:          "position",
	VertexAttributePosition2D:        "position_2d",
	VertexAttributeUV:                "uv",
	VertexAttributeUVW:               "uvw",
	VertexAttributeColorR8G8B8A8:     "color_r8g8b8a8",
	VertexAttributeColorR32G32B32A32: "color_r32g32b32a32",
	VertexAttributeTangent:           "tangent",
	VertexAttributeBitangent:         "bitangent",
	VertexAttributeNormal:            "normal",
}

// Size returns the byte width of a single attribute, or 0 for a combined mask.
func (a VertexAttributes) Size() uint32 {
	return vertexAttributeSizes[a]
}

func (a VertexAttributes) Has(attr VertexAttributes) bool {
	return a&attr == attr
}

// Stride sums the byte widths of the attributes present in the mask.
func (a VertexAttributes) Stride() uint32 {
	stride := uint32(0)
	for _, attr := range OrderedVertexAttributes {
		if a.Has(attr) {
			stride += attr.Size()
		}
	}
	return stride
}

// Each visits the present attributes in layout order with their byte offset.
func (a VertexAttributes) Each(fn func(attr VertexAttributes, offset uint32)) {
	offset := uint32(0)
	for _, attr := range OrderedVertexAttributes {
		if a.Has(attr) {
			fn(attr, offset)
			offset += attr.Size()
		}
	}
}

func (a VertexAttributes) String() string {
	if a == VertexAttributeNone {
		return "none"
	}
	parts := []string{}
	for _, attr := range OrderedVertexAttributes {
		if a.Has(attr) {
			parts = append(parts, vertexAttributeNames[attr])
		}
	}
	return strings.Join(parts, "|")
}

package renderer

import (
	"encoding/binary"
	gomath "math"

	"github.com/spaghettifunk/anima/engine/math"
	"github.com/spaghettifunk/anima/engine/renderer/metadata"
)

// RenderObjectHandle identifies a registered object. Ids of destroyed objects are reused.
type RenderObjectHandle uint32

type RenderObject struct {
	ID         RenderObjectHandle
	Material   *Material
	Attributes metadata.VertexAttributes
	Topology   metadata.PrimitiveTopology
	// Transform is read every frame by SyncTransforms. Can be nil.
	Transform *math.Transform

	vertices []byte
	indices  []uint32

	// Valid between pool builds.
	VertexOffset uint32
	VertexCount  uint32
	IndexOffset  uint32
	IndexCount   uint32

	// Uniform slot, equal to the object's position in registration order.
	Slot  uint32
	model math.Mat4
}

func (o *RenderObject) Indexed() bool {
	return len(o.indices) > 0
}

func (o *RenderObject) Stride() uint32 {
	return o.Attributes.Stride()
}

func (o *RenderObject) VertexBytes() uint64 {
	return uint64(len(o.vertices))
}

func (o *RenderObject) Model() math.Mat4 {
	return o.model
}

// Float32Bytes packs interleaved float vertex data the way the GPU reads it.
func Float32Bytes(values []float32) []byte {
	out := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*4:], gomath.Float32bits(v))
	}
	return out
}

func uint32Bytes(values []uint32) []byte {
	out := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*4:], v)
	}
	return out
}

func mat4Bytes(dst []byte, m math.Mat4) {
	for i, v := range m.Data {
		binary.LittleEndian.PutUint32(dst[i*4:], gomath.Float32bits(v))
	}
}

func vec4Bytes(dst []byte, v math.Vec4) {
	binary.LittleEndian.PutUint32(dst[0:], gomath.Float32bits(v.X))
	binary.LittleEndian.PutUint32(dst[4:], gomath.Float32bits(v.Y))
	binary.LittleEndian.PutUint32(dst[8:], gomath.Float32bits(v.Z))
	binary.LittleEndian.PutUint32(dst[12:], gomath.Float32bits(v.W))
}

func putUint32(dst []byte, v uint32) {
	binary.LittleEndian.PutUint32(dst, v)
}

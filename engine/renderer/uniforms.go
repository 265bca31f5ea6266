package renderer

import (
	"fmt"

	"github.com/spaghettifunk/anima/engine/core"
	"github.com/spaghettifunk/anima/engine/math"
	"github.com/spaghettifunk/anima/engine/renderer/gpu"
	"github.com/spaghettifunk/anima/engine/renderer/metadata"
)

const (
	// view, projection, camera position, light direction, ambient, specular
	ConstantUniformSize = 64 + 64 + 16 + 16 + 16 + 16
	// model, inverse transposed model, texture flags
	ObjectUniformSize = 64 + 64 + 16
)

// Texture enable flags, one uint32 each in the object block.
const (
	textureFlagDiffuse = iota
	textureFlagNormal
	textureFlagSpecular
)

// ComputeDynamicAlignment rounds the per-object block up to the device
// minimum uniform offset alignment.
func ComputeDynamicAlignment(objectSize, minAlignment uint64) uint64 {
	if minAlignment == 0 {
		return objectSize
	}
	return math.AlignUp(objectSize, minAlignment)
}

// UniformStream owns the constant uniform buffer and the dynamic per-object buffer.
type UniformStream struct {
	device gpu.Device
	limits gpu.Limits

	Alignment uint64
	Constant  gpu.Buffer
	Dynamic   gpu.Buffer
	// Capacity in object slots of the dynamic buffer.
	Capacity uint32

	constantData []byte
	objectData   []byte
}

func NewUniformStream(device gpu.Device) (*UniformStream, error) {
	limits := device.Limits()
	us := &UniformStream{
		device:       device,
		limits:       limits,
		Alignment:    ComputeDynamicAlignment(ObjectUniformSize, limits.MinUniformBufferOffsetAlignment),
		constantData: make([]byte, ConstantUniformSize),
		objectData:   make([]byte, ObjectUniformSize),
	}
	buf, err := device.CreateBuffer(gpu.BufferDesc{
		Size:   ConstantUniformSize,
		Usage:  gpu.BufferUsageUniform,
		Memory: gpu.MemoryHostVisible,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create constant uniform buffer: %v: %w", err, core.ErrAllocation)
	}
	us.Constant = buf
	if _, err := us.EnsureCapacity(1); err != nil {
		us.Destroy()
		return nil, err
	}
	core.LogDebug("Uniform stream ready, dynamic alignment %d bytes.", us.Alignment)
	return us, nil
}

// SlotOffset is the byte offset of slot in the dynamic buffer.
func (us *UniformStream) SlotOffset(slot uint32) uint32 {
	return uint32(uint64(slot) * us.Alignment)
}

// EnsureCapacity grows the dynamic buffer to hold count slots. It reports
// whether the buffer was reallocated, in which case descriptor sets pointing at
// it must be rewritten.
func (us *UniformStream) EnsureCapacity(count uint32) (bool, error) {
	if count == 0 {
		count = 1
	}
	if us.Dynamic != nil && count <= us.Capacity {
		return false, nil
	}
	capacity := us.Capacity
	if capacity == 0 {
		capacity = 1
	}
	for capacity < count {
		capacity *= 2
	}
	buf, err := us.device.CreateBuffer(gpu.BufferDesc{
		Size:   uint64(capacity) * us.Alignment,
		Usage:  gpu.BufferUsageUniform,
		Memory: gpu.MemoryHostVisible,
	})
	if err != nil {
		return false, fmt.Errorf("failed to create dynamic uniform buffer for %d objects: %v: %w", capacity, err, core.ErrAllocation)
	}
	if us.Dynamic != nil {
		us.Dynamic.Destroy()
	}
	us.Dynamic = buf
	us.Capacity = capacity
	return true, nil
}

// PrepareFrame writes the constant block once per frame.
func (us *UniformStream) PrepareFrame(camera metadata.CameraState, lighting metadata.SceneLighting) error {
	d := us.constantData
	mat4Bytes(d[0:], camera.View)
	mat4Bytes(d[64:], camera.Projection)
	vec4Bytes(d[128:], camera.Position.ToVec4(1))
	vec4Bytes(d[144:], lighting.LightDirection.ToVec4(0))
	vec4Bytes(d[160:], lighting.AmbientColour)
	vec4Bytes(d[176:], lighting.SpecularColour)
	if err := us.Constant.Write(0, d); err != nil {
		return err
	}
	return us.Constant.Flush(us.flushRange(0, ConstantUniformSize, us.Constant.Size()))
}

// WriteObject writes one object block at slot*alignment and flushes it.
func (us *UniformStream) WriteObject(slot uint32, model math.Mat4, flags [4]uint32) error {
	if slot >= us.Capacity {
		return fmt.Errorf("uniform slot %d beyond capacity %d: %w", slot, us.Capacity, core.ErrInvalidArgument)
	}
	d := us.objectData
	mat4Bytes(d[0:], model)
	mat4Bytes(d[64:], model.InverseTransposed())
	for i, f := range flags {
		putUint32(d[128+i*4:], f)
	}
	offset := uint64(us.SlotOffset(slot))
	if err := us.Dynamic.Write(offset, d); err != nil {
		return err
	}
	return us.Dynamic.Flush(us.flushRange(offset, ObjectUniformSize, us.Dynamic.Size()))
}

// flushRange widens [offset, offset+size) to whole non coherent atoms. The
// start is aligned down, the end aligned up or clamped to the buffer end.
func (us *UniformStream) flushRange(offset, size, bufferSize uint64) (uint64, uint64) {
	start, end := offset, offset+size
	if atom := us.limits.NonCoherentAtomSize; atom > 0 {
		start = offset - offset%atom
		end = start + math.AlignUp(end-start, atom)
	}
	if end > bufferSize {
		end = bufferSize
	}
	return start, end - start
}

func (us *UniformStream) Destroy() {
	if us.Dynamic != nil {
		us.Dynamic.Destroy()
		us.Dynamic = nil
	}
	if us.Constant != nil {
		us.Constant.Destroy()
		us.Constant = nil
	}
	us.Capacity = 0
}

// TextureFlags returns the enable flags for the maps bound to a material.
func TextureFlags(m *Material) [4]uint32 {
	var flags [4]uint32
	if m == nil {
		return flags
	}
	if m.Diffuse != nil {
		flags[textureFlagDiffuse] = 1
	}
	if m.Normal != nil {
		flags[textureFlagNormal] = 1
	}
	if m.Specular != nil {
		flags[textureFlagSpecular] = 1
	}
	return flags
}

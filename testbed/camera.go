package testbed

import (
	"github.com/spaghettifunk/anima/engine/math"
	"github.com/spaghettifunk/anima/engine/renderer/metadata"
)

/**
 * @brief A fly camera. The view matrix is rebuilt lazily whenever the
 * position or rotation changed.
 */
type Camera struct {
	/** @brief The position of this camera. */
	Position math.Vec3
	/** @brief The rotation of this camera using Euler angles (pitch, yaw, roll). */
	EulerRotation math.Vec3

	FovRadians float32
	NearClip   float32
	FarClip    float32

	isDirty    bool
	viewMatrix math.Mat4
	projection math.Mat4
}

func NewCamera() *Camera {
	camera := &Camera{
		FovRadians: math.DegToRad(45.0),
		NearClip:   0.1,
		FarClip:    1000.0,
	}
	camera.Reset()
	return camera
}

func (c *Camera) Reset() {
	c.EulerRotation = math.NewVec3Zero()
	c.Position = math.NewVec3Zero()
	c.isDirty = false
	c.viewMatrix = math.NewMat4Identity()
	c.projection = math.NewMat4Identity()
}

func (c *Camera) SetPosition(position math.Vec3) {
	c.Position = position
	c.isDirty = true
}

func (c *Camera) SetEulerRotation(rotation math.Vec3) {
	c.EulerRotation = rotation
	c.isDirty = true
}

func (c *Camera) rotation() math.Mat4 {
	return math.NewMat4EulerXYZ(c.EulerRotation.X, c.EulerRotation.Y, c.EulerRotation.Z)
}

func (c *Camera) View() math.Mat4 {
	if c.isDirty {
		c.viewMatrix = c.rotation().Mul(math.NewMat4Translation(c.Position)).Inverse()
		c.isDirty = false
	}
	return c.viewMatrix
}

// Resize rebuilds the projection for a new framebuffer aspect ratio.
func (c *Camera) Resize(width, height uint32) {
	if width == 0 || height == 0 {
		return
	}
	c.projection = math.NewMat4Perspective(c.FovRadians, float32(width)/float32(height), c.NearClip, c.FarClip)
}

// State is what the renderer consumes once per frame.
func (c *Camera) State() metadata.CameraState {
	return metadata.CameraState{
		View:       c.View(),
		Projection: c.projection,
		Position:   c.Position,
	}
}

func (c *Camera) Forward() math.Vec3 {
	return math.NewVec3Forward().Transform(c.rotation()).Normalized()
}

func (c *Camera) Right() math.Vec3 {
	return math.NewVec3(1, 0, 0).Transform(c.rotation()).Normalized()
}

func (c *Camera) MoveForward(amount float32) {
	c.Position = c.Position.Add(c.Forward().MulScalar(amount))
	c.isDirty = true
}

func (c *Camera) MoveBackward(amount float32) {
	c.MoveForward(-amount)
}

func (c *Camera) MoveLeft(amount float32) {
	c.Position = c.Position.Add(c.Right().MulScalar(-amount))
	c.isDirty = true
}

func (c *Camera) MoveRight(amount float32) {
	c.Position = c.Position.Add(c.Right().MulScalar(amount))
	c.isDirty = true
}

func (c *Camera) MoveUp(amount float32) {
	c.Position = c.Position.Add(math.NewVec3Up().MulScalar(amount))
	c.isDirty = true
}

func (c *Camera) Yaw(amount float32) {
	c.EulerRotation.Y += amount
	c.isDirty = true
}

func (c *Camera) Pitch(amount float32) {
	c.EulerRotation.X += amount

	// Clamp to avoid Gimbal lock.
	limit := math.DegToRad(89.0)
	c.EulerRotation.X = math.Clamp(c.EulerRotation.X, -limit, limit)

	c.isDirty = true
}

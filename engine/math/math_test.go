package math

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAlignUp(t *testing.T) {
	assert.Equal(t, uint64(256), AlignUp[uint64](128, 256))
	assert.Equal(t, uint64(256), AlignUp[uint64](256, 256))
	assert.Equal(t, uint64(512), AlignUp[uint64](257, 256))
	assert.Equal(t, uint32(64), AlignUp[uint32](64, 0))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, uint32(800), Clamp[uint32](900, 1, 800))
	assert.Equal(t, uint32(1), Clamp[uint32](0, 1, 800))
	assert.Equal(t, float32(0.5), Clamp[float32](0.5, 0, 1))
}

func TestMat4InverseRoundTrip(t *testing.T) {
	tr := TransformFromPositionRotationScale(
		NewVec3(1, 2, 3),
		NewQuatFromAxisAngle(NewVec3Up(), DegToRad(30), true),
		NewVec3(2, 2, 2),
	)
	m := tr.GetWorld()
	assert.True(t, m.Mul(m.Inverse()).Equal(NewMat4Identity(), 1e-5))
}

func TestMat4InverseSingular(t *testing.T) {
	assert.Equal(t, NewMat4Identity(), Mat4{}.Inverse())
}

func TestTransformOrder(t *testing.T) {
	tr := TransformFromPositionRotationScale(
		NewVec3(10, 0, 0),
		NewQuatFromAxisAngle(NewVec3(0, 0, 1), DegToRad(90), true),
		NewVec3(2, 2, 2),
	)
	// scale to (2,0,0), rotate to (0,2,0), translate to (10,2,0)
	p := NewVec3(1, 0, 0).Transform(tr.GetWorld())
	assert.True(t, p.Compare(NewVec3(10, 2, 0), 1e-5), "got %v", p)
}

func TestTransformParent(t *testing.T) {
	parent := TransformFromPosition(NewVec3(0, 5, 0))
	child := TransformFromPosition(NewVec3(1, 0, 0))
	child.Parent = parent
	p := NewVec3Zero().Transform(child.GetWorld())
	assert.True(t, p.Compare(NewVec3(1, 5, 0), 1e-6), "got %v", p)
}

func TestLookAtMovesEyeToOrigin(t *testing.T) {
	eye := NewVec3(0, 0, 5)
	view := NewMat4LookAt(eye, NewVec3Zero(), NewVec3Up())
	p := eye.Transform(view)
	assert.True(t, p.Compare(NewVec3Zero(), 1e-5), "got %v", p)

	target := NewVec3Zero().Transform(view)
	assert.InDelta(t, -5, target.Z, 1e-5)
}

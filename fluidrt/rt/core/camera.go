package core

import (
	"math"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

type CameraState struct {
	Position    mgl32.Vec3
	Yaw         float32 // radians, 0 looks down -Z
	Pitch       float32 // radians
	Speed       float32
	Sensitivity float32
	FovY        float32 // radians
	Near        float32
	Far         float32
}

func NewCameraState() *CameraState {
	return &CameraState{
		Position:    mgl32.Vec3{0, 1.5, 4},
		Yaw:         0,
		Pitch:       -0.2,
		Speed:       3.0,
		Sensitivity: 0.003,
		FovY:        mgl32.DegToRad(60),
		Near:        0.05,
		Far:         100.0,
	}
}

func (c *CameraState) GetForward() mgl32.Vec3 {
	// Y-up: yaw around Y, pitch towards +Y
	return mgl32.Vec3{
		float32(math.Cos(float64(c.Pitch)) * math.Sin(float64(c.Yaw))),
		float32(math.Sin(float64(c.Pitch))),
		float32(-math.Cos(float64(c.Pitch)) * math.Cos(float64(c.Yaw))),
	}
}

func (c *CameraState) GetRight() mgl32.Vec3 {
	return c.GetForward().Cross(mgl32.Vec3{0, 1, 0}).Normalize()
}

func (c *CameraState) GetViewMatrix() mgl32.Mat4 {
	eye := c.Position
	target := eye.Add(c.GetForward())
	return mgl32.LookAtV(eye, target, mgl32.Vec3{0, 1, 0})
}

// ClampPitch keeps the camera off the poles.
func (c *CameraState) ClampPitch() {
	const limit = 1.55
	if c.Pitch > limit {
		c.Pitch = limit
	}
	if c.Pitch < -limit {
		c.Pitch = -limit
	}
}

// CameraMatrices is everything a pass needs from the camera for one frame.
// Projection follows the OpenGL clip convention (z in [-w, w]); shaders
// remap depth to the [0,1] device range.
type CameraMatrices struct {
	Projection mgl32.Mat4
	View       mgl32.Mat4
	MVP        mgl32.Mat4
	InvView    mgl32.Mat4
	Near       float32
	Far        float32
	FovY       float32
}

func (c *CameraState) Matrices(width, height int) CameraMatrices {
	aspect := float32(1)
	if width > 0 && height > 0 {
		aspect = float32(width) / float32(height)
	}
	view := c.GetViewMatrix()
	proj := mgl32.Perspective(c.FovY, aspect, c.Near, c.Far)
	return CameraMatrices{
		Projection: proj,
		View:       view,
		MVP:        proj.Mul4(view),
		InvView:    view.Inv(),
		Near:       c.Near,
		Far:        c.Far,
		FovY:       c.FovY,
	}
}

// OrthoMatrix maps the unit square used by full-screen passes onto clip space.
func OrthoMatrix() mgl32.Mat4 {
	return mgl32.Ortho(0, 1, 0, 1, -1, 1)
}

// PointScale converts a world-space radius at unit eye distance into
// pixels: windowHeight / tan(fovY/2).
func PointScale(windowHeight int, fovY float32) float32 {
	t := math32.Tan(fovY * 0.5)
	if t <= 0 {
		return 0
	}
	return float32(windowHeight) / t
}

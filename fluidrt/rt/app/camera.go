package app

import (
	"github.com/gekko3d/gekko-fluid/fluidrt/rt/core"
	"github.com/go-gl/mathgl/mgl32"
)

// FlyInput is one frame of camera controls. Move is (right, up, forward)
// in [-1,1]; Look is the mouse delta in pixels.
type FlyInput struct {
	Move mgl32.Vec3
	Look mgl32.Vec2
}

// FlyCamera steers a CameraState with WASD-style movement and mouse look.
type FlyCamera struct {
	State *core.CameraState
}

func (f *FlyCamera) Update(in FlyInput, dt float32) {
	if dt <= 0 || f.State == nil {
		return
	}
	c := f.State

	c.Yaw += in.Look[0] * c.Sensitivity
	c.Pitch -= in.Look[1] * c.Sensitivity
	c.ClampPitch()

	forward := c.GetForward()
	right := c.GetRight()
	up := mgl32.Vec3{0, 1, 0}

	move := right.Mul(in.Move[0]).Add(up.Mul(in.Move[1])).Add(forward.Mul(in.Move[2]))
	if move.Len() > 0 {
		c.Position = c.Position.Add(move.Normalize().Mul(c.Speed * dt))
	}
}

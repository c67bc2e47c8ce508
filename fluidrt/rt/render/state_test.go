package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateReplay(t *testing.T) {
	p := NewProgram(7, "p", nil)

	var cl CommandList
	cl.BindFramebuffer(2)
	cl.SetDrawBuffer(1)
	cl.Blend(BlendAdditive)
	cl.DepthTest(false)
	cl.DepthMask(false)
	cl.UseProgram(p)
	cl.BindTexture(0, 11)
	cl.BindTexture(3, 12)
	cl.DrawQuad()

	base := DefaultState()
	s := base.Replay(&cl)
	assert.Equal(t, FramebufferID(2), s.Framebuffer)
	assert.Equal(t, 1, s.DrawBuffer)
	assert.Equal(t, BlendAdditive, s.Blend)
	assert.False(t, s.DepthTest)
	assert.False(t, s.DepthMask)
	assert.Equal(t, ProgramID(7), s.Program)
	assert.Equal(t, 2, s.BoundTextures())
	assert.Equal(t, 0, base.BoundTextures(), "replay must not alias the input map")

	cl.UnbindTexture(0)
	cl.UnbindTexture(3)
	cl.Blend(BlendDisabled)
	cl.DepthTest(true)
	cl.DepthMask(true)
	cl.UnbindFramebuffer()
	s = base.Replay(&cl)
	assert.Equal(t, FramebufferDefault, s.Framebuffer)
	assert.Equal(t, 0, s.DrawBuffer, "binding resets the draw buffer")
	assert.Equal(t, 0, s.BoundTextures())
	assert.Equal(t, BlendDisabled, s.Blend)
	assert.True(t, s.DepthTest)
}

func TestCommandList_Reset(t *testing.T) {
	var cl CommandList
	cl.DrawQuad()
	cl.DrawSprites(1, 10)
	assert.Equal(t, 2, cl.Len())
	assert.True(t, cl.Cmds[1].Op.IsDraw())
	assert.Equal(t, "DrawSprites", cl.Cmds[1].Op.String())
	cl.Reset()
	assert.Equal(t, 0, cl.Len())
}

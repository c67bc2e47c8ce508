package render

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

type OpCode uint8

const (
	OpBindFramebuffer OpCode = iota + 1
	OpSetDrawBuffer
	OpClear
	OpViewport
	OpScissor
	OpScissorTest
	OpBlend
	OpDepthTest
	OpDepthMask
	OpUseProgram
	OpUniform
	OpBindTexture
	OpUnbindTexture
	OpDrawSprites
	OpDrawPoints
	OpDrawQuad
)

var opNames = map[OpCode]string{
	OpBindFramebuffer: "BindFramebuffer",
	OpSetDrawBuffer:   "SetDrawBuffer",
	OpClear:           "Clear",
	OpViewport:        "Viewport",
	OpScissor:         "Scissor",
	OpScissorTest:     "ScissorTest",
	OpBlend:           "Blend",
	OpDepthTest:       "DepthTest",
	OpDepthMask:       "DepthMask",
	OpUseProgram:      "UseProgram",
	OpUniform:         "Uniform",
	OpBindTexture:     "BindTexture",
	OpUnbindTexture:   "UnbindTexture",
	OpDrawSprites:     "DrawSprites",
	OpDrawPoints:      "DrawPoints",
	OpDrawQuad:        "DrawQuad",
}

func (o OpCode) String() string {
	if n, ok := opNames[o]; ok {
		return n
	}
	return "Op?"
}

// IsDraw reports whether the op emits primitives.
func (o OpCode) IsDraw() bool {
	return o == OpDrawSprites || o == OpDrawPoints || o == OpDrawQuad
}

type BlendFactor uint8

const (
	BlendZero BlendFactor = iota
	BlendOne
	BlendSrcAlpha
	BlendOneMinusSrcAlpha
)

type BlendState struct {
	Enabled bool
	Src     BlendFactor
	Dst     BlendFactor
}

var (
	BlendDisabled = BlendState{Enabled: false, Src: BlendOne, Dst: BlendZero}
	BlendAdditive = BlendState{Enabled: true, Src: BlendOne, Dst: BlendOne}
	BlendAlpha    = BlendState{Enabled: true, Src: BlendSrcAlpha, Dst: BlendOneMinusSrcAlpha}
)

type ClearMask uint8

const (
	ClearColor ClearMask = 1 << iota
	ClearDepth
)

type Rect struct {
	X, Y, W, H int
}

// Command is one entry of a CommandList. Op selects which fields are
// meaningful; the rest stay zero.
type Command struct {
	Op OpCode

	Framebuffer FramebufferID // OpBindFramebuffer
	Attachment  int           // OpSetDrawBuffer
	Program     ProgramID     // OpUseProgram
	Texture     TextureID     // OpBindTexture
	Unit        int           // OpBindTexture, OpUnbindTexture
	Buffer      BufferID      // OpDrawSprites, OpDrawPoints
	Count       uint32        // OpDrawSprites, OpDrawPoints

	Uniform Uniform     // OpUniform
	Value   [16]float32 // OpUniform

	Rect    Rect       // OpViewport, OpScissor
	Color   [4]float32 // OpClear
	Depth   float32    // OpClear
	Mask    ClearMask  // OpClear
	Blend   BlendState // OpBlend
	Enabled bool       // OpDepthTest, OpDepthMask, OpScissorTest
}

// CommandList records render commands for one submission. The zero value
// is ready to use.
type CommandList struct {
	Cmds []Command
}

func (cl *CommandList) Reset() { cl.Cmds = cl.Cmds[:0] }

func (cl *CommandList) Len() int { return len(cl.Cmds) }

func (cl *CommandList) push(c Command) { cl.Cmds = append(cl.Cmds, c) }

func (cl *CommandList) BindFramebuffer(fb FramebufferID) {
	cl.push(Command{Op: OpBindFramebuffer, Framebuffer: fb})
}

// UnbindFramebuffer returns output to the caller's target.
func (cl *CommandList) UnbindFramebuffer() {
	cl.push(Command{Op: OpBindFramebuffer, Framebuffer: FramebufferDefault})
}

func (cl *CommandList) SetDrawBuffer(attachment int) {
	cl.push(Command{Op: OpSetDrawBuffer, Attachment: attachment})
}

func (cl *CommandList) Clear(mask ClearMask, color [4]float32, depth float32) {
	cl.push(Command{Op: OpClear, Mask: mask, Color: color, Depth: depth})
}

func (cl *CommandList) Viewport(x, y, w, h int) {
	cl.push(Command{Op: OpViewport, Rect: Rect{x, y, w, h}})
}

func (cl *CommandList) Scissor(x, y, w, h int) {
	cl.push(Command{Op: OpScissor, Rect: Rect{x, y, w, h}})
}

func (cl *CommandList) ScissorTest(enabled bool) {
	cl.push(Command{Op: OpScissorTest, Enabled: enabled})
}

func (cl *CommandList) Blend(b BlendState) {
	cl.push(Command{Op: OpBlend, Blend: b})
}

func (cl *CommandList) DepthTest(enabled bool) {
	cl.push(Command{Op: OpDepthTest, Enabled: enabled})
}

func (cl *CommandList) DepthMask(enabled bool) {
	cl.push(Command{Op: OpDepthMask, Enabled: enabled})
}

func (cl *CommandList) UseProgram(p Program) {
	cl.push(Command{Op: OpUseProgram, Program: p.ID})
}

func (cl *CommandList) uniform(u Uniform, v [16]float32) {
	if !u.valid {
		return
	}
	cl.push(Command{Op: OpUniform, Uniform: u, Value: v})
}

func (cl *CommandList) SetFloat(u Uniform, v float32) {
	cl.uniform(u, [16]float32{v})
}

func (cl *CommandList) SetInt(u Uniform, v int32) {
	cl.uniform(u, [16]float32{math.Float32frombits(uint32(v))})
}

func (cl *CommandList) SetVec2(u Uniform, v mgl32.Vec2) {
	cl.uniform(u, [16]float32{v[0], v[1]})
}

func (cl *CommandList) SetVec4(u Uniform, v mgl32.Vec4) {
	cl.uniform(u, [16]float32{v[0], v[1], v[2], v[3]})
}

func (cl *CommandList) SetMat4(u Uniform, m mgl32.Mat4) {
	cl.uniform(u, [16]float32(m))
}

func (cl *CommandList) BindTexture(unit int, tex TextureID) {
	cl.push(Command{Op: OpBindTexture, Unit: unit, Texture: tex})
}

func (cl *CommandList) UnbindTexture(unit int) {
	cl.push(Command{Op: OpUnbindTexture, Unit: unit})
}

func (cl *CommandList) DrawSprites(buf BufferID, count uint32) {
	cl.push(Command{Op: OpDrawSprites, Buffer: buf, Count: count})
}

func (cl *CommandList) DrawPoints(buf BufferID, count uint32) {
	cl.push(Command{Op: OpDrawPoints, Buffer: buf, Count: count})
}

// DrawQuad draws the full-screen quad with the current program.
func (cl *CommandList) DrawQuad() {
	cl.push(Command{Op: OpDrawQuad, Count: 6})
}

// IntValue decodes the integer carried by an OpUniform command.
func (c Command) IntValue() int32 {
	return int32(math.Float32bits(c.Value[0]))
}

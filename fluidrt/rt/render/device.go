// Package render is the backend-neutral rendering façade: resource
// handles, the Device interface, program uniform layouts and the
// command list that passes record into.
package render

import (
	"errors"
	"fmt"
)

type TextureID uint32
type FramebufferID uint32
type BufferID uint32
type ProgramID uint32

// FramebufferDefault addresses whatever target the caller has bound on
// the device, usually the window surface.
const FramebufferDefault FramebufferID = 0

type Format uint8

const (
	FormatUndefined Format = iota
	FormatR16Float
	FormatR32Float
	FormatRGBA8
	FormatRGBA16Float
	FormatDepth32
)

func (f Format) String() string {
	switch f {
	case FormatR16Float:
		return "r16float"
	case FormatR32Float:
		return "r32float"
	case FormatRGBA8:
		return "rgba8unorm"
	case FormatRGBA16Float:
		return "rgba16float"
	case FormatDepth32:
		return "depth32float"
	}
	return "undefined"
}

// Blendable reports whether additive/alpha blending is allowed on the format
// without optional device features.
func (f Format) Blendable() bool {
	switch f {
	case FormatR16Float, FormatRGBA8, FormatRGBA16Float:
		return true
	}
	return false
}

type AttachmentDesc struct {
	Name   string
	Format Format
}

type FramebufferDesc struct {
	Label  string
	Colors []AttachmentDesc
	Depth  bool
}

// VertexInput describes how a program consumes the vertex stream.
type VertexInput uint8

const (
	// InputNone draws a procedural full-screen quad from the vertex index.
	InputNone VertexInput = iota
	// InputSprites draws one instanced quad per (x,y,z,density) record.
	InputSprites
	// InputPoints draws one point primitive per (x,y,z,density) record.
	InputPoints
)

type TextureKind uint8

const (
	// TextureData is a 2D float texture read with textureLoad (e.g. depth, thickness).
	TextureData TextureKind = iota
	// TextureColor is a filterable 2D colour texture.
	TextureColor
	// TextureCube is a filterable cube map.
	TextureCube
)

type TextureDecl struct {
	Name string
	Kind TextureKind
}

type ProgramDesc struct {
	Name          string
	Source        string
	VertexEntry   string
	FragmentEntry string
	Input         VertexInput
	Uniforms      []UniformDecl
	Textures      []TextureDecl
}

// IncompleteError reports a framebuffer that cannot be rendered to after
// (re)allocation.
type IncompleteError struct {
	Label  string
	Reason string
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("framebuffer %q incomplete: %s", e.Label, e.Reason)
}

var (
	ErrUnknownHandle = errors.New("unknown resource handle")
	// ErrUnsupported reports a device lacking a capability a pipeline needs.
	ErrUnsupported = errors.New("unsupported by device")
)

// Device owns GPU resources and executes command lists. All methods must be
// called from the render thread.
type Device interface {
	// MaxColorAttachments is the number of colour targets a framebuffer may carry.
	MaxColorAttachments() int

	CreateFramebuffer(desc FramebufferDesc) (FramebufferID, error)
	// ResizeFramebuffer reallocates every attachment in place; handles stay
	// valid and previous contents are discarded. Returns *IncompleteError
	// when the result cannot be rendered to.
	ResizeFramebuffer(fb FramebufferID, width, height int) error
	ColorTexture(fb FramebufferID, attachment int) TextureID
	ReleaseFramebuffer(fb FramebufferID)

	// CreateProgram compiles and links a program. On failure the returned
	// Program has a zero ID and an empty uniform map; the error carries the
	// compiler diagnostic.
	CreateProgram(desc ProgramDesc) (Program, error)
	ReleaseProgram(p ProgramID)

	CreateVertexBuffer(label string, size int) (BufferID, error)
	WriteBuffer(b BufferID, offset int, data []byte)
	ReleaseBuffer(b BufferID)

	Submit(cl *CommandList)
}

package ssfr

import (
	"errors"
	"fmt"

	"github.com/gekko3d/gekko-fluid/fluidrt/rt/core"
	"github.com/gekko3d/gekko-fluid/fluidrt/rt/render"
)

// Colour attachments of the full group.
const (
	AttachThickness = 0
	AttachBlurA     = 1
	AttachBlurB     = 2
	// AttachWater fills the group out to the four targets the capability
	// check requires of the device.
	AttachWater = 3

	// AttachEyeDepth is the only colour attachment of the depth group.
	AttachEyeDepth = 0
)

// RequiredColorAttachments is what the full group needs from the device.
const RequiredColorAttachments = 4

var (
	depthGroupDesc = render.FramebufferDesc{
		Label:  "ssfr depth",
		Colors: []render.AttachmentDesc{{Name: "eye depth", Format: render.FormatR32Float}},
		Depth:  true,
	}
	fullGroupDesc = render.FramebufferDesc{
		Label: "ssfr full",
		Colors: []render.AttachmentDesc{
			{Name: "thickness", Format: render.FormatR16Float},
			{Name: "blur a", Format: render.FormatR32Float},
			{Name: "blur b", Format: render.FormatR32Float},
			{Name: "water", Format: render.FormatRGBA16Float},
		},
	}
)

// FrameBufferSet owns the two render-target groups of the fluid pipeline
// and keeps them sized to window * factor.
type FrameBufferSet struct {
	dev    render.Device
	logger core.Logger

	Depth render.FramebufferID
	Full  render.FramebufferID

	currentFactor float32
	width, height int
	windowW       int
	windowH       int
	allocated     bool

	broken error
}

// NewFrameBufferSet creates both groups. Nothing is allocated on the GPU
// until the first EnsureSize.
func NewFrameBufferSet(dev render.Device, logger core.Logger) (*FrameBufferSet, error) {
	s := &FrameBufferSet{
		dev:    dev,
		logger: core.OrNop(logger),
	}
	var err error
	if s.Depth, err = dev.CreateFramebuffer(depthGroupDesc); err != nil {
		return nil, fmt.Errorf("depth group: %w", err)
	}
	if s.Full, err = dev.CreateFramebuffer(fullGroupDesc); err != nil {
		dev.ReleaseFramebuffer(s.Depth)
		return nil, fmt.Errorf("full group: %w", err)
	}
	return s, nil
}

// EnsureSize resizes both groups to floor(window*factor) when the window
// size or the factor changed since the last call. Attachments are
// reallocated in place, so texture handles stay valid but their contents
// are lost. It reports whether a reallocation happened.
func (s *FrameBufferSet) EnsureSize(windowW, windowH int, factor float32) bool {
	factor = core.ClampFactor(factor)
	if s.broken != nil {
		return false
	}
	if s.allocated && windowW == s.windowW && windowH == s.windowH && factor == s.currentFactor {
		return false
	}
	s.windowW, s.windowH = windowW, windowH
	s.currentFactor = factor

	w, h := core.ScaledSize(windowW, windowH, factor)
	if s.allocated && w == s.width && h == s.height {
		return false
	}

	// the GPU gets at least 1x1; Size still reports the computed value
	aw, ah := max(w, 1), max(h, 1)
	for _, fb := range []render.FramebufferID{s.Depth, s.Full} {
		if err := s.dev.ResizeFramebuffer(fb, aw, ah); err != nil {
			s.markBroken(err)
			return true
		}
	}
	s.width, s.height = w, h
	s.allocated = true
	s.logger.Debugf("framebuffers resized to %dx%d (window %dx%d, factor %.2f)", w, h, windowW, windowH, factor)
	return true
}

func (s *FrameBufferSet) markBroken(err error) {
	s.broken = err
	var inc *render.IncompleteError
	if errors.As(err, &inc) {
		s.logger.Errorf("framebuffer %q incomplete, fluid rendering stopped: %s", inc.Label, inc.Reason)
		return
	}
	s.logger.Errorf("framebuffer resize failed, fluid rendering stopped: %v", err)
}

// Usable is false once a resize left a group incomplete. There is no retry.
func (s *FrameBufferSet) Usable() bool { return s.broken == nil }

// Err returns the failure that made the set unusable.
func (s *FrameBufferSet) Err() error { return s.broken }

// Size is the computed target size; it may be zero for tiny factors.
func (s *FrameBufferSet) Size() (int, int) { return s.width, s.height }

func (s *FrameBufferSet) HasArea() bool { return s.allocated && s.width > 0 && s.height > 0 }

func (s *FrameBufferSet) CurrentFactor() float32 { return s.currentFactor }

func (s *FrameBufferSet) BindDepth(cl *render.CommandList) { cl.BindFramebuffer(s.Depth) }

func (s *FrameBufferSet) BindFull(cl *render.CommandList) { cl.BindFramebuffer(s.Full) }

func (s *FrameBufferSet) Unbind(cl *render.CommandList) { cl.UnbindFramebuffer() }

// SetDrawBuffer redirects output within the bound group.
func (s *FrameBufferSet) SetDrawBuffer(cl *render.CommandList, attachment int) {
	cl.SetDrawBuffer(attachment)
}

func (s *FrameBufferSet) EyeDepthTexture() render.TextureID {
	return s.dev.ColorTexture(s.Depth, AttachEyeDepth)
}

func (s *FrameBufferSet) ThicknessTexture() render.TextureID {
	return s.dev.ColorTexture(s.Full, AttachThickness)
}

func (s *FrameBufferSet) BlurTexture(attachment int) render.TextureID {
	return s.dev.ColorTexture(s.Full, attachment)
}

func (s *FrameBufferSet) Release() {
	s.dev.ReleaseFramebuffer(s.Depth)
	s.dev.ReleaseFramebuffer(s.Full)
	s.allocated = false
}

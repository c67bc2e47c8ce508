// Package ssfr renders particle clouds as a continuous fluid surface with
// screen-space fluid rendering: a depth pass, a thickness pass, a separable
// bilateral blur of the depth and a composite that shades the result into
// the caller's target.
package ssfr

import (
	"github.com/gekko3d/gekko-fluid/fluidrt/rt/core"
	"github.com/gekko3d/gekko-fluid/fluidrt/rt/render"
	"github.com/google/uuid"
)

// FrameInputs is what the camera and scene layers hand over each frame.
type FrameInputs struct {
	Camera     core.CameraMatrices
	Sprites    *PointSpriteBuffer
	SceneColor render.TextureID
	Skybox     render.TextureID
}

// FrameStats describes the commands recorded by the last Render.
type FrameStats struct {
	Mode       core.RenderMode
	Particles  uint32
	Passes     int
	Draws      int
	BlurPasses int
	Commands   int
	FBOWidth   int
	FBOHeight  int
}

// Renderer sequences the fluid passes for one view. It owns its
// framebuffers and programs; the sprite buffer and camera belong to the
// caller.
type Renderer struct {
	ID     string
	dev    render.Device
	logger core.Logger

	state     core.PipelineState
	fbs       *FrameBufferSet
	programs  *PassPrograms
	available bool

	cl    render.CommandList
	stats FrameStats

	reportedUnavailable bool
	reportedMapped      bool
	reportedNoSprites   bool
}

// New builds a renderer on dev. When the device cannot render into four
// colour targets at once the fluid mode is disabled for the lifetime of
// the renderer; the point modes keep working.
func New(dev render.Device, logger core.Logger) *Renderer {
	id := uuid.NewString()[:8]
	r := &Renderer{
		ID:     id,
		dev:    dev,
		logger: core.WithPrefix(core.OrNop(logger), "ssfr/"+id),
		state:  core.NewPipelineState(),
	}
	r.programs = NewPassPrograms(dev, r.logger)

	if n := dev.MaxColorAttachments(); n < RequiredColorAttachments {
		r.logger.Warnf("fluid mode disabled: %v: %d colour attachments, need %d", render.ErrUnsupported, n, RequiredColorAttachments)
		return r
	}
	fbs, err := NewFrameBufferSet(dev, r.logger)
	if err != nil {
		r.logger.Errorf("fluid mode disabled: %v", err)
		return r
	}
	r.fbs = fbs
	r.available = true
	r.logger.Infof("renderer ready")
	return r
}

// Available reports whether the fluid mode can run at all.
func (r *Renderer) Available() bool {
	return r.available && r.fbs.Usable()
}

// EffectiveMode maps the fluid mode to point sprites when it cannot run.
func (r *Renderer) EffectiveMode(m core.RenderMode) core.RenderMode {
	if m == core.RenderFluid && !r.Available() {
		return core.RenderPointSprites
	}
	return m
}

// SetFBOFactor clamps f into [0,1] and applies it on the next Render.
func (r *Renderer) SetFBOFactor(f float32) {
	r.state.SetFBOFactor(f)
}

func (r *Renderer) FBOFactor() float32 { return r.state.FBOFactor() }

func (r *Renderer) FrameStats() FrameStats { return r.stats }

func (r *Renderer) Programs() *PassPrograms { return r.programs }

// FrameBuffers is nil when the fluid mode is unavailable.
func (r *Renderer) FrameBuffers() *FrameBufferSet { return r.fbs }

// Render records and submits one frame in the mode opts selects. The
// fluid result, or the raw particles in the point modes, lands in the
// target the caller has bound on the device.
func (r *Renderer) Render(in FrameInputs, particleCount uint32, opts core.DrawingOptions, windowW, windowH int, particleRadius float32) {
	r.stats = FrameStats{Mode: opts.RenderMode}
	r.state.SetWindowSize(windowW, windowH)
	if opts.RenderMode == core.RenderDisabled {
		return
	}

	if in.Sprites == nil {
		if !r.reportedNoSprites {
			r.logger.Warnf("render called without a sprite buffer")
			r.reportedNoSprites = true
		}
		return
	}
	if in.Sprites.Mapped() {
		if !r.reportedMapped {
			r.logger.Warnf("sprite buffer is still mapped; frame skipped")
			r.reportedMapped = true
		}
		return
	}
	r.reportedMapped = false

	count := particleCount
	if active := uint32(in.Sprites.Count()); count > active {
		count = active
	}
	r.stats.Particles = count

	r.cl.Reset()
	f := &frame{
		cl:      &r.cl,
		in:      in,
		count:   count,
		opts:    opts,
		windowW: windowW,
		windowH: windowH,
		radius:  particleRadius,
		stats:   &r.stats,
	}

	switch opts.RenderMode {
	case core.RenderPointSprites:
		r.pointSpritePass(f)
	case core.RenderPoints:
		r.pointsPass(f)
	case core.RenderFluid:
		if !r.renderFluid(f) {
			return
		}
	default:
		return
	}

	for _, c := range r.cl.Cmds {
		if c.Op.IsDraw() {
			r.stats.Draws++
		}
	}
	r.stats.Commands = r.cl.Len()
	r.dev.Submit(&r.cl)
}

func (r *Renderer) renderFluid(f *frame) bool {
	if !r.available {
		if !r.reportedUnavailable {
			r.logger.Warnf("fluid mode requested but unavailable on this device")
			r.reportedUnavailable = true
		}
		return false
	}

	r.fbs.EnsureSize(r.state.WindowWidth, r.state.WindowHeight, r.state.FBOFactor())
	if !r.fbs.Usable() {
		return false
	}
	r.stats.FBOWidth, r.stats.FBOHeight = r.fbs.Size()
	if !r.fbs.HasArea() {
		return false
	}

	r.depthPass(f)
	r.thicknessPass(f)
	// without a blur program the composite reads the raw depth
	depth := r.fbs.EyeDepthTexture()
	if f.opts.BlurEnabled && r.programs.Blur.Valid() {
		depth = r.blurPass(f)
	}
	r.compositePass(f, depth)
	return true
}

// Release frees the framebuffers and programs together.
func (r *Renderer) Release() {
	if r.fbs != nil {
		r.fbs.Release()
		r.fbs = nil
	}
	if r.programs != nil {
		r.programs.Release(r.dev)
	}
	r.available = false
}

package core

import "github.com/chewxy/math32"

// MinDepth is the eye-space depth written where no particle covers a
// pixel. The depth pass clears to it and the blur and composite passes
// compare against it, so there is exactly one definition.
const MinDepth float32 = -1.0e6

// DefaultFBOFactor renders the off-screen targets at full window resolution.
const DefaultFBOFactor float32 = 1.0

// ClampFactor clamps an FBO factor into [0,1]. NaN maps to 0.
func ClampFactor(f float32) float32 {
	if math32.IsNaN(f) || f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// ScaledSize returns floor(w*factor) x floor(h*factor). Negative
// dimensions are treated as zero.
func ScaledSize(w, h int, factor float32) (int, int) {
	factor = ClampFactor(factor)
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	sw := int(math32.Floor(float32(w) * factor))
	sh := int(math32.Floor(float32(h) * factor))
	return sw, sh
}

// PipelineState carries the window size and the requested off-screen
// resolution factor for one renderer instance.
type PipelineState struct {
	WindowWidth  int
	WindowHeight int

	fboFactor float32
}

func NewPipelineState() PipelineState {
	return PipelineState{fboFactor: DefaultFBOFactor}
}

// SetFBOFactor stores the clamped factor. It takes effect on the next frame.
func (s *PipelineState) SetFBOFactor(f float32) {
	s.fboFactor = ClampFactor(f)
}

func (s *PipelineState) FBOFactor() float32 { return s.fboFactor }

// SetWindowSize records the caller's window size and reports whether it changed.
func (s *PipelineState) SetWindowSize(w, h int) bool {
	if s.WindowWidth == w && s.WindowHeight == h {
		return false
	}
	s.WindowWidth, s.WindowHeight = w, h
	return true
}

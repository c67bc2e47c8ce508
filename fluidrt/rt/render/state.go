package render

// State is the mutable pipeline state a CommandList manipulates. Backends
// replay commands through Apply to know what a draw should use; tests use
// it to check what a list leaves behind.
type State struct {
	Framebuffer FramebufferID
	DrawBuffer  int
	Program     ProgramID
	Viewport    Rect
	Scissor     Rect
	ScissorTest bool
	Blend       BlendState
	DepthTest   bool
	DepthMask   bool
	Textures    map[int]TextureID
}

// DefaultState is the state passes assume on entry and must restore on
// exit: default target, no blending, depth test and depth writes on.
func DefaultState() State {
	return State{
		Blend:     BlendDisabled,
		DepthTest: true,
		DepthMask: true,
		Textures:  map[int]TextureID{},
	}
}

// Apply folds c into s. Draws and clears do not change state.
func (s *State) Apply(c Command) {
	switch c.Op {
	case OpBindFramebuffer:
		s.Framebuffer = c.Framebuffer
		s.DrawBuffer = 0
	case OpSetDrawBuffer:
		s.DrawBuffer = c.Attachment
	case OpViewport:
		s.Viewport = c.Rect
	case OpScissor:
		s.Scissor = c.Rect
	case OpScissorTest:
		s.ScissorTest = c.Enabled
	case OpBlend:
		s.Blend = c.Blend
	case OpDepthTest:
		s.DepthTest = c.Enabled
	case OpDepthMask:
		s.DepthMask = c.Enabled
	case OpUseProgram:
		s.Program = c.Program
	case OpBindTexture:
		if s.Textures == nil {
			s.Textures = map[int]TextureID{}
		}
		s.Textures[c.Unit] = c.Texture
	case OpUnbindTexture:
		delete(s.Textures, c.Unit)
	}
}

// Replay applies every command of cl to a copy of s and returns it.
func (s State) Replay(cl *CommandList) State {
	out := s
	out.Textures = make(map[int]TextureID, len(s.Textures))
	for k, v := range s.Textures {
		out.Textures[k] = v
	}
	for _, c := range cl.Cmds {
		out.Apply(c)
	}
	return out
}

// BoundTextures reports how many texture units hold a texture.
func (s State) BoundTextures() int { return len(s.Textures) }

package app

import (
	"github.com/gekko3d/gekko-fluid/fluidrt/rt/core"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// Action is a user command bound to a key.
type Action int

const (
	ActionNone Action = iota
	ActionCycleMode
	ActionDebugNext
	ActionDebugPrev
	ActionToggleBlur
	ActionBlurDown
	ActionBlurUp
	ActionFBODown
	ActionFBOUp
	ActionNextPreset
	ActionToggleDensity
	ActionToggleMouse
	ActionQuit
)

var keyBindings = map[glfw.Key]Action{
	glfw.KeyF1:           ActionCycleMode,
	glfw.KeyF2:           ActionDebugNext,
	glfw.KeyF3:           ActionDebugPrev,
	glfw.KeyB:            ActionToggleBlur,
	glfw.KeyLeftBracket:  ActionBlurDown,
	glfw.KeyRightBracket: ActionBlurUp,
	glfw.KeyMinus:        ActionFBODown,
	glfw.KeyKPSubtract:   ActionFBODown,
	glfw.KeyEqual:        ActionFBOUp,
	glfw.KeyKPAdd:        ActionFBOUp,
	glfw.KeyC:            ActionNextPreset,
	glfw.KeyN:            ActionToggleDensity,
	glfw.KeyTab:          ActionToggleMouse,
	glfw.KeyEscape:       ActionQuit,
}

// repeatable actions also fire on key repeat.
func repeatable(a Action) bool {
	switch a {
	case ActionBlurDown, ActionBlurUp, ActionFBODown, ActionFBOUp:
		return true
	}
	return false
}

// ActionFor maps a key event to its action.
func ActionFor(key glfw.Key, action glfw.Action) Action {
	a, ok := keyBindings[key]
	if !ok {
		return ActionNone
	}
	if action == glfw.Press || (action == glfw.Repeat && repeatable(a)) {
		return a
	}
	return ActionNone
}

const (
	blurScaleStep = 0.25
	minBlurScale  = 0.25
	maxBlurScale  = 4
	fboFactorStep = 0.1
)

// Controls is the user-adjustable part of the frame parameters.
type Controls struct {
	Options     core.DrawingOptions
	Presets     *core.FluidPresets
	PresetIndex int
	FBOFactor   float32
	UseDensity  bool
}

// Apply changes the controls for a and reports whether anything changed.
// Window-level actions (mouse capture, quit) are left to the caller.
func (c *Controls) Apply(a Action) bool {
	o := &c.Options
	switch a {
	case ActionCycleMode:
		o.RenderMode = o.RenderMode.Next()
	case ActionDebugNext:
		o.DebugType = o.DebugType.Next()
	case ActionDebugPrev:
		o.DebugType = o.DebugType.Prev()
	case ActionToggleBlur:
		o.BlurEnabled = !o.BlurEnabled
	case ActionBlurDown:
		o.BlurScale = clampf(o.BlurScale-blurScaleStep, minBlurScale, maxBlurScale)
	case ActionBlurUp:
		o.BlurScale = clampf(o.BlurScale+blurScaleStep, minBlurScale, maxBlurScale)
	case ActionFBODown:
		c.FBOFactor = core.ClampFactor(c.FBOFactor - fboFactorStep)
	case ActionFBOUp:
		c.FBOFactor = core.ClampFactor(c.FBOFactor + fboFactorStep)
	case ActionNextPreset:
		if c.Presets == nil || c.Presets.Len() == 0 {
			return false
		}
		c.PresetIndex = (c.PresetIndex + 1) % c.Presets.Len()
		o.FluidColor = c.Presets.At(c.PresetIndex)
	case ActionToggleDensity:
		c.UseDensity = !c.UseDensity
	default:
		return false
	}
	return true
}

// SetPresets swaps in a reloaded preset set, keeping the current preset
// selected by name when it still exists.
func (c *Controls) SetPresets(p *core.FluidPresets) {
	if p == nil || p.Len() == 0 {
		return
	}
	idx := 0
	if cur := c.Options.FluidColor; cur != nil {
		if i := p.Index(cur.Name); i >= 0 {
			idx = i
		}
	}
	c.Presets = p
	c.PresetIndex = idx
	c.Options.FluidColor = p.At(idx)
}

func clampf(v, lo, hi float32) float32 {
	return max(lo, min(v, hi))
}

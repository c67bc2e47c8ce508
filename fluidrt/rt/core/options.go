package core

import "fmt"

// RenderMode selects which branch of the fluid renderer runs for a frame.
type RenderMode uint32

const (
	RenderFluid RenderMode = iota
	RenderPointSprites
	RenderPoints
	RenderDisabled

	renderModeCount
)

var renderModeNames = [...]string{
	RenderFluid:        "fluid",
	RenderPointSprites: "pointsprites",
	RenderPoints:       "points",
	RenderDisabled:     "disabled",
}

func (m RenderMode) String() string {
	if m < renderModeCount {
		return renderModeNames[m]
	}
	return fmt.Sprintf("RenderMode(%d)", uint32(m))
}

// Next cycles Fluid -> PointSprites -> Points -> Disabled -> Fluid.
func (m RenderMode) Next() RenderMode {
	return (m + 1) % renderModeCount
}

// ParseRenderMode accepts the names produced by String.
func ParseRenderMode(s string) (RenderMode, error) {
	for i, n := range renderModeNames {
		if n == s {
			return RenderMode(i), nil
		}
	}
	return RenderFluid, fmt.Errorf("unknown render mode %q", s)
}

// DebugType selects an intermediate lighting term the composite pass
// outputs instead of the final blended colour.
type DebugType int32

const (
	DebugFinal DebugType = iota
	DebugDepth
	DebugNormal
	DebugThickness
	DebugFresnel
	DebugReflection
	DebugRefraction
	DebugAbsorption

	MaxDebugType = DebugAbsorption
)

var debugTypeNames = [...]string{
	DebugFinal:      "final",
	DebugDepth:      "depth",
	DebugNormal:     "normal",
	DebugThickness:  "thickness",
	DebugFresnel:    "fresnel",
	DebugReflection: "reflection",
	DebugRefraction: "refraction",
	DebugAbsorption: "absorption",
}

func (d DebugType) String() string {
	if d >= DebugFinal && d <= MaxDebugType {
		return debugTypeNames[d]
	}
	return fmt.Sprintf("DebugType(%d)", int32(d))
}

// Next advances the debug channel, wrapping past MaxDebugType to DebugFinal.
func (d DebugType) Next() DebugType {
	if d >= MaxDebugType || d < DebugFinal {
		return DebugFinal
	}
	return d + 1
}

// Prev steps back, wrapping below DebugFinal to MaxDebugType.
func (d DebugType) Prev() DebugType {
	if d <= DebugFinal || d > MaxDebugType {
		return MaxDebugType
	}
	return d - 1
}

// DrawingOptions is the per-frame parameter block handed to the renderer.
// FluidColor is borrowed from the scene configuration.
type DrawingOptions struct {
	RenderMode  RenderMode
	DebugType   DebugType
	FluidColor  *FluidColor
	BlurScale   float32
	BlurEnabled bool
}

const DefaultBlurScale float32 = 1.0

func DefaultDrawingOptions(color *FluidColor) DrawingOptions {
	return DrawingOptions{
		RenderMode:  RenderFluid,
		DebugType:   DebugFinal,
		FluidColor:  color,
		BlurScale:   DefaultBlurScale,
		BlurEnabled: true,
	}
}

// IsClearFluid reports whether the composite should use the refractive
// clear-fluid program. A missing colour is treated as clear.
func (o DrawingOptions) IsClearFluid() bool {
	return o.FluidColor == nil || o.FluidColor.IsClear
}

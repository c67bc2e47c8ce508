package shaders

import (
	_ "embed"
)

//go:embed quad.wgsl
var QuadWGSL string

//go:embed sprites.wgsl
var SpritesWGSL string

//go:embed points.wgsl
var PointsWGSL string

//go:embed blur.wgsl
var blurWGSL string

//go:embed composite.wgsl
var compositeWGSL string

//go:embed background.wgsl
var backgroundWGSL string

//go:embed blit.wgsl
var blitWGSL string

// Full-screen programs carry the shared quad vertex stage.
var (
	BlurWGSL       = WithQuad(blurWGSL)
	CompositeWGSL  = WithQuad(compositeWGSL)
	BackgroundWGSL = WithQuad(backgroundWGSL)
	BlitWGSL       = WithQuad(blitWGSL)
)

// WithQuad appends the vs_quad entry point to a fragment-only source.
func WithQuad(src string) string {
	return src + "\n" + QuadWGSL
}

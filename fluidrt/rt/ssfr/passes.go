package ssfr

import (
	"github.com/gekko3d/gekko-fluid/fluidrt/rt/core"
	"github.com/gekko3d/gekko-fluid/fluidrt/rt/render"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	// BlurFilterRadius is the half-width of the bilateral kernel in taps.
	BlurFilterRadius = 10
	// ThicknessRadiusScale enlarges sprites in the thickness pass.
	ThicknessRadiusScale = 2
)

var (
	sentinelClear  = [4]float32{core.MinDepth, core.MinDepth, core.MinDepth, core.MinDepth}
	thicknessClear = [4]float32{0, 0, 0, 0}
	pointsColor    = mgl32.Vec4{0.2, 0.5, 1.0, 1.0}
)

// frame carries everything the passes of one Render call share.
type frame struct {
	cl      *render.CommandList
	in      FrameInputs
	count   uint32
	opts    core.DrawingOptions
	windowW int
	windowH int
	radius  float32
	stats   *FrameStats
}

func (f *frame) pass() { f.stats.Passes++ }

// setSpriteUniforms uploads the shared sprite block for a w x h target.
func setSpriteUniforms(cl *render.CommandList, u spriteUniforms, cam core.CameraMatrices, w, h, windowH int, radius, tint float32) {
	cl.SetMat4(u.projection, cam.Projection)
	cl.SetMat4(u.view, cam.View)
	cl.SetVec2(u.screenSize, mgl32.Vec2{float32(w), float32(h)})
	// point size scales with the target, not the window
	scale := core.PointScale(windowH, cam.FovY)
	if windowH > 0 {
		scale *= float32(h) / float32(windowH)
	}
	cl.SetFloat(u.pointScale, scale)
	cl.SetFloat(u.pointRadius, radius)
	cl.SetFloat(u.near, cam.Near)
	cl.SetFloat(u.far, cam.Far)
	cl.SetFloat(u.minDepth, core.MinDepth)
	cl.SetFloat(u.densityTint, tint)
}

// depthPass writes the nearest eye-space depth of every sprite sphere into
// the depth group; uncovered pixels keep the MinDepth sentinel.
func (r *Renderer) depthPass(f *frame) {
	cl := f.cl
	w, h := r.fbs.Size()
	r.fbs.BindDepth(cl)
	r.fbs.SetDrawBuffer(cl, AttachEyeDepth)
	cl.Viewport(0, 0, w, h)
	cl.Clear(render.ClearColor|render.ClearDepth, sentinelClear, 1)
	cl.DepthTest(true)
	cl.DepthMask(true)

	cl.UseProgram(r.programs.Depth)
	setSpriteUniforms(cl, r.programs.depth, f.in.Camera, w, h, f.windowH, f.radius, 1)
	if f.count > 0 {
		cl.DrawSprites(f.in.Sprites.ID(), f.count)
	}
	f.pass()
}

// thicknessPass accumulates enlarged sprites additively. Blend and depth
// state are back to their defaults on return.
func (r *Renderer) thicknessPass(f *frame) {
	cl := f.cl
	w, h := r.fbs.Size()
	r.fbs.BindFull(cl)
	r.fbs.SetDrawBuffer(cl, AttachThickness)
	cl.Viewport(0, 0, w, h)
	cl.Clear(render.ClearColor, thicknessClear, 1)

	cl.DepthMask(false)
	cl.DepthTest(false)
	cl.Blend(render.BlendAdditive)

	cl.UseProgram(r.programs.Thickness)
	setSpriteUniforms(cl, r.programs.thickness, f.in.Camera, w, h, f.windowH, f.radius*ThicknessRadiusScale, 1)
	if f.count > 0 {
		cl.DrawSprites(f.in.Sprites.ID(), f.count)
	}

	cl.Blend(render.BlendDisabled)
	cl.DepthMask(true)
	cl.DepthTest(true)
	f.pass()
}

// blurPass smooths eye depth with a horizontal then a vertical bilateral
// pass through the ping-pong targets and returns the texture holding the
// result.
func (r *Renderer) blurPass(f *frame) render.TextureID {
	cl := f.cl
	w, h := r.fbs.Size()
	u := r.programs.blur
	scale := f.opts.BlurScale

	cl.DepthTest(false)
	cl.DepthMask(false)
	r.fbs.BindFull(cl)
	cl.Viewport(0, 0, w, h)
	cl.UseProgram(r.programs.Blur)
	cl.SetMat4(u.ortho, core.OrthoMatrix())
	cl.SetVec2(u.invTexSize, mgl32.Vec2{1 / float32(w), 1 / float32(h)})
	cl.SetFloat(u.filterRadius, BlurFilterRadius)
	cl.SetFloat(u.depthFalloff, depthFalloff(f.radius))
	cl.SetFloat(u.minDepth, core.MinDepth)

	steps := []struct {
		dir    mgl32.Vec2
		source render.TextureID
		target int
	}{
		{mgl32.Vec2{scale, 0}, r.fbs.EyeDepthTexture(), AttachBlurA},
		{mgl32.Vec2{0, scale}, r.fbs.BlurTexture(AttachBlurA), AttachBlurB},
	}
	for _, s := range steps {
		r.fbs.SetDrawBuffer(cl, s.target)
		cl.SetVec2(u.direction, s.dir)
		cl.BindTexture(0, s.source)
		cl.DrawQuad()
		f.stats.BlurPasses++
		f.pass()
	}
	cl.UnbindTexture(0)

	cl.DepthTest(true)
	cl.DepthMask(true)
	return r.fbs.BlurTexture(AttachBlurB)
}

// depthFalloff makes a depth step of one particle radius cost a factor e
// in the bilateral weight.
func depthFalloff(radius float32) float32 {
	if radius <= 0 {
		return 1
	}
	return 1 / radius
}

// compositePass shades the fluid surface into the caller's target.
func (r *Renderer) compositePass(f *frame, depthTex render.TextureID) {
	cl := f.cl
	w, h := r.fbs.Size()
	prog, u := r.programs.composite(f.opts)

	r.fbs.Unbind(cl)
	cl.Viewport(0, 0, f.windowW, f.windowH)
	cl.Scissor(0, 0, f.windowW, f.windowH)
	cl.ScissorTest(true)
	cl.DepthTest(false)
	cl.DepthMask(false)

	cl.UseProgram(prog)
	cl.SetMat4(u.ortho, core.OrthoMatrix())
	cl.SetMat4(u.projection, f.in.Camera.Projection)
	cl.SetMat4(u.invView, f.in.Camera.InvView)
	base, falloff, falloffScale := fluidParams(f.opts.FluidColor)
	cl.SetVec4(u.falloff, falloff)
	cl.SetVec4(u.baseColor, base)
	cl.SetVec2(u.invTexSize, mgl32.Vec2{1 / float32(w), 1 / float32(h)})
	cl.SetFloat(u.near, f.in.Camera.Near)
	cl.SetFloat(u.far, f.in.Camera.Far)
	cl.SetFloat(u.minDepth, core.MinDepth)
	cl.SetFloat(u.falloffScale, falloffScale)
	cl.SetInt(u.debugType, int32(f.opts.DebugType))

	cl.BindTexture(0, depthTex)
	cl.BindTexture(1, r.fbs.ThicknessTexture())
	cl.BindTexture(2, f.in.SceneColor)
	cl.BindTexture(3, f.in.Skybox)
	cl.Blend(render.BlendAlpha)
	cl.DrawQuad()

	for unit := 0; unit < 4; unit++ {
		cl.UnbindTexture(unit)
	}
	cl.Blend(render.BlendDisabled)
	cl.ScissorTest(false)
	cl.DepthTest(true)
	cl.DepthMask(true)
	f.pass()
}

func fluidParams(c *core.FluidColor) (base, falloff mgl32.Vec4, scale float32) {
	if c == nil {
		return mgl32.Vec4{1, 1, 1, 1}, mgl32.Vec4{}, 0
	}
	return c.BaseColor, c.Falloff, c.FalloffScale
}

// pointSpritePass draws shaded spheres straight into the caller's target.
func (r *Renderer) pointSpritePass(f *frame) {
	cl := f.cl
	cl.UnbindFramebuffer()
	cl.Viewport(0, 0, f.windowW, f.windowH)
	cl.UseProgram(r.programs.PointSprites)
	setSpriteUniforms(cl, r.programs.pointSprites, f.in.Camera, f.windowW, f.windowH, f.windowH, f.radius, 1)
	if f.count > 0 {
		cl.DrawSprites(f.in.Sprites.ID(), f.count)
	}
	f.pass()
}

// pointsPass draws one flat-coloured point per particle.
func (r *Renderer) pointsPass(f *frame) {
	cl := f.cl
	cl.UnbindFramebuffer()
	cl.Viewport(0, 0, f.windowW, f.windowH)
	cl.UseProgram(r.programs.Points)
	cl.SetMat4(r.programs.points.mvp, f.in.Camera.MVP)
	cl.SetVec4(r.programs.points.color, pointsColor)
	if f.count > 0 {
		cl.DrawPoints(f.in.Sprites.ID(), f.count)
	}
	f.pass()
}

package ssfr

import (
	"github.com/gekko3d/gekko-fluid/fluidrt/rt/core"
	"github.com/gekko3d/gekko-fluid/fluidrt/rt/render"
	"github.com/gekko3d/gekko-fluid/fluidrt/rt/shaders"
)

// Uniform block layouts. Member order must match the WGSL structs.
var (
	spriteDecls = []render.UniformDecl{
		{Name: "projection", Type: render.UniformMat4},
		{Name: "view", Type: render.UniformMat4},
		{Name: "screen_size", Type: render.UniformVec2},
		{Name: "point_scale", Type: render.UniformFloat},
		{Name: "point_radius", Type: render.UniformFloat},
		{Name: "near", Type: render.UniformFloat},
		{Name: "far", Type: render.UniformFloat},
		{Name: "min_depth", Type: render.UniformFloat},
		{Name: "density_tint", Type: render.UniformFloat},
	}
	pointDecls = []render.UniformDecl{
		{Name: "mvp", Type: render.UniformMat4},
		{Name: "color", Type: render.UniformVec4},
	}
	blurDecls = []render.UniformDecl{
		{Name: "ortho", Type: render.UniformMat4},
		{Name: "direction", Type: render.UniformVec2},
		{Name: "inv_tex_size", Type: render.UniformVec2},
		{Name: "filter_radius", Type: render.UniformFloat},
		{Name: "depth_falloff", Type: render.UniformFloat},
		{Name: "min_depth", Type: render.UniformFloat},
	}
	compositeDecls = []render.UniformDecl{
		{Name: "ortho", Type: render.UniformMat4},
		{Name: "projection", Type: render.UniformMat4},
		{Name: "inv_view", Type: render.UniformMat4},
		{Name: "falloff", Type: render.UniformVec4},
		{Name: "base_color", Type: render.UniformVec4},
		{Name: "inv_tex_size", Type: render.UniformVec2},
		{Name: "near", Type: render.UniformFloat},
		{Name: "far", Type: render.UniformFloat},
		{Name: "min_depth", Type: render.UniformFloat},
		{Name: "falloff_scale", Type: render.UniformFloat},
		{Name: "debug_type", Type: render.UniformInt},
	}

	blurTextures      = []render.TextureDecl{{Name: "depth", Kind: render.TextureData}}
	compositeTextures = []render.TextureDecl{
		{Name: "depth", Kind: render.TextureData},
		{Name: "thickness", Kind: render.TextureData},
		{Name: "scene", Kind: render.TextureColor},
		{Name: "skybox", Kind: render.TextureCube},
	}
)

type spriteUniforms struct {
	projection, view render.Uniform
	screenSize       render.Uniform
	pointScale       render.Uniform
	pointRadius      render.Uniform
	near, far        render.Uniform
	minDepth         render.Uniform
	densityTint      render.Uniform
}

func resolveSprite(p render.Program) spriteUniforms {
	return spriteUniforms{
		projection:  p.Uniform("projection"),
		view:        p.Uniform("view"),
		screenSize:  p.Uniform("screen_size"),
		pointScale:  p.Uniform("point_scale"),
		pointRadius: p.Uniform("point_radius"),
		near:        p.Uniform("near"),
		far:         p.Uniform("far"),
		minDepth:    p.Uniform("min_depth"),
		densityTint: p.Uniform("density_tint"),
	}
}

type pointUniforms struct {
	mvp, color render.Uniform
}

type blurUniforms struct {
	ortho        render.Uniform
	direction    render.Uniform
	invTexSize   render.Uniform
	filterRadius render.Uniform
	depthFalloff render.Uniform
	minDepth     render.Uniform
}

type compositeUniforms struct {
	ortho, projection, invView render.Uniform
	falloff, baseColor         render.Uniform
	invTexSize                 render.Uniform
	near, far                  render.Uniform
	minDepth                   render.Uniform
	falloffScale               render.Uniform
	debugType                  render.Uniform
}

func resolveComposite(p render.Program) compositeUniforms {
	return compositeUniforms{
		ortho:        p.Uniform("ortho"),
		projection:   p.Uniform("projection"),
		invView:      p.Uniform("inv_view"),
		falloff:      p.Uniform("falloff"),
		baseColor:    p.Uniform("base_color"),
		invTexSize:   p.Uniform("inv_tex_size"),
		near:         p.Uniform("near"),
		far:          p.Uniform("far"),
		minDepth:     p.Uniform("min_depth"),
		falloffScale: p.Uniform("falloff_scale"),
		debugType:    p.Uniform("debug_type"),
	}
}

// PassPrograms holds the eight programs of the pipeline with their uniform
// slots, resolved once when linked. A program that failed to build stays
// zero-valued and its draws are no-ops.
type PassPrograms struct {
	Depth            render.Program
	Thickness        render.Program
	PointSprites     render.Program
	Points           render.Program
	Blur             render.Program
	CompositeClear   render.Program
	CompositeColored render.Program
	CompositeDebug   render.Program

	depth, thickness, pointSprites spriteUniforms
	points                         pointUniforms
	blur                           blurUniforms
	clear, colored, debug          compositeUniforms

	failed []string
}

func programDescs() []render.ProgramDesc {
	sprite := func(name, fs string) render.ProgramDesc {
		return render.ProgramDesc{
			Name:          name,
			Source:        shaders.SpritesWGSL,
			VertexEntry:   "vs_sprite",
			FragmentEntry: fs,
			Input:         render.InputSprites,
			Uniforms:      spriteDecls,
		}
	}
	composite := func(name, fs string) render.ProgramDesc {
		return render.ProgramDesc{
			Name:          name,
			Source:        shaders.CompositeWGSL,
			VertexEntry:   "vs_quad",
			FragmentEntry: fs,
			Uniforms:      compositeDecls,
			Textures:      compositeTextures,
		}
	}
	return []render.ProgramDesc{
		sprite("ssfr depth", "fs_depth"),
		sprite("ssfr thickness", "fs_thickness"),
		sprite("ssfr point sprites", "fs_shaded"),
		{
			Name:          "ssfr points",
			Source:        shaders.PointsWGSL,
			VertexEntry:   "vs_point",
			FragmentEntry: "fs_point",
			Input:         render.InputPoints,
			Uniforms:      pointDecls,
		},
		{
			Name:          "ssfr blur",
			Source:        shaders.BlurWGSL,
			VertexEntry:   "vs_quad",
			FragmentEntry: "fs_blur",
			Uniforms:      blurDecls,
			Textures:      blurTextures,
		},
		composite("ssfr composite clear", "fs_clear"),
		composite("ssfr composite colored", "fs_colored"),
		composite("ssfr composite debug", "fs_debug"),
	}
}

// NewPassPrograms links every program. Failures are logged with the
// compiler diagnostic and leave that program invalid.
func NewPassPrograms(dev render.Device, logger core.Logger) *PassPrograms {
	logger = core.OrNop(logger)
	pp := &PassPrograms{}
	targets := []*render.Program{
		&pp.Depth, &pp.Thickness, &pp.PointSprites, &pp.Points,
		&pp.Blur, &pp.CompositeClear, &pp.CompositeColored, &pp.CompositeDebug,
	}
	for i, desc := range programDescs() {
		p, err := dev.CreateProgram(desc)
		if err != nil {
			logger.Errorf("shader program %q failed: %v", desc.Name, err)
			pp.failed = append(pp.failed, desc.Name)
			p = render.Program{}
		}
		*targets[i] = p
	}

	pp.depth = resolveSprite(pp.Depth)
	pp.thickness = resolveSprite(pp.Thickness)
	pp.pointSprites = resolveSprite(pp.PointSprites)
	pp.points = pointUniforms{mvp: pp.Points.Uniform("mvp"), color: pp.Points.Uniform("color")}
	pp.blur = blurUniforms{
		ortho:        pp.Blur.Uniform("ortho"),
		direction:    pp.Blur.Uniform("direction"),
		invTexSize:   pp.Blur.Uniform("inv_tex_size"),
		filterRadius: pp.Blur.Uniform("filter_radius"),
		depthFalloff: pp.Blur.Uniform("depth_falloff"),
		minDepth:     pp.Blur.Uniform("min_depth"),
	}
	pp.clear = resolveComposite(pp.CompositeClear)
	pp.colored = resolveComposite(pp.CompositeColored)
	pp.debug = resolveComposite(pp.CompositeDebug)
	return pp
}

// Failed lists the programs that did not link.
func (pp *PassPrograms) Failed() []string { return pp.failed }

// composite picks the program for the given options: debug output wins,
// then tinted fluids, then clear.
func (pp *PassPrograms) composite(opts core.DrawingOptions) (render.Program, compositeUniforms) {
	switch {
	case opts.DebugType != core.DebugFinal:
		return pp.CompositeDebug, pp.debug
	case !opts.IsClearFluid():
		return pp.CompositeColored, pp.colored
	}
	return pp.CompositeClear, pp.clear
}

func (pp *PassPrograms) Release(dev render.Device) {
	for _, p := range []render.Program{
		pp.Depth, pp.Thickness, pp.PointSprites, pp.Points,
		pp.Blur, pp.CompositeClear, pp.CompositeColored, pp.CompositeDebug,
	} {
		if p.Valid() {
			dev.ReleaseProgram(p.ID)
		}
	}
	*pp = PassPrograms{}
}

package ssfr

import (
	"math"
	"strings"
	"testing"

	"github.com/gekko3d/gekko-fluid/fluidrt/rt/core"
	"github.com/gekko3d/gekko-fluid/fluidrt/rt/render"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testW      = 800
	testH      = 600
	testRadius = 0.05
)

// drawRecord is the state a single draw command executed under.
type drawRecord struct {
	op       render.OpCode
	count    uint32
	state    render.State
	uniforms map[string][16]float32
}

// draws replays cl from the default state and snapshots every draw.
func draws(cl *render.CommandList) []drawRecord {
	st := render.DefaultState()
	values := map[render.ProgramID]map[string][16]float32{}
	var out []drawRecord
	for _, c := range cl.Cmds {
		switch {
		case c.Op == render.OpUniform:
			m := values[st.Program]
			if m == nil {
				m = map[string][16]float32{}
				values[st.Program] = m
			}
			m[c.Uniform.Name] = c.Value
		case c.Op.IsDraw():
			snap := st.Replay(&render.CommandList{})
			u := map[string][16]float32{}
			for k, v := range values[st.Program] {
				u[k] = v
			}
			out = append(out, drawRecord{op: c.Op, count: c.Count, state: snap, uniforms: u})
		default:
			st.Apply(c)
		}
	}
	return out
}

type harness struct {
	dev     *fakeDevice
	log     *captureLogger
	r       *Renderer
	sprites *PointSpriteBuffer
}

func newHarness(t *testing.T, particles int) *harness {
	t.Helper()
	return newHarnessOn(t, newFakeDevice(), particles)
}

func newHarnessOn(t *testing.T, dev *fakeDevice, particles int) *harness {
	t.Helper()
	log := &captureLogger{}
	r := New(dev, log)
	sprites, err := NewPointSpriteBuffer(dev, 64)
	require.NoError(t, err)
	buf := sprites.Map()
	for i := 0; i < particles; i++ {
		buf[i] = core.ParticleSprite{Pos: [3]float32{float32(i) * 0.1, 0, -2}, Density: 1}
	}
	sprites.Unmap(particles)
	return &harness{dev: dev, log: log, r: r, sprites: sprites}
}

func (h *harness) inputs() FrameInputs {
	cam := core.NewCameraState()
	return FrameInputs{
		Camera:     cam.Matrices(testW, testH),
		Sprites:    h.sprites,
		SceneColor: 900,
		Skybox:     901,
	}
}

func (h *harness) render(opts core.DrawingOptions) {
	h.r.Render(h.inputs(), uint32(h.sprites.Count()), opts, testW, testH, testRadius)
}

func fluidOptions(blur bool) core.DrawingOptions {
	opts := core.DefaultDrawingOptions(core.DefaultFluidPresets().At(0))
	opts.BlurEnabled = blur
	return opts
}

func countContaining(lines []string, sub string) int {
	n := 0
	for _, l := range lines {
		if strings.Contains(l, sub) {
			n++
		}
	}
	return n
}

func TestFrameBufferSet_EnsureSize(t *testing.T) {
	dev := newFakeDevice()
	fbs, err := NewFrameBufferSet(dev, nil)
	require.NoError(t, err)

	assert.False(t, fbs.HasArea(), "nothing allocated before the first EnsureSize")
	assert.True(t, fbs.EnsureSize(1001, 333, 0.5))
	w, h := fbs.Size()
	assert.Equal(t, 500, w)
	assert.Equal(t, 166, h)
	assert.Equal(t, 500, dev.fbs[fbs.Depth].w)
	assert.Equal(t, 166, dev.fbs[fbs.Full].h)

	assert.False(t, fbs.EnsureSize(1001, 333, 0.5), "same size and factor must not reallocate")
	assert.True(t, fbs.EnsureSize(1001, 333, 1))
	w, h = fbs.Size()
	assert.Equal(t, 1001, w)
	assert.Equal(t, 333, h)

	depthTex := fbs.EyeDepthTexture()
	fbs.EnsureSize(640, 480, 1)
	assert.Equal(t, depthTex, fbs.EyeDepthTexture(), "resizing keeps texture handles")
}

func TestFrameBufferSet_TinyFactorHasNoArea(t *testing.T) {
	dev := newFakeDevice()
	fbs, err := NewFrameBufferSet(dev, nil)
	require.NoError(t, err)

	fbs.EnsureSize(100, 100, 0.001)
	w, h := fbs.Size()
	assert.Equal(t, 0, w)
	assert.Equal(t, 0, h)
	assert.False(t, fbs.HasArea())
	assert.True(t, fbs.Usable())
	assert.Equal(t, 1, dev.fbs[fbs.Full].w, "the GPU still gets a 1x1 target")
}

func TestRenderer_SetFBOFactorClamps(t *testing.T) {
	h := newHarness(t, 4)
	tests := []struct {
		in, want float32
	}{
		{1.5, 1},
		{-0.2, 0},
		{0.5, 0.5},
		{float32(math.NaN()), 0},
	}
	for _, tc := range tests {
		h.r.SetFBOFactor(tc.in)
		assert.Equal(t, tc.want, h.r.FBOFactor(), "SetFBOFactor(%v)", tc.in)
	}
}

func TestRenderer_FBOFactorAppliesNextFrame(t *testing.T) {
	h := newHarness(t, 4)
	h.r.SetFBOFactor(0.5)
	fbs := h.r.FrameBuffers()
	assert.False(t, fbs.HasArea(), "SetFBOFactor only schedules the resize")

	h.render(fluidOptions(true))
	st := h.r.FrameStats()
	assert.Equal(t, testW/2, st.FBOWidth)
	assert.Equal(t, testH/2, st.FBOHeight)
	assert.Equal(t, float32(0.5), fbs.CurrentFactor())
}

func TestFrameBufferSet_ClampsFactor(t *testing.T) {
	dev := newFakeDevice()
	fbs, err := NewFrameBufferSet(dev, nil)
	require.NoError(t, err)

	fbs.EnsureSize(200, 100, 1.5)
	assert.Equal(t, float32(1), fbs.CurrentFactor())
	w, h := fbs.Size()
	assert.Equal(t, []int{200, 100}, []int{w, h})
}

func TestFrameBufferSet_FullGroupLayout(t *testing.T) {
	dev := newFakeDevice()
	fbs, err := NewFrameBufferSet(dev, nil)
	require.NoError(t, err)

	full := dev.fbs[fbs.Full].desc
	require.Len(t, full.Colors, RequiredColorAttachments)
	assert.Equal(t, render.FormatR16Float, full.Colors[AttachThickness].Format)
	assert.Equal(t, render.FormatR32Float, full.Colors[AttachBlurA].Format)
	assert.Equal(t, render.FormatR32Float, full.Colors[AttachBlurB].Format)
	assert.Equal(t, render.FormatRGBA16Float, full.Colors[AttachWater].Format)
	assert.True(t, dev.fbs[fbs.Depth].desc.Depth)
	assert.False(t, full.Depth)
}

func TestRenderer_FluidPassSequence(t *testing.T) {
	h := newHarness(t, 10)
	h.render(fluidOptions(true))

	require.Len(t, h.dev.submits, 1)
	fbs := h.r.FrameBuffers()
	ds := draws(h.dev.last())
	require.Len(t, ds, 5)

	assert.Equal(t, render.OpDrawSprites, ds[0].op)
	assert.Equal(t, fbs.Depth, ds[0].state.Framebuffer)
	assert.Equal(t, uint32(10), ds[0].count)
	assert.Equal(t, h.r.Programs().Depth.ID, ds[0].state.Program)

	assert.Equal(t, render.OpDrawSprites, ds[1].op)
	assert.Equal(t, fbs.Full, ds[1].state.Framebuffer)
	assert.Equal(t, AttachThickness, ds[1].state.DrawBuffer)
	assert.Equal(t, render.BlendAdditive, ds[1].state.Blend)
	assert.False(t, ds[1].state.DepthTest)

	assert.Equal(t, AttachBlurA, ds[2].state.DrawBuffer)
	assert.Equal(t, fbs.EyeDepthTexture(), ds[2].state.Textures[0])
	assert.Equal(t, AttachBlurB, ds[3].state.DrawBuffer)
	assert.Equal(t, fbs.BlurTexture(AttachBlurA), ds[3].state.Textures[0])

	comp := ds[4]
	assert.Equal(t, render.OpDrawQuad, comp.op)
	assert.Equal(t, render.FramebufferDefault, comp.state.Framebuffer)
	assert.Equal(t, fbs.BlurTexture(AttachBlurB), comp.state.Textures[0])
	assert.Equal(t, fbs.ThicknessTexture(), comp.state.Textures[1])
	assert.Equal(t, render.TextureID(900), comp.state.Textures[2])
	assert.Equal(t, render.TextureID(901), comp.state.Textures[3])
	assert.Equal(t, render.Rect{W: testW, H: testH}, comp.state.Viewport)
	assert.True(t, comp.state.ScissorTest)
	assert.Equal(t, render.Rect{W: testW, H: testH}, comp.state.Scissor)

	st := h.r.FrameStats()
	assert.Equal(t, 5, st.Draws)
	assert.Equal(t, 2, st.BlurPasses)
	assert.Equal(t, 5, st.Passes)
	assert.Equal(t, h.dev.last().Len(), st.Commands)
}

func blurDirections(h *harness) []mgl32.Vec2 {
	var dirs []mgl32.Vec2
	for _, d := range draws(h.dev.last()) {
		if d.state.Program == h.r.Programs().Blur.ID {
			v := d.uniforms["direction"]
			dirs = append(dirs, mgl32.Vec2{v[0], v[1]})
		}
	}
	return dirs
}

func TestRenderer_BlurDirectionsAreOrthogonal(t *testing.T) {
	h := newHarness(t, 10)
	opts := fluidOptions(true)
	opts.BlurScale = 2
	h.render(opts)

	dirs := blurDirections(h)
	require.Len(t, dirs, 2)
	assert.Equal(t, mgl32.Vec2{2, 0}, dirs[0])
	assert.Equal(t, mgl32.Vec2{0, 2}, dirs[1])
	assert.Zero(t, dirs[0].Dot(dirs[1]))
}

func TestRenderer_BlurScalePassesThrough(t *testing.T) {
	for _, scale := range []float32{0, 0.25} {
		h := newHarness(t, 10)
		opts := fluidOptions(true)
		opts.BlurScale = scale
		h.render(opts)

		dirs := blurDirections(h)
		require.Len(t, dirs, 2, "scale %v", scale)
		assert.Equal(t, mgl32.Vec2{scale, 0}, dirs[0])
		assert.Equal(t, mgl32.Vec2{0, scale}, dirs[1])
	}
}

func TestRenderer_BlurDisabledCompositesRawDepth(t *testing.T) {
	h := newHarness(t, 10)
	h.render(fluidOptions(false))

	fbs := h.r.FrameBuffers()
	ds := draws(h.dev.last())
	require.Len(t, ds, 3)
	for _, d := range ds {
		if d.state.Framebuffer == fbs.Full {
			assert.NotEqual(t, AttachBlurA, d.state.DrawBuffer)
			assert.NotEqual(t, AttachBlurB, d.state.DrawBuffer)
		}
	}
	assert.Equal(t, fbs.EyeDepthTexture(), ds[2].state.Textures[0])
	assert.Zero(t, h.r.FrameStats().BlurPasses)
}

func TestRenderer_RestoresStateInEveryMode(t *testing.T) {
	modes := []core.RenderMode{core.RenderFluid, core.RenderPointSprites, core.RenderPoints}
	for _, mode := range modes {
		t.Run(mode.String(), func(t *testing.T) {
			for _, blur := range []bool{true, false} {
				h := newHarness(t, 8)
				opts := fluidOptions(blur)
				opts.RenderMode = mode
				h.render(opts)
				require.Len(t, h.dev.submits, 1)

				end := render.DefaultState().Replay(h.dev.last())
				assert.Equal(t, render.FramebufferDefault, end.Framebuffer)
				assert.Equal(t, render.BlendDisabled, end.Blend)
				assert.True(t, end.DepthTest)
				assert.True(t, end.DepthMask)
				assert.False(t, end.ScissorTest)
				assert.Zero(t, end.BoundTextures())
			}
		})
	}
}

func TestRenderer_ZeroParticles(t *testing.T) {
	h := newHarness(t, 0)
	h.render(fluidOptions(true))

	require.Len(t, h.dev.submits, 1)
	cl := h.dev.last()
	fbs := h.r.FrameBuffers()

	sawSentinelClear := false
	st := render.DefaultState()
	for _, c := range cl.Cmds {
		st.Apply(c)
		assert.NotEqual(t, render.OpDrawSprites, c.Op)
		if c.Op == render.OpClear && st.Framebuffer == fbs.Depth {
			sawSentinelClear = c.Color[0] == core.MinDepth
		}
	}
	assert.True(t, sawSentinelClear, "depth target must still be cleared to the sentinel")

	ds := draws(cl)
	require.NotEmpty(t, ds)
	last := ds[len(ds)-1]
	assert.Equal(t, render.FramebufferDefault, last.state.Framebuffer)
	assert.Equal(t, render.OpDrawQuad, last.op)
	assert.Equal(t, uint32(0), h.r.FrameStats().Particles)
}

func TestRenderer_ClampsParticleCount(t *testing.T) {
	h := newHarness(t, 3)
	h.r.Render(h.inputs(), 100, fluidOptions(false), testW, testH, testRadius)

	ds := draws(h.dev.last())
	require.NotEmpty(t, ds)
	assert.Equal(t, uint32(3), ds[0].count)
	assert.Equal(t, uint32(3), h.r.FrameStats().Particles)
}

func TestRenderer_CompositeProgramSelection(t *testing.T) {
	clearWithScale := core.NewFluidColor("odd", mgl32.Vec4{1, 1, 1, 1}, mgl32.Vec4{1, 1, 1, 1}, true)
	clearWithScale.FalloffScale = 5
	tinted := core.NewFluidColor("milk", mgl32.Vec4{1, 1, 1, 1}, mgl32.Vec4{0.2, 0.2, 0.2, 1}, false)

	tests := []struct {
		name  string
		color *core.FluidColor
		debug core.DebugType
		pick  func(pp *PassPrograms) render.ProgramID
	}{
		{"clear ignores falloff scale", clearWithScale, core.DebugFinal, func(pp *PassPrograms) render.ProgramID { return pp.CompositeClear.ID }},
		{"nil colour is clear", nil, core.DebugFinal, func(pp *PassPrograms) render.ProgramID { return pp.CompositeClear.ID }},
		{"tinted", tinted, core.DebugFinal, func(pp *PassPrograms) render.ProgramID { return pp.CompositeColored.ID }},
		{"debug wins", tinted, core.DebugNormal, func(pp *PassPrograms) render.ProgramID { return pp.CompositeDebug.ID }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, 5)
			opts := fluidOptions(true)
			opts.FluidColor = tc.color
			opts.DebugType = tc.debug
			h.render(opts)

			ds := draws(h.dev.last())
			comp := ds[len(ds)-1]
			assert.Equal(t, tc.pick(h.r.Programs()), comp.state.Program)
			assert.Equal(t, int32(tc.debug), int32(math.Float32bits(comp.uniforms["debug_type"][0])))
		})
	}
}

func TestRenderer_SentinelMatchesEverywhere(t *testing.T) {
	h := newHarness(t, 5)
	h.render(fluidOptions(true))
	cl := h.dev.last()

	want := math.Float32bits(core.MinDepth)
	clears := 0
	st := render.DefaultState()
	for _, c := range cl.Cmds {
		st.Apply(c)
		if c.Op == render.OpClear && st.Framebuffer == h.r.FrameBuffers().Depth {
			for _, v := range c.Color {
				assert.Equal(t, want, math.Float32bits(v))
			}
			clears++
		}
	}
	assert.Equal(t, 1, clears)

	for _, d := range draws(cl) {
		if v, ok := d.uniforms["min_depth"]; ok {
			assert.Equal(t, want, math.Float32bits(v[0]))
		}
	}
}

func TestRenderer_PointModes(t *testing.T) {
	tests := []struct {
		mode core.RenderMode
		op   render.OpCode
	}{
		{core.RenderPointSprites, render.OpDrawSprites},
		{core.RenderPoints, render.OpDrawPoints},
	}
	for _, tc := range tests {
		t.Run(tc.mode.String(), func(t *testing.T) {
			h := newHarness(t, 7)
			opts := fluidOptions(true)
			opts.RenderMode = tc.mode
			h.render(opts)

			ds := draws(h.dev.last())
			require.Len(t, ds, 1)
			assert.Equal(t, tc.op, ds[0].op)
			assert.Equal(t, uint32(7), ds[0].count)
			assert.Equal(t, render.FramebufferDefault, ds[0].state.Framebuffer)
		})
	}
}

func TestRenderer_DisabledModeSubmitsNothing(t *testing.T) {
	h := newHarness(t, 7)
	opts := fluidOptions(true)
	opts.RenderMode = core.RenderDisabled
	h.render(opts)
	assert.Empty(t, h.dev.submits)
}

func TestRenderer_CapabilityGate(t *testing.T) {
	dev := newFakeDevice()
	dev.maxColors = 2
	h := newHarnessOn(t, dev, 5)

	assert.False(t, h.r.Available())
	assert.Nil(t, h.r.FrameBuffers())
	assert.Equal(t, core.RenderPointSprites, h.r.EffectiveMode(core.RenderFluid))
	assert.Equal(t, core.RenderPoints, h.r.EffectiveMode(core.RenderPoints))
	assert.Equal(t, 1, countContaining(h.log.warns, render.ErrUnsupported.Error()))

	h.render(fluidOptions(true))
	h.render(fluidOptions(true))
	assert.Empty(t, h.dev.submits)
	assert.Equal(t, 1, countContaining(h.log.warns, "unavailable"))

	opts := fluidOptions(true)
	opts.RenderMode = core.RenderPointSprites
	h.render(opts)
	assert.Len(t, h.dev.submits, 1, "point modes keep working")
}

func TestRenderer_IncompleteFramebufferLoggedOnce(t *testing.T) {
	dev := newFakeDevice()
	dev.incompleteAfter = 0
	h := newHarnessOn(t, dev, 5)

	h.render(fluidOptions(true))
	h.render(fluidOptions(true))
	h.render(fluidOptions(true))

	assert.Empty(t, h.dev.submits)
	assert.Equal(t, 1, countContaining(h.log.errors, "incomplete"))
	assert.False(t, h.r.Available())
	assert.Equal(t, core.RenderPointSprites, h.r.EffectiveMode(core.RenderFluid))

	var inc *render.IncompleteError
	assert.ErrorAs(t, h.r.FrameBuffers().Err(), &inc)
}

func TestRenderer_ShaderFailureIsSoft(t *testing.T) {
	dev := newFakeDevice()
	dev.failNames["ssfr blur"] = true
	h := newHarnessOn(t, dev, 5)

	assert.Equal(t, []string{"ssfr blur"}, h.r.Programs().Failed())
	assert.False(t, h.r.Programs().Blur.Valid())
	assert.Equal(t, 1, countContaining(h.log.errors, `"ssfr blur"`))

	require.NotPanics(t, func() { h.render(fluidOptions(true)) })
	require.Len(t, h.dev.submits, 1)

	for _, c := range h.dev.last().Cmds {
		if c.Op == render.OpUniform {
			assert.True(t, c.Uniform.Valid(), "no uniform of a failed program is recorded")
		}
	}
	fbs := h.r.FrameBuffers()
	ds := draws(h.dev.last())
	require.Len(t, ds, 3, "depth, thickness and composite only")
	for _, d := range ds {
		if d.state.Framebuffer == fbs.Full {
			assert.Equal(t, AttachThickness, d.state.DrawBuffer)
		}
	}
	comp := ds[len(ds)-1]
	assert.Equal(t, render.FramebufferDefault, comp.state.Framebuffer)
	assert.Equal(t, fbs.EyeDepthTexture(), comp.state.Textures[0], "composite reads the unblurred depth")
	assert.Zero(t, h.r.FrameStats().BlurPasses)
}

func TestRenderer_RefusesMappedBuffer(t *testing.T) {
	h := newHarness(t, 5)
	buf := h.sprites.Map()
	buf[0].Density = 0.5

	h.render(fluidOptions(true))
	h.render(fluidOptions(true))
	assert.Empty(t, h.dev.submits)
	assert.Equal(t, 1, countContaining(h.log.warns, "mapped"))

	h.sprites.Unmap(5)
	h.render(fluidOptions(true))
	assert.Len(t, h.dev.submits, 1)
}

func TestRenderer_Release(t *testing.T) {
	h := newHarness(t, 1)
	h.r.Release()
	assert.Empty(t, h.dev.fbs)
	assert.Empty(t, h.dev.programs)
	assert.False(t, h.r.Available())
	assert.Equal(t, core.RenderPointSprites, h.r.EffectiveMode(core.RenderFluid))
}

func TestPointSpriteBuffer_UnmapClamps(t *testing.T) {
	dev := newFakeDevice()
	b, err := NewPointSpriteBuffer(dev, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, b.Capacity())

	s := b.Map()
	require.Len(t, s, 4)
	s[3] = core.ParticleSprite{Pos: [3]float32{1, 2, 3}, Density: 0.25}
	assert.True(t, b.Mapped())
	b.Unmap(10)
	assert.False(t, b.Mapped())
	assert.Equal(t, 4, b.Count())
	assert.Equal(t, core.SpriteBytes(s), dev.buffers[b.ID()])

	b.Map()
	b.Unmap(-1)
	assert.Equal(t, 0, b.Count())

	b.Unmap(2)
	assert.Equal(t, 0, b.Count(), "Unmap without Map is ignored")

	_, err = NewPointSpriteBuffer(dev, 0)
	assert.Error(t, err)

	b.Release()
	_, ok := dev.buffers[b.ID()]
	assert.False(t, ok)
}

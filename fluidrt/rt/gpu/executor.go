package gpu

import (
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/gekko-fluid/fluidrt/rt/core"
	"github.com/gekko3d/gekko-fluid/fluidrt/rt/render"
)

// SubmitStats counts what the last Submit actually recorded.
type SubmitStats struct {
	Passes  int
	Draws   int
	Skipped int
}

func (d *Device) LastSubmit() SubmitStats { return d.last }

type passInfo struct {
	format   wgpu.TextureFormat
	hasDepth bool
	w, h     int
	// attached is the texture written by the pass, 0 for the default target.
	attached render.TextureID
}

type executor struct {
	d      *Device
	enc    *wgpu.CommandEncoder
	state  render.State
	pass   *wgpu.RenderPassEncoder
	open   bool
	info   passInfo
	groups []*wgpu.BindGroup
	stats  SubmitStats
}

// Submit records cl into one command encoder and submits it. Commands are
// executed strictly in list order, one render pass per planned pass.
func (d *Device) Submit(cl *render.CommandList) {
	if cl == nil || cl.Len() == 0 {
		return
	}

	draws, maxBlock := 0, 16
	for _, c := range cl.Cmds {
		switch {
		case c.Op.IsDraw():
			draws++
		case c.Op == render.OpUseProgram:
			if p := d.programs[c.Program]; p != nil && p.info.BlockSize > maxBlock {
				maxBlock = p.info.BlockSize
			}
		}
	}
	if err := d.ensureRing(d.ring.plan(draws, maxBlock, d.uniformAlign)); err != nil {
		d.Logger.Errorf("submit: %v", err)
		return
	}

	enc, err := d.Device.CreateCommandEncoder(nil)
	if err != nil {
		d.Logger.Errorf("submit: CreateCommandEncoder failed: %v", err)
		return
	}
	x := &executor{d: d, enc: enc, state: render.DefaultState()}
	next := 0
	for _, pl := range planPasses(cl, x.drawable) {
		if len(pl.draws) == 0 {
			if x.begin(pl) {
				x.endPass()
			}
			continue
		}
		for n, i := range pl.draws {
			x.advance(cl, next, i)
			next = i + 1
			if n == 0 && !x.begin(pl) {
				x.stats.Skipped += len(pl.draws)
				break
			}
			x.draw(cl.Cmds[i])
		}
		x.endPass()
	}

	d.flushRing()
	cmd, err := enc.Finish(nil)
	if err != nil {
		d.Logger.Errorf("submit: encoder finish failed: %v", err)
	} else {
		d.Queue.Submit(cmd)
	}
	for _, g := range x.groups {
		g.Release()
	}
	d.last = x.stats
}

// advance applies the state and uniform commands in cl.Cmds[from:to].
// Draws in that range were dropped by the plan.
func (x *executor) advance(cl *render.CommandList, from, to int) {
	for _, c := range cl.Cmds[from:to] {
		switch {
		case c.Op.IsDraw(), c.Op == render.OpClear:
		case c.Op == render.OpUniform:
			if p := x.d.programs[x.state.Program]; p != nil {
				render.PutUniform(p.block, c.Uniform, &c.Value)
			}
		default:
			x.state.Apply(c)
		}
	}
}

// drawable reports whether c can be issued with state s. Draws without a
// program or vertex buffer are counted as skipped.
func (x *executor) drawable(c render.Command, s *render.State) bool {
	d := x.d
	p := d.programs[s.Program]
	if p == nil {
		x.stats.Skipped++
		return false
	}
	if p.desc.Input == render.InputNone {
		return true
	}
	vb := d.buffers[c.Buffer]
	if vb == nil {
		d.warnOnce("vb:"+p.desc.Name, "%s: draw without a vertex buffer", p.desc.Name)
		x.stats.Skipped++
		return false
	}
	return vb.size >= core.SpriteStride
}

func (x *executor) endPass() {
	if !x.open {
		return
	}
	if err := x.pass.End(); err != nil {
		x.d.warnOnce("pass-end", "render pass End failed: %v", err)
	}
	x.open = false
	x.pass = nil
}

// resolve finds the views a pass on t renders into.
func (x *executor) resolve(t target) (color, depth *wgpu.TextureView, info passInfo, ok bool) {
	d := x.d
	if t.fb == render.FramebufferDefault {
		if d.def.view == nil || d.def.w <= 0 || d.def.h <= 0 {
			d.warnOnce("no-default", "no default target set; draws to it are dropped")
			return nil, nil, info, false
		}
		info = passInfo{format: d.def.format, w: d.def.w, h: d.def.h}
		if d.def.depth != nil {
			depth = d.def.depth.view
			info.hasDepth = true
		}
		return d.def.view, depth, info, true
	}

	fb := d.framebuffers[t.fb]
	switch {
	case fb == nil:
		d.warnOnce("fb-unknown", "framebuffer %d: %v", t.fb, render.ErrUnknownHandle)
		return nil, nil, info, false
	case fb.broken != nil:
		d.warnOnce("fb-broken:"+fb.desc.Label, "skipping passes into %q: %v", fb.desc.Label, fb.broken)
		return nil, nil, info, false
	case fb.w == 0 || fb.h == 0:
		d.warnOnce("fb-empty:"+fb.desc.Label, "framebuffer %q used before it was sized", fb.desc.Label)
		return nil, nil, info, false
	case t.attachment < 0 || t.attachment >= len(fb.colors):
		d.warnOnce("fb-attachment:"+fb.desc.Label, "framebuffer %q has no colour attachment %d", fb.desc.Label, t.attachment)
		return nil, nil, info, false
	}
	tid := fb.colors[t.attachment]
	tex := d.textures[tid]
	info = passInfo{format: wgpuFormat(tex.format), w: fb.w, h: fb.h, attached: tid}
	if fb.depth != nil && fb.depth.view != nil {
		depth = fb.depth.view
		info.hasDepth = true
	}
	return tex.view, depth, info, true
}

func (x *executor) begin(pl passPlan) bool {
	color, depth, info, ok := x.resolve(pl.target)
	if !ok {
		return false
	}
	ca := wgpu.RenderPassColorAttachment{
		View:    color,
		LoadOp:  wgpu.LoadOpLoad,
		StoreOp: wgpu.StoreOpStore,
	}
	var da *wgpu.RenderPassDepthStencilAttachment
	if depth != nil {
		da = &wgpu.RenderPassDepthStencilAttachment{
			View:         depth,
			DepthLoadOp:  wgpu.LoadOpLoad,
			DepthStoreOp: wgpu.StoreOpStore,
		}
	}
	if pc := pl.clear; pl.loadClear() {
		if pc.mask&render.ClearColor != 0 {
			ca.LoadOp = wgpu.LoadOpClear
			ca.ClearValue = wgpu.Color{
				R: float64(pc.color[0]),
				G: float64(pc.color[1]),
				B: float64(pc.color[2]),
				A: float64(pc.color[3]),
			}
		}
		if da != nil && pc.mask&render.ClearDepth != 0 {
			da.DepthLoadOp = wgpu.LoadOpClear
			da.DepthClearValue = pc.depth
		}
	}

	x.pass = x.enc.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments:       []wgpu.RenderPassColorAttachment{ca},
		DepthStencilAttachment: da,
	})
	x.open = true
	x.info = info
	x.stats.Passes++
	return true
}

func blendableFormat(f wgpu.TextureFormat) bool {
	switch f {
	case wgpu.TextureFormatR32Float, wgpu.TextureFormatDepth32Float, wgpu.TextureFormatUndefined:
		return false
	}
	return true
}

func (x *executor) draw(c render.Command) {
	d := x.d
	p := d.programs[x.state.Program]
	if p == nil {
		x.stats.Skipped++
		return
	}

	var vb *buffer
	count := c.Count
	if p.desc.Input != render.InputNone {
		if vb = d.buffers[c.Buffer]; vb == nil {
			x.stats.Skipped++
			return
		}
		count = min(count, uint32(vb.size/core.SpriteStride))
	}

	blend := x.state.Blend
	if blend.Enabled && !blendableFormat(x.info.format) {
		d.warnOnce("blend:"+p.desc.Name, "%s: blending disabled on non-blendable target format %v", p.desc.Name, x.info.format)
		blend = render.BlendDisabled
	}
	pl := d.pipeline(p, pipelineKey{
		format:     x.info.format,
		depth:      x.info.hasDepth,
		blend:      blend,
		depthTest:  x.state.DepthTest,
		depthWrite: x.state.DepthMask,
	})
	if pl == nil {
		x.stats.Skipped++
		return
	}

	off := d.ring.alloc(p.block)
	if off < 0 {
		d.warnOnce("ring-full", "uniform ring exhausted")
		x.stats.Skipped++
		return
	}
	ubg, err := d.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  p.desc.Name + " uniforms",
		Layout: p.uniformLayout,
		Entries: []wgpu.BindGroupEntry{{
			Binding: 0,
			Buffer:  d.ring.buf,
			Offset:  uint64(off),
			Size:    uint64(len(p.block)),
		}},
	})
	if err != nil {
		d.warnOnce("ubg:"+p.desc.Name, "%s: uniform bind group: %v", p.desc.Name, err)
		x.stats.Skipped++
		return
	}
	x.groups = append(x.groups, ubg)

	var tbg *wgpu.BindGroup
	if p.textureLayout != nil {
		tbg, err = d.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Label:   p.desc.Name + " textures",
			Layout:  p.textureLayout,
			Entries: x.textureEntries(p),
		})
		if err != nil {
			d.warnOnce("tbg:"+p.desc.Name, "%s: texture bind group: %v", p.desc.Name, err)
			x.stats.Skipped++
			return
		}
		x.groups = append(x.groups, tbg)
	}

	x.pass.SetPipeline(pl)
	x.pass.SetBindGroup(0, ubg, nil)
	if tbg != nil {
		x.pass.SetBindGroup(1, tbg, nil)
	}

	vx, vy, vw, vh := viewportRect(x.state.Viewport, x.info.w, x.info.h)
	x.pass.SetViewport(float32(vx), float32(vy), float32(vw), float32(vh), 0, 1)
	sr := render.Rect{W: x.info.w, H: x.info.h}
	if x.state.ScissorTest {
		sr = x.state.Scissor
	}
	sx, sy, sw, sh := scissorRect(sr, x.info.w, x.info.h)
	x.pass.SetScissorRect(uint32(sx), uint32(sy), uint32(sw), uint32(sh))

	switch p.desc.Input {
	case render.InputSprites:
		x.pass.SetVertexBuffer(0, vb.buf, 0, vb.buf.GetSize())
		x.pass.Draw(6, count, 0, 0)
	case render.InputPoints:
		x.pass.SetVertexBuffer(0, vb.buf, 0, vb.buf.GetSize())
		x.pass.Draw(count, 1, 0, 0)
	default:
		x.pass.Draw(6, 1, 0, 0)
	}
	x.stats.Draws++
}

// textureEntries binds the texture units a program declares. Empty units,
// kind mismatches and the texture being rendered into get a placeholder.
func (x *executor) textureEntries(p *program) []wgpu.BindGroupEntry {
	d := x.d
	entries := make([]wgpu.BindGroupEntry, 0, len(p.desc.Textures)+1)
	for i, decl := range p.desc.Textures {
		id := x.state.Textures[i]
		tex := d.textures[id]
		switch {
		case tex == nil || tex.view == nil:
			tex = d.placeholder[decl.Kind]
		case id == x.info.attached:
			d.warnOnce("feedback:"+p.desc.Name, "%s: unit %d samples its own render target", p.desc.Name, i)
			tex = d.placeholder[decl.Kind]
		case !kindCompatible(tex.kind, decl.Kind):
			d.warnOnce("kind:"+p.desc.Name, "%s: unit %d expects %v texture", p.desc.Name, i, decl.Kind)
			tex = d.placeholder[decl.Kind]
		}
		entries = append(entries, wgpu.BindGroupEntry{Binding: uint32(i), TextureView: tex.view})
	}
	sampler := d.nearest
	if p.filtering {
		sampler = d.linear
	}
	entries = append(entries, wgpu.BindGroupEntry{Binding: uint32(len(p.desc.Textures)), Sampler: sampler})
	return entries
}

// kindCompatible reports whether a texture of kind have may be bound where
// want is declared. Colour textures can also be read with textureLoad.
func kindCompatible(have, want render.TextureKind) bool {
	if have == want {
		return true
	}
	return have == render.TextureColor && want == render.TextureData
}

// viewportRect converts a bottom-left origin viewport into the top-left
// origin WebGPU uses, clamped to a w x h target. An empty rect means the
// whole target.
func viewportRect(r render.Rect, w, h int) (x, y, vw, vh int) {
	if r.W <= 0 || r.H <= 0 {
		return 0, 0, w, h
	}
	x0, y0 := clampInt(r.X, 0, w), clampInt(r.Y, 0, h)
	x1, y1 := clampInt(r.X+r.W, 0, w), clampInt(r.Y+r.H, 0, h)
	if x1 <= x0 || y1 <= y0 {
		return 0, 0, w, h
	}
	return x0, h - y1, x1 - x0, y1 - y0
}

// scissorRect is viewportRect for scissor boxes, where an empty box stays
// empty.
func scissorRect(r render.Rect, w, h int) (x, y, sw, sh int) {
	x0, y0 := clampInt(r.X, 0, w), clampInt(r.Y, 0, h)
	x1, y1 := clampInt(r.X+r.W, 0, w), clampInt(r.Y+r.H, 0, h)
	if x1 < x0 {
		x1 = x0
	}
	if y1 < y0 {
		y1 = y0
	}
	return x0, h - y1, x1 - x0, y1 - y0
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

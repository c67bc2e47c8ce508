package gpu

import "github.com/gekko3d/gekko-fluid/fluidrt/rt/render"

// target is one colour attachment of a framebuffer plus its depth.
type target struct {
	fb         render.FramebufferID
	attachment int
}

type clearRequest struct {
	mask  render.ClearMask
	color [4]float32
	depth float32
}

// passPlan is one render pass: the target it renders into, the clear folded
// into its load ops and the indices of the draw commands it issues.
type passPlan struct {
	target target
	clear  clearRequest
	draws  []int
}

func (p passPlan) loadClear() bool { return p.clear.mask != 0 }

// planPasses groups the draws of cl into render passes in list order. A
// change of target ends the open pass. Clears are folded into the load op
// of the next pass on the same target; a clear no draw consumes becomes a
// pass of its own. live reports whether a draw can be issued at all with
// state s; nil accepts every draw with a non-zero count.
func planPasses(cl *render.CommandList, live func(c render.Command, s *render.State) bool) []passPlan {
	var plans []passPlan
	st := render.DefaultState()
	open := -1
	var pending *target
	var pendingClear clearRequest

	current := func() target { return target{fb: st.Framebuffer, attachment: st.DrawBuffer} }
	flush := func() {
		if pending != nil {
			plans = append(plans, passPlan{target: *pending, clear: pendingClear})
			pending = nil
			pendingClear = clearRequest{}
		}
	}

	for i, c := range cl.Cmds {
		switch {
		case c.Op == render.OpBindFramebuffer || c.Op == render.OpSetDrawBuffer:
			st.Apply(c)
			if open >= 0 && plans[open].target != current() {
				open = -1
			}
		case c.Op == render.OpClear:
			t := current()
			open = -1
			if pending != nil && *pending != t {
				flush()
			}
			if pending == nil {
				pending = &t
			}
			if c.Mask&render.ClearColor != 0 {
				pendingClear.color = c.Color
			}
			if c.Mask&render.ClearDepth != 0 {
				pendingClear.depth = c.Depth
			}
			pendingClear.mask |= c.Mask
		case c.Op.IsDraw():
			if c.Count == 0 || (live != nil && !live(c, &st)) {
				continue
			}
			t := current()
			if open < 0 || plans[open].target != t {
				p := passPlan{target: t}
				if pending != nil {
					if *pending == t {
						p.clear = pendingClear
						pending = nil
						pendingClear = clearRequest{}
					} else {
						flush()
					}
				}
				plans = append(plans, p)
				open = len(plans) - 1
			}
			plans[open].draws = append(plans[open].draws, i)
		default:
			st.Apply(c)
		}
	}
	flush()
	return plans
}

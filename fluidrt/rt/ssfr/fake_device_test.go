package ssfr

import (
	"fmt"
	"sync"

	"github.com/gekko3d/gekko-fluid/fluidrt/rt/render"
)

// fakeDevice records every resource call and keeps a copy of each
// submitted command list.
type fakeDevice struct {
	maxColors int

	nextID    uint32
	fbs       map[render.FramebufferID]*fakeFramebuffer
	programs  map[render.ProgramID]render.Program
	buffers   map[render.BufferID][]byte
	failNames map[string]bool

	// incompleteAfter makes every resize beyond the first n fail.
	incompleteAfter int
	resizes         int

	submits []render.CommandList
}

type fakeFramebuffer struct {
	desc     render.FramebufferDesc
	textures []render.TextureID
	w, h     int
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		maxColors:       8,
		fbs:             map[render.FramebufferID]*fakeFramebuffer{},
		programs:        map[render.ProgramID]render.Program{},
		buffers:         map[render.BufferID][]byte{},
		failNames:       map[string]bool{},
		incompleteAfter: -1,
	}
}

func (d *fakeDevice) id() uint32 {
	d.nextID++
	return d.nextID
}

func (d *fakeDevice) MaxColorAttachments() int { return d.maxColors }

func (d *fakeDevice) CreateFramebuffer(desc render.FramebufferDesc) (render.FramebufferID, error) {
	if len(desc.Colors) > d.maxColors {
		return 0, &render.IncompleteError{Label: desc.Label, Reason: "too many colour attachments"}
	}
	fb := &fakeFramebuffer{desc: desc}
	for range desc.Colors {
		fb.textures = append(fb.textures, render.TextureID(d.id()))
	}
	id := render.FramebufferID(d.id())
	d.fbs[id] = fb
	return id, nil
}

func (d *fakeDevice) ResizeFramebuffer(id render.FramebufferID, w, h int) error {
	fb, ok := d.fbs[id]
	if !ok {
		return render.ErrUnknownHandle
	}
	d.resizes++
	if d.incompleteAfter >= 0 && d.resizes > d.incompleteAfter {
		return &render.IncompleteError{Label: fb.desc.Label, Reason: "missing attachment"}
	}
	fb.w, fb.h = w, h
	return nil
}

func (d *fakeDevice) ColorTexture(id render.FramebufferID, attachment int) render.TextureID {
	fb, ok := d.fbs[id]
	if !ok || attachment < 0 || attachment >= len(fb.textures) {
		return 0
	}
	return fb.textures[attachment]
}

func (d *fakeDevice) ReleaseFramebuffer(id render.FramebufferID) { delete(d.fbs, id) }

func (d *fakeDevice) CreateProgram(desc render.ProgramDesc) (render.Program, error) {
	if d.failNames[desc.Name] {
		return render.Program{}, fmt.Errorf("compile %s: error: unresolved identifier", desc.Name)
	}
	p := render.NewProgram(render.ProgramID(d.id()), desc.Name, desc.Uniforms)
	d.programs[p.ID] = p
	return p, nil
}

func (d *fakeDevice) ReleaseProgram(id render.ProgramID) { delete(d.programs, id) }

func (d *fakeDevice) CreateVertexBuffer(label string, size int) (render.BufferID, error) {
	id := render.BufferID(d.id())
	d.buffers[id] = make([]byte, size)
	return id, nil
}

func (d *fakeDevice) WriteBuffer(id render.BufferID, offset int, data []byte) {
	buf, ok := d.buffers[id]
	if !ok || offset >= len(buf) {
		return
	}
	copy(buf[offset:], data)
}

func (d *fakeDevice) ReleaseBuffer(id render.BufferID) { delete(d.buffers, id) }

func (d *fakeDevice) Submit(cl *render.CommandList) {
	cp := render.CommandList{Cmds: append([]render.Command(nil), cl.Cmds...)}
	d.submits = append(d.submits, cp)
}

func (d *fakeDevice) last() *render.CommandList {
	if len(d.submits) == 0 {
		return nil
	}
	return &d.submits[len(d.submits)-1]
}

var _ render.Device = (*fakeDevice)(nil)

// captureLogger keeps every formatted line per level.
type captureLogger struct {
	mu     sync.Mutex
	warns  []string
	errors []string
}

func (l *captureLogger) DebugEnabled() bool             { return false }
func (l *captureLogger) SetDebug(bool)                  {}
func (l *captureLogger) Debugf(format string, a ...any) {}
func (l *captureLogger) Infof(format string, a ...any)  {}

func (l *captureLogger) Warnf(format string, a ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, fmt.Sprintf(format, a...))
}

func (l *captureLogger) Errorf(format string, a ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, fmt.Sprintf(format, a...))
}

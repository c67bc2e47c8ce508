package gpu

import (
	"fmt"
	"image"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/gekko-fluid/fluidrt/rt/render"
)

type texture struct {
	label  string
	format render.Format
	kind   render.TextureKind
	w, h   int
	tex    *wgpu.Texture
	view   *wgpu.TextureView
}

func (t *texture) release() {
	if t.view != nil {
		t.view.Release()
		t.view = nil
	}
	if t.tex != nil {
		t.tex.Release()
		t.tex = nil
	}
}

type framebuffer struct {
	desc   render.FramebufferDesc
	colors []render.TextureID
	depth  *texture
	w, h   int
	// broken holds the last allocation failure; passes targeting the
	// framebuffer are skipped until a resize succeeds.
	broken error
}

// defaultTarget is what FramebufferDefault renders into, usually the
// current swapchain view. The device owns a matching depth buffer.
type defaultTarget struct {
	view   *wgpu.TextureView
	format wgpu.TextureFormat
	w, h   int
	depth  *texture
}

func (t *defaultTarget) releaseDepth() {
	if t.depth != nil {
		t.depth.release()
		t.depth = nil
	}
}

func wgpuFormat(f render.Format) wgpu.TextureFormat {
	switch f {
	case render.FormatR16Float:
		return wgpu.TextureFormatR16Float
	case render.FormatR32Float:
		return wgpu.TextureFormatR32Float
	case render.FormatRGBA8:
		return wgpu.TextureFormatRGBA8Unorm
	case render.FormatRGBA16Float:
		return wgpu.TextureFormatRGBA16Float
	case render.FormatDepth32:
		return wgpu.TextureFormatDepth32Float
	}
	return wgpu.TextureFormatUndefined
}

// kindOf reports how shaders may read a texture of format f.
func kindOf(f render.Format) render.TextureKind {
	switch f {
	case render.FormatRGBA8, render.FormatRGBA16Float:
		return render.TextureColor
	}
	return render.TextureData
}

// SetDefaultTarget points FramebufferDefault at view for the next
// submissions. A depth buffer of the same size is (re)allocated as needed.
func (d *Device) SetDefaultTarget(view *wgpu.TextureView, format wgpu.TextureFormat, width, height int) error {
	d.def.view = view
	d.def.format = format
	if d.def.depth != nil && d.def.w == width && d.def.h == height {
		return nil
	}
	d.def.w, d.def.h = width, height
	d.def.releaseDepth()
	if width <= 0 || height <= 0 {
		return nil
	}
	depth := &texture{label: "default depth", format: render.FormatDepth32, kind: render.TextureData}
	if err := d.allocTexture(depth, width, height, wgpu.TextureUsageRenderAttachment); err != nil {
		return err
	}
	d.def.depth = depth
	return nil
}

func (d *Device) allocTexture(t *texture, w, h int, usage wgpu.TextureUsage) error {
	t.release()
	var err error
	t.tex, err = d.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         t.label,
		Size:          wgpu.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpuFormat(t.format),
		Usage:         usage,
	})
	if err != nil {
		return fmt.Errorf("create texture %q: %w", t.label, err)
	}
	t.view, err = t.tex.CreateView(nil)
	if err != nil {
		t.release()
		return fmt.Errorf("create view %q: %w", t.label, err)
	}
	t.w, t.h = w, h
	return nil
}

func (d *Device) CreateFramebuffer(desc render.FramebufferDesc) (render.FramebufferID, error) {
	if len(desc.Colors) > d.maxColorAttachments {
		return 0, &render.IncompleteError{
			Label:  desc.Label,
			Reason: fmt.Sprintf("%d colour attachments exceed device limit %d", len(desc.Colors), d.maxColorAttachments),
		}
	}
	fb := &framebuffer{desc: desc}
	for i, c := range desc.Colors {
		if wgpuFormat(c.Format) == wgpu.TextureFormatUndefined || c.Format == render.FormatDepth32 {
			return 0, &render.IncompleteError{
				Label:  desc.Label,
				Reason: fmt.Sprintf("attachment %d (%s) has unusable format %s", i, c.Name, c.Format),
			}
		}
		id := render.TextureID(d.newID())
		d.textures[id] = &texture{
			label:  desc.Label + "/" + c.Name,
			format: c.Format,
			kind:   kindOf(c.Format),
		}
		fb.colors = append(fb.colors, id)
	}
	if desc.Depth {
		fb.depth = &texture{label: desc.Label + "/depth", format: render.FormatDepth32, kind: render.TextureData}
	}
	id := render.FramebufferID(d.newID())
	d.framebuffers[id] = fb
	return id, nil
}

// ResizeFramebuffer swaps every attachment of fb for a new GPU texture of
// the given size. Texture handles returned by ColorTexture stay the same.
func (d *Device) ResizeFramebuffer(id render.FramebufferID, width, height int) error {
	fb, ok := d.framebuffers[id]
	if !ok {
		return fmt.Errorf("resize framebuffer %d: %w", id, render.ErrUnknownHandle)
	}
	if width <= 0 || height <= 0 {
		fb.broken = &render.IncompleteError{Label: fb.desc.Label, Reason: fmt.Sprintf("zero-area size %dx%d", width, height)}
		return fb.broken
	}
	fb.broken = nil
	usage := wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding
	for _, tid := range fb.colors {
		t := d.textures[tid]
		if err := d.allocTexture(t, width, height, usage); err != nil {
			fb.broken = &render.IncompleteError{Label: fb.desc.Label, Reason: err.Error()}
			return fb.broken
		}
	}
	if fb.depth != nil {
		if err := d.allocTexture(fb.depth, width, height, wgpu.TextureUsageRenderAttachment); err != nil {
			fb.broken = &render.IncompleteError{Label: fb.desc.Label, Reason: err.Error()}
			return fb.broken
		}
	}
	fb.w, fb.h = width, height
	d.Logger.Debugf("framebuffer %q resized to %dx%d", fb.desc.Label, width, height)
	return nil
}

func (d *Device) ColorTexture(id render.FramebufferID, attachment int) render.TextureID {
	fb, ok := d.framebuffers[id]
	if !ok || attachment < 0 || attachment >= len(fb.colors) {
		return 0
	}
	return fb.colors[attachment]
}

func (d *Device) ReleaseFramebuffer(id render.FramebufferID) {
	fb, ok := d.framebuffers[id]
	if !ok {
		return
	}
	for _, tid := range fb.colors {
		if t := d.textures[tid]; t != nil {
			t.release()
		}
		delete(d.textures, tid)
	}
	if fb.depth != nil {
		fb.depth.release()
	}
	delete(d.framebuffers, id)
}

// CreateColorTexture uploads img as a filterable RGBA8 texture.
func (d *Device) CreateColorTexture(label string, img *image.RGBA) (render.TextureID, error) {
	b := img.Bounds()
	t := &texture{label: label, format: render.FormatRGBA8, kind: render.TextureColor}
	if err := d.allocTexture(t, b.Dx(), b.Dy(), wgpu.TextureUsageTextureBinding|wgpu.TextureUsageCopyDst); err != nil {
		return 0, err
	}
	if err := d.writeLayer(t.tex, 0, img); err != nil {
		t.release()
		return 0, err
	}
	id := render.TextureID(d.newID())
	d.textures[id] = t
	return id, nil
}

// CreateCubemap uploads six square faces in +X, -X, +Y, -Y, +Z, -Z order.
func (d *Device) CreateCubemap(label string, faces [6]*image.RGBA) (render.TextureID, error) {
	size := faces[0].Bounds().Dx()
	for i, f := range faces {
		b := f.Bounds()
		if b.Dx() != size || b.Dy() != size {
			return 0, fmt.Errorf("cubemap %q: face %d is %dx%d, want %dx%d", label, i, b.Dx(), b.Dy(), size, size)
		}
	}
	t, err := d.newCube(label, size)
	if err != nil {
		return 0, err
	}
	for i, f := range faces {
		if err := d.writeLayer(t.tex, uint32(i), f); err != nil {
			t.release()
			return 0, err
		}
	}
	id := render.TextureID(d.newID())
	d.textures[id] = t
	return id, nil
}

func (d *Device) newCube(label string, size int) (*texture, error) {
	t := &texture{label: label, format: render.FormatRGBA8, kind: render.TextureCube, w: size, h: size}
	var err error
	t.tex, err = d.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         label,
		Size:          wgpu.Extent3D{Width: uint32(size), Height: uint32(size), DepthOrArrayLayers: 6},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatRGBA8Unorm,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create cubemap %q: %w", label, err)
	}
	t.view, err = t.tex.CreateView(&wgpu.TextureViewDescriptor{
		Label:           label + " view",
		Format:          wgpu.TextureFormatRGBA8Unorm,
		Dimension:       wgpu.TextureViewDimensionCube,
		BaseMipLevel:    0,
		MipLevelCount:   1,
		BaseArrayLayer:  0,
		ArrayLayerCount: 6,
	})
	if err != nil {
		t.release()
		return nil, fmt.Errorf("create cubemap view %q: %w", label, err)
	}
	return t, nil
}

func (d *Device) writeLayer(tex *wgpu.Texture, layer uint32, img *image.RGBA) error {
	b := img.Bounds()
	w, h := uint32(b.Dx()), uint32(b.Dy())
	return d.Queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  tex,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{X: 0, Y: 0, Z: layer},
			Aspect:   wgpu.TextureAspectAll,
		},
		img.Pix,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(img.Stride),
			RowsPerImage: h,
		},
		&wgpu.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	)
}

// ReleaseTexture frees a texture created with CreateColorTexture or
// CreateCubemap. Framebuffer attachments are released with their owner.
func (d *Device) ReleaseTexture(id render.TextureID) {
	t, ok := d.textures[id]
	if !ok {
		return
	}
	for _, fb := range d.framebuffers {
		for _, c := range fb.colors {
			if c == id {
				return
			}
		}
	}
	t.release()
	delete(d.textures, id)
}

// createPlaceholders makes the 1x1 textures bound to units a command list
// left empty, so bind groups stay complete.
func (d *Device) createPlaceholders() error {
	data := &texture{label: "placeholder data", format: render.FormatR32Float, kind: render.TextureData}
	if err := d.allocTexture(data, 1, 1, wgpu.TextureUsageTextureBinding); err != nil {
		return err
	}
	d.placeholder[render.TextureData] = data

	black := image.NewRGBA(image.Rect(0, 0, 1, 1))
	color := &texture{label: "placeholder color", format: render.FormatRGBA8, kind: render.TextureColor}
	if err := d.allocTexture(color, 1, 1, wgpu.TextureUsageTextureBinding|wgpu.TextureUsageCopyDst); err != nil {
		return err
	}
	if err := d.writeLayer(color.tex, 0, black); err != nil {
		return err
	}
	d.placeholder[render.TextureColor] = color

	cube, err := d.newCube("placeholder cube", 1)
	if err != nil {
		return err
	}
	for i := uint32(0); i < 6; i++ {
		if err := d.writeLayer(cube.tex, i, black); err != nil {
			return err
		}
	}
	d.placeholder[render.TextureCube] = cube
	return nil
}

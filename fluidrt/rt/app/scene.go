package app

import (
	"fmt"

	"github.com/gekko3d/gekko-fluid/fluidrt/rt/core"
	"github.com/gekko3d/gekko-fluid/fluidrt/rt/render"
	"github.com/gekko3d/gekko-fluid/fluidrt/rt/shaders"
)

var sceneDesc = render.FramebufferDesc{
	Label:  "scene",
	Colors: []render.AttachmentDesc{{Name: "color", Format: render.FormatRGBA8}},
	Depth:  true,
}

var windowClear = [4]float32{0, 0, 0, 1}

// SceneTarget renders the opaque scene (the sky) off-screen so the fluid
// composite can refract it, then copies it to the window.
type SceneTarget struct {
	dev render.Device
	fb  render.FramebufferID

	background render.Program
	blit       render.Program
	bgOrtho    render.Uniform
	bgInvVP    render.Uniform
	blitOrtho  render.Uniform

	w, h int
	cl   render.CommandList
}

func NewSceneTarget(dev render.Device) (*SceneTarget, error) {
	fb, err := dev.CreateFramebuffer(sceneDesc)
	if err != nil {
		return nil, fmt.Errorf("scene target: %w", err)
	}
	s := &SceneTarget{dev: dev, fb: fb}

	s.background, err = dev.CreateProgram(render.ProgramDesc{
		Name:          "scene background",
		Source:        shaders.BackgroundWGSL,
		VertexEntry:   "vs_quad",
		FragmentEntry: "fs_background",
		Uniforms: []render.UniformDecl{
			{Name: "ortho", Type: render.UniformMat4},
			{Name: "inv_view_proj", Type: render.UniformMat4},
		},
		Textures: []render.TextureDecl{{Name: "sky", Kind: render.TextureCube}},
	})
	if err != nil {
		s.Release()
		return nil, fmt.Errorf("scene target: %w", err)
	}
	s.blit, err = dev.CreateProgram(render.ProgramDesc{
		Name:          "scene blit",
		Source:        shaders.BlitWGSL,
		VertexEntry:   "vs_quad",
		FragmentEntry: "fs_blit",
		Uniforms:      []render.UniformDecl{{Name: "ortho", Type: render.UniformMat4}},
		Textures:      []render.TextureDecl{{Name: "color", Kind: render.TextureColor}},
	})
	if err != nil {
		s.Release()
		return nil, fmt.Errorf("scene target: %w", err)
	}
	s.bgOrtho = s.background.Uniform("ortho")
	s.bgInvVP = s.background.Uniform("inv_view_proj")
	s.blitOrtho = s.blit.Uniform("ortho")
	return s, nil
}

// Resize reallocates the off-screen target when the window size changes.
func (s *SceneTarget) Resize(w, h int) error {
	if w <= 0 || h <= 0 || (w == s.w && h == s.h) {
		return nil
	}
	if err := s.dev.ResizeFramebuffer(s.fb, w, h); err != nil {
		return err
	}
	s.w, s.h = w, h
	return nil
}

// ColorTexture is what the fluid composite samples as the scene behind it.
func (s *SceneTarget) ColorTexture() render.TextureID {
	return s.dev.ColorTexture(s.fb, 0)
}

// Draw renders the sky into the scene target and copies it to the window,
// leaving the window depth cleared for the particle passes.
func (s *SceneTarget) Draw(cam core.CameraMatrices, skybox render.TextureID) {
	if s.w <= 0 || s.h <= 0 {
		return
	}
	cl := &s.cl
	cl.Reset()

	cl.BindFramebuffer(s.fb)
	cl.Viewport(0, 0, s.w, s.h)
	cl.Clear(render.ClearColor|render.ClearDepth, windowClear, 1)
	cl.DepthTest(false)
	cl.DepthMask(false)
	cl.UseProgram(s.background)
	cl.SetMat4(s.bgOrtho, core.OrthoMatrix())
	cl.SetMat4(s.bgInvVP, cam.MVP.Inv())
	cl.BindTexture(0, skybox)
	cl.DrawQuad()
	cl.UnbindTexture(0)

	cl.UnbindFramebuffer()
	cl.Viewport(0, 0, s.w, s.h)
	cl.Clear(render.ClearColor|render.ClearDepth, windowClear, 1)
	cl.UseProgram(s.blit)
	cl.SetMat4(s.blitOrtho, core.OrthoMatrix())
	cl.BindTexture(0, s.ColorTexture())
	cl.DrawQuad()
	cl.UnbindTexture(0)
	cl.DepthTest(true)
	cl.DepthMask(true)

	s.dev.Submit(cl)
}

func (s *SceneTarget) Release() {
	if s.background.Valid() {
		s.dev.ReleaseProgram(s.background.ID)
	}
	if s.blit.Valid() {
		s.dev.ReleaseProgram(s.blit.ID)
	}
	s.dev.ReleaseFramebuffer(s.fb)
}

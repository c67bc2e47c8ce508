// Package app is the interactive fluid viewer: a glfw window with a
// WebGPU surface, a particle source, the sky scene and the ssfr renderer.
package app

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/gekko3d/gekko-fluid/fluidrt/rt/core"
	"github.com/gekko3d/gekko-fluid/fluidrt/rt/gpu"
	"github.com/gekko3d/gekko-fluid/fluidrt/rt/render"
	"github.com/gekko3d/gekko-fluid/fluidrt/rt/ssfr"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
)

type App struct {
	Window   *glfw.Window
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Surface  *wgpu.Surface
	Config   *wgpu.SurfaceConfiguration

	Cfg    Config
	Logger core.Logger

	GPU      *gpu.Device
	Renderer *ssfr.Renderer
	Sprites  *ssfr.PointSpriteBuffer
	Source   ParticleSource
	Scene    *SceneTarget
	Skybox   render.TextureID

	Camera   *core.CameraState
	Fly      FlyCamera
	Controls Controls
	Profiler *Profiler

	presets *PresetWatcher

	recorder     *ReplayRecorder
	recordFile   *os.File
	recordFrames int

	MouseCaptured bool
	cursor        [2]float64
	cursorValid   bool
	look          mgl32.Vec2

	ParticleCount uint32

	LastTime   float64
	FrameCount int
	FPS        float64
	FPSTime    float64
	titleTime  float64
}

func NewApp(window *glfw.Window, cfg Config, logger core.Logger) *App {
	cam := cfg.CameraState()
	return &App{
		Window:   window,
		Cfg:      cfg,
		Logger:   core.OrNop(logger),
		Camera:   cam,
		Fly:      FlyCamera{State: cam},
		Profiler: NewProfiler(),
	}
}

func (a *App) Init() error {
	a.Instance = wgpu.CreateInstance(nil)
	a.Surface = a.Instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(a.Window))

	adapter, err := a.Instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: a.Surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return err
	}
	a.Adapter = adapter

	a.Device, err = adapter.RequestDevice(nil)
	if err != nil {
		return err
	}

	width, height := a.Window.GetFramebufferSize()
	caps := a.Surface.GetCapabilities(adapter)
	if len(caps.Formats) == 0 {
		return errors.New("surface reports no formats")
	}
	presentMode := wgpu.PresentModeFifo
	if !a.Cfg.Window.VSync && slices.Contains(caps.PresentModes, wgpu.PresentModeImmediate) {
		presentMode = wgpu.PresentModeImmediate
	}
	a.Config = &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      caps.Formats[0],
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: presentMode,
		AlphaMode:   caps.AlphaModes[0],
	}
	a.Surface.Configure(adapter, a.Device, a.Config)

	a.GPU, err = gpu.NewDevice(a.Device, a.Logger)
	if err != nil {
		return err
	}

	if err := a.initPresets(); err != nil {
		return err
	}

	a.Renderer = ssfr.New(a.GPU, a.Logger)
	a.Renderer.SetFBOFactor(a.Controls.FBOFactor)

	a.Sprites, err = ssfr.NewPointSpriteBuffer(a.GPU, a.Cfg.Particles.Max)
	if err != nil {
		return err
	}
	if err := a.initSource(); err != nil {
		return err
	}

	a.Scene, err = NewSceneTarget(a.GPU)
	if err != nil {
		return err
	}
	if err := a.Scene.Resize(width, height); err != nil {
		return err
	}
	if err := a.initSkybox(); err != nil {
		return err
	}

	a.LastTime = glfw.GetTime()
	a.titleTime = a.LastTime
	a.Logger.Infof("ready: %dx%d, %v, max %d particles", width, height, a.Config.Format, a.Cfg.Particles.Max)
	return nil
}

func (a *App) initPresets() error {
	presets := core.DefaultFluidPresets()
	if a.Cfg.Presets != "" {
		p, err := core.LoadFluidPresets(a.Cfg.Presets)
		if err != nil {
			return fmt.Errorf("fluid presets: %w", err)
		}
		presets = p
		if a.presets, err = WatchPresets(a.Cfg.Presets, a.Logger); err != nil {
			a.Logger.Warnf("preset hot reload disabled: %v", err)
		}
	}
	opts, idx := a.Cfg.DrawingOptions(presets)
	a.Controls = Controls{
		Options:     opts,
		Presets:     presets,
		PresetIndex: idx,
		FBOFactor:   core.ClampFactor(a.Cfg.Render.FBOFactor),
		UseDensity:  a.Cfg.Particles.UseDensity,
	}
	return nil
}

func (a *App) initSource() error {
	if a.Cfg.Replay == "" {
		a.Source = NewFountainSource(a.Cfg.Particles)
		return nil
	}
	src, err := OpenReplay(a.Cfg.Replay)
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	a.Logger.Infof("playing %d recorded frames from %s", src.Len(), a.Cfg.Replay)
	a.Source = src
	return nil
}

func (a *App) initSkybox() error {
	faces := ProceduralSkybox(a.Cfg.SkyboxSize)
	if a.Cfg.Skybox != "" {
		loaded, err := LoadSkybox(a.Cfg.Skybox, a.Cfg.SkyboxSize)
		if err != nil {
			a.Logger.Warnf("skybox: %v, using the procedural sky", err)
		} else {
			faces = loaded
		}
	}
	id, err := a.GPU.CreateCubemap("skybox", faces)
	if err != nil {
		return fmt.Errorf("skybox: %w", err)
	}
	a.Skybox = id
	return nil
}

// StartRecording records the sprites of the next n frames to path.
func (a *App) StartRecording(path string, n int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	a.recordFile = f
	a.recorder = NewReplayRecorder(f)
	a.recordFrames = n
	a.Logger.Infof("recording %d frames to %s", n, path)
	return nil
}

func (a *App) stopRecording() {
	if a.recorder == nil {
		return
	}
	if err := a.recorder.Close(); err != nil {
		a.Logger.Errorf("recording: %v", err)
	}
	if err := a.recordFile.Close(); err != nil {
		a.Logger.Errorf("recording: %v", err)
	}
	a.Logger.Infof("recorded %d frames", a.recorder.Frames())
	a.recorder, a.recordFile = nil, nil
}

func (a *App) Resize(w, h int) {
	if w <= 0 || h <= 0 {
		return
	}
	a.Config.Width = uint32(w)
	a.Config.Height = uint32(h)
	a.Surface.Configure(a.Adapter, a.Device, a.Config)
	if err := a.Scene.Resize(w, h); err != nil {
		a.Logger.Errorf("scene resize: %v", err)
	}
}

// HandleKey applies the key binding for a key event.
func (a *App) HandleKey(key glfw.Key, action glfw.Action) {
	act := ActionFor(key, action)
	switch act {
	case ActionNone:
		return
	case ActionQuit:
		a.Window.SetShouldClose(true)
		return
	case ActionToggleMouse:
		a.MouseCaptured = !a.MouseCaptured
		a.cursorValid = false
		if a.MouseCaptured {
			a.Window.SetInputMode(glfw.CursorMode, glfw.CursorDisabled)
		} else {
			a.Window.SetInputMode(glfw.CursorMode, glfw.CursorNormal)
		}
		return
	}
	if !a.Controls.Apply(act) {
		return
	}
	a.Renderer.SetFBOFactor(a.Controls.FBOFactor)
	o := a.Controls.Options
	a.Logger.Debugf("mode=%s debug=%s blur=%v scale=%.2f fbo=%.2f preset=%s density=%v",
		o.RenderMode, o.DebugType, o.BlurEnabled, o.BlurScale, a.Controls.FBOFactor, presetName(o.FluidColor), a.Controls.UseDensity)
}

// HandleCursor accumulates mouse look while the cursor is captured.
func (a *App) HandleCursor(x, y float64) {
	if a.MouseCaptured && a.cursorValid {
		a.look = a.look.Add(mgl32.Vec2{float32(x - a.cursor[0]), float32(y - a.cursor[1])})
	}
	a.cursor = [2]float64{x, y}
	a.cursorValid = true
}

func (a *App) flyInput() FlyInput {
	in := FlyInput{Look: a.look}
	a.look = mgl32.Vec2{}
	axis := func(pos, neg glfw.Key) float32 {
		v := float32(0)
		if a.Window.GetKey(pos) == glfw.Press {
			v++
		}
		if a.Window.GetKey(neg) == glfw.Press {
			v--
		}
		return v
	}
	in.Move = mgl32.Vec3{
		axis(glfw.KeyD, glfw.KeyA),
		axis(glfw.KeySpace, glfw.KeyLeftControl),
		axis(glfw.KeyW, glfw.KeyS),
	}
	return in
}

func (a *App) Update() {
	now := glfw.GetTime()
	dt := float32(now - a.LastTime)
	a.LastTime = now

	if a.presets != nil {
		if p, ok := a.presets.Poll(); ok {
			a.Controls.SetPresets(p)
		}
	}

	a.Fly.Update(a.flyInput(), dt)

	a.Profiler.Time("source", func() { a.Source.Step(dt) })
	a.Profiler.Time("upload", a.uploadSprites)
	a.Profiler.SetCount("particles", int(a.ParticleCount))
}

// uploadSprites fills the sprite buffer from the source and records the
// frame when a recording is running.
func (a *App) uploadSprites() {
	dst := a.Sprites.Map()
	count := a.Source.Fill(dst, a.Cfg.DensityRange(), a.Controls.UseDensity)
	if a.recorder != nil {
		if err := a.recorder.WriteFrame(dst[:count]); err != nil {
			a.Logger.Errorf("recording: %v", err)
			a.stopRecording()
		} else if a.recorder.Frames() >= a.recordFrames {
			a.stopRecording()
		}
	}
	a.Sprites.Unmap(int(count))
	a.ParticleCount = count
}

func (a *App) Render() {
	nextTexture, err := a.Surface.GetCurrentTexture()
	if err != nil {
		a.Logger.Errorf("GetCurrentTexture failed: %v", err)
		return
	}
	defer nextTexture.Release()

	view, err := nextTexture.CreateView(nil)
	if err != nil {
		a.Logger.Errorf("CreateView failed: %v", err)
		return
	}
	defer view.Release()

	w, h := int(a.Config.Width), int(a.Config.Height)
	if err := a.GPU.SetDefaultTarget(view, a.Config.Format, w, h); err != nil {
		a.Logger.Errorf("default target: %v", err)
		return
	}

	cam := a.Camera.Matrices(w, h)

	a.Profiler.Time("scene", func() { a.Scene.Draw(cam, a.Skybox) })

	opts := a.Controls.Options
	opts.RenderMode = a.Renderer.EffectiveMode(opts.RenderMode)
	a.Profiler.Time("fluid", func() {
		a.Renderer.Render(ssfr.FrameInputs{
			Camera:     cam,
			Sprites:    a.Sprites,
			SceneColor: a.Scene.ColorTexture(),
			Skybox:     a.Skybox,
		}, a.ParticleCount, opts, w, h, a.Cfg.Render.ParticleRadius)
	})

	a.Surface.Present()
	a.updateStats()
}

func (a *App) updateStats() {
	now := glfw.GetTime()
	a.FrameCount++
	a.FPSTime += now - a.titleTime
	a.titleTime = now
	if a.FPSTime < 0.5 {
		return
	}
	a.FPS = float64(a.FrameCount) / a.FPSTime
	a.FrameCount = 0
	a.FPSTime = 0

	st := a.Renderer.FrameStats()
	sub := a.GPU.LastSubmit()
	a.Profiler.SetCount("draws", sub.Draws)
	a.Profiler.SetCount("skipped", sub.Skipped)
	a.Window.SetTitle(fmt.Sprintf("%s | %s %s | %.0f fps | %d particles | fbo %dx%d | %s | %s",
		a.Cfg.Window.Title, st.Mode, a.Controls.Options.DebugType, a.FPS, st.Particles,
		st.FBOWidth, st.FBOHeight, presetName(a.Controls.Options.FluidColor), a.Profiler.Summary()))
	if a.Logger.DebugEnabled() {
		a.Logger.Debugf("\n%s", a.Profiler.GetStatsString())
	}
}

func presetName(c *core.FluidColor) string {
	if c == nil {
		return "none"
	}
	return c.Name
}

// Close releases GPU resources in reverse creation order.
func (a *App) Close() {
	a.stopRecording()
	if a.presets != nil {
		a.presets.Close()
	}
	if a.GPU != nil {
		if a.Skybox != 0 {
			a.GPU.ReleaseTexture(a.Skybox)
		}
		if a.Scene != nil {
			a.Scene.Release()
		}
		if a.Sprites != nil {
			a.Sprites.Release()
		}
		if a.Renderer != nil {
			a.Renderer.Release()
		}
		a.GPU.Release()
	}
	if a.Device != nil {
		a.Device.Release()
	}
	if a.Surface != nil {
		a.Surface.Release()
	}
	if a.Adapter != nil {
		a.Adapter.Release()
	}
	if a.Instance != nil {
		a.Instance.Release()
	}
}

package main

import (
	"flag"
	"runtime"

	"github.com/gekko3d/gekko-fluid/fluidrt/rt/app"
	"github.com/gekko3d/gekko-fluid/fluidrt/rt/core"

	"github.com/go-gl/glfw/v3.3/glfw"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	configPath := flag.String("config", "", "TOML config file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	mode := flag.String("mode", "", "Render mode: fluid, pointsprites, points, disabled")
	fbo := flag.Float64("fbo", 0, "Off-screen resolution factor in [0,1]")
	blur := flag.Bool("blur", true, "Blur the fluid depth")
	preset := flag.String("preset", "", "Fluid colour preset name")
	presets := flag.String("presets", "", "YAML fluid preset file, reloaded on change")
	skybox := flag.String("skybox", "", "Directory with px/nx/py/ny/pz/nz skybox faces")
	replay := flag.String("replay", "", "Play back a recorded particle stream")
	record := flag.String("record", "", "Record the particle stream to this file")
	recordFrames := flag.Int("record-frames", 600, "Number of frames to record")
	particles := flag.Int("particles", 0, "Maximum particle count")
	flag.Parse()

	cfg := app.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = app.LoadConfig(*configPath); err != nil {
			panic(err)
		}
	}

	// only flags given on the command line override the config file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "debug":
			cfg.Debug = *debug
		case "mode":
			cfg.Render.Mode = *mode
		case "fbo":
			cfg.Render.FBOFactor = float32(*fbo)
		case "blur":
			cfg.Render.Blur = *blur
		case "preset":
			cfg.Render.Preset = *preset
		case "presets":
			cfg.Presets = *presets
		case "skybox":
			cfg.Skybox = *skybox
		case "replay":
			cfg.Replay = *replay
		case "particles":
			cfg.Particles.Max = *particles
		}
	})
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	logger := core.NewDefaultLogger("fluid", cfg.Debug)

	if err := glfw.Init(); err != nil {
		panic(err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	window, err := glfw.CreateWindow(cfg.Window.Width, cfg.Window.Height, cfg.Window.Title, nil, nil)
	if err != nil {
		panic(err)
	}
	defer window.Destroy()

	application := app.NewApp(window, cfg, logger)
	if err := application.Init(); err != nil {
		panic(err)
	}
	defer application.Close()

	if *record != "" {
		if err := application.StartRecording(*record, *recordFrames); err != nil {
			panic(err)
		}
	}

	window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		application.Resize(width, height)
	})
	window.SetCursorPosCallback(func(w *glfw.Window, xpos, ypos float64) {
		application.HandleCursor(xpos, ypos)
	})
	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		application.HandleKey(key, action)
	})

	for !window.ShouldClose() {
		glfw.PollEvents()
		application.Update()
		application.Render()
	}
}

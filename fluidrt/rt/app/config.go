package app

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/gekko3d/gekko-fluid/fluidrt/rt/core"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pelletier/go-toml/v2"
)

type WindowConfig struct {
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
	Title  string `toml:"title"`
	VSync  bool   `toml:"vsync"`
}

type RenderConfig struct {
	Mode           string  `toml:"mode"`
	Debug          string  `toml:"debug"`
	FBOFactor      float32 `toml:"fbo_factor"`
	Blur           bool    `toml:"blur"`
	BlurScale      float32 `toml:"blur_scale"`
	ParticleRadius float32 `toml:"particle_radius"`
	Preset         string  `toml:"preset"`
}

type ParticleConfig struct {
	Max        int        `toml:"max"`
	SpawnRate  float32    `toml:"spawn_rate"`
	Lifetime   [2]float32 `toml:"lifetime"`
	Speed      [2]float32 `toml:"speed"`
	Cone       float32    `toml:"cone_degrees"`
	Gravity    float32    `toml:"gravity"`
	Drag       float32    `toml:"drag"`
	Bounce     float32    `toml:"bounce"`
	UseDensity bool       `toml:"use_density"`
	DensityMin float32    `toml:"density_min"`
	DensityMax float32    `toml:"density_max"`
	Seed       int64      `toml:"seed"`
}

type CameraConfig struct {
	FovDegrees  float32    `toml:"fov_degrees"`
	Near        float32    `toml:"near"`
	Far         float32    `toml:"far"`
	Speed       float32    `toml:"speed"`
	Sensitivity float32    `toml:"sensitivity"`
	Position    [3]float32 `toml:"position"`
}

// Config is everything the demo reads at start-up. Zero-valued files
// are not valid; start from DefaultConfig and overlay a file on top.
type Config struct {
	Window    WindowConfig   `toml:"window"`
	Render    RenderConfig   `toml:"render"`
	Particles ParticleConfig `toml:"particles"`
	Camera    CameraConfig   `toml:"camera"`

	// Presets is an optional YAML file of fluid colours, watched for changes.
	Presets string `toml:"presets"`
	// Skybox is a directory holding px/nx/py/ny/pz/nz images. Empty means
	// the procedural sky.
	Skybox     string `toml:"skybox"`
	SkyboxSize int    `toml:"skybox_size"`
	// Replay plays back a recorded particle stream instead of the fountain.
	Replay string `toml:"replay"`

	Debug bool `toml:"debug"`
}

func DefaultConfig() Config {
	return Config{
		Window: WindowConfig{Width: 1280, Height: 720, Title: "Fluid RT", VSync: true},
		Render: RenderConfig{
			Mode:           core.RenderFluid.String(),
			Debug:          core.DebugFinal.String(),
			FBOFactor:      core.DefaultFBOFactor,
			Blur:           true,
			BlurScale:      core.DefaultBlurScale,
			ParticleRadius: 0.03,
		},
		Particles: ParticleConfig{
			Max:        60000,
			SpawnRate:  12000,
			Lifetime:   [2]float32{3, 5},
			Speed:      [2]float32{3.5, 4.5},
			Cone:       12,
			Gravity:    9.81,
			Drag:       0.1,
			Bounce:     0.35,
			UseDensity: true,
			DensityMin: 0,
			DensityMax: 1,
			Seed:       1,
		},
		Camera: CameraConfig{
			FovDegrees:  60,
			Near:        0.05,
			Far:         100,
			Speed:       3,
			Sensitivity: 0.003,
			Position:    [3]float32{0, 1.5, 5},
		},
		SkyboxSize: 256,
	}
}

// LoadConfig overlays the TOML file at path onto DefaultConfig. Unknown
// keys are rejected so typos do not silently fall back to defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := DecodeConfig(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// DecodeConfig overlays TOML data onto cfg.
func DecodeConfig(data []byte, cfg *Config) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return errors.New(strict.String())
		}
		return err
	}
	return cfg.Validate()
}

// Encode writes cfg as TOML.
func (c Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}

func (c Config) Validate() error {
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("window size %dx%d", c.Window.Width, c.Window.Height)
	}
	if _, err := core.ParseRenderMode(c.Render.Mode); err != nil {
		return err
	}
	if _, err := ParseDebugType(c.Render.Debug); err != nil {
		return err
	}
	if c.Render.ParticleRadius <= 0 {
		return fmt.Errorf("particle radius %v must be positive", c.Render.ParticleRadius)
	}
	if c.Particles.Max <= 0 {
		return fmt.Errorf("max particles %d must be positive", c.Particles.Max)
	}
	if c.Camera.Near <= 0 || c.Camera.Far <= c.Camera.Near {
		return fmt.Errorf("camera clip range [%v, %v]", c.Camera.Near, c.Camera.Far)
	}
	return nil
}

// ParseDebugType accepts the names produced by core.DebugType.String.
func ParseDebugType(s string) (core.DebugType, error) {
	for d := core.DebugFinal; d <= core.MaxDebugType; d++ {
		if d.String() == s {
			return d, nil
		}
	}
	return core.DebugFinal, fmt.Errorf("unknown debug channel %q", s)
}

// DrawingOptions builds the initial per-frame options. The preset is
// resolved against presets; an unknown name falls back to the first one.
func (c Config) DrawingOptions(presets *core.FluidPresets) (core.DrawingOptions, int) {
	idx := 0
	if c.Render.Preset != "" {
		if i := presets.Index(c.Render.Preset); i >= 0 {
			idx = i
		}
	}
	opts := core.DefaultDrawingOptions(presets.At(idx))
	if m, err := core.ParseRenderMode(c.Render.Mode); err == nil {
		opts.RenderMode = m
	}
	if d, err := ParseDebugType(c.Render.Debug); err == nil {
		opts.DebugType = d
	}
	opts.BlurEnabled = c.Render.Blur
	if c.Render.BlurScale > 0 {
		opts.BlurScale = c.Render.BlurScale
	}
	return opts, idx
}

func (c Config) DensityRange() core.DensityRange {
	return core.DensityRange{Min: c.Particles.DensityMin, Max: c.Particles.DensityMax}
}

// CameraState builds the camera described by the config.
func (c Config) CameraState() *core.CameraState {
	cam := core.NewCameraState()
	cam.FovY = mgl32.DegToRad(c.Camera.FovDegrees)
	cam.Near = c.Camera.Near
	cam.Far = c.Camera.Far
	cam.Speed = c.Camera.Speed
	cam.Sensitivity = c.Camera.Sensitivity
	cam.Position = mgl32.Vec3(c.Camera.Position)
	return cam
}

package core

import (
	_ "embed"
	"fmt"
	"io"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"
)

// DefaultFalloffScale is the absorption scale given to tinted fluids
// when the configuration does not set one.
const DefaultFalloffScale float32 = 0.1

// FluidColor describes how the composite pass tints and absorbs light.
// A clear fluid is purely refractive and never absorbs.
type FluidColor struct {
	BaseColor    mgl32.Vec4
	Falloff      mgl32.Vec4
	FalloffScale float32
	IsClear      bool
	Name         string
}

func NewFluidColor(name string, base, falloff mgl32.Vec4, isClear bool) *FluidColor {
	fc := &FluidColor{
		BaseColor: base,
		Falloff:   falloff,
		IsClear:   isClear,
		Name:      name,
	}
	if !isClear {
		fc.FalloffScale = DefaultFalloffScale
	}
	return fc
}

//go:embed presets.yaml
var defaultPresetsYAML []byte

type presetFile struct {
	Presets []presetEntry `yaml:"presets"`
}

type presetEntry struct {
	Name         string     `yaml:"name"`
	Base         [4]float32 `yaml:"base"`
	Falloff      [4]float32 `yaml:"falloff"`
	FalloffScale *float32   `yaml:"falloff_scale"`
	Clear        bool       `yaml:"clear"`
}

// FluidPresets is an ordered, named set of fluid colours.
type FluidPresets struct {
	colors []*FluidColor
}

// DefaultFluidPresets returns the presets compiled into the binary.
func DefaultFluidPresets() *FluidPresets {
	p, err := ParseFluidPresets(defaultPresetsYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded fluid presets: %v", err))
	}
	return p
}

func ParseFluidPresets(data []byte) (*FluidPresets, error) {
	var f presetFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fluid presets: %w", err)
	}
	if len(f.Presets) == 0 {
		return nil, fmt.Errorf("parse fluid presets: no presets defined")
	}
	p := &FluidPresets{}
	seen := make(map[string]bool, len(f.Presets))
	for i, e := range f.Presets {
		if e.Name == "" {
			return nil, fmt.Errorf("parse fluid presets: entry %d has no name", i)
		}
		if seen[e.Name] {
			return nil, fmt.Errorf("parse fluid presets: duplicate name %q", e.Name)
		}
		seen[e.Name] = true
		fc := NewFluidColor(e.Name, mgl32.Vec4(e.Base), mgl32.Vec4(e.Falloff), e.Clear)
		if e.FalloffScale != nil {
			fc.FalloffScale = *e.FalloffScale
		}
		p.colors = append(p.colors, fc)
	}
	return p, nil
}

func LoadFluidPresets(path string) (*FluidPresets, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	data, err := io.ReadAll(fh)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ParseFluidPresets(data)
}

func (p *FluidPresets) Len() int { return len(p.colors) }

func (p *FluidPresets) At(i int) *FluidColor {
	if len(p.colors) == 0 {
		return nil
	}
	i %= len(p.colors)
	if i < 0 {
		i += len(p.colors)
	}
	return p.colors[i]
}

// Index returns the position of the named preset, or -1.
func (p *FluidPresets) Index(name string) int {
	for i, c := range p.colors {
		if c.Name == name {
			return i
		}
	}
	return -1
}

func (p *FluidPresets) Names() []string {
	names := make([]string, len(p.colors))
	for i, c := range p.colors {
		names[i] = c.Name
	}
	return names
}

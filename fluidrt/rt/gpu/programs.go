package gpu

import (
	"fmt"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/gekko-fluid/fluidrt/rt/core"
	"github.com/gekko3d/gekko-fluid/fluidrt/rt/render"
)

type pipelineKey struct {
	format     wgpu.TextureFormat
	depth      bool
	blend      render.BlendState
	depthTest  bool
	depthWrite bool
}

type program struct {
	desc   render.ProgramDesc
	info   render.Program
	block  []byte
	module *wgpu.ShaderModule

	uniformLayout *wgpu.BindGroupLayout
	textureLayout *wgpu.BindGroupLayout
	layout        *wgpu.PipelineLayout
	filtering     bool

	pipelines map[pipelineKey]*wgpu.RenderPipeline
	failed    map[pipelineKey]bool
}

func (p *program) release() {
	for k, pl := range p.pipelines {
		pl.Release()
		delete(p.pipelines, k)
	}
	if p.layout != nil {
		p.layout.Release()
	}
	if p.textureLayout != nil {
		p.textureLayout.Release()
	}
	if p.uniformLayout != nil {
		p.uniformLayout.Release()
	}
	if p.module != nil {
		p.module.Release()
	}
}

// CreateProgram compiles desc.Source and builds the bind group layouts:
// group 0 binding 0 is the uniform block, group 1 holds the declared
// textures in order followed by one sampler.
func (d *Device) CreateProgram(desc render.ProgramDesc) (render.Program, error) {
	for _, entry := range []string{desc.VertexEntry, desc.FragmentEntry} {
		if !strings.Contains(desc.Source, "fn "+entry+"(") {
			return render.Program{}, fmt.Errorf("program %q: entry point %q not found", desc.Name, entry)
		}
	}

	if render.NewProgram(0, desc.Name, desc.Uniforms).BlockSize == 0 {
		return render.Program{}, fmt.Errorf("program %q: no uniforms declared", desc.Name)
	}

	module, err := d.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          desc.Name,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: desc.Source},
	})
	if err != nil {
		return render.Program{}, fmt.Errorf("program %q: compile: %w", desc.Name, err)
	}

	id := render.ProgramID(d.newID())
	p := &program{
		desc:      desc,
		info:      render.NewProgram(id, desc.Name, desc.Uniforms),
		module:    module,
		pipelines: make(map[pipelineKey]*wgpu.RenderPipeline),
		failed:    make(map[pipelineKey]bool),
	}
	p.block = make([]byte, p.info.BlockSize)

	if err := d.createLayouts(p); err != nil {
		p.release()
		return render.Program{}, fmt.Errorf("program %q: %w", desc.Name, err)
	}

	d.programs[id] = p
	d.Logger.Debugf("program %q linked: %d uniforms, %d bytes, %d textures", desc.Name, p.info.UniformCount(), p.info.BlockSize, len(desc.Textures))
	return p.info, nil
}

func (d *Device) createLayouts(p *program) error {
	var err error
	p.uniformLayout, err = d.Device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: p.desc.Name + " uniforms",
		Entries: []wgpu.BindGroupLayoutEntry{{
			Binding:    0,
			Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
			Buffer: wgpu.BufferBindingLayout{
				Type:           wgpu.BufferBindingTypeUniform,
				MinBindingSize: uint64(p.info.BlockSize),
			},
		}},
	})
	if err != nil {
		return fmt.Errorf("uniform layout: %w", err)
	}

	layouts := []*wgpu.BindGroupLayout{p.uniformLayout}
	if len(p.desc.Textures) > 0 {
		entries := make([]wgpu.BindGroupLayoutEntry, 0, len(p.desc.Textures)+1)
		for i, t := range p.desc.Textures {
			e := wgpu.BindGroupLayoutEntry{Binding: uint32(i), Visibility: wgpu.ShaderStageFragment}
			switch t.Kind {
			case render.TextureData:
				e.Texture = wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeUnfilterableFloat,
					ViewDimension: wgpu.TextureViewDimension2D,
				}
			case render.TextureColor:
				p.filtering = true
				e.Texture = wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeFloat,
					ViewDimension: wgpu.TextureViewDimension2D,
				}
			case render.TextureCube:
				p.filtering = true
				e.Texture = wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeFloat,
					ViewDimension: wgpu.TextureViewDimensionCube,
				}
			}
			entries = append(entries, e)
		}
		samplerType := wgpu.SamplerBindingTypeNonFiltering
		if p.filtering {
			samplerType = wgpu.SamplerBindingTypeFiltering
		}
		entries = append(entries, wgpu.BindGroupLayoutEntry{
			Binding:    uint32(len(p.desc.Textures)),
			Visibility: wgpu.ShaderStageFragment,
			Sampler:    wgpu.SamplerBindingLayout{Type: samplerType},
		})
		p.textureLayout, err = d.Device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
			Label:   p.desc.Name + " textures",
			Entries: entries,
		})
		if err != nil {
			return fmt.Errorf("texture layout: %w", err)
		}
		layouts = append(layouts, p.textureLayout)
	}

	p.layout, err = d.Device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            p.desc.Name,
		BindGroupLayouts: layouts,
	})
	if err != nil {
		return fmt.Errorf("pipeline layout: %w", err)
	}
	return nil
}

func (d *Device) ReleaseProgram(id render.ProgramID) {
	p, ok := d.programs[id]
	if !ok {
		return
	}
	p.release()
	delete(d.programs, id)
}

// pipeline returns the cached pipeline variant for key, building it on
// first use. Failed variants are remembered and reported once.
func (d *Device) pipeline(p *program, key pipelineKey) *wgpu.RenderPipeline {
	if pl, ok := p.pipelines[key]; ok {
		return pl
	}
	if p.failed[key] {
		return nil
	}
	pl, err := d.Device.CreateRenderPipeline(d.pipelineDescriptor(p, key))
	if err != nil {
		p.failed[key] = true
		d.Logger.Errorf("pipeline %q (%v): %v", p.desc.Name, key.format, err)
		return nil
	}
	p.pipelines[key] = pl
	return pl
}

var spriteAttributes = []wgpu.VertexAttribute{{
	Format:         wgpu.VertexFormatFloat32x4,
	Offset:         0,
	ShaderLocation: 0,
}}

func (d *Device) pipelineDescriptor(p *program, key pipelineKey) *wgpu.RenderPipelineDescriptor {
	desc := &wgpu.RenderPipelineDescriptor{
		Label:  p.desc.Name,
		Layout: p.layout,
		Vertex: wgpu.VertexState{
			Module:     p.module,
			EntryPoint: p.desc.VertexEntry,
		},
		Fragment: &wgpu.FragmentState{
			Module:     p.module,
			EntryPoint: p.desc.FragmentEntry,
			Targets: []wgpu.ColorTargetState{{
				Format:    key.format,
				Blend:     wgpuBlend(key.blend),
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	}

	switch p.desc.Input {
	case render.InputSprites:
		desc.Vertex.Buffers = []wgpu.VertexBufferLayout{{
			ArrayStride: uint64(core.SpriteStride),
			StepMode:    wgpu.VertexStepModeInstance,
			Attributes:  spriteAttributes,
		}}
	case render.InputPoints:
		desc.Vertex.Buffers = []wgpu.VertexBufferLayout{{
			ArrayStride: uint64(core.SpriteStride),
			StepMode:    wgpu.VertexStepModeVertex,
			Attributes:  spriteAttributes,
		}}
		desc.Primitive.Topology = wgpu.PrimitiveTopologyPointList
	}

	if key.depth {
		compare := wgpu.CompareFunctionLess
		if !key.depthTest {
			compare = wgpu.CompareFunctionAlways
		}
		desc.DepthStencil = &wgpu.DepthStencilState{
			Format:            wgpu.TextureFormatDepth32Float,
			DepthWriteEnabled: key.depthTest && key.depthWrite,
			DepthCompare:      compare,
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		}
	}
	return desc
}

func wgpuBlend(b render.BlendState) *wgpu.BlendState {
	if !b.Enabled {
		return nil
	}
	src, dst := wgpuBlendFactor(b.Src), wgpuBlendFactor(b.Dst)
	return &wgpu.BlendState{
		Color: wgpu.BlendComponent{
			Operation: wgpu.BlendOperationAdd,
			SrcFactor: src,
			DstFactor: dst,
		},
		Alpha: wgpu.BlendComponent{
			Operation: wgpu.BlendOperationAdd,
			SrcFactor: src,
			DstFactor: dst,
		},
	}
}

func wgpuBlendFactor(f render.BlendFactor) wgpu.BlendFactor {
	switch f {
	case render.BlendOne:
		return wgpu.BlendFactorOne
	case render.BlendSrcAlpha:
		return wgpu.BlendFactorSrcAlpha
	case render.BlendOneMinusSrcAlpha:
		return wgpu.BlendFactorOneMinusSrcAlpha
	}
	return wgpu.BlendFactorZero
}

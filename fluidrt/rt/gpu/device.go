// Package gpu implements render.Device on top of WebGPU.
package gpu

import (
	"fmt"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/gekko-fluid/fluidrt/rt/core"
	"github.com/gekko3d/gekko-fluid/fluidrt/rt/render"
)

// uniformAlign is used when the adapter does not report an alignment.
const uniformAlign = 256

// Device owns every WebGPU object created through the render.Device
// interface and translates command lists into render passes.
type Device struct {
	Device *wgpu.Device
	Queue  *wgpu.Queue
	Logger core.Logger

	maxColorAttachments int
	uniformAlign        int

	nextID       uint32
	textures     map[render.TextureID]*texture
	framebuffers map[render.FramebufferID]*framebuffer
	programs     map[render.ProgramID]*program
	buffers      map[render.BufferID]*buffer

	def         defaultTarget
	placeholder map[render.TextureKind]*texture
	linear      *wgpu.Sampler
	nearest     *wgpu.Sampler
	ring        uniformRing
	last        SubmitStats

	warnMu sync.Mutex
	warned map[string]bool
}

// NewDevice wraps an already requested WebGPU device.
func NewDevice(device *wgpu.Device, logger core.Logger) (*Device, error) {
	d := &Device{
		Device:       device,
		Queue:        device.GetQueue(),
		Logger:       core.WithPrefix(core.OrNop(logger), "gpu"),
		uniformAlign: uniformAlign,
		textures:     make(map[render.TextureID]*texture),
		framebuffers: make(map[render.FramebufferID]*framebuffer),
		programs:     make(map[render.ProgramID]*program),
		buffers:      make(map[render.BufferID]*buffer),
		placeholder:  make(map[render.TextureKind]*texture),
		warned:       make(map[string]bool),
	}

	limits := device.GetLimits().Limits
	d.maxColorAttachments = int(limits.MaxColorAttachments)
	if a := int(limits.MinUniformBufferOffsetAlignment); a > 0 {
		d.uniformAlign = a
	}
	d.Logger.Debugf("limits: color attachments=%d uniform align=%d", d.maxColorAttachments, d.uniformAlign)

	var err error
	d.linear, err = device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "fluid linear sampler",
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		LodMinClamp:   0.,
		LodMaxClamp:   1.,
		Compare:       wgpu.CompareFunctionUndefined,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("linear sampler: %w", err)
	}
	d.nearest, err = device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "fluid nearest sampler",
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     wgpu.FilterModeNearest,
		MinFilter:     wgpu.FilterModeNearest,
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		LodMinClamp:   0.,
		LodMaxClamp:   1.,
		Compare:       wgpu.CompareFunctionUndefined,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("nearest sampler: %w", err)
	}

	if err := d.createPlaceholders(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Device) MaxColorAttachments() int { return d.maxColorAttachments }

func (d *Device) newID() uint32 {
	d.nextID++
	return d.nextID
}

// warnOnce logs a warning the first time key is seen.
func (d *Device) warnOnce(key, format string, args ...any) {
	d.warnMu.Lock()
	seen := d.warned[key]
	d.warned[key] = true
	d.warnMu.Unlock()
	if !seen {
		d.Logger.Warnf(format, args...)
	}
}

// Release frees every resource still owned by the device. The wrapped
// wgpu.Device itself is left to the caller.
func (d *Device) Release() {
	for id := range d.framebuffers {
		d.ReleaseFramebuffer(id)
	}
	for id := range d.programs {
		d.ReleaseProgram(id)
	}
	for id := range d.buffers {
		d.ReleaseBuffer(id)
	}
	for id, t := range d.textures {
		t.release()
		delete(d.textures, id)
	}
	for k, t := range d.placeholder {
		t.release()
		delete(d.placeholder, k)
	}
	d.def.releaseDepth()
	d.ring.release()
	if d.linear != nil {
		d.linear.Release()
		d.linear = nil
	}
	if d.nearest != nil {
		d.nearest.Release()
		d.nearest = nil
	}
}

var _ render.Device = (*Device)(nil)

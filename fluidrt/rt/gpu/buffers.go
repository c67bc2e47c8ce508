package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/gekko-fluid/fluidrt/rt/render"
)

type buffer struct {
	label string
	size  int
	buf   *wgpu.Buffer
}

func (d *Device) CreateVertexBuffer(label string, size int) (render.BufferID, error) {
	if size <= 0 {
		return 0, fmt.Errorf("vertex buffer %q: size %d", label, size)
	}
	b, err := d.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  uint64(alignUp(size, 4)),
		Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return 0, fmt.Errorf("vertex buffer %q: %w", label, err)
	}
	id := render.BufferID(d.newID())
	d.buffers[id] = &buffer{label: label, size: size, buf: b}
	return id, nil
}

// WriteBuffer queues data for upload at offset. Writes past the end are
// truncated; WebGPU requires 4-byte multiples, so a ragged tail is padded.
func (d *Device) WriteBuffer(id render.BufferID, offset int, data []byte) {
	b, ok := d.buffers[id]
	if !ok || offset < 0 || offset >= b.size || len(data) == 0 {
		return
	}
	if offset+len(data) > b.size {
		data = data[:b.size-offset]
	}
	if n := len(data); n%4 != 0 {
		padded := make([]byte, alignUp(n, 4))
		copy(padded, data)
		data = padded
	}
	if err := d.Queue.WriteBuffer(b.buf, uint64(offset), data); err != nil {
		d.warnOnce("write:"+b.label, "write buffer %q: %v", b.label, err)
	}
}

func (d *Device) ReleaseBuffer(id render.BufferID) {
	b, ok := d.buffers[id]
	if !ok {
		return
	}
	b.buf.Release()
	delete(d.buffers, id)
}

// uniformRing hands out aligned slices of one uniform buffer per draw. The
// host copy is uploaded in a single write before the frame is submitted.
type uniformRing struct {
	buf     *wgpu.Buffer
	host    []byte
	used    int
	stride  int
	aligned int
}

// plan sizes the ring for draws blocks of up to maxBlock bytes each and
// rewinds it. It reports the capacity in bytes the ring needs.
func (r *uniformRing) plan(draws, maxBlock, align int) int {
	r.aligned = align
	r.stride = alignUp(maxBlock, align)
	r.used = 0
	return draws * r.stride
}

// alloc copies block into the ring and returns its offset, or -1 when the
// ring is full.
func (r *uniformRing) alloc(block []byte) int {
	off := alignUp(r.used, r.aligned)
	if off+len(block) > len(r.host) {
		return -1
	}
	copy(r.host[off:], block)
	r.used = off + len(block)
	return off
}

func (r *uniformRing) release() {
	if r.buf != nil {
		r.buf.Release()
		r.buf = nil
	}
	r.host = nil
}

// ensureRing grows the GPU uniform ring to hold at least size bytes.
func (d *Device) ensureRing(size int) error {
	if size <= len(d.ring.host) && d.ring.buf != nil {
		return nil
	}
	capacity := 64 * 1024
	for capacity < size {
		capacity *= 2
	}
	if d.ring.buf != nil {
		d.ring.buf.Release()
	}
	b, err := d.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "fluid uniform ring",
		Size:  uint64(capacity),
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		d.ring.buf = nil
		d.ring.host = nil
		return fmt.Errorf("uniform ring: %w", err)
	}
	d.ring.buf = b
	d.ring.host = make([]byte, capacity)
	return nil
}

func (d *Device) flushRing() {
	if d.ring.used == 0 || d.ring.buf == nil {
		return
	}
	if err := d.Queue.WriteBuffer(d.ring.buf, 0, d.ring.host[:alignUp(d.ring.used, 4)]); err != nil {
		d.warnOnce("ring", "upload uniforms: %v", err)
	}
}

func alignUp(v, a int) int {
	if a <= 1 {
		return v
	}
	return (v + a - 1) / a * a
}

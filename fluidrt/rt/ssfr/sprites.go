package ssfr

import (
	"fmt"

	"github.com/gekko3d/gekko-fluid/fluidrt/rt/core"
	"github.com/gekko3d/gekko-fluid/fluidrt/rt/render"
)

// PointSpriteBuffer is a fixed-capacity vertex buffer of particle sprites.
// The solver fills it once per frame with a Map / Unmap(count) cycle; the
// passes refuse to draw while it is mapped.
type PointSpriteBuffer struct {
	dev      render.Device
	id       render.BufferID
	staging  []core.ParticleSprite
	count    int
	mapped   bool
	released bool
}

func NewPointSpriteBuffer(dev render.Device, capacity int) (*PointSpriteBuffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("point sprite buffer: capacity %d", capacity)
	}
	id, err := dev.CreateVertexBuffer("ssfr point sprites", capacity*core.SpriteStride)
	if err != nil {
		return nil, fmt.Errorf("point sprite buffer: %w", err)
	}
	return &PointSpriteBuffer{
		dev:     dev,
		id:      id,
		staging: make([]core.ParticleSprite, capacity),
	}, nil
}

// Map returns host memory for the whole capacity. Nothing reaches the GPU
// before Unmap.
func (b *PointSpriteBuffer) Map() []core.ParticleSprite {
	b.mapped = true
	return b.staging
}

// Unmap uploads the first count sprites and makes them the active set.
// count is clamped to [0, Capacity].
func (b *PointSpriteBuffer) Unmap(count int) {
	if !b.mapped {
		return
	}
	b.mapped = false
	count = max(0, min(count, len(b.staging)))
	b.count = count
	if count > 0 && !b.released {
		b.dev.WriteBuffer(b.id, 0, core.SpriteBytes(b.staging[:count]))
	}
}

func (b *PointSpriteBuffer) Mapped() bool { return b.mapped }

// Count is the number of sprites uploaded by the last Unmap.
func (b *PointSpriteBuffer) Count() int { return b.count }

func (b *PointSpriteBuffer) Capacity() int { return len(b.staging) }

func (b *PointSpriteBuffer) ID() render.BufferID { return b.id }

func (b *PointSpriteBuffer) Release() {
	if b.released {
		return
	}
	b.dev.ReleaseBuffer(b.id)
	b.released = true
	b.count = 0
}

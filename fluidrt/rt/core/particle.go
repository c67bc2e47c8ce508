package core

import (
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

// DefaultMaxParticles is the sprite buffer capacity used by the demo app.
const DefaultMaxParticles = 512000

// ParticleSprite matches the vertex layout the sprite shaders read:
// location(0) vec4<f32> = (x, y, z, density).
type ParticleSprite struct {
	Pos     [3]float32
	Density float32
}

const SpriteStride = int(unsafe.Sizeof(ParticleSprite{}))

// DensityRange bounds the density written into sprites.
type DensityRange struct {
	Min float32
	Max float32
}

func DefaultDensityRange() DensityRange {
	return DensityRange{Min: 0, Max: 1}
}

// Clamp returns d clamped to the range. An inverted range is normalised.
func (r DensityRange) Clamp(d float32) float32 {
	lo, hi := r.Min, r.Max
	if lo > hi {
		lo, hi = hi, lo
	}
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}

// PackSprite builds one sprite. With useDensity false the density is
// forced to 1 so density-based shading is flat.
func PackSprite(pos mgl32.Vec3, density float32, rng DensityRange, useDensity bool) ParticleSprite {
	if !useDensity {
		density = 1.0
	} else {
		density = rng.Clamp(density)
	}
	return ParticleSprite{Pos: [3]float32{pos[0], pos[1], pos[2]}, Density: density}
}

// SpriteBytes reinterprets sprites as raw bytes for upload.
func SpriteBytes(sprites []ParticleSprite) []byte {
	if len(sprites) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&sprites[0])), len(sprites)*SpriteStride)
}

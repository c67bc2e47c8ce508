package app

import (
	"math/rand"

	"github.com/chewxy/math32"
	"github.com/gekko3d/gekko-fluid/fluidrt/rt/core"
	"github.com/go-gl/mathgl/mgl32"
)

// ParticleSource stands in for the fluid solver: it advances the particle
// state and packs it into sprites.
type ParticleSource interface {
	Step(dt float32)
	// Fill writes at most len(dst) sprites and returns how many it wrote.
	Fill(dst []core.ParticleSprite, rng core.DensityRange, useDensity bool) uint32
}

// FountainSource is a CPU particle pool that sprays particles up in a cone
// and lets them fall and pool on the ground plane.
type FountainSource struct {
	cfg    ParticleConfig
	origin mgl32.Vec3
	rnd    *rand.Rand

	pos  []mgl32.Vec3
	vel  []mgl32.Vec3
	age  []float32
	life []float32

	alive    int
	spawnAcc float32
}

func NewFountainSource(cfg ParticleConfig) *FountainSource {
	n := max(cfg.Max, 1)
	return &FountainSource{
		cfg:  cfg,
		rnd:  rand.New(rand.NewSource(cfg.Seed)),
		pos:  make([]mgl32.Vec3, n),
		vel:  make([]mgl32.Vec3, n),
		age:  make([]float32, n),
		life: make([]float32, n),
	}
}

func (f *FountainSource) Alive() int { return f.alive }

func (f *FountainSource) lerp(r [2]float32) float32 {
	return r[0] + (r[1]-r[0])*f.rnd.Float32()
}

// direction samples a unit vector uniformly inside the cone around +Y.
func (f *FountainSource) direction() mgl32.Vec3 {
	if f.cfg.Cone <= 0 {
		return mgl32.Vec3{0, 1, 0}
	}
	thetaMax := mgl32.DegToRad(f.cfg.Cone)
	cosTheta := math32.Cos(thetaMax) + (1-math32.Cos(thetaMax))*f.rnd.Float32()
	sinTheta := math32.Sqrt(max(0, 1-cosTheta*cosTheta))
	phi := 2 * math32.Pi * f.rnd.Float32()
	return mgl32.Vec3{math32.Cos(phi) * sinTheta, cosTheta, math32.Sin(phi) * sinTheta}
}

func (f *FountainSource) killAt(i int) {
	last := f.alive - 1
	f.pos[i] = f.pos[last]
	f.vel[i] = f.vel[last]
	f.age[i] = f.age[last]
	f.life[i] = f.life[last]
	f.alive--
}

func (f *FountainSource) Step(dt float32) {
	if dt <= 0 {
		dt = 1.0 / 60.0
	}

	f.spawnAcc += f.cfg.SpawnRate * dt
	spawn := int(f.spawnAcc)
	f.spawnAcc -= float32(spawn)
	spawn = min(spawn, len(f.pos)-f.alive)
	for range spawn {
		i := f.alive
		f.alive++
		f.pos[i] = f.origin
		f.vel[i] = f.direction().Mul(f.lerp(f.cfg.Speed))
		f.age[i] = 0
		f.life[i] = f.lerp(f.cfg.Lifetime)
	}

	drag := max(0, 1-f.cfg.Drag*dt)
	gravity := mgl32.Vec3{0, -f.cfg.Gravity * dt, 0}
	for i := 0; i < f.alive; {
		age := f.age[i] + dt
		if age >= f.life[i] {
			f.killAt(i)
			continue
		}
		v := f.vel[i].Add(gravity).Mul(drag)
		p := f.pos[i].Add(v.Mul(dt))
		// ground plane at y=0
		if p[1] < 0 {
			p[1] = 0
			v[1] = -v[1] * f.cfg.Bounce
			v[0] *= 0.9
			v[2] *= 0.9
		}
		f.pos[i], f.vel[i], f.age[i] = p, v, age
		i++
	}
}

// Fill packs live particles. Density falls from 1 at spawn to 0 at death.
func (f *FountainSource) Fill(dst []core.ParticleSprite, rng core.DensityRange, useDensity bool) uint32 {
	n := min(f.alive, len(dst))
	for i := 0; i < n; i++ {
		density := float32(1)
		if f.life[i] > 0 {
			density = 1 - f.age[i]/f.life[i]
		}
		dst[i] = core.PackSprite(f.pos[i], density, rng, useDensity)
	}
	return uint32(n)
}

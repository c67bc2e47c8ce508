package app

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/gekko3d/gekko-fluid/fluidrt/rt/core"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParticles() ParticleConfig {
	cfg := DefaultConfig().Particles
	cfg.Max = 100
	cfg.SpawnRate = 20
	return cfg
}

func TestFountainSource_SpawnsAtRate(t *testing.T) {
	f := NewFountainSource(testParticles())
	f.Step(0.5)
	assert.Equal(t, 10, f.Alive())
}

func TestFountainSource_CapacityAndLifetime(t *testing.T) {
	cfg := testParticles()
	cfg.Max = 5
	cfg.SpawnRate = 1000
	cfg.Lifetime = [2]float32{0.1, 0.1}
	f := NewFountainSource(cfg)

	f.Step(0.05)
	assert.Equal(t, 5, f.Alive(), "spawning stops at capacity")

	f.Step(0.2)
	assert.Equal(t, 0, f.Alive(), "every particle outlived its lifetime")
}

func TestFountainSource_StaysAboveGround(t *testing.T) {
	cfg := testParticles()
	cfg.SpawnRate = 200
	cfg.Lifetime = [2]float32{10, 10}
	f := NewFountainSource(cfg)
	for range 240 {
		f.Step(1.0 / 60.0)
	}

	dst := make([]core.ParticleSprite, cfg.Max)
	n := f.Fill(dst, core.DefaultDensityRange(), true)
	require.Equal(t, uint32(f.Alive()), n)
	for _, s := range dst[:n] {
		assert.GreaterOrEqual(t, s.Pos[1], float32(0))
		assert.GreaterOrEqual(t, s.Density, float32(0))
		assert.LessOrEqual(t, s.Density, float32(1))
	}
}

func TestFountainSource_Fill(t *testing.T) {
	f := NewFountainSource(testParticles())
	f.Step(0.5)

	small := make([]core.ParticleSprite, 3)
	assert.Equal(t, uint32(3), f.Fill(small, core.DefaultDensityRange(), true))

	all := make([]core.ParticleSprite, 100)
	n := f.Fill(all, core.DefaultDensityRange(), false)
	require.Equal(t, uint32(10), n)
	for _, s := range all[:n] {
		assert.Equal(t, float32(1), s.Density, "density shading off forces 1")
	}
}

func TestFountainSource_Deterministic(t *testing.T) {
	a, b := NewFountainSource(testParticles()), NewFountainSource(testParticles())
	for range 10 {
		a.Step(0.1)
		b.Step(0.1)
	}
	da := make([]core.ParticleSprite, 100)
	db := make([]core.ParticleSprite, 100)
	na := a.Fill(da, core.DefaultDensityRange(), true)
	nb := b.Fill(db, core.DefaultDensityRange(), true)
	require.Equal(t, na, nb)
	assert.Equal(t, da[:na], db[:nb])
}

func replayFrames() [][]core.ParticleSprite {
	return [][]core.ParticleSprite{
		{{Pos: [3]float32{1, 2, 3}, Density: 0.5}},
		{},
		{{Pos: [3]float32{-1, 0, 1}, Density: 2}, {Pos: [3]float32{0, 4, 0}, Density: -1}},
	}
}

func writeReplay(t *testing.T, w io.Writer, frames [][]core.ParticleSprite) {
	t.Helper()
	rec := NewReplayRecorder(w)
	for _, f := range frames {
		require.NoError(t, rec.WriteFrame(f))
	}
	assert.Equal(t, len(frames), rec.Frames())
	require.NoError(t, rec.Close())
}

func TestReplay_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	writeReplay(t, &buf, replayFrames())

	frames, err := ReadReplay(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, frames, 3)
	assert.Equal(t, replayFrames()[0], frames[0])
	assert.Empty(t, frames[1])
	assert.Equal(t, replayFrames()[2], frames[2])
}

func TestReplay_RecordLayout(t *testing.T) {
	var buf bytes.Buffer
	writeReplay(t, &buf, replayFrames()[:1])

	raw, err := io.ReadAll(lz4.NewReader(&buf))
	require.NoError(t, err)
	require.Len(t, raw, 4+16)
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(raw))
	assert.Equal(t, core.SpriteBytes(replayFrames()[0]), raw[4:])
}

func TestReadReplay_Truncated(t *testing.T) {
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	require.NoError(t, binary.Write(zw, binary.LittleEndian, uint32(5)))
	require.NoError(t, binary.Write(zw, binary.LittleEndian, make([]core.ParticleSprite, 2)))
	require.NoError(t, zw.Close())

	_, err := ReadReplay(&buf)
	assert.Error(t, err)
}

func TestReplaySource_StepAndFill(t *testing.T) {
	src, err := NewReplaySource(replayFrames(), 10)
	require.NoError(t, err)
	assert.Equal(t, 3, src.Len())

	src.Step(0.25)
	assert.Equal(t, 2, src.Frame())

	dst := make([]core.ParticleSprite, 8)
	n := src.Fill(dst, core.DefaultDensityRange(), true)
	require.Equal(t, uint32(2), n)
	assert.Equal(t, float32(1), dst[0].Density, "recorded density is clamped to the range")
	assert.Equal(t, float32(0), dst[1].Density)

	src.Step(0.1)
	assert.Equal(t, 0, src.Frame(), "playback loops")

	_, err = NewReplaySource(nil, 60)
	assert.Error(t, err)
}

package app

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/gekko3d/gekko-fluid/fluidrt/rt/core"
	"github.com/pierrec/lz4/v4"
)

// A recorded particle stream is an lz4 frame holding consecutive records of
// a little-endian uint32 count followed by count (x, y, z, density)
// float32 quadruples.

// maxReplayCount rejects corrupt counts before allocating.
const maxReplayCount = 1 << 24

// ReplayRecorder appends frames to a recorded stream.
type ReplayRecorder struct {
	zw     *lz4.Writer
	frames int
}

func NewReplayRecorder(w io.Writer) *ReplayRecorder {
	return &ReplayRecorder{zw: lz4.NewWriter(w)}
}

func (r *ReplayRecorder) WriteFrame(sprites []core.ParticleSprite) error {
	if err := binary.Write(r.zw, binary.LittleEndian, uint32(len(sprites))); err != nil {
		return fmt.Errorf("replay frame %d: %w", r.frames, err)
	}
	if err := binary.Write(r.zw, binary.LittleEndian, sprites); err != nil {
		return fmt.Errorf("replay frame %d: %w", r.frames, err)
	}
	r.frames++
	return nil
}

func (r *ReplayRecorder) Frames() int { return r.frames }

// Close flushes the lz4 frame. The underlying writer stays open.
func (r *ReplayRecorder) Close() error { return r.zw.Close() }

// ReadReplay decodes every frame of a recorded stream.
func ReadReplay(r io.Reader) ([][]core.ParticleSprite, error) {
	zr := bufio.NewReader(lz4.NewReader(r))
	var frames [][]core.ParticleSprite
	for {
		var count uint32
		err := binary.Read(zr, binary.LittleEndian, &count)
		if errors.Is(err, io.EOF) {
			return frames, nil
		}
		if err != nil {
			return nil, fmt.Errorf("replay frame %d header: %w", len(frames), err)
		}
		if count > maxReplayCount {
			return nil, fmt.Errorf("replay frame %d: count %d exceeds %d", len(frames), count, maxReplayCount)
		}
		sprites := make([]core.ParticleSprite, count)
		if err := binary.Read(zr, binary.LittleEndian, sprites); err != nil {
			return nil, fmt.Errorf("replay frame %d: %w", len(frames), err)
		}
		frames = append(frames, sprites)
	}
}

// ReplaySource loops a recorded stream at a fixed frame rate.
type ReplaySource struct {
	frames [][]core.ParticleSprite
	rate   float32
	acc    float32
	cur    int
}

// DefaultReplayRate is the frame rate recordings are made and played at.
const DefaultReplayRate = 60

func NewReplaySource(frames [][]core.ParticleSprite, rate float32) (*ReplaySource, error) {
	if len(frames) == 0 {
		return nil, errors.New("replay has no frames")
	}
	if rate <= 0 {
		rate = DefaultReplayRate
	}
	return &ReplaySource{frames: frames, rate: rate}, nil
}

// OpenReplay loads a recorded stream from disk.
func OpenReplay(path string) (*ReplaySource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	frames, err := ReadReplay(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return NewReplaySource(frames, DefaultReplayRate)
}

func (s *ReplaySource) Frame() int { return s.cur }

func (s *ReplaySource) Len() int { return len(s.frames) }

func (s *ReplaySource) Step(dt float32) {
	s.acc += dt * s.rate
	for s.acc >= 1 {
		s.acc--
		s.cur = (s.cur + 1) % len(s.frames)
	}
}

// Fill copies the current frame. Recorded densities are re-clamped to rng
// so a recording made with a different range still shades sensibly.
func (s *ReplaySource) Fill(dst []core.ParticleSprite, rng core.DensityRange, useDensity bool) uint32 {
	src := s.frames[s.cur]
	n := min(len(src), len(dst))
	for i := 0; i < n; i++ {
		p := src[i]
		dst[i] = core.PackSprite(p.Pos, p.Density, rng, useDensity)
	}
	return uint32(n)
}

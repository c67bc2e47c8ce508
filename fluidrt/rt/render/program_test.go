package render

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProgram_Layout(t *testing.T) {
	p := NewProgram(3, "sprite", []UniformDecl{
		{"projection", UniformMat4},
		{"view", UniformMat4},
		{"screen_size", UniformVec2},
		{"point_scale", UniformFloat},
		{"point_radius", UniformFloat},
		{"near", UniformFloat},
		{"far", UniformFloat},
		{"min_depth", UniformFloat},
		{"density_tint", UniformFloat},
	})

	tests := []struct {
		name   string
		offset int
	}{
		{"projection", 0},
		{"view", 64},
		{"screen_size", 128},
		{"point_scale", 136},
		{"point_radius", 140},
		{"near", 144},
		{"far", 148},
		{"min_depth", 152},
		{"density_tint", 156},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := p.Uniform(tt.name)
			require.True(t, u.Valid())
			assert.Equal(t, tt.offset, u.Offset)
		})
	}
	assert.Equal(t, 160, p.BlockSize)
	assert.Equal(t, 9, p.UniformCount())
	assert.True(t, p.Valid())
}

func TestNewProgram_AlignmentPadding(t *testing.T) {
	p := NewProgram(1, "pad", []UniformDecl{
		{"a", UniformFloat},
		{"v", UniformVec4},
		{"b", UniformFloat},
		{"d", UniformVec2},
	})
	assert.Equal(t, 0, p.Uniform("a").Offset)
	assert.Equal(t, 16, p.Uniform("v").Offset)
	assert.Equal(t, 32, p.Uniform("b").Offset)
	assert.Equal(t, 40, p.Uniform("d").Offset)
	assert.Equal(t, 48, p.BlockSize)
}

func TestProgram_UnknownUniform(t *testing.T) {
	p := NewProgram(1, "x", nil)
	assert.False(t, p.Uniform("nope").Valid())
	assert.Equal(t, 0, p.BlockSize)

	var zero Program
	assert.False(t, zero.Valid())
	assert.False(t, zero.Uniform("anything").Valid())
}

func TestPutUniform(t *testing.T) {
	p := NewProgram(1, "x", []UniformDecl{{"f", UniformFloat}, {"i", UniformInt}, {"v", UniformVec4}})
	block := make([]byte, p.BlockSize)

	var cl CommandList
	cl.SetFloat(p.Uniform("f"), 2.5)
	cl.SetInt(p.Uniform("i"), -3)
	cl.SetFloat(p.Uniform("missing"), 1)
	require.Len(t, cl.Cmds, 2, "invalid slots are not recorded")

	for _, c := range cl.Cmds {
		PutUniform(block, c.Uniform, &c.Value)
	}
	assert.Equal(t, math.Float32bits(2.5), binary.LittleEndian.Uint32(block[0:]))
	assert.Equal(t, int32(-3), int32(binary.LittleEndian.Uint32(block[4:])))
	assert.Equal(t, int32(-3), cl.Cmds[1].IntValue())

	// out of range writes are dropped
	short := make([]byte, 8)
	v := [16]float32{1, 2, 3, 4}
	PutUniform(short, p.Uniform("v"), &v)
	assert.Equal(t, make([]byte, 8), short)
}

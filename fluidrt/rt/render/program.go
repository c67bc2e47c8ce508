package render

import (
	"encoding/binary"
	"math"
)

type UniformType uint8

const (
	UniformFloat UniformType = iota
	UniformInt
	UniformVec2
	UniformVec4
	UniformMat4
)

// align and size follow the WGSL uniform address space rules.
func (t UniformType) align() int {
	switch t {
	case UniformVec2:
		return 8
	case UniformVec4, UniformMat4:
		return 16
	}
	return 4
}

func (t UniformType) size() int {
	switch t {
	case UniformVec2:
		return 8
	case UniformVec4:
		return 16
	case UniformMat4:
		return 64
	}
	return 4
}

// Floats is the number of 32-bit words the type occupies.
func (t UniformType) Floats() int { return t.size() / 4 }

type UniformDecl struct {
	Name string
	Type UniformType
}

// Uniform is a resolved slot inside a program's uniform block.
// The zero value is not valid; use Valid.
type Uniform struct {
	Name   string
	Type   UniformType
	Offset int
	valid  bool
}

func (u Uniform) Valid() bool { return u.valid }

// Program is a linked shader program together with its uniform slots,
// resolved once when the program is created.
type Program struct {
	ID        ProgramID
	Name      string
	BlockSize int
	uniforms  map[string]Uniform
}

// NewProgram lays out decls in declaration order and returns the program
// value for id. The WGSL struct backing the block must declare its members
// in the same order.
func NewProgram(id ProgramID, name string, decls []UniformDecl) Program {
	p := Program{ID: id, Name: name, uniforms: make(map[string]Uniform, len(decls))}
	offset := 0
	structAlign := 16
	for _, d := range decls {
		a := d.Type.align()
		offset = alignUp(offset, a)
		p.uniforms[d.Name] = Uniform{Name: d.Name, Type: d.Type, Offset: offset, valid: true}
		offset += d.Type.size()
	}
	p.BlockSize = alignUp(offset, structAlign)
	return p
}

func (p Program) Valid() bool { return p.ID != 0 }

// Uniform returns the slot for name. Unknown names yield an invalid slot;
// commands using it are ignored.
func (p Program) Uniform(name string) Uniform {
	return p.uniforms[name]
}

func (p Program) UniformCount() int { return len(p.uniforms) }

func alignUp(v, a int) int {
	return (v + a - 1) / a * a
}

// PutUniform writes the first Type.Floats() words of value into block at
// the slot offset. Integer slots carry their bits in value[0].
func PutUniform(block []byte, u Uniform, value *[16]float32) {
	if !u.valid || u.Offset+u.Type.size() > len(block) {
		return
	}
	for i := 0; i < u.Type.Floats(); i++ {
		binary.LittleEndian.PutUint32(block[u.Offset+i*4:], math.Float32bits(value[i]))
	}
}

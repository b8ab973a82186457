package wasm

import (
	"testing"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeb128(t *testing.T) {
	assert.Equal(t, []byte{0x00}, appendUleb(nil, 0))
	assert.Equal(t, []byte{0x7F}, appendUleb(nil, 127))
	assert.Equal(t, []byte{0x80, 0x01}, appendUleb(nil, 128))
	assert.Equal(t, []byte{0xE5, 0x8E, 0x26}, appendUleb(nil, 624485))

	assert.Equal(t, []byte{0x00}, appendSleb(nil, 0))
	assert.Equal(t, []byte{0x7F}, appendSleb(nil, -1))
	assert.Equal(t, []byte{0xC0, 0x00}, appendSleb(nil, 64))
	assert.Equal(t, []byte{0x40}, appendSleb(nil, -64))
}

func smallModule() *Module {
	m := &Module{
		Types: nil, Funcs: nil, Globals: nil, Tags: nil,
		Exports: nil, Start: optional.None[uint32](), DeclaredFuncs: nil,
	}
	sig := m.AddType(&SubType{
		Final: true, SuperIdxs: nil,
		Composite: &FuncType{Params: nil, Results: []ValType{I32}},
		Name:      "answer.sig",
	})
	body := NewBody()
	body.I32Const(42)
	fn := m.AddFunc(&Func{Name: "answer", TypeIdx: sig, Locals: nil, Body: body})
	m.Export("answer", ExportFunc, fn)
	return m
}

func TestEncodeModuleHeader(t *testing.T) {
	out := smallModule().Encode(false)
	require.GreaterOrEqual(t, len(out), 8)
	assert.Equal(t, []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}, out[:8])
}

func TestEncodeSectionsInOrder(t *testing.T) {
	out := smallModule().Encode(false)

	// Walk section headers: ids must be strictly increasing for core
	// sections (custom sections aside).
	i := 8
	last := -1
	for i < len(out) {
		id := int(out[i])
		i++
		size := 0
		shift := 0
		for {
			b := out[i]
			i++
			size |= int(b&0x7F) << shift
			if b&0x80 == 0 {
				break
			}
			shift += 7
		}
		i += size
		if id != 0 {
			assert.Greater(t, id, last)
			last = id
		}
	}
	assert.Equal(t, len(out), i)
}

func TestEncodeDebugNameSection(t *testing.T) {
	plain := smallModule().Encode(false)
	debug := smallModule().Encode(true)
	assert.Greater(t, len(debug), len(plain))
	assert.Contains(t, string(debug), "name")
	assert.Contains(t, string(debug), "answer")
}

func TestStructSubtyping(t *testing.T) {
	m := &Module{
		Types: nil, Funcs: nil, Globals: nil, Tags: nil,
		Exports: nil, Start: optional.None[uint32](), DeclaredFuncs: nil,
	}
	base := m.AddType(&SubType{
		Final: false, SuperIdxs: nil,
		Composite: &StructType{Fields: []FieldType{
			{Storage: Storage(I32), Mutable: true},
		}},
		Name: "base",
	})
	m.AddType(&SubType{
		Final: true, SuperIdxs: []uint32{base},
		Composite: &StructType{Fields: []FieldType{
			{Storage: Storage(I32), Mutable: true},
			{Storage: Storage(F64), Mutable: true},
		}},
		Name: "sub",
	})
	out := m.Encode(false)
	assert.NotEmpty(t, out)

	dump := m.Dump()
	assert.Contains(t, dump, "struct{mut i32}")
	assert.Contains(t, dump, "sub [0]")
}

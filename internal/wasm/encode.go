package wasm

import (
	"encoding/binary"
	"math"
)

func appendUleb(buf []byte, v uint64) []byte {
	for {
		b := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		buf = append(buf, b)
		if v == 0 {
			return buf
		}
	}
}

func appendSleb(buf []byte, v int64) []byte {
	for {
		b := byte(v & 0x7F)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(buf, b)
		}
		buf = append(buf, b|0x80)
	}
}

func appendF32(buf []byte, v float32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], math.Float32bits(v))
	return append(buf, tmp[:]...)
}

func appendF64(buf []byte, v float64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(v))
	return append(buf, tmp[:]...)
}

func appendName(buf []byte, s string) []byte {
	buf = appendUleb(buf, uint64(len(s)))
	return append(buf, s...)
}

// Abstract heap type discriminants share the s33 encoding with type indices.
var heapCodes = map[HeapType]byte{
	HeapAny:      0x6E,
	HeapEq:       0x6D,
	HeapI31:      0x6C,
	HeapStruct:   0x6B,
	HeapArray:    0x6A,
	HeapFunc:     0x70,
	HeapExtern:   0x6F,
	HeapNone:     0x71,
	HeapNoFunc:   0x73,
	HeapNoExtern: 0x72,
	HeapExn:      0x69,
}

func appendHeapType(buf []byte, h HeapType) []byte {
	if h >= 0 {
		return appendSleb(buf, int64(h))
	}
	return append(buf, heapCodes[h])
}

func appendValType(buf []byte, v ValType) []byte {
	switch v.Kind {
	case KindI32:
		return append(buf, 0x7F)
	case KindI64:
		return append(buf, 0x7E)
	case KindF32:
		return append(buf, 0x7D)
	case KindF64:
		return append(buf, 0x7C)
	case KindRef:
		if v.Nullable {
			buf = append(buf, 0x63)
		} else {
			buf = append(buf, 0x64)
		}
		return appendHeapType(buf, v.Heap)
	default:
		panic("unknown value type kind")
	}
}

func appendStorageType(buf []byte, s StorageType) []byte {
	switch s.Packed {
	case PackedI8:
		return append(buf, 0x78)
	case PackedI16:
		return append(buf, 0x77)
	default:
		return appendValType(buf, s.Val)
	}
}

func appendFieldType(buf []byte, f FieldType) []byte {
	buf = appendStorageType(buf, f.Storage)
	if f.Mutable {
		return append(buf, 0x01)
	}
	return append(buf, 0x00)
}

func appendComposite(buf []byte, ct CompositeType) []byte {
	switch ct := ct.(type) {
	case *FuncType:
		buf = append(buf, 0x60)
		buf = appendUleb(buf, uint64(len(ct.Params)))
		for _, p := range ct.Params {
			buf = appendValType(buf, p)
		}
		buf = appendUleb(buf, uint64(len(ct.Results)))
		for _, r := range ct.Results {
			buf = appendValType(buf, r)
		}
		return buf
	case *StructType:
		buf = append(buf, 0x5F)
		buf = appendUleb(buf, uint64(len(ct.Fields)))
		for _, f := range ct.Fields {
			buf = appendFieldType(buf, f)
		}
		return buf
	case *ArrayType:
		buf = append(buf, 0x5E)
		return appendFieldType(buf, ct.Elem)
	default:
		panic("unknown composite type")
	}
}

func section(id byte, payload []byte) []byte {
	out := []byte{id}
	out = appendUleb(out, uint64(len(payload)))
	return append(out, payload...)
}

// Encode produces the binary module. When debug is set a name section with
// function, global, and type names is appended.
func (m *Module) Encode(debug bool) []byte {
	out := []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}

	// Type section: one recursion group holding every definition.
	if len(m.Types) > 0 {
		var p []byte
		p = appendUleb(p, 1)
		p = append(p, 0x4E)
		p = appendUleb(p, uint64(len(m.Types)))
		for _, t := range m.Types {
			if len(t.SuperIdxs) > 0 || !t.Final {
				if t.Final {
					p = append(p, 0x4F)
				} else {
					p = append(p, 0x50)
				}
				p = appendUleb(p, uint64(len(t.SuperIdxs)))
				for _, s := range t.SuperIdxs {
					p = appendUleb(p, uint64(s))
				}
			}
			p = appendComposite(p, t.Composite)
		}
		out = append(out, section(1, p)...)
	}

	// Function section.
	if len(m.Funcs) > 0 {
		var p []byte
		p = appendUleb(p, uint64(len(m.Funcs)))
		for _, f := range m.Funcs {
			p = appendUleb(p, uint64(f.TypeIdx))
		}
		out = append(out, section(3, p)...)
	}

	// Tag section.
	if len(m.Tags) > 0 {
		var p []byte
		p = appendUleb(p, uint64(len(m.Tags)))
		for _, t := range m.Tags {
			p = append(p, 0x00)
			p = appendUleb(p, uint64(t.TypeIdx))
		}
		out = append(out, section(13, p)...)
	}

	// Global section.
	if len(m.Globals) > 0 {
		var p []byte
		p = appendUleb(p, uint64(len(m.Globals)))
		for _, g := range m.Globals {
			p = appendValType(p, g.Type)
			if g.Mutable {
				p = append(p, 0x01)
			} else {
				p = append(p, 0x00)
			}
			p = append(p, g.Init.Bytes()...)
			p = append(p, 0x0B)
		}
		out = append(out, section(6, p)...)
	}

	// Export section.
	if len(m.Exports) > 0 {
		var p []byte
		p = appendUleb(p, uint64(len(m.Exports)))
		for _, e := range m.Exports {
			p = appendName(p, e.Name)
			p = append(p, byte(e.Kind))
			p = appendUleb(p, uint64(e.Idx))
		}
		out = append(out, section(7, p)...)
	}

	// Start section.
	if start, err := m.Start.Take(); err == nil {
		var p []byte
		p = appendUleb(p, uint64(start))
		out = append(out, section(8, p)...)
	}

	// Declarative element segment for functions referenced by ref.func.
	if len(m.DeclaredFuncs) > 0 {
		var p []byte
		p = appendUleb(p, 1)
		p = append(p, 0x03, 0x00)
		p = appendUleb(p, uint64(len(m.DeclaredFuncs)))
		for _, f := range m.DeclaredFuncs {
			p = appendUleb(p, uint64(f))
		}
		out = append(out, section(9, p)...)
	}

	// Code section.
	if len(m.Funcs) > 0 {
		var p []byte
		p = appendUleb(p, uint64(len(m.Funcs)))
		for _, f := range m.Funcs {
			var body []byte
			body = appendUleb(body, uint64(len(f.Locals)))
			for _, l := range f.Locals {
				body = appendUleb(body, 1)
				body = appendValType(body, l)
			}
			body = append(body, f.Body.Bytes()...)
			body = append(body, 0x0B)
			p = appendUleb(p, uint64(len(body)))
			p = append(p, body...)
		}
		out = append(out, section(10, p)...)
	}

	if debug {
		out = append(out, m.nameSection()...)
	}
	return out
}

func (m *Module) nameSection() []byte {
	var payload []byte
	payload = appendName(payload, "name")

	nameMap := func(id byte, names map[uint32]string, count int) {
		if len(names) == 0 {
			return
		}
		var p []byte
		n := 0
		for i := 0; i < count; i++ {
			if _, ok := names[uint32(i)]; ok {
				n++
			}
		}
		p = appendUleb(p, uint64(n))
		for i := 0; i < count; i++ {
			if name, ok := names[uint32(i)]; ok {
				p = appendUleb(p, uint64(i))
				p = appendName(p, name)
			}
		}
		payload = append(payload, id)
		payload = appendUleb(payload, uint64(len(p)))
		payload = append(payload, p...)
	}

	funcNames := make(map[uint32]string)
	for i, f := range m.Funcs {
		if f.Name != "" {
			funcNames[uint32(i)] = f.Name
		}
	}
	nameMap(1, funcNames, len(m.Funcs))

	typeNames := make(map[uint32]string)
	for i, t := range m.Types {
		if t.Name != "" {
			typeNames[uint32(i)] = t.Name
		}
	}
	nameMap(4, typeNames, len(m.Types))

	globalNames := make(map[uint32]string)
	for i, g := range m.Globals {
		if g.Name != "" {
			globalNames[uint32(i)] = g.Name
		}
	}
	nameMap(7, globalNames, len(m.Globals))

	return section(0, payload)
}

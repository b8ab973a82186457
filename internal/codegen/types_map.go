package codegen

import (
	"fmt"

	"github.com/loom-lang/loom/internal/types"
	"github.com/loom-lang/loom/internal/wasm"
)

// ensureCore defines the always-needed heap types: the character array, the
// string struct, and the strings-array used by template literals.
func (g *Generator) ensureCore() {
	if g.haveCore {
		return
	}
	g.haveCore = true
	g.charsType = g.mod.AddType(&wasm.SubType{
		Final: true, SuperIdxs: nil,
		Composite: &wasm.ArrayType{Elem: wasm.FieldType{
			Storage: wasm.StorageType{Val: wasm.I32, Packed: wasm.PackedI8},
			Mutable: true,
		}},
		Name: "chars",
	})
	g.stringType = g.mod.AddType(&wasm.SubType{
		Final: true, SuperIdxs: nil,
		Composite: &wasm.StructType{Fields: []wasm.FieldType{
			{Storage: wasm.Storage(wasm.Ref(wasm.HeapType(g.charsType))), Mutable: false},
		}},
		Name: "string",
	})
	g.stringArrayType = g.mod.AddType(&wasm.SubType{
		Final: true, SuperIdxs: nil,
		Composite: &wasm.ArrayType{Elem: wasm.FieldType{
			Storage: wasm.Storage(wasm.RefNull(wasm.HeapType(g.stringType))),
			Mutable: true,
		}},
		Name: "string.array",
	})
}

// valType maps a loom type to its storage type. Canonicalized types map to
// the same wasm type for every use of the same specialization key.
func (g *Generator) valType(t types.Type) wasm.ValType {
	key := t.Key()
	if v, ok := g.valTypes[key]; ok {
		return v
	}
	v := g.valTypeUncached(t)
	g.valTypes[key] = v
	return v
}

func (g *Generator) valTypeUncached(t types.Type) wasm.ValType {
	switch t := t.(type) {
	case *types.PrimType:
		switch t.Prim {
		case types.I32, types.U32, types.Boolean:
			return wasm.I32
		case types.I64:
			return wasm.I64
		case types.F32:
			return wasm.F32
		case types.F64:
			return wasm.F64
		case types.String:
			g.ensureCore()
			return wasm.RefNull(wasm.HeapType(g.stringType))
		}
	case *types.LitType:
		return g.valType(t.Base())
	case *types.EnumType:
		return wasm.I32
	case *types.DistinctType:
		return g.valType(t.Inner)
	case *types.VoidType, *types.NeverType:
		// Placeholder; void values are never materialised.
		return wasm.I32
	case *types.NullType:
		return wasm.RefNull(wasm.HeapNone)
	case *types.AnyRefType:
		return wasm.RefNull(wasm.HeapAny)
	case *types.ClassType:
		return wasm.RefNull(wasm.HeapType(g.layoutOf(t).structIdx))
	case *types.InterfaceType:
		return wasm.RefNull(wasm.HeapAny)
	case *types.ThisType:
		return g.valType(t.Class)
	case *types.FixedArrayType:
		return wasm.RefNull(wasm.HeapType(g.arrayTypeIdx(t.Elem)))
	case *types.ArrayType:
		return wasm.RefNull(wasm.HeapType(g.arrayTypeIdx(t.Elem)))
	case *types.TupleType:
		return wasm.RefNull(wasm.HeapType(g.tupleTypeIdx(t)))
	case *types.RecordType:
		return wasm.RefNull(wasm.HeapType(g.recordTypeIdx(t)))
	case *types.FuncType:
		return wasm.RefNull(wasm.HeapType(g.closureBaseIdx(t)))
	case *types.UnionType:
		return g.unionValType(t)
	case *types.TypeParamType:
		fatalf("unsubstituted type parameter %s reached codegen", t)
	case *types.ErrorType:
		fatalf("error type reached codegen")
	}
	fatalf("unmapped type %s", t)
	return wasm.I32
}

// unionValType picks the storage type of a union: a nullable reference to
// the sole non-null member, the shared scalar representation when every
// member widens to one primitive, or anyref.
func (g *Generator) unionValType(t *types.UnionType) wasm.ValType {
	var nonNull []types.Type
	for _, m := range t.Members {
		if _, isNull := m.(*types.NullType); !isNull {
			nonNull = append(nonNull, m)
		}
	}
	if len(nonNull) == 0 {
		return wasm.RefNull(wasm.HeapNone)
	}
	if len(nonNull) == 1 {
		v := g.valType(nonNull[0])
		if v.Kind == wasm.KindRef {
			v.Nullable = true
			return v
		}
	}
	same := true
	first := g.valType(nonNull[0])
	for _, m := range nonNull[1:] {
		if g.valType(m) != first {
			same = false
			break
		}
	}
	if same && first.Kind != wasm.KindRef {
		return first
	}
	return wasm.RefNull(wasm.HeapAny)
}

// arrayTypeIdx interns the wasm array type for an element type. Fixed and
// growable arrays share the same heap shape.
func (g *Generator) arrayTypeIdx(elem types.Type) uint32 {
	key := "array<" + elem.Key() + ">"
	if idx, ok := g.typeIdx.Get(key); ok {
		return idx
	}
	idx := g.mod.AddType(&wasm.SubType{
		Final: true, SuperIdxs: nil,
		Composite: &wasm.ArrayType{Elem: wasm.FieldType{
			Storage: wasm.Storage(g.valType(elem)),
			Mutable: true,
		}},
		Name: "array " + elem.String(),
	})
	g.typeIdx.Set(key, idx)
	return idx
}

// tupleTypeIdx interns the struct type for a tuple canonicalization.
func (g *Generator) tupleTypeIdx(t *types.TupleType) uint32 {
	key := t.Key()
	if idx, ok := g.typeIdx.Get(key); ok {
		return idx
	}
	fields := make([]wasm.FieldType, len(t.Elems))
	for i, e := range t.Elems {
		fields[i] = wasm.FieldType{Storage: wasm.Storage(g.valType(e)), Mutable: false}
	}
	idx := g.mod.AddType(&wasm.SubType{
		Final: true, SuperIdxs: nil,
		Composite: &wasm.StructType{Fields: fields},
		Name:      t.String(),
	})
	g.typeIdx.Set(key, idx)
	return idx
}

// recordTypeIdx interns the struct type for a record canonicalization.
// Fields are laid out in sorted name order, so {x,y} and {y,x} share a
// struct type.
func (g *Generator) recordTypeIdx(t *types.RecordType) uint32 {
	key := t.Key()
	if idx, ok := g.typeIdx.Get(key); ok {
		return idx
	}
	var fields []wasm.FieldType
	t.Fields.Scan(func(name string, ft types.Type) bool {
		fields = append(fields, wasm.FieldType{Storage: wasm.Storage(g.valType(ft)), Mutable: false})
		return true
	})
	idx := g.mod.AddType(&wasm.SubType{
		Final: true, SuperIdxs: nil,
		Composite: &wasm.StructType{Fields: fields},
		Name:      t.String(),
	})
	g.typeIdx.Set(key, idx)
	return idx
}

// recordFieldIndex returns the struct slot of a record field (sorted order).
func recordFieldIndex(t *types.RecordType, name string) uint32 {
	idx := uint32(0)
	found := uint32(0)
	ok := false
	t.Fields.Scan(func(n string, _ types.Type) bool {
		if n == name {
			found = idx
			ok = true
			return false
		}
		idx++
		return true
	})
	if !ok {
		fatalf("record %s has no field %s", t, name)
	}
	return found
}

// closure representation: a base struct holding the code pointer, and one
// subtype per capture shape appending the captured values. The code pointer
// type takes the base closure reference as its leading parameter.
func (g *Generator) closureImplSigIdx(fn *types.FuncType) uint32 {
	key := "closure.sig:" + fn.Key()
	if idx, ok := g.typeIdx.Get(key); ok {
		return idx
	}
	// Reserve both indices up front: the impl signature references the base
	// struct and vice versa; both live in the module's single rec group.
	implIdx := g.mod.AddType(&wasm.SubType{
		Final: true, SuperIdxs: nil, Composite: &wasm.FuncType{Params: nil, Results: nil},
		Name: "fn " + fn.String(),
	})
	baseIdx := g.mod.AddType(&wasm.SubType{
		Final: false, SuperIdxs: nil, Composite: &wasm.StructType{Fields: nil},
		Name: "closure " + fn.String(),
	})
	g.typeIdx.Set(key, implIdx)
	g.typeIdx.Set("closure.base:"+fn.Key(), baseIdx)

	params := []wasm.ValType{wasm.RefNull(wasm.HeapType(baseIdx))}
	for _, p := range fn.Params {
		params = append(params, g.valType(p.Type))
	}
	var results []wasm.ValType
	if _, isVoid := fn.Return.(*types.VoidType); !isVoid {
		results = []wasm.ValType{g.valType(fn.Return)}
	}
	g.mod.Types[implIdx].Composite = &wasm.FuncType{Params: params, Results: results}
	g.mod.Types[baseIdx].Composite = &wasm.StructType{Fields: []wasm.FieldType{
		{Storage: wasm.Storage(wasm.RefNull(wasm.HeapType(implIdx))), Mutable: false},
	}}
	return implIdx
}

func (g *Generator) closureBaseIdx(fn *types.FuncType) uint32 {
	g.closureImplSigIdx(fn)
	idx, _ := g.typeIdx.Get("closure.base:" + fn.Key())
	return idx
}

// closureShapeIdx interns the capture-shape subtype for a closure with the
// given captured value types.
func (g *Generator) closureShapeIdx(fn *types.FuncType, captures []wasm.ValType) uint32 {
	key := "closure.shape:" + fn.Key()
	for _, c := range captures {
		key += "|" + valKeyOf(c)
	}
	if idx, ok := g.typeIdx.Get(key); ok {
		return idx
	}
	base := g.closureBaseIdx(fn)
	impl := g.closureImplSigIdx(fn)
	fields := []wasm.FieldType{
		{Storage: wasm.Storage(wasm.RefNull(wasm.HeapType(impl))), Mutable: false},
	}
	for _, c := range captures {
		fields = append(fields, wasm.FieldType{Storage: wasm.Storage(c), Mutable: false})
	}
	idx := g.mod.AddType(&wasm.SubType{
		Final: true, SuperIdxs: []uint32{base},
		Composite: &wasm.StructType{Fields: fields},
		Name:      "closure.env " + fn.String(),
	})
	g.typeIdx.Set(key, idx)
	return idx
}

func valKeyOf(v wasm.ValType) string {
	return fmt.Sprintf("%d:%t:%d", v.Kind, v.Nullable, v.Heap)
}

// boxTypeIdx interns the one-field mutable heap cell used for captured
// mutable variables.
func (g *Generator) boxTypeIdx(v wasm.ValType) uint32 {
	key := valKeyOf(v)
	if idx, ok := g.boxTypes[key]; ok {
		return idx
	}
	idx := g.mod.AddType(&wasm.SubType{
		Final: true, SuperIdxs: nil,
		Composite: &wasm.StructType{Fields: []wasm.FieldType{
			{Storage: wasm.Storage(v), Mutable: true},
		}},
		Name: "box",
	})
	g.boxTypes[key] = idx
	return idx
}

package wasm

import (
	"fmt"
	"strings"
)

// Dump renders a deterministic, human-readable outline of the module. It is
// not WAT; it exists for snapshot tests and the --dump flag.
func (m *Module) Dump() string {
	var sb strings.Builder

	for i, t := range m.Types {
		fmt.Fprintf(&sb, "type %d", i)
		if t.Name != "" {
			fmt.Fprintf(&sb, " (%s)", t.Name)
		}
		sb.WriteString(": ")
		sb.WriteString(compositeString(t.Composite))
		if len(t.SuperIdxs) > 0 {
			fmt.Fprintf(&sb, " sub %v", t.SuperIdxs)
		}
		sb.WriteString("\n")
	}
	for i, g := range m.Globals {
		mut := "const"
		if g.Mutable {
			mut = "mut"
		}
		fmt.Fprintf(&sb, "global %d (%s): %s %s\n", i, g.Name, mut, valString(g.Type))
	}
	for i, t := range m.Tags {
		fmt.Fprintf(&sb, "tag %d: type %d\n", i, t.TypeIdx)
	}
	for i, f := range m.Funcs {
		fmt.Fprintf(&sb, "func %d (%s): type %d, %d locals, %d bytes\n",
			i, f.Name, f.TypeIdx, len(f.Locals), len(f.Body.Bytes()))
	}
	for _, e := range m.Exports {
		kinds := map[ExportKind]string{
			ExportFunc: "func", ExportGlobal: "global", ExportTag: "tag",
			ExportTable: "table", ExportMemory: "memory",
		}
		fmt.Fprintf(&sb, "export %q = %s %d\n", e.Name, kinds[e.Kind], e.Idx)
	}
	if start, err := m.Start.Take(); err == nil {
		fmt.Fprintf(&sb, "start: func %d\n", start)
	}
	return sb.String()
}

func compositeString(ct CompositeType) string {
	switch ct := ct.(type) {
	case *FuncType:
		params := make([]string, len(ct.Params))
		for i, p := range ct.Params {
			params[i] = valString(p)
		}
		results := make([]string, len(ct.Results))
		for i, r := range ct.Results {
			results[i] = valString(r)
		}
		return fmt.Sprintf("func(%s) -> (%s)", strings.Join(params, ", "), strings.Join(results, ", "))
	case *StructType:
		fields := make([]string, len(ct.Fields))
		for i, f := range ct.Fields {
			fields[i] = fieldString(f)
		}
		return fmt.Sprintf("struct{%s}", strings.Join(fields, ", "))
	case *ArrayType:
		return fmt.Sprintf("array[%s]", fieldString(ct.Elem))
	default:
		return "?"
	}
}

func fieldString(f FieldType) string {
	s := ""
	switch f.Storage.Packed {
	case PackedI8:
		s = "i8"
	case PackedI16:
		s = "i16"
	default:
		s = valString(f.Storage.Val)
	}
	if f.Mutable {
		return "mut " + s
	}
	return s
}

func valString(v ValType) string {
	switch v.Kind {
	case KindI32:
		return "i32"
	case KindI64:
		return "i64"
	case KindF32:
		return "f32"
	case KindF64:
		return "f64"
	case KindRef:
		null := ""
		if v.Nullable {
			null = "null "
		}
		if v.Heap >= 0 {
			return fmt.Sprintf("(ref %s%d)", null, v.Heap)
		}
		names := map[HeapType]string{
			HeapAny: "any", HeapEq: "eq", HeapI31: "i31", HeapStruct: "struct",
			HeapArray: "array", HeapFunc: "func", HeapExtern: "extern",
			HeapNone: "none", HeapNoFunc: "nofunc", HeapNoExtern: "noextern",
			HeapExn: "exn",
		}
		return fmt.Sprintf("(ref %s%s)", null, names[v.Heap])
	default:
		return "?"
	}
}

package types

import (
	"strconv"
	"strings"

	"github.com/tidwall/btree"
)

// Type is the structural representation of a loom type. Types are interned:
// after construction they are handed to an Interner and must not be mutated.
//
//sumtype:decl
type Type interface {
	isType()
	// Key is the stable structural identity of the type. It drives both the
	// canonicalization cache and the codegen monomorphization cache.
	Key() string
	String() string
}

func (*PrimType) isType()      {}
func (*VoidType) isType()      {}
func (*NeverType) isType()     {}
func (*AnyRefType) isType()    {}
func (*NullType) isType()      {}
func (*LitType) isType()       {}
func (*FixedArrayType) isType() {}
func (*ArrayType) isType()     {}
func (*TupleType) isType()     {}
func (*RecordType) isType()    {}
func (*UnionType) isType()     {}
func (*FuncType) isType()      {}
func (*ClassType) isType()     {}
func (*InterfaceType) isType() {}
func (*MixinType) isType()     {}
func (*EnumType) isType()      {}
func (*TypeParamType) isType() {}
func (*ThisType) isType()      {}
func (*DistinctType) isType()  {}
func (*SymbolType) isType()    {}
func (*ErrorType) isType()     {}

type Prim string

const (
	I32     Prim = "i32"
	U32     Prim = "u32"
	I64     Prim = "i64"
	F32     Prim = "f32"
	F64     Prim = "f64"
	Boolean Prim = "boolean"
	String  Prim = "string"
)

type PrimType struct {
	Prim Prim
}

func (t *PrimType) Key() string    { return string(t.Prim) }
func (t *PrimType) String() string { return string(t.Prim) }

type VoidType struct{}

func (t *VoidType) Key() string    { return "void" }
func (t *VoidType) String() string { return "void" }

type NeverType struct{}

func (t *NeverType) Key() string    { return "never" }
func (t *NeverType) String() string { return "never" }

type AnyRefType struct{}

func (t *AnyRefType) Key() string    { return "anyref" }
func (t *AnyRefType) String() string { return "anyref" }

type NullType struct{}

func (t *NullType) Key() string    { return "null" }
func (t *NullType) String() string { return "null" }

// Lit is the value of a literal type.
type Lit interface{ isLit() }

type IntLit struct {
	Value int64
	Prim  Prim // i32, u32, or i64
}
type FloatLit struct {
	Value float64
	Prim  Prim // f32 or f64
}
type StrLit struct{ Value string }
type BoolLit struct{ Value bool }

func (*IntLit) isLit()   {}
func (*FloatLit) isLit() {}
func (*StrLit) isLit()   {}
func (*BoolLit) isLit()  {}

type LitType struct {
	Lit Lit
}

// Base returns the primitive type a literal widens to.
func (t *LitType) Base() *PrimType {
	switch lit := t.Lit.(type) {
	case *IntLit:
		return &PrimType{Prim: lit.Prim}
	case *FloatLit:
		return &PrimType{Prim: lit.Prim}
	case *StrLit:
		return &PrimType{Prim: String}
	case *BoolLit:
		return &PrimType{Prim: Boolean}
	default:
		panic("unknown literal kind")
	}
}

func (t *LitType) Key() string {
	switch lit := t.Lit.(type) {
	case *IntLit:
		return "lit:" + string(lit.Prim) + ":" + strconv.FormatInt(lit.Value, 10)
	case *FloatLit:
		return "lit:" + string(lit.Prim) + ":" + strconv.FormatFloat(lit.Value, 'g', -1, 64)
	case *StrLit:
		return "lit:string:" + strconv.Quote(lit.Value)
	case *BoolLit:
		return "lit:boolean:" + strconv.FormatBool(lit.Value)
	default:
		panic("unknown literal kind")
	}
}

func (t *LitType) String() string {
	switch lit := t.Lit.(type) {
	case *IntLit:
		return strconv.FormatInt(lit.Value, 10)
	case *FloatLit:
		return strconv.FormatFloat(lit.Value, 'g', -1, 64)
	case *StrLit:
		return strconv.Quote(lit.Value)
	case *BoolLit:
		return strconv.FormatBool(lit.Value)
	default:
		panic("unknown literal kind")
	}
}

// FixedArrayType is #[]T, a fixed-length array created from a literal.
type FixedArrayType struct {
	Elem Type
}

func (t *FixedArrayType) Key() string    { return "fixedarray<" + t.Elem.Key() + ">" }
func (t *FixedArrayType) String() string { return "#[]" + t.Elem.String() }

type ArrayType struct {
	Elem Type
}

func (t *ArrayType) Key() string    { return "array<" + t.Elem.Key() + ">" }
func (t *ArrayType) String() string { return "[]" + t.Elem.String() }

type TupleType struct {
	Elems []Type
}

func (t *TupleType) Key() string {
	parts := make([]string, len(t.Elems))
	for i, e := range t.Elems {
		parts[i] = e.Key()
	}
	return "tuple<" + strings.Join(parts, ",") + ">"
}

func (t *TupleType) String() string {
	parts := make([]string, len(t.Elems))
	for i, e := range t.Elems {
		parts[i] = e.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// RecordType holds its fields in a btree map so that iteration is always in
// sorted field-name order; {x, y} and {y, x} therefore share a key.
type RecordType struct {
	Fields *btree.Map[string, Type]
}

func NewRecordType(fields map[string]Type) *RecordType {
	m := &btree.Map[string, Type]{}
	for name, t := range fields {
		m.Set(name, t)
	}
	return &RecordType{Fields: m}
}

func (t *RecordType) Key() string {
	var parts []string
	t.Fields.Scan(func(name string, ft Type) bool {
		parts = append(parts, name+":"+ft.Key())
		return true
	})
	return "record<" + strings.Join(parts, ",") + ">"
}

func (t *RecordType) String() string {
	var parts []string
	t.Fields.Scan(func(name string, ft Type) bool {
		parts = append(parts, name+": "+ft.String())
		return true
	})
	return "{" + strings.Join(parts, ", ") + "}"
}

// UnionType members are sorted by key and deduplicated by the Interner;
// construct unions through Interner.Union.
type UnionType struct {
	Members []Type
}

func (t *UnionType) Key() string {
	parts := make([]string, len(t.Members))
	for i, m := range t.Members {
		parts[i] = m.Key()
	}
	return "union<" + strings.Join(parts, "|") + ">"
}

func (t *UnionType) String() string {
	parts := make([]string, len(t.Members))
	for i, m := range t.Members {
		parts[i] = m.String()
	}
	return strings.Join(parts, " | ")
}

// ContainsNull reports whether null is one of the union's members.
func (t *UnionType) ContainsNull() bool {
	for _, m := range t.Members {
		if _, ok := m.(*NullType); ok {
			return true
		}
	}
	return false
}

type ParamDef struct {
	Name string
	Type Type
}

type FuncType struct {
	TypeParams []*TypeParamDef
	Params     []*ParamDef
	Return     Type
}

func (t *FuncType) Key() string {
	var sb strings.Builder
	sb.WriteString("fn")
	if len(t.TypeParams) > 0 {
		sb.WriteString("<")
		for i, tp := range t.TypeParams {
			if i > 0 {
				sb.WriteString(",")
			}
			sb.WriteString(tp.Ref().Key())
		}
		sb.WriteString(">")
	}
	sb.WriteString("(")
	for i, p := range t.Params {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(p.Type.Key())
	}
	sb.WriteString(")->")
	sb.WriteString(t.Return.Key())
	return sb.String()
}

func (t *FuncType) String() string {
	var sb strings.Builder
	sb.WriteString("fn")
	if len(t.TypeParams) > 0 {
		sb.WriteString("<")
		for i, tp := range t.TypeParams {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(tp.Name)
		}
		sb.WriteString(">")
	}
	sb.WriteString("(")
	for i, p := range t.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		if p.Name != "" {
			sb.WriteString(p.Name)
			sb.WriteString(": ")
		}
		sb.WriteString(p.Type.String())
	}
	sb.WriteString(") -> ")
	sb.WriteString(t.Return.String())
	return sb.String()
}

func declKey(library, name string, typeArgs []Type) string {
	var sb strings.Builder
	sb.WriteString(library)
	sb.WriteString("#")
	sb.WriteString(name)
	if len(typeArgs) > 0 {
		sb.WriteString("<")
		for i, arg := range typeArgs {
			if i > 0 {
				sb.WriteString(",")
			}
			sb.WriteString(arg.Key())
		}
		sb.WriteString(">")
	}
	return sb.String()
}

func declString(name string, typeArgs []Type) string {
	if len(typeArgs) == 0 {
		return name
	}
	parts := make([]string, len(typeArgs))
	for i, arg := range typeArgs {
		parts[i] = arg.String()
	}
	return name + "<" + strings.Join(parts, ", ") + ">"
}

// ClassType is one specialization of a class declaration. Two libraries that
// each declare a class with the same name produce distinct keys because the
// owning library's canonical path is part of the identity.
type ClassType struct {
	Def      *ClassDef
	TypeArgs []Type
}

func (t *ClassType) Key() string    { return declKey(t.Def.Library, t.Def.Name, t.TypeArgs) }
func (t *ClassType) String() string { return declString(t.Def.Name, t.TypeArgs) }

type InterfaceType struct {
	Def      *InterfaceDef
	TypeArgs []Type
}

func (t *InterfaceType) Key() string    { return declKey(t.Def.Library, t.Def.Name, t.TypeArgs) }
func (t *InterfaceType) String() string { return declString(t.Def.Name, t.TypeArgs) }

type MixinType struct {
	Def      *MixinDef
	TypeArgs []Type
}

func (t *MixinType) Key() string    { return declKey(t.Def.Library, t.Def.Name, t.TypeArgs) }
func (t *MixinType) String() string { return declString(t.Def.Name, t.TypeArgs) }

type EnumType struct {
	Def *EnumDef
}

func (t *EnumType) Key() string    { return declKey(t.Def.Library, t.Def.Name, nil) }
func (t *EnumType) String() string { return t.Def.Name }

// TypeParamType is a reference to an in-scope generic parameter. ScopeID is
// unique per generic declaration so that T in one class never aliases T in
// another.
type TypeParamType struct {
	Name    string
	ScopeID int
}

func (t *TypeParamType) Key() string {
	return "param(" + strconv.Itoa(t.ScopeID) + "," + t.Name + ")"
}
func (t *TypeParamType) String() string { return t.Name }

// ThisType stands for the enclosing class specialization inside its body.
type ThisType struct {
	Class *ClassType
}

func (t *ThisType) Key() string    { return "this:" + t.Class.Key() }
func (t *ThisType) String() string { return "this" }

// DistinctType is a nominal wrapper over an underlying type, introduced by a
// distinct type alias. Identity comes from the declaring library and alias
// name, not from the structure of Inner.
type DistinctType struct {
	Inner Type
	Def   *AliasDef
}

func (t *DistinctType) Key() string    { return "distinct:" + t.Def.Library + "#" + t.Def.Name }
func (t *DistinctType) String() string { return t.Def.Name }

// SymbolType is a unique symbol declaration.
type SymbolType struct {
	ID   int
	Name string
}

func (t *SymbolType) Key() string    { return "symbol:" + strconv.Itoa(t.ID) }
func (t *SymbolType) String() string { return "symbol(" + t.Name + ")" }

// ErrorType is the placeholder attached to constructs that failed checking.
// It is assignable to and from everything so one error does not cascade.
type ErrorType struct{}

func (t *ErrorType) Key() string    { return "<error>" }
func (t *ErrorType) String() string { return "<error>" }

// IsReference reports whether values of t are represented as GC references.
func IsReference(t Type) bool {
	switch t := t.(type) {
	case *PrimType:
		return t.Prim == String
	case *VoidType, *NeverType:
		return false
	case *AnyRefType, *NullType, *FixedArrayType, *ArrayType, *TupleType,
		*RecordType, *FuncType, *ClassType, *InterfaceType, *MixinType,
		*SymbolType:
		return true
	case *LitType:
		return IsReference(t.Base())
	case *EnumType:
		return false
	case *UnionType:
		for _, m := range t.Members {
			if !IsReference(m) {
				return false
			}
		}
		return true
	case *ThisType:
		return true
	case *DistinctType:
		return IsReference(t.Inner)
	case *ErrorType:
		return true
	default:
		return false
	}
}

// IsPrimitiveValue reports whether t is stored as an unboxed scalar.
func IsPrimitiveValue(t Type) bool {
	switch t := t.(type) {
	case *PrimType:
		return t.Prim != String
	case *LitType:
		return IsPrimitiveValue(t.Base())
	case *EnumType:
		return true
	case *DistinctType:
		return IsPrimitiveValue(t.Inner)
	default:
		return false
	}
}

package types

import (
	"sort"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/tidwall/btree"
)

// Interner canonicalizes types by structural identity: two types built from
// equal components return the same node. Interned nodes are never mutated;
// substitution always produces fresh nodes which are re-interned.
type Interner struct {
	cache btree.Map[string, Type]

	i32     *PrimType
	u32     *PrimType
	i64     *PrimType
	f32     *PrimType
	f64     *PrimType
	boolean *PrimType
	str     *PrimType
	void    *VoidType
	never   *NeverType
	anyRef  *AnyRefType
	null    *NullType
	err     *ErrorType
}

func NewInterner() *Interner {
	in := &Interner{
		cache:   btree.Map[string, Type]{},
		i32:     &PrimType{Prim: I32},
		u32:     &PrimType{Prim: U32},
		i64:     &PrimType{Prim: I64},
		f32:     &PrimType{Prim: F32},
		f64:     &PrimType{Prim: F64},
		boolean: &PrimType{Prim: Boolean},
		str:     &PrimType{Prim: String},
		void:    &VoidType{},
		never:   &NeverType{},
		anyRef:  &AnyRefType{},
		null:    &NullType{},
		err:     &ErrorType{},
	}
	for _, t := range []Type{
		in.i32, in.u32, in.i64, in.f32, in.f64, in.boolean, in.str,
		in.void, in.never, in.anyRef, in.null, in.err,
	} {
		in.cache.Set(t.Key(), t)
	}
	return in
}

func (in *Interner) I32() *PrimType     { return in.i32 }
func (in *Interner) U32() *PrimType     { return in.u32 }
func (in *Interner) I64() *PrimType     { return in.i64 }
func (in *Interner) F32() *PrimType     { return in.f32 }
func (in *Interner) F64() *PrimType     { return in.f64 }
func (in *Interner) Boolean() *PrimType { return in.boolean }
func (in *Interner) String() *PrimType  { return in.str }
func (in *Interner) Void() *VoidType    { return in.void }
func (in *Interner) Never() *NeverType  { return in.never }
func (in *Interner) AnyRef() *AnyRefType { return in.anyRef }
func (in *Interner) Null() *NullType    { return in.null }
func (in *Interner) Error() *ErrorType  { return in.err }

// Intern returns the canonical node for t. Interning is idempotent.
func (in *Interner) Intern(t Type) Type {
	key := t.Key()
	if cached, ok := in.cache.Get(key); ok {
		return cached
	}
	in.cache.Set(key, t)
	return t
}

// Lookup returns the canonical node for a key, if one has been interned.
func (in *Interner) Lookup(key string) (Type, bool) {
	return in.cache.Get(key)
}

func (in *Interner) IntLit(value int64, prim Prim) Type {
	return in.Intern(&LitType{Lit: &IntLit{Value: value, Prim: prim}})
}

func (in *Interner) StrLit(value string) Type {
	return in.Intern(&LitType{Lit: &StrLit{Value: value}})
}

func (in *Interner) BoolLit(value bool) Type {
	return in.Intern(&LitType{Lit: &BoolLit{Value: value}})
}

func (in *Interner) FixedArray(elem Type) Type {
	return in.Intern(&FixedArrayType{Elem: elem})
}

func (in *Interner) Array(elem Type) Type {
	return in.Intern(&ArrayType{Elem: elem})
}

func (in *Interner) Tuple(elems ...Type) Type {
	return in.Intern(&TupleType{Elems: elems})
}

func (in *Interner) Record(fields map[string]Type) Type {
	return in.Intern(NewRecordType(fields))
}

func (in *Interner) Func(params []*ParamDef, ret Type) Type {
	return in.Intern(&FuncType{TypeParams: nil, Params: params, Return: ret})
}

func (in *Interner) Class(def *ClassDef, typeArgs []Type) *ClassType {
	return in.Intern(&ClassType{Def: def, TypeArgs: typeArgs}).(*ClassType)
}

func (in *Interner) Interface(def *InterfaceDef, typeArgs []Type) *InterfaceType {
	return in.Intern(&InterfaceType{Def: def, TypeArgs: typeArgs}).(*InterfaceType)
}

func (in *Interner) Mixin(def *MixinDef, typeArgs []Type) *MixinType {
	return in.Intern(&MixinType{Def: def, TypeArgs: typeArgs}).(*MixinType)
}

func (in *Interner) Enum(def *EnumDef) *EnumType {
	return in.Intern(&EnumType{Def: def}).(*EnumType)
}

func (in *Interner) Distinct(inner Type, def *AliasDef) Type {
	return in.Intern(&DistinctType{Inner: inner, Def: def})
}

// Union builds the normalised union of members: nested unions are flattened,
// Never is absorbed, duplicates are removed, members are sorted by key so
// A|B and B|A intern to the same node, and a singleton collapses to its
// member.
func (in *Interner) Union(members ...Type) Type {
	var flat []Type
	var add func(t Type)
	add = func(t Type) {
		switch t := t.(type) {
		case *UnionType:
			for _, m := range t.Members {
				add(m)
			}
		case *NeverType:
			// absorbed
		default:
			flat = append(flat, t)
		}
	}
	for _, m := range members {
		add(m)
	}
	if len(flat) == 0 {
		return in.never
	}

	sort.SliceStable(flat, func(i, j int) bool { return flat[i].Key() < flat[j].Key() })
	deduped := flat[:1]
	for _, t := range flat[1:] {
		if t.Key() != deduped[len(deduped)-1].Key() {
			deduped = append(deduped, t)
		}
	}
	if len(deduped) == 1 {
		return in.Intern(deduped[0])
	}
	return in.Intern(&UnionType{Members: deduped})
}

// Subtract removes the covered type from t, used by match exhaustiveness.
// Only literal, class, and enum-member subtraction are supported; any other
// combination returns t unchanged.
func (in *Interner) Subtract(t Type, covered Type) Type {
	if union, ok := t.(*UnionType); ok {
		var rest []Type
		for _, m := range union.Members {
			sub := in.Subtract(m, covered)
			if _, gone := sub.(*NeverType); !gone {
				rest = append(rest, sub)
			}
		}
		return in.Union(rest...)
	}
	if t.Key() == covered.Key() {
		return in.never
	}
	// A class pattern covers every subclass of the covered class.
	if st, ok := t.(*ClassType); ok {
		if ct, ok := covered.(*ClassType); ok && Assignable(st, ct) {
			return in.never
		}
	}
	return t
}

// Equals compares two types structurally. Interned types can also be
// compared by pointer; this is the general comparison used by tests.
func Equals(t1, t2 Type) bool {
	if t1 == t2 {
		return true
	}
	if t1 == nil || t2 == nil {
		return false
	}
	return cmp.Equal(t1, t2,
		cmp.Comparer(func(a, b *btree.Map[string, Type]) bool {
			if a.Len() != b.Len() {
				return false
			}
			equal := true
			a.Scan(func(name string, at Type) bool {
				bt, ok := b.Get(name)
				if !ok || !Equals(at, bt) {
					equal = false
					return false
				}
				return true
			})
			return equal
		}),
		cmpopts.IgnoreFields(ClassDef{}, "AST", "Fields", "Methods", "Ctor", "Super", "Interfaces", "Mixins"),
		cmpopts.IgnoreFields(InterfaceDef{}, "AST", "Methods", "Extends"),
		cmpopts.IgnoreFields(MixinDef{}, "AST", "Fields", "Methods", "On"),
		cmpopts.IgnoreFields(EnumDef{}, "AST"),
		cmpopts.IgnoreFields(MethodDef{}, "AST", "Body"),
		cmpopts.IgnoreFields(FieldDef{}, "Init"),
	)
}

package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInternIdempotent(t *testing.T) {
	in := NewInterner()
	a := in.Tuple(in.I32(), in.String())
	b := in.Tuple(in.I32(), in.String())
	assert.Same(t, a, b)
	assert.Same(t, a, in.Intern(a))
}

func TestUnionOrderInsensitive(t *testing.T) {
	in := NewInterner()
	ab := in.Union(in.StrLit("a"), in.StrLit("b"))
	ba := in.Union(in.StrLit("b"), in.StrLit("a"))
	assert.Same(t, ab, ba)
}

func TestUnionNormalisation(t *testing.T) {
	in := NewInterner()

	// Never is absorbed.
	assert.Same(t, in.I32(), in.Union(in.I32(), in.Never()))

	// Duplicates collapse; a singleton union is its member.
	assert.Same(t, in.I32(), in.Union(in.I32(), in.I32()))

	// Nested unions flatten.
	inner := in.Union(in.StrLit("a"), in.StrLit("b"))
	outer := in.Union(inner, in.StrLit("c"))
	union, ok := outer.(*UnionType)
	assert.True(t, ok)
	assert.Len(t, union.Members, 3)

	// Null-containing unions keep null.
	def := &ClassDef{
		Library: "/a.loom", Name: "Box", TypeParams: nil,
		Super: nil, Interfaces: nil, Mixins: nil,
		IsAbstract: false, IsFinal: false,
		Fields: nil, Methods: nil, Ctor: nil, AST: nil,
	}
	nullable := in.Union(in.Class(def, nil), in.Null())
	u, ok := nullable.(*UnionType)
	assert.True(t, ok)
	assert.True(t, u.ContainsNull())
}

func TestRecordFieldOrderInsensitive(t *testing.T) {
	in := NewInterner()
	xy := in.Record(map[string]Type{"x": in.I32(), "y": in.I32()})
	yx := in.Record(map[string]Type{"y": in.I32(), "x": in.I32()})
	assert.Same(t, xy, yx)
}

func TestSpecializationKeyIncludesLibrary(t *testing.T) {
	in := NewInterner()
	defA := &ClassDef{
		Library: "/a.loom", Name: "Y", TypeParams: nil,
		Super: nil, Interfaces: nil, Mixins: nil,
		IsAbstract: false, IsFinal: false,
		Fields: nil, Methods: nil, Ctor: nil, AST: nil,
	}
	defB := &ClassDef{
		Library: "/b.loom", Name: "Y", TypeParams: nil,
		Super: nil, Interfaces: nil, Mixins: nil,
		IsAbstract: false, IsFinal: false,
		Fields: nil, Methods: nil, Ctor: nil, AST: nil,
	}
	tp := &TypeParamDef{Name: "T", Constraint: nil, Default: nil, ScopeID: 7}
	box := &ClassDef{
		Library: "/box.loom", Name: "Box", TypeParams: []*TypeParamDef{tp},
		Super: nil, Interfaces: nil, Mixins: nil,
		IsAbstract: false, IsFinal: false,
		Fields: nil, Methods: nil, Ctor: nil, AST: nil,
	}

	boxOfA := in.Class(box, []Type{in.Class(defA, nil)})
	boxOfB := in.Class(box, []Type{in.Class(defB, nil)})
	assert.NotEqual(t, boxOfA.Key(), boxOfB.Key())
}

func TestSubtract(t *testing.T) {
	in := NewInterner()
	get := in.StrLit("get")
	put := in.StrLit("put")
	union := in.Union(get, put)

	rest := in.Subtract(union, get)
	assert.Same(t, put, rest)

	gone := in.Subtract(rest, put)
	_, isNever := gone.(*NeverType)
	assert.True(t, isNever)
}

func TestSubstitutePure(t *testing.T) {
	in := NewInterner()
	tp := &TypeParamDef{Name: "T", Constraint: nil, Default: nil, ScopeID: 3}
	param := in.Intern(tp.Ref())
	tuple := in.Tuple(param, in.I32())

	mapping := NewSubst([]*TypeParamDef{tp}, []Type{in.String()})
	result := Substitute(in, tuple, mapping)

	assert.Equal(t, "tuple<string,i32>", result.Key())
	// The original node is untouched.
	assert.Equal(t, "tuple<param(3,T),i32>", tuple.Key())
}

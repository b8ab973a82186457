package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func classDef(library, name string, params ...*TypeParamDef) *ClassDef {
	return &ClassDef{
		Library: library, Name: name, TypeParams: params,
		Super: nil, Interfaces: nil, Mixins: nil,
		IsAbstract: false, IsFinal: false,
		Fields: nil, Methods: nil, Ctor: nil, AST: nil,
	}
}

func TestAssignableReflexivity(t *testing.T) {
	in := NewInterner()
	samples := []Type{
		in.I32(), in.I64(), in.Boolean(), in.String(),
		in.IntLit(5, I32),
		in.FixedArray(in.I32()),
		in.Tuple(in.I32(), in.String()),
		in.Record(map[string]Type{"x": in.I32(), "y": in.I32()}),
		in.Union(in.StrLit("get"), in.StrLit("put")),
		in.Func([]*ParamDef{{Name: "x", Type: in.I32()}}, in.I32()),
	}
	for _, s := range samples {
		assert.True(t, Assignable(s, s), "expected %s <: %s", s, s)
	}
}

func TestAssignableNeverAndAnyRef(t *testing.T) {
	in := NewInterner()
	assert.True(t, Assignable(in.Never(), in.I32()))
	assert.True(t, Assignable(in.Never(), in.String()))
	assert.True(t, Assignable(in.String(), in.AnyRef()))
	assert.False(t, Assignable(in.I32(), in.AnyRef()), "unboxed scalars are not references")
}

func TestAssignableNull(t *testing.T) {
	in := NewInterner()
	def := classDef("/a.loom", "Widget")
	widget := in.Class(def, nil)

	assert.True(t, Assignable(in.Null(), widget))
	assert.True(t, Assignable(in.Null(), in.Union(widget, in.Null())))
	assert.False(t, Assignable(in.Null(), in.I32()))
}

func TestAssignableLiteralWidening(t *testing.T) {
	in := NewInterner()
	assert.True(t, Assignable(in.IntLit(5, I32), in.I32()))
	assert.True(t, Assignable(in.StrLit("get"), in.String()))
	assert.False(t, Assignable(in.I32(), in.IntLit(5, I32)))
	assert.False(t, Assignable(in.IntLit(5, I32), in.I64()))
}

func TestAssignableUnions(t *testing.T) {
	in := NewInterner()
	get := in.StrLit("get")
	put := in.StrLit("put")
	union := in.Union(get, put)

	// Union on the right: some member accepts.
	assert.True(t, Assignable(get, union))
	assert.False(t, Assignable(in.StrLit("post"), union))

	// Union on the left: every member must fit.
	assert.True(t, Assignable(union, in.String()))
	assert.False(t, Assignable(in.Union(get, in.IntLit(1, I32)), in.String()))
}

func TestAssignableClassExtends(t *testing.T) {
	in := NewInterner()
	base := classDef("/shapes.loom", "Shape")
	square := classDef("/shapes.loom", "Square")
	square.Super = in.Class(base, nil)

	assert.True(t, Assignable(in.Class(square, nil), in.Class(base, nil)))
	assert.False(t, Assignable(in.Class(base, nil), in.Class(square, nil)))
}

func TestAssignableClassTypeArgsInvariant(t *testing.T) {
	in := NewInterner()
	tp := &TypeParamDef{Name: "T", Constraint: nil, Default: nil, ScopeID: 1}
	box := classDef("/box.loom", "Box", tp)

	boxI32 := in.Class(box, []Type{in.I32()})
	boxI64 := in.Class(box, []Type{in.I64()})
	assert.True(t, Assignable(boxI32, boxI32))
	assert.False(t, Assignable(boxI32, boxI64))
}

func TestAssignableInterfaceByIdentity(t *testing.T) {
	in := NewInterner()
	// Two interfaces with the same name from different libraries are
	// distinct.
	ifaceA := &InterfaceDef{Library: "/a.loom", Name: "Handler", TypeParams: nil, Extends: nil, Methods: nil, AST: nil}
	ifaceB := &InterfaceDef{Library: "/b.loom", Name: "Handler", TypeParams: nil, Extends: nil, Methods: nil, AST: nil}

	impl := classDef("/c.loom", "Impl")
	impl.Interfaces = []*InterfaceType{in.Interface(ifaceA, nil)}

	assert.True(t, Assignable(in.Class(impl, nil), in.Interface(ifaceA, nil)))
	assert.False(t, Assignable(in.Class(impl, nil), in.Interface(ifaceB, nil)))
}

func TestAssignableFunctions(t *testing.T) {
	in := NewInterner()
	base := classDef("/shapes.loom", "Shape")
	square := classDef("/shapes.loom", "Square")
	square.Super = in.Class(base, nil)
	shape := in.Class(base, nil)
	sq := in.Class(square, nil)

	// Contravariant parameters, covariant return.
	takesShape := in.Func([]*ParamDef{{Name: "s", Type: shape}}, sq).(*FuncType)
	takesSquare := in.Func([]*ParamDef{{Name: "s", Type: sq}}, shape).(*FuncType)
	assert.True(t, Assignable(takesShape, takesSquare))
	assert.False(t, Assignable(takesSquare, takesShape))

	// Arity adaptation: fewer parameters fit a wider target.
	thunk := in.Func(nil, shape)
	assert.True(t, Assignable(thunk, takesSquare))
	assert.False(t, Assignable(takesSquare, thunk))
}

func TestAssignableDistinctInvariance(t *testing.T) {
	in := NewInterner()
	meters := &AliasDef{Library: "/units.loom", Name: "Meters", TypeParams: nil, Aliased: in.I32(), Distinct: true}
	feet := &AliasDef{Library: "/units.loom", Name: "Feet", TypeParams: nil, Aliased: in.I32(), Distinct: true}

	m := in.Distinct(in.I32(), meters)
	f := in.Distinct(in.I32(), feet)
	assert.True(t, Assignable(m, m))
	assert.False(t, Assignable(m, f))
	assert.False(t, Assignable(m, in.I32()))
	assert.False(t, Assignable(in.I32(), m))
}

func TestMixesPrimitiveAndReference(t *testing.T) {
	in := NewInterner()
	assert.True(t, MixesPrimitiveAndReference([]Type{in.I32(), in.String()}))
	assert.False(t, MixesPrimitiveAndReference([]Type{in.I32(), in.I64()}))
	assert.False(t, MixesPrimitiveAndReference([]Type{in.String(), in.Null()}))
}

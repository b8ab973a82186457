package ast

//sumtype:decl
type TypeAnn interface {
	Node
	isTypeAnn()
}

func (*RefTypeAnn) isTypeAnn()    {}
func (*LitTypeAnn) isTypeAnn()    {}
func (*UnionTypeAnn) isTypeAnn()  {}
func (*TupleTypeAnn) isTypeAnn()  {}
func (*RecordTypeAnn) isTypeAnn() {}
func (*FuncTypeAnn) isTypeAnn()   {}
func (*ArrayTypeAnn) isTypeAnn()  {}
func (*ThisTypeAnn) isTypeAnn()   {}

// RefTypeAnn names a type, possibly with type arguments. Primitives (i32,
// u32, i64, f32, f64, boolean, string, void, never, anyref, null) arrive as
// plain names and are resolved by the checker like any other identifier.
type RefTypeAnn struct {
	node
	Name     *Ident
	TypeArgs []TypeAnn
}

func NewRefTypeAnn(name *Ident, typeArgs []TypeAnn, span Span) *RefTypeAnn {
	return &RefTypeAnn{node: newNode(span), Name: name, TypeArgs: typeArgs}
}

// LitTypeAnn is a literal used as a type, e.g. `"get" | "put"`. Lit is an
// IntLit, StrLit, or BoolLit.
type LitTypeAnn struct {
	node
	Lit Expr
}

func NewLitTypeAnn(lit Expr, span Span) *LitTypeAnn {
	return &LitTypeAnn{node: newNode(span), Lit: lit}
}

type UnionTypeAnn struct {
	node
	Members []TypeAnn
}

func NewUnionTypeAnn(members []TypeAnn, span Span) *UnionTypeAnn {
	return &UnionTypeAnn{node: newNode(span), Members: members}
}

type TupleTypeAnn struct {
	node
	Elems []TypeAnn
}

func NewTupleTypeAnn(elems []TypeAnn, span Span) *TupleTypeAnn {
	return &TupleTypeAnn{node: newNode(span), Elems: elems}
}

type RecordFieldAnn struct {
	Name    *Ident
	TypeAnn TypeAnn
}

type RecordTypeAnn struct {
	node
	Fields []*RecordFieldAnn
}

func NewRecordTypeAnn(fields []*RecordFieldAnn, span Span) *RecordTypeAnn {
	return &RecordTypeAnn{node: newNode(span), Fields: fields}
}

type FuncTypeAnn struct {
	node
	Params []*Param
	Return TypeAnn
}

func NewFuncTypeAnn(params []*Param, ret TypeAnn, span Span) *FuncTypeAnn {
	return &FuncTypeAnn{node: newNode(span), Params: params, Return: ret}
}

// ArrayTypeAnn is #[]T when Fixed, []T otherwise.
type ArrayTypeAnn struct {
	node
	Elem  TypeAnn
	Fixed bool
}

func NewArrayTypeAnn(elem TypeAnn, fixed bool, span Span) *ArrayTypeAnn {
	return &ArrayTypeAnn{node: newNode(span), Elem: elem, Fixed: fixed}
}

type ThisTypeAnn struct {
	node
}

func NewThisTypeAnn(span Span) *ThisTypeAnn {
	return &ThisTypeAnn{node: newNode(span)}
}

package ast

// NodeID is a process-wide stable identity for an AST node. The checker and
// codegen attach inferred types and resolved bindings to nodes through side
// tables keyed by NodeID instead of mutating the nodes themselves.
type NodeID int

var nodeCounter NodeID

func nextNodeID() NodeID {
	nodeCounter++
	return nodeCounter
}

type Node interface {
	ID() NodeID
	Span() Span
}

// node is embedded by every concrete AST node.
type node struct {
	id   NodeID
	span Span
}

func (n *node) ID() NodeID { return n.id }
func (n *node) Span() Span { return n.span }

func newNode(span Span) node {
	return node{id: nextNodeID(), span: span}
}

// If Name is an empty string the identifier is missing in the source.
type Ident struct {
	node
	Name string
}

func NewIdent(name string, span Span) *Ident {
	return &Ident{node: newNode(span), Name: name}
}

// TypeParam is a declared generic parameter, optionally constrained and
// optionally defaulted.
type TypeParam struct {
	Name       *Ident
	Constraint TypeAnn // optional
	Default    TypeAnn // optional
}

func NewTypeParam(name *Ident, constraint TypeAnn, default_ TypeAnn) *TypeParam {
	return &TypeParam{Name: name, Constraint: constraint, Default: default_}
}

// Param is a value parameter of a function, method, or closure. TypeAnn may
// be nil for closure parameters whose type comes from context.
type Param struct {
	Name    *Ident
	TypeAnn TypeAnn
}

func NewParam(name *Ident, typeAnn TypeAnn) *Param {
	return &Param{Name: name, TypeAnn: typeAnn}
}

// Decorator is an annotation such as @intrinsic("array_len") applied to a
// function or method declaration.
type Decorator struct {
	node
	Name string
	Args []Expr
}

func NewDecorator(name string, args []Expr, span Span) *Decorator {
	return &Decorator{node: newNode(span), Name: name, Args: args}
}

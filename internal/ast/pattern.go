package ast

//sumtype:decl
type Pat interface {
	Node
	isPat()
}

func (*LitPat) isPat()      {}
func (*ClassPat) isPat()    {}
func (*EnumPat) isPat()     {}
func (*BindPat) isPat()     {}
func (*WildcardPat) isPat() {}

// LitPat matches one literal value. Lit is an IntLit, StrLit, BoolLit, or
// NullLit.
type LitPat struct {
	node
	Lit Expr
}

func NewLitPat(lit Expr, span Span) *LitPat {
	return &LitPat{node: newNode(span), Lit: lit}
}

// ClassPat matches values whose runtime class is the named class (or a
// subclass), optionally binding the narrowed value.
type ClassPat struct {
	node
	Class   *RefTypeAnn
	Binding *Ident // optional
}

func NewClassPat(class *RefTypeAnn, binding *Ident, span Span) *ClassPat {
	return &ClassPat{node: newNode(span), Class: class, Binding: binding}
}

// EnumPat matches one enum member, written Enum.Member.
type EnumPat struct {
	node
	Enum   *Ident
	Member *Ident
}

func NewEnumPat(enum *Ident, member *Ident, span Span) *EnumPat {
	return &EnumPat{node: newNode(span), Enum: enum, Member: member}
}

// BindPat matches anything and binds the scrutinee.
type BindPat struct {
	node
	Name *Ident
}

func NewBindPat(name *Ident, span Span) *BindPat {
	return &BindPat{node: newNode(span), Name: name}
}

type WildcardPat struct {
	node
}

func NewWildcardPat(span Span) *WildcardPat {
	return &WildcardPat{node: newNode(span)}
}

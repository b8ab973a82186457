package ast

//sumtype:decl
type ClassMember interface {
	Node
	isClassMember()
	MemberName() string
}

func (*FieldDecl) isClassMember()  {}
func (*MethodDecl) isClassMember() {}
func (*GetterDecl) isClassMember() {}
func (*SetterDecl) isClassMember() {}
func (*CtorDecl) isClassMember()   {}

type FieldDecl struct {
	node
	Name    *Ident
	TypeAnn TypeAnn // optional when Init is present
	Init    Expr    // optional when TypeAnn is present
	Private bool
	Static  bool
}

func NewFieldDecl(name *Ident, typeAnn TypeAnn, init Expr, span Span) *FieldDecl {
	return &FieldDecl{node: newNode(span), Name: name, TypeAnn: typeAnn, Init: init, Private: false, Static: false}
}

func (f *FieldDecl) MemberName() string { return f.Name.Name }

type MethodDecl struct {
	node
	Name       *Ident
	TypeParams []*TypeParam
	Params     []*Param
	Return     TypeAnn // optional, void when absent
	Body       *Block  // nil for abstract methods and interface signatures
	Private    bool
	Static     bool
	Final      bool
	Abstract   bool
	Decorators []*Decorator
}

func NewMethodDecl(name *Ident, typeParams []*TypeParam, params []*Param, ret TypeAnn, body *Block, span Span) *MethodDecl {
	return &MethodDecl{
		node:       newNode(span),
		Name:       name,
		TypeParams: typeParams,
		Params:     params,
		Return:     ret,
		Body:       body,
		Private:    false,
		Static:     false,
		Final:      false,
		Abstract:   false,
		Decorators: nil,
	}
}

func (m *MethodDecl) MemberName() string { return m.Name.Name }

// IntrinsicName returns the argument of an @intrinsic("...") decorator, or
// "" when the method carries none.
func (m *MethodDecl) IntrinsicName() string {
	for _, dec := range m.Decorators {
		if dec.Name == "intrinsic" && len(dec.Args) == 1 {
			if lit, ok := dec.Args[0].(*StrLit); ok {
				return lit.Value
			}
		}
	}
	return ""
}

type GetterDecl struct {
	node
	Name    *Ident
	Return  TypeAnn
	Body    *Block // nil in interface signatures
	Private bool
	Static  bool
	Final   bool
}

func NewGetterDecl(name *Ident, ret TypeAnn, body *Block, span Span) *GetterDecl {
	return &GetterDecl{node: newNode(span), Name: name, Return: ret, Body: body, Private: false, Static: false, Final: false}
}

// MemberName prefixes the accessor name so that getters conflict with
// overridden getters and final-method checks see them as `get_X`.
func (g *GetterDecl) MemberName() string { return "get_" + g.Name.Name }

type SetterDecl struct {
	node
	Name    *Ident
	Param   *Param
	Body    *Block // nil in interface signatures
	Private bool
	Static  bool
	Final   bool
}

func NewSetterDecl(name *Ident, param *Param, body *Block, span Span) *SetterDecl {
	return &SetterDecl{node: newNode(span), Name: name, Param: param, Body: body, Private: false, Static: false, Final: false}
}

func (s *SetterDecl) MemberName() string { return "set_" + s.Name.Name }

// CtorDecl is the class constructor, written #new in source.
type CtorDecl struct {
	node
	Params []*Param
	Body   *Block
}

func NewCtorDecl(params []*Param, body *Block, span Span) *CtorDecl {
	return &CtorDecl{node: newNode(span), Params: params, Body: body}
}

func (c *CtorDecl) MemberName() string { return "#new" }

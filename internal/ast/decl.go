package ast

//sumtype:decl
type Decl interface {
	Node
	isDecl()
	DeclName() string
	Exported() bool
}

func (*LetDecl) isDecl()       {}
func (*FuncDecl) isDecl()      {}
func (*ClassDecl) isDecl()     {}
func (*InterfaceDecl) isDecl() {}
func (*MixinDecl) isDecl()     {}
func (*EnumDecl) isDecl()      {}
func (*TypeAliasDecl) isDecl() {}

type LetKind int

const (
	// LetKindLet bindings are immutable; literal initializers keep their
	// literal type.
	LetKindLet LetKind = iota
	// LetKindVar bindings are mutable; literal initializers widen to their
	// base primitive.
	LetKindVar
)

type LetDecl struct {
	node
	Kind    LetKind
	Name    *Ident
	TypeAnn TypeAnn // optional
	Init    Expr
	Export  bool
}

func NewLetDecl(kind LetKind, name *Ident, typeAnn TypeAnn, init Expr, export bool, span Span) *LetDecl {
	return &LetDecl{node: newNode(span), Kind: kind, Name: name, TypeAnn: typeAnn, Init: init, Export: export}
}

func (d *LetDecl) DeclName() string { return d.Name.Name }
func (d *LetDecl) Exported() bool   { return d.Export }

type FuncDecl struct {
	node
	Name       *Ident
	TypeParams []*TypeParam
	Params     []*Param
	Return     TypeAnn // optional, void when absent
	Body       *Block
	Export     bool
	Decorators []*Decorator
}

func NewFuncDecl(name *Ident, typeParams []*TypeParam, params []*Param, ret TypeAnn, body *Block, export bool, span Span) *FuncDecl {
	return &FuncDecl{
		node:       newNode(span),
		Name:       name,
		TypeParams: typeParams,
		Params:     params,
		Return:     ret,
		Body:       body,
		Export:     export,
		Decorators: nil,
	}
}

func (d *FuncDecl) DeclName() string { return d.Name.Name }
func (d *FuncDecl) Exported() bool   { return d.Export }

type ClassDecl struct {
	node
	Name       *Ident
	TypeParams []*TypeParam
	Super      *RefTypeAnn   // optional
	Implements []*RefTypeAnn
	Mixins     []*RefTypeAnn
	Members    []ClassMember
	IsAbstract bool
	IsFinal    bool
	// ExtensionOn marks an extension class over the given inner type.
	ExtensionOn TypeAnn
	Export      bool
}

func NewClassDecl(name *Ident, typeParams []*TypeParam, super *RefTypeAnn, members []ClassMember, span Span) *ClassDecl {
	return &ClassDecl{
		node:       newNode(span),
		Name:       name,
		TypeParams: typeParams,
		Super:      super,
		Implements: nil,
		Mixins:     nil,
		Members:     members,
		IsAbstract:  false,
		IsFinal:     false,
		ExtensionOn: nil,
		Export:      false,
	}
}

func (d *ClassDecl) DeclName() string { return d.Name.Name }
func (d *ClassDecl) Exported() bool   { return d.Export }

type InterfaceDecl struct {
	node
	Name       *Ident
	TypeParams []*TypeParam
	Extends    []*RefTypeAnn
	Members    []ClassMember // method and accessor signatures, no bodies
	Export     bool
}

func NewInterfaceDecl(name *Ident, typeParams []*TypeParam, extends []*RefTypeAnn, members []ClassMember, span Span) *InterfaceDecl {
	return &InterfaceDecl{
		node:       newNode(span),
		Name:       name,
		TypeParams: typeParams,
		Extends:    extends,
		Members:    members,
		Export:     false,
	}
}

func (d *InterfaceDecl) DeclName() string { return d.Name.Name }
func (d *InterfaceDecl) Exported() bool   { return d.Export }

type MixinDecl struct {
	node
	Name       *Ident
	TypeParams []*TypeParam
	On         *RefTypeAnn // optional `on` requirement
	Members    []ClassMember
	Export     bool
}

func NewMixinDecl(name *Ident, typeParams []*TypeParam, on *RefTypeAnn, members []ClassMember, span Span) *MixinDecl {
	return &MixinDecl{
		node:       newNode(span),
		Name:       name,
		TypeParams: typeParams,
		On:         on,
		Members:    members,
		Export:     false,
	}
}

func (d *MixinDecl) DeclName() string { return d.Name.Name }
func (d *MixinDecl) Exported() bool   { return d.Export }

type EnumMember struct {
	node
	Name *Ident
}

func NewEnumMember(name *Ident, span Span) *EnumMember {
	return &EnumMember{node: newNode(span), Name: name}
}

type EnumDecl struct {
	node
	Name    *Ident
	Members []*EnumMember
	Export  bool
}

func NewEnumDecl(name *Ident, members []*EnumMember, span Span) *EnumDecl {
	return &EnumDecl{node: newNode(span), Name: name, Members: members, Export: false}
}

func (d *EnumDecl) DeclName() string { return d.Name.Name }
func (d *EnumDecl) Exported() bool   { return d.Export }

type TypeAliasDecl struct {
	node
	Name       *Ident
	TypeParams []*TypeParam
	Aliased    TypeAnn
	// Distinct aliases introduce a new nominal type over the aliased type
	// rather than a transparent name for it.
	Distinct bool
	Export   bool
}

func NewTypeAliasDecl(name *Ident, typeParams []*TypeParam, aliased TypeAnn, distinct bool, span Span) *TypeAliasDecl {
	return &TypeAliasDecl{
		node:       newNode(span),
		Name:       name,
		TypeParams: typeParams,
		Aliased:    aliased,
		Distinct:   distinct,
		Export:     false,
	}
}

func (d *TypeAliasDecl) DeclName() string { return d.Name.Name }
func (d *TypeAliasDecl) Exported() bool   { return d.Export }

package types

import (
	"github.com/loom-lang/loom/internal/ast"
)

// TypeParamDef is one declared generic parameter of a class, interface,
// mixin, alias, function, or method.
type TypeParamDef struct {
	Name       string
	Constraint Type // optional upper bound
	Default    Type // optional
	ScopeID    int
}

// Ref returns the TypeParamType that references this parameter.
func (p *TypeParamDef) Ref() *TypeParamType {
	return &TypeParamType{Name: p.Name, ScopeID: p.ScopeID}
}

type FieldDef struct {
	Name      string
	Type      Type
	Private   bool
	Static    bool
	Init      ast.Expr // optional initializer expression
	DeclOrder int      // position within the declaring class body
}

type MethodKind int

const (
	MethodKindMethod MethodKind = iota
	MethodKindGetter
	MethodKindSetter
	MethodKindCtor
)

type MethodDef struct {
	Name       string // accessors carry their get_/set_ prefixed name
	Kind       MethodKind
	TypeParams []*TypeParamDef
	Params     []*ParamDef
	Return     Type
	Private    bool
	Static     bool
	Final      bool
	Abstract   bool
	Intrinsic  string // non-empty for @intrinsic methods
	Body       *ast.Block
	// AST is the declaring member node, used by codegen monomorphization.
	AST ast.ClassMember
}

// Sig returns the method's signature as a function type.
func (m *MethodDef) Sig() *FuncType {
	return &FuncType{TypeParams: m.TypeParams, Params: m.Params, Return: m.Return}
}

// ClassDef is the metadata for one class declaration. One ClassDef is shared
// by every specialization of the class; identity is (Library, Name).
type ClassDef struct {
	Library    string
	Name       string
	TypeParams []*TypeParamDef
	// Super is the declared superclass with the declaration's own type
	// parameters still free; specializations substitute into it.
	Super      *ClassType
	Interfaces []*InterfaceType
	Mixins     []*MixinType
	IsAbstract bool
	IsFinal    bool
	// IsExtension marks an extension class; ExtensionOn is the inner type
	// the extension wraps.
	IsExtension bool
	ExtensionOn Type
	Fields      []*FieldDef
	Methods     []*MethodDef
	Ctor        *MethodDef // optional
	AST         *ast.ClassDecl
}

// FindMethod returns the method or accessor declared directly on this class,
// not searching the inheritance chain.
func (d *ClassDef) FindMethod(name string) *MethodDef {
	for _, m := range d.Methods {
		if m.Name == name {
			return m
		}
	}
	return nil
}

func (d *ClassDef) FindField(name string) *FieldDef {
	for _, f := range d.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

type InterfaceDef struct {
	Library    string
	Name       string
	TypeParams []*TypeParamDef
	Extends    []*InterfaceType
	Methods    []*MethodDef
	AST        *ast.InterfaceDecl
}

func (d *InterfaceDef) FindMethod(name string) *MethodDef {
	for _, m := range d.Methods {
		if m.Name == name {
			return m
		}
	}
	return nil
}

type MixinDef struct {
	Library    string
	Name       string
	TypeParams []*TypeParamDef
	// On is the base requirement of `mixin M on B`; classes applying M must
	// have B reachable through their extends/mixins chain.
	On      *ClassType
	Fields  []*FieldDef
	Methods []*MethodDef
	AST     *ast.MixinDecl
}

type EnumMemberDef struct {
	Name  string
	Value int32
}

type EnumDef struct {
	Library string
	Name    string
	Members []*EnumMemberDef
	AST     *ast.EnumDecl
}

func (d *EnumDef) FindMember(name string) *EnumMemberDef {
	for _, m := range d.Members {
		if m.Name == name {
			return m
		}
	}
	return nil
}

type AliasDef struct {
	Library    string
	Name       string
	TypeParams []*TypeParamDef
	Aliased    Type
	Distinct   bool
}

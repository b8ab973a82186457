package sema

import (
	"github.com/tidwall/btree"

	"github.com/loom-lang/loom/internal/ast"
	"github.com/loom-lang/loom/internal/types"
)

type BindingKind int

const (
	BindingLocal BindingKind = iota
	BindingGlobal
	BindingFunc
	BindingField
	BindingMethod
	BindingAccessor
	BindingType
	BindingConstructor
	BindingEnumMember
	BindingIntrinsic
)

// Binding is the resolution target of an identifier use. Identity is the
// exported declaration, not the name: two libraries that both export a type
// Handler produce two distinct bindings.
type Binding struct {
	Kind    BindingKind
	Library string // canonical path of the declaring library
	Name    string
	Decl    ast.Node   // declaring node, nil for intrinsics
	Def     any        // types.*Def for type bindings
	Type    types.Type // value type for value bindings
	Mutable bool
}

// PreludeUse records that a library referenced an automatically-imported
// standard-library export.
type PreludeUse struct {
	Library    string
	ExportName string
}

// Context is the process-wide semantic context of one compilation. The
// checker is the only writer; the bundler and code generator read it.
type Context struct {
	Interner *types.Interner

	resolved       map[ast.NodeID]*Binding
	inferred       map[ast.NodeID]types.Type
	specialized    btree.Map[string, *types.ClassType]
	usedPrelude    map[string]PreludeUse
	instantiations map[ast.NodeID]types.Subst

	Diagnostics []*Diagnostic
}

func NewContext() *Context {
	return &Context{
		Interner:    types.NewInterner(),
		resolved:    make(map[ast.NodeID]*Binding),
		inferred:    make(map[ast.NodeID]types.Type),
		specialized:    btree.Map[string, *types.ClassType]{},
		usedPrelude:    make(map[string]PreludeUse),
		instantiations: make(map[ast.NodeID]types.Subst),
		Diagnostics:    nil,
	}
}

func (c *Context) SetBinding(node ast.Node, b *Binding) {
	c.resolved[node.ID()] = b
}

func (c *Context) Binding(node ast.Node) *Binding {
	return c.resolved[node.ID()]
}

// SetType records the inferred type of an expression or type annotation.
// Every expression node has exactly one inferred type; a second write with a
// different type indicates a checker bug.
func (c *Context) SetType(node ast.Node, t types.Type) types.Type {
	if prev, ok := c.inferred[node.ID()]; ok && prev.Key() != t.Key() {
		panic("inferred type set twice for node")
	}
	c.inferred[node.ID()] = t
	return t
}

func (c *Context) TypeOf(node ast.Node) types.Type {
	return c.inferred[node.ID()]
}

// RecordSpecialization canonicalizes one (declaration, typeArgs) class
// specialization. Codegen sees the same layout for every use of the key.
func (c *Context) RecordSpecialization(class *types.ClassType) *types.ClassType {
	if existing, ok := c.specialized.Get(class.Key()); ok {
		return existing
	}
	c.specialized.Set(class.Key(), class)
	return class
}

// Specializations iterates the recorded class specializations in stable key
// order.
func (c *Context) Specializations(fn func(key string, class *types.ClassType) bool) {
	c.specialized.Scan(fn)
}

// SetInstantiation records the type-argument mapping a generic call site was
// checked with; codegen monomorphizes one function per distinct mapping.
func (c *Context) SetInstantiation(node ast.Node, mapping types.Subst) {
	c.instantiations[node.ID()] = mapping
}

func (c *Context) InstantiationOf(node ast.Node) types.Subst {
	return c.instantiations[node.ID()]
}

func (c *Context) MarkPreludeUse(name string, use PreludeUse) {
	c.usedPrelude[name] = use
}

func (c *Context) PreludeUses() map[string]PreludeUse {
	return c.usedPrelude
}

func (c *Context) Report(d *Diagnostic) {
	c.Diagnostics = append(c.Diagnostics, d)
}

// HasErrors reports whether any error-severity diagnostic has been recorded.
func (c *Context) HasErrors() bool {
	for _, d := range c.Diagnostics {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Package checker walks each library of the dependency graph in topological
// order, resolving names, inferring types, and populating the semantic
// context shared with the bundler and code generator.
package checker

import (
	"github.com/loom-lang/loom/internal/ast"
	"github.com/loom-lang/loom/internal/loader"
	"github.com/loom-lang/loom/internal/sema"
	"github.com/loom-lang/loom/internal/types"
)

type Checker struct {
	Sema *sema.Context

	// exports maps a library's canonical path to its exported bindings.
	// A library's exports are finalised before any dependent is checked.
	exports map[string]map[string]*sema.Binding

	scopeID  int
	symbolID int
}

func New(semaCtx *sema.Context) *Checker {
	return &Checker{
		Sema:     semaCtx,
		exports:  make(map[string]map[string]*sema.Binding),
		scopeID:  0,
		symbolID: 0,
	}
}

// NextScopeID allocates the scope identity for one generic declaration's
// type parameters.
func (c *Checker) NextScopeID() int {
	c.scopeID++
	return c.scopeID
}

// Exports returns the export table of a checked library.
func (c *Checker) Exports(path string) map[string]*sema.Binding {
	return c.exports[path]
}

// CheckGraph checks every library of the graph in topological order. A
// cyclic graph is a hard error only when the cycle crosses a generic-class
// layout boundary; value-level circularity surfaces as ordinary diagnostics
// while checking the members.
func (c *Checker) CheckGraph(graph *loader.Graph) {
	if graph.HasCycle && cycleCrossesGenericLayout(graph) {
		for _, path := range graph.CycleMembers {
			c.Sema.Report(sema.NewError(sema.ImportCycle, path, ast.Span{},
				"import cycle through %s crosses a generic class layout", path))
		}
		return
	}
	for _, lib := range graph.Sorted {
		c.CheckLibrary(lib)
	}
}

func cycleCrossesGenericLayout(graph *loader.Graph) bool {
	members := make(map[string]bool, len(graph.CycleMembers))
	for _, p := range graph.CycleMembers {
		members[p] = true
	}
	for _, lib := range graph.Sorted {
		if !members[lib.Path] {
			continue
		}
		for _, stmt := range lib.Stmts {
			decl, ok := stmt.(*ast.DeclStmt)
			if !ok {
				continue
			}
			if class, ok := decl.Decl.(*ast.ClassDecl); ok && len(class.TypeParams) > 0 {
				return true
			}
		}
	}
	return false
}

// scope is one frame of the lexical scope stack. The bottom frame of a
// library holds its globals; inner frames are pushed for blocks, function
// bodies, class bodies, and match arms.
type scope struct {
	parent *scope
	values map[string]*sema.Binding
	types  map[string]*sema.Binding
	// narrowed shadows a binding's type inside a dominated block.
	narrowed map[string]types.Type
}

func newScope(parent *scope) *scope {
	return &scope{
		parent:   parent,
		values:   make(map[string]*sema.Binding),
		types:    make(map[string]*sema.Binding),
		narrowed: nil,
	}
}

// lookupValue searches the scope stack for a value binding. A nil binding
// means not found; the type result is the binding's type, or its narrowed
// type inside a guarded block.
func (s *scope) lookupValue(name string) (*sema.Binding, types.Type) {
	for sc := s; sc != nil; sc = sc.parent {
		if t, ok := sc.narrowed[name]; ok {
			if b := sc.findValue(name); b != nil {
				return b, t
			}
			// The narrowed slot belongs to a binding declared further up.
			for up := sc.parent; up != nil; up = up.parent {
				if b := up.values[name]; b != nil {
					return b, t
				}
			}
		}
		if b := sc.values[name]; b != nil {
			return b, b.Type
		}
	}
	return nil, nil
}

func (s *scope) findValue(name string) *sema.Binding {
	return s.values[name]
}

func (s *scope) lookupType(name string) *sema.Binding {
	for sc := s; sc != nil; sc = sc.parent {
		if b := sc.types[name]; b != nil {
			return b
		}
	}
	return nil
}

// define adds a value binding. Shadowing an outer binding is permitted and
// does not diagnose; redeclaring within the same frame does.
func (s *scope) define(name string, b *sema.Binding) bool {
	if _, exists := s.values[name]; exists {
		return false
	}
	s.values[name] = b
	return true
}

func (s *scope) defineType(name string, b *sema.Binding) bool {
	if _, exists := s.types[name]; exists {
		return false
	}
	s.types[name] = b
	return true
}

func (s *scope) narrow(name string, t types.Type) {
	if s.narrowed == nil {
		s.narrowed = make(map[string]types.Type)
	}
	s.narrowed[name] = t
}

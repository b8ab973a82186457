// Package loader builds the library dependency graph: it loads and parses
// each source exactly once, memoises records by canonical path, and produces
// a topologically sorted graph with cycle detection.
package loader

import (
	"github.com/tidwall/btree"

	"github.com/loom-lang/loom/internal/ast"
	"github.com/loom-lang/loom/internal/host"
	"github.com/loom-lang/loom/internal/parser"
	"github.com/loom-lang/loom/internal/sema"
	"github.com/loom-lang/loom/internal/stdlib"
)

// Library is one source file's record. Records are created on first load,
// cached for the rest of the compilation, and never mutated after the loader
// finishes with them. Identity is (loader, path).
type Library struct {
	Path   string
	Stdlib bool
	Text   string
	Stmts  []ast.Stmt
	// Imports maps each import specifier as written to its resolved
	// canonical path.
	Imports map[string]string
	// ImplicitDeps are the prelude libraries every non-stdlib library
	// depends on without writing an import.
	ImplicitDeps []string
	ParseDiags   []*sema.Diagnostic
	Source       *ast.Source
}

// Deps returns all dependency paths, implicit first.
func (l *Library) Deps() []string {
	deps := make([]string, 0, len(l.ImplicitDeps)+len(l.Imports))
	deps = append(deps, l.ImplicitDeps...)
	for _, stmt := range l.Stmts {
		if imp, ok := stmt.(*ast.ImportStmt); ok {
			if p, ok := l.Imports[imp.Specifier]; ok {
				deps = append(deps, p)
			}
		}
	}
	return deps
}

type Loader struct {
	host         host.Host
	parse        parser.Func
	cache        btree.Map[string, *Library]
	nextSourceID int
}

func NewLoader(h host.Host, parse parser.Func) *Loader {
	return &Loader{host: h, parse: parse, cache: btree.Map[string, *Library]{}, nextSourceID: 0}
}

// Load returns the referentially stable record for path, loading and parsing
// it on first request. The skeletal record is inserted into the cache before
// imports are resolved so that back-edges in the import graph see the
// partially built record instead of recursing forever.
func (l *Loader) Load(path string) (*Library, error) {
	if lib, ok := l.cache.Get(path); ok {
		return lib, nil
	}

	lib := &Library{
		Path:         path,
		Stdlib:       stdlib.IsStdlib(path),
		Text:         "",
		Stmts:        nil,
		Imports:      make(map[string]string),
		ImplicitDeps: nil,
		ParseDiags:   nil,
		Source:       nil,
	}
	l.cache.Set(path, lib)

	text, err := l.host.Load(path)
	if err != nil {
		l.cache.Delete(path)
		return nil, err
	}
	lib.Text = text

	l.nextSourceID++
	lib.Source = &ast.Source{Path: path, Contents: text, ID: l.nextSourceID}

	if stmts, ok := stdlib.StmtsFor(path); ok {
		lib.Stmts = stmts
	} else if l.parse != nil {
		stmts, diags := l.parse(lib.Source)
		lib.Stmts = stmts
		lib.ParseDiags = diags
	}

	if !lib.Stdlib {
		lib.ImplicitDeps = stdlib.PreludePaths()
	}

	for _, dep := range lib.ImplicitDeps {
		if _, err := l.Load(dep); err != nil {
			return nil, err
		}
	}
	for _, stmt := range lib.Stmts {
		imp, ok := stmt.(*ast.ImportStmt)
		if !ok {
			continue
		}
		resolved, err := l.host.Resolve(imp.Specifier, path)
		if err != nil {
			return nil, err
		}
		lib.Imports[imp.Specifier] = resolved
		if _, err := l.Load(resolved); err != nil {
			return nil, err
		}
	}

	return lib, nil
}

// Graph is the topologically sorted dependency graph: dependencies first.
// When HasCycle is set the order is a best-effort postorder and CycleMembers
// lists the libraries participating in at least one cycle.
type Graph struct {
	Sorted       []*Library
	HasCycle     bool
	CycleMembers []string
}

// ComputeGraph loads the entry library's transitive closure and returns the
// dependency-first order via depth-first postorder.
func (l *Loader) ComputeGraph(entry string) (*Graph, error) {
	if _, err := l.Load(entry); err != nil {
		return nil, err
	}

	graph := &Graph{Sorted: nil, HasCycle: false, CycleMembers: nil}
	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	inCycle := make(map[string]bool)
	var stack []string

	var visit func(path string)
	visit = func(path string) {
		if onStack[path] {
			graph.HasCycle = true
			// Every library on the stack from path to the top closes the cycle.
			for i := len(stack) - 1; i >= 0; i-- {
				inCycle[stack[i]] = true
				if stack[i] == path {
					break
				}
			}
			return
		}
		if visited[path] {
			return
		}
		visited[path] = true
		onStack[path] = true
		stack = append(stack, path)
		lib, _ := l.cache.Get(path)
		for _, dep := range lib.Deps() {
			visit(dep)
		}
		onStack[path] = false
		stack = stack[:len(stack)-1]
		graph.Sorted = append(graph.Sorted, lib)
	}
	visit(entry)

	for path := range inCycle {
		graph.CycleMembers = append(graph.CycleMembers, path)
	}
	return graph, nil
}

// Package bundler flattens the checked library graph into a single tree with
// globally unique names, ready for code generation. Non-exported
// declarations are renamed with a per-library prefix; declarations exported
// from the entry library keep their original names.
package bundler

import (
	"strings"

	"github.com/loom-lang/loom/internal/ast"
	"github.com/loom-lang/loom/internal/loader"
)

type Decl struct {
	Lib     *loader.Library
	Decl    ast.Decl
	Mangled string
	// Exported declarations of the entry library become module exports
	// under their original names.
	Exported bool
}

type Unit struct {
	Graph *loader.Graph
	Entry *loader.Library
	Decls []*Decl

	byNode map[ast.NodeID]*Decl
	// TopLevel holds each library's non-declaration statements in topo
	// order, for the start function.
	TopLevel []LibStmts
}

type LibStmts struct {
	Lib   *loader.Library
	Stmts []ast.Stmt
}

// ByDecl returns the bundled entry for a declaration node.
func (u *Unit) ByDecl(d ast.Decl) *Decl {
	return u.byNode[d.ID()]
}

// libPrefix derives a stable, identifier-safe prefix from a canonical path.
func libPrefix(path string) string {
	base := path
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	base = strings.TrimSuffix(base, ".loom")
	var sb strings.Builder
	for _, r := range base {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		} else {
			sb.WriteByte('_')
		}
	}
	return sb.String()
}

// Bundle produces the unit for a checked graph. The entry library is the
// last element of the topological order.
func Bundle(graph *loader.Graph) *Unit {
	unit := &Unit{
		Graph:    graph,
		Entry:    nil,
		Decls:    nil,
		byNode:   make(map[ast.NodeID]*Decl),
		TopLevel: nil,
	}
	if len(graph.Sorted) > 0 {
		unit.Entry = graph.Sorted[len(graph.Sorted)-1]
	}

	taken := make(map[string]int)
	unique := func(name string) string {
		n, seen := taken[name]
		taken[name] = n + 1
		if !seen {
			return name
		}
		return name + "_" + strings.Repeat("x", n)
	}

	for _, lib := range graph.Sorted {
		prefix := libPrefix(lib.Path)
		var topLevel []ast.Stmt
		for _, stmt := range lib.Stmts {
			declStmt, ok := stmt.(*ast.DeclStmt)
			if !ok {
				if _, isImport := stmt.(*ast.ImportStmt); !isImport {
					topLevel = append(topLevel, stmt)
				}
				continue
			}
			d := declStmt.Decl
			exported := d.Exported() && lib == unit.Entry
			mangled := d.DeclName()
			if !exported {
				mangled = unique(prefix + "__" + d.DeclName())
			} else {
				mangled = unique(mangled)
			}
			entry := &Decl{Lib: lib, Decl: d, Mangled: mangled, Exported: exported}
			unit.Decls = append(unit.Decls, entry)
			unit.byNode[d.ID()] = entry
		}
		if len(topLevel) > 0 {
			unit.TopLevel = append(unit.TopLevel, LibStmts{Lib: lib, Stmts: topLevel})
		}
	}
	return unit
}

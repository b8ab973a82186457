// Package parser declares the interface between the compiler and the
// front-end. The lexer and parser themselves live in the front-end
// distribution; the compiler only depends on the shape of their output.
package parser

import (
	"github.com/loom-lang/loom/internal/ast"
	"github.com/loom-lang/loom/internal/sema"
)

// Func parses one library source into its top-level statements. Parse
// failures are reported as diagnostics, not errors; the loader stores them
// on the library record and keeps loading siblings.
type Func func(source *ast.Source) ([]ast.Stmt, []*sema.Diagnostic)

// Default is the front-end registered by the linked distribution. A build
// without a front-end can still use every compiler API that accepts
// pre-parsed statements.
var Default Func

// Package stdlib is the registry of standard-library sources: a fixed set of
// named text blobs with canonical paths under the loom:std/ prefix.
//
// The compiler consumes the standard library in pre-parsed form so that the
// backend does not depend on the front-end being linked in; the text blobs
// are the canonical source the front-end distribution ships.
package stdlib

import (
	"strings"
	"sync"

	"github.com/loom-lang/loom/internal/ast"
)

// Prefix is the canonical-path prefix of every standard library.
const Prefix = "loom:std/"

type library struct {
	name  string
	path  string
	text  string
	stmts func() []ast.Stmt
}

var libraries = []*library{
	{
		name: "core",
		path: Prefix + "core",
		text: coreText,
		stmts: func() []ast.Stmt {
			coreOnce.Do(buildCore)
			return coreStmts
		},
	},
}

// PreludePaths are the libraries automatically imported into every non-stdlib
// library, in load order.
func PreludePaths() []string {
	return []string{Prefix + "core"}
}

func IsStdlib(path string) bool {
	return strings.HasPrefix(path, Prefix)
}

func PathFor(name string) (string, bool) {
	for _, lib := range libraries {
		if lib.name == name {
			return lib.path, true
		}
	}
	return "", false
}

func TextFor(path string) (string, bool) {
	for _, lib := range libraries {
		if lib.path == path {
			return lib.text, true
		}
	}
	return "", false
}

// StmtsFor returns the pre-parsed statements of a standard library.
func StmtsFor(path string) ([]ast.Stmt, bool) {
	for _, lib := range libraries {
		if lib.path == path {
			return lib.stmts(), true
		}
	}
	return nil, false
}

const coreText = `export class Error {
  message: string

  #new(message: string) {
    this.message = message
  }
}
`

var (
	coreOnce  sync.Once
	coreStmts []ast.Stmt
)

func span(line int) ast.Span {
	return ast.NewSpan(ast.Location{Line: line, Column: 1}, ast.Location{Line: line, Column: 1}, 0)
}

// buildCore constructs the parsed form of coreText.
func buildCore() {
	strAnn := func(line int) ast.TypeAnn {
		return ast.NewRefTypeAnn(ast.NewIdent("string", span(line)), nil, span(line))
	}

	msgField := ast.NewFieldDecl(ast.NewIdent("message", span(2)), strAnn(2), nil, span(2))

	ctorBody := ast.NewBlock([]ast.Stmt{
		ast.NewExprStmt(
			ast.NewAssignExpr(
				ast.NewMemberExpr(ast.NewThisExpr(span(5)), ast.NewIdent("message", span(5)), span(5)),
				ast.NewIdentExpr("message", span(5)),
				span(5),
			),
			span(5),
		),
	}, span(5))
	ctor := ast.NewCtorDecl(
		[]*ast.Param{ast.NewParam(ast.NewIdent("message", span(4)), strAnn(4))},
		ctorBody,
		span(4),
	)

	errorClass := ast.NewClassDecl(
		ast.NewIdent("Error", span(1)),
		nil, nil,
		[]ast.ClassMember{msgField, ctor},
		span(1),
	)
	errorClass.Export = true

	coreStmts = []ast.Stmt{ast.NewDeclStmt(errorClass, span(1))}
}

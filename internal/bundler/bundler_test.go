package bundler_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loom-lang/loom/internal/ast"
	"github.com/loom-lang/loom/internal/bundler"
	"github.com/loom-lang/loom/internal/loader"
	tu "github.com/loom-lang/loom/internal/test_util"
)

func bundle(t *testing.T, entry string, prog tu.Program) *bundler.Unit {
	t.Helper()
	ld := loader.NewLoader(tu.HostFor(prog), tu.ParseFuncFor(prog))
	graph, err := ld.ComputeGraph(entry)
	require.NoError(t, err)
	return bundler.Bundle(graph)
}

func TestMangledNamesAreUnique(t *testing.T) {
	util1 := tu.Fn("helper", nil, tu.Ref("i32"), tu.Block(tu.Ret(tu.Int(1))))
	util2 := tu.Fn("helper", nil, tu.Ref("i32"), tu.Block(tu.Ret(tu.Int(2))))

	unit := bundle(t, "/main.loom", tu.Program{
		"/a.loom":    {util1},
		"/b.loom":    {util2},
		"/main.loom": {tu.Import("./a"), tu.Import("./b")},
	})

	seen := make(map[string]bool)
	for _, d := range unit.Decls {
		assert.False(t, seen[d.Mangled], "duplicate mangled name %q", d.Mangled)
		seen[d.Mangled] = true
	}
}

func TestEntryExportsKeepOriginalNames(t *testing.T) {
	exported := tu.ExportFn("run", nil, tu.Ref("i32"), tu.Block(tu.Ret(tu.Int(1))))
	internal := tu.Fn("internalHelper", nil, tu.Ref("i32"), tu.Block(tu.Ret(tu.Int(2))))

	unit := bundle(t, "/main.loom", tu.Program{
		"/main.loom": {exported, internal},
	})

	var runDecl, helperDecl *bundler.Decl
	for _, d := range unit.Decls {
		switch d.Decl.DeclName() {
		case "run":
			runDecl = d
		case "internalHelper":
			helperDecl = d
		}
	}
	require.NotNil(t, runDecl)
	require.NotNil(t, helperDecl)

	assert.True(t, runDecl.Exported)
	assert.Equal(t, "run", runDecl.Mangled)
	assert.False(t, helperDecl.Exported)
	assert.NotEqual(t, "internalHelper", helperDecl.Mangled)
	assert.Contains(t, helperDecl.Mangled, "internalHelper")
}

func TestNonEntryExportsAreRenamed(t *testing.T) {
	libFn := tu.ExportFn("shared", nil, tu.Ref("i32"), tu.Block(tu.Ret(tu.Int(3))))

	unit := bundle(t, "/main.loom", tu.Program{
		"/lib.loom":  {libFn},
		"/main.loom": {tu.Import("./lib", "shared")},
	})

	for _, d := range unit.Decls {
		if d.Decl.DeclName() == "shared" {
			assert.False(t, d.Exported, "only entry-library exports survive")
			assert.NotEqual(t, "shared", d.Mangled)
		}
	}
}

func TestTopLevelStatementsKeptInOrder(t *testing.T) {
	first := tu.ExprS(tu.Int(1))
	second := tu.ExprS(tu.Int(2))
	unit := bundle(t, "/main.loom", tu.Program{
		"/main.loom": {first, second},
	})

	require.Len(t, unit.TopLevel, 1)
	stmts := unit.TopLevel[0].Stmts
	require.Len(t, stmts, 2)
	assert.Equal(t, ast.Node(first).ID(), stmts[0].ID())
	assert.Equal(t, ast.Node(second).ID(), stmts[1].ID())
}

package compiler_test

import (
	"testing"

	"github.com/gkampitakis/go-snaps/snaps"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loom-lang/loom/internal/ast"
	"github.com/loom-lang/loom/internal/compiler"
	tu "github.com/loom-lang/loom/internal/test_util"
)

var wasmMagic = []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}

func compileMain(t *testing.T, stmts ...ast.Stmt) *compiler.Result {
	t.Helper()
	result, err := tu.CompileProgram("/main.loom", tu.Program{"/main.loom": stmts})
	require.NoError(t, err)
	require.Empty(t, tu.Diags(result.Diagnostics), "expected a clean compile")
	return result
}

func TestTopLevelGlobalsExported(t *testing.T) {
	result := compileMain(t,
		tu.ExportLet("x", tu.Int(1)),
		tu.ExportLet("y", tu.Bin(ast.Plus, tu.Use("x"), tu.Int(1))),
	)
	assert.Equal(t, wasmMagic, result.OutputBytes[:8])
	assert.Contains(t, result.Dump, `export "x" = global`)
	assert.Contains(t, result.Dump, `export "y" = global`)
	// Values are computed by the start function.
	assert.Contains(t, result.Dump, "start: func")
}

func TestAbstractShapeSquare(t *testing.T) {
	area := tu.Method("area", nil, tu.Ref("i32"), nil)
	area.Abstract = true
	shape := tu.ClassD("Shape", area)
	shape.IsAbstract = true

	side := tu.Field("side", nil, tu.Cast(tu.Int(5), tu.Ref("i32")))
	areaImpl := tu.Method("area", nil, tu.Ref("i32"),
		tu.Block(tu.Ret(tu.Bin(ast.Times,
			tu.Member(tu.This(), "side"),
			tu.Member(tu.This(), "side")))))
	square := tu.ClassD("Square", side, areaImpl)
	square.Super = tu.Ref("Shape")

	result := compileMain(t,
		tu.DeclS(shape),
		tu.DeclS(square),
		tu.ExportFn("main", nil, tu.Ref("i32"),
			tu.Block(tu.Ret(tu.Call(tu.Member(tu.New(tu.Ref("Square")), "area"))))),
	)
	assert.Contains(t, result.Dump, `export "main" = func`)
	assert.Contains(t, result.Dump, "Square.vtable")
}

func TestTryCatchCompiles(t *testing.T) {
	result := compileMain(t,
		tu.ExportFn("f", nil, tu.Ref("i32"), tu.Block(
			tu.Try(
				tu.Block(tu.Throw(tu.New(tu.Ref("Error"), tu.Str("x")))),
				"e",
				tu.Block(tu.Ret(tu.Int(42))),
				nil,
			),
			tu.Ret(tu.Int(0)),
		)),
	)
	// One exception tag per module, exported for the host.
	assert.Contains(t, result.Dump, `export "exception" = tag`)
}

func TestGenericBoxMonomorphization(t *testing.T) {
	value := tu.Field("value", tu.Ref("T"), nil)
	ctorM := tu.Ctor([]*ast.Param{tu.Param("v", tu.Ref("T"))},
		tu.Block(tu.ExprS(tu.Assign(tu.Member(tu.This(), "value"), tu.Use("v")))))
	get := tu.Method("get", nil, tu.Ref("T"),
		tu.Block(tu.Ret(tu.Member(tu.This(), "value"))))
	box := ast.NewClassDecl(tu.Id("Box"),
		[]*ast.TypeParam{tu.TP("T")}, nil,
		[]ast.ClassMember{value, ctorM, get}, tu.Sp())
	box.Export = true

	prog := tu.Program{
		"/box.loom": {tu.DeclS(box)},
		"/main.loom": {
			tu.Import("./box", "Box"),
			tu.ExportFn("ints", nil, tu.Ref("i32"), tu.Block(
				tu.Ret(tu.Call(tu.Member(
					tu.New(tu.Ref("Box", tu.Ref("i32")), tu.Int(7)), "get"))))),
			tu.ExportFn("strs", nil, tu.Ref("string"), tu.Block(
				tu.Ret(tu.Call(tu.Member(
					tu.New(tu.Ref("Box", tu.Ref("string")), tu.Str("s")), "get"))))),
		},
	}
	result, err := tu.CompileProgram("/main.loom", prog)
	require.NoError(t, err)
	require.Empty(t, tu.Diags(result.Diagnostics))

	// Two distinct struct types and two distinct get functions.
	assert.Contains(t, result.Dump, "Box<i32>")
	assert.Contains(t, result.Dump, "Box<string>")
	assert.Contains(t, result.Dump, "Box<i32>::get")
	assert.Contains(t, result.Dump, "Box<string>::get")
}

func TestTwoLibraryHandlers(t *testing.T) {
	handlerA := tu.ClassD("Handler",
		tu.Method("handle", []*ast.Param{tu.Param("x", tu.Ref("i32"))}, tu.Ref("i32"),
			tu.Block(tu.Ret(tu.Bin(ast.Times, tu.Use("x"), tu.Int(2))))))
	handlerA.Export = true
	handlerB := tu.ClassD("Handler",
		tu.Method("process", []*ast.Param{tu.Param("x", tu.Ref("i32"))}, tu.Ref("i32"),
			tu.Block(tu.Ret(tu.Bin(ast.Plus, tu.Use("x"), tu.Int(100))))))
	handlerB.Export = true

	prog := tu.Program{
		"/a.loom": {tu.DeclS(handlerA)},
		"/b.loom": {tu.DeclS(handlerB)},
		"/main.loom": {
			tu.Import("./a", "Handler"),
			tu.ImportAs("./b", "Handler", "BHandler"),
			tu.ExportFn("runA", nil, tu.Ref("i32"), tu.Block(
				tu.Ret(tu.Call(tu.Member(tu.New(tu.Ref("Handler")), "handle"), tu.Int(10))))),
			tu.ExportFn("runB", nil, tu.Ref("i32"), tu.Block(
				tu.Ret(tu.Call(tu.Member(tu.New(tu.Ref("BHandler")), "process"), tu.Int(10))))),
		},
	}
	result, err := tu.CompileProgram("/main.loom", prog)
	require.NoError(t, err)
	require.Empty(t, tu.Diags(result.Diagnostics))

	// Each library's Handler keeps its own layout, vtable, and methods.
	assert.Contains(t, result.Dump, "/a.loom#Handler::handle")
	assert.Contains(t, result.Dump, "/b.loom#Handler::process")
}

func TestDeadCodeElimination(t *testing.T) {
	stmts := func() []ast.Stmt {
		return []ast.Stmt{
			tu.Fn("unused", nil, tu.Ref("i32"), tu.Block(tu.Ret(tu.Int(1)))),
			tu.ExportFn("main", nil, tu.Ref("i32"), tu.Block(tu.Ret(tu.Int(2)))),
		}
	}

	prog := tu.Program{"/main.loom": stmts()}
	withDCE, err := tu.CompileProgram("/main.loom", prog)
	require.NoError(t, err)
	require.Empty(t, tu.Diags(withDCE.Diagnostics))
	assert.NotContains(t, withDCE.Dump, "unused")

	prog2 := tu.Program{"/main.loom": stmts()}
	withoutDCE, err := compiler.Compile("/main.loom", compiler.Options{
		Host:   tu.HostFor(prog2),
		Parse:  tu.ParseFuncFor(prog2),
		Target: compiler.TargetBrowser,
		DCE:    false,
		Debug:  false,
	})
	require.NoError(t, err)
	require.Empty(t, tu.Diags(withoutDCE.Diagnostics))
	assert.Contains(t, withoutDCE.Dump, "unused")
}

func TestShortCircuitAndDivision(t *testing.T) {
	// The right operand of || is lowered behind a branch, so a division in
	// it is not evaluated when the left is true.
	result := compileMain(t,
		tu.LetAnn("n", tu.Ref("i32"), tu.Int(0)),
		tu.ExportFn("f", nil, tu.Ref("boolean"), tu.Block(
			tu.Ret(tu.Bin(ast.LogicalOr,
				tu.Bool(true),
				tu.Bin(ast.EqualEqual,
					tu.Bin(ast.Divide, tu.Int(1), tu.Use("n")),
					tu.Int(0)))))),
	)
	assert.NotEmpty(t, result.OutputBytes)
}

func TestRecordFieldOrderCanonical(t *testing.T) {
	a := compileMain(t, tu.ExportLet("r", tu.Rec(tu.RF("x", tu.Int(1)), tu.RF("y", tu.Int(2)))))
	b := compileMain(t, tu.ExportLet("r", tu.Rec(tu.RF("y", tu.Int(2)), tu.RF("x", tu.Int(1)))))

	// Programs differing only in field order share the struct shape.
	assert.Contains(t, a.Dump, "{x: i32, y: i32}")
	assert.Contains(t, b.Dump, "{x: i32, y: i32}")
}

func TestFixedArrayIndexCompiles(t *testing.T) {
	result := compileMain(t,
		tu.ExportFn("f", nil, tu.Ref("i32"), tu.Block(
			tu.DeclS(ast.NewLetDecl(ast.LetKindLet, tu.Id("arr"), nil, tu.FixedArr(tu.Int(1), tu.Int(2), tu.Int(3)), false, tu.Sp())),
			tu.Ret(tu.Index(tu.Use("arr"), tu.Int(3))),
		)),
	)
	assert.NotEmpty(t, result.OutputBytes)
}

func TestTaggedTemplateGlobal(t *testing.T) {
	result := compileMain(t,
		tu.ExportFn("f", nil, tu.Ref("string"), tu.Block(
			tu.Ret(tu.Tmpl(nil, []string{"a=", "!"}, tu.Int(1))),
		)),
	)
	assert.Contains(t, result.Dump, "template")
}

func TestClosureCaptureCompiles(t *testing.T) {
	result := compileMain(t,
		tu.ExportFn("f", nil, tu.Ref("i32"), tu.Block(
			tu.VarD("count", tu.Int(0)),
			tu.DeclS(ast.NewLetDecl(ast.LetKindLet, tu.Id("inc"), nil,
				tu.Closure(nil, tu.Ref("i32"), tu.Block(
					tu.ExprS(tu.Assign(tu.Use("count"), tu.Bin(ast.Plus, tu.Use("count"), tu.Int(1)))),
					tu.Ret(tu.Use("count")),
				)), false, tu.Sp())),
			tu.ExprS(tu.Call(tu.Use("inc"))),
			tu.Ret(tu.Call(tu.Use("inc"))),
		)),
	)
	// The captured mutable variable lives in a heap cell.
	assert.Contains(t, result.Dump, "box")
	assert.Contains(t, result.Dump, "closure")
}

func TestModuleDumpSnapshot(t *testing.T) {
	result := compileMain(t,
		tu.ExportLet("answer", tu.Int(42)),
	)
	snaps.MatchSnapshot(t, result.Dump)
}

package tests

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loom-lang/loom/internal/ast"
	"github.com/loom-lang/loom/internal/sema"
	tu "github.com/loom-lang/loom/internal/test_util"
	"github.com/loom-lang/loom/internal/types"
)

func checkMain(t *testing.T, stmts ...ast.Stmt) *sema.Context {
	t.Helper()
	ctx, _, err := tu.CheckProgram("/main.loom", tu.Program{"/main.loom": stmts})
	require.NoError(t, err)
	return ctx
}

func errorDiags(ctx *sema.Context) []*sema.Diagnostic {
	var out []*sema.Diagnostic
	for _, d := range ctx.Diagnostics {
		if d.Severity == sema.SeverityError {
			out = append(out, d)
		}
	}
	return out
}

func TestLetArithmeticNoErrors(t *testing.T) {
	ctx := checkMain(t,
		tu.Let("a", tu.Int(5)),
		tu.Let("b", tu.Int(10)),
		tu.Let("sum", tu.Bin(ast.Plus, tu.Use("a"), tu.Use("b"))),
	)
	assert.Empty(t, tu.Diags(errorDiags(ctx)))
}

func TestUnknownNameDiagnoses(t *testing.T) {
	ctx := checkMain(t, tu.Let("x", tu.Use("nope")))
	assert.True(t, tu.HasCode(ctx.Diagnostics, sema.SymbolNotFound))
}

func TestLiteralWidening(t *testing.T) {
	lit := tu.Int(1)
	widened := tu.Int(2)
	ctx := checkMain(t,
		tu.Let("a", lit),
		tu.VarD("b", widened),
	)
	require.Empty(t, errorDiags(ctx))

	// At a let binding the literal keeps its literal type.
	_, isLit := ctx.TypeOf(lit).(*types.LitType)
	assert.True(t, isLit)
	// The var's initializer stays literal; the binding widened (observable
	// through an assignment of another literal being accepted).
	_, isLit = ctx.TypeOf(widened).(*types.LitType)
	assert.True(t, isLit)
}

func TestVarWidensBinding(t *testing.T) {
	use := tu.Use("b")
	ctx := checkMain(t,
		tu.VarD("b", tu.Int(2)),
		tu.ExprS(tu.Assign(use, tu.Int(7))),
	)
	require.Empty(t, tu.Diags(errorDiags(ctx)))
	assert.Equal(t, "i32", ctx.TypeOf(use).Key())
}

func TestAssignToLetDiagnoses(t *testing.T) {
	ctx := checkMain(t,
		tu.Let("a", tu.Int(1)),
		tu.ExprS(tu.Assign(tu.Use("a"), tu.Int(2))),
	)
	assert.True(t, tu.HasCode(ctx.Diagnostics, sema.ImmutableBinding))
}

func TestArgumentTypeMismatch(t *testing.T) {
	ctx := checkMain(t,
		tu.Fn("double", []*ast.Param{tu.Param("x", tu.Ref("i32"))}, tu.Ref("i32"),
			tu.Block(tu.Ret(tu.Bin(ast.Times, tu.Use("x"), tu.Int(2))))),
		tu.Let("r", tu.Call(tu.Use("double"), tu.Str("five"))),
	)
	assert.True(t, tu.HasCode(ctx.Diagnostics, sema.TypeMismatch))
}

func TestUnionMixesPrimitiveAndReference(t *testing.T) {
	ctx := checkMain(t,
		tu.LetAnn("x", tu.Union(tu.Ref("i32"), tu.Ref("string")), tu.Int(1)),
	)
	assert.True(t, tu.HasCode(ctx.Diagnostics, sema.UnionMixesPrimitiveAndReference))
}

func TestFieldInitOrder(t *testing.T) {
	// class C { a: i32 = b  b: i32 = 1 } diagnoses; the reverse order is
	// fine.
	bad := tu.ClassD("C",
		tu.Field("a", tu.Ref("i32"), tu.Use("b")),
		tu.Field("b", tu.Ref("i32"), tu.Int(1)),
	)
	ctx := checkMain(t, tu.DeclS(bad))
	assert.True(t, tu.HasCode(ctx.Diagnostics, sema.FieldAccessBeforeInitialization))

	good := tu.ClassD("D",
		tu.Field("b", tu.Ref("i32"), tu.Int(1)),
		tu.Field("a", tu.Ref("i32"), tu.Use("b")),
	)
	ctx = checkMain(t, tu.DeclS(good))
	assert.Empty(t, tu.Diags(errorDiags(ctx)))
}

func TestFinalClassCannotBeExtended(t *testing.T) {
	base := tu.ClassD("Base")
	base.IsFinal = true
	sub := tu.ClassD("Sub")
	sub.Super = tu.Ref("Base")
	ctx := checkMain(t, tu.DeclS(base), tu.DeclS(sub))
	assert.True(t, tu.HasCode(ctx.Diagnostics, sema.CannotExtendFinal))
}

func TestFinalMethodCannotBeOverridden(t *testing.T) {
	m := tu.Method("run", nil, tu.Ref("i32"), tu.Block(tu.Ret(tu.Int(1))))
	m.Final = true
	base := tu.ClassD("Base", m)

	override := tu.Method("run", nil, tu.Ref("i32"), tu.Block(tu.Ret(tu.Int(2))))
	sub := tu.ClassD("Sub", override)
	sub.Super = tu.Ref("Base")

	ctx := checkMain(t, tu.DeclS(base), tu.DeclS(sub))
	assert.True(t, tu.HasCode(ctx.Diagnostics, sema.CannotOverrideFinal))
}

func TestAbstractRules(t *testing.T) {
	area := tu.Method("area", nil, tu.Ref("i32"), nil)
	area.Abstract = true
	shape := tu.ClassD("Shape", area)
	shape.IsAbstract = true

	// Instantiating an abstract class diagnoses.
	ctx := checkMain(t,
		tu.DeclS(shape),
		tu.Let("s", tu.New(tu.Ref("Shape"))),
	)
	assert.True(t, tu.HasCode(ctx.Diagnostics, sema.AbstractInstantiation))

	// A concrete subclass must implement every abstract method.
	area2 := tu.Method("area", nil, tu.Ref("i32"), nil)
	area2.Abstract = true
	shape2 := tu.ClassD("Shape", area2)
	shape2.IsAbstract = true
	square := tu.ClassD("Square")
	square.Super = tu.Ref("Shape")
	ctx = checkMain(t, tu.DeclS(shape2), tu.DeclS(square))
	assert.True(t, tu.HasCode(ctx.Diagnostics, sema.AbstractMethodNotImplemented))

	// Abstract methods outside abstract classes diagnose.
	stray := tu.Method("run", nil, nil, nil)
	stray.Abstract = true
	plain := tu.ClassD("Plain", stray)
	ctx = checkMain(t, tu.DeclS(plain))
	assert.True(t, tu.HasCode(ctx.Diagnostics, sema.AbstractMethodOutsideAbstract))
}

func TestMixinMayNotDeclareConstructor(t *testing.T) {
	mixin := ast.NewMixinDecl(tu.Id("Tagged"), nil, nil, []ast.ClassMember{
		tu.Ctor(nil, tu.Block()),
	}, tu.Sp())
	ctx := checkMain(t, tu.DeclS(mixin))
	assert.True(t, tu.HasCode(ctx.Diagnostics, sema.ConstructorInMixin))
}

func TestIntrinsicDecoratorGatedToStdlib(t *testing.T) {
	fn := ast.NewFuncDecl(tu.Id("len"), nil,
		[]*ast.Param{tu.Param("a", tu.FixedArrAnn(tu.Ref("i32")))},
		tu.Ref("i32"), nil, false, tu.Sp())
	fn.Decorators = []*ast.Decorator{
		ast.NewDecorator("intrinsic", []ast.Expr{tu.Str("array_len")}, tu.Sp()),
	}
	ctx := checkMain(t, tu.DeclS(fn))
	assert.True(t, tu.HasCode(ctx.Diagnostics, sema.DecoratorNotAllowed))
}

func TestNarrowingNonNull(t *testing.T) {
	widget := tu.ClassD("Widget", tu.Field("size", tu.Ref("i32"), tu.Int(3)))
	read := tu.Member(tu.Use("w"), "size")
	ctx := checkMain(t,
		tu.DeclS(widget),
		tu.LetAnn("w", tu.Union(tu.Ref("Widget"), tu.Ref("null")), tu.New(tu.Ref("Widget"))),
		tu.If(tu.Bin(ast.NotEqual, tu.Use("w"), tu.Null()),
			tu.Block(tu.Let("s", read)), nil),
	)
	assert.Empty(t, tu.Diags(errorDiags(ctx)))
	assert.Equal(t, "i32", ctx.TypeOf(read).Key())
}

func TestAccessOnPossiblyNullDiagnoses(t *testing.T) {
	widget := tu.ClassD("Widget", tu.Field("size", tu.Ref("i32"), tu.Int(3)))
	ctx := checkMain(t,
		tu.DeclS(widget),
		tu.LetAnn("w", tu.Union(tu.Ref("Widget"), tu.Ref("null")), tu.New(tu.Ref("Widget"))),
		tu.Let("s", tu.Member(tu.Use("w"), "size")),
	)
	assert.True(t, tu.HasCode(ctx.Diagnostics, sema.PropertyNotFound))
}

func TestGenericConstraintViolation(t *testing.T) {
	shape := tu.ClassD("Shape")
	box := ast.NewClassDecl(tu.Id("Box"),
		[]*ast.TypeParam{tu.TPc("T", tu.Ref("Shape"))}, nil,
		[]ast.ClassMember{}, tu.Sp())
	ctx := checkMain(t,
		tu.DeclS(shape),
		tu.DeclS(box),
		tu.LetAnn("b", tu.Ref("Box", tu.Ref("i32")), tu.Null()),
	)
	assert.True(t, tu.HasCode(ctx.Diagnostics, sema.ConstraintViolation))
}

func TestGenericArgumentCount(t *testing.T) {
	box := ast.NewClassDecl(tu.Id("Box"),
		[]*ast.TypeParam{tu.TP("T")}, nil, []ast.ClassMember{}, tu.Sp())
	ctx := checkMain(t,
		tu.DeclS(box),
		tu.LetAnn("b", tu.Ref("Box"), tu.Null()),
	)
	assert.True(t, tu.HasCode(ctx.Diagnostics, sema.ArgumentCountMismatch))
}

func TestClosureParamsFromContext(t *testing.T) {
	apply := tu.Fn("apply",
		[]*ast.Param{
			tu.Param("f", tu.FnAnn([]*ast.Param{tu.Param("x", tu.Ref("i32"))}, tu.Ref("i32"))),
		},
		tu.Ref("i32"),
		tu.Block(tu.Ret(tu.Call(tu.Use("f"), tu.Int(1)))))

	// The closure's parameter takes its type from the target.
	closure := tu.Closure([]*ast.Param{tu.Param("x", nil)}, nil,
		tu.Block(tu.Ret(tu.Bin(ast.Plus, tu.Use("x"), tu.Int(1)))))
	ctx := checkMain(t, apply, tu.Let("r", tu.Call(tu.Use("apply"), closure)))
	assert.Empty(t, tu.Diags(errorDiags(ctx)))

	// Without a contextual type the parameter must be annotated.
	bare := tu.Closure([]*ast.Param{tu.Param("x", nil)}, nil, tu.Block(tu.Ret(tu.Int(1))))
	ctx = checkMain(t, tu.Let("f", bare))
	assert.True(t, tu.HasCode(ctx.Diagnostics, sema.TypeMismatch))
}

func TestTwoLibrariesSameExportName(t *testing.T) {
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
			tu.Let("a", tu.New(tu.Ref("Handler"))),
			tu.Let("b", tu.New(tu.Ref("BHandler"))),
			tu.Let("x", tu.Call(tu.Member(tu.Use("a"), "handle"), tu.Int(10))),
			tu.Let("y", tu.Call(tu.Member(tu.Use("b"), "process"), tu.Int(10))),
		},
	}
	ctx, _, err := tu.CheckProgram("/main.loom", prog)
	require.NoError(t, err)
	assert.Empty(t, tu.Diags(errorDiags(ctx)))

	libs := map[string]bool{}
	ctx.Specializations(func(key string, class *types.ClassType) bool {
		if class.Def.Name == "Handler" {
			libs[class.Def.Library] = true
		}
		return true
	})
	assert.Len(t, libs, 2, "each library's Handler is its own declaration")
}

func TestGenericSpecializationsAreDistinct(t *testing.T) {
	value := tu.Field("value", tu.Ref("T"), nil)
	get := tu.Method("get", nil, tu.Ref("T"), tu.Block(tu.Ret(tu.Member(tu.This(), "value"))))
	ctorM := tu.Ctor([]*ast.Param{tu.Param("v", tu.Ref("T"))},
		tu.Block(tu.ExprS(tu.Assign(tu.Member(tu.This(), "value"), tu.Use("v")))))
	box := ast.NewClassDecl(tu.Id("Box"),
		[]*ast.TypeParam{tu.TP("T")}, nil,
		[]ast.ClassMember{value, ctorM, get}, tu.Sp())

	ctx := checkMain(t,
		tu.DeclS(box),
		tu.LetAnn("a", tu.Ref("Box", tu.Ref("i32")), tu.New(tu.Ref("Box", tu.Ref("i32")), tu.Int(1))),
		tu.LetAnn("b", tu.Ref("Box", tu.Ref("string")), tu.New(tu.Ref("Box", tu.Ref("string")), tu.Str("s"))),
	)
	require.Empty(t, tu.Diags(errorDiags(ctx)))

	var keys []string
	ctx.Specializations(func(key string, class *types.ClassType) bool {
		if class.Def.Name == "Box" && !strings.Contains(key, "param(") {
			keys = append(keys, key)
		}
		return true
	})
	assert.Len(t, keys, 2)
	assert.NotEqual(t, keys[0], keys[1])
}

func TestShadowingInNestedBlockAllowed(t *testing.T) {
	ctx := checkMain(t,
		tu.Let("x", tu.Int(1)),
		tu.If(tu.Bool(true), tu.Block(
			tu.Let("x", tu.Str("inner")),
		), nil),
	)
	assert.Empty(t, tu.Diags(errorDiags(ctx)))
}

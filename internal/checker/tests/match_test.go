package tests

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loom-lang/loom/internal/ast"
	"github.com/loom-lang/loom/internal/sema"
	tu "github.com/loom-lang/loom/internal/test_util"
)

func methodUnion() ast.TypeAnn {
	return tu.Union(tu.LitAnn(tu.Str("get")), tu.LitAnn(tu.Str("put")))
}

func TestMatchExhaustiveLiteralUnion(t *testing.T) {
	ctx := checkMain(t,
		tu.LetAnn("m", methodUnion(), tu.Str("get")),
		tu.Let("r", tu.Match(tu.Use("m"),
			tu.Arm(tu.LitP(tu.Str("get")), tu.Int(1)),
			tu.Arm(tu.LitP(tu.Str("put")), tu.Int(2)),
		)),
	)
	assert.Empty(t, tu.Diags(errorDiags(ctx)))
}

func TestMatchMissingCaseDiagnoses(t *testing.T) {
	ctx := checkMain(t,
		tu.LetAnn("m", methodUnion(), tu.Str("get")),
		tu.Let("r", tu.Match(tu.Use("m"),
			tu.Arm(tu.LitP(tu.Str("get")), tu.Int(1)),
		)),
	)
	require.True(t, tu.HasCode(ctx.Diagnostics, sema.NonExhaustiveMatch))
	// The diagnostic names the uncovered value.
	found := false
	for _, d := range ctx.Diagnostics {
		if d.Code == sema.NonExhaustiveMatch {
			assert.Contains(t, d.Message, "put")
			found = true
		}
	}
	assert.True(t, found)
}

func TestMatchUnreachableCase(t *testing.T) {
	ctx := checkMain(t,
		tu.LetAnn("m", methodUnion(), tu.Str("get")),
		tu.Let("r", tu.Match(tu.Use("m"),
			tu.Arm(tu.LitP(tu.Str("get")), tu.Int(1)),
			tu.Arm(tu.LitP(tu.Str("put")), tu.Int(2)),
			tu.Arm(tu.LitP(tu.Str("get")), tu.Int(3)),
		)),
	)
	assert.True(t, tu.HasCode(ctx.Diagnostics, sema.UnreachableCase))
}

func TestMatchWildcardCompletes(t *testing.T) {
	ctx := checkMain(t,
		tu.LetAnn("m", tu.Ref("i32"), tu.Int(3)),
		tu.Let("r", tu.Match(tu.Use("m"),
			tu.Arm(tu.LitP(tu.Int(0)), tu.Int(1)),
			tu.Arm(tu.WildP(), tu.Int(2)),
		)),
	)
	assert.Empty(t, tu.Diags(errorDiags(ctx)))
}

func TestMatchEnumExhaustiveness(t *testing.T) {
	color := tu.EnumD("Color", "Red", "Green", "Blue")

	full := checkMain(t,
		tu.DeclS(color),
		tu.LetAnn("c", tu.Ref("Color"), tu.Member(tu.Use("Color"), "Red")),
		tu.Let("r", tu.Match(tu.Use("c"),
			tu.Arm(tu.EnumP("Color", "Red"), tu.Int(1)),
			tu.Arm(tu.EnumP("Color", "Green"), tu.Int(2)),
			tu.Arm(tu.EnumP("Color", "Blue"), tu.Int(3)),
		)),
	)
	assert.Empty(t, tu.Diags(errorDiags(full)))

	color2 := tu.EnumD("Color", "Red", "Green", "Blue")
	partial := checkMain(t,
		tu.DeclS(color2),
		tu.LetAnn("c", tu.Ref("Color"), tu.Member(tu.Use("Color"), "Red")),
		tu.Let("r", tu.Match(tu.Use("c"),
			tu.Arm(tu.EnumP("Color", "Red"), tu.Int(1)),
		)),
	)
	assert.True(t, tu.HasCode(partial.Diagnostics, sema.NonExhaustiveMatch))
}

func TestMatchClassUnion(t *testing.T) {
	circle := tu.ClassD("Circle")
	square := tu.ClassD("Square")
	ctx := checkMain(t,
		tu.DeclS(circle),
		tu.DeclS(square),
		tu.LetAnn("s", tu.Union(tu.Ref("Circle"), tu.Ref("Square")), tu.New(tu.Ref("Circle"))),
		tu.Let("r", tu.Match(tu.Use("s"),
			tu.Arm(tu.ClassP(tu.Ref("Circle"), "c"), tu.Int(1)),
			tu.Arm(tu.ClassP(tu.Ref("Square"), ""), tu.Int(2)),
		)),
	)
	assert.Empty(t, tu.Diags(errorDiags(ctx)))
}

func TestMatchBooleanExpansion(t *testing.T) {
	ctx := checkMain(t,
		tu.LetAnn("b", tu.Ref("boolean"), tu.Bool(true)),
		tu.Let("r", tu.Match(tu.Use("b"),
			tu.Arm(tu.LitP(tu.Bool(true)), tu.Int(1)),
			tu.Arm(tu.LitP(tu.Bool(false)), tu.Int(0)),
		)),
	)
	assert.Empty(t, tu.Diags(errorDiags(ctx)))
}

func TestMatchTupleScrutineeNotSilentlyAccepted(t *testing.T) {
	// Tuple pattern subtraction is not implemented; a match that would need
	// it diagnoses instead of silently passing.
	ctx := checkMain(t,
		tu.Let("p", tu.Tup(tu.Int(1), tu.Int(2))),
		tu.Let("r", tu.Match(tu.Use("p"),
			tu.Arm(tu.LitP(tu.Int(1)), tu.Int(1)),
		)),
	)
	assert.True(t, tu.HasCode(ctx.Diagnostics, sema.NonExhaustiveMatch))
}

package checker

import (
	"github.com/loom-lang/loom/internal/ast"
	"github.com/loom-lang/loom/internal/types"
)

// narrowBranches produces the scopes for the then and else branches of a
// guard, applying flow narrowing for the supported guard shapes:
//
//	x is T      narrows x to T, the else branch to the remainder
//	x == lit    narrows x to the literal, the else branch subtracts it
//	x != null   narrows x to the non-null remainder
//	x == null   narrows x to null
//
// Narrowing operates on a shadowed slot in the branch scope; the binding
// itself is untouched.
func (c *Checker) narrowBranches(ctx *libCtx, sc *scope, cond ast.Expr) (*scope, *scope) {
	thenScope := newScope(sc)
	elseScope := newScope(sc)

	name, thenT, elseT, ok := c.analyzeGuard(ctx, sc, cond)
	if ok {
		if thenT != nil {
			thenScope.narrow(name, thenT)
		}
		if elseT != nil {
			elseScope.narrow(name, elseT)
		}
	}
	return thenScope, elseScope
}

func (c *Checker) analyzeGuard(ctx *libCtx, sc *scope, cond ast.Expr) (string, types.Type, types.Type, bool) {
	in := c.Sema.Interner
	switch cond := cond.(type) {
	case *ast.IsExpr:
		ident, ok := cond.Arg.(*ast.IdentExpr)
		if !ok {
			return "", nil, nil, false
		}
		_, cur := sc.lookupValue(ident.Name)
		if cur == nil {
			return "", nil, nil, false
		}
		target := c.Sema.TypeOf(cond.TypeAnn)
		if target == nil {
			return "", nil, nil, false
		}
		rest := in.Subtract(cur, target)
		return ident.Name, target, rest, true
	case *ast.BinaryExpr:
		ident, other := guardOperands(cond)
		if ident == nil {
			return "", nil, nil, false
		}
		_, cur := sc.lookupValue(ident.Name)
		if cur == nil {
			return "", nil, nil, false
		}
		switch other := other.(type) {
		case *ast.NullLit:
			nonNull := in.Subtract(cur, in.Null())
			if cond.Op == ast.EqualEqual {
				return ident.Name, in.Null(), nonNull, true
			}
			if cond.Op == ast.NotEqual {
				return ident.Name, nonNull, in.Null(), true
			}
		case *ast.IntLit:
			lit := in.IntLit(other.Value, types.I32)
			return c.literalGuard(cond.Op, ident.Name, cur, lit)
		case *ast.StrLit:
			return c.literalGuard(cond.Op, ident.Name, cur, in.StrLit(other.Value))
		case *ast.BoolLit:
			return c.literalGuard(cond.Op, ident.Name, cur, in.BoolLit(other.Value))
		}
	}
	return "", nil, nil, false
}

func (c *Checker) literalGuard(op ast.BinaryOp, name string, cur, lit types.Type) (string, types.Type, types.Type, bool) {
	in := c.Sema.Interner
	rest := in.Subtract(cur, lit)
	switch op {
	case ast.EqualEqual:
		return name, lit, rest, true
	case ast.NotEqual:
		return name, rest, lit, true
	default:
		return "", nil, nil, false
	}
}

// guardOperands extracts the identifier side of a comparison guard,
// accepting both `x == lit` and `lit == x`.
func guardOperands(cond *ast.BinaryExpr) (*ast.IdentExpr, ast.Expr) {
	if ident, ok := cond.Left.(*ast.IdentExpr); ok {
		return ident, cond.Right
	}
	if ident, ok := cond.Right.(*ast.IdentExpr); ok {
		return ident, cond.Left
	}
	return nil, nil
}

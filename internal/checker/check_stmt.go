package checker

import (
	"github.com/loom-lang/loom/internal/ast"
	"github.com/loom-lang/loom/internal/sema"
	"github.com/loom-lang/loom/internal/types"
)

func (c *Checker) checkBlock(ctx *libCtx, sc *scope, block *ast.Block) {
	inner := newScope(sc)
	for _, stmt := range block.Stmts {
		c.checkStmt(ctx, inner, stmt)
	}
}

func (c *Checker) checkStmt(ctx *libCtx, sc *scope, stmt ast.Stmt) {
	in := c.Sema.Interner
	switch stmt := stmt.(type) {
	case *ast.DeclStmt:
		if let, ok := stmt.Decl.(*ast.LetDecl); ok {
			c.checkLetDecl(ctx, sc, let)
		} else {
			c.errorf(ctx, sema.WrongDeclarationKind, stmt.Span(),
				"%q declarations are only allowed at the top level", stmt.Decl.DeclName())
		}
	case *ast.ExprStmt:
		c.inferExpr(ctx, sc, stmt.Expr, nil)
	case *ast.ReturnStmt:
		var got types.Type = in.Void()
		if stmt.Value != nil {
			got = c.inferExpr(ctx, sc, stmt.Value, ctx.retType)
		}
		if ctx.retType != nil {
			if _, isVoid := ctx.retType.(*types.VoidType); isVoid && stmt.Value != nil {
				c.errorf(ctx, sema.TypeMismatch, stmt.Span(), "unexpected return value")
			} else if !types.Assignable(got, ctx.retType) {
				c.errorf(ctx, sema.TypeMismatch, stmt.Span(),
					"cannot return %s from a function returning %s", got, ctx.retType)
			}
		} else if ctx.collectReturns != nil {
			*ctx.collectReturns = append(*ctx.collectReturns, got)
		}
	case *ast.IfStmt:
		cond := c.inferExpr(ctx, sc, stmt.Cond, in.Boolean())
		c.requireBoolean(ctx, cond, stmt.Cond.Span())

		thenScope, elseScope := c.narrowBranches(ctx, sc, stmt.Cond)
		c.checkBlockIn(ctx, thenScope, stmt.Then)
		switch e := stmt.Else.(type) {
		case nil:
		case *ast.Block:
			c.checkBlockIn(ctx, elseScope, e)
		default:
			c.checkStmt(ctx, elseScope, e)
		}
	case *ast.WhileStmt:
		cond := c.inferExpr(ctx, sc, stmt.Cond, in.Boolean())
		c.requireBoolean(ctx, cond, stmt.Cond.Span())
		c.checkBlock(ctx, sc, stmt.Body)
	case *ast.Block:
		c.checkBlock(ctx, sc, stmt)
	case *ast.ThrowStmt:
		t := c.inferExpr(ctx, sc, stmt.Value, nil)
		switch t.(type) {
		case *types.ClassType, *types.ErrorType:
		default:
			c.errorf(ctx, sema.TypeMismatch, stmt.Value.Span(),
				"only class instances can be thrown, got %s", t)
		}
	case *ast.TryStmt:
		c.checkBlock(ctx, sc, stmt.Body)
		if stmt.Catch != nil {
			catchScope := newScope(sc)
			if stmt.CatchName != nil {
				var catchType types.Type
				if stmt.CatchType != nil {
					catchType = c.typeFromAnn(ctx, sc, stmt.CatchType)
				} else {
					catchType = c.errorBaseClass(ctx, sc)
				}
				b := &sema.Binding{
					Kind: sema.BindingLocal, Library: ctx.lib.Path, Name: stmt.CatchName.Name,
					Decl: stmt.CatchName, Def: nil, Type: catchType, Mutable: false,
				}
				catchScope.define(stmt.CatchName.Name, b)
				c.Sema.SetBinding(stmt.CatchName, b)
			}
			c.checkBlockIn(ctx, catchScope, stmt.Catch)
		}
		if stmt.Finally != nil {
			c.checkBlock(ctx, sc, stmt.Finally)
		}
	case *ast.BreakStmt:
		// loop nesting is validated by the parser
	case *ast.ImportStmt:
		c.errorf(ctx, sema.WrongDeclarationKind, stmt.Span(),
			"imports are only allowed at the top level")
	}
}

// checkBlockIn checks a block's statements inside an already-created scope
// (used for narrowed branches and catch clauses).
func (c *Checker) checkBlockIn(ctx *libCtx, sc *scope, block *ast.Block) {
	for _, stmt := range block.Stmts {
		c.checkStmt(ctx, sc, stmt)
	}
}

func (c *Checker) requireBoolean(ctx *libCtx, t types.Type, span ast.Span) {
	if !types.Assignable(t, c.Sema.Interner.Boolean()) {
		c.errorf(ctx, sema.TypeMismatch, span, "condition must be boolean, got %s", t)
	}
}

// errorBaseClass resolves the prelude Error class for untyped catch
// bindings.
func (c *Checker) errorBaseClass(ctx *libCtx, sc *scope) types.Type {
	if b := sc.lookupType("Error"); b != nil {
		if def, ok := b.Def.(*types.ClassDef); ok {
			return c.Sema.RecordSpecialization(c.Sema.Interner.Class(def, nil))
		}
	}
	return c.Sema.Interner.AnyRef()
}

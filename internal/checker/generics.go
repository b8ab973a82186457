package checker

import (
	"github.com/loom-lang/loom/internal/ast"
	"github.com/loom-lang/loom/internal/sema"
	"github.com/loom-lang/loom/internal/types"
)

// inferTypeArgs deduces a generic function's type arguments from its
// argument types by structural matching of each parameter type against the
// corresponding argument type. Explicit type arguments win; inference fills
// the gaps.
func (c *Checker) inferTypeArgs(ctx *libCtx, fn *types.FuncType, argTypes []types.Type, explicit []types.Type, span ast.Span) (types.Subst, bool) {
	in := c.Sema.Interner
	if len(explicit) > len(fn.TypeParams) {
		c.errorf(ctx, sema.ArgumentCountMismatch, span,
			"expected at most %d type arguments, got %d", len(fn.TypeParams), len(explicit))
		return nil, false
	}

	bound := make(types.Subst)
	for i, t := range explicit {
		bound[fn.TypeParams[i].Ref().Key()] = t
	}

	open := make(map[string]bool)
	for i := len(explicit); i < len(fn.TypeParams); i++ {
		open[fn.TypeParams[i].Ref().Key()] = true
	}

	for i, p := range fn.Params {
		if i >= len(argTypes) {
			break
		}
		matchTypeArgs(p.Type, argTypes[i], open, bound)
	}

	for i := len(explicit); i < len(fn.TypeParams); i++ {
		tp := fn.TypeParams[i]
		key := tp.Ref().Key()
		if _, ok := bound[key]; ok {
			continue
		}
		if tp.Default != nil {
			bound[key] = types.Substitute(in, tp.Default, bound)
			continue
		}
		c.errorf(ctx, sema.TypeMismatch, span,
			"cannot infer type argument %s", tp.Name)
		return nil, false
	}

	for _, tp := range fn.TypeParams {
		if tp.Constraint == nil {
			continue
		}
		arg := bound[tp.Ref().Key()]
		constraint := types.Substitute(in, tp.Constraint, bound)
		if !types.Assignable(arg, constraint) {
			c.errorf(ctx, sema.ConstraintViolation, span,
				"type argument %s does not satisfy the constraint %s of %q", arg, constraint, tp.Name)
			return nil, false
		}
	}
	return bound, true
}

// matchTypeArgs walks param and arg in lockstep, binding open parameters to
// the argument structure they line up with. Literal arguments bind their
// widened base so Box(1) infers Box<i32>.
func matchTypeArgs(param, arg types.Type, open map[string]bool, bound types.Subst) {
	switch p := param.(type) {
	case *types.TypeParamType:
		key := p.Key()
		if !open[key] {
			return
		}
		if _, done := bound[key]; done {
			return
		}
		if lit, ok := arg.(*types.LitType); ok {
			arg = lit.Base()
		}
		bound[key] = arg
	case *types.FixedArrayType:
		if a, ok := arg.(*types.FixedArrayType); ok {
			matchTypeArgs(p.Elem, a.Elem, open, bound)
		}
	case *types.ArrayType:
		if a, ok := arg.(*types.ArrayType); ok {
			matchTypeArgs(p.Elem, a.Elem, open, bound)
		}
	case *types.TupleType:
		if a, ok := arg.(*types.TupleType); ok {
			for i := range p.Elems {
				if i < len(a.Elems) {
					matchTypeArgs(p.Elems[i], a.Elems[i], open, bound)
				}
			}
		}
	case *types.RecordType:
		if a, ok := arg.(*types.RecordType); ok {
			p.Fields.Scan(func(name string, pt types.Type) bool {
				if at, ok := a.Fields.Get(name); ok {
					matchTypeArgs(pt, at, open, bound)
				}
				return true
			})
		}
	case *types.UnionType:
		if a, ok := arg.(*types.UnionType); ok && len(p.Members) == len(a.Members) {
			for i := range p.Members {
				matchTypeArgs(p.Members[i], a.Members[i], open, bound)
			}
		}
	case *types.FuncType:
		if a, ok := arg.(*types.FuncType); ok {
			for i := range p.Params {
				if i < len(a.Params) {
					matchTypeArgs(p.Params[i].Type, a.Params[i].Type, open, bound)
				}
			}
			matchTypeArgs(p.Return, a.Return, open, bound)
		}
	case *types.ClassType:
		if a, ok := arg.(*types.ClassType); ok && p.Def == a.Def {
			for i := range p.TypeArgs {
				if i < len(a.TypeArgs) {
					matchTypeArgs(p.TypeArgs[i], a.TypeArgs[i], open, bound)
				}
			}
		}
	case *types.InterfaceType:
		if a, ok := arg.(*types.InterfaceType); ok && p.Def == a.Def {
			for i := range p.TypeArgs {
				if i < len(a.TypeArgs) {
					matchTypeArgs(p.TypeArgs[i], a.TypeArgs[i], open, bound)
				}
			}
		}
	}
}

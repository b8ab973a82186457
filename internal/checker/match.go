package checker

import (
	"github.com/loom-lang/loom/internal/ast"
	"github.com/loom-lang/loom/internal/sema"
	"github.com/loom-lang/loom/internal/types"
)

// inferMatchExpr checks a match expression: every arm's pattern is matched
// against the remaining scrutinee type, unreachable arms diagnose, and a
// non-Never remainder after the last arm diagnoses with a representative
// uncovered value.
func (c *Checker) inferMatchExpr(ctx *libCtx, sc *scope, m *ast.MatchExpr, target types.Type) types.Type {
	in := c.Sema.Interner
	scrutinee := c.inferExpr(ctx, sc, m.Scrutinee, nil)

	remaining := c.expandScrutinee(scrutinee)
	var armTypes []types.Type

	for _, arm := range m.Arms {
		armScope := newScope(sc)
		covered, matchesAll := c.patternCover(ctx, sc, armScope, arm.Pattern, scrutinee, m.Scrutinee)

		if matchesAll {
			if _, done := remaining.(*types.NeverType); done {
				c.errorf(ctx, sema.UnreachableCase, arm.Span(), "unreachable case")
			}
			remaining = in.Never()
		} else if covered != nil {
			if !c.intersects(remaining, covered) {
				c.errorf(ctx, sema.UnreachableCase, arm.Span(), "unreachable case")
			} else {
				remaining = in.Subtract(remaining, covered)
			}
		}

		armTypes = append(armTypes, c.inferExpr(ctx, armScope, arm.Body, target))
	}

	if _, done := remaining.(*types.NeverType); !done {
		if c.subtractionUnsupported(scrutinee) {
			c.errorf(ctx, sema.NonExhaustiveMatch, m.Span(),
				"match may not be exhaustive: tuple and record patterns are not subtracted")
		} else {
			c.errorf(ctx, sema.NonExhaustiveMatch, m.Span(),
				"non-exhaustive match: %s is not covered", representative(remaining))
		}
	}

	return in.Union(armTypes...)
}

// expandScrutinee rewrites types with enumerable members into the union the
// subtraction machinery operates on: an enum becomes the union of its member
// values, booleans become true | false.
func (c *Checker) expandScrutinee(t types.Type) types.Type {
	in := c.Sema.Interner
	switch t := t.(type) {
	case *types.EnumType:
		members := make([]types.Type, len(t.Def.Members))
		for i, m := range t.Def.Members {
			members[i] = enumMemberCover(in, t.Def, m)
		}
		return in.Union(members...)
	case *types.PrimType:
		if t.Prim == types.Boolean {
			return in.Union(in.BoolLit(true), in.BoolLit(false))
		}
		return t
	case *types.UnionType:
		expanded := make([]types.Type, len(t.Members))
		for i, m := range t.Members {
			expanded[i] = c.expandScrutinee(m)
		}
		return in.Union(expanded...)
	default:
		return t
	}
}

// enumMemberCover is the internal type standing for one enum member in
// exhaustiveness computation.
func enumMemberCover(in *types.Interner, def *types.EnumDef, m *types.EnumMemberDef) types.Type {
	return in.StrLit(def.Library + "#" + def.Name + "." + m.Name)
}

// patternCover computes the subset of the scrutinee a pattern matches and
// binds any pattern bindings into the arm scope. The bool result marks
// irrefutable patterns.
func (c *Checker) patternCover(ctx *libCtx, sc *scope, armScope *scope, pat ast.Pat, scrutinee types.Type, scrutExpr ast.Expr) (types.Type, bool) {
	in := c.Sema.Interner
	switch pat := pat.(type) {
	case *ast.LitPat:
		switch lit := pat.Lit.(type) {
		case *ast.IntLit:
			return in.IntLit(lit.Value, scrutineeIntPrim(scrutinee)), false
		case *ast.StrLit:
			return in.StrLit(lit.Value), false
		case *ast.BoolLit:
			return in.BoolLit(lit.Value), false
		case *ast.NullLit:
			return in.Null(), false
		default:
			return nil, false
		}
	case *ast.ClassPat:
		t := c.typeFromAnn(ctx, sc, pat.Class)
		class, ok := t.(*types.ClassType)
		if !ok {
			return nil, false
		}
		if pat.Binding != nil {
			b := &sema.Binding{
				Kind: sema.BindingLocal, Library: ctx.lib.Path, Name: pat.Binding.Name,
				Decl: pat.Binding, Def: nil, Type: class, Mutable: false,
			}
			armScope.define(pat.Binding.Name, b)
			c.Sema.SetBinding(pat.Binding, b)
		}
		return class, false
	case *ast.EnumPat:
		b := sc.lookupType(pat.Enum.Name)
		if b == nil {
			c.errorf(ctx, sema.SymbolNotFound, pat.Enum.Span(), "unknown enum %q", pat.Enum.Name)
			return nil, false
		}
		def, ok := b.Def.(*types.EnumDef)
		if !ok {
			c.errorf(ctx, sema.WrongDeclarationKind, pat.Enum.Span(), "%q is not an enum", pat.Enum.Name)
			return nil, false
		}
		member := def.FindMember(pat.Member.Name)
		if member == nil {
			c.errorf(ctx, sema.PropertyNotFound, pat.Member.Span(),
				"enum %s has no member %q", def.Name, pat.Member.Name)
			return nil, false
		}
		c.Sema.SetBinding(pat.Enum, b)
		return enumMemberCover(in, def, member), false
	case *ast.BindPat:
		b := &sema.Binding{
			Kind: sema.BindingLocal, Library: ctx.lib.Path, Name: pat.Name.Name,
			Decl: pat.Name, Def: nil, Type: scrutinee, Mutable: false,
		}
		armScope.define(pat.Name.Name, b)
		c.Sema.SetBinding(pat.Name, b)
		return nil, true
	case *ast.WildcardPat:
		return nil, true
	default:
		return nil, false
	}
}

// scrutineeIntPrim picks the integer width literal patterns compare at.
func scrutineeIntPrim(t types.Type) types.Prim {
	switch t := t.(type) {
	case *types.PrimType:
		switch t.Prim {
		case types.I32, types.U32, types.I64:
			return t.Prim
		}
	case *types.LitType:
		if lit, ok := t.Lit.(*types.IntLit); ok {
			return lit.Prim
		}
	case *types.UnionType:
		for _, m := range t.Members {
			if lit, ok := m.(*types.LitType); ok {
				if il, ok := lit.Lit.(*types.IntLit); ok {
					return il.Prim
				}
			}
		}
	}
	return types.I32
}

// intersects approximates whether covered overlaps remaining.
func (c *Checker) intersects(remaining, covered types.Type) bool {
	// Nothing remains to overlap; Never is assignable to everything, so it
	// must not reach the assignability check below.
	if _, empty := remaining.(*types.NeverType); empty {
		return false
	}
	if union, ok := remaining.(*types.UnionType); ok {
		for _, m := range union.Members {
			if c.intersects(m, covered) {
				return true
			}
		}
		return false
	}
	return types.Assignable(covered, remaining) || types.Assignable(remaining, covered)
}

// subtractionUnsupported reports whether exhaustiveness for the scrutinee
// would require tuple or record pattern subtraction.
func (c *Checker) subtractionUnsupported(t types.Type) bool {
	switch t := t.(type) {
	case *types.TupleType, *types.RecordType:
		return true
	case *types.UnionType:
		for _, m := range t.Members {
			if c.subtractionUnsupported(m) {
				return true
			}
		}
	}
	return false
}

// representative names one uncovered value for the diagnostic: a literal
// value, class name, or union branch.
func representative(t types.Type) string {
	if union, ok := t.(*types.UnionType); ok {
		return representative(union.Members[0])
	}
	return t.String()
}

package checker

import (
	"github.com/loom-lang/loom/internal/ast"
	"github.com/loom-lang/loom/internal/sema"
	"github.com/loom-lang/loom/internal/types"
)

// typeFromAnn resolves a type annotation to its canonical type and records
// it on the annotation node.
func (c *Checker) typeFromAnn(ctx *libCtx, sc *scope, ann ast.TypeAnn) types.Type {
	t := c.typeFromAnnInner(ctx, sc, ann)
	c.Sema.SetType(ann, t)
	return t
}

func (c *Checker) typeFromAnnInner(ctx *libCtx, sc *scope, ann ast.TypeAnn) types.Type {
	in := c.Sema.Interner
	switch ann := ann.(type) {
	case *ast.RefTypeAnn:
		return c.typeFromRef(ctx, sc, ann)
	case *ast.LitTypeAnn:
		switch lit := ann.Lit.(type) {
		case *ast.IntLit:
			return in.IntLit(lit.Value, types.I32)
		case *ast.StrLit:
			return in.StrLit(lit.Value)
		case *ast.BoolLit:
			return in.BoolLit(lit.Value)
		default:
			c.errorf(ctx, sema.TypeMismatch, ann.Span(), "invalid literal type")
			return in.Error()
		}
	case *ast.UnionTypeAnn:
		members := make([]types.Type, len(ann.Members))
		for i, m := range ann.Members {
			members[i] = c.typeFromAnn(ctx, sc, m)
		}
		return c.makeUnion(ctx, ann.Span(), members)
	case *ast.TupleTypeAnn:
		elems := make([]types.Type, len(ann.Elems))
		for i, e := range ann.Elems {
			elems[i] = c.typeFromAnn(ctx, sc, e)
		}
		return in.Tuple(elems...)
	case *ast.RecordTypeAnn:
		fields := make(map[string]types.Type, len(ann.Fields))
		for _, f := range ann.Fields {
			fields[f.Name.Name] = c.typeFromAnn(ctx, sc, f.TypeAnn)
		}
		return in.Record(fields)
	case *ast.FuncTypeAnn:
		params := make([]*types.ParamDef, len(ann.Params))
		for i, p := range ann.Params {
			var pt types.Type = in.Error()
			if p.TypeAnn != nil {
				pt = c.typeFromAnn(ctx, sc, p.TypeAnn)
			}
			params[i] = &types.ParamDef{Name: p.Name.Name, Type: pt}
		}
		ret := types.Type(in.Void())
		if ann.Return != nil {
			ret = c.typeFromAnn(ctx, sc, ann.Return)
		}
		return in.Func(params, ret)
	case *ast.ArrayTypeAnn:
		elem := c.typeFromAnn(ctx, sc, ann.Elem)
		if ann.Fixed {
			return in.FixedArray(elem)
		}
		return in.Array(elem)
	case *ast.ThisTypeAnn:
		if ctx.classType == nil {
			c.errorf(ctx, sema.SymbolNotFound, ann.Span(), "this type outside of a class")
			return in.Error()
		}
		return in.Intern(&types.ThisType{Class: ctx.classType})
	default:
		c.errorf(ctx, sema.TypeMismatch, ann.Span(), "unsupported type annotation")
		return in.Error()
	}
}

// makeUnion normalises a union and enforces the union restrictions: no
// mixing of unboxed scalars with references, and no two distinct types over
// the same underlying primitive.
func (c *Checker) makeUnion(ctx *libCtx, span ast.Span, members []types.Type) types.Type {
	in := c.Sema.Interner
	if types.MixesPrimitiveAndReference(members) {
		c.errorf(ctx, sema.UnionMixesPrimitiveAndReference, span,
			"a union may not mix primitive value types with reference types")
		return in.Error()
	}
	seenDistinct := make(map[string]string)
	for _, m := range members {
		if d, ok := m.(*types.DistinctType); ok {
			if inner, ok := d.Inner.(*types.PrimType); ok {
				if other, dup := seenDistinct[string(inner.Prim)]; dup {
					c.errorf(ctx, sema.TypeMismatch, span,
						"distinct types %s and %s share the underlying primitive %s and cannot be unioned",
						other, d.Def.Name, inner.Prim)
					return in.Error()
				}
				seenDistinct[string(inner.Prim)] = d.Def.Name
			}
		}
	}
	return in.Union(members...)
}

var primNames = map[string]types.Prim{
	"i32": types.I32, "u32": types.U32, "i64": types.I64,
	"f32": types.F32, "f64": types.F64,
	"boolean": types.Boolean, "string": types.String,
}

func (c *Checker) typeFromRef(ctx *libCtx, sc *scope, ann *ast.RefTypeAnn) types.Type {
	in := c.Sema.Interner
	name := ann.Name.Name

	if len(ann.TypeArgs) == 0 {
		switch name {
		case "void":
			return in.Void()
		case "never":
			return in.Never()
		case "anyref":
			return in.AnyRef()
		case "null":
			return in.Null()
		}
		if prim, ok := primNames[name]; ok {
			return in.Intern(&types.PrimType{Prim: prim})
		}
	}

	binding := sc.lookupType(name)
	if binding == nil {
		c.errorf(ctx, sema.SymbolNotFound, ann.Name.Span(), "unknown type %q", name)
		return in.Error()
	}
	c.Sema.SetBinding(ann.Name, binding)
	delete(ctx.importUses, binding)

	args := make([]types.Type, len(ann.TypeArgs))
	for i, a := range ann.TypeArgs {
		args[i] = c.typeFromAnn(ctx, sc, a)
	}

	switch def := binding.Def.(type) {
	case *types.TypeParamDef:
		if len(args) > 0 {
			c.errorf(ctx, sema.ArgumentCountMismatch, ann.Span(),
				"type parameter %q does not take type arguments", name)
			return in.Error()
		}
		return in.Intern(def.Ref())
	case *types.ClassDef:
		return c.instantiateClass(ctx, def, args, ann.Span())
	case *types.InterfaceDef:
		full, ok := c.applyTypeArgs(ctx, def.TypeParams, args, ann.Span(), name)
		if !ok {
			return in.Error()
		}
		return in.Interface(def, full)
	case *types.MixinDef:
		full, ok := c.applyTypeArgs(ctx, def.TypeParams, args, ann.Span(), name)
		if !ok {
			return in.Error()
		}
		return in.Mixin(def, full)
	case *types.EnumDef:
		if len(args) > 0 {
			c.errorf(ctx, sema.ArgumentCountMismatch, ann.Span(), "enum %q is not generic", name)
			return in.Error()
		}
		return in.Enum(def)
	case *types.AliasDef:
		return c.instantiateAlias(ctx, binding, def, args, ann.Span())
	default:
		c.errorf(ctx, sema.WrongDeclarationKind, ann.Span(), "%q is not a type", name)
		return in.Error()
	}
}

// instantiateAlias resolves an alias lazily: an alias used before its header
// was processed resolves its target on demand, with a stack guard against
// cyclic aliases.
func (c *Checker) instantiateAlias(ctx *libCtx, binding *sema.Binding, def *types.AliasDef, args []types.Type, span ast.Span) types.Type {
	in := c.Sema.Interner
	if def.Aliased == nil {
		if ctx.aliasStack[def] {
			c.errorf(ctx, sema.TypeMismatch, span, "type alias %q is cyclic", def.Name)
			return in.Error()
		}
		if declAst, ok := binding.Decl.(*ast.TypeAliasDecl); ok && binding.Library == ctx.lib.Path {
			ctx.aliasStack[def] = true
			c.resolveAliasHeader(ctx, declAst)
			delete(ctx.aliasStack, def)
		}
		if def.Aliased == nil {
			return in.Error()
		}
	}

	full, ok := c.applyTypeArgs(ctx, def.TypeParams, args, span, def.Name)
	if !ok {
		return in.Error()
	}
	underlying := types.Substitute(in, def.Aliased, types.NewSubst(def.TypeParams, full))
	if def.Distinct {
		return in.Distinct(underlying, def)
	}
	return underlying
}

// applyTypeArgs pads missing arguments with declared defaults and verifies
// constraints. It reports and returns false on arity or constraint errors.
func (c *Checker) applyTypeArgs(ctx *libCtx, params []*types.TypeParamDef, args []types.Type, span ast.Span, name string) ([]types.Type, bool) {
	in := c.Sema.Interner
	if len(args) > len(params) {
		c.errorf(ctx, sema.ArgumentCountMismatch, span,
			"%q expects at most %d type arguments, got %d", name, len(params), len(args))
		return nil, false
	}
	full := make([]types.Type, 0, len(params))
	full = append(full, args...)
	for i := len(args); i < len(params); i++ {
		if params[i].Default == nil {
			c.errorf(ctx, sema.ArgumentCountMismatch, span,
				"%q expects %d type arguments, got %d", name, len(params), len(args))
			return nil, false
		}
		// Defaults may reference earlier parameters.
		def := types.Substitute(in, params[i].Default, types.NewSubst(params[:i], full))
		full = append(full, def)
	}
	for i, p := range params {
		if p.Constraint == nil {
			continue
		}
		bound := types.Substitute(in, p.Constraint, types.NewSubst(params, full))
		if !types.Assignable(full[i], bound) {
			c.errorf(ctx, sema.ConstraintViolation, span,
				"type argument %s does not satisfy the constraint %s of %q",
				full[i], bound, p.Name)
			return nil, false
		}
	}
	return full, true
}

// instantiateClass builds or reuses the canonical specialization of a class
// at concrete arguments and records it for codegen.
func (c *Checker) instantiateClass(ctx *libCtx, def *types.ClassDef, args []types.Type, span ast.Span) types.Type {
	in := c.Sema.Interner
	full, ok := c.applyTypeArgs(ctx, def.TypeParams, args, span, def.Name)
	if !ok {
		return in.Error()
	}
	class := in.Class(def, full)
	return c.Sema.RecordSpecialization(class)
}

// intrinsicSigs are the declarations seeded into standard-library scopes.
// Call sites are typed specially; these signatures cover value uses.
func intrinsicSigs(in *types.Interner) map[string]types.Type {
	i32 := types.Type(in.I32())
	anyref := types.Type(in.AnyRef())
	return map[string]types.Type{
		"__array_len": in.Func([]*types.ParamDef{{Name: "arr", Type: anyref}}, i32),
		"__array_get": in.Func([]*types.ParamDef{{Name: "arr", Type: anyref}, {Name: "index", Type: i32}}, anyref),
		"__array_set": in.Func([]*types.ParamDef{{Name: "arr", Type: anyref}, {Name: "index", Type: i32}, {Name: "value", Type: anyref}}, in.Void()),
		"__array_new": in.Func([]*types.ParamDef{{Name: "length", Type: i32}, {Name: "init", Type: anyref}}, anyref),
		"unreachable": in.Func(nil, in.Never()),
	}
}

// knownIntrinsics are the names accepted by @intrinsic decorators.
var knownIntrinsics = map[string]bool{
	"array_len": true, "array_get": true, "array_set": true, "array_new": true,
	"string_concat": true, "string_len": true, "string_eq": true,
	"unreachable": true,
}

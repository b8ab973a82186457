package checker

import (
	"github.com/loom-lang/loom/internal/ast"
	"github.com/loom-lang/loom/internal/sema"
	"github.com/loom-lang/loom/internal/stdlib"
	"github.com/loom-lang/loom/internal/types"
)

// inferExpr returns the expression's type and records it on the node. When
// the expression is checked against a known target type (argument position,
// annotated binding, return annotation), target carries it for contextual
// typing; otherwise target is nil.
func (c *Checker) inferExpr(ctx *libCtx, sc *scope, e ast.Expr, target types.Type) types.Type {
	t := c.inferExprInner(ctx, sc, e, target)
	return c.Sema.SetType(e, t)
}

func (c *Checker) inferExprInner(ctx *libCtx, sc *scope, e ast.Expr, target types.Type) types.Type {
	in := c.Sema.Interner
	switch e := e.(type) {
	case *ast.IntLit:
		prim := types.I32
		switch t := target.(type) {
		case *types.PrimType:
			if t.Prim == types.U32 || t.Prim == types.I64 {
				prim = t.Prim
			}
		case *types.LitType:
			if il, ok := t.Lit.(*types.IntLit); ok {
				prim = il.Prim
			}
		}
		return in.IntLit(e.Value, prim)
	case *ast.FloatLit:
		prim := types.F64
		if t, ok := target.(*types.PrimType); ok && t.Prim == types.F32 {
			prim = types.F32
		}
		return in.Intern(&types.LitType{Lit: &types.FloatLit{Value: e.Value, Prim: prim}})
	case *ast.BoolLit:
		return in.BoolLit(e.Value)
	case *ast.StrLit:
		return in.StrLit(e.Value)
	case *ast.NullLit:
		return in.Null()
	case *ast.IdentExpr:
		return c.inferIdent(ctx, sc, e)
	case *ast.ThisExpr:
		if ctx.classType == nil {
			c.errorf(ctx, sema.SymbolNotFound, e.Span(), "this outside of a class")
			return in.Error()
		}
		return in.Intern(&types.ThisType{Class: ctx.classType})
	case *ast.MemberExpr:
		return c.inferMember(ctx, sc, e)
	case *ast.IndexExpr:
		return c.inferIndex(ctx, sc, e)
	case *ast.CallExpr:
		return c.inferCall(ctx, sc, e)
	case *ast.NewExpr:
		return c.inferNew(ctx, sc, e)
	case *ast.UnaryExpr:
		return c.inferUnary(ctx, sc, e)
	case *ast.BinaryExpr:
		return c.inferBinary(ctx, sc, e)
	case *ast.AssignExpr:
		return c.inferAssign(ctx, sc, e)
	case *ast.FuncExpr:
		return c.inferFuncExpr(ctx, sc, e, target)
	case *ast.ArrayLit:
		return c.inferArrayLit(ctx, sc, e, target)
	case *ast.TupleLit:
		return c.inferTupleLit(ctx, sc, e, target)
	case *ast.RecordLit:
		return c.inferRecordLit(ctx, sc, e, target)
	case *ast.MatchExpr:
		return c.inferMatchExpr(ctx, sc, e, target)
	case *ast.IsExpr:
		c.inferExpr(ctx, sc, e.Arg, nil)
		c.typeFromAnn(ctx, sc, e.TypeAnn)
		return in.Boolean()
	case *ast.CastExpr:
		return c.inferCast(ctx, sc, e)
	case *ast.TemplateLit:
		return c.inferTemplate(ctx, sc, e)
	default:
		c.errorf(ctx, sema.TypeMismatch, e.Span(), "unsupported expression")
		return in.Error()
	}
}

func (c *Checker) inferIdent(ctx *libCtx, sc *scope, e *ast.IdentExpr) types.Type {
	in := c.Sema.Interner
	b, t := sc.lookupValue(e.Name)
	if b == nil {
		c.errorf(ctx, sema.SymbolNotFound, e.Span(), "unknown name %q", e.Name)
		return in.Error()
	}
	c.Sema.SetBinding(e, b)
	delete(ctx.importUses, b)

	if b.Library != "" && b.Library != ctx.lib.Path && stdlib.IsStdlib(b.Library) && !ctx.lib.Stdlib {
		c.Sema.MarkPreludeUse(e.Name, sema.PreludeUse{Library: b.Library, ExportName: b.Name})
	}

	if b.Kind == sema.BindingField && ctx.initField >= 0 {
		if fd, ok := b.Def.(*types.FieldDef); ok && c.ownField(ctx, fd) && fd.DeclOrder >= ctx.initField {
			c.errorf(ctx, sema.FieldAccessBeforeInitialization, e.Span(),
				"cannot access field '%s' before initialization", e.Name)
		}
	}

	if b.Kind == sema.BindingType {
		// A bare type name in value position is only meaningful as the base
		// of a static or enum member access, which inferMember intercepts.
		c.errorf(ctx, sema.WrongDeclarationKind, e.Span(), "%q is a type, not a value", e.Name)
		return in.Error()
	}
	if t == nil {
		return in.Error()
	}
	return t
}

// ownField reports whether fd is declared by the class currently being
// checked (superclass fields are always initialised first and may be
// referenced freely).
func (c *Checker) ownField(ctx *libCtx, fd *types.FieldDef) bool {
	if ctx.classDef == nil {
		return false
	}
	for _, f := range ctx.classDef.Fields {
		if f == fd {
			return true
		}
	}
	return false
}

func (c *Checker) inferMember(ctx *libCtx, sc *scope, e *ast.MemberExpr) types.Type {
	in := c.Sema.Interner

	// Static member or enum member access through a type name.
	if identObj, ok := e.Object.(*ast.IdentExpr); ok {
		if b := sc.lookupType(identObj.Name); b != nil {
			switch def := b.Def.(type) {
			case *types.EnumDef:
				c.Sema.SetBinding(identObj, b)
				delete(ctx.importUses, b)
				member := def.FindMember(e.Prop.Name)
				if member == nil {
					c.errorf(ctx, sema.PropertyNotFound, e.Prop.Span(),
						"enum %s has no member %q", def.Name, e.Prop.Name)
					return in.Error()
				}
				c.Sema.SetBinding(e.Prop, &sema.Binding{
					Kind: sema.BindingEnumMember, Library: def.Library, Name: member.Name,
					Decl: nil, Def: member, Type: in.Enum(def), Mutable: false,
				})
				return in.Enum(def)
			case *types.ClassDef:
				c.Sema.SetBinding(identObj, b)
				delete(ctx.importUses, b)
				return c.inferStaticMember(ctx, def, e)
			}
		}
	}

	objT := c.inferExpr(ctx, sc, e.Object, nil)
	return c.memberOn(ctx, objT, e)
}

func (c *Checker) inferStaticMember(ctx *libCtx, def *types.ClassDef, e *ast.MemberExpr) types.Type {
	in := c.Sema.Interner
	for _, f := range def.Fields {
		if f.Static && f.Name == e.Prop.Name {
			c.Sema.SetBinding(e.Prop, &sema.Binding{
				Kind: sema.BindingField, Library: def.Library, Name: f.Name,
				Decl: nil, Def: f, Type: f.Type, Mutable: true,
			})
			return f.Type
		}
	}
	for _, m := range def.Methods {
		if m.Static && m.Name == e.Prop.Name {
			sig := in.Intern(m.Sig())
			c.Sema.SetBinding(e.Prop, &sema.Binding{
				Kind: sema.BindingMethod, Library: def.Library, Name: m.Name,
				Decl: nil, Def: m, Type: sig, Mutable: false,
			})
			return sig
		}
	}
	c.errorf(ctx, sema.PropertyNotFound, e.Prop.Span(),
		"class %s has no static member %q", def.Name, e.Prop.Name)
	return in.Error()
}

func (c *Checker) memberOn(ctx *libCtx, objT types.Type, e *ast.MemberExpr) types.Type {
	in := c.Sema.Interner
	name := e.Prop.Name

	var class *types.ClassType
	includePrivate := false
	switch t := objT.(type) {
	case *types.ErrorType:
		return in.Error()
	case *types.ThisType:
		class = t.Class
		includePrivate = true
	case *types.ClassType:
		class = t
		includePrivate = ctx.classDef == t.Def
	case *types.InterfaceType:
		if m := c.lookupInterfaceMember(t, name); m != nil {
			c.bindMember(e.Prop, m)
			return m.Type
		}
		if m := c.lookupInterfaceMember(t, "get_"+name); m != nil {
			c.bindMember(e.Prop, m)
			return m.Method.Return
		}
		c.errorf(ctx, sema.PropertyNotFound, e.Prop.Span(),
			"interface %s has no member %q", t.Def.Name, name)
		return in.Error()
	case *types.RecordType:
		if ft, ok := t.Fields.Get(name); ok {
			return ft
		}
		c.errorf(ctx, sema.PropertyNotFound, e.Prop.Span(), "record has no field %q", name)
		return in.Error()
	case *types.UnionType:
		if t.ContainsNull() {
			c.errorf(ctx, sema.PropertyNotFound, e.Prop.Span(),
				"cannot access %q on possibly-null value of type %s", name, t)
		} else {
			c.errorf(ctx, sema.PropertyNotFound, e.Prop.Span(),
				"cannot access %q on union type %s", name, t)
		}
		return in.Error()
	default:
		c.errorf(ctx, sema.PropertyNotFound, e.Prop.Span(),
			"type %s has no member %q", objT, name)
		return in.Error()
	}

	// Field initializers may only read this-fields declared earlier.
	if _, isThis := e.Object.(*ast.ThisExpr); isThis && ctx.initField >= 0 {
		if fd := ctx.classDef.FindField(name); fd != nil && fd.DeclOrder >= ctx.initField {
			c.errorf(ctx, sema.FieldAccessBeforeInitialization, e.Prop.Span(),
				"cannot access field '%s' before initialization", name)
		}
	}

	if m := c.lookupMember(class, name, includePrivate); m != nil {
		c.bindMember(e.Prop, m)
		return m.Type
	}
	if m := c.lookupMember(class, "get_"+name, includePrivate); m != nil && m.Method != nil {
		c.bindMember(e.Prop, m)
		return m.Method.Return
	}
	c.errorf(ctx, sema.PropertyNotFound, e.Prop.Span(),
		"%s has no member %q", class, name)
	return in.Error()
}

func (c *Checker) bindMember(prop *ast.Ident, m *member) {
	b := &sema.Binding{
		Kind: sema.BindingField, Library: "", Name: prop.Name,
		Decl: nil, Def: nil, Type: m.Type, Mutable: false,
	}
	if m.Owner != nil {
		b.Library = m.Owner.Library
	}
	if m.Field != nil {
		b.Def = m.Field
		b.Mutable = true
	} else if m.Method != nil {
		b.Def = m.Method
		if m.Method.Kind == types.MethodKindGetter || m.Method.Kind == types.MethodKindSetter {
			b.Kind = sema.BindingAccessor
		} else {
			b.Kind = sema.BindingMethod
		}
	}
	c.Sema.SetBinding(prop, b)
}

func (c *Checker) inferIndex(ctx *libCtx, sc *scope, e *ast.IndexExpr) types.Type {
	in := c.Sema.Interner
	objT := c.inferExpr(ctx, sc, e.Object, nil)
	idxT := c.inferExpr(ctx, sc, e.Index, in.I32())

	switch t := objT.(type) {
	case *types.FixedArrayType:
		c.requireIndex(ctx, idxT, e.Index.Span())
		return t.Elem
	case *types.ArrayType:
		c.requireIndex(ctx, idxT, e.Index.Span())
		return t.Elem
	case *types.TupleType:
		if lit, ok := e.Index.(*ast.IntLit); ok {
			if lit.Value < 0 || lit.Value >= int64(len(t.Elems)) {
				c.errorf(ctx, sema.TypeMismatch, e.Index.Span(),
					"tuple index %d out of range for %s", lit.Value, t)
				return in.Error()
			}
			return t.Elems[lit.Value]
		}
		c.errorf(ctx, sema.TypeMismatch, e.Index.Span(), "tuple index must be a literal")
		return in.Error()
	case *types.ErrorType:
		return in.Error()
	default:
		c.errorf(ctx, sema.TypeMismatch, e.Span(), "%s is not indexable", objT)
		return in.Error()
	}
}

func (c *Checker) requireIndex(ctx *libCtx, t types.Type, span ast.Span) {
	if !types.Assignable(t, c.Sema.Interner.I32()) {
		c.errorf(ctx, sema.TypeMismatch, span, "index must be i32, got %s", t)
	}
}

func (c *Checker) inferCall(ctx *libCtx, sc *scope, e *ast.CallExpr) types.Type {
	in := c.Sema.Interner

	if ident, ok := e.Callee.(*ast.IdentExpr); ok {
		if b, _ := sc.lookupValue(ident.Name); b != nil && b.Kind == sema.BindingIntrinsic && b.Decl == nil {
			c.Sema.SetBinding(ident, b)
			c.Sema.SetType(e.Callee, b.Type)
			return c.inferSeededIntrinsic(ctx, sc, e, ident.Name)
		}
	}

	calleeT := c.inferExpr(ctx, sc, e.Callee, nil)
	if _, isErr := calleeT.(*types.ErrorType); isErr {
		for _, arg := range e.Args {
			c.inferExpr(ctx, sc, arg, nil)
		}
		return in.Error()
	}
	fn, ok := calleeT.(*types.FuncType)
	if !ok {
		c.errorf(ctx, sema.NotCallable, e.Callee.Span(), "%s is not callable", calleeT)
		for _, arg := range e.Args {
			c.inferExpr(ctx, sc, arg, nil)
		}
		return in.Error()
	}

	if len(e.Args) != len(fn.Params) {
		c.errorf(ctx, sema.ArgumentCountMismatch, e.Span(),
			"expected %d arguments, got %d", len(fn.Params), len(e.Args))
		for _, arg := range e.Args {
			c.inferExpr(ctx, sc, arg, nil)
		}
		return fn.Return
	}

	if len(fn.TypeParams) == 0 {
		if len(e.TypeArgs) > 0 {
			c.errorf(ctx, sema.ArgumentCountMismatch, e.Span(), "callee is not generic")
		}
		for i, arg := range e.Args {
			pt := fn.Params[i].Type
			got := c.inferExpr(ctx, sc, arg, pt)
			if !types.Assignable(got, pt) {
				c.errorf(ctx, sema.TypeMismatch, arg.Span(),
					"argument %d: cannot assign %s to %s", i+1, got, pt)
			}
		}
		return fn.Return
	}

	// Generic call: explicit type arguments first, inference for the rest.
	explicit := make([]types.Type, len(e.TypeArgs))
	for i, ta := range e.TypeArgs {
		explicit[i] = c.typeFromAnn(ctx, sc, ta)
	}
	argTypes := make([]types.Type, len(e.Args))
	for i, arg := range e.Args {
		argTypes[i] = c.inferExpr(ctx, sc, arg, nil)
	}
	mapping, ok := c.inferTypeArgs(ctx, fn, argTypes, explicit, e.Span())
	if !ok {
		return in.Error()
	}
	c.Sema.SetInstantiation(e, mapping)
	for i, at := range argTypes {
		pt := types.Substitute(in, fn.Params[i].Type, mapping)
		if !types.Assignable(at, pt) {
			c.errorf(ctx, sema.TypeMismatch, e.Args[i].Span(),
				"argument %d: cannot assign %s to %s", i+1, at, pt)
		}
	}
	return types.Substitute(in, fn.Return, mapping)
}

// inferSeededIntrinsic types calls to the intrinsic declarations seeded into
// standard-library scopes.
func (c *Checker) inferSeededIntrinsic(ctx *libCtx, sc *scope, e *ast.CallExpr, name string) types.Type {
	in := c.Sema.Interner

	argT := make([]types.Type, len(e.Args))
	for i, arg := range e.Args {
		argT[i] = c.inferExpr(ctx, sc, arg, nil)
	}
	elemOf := func(t types.Type) types.Type {
		switch t := t.(type) {
		case *types.FixedArrayType:
			return t.Elem
		case *types.ArrayType:
			return t.Elem
		default:
			c.errorf(ctx, sema.TypeMismatch, e.Span(), "%s expects an array, got %s", name, t)
			return in.Error()
		}
	}
	arity := func(n int) bool {
		if len(e.Args) != n {
			c.errorf(ctx, sema.ArgumentCountMismatch, e.Span(),
				"%s expects %d arguments, got %d", name, n, len(e.Args))
			return false
		}
		return true
	}

	switch name {
	case "__array_len":
		if !arity(1) {
			return in.Error()
		}
		elemOf(argT[0])
		return in.I32()
	case "__array_get":
		if !arity(2) {
			return in.Error()
		}
		return elemOf(argT[0])
	case "__array_set":
		if !arity(3) {
			return in.Error()
		}
		elem := elemOf(argT[0])
		if !types.Assignable(argT[2], elem) {
			c.errorf(ctx, sema.TypeMismatch, e.Args[2].Span(),
				"cannot store %s in an array of %s", argT[2], elem)
		}
		return in.Void()
	case "__array_new":
		if !arity(2) {
			return in.Error()
		}
		elem := argT[1]
		if lit, ok := elem.(*types.LitType); ok {
			elem = in.Intern(lit.Base())
		}
		return in.FixedArray(elem)
	case "unreachable":
		if !arity(0) {
			return in.Error()
		}
		return in.Never()
	default:
		c.errorf(ctx, sema.UnknownIntrinsic, e.Span(), "unknown intrinsic")
		return in.Error()
	}
}

func (c *Checker) inferNew(ctx *libCtx, sc *scope, e *ast.NewExpr) types.Type {
	in := c.Sema.Interner
	t := c.typeFromRef(ctx, sc, e.Class)
	class, ok := t.(*types.ClassType)
	if !ok {
		if _, isErr := t.(*types.ErrorType); !isErr {
			c.errorf(ctx, sema.WrongDeclarationKind, e.Class.Span(),
				"%s is not a class", e.Class.Name.Name)
		}
		for _, arg := range e.Args {
			c.inferExpr(ctx, sc, arg, nil)
		}
		return in.Error()
	}
	if class.Def.IsAbstract {
		c.errorf(ctx, sema.AbstractInstantiation, e.Span(),
			"cannot instantiate abstract class %s", class.Def.Name)
	}

	ctor := c.ctorOf(class)
	var params []*types.ParamDef
	if ctor != nil {
		params = ctor.Params
	}
	if len(e.Args) != len(params) {
		c.errorf(ctx, sema.ArgumentCountMismatch, e.Span(),
			"constructor of %s expects %d arguments, got %d", class.Def.Name, len(params), len(e.Args))
		for _, arg := range e.Args {
			c.inferExpr(ctx, sc, arg, nil)
		}
		return class
	}
	for i, arg := range e.Args {
		pt := params[i].Type
		got := c.inferExpr(ctx, sc, arg, pt)
		if !types.Assignable(got, pt) {
			c.errorf(ctx, sema.TypeMismatch, arg.Span(),
				"argument %d: cannot assign %s to %s", i+1, got, pt)
		}
	}
	return class
}

// ctorOf finds the constructor that runs for a class: its own, or the
// closest inherited one, with type arguments substituted.
func (c *Checker) ctorOf(class *types.ClassType) *types.MethodDef {
	for cur := class; cur != nil; cur = c.superOf(cur) {
		if cur.Def.Ctor != nil {
			mapping := types.NewSubst(cur.Def.TypeParams, cur.TypeArgs)
			return types.SubstituteMethod(cur.Def.Ctor, mapping)
		}
	}
	return nil
}

func (c *Checker) inferUnary(ctx *libCtx, sc *scope, e *ast.UnaryExpr) types.Type {
	in := c.Sema.Interner
	switch e.Op {
	case ast.UnaryMinus:
		t := c.inferExpr(ctx, sc, e.Arg, nil)
		base := widen(in, t)
		if !isNumeric(base) {
			c.errorf(ctx, sema.TypeMismatch, e.Span(), "cannot negate %s", t)
			return in.Error()
		}
		return base
	case ast.UnaryNot:
		t := c.inferExpr(ctx, sc, e.Arg, in.Boolean())
		c.requireBoolean(ctx, t, e.Arg.Span())
		return in.Boolean()
	default:
		c.errorf(ctx, sema.TypeMismatch, e.Span(), "unknown unary operator")
		return in.Error()
	}
}

func widen(in *types.Interner, t types.Type) types.Type {
	if lit, ok := t.(*types.LitType); ok {
		return in.Intern(lit.Base())
	}
	return t
}

func isNumeric(t types.Type) bool {
	p, ok := t.(*types.PrimType)
	if !ok {
		return false
	}
	switch p.Prim {
	case types.I32, types.U32, types.I64, types.F32, types.F64:
		return true
	default:
		return false
	}
}

func (c *Checker) inferBinary(ctx *libCtx, sc *scope, e *ast.BinaryExpr) types.Type {
	in := c.Sema.Interner
	switch e.Op {
	case ast.LogicalAnd, ast.LogicalOr:
		lt := c.inferExpr(ctx, sc, e.Left, in.Boolean())
		c.requireBoolean(ctx, lt, e.Left.Span())
		rt := c.inferExpr(ctx, sc, e.Right, in.Boolean())
		c.requireBoolean(ctx, rt, e.Right.Span())
		return in.Boolean()
	case ast.EqualEqual, ast.NotEqual:
		lt := c.inferExpr(ctx, sc, e.Left, nil)
		rt := c.inferExpr(ctx, sc, e.Right, nil)
		if !types.Assignable(lt, rt) && !types.Assignable(rt, lt) {
			c.errorf(ctx, sema.TypeMismatch, e.Span(),
				"cannot compare %s with %s", lt, rt)
		}
		return in.Boolean()
	case ast.LessThan, ast.LessThanEqual, ast.GreaterThan, ast.GreaterThanEqual:
		lt := widen(in, c.inferExpr(ctx, sc, e.Left, nil))
		rt := widen(in, c.inferExpr(ctx, sc, e.Right, nil))
		if !isNumeric(lt) || !isNumeric(rt) || lt.Key() != rt.Key() {
			c.errorf(ctx, sema.TypeMismatch, e.Span(),
				"cannot compare %s with %s", lt, rt)
		}
		return in.Boolean()
	case ast.Plus, ast.Minus, ast.Times, ast.Divide, ast.Modulo:
		lt := widen(in, c.inferExpr(ctx, sc, e.Left, nil))
		rt := widen(in, c.inferExpr(ctx, sc, e.Right, nil))
		if e.Op == ast.Plus {
			if p, ok := lt.(*types.PrimType); ok && p.Prim == types.String {
				if !types.Assignable(rt, in.String()) {
					c.errorf(ctx, sema.TypeMismatch, e.Right.Span(),
						"cannot concatenate %s to a string", rt)
				}
				return in.String()
			}
		}
		if !isNumeric(lt) || !isNumeric(rt) || lt.Key() != rt.Key() {
			c.errorf(ctx, sema.TypeMismatch, e.Span(),
				"operator %s needs matching numeric operands, got %s and %s", e.Op, lt, rt)
			return in.Error()
		}
		if e.Op == ast.Modulo {
			if p := lt.(*types.PrimType); p.Prim == types.F32 || p.Prim == types.F64 {
				c.errorf(ctx, sema.TypeMismatch, e.Span(), "%% is not defined for %s", p.Prim)
				return in.Error()
			}
		}
		return lt
	default:
		c.errorf(ctx, sema.TypeMismatch, e.Span(), "unknown operator %s", e.Op)
		return in.Error()
	}
}

func (c *Checker) inferAssign(ctx *libCtx, sc *scope, e *ast.AssignExpr) types.Type {
	in := c.Sema.Interner
	switch target := e.Target.(type) {
	case *ast.IdentExpr:
		b, t := sc.lookupValue(target.Name)
		if b == nil {
			c.errorf(ctx, sema.SymbolNotFound, target.Span(), "unknown name %q", target.Name)
			c.inferExpr(ctx, sc, e.Value, nil)
			return in.Error()
		}
		c.Sema.SetBinding(target, b)
		if t != nil {
			c.Sema.SetType(target, t)
		}
		if !b.Mutable {
			c.errorf(ctx, sema.ImmutableBinding, target.Span(),
				"cannot assign to immutable binding %q", target.Name)
		}
		got := c.inferExpr(ctx, sc, e.Value, b.Type)
		if !types.Assignable(got, b.Type) {
			c.errorf(ctx, sema.NotAssignable, e.Value.Span(),
				"cannot assign %s to %s", got, b.Type)
		}
		return b.Type
	case *ast.MemberExpr:
		ft := c.inferMemberForWrite(ctx, sc, target)
		got := c.inferExpr(ctx, sc, e.Value, ft)
		if ft != nil && !types.Assignable(got, ft) {
			c.errorf(ctx, sema.NotAssignable, e.Value.Span(),
				"cannot assign %s to %s", got, ft)
		}
		if ft == nil {
			return in.Error()
		}
		return ft
	case *ast.IndexExpr:
		et := c.inferIndexTarget(ctx, sc, target)
		got := c.inferExpr(ctx, sc, e.Value, et)
		if et != nil && !types.Assignable(got, et) {
			c.errorf(ctx, sema.NotAssignable, e.Value.Span(),
				"cannot store %s in %s", got, et)
		}
		if et == nil {
			return in.Error()
		}
		return et
	default:
		c.errorf(ctx, sema.NotAssignable, e.Target.Span(), "invalid assignment target")
		c.inferExpr(ctx, sc, e.Value, nil)
		return in.Error()
	}
}

// inferMemberForWrite resolves a member access in assignment position:
// a writable field, or a set_X accessor.
func (c *Checker) inferMemberForWrite(ctx *libCtx, sc *scope, e *ast.MemberExpr) types.Type {
	t := c.inferExpr(ctx, sc, e, nil)

	b := c.Sema.Binding(e.Prop)
	if b == nil {
		return nil
	}
	switch b.Kind {
	case sema.BindingField:
		return t
	case sema.BindingAccessor:
		// Reads resolved the getter; writes need the setter.
		objT := c.Sema.TypeOf(e.Object)
		class := classOf(objT)
		if class == nil {
			return nil
		}
		setter := c.lookupMember(class, "set_"+e.Prop.Name, ctx.classDef == class.Def)
		if setter == nil || setter.Method == nil || len(setter.Method.Params) != 1 {
			c.errorf(ctx, sema.NotAssignable, e.Prop.Span(),
				"%q has no setter", e.Prop.Name)
			return nil
		}
		return setter.Method.Params[0].Type
	case sema.BindingMethod:
		c.errorf(ctx, sema.NotAssignable, e.Prop.Span(), "cannot assign to method %q", e.Prop.Name)
		return nil
	default:
		return t
	}
}

func classOf(t types.Type) *types.ClassType {
	switch t := t.(type) {
	case *types.ClassType:
		return t
	case *types.ThisType:
		return t.Class
	default:
		return nil
	}
}

func (c *Checker) inferIndexTarget(ctx *libCtx, sc *scope, e *ast.IndexExpr) types.Type {
	t := c.inferIndex(ctx, sc, e)
	c.Sema.SetType(e, t)
	if _, isErr := t.(*types.ErrorType); isErr {
		return nil
	}
	return t
}

func (c *Checker) inferFuncExpr(ctx *libCtx, sc *scope, e *ast.FuncExpr, target types.Type) types.Type {
	in := c.Sema.Interner
	contextual, _ := target.(*types.FuncType)

	params := make([]*types.ParamDef, len(e.Params))
	body := newScope(sc)
	for i, p := range e.Params {
		var pt types.Type
		switch {
		case p.TypeAnn != nil:
			pt = c.typeFromAnn(ctx, sc, p.TypeAnn)
		case contextual != nil && i < len(contextual.Params):
			pt = contextual.Params[i].Type
		default:
			c.errorf(ctx, sema.TypeMismatch, p.Name.Span(),
				"closure parameter %q needs a type annotation", p.Name.Name)
			pt = in.Error()
		}
		params[i] = &types.ParamDef{Name: p.Name.Name, Type: pt}
		pb := &sema.Binding{
			Kind: sema.BindingLocal, Library: ctx.lib.Path, Name: p.Name.Name,
			Decl: p.Name, Def: nil, Type: pt, Mutable: false,
		}
		body.define(p.Name.Name, pb)
		c.Sema.SetBinding(p.Name, pb)
	}

	var ret types.Type
	switch {
	case e.Return != nil:
		ret = c.typeFromAnn(ctx, sc, e.Return)
	case contextual != nil:
		ret = contextual.Return
	}

	prevRet, prevCollect := ctx.retType, ctx.collectReturns
	var collected []types.Type
	if ret == nil {
		ctx.retType = nil
		ctx.collectReturns = &collected
	} else {
		ctx.retType = ret
		ctx.collectReturns = nil
	}
	c.checkBlockIn(ctx, body, e.Body)
	ctx.retType, ctx.collectReturns = prevRet, prevCollect

	if ret == nil {
		if len(collected) == 0 {
			ret = in.Void()
		} else {
			widened := make([]types.Type, len(collected))
			for i, t := range collected {
				widened[i] = widen(in, t)
			}
			ret = in.Union(widened...)
		}
	}
	return in.Intern(&types.FuncType{TypeParams: nil, Params: params, Return: ret})
}

func (c *Checker) inferArrayLit(ctx *libCtx, sc *scope, e *ast.ArrayLit, target types.Type) types.Type {
	in := c.Sema.Interner
	var elemTarget types.Type
	switch t := target.(type) {
	case *types.FixedArrayType:
		elemTarget = t.Elem
	case *types.ArrayType:
		elemTarget = t.Elem
	}

	if len(e.Elems) == 0 && elemTarget == nil {
		c.errorf(ctx, sema.TypeMismatch, e.Span(),
			"empty array literal needs a contextual element type")
		return in.Error()
	}

	var elemTypes []types.Type
	for _, el := range e.Elems {
		got := c.inferExpr(ctx, sc, el, elemTarget)
		if elemTarget != nil && !types.Assignable(got, elemTarget) {
			c.errorf(ctx, sema.TypeMismatch, el.Span(),
				"cannot use %s in an array of %s", got, elemTarget)
		}
		elemTypes = append(elemTypes, widen(in, got))
	}

	elem := elemTarget
	if elem == nil {
		elem = in.Union(elemTypes...)
		if u, ok := elem.(*types.UnionType); ok && types.MixesPrimitiveAndReference(u.Members) {
			c.errorf(ctx, sema.UnionMixesPrimitiveAndReference, e.Span(),
				"array elements mix primitive and reference types")
			return in.Error()
		}
	}
	if e.Fixed {
		return in.FixedArray(elem)
	}
	return in.Array(elem)
}

func (c *Checker) inferTupleLit(ctx *libCtx, sc *scope, e *ast.TupleLit, target types.Type) types.Type {
	in := c.Sema.Interner
	contextual, _ := target.(*types.TupleType)
	elems := make([]types.Type, len(e.Elems))
	for i, el := range e.Elems {
		var et types.Type
		if contextual != nil && i < len(contextual.Elems) {
			et = contextual.Elems[i]
		}
		elems[i] = widen(in, c.inferExpr(ctx, sc, el, et))
	}
	return in.Tuple(elems...)
}

func (c *Checker) inferRecordLit(ctx *libCtx, sc *scope, e *ast.RecordLit, target types.Type) types.Type {
	in := c.Sema.Interner
	contextual, _ := target.(*types.RecordType)
	fields := make(map[string]types.Type, len(e.Fields))
	for _, f := range e.Fields {
		var ft types.Type
		if contextual != nil {
			if t, ok := contextual.Fields.Get(f.Name.Name); ok {
				ft = t
			}
		}
		fields[f.Name.Name] = widen(in, c.inferExpr(ctx, sc, f.Value, ft))
	}
	return in.Record(fields)
}

func (c *Checker) inferCast(ctx *libCtx, sc *scope, e *ast.CastExpr) types.Type {
	in := c.Sema.Interner
	argT := c.inferExpr(ctx, sc, e.Arg, nil)
	t := c.typeFromAnn(ctx, sc, e.TypeAnn)

	wide := widen(in, argT)
	switch {
	case types.Assignable(argT, t):
		// upcast, always safe
	case types.Assignable(t, argT):
		// downcast, checked at runtime; traps when the value is not a T
	case isNumeric(wide) && isNumeric(widen(in, t)):
		// explicit numeric conversion
	case isDistinctConversion(argT, t):
		// wrapping or unwrapping a distinct type
	default:
		c.errorf(ctx, sema.InvalidCast, e.Span(), "cannot cast %s to %s", argT, t)
		return in.Error()
	}
	return t
}

// isDistinctConversion permits explicit casts between a distinct type and
// its underlying type.
func isDistinctConversion(from, to types.Type) bool {
	if d, ok := to.(*types.DistinctType); ok {
		return types.Assignable(from, d.Inner)
	}
	if d, ok := from.(*types.DistinctType); ok {
		return types.Assignable(d.Inner, to)
	}
	return false
}

func (c *Checker) inferTemplate(ctx *libCtx, sc *scope, e *ast.TemplateLit) types.Type {
	in := c.Sema.Interner
	for _, ex := range e.Exprs {
		c.inferExpr(ctx, sc, ex, nil)
	}
	if e.Tag == nil {
		return in.String()
	}
	tagT := c.inferExpr(ctx, sc, e.Tag, nil)
	fn, ok := tagT.(*types.FuncType)
	if !ok {
		if _, isErr := tagT.(*types.ErrorType); !isErr {
			c.errorf(ctx, sema.NotCallable, e.Tag.Span(), "template tag %s is not callable", tagT)
		}
		return in.Error()
	}
	if len(fn.Params) == 0 {
		c.errorf(ctx, sema.ArgumentCountMismatch, e.Tag.Span(),
			"template tag must accept the strings array")
		return in.Error()
	}
	return fn.Return
}

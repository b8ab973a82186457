package codegen

import (
	"github.com/loom-lang/loom/internal/ast"
	"github.com/loom-lang/loom/internal/sema"
	"github.com/loom-lang/loom/internal/types"
	"github.com/loom-lang/loom/internal/wasm"
)

func (f *fnCtx) callExpr(e *ast.CallExpr) {
	g := f.g
	switch callee := e.Callee.(type) {
	case *ast.IdentExpr:
		b := g.sema.Binding(callee)
		if b == nil {
			fatalf("unresolved callee %q", callee.Name)
		}
		switch b.Kind {
		case sema.BindingIntrinsic:
			if b.Decl == nil {
				f.seededIntrinsic(e, callee.Name)
				return
			}
			decl := b.Decl.(*ast.FuncDecl)
			f.intrinsicByName(intrinsicNameOf(decl), nil, e.Args, g.typeOf(f, e))
			return
		case sema.BindingFunc:
			f.directCall(b, e)
			return
		case sema.BindingMethod:
			// Bare method call inside a class body dispatches on this.
			m := b.Def.(*types.MethodDef)
			f.body.LocalGet(f.selfLocal)
			f.methodCallOnStack(f.layout, m, e)
			return
		case sema.BindingLocal, sema.BindingGlobal:
			f.closureCall(e)
			return
		default:
			fatalf("callee %q cannot be called", callee.Name)
		}
	case *ast.MemberExpr:
		f.memberCall(callee, e)
	default:
		f.closureCall(e)
	}
}

func intrinsicNameOf(decl *ast.FuncDecl) string {
	for _, dec := range decl.Decorators {
		if dec.Name == "intrinsic" && len(dec.Args) == 1 {
			if lit, ok := dec.Args[0].(*ast.StrLit); ok {
				return lit.Value
			}
		}
	}
	return ""
}

// directCall dispatches to a top-level function, resolving the generic
// instance's symbol when the callee is generic.
func (f *fnCtx) directCall(b *sema.Binding, e *ast.CallExpr) {
	g := f.g
	decl := b.Decl.(*ast.FuncDecl)
	entry := g.unit.ByDecl(decl)
	if entry == nil {
		fatalf("function %q not bundled", decl.Name.Name)
	}
	fn := b.Type.(*types.FuncType)

	var inst types.Subst
	if len(fn.TypeParams) > 0 {
		recorded := g.sema.InstantiationOf(e)
		if recorded == nil {
			fatalf("missing instantiation for generic call to %q", decl.Name.Name)
		}
		inst = make(types.Subst, len(recorded))
		for k, t := range recorded {
			inst[k] = types.Substitute(g.in, t, f.mapping)
		}
	}

	for i, arg := range e.Args {
		pt := fn.Params[i].Type
		pt = types.Substitute(g.in, pt, inst)
		pt = types.Substitute(g.in, pt, f.mapping)
		f.expr(arg)
		f.coerce(g.typeOf(f, arg), pt)
	}

	sym := entry.Mangled
	if len(fn.TypeParams) > 0 {
		sym += substKey(fn.TypeParams, inst)
	}
	idx, ok := g.fnIdx[sym]
	if !ok {
		fatalf("function %q not declared", sym)
	}
	f.body.Call(idx)
}

// closureCall invokes a function value: the environment is passed as the
// code pointer's leading argument.
func (f *fnCtx) closureCall(e *ast.CallExpr) {
	g := f.g
	fnType, ok := g.typeOf(f, e.Callee).(*types.FuncType)
	if !ok {
		fatalf("callee is not a function value")
	}
	base := g.closureBaseIdx(fnType)
	implSig := g.closureImplSigIdx(fnType)

	tmp := f.newLocal(wasm.RefNull(wasm.HeapType(base)))
	f.expr(e.Callee)
	f.body.LocalSet(tmp)
	f.body.LocalGet(tmp)
	for i, arg := range e.Args {
		f.expr(arg)
		f.coerce(g.typeOf(f, arg), types.Substitute(g.in, fnType.Params[i].Type, f.mapping))
	}
	f.body.LocalGet(tmp)
	f.body.StructGet(base, 0)
	f.body.CallRef(implSig)
}

func (f *fnCtx) memberCall(callee *ast.MemberExpr, e *ast.CallExpr) {
	g := f.g
	prop := g.sema.Binding(callee.Prop)
	if prop == nil {
		fatalf("unresolved member %q", callee.Prop.Name)
	}

	if m, ok := prop.Def.(*types.MethodDef); ok && m.Static {
		// Static method: no receiver, direct call against the declaring
		// definition.
		if m.Intrinsic != "" {
			f.intrinsicByName(m.Intrinsic, nil, e.Args, g.typeOf(f, e))
			return
		}
		objIdent, ok := callee.Object.(*ast.IdentExpr)
		if !ok {
			fatalf("static call through a non-type expression")
		}
		classBinding := g.sema.Binding(objIdent)
		def := classBinding.Def.(*types.ClassDef)
		sym := g.staticMethodSym(def, m.Name)
		idx, ok := g.fnIdx[sym]
		if !ok {
			fatalf("static method %q not declared", sym)
		}
		f.body.RefNull(wasm.HeapNone)
		for i, arg := range e.Args {
			f.expr(arg)
			f.coerce(g.typeOf(f, arg), types.Substitute(g.in, m.Params[i].Type, f.mapping))
		}
		f.body.Call(idx)
		return
	}

	objT := g.typeOf(f, callee.Object)
	switch objT := objT.(type) {
	case *types.ClassType, *types.ThisType:
		class := classTypeOf(objT)
		m, ok := prop.Def.(*types.MethodDef)
		if !ok {
			// A closure stored in a field.
			f.closureCall(e)
			return
		}
		f.expr(callee.Object)
		f.methodCallOnStack(g.layoutOf(class), m, e)
	case *types.InterfaceType:
		f.expr(callee.Object)
		resultT := g.typeOf(f, e)
		f.ifaceDispatchOnStack(objT, callee.Prop.Name, func() {
			for _, arg := range e.Args {
				f.expr(arg)
			}
		}, resultT)
	case *types.RecordType:
		f.closureCall(e)
	default:
		f.closureCall(e)
	}
}

// methodCallOnStack compiles a method invocation with the receiver already
// on the stack: static dispatch for final, private, and intrinsic members,
// vtable dispatch otherwise.
func (f *fnCtx) methodCallOnStack(l *layout, m *types.MethodDef, e *ast.CallExpr) {
	g := f.g

	if m.Intrinsic != "" {
		f.intrinsicByName(m.Intrinsic, nil, e.Args, g.typeOf(f, e))
		return
	}

	// A static method reached through an instance-style reference: the
	// receiver on the stack is discarded.
	if m.Static {
		f.body.Drop()
		for cur := l; cur != nil; cur = cur.super {
			if cur.def.FindMethod(m.Name) != nil {
				sym := g.staticMethodSym(cur.def, m.Name)
				idx, ok := g.fnIdx[sym]
				if !ok {
					fatalf("static method %q not declared", sym)
				}
				f.body.RefNull(wasm.HeapNone)
				for i, arg := range e.Args {
					f.expr(arg)
					f.coerce(g.typeOf(f, arg), types.Substitute(g.in, m.Params[i].Type, f.mapping))
				}
				f.body.Call(idx)
				return
			}
		}
		fatalf("no declaring class for static method %q", m.Name)
	}

	// Method-level generics dispatch statically to a per-callsite instance.
	if len(m.TypeParams) > 0 {
		f.genericMethodCall(l, m, e)
		return
	}

	paramType := func(i int) types.Type {
		return types.Substitute(g.in, m.Params[i].Type, f.mapping)
	}
	args := func() {
		for i, arg := range e.Args {
			f.expr(arg)
			f.coerce(g.typeOf(f, arg), paramType(i))
		}
	}
	f.virtualCallOnStack(l, m.Name, args, g.typeOf(f, e))
}

func (f *fnCtx) genericMethodCall(l *layout, m *types.MethodDef, e *ast.CallExpr) {
	g := f.g
	recorded := g.sema.InstantiationOf(e)
	if recorded == nil {
		fatalf("missing instantiation for generic method %q", m.Name)
	}
	inst := make(types.Subst, len(recorded))
	for k, t := range recorded {
		inst[k] = types.Substitute(g.in, t, f.mapping)
	}

	sym := l.key() + "::" + m.Name + substKey(m.TypeParams, inst)
	if _, declared := g.fnIdx[sym]; !declared {
		merged := make(types.Subst, len(l.mapping)+len(inst))
		for k, t := range l.mapping {
			merged[k] = t
		}
		for k, t := range inst {
			merged[k] = t
		}
		sub := types.SubstituteMethod(m, inst)
		g.addJob(&fnJob{
			sym: sym, kind: jobMethod,
			decl: nil, layout: l, method: sub, field: nil, mapping: merged,
		}, g.methodWasmType(sub, nil))
	}

	// The receiver is already on the stack beneath the arguments, matching
	// the compiled method's (self, params...) signature.
	for i, arg := range e.Args {
		pt := types.Substitute(g.in, m.Params[i].Type, inst)
		f.expr(arg)
		f.coerce(g.typeOf(f, arg), pt)
	}
	f.body.Call(g.fnIdx[sym])
}

func (g *Generator) staticMethodSym(def *types.ClassDef, name string) string {
	return def.Library + "#" + def.Name + "::static::" + name
}

// seededIntrinsic lowers the loader-seeded intrinsic declarations available
// in standard-library code.
func (f *fnCtx) seededIntrinsic(e *ast.CallExpr, name string) {
	g := f.g
	switch name {
	case "__array_len":
		f.expr(e.Args[0])
		f.body.ArrayLen()
	case "__array_get":
		elem := g.typeOf(f, e)
		f.expr(e.Args[0])
		f.expr(e.Args[1])
		f.body.ArrayGet(g.arrayTypeIdx(elem))
	case "__array_set":
		arrT := g.typeOf(f, e.Args[0])
		elem := elemTypeOf(arrT)
		f.expr(e.Args[0])
		f.expr(e.Args[1])
		f.expr(e.Args[2])
		f.coerce(g.typeOf(f, e.Args[2]), elem)
		f.body.ArraySet(g.arrayTypeIdx(elem))
	case "__array_new":
		resT := g.typeOf(f, e)
		elem := elemTypeOf(resT)
		f.expr(e.Args[1])
		f.coerce(g.typeOf(f, e.Args[1]), elem)
		f.expr(e.Args[0])
		f.body.ArrayNew(g.arrayTypeIdx(elem))
	case "unreachable":
		f.body.Unreachable()
	default:
		fatalf("unknown intrinsic %q", name)
	}
}

func elemTypeOf(t types.Type) types.Type {
	switch t := t.(type) {
	case *types.FixedArrayType:
		return t.Elem
	case *types.ArrayType:
		return t.Elem
	default:
		fatalf("expected an array type, got %s", t)
		return nil
	}
}

// intrinsicByName lowers @intrinsic-decorated declarations: the code
// generator replaces the call with a primitive instruction sequence.
func (f *fnCtx) intrinsicByName(name string, recv ast.Expr, args []ast.Expr, resultT types.Type) {
	g := f.g
	pushAll := func() {
		if recv != nil {
			f.expr(recv)
		}
		for _, a := range args {
			f.expr(a)
		}
	}
	switch name {
	case "array_len":
		pushAll()
		f.body.ArrayLen()
	case "array_get":
		pushAll()
		f.body.ArrayGet(g.arrayTypeIdx(resultT))
	case "array_set":
		arrT := g.typeOf(f, args[0])
		pushAll()
		f.body.ArraySet(g.arrayTypeIdx(elemTypeOf(arrT)))
	case "array_new":
		pushAll()
		f.body.ArrayNew(g.arrayTypeIdx(elemTypeOf(resultT)))
	case "string_concat":
		pushAll()
		f.body.Call(g.helperStringConcat())
	case "string_len":
		pushAll()
		f.body.StructGet(g.stringType, 0)
		f.body.ArrayLen()
	case "string_eq":
		pushAll()
		f.body.Call(g.helperStringEq())
	case "unreachable":
		f.body.Unreachable()
	default:
		fatalf("unknown intrinsic %q", name)
	}
}

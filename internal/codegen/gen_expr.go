package codegen

import (
	"github.com/loom-lang/loom/internal/ast"
	"github.com/loom-lang/loom/internal/sema"
	"github.com/loom-lang/loom/internal/types"
	"github.com/loom-lang/loom/internal/wasm"
)

// expr compiles one expression, leaving its value on the stack (nothing for
// void and never).
func (f *fnCtx) expr(e ast.Expr) {
	g := f.g
	switch e := e.(type) {
	case *ast.IntLit:
		if widenPrim(g.typeOf(f, e)) == types.I64 {
			f.body.I64Const(e.Value)
		} else {
			f.body.I32Const(int32(e.Value))
		}
	case *ast.FloatLit:
		if widenPrim(g.typeOf(f, e)) == types.F32 {
			f.body.F32Const(float32(e.Value))
		} else {
			f.body.F64Const(e.Value)
		}
	case *ast.BoolLit:
		if e.Value {
			f.body.I32Const(1)
		} else {
			f.body.I32Const(0)
		}
	case *ast.StrLit:
		f.body.GlobalGet(g.stringGlobal(e.Value))
	case *ast.NullLit:
		f.body.RefNull(wasm.HeapNone)
	case *ast.IdentExpr:
		f.identExpr(e)
	case *ast.ThisExpr:
		f.body.LocalGet(f.selfLocal)
	case *ast.MemberExpr:
		f.memberExpr(e)
	case *ast.IndexExpr:
		f.indexExpr(e)
	case *ast.CallExpr:
		f.callExpr(e)
	case *ast.NewExpr:
		f.newExpr(e)
	case *ast.UnaryExpr:
		f.unaryExpr(e)
	case *ast.BinaryExpr:
		f.binaryExpr(e)
	case *ast.AssignExpr:
		f.assignExpr(e)
	case *ast.FuncExpr:
		f.funcExpr(e)
	case *ast.ArrayLit:
		f.arrayLit(e)
	case *ast.TupleLit:
		f.tupleLit(e)
	case *ast.RecordLit:
		f.recordLit(e)
	case *ast.MatchExpr:
		f.matchExpr(e)
	case *ast.IsExpr:
		f.isExpr(e)
	case *ast.CastExpr:
		f.expr(e.Arg)
		f.castValue(g.typeOf(f, e.Arg), g.typeOf(f, e))
	case *ast.TemplateLit:
		f.templateLit(e)
	default:
		fatalf("unsupported expression at %s", e.Span())
	}
}

func (f *fnCtx) identExpr(e *ast.IdentExpr) {
	g := f.g
	b := g.sema.Binding(e)
	if b == nil {
		fatalf("unresolved identifier %q", e.Name)
	}
	switch b.Kind {
	case sema.BindingLocal:
		idx, ok := f.localOf[b]
		if !ok {
			fatalf("no local allocated for %q", e.Name)
		}
		f.body.LocalGet(idx)
		if f.boxed[b] {
			boxIdx := g.boxTypeIdx(g.valType(types.Substitute(g.in, b.Type, f.mapping)))
			f.body.StructGet(boxIdx, 0)
		}
		f.narrowTo(types.Substitute(g.in, b.Type, f.mapping), g.typeOf(f, e))
	case sema.BindingGlobal:
		decl, ok := b.Decl.(*ast.LetDecl)
		if !ok {
			fatalf("global %q has no declaration", e.Name)
		}
		idx, ok := g.globalIdx[decl.ID()]
		if !ok {
			fatalf("no global allocated for %q", e.Name)
		}
		f.body.GlobalGet(idx)
		f.narrowTo(b.Type, g.typeOf(f, e))
	case sema.BindingFunc:
		// A function used as a value closes over nothing.
		fn, ok := b.Type.(*types.FuncType)
		if !ok {
			fatalf("function %q has no signature", e.Name)
		}
		if len(fn.TypeParams) > 0 {
			fatalf("generic function %q cannot be used as a value", e.Name)
		}
		f.funcValue(b, fn)
	case sema.BindingField:
		// Bare field reference in a class body reads through this.
		f.body.LocalGet(f.selfLocal)
		f.fieldReadByName(f.layout, e.Name, g.typeOf(f, e))
	case sema.BindingMethod:
		fatalf("method %q used as a value", e.Name)
	default:
		fatalf("identifier %q cannot be compiled", e.Name)
	}
}

// narrowTo casts a loaded value from its declared type down to the
// flow-narrowed type recorded on the use.
func (f *fnCtx) narrowTo(declared, used types.Type) {
	if declared == nil || used == nil || declared.Key() == used.Key() {
		return
	}
	dv := f.g.valType(declared)
	uv := f.g.valType(used)
	if dv == uv {
		return
	}
	if dv.Kind == wasm.KindRef && uv.Kind == wasm.KindRef && uv.Heap >= 0 && dv.Heap != uv.Heap {
		f.body.RefCastNull(uv.Heap)
	}
}

// funcValue wraps a top-level function in a captureless closure.
func (f *fnCtx) funcValue(b *sema.Binding, fn *types.FuncType) {
	g := f.g
	decl := b.Decl.(*ast.FuncDecl)
	entry := g.unit.ByDecl(decl)
	if entry == nil {
		fatalf("function %q not bundled", decl.Name.Name)
	}
	target, ok := g.fnIdx[entry.Mangled]
	if !ok {
		fatalf("function %q not declared", entry.Mangled)
	}

	sym := "#fnval:" + entry.Mangled
	implSig := g.closureImplSigIdx(fn)
	shape := g.closureShapeIdx(fn, nil)
	idx, ok := g.fnIdx[sym]
	if !ok {
		w := g.newFnCtx(uint32(len(fn.Params))+1, nil)
		for i := range fn.Params {
			w.body.LocalGet(uint32(i) + 1)
		}
		w.body.Call(target)
		idx = g.mod.AddFunc(&wasm.Func{Name: sym, TypeIdx: implSig, Locals: w.locals, Body: w.body})
		g.fnIdx[sym] = idx
		g.mod.DeclareFunc(idx)
	}
	f.body.RefFunc(idx)
	f.body.StructNew(shape)
}

func (f *fnCtx) memberExpr(e *ast.MemberExpr) {
	g := f.g
	prop := g.sema.Binding(e.Prop)
	if prop == nil {
		fatalf("unresolved member %q", e.Prop.Name)
	}

	switch prop.Kind {
	case sema.BindingEnumMember:
		member := prop.Def.(*types.EnumMemberDef)
		f.body.I32Const(member.Value)
		return
	case sema.BindingField:
		if fd, ok := prop.Def.(*types.FieldDef); ok && fd.Static {
			f.body.GlobalGet(g.staticGlobal(f.staticOwner(e), fd))
			return
		}
	}

	objT := g.typeOf(f, e.Object)
	switch objT := objT.(type) {
	case *types.RecordType:
		f.expr(e.Object)
		f.body.StructGet(g.recordTypeIdx(objT), recordFieldIndex(objT, e.Prop.Name))
	case *types.ClassType, *types.ThisType:
		class := classTypeOf(objT)
		f.expr(e.Object)
		switch prop.Kind {
		case sema.BindingField:
			f.fieldReadByName(g.layoutOf(class), e.Prop.Name, g.typeOf(f, e))
		case sema.BindingAccessor:
			f.virtualCallOnStack(g.layoutOf(class), "get_"+e.Prop.Name, nil, g.typeOf(f, e))
		default:
			fatalf("member %q cannot be read", e.Prop.Name)
		}
	case *types.InterfaceType:
		f.expr(e.Object)
		f.ifaceDispatchOnStack(objT, "get_"+e.Prop.Name, nil, g.typeOf(f, e))
	default:
		fatalf("member access on %s", objT)
	}
}

// staticOwner resolves the class definition a static member access goes
// through, following the object identifier's binding (which survives import
// renames).
func (f *fnCtx) staticOwner(e *ast.MemberExpr) *types.ClassDef {
	ident, ok := e.Object.(*ast.IdentExpr)
	if !ok {
		fatalf("static access through a non-type expression")
	}
	b := f.g.sema.Binding(ident)
	if b == nil {
		fatalf("unresolved type name %q", ident.Name)
	}
	def, ok := b.Def.(*types.ClassDef)
	if !ok {
		fatalf("%q is not a class", ident.Name)
	}
	return def
}

func classTypeOf(t types.Type) *types.ClassType {
	switch t := t.(type) {
	case *types.ClassType:
		return t
	case *types.ThisType:
		return t.Class
	default:
		fatalf("expected a class type, got %s", t)
		return nil
	}
}

// fieldReadByName reads a field of the object on the stack. Public fields
// go through their vtable getter slot; private fields are direct loads.
func (f *fnCtx) fieldReadByName(l *layout, name string, resultT types.Type) {
	slot := l.findField(name)
	if slot == nil {
		fatalf("class %s has no field %q", l.class, name)
	}
	if slot.def.Private {
		f.body.StructGet(l.structIdx, slot.structField)
		return
	}
	f.virtualCallOnStack(l, "get_"+name, nil, resultT)
}

// virtualCallOnStack dispatches a vtable slot with the receiver already on
// the stack. Args are compiled inside.
func (f *fnCtx) virtualCallOnStack(l *layout, slotName string, args func(), resultT types.Type) {
	slot := l.findSlot(slotName)
	if slot == nil {
		// Not in the vtable: static dispatch (final or private method).
		sym, ok := f.g.slotImpl(l, slotName)
		if !ok {
			fatalf("no implementation of %q on %s", slotName, l.class)
		}
		idx, ok := f.g.fnIdx[sym]
		if !ok {
			fatalf("function %q not declared", sym)
		}
		if args != nil {
			args()
		}
		f.body.Call(idx)
		return
	}

	obj := f.newLocal(wasm.RefNull(wasm.HeapType(l.structIdx)))
	f.body.LocalSet(obj)
	f.body.LocalGet(obj)
	if args != nil {
		args()
	}
	f.body.LocalGet(obj)
	f.body.StructGet(l.structIdx, 0) // vtable
	f.body.StructGet(l.vtableIdx, slot.index)
	f.body.CallRef(slot.sigIdx)
	_ = resultT
}

// ifaceDispatchOnStack dispatches an interface member over the side table of
// implementing classes: a chain of type tests resolved at compile time.
func (f *fnCtx) ifaceDispatchOnStack(iface *types.InterfaceType, slotName string, args func(), resultT types.Type) {
	g := f.g
	impls := g.ifaceImpls[iface.Def]
	if len(impls) == 0 {
		f.body.Unreachable()
		return
	}

	obj := f.newLocal(wasm.RefNull(wasm.HeapAny))
	f.body.LocalSet(obj)

	var result *wasm.ValType
	if !isVoidish(resultT) {
		v := g.valType(resultT)
		result = &v
	}
	done := f.openBlock(result)
	for _, impl := range impls {
		f.body.LocalGet(obj)
		f.body.RefTestNull(wasm.HeapType(impl.structIdx))
		f.openIf(nil)
		f.body.LocalGet(obj)
		f.body.RefCastNull(wasm.HeapType(impl.structIdx))
		f.virtualCallOnStack(impl, slotName, args, resultT)
		f.body.Br(f.labelTo(done))
		f.close()
	}
	f.body.Unreachable()
	f.close()
}

func (f *fnCtx) indexExpr(e *ast.IndexExpr) {
	g := f.g
	objT := g.typeOf(f, e.Object)
	switch objT := objT.(type) {
	case *types.FixedArrayType:
		f.expr(e.Object)
		f.expr(e.Index)
		f.body.ArrayGet(g.arrayTypeIdx(objT.Elem))
	case *types.ArrayType:
		f.expr(e.Object)
		f.expr(e.Index)
		f.body.ArrayGet(g.arrayTypeIdx(objT.Elem))
	case *types.TupleType:
		f.expr(e.Object)
		lit := e.Index.(*ast.IntLit)
		f.body.StructGet(g.tupleTypeIdx(objT), uint32(lit.Value))
	default:
		fatalf("indexing %s", objT)
	}
}

func (f *fnCtx) newExpr(e *ast.NewExpr) {
	g := f.g
	class, ok := g.typeOf(f, e).(*types.ClassType)
	if !ok {
		fatalf("new of non-class at %s", e.Span())
	}
	l := g.layoutOf(class)
	if !l.hasVtableGlobal {
		fatalf("class %s has no vtable (abstract instantiation?)", class)
	}

	// Allocate with the vtable and zero fields, then run the initializer.
	f.body.GlobalGet(l.vtableGlobal)
	for _, field := range l.fields {
		f.zeroValue(g.valType(field.typ))
	}
	f.body.StructNew(l.structIdx)
	tmp := f.newLocal(wasm.RefNull(wasm.HeapType(l.structIdx)))
	f.body.LocalTee(tmp)

	ctor := g.ctorFor(l)
	if ctor != nil {
		for i, arg := range e.Args {
			f.expr(arg)
			f.coerce(g.typeOf(f, arg), ctor.method.Params[i].Type)
		}
	}
	initIdx, ok := g.fnIdx[l.key()+"::#init"]
	if !ok {
		fatalf("no initializer for %s", class)
	}
	f.body.Call(initIdx)
	f.body.LocalGet(tmp)
}

func (f *fnCtx) zeroValue(v wasm.ValType) {
	switch v.Kind {
	case wasm.KindI32:
		f.body.I32Const(0)
	case wasm.KindI64:
		f.body.I64Const(0)
	case wasm.KindF32:
		f.body.F32Const(0)
	case wasm.KindF64:
		f.body.F64Const(0)
	case wasm.KindRef:
		f.body.RefNull(v.Heap)
	}
}

func (f *fnCtx) unaryExpr(e *ast.UnaryExpr) {
	g := f.g
	switch e.Op {
	case ast.UnaryNot:
		f.expr(e.Arg)
		f.body.Op(wasm.OpI32Eqz)
	case ast.UnaryMinus:
		prim := widenPrim(g.typeOf(f, e))
		switch prim {
		case types.F32:
			f.expr(e.Arg)
			f.body.Op(wasm.OpF32Neg)
		case types.F64:
			f.expr(e.Arg)
			f.body.Op(wasm.OpF64Neg)
		case types.I64:
			f.body.I64Const(0)
			f.expr(e.Arg)
			f.body.Op(wasm.OpI64Sub)
		default:
			f.body.I32Const(0)
			f.expr(e.Arg)
			f.body.Op(wasm.OpI32Sub)
		}
	}
}

var intOps = map[ast.BinaryOp]map[types.Prim]byte{
	ast.Plus:   {types.I32: wasm.OpI32Add, types.U32: wasm.OpI32Add, types.I64: wasm.OpI64Add, types.F32: wasm.OpF32Add, types.F64: wasm.OpF64Add},
	ast.Minus:  {types.I32: wasm.OpI32Sub, types.U32: wasm.OpI32Sub, types.I64: wasm.OpI64Sub, types.F32: wasm.OpF32Sub, types.F64: wasm.OpF64Sub},
	ast.Times:  {types.I32: wasm.OpI32Mul, types.U32: wasm.OpI32Mul, types.I64: wasm.OpI64Mul, types.F32: wasm.OpF32Mul, types.F64: wasm.OpF64Mul},
	ast.Divide: {types.I32: wasm.OpI32DivS, types.U32: wasm.OpI32DivU, types.I64: wasm.OpI64DivS, types.F32: wasm.OpF32Div, types.F64: wasm.OpF64Div},
	ast.Modulo: {types.I32: wasm.OpI32RemS, types.U32: wasm.OpI32RemU, types.I64: wasm.OpI64RemS},

	ast.LessThan:         {types.I32: wasm.OpI32LtS, types.U32: wasm.OpI32LtU, types.I64: wasm.OpI64LtS, types.F32: wasm.OpF32Lt, types.F64: wasm.OpF64Lt},
	ast.LessThanEqual:    {types.I32: wasm.OpI32LeS, types.U32: wasm.OpI32LeU, types.I64: wasm.OpI64LeS, types.F32: wasm.OpF32Le, types.F64: wasm.OpF64Le},
	ast.GreaterThan:      {types.I32: wasm.OpI32GtS, types.U32: wasm.OpI32GtU, types.I64: wasm.OpI64GtS, types.F32: wasm.OpF32Gt, types.F64: wasm.OpF64Gt},
	ast.GreaterThanEqual: {types.I32: wasm.OpI32GeS, types.U32: wasm.OpI32GeU, types.I64: wasm.OpI64GeS, types.F32: wasm.OpF32Ge, types.F64: wasm.OpF64Ge},

	ast.EqualEqual: {types.I32: wasm.OpI32Eq, types.U32: wasm.OpI32Eq, types.Boolean: wasm.OpI32Eq, types.I64: wasm.OpI64Eq, types.F32: wasm.OpF32Eq, types.F64: wasm.OpF64Eq},
	ast.NotEqual:   {types.I32: wasm.OpI32Ne, types.U32: wasm.OpI32Ne, types.Boolean: wasm.OpI32Ne, types.I64: wasm.OpI64Ne, types.F32: wasm.OpF32Ne, types.F64: wasm.OpF64Ne},
}

func (f *fnCtx) binaryExpr(e *ast.BinaryExpr) {
	g := f.g
	switch e.Op {
	case ast.LogicalAnd:
		// Short circuit: the right operand is not evaluated when the left
		// is false.
		f.expr(e.Left)
		i32 := wasm.I32
		f.openIf(&i32)
		f.expr(e.Right)
		f.body.Else()
		f.body.I32Const(0)
		f.close()
		return
	case ast.LogicalOr:
		f.expr(e.Left)
		i32 := wasm.I32
		f.openIf(&i32)
		f.body.I32Const(1)
		f.body.Else()
		f.expr(e.Right)
		f.close()
		return
	}

	lt := g.typeOf(f, e.Left)
	prim := widenPrim(lt)

	if e.Op == ast.Plus && isStringType(lt) {
		f.expr(e.Left)
		f.expr(e.Right)
		f.body.Call(g.helperStringConcat())
		return
	}
	if (e.Op == ast.EqualEqual || e.Op == ast.NotEqual) && prim == "" {
		if isStringType(lt) {
			f.expr(e.Left)
			f.expr(e.Right)
			f.body.Call(g.helperStringEq())
			if e.Op == ast.NotEqual {
				f.body.Op(wasm.OpI32Eqz)
			}
			return
		}
		// Reference identity, including null comparisons.
		f.expr(e.Left)
		f.expr(e.Right)
		f.body.RefEq()
		if e.Op == ast.NotEqual {
			f.body.Op(wasm.OpI32Eqz)
		}
		return
	}

	ops, ok := intOps[e.Op]
	if !ok {
		fatalf("unsupported operator %s", e.Op)
	}
	op, ok := ops[prim]
	if !ok {
		fatalf("operator %s is not defined for %s", e.Op, lt)
	}
	f.expr(e.Left)
	f.expr(e.Right)
	f.body.Op(op)
}

func isStringType(t types.Type) bool {
	switch t := t.(type) {
	case *types.PrimType:
		return t.Prim == types.String
	case *types.LitType:
		_, ok := t.Lit.(*types.StrLit)
		return ok
	default:
		return false
	}
}

func (f *fnCtx) assignExpr(e *ast.AssignExpr) {
	g := f.g
	switch target := e.Target.(type) {
	case *ast.IdentExpr:
		b := g.sema.Binding(target)
		declType := types.Substitute(g.in, b.Type, f.mapping)
		switch b.Kind {
		case sema.BindingLocal:
			idx := f.localOf[b]
			if f.boxed[b] {
				boxIdx := g.boxTypeIdx(g.valType(declType))
				val := f.newLocal(g.valType(declType))
				f.expr(e.Value)
				f.coerce(g.typeOf(f, e.Value), declType)
				f.body.LocalSet(val)
				f.body.LocalGet(idx)
				f.body.LocalGet(val)
				f.body.StructSet(boxIdx, 0)
				f.body.LocalGet(val)
				return
			}
			f.expr(e.Value)
			f.coerce(g.typeOf(f, e.Value), declType)
			f.body.LocalTee(idx)
		case sema.BindingGlobal:
			decl := b.Decl.(*ast.LetDecl)
			idx := g.globalIdx[decl.ID()]
			f.expr(e.Value)
			f.coerce(g.typeOf(f, e.Value), b.Type)
			val := f.newLocal(g.valType(b.Type))
			f.body.LocalTee(val)
			f.body.GlobalSet(idx)
			f.body.LocalGet(val)
		case sema.BindingField:
			// Bare field assignment in a class body: this.field = value.
			fd := b.Def.(*types.FieldDef)
			f.storeThisField(fd.Name, e.Value)
		default:
			fatalf("cannot assign to %q", target.Name)
		}
	case *ast.MemberExpr:
		prop := g.sema.Binding(target.Prop)
		if fd, ok := prop.Def.(*types.FieldDef); ok && fd.Static {
			f.expr(e.Value)
			val := f.newLocal(g.valType(g.typeOf(f, e.Value)))
			f.body.LocalTee(val)
			f.body.GlobalSet(g.staticGlobal(f.staticOwner(target), fd))
			f.body.LocalGet(val)
			return
		}
		objT := g.typeOf(f, target.Object)
		class := classTypeOf(objT)
		l := g.layoutOf(class)
		slot := l.findField(target.Prop.Name)
		name := target.Prop.Name
		isSetter := prop.Kind == sema.BindingAccessor

		valT := g.typeOf(f, e.Value)
		valLocal := f.newLocal(g.valType(valT))
		f.expr(e.Value)
		if slot != nil {
			f.coerce(valT, slot.typ)
		}
		f.body.LocalSet(valLocal)

		f.expr(target.Object)
		switch {
		case isSetter || (slot != nil && !slot.def.Private):
			f.virtualCallOnStack(l, "set_"+name, func() { f.body.LocalGet(valLocal) }, g.in.Void())
		case slot != nil:
			f.body.LocalGet(valLocal)
			f.body.StructSet(l.structIdx, slot.structField)
		default:
			fatalf("no writable member %q on %s", name, class)
		}
		f.body.LocalGet(valLocal)
	case *ast.IndexExpr:
		objT := g.typeOf(f, target.Object)
		var elem types.Type
		switch objT := objT.(type) {
		case *types.FixedArrayType:
			elem = objT.Elem
		case *types.ArrayType:
			elem = objT.Elem
		default:
			fatalf("cannot index-assign %s", objT)
		}
		arrIdx := g.arrayTypeIdx(elem)
		valLocal := f.newLocal(g.valType(elem))
		f.expr(e.Value)
		f.coerce(g.typeOf(f, e.Value), elem)
		f.body.LocalSet(valLocal)
		f.expr(target.Object)
		f.expr(target.Index)
		f.body.LocalGet(valLocal)
		f.body.ArraySet(arrIdx)
		f.body.LocalGet(valLocal)
	default:
		fatalf("invalid assignment target")
	}
}

// storeThisField assigns this.<name> = value, honouring the public-field
// vtable setter rule.
func (f *fnCtx) storeThisField(name string, value ast.Expr) {
	g := f.g
	l := f.layout
	slot := l.findField(name)
	if slot == nil {
		fatalf("class %s has no field %q", l.class, name)
	}
	valLocal := f.newLocal(g.valType(slot.typ))
	f.expr(value)
	f.coerce(g.typeOf(f, value), slot.typ)
	f.body.LocalSet(valLocal)
	f.body.LocalGet(f.selfLocal)
	if slot.def.Private {
		f.body.LocalGet(valLocal)
		f.body.StructSet(l.structIdx, slot.structField)
	} else {
		f.virtualCallOnStack(l, "set_"+name, func() { f.body.LocalGet(valLocal) }, g.in.Void())
	}
	f.body.LocalGet(valLocal)
}

func (f *fnCtx) funcExpr(e *ast.FuncExpr) {
	g := f.g
	fnType, ok := g.typeOf(f, e).(*types.FuncType)
	if !ok {
		fatalf("closure without function type")
	}
	implIdx, captures, shapeIdx := f.compileClosure(e, fnType)
	f.body.RefFunc(implIdx)
	for _, c := range captures {
		if c.binding == nil {
			f.body.LocalGet(f.selfLocal)
			continue
		}
		f.body.LocalGet(f.localOf[c.binding])
	}
	f.body.StructNew(shapeIdx)
}

func (f *fnCtx) arrayLit(e *ast.ArrayLit) {
	g := f.g
	var elem types.Type
	switch t := g.typeOf(f, e).(type) {
	case *types.FixedArrayType:
		elem = t.Elem
	case *types.ArrayType:
		elem = t.Elem
	default:
		fatalf("array literal without array type")
	}
	for _, el := range e.Elems {
		f.expr(el)
		f.coerce(g.typeOf(f, el), elem)
	}
	f.body.ArrayNewFixed(g.arrayTypeIdx(elem), uint32(len(e.Elems)))
}

func (f *fnCtx) tupleLit(e *ast.TupleLit) {
	g := f.g
	t, ok := g.typeOf(f, e).(*types.TupleType)
	if !ok {
		fatalf("tuple literal without tuple type")
	}
	for i, el := range e.Elems {
		f.expr(el)
		f.coerce(g.typeOf(f, el), t.Elems[i])
	}
	f.body.StructNew(g.tupleTypeIdx(t))
}

func (f *fnCtx) recordLit(e *ast.RecordLit) {
	g := f.g
	t, ok := g.typeOf(f, e).(*types.RecordType)
	if !ok {
		fatalf("record literal without record type")
	}
	// Evaluate in source order, push in sorted field order.
	tmp := make(map[string]uint32, len(e.Fields))
	for _, field := range e.Fields {
		ft, _ := t.Fields.Get(field.Name.Name)
		local := f.newLocal(g.valType(ft))
		f.expr(field.Value)
		f.coerce(g.typeOf(f, field.Value), ft)
		f.body.LocalSet(local)
		tmp[field.Name.Name] = local
	}
	t.Fields.Scan(func(name string, _ types.Type) bool {
		f.body.LocalGet(tmp[name])
		return true
	})
	f.body.StructNew(g.recordTypeIdx(t))
}

func (f *fnCtx) matchExpr(e *ast.MatchExpr) {
	g := f.g
	resultT := g.typeOf(f, e)
	var result *wasm.ValType
	if !isVoidish(resultT) {
		v := g.valType(resultT)
		result = &v
	}

	scrutT := g.typeOf(f, e.Scrutinee)
	scrut := f.newLocal(g.valType(scrutT))
	f.expr(e.Scrutinee)
	f.body.LocalSet(scrut)

	done := f.openBlock(result)
	for _, arm := range e.Arms {
		f.matchArm(arm, scrut, scrutT, resultT, done)
	}
	f.body.Unreachable()
	f.close()
}

func (f *fnCtx) matchArm(arm *ast.MatchArm, scrut uint32, scrutT, resultT types.Type, done uint32) {
	g := f.g
	emitBody := func() {
		f.expr(arm.Body)
		if !isVoidish(resultT) {
			f.coerce(g.typeOf(f, arm.Body), resultT)
		} else if !isVoidish(g.typeOf(f, arm.Body)) {
			f.body.Drop()
		}
		f.body.Br(f.labelTo(done))
	}

	switch pat := arm.Pattern.(type) {
	case *ast.WildcardPat:
		emitBody()
	case *ast.BindPat:
		b := g.sema.Binding(pat.Name)
		local := f.newLocal(g.valType(scrutT))
		f.body.LocalGet(scrut)
		f.body.LocalSet(local)
		f.localOf[b] = local
		emitBody()
	case *ast.LitPat:
		f.body.LocalGet(scrut)
		switch lit := pat.Lit.(type) {
		case *ast.IntLit:
			if widenPrim(scrutT) == types.I64 {
				f.body.I64Const(lit.Value)
				f.body.Op(wasm.OpI64Eq)
			} else {
				f.body.I32Const(int32(lit.Value))
				f.body.Op(wasm.OpI32Eq)
			}
		case *ast.BoolLit:
			v := int32(0)
			if lit.Value {
				v = 1
			}
			f.body.I32Const(v)
			f.body.Op(wasm.OpI32Eq)
		case *ast.StrLit:
			f.body.GlobalGet(g.stringGlobal(lit.Value))
			f.body.Call(g.helperStringEq())
		case *ast.NullLit:
			f.body.RefIsNull()
		default:
			fatalf("unsupported literal pattern")
		}
		f.openIf(nil)
		emitBody()
		f.close()
	case *ast.ClassPat:
		classT := g.sema.TypeOf(pat.Class)
		class, ok := types.Substitute(g.in, classT, f.mapping).(*types.ClassType)
		if !ok {
			fatalf("class pattern is not a class")
		}
		l := g.layoutOf(class)
		f.body.LocalGet(scrut)
		f.body.RefTestNull(wasm.HeapType(l.structIdx))
		f.openIf(nil)
		if pat.Binding != nil {
			b := g.sema.Binding(pat.Binding)
			local := f.newLocal(wasm.RefNull(wasm.HeapType(l.structIdx)))
			f.body.LocalGet(scrut)
			f.body.RefCastNull(wasm.HeapType(l.structIdx))
			f.body.LocalSet(local)
			f.localOf[b] = local
		}
		emitBody()
		f.close()
	case *ast.EnumPat:
		b := g.sema.Binding(pat.Enum)
		def := b.Def.(*types.EnumDef)
		member := def.FindMember(pat.Member.Name)
		f.body.LocalGet(scrut)
		f.body.I32Const(member.Value)
		f.body.Op(wasm.OpI32Eq)
		f.openIf(nil)
		emitBody()
		f.close()
	}
}

func (f *fnCtx) isExpr(e *ast.IsExpr) {
	g := f.g
	target := types.Substitute(g.in, g.sema.TypeOf(e.TypeAnn), f.mapping)
	f.expr(e.Arg)
	switch target := target.(type) {
	case *types.NullType:
		f.body.RefIsNull()
	case *types.ClassType:
		f.body.RefTest(wasm.HeapType(g.layoutOf(target).structIdx))
	default:
		v := g.valType(target)
		if v.Kind == wasm.KindRef && v.Heap >= 0 {
			f.body.RefTest(v.Heap)
			return
		}
		fatalf("unsupported is-check against %s", target)
	}
}

// castValue implements `x as T`: numeric conversions convert, reference
// downcasts are checked at runtime and trap when the value is not a T.
func (f *fnCtx) castValue(from, to types.Type) {
	fromPrim := widenPrim(from)
	toPrim := widenPrim(to)
	if fromPrim != "" && toPrim != "" {
		f.numericConvert(from, to)
		return
	}
	f.coerce(from, to)
}

package codegen

import (
	"github.com/loom-lang/loom/internal/ast"
	"github.com/loom-lang/loom/internal/sema"
	"github.com/loom-lang/loom/internal/types"
	"github.com/loom-lang/loom/internal/wasm"
)

// fnCtx is the compilation state of one function body.
type fnCtx struct {
	g    *Generator
	body *wasm.Body

	nParams uint32
	locals  []wasm.ValType
	localOf map[*sema.Binding]uint32
	boxed   map[*sema.Binding]bool

	mapping types.Subst
	self    *types.ClassType
	layout  *layout
	// selfLocal holds the receiver cast to the concrete struct type.
	selfLocal uint32
	hasSelf   bool

	retType types.Type

	ctrl        uint32
	breakFrames []uint32
}

func (g *Generator) newFnCtx(nParams uint32, mapping types.Subst) *fnCtx {
	return &fnCtx{
		g: g, body: wasm.NewBody(),
		nParams: nParams, locals: nil,
		localOf: make(map[*sema.Binding]uint32),
		boxed:   make(map[*sema.Binding]bool),
		mapping: mapping, self: nil, layout: nil,
		selfLocal: 0, hasSelf: false, retType: nil,
		ctrl: 0, breakFrames: nil,
	}
}

func (f *fnCtx) newLocal(v wasm.ValType) uint32 {
	idx := f.nParams + uint32(len(f.locals))
	f.locals = append(f.locals, v)
	return idx
}

// finish installs the compiled body into the reserved function entry.
func (f *fnCtx) finish(g *Generator, sym string) {
	idx, ok := g.fnIdx[sym]
	if !ok {
		fatalf("no reserved function for %s", sym)
	}
	fn := g.mod.Funcs[idx]
	fn.Locals = f.locals
	fn.Body = f.body
}

func (g *Generator) compileJob(job *fnJob) {
	switch job.kind {
	case jobFunc:
		g.compileFuncDecl(job)
	case jobMethod:
		g.compileMethod(job)
	case jobGetter:
		g.compileGetter(job)
	case jobSetter:
		g.compileSetter(job)
	case jobInit:
		g.compileInit(job)
	}
}

func (g *Generator) compileFuncDecl(job *fnJob) {
	b := g.sema.Binding(job.decl.Name)
	fn := b.Type.(*types.FuncType)

	f := g.newFnCtx(uint32(len(fn.Params)), job.mapping)
	f.retType = types.Substitute(g.in, fn.Return, job.mapping)
	for i, p := range job.decl.Params {
		if pb := g.sema.Binding(p.Name); pb != nil {
			f.localOf[pb] = uint32(i)
		}
	}
	f.boxCaptured(job.decl.Body)
	f.stmts(job.decl.Body.Stmts)
	if !isVoidish(f.retType) {
		f.body.Unreachable()
	}
	f.finish(g, job.sym)
}

// compileMethod compiles one method or accessor body for a concrete class
// specialization. The receiver arrives as anyref and is cast once.
func (g *Generator) compileMethod(job *fnJob) {
	m := job.method
	f := g.newFnCtx(uint32(len(m.Params))+1, job.mapping)
	f.layout = job.layout
	f.self = job.layout.class
	f.retType = m.Return

	if !m.Static {
		f.hasSelf = true
		f.selfLocal = f.newLocal(wasm.RefNull(wasm.HeapType(job.layout.structIdx)))
		f.body.LocalGet(0)
		f.body.RefCastNull(wasm.HeapType(job.layout.structIdx))
		f.body.LocalSet(f.selfLocal)
	}

	astParams := astParamsOf(m)
	for i := range m.Params {
		if i < len(astParams) {
			if pb := g.sema.Binding(astParams[i].Name); pb != nil {
				f.localOf[pb] = uint32(i) + 1
			}
		}
	}

	if m.Body != nil {
		f.boxCaptured(m.Body)
		f.stmts(m.Body.Stmts)
	}
	if !isVoidish(m.Return) {
		f.body.Unreachable()
	}
	f.finish(g, job.sym)
}

func astParamsOf(m *types.MethodDef) []*ast.Param {
	switch decl := m.AST.(type) {
	case *ast.MethodDecl:
		return decl.Params
	case *ast.SetterDecl:
		return []*ast.Param{decl.Param}
	case *ast.CtorDecl:
		return decl.Params
	default:
		return nil
	}
}

// compileGetter emits the synthesized vtable accessor for a public field.
func (g *Generator) compileGetter(job *fnJob) {
	f := g.newFnCtx(1, job.mapping)
	f.body.LocalGet(0)
	f.body.RefCastNull(wasm.HeapType(job.layout.structIdx))
	f.body.StructGet(job.layout.structIdx, job.field.structField)
	f.finish(g, job.sym)
}

func (g *Generator) compileSetter(job *fnJob) {
	f := g.newFnCtx(2, job.mapping)
	f.body.LocalGet(0)
	f.body.RefCastNull(wasm.HeapType(job.layout.structIdx))
	f.body.LocalGet(1)
	f.body.StructSet(job.layout.structIdx, job.field.structField)
	f.finish(g, job.sym)
}

// compileInit emits the constructor entry for one specialization: field
// initializers run root-first through the inheritance chain, then the
// nearest constructor body. The vtable is already in place when this runs,
// so a virtual call from a base constructor reaches the derived override
// while the derived fields still hold their zero values.
func (g *Generator) compileInit(job *fnJob) {
	l := job.layout
	ctor := g.ctorFor(l)

	nParams := uint32(1)
	if ctor != nil {
		nParams += uint32(len(ctor.method.Params))
	}
	f := g.newFnCtx(nParams, l.mapping)
	f.layout = l
	f.self = l.class
	f.retType = g.in.Void()
	f.hasSelf = true
	f.selfLocal = f.newLocal(wasm.RefNull(wasm.HeapType(l.structIdx)))
	f.body.LocalGet(0)
	f.body.RefCastNull(wasm.HeapType(l.structIdx))
	f.body.LocalSet(f.selfLocal)

	// Field initializers, root first.
	var chain []*layout
	for cur := l; cur != nil; cur = cur.super {
		chain = append([]*layout{cur}, chain...)
	}
	for _, owner := range chain {
		savedMapping, savedLayout := f.mapping, f.layout
		f.mapping, f.layout = owner.mapping, l
		for _, field := range owner.def.Fields {
			if field.Static || field.Init == nil {
				continue
			}
			slot := l.findField(field.Name)
			if slot == nil {
				continue
			}
			f.body.LocalGet(f.selfLocal)
			f.expr(field.Init)
			f.coerce(g.typeOf(f, field.Init), slot.typ)
			f.body.StructSet(l.structIdx, slot.structField)
		}
		f.mapping, f.layout = savedMapping, savedLayout
	}

	// Constructor body.
	if ctor != nil && ctor.method.Body != nil {
		savedMapping := f.mapping
		f.mapping = ctor.declLayout.mapping
		astParams := astParamsOf(ctor.method)
		for i := range ctor.method.Params {
			if i < len(astParams) {
				if pb := g.sema.Binding(astParams[i].Name); pb != nil {
					f.localOf[pb] = uint32(i) + 1
				}
			}
		}
		f.boxCaptured(ctor.method.Body)
		f.stmts(ctor.method.Body.Stmts)
		f.mapping = savedMapping
	}
	f.finish(g, job.sym)
}

// boxCaptured decides which of the function's mutable locals are captured by
// nested closures and must live in heap cells.
func (f *fnCtx) boxCaptured(body *ast.Block) {
	collector := &captureScan{g: f.g, boxed: f.boxed, declared: make(map[*sema.Binding]bool)}
	ast.WalkStmt(collector, body)
}

// captureScan marks mutable bindings referenced from inside closure
// literals. Bindings declared inside the closure itself are its own.
type captureScan struct {
	ast.DefaultVisitor
	g        *Generator
	boxed    map[*sema.Binding]bool
	declared map[*sema.Binding]bool
}

func (v *captureScan) EnterExpr(e ast.Expr) bool {
	fe, ok := e.(*ast.FuncExpr)
	if !ok {
		return true
	}
	inner := &closureUseScan{g: v.g, declared: make(map[*sema.Binding]bool), used: nil}
	for _, p := range fe.Params {
		if pb := v.g.sema.Binding(p.Name); pb != nil {
			inner.declared[pb] = true
		}
	}
	ast.WalkStmt(inner, fe.Body)
	for _, b := range inner.used {
		if b.Mutable && b.Kind == sema.BindingLocal && !inner.declared[b] {
			v.boxed[b] = true
		}
	}
	// Keep walking: closures nest.
	return true
}

type closureUseScan struct {
	ast.DefaultVisitor
	g        *Generator
	declared map[*sema.Binding]bool
	used     []*sema.Binding
}

func (v *closureUseScan) EnterDecl(d ast.Decl) bool {
	if let, ok := d.(*ast.LetDecl); ok {
		if b := v.g.sema.Binding(let.Name); b != nil {
			v.declared[b] = true
		}
	}
	return true
}

func (v *closureUseScan) EnterExpr(e ast.Expr) bool {
	if ident, ok := e.(*ast.IdentExpr); ok {
		if b := v.g.sema.Binding(ident); b != nil {
			v.used = append(v.used, b)
		}
	}
	return true
}

// compileClosure emits a closure literal's implementation function and
// returns (implIdx, capture list, environment shape type index). Each capture is the outer local (or box)
// to copy into the environment struct.
type capture struct {
	binding *sema.Binding
	val     wasm.ValType
	boxed   bool
}

func (f *fnCtx) compileClosure(e *ast.FuncExpr, fnType *types.FuncType) (uint32, []capture, uint32) {
	g := f.g

	// Find the free variables of the closure body.
	scan := &closureUseScan{g: g, declared: make(map[*sema.Binding]bool), used: nil}
	for _, p := range e.Params {
		if pb := g.sema.Binding(p.Name); pb != nil {
			scan.declared[pb] = true
		}
	}
	ast.WalkStmt(scan, e.Body)

	var captures []capture
	seen := make(map[*sema.Binding]bool)
	for _, b := range scan.used {
		if scan.declared[b] || seen[b] {
			continue
		}
		if _, isLocal := f.localOf[b]; !isLocal {
			continue // globals and functions are not captured
		}
		seen[b] = true
		val := g.valType(types.Substitute(g.in, b.Type, f.mapping))
		boxed := f.boxed[b]
		if boxed {
			val = wasm.RefNull(wasm.HeapType(g.boxTypeIdx(val)))
		}
		captures = append(captures, capture{binding: b, val: val, boxed: boxed})
	}

	// `this` is captured implicitly when the closure body uses it.
	capturesThis := f.hasSelf && usesThis(e.Body)
	if capturesThis {
		captures = append(captures, capture{
			binding: nil,
			val:     wasm.RefNull(wasm.HeapType(f.layout.structIdx)),
			boxed:   false,
		})
	}

	capVals := make([]wasm.ValType, len(captures))
	for i, c := range captures {
		capVals[i] = c.val
	}
	implSig := g.closureImplSigIdx(fnType)
	shapeIdx := g.closureShapeIdx(fnType, capVals)

	// The implementation function: (env, params...) -> ret.
	impl := g.newFnCtx(uint32(len(fnType.Params))+1, f.mapping)
	impl.self = f.self
	impl.layout = f.layout
	impl.retType = fnType.Return

	envLocal := impl.newLocal(wasm.RefNull(wasm.HeapType(shapeIdx)))
	impl.body.LocalGet(0)
	impl.body.RefCastNull(wasm.HeapType(shapeIdx))
	impl.body.LocalSet(envLocal)

	for i, p := range e.Params {
		if pb := g.sema.Binding(p.Name); pb != nil {
			impl.localOf[pb] = uint32(i) + 1
		}
	}
	// Captured values materialise as locals loaded from the environment.
	for i, c := range captures {
		capLocal := impl.newLocal(c.val)
		impl.body.LocalGet(envLocal)
		impl.body.StructGet(shapeIdx, uint32(i)+1)
		impl.body.LocalSet(capLocal)
		if c.binding == nil {
			// The captured receiver.
			impl.hasSelf = true
			impl.selfLocal = capLocal
			continue
		}
		impl.localOf[c.binding] = capLocal
		if c.boxed {
			impl.boxed[c.binding] = true
		}
	}

	impl.boxCaptured(e.Body)
	impl.stmts(e.Body.Stmts)
	if !isVoidish(fnType.Return) {
		impl.body.Unreachable()
	}

	sym := fmt_closureSym(e)
	implIdx := g.mod.AddFunc(&wasm.Func{
		Name: sym, TypeIdx: implSig, Locals: impl.locals, Body: impl.body,
	})
	g.fnIdx[sym] = implIdx
	g.mod.DeclareFunc(implIdx)
	return implIdx, captures, shapeIdx
}

// usesThis reports whether a closure body references the receiver.
func usesThis(body *ast.Block) bool {
	scan := &thisScan{}
	ast.WalkStmt(scan, body)
	return scan.found
}

type thisScan struct {
	ast.DefaultVisitor
	found bool
}

func (v *thisScan) EnterExpr(e ast.Expr) bool {
	if _, ok := e.(*ast.ThisExpr); ok {
		v.found = true
		return false
	}
	return !v.found
}

func fmt_closureSym(e *ast.FuncExpr) string {
	return "#closure:" + e.Span().String() + ":" + intToString(int(e.ID()))
}

func intToString(v int) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var digits []byte
	for v > 0 {
		digits = append([]byte{byte('0' + v%10)}, digits...)
		v /= 10
	}
	if neg {
		return "-" + string(digits)
	}
	return string(digits)
}

// emitAdapter wraps a closure value of a shorter signature so it satisfies a
// wider target function type: the adapter ignores the extra arguments and
// forwards the rest.
func (g *Generator) emitAdapter(from, to *types.FuncType) uint32 {
	sym := "#adapt:" + from.Key() + "=>" + to.Key()
	if idx, ok := g.fnIdx[sym]; ok {
		return idx
	}

	toImpl := g.closureImplSigIdx(to)
	toBase := g.closureBaseIdx(to)
	fromBase := g.closureBaseIdx(from)
	fromImpl := g.closureImplSigIdx(from)

	// Adapter environment: the target base struct extended with the wrapped
	// closure.
	shapeIdx := g.closureShapeIdx(to, []wasm.ValType{wasm.RefNull(wasm.HeapType(fromBase))})

	f := g.newFnCtx(uint32(len(to.Params))+1, nil)
	wrapped := f.newLocal(wasm.RefNull(wasm.HeapType(fromBase)))
	f.body.LocalGet(0)
	f.body.RefCastNull(wasm.HeapType(shapeIdx))
	f.body.StructGet(shapeIdx, 1)
	f.body.LocalSet(wrapped)

	// Forward the wrapped closure and the first len(from.Params) arguments.
	f.body.LocalGet(wrapped)
	for i := range from.Params {
		f.body.LocalGet(uint32(i) + 1)
	}
	f.body.LocalGet(wrapped)
	f.body.StructGet(fromBase, 0)
	f.body.CallRef(fromImpl)
	if isVoidish(from.Return) && !isVoidish(to.Return) {
		f.body.Unreachable()
	}

	idx := g.mod.AddFunc(&wasm.Func{
		Name: sym, TypeIdx: toImpl, Locals: f.locals, Body: f.body,
	})
	g.fnIdx[sym] = idx
	g.mod.DeclareFunc(idx)
	_ = toBase
	return idx
}

// wrapAdapter emits code assuming the source closure reference is on the
// stack, leaving an adapted closure of the target type.
func (f *fnCtx) wrapAdapter(from, to *types.FuncType) {
	g := f.g
	adapterIdx := g.emitAdapter(from, to)
	shapeIdx := g.closureShapeIdx(to, []wasm.ValType{
		wasm.RefNull(wasm.HeapType(g.closureBaseIdx(from))),
	})
	tmp := f.newLocal(wasm.RefNull(wasm.HeapType(g.closureBaseIdx(from))))
	f.body.LocalSet(tmp)
	f.body.RefFunc(adapterIdx)
	f.body.LocalGet(tmp)
	f.body.StructNew(shapeIdx)
}

// coerce bridges two loom types at a value position: an upcast is free; a
// reference narrowing emits a checked cast; a closure arity widening emits
// an adapter.
func (f *fnCtx) coerce(from, to types.Type) {
	if from == nil || to == nil || from.Key() == to.Key() {
		return
	}
	if fromFn, ok := from.(*types.FuncType); ok {
		if toFn, ok := to.(*types.FuncType); ok {
			if len(fromFn.Params) < len(toFn.Params) {
				f.wrapAdapter(fromFn, toFn)
			}
			return
		}
	}
	fromVal := f.g.valType(from)
	toVal := f.g.valType(to)
	if fromVal == toVal {
		return
	}
	if fromVal.Kind == wasm.KindRef && toVal.Kind == wasm.KindRef {
		// Narrow only when the target is a concrete heap type the source
		// does not already satisfy.
		if toVal.Heap >= 0 && fromVal.Heap != toVal.Heap {
			f.body.RefCastNull(toVal.Heap)
		}
		return
	}
	f.numericConvert(from, to)
}

// numericConvert emits the conversion between two numeric primitives.
func (f *fnCtx) numericConvert(from, to types.Type) {
	fw := widenPrim(from)
	tw := widenPrim(to)
	if fw == "" || tw == "" || fw == tw {
		return
	}
	b := f.body
	switch {
	case fw == types.I32 && tw == types.I64, fw == types.U32 && tw == types.I64:
		b.Op(wasm.OpI64ExtendI32S)
	case fw == types.I64 && (tw == types.I32 || tw == types.U32):
		b.Op(wasm.OpI32WrapI64)
	case (fw == types.I32 || fw == types.U32) && tw == types.F64:
		b.Op(wasm.OpF64ConvertI32S)
	case (fw == types.I32 || fw == types.U32) && tw == types.F32:
		b.Op(wasm.OpF32ConvertI32S)
	case fw == types.F64 && (tw == types.I32 || tw == types.U32):
		b.Op(wasm.OpI32TruncF64S)
	case fw == types.F32 && tw == types.F64:
		b.Op(wasm.OpF64PromoteF32)
	case fw == types.F64 && tw == types.F32:
		b.Op(wasm.OpF32DemoteF64)
	}
}

func widenPrim(t types.Type) types.Prim {
	switch t := t.(type) {
	case *types.PrimType:
		return t.Prim
	case *types.LitType:
		return widenPrim(t.Base())
	case *types.DistinctType:
		return widenPrim(t.Inner)
	case *types.EnumType:
		return types.I32
	default:
		return ""
	}
}

package codegen

import (
	"github.com/loom-lang/loom/internal/ast"
	"github.com/loom-lang/loom/internal/types"
	"github.com/loom-lang/loom/internal/wasm"
)

// stringGlobal interns one global per unique string literal, initialised as
// a constant expression.
func (g *Generator) stringGlobal(value string) uint32 {
	if idx, ok := g.stringGlobals.Get(value); ok {
		return idx
	}
	g.ensureCore()
	init := wasm.NewBody()
	bytes := []byte(value)
	for _, b := range bytes {
		init.I32Const(int32(b))
	}
	init.ArrayNewFixed(g.charsType, uint32(len(bytes)))
	init.StructNew(g.stringType)
	idx := g.mod.AddGlobal(&wasm.Global{
		Name:    "str:" + value,
		Type:    wasm.RefNull(wasm.HeapType(g.stringType)),
		Mutable: false,
		Init:    init,
	})
	g.stringGlobals.Set(value, idx)
	return idx
}

// templateGlobal interns the strings-array of a template literal. The global
// has a stable identity per template expression, so a tagged template sees
// the same array reference on every evaluation.
func (g *Generator) templateGlobal(e *ast.TemplateLit) uint32 {
	if idx, ok := g.templateGlobals[e.ID()]; ok {
		return idx
	}
	arrIdx := g.arrayTypeIdx(g.in.String())
	init := wasm.NewBody()
	for _, quasi := range e.Quasis {
		init.GlobalGet(g.stringGlobal(quasi))
	}
	init.ArrayNewFixed(arrIdx, uint32(len(e.Quasis)))
	idx := g.mod.AddGlobal(&wasm.Global{
		Name:    "template",
		Type:    wasm.RefNull(wasm.HeapType(arrIdx)),
		Mutable: false,
		Init:    init,
	})
	g.templateGlobals[e.ID()] = idx
	return idx
}

func (f *fnCtx) templateLit(e *ast.TemplateLit) {
	g := f.g

	if e.Tag != nil {
		fnType, ok := g.typeOf(f, e.Tag).(*types.FuncType)
		if !ok {
			fatalf("template tag is not a function")
		}
		base := g.closureBaseIdx(fnType)
		implSig := g.closureImplSigIdx(fnType)
		tmp := f.newLocal(wasm.RefNull(wasm.HeapType(base)))
		f.expr(e.Tag)
		f.body.LocalSet(tmp)
		f.body.LocalGet(tmp)
		f.body.GlobalGet(g.templateGlobal(e))
		for i, ex := range e.Exprs {
			if i+1 >= len(fnType.Params) {
				break
			}
			f.expr(ex)
			f.coerce(g.typeOf(f, ex), fnType.Params[i+1].Type)
		}
		f.body.LocalGet(tmp)
		f.body.StructGet(base, 0)
		f.body.CallRef(implSig)
		return
	}

	// Untagged: fold quasis and stringified interpolations left to right.
	f.body.GlobalGet(g.stringGlobal(e.Quasis[0]))
	for i, ex := range e.Exprs {
		f.expr(ex)
		f.stringify(g.typeOf(f, ex))
		f.body.Call(g.helperStringConcat())
		f.body.GlobalGet(g.stringGlobal(e.Quasis[i+1]))
		f.body.Call(g.helperStringConcat())
	}
}

// stringify converts the value on the stack to a string using the helper
// for its type. Helpers are linked only if used; dead-code elimination never
// sees them otherwise.
func (f *fnCtx) stringify(t types.Type) {
	g := f.g
	if isStringType(t) {
		return
	}
	switch widenPrim(t) {
	case types.I32, types.U32:
		f.body.Call(g.helperI32ToString())
	case types.I64:
		f.body.Op(wasm.OpI32WrapI64)
		f.body.Call(g.helperI32ToString())
	case types.F32:
		f.body.Op(wasm.OpF64PromoteF32)
		f.body.Op(wasm.OpI32TruncF64S)
		f.body.Call(g.helperI32ToString())
	case types.F64:
		f.body.Op(wasm.OpI32TruncF64S)
		f.body.Call(g.helperI32ToString())
	case types.Boolean:
		i32 := wasm.RefNull(wasm.HeapType(g.stringType))
		f.openIf(&i32)
		f.body.GlobalGet(g.stringGlobal("true"))
		f.body.Else()
		f.body.GlobalGet(g.stringGlobal("false"))
		f.close()
	default:
		fatalf("no stringify helper for %s", t)
	}
}

// helperStringConcat builds (once) the runtime concatenation helper:
// (string, string) -> string.
func (g *Generator) helperStringConcat() uint32 {
	if idx, ok := g.helperIdx["string_concat"]; ok {
		return idx
	}
	g.ensureCore()
	strRef := wasm.RefNull(wasm.HeapType(g.stringType))
	sig := g.funcSigIdx([]wasm.ValType{strRef, strRef}, []wasm.ValType{strRef})

	f := g.newFnCtx(2, nil)
	charsRef := wasm.RefNull(wasm.HeapType(g.charsType))
	a := f.newLocal(charsRef)
	b := f.newLocal(charsRef)
	out := f.newLocal(charsRef)
	i := f.newLocal(wasm.I32)

	// a = p0.chars; b = p1.chars
	f.body.LocalGet(0)
	f.body.StructGet(g.stringType, 0)
	f.body.LocalSet(a)
	f.body.LocalGet(1)
	f.body.StructGet(g.stringType, 0)
	f.body.LocalSet(b)

	// out = new chars[len(a)+len(b)]
	f.body.I32Const(0)
	f.body.LocalGet(a)
	f.body.ArrayLen()
	f.body.LocalGet(b)
	f.body.ArrayLen()
	f.body.Op(wasm.OpI32Add)
	f.body.ArrayNew(g.charsType)
	f.body.LocalSet(out)

	// copy a
	f.body.I32Const(0)
	f.body.LocalSet(i)
	f.openBlock(nil)
	f.openLoop()
	f.body.LocalGet(i)
	f.body.LocalGet(a)
	f.body.ArrayLen()
	f.body.Op(wasm.OpI32GeS)
	f.body.BrIf(1)
	f.body.LocalGet(out)
	f.body.LocalGet(i)
	f.body.LocalGet(a)
	f.body.LocalGet(i)
	f.body.ArrayGetU(g.charsType)
	f.body.ArraySet(g.charsType)
	f.body.LocalGet(i)
	f.body.I32Const(1)
	f.body.Op(wasm.OpI32Add)
	f.body.LocalSet(i)
	f.body.Br(0)
	f.close()
	f.close()

	// copy b
	f.body.I32Const(0)
	f.body.LocalSet(i)
	f.openBlock(nil)
	f.openLoop()
	f.body.LocalGet(i)
	f.body.LocalGet(b)
	f.body.ArrayLen()
	f.body.Op(wasm.OpI32GeS)
	f.body.BrIf(1)
	f.body.LocalGet(out)
	f.body.LocalGet(i)
	f.body.LocalGet(a)
	f.body.ArrayLen()
	f.body.Op(wasm.OpI32Add)
	f.body.LocalGet(b)
	f.body.LocalGet(i)
	f.body.ArrayGetU(g.charsType)
	f.body.ArraySet(g.charsType)
	f.body.LocalGet(i)
	f.body.I32Const(1)
	f.body.Op(wasm.OpI32Add)
	f.body.LocalSet(i)
	f.body.Br(0)
	f.close()
	f.close()

	f.body.LocalGet(out)
	f.body.RefAsNonNull()
	f.body.StructNew(g.stringType)

	idx := g.mod.AddFunc(&wasm.Func{Name: "#string_concat", TypeIdx: sig, Locals: f.locals, Body: f.body})
	g.helperIdx["string_concat"] = idx
	return idx
}

// helperStringEq builds (once) byte-wise string equality:
// (string, string) -> i32.
func (g *Generator) helperStringEq() uint32 {
	if idx, ok := g.helperIdx["string_eq"]; ok {
		return idx
	}
	g.ensureCore()
	strRef := wasm.RefNull(wasm.HeapType(g.stringType))
	sig := g.funcSigIdx([]wasm.ValType{strRef, strRef}, []wasm.ValType{wasm.I32})

	f := g.newFnCtx(2, nil)
	charsRef := wasm.RefNull(wasm.HeapType(g.charsType))
	a := f.newLocal(charsRef)
	b := f.newLocal(charsRef)
	i := f.newLocal(wasm.I32)

	f.body.LocalGet(0)
	f.body.StructGet(g.stringType, 0)
	f.body.LocalSet(a)
	f.body.LocalGet(1)
	f.body.StructGet(g.stringType, 0)
	f.body.LocalSet(b)

	// length mismatch -> 0
	f.body.LocalGet(a)
	f.body.ArrayLen()
	f.body.LocalGet(b)
	f.body.ArrayLen()
	f.body.Op(wasm.OpI32Ne)
	f.openIf(nil)
	f.body.I32Const(0)
	f.body.Return()
	f.close()

	f.body.I32Const(0)
	f.body.LocalSet(i)
	f.openBlock(nil)
	f.openLoop()
	f.body.LocalGet(i)
	f.body.LocalGet(a)
	f.body.ArrayLen()
	f.body.Op(wasm.OpI32GeS)
	f.body.BrIf(1)
	f.body.LocalGet(a)
	f.body.LocalGet(i)
	f.body.ArrayGetU(g.charsType)
	f.body.LocalGet(b)
	f.body.LocalGet(i)
	f.body.ArrayGetU(g.charsType)
	f.body.Op(wasm.OpI32Ne)
	f.openIf(nil)
	f.body.I32Const(0)
	f.body.Return()
	f.close()
	f.body.LocalGet(i)
	f.body.I32Const(1)
	f.body.Op(wasm.OpI32Add)
	f.body.LocalSet(i)
	f.body.Br(0)
	f.close()
	f.close()

	f.body.I32Const(1)

	idx := g.mod.AddFunc(&wasm.Func{Name: "#string_eq", TypeIdx: sig, Locals: f.locals, Body: f.body})
	g.helperIdx["string_eq"] = idx
	return idx
}

// helperI32ToString builds (once) the decimal formatter: (i32) -> string.
func (g *Generator) helperI32ToString() uint32 {
	if idx, ok := g.helperIdx["i32_to_string"]; ok {
		return idx
	}
	g.ensureCore()
	strRef := wasm.RefNull(wasm.HeapType(g.stringType))
	sig := g.funcSigIdx([]wasm.ValType{wasm.I32}, []wasm.ValType{strRef})

	f := g.newFnCtx(1, nil)
	charsRef := wasm.RefNull(wasm.HeapType(g.charsType))
	n := f.newLocal(wasm.I32)
	digits := f.newLocal(wasm.I32)
	tmp := f.newLocal(wasm.I32)
	neg := f.newLocal(wasm.I32)
	buf := f.newLocal(charsRef)
	pos := f.newLocal(wasm.I32)

	// neg = x < 0; n = abs(x)
	f.body.LocalGet(0)
	f.body.I32Const(0)
	f.body.Op(wasm.OpI32LtS)
	f.body.LocalSet(neg)
	f.body.LocalGet(neg)
	f.openIf(nil)
	f.body.I32Const(0)
	f.body.LocalGet(0)
	f.body.Op(wasm.OpI32Sub)
	f.body.LocalSet(n)
	f.body.Else()
	f.body.LocalGet(0)
	f.body.LocalSet(n)
	f.close()

	// digits = count(n)
	f.body.I32Const(1)
	f.body.LocalSet(digits)
	f.body.LocalGet(n)
	f.body.LocalSet(tmp)
	f.openBlock(nil)
	f.openLoop()
	f.body.LocalGet(tmp)
	f.body.I32Const(10)
	f.body.Op(wasm.OpI32LtS)
	f.body.BrIf(1)
	f.body.LocalGet(tmp)
	f.body.I32Const(10)
	f.body.Op(wasm.OpI32DivS)
	f.body.LocalSet(tmp)
	f.body.LocalGet(digits)
	f.body.I32Const(1)
	f.body.Op(wasm.OpI32Add)
	f.body.LocalSet(digits)
	f.body.Br(0)
	f.close()
	f.close()

	// buf = new chars[digits + neg]
	f.body.I32Const(int32('0'))
	f.body.LocalGet(digits)
	f.body.LocalGet(neg)
	f.body.Op(wasm.OpI32Add)
	f.body.ArrayNew(g.charsType)
	f.body.LocalSet(buf)

	// minus sign
	f.body.LocalGet(neg)
	f.openIf(nil)
	f.body.LocalGet(buf)
	f.body.I32Const(0)
	f.body.I32Const(int32('-'))
	f.body.ArraySet(g.charsType)
	f.close()

	// fill digits from the back
	f.body.LocalGet(digits)
	f.body.LocalGet(neg)
	f.body.Op(wasm.OpI32Add)
	f.body.I32Const(1)
	f.body.Op(wasm.OpI32Sub)
	f.body.LocalSet(pos)
	f.openBlock(nil)
	f.openLoop()
	f.body.LocalGet(buf)
	f.body.LocalGet(pos)
	f.body.LocalGet(n)
	f.body.I32Const(10)
	f.body.Op(wasm.OpI32RemS)
	f.body.I32Const(int32('0'))
	f.body.Op(wasm.OpI32Add)
	f.body.ArraySet(g.charsType)
	f.body.LocalGet(n)
	f.body.I32Const(10)
	f.body.Op(wasm.OpI32DivS)
	f.body.LocalSet(n)
	f.body.LocalGet(n)
	f.body.Op(wasm.OpI32Eqz)
	f.body.BrIf(1)
	f.body.LocalGet(pos)
	f.body.I32Const(1)
	f.body.Op(wasm.OpI32Sub)
	f.body.LocalSet(pos)
	f.body.Br(0)
	f.close()
	f.close()

	f.body.LocalGet(buf)
	f.body.RefAsNonNull()
	f.body.StructNew(g.stringType)

	idx := g.mod.AddFunc(&wasm.Func{Name: "#i32_to_string", TypeIdx: sig, Locals: f.locals, Body: f.body})
	g.helperIdx["i32_to_string"] = idx
	return idx
}

package codegen

import (
	"github.com/loom-lang/loom/internal/ast"
	"github.com/loom-lang/loom/internal/types"
	"github.com/loom-lang/loom/internal/wasm"
)

// Control-frame bookkeeping: every open block/loop/if/try_table increments
// ctrl; branch labels are computed relative to it.

func (f *fnCtx) openBlock(result *wasm.ValType) uint32 {
	frame := f.ctrl
	f.body.Block(result)
	f.ctrl++
	return frame
}

func (f *fnCtx) openLoop() {
	f.body.Loop(nil)
	f.ctrl++
}

func (f *fnCtx) openIf(result *wasm.ValType) {
	f.body.If(result)
	f.ctrl++
}

func (f *fnCtx) openTryTable(result *wasm.ValType, catches []wasm.Catch) {
	f.body.TryTable(result, catches)
	f.ctrl++
}

func (f *fnCtx) close() {
	f.body.End()
	f.ctrl--
}

// labelTo converts an absolute frame index into a relative branch label.
func (f *fnCtx) labelTo(frame uint32) uint32 {
	return f.ctrl - 1 - frame
}

func (f *fnCtx) stmts(stmts []ast.Stmt) {
	for _, s := range stmts {
		f.stmt(s)
	}
}

func (f *fnCtx) stmt(s ast.Stmt) {
	g := f.g
	switch s := s.(type) {
	case *ast.DeclStmt:
		let, ok := s.Decl.(*ast.LetDecl)
		if !ok {
			fatalf("unexpected nested declaration %q", s.Decl.DeclName())
		}
		f.letDecl(let)
	case *ast.ExprStmt:
		f.expr(s.Expr)
		if !isVoidish(g.typeOf(f, s.Expr)) {
			f.body.Drop()
		}
	case *ast.ReturnStmt:
		if s.Value != nil {
			f.expr(s.Value)
			f.coerce(g.typeOf(f, s.Value), f.retType)
		}
		f.body.Return()
	case *ast.IfStmt:
		f.expr(s.Cond)
		f.openIf(nil)
		f.stmts(s.Then.Stmts)
		if s.Else != nil {
			f.body.Else()
			if block, ok := s.Else.(*ast.Block); ok {
				f.stmts(block.Stmts)
			} else {
				f.stmt(s.Else)
			}
		}
		f.close()
	case *ast.WhileStmt:
		exit := f.openBlock(nil)
		f.openLoop()
		f.expr(s.Cond)
		f.body.Op(wasm.OpI32Eqz)
		f.body.BrIf(f.labelTo(exit))
		f.breakFrames = append(f.breakFrames, exit)
		f.stmts(s.Body.Stmts)
		f.breakFrames = f.breakFrames[:len(f.breakFrames)-1]
		f.body.Br(0)
		f.close()
		f.close()
	case *ast.Block:
		f.stmts(s.Stmts)
	case *ast.BreakStmt:
		if len(f.breakFrames) == 0 {
			fatalf("break outside of a loop at %s", s.Span())
		}
		f.body.Br(f.labelTo(f.breakFrames[len(f.breakFrames)-1]))
	case *ast.ThrowStmt:
		f.expr(s.Value)
		f.body.Throw(g.exnTag)
	case *ast.TryStmt:
		f.tryStmt(s)
	case *ast.ImportStmt:
		// no code
	default:
		fatalf("unsupported statement at %s", s.Span())
	}
}

// letDecl allocates a local (or heap cell when captured by a closure) and
// runs the initializer.
func (f *fnCtx) letDecl(d *ast.LetDecl) {
	g := f.g
	b := g.sema.Binding(d.Name)
	if b == nil {
		fatalf("unresolved binding for %q", d.Name.Name)
	}
	declType := types.Substitute(g.in, b.Type, f.mapping)
	val := g.valType(declType)
	if f.boxed[b] {
		boxIdx := g.boxTypeIdx(val)
		local := f.newLocal(wasm.RefNull(wasm.HeapType(boxIdx)))
		f.expr(d.Init)
		f.coerce(g.typeOf(f, d.Init), declType)
		f.body.StructNew(boxIdx)
		f.body.LocalSet(local)
		f.localOf[b] = local
		return
	}
	local := f.newLocal(val)
	f.expr(d.Init)
	f.coerce(g.typeOf(f, d.Init), declType)
	f.body.LocalSet(local)
	f.localOf[b] = local
}

// tryStmt lowers try/catch/finally. The protected region runs inside a
// try_table; the catch clause receives the thrown reference and casts it to
// the declared catch type. A finally body runs on both the normal and the
// exceptional paths; the exceptional path replays the unwind with throw_ref.
func (f *fnCtx) tryStmt(s *ast.TryStmt) {
	g := f.g

	if s.Catch != nil {
		done := f.openBlock(nil)
		payload := wasm.RefNull(wasm.HeapAny)
		handler := f.openBlock(&payload)
		f.openTryTable(nil, []wasm.Catch{{Ref: false, All: false, Tag: g.exnTag, Label: 1}})
		f.stmts(s.Body.Stmts)
		f.close()
		f.body.Br(f.labelTo(done))
		f.close()
		_ = handler

		if s.CatchName != nil {
			b := g.sema.Binding(s.CatchName)
			catchType := types.Substitute(g.in, b.Type, f.mapping)
			val := g.valType(catchType)
			local := f.newLocal(val)
			if val.Kind == wasm.KindRef && val.Heap >= 0 {
				f.body.RefCastNull(val.Heap)
			}
			f.body.LocalSet(local)
			f.localOf[b] = local
		} else {
			f.body.Drop()
		}
		f.stmts(s.Catch.Stmts)
		f.close()

		if s.Finally != nil {
			f.stmts(s.Finally.Stmts)
		}
		return
	}

	if s.Finally != nil {
		done := f.openBlock(nil)
		payload := wasm.RefNull(wasm.HeapExn)
		f.openBlock(&payload)
		f.openTryTable(nil, []wasm.Catch{{Ref: true, All: true, Tag: 0, Label: 1}})
		f.stmts(s.Body.Stmts)
		f.close()
		f.body.Br(f.labelTo(done))
		f.close()
		exnLocal := f.newLocal(payload)
		f.body.LocalSet(exnLocal)
		f.stmts(s.Finally.Stmts)
		f.body.LocalGet(exnLocal)
		f.body.ThrowRef()
		f.close()
		f.stmts(s.Finally.Stmts)
		return
	}

	f.stmts(s.Body.Stmts)
}

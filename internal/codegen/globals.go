package codegen

import (
	"github.com/moznion/go-optional"

	"github.com/loom-lang/loom/internal/ast"
	"github.com/loom-lang/loom/internal/types"
	"github.com/loom-lang/loom/internal/wasm"
)

// emitVtableGlobals creates the constant vtable global of every concrete,
// instantiable class. Inherited slots copy the parent's resolved
// implementation; overriding methods shadow it.
func (g *Generator) emitVtableGlobals() {
	for _, l := range g.sortedLayouts() {
		if l.def.IsAbstract {
			continue
		}
		init := wasm.NewBody()
		complete := true
		for _, slot := range l.slots {
			sym, ok := g.slotImpl(l, slot.name)
			if !ok {
				complete = false
				break
			}
			idx, ok := g.fnIdx[sym]
			if !ok {
				complete = false
				break
			}
			init.RefFunc(idx)
			g.mod.DeclareFunc(idx)
		}
		if !complete {
			continue
		}
		init.StructNew(l.vtableIdx)
		l.vtableGlobal = g.mod.AddGlobal(&wasm.Global{
			Name:    l.class.String() + ".vtable",
			Type:    wasm.RefNull(wasm.HeapType(l.vtableIdx)),
			Mutable: false,
			Init:    init,
		})
		l.hasVtableGlobal = true
	}
}

// declareGlobals creates module globals for top-level bindings and static
// fields. They start zeroed; the start function assigns them in
// library-dependency order.
func (g *Generator) declareGlobals() {
	for _, entry := range g.unit.Decls {
		switch d := entry.Decl.(type) {
		case *ast.LetDecl:
			if !g.declReachable(d) {
				continue
			}
			b := g.sema.Binding(d.Name)
			if b == nil {
				continue
			}
			val := g.valType(b.Type)
			init := wasm.NewBody()
			zeroInto(init, val)
			idx := g.mod.AddGlobal(&wasm.Global{
				Name: entry.Mangled, Type: val, Mutable: true, Init: init,
			})
			g.globalIdx[d.ID()] = idx
		case *ast.ClassDecl:
			if !g.declReachable(d) {
				continue
			}
			b := g.sema.Binding(d.Name)
			if b == nil {
				continue
			}
			def, ok := b.Def.(*types.ClassDef)
			if !ok {
				continue
			}
			for _, field := range def.Fields {
				if !field.Static {
					continue
				}
				val := g.valType(field.Type)
				init := wasm.NewBody()
				zeroInto(init, val)
				idx := g.mod.AddGlobal(&wasm.Global{
					Name: entry.Mangled + "." + field.Name, Type: val, Mutable: true, Init: init,
				})
				g.staticGlobals[def.Library+"#"+def.Name+"::"+field.Name] = idx
			}
		}
	}
}

func zeroInto(b *wasm.Body, v wasm.ValType) {
	switch v.Kind {
	case wasm.KindI32:
		b.I32Const(0)
	case wasm.KindI64:
		b.I64Const(0)
	case wasm.KindF32:
		b.F32Const(0)
	case wasm.KindF64:
		b.F64Const(0)
	case wasm.KindRef:
		if v.Heap >= 0 || v.Heap == wasm.HeapNone || v.Heap == wasm.HeapAny ||
			v.Heap == wasm.HeapEq || v.Heap == wasm.HeapStruct || v.Heap == wasm.HeapArray {
			b.RefNull(v.Heap)
		} else {
			b.RefNull(wasm.HeapNone)
		}
	}
}

// staticGlobal resolves the global of a static field by its declaring
// class definition.
func (g *Generator) staticGlobal(def *types.ClassDef, fd *types.FieldDef) uint32 {
	key := def.Library + "#" + def.Name + "::" + fd.Name
	idx, ok := g.staticGlobals[key]
	if !ok {
		fatalf("no global for static field %s", key)
	}
	return idx
}

// emitStart assembles the start function: static fields and top-level
// bindings initialise strictly in library-dependency order, interleaved
// with top-level expression statements in each library's source order.
func (g *Generator) emitStart() {
	sig := g.funcSigIdx(nil, nil)
	f := g.newFnCtx(0, nil)
	f.retType = g.in.Void()

	for _, lib := range g.unit.Graph.Sorted {
		for _, stmt := range lib.Stmts {
			switch stmt := stmt.(type) {
			case *ast.DeclStmt:
				switch d := stmt.Decl.(type) {
				case *ast.LetDecl:
					idx, ok := g.globalIdx[d.ID()]
					if !ok {
						continue
					}
					b := g.sema.Binding(d.Name)
					f.expr(d.Init)
					f.coerce(g.typeOf(f, d.Init), b.Type)
					f.body.GlobalSet(idx)
				case *ast.ClassDecl:
					g.emitStaticInits(f, d)
				}
			case *ast.ExprStmt:
				f.expr(stmt.Expr)
				if !isVoidish(g.typeOf(f, stmt.Expr)) {
					f.body.Drop()
				}
			case *ast.ImportStmt:
				// nothing to run
			default:
				f.stmt(stmt)
			}
		}
	}

	idx := g.mod.AddFunc(&wasm.Func{
		Name: "#start", TypeIdx: sig, Locals: f.locals, Body: f.body,
	})
	g.fnIdx["#start"] = idx
	g.mod.Start = optional.Some(idx)
}

func (g *Generator) emitStaticInits(f *fnCtx, d *ast.ClassDecl) {
	b := g.sema.Binding(d.Name)
	if b == nil {
		return
	}
	def, ok := b.Def.(*types.ClassDef)
	if !ok {
		return
	}
	for _, field := range def.Fields {
		if !field.Static || field.Init == nil {
			continue
		}
		idx, ok := g.staticGlobals[def.Library+"#"+def.Name+"::"+field.Name]
		if !ok {
			continue
		}
		f.expr(field.Init)
		f.coerce(g.typeOf(f, field.Init), field.Type)
		f.body.GlobalSet(idx)
	}
}

// emitExports exposes every exported declaration of the entry library under
// its original name.
func (g *Generator) emitExports() {
	for _, entry := range g.unit.Decls {
		if !entry.Exported {
			continue
		}
		switch d := entry.Decl.(type) {
		case *ast.FuncDecl:
			if idx, ok := g.fnIdx[entry.Mangled]; ok {
				g.mod.Export(d.Name.Name, wasm.ExportFunc, idx)
			}
		case *ast.LetDecl:
			if idx, ok := g.globalIdx[d.ID()]; ok {
				g.mod.Export(d.Name.Name, wasm.ExportGlobal, idx)
			}
		case *ast.ClassDecl:
			// Classes export their constructor entry when a concrete
			// argument-free specialization exists.
			b := g.sema.Binding(d.Name)
			if b == nil {
				continue
			}
			def, ok := b.Def.(*types.ClassDef)
			if !ok || len(def.TypeParams) > 0 {
				continue
			}
			key := def.Library + "#" + def.Name + "::#init"
			if idx, ok := g.fnIdx[key]; ok {
				g.mod.Export(d.Name.Name+".new", wasm.ExportFunc, idx)
			}
		}
	}
}

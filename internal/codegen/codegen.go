// Package codegen lowers the typed, bundled tree into a WebAssembly module
// using the GC, exception handling, and typed function reference proposals.
//
// The generator is read-only over the semantic context: the checker has
// already populated every binding, inferred type, and class specialization
// it consumes. Invariant violations here (a missing specialization, an
// unmapped type) are compiler bugs and abort the whole compile.
package codegen

import (
	"fmt"

	"github.com/moznion/go-optional"
	"github.com/tidwall/btree"

	"github.com/loom-lang/loom/internal/ast"
	"github.com/loom-lang/loom/internal/bundler"
	"github.com/loom-lang/loom/internal/sema"
	"github.com/loom-lang/loom/internal/set"
	"github.com/loom-lang/loom/internal/types"
	"github.com/loom-lang/loom/internal/wasm"
)

type Target string

const (
	TargetBrowser Target = "browser"
	TargetWASI    Target = "wasi"
)

type Options struct {
	Target Target
	DCE    bool
	Debug  bool
}

type Generator struct {
	sema *sema.Context
	in   *types.Interner
	unit *bundler.Unit
	opts Options
	mod  *wasm.Module

	// Lazily created core types.
	charsType       uint32
	stringType      uint32
	stringArrayType uint32
	haveCore        bool

	typeIdx   btree.Map[string, uint32] // loom type key -> wasm type index
	valTypes  map[string]wasm.ValType
	layouts   map[string]*layout
	boxTypes  map[string]uint32

	// Function indices by symbol key ("<classKey>::<method>" or a bundled
	// declaration's mangled name).
	fnIdx map[string]uint32

	stringGlobals   btree.Map[string, uint32]
	templateGlobals map[ast.NodeID]uint32
	globalIdx       map[ast.NodeID]uint32 // LetDecl / static FieldDecl -> global
	helperIdx       map[string]uint32

	exnTag uint32

	jobs          []*fnJob
	ifaceImpls    map[*types.InterfaceDef][]*layout
	staticGlobals map[string]uint32

	reachable set.Set[ast.NodeID] // nil when DCE is off
}

type fatalError struct {
	msg string
}

func (e *fatalError) Error() string { return e.msg }

// fatalf aborts the compile: the generator asserts invariants it cannot
// locally recover from.
func fatalf(format string, args ...any) {
	panic(&fatalError{msg: fmt.Sprintf(format, args...)})
}

func New(semaCtx *sema.Context, unit *bundler.Unit, opts Options) *Generator {
	return &Generator{
		sema: semaCtx,
		in:   semaCtx.Interner,
		unit: unit,
		opts: opts,
		mod: &wasm.Module{
			Types: nil, Funcs: nil, Globals: nil, Tags: nil,
			Exports: nil, Start: optional.None[uint32](), DeclaredFuncs: nil,
		},
		charsType: 0, stringType: 0, stringArrayType: 0, haveCore: false,
		typeIdx:   btree.Map[string, uint32]{},
		valTypes:  make(map[string]wasm.ValType),
		layouts:   make(map[string]*layout),
		boxTypes:  make(map[string]uint32),
		fnIdx:     make(map[string]uint32),
		stringGlobals:   btree.Map[string, uint32]{},
		templateGlobals: make(map[ast.NodeID]uint32),
		globalIdx:       make(map[ast.NodeID]uint32),
		helperIdx:       make(map[string]uint32),
		exnTag:          0,
		jobs:            nil,
		ifaceImpls:      make(map[*types.InterfaceDef][]*layout),
		staticGlobals:   make(map[string]uint32),
		reachable:       nil,
	}
}

// Generate produces the binary module. Codegen failures are fatal for the
// whole compile and surface as an error.
func (g *Generator) Generate() (out []byte, dump string, err error) {
	defer func() {
		if r := recover(); r != nil {
			if fe, ok := r.(*fatalError); ok {
				err = fe
				return
			}
			panic(r)
		}
	}()

	if g.opts.DCE {
		g.reachable = g.computeReachable()
	}

	g.ensureCore()

	// One exception tag per module, exported for host error translation.
	exnParam := wasm.RefNull(wasm.HeapAny)
	tagType := g.mod.AddType(&wasm.SubType{
		Final: true, SuperIdxs: nil,
		Composite: &wasm.FuncType{Params: []wasm.ValType{exnParam}, Results: nil},
		Name:      "exn",
	})
	g.exnTag = g.mod.AddTag(&wasm.Tag{TypeIdx: tagType})
	g.mod.Export("exception", wasm.ExportTag, g.exnTag)

	// Class layouts for every concrete specialization.
	g.sema.Specializations(func(key string, class *types.ClassType) bool {
		if isGenericKey(key) {
			return true
		}
		if g.reachable != nil && class.Def.AST != nil && !g.reachable.Contains(class.Def.AST.ID()) {
			return true
		}
		g.layoutOf(class)
		return true
	})

	// Pre-assign indices for every compiled function so vtables and
	// cross-references resolve before bodies exist.
	g.declareFunctions()

	// Vtable globals, static field globals, top-level binding globals.
	g.emitVtableGlobals()
	g.declareGlobals()

	// Bodies.
	g.compileFunctions()

	// The start function initialises statics and top-level bindings in
	// library-dependency order and runs top-level expressions.
	g.emitStart()

	g.emitExports()

	return g.mod.Encode(g.opts.Debug), g.mod.Dump(), nil
}

// isGenericKey reports whether a specialization key still contains free type
// parameters (the generic self registered while checking the declaration).
func isGenericKey(key string) bool {
	return containsSubstring(key, "param(")
}

func containsSubstring(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

// typeOf returns the recorded inferred type for a node, substituted through
// the active monomorphization mapping.
func (g *Generator) typeOf(f *fnCtx, node ast.Node) types.Type {
	t := g.sema.TypeOf(node)
	if t == nil {
		fatalf("no inferred type recorded for node at %s", node.Span())
	}
	if f != nil && len(f.mapping) > 0 {
		t = types.Substitute(g.in, t, f.mapping)
	}
	if this, ok := t.(*types.ThisType); ok {
		if f != nil && f.self != nil {
			return f.self
		}
		return this.Class
	}
	return t
}

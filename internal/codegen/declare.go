package codegen

import (
	"sort"

	"github.com/loom-lang/loom/internal/ast"
	"github.com/loom-lang/loom/internal/sema"
	"github.com/loom-lang/loom/internal/types"
	"github.com/loom-lang/loom/internal/wasm"
)

type jobKind int

const (
	jobFunc jobKind = iota
	jobMethod
	jobGetter
	jobSetter
	jobInit
)

// fnJob is one function to compile: a top-level function or monomorphized
// instance, a (possibly monomorphized) method, a synthesized field accessor,
// or a class's constructor entry.
type fnJob struct {
	sym     string
	kind    jobKind
	decl    *ast.FuncDecl
	layout  *layout
	method  *types.MethodDef
	field   *fieldSlot
	mapping types.Subst
}

// substKey renders a monomorphization mapping deterministically.
func substKey(params []*types.TypeParamDef, mapping types.Subst) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		if t, ok := mapping[p.Ref().Key()]; ok {
			parts = append(parts, t.Key())
		}
	}
	sort.Strings(parts)
	key := "<"
	for i, p := range parts {
		if i > 0 {
			key += ","
		}
		key += p
	}
	return key + ">"
}

// funcSigIdx interns a plain wasm function type.
func (g *Generator) funcSigIdx(params []wasm.ValType, results []wasm.ValType) uint32 {
	key := "sig:"
	for _, p := range params {
		key += valKeyOf(p) + ","
	}
	key += "->"
	for _, r := range results {
		key += valKeyOf(r) + ","
	}
	if idx, ok := g.typeIdx.Get(key); ok {
		return idx
	}
	idx := g.mod.AddType(&wasm.SubType{
		Final: true, SuperIdxs: nil,
		Composite: &wasm.FuncType{Params: params, Results: results},
		Name:      "",
	})
	g.typeIdx.Set(key, idx)
	return idx
}

// funcTypeFor builds the wasm signature of a declared function: parameters
// and result, no receiver.
func (g *Generator) funcTypeFor(fn *types.FuncType, mapping types.Subst) uint32 {
	params := make([]wasm.ValType, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = g.valType(types.Substitute(g.in, p.Type, mapping))
	}
	var results []wasm.ValType
	ret := types.Substitute(g.in, fn.Return, mapping)
	if !isVoidish(ret) {
		results = []wasm.ValType{g.valType(ret)}
	}
	return g.funcSigIdx(params, results)
}

func isVoidish(t types.Type) bool {
	switch t.(type) {
	case *types.VoidType, *types.NeverType:
		return true
	default:
		return false
	}
}

// methodWasmType is the signature of a compiled method: anyref receiver plus
// the declared parameters.
func (g *Generator) methodWasmType(m *types.MethodDef, mapping types.Subst) uint32 {
	params := []wasm.ValType{wasm.RefNull(wasm.HeapAny)}
	for _, p := range m.Params {
		params = append(params, g.valType(types.Substitute(g.in, p.Type, mapping)))
	}
	var results []wasm.ValType
	ret := types.Substitute(g.in, m.Return, mapping)
	if !isVoidish(ret) {
		results = []wasm.ValType{g.valType(ret)}
	}
	return g.funcSigIdx(params, results)
}

// addJob reserves a function index for a job's symbol and queues its body
// for compilation.
func (g *Generator) addJob(job *fnJob, typeIdx uint32) uint32 {
	if idx, ok := g.fnIdx[job.sym]; ok {
		return idx
	}
	idx := g.mod.AddFunc(&wasm.Func{
		Name:    job.sym,
		TypeIdx: typeIdx,
		Locals:  nil,
		Body:    wasm.NewBody(),
	})
	g.fnIdx[job.sym] = idx
	g.jobs = append(g.jobs, job)
	return idx
}

// declareFunctions reserves indices for every compiled function before any
// body or vtable is emitted.
func (g *Generator) declareFunctions() {
	// Top-level non-generic functions.
	for _, entry := range g.unit.Decls {
		fd, ok := entry.Decl.(*ast.FuncDecl)
		if !ok || !g.declReachable(fd) {
			continue
		}
		b := g.sema.Binding(fd.Name)
		if b == nil {
			continue
		}
		fn, ok := b.Type.(*types.FuncType)
		if !ok || len(fn.TypeParams) > 0 {
			continue
		}
		g.addJob(&fnJob{
			sym: entry.Mangled, kind: jobFunc, decl: fd,
			layout: nil, method: nil, field: nil, mapping: nil,
		}, g.funcTypeFor(fn, nil))
	}

	// Class machinery per concrete specialization.
	layouts := g.sortedLayouts()
	for _, l := range layouts {
		g.declareLayoutFuncs(l)
	}

	// Generic instances are discovered from recorded call instantiations,
	// transitively through already-declared bodies.
	g.collectGenericInstances()
}

func (g *Generator) sortedLayouts() []*layout {
	keys := make([]string, 0, len(g.layouts))
	for k := range g.layouts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*layout, len(keys))
	for i, k := range keys {
		out[i] = g.layouts[k]
	}
	return out
}

func (g *Generator) declareLayoutFuncs(l *layout) {
	// Methods and accessors declared with bodies.
	for _, m := range l.def.Methods {
		if m.Body == nil || len(m.TypeParams) > 0 {
			continue
		}
		sym := l.key() + "::" + m.Name
		if m.Static {
			// Statics are shared by every specialization of the class.
			sym = g.staticMethodSym(l.def, m.Name)
		}
		sub := types.SubstituteMethod(m, l.mapping)
		g.addJob(&fnJob{
			sym: sym, kind: jobMethod,
			decl: nil, layout: l, method: sub, field: nil, mapping: l.mapping,
		}, g.methodWasmType(m, l.mapping))
	}
	// Mixin methods compile once per applying specialization.
	for _, mixin := range l.def.Mixins {
		sub := types.Substitute(g.in, mixin, l.mapping).(*types.MixinType)
		mixinMapping := types.NewSubst(sub.Def.TypeParams, sub.TypeArgs)
		for _, m := range sub.Def.Methods {
			if m.Body == nil || len(m.TypeParams) > 0 {
				continue
			}
			subM := types.SubstituteMethod(m, mixinMapping)
			g.addJob(&fnJob{
				sym: l.key() + "::" + m.Name, kind: jobMethod,
				decl: nil, layout: l, method: subM, field: nil, mapping: mixinMapping,
			}, g.methodWasmType(m, mixinMapping))
		}
	}
	// Synthesized accessors for public fields declared here.
	for _, f := range l.fields {
		if f.owner != l.class || f.def.Private || f.def.Static {
			continue
		}
		getSig := g.funcSigIdx(
			[]wasm.ValType{wasm.RefNull(wasm.HeapAny)},
			[]wasm.ValType{g.valType(f.typ)},
		)
		g.addJob(&fnJob{
			sym: l.key() + "::get_" + f.def.Name, kind: jobGetter,
			decl: nil, layout: l, method: nil, field: f, mapping: l.mapping,
		}, getSig)
		setSig := g.funcSigIdx(
			[]wasm.ValType{wasm.RefNull(wasm.HeapAny), g.valType(f.typ)},
			nil,
		)
		g.addJob(&fnJob{
			sym: l.key() + "::set_" + f.def.Name, kind: jobSetter,
			decl: nil, layout: l, method: nil, field: f, mapping: l.mapping,
		}, setSig)
	}
	// Constructor entry: runs field initializers root-first, then the
	// nearest constructor body.
	ctor := g.ctorFor(l)
	params := []wasm.ValType{wasm.RefNull(wasm.HeapAny)}
	if ctor != nil {
		for _, p := range ctor.method.Params {
			params = append(params, g.valType(p.Type))
		}
	}
	g.addJob(&fnJob{
		sym: l.key() + "::#init", kind: jobInit,
		decl: nil, layout: l, method: nil, field: nil, mapping: l.mapping,
	}, g.funcSigIdx(params, nil))
}

// ctorInfo pairs the constructor definition with the layout that declares it.
type ctorInfo struct {
	method  *types.MethodDef // substituted into the concrete specialization
	declLayout *layout
}

// ctorFor finds the constructor that runs for a specialization: its own or
// the nearest inherited one.
func (g *Generator) ctorFor(l *layout) *ctorInfo {
	for cur := l; cur != nil; cur = cur.super {
		if cur.def.Ctor != nil {
			return &ctorInfo{
				method:  types.SubstituteMethod(cur.def.Ctor, cur.mapping),
				declLayout: cur,
			}
		}
	}
	return nil
}

// collectGenericInstances walks every already-declared body looking for
// calls carrying instantiation mappings, composing them with the enclosing
// instance's mapping, until no new instance appears.
func (g *Generator) collectGenericInstances() {
	type work struct {
		body    ast.Node
		mapping types.Subst
	}
	var queue []work
	for _, job := range g.jobs {
		switch {
		case job.decl != nil && job.decl.Body != nil:
			queue = append(queue, work{body: job.decl.Body, mapping: job.mapping})
		case job.method != nil && job.method.Body != nil:
			queue = append(queue, work{body: job.method.Body, mapping: job.mapping})
		}
	}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]
		block, ok := item.body.(*ast.Block)
		if !ok {
			continue
		}
		collector := &instantiationCollector{g: g, mapping: item.mapping, found: nil}
		ast.WalkStmt(collector, block)
		for _, inst := range collector.found {
			if newJob := g.declareInstance(inst); newJob != nil {
				switch {
				case newJob.decl != nil && newJob.decl.Body != nil:
					queue = append(queue, work{body: newJob.decl.Body, mapping: newJob.mapping})
				case newJob.method != nil && newJob.method.Body != nil:
					queue = append(queue, work{body: newJob.method.Body, mapping: newJob.mapping})
				}
			}
		}
	}
}

type instance struct {
	decl    *ast.FuncDecl
	binding *sema.Binding
	mapping types.Subst
}

type instantiationCollector struct {
	ast.DefaultVisitor
	g       *Generator
	mapping types.Subst
	found   []*instance
}

func (v *instantiationCollector) EnterExpr(e ast.Expr) bool {
	call, ok := e.(*ast.CallExpr)
	if !ok {
		return true
	}
	inst := v.g.sema.InstantiationOf(call)
	if inst == nil {
		return true
	}
	ident, ok := call.Callee.(*ast.IdentExpr)
	if !ok {
		return true
	}
	b := v.g.sema.Binding(ident)
	if b == nil {
		return true
	}
	fd, ok := b.Decl.(*ast.FuncDecl)
	if !ok {
		return true
	}
	// Compose: the recorded mapping may still mention the enclosing
	// instance's type parameters.
	composed := make(types.Subst, len(inst))
	for k, t := range inst {
		composed[k] = types.Substitute(v.g.in, t, v.mapping)
	}
	v.found = append(v.found, &instance{decl: fd, binding: b, mapping: composed})
	return true
}

// declareInstance reserves the function for one generic instance; returns
// the job if it was new.
func (g *Generator) declareInstance(inst *instance) *fnJob {
	fn, ok := inst.binding.Type.(*types.FuncType)
	if !ok {
		return nil
	}
	entry := g.unit.ByDecl(inst.decl)
	if entry == nil {
		return nil
	}
	sym := entry.Mangled + substKey(fn.TypeParams, inst.mapping)
	if _, exists := g.fnIdx[sym]; exists {
		return nil
	}
	job := &fnJob{
		sym: sym, kind: jobFunc, decl: inst.decl,
		layout: nil, method: nil, field: nil, mapping: inst.mapping,
	}
	g.addJob(job, g.funcTypeFor(fn, inst.mapping))
	return job
}

// instanceSym resolves the symbol a call site dispatches to, composing the
// call's instantiation with the enclosing function's mapping.
func (g *Generator) instanceSym(entry string, fn *types.FuncType, call *ast.CallExpr, outer types.Subst) string {
	if len(fn.TypeParams) == 0 {
		return entry
	}
	inst := g.sema.InstantiationOf(call)
	if inst == nil {
		fatalf("missing instantiation for generic call to %s", entry)
	}
	composed := make(types.Subst, len(inst))
	for k, t := range inst {
		composed[k] = types.Substitute(g.in, t, outer)
	}
	return entry + substKey(fn.TypeParams, composed)
}

// compileFunctions fills in every reserved body.
func (g *Generator) compileFunctions() {
	// Jobs may grow while compiling (closure bodies, adapters, helpers).
	for i := 0; i < len(g.jobs); i++ {
		g.compileJob(g.jobs[i])
	}
}

package codegen

import (
	"github.com/loom-lang/loom/internal/types"
	"github.com/loom-lang/loom/internal/wasm"
)

// fieldSlot is one instance field of a class layout. structField counts from
// 1: slot 0 of every class struct is the vtable reference.
type fieldSlot struct {
	def         *types.FieldDef
	owner       *types.ClassType
	typ         types.Type // substituted for the specialization
	structField uint32
}

// vslot is one vtable entry: a typed function reference for an accessor or
// an overridable method. Inherited slots keep their parent index.
type vslot struct {
	name   string
	index  uint32
	sigIdx uint32
}

// layout is the codegen view of one concrete class specialization: its
// struct type, vtable type, vtable global, flattened fields, and dispatch
// table. One specialization key maps to exactly one layout.
type layout struct {
	class     *types.ClassType
	def       *types.ClassDef
	mapping   types.Subst
	structIdx uint32
	vtableIdx uint32

	vtableGlobal uint32
	hasVtableGlobal bool

	fields []*fieldSlot
	slots  []*vslot

	super *layout
}

func (l *layout) key() string { return l.class.Key() }

func (l *layout) findField(name string) *fieldSlot {
	for _, f := range l.fields {
		if f.def.Name == name {
			return f
		}
	}
	return nil
}

func (l *layout) findSlot(name string) *vslot {
	for _, s := range l.slots {
		if s.name == name {
			return s
		}
	}
	return nil
}

// layoutOf builds (or returns) the layout for a concrete specialization.
// The layout is registered before field types are resolved so that
// self-referential fields terminate.
func (g *Generator) layoutOf(class *types.ClassType) *layout {
	key := class.Key()
	if l, ok := g.layouts[key]; ok {
		return l
	}

	def := class.Def
	mapping := types.NewSubst(def.TypeParams, class.TypeArgs)

	var super *layout
	if def.Super != nil {
		superClass := types.Substitute(g.in, def.Super, mapping).(*types.ClassType)
		super = g.layoutOf(superClass)
	}

	l := &layout{
		class: class, def: def, mapping: mapping,
		structIdx: g.mod.AddType(&wasm.SubType{
			Final: false, SuperIdxs: nil,
			Composite: &wasm.StructType{Fields: nil},
			Name:      class.String(),
		}),
		vtableIdx: 0, vtableGlobal: 0, hasVtableGlobal: false,
		fields: nil, slots: nil, super: super,
	}
	l.vtableIdx = g.mod.AddType(&wasm.SubType{
		Final: false, SuperIdxs: nil,
		Composite: &wasm.StructType{Fields: nil},
		Name:      class.String() + ".vtable",
	})
	g.layouts[key] = l

	// Superclass fields first, own fields after, in declaration order.
	if super != nil {
		l.fields = append(l.fields, super.fields...)
		l.slots = append(l.slots, super.slots...)
	}
	nextField := uint32(len(l.fields)) + 1
	for _, f := range def.Fields {
		if f.Static {
			continue
		}
		ft := types.Substitute(g.in, f.Type, mapping)
		ft = types.ResolveThis(ft, class)
		l.fields = append(l.fields, &fieldSlot{
			def: f, owner: class, typ: ft, structField: nextField,
		})
		nextField++
	}

	// Mixin fields are appended after the class's own.
	for _, mixin := range def.Mixins {
		sub := types.Substitute(g.in, mixin, mapping).(*types.MixinType)
		mixinMapping := types.NewSubst(sub.Def.TypeParams, sub.TypeArgs)
		for _, f := range sub.Def.Fields {
			if f.Static {
				continue
			}
			ft := types.Substitute(g.in, f.Type, mixinMapping)
			l.fields = append(l.fields, &fieldSlot{
				def: f, owner: class, typ: ft, structField: nextField,
			})
			nextField++
		}
	}

	// Vtable slots: every public field gets get/set accessor slots; every
	// overridable method and accessor gets one slot. Overrides re-use the
	// parent's index.
	addSlot := func(name string, sig *types.FuncType) {
		if existing := l.findSlot(name); existing != nil {
			return
		}
		l.slots = append(l.slots, &vslot{
			name:   name,
			index:  uint32(len(l.slots)),
			sigIdx: g.methodSigIdx(sig),
		})
	}
	addFieldSlots := func(name string, ft types.Type) {
		addSlot("get_"+name, &types.FuncType{TypeParams: nil, Params: nil, Return: ft})
		addSlot("set_"+name, &types.FuncType{
			TypeParams: nil,
			Params:     []*types.ParamDef{{Name: "value", Type: ft}},
			Return:     g.in.Void(),
		})
	}
	for _, f := range def.Fields {
		if f.Static || f.Private {
			continue
		}
		ft := types.Substitute(g.in, f.Type, mapping)
		ft = types.ResolveThis(ft, class)
		addFieldSlots(f.Name, ft)
	}
	for _, mixin := range def.Mixins {
		sub := types.Substitute(g.in, mixin, mapping).(*types.MixinType)
		mixinMapping := types.NewSubst(sub.Def.TypeParams, sub.TypeArgs)
		for _, f := range sub.Def.Fields {
			if f.Static || f.Private {
				continue
			}
			addFieldSlots(f.Name, types.Substitute(g.in, f.Type, mixinMapping))
		}
	}
	for _, m := range methodsAndMixinMethods(def, mapping, g.in) {
		if m.Static || m.Private || m.Final || m.Kind == types.MethodKindCtor {
			continue
		}
		if len(m.TypeParams) > 0 {
			// Generic methods are monomorphized per call site and dispatch
			// statically.
			continue
		}
		sub := types.SubstituteMethod(m, mapping)
		sig := types.ResolveThis(sub.Sig(), class).(*types.FuncType)
		addSlot(m.Name, sig)
	}

	// Fill in the reserved composite types.
	structFields := []wasm.FieldType{
		{Storage: wasm.Storage(wasm.RefNull(wasm.HeapType(l.vtableIdx))), Mutable: false},
	}
	for _, f := range l.fields {
		structFields = append(structFields, wasm.FieldType{
			Storage: wasm.Storage(g.valType(f.typ)),
			Mutable: true,
		})
	}
	structSub := g.mod.Types[l.structIdx]
	structSub.Composite = &wasm.StructType{Fields: structFields}

	vtableFields := make([]wasm.FieldType, len(l.slots))
	for i, s := range l.slots {
		vtableFields[i] = wasm.FieldType{
			Storage: wasm.Storage(wasm.RefNull(wasm.HeapType(s.sigIdx))),
			Mutable: false,
		}
	}
	vtableSub := g.mod.Types[l.vtableIdx]
	vtableSub.Composite = &wasm.StructType{Fields: vtableFields}

	if super != nil {
		structSub.SuperIdxs = []uint32{super.structIdx}
		vtableSub.SuperIdxs = []uint32{super.vtableIdx}
	}

	// Register the layout in the interface dispatch side table, keyed by
	// interface declaration identity.
	for cur := l; cur != nil; cur = cur.super {
		for _, iface := range cur.def.Interfaces {
			g.registerIfaceImpl(iface.Def, l)
			for _, ext := range iface.Def.Extends {
				g.registerIfaceImpl(ext.Def, l)
			}
		}
	}

	return l
}

func (g *Generator) registerIfaceImpl(def *types.InterfaceDef, l *layout) {
	for _, existing := range g.ifaceImpls[def] {
		if existing == l {
			return
		}
	}
	g.ifaceImpls[def] = append(g.ifaceImpls[def], l)
}

// methodSigIdx interns the function type of a vtable slot or method: the
// receiver is typed anyref so overrides in subclasses share the slot type.
func (g *Generator) methodSigIdx(sig *types.FuncType) uint32 {
	key := "method.sig:" + sig.Key()
	if idx, ok := g.typeIdx.Get(key); ok {
		return idx
	}
	params := []wasm.ValType{wasm.RefNull(wasm.HeapAny)}
	for _, p := range sig.Params {
		params = append(params, g.valType(p.Type))
	}
	var results []wasm.ValType
	if _, isVoid := sig.Return.(*types.VoidType); !isVoid {
		results = []wasm.ValType{g.valType(sig.Return)}
	}
	idx := g.mod.AddType(&wasm.SubType{
		Final: true, SuperIdxs: nil,
		Composite: &wasm.FuncType{Params: params, Results: results},
		Name:      "",
	})
	g.typeIdx.Set(key, idx)
	return idx
}

// methodsAndMixinMethods flattens a class's own methods with its applied
// mixins' methods (already substituted into the class's parameter space).
func methodsAndMixinMethods(def *types.ClassDef, mapping types.Subst, in *types.Interner) []*types.MethodDef {
	out := make([]*types.MethodDef, 0, len(def.Methods))
	out = append(out, def.Methods...)
	for _, mixin := range def.Mixins {
		sub := types.Substitute(in, mixin, mapping).(*types.MixinType)
		mixinMapping := types.NewSubst(sub.Def.TypeParams, sub.TypeArgs)
		for _, m := range sub.Def.Methods {
			out = append(out, types.SubstituteMethod(m, mixinMapping))
		}
	}
	return out
}

// slotImpl resolves the function implementing a vtable slot for a class:
// the nearest override walking from the class upward. Synthesized field
// accessors live on the class that declares the field.
func (g *Generator) slotImpl(l *layout, name string) (string, bool) {
	for cur := l; cur != nil; cur = cur.super {
		for _, m := range cur.def.Methods {
			if m.Name == name && (m.Body != nil || m.Intrinsic != "") {
				return cur.key() + "::" + name, true
			}
		}
		// Accessor slots synthesized from public fields, including fields
		// contributed by applied mixins.
		if isAccessorName(name) {
			fieldName := name[4:]
			if f := cur.def.FindField(fieldName); f != nil && !f.Private && !f.Static {
				return cur.key() + "::" + name, true
			}
			for _, mixin := range cur.def.Mixins {
				for _, f := range mixin.Def.Fields {
					if f.Name == fieldName && !f.Private && !f.Static {
						return cur.key() + "::" + name, true
					}
				}
			}
		}
		for _, mixin := range cur.def.Mixins {
			for _, m := range mixin.Def.Methods {
				if m.Name == name && m.Body != nil {
					return cur.key() + "::" + name, true
				}
			}
		}
	}
	return "", false
}

func isAccessorName(name string) bool {
	return len(name) > 4 && (name[:4] == "get_" || name[:4] == "set_")
}

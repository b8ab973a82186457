package checker

import (
	"github.com/loom-lang/loom/internal/ast"
	"github.com/loom-lang/loom/internal/sema"
	"github.com/loom-lang/loom/internal/types"
)

// bindTypeParamDefs re-binds a declaration's already-resolved type parameter
// defs into a fresh scope for the body pass.
func (c *Checker) bindTypeParamDefs(ctx *libCtx, sc *scope, params []*types.TypeParamDef) *scope {
	if len(params) == 0 {
		return sc
	}
	inner := newScope(sc)
	for _, p := range params {
		inner.defineType(p.Name, &sema.Binding{
			Kind: sema.BindingType, Library: ctx.lib.Path, Name: p.Name,
			Decl: nil, Def: p, Type: nil, Mutable: false,
		})
	}
	return inner
}

// memberScope binds all members reachable from the class (own, inherited,
// and mixed in) for bare references inside bodies and initializers.
func (c *Checker) memberScope(ctx *libCtx, sc *scope, class *types.ClassType) *scope {
	inner := newScope(sc)
	for cur := class; cur != nil; cur = c.superOf(cur) {
		mixinFields := func(mixin *types.MixinType) {
			for _, f := range mixin.Def.Fields {
				if m := c.lookupMember(class, f.Name, true); m != nil {
					inner.define(f.Name, &sema.Binding{
						Kind: sema.BindingField, Library: cur.Def.Library, Name: f.Name,
						Decl: nil, Def: m.Field, Type: m.Type, Mutable: true,
					})
				}
			}
			for _, md := range mixin.Def.Methods {
				if m := c.lookupMember(class, md.Name, true); m != nil {
					inner.define(md.Name, &sema.Binding{
						Kind: sema.BindingMethod, Library: cur.Def.Library, Name: md.Name,
						Decl: nil, Def: m.Method, Type: m.Type, Mutable: false,
					})
				}
			}
		}
		for _, f := range cur.Def.Fields {
			if m := c.lookupMember(class, f.Name, true); m != nil {
				inner.define(f.Name, &sema.Binding{
					Kind: sema.BindingField, Library: cur.Def.Library, Name: f.Name,
					Decl: nil, Def: m.Field, Type: m.Type, Mutable: true,
				})
			}
		}
		for _, md := range cur.Def.Methods {
			if m := c.lookupMember(class, md.Name, true); m != nil {
				inner.define(md.Name, &sema.Binding{
					Kind: sema.BindingMethod, Library: cur.Def.Library, Name: md.Name,
					Decl: nil, Def: m.Method, Type: m.Type, Mutable: false,
				})
			}
		}
		for _, mixin := range cur.Def.Mixins {
			mixinFields(mixin)
		}
	}
	return inner
}

// checkClass runs the body pass over one class: initializer order, abstract
// and final rules, override compatibility, mixin requirements, and method
// bodies.
func (c *Checker) checkClass(ctx *libCtx, d *ast.ClassDecl) {
	binding := ctx.global.lookupType(d.Name.Name)
	if binding == nil {
		return
	}
	def, ok := binding.Def.(*types.ClassDef)
	if !ok {
		return
	}
	in := c.Sema.Interner

	sc := c.bindTypeParamDefs(ctx, ctx.global, def.TypeParams)
	selfArgs := make([]types.Type, len(def.TypeParams))
	for i, p := range def.TypeParams {
		selfArgs[i] = in.Intern(p.Ref())
	}
	self := in.Class(def, selfArgs)

	prevDef, prevType := ctx.classDef, ctx.classType
	ctx.classDef, ctx.classType = def, self
	defer func() { ctx.classDef, ctx.classType = prevDef, prevType }()

	members := c.memberScope(ctx, sc, self)

	// Field initializers, in declaration order. Annotated fields are checked
	// against their declared type; an initializer may only reference fields
	// declared earlier in this class or fields of the superclass.
	for _, f := range def.Fields {
		if f.Init == nil {
			continue
		}
		var declAst *ast.FieldDecl
		for _, m := range d.Members {
			if fd, ok := m.(*ast.FieldDecl); ok && fd.Name.Name == f.Name {
				declAst = fd
				break
			}
		}
		if declAst == nil || declAst.TypeAnn == nil {
			continue // inferred fields were checked during header resolution
		}
		prev := ctx.initField
		ctx.initField = f.DeclOrder
		got := c.inferExpr(ctx, members, f.Init, f.Type)
		ctx.initField = prev
		if !types.Assignable(got, f.Type) {
			c.errorf(ctx, sema.TypeMismatch, f.Init.Span(),
				"cannot initialize field %q of type %s with %s", f.Name, f.Type, got)
		}
	}

	// Abstract completeness for concrete classes.
	if !def.IsAbstract {
		for _, m := range c.unimplementedAbstract(self) {
			c.errorf(ctx, sema.AbstractMethodNotImplemented, d.Name.Span(),
				"class %s does not implement abstract method %q", def.Name, m.Name)
		}
	}

	// Final and override compatibility.
	for _, m := range def.Methods {
		over := c.overridden(self, m.Name)
		if over == nil || over.Method == nil {
			continue
		}
		if over.Method.Final {
			c.errorf(ctx, sema.CannotOverrideFinal, d.Name.Span(),
				"%q overrides a final member of %s", m.Name, over.Owner.Name)
			continue
		}
		mapping := types.NewSubst(def.TypeParams, selfArgs)
		sig := types.SubstituteMethod(m, mapping).Sig()
		overSig, ok := over.Type.(*types.FuncType)
		if !ok {
			continue
		}
		if len(sig.Params) != len(overSig.Params) || !types.Assignable(sig, overSig) {
			c.errorf(ctx, sema.TypeMismatch, d.Name.Span(),
				"%q is not compatible with the overridden signature %s", m.Name, overSig)
		}
	}

	// Mixin `on` requirements.
	for _, mixin := range def.Mixins {
		if mixin.Def.On == nil {
			continue
		}
		if !c.mixinRequirementMet(self, mixin.Def.On.Def) {
			c.errorf(ctx, sema.MixinRequirementUnmet, d.Name.Span(),
				"class %s applies mixin %s but does not reach its base %s",
				def.Name, mixin.Def.Name, mixin.Def.On.Def.Name)
		}
	}

	// Interface conformance.
	for _, iface := range def.Interfaces {
		c.checkInterfaceConformance(ctx, d, self, iface)
	}

	// Bodies.
	if def.Ctor != nil && def.Ctor.Body != nil {
		c.checkMethodBody(ctx, members, def.Ctor)
	}
	for _, m := range def.Methods {
		if m.Body != nil {
			c.checkMethodBody(ctx, members, m)
		}
	}
}

func (c *Checker) checkInterfaceConformance(ctx *libCtx, d *ast.ClassDecl, self *types.ClassType, iface *types.InterfaceType) {
	mapping := types.NewSubst(iface.Def.TypeParams, iface.TypeArgs)
	for _, req := range iface.Def.Methods {
		sub := types.SubstituteMethod(req, mapping)
		impl := c.lookupMember(self, req.Name, true)
		if impl == nil || impl.Method == nil {
			c.errorf(ctx, sema.AbstractMethodNotImplemented, d.Name.Span(),
				"class %s does not implement %q required by interface %s",
				self.Def.Name, req.Name, iface.Def.Name)
			continue
		}
		implSig, ok := impl.Type.(*types.FuncType)
		if !ok {
			continue
		}
		if len(implSig.Params) != len(sub.Params) || !types.Assignable(implSig, sub.Sig()) {
			c.errorf(ctx, sema.TypeMismatch, d.Name.Span(),
				"%q does not match the signature required by interface %s", req.Name, iface.Def.Name)
		}
	}
	for _, ext := range iface.Def.Extends {
		sub := types.Substitute(c.Sema.Interner, ext, mapping).(*types.InterfaceType)
		c.checkInterfaceConformance(ctx, d, self, sub)
	}
}

// checkMethodBody checks one method, accessor, or constructor body.
func (c *Checker) checkMethodBody(ctx *libCtx, members *scope, m *types.MethodDef) {
	sc := c.bindTypeParamDefs(ctx, members, m.TypeParams)
	body := newScope(sc)
	astParams := methodASTParams(m)
	for i, p := range m.Params {
		b := &sema.Binding{
			Kind: sema.BindingLocal, Library: ctx.lib.Path, Name: p.Name,
			Decl: nil, Def: nil, Type: p.Type, Mutable: false,
		}
		body.define(p.Name, b)
		if i < len(astParams) {
			b.Decl = astParams[i].Name
			c.Sema.SetBinding(astParams[i].Name, b)
		}
	}

	prevRet := ctx.retType
	ctx.retType = m.Return
	prevStatic := ctx.classType
	if m.Static {
		// Static members have no receiver.
		ctx.classType = nil
	}
	c.checkBlock(ctx, body, m.Body)
	ctx.retType = prevRet
	ctx.classType = prevStatic
}

// methodASTParams returns the declared parameter nodes of a method's AST,
// used to attach bindings to the parameter names.
func methodASTParams(m *types.MethodDef) []*ast.Param {
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

// checkMixinBodies checks the bodies of a mixin's methods against its
// surrogate self (the `on` base plus the mixin's own members).
func (c *Checker) checkMixinBodies(ctx *libCtx, d *ast.MixinDecl) {
	binding := ctx.global.lookupType(d.Name.Name)
	if binding == nil {
		return
	}
	def, ok := binding.Def.(*types.MixinDef)
	if !ok {
		return
	}
	in := c.Sema.Interner

	sc := c.bindTypeParamDefs(ctx, ctx.global, def.TypeParams)
	surrogate := &types.ClassDef{
		Library: def.Library, Name: def.Name, TypeParams: def.TypeParams,
		Super: def.On, Interfaces: nil, Mixins: nil,
		IsAbstract: true, IsFinal: false,
		Fields: def.Fields, Methods: def.Methods, Ctor: nil, AST: nil,
	}
	selfArgs := make([]types.Type, len(def.TypeParams))
	for i, p := range def.TypeParams {
		selfArgs[i] = in.Intern(p.Ref())
	}
	self := in.Class(surrogate, selfArgs)

	prevDef, prevType := ctx.classDef, ctx.classType
	ctx.classDef, ctx.classType = surrogate, self
	defer func() { ctx.classDef, ctx.classType = prevDef, prevType }()

	members := c.memberScope(ctx, sc, self)
	for _, m := range def.Methods {
		if m.Body != nil {
			c.checkMethodBody(ctx, members, m)
		}
	}
}

// checkFuncBody checks a top-level function declaration's body.
func (c *Checker) checkFuncBody(ctx *libCtx, d *ast.FuncDecl) {
	b, _ := ctx.global.lookupValue(d.Name.Name)
	if b == nil {
		return
	}
	fnType, ok := b.Type.(*types.FuncType)
	if !ok {
		return
	}
	if d.Body == nil {
		return
	}

	sc := c.bindTypeParamDefs(ctx, ctx.global, fnType.TypeParams)
	body := newScope(sc)
	for i, p := range d.Params {
		if i >= len(fnType.Params) {
			break
		}
		pb := &sema.Binding{
			Kind: sema.BindingLocal, Library: ctx.lib.Path, Name: p.Name.Name,
			Decl: p.Name, Def: nil, Type: fnType.Params[i].Type, Mutable: false,
		}
		body.define(p.Name.Name, pb)
		c.Sema.SetBinding(p.Name, pb)
	}

	prevRet := ctx.retType
	ctx.retType = fnType.Return
	c.checkBlock(ctx, body, d.Body)
	ctx.retType = prevRet
}

// checkLetDecl checks one let/var declaration and introduces its binding.
// At a let binding without annotation a literal keeps its literal type; at a
// var binding it widens to the base primitive.
func (c *Checker) checkLetDecl(ctx *libCtx, sc *scope, d *ast.LetDecl) {
	in := c.Sema.Interner

	var target types.Type
	if d.TypeAnn != nil {
		target = c.typeFromAnn(ctx, sc, d.TypeAnn)
	}
	got := c.inferExpr(ctx, sc, d.Init, target)

	t := got
	if target != nil {
		if !types.Assignable(got, target) {
			c.errorf(ctx, sema.TypeMismatch, d.Init.Span(),
				"cannot assign %s to %s", got, target)
		}
		t = target
	} else if d.Kind == ast.LetKindVar {
		if lit, ok := t.(*types.LitType); ok {
			t = in.Intern(lit.Base())
		}
	}

	kind := sema.BindingLocal
	if sc == ctx.global {
		kind = sema.BindingGlobal
	}
	b := &sema.Binding{
		Kind: kind, Library: ctx.lib.Path, Name: d.Name.Name,
		Decl: d, Def: nil, Type: t, Mutable: d.Kind == ast.LetKindVar,
	}
	if !sc.define(d.Name.Name, b) {
		c.errorf(ctx, sema.DuplicateDeclaration, d.Name.Span(),
			"%q is declared more than once in this scope", d.Name.Name)
		return
	}
	c.Sema.SetBinding(d.Name, b)
}

package checker

import (
	"github.com/loom-lang/loom/internal/ast"
	"github.com/loom-lang/loom/internal/sema"
	"github.com/loom-lang/loom/internal/types"
)

// pushTypeParams resolves a declaration's type parameter list into defs
// bound in a fresh scope. Constraints and defaults may reference earlier
// parameters.
func (c *Checker) pushTypeParams(ctx *libCtx, sc *scope, params []*ast.TypeParam) ([]*types.TypeParamDef, *scope) {
	if len(params) == 0 {
		return nil, sc
	}
	scopeID := c.NextScopeID()
	inner := newScope(sc)
	defs := make([]*types.TypeParamDef, 0, len(params))
	for _, p := range params {
		def := &types.TypeParamDef{Name: p.Name.Name, Constraint: nil, Default: nil, ScopeID: scopeID}
		defs = append(defs, def)
		inner.defineType(p.Name.Name, &sema.Binding{
			Kind: sema.BindingType, Library: ctx.lib.Path, Name: p.Name.Name,
			Decl: p.Name, Def: def, Type: nil, Mutable: false,
		})
	}
	for i, p := range params {
		if p.Constraint != nil {
			defs[i].Constraint = c.typeFromAnn(ctx, inner, p.Constraint)
		}
		if p.Default != nil {
			defs[i].Default = c.typeFromAnn(ctx, inner, p.Default)
		}
	}
	return defs, inner
}

// paramDefs resolves declared parameters; declarations require annotations.
func (c *Checker) paramDefs(ctx *libCtx, sc *scope, params []*ast.Param) []*types.ParamDef {
	defs := make([]*types.ParamDef, len(params))
	for i, p := range params {
		var t types.Type = c.Sema.Interner.Error()
		if p.TypeAnn != nil {
			t = c.typeFromAnn(ctx, sc, p.TypeAnn)
		} else {
			c.errorf(ctx, sema.TypeMismatch, p.Name.Span(),
				"parameter %q needs a type annotation", p.Name.Name)
		}
		defs[i] = &types.ParamDef{Name: p.Name.Name, Type: t}
	}
	return defs
}

// checkDecorators enforces the @intrinsic gating: honoured only inside
// standard-library libraries, and only for known intrinsic names.
func (c *Checker) checkDecorators(ctx *libCtx, decorators []*ast.Decorator) string {
	intrinsic := ""
	for _, dec := range decorators {
		if dec.Name != "intrinsic" {
			c.errorf(ctx, sema.DecoratorNotAllowed, dec.Span(), "unknown decorator @%s", dec.Name)
			continue
		}
		if !ctx.lib.Stdlib {
			c.errorf(ctx, sema.DecoratorNotAllowed, dec.Span(),
				"@intrinsic is only allowed in standard-library code")
			continue
		}
		if len(dec.Args) != 1 {
			c.errorf(ctx, sema.UnknownIntrinsic, dec.Span(), "@intrinsic takes one name argument")
			continue
		}
		lit, ok := dec.Args[0].(*ast.StrLit)
		if !ok || !knownIntrinsics[lit.Value] {
			c.errorf(ctx, sema.UnknownIntrinsic, dec.Span(), "unknown intrinsic")
			continue
		}
		intrinsic = lit.Value
	}
	return intrinsic
}

func (c *Checker) resolveClassHeader(ctx *libCtx, d *ast.ClassDecl) {
	binding := ctx.global.lookupType(d.Name.Name)
	def, ok := binding.Def.(*types.ClassDef)
	if !ok {
		return
	}
	in := c.Sema.Interner

	typeParams, sc := c.pushTypeParams(ctx, ctx.global, d.TypeParams)
	def.TypeParams = typeParams

	// The generic self specialization, used for This and member checking.
	selfArgs := make([]types.Type, len(typeParams))
	for i, p := range typeParams {
		selfArgs[i] = in.Intern(p.Ref())
	}
	self := in.Class(def, selfArgs)

	if d.ExtensionOn != nil {
		def.IsExtension = true
		def.ExtensionOn = c.typeFromAnn(ctx, sc, d.ExtensionOn)
	}

	if d.Super != nil {
		super := c.typeFromRef(ctx, sc, d.Super)
		if superClass, ok := super.(*types.ClassType); ok {
			if superClass.Def.IsFinal {
				c.errorf(ctx, sema.CannotExtendFinal, d.Super.Span(),
					"cannot extend final class %s", superClass.Def.Name)
			} else {
				def.Super = superClass
			}
		} else if _, isErr := super.(*types.ErrorType); !isErr {
			c.errorf(ctx, sema.WrongDeclarationKind, d.Super.Span(),
				"%s is not a class", d.Super.Name.Name)
		}
	}
	for _, ref := range d.Implements {
		t := c.typeFromRef(ctx, sc, ref)
		if iface, ok := t.(*types.InterfaceType); ok {
			def.Interfaces = append(def.Interfaces, iface)
		} else if _, isErr := t.(*types.ErrorType); !isErr {
			c.errorf(ctx, sema.WrongDeclarationKind, ref.Span(),
				"%s is not an interface", ref.Name.Name)
		}
	}
	for _, ref := range d.Mixins {
		t := c.typeFromRef(ctx, sc, ref)
		if mixin, ok := t.(*types.MixinType); ok {
			def.Mixins = append(def.Mixins, mixin)
		} else if _, isErr := t.(*types.ErrorType); !isErr {
			c.errorf(ctx, sema.WrongDeclarationKind, ref.Span(),
				"%s is not a mixin", ref.Name.Name)
		}
	}

	c.resolveMembers(ctx, sc, self, def, d.Members, false)
}

// resolveMembers fills member signatures for a class or mixin definition.
func (c *Checker) resolveMembers(ctx *libCtx, sc *scope, self *types.ClassType, def *types.ClassDef, members []ast.ClassMember, isMixin bool) {
	in := c.Sema.Interner
	prevClass, prevType := ctx.classDef, ctx.classType
	ctx.classDef, ctx.classType = def, self
	defer func() { ctx.classDef, ctx.classType = prevClass, prevType }()

	// Fields become visible to later initializers as they are declared.
	memberScope := newScope(sc)

	order := 0
	for _, m := range members {
		switch m := m.(type) {
		case *ast.FieldDecl:
			var t types.Type
			if m.TypeAnn != nil {
				t = c.typeFromAnn(ctx, sc, m.TypeAnn)
			} else if m.Init != nil {
				// Inferred fields are checked here; annotated initializers
				// wait for the body pass, which also verifies
				// field-initialization order.
				prev := ctx.initField
				ctx.initField = order
				t = c.inferExpr(ctx, memberScope, m.Init, nil)
				ctx.initField = prev
				if lit, ok := t.(*types.LitType); ok {
					t = in.Intern(lit.Base())
				}
			} else {
				c.errorf(ctx, sema.TypeMismatch, m.Span(),
					"field %q needs a type annotation or an initializer", m.Name.Name)
				t = in.Error()
			}
			field := &types.FieldDef{
				Name: m.Name.Name, Type: t, Private: m.Private, Static: m.Static,
				Init: m.Init, DeclOrder: order,
			}
			def.Fields = append(def.Fields, field)
			memberScope.define(m.Name.Name, &sema.Binding{
				Kind: sema.BindingField, Library: ctx.lib.Path, Name: m.Name.Name,
				Decl: m, Def: field, Type: t, Mutable: true,
			})
			order++
		case *ast.MethodDecl:
			intrinsic := c.checkDecorators(ctx, m.Decorators)
			if m.Abstract && !def.IsAbstract && !isMixin {
				c.errorf(ctx, sema.AbstractMethodOutsideAbstract, m.Span(),
					"abstract method %q in non-abstract class %s", m.Name.Name, def.Name)
			}
			methodParams, msc := c.pushTypeParams(ctx, sc, m.TypeParams)
			ret := types.Type(in.Void())
			if m.Return != nil {
				ret = c.typeFromAnn(ctx, msc, m.Return)
			}
			def.Methods = append(def.Methods, &types.MethodDef{
				Name: m.Name.Name, Kind: types.MethodKindMethod,
				TypeParams: methodParams,
				Params:     c.paramDefs(ctx, msc, m.Params),
				Return:     ret,
				Private:    m.Private, Static: m.Static, Final: m.Final,
				Abstract: m.Abstract, Intrinsic: intrinsic, Body: m.Body, AST: m,
			})
		case *ast.GetterDecl:
			def.Methods = append(def.Methods, &types.MethodDef{
				Name: m.MemberName(), Kind: types.MethodKindGetter,
				TypeParams: nil, Params: nil,
				Return:     c.typeFromAnn(ctx, sc, m.Return),
				Private:    m.Private, Static: m.Static, Final: m.Final,
				Abstract: false, Intrinsic: "", Body: m.Body, AST: m,
			})
		case *ast.SetterDecl:
			def.Methods = append(def.Methods, &types.MethodDef{
				Name: m.MemberName(), Kind: types.MethodKindSetter,
				TypeParams: nil,
				Params:     c.paramDefs(ctx, sc, []*ast.Param{m.Param}),
				Return:     in.Void(),
				Private:    m.Private, Static: m.Static, Final: m.Final,
				Abstract: false, Intrinsic: "", Body: m.Body, AST: m,
			})
		case *ast.CtorDecl:
			if isMixin {
				c.errorf(ctx, sema.ConstructorInMixin, m.Span(), "mixins may not declare constructors")
				continue
			}
			def.Ctor = &types.MethodDef{
				Name: "#new", Kind: types.MethodKindCtor,
				TypeParams: nil,
				Params:     c.paramDefs(ctx, sc, m.Params),
				Return:     in.Void(),
				Private:    false, Static: false, Final: true,
				Abstract: false, Intrinsic: "", Body: m.Body, AST: m,
			}
		}
	}
}

func (c *Checker) resolveInterfaceHeader(ctx *libCtx, d *ast.InterfaceDecl) {
	binding := ctx.global.lookupType(d.Name.Name)
	def, ok := binding.Def.(*types.InterfaceDef)
	if !ok {
		return
	}
	in := c.Sema.Interner

	typeParams, sc := c.pushTypeParams(ctx, ctx.global, d.TypeParams)
	def.TypeParams = typeParams

	for _, ref := range d.Extends {
		t := c.typeFromRef(ctx, sc, ref)
		if iface, ok := t.(*types.InterfaceType); ok {
			def.Extends = append(def.Extends, iface)
		} else if _, isErr := t.(*types.ErrorType); !isErr {
			c.errorf(ctx, sema.WrongDeclarationKind, ref.Span(),
				"%s is not an interface", ref.Name.Name)
		}
	}

	for _, m := range d.Members {
		switch m := m.(type) {
		case *ast.MethodDecl:
			methodParams, msc := c.pushTypeParams(ctx, sc, m.TypeParams)
			ret := types.Type(in.Void())
			if m.Return != nil {
				ret = c.typeFromAnn(ctx, msc, m.Return)
			}
			def.Methods = append(def.Methods, &types.MethodDef{
				Name: m.Name.Name, Kind: types.MethodKindMethod,
				TypeParams: methodParams,
				Params:     c.paramDefs(ctx, msc, m.Params),
				Return:     ret,
				Private:    false, Static: false, Final: false,
				Abstract: true, Intrinsic: "", Body: nil, AST: m,
			})
		case *ast.GetterDecl:
			def.Methods = append(def.Methods, &types.MethodDef{
				Name: m.MemberName(), Kind: types.MethodKindGetter,
				TypeParams: nil, Params: nil,
				Return:     c.typeFromAnn(ctx, sc, m.Return),
				Private:    false, Static: false, Final: false,
				Abstract: true, Intrinsic: "", Body: nil, AST: m,
			})
		case *ast.SetterDecl:
			def.Methods = append(def.Methods, &types.MethodDef{
				Name: m.MemberName(), Kind: types.MethodKindSetter,
				TypeParams: nil,
				Params:     c.paramDefs(ctx, sc, []*ast.Param{m.Param}),
				Return:     in.Void(),
				Private:    false, Static: false, Final: false,
				Abstract: true, Intrinsic: "", Body: nil, AST: m,
			})
		default:
			c.errorf(ctx, sema.WrongDeclarationKind, m.Span(),
				"interfaces may only declare method and accessor signatures")
		}
	}
}

func (c *Checker) resolveMixinHeader(ctx *libCtx, d *ast.MixinDecl) {
	binding := ctx.global.lookupType(d.Name.Name)
	def, ok := binding.Def.(*types.MixinDef)
	if !ok {
		return
	}
	in := c.Sema.Interner

	typeParams, sc := c.pushTypeParams(ctx, ctx.global, d.TypeParams)
	def.TypeParams = typeParams

	if d.On != nil {
		t := c.typeFromRef(ctx, sc, d.On)
		if onClass, ok := t.(*types.ClassType); ok {
			def.On = onClass
		} else if _, isErr := t.(*types.ErrorType); !isErr {
			c.errorf(ctx, sema.WrongDeclarationKind, d.On.Span(),
				"mixin `on` requirement %s is not a class", d.On.Name.Name)
		}
	}

	// Member signatures are resolved through a surrogate class definition so
	// mixin bodies can use the same member machinery.
	surrogate := &types.ClassDef{
		Library: def.Library, Name: def.Name, TypeParams: typeParams,
		Super: def.On, Interfaces: nil, Mixins: nil,
		IsAbstract: true, IsFinal: false,
		Fields: nil, Methods: nil, Ctor: nil, AST: nil,
	}
	selfArgs := make([]types.Type, len(typeParams))
	for i, p := range typeParams {
		selfArgs[i] = in.Intern(p.Ref())
	}
	self := in.Class(surrogate, selfArgs)
	c.resolveMembers(ctx, sc, self, surrogate, d.Members, true)
	def.Fields = surrogate.Fields
	def.Methods = surrogate.Methods
}

func (c *Checker) resolveAliasHeader(ctx *libCtx, d *ast.TypeAliasDecl) {
	binding := ctx.global.lookupType(d.Name.Name)
	def, ok := binding.Def.(*types.AliasDef)
	if !ok || def.Aliased != nil {
		return
	}
	typeParams, sc := c.pushTypeParams(ctx, ctx.global, d.TypeParams)
	def.TypeParams = typeParams
	def.Aliased = c.typeFromAnn(ctx, sc, d.Aliased)
}

func (c *Checker) resolveFuncHeader(ctx *libCtx, d *ast.FuncDecl) {
	in := c.Sema.Interner
	intrinsic := c.checkDecorators(ctx, d.Decorators)

	typeParams, sc := c.pushTypeParams(ctx, ctx.global, d.TypeParams)
	params := c.paramDefs(ctx, sc, d.Params)
	ret := types.Type(in.Void())
	if d.Return != nil {
		ret = c.typeFromAnn(ctx, sc, d.Return)
	}
	fnType := in.Intern(&types.FuncType{TypeParams: typeParams, Params: params, Return: ret})

	kind := sema.BindingFunc
	if intrinsic != "" {
		kind = sema.BindingIntrinsic
	}
	b := &sema.Binding{
		Kind: kind, Library: ctx.lib.Path, Name: d.Name.Name,
		Decl: d, Def: nil, Type: fnType, Mutable: false,
	}
	if !ctx.global.define(d.Name.Name, b) {
		c.errorf(ctx, sema.DuplicateDeclaration, d.Name.Span(),
			"%q is declared more than once", d.Name.Name)
		return
	}
	c.Sema.SetBinding(d.Name, b)
}

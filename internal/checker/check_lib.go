package checker

import (
	"github.com/loom-lang/loom/internal/ast"
	"github.com/loom-lang/loom/internal/loader"
	"github.com/loom-lang/loom/internal/sema"
	"github.com/loom-lang/loom/internal/stdlib"
	"github.com/loom-lang/loom/internal/types"
)

// libCtx carries the per-library checking state. Each library is checked in
// a fresh context sharing the global semantic context.
type libCtx struct {
	lib    *loader.Library
	global *scope

	// Enclosing class, when checking a class body.
	classDef  *types.ClassDef
	classType *types.ClassType

	// Expected return type of the enclosing function or method.
	retType types.Type

	// Index of the field whose initializer is being checked, -1 otherwise.
	initField int

	// collectReturns accumulates return types when a closure body is checked
	// without a declared or contextual return type.
	collectReturns *[]types.Type

	// importUses tracks explicitly imported bindings that have not been
	// referenced yet; leftovers warn after the library is checked.
	importUses map[*sema.Binding]*ast.Ident

	// aliasStack guards against cyclic alias resolution.
	aliasStack map[*types.AliasDef]bool
}

func (c *Checker) errorf(ctx *libCtx, code sema.Code, span ast.Span, format string, args ...any) {
	c.Sema.Report(sema.NewError(code, ctx.lib.Path, span, format, args...))
}

func (c *Checker) warnf(ctx *libCtx, code sema.Code, span ast.Span, format string, args ...any) {
	c.Sema.Report(sema.NewWarning(code, ctx.lib.Path, span, format, args...))
}

// CheckLibrary runs the full checking pass over one library. Its
// dependencies must already be checked.
func (c *Checker) CheckLibrary(lib *loader.Library) {
	for _, d := range lib.ParseDiags {
		c.Sema.Report(d)
	}

	ctx := &libCtx{
		lib:        lib,
		global:     newScope(nil),
		classDef:   nil,
		classType:  nil,
		retType:    nil,
		initField:      -1,
		collectReturns: nil,
		importUses:     make(map[*sema.Binding]*ast.Ident),
		aliasStack:     make(map[*types.AliasDef]bool),
	}

	c.seedScope(ctx)
	c.hoistTypes(ctx)
	c.resolveHeaders(ctx)
	c.checkBodies(ctx)
	for b, name := range ctx.importUses {
		c.warnf(ctx, sema.UnusedImport, name.Span(), "imported name %q is never used", b.Name)
	}
	c.collectExports(ctx)
}

// seedScope populates the library's global scope with prelude exports,
// explicit imports, and, for standard-library modules, the intrinsic
// declarations.
func (c *Checker) seedScope(ctx *libCtx) {
	in := c.Sema.Interner

	if ctx.lib.Stdlib {
		for name, sig := range intrinsicSigs(in) {
			ctx.global.define(name, &sema.Binding{
				Kind:    sema.BindingIntrinsic,
				Library: ctx.lib.Path,
				Name:    name,
				Decl:    nil,
				Def:     nil,
				Type:    sig,
				Mutable: false,
			})
		}
	} else {
		for _, preludePath := range stdlib.PreludePaths() {
			for name, b := range c.exports[preludePath] {
				c.bindImported(ctx, name, b)
			}
		}
	}

	for _, stmt := range ctx.lib.Stmts {
		imp, ok := stmt.(*ast.ImportStmt)
		if !ok {
			continue
		}
		depPath := ctx.lib.Imports[imp.Specifier]
		depExports := c.exports[depPath]
		for _, name := range imp.Names {
			b, ok := depExports[name.Name.Name]
			if !ok {
				c.errorf(ctx, sema.SymbolNotFound, name.Name.Span(),
					"%q is not exported by %s", name.Name.Name, depPath)
				continue
			}
			c.Sema.SetBinding(name.Name, b)
			ctx.importUses[b] = name.Name
			c.bindImported(ctx, name.LocalName(), b)
		}
	}
}

// bindImported binds an imported declaration under a local name. Imports
// bind the exported declaration identity, not merely the name.
func (c *Checker) bindImported(ctx *libCtx, name string, b *sema.Binding) {
	switch b.Kind {
	case sema.BindingType:
		ctx.global.defineType(name, b)
		// Classes and enums are also usable in value position (static
		// member access, constructor references).
		ctx.global.define(name, b)
	default:
		ctx.global.define(name, b)
	}
}

// hoistTypes registers every type declaration with a skeletal definition
// before any header is resolved, enabling mutual recursion and
// self-referential fields.
func (c *Checker) hoistTypes(ctx *libCtx) {
	for _, stmt := range ctx.lib.Stmts {
		declStmt, ok := stmt.(*ast.DeclStmt)
		if !ok {
			continue
		}
		switch d := declStmt.Decl.(type) {
		case *ast.ClassDecl:
			def := &types.ClassDef{
				Library:    ctx.lib.Path,
				Name:       d.Name.Name,
				TypeParams: nil,
				Super:      nil,
				Interfaces: nil,
				Mixins:     nil,
				IsAbstract: d.IsAbstract,
				IsFinal:    d.IsFinal,
				Fields:     nil,
				Methods:    nil,
				Ctor:       nil,
				AST:        d,
			}
			c.defineTypeDecl(ctx, d.Name, &sema.Binding{
				Kind: sema.BindingType, Library: ctx.lib.Path, Name: d.Name.Name,
				Decl: d, Def: def, Type: nil, Mutable: false,
			})
		case *ast.InterfaceDecl:
			def := &types.InterfaceDef{
				Library: ctx.lib.Path, Name: d.Name.Name,
				TypeParams: nil, Extends: nil, Methods: nil, AST: d,
			}
			c.defineTypeDecl(ctx, d.Name, &sema.Binding{
				Kind: sema.BindingType, Library: ctx.lib.Path, Name: d.Name.Name,
				Decl: d, Def: def, Type: nil, Mutable: false,
			})
		case *ast.MixinDecl:
			def := &types.MixinDef{
				Library: ctx.lib.Path, Name: d.Name.Name,
				TypeParams: nil, On: nil, Fields: nil, Methods: nil, AST: d,
			}
			c.defineTypeDecl(ctx, d.Name, &sema.Binding{
				Kind: sema.BindingType, Library: ctx.lib.Path, Name: d.Name.Name,
				Decl: d, Def: def, Type: nil, Mutable: false,
			})
		case *ast.EnumDecl:
			def := &types.EnumDef{
				Library: ctx.lib.Path, Name: d.Name.Name, Members: nil, AST: d,
			}
			for i, m := range d.Members {
				def.Members = append(def.Members, &types.EnumMemberDef{
					Name: m.Name.Name, Value: int32(i),
				})
			}
			c.defineTypeDecl(ctx, d.Name, &sema.Binding{
				Kind: sema.BindingType, Library: ctx.lib.Path, Name: d.Name.Name,
				Decl: d, Def: def, Type: nil, Mutable: false,
			})
		case *ast.TypeAliasDecl:
			def := &types.AliasDef{
				Library: ctx.lib.Path, Name: d.Name.Name,
				TypeParams: nil, Aliased: nil, Distinct: d.Distinct,
			}
			c.defineTypeDecl(ctx, d.Name, &sema.Binding{
				Kind: sema.BindingType, Library: ctx.lib.Path, Name: d.Name.Name,
				Decl: d, Def: def, Type: nil, Mutable: false,
			})
		}
	}
}

func (c *Checker) defineTypeDecl(ctx *libCtx, name *ast.Ident, b *sema.Binding) {
	if !ctx.global.defineType(name.Name, b) {
		c.errorf(ctx, sema.DuplicateDeclaration, name.Span(),
			"%q is declared more than once", name.Name)
		return
	}
	ctx.global.define(name.Name, b)
	c.Sema.SetBinding(name, b)
}

// resolveHeaders fills in every hoisted definition: type parameters,
// superclasses, interface lists, member signatures, alias targets. Function
// declarations are also hoisted here so mutual recursion between functions
// checks cleanly.
func (c *Checker) resolveHeaders(ctx *libCtx) {
	for _, stmt := range ctx.lib.Stmts {
		declStmt, ok := stmt.(*ast.DeclStmt)
		if !ok {
			continue
		}
		switch d := declStmt.Decl.(type) {
		case *ast.ClassDecl:
			c.resolveClassHeader(ctx, d)
		case *ast.InterfaceDecl:
			c.resolveInterfaceHeader(ctx, d)
		case *ast.MixinDecl:
			c.resolveMixinHeader(ctx, d)
		case *ast.TypeAliasDecl:
			c.resolveAliasHeader(ctx, d)
		case *ast.FuncDecl:
			c.resolveFuncHeader(ctx, d)
		}
	}
}

// checkBodies checks value declarations and bodies in source order. Types
// are hoisted, but values initialise strictly in source order; a forward
// value reference resolves to nothing and diagnoses.
func (c *Checker) checkBodies(ctx *libCtx) {
	for _, stmt := range ctx.lib.Stmts {
		switch stmt := stmt.(type) {
		case *ast.DeclStmt:
			switch d := stmt.Decl.(type) {
			case *ast.ClassDecl:
				c.checkClass(ctx, d)
			case *ast.MixinDecl:
				c.checkMixinBodies(ctx, d)
			case *ast.FuncDecl:
				c.checkFuncBody(ctx, d)
			case *ast.LetDecl:
				c.checkLetDecl(ctx, ctx.global, d)
			}
		case *ast.ExprStmt:
			c.inferExpr(ctx, ctx.global, stmt.Expr, nil)
		case *ast.ImportStmt:
			// handled during scope seeding
		default:
			c.checkStmt(ctx, ctx.global, stmt)
		}
	}
}

func (c *Checker) collectExports(ctx *libCtx) {
	table := make(map[string]*sema.Binding)
	for _, stmt := range ctx.lib.Stmts {
		declStmt, ok := stmt.(*ast.DeclStmt)
		if !ok {
			continue
		}
		d := declStmt.Decl
		if !d.Exported() {
			continue
		}
		name := d.DeclName()
		if b := ctx.global.lookupType(name); b != nil && b.Library == ctx.lib.Path {
			table[name] = b
			continue
		}
		if b, _ := ctx.global.lookupValue(name); b != nil && b.Library == ctx.lib.Path {
			table[name] = b
		}
	}
	c.exports[ctx.lib.Path] = table
}

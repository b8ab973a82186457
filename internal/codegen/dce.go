package codegen

import (
	"github.com/loom-lang/loom/internal/ast"
	"github.com/loom-lang/loom/internal/set"
)

// computeReachable walks declarations from the roots (exports of the entry
// library and every top-level statement) and keeps only what is referenced.
// Unused declarations, and with them their functions, globals, and types,
// never reach the module.
func (g *Generator) computeReachable() set.Set[ast.NodeID] {
	reach := set.NewSet[ast.NodeID]()
	var queue []ast.Decl

	mark := func(d ast.Decl) {
		if d == nil || reach.Contains(d.ID()) {
			return
		}
		reach.Add(d.ID())
		queue = append(queue, d)
	}

	markTarget := func(node ast.Node) {
		b := g.sema.Binding(node)
		if b == nil || b.Decl == nil {
			return
		}
		if bd, ok := b.Decl.(ast.Decl); ok {
			if entry := g.unit.ByDecl(bd); entry != nil {
				mark(entry.Decl)
			}
		}
	}

	var walkExpr func(e ast.Expr)
	var walkStmt func(s ast.Stmt)
	var walkAnn func(a ast.TypeAnn)
	var walkPat func(p ast.Pat)

	walkAnn = func(a ast.TypeAnn) {
		switch a := a.(type) {
		case nil:
		case *ast.RefTypeAnn:
			markTarget(a.Name)
			for _, arg := range a.TypeArgs {
				walkAnn(arg)
			}
		case *ast.UnionTypeAnn:
			for _, m := range a.Members {
				walkAnn(m)
			}
		case *ast.TupleTypeAnn:
			for _, e := range a.Elems {
				walkAnn(e)
			}
		case *ast.RecordTypeAnn:
			for _, f := range a.Fields {
				walkAnn(f.TypeAnn)
			}
		case *ast.FuncTypeAnn:
			for _, p := range a.Params {
				walkAnn(p.TypeAnn)
			}
			walkAnn(a.Return)
		case *ast.ArrayTypeAnn:
			walkAnn(a.Elem)
		}
	}

	walkPat = func(p ast.Pat) {
		switch p := p.(type) {
		case *ast.ClassPat:
			walkAnn(p.Class)
		case *ast.EnumPat:
			markTarget(p.Enum)
		}
	}

	walkExpr = func(e ast.Expr) {
		switch e := e.(type) {
		case nil:
		case *ast.IdentExpr:
			markTarget(e)
		case *ast.MemberExpr:
			if ident, ok := e.Object.(*ast.IdentExpr); ok {
				markTarget(ident)
			}
			walkExpr(e.Object)
		case *ast.IndexExpr:
			walkExpr(e.Object)
			walkExpr(e.Index)
		case *ast.CallExpr:
			walkExpr(e.Callee)
			for _, ta := range e.TypeArgs {
				walkAnn(ta)
			}
			for _, a := range e.Args {
				walkExpr(a)
			}
		case *ast.NewExpr:
			walkAnn(e.Class)
			for _, a := range e.Args {
				walkExpr(a)
			}
		case *ast.UnaryExpr:
			walkExpr(e.Arg)
		case *ast.BinaryExpr:
			walkExpr(e.Left)
			walkExpr(e.Right)
		case *ast.AssignExpr:
			walkExpr(e.Target)
			walkExpr(e.Value)
		case *ast.FuncExpr:
			for _, p := range e.Params {
				walkAnn(p.TypeAnn)
			}
			walkAnn(e.Return)
			walkStmt(e.Body)
		case *ast.ArrayLit:
			for _, el := range e.Elems {
				walkExpr(el)
			}
		case *ast.TupleLit:
			for _, el := range e.Elems {
				walkExpr(el)
			}
		case *ast.RecordLit:
			for _, f := range e.Fields {
				walkExpr(f.Value)
			}
		case *ast.MatchExpr:
			walkExpr(e.Scrutinee)
			for _, arm := range e.Arms {
				walkPat(arm.Pattern)
				walkExpr(arm.Body)
			}
		case *ast.IsExpr:
			walkExpr(e.Arg)
			walkAnn(e.TypeAnn)
		case *ast.CastExpr:
			walkExpr(e.Arg)
			walkAnn(e.TypeAnn)
		case *ast.TemplateLit:
			walkExpr(e.Tag)
			for _, ex := range e.Exprs {
				walkExpr(ex)
			}
		}
	}

	walkStmt = func(s ast.Stmt) {
		switch s := s.(type) {
		case nil:
		case *ast.DeclStmt:
			if let, ok := s.Decl.(*ast.LetDecl); ok {
				walkAnn(let.TypeAnn)
				walkExpr(let.Init)
			}
		case *ast.ExprStmt:
			walkExpr(s.Expr)
		case *ast.ReturnStmt:
			walkExpr(s.Value)
		case *ast.IfStmt:
			walkExpr(s.Cond)
			walkStmt(s.Then)
			walkStmt(s.Else)
		case *ast.WhileStmt:
			walkExpr(s.Cond)
			walkStmt(s.Body)
		case *ast.Block:
			// Abstract and intrinsic members carry a nil body.
			if s == nil {
				return
			}
			for _, inner := range s.Stmts {
				walkStmt(inner)
			}
		case *ast.ThrowStmt:
			walkExpr(s.Value)
		case *ast.TryStmt:
			walkStmt(s.Body)
			walkAnn(s.CatchType)
			if s.Catch != nil {
				walkStmt(s.Catch)
			}
			if s.Finally != nil {
				walkStmt(s.Finally)
			}
		}
	}

	walkDecl := func(d ast.Decl) {
		switch d := d.(type) {
		case *ast.LetDecl:
			walkAnn(d.TypeAnn)
			walkExpr(d.Init)
		case *ast.FuncDecl:
			for _, p := range d.Params {
				walkAnn(p.TypeAnn)
			}
			walkAnn(d.Return)
			walkStmt(d.Body)
		case *ast.ClassDecl:
			if d.Super != nil {
				walkAnn(d.Super)
			}
			for _, i := range d.Implements {
				walkAnn(i)
			}
			for _, m := range d.Mixins {
				walkAnn(m)
			}
			walkMembersForRefs(d.Members, walkAnn, walkStmt, walkExpr)
		case *ast.InterfaceDecl:
			for _, i := range d.Extends {
				walkAnn(i)
			}
			walkMembersForRefs(d.Members, walkAnn, walkStmt, walkExpr)
		case *ast.MixinDecl:
			if d.On != nil {
				walkAnn(d.On)
			}
			walkMembersForRefs(d.Members, walkAnn, walkStmt, walkExpr)
		case *ast.TypeAliasDecl:
			walkAnn(d.Aliased)
		}
	}

	// Roots: entry-library exports, every top-level statement, and every
	// top-level binding (their initializers run in the start function).
	for _, entry := range g.unit.Decls {
		if entry.Exported {
			mark(entry.Decl)
		}
		if _, ok := entry.Decl.(*ast.LetDecl); ok {
			mark(entry.Decl)
		}
	}
	for _, lib := range g.unit.TopLevel {
		for _, stmt := range lib.Stmts {
			walkStmt(stmt)
		}
	}

	for len(queue) > 0 {
		d := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		walkDecl(d)
	}
	return reach
}

func walkMembersForRefs(members []ast.ClassMember, walkAnn func(ast.TypeAnn), walkStmt func(ast.Stmt), walkExpr func(ast.Expr)) {
	for _, m := range members {
		switch m := m.(type) {
		case *ast.FieldDecl:
			walkAnn(m.TypeAnn)
			walkExpr(m.Init)
		case *ast.MethodDecl:
			for _, p := range m.Params {
				walkAnn(p.TypeAnn)
			}
			walkAnn(m.Return)
			walkStmt(m.Body)
		case *ast.GetterDecl:
			walkAnn(m.Return)
			walkStmt(m.Body)
		case *ast.SetterDecl:
			walkAnn(m.Param.TypeAnn)
			walkStmt(m.Body)
		case *ast.CtorDecl:
			for _, p := range m.Params {
				walkAnn(p.TypeAnn)
			}
			walkStmt(m.Body)
		}
	}
}

// declReachable reports whether a bundled declaration survives DCE.
func (g *Generator) declReachable(d ast.Decl) bool {
	if g.reachable == nil {
		return true
	}
	return g.reachable.Contains(d.ID())
}

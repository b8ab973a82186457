// Package test_util provides AST construction helpers and a compilation
// harness for tests. The front-end is out of scope for this repository, so
// tests build statement trees directly and hand them to the loader through a
// stub parse function.
package test_util

import (
	"sync"

	"github.com/loom-lang/loom/internal/ast"
	"github.com/loom-lang/loom/internal/checker"
	"github.com/loom-lang/loom/internal/compiler"
	"github.com/loom-lang/loom/internal/host"
	"github.com/loom-lang/loom/internal/loader"
	"github.com/loom-lang/loom/internal/parser"
	"github.com/loom-lang/loom/internal/sema"
)

var (
	lineMu   sync.Mutex
	lineNext int
)

// Sp produces a fresh single-line span so every node has a distinct
// location.
func Sp() ast.Span {
	lineMu.Lock()
	lineNext++
	line := lineNext
	lineMu.Unlock()
	return ast.NewSpan(ast.Location{Line: line, Column: 1}, ast.Location{Line: line, Column: 2}, 0)
}

func Id(name string) *ast.Ident { return ast.NewIdent(name, Sp()) }

// Type annotations

func Ref(name string, args ...ast.TypeAnn) *ast.RefTypeAnn {
	return ast.NewRefTypeAnn(Id(name), args, Sp())
}

func Union(members ...ast.TypeAnn) *ast.UnionTypeAnn {
	return ast.NewUnionTypeAnn(members, Sp())
}

func LitAnn(lit ast.Expr) *ast.LitTypeAnn {
	return ast.NewLitTypeAnn(lit, Sp())
}

func FixedArrAnn(elem ast.TypeAnn) *ast.ArrayTypeAnn {
	return ast.NewArrayTypeAnn(elem, true, Sp())
}

func FnAnn(params []*ast.Param, ret ast.TypeAnn) *ast.FuncTypeAnn {
	return ast.NewFuncTypeAnn(params, ret, Sp())
}

// Expressions

func Int(v int64) *ast.IntLit       { return ast.NewIntLit(v, Sp()) }
func Flt(v float64) *ast.FloatLit   { return ast.NewFloatLit(v, Sp()) }
func Str(v string) *ast.StrLit      { return ast.NewStrLit(v, Sp()) }
func Bool(v bool) *ast.BoolLit      { return ast.NewBoolLit(v, Sp()) }
func Null() *ast.NullLit            { return ast.NewNullLit(Sp()) }
func Use(name string) *ast.IdentExpr { return ast.NewIdentExpr(name, Sp()) }
func This() *ast.ThisExpr           { return ast.NewThisExpr(Sp()) }

func Member(obj ast.Expr, name string) *ast.MemberExpr {
	return ast.NewMemberExpr(obj, Id(name), Sp())
}

func Index(obj, idx ast.Expr) *ast.IndexExpr {
	return ast.NewIndexExpr(obj, idx, Sp())
}

func Call(callee ast.Expr, args ...ast.Expr) *ast.CallExpr {
	return ast.NewCallExpr(callee, nil, args, Sp())
}

func CallT(callee ast.Expr, typeArgs []ast.TypeAnn, args ...ast.Expr) *ast.CallExpr {
	return ast.NewCallExpr(callee, typeArgs, args, Sp())
}

func New(class *ast.RefTypeAnn, args ...ast.Expr) *ast.NewExpr {
	return ast.NewNewExpr(class, args, Sp())
}

func Bin(op ast.BinaryOp, l, r ast.Expr) *ast.BinaryExpr {
	return ast.NewBinaryExpr(op, l, r, Sp())
}

func Un(op ast.UnaryOp, arg ast.Expr) *ast.UnaryExpr {
	return ast.NewUnaryExpr(op, arg, Sp())
}

func Assign(target, value ast.Expr) *ast.AssignExpr {
	return ast.NewAssignExpr(target, value, Sp())
}

func Closure(params []*ast.Param, ret ast.TypeAnn, body *ast.Block) *ast.FuncExpr {
	return ast.NewFuncExpr(params, ret, body, Sp())
}

func FixedArr(elems ...ast.Expr) *ast.ArrayLit {
	return ast.NewArrayLit(elems, true, Sp())
}

func Tup(elems ...ast.Expr) *ast.TupleLit {
	return ast.NewTupleLit(elems, Sp())
}

func Rec(fields ...*ast.RecordField) *ast.RecordLit {
	return ast.NewRecordLit(fields, Sp())
}

func RF(name string, value ast.Expr) *ast.RecordField {
	return &ast.RecordField{Name: Id(name), Value: value}
}

func Match(scrut ast.Expr, arms ...*ast.MatchArm) *ast.MatchExpr {
	return ast.NewMatchExpr(scrut, arms, Sp())
}

func Arm(pat ast.Pat, body ast.Expr) *ast.MatchArm {
	return ast.NewMatchArm(pat, body, Sp())
}

func LitP(lit ast.Expr) *ast.LitPat               { return ast.NewLitPat(lit, Sp()) }
func ClassP(class *ast.RefTypeAnn, bind string) *ast.ClassPat {
	var b *ast.Ident
	if bind != "" {
		b = Id(bind)
	}
	return ast.NewClassPat(class, b, Sp())
}
func EnumP(enum, member string) *ast.EnumPat { return ast.NewEnumPat(Id(enum), Id(member), Sp()) }
func WildP() *ast.WildcardPat                { return ast.NewWildcardPat(Sp()) }

func Is(arg ast.Expr, ann ast.TypeAnn) *ast.IsExpr   { return ast.NewIsExpr(arg, ann, Sp()) }
func Cast(arg ast.Expr, ann ast.TypeAnn) *ast.CastExpr { return ast.NewCastExpr(arg, ann, Sp()) }

func Tmpl(tag ast.Expr, quasis []string, exprs ...ast.Expr) *ast.TemplateLit {
	return ast.NewTemplateLit(tag, quasis, exprs, Sp())
}

// Statements and declarations

func Param(name string, ann ast.TypeAnn) *ast.Param {
	return ast.NewParam(Id(name), ann)
}

func TP(name string) *ast.TypeParam { return ast.NewTypeParam(Id(name), nil, nil) }

func TPc(name string, constraint ast.TypeAnn) *ast.TypeParam {
	return ast.NewTypeParam(Id(name), constraint, nil)
}

func Block(stmts ...ast.Stmt) *ast.Block { return ast.NewBlock(stmts, Sp()) }

func Ret(value ast.Expr) *ast.ReturnStmt { return ast.NewReturnStmt(value, Sp()) }

func ExprS(e ast.Expr) *ast.ExprStmt { return ast.NewExprStmt(e, Sp()) }

func If(cond ast.Expr, then *ast.Block, else_ ast.Stmt) *ast.IfStmt {
	return ast.NewIfStmt(cond, then, else_, Sp())
}

func While(cond ast.Expr, body *ast.Block) *ast.WhileStmt {
	return ast.NewWhileStmt(cond, body, Sp())
}

func Throw(value ast.Expr) *ast.ThrowStmt { return ast.NewThrowStmt(value, Sp()) }

func Try(body *ast.Block, catchName string, catch *ast.Block, finally *ast.Block) *ast.TryStmt {
	var name *ast.Ident
	if catchName != "" {
		name = Id(catchName)
	}
	return ast.NewTryStmt(body, name, nil, catch, finally, Sp())
}

func Import(specifier string, names ...string) *ast.ImportStmt {
	imports := make([]*ast.ImportName, len(names))
	for i, n := range names {
		imports[i] = &ast.ImportName{Name: Id(n), Alias: nil}
	}
	return ast.NewImportStmt(specifier, imports, Sp())
}

func ImportAs(specifier, name, alias string) *ast.ImportStmt {
	return ast.NewImportStmt(specifier, []*ast.ImportName{
		{Name: Id(name), Alias: Id(alias)},
	}, Sp())
}

func DeclS(d ast.Decl) *ast.DeclStmt { return ast.NewDeclStmt(d, Sp()) }

func Let(name string, init ast.Expr) *ast.DeclStmt {
	return DeclS(ast.NewLetDecl(ast.LetKindLet, Id(name), nil, init, false, Sp()))
}

func LetAnn(name string, ann ast.TypeAnn, init ast.Expr) *ast.DeclStmt {
	return DeclS(ast.NewLetDecl(ast.LetKindLet, Id(name), ann, init, false, Sp()))
}

func VarD(name string, init ast.Expr) *ast.DeclStmt {
	return DeclS(ast.NewLetDecl(ast.LetKindVar, Id(name), nil, init, false, Sp()))
}

func ExportLet(name string, init ast.Expr) *ast.DeclStmt {
	return DeclS(ast.NewLetDecl(ast.LetKindLet, Id(name), nil, init, true, Sp()))
}

func Fn(name string, params []*ast.Param, ret ast.TypeAnn, body *ast.Block) *ast.DeclStmt {
	return DeclS(ast.NewFuncDecl(Id(name), nil, params, ret, body, false, Sp()))
}

func ExportFn(name string, params []*ast.Param, ret ast.TypeAnn, body *ast.Block) *ast.DeclStmt {
	return DeclS(ast.NewFuncDecl(Id(name), nil, params, ret, body, true, Sp()))
}

func GenericFn(name string, typeParams []*ast.TypeParam, params []*ast.Param, ret ast.TypeAnn, body *ast.Block) *ast.DeclStmt {
	return DeclS(ast.NewFuncDecl(Id(name), typeParams, params, ret, body, false, Sp()))
}

// Class members: callers flip the exported flag fields for variants.

func Field(name string, ann ast.TypeAnn, init ast.Expr) *ast.FieldDecl {
	return ast.NewFieldDecl(Id(name), ann, init, Sp())
}

func Method(name string, params []*ast.Param, ret ast.TypeAnn, body *ast.Block) *ast.MethodDecl {
	return ast.NewMethodDecl(Id(name), nil, params, ret, body, Sp())
}

func Ctor(params []*ast.Param, body *ast.Block) *ast.CtorDecl {
	return ast.NewCtorDecl(params, body, Sp())
}

func ClassD(name string, members ...ast.ClassMember) *ast.ClassDecl {
	return ast.NewClassDecl(Id(name), nil, nil, members, Sp())
}

func EnumD(name string, members ...string) *ast.EnumDecl {
	ms := make([]*ast.EnumMember, len(members))
	for i, m := range members {
		ms[i] = ast.NewEnumMember(Id(m), Sp())
	}
	return ast.NewEnumDecl(Id(name), ms, Sp())
}

// Compilation harness

// Program maps canonical paths to pre-parsed statements.
type Program map[string][]ast.Stmt

// ParseFuncFor serves pre-parsed statements by path.
func ParseFuncFor(prog Program) parser.Func {
	return func(src *ast.Source) ([]ast.Stmt, []*sema.Diagnostic) {
		return prog[src.Path], nil
	}
}

// HostFor serves empty text for every program path; statements come from the
// stub parse function.
func HostFor(prog Program) host.Host {
	files := make(map[string]string, len(prog))
	for path := range prog {
		files[path] = "\n"
	}
	return host.NewMapHost(files)
}

// CheckProgram loads and checks a program, returning the shared semantic
// context and the computed graph.
func CheckProgram(entry string, prog Program) (*sema.Context, *loader.Graph, error) {
	ld := loader.NewLoader(HostFor(prog), ParseFuncFor(prog))
	graph, err := ld.ComputeGraph(entry)
	if err != nil {
		return nil, nil, err
	}
	semaCtx := sema.NewContext()
	chk := checker.New(semaCtx)
	chk.CheckGraph(graph)
	return semaCtx, graph, nil
}

// CompileProgram runs the whole pipeline over a program.
func CompileProgram(entry string, prog Program) (*compiler.Result, error) {
	return compiler.Compile(entry, compiler.Options{
		Host:   HostFor(prog),
		Parse:  ParseFuncFor(prog),
		Target: compiler.TargetBrowser,
		DCE:    true,
		Debug:  true,
	})
}

// Diags flattens diagnostics into "<code>: <message>" strings for
// assertions.
func Diags(diags []*sema.Diagnostic) []string {
	out := make([]string, len(diags))
	for i, d := range diags {
		out[i] = string(d.Code) + ": " + d.Message
	}
	return out
}

// HasCode reports whether any diagnostic carries the code.
func HasCode(diags []*sema.Diagnostic, code sema.Code) bool {
	for _, d := range diags {
		if d.Code == code {
			return true
		}
	}
	return false
}

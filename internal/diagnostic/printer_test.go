package diagnostic

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/loom-lang/loom/internal/ast"
	"github.com/loom-lang/loom/internal/sema"
)

func TestPrintFormat(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	d := sema.NewError(sema.SymbolNotFound, "/main.loom",
		ast.NewSpan(ast.Location{Line: 2, Column: 5}, ast.Location{Line: 2, Column: 9}, 1),
		"unknown name %q", "foo")
	p.Print(d, "let a = 1\nlet b = foo\n")

	out := buf.String()
	assert.Contains(t, out, `/main.loom:2:5: error: unknown name "foo" [SymbolNotFound]`)
	assert.Contains(t, out, "let b = foo")
	assert.Contains(t, out, "    ^^^^")
}

func TestPrintWithoutLocation(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	p.Print(&sema.Diagnostic{
		Code: sema.ImportCycle, Message: "cycle", Severity: sema.SeverityError,
		File: "", Span: ast.Span{},
	}, "")
	assert.Equal(t, "error: cycle [ImportCycle]\n", buf.String())
}

func TestPrintWarning(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	d := sema.NewWarning(sema.UnusedImport, "/main.loom",
		ast.NewSpan(ast.Location{Line: 1, Column: 1}, ast.Location{Line: 1, Column: 2}, 1),
		"imported name %q is never used", "x")
	p.Print(d, "")
	assert.Contains(t, buf.String(), "warning:")
	assert.Contains(t, buf.String(), "[UnusedImport]")
}

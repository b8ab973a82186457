// Package diagnostic renders diagnostics for terminals:
//
//	<file>:<line>:<col>: <severity>: <message> [<code>]
//
// followed by the offending source line and a caret span.
package diagnostic

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/loom-lang/loom/internal/sema"
)

type Printer struct {
	w     io.Writer
	color bool
}

func NewPrinter(w io.Writer) *Printer {
	colored := false
	if f, ok := w.(*os.File); ok {
		colored = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Printer{w: w, color: colored}
}

var (
	errColor  = color.New(color.FgRed, color.Bold)
	warnColor = color.New(color.FgYellow, color.Bold)
	locColor  = color.New(color.Bold)
)

// Print writes one diagnostic. source is the text of the file the
// diagnostic points into; pass "" when unavailable and the caret line is
// omitted.
func (p *Printer) Print(d *sema.Diagnostic, source string) {
	sev := d.Severity.String()
	loc := ""
	if d.File != "" {
		loc = fmt.Sprintf("%s:%d:%d: ", d.File, d.Span.Start.Line, d.Span.Start.Column)
	}
	if p.color {
		c := errColor
		if d.Severity == sema.SeverityWarning {
			c = warnColor
		}
		fmt.Fprintf(p.w, "%s%s: %s [%s]\n", locColor.Sprint(loc), c.Sprint(sev), d.Message, d.Code)
	} else {
		fmt.Fprintf(p.w, "%s%s: %s [%s]\n", loc, sev, d.Message, d.Code)
	}

	if source == "" || d.Span.Start.Line <= 0 {
		return
	}
	lines := strings.Split(source, "\n")
	if d.Span.Start.Line > len(lines) {
		return
	}
	line := lines[d.Span.Start.Line-1]
	fmt.Fprintf(p.w, "  %s\n", line)

	col := d.Span.Start.Column
	if col < 1 {
		col = 1
	}
	width := 1
	if d.Span.End.Line == d.Span.Start.Line && d.Span.End.Column > d.Span.Start.Column {
		width = d.Span.End.Column - d.Span.Start.Column
	}
	caret := strings.Repeat(" ", col-1) + strings.Repeat("^", width)
	fmt.Fprintf(p.w, "  %s\n", caret)
}

// PrintAll prints each diagnostic, resolving source text through lookup.
func (p *Printer) PrintAll(diags []*sema.Diagnostic, lookup func(path string) string) {
	for _, d := range diags {
		source := ""
		if lookup != nil && d.File != "" {
			source = lookup(d.File)
		}
		p.Print(d, source)
	}
}

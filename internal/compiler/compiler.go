// Package compiler wires the pipeline together: load, check, bundle, and
// generate a single WebAssembly module from one entry library.
package compiler

import (
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/loom-lang/loom/internal/bundler"
	"github.com/loom-lang/loom/internal/checker"
	"github.com/loom-lang/loom/internal/codegen"
	"github.com/loom-lang/loom/internal/host"
	"github.com/loom-lang/loom/internal/loader"
	"github.com/loom-lang/loom/internal/parser"
	"github.com/loom-lang/loom/internal/sema"
)

type Target string

const (
	TargetBrowser Target = "browser"
	TargetWASI    Target = "wasi"
)

type Options struct {
	Host  host.Host
	Parse parser.Func
	// Target selects the host conventions of the emitted module.
	Target Target
	// DCE removes declarations unreachable from the entry library's
	// exports and top-level statements.
	DCE bool
	// Debug embeds original names in the name section and enables trace
	// output on stderr.
	Debug bool
}

type Result struct {
	// ID tags one compilation session; it appears in debug traces.
	ID          uuid.UUID
	Graph       *loader.Graph
	Diagnostics []*sema.Diagnostic
	OutputBytes []byte
	// Dump is a deterministic textual outline of the module, for tests and
	// the --dump flag.
	Dump string
}

// HasErrors reports whether any error-severity diagnostic was produced.
func (r *Result) HasErrors() bool {
	for _, d := range r.Diagnostics {
		if d.Severity == sema.SeverityError {
			return true
		}
	}
	return false
}

// Compile runs the whole pipeline. Host failures (a missing entry path, an
// I/O error) return a Go error; language-level problems surface as
// diagnostics on the result.
func Compile(entryPath string, opts Options) (*Result, error) {
	result := &Result{
		ID: uuid.New(), Graph: nil, Diagnostics: nil, OutputBytes: nil, Dump: "",
	}

	if opts.Debug {
		fmt.Fprintf(os.Stderr, "DEBUG: compile %s session=%s\n", entryPath, result.ID)
	}

	ld := loader.NewLoader(opts.Host, opts.Parse)
	graph, err := ld.ComputeGraph(entryPath)
	if err != nil {
		return nil, err
	}
	result.Graph = graph

	semaCtx := sema.NewContext()
	chk := checker.New(semaCtx)
	chk.CheckGraph(graph)
	result.Diagnostics = semaCtx.Diagnostics

	if result.HasErrors() {
		return result, nil
	}

	unit := bundler.Bundle(graph)
	gen := codegen.New(semaCtx, unit, codegen.Options{
		Target: codegen.Target(opts.Target),
		DCE:    opts.DCE,
		Debug:  opts.Debug,
	})
	bytes, dump, err := gen.Generate()
	if err != nil {
		// Codegen failures are fatal for the whole compile.
		return nil, err
	}
	result.OutputBytes = bytes
	result.Dump = dump

	if opts.Debug {
		fmt.Fprintf(os.Stderr, "DEBUG: emitted %d bytes for %d libraries\n",
			len(bytes), len(graph.Sorted))
	}
	return result, nil
}

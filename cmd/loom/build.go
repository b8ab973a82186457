package main

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/loom-lang/loom/internal/compiler"
	"github.com/loom-lang/loom/internal/diagnostic"
	"github.com/loom-lang/loom/internal/host"
	"github.com/loom-lang/loom/internal/loader"
	"github.com/loom-lang/loom/internal/parser"
)

type buildFlags struct {
	target string
	out    string
	dump   bool
	noDCE  bool
	debug  bool
}

// projectConfig is the optional loom.yaml next to the entry library. Flags
// override file values.
type projectConfig struct {
	Entry  string `yaml:"entry"`
	Target string `yaml:"target"`
	Output string `yaml:"output"`
	DCE    *bool  `yaml:"dce"`
	Debug  bool   `yaml:"debug"`
}

func loadConfig() *projectConfig {
	cfg := &projectConfig{Entry: "", Target: "", Output: "", DCE: nil, Debug: false}
	data, err := os.ReadFile("loom.yaml")
	if err != nil {
		return cfg
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "warning: ignoring malformed loom.yaml: %v\n", err)
		return &projectConfig{Entry: "", Target: "", Output: "", DCE: nil, Debug: false}
	}
	return cfg
}

func build(stdout, stderr io.Writer, args []string, flags buildFlags) int {
	cfg := loadConfig()

	entry := cfg.Entry
	if len(args) > 0 {
		entry = args[0]
	}
	if entry == "" {
		fmt.Fprintln(stderr, "usage: loom build <entry.loom>")
		return 1
	}

	target := compiler.TargetBrowser
	switch {
	case flags.target != "":
		target = compiler.Target(flags.target)
	case cfg.Target != "":
		target = compiler.Target(cfg.Target)
	}
	if target != compiler.TargetBrowser && target != compiler.TargetWASI {
		fmt.Fprintf(stderr, "unknown target %q\n", target)
		return 1
	}

	dce := !flags.noDCE
	if cfg.DCE != nil && !flags.noDCE {
		dce = *cfg.DCE
	}

	if parser.Default == nil {
		fmt.Fprintln(stderr, "no front-end is linked into this build")
		return 1
	}

	h := host.NewOSHost(".")
	result, err := compiler.Compile(entry, compiler.Options{
		Host:   h,
		Parse:  parser.Default,
		Target: target,
		DCE:    dce,
		Debug:  flags.debug || cfg.Debug,
	})
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	printer := diagnostic.NewPrinter(stderr)
	printer.PrintAll(result.Diagnostics, func(path string) string {
		text, err := h.Load(path)
		if err != nil {
			return ""
		}
		return text
	})
	if result.HasErrors() {
		return 1
	}

	if flags.dump {
		fmt.Fprint(stdout, result.Dump)
	}

	out := flags.out
	if out == "" {
		out = cfg.Output
	}
	if out == "" {
		out = "out.wasm"
	}
	if err := os.WriteFile(out, result.OutputBytes, 0o644); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}

func printGraph(stdout, stderr io.Writer, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "usage: loom graph <entry.loom>")
		return 1
	}
	h := host.NewOSHost(".")
	// The graph needs parsed imports; parsing is the front-end's job.
	if parser.Default == nil {
		fmt.Fprintln(stderr, "no front-end is linked into this build")
		return 1
	}
	ld := loader.NewLoader(h, parser.Default)
	graph, err := ld.ComputeGraph(args[0])
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	for _, lib := range graph.Sorted {
		fmt.Fprintln(stdout, lib.Path)
	}
	if graph.HasCycle {
		fmt.Fprintln(stdout, "cycle through:")
		for _, p := range graph.CycleMembers {
			fmt.Fprintln(stdout, "  "+p)
		}
	}
	return 0
}

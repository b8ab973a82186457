package main

import (
	"flag"
	"fmt"
	"os"
)

func main() {
	buildCmd := flag.NewFlagSet("build", flag.ExitOnError)
	graphCmd := flag.NewFlagSet("graph", flag.ExitOnError)

	if len(os.Args) < 2 {
		fmt.Println("expected 'build' or 'graph' subcommands")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "build":
		target := buildCmd.String("target", "", "output target: browser or wasi")
		out := buildCmd.String("o", "", "output file")
		dump := buildCmd.Bool("dump", false, "print a textual outline of the module")
		noDCE := buildCmd.Bool("no-dce", false, "keep unreachable declarations")
		debug := buildCmd.Bool("debug", false, "embed original names and trace")
		if err := buildCmd.Parse(os.Args[2:]); err != nil {
			fmt.Println("failed to parse build command")
			os.Exit(1)
		}
		os.Exit(build(os.Stdout, os.Stderr, buildCmd.Args(), buildFlags{
			target: *target, out: *out, dump: *dump, noDCE: *noDCE, debug: *debug,
		}))
	case "graph":
		if err := graphCmd.Parse(os.Args[2:]); err != nil {
			fmt.Println("failed to parse graph command")
			os.Exit(1)
		}
		os.Exit(printGraph(os.Stdout, os.Stderr, graphCmd.Args()))
	default:
		fmt.Println("expected 'build' or 'graph' subcommands")
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "run":
		err = cmdRun(os.Args[2:])
	case "process":
		err = cmdProcess(os.Args[2:])
	case "classify":
		err = cmdClassify(os.Args[2:])
	case "scan":
		err = cmdScan(os.Args[2:])
	case "evaluate":
		err = cmdEvaluate(os.Args[2:])
	case "init":
		err = cmdInit(os.Args[2:])
	case "help", "-h", "--help":
		usage()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `libsurgeon - static library and ELF decompilation with Ghidra

Usage:
  libsurgeon run      [flags] <file|dir>        Decompile archives and ELF images
  libsurgeon process  --export <json> --out <dir> Post-process an existing export
  libsurgeon classify --export <json> [--json]   Show the module key of every function
  libsurgeon scan     [flags] <dir>              List decompilable inputs
  libsurgeon evaluate [flags] <src-dir>          Score decompiled sources
  libsurgeon init     [--dir <dir>]              Write a default libsurgeon.yaml

Run flags:
  --ghidra <dir>          Ghidra installation (auto-detected if omitted)
  --out, -o <dir>         Output directory (default: ./libsurgeon_output)
  --jobs, -j <n>          Parallel units per archive (default: 1)
  --include, -i <glob>    Only inputs matching the pattern (repeatable)
  --exclude, -e <glob>    Skip inputs matching the pattern (repeatable)
  --strategy <name>       Grouping: prefix, alpha, camelcase, single
  --timeout <sec>         Per-unit limit (default: 300)
  --evaluate              Score the output after decompiling
  --list                  List inputs or archive members and exit
  --no-skip               Decompile units whose output already exists
  --clean, -c             Remove previous output first
  --config <file>         Configuration file (default: nearest libsurgeon.yaml)
  --no-color              Disable colored output
  -v                      Debug logging

Supported inputs:
  Archives: .a, .lib
  ELF:      .so, .so.N, .elf, .axf, .out, .o
`)
}

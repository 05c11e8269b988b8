package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/apex/log"

	"libsurgeon/internal/elfx"
	"libsurgeon/internal/ghidra"
	"libsurgeon/internal/output"
	"libsurgeon/internal/pipeline"
)

// cmdProcess post-processes an export written earlier by the headless
// script, without running the decompiler.
func cmdProcess(args []string) error {
	fs := flag.NewFlagSet("process", flag.ExitOnError)
	o := addOutputFlags(fs)
	configPath := fs.String("config", "", "configuration file")
	exportPath := fs.String("export", "", "export JSON written by "+ghidra.ScriptName)
	outDir := fs.String("out", "", "output directory")
	member := fs.String("member", "", "treat the export as this archive member (object layout)")
	image := fs.String("image", "", "ELF image to read vtables from when the export lacks the bytes")
	strategy := fs.String("strategy", "", "grouping strategy: prefix, alpha, camelcase, single")
	noAnnotate := fs.Bool("no-annotate", false, "leave vtable and offset comments out")

	if err := fs.Parse(args); err != nil {
		return err
	}
	o.apply()
	if *exportPath == "" || *outDir == "" {
		return fmt.Errorf("--export and --out are required")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *strategy != "" {
		cfg.Strategy = *strategy
	}
	opts, err := pipelineOptions(cfg)
	if err != nil {
		return err
	}
	if *noAnnotate {
		opts.Annotate = false
	}

	e, err := ghidra.Load(*exportPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "export: %s (%d functions, %s)\n", e.Program, len(e.Functions), e.Language)
	if f := e.DebugFormat(); f != "" {
		fmt.Fprintf(os.Stderr, "debug information detected: %s (%s)\n", f, strings.Join(e.DebugSections, ", "))
	}

	var sum *output.Summary
	if *member != "" {
		sum, err = pipeline.Object(*outDir, *member, e, opts)
	} else {
		opts.SkipStubs = true
		if *image != "" {
			f, err := elfx.Open(*image)
			if err != nil {
				return err
			}
			defer f.Close()
			opts.Image = f
			opts.Arch = f.Arch()
			log.Debugf("image: %s (%s, %d-byte pointers)", *image, f.Arch(), f.PointerSize())
		}
		sum, err = pipeline.Executable(*outDir, e, opts)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "wrote %s (%d modules, %d functions, %d failed, %d lines)\n",
		*outDir, len(sum.Modules), sum.Functions, sum.Failed, sum.Lines)
	if sum.Classes.Classes > 0 {
		fmt.Fprintf(os.Stderr, "  classes: %d, vtables: %d, virtual methods: %d\n",
			sum.Classes.Classes, sum.Classes.VTables, sum.Classes.VirtualMethods)
	}
	return nil
}

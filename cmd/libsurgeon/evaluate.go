package main

import (
	"flag"
	"fmt"
	"os"

	"libsurgeon/internal/quality"
)

func cmdEvaluate(args []string) error {
	fs := flag.NewFlagSet("evaluate", flag.ExitOnError)
	o := addOutputFlags(fs)
	pattern := fs.String("pattern", "*.cpp", "file pattern to evaluate")
	jsonPath := fs.String("json", "", "write the report as JSON to this path")

	if err := fs.Parse(args); err != nil {
		return err
	}
	o.apply()
	if fs.NArg() != 1 {
		return fmt.Errorf("evaluate: a source directory is required")
	}

	r, err := quality.EvaluateDir(fs.Arg(0), *pattern)
	if err != nil {
		return err
	}
	r.Print(os.Stdout, *o.verbose)
	if *jsonPath != "" {
		if err := r.WriteJSON(*jsonPath); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "wrote %s\n", *jsonPath)
	}
	if !quality.Passing(r.Grade) {
		return fmt.Errorf("quality grade %s (average %.1f)", r.Grade, r.AvgScore)
	}
	return nil
}

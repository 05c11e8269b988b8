package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"libsurgeon/internal/batch"
)

func cmdScan(args []string) error {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	o := addOutputFlags(fs)
	configPath := fs.String("config", "", "configuration file")
	var include, exclude stringList
	fs.Var(&include, "include", "only inputs matching pattern (repeatable)")
	fs.Var(&exclude, "exclude", "skip inputs matching pattern (repeatable)")
	noRecursive := fs.Bool("no-recursive", false, "scan only the top level of a directory")
	members := fs.Bool("members", false, "list the members of every archive")
	jsonOut := fs.Bool("json", false, "output as JSON")

	if err := fs.Parse(args); err != nil {
		return err
	}
	o.apply()
	if fs.NArg() != 1 {
		return fmt.Errorf("scan: a directory is required")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if len(include) > 0 {
		cfg.Include = include
	}
	if len(exclude) > 0 {
		cfg.Exclude = exclude
	}
	if *noRecursive {
		recursive := false
		cfg.Recursive = &recursive
	}

	s, err := batch.Scan(fs.Arg(0), cfg.Include, cfg.Exclude, *cfg.Recursive)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "found %d archives, %d ELF files\n", len(s.Archives), len(s.Executables))

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string][]string{"archives": s.Archives, "elf_files": s.Executables})
	}
	if !*members {
		printScan(s)
		return nil
	}
	ctx := context.Background()
	for _, a := range s.Archives {
		names, err := batch.ListArchive(ctx, a)
		if err != nil {
			return err
		}
		fmt.Printf("%s (%d members)\n", a, len(names))
		for _, n := range names {
			fmt.Printf("  %s\n", n)
		}
	}
	return nil
}

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"libsurgeon/internal/ghidra"
	"libsurgeon/internal/symbols"
)

type classifyRow struct {
	Address   string `json:"address"`
	Name      string `json:"name"`
	Display   string `json:"display"`
	Class     string `json:"class,omitempty"`
	Namespace string `json:"namespace,omitempty"`
	Module    string `json:"module"`

	addr uint64
}

func cmdClassify(args []string) error {
	fs := flag.NewFlagSet("classify", flag.ExitOnError)
	o := addOutputFlags(fs)
	configPath := fs.String("config", "", "configuration file")
	exportPath := fs.String("export", "", "export JSON written by "+ghidra.ScriptName)
	strategy := fs.String("strategy", "", "grouping strategy: prefix, alpha, camelcase, single")
	jsonOut := fs.Bool("json", false, "output as JSON")
	summary := fs.Bool("summary", false, "print module sizes only")

	if err := fs.Parse(args); err != nil {
		return err
	}
	o.apply()
	if *exportPath == "" {
		return fmt.Errorf("--export is required")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *strategy != "" {
		cfg.Strategy = *strategy
	}
	s, err := cfg.GroupingStrategy()
	if err != nil {
		return err
	}
	e, err := ghidra.Load(*exportPath)
	if err != nil {
		return err
	}

	c := symbols.Classifier{Strategy: s, Demangler: symbols.ItaniumDemangler{}}
	funcs, skipped := c.ClassifyAll(e.FunctionSymbols())
	groups := symbols.Group(funcs)
	keys := symbols.Keys(groups)
	fmt.Fprintf(os.Stderr, "%d functions, %d skipped, %d modules (%s)\n", len(funcs), skipped, len(keys), s.Name())

	if *summary {
		for _, k := range keys {
			fmt.Printf("%6d  %s\n", len(groups[k]), k)
		}
		return nil
	}

	var rows []classifyRow
	for _, k := range keys {
		for _, f := range groups[k] {
			rows = append(rows, classifyRow{
				Address:   fmt.Sprintf("0x%x", f.Address),
				Name:      f.Name,
				Display:   f.DisplayName,
				Class:     f.ClassName,
				Namespace: f.Namespace,
				Module:    f.ModuleKey,
				addr:      f.Address,
			})
		}
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}
	for _, r := range rows {
		fmt.Printf("%-24s 0x%08x  %s\n", r.Module, r.addr, r.Display)
	}
	return nil
}

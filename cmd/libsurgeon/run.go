package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/apex/log"

	"libsurgeon/internal/batch"
	"libsurgeon/internal/config"
	"libsurgeon/internal/elfx"
	"libsurgeon/internal/ghidra"
	"libsurgeon/internal/ledger"
)

func cmdRun(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	out := addOutputFlags(fs)
	configPath := fs.String("config", "", "configuration file")
	ghidraHome := fs.String("ghidra", "", "Ghidra installation directory (auto-detected if omitted)")
	scriptDir := fs.String("scripts", "", "directory holding "+ghidra.ScriptName)
	var outDir string
	fs.StringVar(&outDir, "out", "./libsurgeon_output", "output directory")
	fs.StringVar(&outDir, "o", "./libsurgeon_output", "output directory (shorthand)")
	var jobs int
	fs.IntVar(&jobs, "jobs", 1, "parallel units per archive")
	fs.IntVar(&jobs, "j", 1, "parallel units per archive (shorthand)")
	var include, exclude stringList
	fs.Var(&include, "include", "only inputs matching pattern (repeatable)")
	fs.Var(&include, "i", "only inputs matching pattern (shorthand)")
	fs.Var(&exclude, "exclude", "skip inputs matching pattern (repeatable)")
	fs.Var(&exclude, "e", "skip inputs matching pattern (shorthand)")
	strategy := fs.String("strategy", "", "grouping strategy: prefix, alpha, camelcase, single")
	timeout := fs.Int("timeout", 0, "per-unit timeout in seconds")
	funcTimeout := fs.Int("function-timeout", 0, "per-function decompiler timeout in seconds")
	noRecursive := fs.Bool("no-recursive", false, "scan only the top level of a directory")
	evaluate := fs.Bool("evaluate", false, "score the output after decompiling")
	list := fs.Bool("list", false, "list inputs or archive members and exit")
	noSkip := fs.Bool("no-skip", false, "decompile units whose output already exists")
	noAnnotate := fs.Bool("no-annotate", false, "leave vtable and offset comments out")
	noLedger := fs.Bool("no-ledger", false, "do not record or consult the run ledger")
	keepExports := fs.Bool("keep-exports", false, "keep each unit's export JSON under logs/")
	var clean bool
	fs.BoolVar(&clean, "clean", false, "remove previous output first")
	fs.BoolVar(&clean, "c", false, "remove previous output first (shorthand)")

	if err := fs.Parse(args); err != nil {
		return err
	}
	out.apply()
	if fs.NArg() != 1 {
		return fmt.Errorf("run: exactly one target file or directory is required")
	}
	target := fs.Arg(0)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	set := setFlags(fs)
	if *ghidraHome != "" {
		cfg.GhidraHome = *ghidraHome
	}
	if *scriptDir != "" {
		cfg.ScriptDir = *scriptDir
	}
	if set["jobs"] || set["j"] {
		cfg.Jobs = jobs
	}
	if *strategy != "" {
		cfg.Strategy = *strategy
	}
	if *timeout != 0 {
		cfg.TimeoutSeconds = *timeout
	}
	if *funcTimeout != 0 {
		cfg.FunctionTimeoutSeconds = *funcTimeout
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
	if *noSkip {
		skip := false
		cfg.SkipExisting = &skip
	}
	if *noAnnotate {
		annotate := false
		cfg.Annotate = &annotate
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("target not found: %s", target)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *list {
		return listTarget(ctx, target, info.IsDir(), cfg)
	}

	in, err := ghidra.Find(cfg.GhidraHome)
	if err != nil {
		return err
	}
	scripts, err := ghidra.FindScriptDir(cfg.ScriptDir)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "ghidra: %s\n", in.Home)
	fmt.Fprintf(os.Stderr, "output: %s\n", outDir)

	if clean {
		log.Infof("cleaning %s", outDir)
		if err := os.RemoveAll(outDir); err != nil {
			return fmt.Errorf("clean: %w", err)
		}
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	popts, err := pipelineOptions(cfg)
	if err != nil {
		return err
	}
	opts := batch.Options{
		Ghidra:          in,
		ScriptDir:       scripts,
		OutDir:          outDir,
		Jobs:            cfg.Jobs,
		Timeout:         cfg.Timeout(),
		FunctionTimeout: cfg.FunctionTimeout(),
		SkipExisting:    *cfg.SkipExisting,
		Evaluate:        *evaluate,
		KeepExports:     *keepExports,
		Pipeline:        popts,
	}
	if !*noLedger {
		l, err := ledger.Open(filepath.Join(outDir, ".libsurgeon"))
		if err != nil {
			return err
		}
		defer l.Close()
		opts.Ledger = l
	}
	runner := batch.New(opts)

	var results []*batch.BatchResult
	if info.IsDir() {
		s, err := batch.Scan(target, cfg.Include, cfg.Exclude, *cfg.Recursive)
		if err != nil {
			return err
		}
		log.Infof("found %d archives, %d ELF files (%s)", len(s.Archives), len(s.Executables), s.Duration.Round(time.Millisecond))
		results, err = runner.Run(ctx, s)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "wrote %s\n", filepath.Join(outDir, "SUMMARY.md"))
	} else {
		var res *batch.BatchResult
		switch elfx.Kind(target) {
		case elfx.Archive:
			res, err = runner.Archive(ctx, target)
		case elfx.Executable:
			res, err = runner.Executable(ctx, target)
		default:
			return fmt.Errorf("unsupported file type: %s", target)
		}
		if err != nil {
			return err
		}
		results = []*batch.BatchResult{res}
	}

	batch.PrintTotals(os.Stderr, results, outDir)
	if opts.Ledger != nil {
		reportLedger(opts.Ledger)
	}
	if t := batch.Sum(results); t.Failed > 0 {
		return fmt.Errorf("%d units failed", t.Failed)
	}
	return nil
}

// reportLedger lists the units the ledger holds as failed, from this run
// or an earlier one whose output was kept.
func reportLedger(l *ledger.Ledger) {
	failed, err := l.Failed()
	if err != nil {
		log.WithError(err).Warn("ledger")
		return
	}
	if len(failed) == 0 {
		return
	}
	log.Warnf("%d units recorded as failed in %s", len(failed), l.Path())
	for _, e := range failed {
		log.Debugf("  %s: %s", e.Unit, e.Error)
	}
}

func listTarget(ctx context.Context, target string, dir bool, cfg *config.Config) error {
	if !dir {
		if elfx.Kind(target) != elfx.Archive {
			log.Warn("--list only supported for archive files")
			return nil
		}
		members, err := batch.ListArchive(ctx, target)
		if err != nil {
			return err
		}
		fmt.Println("Archive contents:")
		for _, m := range members {
			fmt.Printf("  %s\n", m)
		}
		return nil
	}
	s, err := batch.Scan(target, cfg.Include, cfg.Exclude, *cfg.Recursive)
	if err != nil {
		return err
	}
	printScan(s)
	return nil
}

func printScan(s batch.ScanResult) {
	fmt.Println("Archives:")
	for _, f := range s.Archives {
		fmt.Printf("  %s\n", f)
	}
	fmt.Println("ELF files:")
	for _, f := range s.Executables {
		fmt.Printf("  %s\n", f)
	}
}

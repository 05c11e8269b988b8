package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/fatih/color"

	"libsurgeon/internal/config"
	"libsurgeon/internal/pipeline"
	"libsurgeon/internal/symbols"
)

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// outputFlags are shared by every command.
type outputFlags struct {
	verbose *bool
	noColor *bool
}

func addOutputFlags(fs *flag.FlagSet) outputFlags {
	return outputFlags{
		verbose: fs.Bool("v", false, "debug logging"),
		noColor: fs.Bool("no-color", false, "disable colored output"),
	}
}

func (o outputFlags) apply() {
	log.SetHandler(cli.New(os.Stderr))
	log.SetLevel(log.InfoLevel)
	if *o.verbose {
		log.SetLevel(log.DebugLevel)
	}
	if *o.noColor {
		color.NoColor = true
	}
}

// loadConfig reads the explicit path when set, otherwise the nearest
// libsurgeon.yaml above the working directory.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		return config.LoadFromPath(path)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return config.Load(wd)
}

// setFlags returns the names of the flags given on the command line.
func setFlags(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

// pipelineOptions maps the configuration onto post-processing options.
func pipelineOptions(cfg *config.Config) (pipeline.Options, error) {
	strategy, err := cfg.GroupingStrategy()
	if err != nil {
		return pipeline.Options{}, err
	}
	return pipeline.Options{
		Strategy:  strategy,
		Demangler: symbols.ItaniumDemangler{},
		Annotate:  cfg.Annotate != nil && *cfg.Annotate,
	}, nil
}

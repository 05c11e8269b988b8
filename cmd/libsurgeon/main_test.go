package main

import (
	"flag"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"libsurgeon/internal/symbols"
)

func TestStringList(t *testing.T) {
	fs := flag.NewFlagSet("t", flag.ContinueOnError)
	var inc stringList
	fs.Var(&inc, "include", "")
	fs.Var(&inc, "i", "")
	if err := fs.Parse([]string{"--include", "lib*.a", "-i", "*.o"}); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual([]string(inc), []string{"lib*.a", "*.o"}) {
		t.Errorf("include = %v", inc)
	}
	if inc.String() != "lib*.a,*.o" {
		t.Errorf("String = %q", inc.String())
	}
	set := setFlags(fs)
	if !set["include"] || !set["i"] || len(set) != 2 {
		t.Errorf("setFlags = %v", set)
	}
}

func TestLoadConfigExplicit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(path, []byte("strategy: single\njobs: 4\nannotate: false\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Jobs != 4 || cfg.TimeoutSeconds != 300 {
		t.Errorf("cfg = %+v", cfg)
	}
	opts, err := pipelineOptions(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := opts.Strategy.(symbols.Single); !ok || opts.Annotate {
		t.Errorf("opts = %+v", opts)
	}
	if opts.Demangler == nil {
		t.Error("no demangler")
	}

	if _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing explicit config accepted")
	}
}

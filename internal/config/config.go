// Package config loads libsurgeon.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"libsurgeon/internal/symbols"
)

// FileName is the configuration file searched for by Load.
const FileName = "libsurgeon.yaml"

var (
	ErrConfigNotFound = errors.New("config: libsurgeon.yaml not found")
	ErrInvalidConfig  = errors.New("config: invalid configuration")
)

// Config holds every setting a flag can also override.
type Config struct {
	GhidraHome             string       `yaml:"ghidra_home"`
	ScriptDir              string       `yaml:"script_dir"`
	Strategy               string       `yaml:"strategy"`
	Prefix                 PrefixConfig `yaml:"prefix"`
	Jobs                   int          `yaml:"jobs"`
	TimeoutSeconds         int          `yaml:"timeout_seconds"`
	FunctionTimeoutSeconds int          `yaml:"function_timeout_seconds"`
	Include                []string     `yaml:"include"`
	Exclude                []string     `yaml:"exclude"`
	Recursive              *bool        `yaml:"recursive"`
	Annotate               *bool        `yaml:"annotate"`
	SkipExisting           *bool        `yaml:"skip_existing"`
}

// PrefixConfig bounds the prefix grouping strategy.
type PrefixConfig struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

func boolPtr(b bool) *bool { return &b }

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Strategy:               "prefix",
		Prefix:                 PrefixConfig{Min: 2, Max: 30},
		Jobs:                   1,
		TimeoutSeconds:         300,
		FunctionTimeoutSeconds: 60,
		Recursive:              boolPtr(true),
		Annotate:               boolPtr(true),
		SkipExisting:           boolPtr(true),
	}
}

// Load finds libsurgeon.yaml by walking up from workDir. Without one the
// defaults are returned.
func Load(workDir string) (*Config, error) {
	path, err := Find(workDir)
	if err != nil {
		if errors.Is(err, ErrConfigNotFound) {
			return Default(), nil
		}
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath reads path, merges it over the defaults and validates the
// result. A missing file yields the defaults.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	loaded := &Config{}
	if err := yaml.Unmarshal(data, loaded); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	merged := Merge(loaded, Default())
	if err := Validate(merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// Find returns the path of the nearest libsurgeon.yaml at or above startDir.
func Find(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("config: resolve %s: %w", startDir, err)
	}
	for {
		p := filepath.Join(dir, FileName)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrConfigNotFound
		}
		dir = parent
	}
}

// Merge returns loaded with every unset field taken from defaults.
func Merge(loaded, defaults *Config) *Config {
	r := *loaded
	if r.GhidraHome == "" {
		r.GhidraHome = defaults.GhidraHome
	}
	if r.ScriptDir == "" {
		r.ScriptDir = defaults.ScriptDir
	}
	if r.Strategy == "" {
		r.Strategy = defaults.Strategy
	}
	if r.Prefix.Min == 0 {
		r.Prefix.Min = defaults.Prefix.Min
	}
	if r.Prefix.Max == 0 {
		r.Prefix.Max = defaults.Prefix.Max
	}
	if r.Jobs == 0 {
		r.Jobs = defaults.Jobs
	}
	if r.TimeoutSeconds == 0 {
		r.TimeoutSeconds = defaults.TimeoutSeconds
	}
	if r.FunctionTimeoutSeconds == 0 {
		r.FunctionTimeoutSeconds = defaults.FunctionTimeoutSeconds
	}
	if r.Include == nil {
		r.Include = defaults.Include
	}
	if r.Exclude == nil {
		r.Exclude = defaults.Exclude
	}
	if r.Recursive == nil {
		r.Recursive = defaults.Recursive
	}
	if r.Annotate == nil {
		r.Annotate = defaults.Annotate
	}
	if r.SkipExisting == nil {
		r.SkipExisting = defaults.SkipExisting
	}
	return &r
}

// Validate checks value ranges and that the strategy is known.
func Validate(cfg *Config) error {
	if _, err := symbols.ParseStrategy(cfg.Strategy); err != nil {
		return fmt.Errorf("%w: strategy must be one of %v, got %q", ErrInvalidConfig, symbols.StrategyNames(), cfg.Strategy)
	}
	if cfg.Prefix.Min < 1 || cfg.Prefix.Max < cfg.Prefix.Min {
		return fmt.Errorf("%w: prefix bounds must satisfy 1 <= min <= max, got %d..%d", ErrInvalidConfig, cfg.Prefix.Min, cfg.Prefix.Max)
	}
	if cfg.Jobs < 1 {
		return fmt.Errorf("%w: jobs must be positive, got %d", ErrInvalidConfig, cfg.Jobs)
	}
	if cfg.TimeoutSeconds < 1 {
		return fmt.Errorf("%w: timeout_seconds must be positive, got %d", ErrInvalidConfig, cfg.TimeoutSeconds)
	}
	if cfg.FunctionTimeoutSeconds < 1 {
		return fmt.Errorf("%w: function_timeout_seconds must be positive, got %d", ErrInvalidConfig, cfg.FunctionTimeoutSeconds)
	}
	return nil
}

// GroupingStrategy returns the configured strategy with the prefix bounds
// applied.
func (c *Config) GroupingStrategy() (symbols.Strategy, error) {
	s, err := symbols.ParseStrategy(c.Strategy)
	if err != nil {
		return nil, err
	}
	if _, ok := s.(symbols.Prefix); ok {
		return symbols.Prefix{Min: c.Prefix.Min, Max: c.Prefix.Max}, nil
	}
	return s, nil
}

// Timeout is the per-unit decompilation limit.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// FunctionTimeout is the per-function limit inside the decompiler.
func (c *Config) FunctionTimeout() time.Duration {
	return time.Duration(c.FunctionTimeoutSeconds) * time.Second
}

// SaveDefault writes the default configuration to dir/libsurgeon.yaml.
func SaveDefault(dir string) (string, error) {
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("config: %s already exists", path)
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return "", fmt.Errorf("config: marshal: %w", err)
	}
	data = append([]byte("# libsurgeon configuration\n\n"), data...)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("config: write %s: %w", path, err)
	}
	return path, nil
}

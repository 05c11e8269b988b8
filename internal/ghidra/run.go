package ghidra

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"
)

var (
	ErrTimeout  = errors.New("ghidra: timed out")
	ErrNoExport = errors.New("ghidra: no export produced")
)

// waitDelay bounds how long Run waits for output after the process group
// was killed.
const waitDelay = 5 * time.Second

// DefaultFunctionTimeout bounds a single function's decompilation inside
// the post-script.
const DefaultFunctionTimeout = 60 * time.Second

// Job is one headless import of a binary.
type Job struct {
	Binary          string
	ProjectDir      string
	ProjectName     string
	ScriptDir       string
	ExportPath      string
	FunctionTimeout time.Duration
	Timeout         time.Duration // whole run; zero means no limit beyond ctx
	LogPath         string        // analyzer output; empty discards it
	KeepProject     bool
}

// Args returns the analyzeHeadless argument list for j.
func (j Job) Args() []string {
	ft := j.FunctionTimeout
	if ft <= 0 {
		ft = DefaultFunctionTimeout
	}
	project := "-deleteProject"
	if j.KeepProject {
		project = "-overwrite"
	}
	return []string{
		j.ProjectDir,
		j.ProjectName,
		"-import", j.Binary,
		project,
		"-scriptPath", j.ScriptDir,
		"-postScript", ScriptName, j.ExportPath, strconv.Itoa(int(ft / time.Second)),
	}
}

// Run imports j.Binary, runs the export post-script and checks that the
// export file was written.
func (in Install) Run(ctx context.Context, j Job) error {
	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}
	if err := os.MkdirAll(j.ProjectDir, 0755); err != nil {
		return fmt.Errorf("ghidra: create project dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(j.ExportPath), 0755); err != nil {
		return fmt.Errorf("ghidra: create export dir: %w", err)
	}
	// A stale export from an earlier run must not pass for this one.
	os.Remove(j.ExportPath)

	var out io.Writer // nil discards to the null device
	if j.LogPath != "" {
		if err := os.MkdirAll(filepath.Dir(j.LogPath), 0755); err != nil {
			return fmt.Errorf("ghidra: create log dir: %w", err)
		}
		f, err := os.Create(j.LogPath)
		if err != nil {
			return fmt.Errorf("ghidra: create log: %w", err)
		}
		defer f.Close()
		out = f
	}

	cmd := exec.CommandContext(ctx, in.AnalyzeHeadless, j.Args()...)
	cmd.Env = os.Environ()
	if in.JavaHome != "" {
		cmd.Env = append(cmd.Env, "JAVA_HOME="+in.JavaHome)
	}
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.WaitDelay = waitDelay
	killGroup(cmd)

	err := cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrTimeout, j.Timeout)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("ghidra: analyzeHeadless: %w", err)
	}
	if _, err := os.Stat(j.ExportPath); err != nil {
		return fmt.Errorf("%w: %s", ErrNoExport, j.ExportPath)
	}
	return nil
}

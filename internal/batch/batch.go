// Package batch drives decompilation over many inputs: it scans for
// archives and ELF images, unpacks archives into object units, runs the
// headless decompiler on each unit through a bounded worker pool and
// writes per-target and top-level reports.
package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/fatih/color"
	"golang.org/x/sync/errgroup"

	"libsurgeon/internal/disasm"
	"libsurgeon/internal/elfx"
	"libsurgeon/internal/ghidra"
	"libsurgeon/internal/ledger"
	"libsurgeon/internal/output"
	"libsurgeon/internal/pipeline"
	"libsurgeon/internal/quality"
)

// DefaultTimeout bounds one unit's headless run.
const DefaultTimeout = 300 * time.Second

var (
	colorDone    = color.New(color.FgGreen).SprintFunc()
	colorSkipped = color.New(color.FgYellow).SprintFunc()
	colorFailed  = color.New(color.FgRed).SprintFunc()
	colorHeader  = color.New(color.Bold, color.FgBlue).SprintFunc()
)

// Options configures a Runner.
type Options struct {
	Ghidra          ghidra.Install
	ScriptDir       string
	OutDir          string
	Jobs            int           // concurrent units; values below 1 mean 1
	Timeout         time.Duration // per unit; zero means DefaultTimeout
	FunctionTimeout time.Duration
	SkipExisting    bool
	Evaluate        bool
	KeepExports     bool // leave each unit's export JSON under logs/
	Pipeline        pipeline.Options
	Ledger          *ledger.Ledger // optional
	Progress        io.Writer      // nil means os.Stderr
	Extract         Extractor      // nil means ExtractArchive
}

// Result is the outcome of one unit.
type Result struct {
	Name     string
	Input    string
	Output   string
	Success  bool
	Skipped  bool
	Lines    int
	Err      error
	Duration time.Duration
	Summary  *output.Summary
}

// BatchResult aggregates the units of one target.
type BatchResult struct {
	Name        string
	Source      string
	Kind        elfx.InputKind
	OutDir      string
	Total       int
	Success     int
	Failed      int
	Skipped     int
	Lines       int
	Duration    time.Duration
	Results     []Result
	FailedUnits []string
	Quality     *quality.Report
	Err         error // target-level failure, such as an archive that would not extract
}

func (b *BatchResult) add(r Result) {
	b.Results = append(b.Results, r)
	if r.Success {
		b.Success++
		b.Lines += r.Lines
		if r.Skipped {
			b.Skipped++
		}
		return
	}
	b.Failed++
	b.FailedUnits = append(b.FailedUnits, r.Name)
}

// Runner executes batches. It is safe to reuse across targets but not for
// concurrent calls.
type Runner struct {
	opts Options
	out  io.Writer
	mu   sync.Mutex
}

// New returns a Runner for opts.
func New(opts Options) *Runner {
	if opts.Jobs < 1 {
		opts.Jobs = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Extract == nil {
		opts.Extract = ExtractArchive
	}
	r := &Runner{opts: opts, out: opts.Progress}
	if r.out == nil {
		r.out = os.Stderr
	}
	return r
}

// unit is one headless import.
type unit struct {
	name    string // display name, the input stem
	input   string // file handed to the decompiler
	key     string // ledger key
	outDir  string
	marker  string // file whose presence means the unit already ran
	logDir  string
	projDir string
	member  string // archive member file name; empty for ELF images
}

// TargetName returns the output directory name for an input: the base name
// without extension, or without the version suffix of a .so.N name.
func TargetName(path string) string {
	base := filepath.Base(path)
	if i := strings.Index(base, ".so."); i > 0 {
		base = base[:i]
	} else {
		base = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if s := output.SanitizeFilename(base); s != "" {
		return s
	}
	return "_unnamed"
}

// Run processes every archive, then every ELF image, of s and writes
// SUMMARY.md. Target failures are recorded in their BatchResult; the
// returned error is non-nil only when ctx was cancelled.
func (r *Runner) Run(ctx context.Context, s ScanResult) ([]*BatchResult, error) {
	var all []*BatchResult
	for _, a := range s.Archives {
		if ctx.Err() != nil {
			break
		}
		res, err := r.Archive(ctx, a)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Errorf("failed to process %s", a)
		}
		all = append(all, res)
	}
	for _, e := range s.Executables {
		if ctx.Err() != nil {
			break
		}
		res, err := r.Executable(ctx, e)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Errorf("failed to process %s", e)
		}
		all = append(all, res)
	}
	if len(all) > 0 {
		if err := WriteSummary(r.opts.OutDir, all); err != nil {
			return all, err
		}
	}
	return all, ctx.Err()
}

// Archive extracts path and decompiles every member object.
func (r *Runner) Archive(ctx context.Context, path string) (*BatchResult, error) {
	name := TargetName(path)
	outDir := filepath.Join(r.opts.OutDir, name)
	res := &BatchResult{Name: name, Source: path, Kind: elfx.Archive, OutDir: outDir}
	start := time.Now()
	defer func() { res.Duration = time.Since(start) }()

	r.printf("\n%s\n", colorHeader(fmt.Sprintf("Processing archive: %s (jobs: %d)", name, r.opts.Jobs)))

	logDir := filepath.Join(outDir, "logs")
	for _, d := range []string{filepath.Join(outDir, "src"), logDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			res.Err = fmt.Errorf("batch: %w", err)
			return res, res.Err
		}
	}
	tmp, err := os.MkdirTemp("", "libsurgeon_")
	if err != nil {
		res.Err = fmt.Errorf("batch: %w", err)
		return res, res.Err
	}
	defer os.RemoveAll(tmp)

	objs, err := r.opts.Extract(ctx, path, tmp)
	if err != nil {
		res.Err = err
		return res, err
	}
	log.Infof("%s: %d object files", name, len(objs))

	abs, _ := filepath.Abs(path)
	units := make([]unit, len(objs))
	for i, o := range objs {
		member := filepath.Base(o)
		stem := output.ObjectStem(member)
		units[i] = unit{
			name:    stem,
			input:   o,
			key:     fmt.Sprintf("%s(%s)", abs, member),
			outDir:  outDir,
			marker:  filepath.Join(outDir, "src", stem+".cpp"),
			logDir:  logDir,
			projDir: filepath.Join(outDir, ".ghidra_projects"),
			member:  member,
		}
	}
	err = r.runUnits(ctx, res, units)

	if werr := writeReadme(res); werr != nil {
		log.WithError(werr).Warn("README")
	}
	r.finish(res)
	return res, err
}

// Executable decompiles one ELF image into its own output directory.
func (r *Runner) Executable(ctx context.Context, path string) (*BatchResult, error) {
	name := TargetName(path)
	outDir := filepath.Join(r.opts.OutDir, name)
	res := &BatchResult{Name: name, Source: path, Kind: elfx.Executable, OutDir: outDir}
	start := time.Now()
	defer func() { res.Duration = time.Since(start) }()

	r.printf("\n%s\n", colorHeader("Processing ELF: "+name))

	abs, _ := filepath.Abs(path)
	u := unit{
		name:    name,
		input:   path,
		key:     abs,
		outDir:  outDir,
		marker:  filepath.Join(outDir, "summary.json"),
		logDir:  filepath.Join(outDir, "logs"),
		projDir: filepath.Join(outDir, ".ghidra_projects"),
	}
	err := r.runUnits(ctx, res, []unit{u})
	r.finish(res)
	return res, err
}

// finish writes the failed-unit log and the optional quality report.
func (r *Runner) finish(res *BatchResult) {
	if len(res.FailedUnits) > 0 {
		if err := writeFailed(res); err != nil {
			log.WithError(err).Warn("failed_files.txt")
		}
	}
	if !r.opts.Evaluate || res.Success == 0 {
		return
	}
	rep, err := quality.EvaluateDir(filepath.Join(res.OutDir, "src"), "*.cpp")
	if err != nil {
		log.WithError(err).Warn("quality evaluation")
		return
	}
	res.Quality = rep
	if err := rep.WriteJSON(filepath.Join(res.OutDir, quality.ReportFile)); err != nil {
		log.WithError(err).Warn("quality report")
	}
	r.mu.Lock()
	rep.Print(r.out, false)
	r.mu.Unlock()
}

// runUnits processes units through the worker pool. Cancellation is
// observed between units; a unit already running finishes.
func (r *Runner) runUnits(ctx context.Context, res *BatchResult, units []unit) error {
	res.Total = len(units)
	results := make([]*Result, len(units))

	var g errgroup.Group
	g.SetLimit(r.opts.Jobs)
	for i, u := range units {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			out := r.process(context.WithoutCancel(ctx), u)
			results[i] = &out
			r.report(i+1, len(units), out)
			return nil
		})
	}
	g.Wait()

	for _, out := range results {
		if out != nil {
			res.add(*out)
		}
	}
	return ctx.Err()
}

func (r *Runner) report(i, total int, res Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case res.Skipped:
		fmt.Fprintf(r.out, "[%d/%d] %s: %s (%d lines)\n", i, total, res.Name, colorSkipped("Skipped"), res.Lines)
	case res.Success:
		fmt.Fprintf(r.out, "[%d/%d] %s: %s (%d lines)\n", i, total, res.Name, colorDone("Done"), res.Lines)
	default:
		fmt.Fprintf(r.out, "[%d/%d] %s: %s - %v\n", i, total, res.Name, colorFailed("FAILED"), res.Err)
	}
}

func (r *Runner) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}

// process runs one unit: skip check, headless import, post-processing,
// ledger record.
func (r *Runner) process(ctx context.Context, u unit) (res Result) {
	start := time.Now()
	res = Result{Name: u.name, Input: u.input, Output: u.marker}
	defer func() { res.Duration = time.Since(start) }()

	var sum string
	if r.opts.Ledger != nil {
		var err error
		if sum, err = ledger.HashFile(u.input); err != nil {
			log.WithError(err).Debugf("batch: %s", u.name)
		}
	}
	if r.opts.SkipExisting && r.upToDate(u, sum) {
		res.Success = true
		res.Skipped = true
		res.Lines = existingLines(u)
		return res
	}

	res.Summary, res.Err = r.decompile(ctx, u)
	if res.Err == nil {
		res.Success = true
		res.Lines = res.Summary.Lines
	}

	if r.opts.Ledger != nil && sum != "" {
		e := ledger.Entry{Unit: u.key, SHA256: sum, Output: u.marker, Success: res.Success, Lines: res.Lines}
		if res.Err != nil {
			e.Error = res.Err.Error()
		}
		if err := r.opts.Ledger.Record(e); err != nil {
			log.WithError(err).Warn("ledger")
		}
	}
	return res
}

// upToDate reports whether u's output exists and, when a ledger is in use,
// whether the ledger does not contradict it.
func (r *Runner) upToDate(u unit, sum string) bool {
	if _, err := os.Stat(u.marker); err != nil {
		return false
	}
	if r.opts.Ledger == nil || sum == "" {
		return true
	}
	e, done, err := r.opts.Ledger.Done(u.key, sum)
	if err != nil {
		return false
	}
	return done || e.Unit == ""
}

func existingLines(u unit) int {
	if u.member == "" {
		data, err := os.ReadFile(u.marker)
		if err != nil {
			return 0
		}
		var s output.Summary
		if json.Unmarshal(data, &s) != nil {
			return 0
		}
		return s.Lines
	}
	data, err := os.ReadFile(u.marker)
	if err != nil {
		return 0
	}
	return strings.Count(string(data), "\n")
}

func (r *Runner) decompile(ctx context.Context, u unit) (*output.Summary, error) {
	exportDir := u.logDir
	if !r.opts.KeepExports {
		tmp, err := os.MkdirTemp("", "libsurgeon_export_")
		if err != nil {
			return nil, fmt.Errorf("batch: %w", err)
		}
		defer os.RemoveAll(tmp)
		exportDir = tmp
	}
	job := ghidra.Job{
		Binary:          u.input,
		ProjectDir:      u.projDir,
		ProjectName:     fmt.Sprintf("proj_%s_%d", u.name, os.Getpid()),
		ScriptDir:       r.opts.ScriptDir,
		ExportPath:      filepath.Join(exportDir, u.name+".export.json"),
		FunctionTimeout: r.opts.FunctionTimeout,
		Timeout:         r.opts.Timeout,
		LogPath:         filepath.Join(u.logDir, u.name+".log"),
	}
	log.Debugf("batch: %s: analyzeHeadless %s", u.name, strings.Join(job.Args(), " "))
	if err := r.opts.Ghidra.Run(ctx, job); err != nil {
		return nil, err
	}
	e, err := ghidra.Load(job.ExportPath)
	if err != nil {
		return nil, err
	}
	if f := e.DebugFormat(); f != "" {
		log.Infof("%s: debug information detected: %s", u.name, f)
	}

	if u.member != "" {
		return pipeline.Object(u.outDir, u.member, e, r.opts.Pipeline)
	}

	opts := r.opts.Pipeline
	opts.SkipStubs = true
	if f, err := elfx.Open(u.input); err == nil {
		defer f.Close()
		opts.Image = f
		if opts.Arch == disasm.Unknown {
			opts.Arch = f.Arch()
		}
	} else {
		log.WithError(err).Debugf("batch: %s: no image fallback", u.name)
	}
	return pipeline.Executable(u.outDir, e, opts)
}

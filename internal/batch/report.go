package batch

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// FormatDuration renders d as 42s, 3m7s or 2h5m.
func FormatDuration(d time.Duration) string {
	s := int(d / time.Second)
	switch {
	case s < 60:
		return fmt.Sprintf("%ds", s)
	case s < 3600:
		return fmt.Sprintf("%dm%ds", s/60, s%60)
	}
	return fmt.Sprintf("%dh%dm", s/3600, s%3600/60)
}

func writeFailed(res *BatchResult) error {
	p := filepath.Join(res.OutDir, "logs", "failed_files.txt")
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return fmt.Errorf("batch: %w", err)
	}
	if err := os.WriteFile(p, []byte(strings.Join(res.FailedUnits, "\n")+"\n"), 0644); err != nil {
		return fmt.Errorf("batch: %w", err)
	}
	return nil
}

func writeReadme(res *BatchResult) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s - Decompiled Archive\n\n", res.Name)
	b.WriteString("## Overview\n\n")
	fmt.Fprintf(&b, "- **Source**: %s\n", filepath.Base(res.Source))
	fmt.Fprintf(&b, "- **Generated**: %s\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "- **Total object files**: %d\n", res.Total)
	fmt.Fprintf(&b, "- **Successfully decompiled**: %d\n", res.Success)
	fmt.Fprintf(&b, "- **Skipped (up to date)**: %d\n", res.Skipped)
	fmt.Fprintf(&b, "- **Failed**: %d\n", res.Failed)
	fmt.Fprintf(&b, "- **Total lines of code**: %s\n", humanize.Comma(int64(res.Lines)))
	fmt.Fprintf(&b, "- **Processing time**: %s\n\n", FormatDuration(res.Duration))

	b.WriteString("## Directory Structure\n\n```\n")
	fmt.Fprintf(&b, "%s/\n", res.Name)
	b.WriteString("├── src/           # Decompiled C/C++ source files\n")
	b.WriteString("├── include/       # Per-object headers and _types.h\n")
	b.WriteString("├── logs/          # Decompiler logs and failed_files.txt\n")
	b.WriteString("└── README.md      # This file\n")
	b.WriteString("```\n\n")

	if len(res.FailedUnits) > 0 {
		b.WriteString("## Failed Objects\n\n")
		for _, r := range res.Results {
			if !r.Success {
				fmt.Fprintf(&b, "- `%s`: %v\n", r.Name, r.Err)
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("## Disclaimer\n\n")
	b.WriteString("This code is automatically generated by reverse engineering.\n")
	b.WriteString("It is intended for educational and research purposes only.\n")

	if err := os.WriteFile(filepath.Join(res.OutDir, "README.md"), []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("batch: %w", err)
	}
	return nil
}

// Totals sums a set of batch results.
type Totals struct {
	Targets  int
	Units    int
	Success  int
	Skipped  int
	Failed   int
	Lines    int
	Duration time.Duration
}

// Sum totals results.
func Sum(results []*BatchResult) Totals {
	t := Totals{Targets: len(results)}
	for _, r := range results {
		t.Units += r.Total
		t.Success += r.Success
		t.Skipped += r.Skipped
		t.Failed += r.Failed
		t.Lines += r.Lines
		t.Duration += r.Duration
		if r.Err != nil && r.Total == 0 {
			t.Failed++
		}
	}
	return t
}

// WriteSummary writes SUMMARY.md for results into dir.
func WriteSummary(dir string, results []*BatchResult) error {
	t := Sum(results)
	var b strings.Builder
	b.WriteString("# LibSurgeon Decompilation Summary\n\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", time.Now().Format("2006-01-02 15:04:05"))

	b.WriteString("## Overall Statistics\n\n")
	b.WriteString("| Metric | Value |\n")
	b.WriteString("|--------|-------|\n")
	fmt.Fprintf(&b, "| Total Targets | %d |\n", t.Targets)
	fmt.Fprintf(&b, "| Total Units | %d |\n", t.Units)
	fmt.Fprintf(&b, "| Successfully Decompiled | %d |\n", t.Success)
	fmt.Fprintf(&b, "| Skipped (up to date) | %d |\n", t.Skipped)
	fmt.Fprintf(&b, "| Failed | %d |\n", t.Failed)
	fmt.Fprintf(&b, "| Total Lines of Code | %s |\n", humanize.Comma(int64(t.Lines)))
	fmt.Fprintf(&b, "| Total Duration | %s |\n\n", FormatDuration(t.Duration))

	sorted := append([]*BatchResult(nil), results...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	b.WriteString("## Targets Processed\n\n")
	for _, r := range sorted {
		rate := 0.0
		if r.Total > 0 {
			rate = float64(r.Success) / float64(r.Total) * 100
		}
		fmt.Fprintf(&b, "### %s\n\n", r.Name)
		fmt.Fprintf(&b, "- Kind: %s\n", r.Kind)
		if r.Err != nil && r.Total == 0 {
			fmt.Fprintf(&b, "- Error: %v\n\n", r.Err)
			continue
		}
		fmt.Fprintf(&b, "- Units: %d/%d (%.1f%%)\n", r.Success, r.Total, rate)
		fmt.Fprintf(&b, "- Lines: %s\n", humanize.Comma(int64(r.Lines)))
		if r.Quality != nil {
			fmt.Fprintf(&b, "- Quality: %.1f (%s)\n", r.Quality.AvgScore, r.Quality.Grade)
		}
		fmt.Fprintf(&b, "- Duration: %s\n\n", FormatDuration(r.Duration))
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("batch: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "SUMMARY.md"), []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("batch: %w", err)
	}
	return nil
}

// PrintTotals writes the closing console summary.
func PrintTotals(w io.Writer, results []*BatchResult, outDir string) {
	t := Sum(results)
	rule := strings.Repeat("=", 60)
	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, colorHeader("Summary"))
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "  Targets:          %d\n", t.Targets)
	fmt.Fprintf(w, "  Total units:      %d\n", t.Units)
	fmt.Fprintf(w, "  Successful:       %s\n", colorDone(t.Success))
	fmt.Fprintf(w, "  Skipped:          %s\n", colorSkipped(t.Skipped))
	fmt.Fprintf(w, "  Failed:           %s\n", colorFailed(t.Failed))
	fmt.Fprintf(w, "  Total lines:      %s\n", humanize.Comma(int64(t.Lines)))
	fmt.Fprintf(w, "  Duration:         %s\n", FormatDuration(t.Duration))
	fmt.Fprintf(w, "  Output:           %s\n", outDir)
}

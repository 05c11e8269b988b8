package quality

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
)

// ReportFile is the JSON report written next to the evaluated sources.
const ReportFile = "quality_report.json"

var (
	colorGood  = color.New(color.FgGreen).SprintfFunc()
	colorWarn  = color.New(color.FgYellow).SprintfFunc()
	colorBad   = color.New(color.FgRed).SprintfFunc()
	colorTitle = color.New(color.Bold).SprintFunc()
)

func colorScore(s float64) string {
	switch {
	case s >= 80:
		return colorGood("%.1f", s)
	case s >= 50:
		return colorWarn("%.1f", s)
	}
	return colorBad("%.1f", s)
}

// WriteJSON writes r as indented JSON to path.
func (r *Report) WriteJSON(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("quality: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("quality: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("quality: %w", err)
	}
	return nil
}

// Print writes a console summary of r. verbose adds per-file scores.
func (r *Report) Print(w io.Writer, verbose bool) {
	rule := strings.Repeat("=", 60)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, colorTitle("Decompilation Quality Report"))
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Directory:        %s\n", r.Directory)
	fmt.Fprintf(w, "Files:            %d\n", r.TotalFiles)
	fmt.Fprintf(w, "Lines:            %d\n", r.TotalLines)
	fmt.Fprintf(w, "Functions:        %d\n", r.TotalFunctions)
	fmt.Fprintf(w, "Classes:          %d\n", r.TotalClasses)
	if r.TotalFiles == 0 {
		fmt.Fprintln(w, colorWarn("No files matched."))
		return
	}
	fmt.Fprintf(w, "Average score:    %s (min %.1f, max %.1f)\n", colorScore(r.AvgScore), r.MinScore, r.MaxScore)
	fmt.Fprintf(w, "halt_baddata:     %d in %d files\n", r.TotalHaltBaddata, r.FilesWithHaltBaddata)
	fmt.Fprintf(w, "undefined types:  %d\n", r.TotalUndefinedTypes)
	fmt.Fprintf(w, "casts:            %d\n", r.TotalCasts)

	if worst := r.Worst(10); len(worst) > 0 && worst[0].Score < 100 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, colorTitle("Lowest scoring files:"))
		for _, m := range worst {
			if m.Score >= 100 {
				break
			}
			fmt.Fprintf(w, "  %s  %s\n", colorScore(m.Score), m.Filename)
			for _, is := range m.Issues {
				fmt.Fprintf(w, "         - %s\n", is)
			}
		}
	}
	if verbose {
		fmt.Fprintln(w)
		fmt.Fprintln(w, colorTitle("All files:"))
		for _, m := range r.Files {
			fmt.Fprintf(w, "  %s  %-40s %6d lines  %4d functions\n", colorScore(m.Score), m.Filename, m.Lines, m.Functions)
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Grade: %s\n", colorGrade(r.Grade))
}

func colorGrade(g string) string {
	switch g {
	case "A", "B":
		return colorGood("%s", g)
	case "C", "D":
		return colorWarn("%s", g)
	}
	return colorBad("%s", g)
}

// Package quality scores emitted pseudo-source by counting decompiler
// artifacts (bad-data halts, placeholder types, casts, gotos, inline asm)
// against recovered structure (demangled names, namespaces, source paths).
package quality

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var (
	haltBaddataRe = regexp.MustCompile(`halt_baddata\s*\(`)
	undefinedRe   = regexp.MustCompile(`\bundefined\d*\b`)
	castRe        = regexp.MustCompile(`\(\s*\w+\s*\*\s*\)\s*\(`)
	rawPtrRe      = regexp.MustCompile(`\+\s*0x[0-9a-f]+\s*\)`)
	gotoRe        = regexp.MustCompile(`\bgoto\s+\w+`)
	inlineAsmRe   = regexp.MustCompile(`__asm|asm\s*\(`)
	stackChkRe    = regexp.MustCompile(`__stack_chk_fail`)
	demangledRe   = regexp.MustCompile(`::\w+\s*\(`)
	namespaceRe   = regexp.MustCompile(`namespace\s+(\w+)`)
	classTagRe    = regexp.MustCompile(`//\s*Class:\s*(\w+)`)
	functionTagRe = regexp.MustCompile(`//\s*Function:\s*(\w+)`)
	sourceRefRe   = regexp.MustCompile(`"((?:[\w.-]+/)+[\w.-]+\.(?:c|cc|cpp|cxx))"`)
)

// FileMetrics are the counts for one source file.
type FileMetrics struct {
	Path      string `json:"-"`
	Filename  string `json:"filename"`
	Lines     int    `json:"lines"`
	Functions int    `json:"functions"`
	Classes   int    `json:"classes"`

	HaltBaddata    int `json:"halt_baddata"`
	UndefinedTypes int `json:"undefined_types"`
	Casts          int `json:"excessive_casts"`
	RawPointers    int `json:"raw_pointers"`
	Gotos          int `json:"goto_statements"`
	InlineAsm      int `json:"inline_assembly"`
	StackChkFail   int `json:"stack_chk_fail"`

	DemangledNames int      `json:"demangled_names"`
	Namespaces     []string `json:"namespaces,omitempty"`
	SourceRefs     []string `json:"source_refs,omitempty"`

	Issues []string `json:"issues,omitempty"`
	Score  float64  `json:"quality_score"`
}

// Evaluate counts the patterns in content.
func Evaluate(name, content string) FileMetrics {
	m := FileMetrics{Filename: name}
	m.Lines = len(strings.Split(content, "\n"))

	m.HaltBaddata = len(haltBaddataRe.FindAllStringIndex(content, -1))
	m.UndefinedTypes = len(undefinedRe.FindAllStringIndex(content, -1))
	m.Casts = len(castRe.FindAllStringIndex(content, -1))
	m.RawPointers = len(rawPtrRe.FindAllStringIndex(content, -1))
	m.Gotos = len(gotoRe.FindAllStringIndex(content, -1))
	m.InlineAsm = len(inlineAsmRe.FindAllStringIndex(content, -1))
	m.StackChkFail = len(stackChkRe.FindAllStringIndex(content, -1))
	m.DemangledNames = len(demangledRe.FindAllStringIndex(content, -1))
	m.Namespaces = uniqueGroups(namespaceRe, content)
	m.SourceRefs = uniqueGroups(sourceRefRe, content)
	m.Classes = len(classTagRe.FindAllStringIndex(content, -1))
	m.Functions = len(functionTagRe.FindAllStringIndex(content, -1))

	if m.HaltBaddata > 0 {
		m.Issues = append(m.Issues, fmt.Sprintf("Contains %d halt_baddata calls", m.HaltBaddata))
	}
	if m.UndefinedTypes > 50 {
		m.Issues = append(m.Issues, fmt.Sprintf("High undefined type count: %d", m.UndefinedTypes))
	}
	if m.InlineAsm > 0 {
		m.Issues = append(m.Issues, fmt.Sprintf("Contains inline assembly: %d", m.InlineAsm))
	}
	m.Score = score(m)
	return m
}

// uniqueGroups returns the first capture group of every match, in order of
// first appearance.
func uniqueGroups(re *regexp.Regexp, s string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, sm := range re.FindAllStringSubmatch(s, -1) {
		if !seen[sm[1]] {
			seen[sm[1]] = true
			out = append(out, sm[1])
		}
	}
	return out
}

// score starts at 100, subtracts capped penalties and adds capped bonuses.
func score(m FileMetrics) float64 {
	s := 100.0
	if m.HaltBaddata > 0 {
		s -= min(50, float64(m.HaltBaddata)*10)
	}
	s -= min(10, float64(m.UndefinedTypes)*0.5)
	s -= min(10, float64(m.Casts)*0.2)
	s -= min(5, float64(m.Gotos))
	s -= min(10, float64(m.InlineAsm)*5)
	if m.DemangledNames > 0 {
		s += min(5, float64(m.DemangledNames)*0.1)
	}
	if len(m.Namespaces) > 0 {
		s += 3
	}
	if len(m.SourceRefs) > 0 {
		s += 2
	}
	return max(0, min(100, s))
}

// EvaluateFile reads and evaluates one file. Read failures are reported as
// an issue with a zero-count metric.
func EvaluateFile(path string) FileMetrics {
	data, err := os.ReadFile(path)
	if err != nil {
		m := FileMetrics{Path: path, Filename: filepath.Base(path)}
		m.Issues = []string{fmt.Sprintf("Could not read file: %v", err)}
		m.Score = score(m)
		return m
	}
	m := Evaluate(filepath.Base(path), string(data))
	m.Path = path
	return m
}

// Report aggregates the metrics of a directory.
type Report struct {
	Directory            string        `json:"directory"`
	TotalFiles           int           `json:"total_files"`
	TotalLines           int           `json:"total_lines"`
	TotalFunctions       int           `json:"total_functions"`
	TotalClasses         int           `json:"total_classes"`
	FilesWithHaltBaddata int           `json:"files_with_halt_baddata"`
	TotalHaltBaddata     int           `json:"total_halt_baddata"`
	TotalUndefinedTypes  int           `json:"total_undefined_types"`
	TotalCasts           int           `json:"total_excessive_casts"`
	AvgScore             float64       `json:"avg_quality_score"`
	MinScore             float64       `json:"min_quality_score"`
	MaxScore             float64       `json:"max_quality_score"`
	Grade                string        `json:"grade"`
	Files                []FileMetrics `json:"files"`
}

// EvaluateDir evaluates every file in dir matching pattern ("*.cpp" when
// empty), in name order.
func EvaluateDir(dir, pattern string) (*Report, error) {
	if pattern == "" {
		pattern = "*.cpp"
	}
	paths, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("quality: %w", err)
	}
	sort.Strings(paths)
	files := make([]FileMetrics, 0, len(paths))
	for _, p := range paths {
		files = append(files, EvaluateFile(p))
	}
	return Aggregate(dir, files), nil
}

// Aggregate totals files into a Report.
func Aggregate(dir string, files []FileMetrics) *Report {
	r := &Report{Directory: dir, TotalFiles: len(files), Files: files}
	if len(files) == 0 {
		r.Grade = Grade(0)
		return r
	}
	r.MinScore = 100
	sum := 0.0
	for _, m := range files {
		r.TotalLines += m.Lines
		r.TotalFunctions += m.Functions
		r.TotalClasses += m.Classes
		r.TotalHaltBaddata += m.HaltBaddata
		r.TotalUndefinedTypes += m.UndefinedTypes
		r.TotalCasts += m.Casts
		if m.HaltBaddata > 0 {
			r.FilesWithHaltBaddata++
		}
		sum += m.Score
		r.MinScore = min(r.MinScore, m.Score)
		r.MaxScore = max(r.MaxScore, m.Score)
	}
	r.AvgScore = sum / float64(len(files))
	r.Grade = Grade(r.AvgScore)
	return r
}

// Worst returns up to n files with the lowest scores.
func (r *Report) Worst(n int) []FileMetrics {
	out := append([]FileMetrics(nil), r.Files...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score < out[j].Score })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// Grade maps an average score to A (90+), B (80+), C (70+), D (50+) or F.
func Grade(avg float64) string {
	switch {
	case avg >= 90:
		return "A"
	case avg >= 80:
		return "B"
	case avg >= 70:
		return "C"
	case avg >= 50:
		return "D"
	}
	return "F"
}

// Passing reports whether grade is C or better.
func Passing(grade string) bool {
	return grade == "A" || grade == "B" || grade == "C"
}

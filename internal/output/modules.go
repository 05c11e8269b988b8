package output

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"libsurgeon/internal/callgraph"
	"libsurgeon/internal/classgraph"
	"libsurgeon/internal/ctypes"
	"libsurgeon/internal/symbols"
	"libsurgeon/internal/vtable"
)

// Layout is everything emitted for one decompiled executable.
type Layout struct {
	Program    string
	Strategy   string
	Units      []Unit
	Classes    map[string]*vtable.ClassInfo
	VTables    map[uint64]*vtable.VTable
	Types      []ctypes.TypeDecl
	Skipped    int
	Namespaces []string

	DebugFormat   string // "DWARF" or ""
	DebugSections []string
}

// ModuleSummary describes one emitted module.
type ModuleSummary struct {
	Key          string `json:"key"`
	File         string `json:"file"`
	Functions    int    `json:"functions"`
	Failed       int    `json:"failed"`
	Declarations int    `json:"declarations"`
}

// Summary is written to summary.json and returned to the caller.
type Summary struct {
	Program       string          `json:"program"`
	Strategy      string          `json:"strategy,omitempty"`
	Functions     int             `json:"functions"`
	Decompiled    int             `json:"decompiled"`
	Failed        int             `json:"failed"`
	Skipped       int             `json:"skipped"`
	Headers       int             `json:"headers"`
	Declarations  int             `json:"declarations"`
	Lines         int             `json:"lines"`
	Classes       vtable.Stats    `json:"classes"`
	CallEdges     int             `json:"call_edges"`
	Namespaces    []string        `json:"namespaces,omitempty"`
	DebugFormat   string          `json:"debug_format,omitempty"`
	DebugSections []string        `json:"debug_sections,omitempty"`
	Modules       []ModuleSummary `json:"modules"`
}

// assignStems maps each module key to a unique file stem.
func assignStems(keys []string) map[string]string {
	stems := make(map[string]string, len(keys))
	used := make(map[string]bool, len(keys))
	for _, k := range keys {
		stem := moduleFile(k)
		base := stem
		for n := 2; used[strings.ToLower(stem)]; n++ {
			stem = fmt.Sprintf("%s_%d", base, n)
		}
		used[strings.ToLower(stem)] = true
		stems[k] = stem
	}
	return stems
}

// WriteModules writes the executable layout under dir:
//
//	src/<module>.cpp
//	include/<module>.h, _types.h, _all_headers.h, _classes.h
//	_INDEX.md, classes.dot, summary.json
func WriteModules(dir string, l Layout) (*Summary, error) {
	srcDir := filepath.Join(dir, "src")
	incDir := filepath.Join(dir, "include")
	for _, d := range []string{srcDir, incDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return nil, fmt.Errorf("output: mkdir %s: %w", d, err)
		}
	}

	units := append([]Unit(nil), l.Units...)
	sort.Slice(units, func(i, j int) bool { return units[i].ModuleKey < units[j].ModuleKey })
	keys := make([]string, len(units))
	for i, u := range units {
		keys[i] = u.ModuleKey
	}
	stems := assignStems(keys)

	sum := &Summary{
		Program:    l.Program,
		Strategy:   l.Strategy,
		Skipped:    l.Skipped,
		Classes:    vtable.Summarize(l.Classes, l.VTables),
		Namespaces: l.Namespaces,

		DebugFormat:   l.DebugFormat,
		DebugSections: l.DebugSections,
	}
	var allStems []string

	for _, u := range units {
		stem := stems[u.ModuleKey]
		text := renderModule(u, stem, l.Program)
		if err := writeFile(filepath.Join(srcDir, stem+".cpp"), text); err != nil {
			return nil, err
		}
		sigs := Signatures(u)
		if err := writeFile(filepath.Join(incDir, stem+".h"), renderHeader(stem, u.ModuleKey, "executable decompilation", sigs)); err != nil {
			return nil, err
		}
		allStems = append(allStems, stem)

		ms := ModuleSummary{Key: u.ModuleKey, File: stem, Functions: len(u.Functions), Declarations: len(sigs)}
		for _, f := range u.Functions {
			if !f.OK {
				ms.Failed++
			}
		}
		sum.Modules = append(sum.Modules, ms)
		sum.Functions += ms.Functions
		sum.Failed += ms.Failed
		sum.Decompiled += ms.Functions - ms.Failed
		sum.Declarations += ms.Declarations
		sum.Headers++
		sum.Lines += strings.Count(text, "\n")
	}

	if err := writeFile(filepath.Join(incDir, "_types.h"), renderTypesHeader(l.Program, l.Types)); err != nil {
		return nil, err
	}
	if err := writeFile(filepath.Join(incDir, "_all_headers.h"), renderMasterHeader(l.Program, allStems)); err != nil {
		return nil, err
	}
	if len(l.Classes) > 0 {
		if err := writeFile(filepath.Join(incDir, "_classes.h"), renderClassesHeader(l.Program, l.Classes)); err != nil {
			return nil, err
		}
		if err := writeFile(filepath.Join(dir, "classes.dot"), classgraph.DOT(l.Classes, l.Program)); err != nil {
			return nil, err
		}
	}
	if g := callgraph.BuildCallGraph(callInfo(units)); len(g.Edges) > 0 {
		sum.CallEdges = len(g.Edges)
		if err := writeFile(filepath.Join(dir, "callgraph.dot"), callgraph.DOT(g, l.Program)); err != nil {
			return nil, err
		}
	}
	if err := writeFile(filepath.Join(dir, "_INDEX.md"), renderIndex(sum, units, l.Classes)); err != nil {
		return nil, err
	}
	if err := writeJSON(filepath.Join(dir, "summary.json"), sum); err != nil {
		return nil, err
	}
	return sum, nil
}

// callInfo lists the decompiled functions of units for call graph
// recovery, labeled by qualified display name.
func callInfo(units []Unit) []callgraph.FuncInfo {
	var out []callgraph.FuncInfo
	for _, u := range units {
		for _, f := range u.Functions {
			if !f.OK {
				continue
			}
			name := symbols.QualifiedName(f.DisplayName)
			if name == "" {
				name = f.Name
			}
			out = append(out, callgraph.FuncInfo{
				Name:    name,
				Aliases: []string{f.Name, f.DisplayName},
				Code:    f.Code,
			})
		}
	}
	return out
}

// renderIndex returns the _INDEX.md overview.
func renderIndex(sum *Summary, units []Unit, classes map[string]*vtable.ClassInfo) string {
	var b strings.Builder
	b.WriteString("# Decompilation Index\n\n")
	fmt.Fprintf(&b, "Source: %s\n\n", sum.Program)
	b.WriteString("## Summary\n")
	fmt.Fprintf(&b, "- Total functions: %d\n", sum.Functions)
	fmt.Fprintf(&b, "- Successfully decompiled: %d\n", sum.Decompiled)
	fmt.Fprintf(&b, "- Failed: %d\n", sum.Failed)
	fmt.Fprintf(&b, "- Skipped: %d\n", sum.Skipped)
	fmt.Fprintf(&b, "- Grouping strategy: %s\n", sum.Strategy)
	fmt.Fprintf(&b, "- Output modules: %d\n", len(units))
	fmt.Fprintf(&b, "- Header files: %d\n", sum.Headers)
	fmt.Fprintf(&b, "- Function declarations: %d\n", sum.Declarations)
	fmt.Fprintf(&b, "- C++ Classes: %d\n", sum.Classes.Classes)
	fmt.Fprintf(&b, "- Virtual Tables: %d\n", sum.Classes.VTables)
	fmt.Fprintf(&b, "- Virtual Methods: %d\n", sum.Classes.VirtualMethods)
	if sum.CallEdges > 0 {
		fmt.Fprintf(&b, "- Call edges: %d (callgraph.dot)\n", sum.CallEdges)
	}
	if sum.DebugFormat != "" {
		fmt.Fprintf(&b, "- Debug information: %s (%s)\n", sum.DebugFormat, strings.Join(sum.DebugSections, ", "))
	}
	if len(sum.Namespaces) > 0 {
		fmt.Fprintf(&b, "- Namespaces: %s\n", strings.Join(sum.Namespaces, ", "))
	}
	b.WriteString("\n")

	if len(classes) > 0 {
		b.WriteString("## C++ Classes\n\n")
		b.WriteString("| Class | Methods | Virtual | VTable |\n")
		b.WriteString("|-------|---------|---------|--------|\n")
		for _, ci := range vtable.SortedClasses(classes) {
			virt := 0
			for _, m := range ci.Methods {
				if m.Virtual {
					virt++
				}
			}
			has := "No"
			if ci.HasVTable {
				has = "Yes"
			}
			fmt.Fprintf(&b, "| %s | %d | %d | %s |\n", ci.Name, len(ci.Methods), virt, has)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Modules\n\n")
	b.WriteString("| Module | Functions | Source | Header |\n")
	b.WriteString("|--------|-----------|--------|--------|\n")
	for _, ms := range sum.Modules {
		fmt.Fprintf(&b, "| %s | %d | `src/%s.cpp` | `include/%s.h` (%d) |\n", ms.Key, ms.Functions, ms.File, ms.File, ms.Declarations)
	}

	b.WriteString("\n## Function List by Module\n\n")
	for _, u := range units {
		fmt.Fprintf(&b, "### %s\n\n", u.ModuleKey)
		for _, f := range u.Functions {
			fmt.Fprintf(&b, "- `%s` @ 0x%08x\n", f.DisplayName, f.Address)
		}
		b.WriteString("\n")
	}
	return b.String()
}

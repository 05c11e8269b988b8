package output

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"libsurgeon/internal/symbols"
)

// Object is one decompiled archive member.
type Object struct {
	Name       string // member file name, e.g. "gfx_surface.o"
	Functions  []Function
	Namespaces []string
	Skipped    int

	DebugFormat   string
	DebugSections []string
}

// ObjectStem returns the file stem used for an archive member.
func ObjectStem(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	if s := SanitizeFilename(base); s != "" {
		return s
	}
	return "_unnamed"
}

// WriteObject writes the archive-member layout under dir: src/<object>.cpp
// grouped into class sections followed by standalone functions,
// include/<object>.h and the shared include/_types.h.
func WriteObject(dir string, obj Object) (*Summary, error) {
	srcDir := filepath.Join(dir, "src")
	incDir := filepath.Join(dir, "include")
	for _, d := range []string{srcDir, incDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return nil, fmt.Errorf("output: mkdir %s: %w", d, err)
		}
	}

	stem := ObjectStem(obj.Name)
	text := renderObject(obj, stem)
	if err := writeFile(filepath.Join(srcDir, stem+".cpp"), text); err != nil {
		return nil, err
	}

	u := Unit{ModuleKey: stem, Functions: obj.Functions}
	sigs := Signatures(u)
	if err := writeFile(filepath.Join(incDir, stem+".h"), renderHeader(stem, stem, "library decompilation", sigs)); err != nil {
		return nil, err
	}
	if err := writeShared(filepath.Join(incDir, "_types.h"), renderTypesHeader("", nil)); err != nil {
		return nil, err
	}

	sum := &Summary{
		Program:      obj.Name,
		Skipped:      obj.Skipped,
		Functions:    len(obj.Functions),
		Headers:      1,
		Declarations: len(sigs),
		Lines:        strings.Count(text, "\n"),
		Namespaces:   obj.Namespaces,

		DebugFormat:   obj.DebugFormat,
		DebugSections: obj.DebugSections,
	}
	for _, f := range obj.Functions {
		if f.OK {
			sum.Decompiled++
		} else {
			sum.Failed++
		}
	}
	sum.Modules = []ModuleSummary{{Key: stem, File: stem, Functions: sum.Functions, Failed: sum.Failed, Declarations: len(sigs)}}
	return sum, nil
}

// renderObject groups functions by the simple class heuristic, classes in
// name order, then the functions without a class.
func renderObject(obj Object, stem string) string {
	byClass := make(map[string][]Function)
	var standalone []Function
	for _, f := range obj.Functions {
		if cls, ok := symbols.ClassOf(symbols.QualifiedName(f.DisplayName)); ok && f.DisplayName != f.Name {
			byClass[cls] = append(byClass[cls], f)
			continue
		}
		standalone = append(standalone, f)
	}
	classNames := make([]string, 0, len(byClass))
	for c := range byClass {
		classNames = append(classNames, c)
	}
	sort.Strings(classNames)

	var b strings.Builder
	writeFileHeader(&b, stem, obj.Name, len(obj.Functions))
	fmt.Fprintf(&b, "#include \"../include/%s.h\"\n\n", stem)
	if obj.DebugFormat != "" {
		fmt.Fprintf(&b, "/* Debug Information: %s */\n\n", obj.DebugFormat)
	}
	if len(obj.Namespaces) > 0 {
		fmt.Fprintf(&b, "// Namespaces: %s\n\n", strings.Join(obj.Namespaces, ", "))
	}
	for _, c := range classNames {
		fmt.Fprintf(&b, "%s\n// Class: %s\n%s\n\n", rule, c, rule)
		for _, f := range byClass[c] {
			writeFunction(&b, f)
		}
	}
	if len(standalone) > 0 {
		fmt.Fprintf(&b, "%s\n// Standalone Functions\n%s\n\n", rule, rule)
		for _, f := range standalone {
			writeFunction(&b, f)
		}
	}
	return b.String()
}

// writeShared writes a file other workers may write concurrently with the
// same content.
func writeShared(path, content string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("output: create temp for %s: %w", path, err)
	}
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("output: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("output: close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("output: rename %s: %w", path, err)
	}
	return nil
}

// Package output writes decompiled modules, headers and indexes to disk.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"libsurgeon/internal/symbols"
)

// Function is one classified function with its decompiled body. When OK is
// false Code is empty and Failure may carry the decompiler's reason.
type Function struct {
	symbols.ClassifiedFunction
	Code        string
	OK          bool
	Failure     string
	Virtual     bool
	VTableIndex int
	Preview     []string // disassembly shown under failure placeholders
}

// Unit is the content of one emitted module.
type Unit struct {
	ModuleKey string
	Functions []Function
}

// Signature is a declaration extracted from a decompiled body.
type Signature struct {
	Name string
	Text string
}

const rule = "// ============================================================"

var (
	illegalRe    = regexp.MustCompile(`[<>:"/\\|?*]`)
	spaceRe      = regexp.MustCompile(`\s+`)
	nonWordRe    = regexp.MustCompile(`[^\w\-]`)
	underscoreRe = regexp.MustCompile(`_+`)
)

// SanitizeFilename maps name to a safe file stem: illegal characters and
// whitespace become underscores, runs collapse, the result is trimmed of
// underscores and cut to 100 bytes.
func SanitizeFilename(name string) string {
	name = illegalRe.ReplaceAllString(name, "_")
	name = spaceRe.ReplaceAllString(name, "_")
	name = nonWordRe.ReplaceAllString(name, "_")
	name = underscoreRe.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")
	if len(name) > 100 {
		name = name[:100]
	}
	return name
}

// moduleFile returns the file stem for a module key. Keys that sanitize to
// nothing, such as "_misc", keep their own spelling.
func moduleFile(key string) string {
	if s := SanitizeFilename(key); s != "" && !strings.HasPrefix(key, "_") {
		return s
	}
	s := "_" + SanitizeFilename(key)
	if s == "_" {
		return "_unnamed"
	}
	return s
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("output: create %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("output: encode %s: %w", path, err)
	}
	return nil
}

func writeFile(path, content string) error {
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("output: write %s: %w", path, err)
	}
	return nil
}

package batch

import (
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"time"

	"libsurgeon/internal/elfx"
)

// ScanResult lists the decompilable inputs found under a directory.
type ScanResult struct {
	Archives    []string
	Executables []string
	Duration    time.Duration
}

// Total is the number of inputs found.
func (s ScanResult) Total() int { return len(s.Archives) + len(s.Executables) }

// Scan collects archives and ELF images under dir by file name. include and
// exclude are shell patterns matched against the base name; an empty
// include list admits everything.
func Scan(dir string, include, exclude []string, recursive bool) (ScanResult, error) {
	start := time.Now()
	for _, p := range append(append([]string(nil), include...), exclude...) {
		if _, err := path.Match(p, ""); err != nil {
			return ScanResult{}, fmt.Errorf("batch: pattern %q: %w", p, err)
		}
	}

	var paths []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != dir && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		paths = append(paths, p)
		return nil
	})
	if err != nil {
		return ScanResult{}, fmt.Errorf("batch: scan %s: %w", dir, err)
	}
	sort.Strings(paths)

	var res ScanResult
	for _, p := range paths {
		base := filepath.Base(p)
		if len(include) > 0 && !matchAny(base, include) {
			continue
		}
		if matchAny(base, exclude) {
			continue
		}
		switch elfx.KindByName(p) {
		case elfx.Archive:
			res.Archives = append(res.Archives, p)
		case elfx.Executable:
			res.Executables = append(res.Executables, p)
		}
	}
	res.Duration = time.Since(start)
	return res, nil
}

func matchAny(name string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := path.Match(p, name); ok {
			return true
		}
	}
	return false
}

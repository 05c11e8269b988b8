package batch

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// Extractor unpacks the members of archive into dir and returns the paths
// of the extracted object files.
type Extractor func(ctx context.Context, archive, dir string) ([]string, error)

// ExtractArchive runs the system archiver (ar x) inside dir.
func ExtractArchive(ctx context.Context, archive, dir string) ([]string, error) {
	abs, err := filepath.Abs(archive)
	if err != nil {
		return nil, fmt.Errorf("batch: %w", err)
	}
	cmd := exec.CommandContext(ctx, "ar", "x", abs)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("batch: ar x %s: %w: %s", archive, err, strings.TrimSpace(stderr.String()))
	}
	objs, err := filepath.Glob(filepath.Join(dir, "*.o"))
	if err != nil {
		return nil, fmt.Errorf("batch: %w", err)
	}
	sort.Strings(objs)
	return objs, nil
}

// ListArchive returns the member names of archive (ar t).
func ListArchive(ctx context.Context, archive string) ([]string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "ar", "t", archive)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("batch: ar t %s: %w: %s", archive, err, strings.TrimSpace(stderr.String()))
	}
	var out []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out, nil
}

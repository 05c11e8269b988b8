// Package ghidra drives Ghidra's headless analyzer and loads the JSON export
// produced by the libsurgeon post-script.
package ghidra

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ScriptName is the post-script run inside analyzeHeadless.
const ScriptName = "libsurgeon_export.py"

var (
	ErrNotFound       = errors.New("ghidra: installation not found")
	ErrScriptNotFound = errors.New("ghidra: ghidra_scripts/" + ScriptName + " not found")
)

// Install is a located Ghidra installation.
type Install struct {
	Home            string
	AnalyzeHeadless string
	JavaHome        string // empty when JAVA_HOME is already set or nothing was found
}

// caskRoots and cellarRoots are the brew install prefixes searched last.
var (
	caskRoots   = []string{"/opt/homebrew/Caskroom/ghidra", "/usr/local/Caskroom/ghidra"}
	cellarRoots = []string{"/opt/homebrew/Cellar/ghidra", "/usr/local/Cellar/ghidra"}
)

// Find locates the Ghidra installation and analyzeHeadless binary.
// Search order:
//  1. explicitHome (--ghidra or ghidra_home in the config)
//  2. GHIDRA_HOME environment variable
//  3. analyzeHeadless in PATH
//  4. ghidraRun in PATH, following the brew wrapper to the install dir
//  5. brew Caskroom and Cellar paths
func Find(explicitHome string) (Install, error) {
	home, ah, err := findHeadless(explicitHome)
	if err != nil {
		return Install{}, err
	}
	in := Install{Home: home, AnalyzeHeadless: ah}
	if os.Getenv("JAVA_HOME") == "" {
		in.JavaHome = findJavaHome(home)
	}
	return in, nil
}

func headlessIn(home string) (string, bool) {
	ah := filepath.Join(home, "support", "analyzeHeadless")
	if _, err := os.Stat(ah); err == nil {
		return ah, true
	}
	return "", false
}

func findHeadless(explicitHome string) (home, ah string, err error) {
	if explicitHome != "" {
		if ah, ok := headlessIn(explicitHome); ok {
			return explicitHome, ah, nil
		}
		return "", "", fmt.Errorf("%w: no support/analyzeHeadless under %s", ErrNotFound, explicitHome)
	}

	if gh := os.Getenv("GHIDRA_HOME"); gh != "" {
		if ah, ok := headlessIn(gh); ok {
			return gh, ah, nil
		}
	}

	if ah, err := exec.LookPath("analyzeHeadless"); err == nil {
		// support/analyzeHeadless -> parent/parent.
		return filepath.Dir(filepath.Dir(ah)), ah, nil
	}

	if gr, err := exec.LookPath("ghidraRun"); err == nil {
		if h := deriveHome(gr); h != "" {
			if ah, ok := headlessIn(h); ok {
				return h, ah, nil
			}
		}
	}

	// Caskroom layout: ghidra/<ver>/ghidra_<ver>_PUBLIC/support/analyzeHeadless
	for _, root := range caskRoots {
		versions, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for i := len(versions) - 1; i >= 0; i-- {
			if !versions[i].IsDir() {
				continue
			}
			subs, _ := os.ReadDir(filepath.Join(root, versions[i].Name()))
			for _, sub := range subs {
				if !sub.IsDir() {
					continue
				}
				h := filepath.Join(root, versions[i].Name(), sub.Name())
				if ah, ok := headlessIn(h); ok {
					return h, ah, nil
				}
			}
		}
	}

	// Cellar layout: ghidra/<ver>/libexec/support/analyzeHeadless
	for _, root := range cellarRoots {
		versions, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for i := len(versions) - 1; i >= 0; i-- {
			if !versions[i].IsDir() {
				continue
			}
			h := filepath.Join(root, versions[i].Name(), "libexec")
			if ah, ok := headlessIn(h); ok {
				return h, ah, nil
			}
		}
	}

	return "", "", fmt.Errorf(`%w

Install Ghidra:
  brew install ghidra

Or set GHIDRA_HOME:
  export GHIDRA_HOME=/path/to/ghidra

Or pass --ghidra:
  libsurgeon run --ghidra /path/to/ghidra -o <out> <dir-or-file>`, ErrNotFound)
}

// deriveHome reads a ghidraRun shell wrapper to find the real install path.
// Brew's wrapper contains: exec "/opt/homebrew/Cellar/ghidra/X.Y.Z/libexec/ghidraRun"
func deriveHome(ghidraRun string) string {
	data, err := os.ReadFile(ghidraRun)
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if !strings.Contains(line, "exec") || !strings.Contains(line, "ghidraRun") {
			continue
		}
		_, rest, ok := strings.Cut(line, `"`)
		if !ok {
			continue
		}
		target, _, ok := strings.Cut(rest, `"`)
		if !ok {
			continue
		}
		home := filepath.Dir(target)
		if _, err := os.Stat(filepath.Join(home, "support")); err == nil {
			return home
		}
	}
	return ""
}

var jdkPaths = []string{
	"/opt/homebrew/opt/openjdk@21/libexec/openjdk.jdk/Contents/Home",
	"/opt/homebrew/opt/openjdk/libexec/openjdk.jdk/Contents/Home",
	"/usr/local/opt/openjdk@21/libexec/openjdk.jdk/Contents/Home",
	"/usr/lib/jvm/default-java",
}

// findJavaHome tries to locate a JDK for Ghidra.
func findJavaHome(home string) string {
	// JAVA_HOME="${JAVA_HOME:-/opt/homebrew/opt/openjdk@21/...}"
	if data, err := os.ReadFile(filepath.Join(home, "ghidraRun")); err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			if !strings.Contains(line, "JAVA_HOME") {
				continue
			}
			_, rest, ok := strings.Cut(line, ":-")
			if !ok {
				continue
			}
			if end := strings.IndexAny(rest, `}"`); end > 0 {
				jh := rest[:end]
				if _, err := os.Stat(jh); err == nil {
					return jh
				}
			}
		}
	}
	for _, jh := range jdkPaths {
		if _, err := os.Stat(jh); err == nil {
			return jh
		}
	}
	return ""
}

// FindScriptDir returns the ghidra_scripts directory holding ScriptName.
// explicit, when set, is the only candidate.
func FindScriptDir(explicit string) (string, error) {
	var candidates []string
	if explicit != "" {
		candidates = []string{explicit}
	} else {
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		homeDir, _ := os.UserHomeDir()
		candidates = []string{
			filepath.Join(homeDir, ".libsurgeon", "ghidra_scripts"),
			filepath.Join(exeDir, "ghidra_scripts"),
			"ghidra_scripts",
			filepath.Join(exeDir, "..", "ghidra_scripts"),
		}
	}
	for _, c := range candidates {
		abs, err := filepath.Abs(c)
		if err != nil {
			continue
		}
		if _, err := os.Stat(filepath.Join(abs, ScriptName)); err == nil {
			return abs, nil
		}
	}
	return "", ErrScriptNotFound
}

// Package cleanup tidies raw decompiler output and adds structural hints.
package cleanup

import (
	"strings"
)

// state is the cleaner's position relative to function bodies.
type state int

const (
	stateOutside state = iota
	stateInside
)

// transition returns the state for a brace depth. Unbalanced input may drive
// depth negative; anything not positive counts as outside.
func transition(depth int) state {
	if depth > 0 {
		return stateInside
	}
	return stateOutside
}

// Clean removes signature-echo comments and normalizes blank lines: none
// inside function bodies, at most one in a row outside them, none directly
// after an opening-brace line or before a closing-brace line, none leading
// or trailing.
func Clean(code string) string {
	if code == "" {
		return ""
	}

	var out []string
	st := stateOutside
	depth := 0
	prevBlank := false
	prevOpen := false

	for _, line := range strings.Split(code, "\n") {
		trimmed := strings.TrimSpace(line)

		if isSignatureEcho(trimmed) {
			continue
		}

		depth += strings.Count(trimmed, "{") - strings.Count(trimmed, "}")
		st = transition(depth)

		if trimmed == "" {
			if st == stateInside || prevBlank || prevOpen || len(out) == 0 {
				continue
			}
			prevBlank = true
			out = append(out, line)
			continue
		}

		if trimmed == "}" {
			out = trimBlank(out)
		}
		prevBlank = false
		prevOpen = trimmed == "{"
		out = append(out, line)
	}

	return strings.Join(trimBlank(out), "\n")
}

// isSignatureEcho matches a lone "/* ... */" line restating a function:
// the inner text has a parenthesis or is a single short token.
func isSignatureEcho(trimmed string) bool {
	if len(trimmed) < 4 || !strings.HasPrefix(trimmed, "/*") || !strings.HasSuffix(trimmed, "*/") {
		return false
	}
	inner := strings.TrimSpace(trimmed[2 : len(trimmed)-2])
	if strings.Contains(inner, "(") {
		return true
	}
	return inner != "" && !strings.Contains(inner, " ") && len(inner) < 100
}

func trimBlank(lines []string) []string {
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

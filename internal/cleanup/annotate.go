package cleanup

import (
	"fmt"
	"regexp"
	"strings"
)

// Annotator rewrites a decompiled function body. Annotators only insert
// comments; code tokens and indentation are left as they are.
type Annotator func(code string) string

var (
	fieldRe      = regexp.MustCompile(`field_0x[0-9a-fA-F]+`)
	vtableCallRe = regexp.MustCompile(`\(\*\*\(\w+\s*\*\*\)\(\*?\(?(\w+)\)?\s*\+\s*(0x[0-9a-fA-F]+)\)\)`)
)

const vtableMarker = " /* vtable["

// FieldHints adds a note after the first opening brace when more than
// threshold distinct field_0x.. tokens are referenced.
func FieldHints(threshold int) Annotator {
	return func(code string) string {
		seen := make(map[string]bool)
		for _, m := range fieldRe.FindAllString(code, -1) {
			seen[m] = true
		}
		if len(seen) <= threshold {
			return code
		}
		pos := strings.IndexByte(code, '{')
		if pos <= 0 {
			return code
		}
		hint := fmt.Sprintf("// NOTE: %d unknown struct fields accessed - consider defining struct type", len(seen))
		if strings.Contains(code, hint) {
			return code
		}
		rest := code[pos+1:]
		if strings.HasPrefix(rest, "\n") {
			return code[:pos+1] + "\n" + hint + rest
		}
		return code[:pos+1] + "\n" + hint + "\n" + rest
	}
}

// VTableCalls marks indirect calls through a computed vtable slot,
// "(**(code **)(*this + 0x10))", with the slot offset.
func VTableCalls() Annotator {
	return func(code string) string {
		locs := vtableCallRe.FindAllStringSubmatchIndex(code, -1)
		if len(locs) == 0 {
			return code
		}
		var b strings.Builder
		last := 0
		for _, loc := range locs {
			end := loc[1]
			b.WriteString(code[last:end])
			if !strings.HasPrefix(code[end:], vtableMarker) {
				fmt.Fprintf(&b, "%s%s] */", vtableMarker, code[loc[4]:loc[5]])
			}
			last = end
		}
		b.WriteString(code[last:])
		return b.String()
	}
}

// DefaultAnnotators is the annotation pass applied by the emitter.
func DefaultAnnotators() []Annotator {
	return []Annotator{FieldHints(3), VTableCalls()}
}

// Annotate applies each annotator in order.
func Annotate(code string, annotators ...Annotator) string {
	if code == "" {
		return code
	}
	for _, a := range annotators {
		code = a(code)
	}
	return code
}

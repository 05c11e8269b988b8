package output

import (
	"sort"
	"strings"

	"libsurgeon/internal/ctypes"
)

// ExtractSignature returns the declaration in front of the first '{' of a
// decompiled body, whitespace-collapsed and type-normalized. It reports
// false when there is no brace, nothing before it, or the text ends in ';'.
func ExtractSignature(code string) (string, bool) {
	code = strings.TrimSpace(code)
	i := strings.IndexByte(code, '{')
	if i < 0 {
		return "", false
	}
	var head []string
	for _, line := range strings.Split(code[:i], "\n") {
		t := strings.TrimSpace(line)
		if strings.HasPrefix(t, "//") || (strings.HasPrefix(t, "/*") && strings.HasSuffix(t, "*/")) {
			continue
		}
		head = append(head, t)
	}
	sig := strings.Join(strings.Fields(strings.Join(head, " ")), " ")
	if sig == "" || strings.HasSuffix(sig, ";") {
		return "", false
	}
	return ctypes.NormalizeCode(sig), true
}

// Signatures extracts declarations from the successful functions of u,
// sorted by display name.
func Signatures(u Unit) []Signature {
	var sigs []Signature
	for _, f := range u.Functions {
		if !f.OK {
			continue
		}
		if text, ok := ExtractSignature(f.Code); ok {
			sigs = append(sigs, Signature{Name: f.DisplayName, Text: text})
		}
	}
	sort.SliceStable(sigs, func(i, j int) bool { return sigs[i].Name < sigs[j].Name })
	return sigs
}

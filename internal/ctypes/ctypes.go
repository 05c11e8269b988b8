// Package ctypes rewrites decompiler pseudo-types into portable C types.
package ctypes

import (
	"regexp"
	"sort"
	"strings"
)

// typeMap maps decompiler type names to C. Sized "undefined" placeholders
// map to the unkN_t aliases declared by UnknownTypedefs, odd widths round up.
var typeMap = map[string]string{
	"undefined":  "unk8_t",
	"undefined1": "unk8_t",
	"undefined2": "unk16_t",
	"undefined3": "unk32_t",
	"undefined4": "unk32_t",
	"undefined5": "unk64_t",
	"undefined6": "unk64_t",
	"undefined7": "unk64_t",
	"undefined8": "unk64_t",

	"byte":  "uint8_t",
	"ubyte": "uint8_t",
	"uchar": "uint8_t",
	"sbyte": "int8_t",
	"schar": "int8_t",

	"word":   "uint16_t",
	"ushort": "uint16_t",
	"sword":  "int16_t",

	"dword":  "uint32_t",
	"uint":   "uint32_t",
	"ulong":  "uint32_t",
	"sdword": "int32_t",

	"qword":     "uint64_t",
	"ulonglong": "uint64_t",
	"sqword":    "int64_t",
	"longlong":  "int64_t",
}

// tokenOnly names are too common as identifiers to rewrite inside code.
// They map only where a whole token is known to be a type: NormalizeType
// and declarations from the export.
var tokenOnly = map[string]string{
	"addr":    "void *",
	"pointer": "void *",
}

var codeRe = func() *regexp.Regexp {
	names := make([]string, 0, len(typeMap))
	for k := range typeMap {
		names = append(names, regexp.QuoteMeta(k))
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	return regexp.MustCompile(`\b(?:` + strings.Join(names, "|") + `)\b`)
}()

// Lookup returns the C name for a decompiler base type.
func Lookup(base string) (string, bool) {
	if c, ok := typeMap[base]; ok {
		return c, true
	}
	c, ok := tokenOnly[base]
	return c, ok
}

// NormalizeType maps a single type token, keeping its pointer arity:
// "undefined4 **" becomes "unk32_t **".
func NormalizeType(token string) string {
	if token == "" {
		return token
	}
	stars := strings.Count(token, "*")
	base := strings.TrimSpace(strings.ReplaceAll(token, "*", ""))
	if c, ok := Lookup(base); ok {
		stars += strings.Count(c, "*")
		base = strings.TrimSpace(strings.ReplaceAll(c, "*", ""))
	}
	if stars > 0 {
		return base + " " + strings.Repeat("*", stars)
	}
	return base
}

// NormalizeCode rewrites every mapped type name in text on word boundaries.
func NormalizeCode(text string) string {
	if text == "" {
		return text
	}
	return codeRe.ReplaceAllStringFunc(text, func(m string) string {
		return typeMap[m]
	})
}

// UnknownTypedefs declares the unkN_t aliases. They default to signed.
const UnknownTypedefs = `/*
 * Unknown types: the decompiler could not determine signedness.
 * Switch to uint*_t where unsigned behavior is observed.
 */
typedef int8_t   unk8_t;    /* undefined1 */
typedef int16_t  unk16_t;   /* undefined2 */
typedef int32_t  unk32_t;   /* undefined4 */
typedef int64_t  unk64_t;   /* undefined8 */

typedef intptr_t unkptr_t;  /* pointer-sized */
`

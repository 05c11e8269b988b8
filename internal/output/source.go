package output

import (
	"fmt"
	"io"
	"strings"
)

// writeFileHeader writes the banner and standard includes of a .cpp unit.
func writeFileHeader(w io.Writer, module, program string, funcCount int) {
	fmt.Fprintf(w, "/**\n * Module: %s\n", module)
	if program != "" {
		fmt.Fprintf(w, " * Source: %s\n", program)
	}
	fmt.Fprintf(w, " * Functions: %d\n", funcCount)
	fmt.Fprint(w, " *\n * Generated by libsurgeon from decompiler output.\n")
	fmt.Fprint(w, " * This is reverse-engineered pseudo-source for analysis; it is not expected to compile.\n */\n\n")
	fmt.Fprint(w, "#include <stdint.h>\n#include <stdbool.h>\n#include <stddef.h>\n\n")
}

// writeFunction writes one function block: the tag header and the body, or
// the failure placeholder.
func writeFunction(w io.Writer, f Function) {
	if !f.OK {
		writeFailure(w, f)
		return
	}
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "// Function: %s\n", f.DisplayName)
	if f.Name != f.DisplayName {
		fmt.Fprintf(w, "// Mangled: %s\n", f.Name)
	}
	if f.ClassName != "" {
		fmt.Fprintf(w, "// Class: %s\n", f.ClassName)
	}
	if f.Virtual {
		if f.VTableIndex >= 0 {
			fmt.Fprintf(w, "// Virtual: Yes (vtable index %d)\n", f.VTableIndex)
		} else {
			fmt.Fprintln(w, "// Virtual: Yes")
		}
	}
	fmt.Fprintf(w, "// Address: 0x%08x\n", f.Address)
	fmt.Fprintf(w, "%s\n\n", rule)
	fmt.Fprintf(w, "%s\n\n", strings.TrimRight(f.Code, "\n"))
}

func writeFailure(w io.Writer, f Function) {
	fmt.Fprintf(w, "// [FAILED] Could not decompile: %s\n", f.DisplayName)
	fmt.Fprintf(w, "// Address: 0x%08x\n", f.Address)
	if f.Failure != "" {
		fmt.Fprintf(w, "// Reason: %s\n", oneLine(f.Failure))
	}
	for _, p := range f.Preview {
		fmt.Fprintln(w, p)
	}
	fmt.Fprintln(w)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// renderModule returns the .cpp text of one module in the executable layout.
func renderModule(u Unit, stem, program string) string {
	var b strings.Builder
	writeFileHeader(&b, u.ModuleKey, program, len(u.Functions))
	fmt.Fprintf(&b, "#include \"../include/%s.h\"\n\n", stem)
	for _, f := range u.Functions {
		writeFunction(&b, f)
	}
	return b.String()
}

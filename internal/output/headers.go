package output

import (
	"fmt"
	"sort"
	"strings"

	"libsurgeon/internal/ctypes"
	"libsurgeon/internal/vtable"
)

const stdIncludes = "#include <stdint.h>\n#include <stdbool.h>\n#include <stddef.h>\n"

func guardName(stem string) string {
	return "_" + strings.ToUpper(stem) + "_H_"
}

// renderHeader returns a module header declaring sigs inside an extern "C"
// guard. source describes what the declarations were extracted from.
func renderHeader(stem, module, source string, sigs []Signature) string {
	guard := guardName(stem)
	var b strings.Builder
	fmt.Fprintf(&b, "/**\n * Header: %s.h\n * Module: %s\n * Functions: %d\n *\n", stem, module, len(sigs))
	fmt.Fprintf(&b, " * Generated by libsurgeon from %s.\n */\n\n", source)
	fmt.Fprintf(&b, "#ifndef %s\n#define %s\n\n", guard, guard)
	b.WriteString(stdIncludes)
	b.WriteString("#include \"_types.h\"\n\n")
	b.WriteString("#ifdef __cplusplus\nextern \"C\" {\n#endif\n\n")
	b.WriteString("/* Function Declarations */\n\n")
	for _, s := range sigs {
		fmt.Fprintf(&b, "/* %s */\n%s;\n\n", s.Name, s.Text)
	}
	b.WriteString("#ifdef __cplusplus\n}\n#endif\n\n")
	fmt.Fprintf(&b, "#endif /* %s */\n", guard)
	return b.String()
}

// renderMasterHeader includes every module header.
func renderMasterHeader(program string, stems []string) string {
	sorted := append([]string(nil), stems...)
	sort.Strings(sorted)
	var b strings.Builder
	fmt.Fprintf(&b, "/**\n * Master Header File\n * Source: %s\n * Modules: %d\n *\n", program, len(sorted))
	b.WriteString(" * Generated by libsurgeon. Include this file to get all function declarations.\n */\n\n")
	b.WriteString("#ifndef _ALL_HEADERS_H_\n#define _ALL_HEADERS_H_\n\n")
	b.WriteString("#include \"_types.h\"\n\n")
	for _, s := range sorted {
		fmt.Fprintf(&b, "#include \"%s.h\"\n", s)
	}
	b.WriteString("\n#endif /* _ALL_HEADERS_H_ */\n")
	return b.String()
}

const section = "/* ============================================ */\n"

// renderTypesHeader declares the unknown-type aliases followed by the
// program's own structures, enums and typedefs.
func renderTypesHeader(program string, decls []ctypes.TypeDecl) string {
	structs, enums, typedefs := ctypes.SplitDecls(decls)

	var b strings.Builder
	b.WriteString("/**\n * Type Definitions for Decompiled Code\n")
	if program != "" {
		fmt.Fprintf(&b, " * Source: %s\n", program)
	}
	fmt.Fprintf(&b, " * Structures: %d\n * Enums: %d\n * Typedefs: %d\n *\n", len(structs), len(enums), len(typedefs))
	b.WriteString(" * Generated by libsurgeon.\n */\n\n")
	b.WriteString("#ifndef _LIBSURGEON_TYPES_H_\n#define _LIBSURGEON_TYPES_H_\n\n")
	b.WriteString(stdIncludes)
	b.WriteString("\n")
	b.WriteString(ctypes.UnknownTypedefs)
	b.WriteString("\n")

	if len(structs) > 0 {
		b.WriteString("/* Forward Declarations */\n")
		for _, d := range structs {
			fmt.Fprintf(&b, "struct %s;\n", d.Name)
		}
		b.WriteString("\n")
	}
	writeDecls := func(title string, ds []ctypes.TypeDecl) {
		if len(ds) == 0 {
			return
		}
		b.WriteString(section)
		fmt.Fprintf(&b, "/* %-44s */\n", title)
		b.WriteString(section)
		b.WriteString("\n")
		for _, d := range ds {
			b.WriteString(ctypes.FormatDecl(d))
			b.WriteString("\n\n")
		}
	}
	writeDecls("ENUMS", enums)
	writeDecls("TYPEDEFS", typedefs)
	writeDecls("STRUCTURES", structs)

	b.WriteString("#endif /* _LIBSURGEON_TYPES_H_ */\n")
	return b.String()
}

// renderClassesHeader documents reconstructed classes. It is analysis
// output, not a usable declaration set.
func renderClassesHeader(program string, classes map[string]*vtable.ClassInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "/**\n * C++ Class Analysis\n * Source: %s\n * Classes found: %d\n *\n", program, len(classes))
	b.WriteString(" * Generated by libsurgeon. This is analysis output, not compilable code.\n */\n\n")
	b.WriteString("#ifndef _CLASSES_H_\n#define _CLASSES_H_\n\n")
	b.WriteString("#include \"_types.h\"\n\n")

	bar := "/* " + strings.Repeat("=", 56) + " */\n"
	for _, ci := range vtable.SortedClasses(classes) {
		b.WriteString(bar)
		fmt.Fprintf(&b, "/* Class: %s */\n", ci.Name)
		b.WriteString(bar)
		b.WriteString("\n")

		if ci.HasVTable {
			fmt.Fprintf(&b, "/* VTable at: 0x%08x */\n", ci.VTableAddr)
			fmt.Fprintf(&b, "/* Virtual methods: %d */\n", len(ci.VTableEntries))
			if len(ci.VTableEntries) > 0 {
				b.WriteString("/*\n * Virtual Function Table:\n")
				for _, e := range ci.VTableEntries {
					fmt.Fprintf(&b, " *   [%d] %s @ 0x%08x\n", e.Index, e.TargetName, e.Target)
				}
				b.WriteString(" */\n")
			}
			b.WriteString("\n")
		}

		safe := strings.ReplaceAll(ci.Name, "::", "_")
		fmt.Fprintf(&b, "typedef struct %s %s;\n", safe, safe)
		fmt.Fprintf(&b, "struct %s {\n", safe)
		if len(ci.VTableEntries) > 0 {
			b.WriteString("    void **_vptr;  /* Virtual function table pointer */\n")
		}
		b.WriteString("    /* member fields unknown */\n")
		b.WriteString("};\n\n")

		methods := append([]vtable.Method(nil), ci.Methods...)
		sort.SliceStable(methods, func(i, j int) bool { return methods[i].Name < methods[j].Name })
		fmt.Fprintf(&b, "/* Methods (%d) */\n", len(methods))
		for _, m := range methods {
			mark := ""
			if m.Virtual && m.VTableIndex >= 0 {
				mark = fmt.Sprintf("[virtual:%d] ", m.VTableIndex)
			}
			kw := ""
			if m.Virtual {
				kw = "virtual "
			}
			fmt.Fprintf(&b, "/* %s%s%s */\n", mark, kw, m.Name)
		}
		b.WriteString("\n")
	}
	b.WriteString("#endif /* _CLASSES_H_ */\n")
	return b.String()
}

package ctypes

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind is the flavor of a user-defined type.
type Kind string

const (
	KindStruct  Kind = "struct"
	KindEnum    Kind = "enum"
	KindTypedef Kind = "typedef"
)

// Field is one structure member.
type Field struct {
	Name     string `json:"name,omitempty"`
	Type     string `json:"type"`
	Offset   int    `json:"offset"`
	Size     int    `json:"size"`
	ArrayLen int    `json:"array_len,omitempty"` // element count when Type is the element type
}

// EnumValue is one enumerator.
type EnumValue struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

// TypeDecl is a user-defined type as enumerated by the decompiler.
type TypeDecl struct {
	Kind     Kind        `json:"kind"`
	Name     string      `json:"name"`
	Category string      `json:"category,omitempty"`
	Size     int         `json:"size"`
	Fields   []Field     `json:"fields,omitempty"`
	Values   []EnumValue `json:"values,omitempty"`
	Base     string      `json:"base,omitempty"` // typedef target
}

// Keep reports whether d is worth emitting: built-in categories, anonymous
// "_<digits>" names and undefined placeholders are dropped.
func Keep(d TypeDecl) bool {
	parts := strings.Split(strings.TrimPrefix(d.Category, "/"), "/")
	if len(parts) > 0 && (parts[0] == "BuiltInTypes" || parts[0] == "windows") {
		return false
	}
	if strings.HasPrefix(d.Name, "_") {
		if _, err := strconv.Atoi(d.Name[1:]); err == nil {
			return false
		}
	}
	if d.Name == "" || strings.HasPrefix(d.Name, "undefined") {
		return false
	}
	switch d.Kind {
	case KindStruct, KindEnum, KindTypedef:
		return true
	}
	return false
}

// FormatDecl renders d as a C declaration. Unnamed fields are named after
// their offset.
func FormatDecl(d TypeDecl) string {
	var b strings.Builder
	switch d.Kind {
	case KindStruct:
		fmt.Fprintf(&b, "typedef struct %s {\n", d.Name)
		for _, f := range d.Fields {
			name := f.Name
			if name == "" {
				name = fmt.Sprintf("field_0x%x", f.Offset)
			}
			typ := NormalizeType(f.Type)
			if f.ArrayLen > 0 {
				fmt.Fprintf(&b, "    %s %s[%d];  /* offset: 0x%x, size: %d */\n", typ, name, f.ArrayLen, f.Offset, f.Size)
			} else {
				fmt.Fprintf(&b, "    %s %s;  /* offset: 0x%x, size: %d */\n", typ, name, f.Offset, f.Size)
			}
		}
		fmt.Fprintf(&b, "} %s;  /* size: %d */", d.Name, d.Size)
	case KindEnum:
		vals := append([]EnumValue(nil), d.Values...)
		sort.SliceStable(vals, func(i, j int) bool { return vals[i].Value < vals[j].Value })
		fmt.Fprintf(&b, "typedef enum %s {\n", d.Name)
		for i, v := range vals {
			sep := ","
			if i == len(vals)-1 {
				sep = ""
			}
			fmt.Fprintf(&b, "    %s = %d%s\n", v.Name, v.Value, sep)
		}
		fmt.Fprintf(&b, "} %s;", d.Name)
	case KindTypedef:
		fmt.Fprintf(&b, "typedef %s %s;", NormalizeType(d.Base), d.Name)
	}
	return b.String()
}

// SplitDecls partitions decls by kind, each sorted by name. Decls failing
// Keep are dropped.
func SplitDecls(decls []TypeDecl) (structs, enums, typedefs []TypeDecl) {
	for _, d := range decls {
		if !Keep(d) {
			continue
		}
		switch d.Kind {
		case KindStruct:
			structs = append(structs, d)
		case KindEnum:
			enums = append(enums, d)
		case KindTypedef:
			typedefs = append(typedefs, d)
		}
	}
	for _, s := range [][]TypeDecl{structs, enums, typedefs} {
		sort.SliceStable(s, func(i, j int) bool { return s[i].Name < s[j].Name })
	}
	return structs, enums, typedefs
}

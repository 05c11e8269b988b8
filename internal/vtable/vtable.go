// Package vtable discovers virtual function tables in a decompiled binary and
// reconstructs C++ class descriptions from them and from method symbols.
package vtable

import (
	"regexp"
	"sort"
	"strings"

	"libsurgeon/internal/symbols"
)

// MaxEntries bounds a single table scan.
const MaxEntries = 100

// rttiSlots is the number of leading non-function words (offset-to-top,
// typeinfo) tolerated before a table is considered to have ended.
const rttiSlots = 2

// Memory reads pointer-sized words from the loaded image.
type Memory interface {
	ReadPointer(addr uint64, size int) (uint64, error)
}

// Functions resolves an address to the function starting there.
type Functions interface {
	FunctionAt(addr uint64) (name string, ok bool)
}

// Entry is one resolved vtable slot.
type Entry struct {
	Index      int    `json:"index"`
	Target     uint64 `json:"target"`
	TargetName string `json:"target_name"`
}

// VTable is a discovered table. ClassName may be empty.
type VTable struct {
	Address   uint64  `json:"address"`
	Symbol    string  `json:"symbol"`
	ClassName string  `json:"class_name,omitempty"`
	Entries   []Entry `json:"entries"`
}

var (
	itaniumRe   = regexp.MustCompile(`^_ZTV`)
	vtableForRe = regexp.MustCompile(`(?i)^vtable\s+for\s+`)
	vtPrefixRe  = regexp.MustCompile(`(?i)^__vt_`)
	vtblRe      = regexp.MustCompile(`(?i)_vtbl$`)
)

// IsVTableSymbol reports whether name follows a known vtable naming
// convention: Itanium "_ZTV", demangled "vtable for X", "__vt_X" or "X_vtbl".
func IsVTableSymbol(name string) bool {
	return itaniumRe.MatchString(name) || vtableForRe.MatchString(name) ||
		vtPrefixRe.MatchString(name) || vtblRe.MatchString(name)
}

// ClassFromVTableSymbol derives the class name from a vtable symbol. Itanium
// names are demangled first; if that fails the raw "_ZTV" prefix is cut.
// Returns "" for names that are not vtable symbols.
func ClassFromVTableSymbol(name string, d symbols.Demangler) string {
	switch {
	case itaniumRe.MatchString(name):
		if d != nil {
			if dem, ok := d.Demangle(name); ok {
				if cls := ClassFromVTableSymbol(dem, nil); cls != "" {
					return cls
				}
			}
		}
		return name[len("_ZTV"):]
	case vtableForRe.MatchString(name):
		return strings.TrimSpace(vtableForRe.ReplaceAllString(name, ""))
	case vtPrefixRe.MatchString(name):
		return vtPrefixRe.ReplaceAllString(name, "")
	case vtblRe.MatchString(name):
		return vtblRe.ReplaceAllString(name, "")
	}
	return ""
}

// ParseEntries reads consecutive pointer-sized words starting at addr. The
// first rttiSlots+1 words may fail to resolve without ending the scan; after
// that the first unresolved word or read error ends it. Only resolved words
// are recorded, indexed in order from 0.
func ParseEntries(mem Memory, funcs Functions, addr uint64, ptrSize int) []Entry {
	if ptrSize <= 0 {
		return nil
	}
	var entries []Entry
	cur := addr
	for slot := 0; len(entries) < MaxEntries; slot++ {
		ptr, err := mem.ReadPointer(cur, ptrSize)
		if err != nil {
			break
		}
		name, ok := funcs.FunctionAt(ptr)
		switch {
		case ok:
			entries = append(entries, Entry{Index: len(entries), Target: ptr, TargetName: name})
		case slot > rttiSlots:
			return entries
		}
		cur += uint64(ptrSize)
	}
	return entries
}

// Discover scans syms for vtable-shaped objects and parses each. Tables
// with no resolved entries are dropped.
func Discover(syms []symbols.Symbol, mem Memory, funcs Functions, ptrSize int, d symbols.Demangler) map[uint64]*VTable {
	out := make(map[uint64]*VTable)
	for _, s := range syms {
		name := s.Name
		if !IsVTableSymbol(name) {
			if !IsVTableSymbol(s.Demangled) {
				continue
			}
			name = s.Demangled
		}
		if _, seen := out[s.Address]; seen {
			continue
		}
		entries := ParseEntries(mem, funcs, s.Address, ptrSize)
		if len(entries) == 0 {
			continue
		}
		cls := ""
		if s.Demangled != "" && vtableForRe.MatchString(s.Demangled) {
			cls = ClassFromVTableSymbol(s.Demangled, nil)
		} else {
			cls = ClassFromVTableSymbol(name, d)
		}
		out[s.Address] = &VTable{
			Address:   s.Address,
			Symbol:    s.Name,
			ClassName: cls,
			Entries:   entries,
		}
	}
	return out
}

// Sorted returns the tables ordered by address.
func Sorted(vtables map[uint64]*VTable) []*VTable {
	out := make([]*VTable, 0, len(vtables))
	for _, vt := range vtables {
		out = append(out, vt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

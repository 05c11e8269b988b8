package vtable

import (
	"sort"
	"strings"

	"libsurgeon/internal/symbols"
)

// Method is one member function of a reconstructed class. VTableIndex is -1
// when the method is virtual by convention or reference but matched no slot.
type Method struct {
	Mangled     string `json:"mangled"`
	Name        string `json:"name"`
	Address     uint64 `json:"address"`
	Virtual     bool   `json:"virtual"`
	VTableIndex int    `json:"vtable_index"`
}

// ClassInfo aggregates the methods and vtable of one class.
type ClassInfo struct {
	Name          string   `json:"name"`
	Methods       []Method `json:"methods"`
	VTableAddr    uint64   `json:"vtable_addr,omitempty"`
	HasVTable     bool     `json:"has_vtable"`
	VTableEntries []Entry  `json:"vtable_entries,omitempty"`
}

// IsVirtual reports the symbol-level virtuality signals: an implicit-this
// calling convention, or a reference from a data section.
func IsVirtual(sym symbols.Symbol) bool {
	if strings.Contains(strings.ToLower(sym.CallingConvention), "thiscall") {
		return true
	}
	return sym.DataReferenced
}

// BuildClasses assembles classes in two passes. The first collects methods
// from funcs, matching each address against every vtable claiming the same
// class; a match is authoritative for the index. The second attaches each
// vtable to the class of the same name.
func BuildClasses(funcs []symbols.ClassifiedFunction, vtables map[uint64]*VTable) map[string]*ClassInfo {
	byClass := make(map[string][]*VTable)
	for _, vt := range Sorted(vtables) {
		if vt.ClassName != "" {
			byClass[vt.ClassName] = append(byClass[vt.ClassName], vt)
		}
	}

	classes := make(map[string]*ClassInfo)
	for _, f := range funcs {
		if !f.IsMethod() {
			continue
		}
		ci, ok := classes[f.ClassName]
		if !ok {
			ci = &ClassInfo{Name: f.ClassName}
			classes[f.ClassName] = ci
		}
		m := Method{
			Mangled:     f.Name,
			Name:        symbols.MethodName(f.DisplayName),
			Address:     f.Address,
			Virtual:     IsVirtual(f.Symbol),
			VTableIndex: -1,
		}
		if idx, ok := matchSlot(byClass[f.ClassName], f.Address); ok {
			m.Virtual = true
			m.VTableIndex = idx
		}
		ci.Methods = append(ci.Methods, m)
	}

	for _, vt := range Sorted(vtables) {
		ci, ok := classes[vt.ClassName]
		if !ok || ci.HasVTable {
			continue
		}
		ci.VTableAddr = vt.Address
		ci.HasVTable = true
		ci.VTableEntries = vt.Entries
	}
	return classes
}

func matchSlot(tables []*VTable, addr uint64) (int, bool) {
	for _, vt := range tables {
		for _, e := range vt.Entries {
			if e.Target == addr {
				return e.Index, true
			}
		}
	}
	return -1, false
}

// SortedClasses returns classes ordered by name.
func SortedClasses(classes map[string]*ClassInfo) []*ClassInfo {
	out := make([]*ClassInfo, 0, len(classes))
	for _, ci := range classes {
		out = append(out, ci)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Index maps mangled method names to their reconstructed Method.
type Index map[string]Method

// NewIndex builds an Index over all class methods.
func NewIndex(classes map[string]*ClassInfo) Index {
	ix := make(Index)
	for _, ci := range classes {
		for _, m := range ci.Methods {
			ix[m.Mangled] = m
		}
	}
	return ix
}

// Lookup finds the method recorded for mangled.
func (ix Index) Lookup(mangled string) (Method, bool) {
	m, ok := ix[mangled]
	return m, ok
}

// Stats summarizes a reconstruction.
type Stats struct {
	Classes        int `json:"classes"`
	VTables        int `json:"vtables"`
	VirtualMethods int `json:"virtual_methods"`
}

// Summarize counts classes, vtables and virtual methods.
func Summarize(classes map[string]*ClassInfo, vtables map[uint64]*VTable) Stats {
	s := Stats{Classes: len(classes), VTables: len(vtables)}
	for _, ci := range classes {
		for _, m := range ci.Methods {
			if m.Virtual {
				s.VirtualMethods++
			}
		}
	}
	return s
}

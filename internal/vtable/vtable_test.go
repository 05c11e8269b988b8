package vtable

import (
	"errors"
	"fmt"
	"testing"

	"libsurgeon/internal/symbols"
)

// fakeImage is a word-addressed memory with a function table.
type fakeImage struct {
	words map[uint64]uint64
	funcs map[uint64]string
}

var errUnmapped = errors.New("unmapped")

func (m *fakeImage) ReadPointer(addr uint64, size int) (uint64, error) {
	v, ok := m.words[addr]
	if !ok {
		return 0, errUnmapped
	}
	return v, nil
}

func (m *fakeImage) FunctionAt(addr uint64) (string, bool) {
	name, ok := m.funcs[addr]
	return name, ok
}

// table lays out values as consecutive 8-byte words at base.
func (m *fakeImage) table(base uint64, values ...uint64) {
	for i, v := range values {
		m.words[base+uint64(i*8)] = v
	}
}

func newImage() *fakeImage {
	return &fakeImage{words: map[uint64]uint64{}, funcs: map[uint64]string{}}
}

func TestIsVTableSymbol(t *testing.T) {
	tests := map[string]bool{
		"_ZTV3Foo":          true,
		"vtable for Foo":    true,
		"VTABLE FOR Foo":    true,
		"__vt_Foo":          true,
		"Foo_vtbl":          true,
		"Foo_VTBL":          true,
		"_ZTI3Foo":          false,
		"my_vtable_builder": false,
		"":                  false,
	}
	for name, want := range tests {
		if got := IsVTableSymbol(name); got != want {
			t.Errorf("IsVTableSymbol(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestClassFromVTableSymbol(t *testing.T) {
	d := symbols.ItaniumDemangler{}
	tests := []struct {
		name string
		d    symbols.Demangler
		want string
	}{
		{"_ZTV3Foo", d, "Foo"},
		{"_ZTVN2ns3BarE", d, "ns::Bar"},
		{"_ZTV9CoreView", nil, "9CoreView"},
		{"vtable for Widget", nil, "Widget"},
		{"__vt_Shape", nil, "Shape"},
		{"Shape_vtbl", nil, "Shape"},
		{"plain", nil, ""},
	}
	for _, tt := range tests {
		if got := ClassFromVTableSymbol(tt.name, tt.d); got != tt.want {
			t.Errorf("ClassFromVTableSymbol(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestParseEntriesSkipsRTTI(t *testing.T) {
	for _, n := range []int{1, 5, 50, MaxEntries - 2} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			m := newImage()
			values := []uint64{0, 0x9000} // offset-to-top, typeinfo
			for i := 0; i < n; i++ {
				addr := 0x1000 + uint64(i)*0x10
				m.funcs[addr] = fmt.Sprintf("f%d", i)
				values = append(values, addr)
			}
			values = append(values, 0, 0, 0) // trailing garbage
			m.table(0x5000, values...)

			entries := ParseEntries(m, m, 0x5000, 8)
			if len(entries) != n {
				t.Fatalf("got %d entries, want %d", len(entries), n)
			}
			for i, e := range entries {
				if e.Index != i {
					t.Errorf("entry %d has index %d", i, e.Index)
				}
				if e.TargetName != fmt.Sprintf("f%d", i) {
					t.Errorf("entry %d target %q", i, e.TargetName)
				}
			}
		})
	}
}

func TestParseEntriesBounded(t *testing.T) {
	m := newImage()
	m.funcs[0x1000] = "spin"
	for i := uint64(0); i < 500; i++ {
		m.words[0x5000+i*8] = 0x1000
	}
	if got := len(ParseEntries(m, m, 0x5000, 8)); got != MaxEntries {
		t.Errorf("got %d entries, want cap %d", got, MaxEntries)
	}
}

func TestParseEntriesStopsAfterRTTIWindow(t *testing.T) {
	m := newImage()
	m.funcs[0x1000] = "a"
	m.funcs[0x1010] = "b"
	m.table(0x5000, 0x1000, 0x1010, 0x2, 0x3, 0x1000)
	entries := ParseEntries(m, m, 0x5000, 8)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
}

func TestParseEntriesReadError(t *testing.T) {
	m := newImage()
	m.funcs[0x1000] = "a"
	m.table(0x5000, 0x1000) // next read is unmapped
	if got := len(ParseEntries(m, m, 0x5000, 8)); got != 1 {
		t.Errorf("got %d entries, want 1", got)
	}
	if got := ParseEntries(m, m, 0x7000, 8); got != nil {
		t.Errorf("unmapped table: %v", got)
	}
}

func TestDiscover(t *testing.T) {
	m := newImage()
	m.funcs[0x1000] = "_ZN3Foo1aEv"
	m.table(0x5000, 0, 0x9000, 0x1000, 0)
	m.table(0x6000, 0, 0, 0, 0) // no functions
	syms := []symbols.Symbol{
		{Name: "_ZTV3Foo", Address: 0x5000},
		{Name: "_ZTV3Bar", Address: 0x6000},
		{Name: "not_a_table", Address: 0x5000},
	}
	vts := Discover(syms, m, m, 8, symbols.ItaniumDemangler{})
	if len(vts) != 1 {
		t.Fatalf("got %d vtables, want 1", len(vts))
	}
	vt := vts[0x5000]
	if vt == nil || vt.ClassName != "Foo" || len(vt.Entries) != 1 {
		t.Errorf("vtable = %+v", vt)
	}
}

func TestIsVirtual(t *testing.T) {
	tests := []struct {
		sym  symbols.Symbol
		want bool
	}{
		{symbols.Symbol{CallingConvention: "__thiscall"}, true},
		{symbols.Symbol{CallingConvention: "__THISCALL"}, true},
		{symbols.Symbol{DataReferenced: true}, true},
		{symbols.Symbol{CallingConvention: "__cdecl"}, false},
		{symbols.Symbol{}, false},
	}
	for _, tt := range tests {
		if got := IsVirtual(tt.sym); got != tt.want {
			t.Errorf("IsVirtual(%+v) = %v, want %v", tt.sym, got, tt.want)
		}
	}
}

func TestBuildClassesScenario(t *testing.T) {
	m := newImage()
	m.funcs[0x1000] = "_ZN3Foo4baseEv"
	m.funcs[0x1100] = "_ZN3Foo1bEv"
	m.table(0x5000, 0, 0x9000, 0x1000, 0x1100, 0)

	vts := Discover([]symbols.Symbol{{Name: "_ZTV3Foo", Address: 0x5000}}, m, m, 8, symbols.ItaniumDemangler{})
	if vt := vts[0x5000]; vt == nil || len(vt.Entries) != 2 {
		t.Fatalf("vtable = %+v", vt)
	}

	c := symbols.Classifier{Strategy: symbols.Prefix{}}
	funcs := []symbols.ClassifiedFunction{
		c.Classify(symbols.Symbol{Name: "_ZN3Foo1aEv", Demangled: "void __thiscall Foo::a(Foo * this)", Address: 0x1200, CallingConvention: "__thiscall"}),
		c.Classify(symbols.Symbol{Name: "_ZN3Foo1bEv", Demangled: "void Foo::b(void)", Address: 0x1100}),
		c.Classify(symbols.Symbol{Name: "_ZN3Foo1cEv", Demangled: "void Foo::c(void)", Address: 0x1300}),
		c.Classify(symbols.Symbol{Name: "main", Address: 0x2000}),
	}
	classes := BuildClasses(funcs, vts)
	if len(classes) != 1 {
		t.Fatalf("got %d classes, want 1", len(classes))
	}
	foo := classes["Foo"]
	if foo == nil {
		t.Fatal("class Foo missing")
	}
	if len(foo.Methods) != 3 {
		t.Fatalf("Foo has %d methods, want 3", len(foo.Methods))
	}
	if !foo.HasVTable || foo.VTableAddr != 0x5000 || len(foo.VTableEntries) != 2 {
		t.Errorf("vtable not attached: %+v", foo)
	}

	want := map[string]struct {
		virtual bool
		index   int
	}{
		"a": {true, -1},
		"b": {true, 1},
		"c": {false, -1},
	}
	for _, m := range foo.Methods {
		w, ok := want[m.Name]
		if !ok {
			t.Errorf("unexpected method %q", m.Name)
			continue
		}
		if m.Virtual != w.virtual || m.VTableIndex != w.index {
			t.Errorf("method %s: virtual=%v index=%d, want %v %d", m.Name, m.Virtual, m.VTableIndex, w.virtual, w.index)
		}
	}

	ix := NewIndex(classes)
	if got, ok := ix.Lookup("_ZN3Foo1bEv"); !ok || got.VTableIndex != 1 {
		t.Errorf("Lookup(b) = %+v, %v", got, ok)
	}
	if got, ok := ix.Lookup("_ZN3Foo1aEv"); !ok || got.Name != "a" {
		t.Errorf("Lookup(a) = %+v, %v", got, ok)
	}

	st := Summarize(classes, vts)
	if st.Classes != 1 || st.VTables != 1 || st.VirtualMethods != 2 {
		t.Errorf("Stats = %+v", st)
	}
}

func TestBuildClassesUnmatchedVTable(t *testing.T) {
	vts := map[uint64]*VTable{
		0x5000: {Address: 0x5000, ClassName: "Orphan", Entries: []Entry{{Index: 0, Target: 0x1000}}},
	}
	classes := BuildClasses(nil, vts)
	if len(classes) != 0 {
		t.Errorf("vtable without methods created classes: %v", classes)
	}
}

func TestBuildClassesFreeFunctions(t *testing.T) {
	c := symbols.Classifier{Demangler: symbols.ItaniumDemangler{}}
	funcs := []symbols.ClassifiedFunction{
		c.Classify(symbols.Symbol{Name: "_Z5parseRKSs", Address: 0x100}),
		c.Classify(symbols.Symbol{Name: "helper", Demangled: "void helper(std::string const &)", Address: 0x200}),
		c.Classify(symbols.Symbol{Name: "_ZN3Foo3barEi", Address: 0x300}),
	}
	for _, f := range funcs[:2] {
		if f.IsMethod() {
			t.Errorf("%s (%q): ClassName = %q, want none", f.Name, f.DisplayName, f.ClassName)
		}
	}
	classes := BuildClasses(funcs, nil)
	if len(classes) != 1 || classes["Foo"] == nil {
		for _, ci := range SortedClasses(classes) {
			t.Logf("class %q", ci.Name)
		}
		t.Errorf("got %d classes, want only Foo", len(classes))
	}
}

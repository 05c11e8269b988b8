package symbols

import (
	"errors"
	"testing"
)

func TestClassPath(t *testing.T) {
	tests := []struct {
		display string
		class   string
		ok      bool
	}{
		{"void Foo::Bar::Baz(int)", "Foo::Bar", true},
		{"void A::B::C::Method(void)", "A::B::C", true},
		{"void __thiscall CoreView::Init(CoreView * this)", "CoreView", true},
		{"Foo::bar", "Foo", true},
		{"std::vector<int>::push_back(int const&)", "std::vector<int>", true},
		{"main", "", false},
		{"", "", false},
		{"parse(std::string const&)", "", false},
		{"void helper(std::string const &)", "", false},
		{"std::map<int, int>::find(int const&)", "std::map<int, int>", true},
	}
	for _, tt := range tests {
		got, ok := ClassPath(tt.display)
		if got != tt.class || ok != tt.ok {
			t.Errorf("ClassPath(%q) = %q, %v; want %q, %v", tt.display, got, ok, tt.class, tt.ok)
		}
	}
}

func TestMethodName(t *testing.T) {
	if got := MethodName("void Foo::Bar::Baz(int)"); got != "Baz" {
		t.Errorf("MethodName = %q, want Baz", got)
	}
	if got := MethodName("plain"); got != "plain" {
		t.Errorf("MethodName(plain) = %q", got)
	}
}

func TestClassOf(t *testing.T) {
	tests := []struct {
		display string
		class   string
		ok      bool
	}{
		{"A::B", "A", true},
		{"A::B::C", "B", true},
		{"Foo::Bar::Baz(std::string)", "Bar", true},
		{"plain", "", false},
	}
	for _, tt := range tests {
		got, ok := ClassOf(tt.display)
		if got != tt.class || ok != tt.ok {
			t.Errorf("ClassOf(%q) = %q, %v; want %q, %v", tt.display, got, ok, tt.class, tt.ok)
		}
	}
}

func TestNamespaceOf(t *testing.T) {
	if ns, ok := NamespaceOf("Foo::Bar::Baz"); !ok || ns != "Foo" {
		t.Errorf("NamespaceOf = %q, %v", ns, ok)
	}
	if _, ok := NamespaceOf("free_function"); ok {
		t.Error("NamespaceOf(free_function) should fail")
	}
}

func TestQualifiedName(t *testing.T) {
	tests := map[string]string{
		"void __thiscall A::B::f(int)":  "A::B::f",
		"std::map<int, int>::find(int)": "std::map<int, int>::find",
		"int *Foo::get(void)":           "Foo::get",
		"main":                          "main",
	}
	for in, want := range tests {
		if got := QualifiedName(in); got != want {
			t.Errorf("QualifiedName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPrefixKey(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"CoreView__Init", "CoreView"},
		{"CoreView__ReInit", "CoreView"},
		{"FUN_00401000", BucketGenerated},
		{"DAT_00012345", BucketGenerated},
		{"thunk_FUN_00401000", BucketGenerated},
		{"ApplicationApplication_goHome", "ApplicationApplication"},
		{"vg_lite_init", "vglite"},
		{"xxBmpInit", "xx"},
		{"GfxCreateSurface", "GfxCreate"},
		{"HAL_Init", "HAL"},
		{"x_y", "xy"},
		{"a", BucketMisc},
		{"12345", BucketMisc},
		{"_start", BucketMisc},
		{"", BucketMisc},
	}
	for _, tt := range tests {
		if got := (Prefix{}).Key(tt.name, ""); got != tt.want {
			t.Errorf("Prefix.Key(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestPrefixBounds(t *testing.T) {
	p := Prefix{Min: 2, Max: 5}
	// "Application" is too long, so the compound rule is tried next and is
	// too long as well.
	if got := p.Key("Application_run", ""); got == "Application" {
		t.Errorf("Key ignored max bound: %q", got)
	}
}

func TestAlphaKey(t *testing.T) {
	tests := map[string]string{
		"zeta":  "Z",
		"Alpha": "A",
		"_x":    BucketSymbols,
		"":      BucketSymbols,
		"FUN_1": BucketGenerated,
	}
	for in, want := range tests {
		if got := (Alpha{}).Key(in, ""); got != want {
			t.Errorf("Alpha.Key(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCamelCaseKey(t *testing.T) {
	tests := map[string]string{
		"GfxCreateSurface": "GfxCreate",
		"vg_lite_init":     "vglite",
		"draw":             "draw",
		"123":              "123",
		"_":                BucketMisc,
		"::":               BucketMisc,
		"Gfx_Surface_blit": "GfxSurface",
		"a__b":             "a",
		"__init":           BucketMisc,
	}
	for in, want := range tests {
		if got := (CamelCase{}).Key(in, ""); got != want {
			t.Errorf("CamelCase.Key(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestKeyTotality(t *testing.T) {
	inputs := []string{"", "_", "__", "0", "12345", "a", "Z", "FUN_", "DAT_", "~Foo", "operator==", "::", "a__b", "__a"}
	strategies := []Strategy{Prefix{}, Alpha{}, CamelCase{}, Single{}}
	for _, s := range strategies {
		for _, in := range inputs {
			if got := s.Key(in, ""); got == "" {
				t.Errorf("%s.Key(%q) returned empty key", s.Name(), in)
			}
		}
	}
}

func TestParseStrategy(t *testing.T) {
	for _, name := range StrategyNames() {
		s, err := ParseStrategy(name)
		if err != nil {
			t.Fatalf("ParseStrategy(%q): %v", name, err)
		}
		if s.Name() != name {
			t.Errorf("ParseStrategy(%q).Name() = %q", name, s.Name())
		}
	}
	if s, err := ParseStrategy(""); err != nil || s.Name() != "prefix" {
		t.Errorf("default strategy = %v, %v", s, err)
	}
	if _, err := ParseStrategy("bogus"); !errors.Is(err, ErrUnknownStrategy) {
		t.Errorf("ParseStrategy(bogus) err = %v", err)
	}
}

func TestGroupScenario(t *testing.T) {
	syms := []Symbol{
		{Name: "CoreView__Init", Address: 0x1000},
		{Name: "CoreView__Draw", Address: 0x1100},
		{Name: "FUN_00401000", Address: 0x401000},
	}
	funcs, skipped := Classifier{Strategy: Prefix{}}.ClassifyAll(syms)
	if skipped != 0 {
		t.Fatalf("skipped = %d", skipped)
	}
	groups := Group(funcs)
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2: %v", len(groups), Keys(groups))
	}
	if n := len(groups["CoreView"]); n != 2 {
		t.Errorf("CoreView has %d functions, want 2", n)
	}
	if n := len(groups[BucketGenerated]); n != 1 {
		t.Errorf("%s has %d functions, want 1", BucketGenerated, n)
	}
	// Sorted by display name.
	if groups["CoreView"][0].Name != "CoreView__Draw" {
		t.Errorf("first CoreView function = %q", groups["CoreView"][0].Name)
	}
}

func TestClassifyDemangles(t *testing.T) {
	c := Classifier{Demangler: ItaniumDemangler{}}
	cf := c.Classify(Symbol{Name: "_ZN3Foo3barEi", Address: 0x10})
	if cf.DisplayName != "Foo::bar(int)" {
		t.Fatalf("DisplayName = %q", cf.DisplayName)
	}
	if cf.ClassName != "Foo" || !cf.IsMethod() {
		t.Errorf("ClassName = %q", cf.ClassName)
	}
	if cf.Namespace != "Foo" {
		t.Errorf("Namespace = %q", cf.Namespace)
	}
	if cf.ModuleKey != "Foo" {
		t.Errorf("ModuleKey = %q", cf.ModuleKey)
	}
}

func TestClassifyPrefersExportDemangling(t *testing.T) {
	c := Classifier{Demangler: ItaniumDemangler{}}
	cf := c.Classify(Symbol{Name: "_ZN3Foo3barEi", Demangled: "void Foo::bar(int)"})
	if cf.DisplayName != "void Foo::bar(int)" {
		t.Errorf("DisplayName = %q", cf.DisplayName)
	}
	if cf.Namespace != "Foo" {
		t.Errorf("Namespace = %q", cf.Namespace)
	}
}

func TestItaniumDemangler(t *testing.T) {
	d := ItaniumDemangler{}
	if got, ok := d.Demangle("_ZTV3Foo"); !ok || got != "vtable for Foo" {
		t.Errorf("Demangle(_ZTV3Foo) = %q, %v", got, ok)
	}
	if _, ok := d.Demangle("main"); ok {
		t.Error("Demangle(main) should fail")
	}
	if got, ok := (ItaniumDemangler{NoParams: true}).Demangle("_ZN3Foo3barEi"); !ok || got != "Foo::bar" {
		t.Errorf("NoParams demangle = %q, %v", got, ok)
	}
}

func TestSkip(t *testing.T) {
	tests := []struct {
		sym  Symbol
		want bool
	}{
		{Symbol{Name: "puts", External: true}, true},
		{Symbol{Name: "thunk_foo", Thunk: true}, true},
		{Symbol{Name: "__cxa_atexit"}, true},
		{Symbol{Name: "_ZdlPv", Demangled: "operator delete(void*)"}, true},
		{Symbol{Name: "CoreView__Init"}, false},
	}
	for _, tt := range tests {
		if got := Skip(tt.sym); got != tt.want {
			t.Errorf("Skip(%q) = %v, want %v", tt.sym.Name, got, tt.want)
		}
	}
}

// Package symbols classifies decompiled function symbols into output modules
// and recovers class and namespace structure from their demangled names.
package symbols

import (
	"sort"
	"strings"
)

// Symbol is one entry of the decompiler's function table.
type Symbol struct {
	Name              string // raw, possibly mangled
	Demangled         string // display name from the decompiler, may be empty
	Address           uint64
	External          bool
	Thunk             bool
	CallingConvention string
	DataReferenced    bool // referenced from .rodata/.data/.data.rel.ro
}

// ClassifiedFunction is a Symbol with its derived names and module key.
// ModuleKey is never empty.
type ClassifiedFunction struct {
	Symbol
	DisplayName string
	ClassName   string // full class path, "" if standalone
	Namespace   string
	ModuleKey   string
}

// IsMethod reports whether a class could be recovered for the function.
func (f ClassifiedFunction) IsMethod() bool { return f.ClassName != "" }

// Names of runtime-support functions that never belong in the output.
var skipPatterns = []string{
	"__stack_chk_fail",
	"__assert_fail",
	"__cxa_",
	"__gxx_",
	"operator delete",
	"operator new",
	"_Unwind_",
	"__cxx_global_",
	"_GLOBAL__",
	"__static_initialization",
}

// Skip reports whether a symbol should be left out of decompilation:
// externals, thunks and compiler runtime helpers.
func Skip(sym Symbol) bool {
	if sym.External || sym.Thunk {
		return true
	}
	for _, p := range skipPatterns {
		if strings.Contains(sym.Name, p) || strings.Contains(sym.Demangled, p) {
			return true
		}
	}
	return false
}

// Classifier assigns display names, class paths and module keys.
type Classifier struct {
	Strategy  Strategy
	Demangler Demangler // optional fallback when Symbol.Demangled is empty
}

// Classify derives a ClassifiedFunction. It never fails: names that match no
// grouping rule land in one of the fallback buckets.
func (c Classifier) Classify(sym Symbol) ClassifiedFunction {
	display := c.displayName(sym)

	cf := ClassifiedFunction{Symbol: sym, DisplayName: display}
	if cls, ok := ClassPath(display); ok {
		cf.ClassName = cls
	}
	if ns, ok := NamespaceOf(QualifiedName(display)); ok {
		cf.Namespace = ns
	}

	strategy := c.Strategy
	if strategy == nil {
		strategy = Prefix{}
	}
	cf.ModuleKey = strategy.Key(sym.Name, display)
	if cf.ModuleKey == "" {
		cf.ModuleKey = BucketMisc
	}
	return cf
}

func (c Classifier) displayName(sym Symbol) string {
	if sym.Demangled != "" && sym.Demangled != sym.Name {
		return sym.Demangled
	}
	if c.Demangler != nil && strings.HasPrefix(sym.Name, "_Z") {
		if d, ok := c.Demangler.Demangle(sym.Name); ok {
			return d
		}
	}
	return sym.Name
}

// ClassifyAll classifies every non-skipped symbol. skipped counts the rest.
func (c Classifier) ClassifyAll(syms []Symbol) (funcs []ClassifiedFunction, skipped int) {
	for _, s := range syms {
		if Skip(s) {
			skipped++
			continue
		}
		funcs = append(funcs, c.Classify(s))
	}
	return funcs, skipped
}

// Group buckets functions by module key. Each bucket is sorted by display
// name, then address.
func Group(funcs []ClassifiedFunction) map[string][]ClassifiedFunction {
	groups := make(map[string][]ClassifiedFunction)
	for _, f := range funcs {
		groups[f.ModuleKey] = append(groups[f.ModuleKey], f)
	}
	for _, g := range groups {
		sort.SliceStable(g, func(i, j int) bool {
			if g[i].DisplayName != g[j].DisplayName {
				return g[i].DisplayName < g[j].DisplayName
			}
			return g[i].Address < g[j].Address
		})
	}
	return groups
}

// Keys returns the module keys of groups in sorted order.
func Keys(groups map[string][]ClassifiedFunction) []string {
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Namespaces returns the distinct namespaces seen across funcs, sorted.
func Namespaces(funcs []ClassifiedFunction) []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range funcs {
		if f.Namespace == "" || seen[f.Namespace] {
			continue
		}
		seen[f.Namespace] = true
		out = append(out, f.Namespace)
	}
	sort.Strings(out)
	return out
}

// Package pipeline turns one decompiler export into emitted modules:
// classify, reconstruct classes, clean and annotate bodies, then write.
package pipeline

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/apex/log"

	"libsurgeon/internal/cleanup"
	"libsurgeon/internal/ctypes"
	"libsurgeon/internal/disasm"
	"libsurgeon/internal/ghidra"
	"libsurgeon/internal/output"
	"libsurgeon/internal/symbols"
	"libsurgeon/internal/vtable"
)

// DefaultPreviewInsts is the number of entry instructions shown under a
// failure placeholder.
const DefaultPreviewInsts = 8

// Options controls how an export is post-processed.
type Options struct {
	Strategy     symbols.Strategy  // nil means symbols.Prefix{}
	Demangler    symbols.Demangler // nil disables local demangling
	Annotate     bool
	SkipStubs    bool // drop jump stubs the decompiler did not flag as thunks
	Annotators   []cleanup.Annotator // nil means cleanup.DefaultAnnotators()
	PreviewInsts int                 // 0 means DefaultPreviewInsts, negative disables
	Arch         disasm.Arch         // overrides the export's processor
	Image        vtable.Memory       // consulted when the export blocks miss an address
}

// Analysis is the classified, reconstructed view of one export.
type Analysis struct {
	Program    string
	Functions  []output.Function
	Classes    map[string]*vtable.ClassInfo
	VTables    map[uint64]*vtable.VTable
	Types      []ctypes.TypeDecl
	Skipped    int // externals, thunks, runtime helpers and jump stubs
	Stubs      int // jump stubs the decompiler did not flag as thunks
	Namespaces []string

	DebugFormat   string
	DebugSections []string
}

// layered reads from each memory in turn.
type layered []vtable.Memory

func (l layered) ReadPointer(addr uint64, size int) (uint64, error) {
	var err error
	for _, m := range l {
		var v uint64
		if v, err = m.ReadPointer(addr, size); err == nil {
			return v, nil
		}
	}
	return 0, err
}

func (o Options) arch(e *ghidra.Export) disasm.Arch {
	if o.Arch != disasm.Unknown {
		return o.Arch
	}
	return disasm.ArchFor(e.Processor, e.PointerSize)
}

// Analyze classifies the export's functions, discovers vtables and builds
// classes, then prepares every body for emission.
func Analyze(e *ghidra.Export, opts Options) *Analysis {
	arch := opts.arch(e)
	c := symbols.Classifier{Strategy: opts.Strategy, Demangler: opts.Demangler}
	if c.Strategy == nil {
		c.Strategy = symbols.Prefix{}
	}

	byEntry := make(map[uint64]ghidra.Function, len(e.Functions))
	for _, f := range e.Functions {
		byEntry[uint64(f.Entry)] = f
	}

	a := &Analysis{
		Program:       e.Program,
		Types:         e.Types,
		DebugFormat:   e.DebugFormat(),
		DebugSections: e.DebugSections,
	}
	var kept []symbols.ClassifiedFunction
	for _, sym := range e.FunctionSymbols() {
		if symbols.Skip(sym) {
			a.Skipped++
			continue
		}
		ef := byEntry[sym.Address]
		if opts.SkipStubs && arch != disasm.Unknown && disasm.IsJumpStub(arch, sym.Address, ef.EntryBytes) {
			log.Debugf("pipeline: %s: jump stub at 0x%x", sym.Name, sym.Address)
			a.Skipped++
			a.Stubs++
			continue
		}
		kept = append(kept, c.Classify(sym))
	}
	a.Namespaces = symbols.Namespaces(kept)

	var mem vtable.Memory = e
	if opts.Image != nil {
		mem = layered{e, opts.Image}
	}
	a.VTables = vtable.Discover(e.AllSymbols(), mem, e, e.PointerSize, opts.Demangler)
	a.Classes = vtable.BuildClasses(kept, a.VTables)
	methods := vtable.NewIndex(a.Classes)

	annotators := opts.Annotators
	if annotators == nil {
		annotators = cleanup.DefaultAnnotators()
	}
	previewN := opts.PreviewInsts
	if previewN == 0 {
		previewN = DefaultPreviewInsts
	}

	for _, cf := range kept {
		ef := byEntry[cf.Address]
		f := output.Function{ClassifiedFunction: cf, VTableIndex: -1}
		if m, ok := methods.Lookup(cf.Name); ok {
			f.Virtual = m.Virtual
			f.VTableIndex = m.VTableIndex
		}

		code := cleanup.Clean(ctypes.NormalizeCode(ef.C))
		if opts.Annotate {
			code = cleanup.Annotate(code, annotators...)
		}
		switch {
		case code != "":
			f.Code = code
			f.OK = true
		case ef.Error != "":
			f.Failure = ef.Error
		case ef.C != "":
			f.Failure = "empty decompiler output"
		}
		if !f.OK && previewN > 0 && arch != disasm.Unknown {
			f.Preview = disasm.Preview(arch, cf.Address, ef.EntryBytes, previewN)
		}
		a.Functions = append(a.Functions, f)
	}
	return a
}

// Units groups the analysis functions by module key, in the order
// symbols.Group establishes.
func (a *Analysis) Units() []output.Unit {
	byAddr := make(map[uint64]output.Function, len(a.Functions))
	cfs := make([]symbols.ClassifiedFunction, len(a.Functions))
	for i, f := range a.Functions {
		byAddr[f.Address] = f
		cfs[i] = f.ClassifiedFunction
	}
	groups := symbols.Group(cfs)
	units := make([]output.Unit, 0, len(groups))
	for _, k := range symbols.Keys(groups) {
		u := output.Unit{ModuleKey: k}
		for _, cf := range groups[k] {
			u.Functions = append(u.Functions, byAddr[cf.Address])
		}
		units = append(units, u)
	}
	return units
}

// Layout returns the executable layout of the analysis.
func (a *Analysis) Layout(strategy string) output.Layout {
	return output.Layout{
		Program:    a.Program,
		Strategy:   strategy,
		Units:      a.Units(),
		Classes:    a.Classes,
		VTables:    a.VTables,
		Types:      a.Types,
		Skipped:    a.Skipped,
		Namespaces: a.Namespaces,

		DebugFormat:   a.DebugFormat,
		DebugSections: a.DebugSections,
	}
}

// Executable post-processes the export of a linked image into dir.
func Executable(dir string, e *ghidra.Export, opts Options) (*output.Summary, error) {
	if err := e.Err(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	a := Analyze(e, opts)
	name := symbols.Prefix{}.Name()
	if opts.Strategy != nil {
		name = opts.Strategy.Name()
	}
	sum, err := output.WriteModules(dir, a.Layout(name))
	if err != nil {
		return nil, fmt.Errorf("pipeline: %s: %w", e.Program, err)
	}
	return sum, nil
}

// Object post-processes the export of one archive member into dir. member
// names the output files; it defaults to the export's program name.
func Object(dir, member string, e *ghidra.Export, opts Options) (*output.Summary, error) {
	if err := e.Err(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	a := Analyze(e, opts)
	if member == "" {
		member = e.Program
	}
	obj := output.Object{
		Name:       filepath.Base(member),
		Functions:  sortedByAddress(a.Functions),
		Namespaces: a.Namespaces,
		Skipped:    a.Skipped,

		DebugFormat:   a.DebugFormat,
		DebugSections: a.DebugSections,
	}
	sum, err := output.WriteObject(dir, obj)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %s: %w", member, err)
	}
	return sum, nil
}

func sortedByAddress(funcs []output.Function) []output.Function {
	out := append([]output.Function(nil), funcs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

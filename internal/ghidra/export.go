package ghidra

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"libsurgeon/internal/ctypes"
	"libsurgeon/internal/symbols"
)

// ExportVersion is the export schema written by libsurgeon_export.py.
const ExportVersion = 1

var (
	ErrExportVersion = errors.New("ghidra: unsupported export version")
	ErrUnmapped      = errors.New("ghidra: address not in an exported block")
	ErrDecompiler    = errors.New("ghidra: decompiler setup failed")
)

// Addr is an address serialized as a "0x..." string.
type Addr uint64

func (a Addr) MarshalJSON() ([]byte, error) {
	return json.Marshal(fmt.Sprintf("0x%x", uint64(a)))
}

func (a *Addr) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		var n uint64
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("ghidra: address %s: %w", b, err)
		}
		*a = Addr(n)
		return nil
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, 64)
	if err != nil {
		return fmt.Errorf("ghidra: address %q: %w", s, err)
	}
	*a = Addr(v)
	return nil
}

// Function is one function entry of the export. C holds the decompiled body
// when decompilation succeeded; Error holds the reason otherwise.
type Function struct {
	Name              string `json:"name"`
	Demangled         string `json:"demangled,omitempty"`
	Entry             Addr   `json:"entry"`
	External          bool   `json:"external,omitempty"`
	Thunk             bool   `json:"thunk,omitempty"`
	CallingConvention string `json:"calling_convention,omitempty"`
	DataReferenced    bool   `json:"data_referenced,omitempty"`
	EntryBytes        []byte `json:"entry_bytes,omitempty"`
	C                 string `json:"c,omitempty"`
	Error             string `json:"error,omitempty"`
}

// Symbol is a labeled address, function or data.
type Symbol struct {
	Name       string `json:"name"`
	Demangled  string `json:"demangled,omitempty"`
	Address    Addr   `json:"address"`
	Block      string `json:"block,omitempty"`
	IsFunction bool   `json:"is_function,omitempty"`
}

// Block is an initialized, non-executable memory block.
type Block struct {
	Name  string `json:"name"`
	Start Addr   `json:"start"`
	Data  []byte `json:"data"`
}

// Export is the JSON document the post-script writes for one program.
type Export struct {
	Version       int               `json:"version"`
	Program       string            `json:"program"`
	Language      string            `json:"language"`
	Processor     string            `json:"processor"`
	PointerSize   int               `json:"pointer_size"`
	BigEndian     bool              `json:"big_endian"`
	Functions     []Function        `json:"functions"`
	Symbols       []Symbol          `json:"symbols"`
	Blocks        []Block           `json:"blocks"`
	Types         []ctypes.TypeDecl `json:"types,omitempty"`
	DebugSections []string          `json:"debug_sections,omitempty"`
	Error         string            `json:"error,omitempty"` // set when the script could not decompile at all

	byEntry map[uint64]int
}

// Load reads and indexes an export file.
func Load(path string) (*Export, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ghidra: read export: %w", err)
	}
	var e Export
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("ghidra: parse export %s: %w", path, err)
	}
	if e.Version != ExportVersion {
		return nil, fmt.Errorf("%w: %d", ErrExportVersion, e.Version)
	}
	if err := e.Err(); err != nil {
		return nil, err
	}
	e.index()
	return &e, nil
}

// Err returns the fatal error recorded by the post-script, if any.
func (e *Export) Err() error {
	if e.Error == "" {
		return nil
	}
	return fmt.Errorf("%w: %s: %s", ErrDecompiler, e.Program, e.Error)
}

// DebugFormat names the debug information carried by the program, "" if
// none: any .debug* section means DWARF.
func (e *Export) DebugFormat() string {
	for _, s := range e.DebugSections {
		if strings.HasPrefix(s, ".debug") {
			return "DWARF"
		}
	}
	return ""
}

func (e *Export) index() {
	sort.Slice(e.Blocks, func(i, j int) bool { return e.Blocks[i].Start < e.Blocks[j].Start })
	e.byEntry = make(map[uint64]int, len(e.Functions))
	for i, f := range e.Functions {
		e.byEntry[uint64(f.Entry)] = i
	}
}

// FunctionAt returns the name of the function whose entry is addr.
func (e *Export) FunctionAt(addr uint64) (string, bool) {
	if e.byEntry == nil {
		e.index()
	}
	i, ok := e.byEntry[addr]
	if !ok {
		return "", false
	}
	return e.Functions[i].Name, true
}

// ReadPointer reads a size-byte word at addr from the exported blocks.
func (e *Export) ReadPointer(addr uint64, size int) (uint64, error) {
	if size != 4 && size != 8 {
		return 0, fmt.Errorf("ghidra: unsupported pointer size %d", size)
	}
	// Last block starting at or below addr.
	i := sort.Search(len(e.Blocks), func(i int) bool { return uint64(e.Blocks[i].Start) > addr }) - 1
	if i < 0 {
		return 0, fmt.Errorf("%w: 0x%x", ErrUnmapped, addr)
	}
	b := e.Blocks[i]
	off := addr - uint64(b.Start)
	if off+uint64(size) > uint64(len(b.Data)) {
		return 0, fmt.Errorf("%w: 0x%x", ErrUnmapped, addr)
	}
	word := b.Data[off : off+uint64(size)]
	var order binary.ByteOrder = binary.LittleEndian
	if e.BigEndian {
		order = binary.BigEndian
	}
	if size == 8 {
		return order.Uint64(word), nil
	}
	return uint64(order.Uint32(word)), nil
}

// FunctionSymbols converts the exported functions to classifier input.
func (e *Export) FunctionSymbols() []symbols.Symbol {
	out := make([]symbols.Symbol, len(e.Functions))
	for i, f := range e.Functions {
		out[i] = symbols.Symbol{
			Name:              f.Name,
			Demangled:         f.Demangled,
			Address:           uint64(f.Entry),
			External:          f.External,
			Thunk:             f.Thunk,
			CallingConvention: f.CallingConvention,
			DataReferenced:    f.DataReferenced,
		}
	}
	return out
}

// AllSymbols returns every exported label, used for vtable discovery.
func (e *Export) AllSymbols() []symbols.Symbol {
	out := make([]symbols.Symbol, len(e.Symbols))
	for i, s := range e.Symbols {
		out[i] = symbols.Symbol{Name: s.Name, Demangled: s.Demangled, Address: uint64(s.Address)}
	}
	return out
}

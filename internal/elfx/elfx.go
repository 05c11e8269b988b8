// Package elfx identifies decompilation inputs and reads pointer-sized words
// from ELF images.
package elfx

import (
	"bytes"
	"debug/elf"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"libsurgeon/internal/disasm"
)

var (
	ErrNotELF    = errors.New("elfx: not an ELF file")
	ErrNoSegment = errors.New("elfx: no loaded segment covers address")
	ErrBadSize   = errors.New("elfx: unsupported pointer size")
)

var (
	elfMagic = []byte("\x7fELF")
	arMagic  = []byte("!<arch>\n")
)

// InputKind classifies a file handed to the batch driver.
type InputKind int

const (
	Unsupported InputKind = iota
	Archive               // static library, one unit per member
	Executable            // any ELF image (executable, shared object, relocatable)
)

func (k InputKind) String() string {
	switch k {
	case Archive:
		return "archive"
	case Executable:
		return "elf"
	}
	return "unsupported"
}

var (
	archiveExts = map[string]bool{".a": true, ".lib": true}
	elfExts     = map[string]bool{".so": true, ".elf": true, ".axf": true, ".out": true, ".o": true}
)

// KindByName classifies path by its name alone: .a and .lib are archives;
// .so, versioned .so.N, .elf, .axf, .out and .o are ELF images.
func KindByName(path string) InputKind {
	base := strings.ToLower(filepath.Base(path))
	ext := filepath.Ext(base)
	switch {
	case archiveExts[ext]:
		return Archive
	case elfExts[ext], strings.Contains(base, ".so."):
		return Executable
	}
	return Unsupported
}

// Kind classifies path by name, falling back to its magic bytes.
func Kind(path string) InputKind {
	if k := KindByName(path); k != Unsupported {
		return k
	}
	switch {
	case IsArchive(path):
		return Archive
	case IsELF(path):
		return Executable
	}
	return Unsupported
}

// IsELF reports whether path starts with the ELF magic.
func IsELF(path string) bool {
	head, err := readHead(path, len(elfMagic))
	return err == nil && bytes.Equal(head, elfMagic)
}

// IsArchive reports whether path starts with the ar magic.
func IsArchive(path string) bool {
	head, err := readHead(path, len(arMagic))
	return err == nil && bytes.Equal(head, arMagic)
}

func readHead(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, n)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// File wraps a debug/elf.File of any class and machine.
type File struct {
	ELF  *elf.File
	regs []region
}

type region struct {
	addr uint64
	size uint64
	r    io.ReaderAt
}

// Open opens an ELF image. Loaded segments back ReadPointer; relocatable
// objects without program headers fall back to SHF_ALLOC sections.
func Open(path string) (*File, error) {
	ef, err := elf.Open(path)
	if err != nil {
		var fe *elf.FormatError
		if errors.As(err, &fe) {
			return nil, fmt.Errorf("%w: %v", ErrNotELF, err)
		}
		return nil, fmt.Errorf("elfx: open: %w", err)
	}
	f := &File{ELF: ef}
	for _, p := range ef.Progs {
		if p.Type == elf.PT_LOAD && p.Filesz > 0 {
			f.regs = append(f.regs, region{addr: p.Vaddr, size: p.Filesz, r: p})
		}
	}
	if len(f.regs) == 0 {
		for _, s := range ef.Sections {
			if s.Flags&elf.SHF_ALLOC != 0 && s.Type != elf.SHT_NOBITS && s.Size > 0 {
				f.regs = append(f.regs, region{addr: s.Addr, size: s.Size, r: s})
			}
		}
	}
	return f, nil
}

// Close releases resources.
func (f *File) Close() error {
	return f.ELF.Close()
}

// Arch returns the instruction set of the image.
func (f *File) Arch() disasm.Arch {
	return disasm.ArchFromELF(f.ELF.Machine)
}

// PointerSize returns 8 for ELFCLASS64 and 4 otherwise.
func (f *File) PointerSize() int {
	if f.ELF.Class == elf.ELFCLASS64 {
		return 8
	}
	return 4
}

// ReadPointer reads a size-byte word at the virtual address addr in the
// image's byte order.
func (f *File) ReadPointer(addr uint64, size int) (uint64, error) {
	if size != 4 && size != 8 {
		return 0, fmt.Errorf("%w: %d", ErrBadSize, size)
	}
	for _, r := range f.regs {
		if addr < r.addr || addr+uint64(size) > r.addr+r.size {
			continue
		}
		buf := make([]byte, size)
		if _, err := r.r.ReadAt(buf, int64(addr-r.addr)); err != nil {
			return 0, fmt.Errorf("elfx: read 0x%x: %w", addr, err)
		}
		if size == 8 {
			return f.ELF.ByteOrder.Uint64(buf), nil
		}
		return uint64(f.ELF.ByteOrder.Uint32(buf)), nil
	}
	return 0, fmt.Errorf("%w: 0x%x", ErrNoSegment, addr)
}

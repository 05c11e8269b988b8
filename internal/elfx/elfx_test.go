package elfx

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"libsurgeon/internal/disasm"
)

const (
	segVaddr = 0x400078
	segOff   = 64 + 56
)

// writeELF writes a minimal x86-64 executable with one PT_LOAD segment
// holding words at segVaddr.
func writeELF(t *testing.T, words ...uint64) string {
	t.Helper()
	var buf bytes.Buffer
	hdr := elf.Header64{
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(elf.EM_X86_64),
		Version:   uint32(elf.EV_CURRENT),
		Phoff:     64,
		Ehsize:    64,
		Phentsize: 56,
		Phnum:     1,
	}
	copy(hdr.Ident[:], "\x7fELF")
	hdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	size := uint64(8 * len(words))
	prog := elf.Prog64{
		Type:   uint32(elf.PT_LOAD),
		Flags:  uint32(elf.PF_R),
		Off:    segOff,
		Vaddr:  segVaddr,
		Paddr:  segVaddr,
		Filesz: size,
		Memsz:  size,
		Align:  1,
	}
	binary.Write(&buf, binary.LittleEndian, &hdr)
	binary.Write(&buf, binary.LittleEndian, &prog)
	for _, w := range words {
		binary.Write(&buf, binary.LittleEndian, w)
	}
	path := filepath.Join(t.TempDir(), "tiny.elf")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestOpenAndReadPointer(t *testing.T) {
	path := writeELF(t, 0x401000, 0xdeadbeefcafef00d)
	ef, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer ef.Close()

	if ef.Arch() != disasm.AMD64 {
		t.Errorf("Arch = %q", ef.Arch())
	}
	if ef.PointerSize() != 8 {
		t.Errorf("PointerSize = %d", ef.PointerSize())
	}
	v, err := ef.ReadPointer(segVaddr, 8)
	if err != nil || v != 0x401000 {
		t.Errorf("ReadPointer = 0x%x, %v", v, err)
	}
	v, err = ef.ReadPointer(segVaddr+8, 4)
	if err != nil || v != 0xcafef00d {
		t.Errorf("ReadPointer(4) = 0x%x, %v", v, err)
	}
	if _, err := ef.ReadPointer(segVaddr+12, 8); !errors.Is(err, ErrNoSegment) {
		t.Errorf("read past segment: err = %v", err)
	}
	if _, err := ef.ReadPointer(segVaddr, 3); !errors.Is(err, ErrBadSize) {
		t.Errorf("odd size: err = %v", err)
	}
}

func TestOpenRejectsNonELF(t *testing.T) {
	tmp := filepath.Join(t.TempDir(), "notelf")
	if err := os.WriteFile(tmp, []byte("not an ELF file at all"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(tmp); !errors.Is(err, ErrNotELF) {
		t.Fatalf("err = %v, want ErrNotELF", err)
	}
}

func TestKind(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		return p
	}
	tests := []struct {
		path string
		want InputKind
	}{
		{write("libfoo.a", ""), Archive},
		{write("FOO.LIB", ""), Archive},
		{write("libc.so.6", ""), Executable},
		{write("fw.axf", ""), Executable},
		{write("main.o", ""), Executable},
		{write("blob", "!<arch>\nmember"), Archive},
		{write("image", "\x7fELF\x01\x01\x01\x00"), Executable},
		{write("notes.txt", "hello world"), Unsupported},
		{filepath.Join(dir, "missing"), Unsupported},
	}
	for _, tt := range tests {
		if got := Kind(tt.path); got != tt.want {
			t.Errorf("Kind(%s) = %v, want %v", filepath.Base(tt.path), got, tt.want)
		}
	}
}

func TestMagic(t *testing.T) {
	path := writeELF(t, 1)
	if !IsELF(path) || IsArchive(path) {
		t.Error("ELF magic not recognized")
	}
	ar := filepath.Join(t.TempDir(), "x")
	os.WriteFile(ar, []byte("!<arch>\n"), 0644)
	if !IsArchive(ar) || IsELF(ar) {
		t.Error("ar magic not recognized")
	}
}

func FuzzOpen(f *testing.F) {
	f.Add([]byte("\x7fELF\x02\x01\x01\x00\x00\x00\x00\x00\x00\x00\x00\x00"))
	f.Add([]byte("not an elf at all"))
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, data []byte) {
		tmp := filepath.Join(t.TempDir(), "fuzz.elf")
		if err := os.WriteFile(tmp, data, 0644); err != nil {
			t.Fatal(err)
		}
		ef, err := Open(tmp)
		if err != nil {
			return
		}
		ef.Arch()
		ef.PointerSize()
		ef.ReadPointer(0, 8)
		ef.Close()
	})
}

package disasm

import (
	"debug/elf"
	"encoding/binary"
	"strings"
	"testing"
)

func words(ws ...uint32) []byte {
	data := make([]byte, 4*len(ws))
	for i, w := range ws {
		binary.LittleEndian.PutUint32(data[i*4:], w)
	}
	return data
}

func TestArchFor(t *testing.T) {
	tests := []struct {
		proc string
		ptr  int
		want Arch
	}{
		{"x86", 8, AMD64},
		{"x86", 4, I386},
		{"AARCH64", 8, ARM64},
		{"ARM", 4, ARM},
		{"MIPS", 4, Unknown},
	}
	for _, tt := range tests {
		if got := ArchFor(tt.proc, tt.ptr); got != tt.want {
			t.Errorf("ArchFor(%q, %d) = %q, want %q", tt.proc, tt.ptr, got, tt.want)
		}
	}
	if ArchFromELF(elf.EM_X86_64) != AMD64 || ArchFromELF(elf.EM_MIPS) != Unknown {
		t.Error("ArchFromELF mapping wrong")
	}
}

func TestDecodeX86(t *testing.T) {
	// push rbp; mov rbp, rsp; ret
	code := []byte{0x55, 0x48, 0x89, 0xe5, 0xc3}
	insts := Decode(AMD64, 0x1000, code, 0)
	if len(insts) != 3 {
		t.Fatalf("got %d instructions, want 3", len(insts))
	}
	if insts[0].Addr != 0x1000 || insts[1].Addr != 0x1001 || insts[2].Addr != 0x1004 {
		t.Errorf("addresses = 0x%x 0x%x 0x%x", insts[0].Addr, insts[1].Addr, insts[2].Addr)
	}
	if !strings.Contains(strings.ToLower(insts[0].Text), "push") {
		t.Errorf("insts[0] = %q", insts[0].Text)
	}
}

func TestDecodeMax(t *testing.T) {
	code := words(0xd503201f, 0xd503201f, 0xd503201f, 0xd503201f)
	if got := len(Decode(ARM64, 0, code, 2)); got != 2 {
		t.Errorf("got %d instructions, want 2", got)
	}
	if got := len(Decode(ARM64, 0, code[:6], 0)); got != 1 {
		t.Errorf("short tail: got %d instructions, want 1", got)
	}
	if got := len(Decode(Unknown, 0, code, 0)); got != 0 {
		t.Errorf("unknown arch decoded %d instructions", got)
	}
}

func TestIsJumpStub(t *testing.T) {
	tests := []struct {
		name string
		arch Arch
		code []byte
		want bool
	}{
		{"x86-64 jmp rel32", AMD64, []byte{0xe9, 0x10, 0x00, 0x00, 0x00}, true},
		{"x86-64 prologue", AMD64, []byte{0x55, 0x48, 0x89, 0xe5}, false},
		{"i386 jmp", I386, []byte{0xe9, 0x00, 0x01, 0x00, 0x00}, true},
		{"arm64 b", ARM64, words(0x14000010), true},
		{"arm64 br x17", ARM64, words(0xd61f0220), true},
		{"arm64 plt", ARM64, words(0x90000010, 0xf9400211, 0x91000210, 0xd61f0220), true},
		{"arm64 nop", ARM64, words(0xd503201f, 0xd65f03c0), false},
		{"arm b", ARM, words(0xea000010), true},
		{"arm mov", ARM, words(0xe1a00000), false},
		{"empty", AMD64, nil, false},
	}
	for _, tt := range tests {
		if got := IsJumpStub(tt.arch, 0x4000, tt.code); got != tt.want {
			t.Errorf("%s: IsJumpStub = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestPreview(t *testing.T) {
	lines := Preview(AMD64, 0x401000, []byte{0x55, 0xc3}, 8)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if !strings.HasPrefix(lines[0], "//   0x00401000  ") {
		t.Errorf("lines[0] = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "//   0x00401001  ") {
		t.Errorf("lines[1] = %q", lines[1])
	}
}

// Package disasm decodes the first instructions of a function entry. It is
// used to spot jump stubs the decompiler did not flag as thunks and to
// preview functions that failed to decompile.
package disasm

import (
	"debug/elf"
	"fmt"
	"strings"

	"golang.org/x/arch/arm/armasm"
	"golang.org/x/arch/arm64/arm64asm"
	"golang.org/x/arch/x86/x86asm"
)

// Arch is an instruction set this package can decode.
type Arch string

const (
	Unknown Arch = ""
	I386    Arch = "386"
	AMD64   Arch = "amd64"
	ARM     Arch = "arm"
	ARM64   Arch = "arm64"
)

// ArchFromELF maps an ELF machine to an Arch.
func ArchFromELF(m elf.Machine) Arch {
	switch m {
	case elf.EM_386:
		return I386
	case elf.EM_X86_64:
		return AMD64
	case elf.EM_ARM:
		return ARM
	case elf.EM_AARCH64:
		return ARM64
	}
	return Unknown
}

// ArchFor maps a decompiler processor name ("x86", "AARCH64", "ARM") and
// pointer size to an Arch.
func ArchFor(processor string, ptrSize int) Arch {
	switch strings.ToLower(processor) {
	case "x86", "x86_64", "x86-64", "amd64", "i386":
		if ptrSize == 8 {
			return AMD64
		}
		return I386
	case "aarch64", "arm64":
		return ARM64
	case "arm":
		if ptrSize == 8 {
			return ARM64
		}
		return ARM
	}
	return Unknown
}

// Inst is one decoded instruction.
type Inst struct {
	Addr     uint64
	Size     int
	Mnemonic string
	Text     string

	control control
}

type control uint8

const (
	other control = iota
	jump          // unconditional direct or indirect jump
	jumpReg       // arm64 BR Xn
	pageAddr      // arm64 ADRP
	load          // arm64 LDR
	add           // arm64 ADD
)

// Decode decodes up to max instructions from data, which starts at base.
// Decoding stops at the first undecodable instruction.
func Decode(arch Arch, base uint64, data []byte, max int) []Inst {
	var out []Inst
	off := 0
	for off < len(data) && (max <= 0 || len(out) < max) {
		inst, ok := decodeOne(arch, base+uint64(off), data[off:])
		if !ok {
			break
		}
		out = append(out, inst)
		off += inst.Size
	}
	return out
}

func decodeOne(arch Arch, addr uint64, src []byte) (Inst, bool) {
	switch arch {
	case I386, AMD64:
		mode := 64
		if arch == I386 {
			mode = 32
		}
		in, err := x86asm.Decode(src, mode)
		if err != nil || in.Len == 0 {
			return Inst{}, false
		}
		c := other
		if in.Op == x86asm.JMP {
			c = jump
		}
		return Inst{
			Addr:     addr,
			Size:     in.Len,
			Mnemonic: in.Op.String(),
			Text:     x86asm.IntelSyntax(in, addr, nil),
			control:  c,
		}, true

	case ARM64:
		if len(src) < 4 {
			return Inst{}, false
		}
		in, err := arm64asm.Decode(src[:4])
		if err != nil {
			return Inst{}, false
		}
		c := other
		switch in.Op {
		case arm64asm.B:
			c = jump
			// B.cond carries its condition as the first argument.
			if _, cond := in.Args[0].(arm64asm.Cond); cond {
				c = other
			}
		case arm64asm.BR:
			c = jumpReg
		case arm64asm.ADRP:
			c = pageAddr
		case arm64asm.LDR:
			c = load
		case arm64asm.ADD:
			c = add
		}
		return Inst{Addr: addr, Size: 4, Mnemonic: in.Op.String(), Text: in.String(), control: c}, true

	case ARM:
		if len(src) < 4 {
			return Inst{}, false
		}
		in, err := armasm.Decode(src[:4], armasm.ModeARM)
		if err != nil {
			return Inst{}, false
		}
		c := other
		switch in.Op {
		case armasm.B, armasm.BX:
			c = jump
		case armasm.LDR:
			if r, ok := in.Args[0].(armasm.Reg); ok && r == armasm.PC {
				c = jump
			}
		}
		return Inst{Addr: addr, Size: 4, Mnemonic: in.Op.String(), Text: in.String(), control: c}, true
	}
	return Inst{}, false
}

// IsJumpStub reports whether the code at entry only forwards control
// elsewhere: a leading unconditional jump, or the arm64 PLT sequence
// ADRP; LDR; ADD; BR.
func IsJumpStub(arch Arch, entry uint64, data []byte) bool {
	insts := Decode(arch, entry, data, 4)
	if len(insts) == 0 {
		return false
	}
	if insts[0].control == jump || insts[0].control == jumpReg {
		return true
	}
	if arch == ARM64 && len(insts) == 4 {
		return insts[0].control == pageAddr && insts[1].control == load &&
			insts[2].control == add && insts[3].control == jumpReg
	}
	return false
}

// Preview renders up to max instructions from the entry as comment lines.
func Preview(arch Arch, entry uint64, data []byte, max int) []string {
	insts := Decode(arch, entry, data, max)
	lines := make([]string, len(insts))
	for i, in := range insts {
		lines[i] = fmt.Sprintf("//   0x%08x  %s", in.Addr, in.Text)
	}
	return lines
}

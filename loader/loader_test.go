package loader

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"riscv64-emu/core"
)

// buildMinimalELF writes a tiny, hand-assembled ELF64/RISC-V executable with
// a single PT_LOAD segment holding code, no section headers. That's all
// debug/elf needs to parse a file and all LoadELF needs to map one.
func buildMinimalELF(t *testing.T, entry uint64, code []byte) string {
	t.Helper()
	return buildMinimalELFWithFlags(t, entry, code, elf.PF_R|elf.PF_X)
}

// buildMinimalELFWithFlags is buildMinimalELF with the PT_LOAD segment's
// permission flags under test control, for exercising how LoadELF reacts
// to segments the ELF itself marks writable-and-executable.
func buildMinimalELFWithFlags(t *testing.T, entry uint64, code []byte, flags elf.ProgFlag) string {
	t.Helper()

	const ehdrSize = 64
	const phdrSize = 56

	var ident [elf.EI_NIDENT]byte
	copy(ident[:], elf.ELFMAG)
	ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	ehdr := elf.Header64{
		Ident:     ident,
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(elf.EM_RISCV),
		Version:   uint32(elf.EV_CURRENT),
		Entry:     entry,
		Phoff:     ehdrSize,
		Shoff:     0,
		Flags:     0,
		Ehsize:    ehdrSize,
		Phentsize: phdrSize,
		Phnum:     1,
		Shentsize: 0,
		Shnum:     0,
		Shstrndx:  0,
	}

	phdr := elf.Prog64{
		Type:   uint32(elf.PT_LOAD),
		Flags:  uint32(flags),
		Off:    ehdrSize + phdrSize,
		Vaddr:  entry,
		Paddr:  entry,
		Filesz: uint64(len(code)),
		Memsz:  uint64(len(code)),
		Align:  0x1000,
	}

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, ehdr); err != nil {
		t.Fatalf("writing ELF header: %v", err)
	}
	if err := binary.Write(&buf, binary.LittleEndian, phdr); err != nil {
		t.Fatalf("writing program header: %v", err)
	}
	buf.Write(code)

	path := filepath.Join(t.TempDir(), "prog.elf")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("writing ELF file: %v", err)
	}
	return path
}

func TestLoadELFMapsCodeSegmentAndEntry(t *testing.T) {
	// addi x0, x0, 0 (nop) followed by ecall, little-endian.
	code := []byte{
		0x13, 0x00, 0x00, 0x00,
		0x73, 0x00, 0x00, 0x00,
	}
	path := buildMinimalELF(t, core.CodeSegmentStart, code)

	prog, err := LoadELF(path)
	if err != nil {
		t.Fatalf("LoadELF: %v", err)
	}

	if prog.EntryPoint != core.CodeSegmentStart {
		t.Errorf("EntryPoint = %#x, want %#x", prog.EntryPoint, uint64(core.CodeSegmentStart))
	}
	if got := prog.Machine.PC(); got != int64(core.CodeSegmentStart) {
		t.Errorf("Machine PC = %#x, want %#x", got, int64(core.CodeSegmentStart))
	}

	raw, err := prog.Machine.FetchInstruction(core.CodeSegmentStart)
	if err != nil {
		t.Fatalf("FetchInstruction: %v", err)
	}
	if raw != 0x00000013 {
		t.Errorf("first instruction = %#x, want nop encoding 0x00000013", raw)
	}
}

func TestLoadELFAddsHeapAndStackSegments(t *testing.T) {
	code := []byte{0x13, 0x00, 0x00, 0x00}
	path := buildMinimalELF(t, core.CodeSegmentStart, code)

	prog, err := LoadELF(path)
	if err != nil {
		t.Fatalf("LoadELF: %v", err)
	}

	sp := prog.Machine.CPU.GetSP()
	wantSP := uint64(core.StackSegmentStart + core.StackSegmentSize - 16)
	if sp != wantSP {
		t.Errorf("SP after load = %#x, want %#x", sp, wantSP)
	}

	// Writing into the heap segment must succeed now that LoadELF has
	// mapped it with read/write permission.
	if err := prog.Machine.Mem.WriteN(core.HeapSegmentStart, 0xff, 1); err != nil {
		t.Errorf("store into heap segment failed: %v", err)
	}
}

func TestLoadELFStripsWriteFromExecutableSegment(t *testing.T) {
	// A nop followed by ecall, declared read-write-execute in the program
	// header. LoadELF must still make it read-only after mapping it.
	code := []byte{
		0x13, 0x00, 0x00, 0x00,
		0x73, 0x00, 0x00, 0x00,
	}
	path := buildMinimalELFWithFlags(t, core.CodeSegmentStart, code, elf.PF_R|elf.PF_W|elf.PF_X)

	prog, err := LoadELF(path)
	if err != nil {
		t.Fatalf("LoadELF: %v", err)
	}

	if err := prog.Machine.Mem.WriteN(core.CodeSegmentStart, 0xff, 1); err == nil {
		t.Errorf("store into loaded code segment succeeded, want permission error despite PF_W in the program header")
	}

	// Execute permission must survive the write-stripping.
	if err := prog.Machine.Mem.CheckExecutePermission(core.CodeSegmentStart); err != nil {
		t.Errorf("CheckExecutePermission: %v, want code segment still executable", err)
	}
}

func TestLoadELFRejects32Bit(t *testing.T) {
	// A 32-bit ELF header (ELFCLASS32) must be rejected before any
	// segment mapping is attempted.
	var ident [elf.EI_NIDENT]byte
	copy(ident[:], elf.ELFMAG)
	ident[elf.EI_CLASS] = byte(elf.ELFCLASS32)
	ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	ehdr32 := elf.Header32{
		Ident:     ident,
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(elf.EM_RISCV),
		Version:   uint32(elf.EV_CURRENT),
		Ehsize:    52,
		Phentsize: 32,
		Phnum:     0,
	}

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, ehdr32); err != nil {
		t.Fatalf("writing 32-bit ELF header: %v", err)
	}

	path := filepath.Join(t.TempDir(), "prog32.elf")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("writing ELF file: %v", err)
	}

	if _, err := LoadELF(path); err == nil {
		t.Errorf("LoadELF(32-bit ELF) succeeded, want rejection")
	}
}

func TestLoadELFRejectsWrongMachine(t *testing.T) {
	var ident [elf.EI_NIDENT]byte
	copy(ident[:], elf.ELFMAG)
	ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	ehdr := elf.Header64{
		Ident:     ident,
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(elf.EM_X86_64),
		Version:   uint32(elf.EV_CURRENT),
		Ehsize:    64,
		Phentsize: 56,
		Phnum:     0,
	}

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, ehdr); err != nil {
		t.Fatalf("writing ELF header: %v", err)
	}

	path := filepath.Join(t.TempDir(), "prog_x86.elf")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("writing ELF file: %v", err)
	}

	if _, err := LoadELF(path); err == nil {
		t.Errorf("LoadELF(x86-64 ELF) succeeded, want rejection for wrong machine")
	}
}

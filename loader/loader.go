// Package loader builds a core.Machine's address space from an ELF binary.
// There is no encoding step here: a RV64IMC interpreter runs the machine
// code an ELF already contains, so loading is just copying PT_LOAD
// segments into place and resolving the entry point and symbol table.
package loader

import (
	"debug/elf"
	"fmt"

	"riscv64-emu/core"
)

// LoadedProgram is everything the interpreter loop needs to start executing:
// a Machine whose memory already holds the program image, the entry address,
// and a symbol resolver built from the ELF symbol table (for trace output
// and disassembly).
type LoadedProgram struct {
	Machine    *core.Machine
	EntryPoint uint64
	Symbols    *core.SymbolResolver
	GP         int64
}

// LoadELF opens path, verifies it targets 64-bit RISC-V, and maps every
// loadable segment into a fresh Machine's memory with permissions translated
// from the ELF program header flags.
func LoadELF(path string) (*LoadedProgram, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loader: open %s: %w", path, err)
	}
	defer f.Close()

	if f.Class != elf.ELFCLASS64 {
		return nil, fmt.Errorf("loader: %s is not a 64-bit ELF", path)
	}
	if f.Machine != elf.EM_RISCV {
		return nil, fmt.Errorf("loader: %s is not a RISC-V binary (machine=%s)", path, f.Machine)
	}

	machine := core.NewMachine()
	machine.Mem.Segments = nil

	loaded := false
	for i, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		if prog.Memsz == 0 {
			continue
		}

		perm := segmentPermission(prog.Flags)
		seg := machine.Mem.AddSegment(fmt.Sprintf("load%d", i), prog.Vaddr, prog.Memsz, perm)

		data := make([]byte, prog.Filesz)
		if _, err := prog.ReadAt(data, 0); err != nil {
			return nil, fmt.Errorf("loader: reading segment %d of %s: %w", i, path, err)
		}
		copy(seg.Data, data)
		loaded = true
	}
	if !loaded {
		return nil, fmt.Errorf("loader: %s has no PT_LOAD segments", path)
	}

	machine.Mem.AddSegment("heap", core.HeapSegmentStart, core.HeapSegmentSize, core.PermRead|core.PermWrite)
	machine.Mem.AddSegment("stack", core.StackSegmentStart, core.StackSegmentSize, core.PermRead|core.PermWrite)
	machine.CPU.SetSP(core.StackSegmentStart + core.StackSegmentSize - 16)

	// A PT_LOAD segment marked both writable and executable (PF_W|PF_X) would
	// otherwise let a wild store self-modify the program; strip the write
	// bit from every executable segment now that loading is done.
	machine.Mem.MakeCodeReadOnly()

	symbols, gp := symbolTable(f)

	if err := machine.SetPC(int64(f.Entry)); err != nil {
		return nil, fmt.Errorf("loader: entry point 0x%x: %w", f.Entry, err)
	}

	return &LoadedProgram{
		Machine:    machine,
		EntryPoint: f.Entry,
		Symbols:    symbols,
		GP:         gp,
	}, nil
}

func segmentPermission(flags elf.ProgFlag) core.MemoryPermission {
	var perm core.MemoryPermission
	if flags&elf.PF_R != 0 {
		perm |= core.PermRead
	}
	if flags&elf.PF_W != 0 {
		perm |= core.PermWrite
	}
	if flags&elf.PF_X != 0 {
		perm |= core.PermExecute
	}
	return perm
}

// symbolTable extracts every named, non-undefined symbol from the ELF
// symbol table (falling back to the dynamic symbol table for a stripped
// binary), plus the address bound to "__global_pointer$" if present, since
// the gp-relative "la" pseudo-instruction needs it.
func symbolTable(f *elf.File) (*core.SymbolResolver, int64) {
	table := make(map[string]uint64)
	var gp int64

	syms, err := f.Symbols()
	if err != nil || len(syms) == 0 {
		syms, _ = f.DynamicSymbols()
	}
	for _, sym := range syms {
		if sym.Name == "" || sym.Section == elf.SHN_UNDEF {
			continue
		}
		table[sym.Name] = sym.Value
		if sym.Name == "__global_pointer$" {
			gp = int64(sym.Value)
		}
	}

	return core.NewSymbolResolver(table), gp
}

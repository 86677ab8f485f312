package core

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// SyscallEffect records one ecall's externally visible behavior: what it
// read from stdin, what it wrote to stdout, or a summary line for anything
// else. A trace consumer can replay a run's I/O from the Effects slice
// without re-executing it.
type SyscallEffect struct {
	Summary string
	Stdin   []byte
	Stdout  []byte
}

// Machine is the concrete implementation of the Machine contract the
// executor is written against: a register file, a byte-addressable memory,
// and the append-only stdin/stdout logs and effect trace an ecall populates.
// It is exclusively owned by the interpreter loop for the duration of one
// Execute call; nothing here is safe for concurrent use.
type Machine struct {
	CPU *CPU
	Mem *Memory

	Stdin   []byte
	Stdout  []byte
	Effects []SyscallEffect

	stdinReader *bufio.Reader
	stdoutWriter io.Writer
}

// NewMachine builds a Machine with a fresh register file and the default
// code/data/heap/stack memory layout, reading ecall input from os.Stdin and
// writing ecall output to os.Stdout until overridden.
func NewMachine() *Machine {
	return &Machine{
		CPU:          NewCPU(),
		Mem:          NewMemory(),
		stdinReader:  bufio.NewReader(os.Stdin),
		stdoutWriter: os.Stdout,
	}
}

// Reset restores the register file and memory to their power-on state,
// and clears the accumulated stdin/stdout logs and effect trace. It does
// not reopen stdinReader/stdoutWriter, so a caller-supplied redirection
// (SetStdinReader/SetStdoutWriter) survives a reset.
func (m *Machine) Reset() {
	m.CPU.Reset()
	m.Mem.Reset()
	m.Stdin = nil
	m.Stdout = nil
	m.Effects = nil
}

// SetStdinReader redirects the source the read ecall consumes from. This
// lets a test or an embedding frontend supply canned input instead of the
// process's real stdin.
func (m *Machine) SetStdinReader(r io.Reader) {
	if br, ok := r.(*bufio.Reader); ok {
		m.stdinReader = br
	} else {
		m.stdinReader = bufio.NewReader(r)
	}
}

// SetStdoutWriter redirects where the write ecall's bytes are mirrored,
// independent of the append-only Stdout log this Machine also keeps.
func (m *Machine) SetStdoutWriter(w io.Writer) {
	m.stdoutWriter = w
}

// Get reads a register as a signed 64-bit value.
func (m *Machine) Get(reg int) int64 {
	return int64(m.CPU.GetRegister(reg))
}

// Set writes a register. Writes to x0 are discarded by CPU.SetRegister,
// not here, so every caller gets the same zero-register behavior for free.
func (m *Machine) Set(reg int, value int64) {
	m.CPU.SetRegister(reg, uint64(value))
}

// Get32 reads the low 32 bits of a register as a signed value.
func (m *Machine) Get32(reg int) int32 {
	return int32(uint32(m.CPU.GetRegister(reg)))
}

// Set32 writes a register from a 32-bit value, sign-extending to 64 bits.
// This is what gives every W-form instruction its sign-extend-on-write
// semantics for free: callers never sign-extend by hand.
func (m *Machine) Set32(reg int, value int32) {
	m.Set(reg, int64(value))
}

// PC returns the current program counter.
func (m *Machine) PC() int64 {
	return int64(m.CPU.GetPC())
}

// SetPC moves the program counter, refusing targets outside an executable
// segment so a stray jump fails loudly instead of fetching garbage.
func (m *Machine) SetPC(target int64) error {
	addr := uint64(target)
	if err := m.Mem.CheckExecutePermission(addr); err != nil {
		return fmt.Errorf("set_pc: %w", err)
	}
	m.CPU.SetPC(addr)
	return nil
}

// AdvancePC moves the program counter forward by delta bytes (op.Size() of
// the instruction just executed) for the straight-line, fall-through case,
// refusing the same way SetPC does if the destination isn't executable.
func (m *Machine) AdvancePC(delta uint64) error {
	m.CPU.AdvancePC(delta)
	if err := m.Mem.CheckExecutePermission(m.CPU.GetPC()); err != nil {
		return fmt.Errorf("advance_pc: %w", err)
	}
	return nil
}

// FetchInstruction reads the variable-length instruction word at addr: two
// bytes first, and two more only if those low bits mark a full 32-bit
// instruction, so a compressed instruction at the top of a segment never
// reads past its end. It checks execute permission before fetching.
func (m *Machine) FetchInstruction(addr uint64) (uint32, error) {
	if err := m.Mem.CheckExecutePermission(addr); err != nil {
		return 0, fmt.Errorf("fetch: %w", err)
	}
	low, err := m.Mem.ReadN(addr, 2)
	if err != nil {
		return 0, fmt.Errorf("fetch: %w", err)
	}
	if low&Mask2Bit != Mask2Bit {
		return uint32(low), nil
	}
	high, err := m.Mem.ReadN(addr+2, 2)
	if err != nil {
		return 0, fmt.Errorf("fetch: %w", err)
	}
	return uint32(low) | uint32(high)<<16, nil
}

func (m *Machine) loadSigned(addr int64, byteWidth int) (int64, error) {
	raw, err := m.Mem.ReadN(uint64(addr), byteWidth)
	if err != nil {
		return 0, err
	}
	return signExtend(int64(raw), uint(byteWidth*8)), nil
}

// LoadI8 reads one sign-extended byte.
func (m *Machine) LoadI8(addr int64) (int64, error) { return m.loadSigned(addr, 1) }

// LoadI16 reads a sign-extended halfword.
func (m *Machine) LoadI16(addr int64) (int64, error) { return m.loadSigned(addr, 2) }

// LoadI32 reads a sign-extended word.
func (m *Machine) LoadI32(addr int64) (int64, error) { return m.loadSigned(addr, 4) }

// LoadI64 reads a full doubleword; there is nothing left to sign-extend.
func (m *Machine) LoadI64(addr int64) (int64, error) { return m.loadSigned(addr, 8) }

func (m *Machine) loadUnsigned(addr int64, byteWidth int) (int64, error) {
	raw, err := m.Mem.ReadN(uint64(addr), byteWidth)
	if err != nil {
		return 0, err
	}
	return int64(raw), nil
}

// LoadU8 reads one zero-extended byte.
func (m *Machine) LoadU8(addr int64) (int64, error) { return m.loadUnsigned(addr, 1) }

// LoadU16 reads a zero-extended halfword.
func (m *Machine) LoadU16(addr int64) (int64, error) { return m.loadUnsigned(addr, 2) }

// LoadU32 reads a zero-extended word.
func (m *Machine) LoadU32(addr int64) (int64, error) { return m.loadUnsigned(addr, 4) }

// Load reads count raw bytes, used by the write syscall to pull a buffer
// out of memory before handing it to the host.
func (m *Machine) Load(addr int64, count int64) ([]byte, error) {
	if count < 0 {
		return nil, fmt.Errorf("load: negative count %d", count)
	}
	return m.Mem.GetBytes(uint64(addr), uint64(count))
}

// Store writes raw bytes, used by the store instructions and by the read
// syscall to deposit a buffer into memory.
func (m *Machine) Store(addr int64, data []byte) error {
	return m.Mem.LoadBytes(uint64(addr), data)
}

// RecordEffect appends one syscall's externally visible behavior to the
// trace, mirroring it into the cumulative Stdin/Stdout logs.
func (m *Machine) RecordEffect(e SyscallEffect) {
	m.Effects = append(m.Effects, e)
	if e.Stdin != nil {
		m.Stdin = append(m.Stdin, e.Stdin...)
	}
	if e.Stdout != nil {
		m.Stdout = append(m.Stdout, e.Stdout...)
	}
}

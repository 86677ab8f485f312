package core

// ============================================================================
// RV64IMC Architecture Constants
// ============================================================================
// These values are defined by the RISC-V unprivileged ISA specification.

const (
	// Register counts
	GeneralRegisterCount = 32 // x0-x31

	// Instruction encoding
	FullInstructionSize       = 4 // bytes, for the base 32-bit encoding
	CompressedInstructionSize = 2 // bytes, for a C-extension instruction

	// Sign bit helpers for 32-bit (W-suffixed) operations
	SignBit32Pos  = 31
	SignBit32Mask = 0x80000000

	// Bit masks used throughout the decoder
	Mask1Bit  = 0x1
	Mask2Bit  = 0x3
	Mask3Bit  = 0x7
	Mask4Bit  = 0xf
	Mask5Bit  = 0x1f
	Mask6Bit  = 0x3f
	Mask7Bit  = 0x7f
	Mask8Bit  = 0xff
	Mask12Bit = 0xfff
	Mask16Bit = 0xffff
	Mask32Bit = 0xffffffff
)

// RegNames is indexed by the encoded register number and gives the ABI
// name convention (zero/ra/sp/gp/tp/t0-2/s0-1/a0-7/s2-11/t3-6), identical to
// what objdump and every other RISC-V tool prints.
var RegNames = [GeneralRegisterCount]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

// Register numbers referenced by name elsewhere in the decoder/executor.
const (
	RegZero = 0
	RegRA   = 1
	RegSP   = 2
	RegGP   = 3
	RegA0   = 10
	RegA1   = 11
	RegA2   = 12
	RegA7   = 17
)

// regNums is the reverse of RegNames, built once at init for the debugger's
// register-name lookups (e.g. "print a0").
var regNums = func() map[string]int {
	m := make(map[string]int, GeneralRegisterCount*2)
	for i, name := range RegNames {
		m[name] = i
	}
	for i := 0; i < GeneralRegisterCount; i++ {
		m[xName(i)] = i
	}
	return m
}()

func xName(n int) string {
	digits := "0123456789"
	if n < 10 {
		return "x" + string(digits[n])
	}
	return "x" + string(digits[n/10]) + string(digits[n%10])
}

// RegisterNumber resolves a register name ("a0", "x10", "sp", ...) to its
// encoded index. Returns false if the name is not recognized.
func RegisterNumber(name string) (int, bool) {
	n, ok := regNums[name]
	return n, ok
}

// ============================================================================
// Memory Layout
// ============================================================================
// Default segment layout for programs that are not loaded from an ELF file
// (e.g. a raw instruction stream fed directly to the executor in tests).
// ELF-loaded programs instead derive their segments from the program
// headers; see package loader.

const (
	CodeSegmentStart  = 0x00010000
	CodeSegmentSize   = 0x00100000 // 1MiB
	DataSegmentStart  = 0x00200000
	DataSegmentSize   = 0x00100000 // 1MiB
	HeapSegmentStart  = 0x00300000
	HeapSegmentSize   = 0x00400000 // 4MiB
	StackSegmentStart = 0x7f000000
	StackSegmentSize  = 0x00100000 // 1MiB, grows down from StackSegmentStart+StackSegmentSize
)

// ============================================================================
// Execution Limits
// ============================================================================

const (
	DefaultMaxCycles   = 10_000_000 // instruction budget before a runaway program is killed
	DefaultLogCapacity = 1000       // initial capacity for the instruction trace
)

// ============================================================================
// Linux RISC-V syscall ABI (the minimal subset this machine supports)
// ============================================================================

const (
	SyscallRead  = 63
	SyscallWrite = 64
	SyscallExit  = 93
)

const (
	StdinFD  = 0
	StdoutFD = 1
)

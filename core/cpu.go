package core

// CPU represents the integer register file and program counter of an
// RV64IMC hart. There is no separate flags register: RISC-V branches and
// comparisons operate directly on register values.
type CPU struct {
	// General purpose registers x0-x31. x0 always reads as zero; writes to
	// it are discarded by SetRegister, not by callers.
	X [GeneralRegisterCount]uint64

	// Program counter.
	PC uint64

	// Retired-instruction counter, used for statistics and cycle limits.
	Cycles uint64
}

// NewCPU creates a CPU with all registers zeroed.
func NewCPU() *CPU {
	return &CPU{}
}

// Reset zeroes every register, the PC, and the cycle counter.
func (c *CPU) Reset() {
	for i := range c.X {
		c.X[i] = 0
	}
	c.PC = 0
	c.Cycles = 0
}

// GetRegister returns the value of x0-x31. Out-of-range indices return 0
// rather than panicking, since a malformed decode should fail loudly at
// the decoder, not corrupt CPU state here.
func (c *CPU) GetRegister(reg int) uint64 {
	if reg < 0 || reg >= GeneralRegisterCount {
		return 0
	}
	return c.X[reg]
}

// SetRegister writes a register, silently discarding writes to x0 per the
// RV64I specification.
func (c *CPU) SetRegister(reg int, value uint64) {
	if reg <= RegZero || reg >= GeneralRegisterCount {
		return
	}
	c.X[reg] = value
}

// GetSP returns the stack pointer (x2).
func (c *CPU) GetSP() uint64 {
	return c.X[RegSP]
}

// SetSP sets the stack pointer (x2).
func (c *CPU) SetSP(value uint64) {
	c.SetRegister(RegSP, value)
}

// GetPC returns the program counter.
func (c *CPU) GetPC() uint64 {
	return c.PC
}

// SetPC sets the program counter directly, used by branches, jumps, and
// ecall/ebreak traps. Unlike ARM's pipelined PC, RV64's PC always points at
// the instruction about to execute.
func (c *CPU) SetPC(address uint64) {
	c.PC = address
}

// AdvancePC moves the program counter past the instruction just executed.
// delta is 2 for a compressed instruction, 4 for a full-width one. Branch
// and jump operations set PC directly instead and must not also call this.
func (c *CPU) AdvancePC(delta uint64) {
	c.PC += delta
}

// IncrementCycles increments the retired-instruction counter.
func (c *CPU) IncrementCycles(n uint64) {
	c.Cycles += n
}

package core

import (
	"math"
	"strings"
	"testing"
)

func TestExecuteWritesToX0AreDiscarded(t *testing.T) {
	m := NewMachine()
	op := Operation{Kind: KindAddi, Rd: RegZero, Rs1: RegZero, Imm: 42}
	if err := Execute(op, m); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := m.Get(RegZero); got != 0 {
		t.Errorf("Get(x0) = %d after writing 42 to it, want 0", got)
	}
}

func TestExecuteWFormSignExtends(t *testing.T) {
	m := NewMachine()
	m.Set(11, int64(int32(0x7fffffff)))
	m.Set(12, 1)
	op := Operation{Kind: KindAddw, Rd: 10, Rs1: 11, Rs2: 12}
	if err := Execute(op, m); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	// 0x7fffffff + 1 overflows to 0x80000000 as a 32-bit value, which
	// sign-extends to a negative int64.
	want := int64(math.MinInt32)
	if got := m.Get(10); got != want {
		t.Errorf("ADDW result = %d, want %d (sign-extended 32-bit overflow)", got, want)
	}
}

func TestExecuteSlliThenSrliPreservesLowBits(t *testing.T) {
	m := NewMachine()
	const shamt = 20
	original := int64(-1) // all bits set
	m.Set(5, original)
	if err := Execute(Operation{Kind: KindSlli, Rd: 6, Rs1: 5, Imm: shamt}, m); err != nil {
		t.Fatalf("slli: %v", err)
	}
	if err := Execute(Operation{Kind: KindSrli, Rd: 6, Rs1: 6, Imm: shamt}, m); err != nil {
		t.Fatalf("srli: %v", err)
	}
	// All-ones shifted left then logically right by the same amount must
	// zero the top shamt bits and leave the rest set.
	want := int64(uint64(math.MaxUint64) >> shamt)
	if got := m.Get(6); got != want {
		t.Errorf("SLLI then SRLI by %d = %#x, want %#x", shamt, got, want)
	}
}

func TestExecuteAuipcAddiComputesAbsoluteAddress(t *testing.T) {
	m := NewMachine()
	if err := m.SetPC(CodeSegmentStart); err != nil {
		t.Fatalf("SetPC: %v", err)
	}
	hi := int64(0x12345000)
	lo := int64(0x678)
	if err := Execute(Operation{Kind: KindAuipc, Rd: 5, Imm: hi}, m); err != nil {
		t.Fatalf("auipc: %v", err)
	}
	if err := Execute(Operation{Kind: KindAddi, Rd: 5, Rs1: 5, Imm: lo}, m); err != nil {
		t.Fatalf("addi: %v", err)
	}
	want := int64(CodeSegmentStart) + hi + lo
	if got := m.Get(5); got != want {
		t.Errorf("auipc+addi = %#x, want %#x", got, want)
	}
}

func TestExecuteMulEqualsLowBitsOfMulhMul(t *testing.T) {
	m := NewMachine()
	a, b := int64(-123456789), int64(987654321)
	m.Set(1, a)
	m.Set(2, b)
	if err := Execute(Operation{Kind: KindMul, Rd: 3, Rs1: 1, Rs2: 2}, m); err != nil {
		t.Fatalf("mul: %v", err)
	}
	want := a * b // Go's int64 multiplication already wraps mod 2^64.
	if got := m.Get(3); got != want {
		t.Errorf("MUL = %d, want %d", got, want)
	}
}

func TestExecuteDivByZero(t *testing.T) {
	cases := []struct {
		name string
		kind Kind
		want int64
	}{
		{"div", KindDiv, -1},
		{"divu", KindDivu, -1},
		{"rem", KindRem, 7},
		{"remu", KindRemu, 7},
	}
	for _, c := range cases {
		m := NewMachine()
		m.Set(1, 7)
		m.Set(2, 0)
		if err := Execute(Operation{Kind: c.kind, Rd: 3, Rs1: 1, Rs2: 2}, m); err != nil {
			t.Fatalf("%s: %v", c.name, err)
		}
		if got := m.Get(3); got != c.want {
			t.Errorf("%s by zero = %d, want %d", c.name, got, c.want)
		}
	}
}

func TestExecuteDivOverflow(t *testing.T) {
	m := NewMachine()
	m.Set(1, math.MinInt64)
	m.Set(2, -1)
	if err := Execute(Operation{Kind: KindDiv, Rd: 3, Rs1: 1, Rs2: 2}, m); err != nil {
		t.Fatalf("div: %v", err)
	}
	if got := m.Get(3); got != math.MinInt64 {
		t.Errorf("DIV INT64_MIN/-1 = %d, want %d", got, int64(math.MinInt64))
	}

	m.Set(1, math.MinInt64)
	m.Set(2, -1)
	if err := Execute(Operation{Kind: KindRem, Rd: 3, Rs1: 1, Rs2: 2}, m); err != nil {
		t.Fatalf("rem: %v", err)
	}
	if got := m.Get(3); got != 0 {
		t.Errorf("REM INT64_MIN/-1 = %d, want 0", got)
	}
}

func TestExecuteDivwOverflow(t *testing.T) {
	m := NewMachine()
	m.Set(1, int64(int32(math.MinInt32)))
	m.Set(2, -1)
	if err := Execute(Operation{Kind: KindDivw, Rd: 3, Rs1: 1, Rs2: 2}, m); err != nil {
		t.Fatalf("divw: %v", err)
	}
	if got := m.Get(3); got != int64(int32(math.MinInt32)) {
		t.Errorf("DIVW INT32_MIN/-1 = %d, want %d", got, int64(int32(math.MinInt32)))
	}
}

func TestExecuteJalrClearsLowBit(t *testing.T) {
	m := NewMachine()
	if err := m.SetPC(CodeSegmentStart); err != nil {
		t.Fatalf("SetPC: %v", err)
	}
	m.Set(5, CodeSegmentStart+0x101) // odd target
	op := Operation{Kind: KindJalr, Rd: 1, Rs1: 5, Imm: 0}
	if err := Execute(op, m); err != nil {
		t.Fatalf("jalr: %v", err)
	}
	if m.PC()&1 != 0 {
		t.Errorf("PC after jalr = %#x, low bit not cleared", m.PC())
	}
	if want := int64(CodeSegmentStart) + FullInstructionSize; m.Get(1) != want {
		t.Errorf("ra after jalr = %#x, want %#x", m.Get(1), want)
	}
}

func TestExecuteBeqInfiniteLoopAtZeroOffset(t *testing.T) {
	m := NewMachine()
	if err := m.SetPC(CodeSegmentStart); err != nil {
		t.Fatalf("SetPC: %v", err)
	}
	op := Operation{Kind: KindBeq, Rs1: RegZero, Rs2: RegZero, Imm: 0}
	if err := Execute(op, m); err != nil {
		t.Fatalf("beq: %v", err)
	}
	if m.PC() != CodeSegmentStart {
		t.Errorf("PC after beq x0,x0,0 = %#x, want unchanged %#x", m.PC(), int64(CodeSegmentStart))
	}
}

func TestExecuteBneFallsThroughWhenEqual(t *testing.T) {
	m := NewMachine()
	if err := m.SetPC(CodeSegmentStart); err != nil {
		t.Fatalf("SetPC: %v", err)
	}
	op := Operation{Kind: KindBne, Rs1: RegZero, Rs2: RegZero, Imm: 0x100}
	if err := Execute(op, m); err != nil {
		t.Fatalf("bne: %v", err)
	}
	if m.PC() != CodeSegmentStart {
		t.Errorf("PC after bne x0,x0 (equal registers) = %#x, want unchanged %#x (fall-through)", m.PC(), int64(CodeSegmentStart))
	}
}

// li a0,42; li a7,93; ecall must terminate with the error string exactly
// "exit(42)".
func TestExecuteExitScenario(t *testing.T) {
	m := NewMachine()
	if err := Execute(Operation{Kind: KindAddi, Rd: RegA0, Rs1: RegZero, Imm: 42}, m); err != nil {
		t.Fatalf("li a0,42: %v", err)
	}
	if err := Execute(Operation{Kind: KindAddi, Rd: RegA7, Rs1: RegZero, Imm: SyscallExit}, m); err != nil {
		t.Fatalf("li a7,93: %v", err)
	}
	err := Execute(Operation{Kind: KindEcall}, m)
	if err == nil || err.Error() != "exit(42)" {
		t.Errorf("ecall exit = %v, want error \"exit(42)\"", err)
	}
}

func TestExecuteEbreakSurfacesError(t *testing.T) {
	m := NewMachine()
	err := Execute(Operation{Kind: KindEbreak}, m)
	if err == nil || err.Error() != "ebreak" {
		t.Errorf("ebreak = %v, want error \"ebreak\"", err)
	}
}

func TestExecuteUnimplementedSurfacesReason(t *testing.T) {
	m := NewMachine()
	op := unimplemented(0xdeadbeef, false, "test reason")
	err := Execute(op, m)
	if err == nil {
		t.Fatalf("Execute(Unimplemented) returned nil error")
	}
	if !strings.Contains(err.Error(), "test reason") || !strings.Contains(err.Error(), "deadbeef") {
		t.Errorf("Execute(Unimplemented) error = %q, want it to mention raw and reason", err.Error())
	}
}

func TestExecuteLoadStoreRoundTrip(t *testing.T) {
	m := NewMachine()
	m.Set(1, int64(DataSegmentStart))
	m.Set(2, -1) // all bits set
	if err := Execute(Operation{Kind: KindSb, Rs1: 1, Rs2: 2, Imm: 0}, m); err != nil {
		t.Fatalf("sb: %v", err)
	}
	if err := Execute(Operation{Kind: KindLb, Rd: 3, Rs1: 1, Imm: 0}, m); err != nil {
		t.Fatalf("lb: %v", err)
	}
	if got := m.Get(3); got != -1 {
		t.Errorf("LB after SB of -1's low byte = %d, want -1 (sign-extended 0xff)", got)
	}
	if err := Execute(Operation{Kind: KindLbu, Rd: 4, Rs1: 1, Imm: 0}, m); err != nil {
		t.Fatalf("lbu: %v", err)
	}
	if got := m.Get(4); got != 0xff {
		t.Errorf("LBU after SB of -1's low byte = %d, want 255 (zero-extended)", got)
	}
}

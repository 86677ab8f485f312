package core

import (
	"fmt"
	"math/big"
	"math/bits"
)

// Execute applies one decoded Operation to m, mutating its registers,
// memory, and program counter as needed. m.PC() must still hold the address
// of op itself when Execute is called: JAL/JALR's link-register value,
// AUIPC, and every branch/jump target are all computed relative to it. It
// never advances the PC for a straight-line instruction; the caller does
// that with op.Size() afterward, and only if Execute left the PC untouched
// (a taken branch or jump already rewrote it to its target).
//
// A non-nil error always means the interpreter loop should stop: either
// because the program asked to (exit, ebreak) or because something the
// executor cannot recover from happened (bad memory access, unsupported
// syscall, an Unimplemented operation reaching execution).
func Execute(op Operation, m *Machine) error {
	length := int64(op.Size())

	switch op.Kind {
	// r-type
	case KindAdd:
		m.Set(op.Rd, m.Get(op.Rs1)+m.Get(op.Rs2))
	case KindSub:
		m.Set(op.Rd, m.Get(op.Rs1)-m.Get(op.Rs2))
	case KindSll:
		shift := uint(m.Get(op.Rs2)) & Mask6Bit
		m.Set(op.Rd, m.Get(op.Rs1)<<shift)
	case KindSlt:
		m.Set(op.Rd, boolToInt64(m.Get(op.Rs1) < m.Get(op.Rs2)))
	case KindSltu:
		m.Set(op.Rd, boolToInt64(uint64(m.Get(op.Rs1)) < uint64(m.Get(op.Rs2))))
	case KindXor:
		m.Set(op.Rd, m.Get(op.Rs1)^m.Get(op.Rs2))
	case KindSrl:
		shift := uint(m.Get(op.Rs2)) & Mask6Bit
		m.Set(op.Rd, int64(uint64(m.Get(op.Rs1))>>shift))
	case KindSra:
		shift := uint(m.Get(op.Rs2)) & Mask6Bit
		m.Set(op.Rd, m.Get(op.Rs1)>>shift)
	case KindOr:
		m.Set(op.Rd, m.Get(op.Rs1)|m.Get(op.Rs2))
	case KindAnd:
		m.Set(op.Rd, m.Get(op.Rs1)&m.Get(op.Rs2))

	// rv64 word r-type
	case KindAddw:
		m.Set32(op.Rd, m.Get32(op.Rs1)+m.Get32(op.Rs2))
	case KindSubw:
		m.Set32(op.Rd, m.Get32(op.Rs1)-m.Get32(op.Rs2))
	case KindSllw:
		shift := uint(m.Get32(op.Rs2)) & Mask5Bit
		m.Set32(op.Rd, m.Get32(op.Rs1)<<shift)
	case KindSrlw:
		shift := uint(m.Get32(op.Rs2)) & Mask5Bit
		m.Set32(op.Rd, int32(uint32(m.Get32(op.Rs1))>>shift))
	case KindSraw:
		shift := uint(m.Get32(op.Rs2)) & Mask5Bit
		m.Set32(op.Rd, m.Get32(op.Rs1)>>shift)

	// i-type
	case KindAddi:
		m.Set(op.Rd, m.Get(op.Rs1)+op.Imm)
	case KindSlti:
		m.Set(op.Rd, boolToInt64(m.Get(op.Rs1) < op.Imm))
	case KindSltiu:
		m.Set(op.Rd, boolToInt64(uint64(m.Get(op.Rs1)) < uint64(op.Imm)))
	case KindXori:
		m.Set(op.Rd, m.Get(op.Rs1)^op.Imm)
	case KindOri:
		m.Set(op.Rd, m.Get(op.Rs1)|op.Imm)
	case KindAndi:
		m.Set(op.Rd, m.Get(op.Rs1)&op.Imm)
	case KindSlli:
		m.Set(op.Rd, m.Get(op.Rs1)<<uint(op.Imm))
	case KindSrli:
		m.Set(op.Rd, int64(uint64(m.Get(op.Rs1))>>uint(op.Imm)))
	case KindSrai:
		m.Set(op.Rd, m.Get(op.Rs1)>>uint(op.Imm))

	// rv64 word i-type
	case KindAddiw:
		m.Set32(op.Rd, m.Get32(op.Rs1)+int32(op.Imm))
	case KindSlliw:
		m.Set32(op.Rd, m.Get32(op.Rs1)<<uint(op.Imm))
	case KindSrliw:
		m.Set32(op.Rd, int32(uint32(m.Get32(op.Rs1))>>uint(op.Imm)))
	case KindSraiw:
		m.Set32(op.Rd, m.Get32(op.Rs1)>>uint(op.Imm))

	// branches
	case KindBeq:
		if m.Get(op.Rs1) == m.Get(op.Rs2) {
			return m.SetPC(m.PC() + op.Imm)
		}
	case KindBne:
		if m.Get(op.Rs1) != m.Get(op.Rs2) {
			return m.SetPC(m.PC() + op.Imm)
		}
	case KindBlt:
		if m.Get(op.Rs1) < m.Get(op.Rs2) {
			return m.SetPC(m.PC() + op.Imm)
		}
	case KindBge:
		if m.Get(op.Rs1) >= m.Get(op.Rs2) {
			return m.SetPC(m.PC() + op.Imm)
		}
	case KindBltu:
		if uint64(m.Get(op.Rs1)) < uint64(m.Get(op.Rs2)) {
			return m.SetPC(m.PC() + op.Imm)
		}
	case KindBgeu:
		if uint64(m.Get(op.Rs1)) >= uint64(m.Get(op.Rs2)) {
			return m.SetPC(m.PC() + op.Imm)
		}

	// jumps
	case KindJal:
		m.Set(op.Rd, m.PC()+length)
		return m.SetPC(m.PC() + op.Imm)
	case KindJalr:
		rs1Val := m.Get(op.Rs1)
		target := (rs1Val + op.Imm) &^ 1
		m.Set(op.Rd, m.PC()+length)
		return m.SetPC(target)

	// loads
	case KindLb:
		val, err := m.LoadI8(m.Get(op.Rs1) + op.Imm)
		if err != nil {
			return err
		}
		m.Set(op.Rd, val)
	case KindLh:
		val, err := m.LoadI16(m.Get(op.Rs1) + op.Imm)
		if err != nil {
			return err
		}
		m.Set(op.Rd, val)
	case KindLw:
		val, err := m.LoadI32(m.Get(op.Rs1) + op.Imm)
		if err != nil {
			return err
		}
		m.Set(op.Rd, val)
	case KindLd:
		val, err := m.LoadI64(m.Get(op.Rs1) + op.Imm)
		if err != nil {
			return err
		}
		m.Set(op.Rd, val)
	case KindLbu:
		val, err := m.LoadU8(m.Get(op.Rs1) + op.Imm)
		if err != nil {
			return err
		}
		m.Set(op.Rd, val)
	case KindLhu:
		val, err := m.LoadU16(m.Get(op.Rs1) + op.Imm)
		if err != nil {
			return err
		}
		m.Set(op.Rd, val)
	case KindLwu:
		val, err := m.LoadU32(m.Get(op.Rs1) + op.Imm)
		if err != nil {
			return err
		}
		m.Set(op.Rd, val)

	// stores
	case KindSb:
		addr := m.Get(op.Rs1) + op.Imm
		return m.Store(addr, []byte{byte(m.Get(op.Rs2))})
	case KindSh:
		addr := m.Get(op.Rs1) + op.Imm
		v := uint16(m.Get(op.Rs2))
		return m.Store(addr, []byte{byte(v), byte(v >> 8)})
	case KindSw:
		addr := m.Get(op.Rs1) + op.Imm
		v := uint32(m.Get(op.Rs2))
		return m.Store(addr, []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)})
	case KindSd:
		addr := m.Get(op.Rs1) + op.Imm
		v := uint64(m.Get(op.Rs2))
		return m.Store(addr, []byte{
			byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24),
			byte(v >> 32), byte(v >> 40), byte(v >> 48), byte(v >> 56),
		})

	// u-type
	case KindLui:
		m.Set(op.Rd, op.Imm)
	case KindAuipc:
		m.Set(op.Rd, m.PC()+op.Imm)

	// misc
	case KindFence:
		// no-op: single-hart, in-order interpreter
	case KindEcall:
		return executeEcall(m)
	case KindEbreak:
		return fmt.Errorf("ebreak")

	// m extension
	case KindMul:
		m.Set(op.Rd, m.Get(op.Rs1)*m.Get(op.Rs2))
	case KindMulh:
		m.Set(op.Rd, mulhSigned(m.Get(op.Rs1), m.Get(op.Rs2)))
	case KindMulhsu:
		m.Set(op.Rd, mulhSignedUnsigned(m.Get(op.Rs1), uint64(m.Get(op.Rs2))))
	case KindMulhu:
		hi, _ := bits.Mul64(uint64(m.Get(op.Rs1)), uint64(m.Get(op.Rs2)))
		m.Set(op.Rd, int64(hi))
	case KindDiv:
		divisor := m.Get(op.Rs2)
		if divisor == 0 {
			m.Set(op.Rd, -1)
		} else {
			m.Set(op.Rd, m.Get(op.Rs1)/divisor)
		}
	case KindDivu:
		divisor := uint64(m.Get(op.Rs2))
		if divisor == 0 {
			m.Set(op.Rd, -1)
		} else {
			m.Set(op.Rd, int64(uint64(m.Get(op.Rs1))/divisor))
		}
	case KindRem:
		divisor := m.Get(op.Rs2)
		if divisor == 0 {
			m.Set(op.Rd, m.Get(op.Rs1))
		} else {
			m.Set(op.Rd, m.Get(op.Rs1)%divisor)
		}
	case KindRemu:
		divisor := uint64(m.Get(op.Rs2))
		if divisor == 0 {
			m.Set(op.Rd, m.Get(op.Rs1))
		} else {
			m.Set(op.Rd, int64(uint64(m.Get(op.Rs1))%divisor))
		}

	// m extension, word forms
	case KindMulw:
		m.Set32(op.Rd, m.Get32(op.Rs1)*m.Get32(op.Rs2))
	case KindDivw:
		divisor := m.Get32(op.Rs2)
		if divisor == 0 {
			m.Set32(op.Rd, -1)
		} else {
			m.Set32(op.Rd, m.Get32(op.Rs1)/divisor)
		}
	case KindDivuw:
		divisor := uint32(m.Get32(op.Rs2))
		if divisor == 0 {
			m.Set32(op.Rd, -1)
		} else {
			m.Set32(op.Rd, int32(uint32(m.Get32(op.Rs1))/divisor))
		}
	case KindRemw:
		divisor := m.Get32(op.Rs2)
		if divisor == 0 {
			m.Set32(op.Rd, m.Get32(op.Rs1))
		} else {
			m.Set32(op.Rd, m.Get32(op.Rs1)%divisor)
		}
	case KindRemuw:
		divisor := uint32(m.Get32(op.Rs2))
		if divisor == 0 {
			m.Set32(op.Rd, m.Get32(op.Rs1))
		} else {
			m.Set32(op.Rd, int32(uint32(m.Get32(op.Rs1))%divisor))
		}

	case KindUnimplemented:
		return fmt.Errorf("inst: 0x%x note: %s", op.Raw, op.Note)

	default:
		return fmt.Errorf("executor: unhandled operation kind %d", op.Kind)
	}
	return nil
}

func boolToInt64(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// mulhSigned returns the high 64 bits of the signed 128-bit product a*b.
// big.Int gives an exact wide product without hand-rolling the 128-bit
// correction terms; big.Int's Rsh implements a floor (arithmetic) shift for
// negative values, so shifting the signed product right by 64 is exactly
// the high half of its two's-complement 128-bit representation.
func mulhSigned(a, b int64) int64 {
	product := new(big.Int).Mul(big.NewInt(a), big.NewInt(b))
	return product.Rsh(product, 64).Int64()
}

// mulhSignedUnsigned returns the high 64 bits of a (signed) times b
// (unsigned), per MULHSU.
func mulhSignedUnsigned(a int64, b uint64) int64 {
	bigB := new(big.Int).SetUint64(b)
	product := new(big.Int).Mul(big.NewInt(a), bigB)
	return product.Rsh(product, 64).Int64()
}

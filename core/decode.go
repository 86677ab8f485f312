package core

import "fmt"

// Decode turns one raw instruction word into an Operation. It never
// returns an error: an instruction this decoder doesn't recognize becomes
// KindUnimplemented carrying a diagnostic Note, so the executor (and the
// disassembler) always have a concrete value to work with. Decode inspects
// only as many of the low bits of raw as it needs; a 16-bit compressed
// instruction should be passed with its upper 16 bits zero, and
// IsCompressed on the result records which path was taken.
func Decode(raw uint32) Operation {
	if raw&Mask2Bit != Mask2Bit {
		return decodeCompressed(uint16(raw))
	}

	opcode := getOpcode(raw)
	switch opcode {
	case 0x33:
		return decodeRType(raw)
	case 0x3b:
		return decodeRV64RType(raw)
	case 0x13:
		return decodeIType(raw)
	case 0x1b:
		return decodeRV64IType(raw)
	case 0x63:
		return decodeBranch(raw)
	case 0x6f:
		return Operation{Kind: KindJal, Rd: getRd(raw), Imm: getImmJ(raw), Raw: raw}
	case 0x67:
		if getFunct3(raw) != 0 {
			return unimplemented(raw, false, fmt.Sprintf("jalr with unknown funct3 %d", getFunct3(raw)))
		}
		return Operation{Kind: KindJalr, Rd: getRd(raw), Rs1: getRs1(raw), Imm: getImmI(raw), Raw: raw}
	case 0x03:
		return decodeLoad(raw)
	case 0x23:
		return decodeStore(raw)
	case 0x37:
		return Operation{Kind: KindLui, Rd: getRd(raw), Imm: getImmU(raw), Raw: raw}
	case 0x17:
		return Operation{Kind: KindAuipc, Rd: getRd(raw), Imm: getImmU(raw), Raw: raw}
	case 0x0f:
		return Operation{Kind: KindFence, Raw: raw}
	case 0x73:
		switch raw {
		case 0x00000073:
			return Operation{Kind: KindEcall, Raw: raw}
		case 0x00100073:
			return Operation{Kind: KindEbreak, Raw: raw}
		default:
			return unimplemented(raw, false, "unsupported system instruction (only ecall/ebreak are implemented)")
		}
	default:
		return unimplemented(raw, false, fmt.Sprintf("unknown opcode 0x%02x", opcode))
	}
}

func decodeBranch(raw uint32) Operation {
	rs1, rs2, offset := getRs1(raw), getRs2(raw), getImmB(raw)
	base := Operation{Rs1: rs1, Rs2: rs2, Imm: offset, Raw: raw}
	switch getFunct3(raw) {
	case 0:
		base.Kind = KindBeq
	case 1:
		base.Kind = KindBne
	case 4:
		base.Kind = KindBlt
	case 5:
		base.Kind = KindBge
	case 6:
		base.Kind = KindBltu
	case 7:
		base.Kind = KindBgeu
	default:
		return unimplemented(raw, false, fmt.Sprintf("branch with unknown funct3 %d", getFunct3(raw)))
	}
	return base
}

func decodeLoad(raw uint32) Operation {
	rd, rs1, offset := getRd(raw), getRs1(raw), getImmI(raw)
	base := Operation{Rd: rd, Rs1: rs1, Imm: offset, Raw: raw}
	switch getFunct3(raw) {
	case 0:
		base.Kind = KindLb
	case 1:
		base.Kind = KindLh
	case 2:
		base.Kind = KindLw
	case 3:
		base.Kind = KindLd
	case 4:
		base.Kind = KindLbu
	case 5:
		base.Kind = KindLhu
	case 6:
		base.Kind = KindLwu
	default:
		return unimplemented(raw, false, fmt.Sprintf("load with unknown funct3 %d", getFunct3(raw)))
	}
	return base
}

func decodeStore(raw uint32) Operation {
	rs1, rs2, offset := getRs1(raw), getRs2(raw), getImmS(raw)
	base := Operation{Rs1: rs1, Rs2: rs2, Imm: offset, Raw: raw}
	switch getFunct3(raw) {
	case 0:
		base.Kind = KindSb
	case 1:
		base.Kind = KindSh
	case 2:
		base.Kind = KindSw
	case 3:
		base.Kind = KindSd
	default:
		return unimplemented(raw, false, fmt.Sprintf("store with unknown funct3 %d", getFunct3(raw)))
	}
	return base
}

func decodeIType(raw uint32) Operation {
	funct3 := getFunct3(raw)
	rd, rs1, imm := getRd(raw), getRs1(raw), getImmI(raw)
	shamt := imm & Mask6Bit
	immHigh := imm >> 6

	switch funct3 {
	case 0:
		return Operation{Kind: KindAddi, Rd: rd, Rs1: rs1, Imm: imm, Raw: raw}
	case 1:
		if immHigh != 0 {
			return unimplemented(raw, false, fmt.Sprintf("slli with unexpected high immediate bits %#x", immHigh))
		}
		return Operation{Kind: KindSlli, Rd: rd, Rs1: rs1, Imm: shamt, Raw: raw}
	case 2:
		return Operation{Kind: KindSlti, Rd: rd, Rs1: rs1, Imm: imm, Raw: raw}
	case 3:
		return Operation{Kind: KindSltiu, Rd: rd, Rs1: rs1, Imm: imm, Raw: raw}
	case 4:
		return Operation{Kind: KindXori, Rd: rd, Rs1: rs1, Imm: imm, Raw: raw}
	case 5:
		switch immHigh {
		case 0x00:
			return Operation{Kind: KindSrli, Rd: rd, Rs1: rs1, Imm: shamt, Raw: raw}
		case 0x10:
			return Operation{Kind: KindSrai, Rd: rd, Rs1: rs1, Imm: shamt, Raw: raw}
		default:
			return unimplemented(raw, false, fmt.Sprintf("shift-right-immediate with unknown subtype %#x", immHigh))
		}
	case 6:
		return Operation{Kind: KindOri, Rd: rd, Rs1: rs1, Imm: imm, Raw: raw}
	case 7:
		return Operation{Kind: KindAndi, Rd: rd, Rs1: rs1, Imm: imm, Raw: raw}
	default:
		return unimplemented(raw, false, fmt.Sprintf("alu-immediate with unknown funct3 %d", funct3))
	}
}

func decodeRV64IType(raw uint32) Operation {
	funct3 := getFunct3(raw)
	rd, rs1, imm := getRd(raw), getRs1(raw), getImmI(raw)
	shamt := imm & Mask5Bit
	immHigh := imm >> 5

	switch funct3 {
	case 0:
		return Operation{Kind: KindAddiw, Rd: rd, Rs1: rs1, Imm: imm, Raw: raw}
	case 1:
		if immHigh != 0 {
			return unimplemented(raw, false, fmt.Sprintf("slliw with unexpected high immediate bits %#x", immHigh))
		}
		return Operation{Kind: KindSlliw, Rd: rd, Rs1: rs1, Imm: shamt, Raw: raw}
	case 5:
		switch immHigh {
		case 0x00:
			return Operation{Kind: KindSrliw, Rd: rd, Rs1: rs1, Imm: shamt, Raw: raw}
		case 0x20:
			return Operation{Kind: KindSraiw, Rd: rd, Rs1: rs1, Imm: shamt, Raw: raw}
		default:
			return unimplemented(raw, false, fmt.Sprintf("shift-right-immediate-word with unknown subtype %#x", immHigh))
		}
	default:
		return unimplemented(raw, false, fmt.Sprintf("alu-immediate-word with unknown funct3 %d", funct3))
	}
}

func decodeRType(raw uint32) Operation {
	funct3, funct7 := getFunct3(raw), getFunct7(raw)
	rd, rs1, rs2 := getRd(raw), getRs1(raw), getRs2(raw)
	base := Operation{Rd: rd, Rs1: rs1, Rs2: rs2, Raw: raw}

	switch {
	case funct7 == 0x00 && funct3 == 0x00:
		base.Kind = KindAdd
	case funct7 == 0x20 && funct3 == 0x00:
		base.Kind = KindSub
	case funct7 == 0x00 && funct3 == 0x01:
		base.Kind = KindSll
	case funct7 == 0x00 && funct3 == 0x02:
		base.Kind = KindSlt
	case funct7 == 0x00 && funct3 == 0x03:
		base.Kind = KindSltu
	case funct7 == 0x00 && funct3 == 0x04:
		base.Kind = KindXor
	case funct7 == 0x00 && funct3 == 0x05:
		base.Kind = KindSrl
	case funct7 == 0x20 && funct3 == 0x05:
		base.Kind = KindSra
	case funct7 == 0x00 && funct3 == 0x06:
		base.Kind = KindOr
	case funct7 == 0x00 && funct3 == 0x07:
		base.Kind = KindAnd
	case funct7 == 0x01 && funct3 == 0x00:
		base.Kind = KindMul
	case funct7 == 0x01 && funct3 == 0x01:
		base.Kind = KindMulh
	case funct7 == 0x01 && funct3 == 0x02:
		base.Kind = KindMulhsu
	case funct7 == 0x01 && funct3 == 0x03:
		base.Kind = KindMulhu
	case funct7 == 0x01 && funct3 == 0x04:
		base.Kind = KindDiv
	case funct7 == 0x01 && funct3 == 0x05:
		base.Kind = KindDivu
	case funct7 == 0x01 && funct3 == 0x06:
		base.Kind = KindRem
	case funct7 == 0x01 && funct3 == 0x07:
		base.Kind = KindRemu
	default:
		return unimplemented(raw, false, fmt.Sprintf("alu instruction with unknown funct3=%d funct7=%#x", funct3, funct7))
	}
	return base
}

func decodeRV64RType(raw uint32) Operation {
	funct3, funct7 := getFunct3(raw), getFunct7(raw)
	rd, rs1, rs2 := getRd(raw), getRs1(raw), getRs2(raw)
	base := Operation{Rd: rd, Rs1: rs1, Rs2: rs2, Raw: raw}

	switch {
	case funct7 == 0x00 && funct3 == 0x00:
		base.Kind = KindAddw
	case funct7 == 0x20 && funct3 == 0x00:
		base.Kind = KindSubw
	case funct7 == 0x00 && funct3 == 0x01:
		base.Kind = KindSllw
	case funct7 == 0x00 && funct3 == 0x05:
		base.Kind = KindSrlw
	case funct7 == 0x20 && funct3 == 0x05:
		base.Kind = KindSraw
	case funct7 == 0x01 && funct3 == 0x00:
		base.Kind = KindMulw
	case funct7 == 0x01 && funct3 == 0x04:
		base.Kind = KindDivw
	case funct7 == 0x01 && funct3 == 0x05:
		base.Kind = KindDivuw
	case funct7 == 0x01 && funct3 == 0x06:
		base.Kind = KindRemw
	case funct7 == 0x01 && funct3 == 0x07:
		base.Kind = KindRemuw
	default:
		return unimplemented(raw, false, fmt.Sprintf("alu-word instruction with unknown funct3=%d funct7=%#x", funct3, funct7))
	}
	return base
}

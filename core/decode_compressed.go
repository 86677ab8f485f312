package core

import "fmt"

// decodeCompressed expands a 16-bit C-extension instruction into the same
// Operation variants the 32-bit decoder produces. The RV64IMC instruction
// set only has 32-bit executor/disassembler semantics; compression is
// purely an encoding-time concern, so collapsing it here means the rest of
// the machine never has to know a compressed form exists.
func decodeCompressed(inst uint16) Operation {
	in := uint32(inst)
	op := in & Mask2Bit
	funct3 := (in >> 13) & Mask3Bit

	result := decodeCompressedBody(in, op, funct3)
	result.Raw = in
	result.IsCompressed = true
	return result
}

func cRdRs1(in uint32) int     { return int((in >> 7) & Mask5Bit) }
func cRs2(in uint32) int       { return int((in >> 2) & Mask5Bit) }
func cRs1Prime(in uint32) int  { return int((in>>7)&Mask3Bit) + 8 }
func cRs2Prime(in uint32) int  { return int((in>>2)&Mask3Bit) + 8 }

func cLwspImm(in uint32) int64 {
	imm := ((in >> 12) & 1) << 5
	imm |= ((in >> 6) & 1) << 4
	imm |= ((in >> 5) & 1) << 3
	imm |= ((in >> 4) & 1) << 2
	imm |= ((in >> 3) & 1) << 7
	imm |= ((in >> 2) & 1) << 6
	return int64(imm)
}

func cLdspImm(in uint32) int64 {
	imm := ((in >> 12) & 1) << 5
	imm |= ((in >> 6) & 1) << 4
	imm |= ((in >> 5) & 1) << 3
	imm |= ((in >> 4) & 1) << 8
	imm |= ((in >> 3) & 1) << 7
	imm |= ((in >> 2) & 1) << 6
	return int64(imm)
}

func cSwspImm(in uint32) int64 {
	imm := ((in >> 12) & 1) << 5
	imm |= ((in >> 11) & 1) << 4
	imm |= ((in >> 10) & 1) << 3
	imm |= ((in >> 9) & 1) << 2
	imm |= ((in >> 8) & 1) << 7
	imm |= ((in >> 7) & 1) << 6
	return int64(imm)
}

func cSdspImm(in uint32) int64 {
	imm := ((in >> 12) & 1) << 5
	imm |= ((in >> 11) & 1) << 4
	imm |= ((in >> 10) & 1) << 3
	imm |= ((in >> 9) & 1) << 8
	imm |= ((in >> 8) & 1) << 7
	imm |= ((in >> 7) & 1) << 6
	return int64(imm)
}

func cLwSwImm(in uint32) int64 {
	imm := ((in >> 12) & 1) << 5
	imm |= ((in >> 11) & 1) << 4
	imm |= ((in >> 10) & 1) << 3
	imm |= ((in >> 6) & 1) << 2
	imm |= ((in >> 5) & 1) << 6
	return int64(imm)
}

func cLdSdImm(in uint32) int64 {
	imm := ((in >> 12) & 1) << 5
	imm |= ((in >> 11) & 1) << 4
	imm |= ((in >> 10) & 1) << 3
	imm |= ((in >> 6) & 1) << 7
	imm |= ((in >> 5) & 1) << 6
	return int64(imm)
}

func cJJalImm(in uint32) int64 {
	imm := ((in >> 12) & 1) << 11
	imm |= ((in >> 11) & 1) << 4
	imm |= ((in >> 10) & 1) << 9
	imm |= ((in >> 9) & 1) << 8
	imm |= ((in >> 8) & 1) << 10
	imm |= ((in >> 7) & 1) << 6
	imm |= ((in >> 6) & 1) << 7
	imm |= ((in >> 5) & 1) << 3
	imm |= ((in >> 4) & 1) << 2
	imm |= ((in >> 3) & 1) << 1
	imm |= ((in >> 2) & 1) << 5
	return signExtend(int64(imm), 12)
}

func cBeqzBnezImm(in uint32) int64 {
	imm := ((in >> 12) & 1) << 8
	imm |= ((in >> 11) & 1) << 4
	imm |= ((in >> 10) & 1) << 3
	imm |= ((in >> 6) & 1) << 7
	imm |= ((in >> 5) & 1) << 6
	imm |= ((in >> 4) & 1) << 2
	imm |= ((in >> 3) & 1) << 1
	imm |= ((in >> 2) & 1) << 5
	return signExtend(int64(imm), 9)
}

func cLiAddiAddiwAndiImm(in uint32) int64 {
	imm := ((in >> 12) & 1) << 5
	imm |= ((in >> 6) & 1) << 4
	imm |= ((in >> 5) & 1) << 3
	imm |= ((in >> 4) & 1) << 2
	imm |= ((in >> 3) & 1) << 1
	imm |= (in >> 2) & 1
	return signExtend(int64(imm), 6)
}

func cLuiImm(in uint32) int64 {
	imm := ((in >> 12) & 1) << 17
	imm |= ((in >> 6) & 1) << 16
	imm |= ((in >> 5) & 1) << 15
	imm |= ((in >> 4) & 1) << 14
	imm |= ((in >> 3) & 1) << 13
	imm |= ((in >> 2) & 1) << 12
	return signExtend(int64(imm), 18)
}

func cAddi16spImm(in uint32) int64 {
	imm := ((in >> 12) & 1) << 9
	imm |= ((in >> 6) & 1) << 4
	imm |= ((in >> 5) & 1) << 6
	imm |= ((in >> 4) & 1) << 8
	imm |= ((in >> 3) & 1) << 7
	imm |= ((in >> 2) & 1) << 5
	return signExtend(int64(imm), 10)
}

func cAddi4spnImm(in uint32) int64 {
	imm := ((in >> 12) & 1) << 5
	imm |= ((in >> 11) & 1) << 4
	imm |= ((in >> 10) & 1) << 9
	imm |= ((in >> 9) & 1) << 8
	imm |= ((in >> 8) & 1) << 7
	imm |= ((in >> 7) & 1) << 6
	imm |= ((in >> 6) & 1) << 2
	imm |= ((in >> 5) & 1) << 3
	return int64(imm)
}

func cShiftImm(in uint32) int64 {
	imm := ((in >> 12) & 1) << 5
	imm |= ((in >> 6) & 1) << 4
	imm |= ((in >> 5) & 1) << 3
	imm |= ((in >> 4) & 1) << 2
	imm |= ((in >> 3) & 1) << 1
	imm |= (in >> 2) & 1
	return int64(imm)
}

func decodeCompressedBody(in, op, funct3 uint32) Operation {
	switch {
	// Quadrant 0
	case op == 0 && funct3 == 0: // C.ADDI4SPN
		rd := cRs2Prime(in)
		imm := cAddi4spnImm(in)
		if imm == 0 {
			return unimplemented(in, true, "C.ADDI4SPN with imm=0 is reserved/illegal")
		}
		return Operation{Kind: KindAddi, Rd: rd, Rs1: RegSP, Imm: imm}

	case op == 0 && funct3 == 1:
		return unimplemented(in, true, "C.FLD is not supported (no floating point)")

	case op == 0 && funct3 == 2: // C.LW
		return Operation{Kind: KindLw, Rd: cRs2Prime(in), Rs1: cRs1Prime(in), Imm: cLwSwImm(in)}

	case op == 0 && funct3 == 3: // C.LD
		return Operation{Kind: KindLd, Rd: cRs2Prime(in), Rs1: cRs1Prime(in), Imm: cLdSdImm(in)}

	case op == 0 && funct3 == 4:
		return unimplemented(in, true, "reserved compressed instruction in quadrant 0, funct3 4")

	case op == 0 && funct3 == 5:
		return unimplemented(in, true, "C.FSD is not supported (no floating point)")

	case op == 0 && funct3 == 6: // C.SW
		return Operation{Kind: KindSw, Rs1: cRs1Prime(in), Rs2: cRs2Prime(in), Imm: cLwSwImm(in)}

	case op == 0 && funct3 == 7: // C.SD
		return Operation{Kind: KindSd, Rs1: cRs1Prime(in), Rs2: cRs2Prime(in), Imm: cLdSdImm(in)}

	// Quadrant 1
	case op == 1 && funct3 == 0: // C.ADDI (rd=0 is the canonical NOP encoding)
		rd := cRdRs1(in)
		imm := cLiAddiAddiwAndiImm(in)
		return Operation{Kind: KindAddi, Rd: rd, Rs1: rd, Imm: imm}

	case op == 1 && funct3 == 1: // C.ADDIW
		rd := cRdRs1(in)
		if rd == 0 {
			return unimplemented(in, true, "C.ADDIW with rd=0 is reserved")
		}
		return Operation{Kind: KindAddiw, Rd: rd, Rs1: rd, Imm: cLiAddiAddiwAndiImm(in)}

	case op == 1 && funct3 == 2: // C.LI
		rd := cRdRs1(in)
		return Operation{Kind: KindAddi, Rd: rd, Rs1: RegZero, Imm: cLiAddiAddiwAndiImm(in)}

	case op == 1 && funct3 == 3:
		rd := cRdRs1(in)
		if rd == RegSP { // C.ADDI16SP
			imm := cAddi16spImm(in)
			if imm == 0 {
				return unimplemented(in, true, "C.ADDI16SP with imm=0 is reserved")
			}
			return Operation{Kind: KindAddi, Rd: RegSP, Rs1: RegSP, Imm: imm}
		}
		// C.LUI
		imm := cLuiImm(in)
		if imm == 0 {
			return unimplemented(in, true, "C.LUI with imm=0 is reserved")
		}
		return Operation{Kind: KindLui, Rd: rd, Imm: imm}

	case op == 1 && funct3 == 4:
		funct2 := (in >> 10) & Mask2Bit
		rd := cRs1Prime(in)
		switch funct2 {
		case 0: // C.SRLI
			return Operation{Kind: KindSrli, Rd: rd, Rs1: rd, Imm: cShiftImm(in)}
		case 1: // C.SRAI
			return Operation{Kind: KindSrai, Rd: rd, Rs1: rd, Imm: cShiftImm(in)}
		case 2: // C.ANDI
			return Operation{Kind: KindAndi, Rd: rd, Rs1: rd, Imm: cLiAddiAddiwAndiImm(in)}
		default: // funct2 == 3: register-register ALU ops
			rs2 := cRs2Prime(in)
			bit12 := (in >> 12) & 1
			funct := (in >> 5) & Mask2Bit
			switch {
			case bit12 == 0 && funct == 0:
				return Operation{Kind: KindSub, Rd: rd, Rs1: rd, Rs2: rs2}
			case bit12 == 0 && funct == 1:
				return Operation{Kind: KindXor, Rd: rd, Rs1: rd, Rs2: rs2}
			case bit12 == 0 && funct == 2:
				return Operation{Kind: KindOr, Rd: rd, Rs1: rd, Rs2: rs2}
			case bit12 == 0 && funct == 3:
				return Operation{Kind: KindAnd, Rd: rd, Rs1: rd, Rs2: rs2}
			case bit12 == 1 && funct == 0:
				return Operation{Kind: KindSubw, Rd: rd, Rs1: rd, Rs2: rs2}
			case bit12 == 1 && funct == 1:
				return Operation{Kind: KindAddw, Rd: rd, Rs1: rd, Rs2: rs2}
			default:
				return unimplemented(in, true, "reserved compressed register-register instruction")
			}
		}

	case op == 1 && funct3 == 5: // C.J
		return Operation{Kind: KindJal, Rd: RegZero, Imm: cJJalImm(in)}

	case op == 1 && funct3 == 6: // C.BEQZ
		return Operation{Kind: KindBeq, Rs1: cRs1Prime(in), Rs2: RegZero, Imm: cBeqzBnezImm(in)}

	case op == 1 && funct3 == 7: // C.BNEZ
		return Operation{Kind: KindBne, Rs1: cRs1Prime(in), Rs2: RegZero, Imm: cBeqzBnezImm(in)}

	// Quadrant 2
	case op == 2 && funct3 == 0: // C.SLLI
		rd := cRdRs1(in)
		return Operation{Kind: KindSlli, Rd: rd, Rs1: rd, Imm: cShiftImm(in)}

	case op == 2 && funct3 == 1:
		return unimplemented(in, true, "C.FLDSP is not supported (no floating point)")

	case op == 2 && funct3 == 2: // C.LWSP
		rd := cRdRs1(in)
		if rd == 0 {
			return unimplemented(in, true, "C.LWSP with rd=0 is reserved")
		}
		return Operation{Kind: KindLw, Rd: rd, Rs1: RegSP, Imm: cLwspImm(in)}

	case op == 2 && funct3 == 3: // C.LDSP
		rd := cRdRs1(in)
		if rd == 0 {
			return unimplemented(in, true, "C.LDSP with rd=0 is reserved")
		}
		return Operation{Kind: KindLd, Rd: rd, Rs1: RegSP, Imm: cLdspImm(in)}

	case op == 2 && funct3 == 4:
		rd := cRdRs1(in)
		rs2 := cRs2(in)
		bit12 := (in >> 12) & 1
		switch {
		case bit12 == 0 && rd == 0 && rs2 == 0:
			return unimplemented(in, true, "C.JR with rd=0 is reserved")
		case bit12 == 0 && rs2 == 0: // C.JR
			return Operation{Kind: KindJalr, Rd: RegZero, Rs1: rd, Imm: 0}
		case bit12 == 0: // C.MV
			return Operation{Kind: KindAdd, Rd: rd, Rs1: RegZero, Rs2: rs2}
		case bit12 == 1 && rd == 0 && rs2 == 0: // C.EBREAK
			return Operation{Kind: KindEbreak}
		case bit12 == 1 && rs2 == 0: // C.JALR
			return Operation{Kind: KindJalr, Rd: RegRA, Rs1: rd, Imm: 0}
		default: // C.ADD
			return Operation{Kind: KindAdd, Rd: rd, Rs1: rd, Rs2: rs2}
		}

	case op == 2 && funct3 == 5:
		return unimplemented(in, true, "C.FSDSP is not supported (no floating point)")

	case op == 2 && funct3 == 6: // C.SWSP
		return Operation{Kind: KindSw, Rs1: RegSP, Rs2: cRs2(in), Imm: cSwspImm(in)}

	case op == 2 && funct3 == 7: // C.SDSP
		return Operation{Kind: KindSd, Rs1: RegSP, Rs2: cRs2(in), Imm: cSdspImm(in)}

	default:
		return unimplemented(in, true, fmt.Sprintf("unreachable compressed quadrant/funct3 combination (%d,%d)", op, funct3))
	}
}

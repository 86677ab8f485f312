package core

import (
	"fmt"
	"strconv"
	"strings"
)

// FieldKind tags which operand shape a Field carries. Field is the printable
// projection of an Operation: ToFields and ToPseudoFields both produce a
// slice of these, and FormatFields is the only place that turns them into
// text.
type FieldKind int

const (
	FieldOpcode FieldKind = iota
	FieldReg
	FieldImm
	FieldIndirect
	FieldPCRelAddr
	FieldGPRelAddr
)

// Field is one element of a disassembled instruction's rendering: either
// the mnemonic itself (always fields[0]) or one operand. Reg doubles as the
// base register of FieldIndirect; Imm doubles as the offset of FieldIndirect
// and as the raw relative value of FieldPCRelAddr/FieldGPRelAddr.
type Field struct {
	Kind     FieldKind
	Mnemonic string
	Reg      int
	Imm      int64
}

func opcodeField(m string) Field              { return Field{Kind: FieldOpcode, Mnemonic: m} }
func regField(r int) Field                    { return Field{Kind: FieldReg, Reg: r} }
func immField(v int64) Field                  { return Field{Kind: FieldImm, Imm: v} }
func indirectField(base int, off int64) Field { return Field{Kind: FieldIndirect, Reg: base, Imm: off} }
func pcRelField(off int64) Field              { return Field{Kind: FieldPCRelAddr, Imm: off} }
func gpRelField(off int64) Field              { return Field{Kind: FieldGPRelAddr, Imm: off} }

// mnemonics gives the canonical assembler text for every implemented Kind.
// KindUnimplemented has none; ToFields handles it separately.
var mnemonics = map[Kind]string{
	KindAdd: "add", KindSub: "sub", KindSll: "sll", KindSlt: "slt", KindSltu: "sltu",
	KindXor: "xor", KindSrl: "srl", KindSra: "sra", KindOr: "or", KindAnd: "and",

	KindAddw: "addw", KindSubw: "subw", KindSllw: "sllw", KindSrlw: "srlw", KindSraw: "sraw",

	KindAddi: "addi", KindSlti: "slti", KindSltiu: "sltiu", KindXori: "xori", KindOri: "ori",
	KindAndi: "andi", KindSlli: "slli", KindSrli: "srli", KindSrai: "srai",

	KindAddiw: "addiw", KindSlliw: "slliw", KindSrliw: "srliw", KindSraiw: "sraiw",

	KindBeq: "beq", KindBne: "bne", KindBlt: "blt", KindBge: "bge", KindBltu: "bltu", KindBgeu: "bgeu",

	KindJal: "jal", KindJalr: "jalr",

	KindLb: "lb", KindLh: "lh", KindLw: "lw", KindLd: "ld",
	KindLbu: "lbu", KindLhu: "lhu", KindLwu: "lwu",

	KindSb: "sb", KindSh: "sh", KindSw: "sw", KindSd: "sd",

	KindLui: "lui", KindAuipc: "auipc",

	KindFence: "fence", KindEcall: "ecall", KindEbreak: "ebreak",

	KindMul: "mul", KindMulh: "mulh", KindMulhsu: "mulhsu", KindMulhu: "mulhu",
	KindDiv: "div", KindDivu: "divu", KindRem: "rem", KindRemu: "remu",

	KindMulw: "mulw", KindDivw: "divw", KindDivuw: "divuw", KindRemw: "remw", KindRemuw: "remuw",
}

// ToFields returns the canonical, non-pseudo rendering of op: the opcode
// mnemonic followed by its operands in assembler order. Loads, stores, and
// JALR present their base+offset operand as a single Indirect field so
// formatting can choose "off(reg)" or "(reg)"; branches and JAL use
// PCRelAddr; AUIPC and LUI use Imm.
func ToFields(op Operation) []Field {
	switch op.Kind {
	case KindUnimplemented:
		return []Field{opcodeField("unimp"), immField(int64(op.Raw))}

	case KindAdd, KindSub, KindSll, KindSlt, KindSltu, KindXor, KindSrl, KindSra, KindOr, KindAnd,
		KindAddw, KindSubw, KindSllw, KindSrlw, KindSraw,
		KindMul, KindMulh, KindMulhsu, KindMulhu, KindDiv, KindDivu, KindRem, KindRemu,
		KindMulw, KindDivw, KindDivuw, KindRemw, KindRemuw:
		return []Field{opcodeField(mnemonics[op.Kind]), regField(op.Rd), regField(op.Rs1), regField(op.Rs2)}

	case KindAddi, KindSlti, KindSltiu, KindXori, KindOri, KindAndi, KindAddiw:
		return []Field{opcodeField(mnemonics[op.Kind]), regField(op.Rd), regField(op.Rs1), immField(op.Imm)}

	case KindSlli, KindSrli, KindSrai, KindSlliw, KindSrliw, KindSraiw:
		return []Field{opcodeField(mnemonics[op.Kind]), regField(op.Rd), regField(op.Rs1), immField(op.Imm)}

	case KindBeq, KindBne, KindBlt, KindBge, KindBltu, KindBgeu:
		return []Field{opcodeField(mnemonics[op.Kind]), regField(op.Rs1), regField(op.Rs2), pcRelField(op.Imm)}

	case KindJal:
		return []Field{opcodeField("jal"), regField(op.Rd), pcRelField(op.Imm)}

	case KindJalr:
		return []Field{opcodeField("jalr"), regField(op.Rd), indirectField(op.Rs1, op.Imm)}

	case KindLb, KindLh, KindLw, KindLd, KindLbu, KindLhu, KindLwu:
		return []Field{opcodeField(mnemonics[op.Kind]), regField(op.Rd), indirectField(op.Rs1, op.Imm)}

	case KindSb, KindSh, KindSw, KindSd:
		return []Field{opcodeField(mnemonics[op.Kind]), regField(op.Rs2), indirectField(op.Rs1, op.Imm)}

	case KindLui:
		return []Field{opcodeField("lui"), regField(op.Rd), immField(op.Imm >> 12)}

	case KindAuipc:
		return []Field{opcodeField("auipc"), regField(op.Rd), immField(op.Imm >> 12)}

	case KindFence:
		return []Field{opcodeField("fence")}

	case KindEcall:
		return []Field{opcodeField("ecall")}

	case KindEbreak:
		return []Field{opcodeField("ebreak")}

	default:
		return []Field{opcodeField(fmt.Sprintf("unknown(%d)", op.Kind))}
	}
}

// ToPseudoFields rewrites op to the standard pseudo-instruction it matches,
// if any, falling back to ToFields otherwise. It only ever looks at the
// single Operation passed in; the two-instruction la/call sequences live in
// Disassembler.FormatSequence, which needs the address stream and symbol
// table this function deliberately doesn't have.
func ToPseudoFields(op Operation) []Field {
	switch op.Kind {
	case KindAddi:
		switch {
		case op.Rd == RegZero && op.Rs1 == RegZero && op.Imm == 0:
			return []Field{opcodeField("nop")}
		case op.Rs1 == RegZero:
			return []Field{opcodeField("li"), regField(op.Rd), immField(op.Imm)}
		case op.Imm == 0:
			return []Field{opcodeField("mv"), regField(op.Rd), regField(op.Rs1)}
		case op.Rs1 == RegGP:
			return []Field{opcodeField("la"), regField(op.Rd), gpRelField(op.Imm)}
		}

	case KindXori:
		if op.Imm == -1 {
			return []Field{opcodeField("not"), regField(op.Rd), regField(op.Rs1)}
		}

	case KindSltiu:
		if op.Imm == 1 {
			return []Field{opcodeField("seqz"), regField(op.Rd), regField(op.Rs1)}
		}

	case KindSltu:
		if op.Rs1 == RegZero {
			return []Field{opcodeField("snez"), regField(op.Rd), regField(op.Rs2)}
		}

	case KindSlt:
		switch {
		case op.Rs1 == RegZero:
			return []Field{opcodeField("sgtz"), regField(op.Rd), regField(op.Rs2)}
		case op.Rs2 == RegZero:
			return []Field{opcodeField("sltz"), regField(op.Rd), regField(op.Rs1)}
		}

	case KindSub:
		if op.Rs1 == RegZero {
			return []Field{opcodeField("neg"), regField(op.Rd), regField(op.Rs2)}
		}

	case KindSubw:
		if op.Rs1 == RegZero {
			return []Field{opcodeField("negw"), regField(op.Rd), regField(op.Rs2)}
		}

	case KindJalr:
		if op.Imm == 0 {
			switch {
			case op.Rd == RegZero && op.Rs1 == RegRA:
				return []Field{opcodeField("ret")}
			case op.Rd == RegZero:
				return []Field{opcodeField("jr"), regField(op.Rs1)}
			case op.Rd == RegRA:
				return []Field{opcodeField("jalr"), regField(op.Rs1)}
			}
		}

	case KindJal:
		switch op.Rd {
		case RegZero:
			return []Field{opcodeField("j"), pcRelField(op.Imm)}
		case RegRA:
			return []Field{opcodeField("jal"), pcRelField(op.Imm)}
		}

	case KindBeq:
		switch {
		case op.Rs1 == RegZero:
			return []Field{opcodeField("beqz"), regField(op.Rs2), pcRelField(op.Imm)}
		case op.Rs2 == RegZero:
			return []Field{opcodeField("beqz"), regField(op.Rs1), pcRelField(op.Imm)}
		}

	case KindBne:
		switch {
		case op.Rs1 == RegZero:
			return []Field{opcodeField("bnez"), regField(op.Rs2), pcRelField(op.Imm)}
		case op.Rs2 == RegZero:
			return []Field{opcodeField("bnez"), regField(op.Rs1), pcRelField(op.Imm)}
		}

	case KindBlt:
		switch {
		case op.Rs2 == RegZero:
			return []Field{opcodeField("bltz"), regField(op.Rs1), pcRelField(op.Imm)}
		case op.Rs1 == RegZero:
			return []Field{opcodeField("bgtz"), regField(op.Rs2), pcRelField(op.Imm)}
		}

	case KindBge:
		switch {
		case op.Rs2 == RegZero:
			return []Field{opcodeField("bgez"), regField(op.Rs1), pcRelField(op.Imm)}
		case op.Rs1 == RegZero:
			return []Field{opcodeField("blez"), regField(op.Rs2), pcRelField(op.Imm)}
		}
	}

	return ToFields(op)
}

// InstructionRecord is one streamed (address, raw, Operation) triple fed to
// the disassembler, matching what a trace or a "disassemble" debugger
// command walks over.
type InstructionRecord struct {
	Address uint64
	Raw     uint32
	Op      Operation
}

// Disassembler renders decoded Operations as text. Its symbol table and GP
// value are read-only configuration; the only thing that makes it stateful
// is the two-instruction la/call sequence recognizer in FormatSequence,
// which needs the next instruction's address to check whether a label
// lands between the pair.
type Disassembler struct {
	Symbols *SymbolResolver
	GP      int64
	Cursor  *uint64

	Verbose     bool // prefix compressed mnemonics with "c."
	Hex         bool // render immediates in hex instead of decimal
	ShowAddress bool // prefix each line with its address
}

// NewDisassembler creates a Disassembler with decimal immediates, no
// address column, and the given symbol table (nil is fine).
func NewDisassembler(symbols *SymbolResolver) *Disassembler {
	return &Disassembler{Symbols: symbols}
}

// FormatSequence checks whether first/second form one of the two
// recognized pseudo-instruction sequences (la via auipc+addi, call via
// auipc+jalr) and, if so, returns the merged rendering anchored at first's
// address. It refuses to merge across a label: if a symbol names second's
// address, a branch could target the middle of the pair, so the two
// instructions must stay separate.
func (d *Disassembler) FormatSequence(first, second InstructionRecord) (string, bool) {
	if first.Op.Kind != KindAuipc {
		return "", false
	}
	if d.Symbols != nil && d.Symbols.LookupAddress(second.Address) != "" {
		return "", false
	}

	switch {
	case second.Op.Kind == KindAddi && second.Op.Rs1 == first.Op.Rd && second.Op.Rd == first.Op.Rd:
		offset := first.Op.Imm + second.Op.Imm
		return d.FormatFields(first.Address, first.Op.IsCompressed,
			[]Field{opcodeField("la"), regField(first.Op.Rd), pcRelField(offset)}), true

	case second.Op.Kind == KindJalr && first.Op.Rd == RegRA &&
		second.Op.Rs1 == RegRA && second.Op.Rd == RegRA:
		offset := first.Op.Imm + second.Op.Imm
		return d.FormatFields(first.Address, first.Op.IsCompressed,
			[]Field{opcodeField("call"), pcRelField(offset)}), true
	}

	return "", false
}

// FormatProgram renders every record in order, merging adjacent la/call
// sequences when pseudo is true and falling back to per-instruction
// pseudo (or canonical, when pseudo is false) rendering otherwise.
func (d *Disassembler) FormatProgram(records []InstructionRecord, pseudo bool) []string {
	lines := make([]string, 0, len(records))
	for i := 0; i < len(records); i++ {
		if pseudo && i+1 < len(records) {
			if line, merged := d.FormatSequence(records[i], records[i+1]); merged {
				lines = append(lines, line)
				i++
				continue
			}
		}
		fields := ToFields(records[i].Op)
		if pseudo {
			fields = ToPseudoFields(records[i].Op)
		}
		lines = append(lines, d.FormatFields(records[i].Address, records[i].Op.IsCompressed, fields))
	}
	return lines
}

// FormatFields renders one instruction's Field slice as a single text line:
// an optional address column, a 16-column label field, the mnemonic (with a
// "c." prefix in verbose mode for compressed instructions), and
// comma-separated operands.
func (d *Disassembler) FormatFields(addr uint64, compressed bool, fields []Field) string {
	var sb strings.Builder

	if d.ShowAddress {
		fmt.Fprintf(&sb, "%16x:\t", addr)
	}

	cursor := "  "
	if d.Cursor != nil && *d.Cursor == addr {
		cursor = "=>"
	}

	label := ""
	if d.Symbols != nil {
		label = d.Symbols.LookupAddress(addr)
	}
	labelField := ""
	if label != "" {
		truncated := label
		if len(truncated) > 14 {
			truncated = truncated[:14] + "\u2026"
		}
		labelField = truncated + ":"
	}
	fmt.Fprintf(&sb, "%s%-16s", cursor, labelField)

	if len(fields) == 0 || fields[0].Kind != FieldOpcode {
		sb.WriteString("???")
		return sb.String()
	}

	mnemonic := fields[0].Mnemonic
	if d.Verbose && compressed {
		mnemonic = "c." + mnemonic
	}
	sb.WriteString(mnemonic)

	if len(fields) > 1 {
		operands := make([]string, 0, len(fields)-1)
		for _, f := range fields[1:] {
			operands = append(operands, d.formatOperand(addr, f))
		}
		sb.WriteString(" ")
		sb.WriteString(strings.Join(operands, ", "))
	}

	return sb.String()
}

func (d *Disassembler) formatOperand(addr uint64, f Field) string {
	switch f.Kind {
	case FieldReg:
		return d.formatReg(f.Reg)
	case FieldImm:
		return d.formatImm(f.Imm)
	case FieldIndirect:
		return d.formatIndirect(f.Reg, f.Imm)
	case FieldPCRelAddr:
		return d.formatPCRel(addr, f.Imm)
	case FieldGPRelAddr:
		return d.formatGPRel(f.Imm)
	default:
		return "?"
	}
}

func (d *Disassembler) formatReg(r int) string {
	if r < 0 || r >= GeneralRegisterCount {
		return fmt.Sprintf("x%d", r)
	}
	return RegNames[r]
}

// formatImm renders an immediate. Values in [0, 9] always render as decimal,
// even in hex mode, so small shift amounts and flag-like constants don't get
// needlessly dressed up.
func (d *Disassembler) formatImm(v int64) string {
	if v >= 0 && v <= 9 {
		return strconv.FormatInt(v, 10)
	}
	if !d.Hex {
		return strconv.FormatInt(v, 10)
	}
	if v < 0 {
		return fmt.Sprintf("-0x%x", -v)
	}
	return fmt.Sprintf("0x%x", v)
}

func (d *Disassembler) formatIndirect(base int, offset int64) string {
	reg := d.formatReg(base)
	if offset == 0 && !d.Verbose {
		return fmt.Sprintf("(%s)", reg)
	}
	return fmt.Sprintf("%s(%s)", d.formatImm(offset), reg)
}

// formatPCRel resolves a PC-relative operand against pc+offset. An exact
// symbol match renders as the symbol name; a purely numeric label name
// (the GNU-as local-label convention) gets a "b"/"f" suffix for backward or
// forward. With no symbol it renders as "pc+0x..." (or "pc-0x...", or bare
// "pc" for a zero offset).
func (d *Disassembler) formatPCRel(pc uint64, offset int64) string {
	target := uint64(int64(pc) + offset)
	if d.Symbols != nil {
		if name := d.Symbols.LookupAddress(target); name != "" {
			if n, err := strconv.Atoi(name); err == nil && n >= 0 {
				if target < pc {
					return name + "b"
				}
				return name + "f"
			}
			return name
		}
	}
	if offset == 0 {
		return "pc"
	}
	if offset < 0 {
		return fmt.Sprintf("pc-0x%x", -offset)
	}
	return fmt.Sprintf("pc+0x%x", offset)
}

// formatGPRel resolves a gp-relative operand (the operand of a gp-based
// "la") against the Disassembler's configured GP value, rendering as the
// symbol at that address if one is known, or the raw address otherwise.
func (d *Disassembler) formatGPRel(offset int64) string {
	target := uint64(d.GP + offset)
	if d.Symbols != nil {
		if name := d.Symbols.LookupAddress(target); name != "" {
			return name
		}
	}
	return fmt.Sprintf("0x%x", target)
}

package core

import "testing"

func TestOperationSizeByCompressedFlag(t *testing.T) {
	full := Operation{Kind: KindAdd}
	if full.Size() != FullInstructionSize {
		t.Errorf("full Operation.Size() = %d, want %d", full.Size(), FullInstructionSize)
	}
	compressed := Operation{Kind: KindAdd, IsCompressed: true}
	if compressed.Size() != CompressedInstructionSize {
		t.Errorf("compressed Operation.Size() = %d, want %d", compressed.Size(), CompressedInstructionSize)
	}
}

// ToFields(op)[0] must always be a non-empty Opcode field, for every Kind
// the decoder can produce.
func TestToFieldsFirstFieldIsOpcode(t *testing.T) {
	for kind := KindUnimplemented; kind <= KindRemuw; kind++ {
		op := Operation{Kind: kind}
		fields := ToFields(op)
		if len(fields) == 0 {
			t.Fatalf("ToFields(%v) returned no fields", kind)
		}
		if fields[0].Kind != FieldOpcode {
			t.Errorf("ToFields(%v)[0].Kind = %v, want FieldOpcode", kind, fields[0].Kind)
		}
		if fields[0].Mnemonic == "" {
			t.Errorf("ToFields(%v)[0].Mnemonic is empty", kind)
		}
	}
}

func TestToPseudoFieldsFallsBackToCanonical(t *testing.T) {
	// An ADD that doesn't match any pseudo pattern should render identically
	// to ToFields.
	op := Operation{Kind: KindAdd, Rd: 5, Rs1: 6, Rs2: 7}
	canonical := ToFields(op)
	pseudo := ToPseudoFields(op)
	if len(canonical) != len(pseudo) {
		t.Fatalf("ToPseudoFields(non-pseudo add) length differs from ToFields")
	}
	for i := range canonical {
		if canonical[i] != pseudo[i] {
			t.Errorf("ToPseudoFields(non-pseudo add)[%d] = %+v, want %+v", i, pseudo[i], canonical[i])
		}
	}
}

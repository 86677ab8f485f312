package debugger

import (
	"testing"

	"riscv64-emu/core"
)

func TestExpressionEvaluator_Numbers(t *testing.T) {
	eval := NewExpressionEvaluator()
	machine := core.NewMachine()
	symbols := make(map[string]uint64)

	tests := []struct {
		name string
		expr string
		want uint64
	}{
		{"Decimal", "42", 42},
		{"Hex", "0x100", 0x100},
		{"Hex uppercase", "0X1A", 0x1A},
		{"Binary", "0b1010", 0b1010},
		{"Octal", "010", 8},
		{"Large hex", "0xFFFFFFFF", 0xFFFFFFFF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := eval.EvaluateExpression(tt.expr, machine, symbols)
			if err != nil {
				t.Fatalf("EvaluateExpression() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("EvaluateExpression() = 0x%016X, want 0x%016X", got, tt.want)
			}
		})
	}
}

func TestExpressionEvaluator_Registers(t *testing.T) {
	eval := NewExpressionEvaluator()
	machine := core.NewMachine()
	symbols := make(map[string]uint64)

	machine.CPU.SetRegister(core.RegA0, 100)
	machine.CPU.SetRegister(core.RegA1, 200)
	machine.CPU.SetSP(0x1000)
	machine.CPU.SetPC(0x3000)

	tests := []struct {
		name string
		expr string
		want uint64
	}{
		{"a0", "a0", 100},
		{"a1", "a1", 200},
		{"x10", "x10", 100},
		{"sp", "sp", 0x1000},
		{"x2", "x2", 0x1000},
		{"pc", "pc", 0x3000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := eval.EvaluateExpression(tt.expr, machine, symbols)
			if err != nil {
				t.Fatalf("EvaluateExpression() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("EvaluateExpression() = 0x%016X, want 0x%016X", got, tt.want)
			}
		})
	}
}

func TestExpressionEvaluator_Symbols(t *testing.T) {
	eval := NewExpressionEvaluator()
	machine := core.NewMachine()
	symbols := map[string]uint64{
		"main":   0x1000,
		"loop":   0x2000,
		"_start": 0x3000,
	}

	tests := []struct {
		name string
		expr string
		want uint64
	}{
		{"main", "main", 0x1000},
		{"loop", "loop", 0x2000},
		{"_start", "_start", 0x3000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := eval.EvaluateExpression(tt.expr, machine, symbols)
			if err != nil {
				t.Fatalf("EvaluateExpression() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("EvaluateExpression() = 0x%016X, want 0x%016X", got, tt.want)
			}
		})
	}
}

func TestExpressionEvaluator_Memory(t *testing.T) {
	eval := NewExpressionEvaluator()
	machine := core.NewMachine()

	dataAddr := uint64(core.DataSegmentStart)
	symbols := map[string]uint64{
		"data": dataAddr,
	}

	if err := machine.Mem.WriteN(dataAddr, 0x1122334455667788, 8); err != nil {
		t.Fatalf("WriteN() error = %v", err)
	}
	if err := machine.Mem.WriteN(dataAddr+0x1000, 0xABCDEF0011223344, 8); err != nil {
		t.Fatalf("WriteN() error = %v", err)
	}

	tests := []struct {
		name string
		expr string
		want uint64
	}{
		{"Bracket notation", "[0x00200000]", 0x1122334455667788},
		{"Star notation", "*0x00201000", 0xABCDEF0011223344},
		{"Symbol in brackets", "[data]", 0x1122334455667788},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := eval.EvaluateExpression(tt.expr, machine, symbols)
			if err != nil {
				t.Fatalf("EvaluateExpression() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("EvaluateExpression() = 0x%016X, want 0x%016X", got, tt.want)
			}
		})
	}
}

func TestExpressionEvaluator_Arithmetic(t *testing.T) {
	eval := NewExpressionEvaluator()
	machine := core.NewMachine()
	symbols := make(map[string]uint64)

	tests := []struct {
		name string
		expr string
		want uint64
	}{
		{"Addition", "10 + 20", 30},
		{"Subtraction", "50 - 20", 30},
		{"Multiplication", "5 * 6", 30},
		{"Division", "60 / 2", 30},
		{"Hex addition", "0x10 + 0x20", 0x30},
		{"Precedence", "2 + 3 * 4", 14},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := eval.EvaluateExpression(tt.expr, machine, symbols)
			if err != nil {
				t.Fatalf("EvaluateExpression() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("EvaluateExpression() = 0x%016X, want 0x%016X", got, tt.want)
			}
		})
	}
}

func TestExpressionEvaluator_Bitwise(t *testing.T) {
	eval := NewExpressionEvaluator()
	machine := core.NewMachine()
	symbols := make(map[string]uint64)

	tests := []struct {
		name string
		expr string
		want uint64
	}{
		{"AND", "0xFF & 0x0F", 0x0F},
		{"OR", "0xF0 | 0x0F", 0xFF},
		{"XOR", "0xFF ^ 0x0F", 0xF0},
		{"Left shift", "1 << 4", 16},
		{"Right shift", "16 >> 2", 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := eval.EvaluateExpression(tt.expr, machine, symbols)
			if err != nil {
				t.Fatalf("EvaluateExpression() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("EvaluateExpression() = 0x%016X, want 0x%016X", got, tt.want)
			}
		})
	}
}

func TestExpressionEvaluator_RegisterOperations(t *testing.T) {
	eval := NewExpressionEvaluator()
	machine := core.NewMachine()
	symbols := make(map[string]uint64)

	machine.CPU.SetRegister(core.RegA0, 10)
	machine.CPU.SetRegister(core.RegA1, 20)

	tests := []struct {
		name string
		expr string
		want uint64
	}{
		{"Register addition", "a0 + a1", 30},
		{"Register with constant", "a0 + 5", 15},
		{"Register subtraction", "a1 - a0", 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := eval.EvaluateExpression(tt.expr, machine, symbols)
			if err != nil {
				t.Fatalf("EvaluateExpression() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("EvaluateExpression() = 0x%016X, want 0x%016X", got, tt.want)
			}
		})
	}
}

func TestExpressionEvaluator_ValueHistory(t *testing.T) {
	eval := NewExpressionEvaluator()
	machine := core.NewMachine()
	symbols := make(map[string]uint64)

	val1, err := eval.EvaluateExpression("42", machine, symbols)
	if err != nil {
		t.Fatalf("EvaluateExpression() error = %v", err)
	}
	val2, err := eval.EvaluateExpression("100", machine, symbols)
	if err != nil {
		t.Fatalf("EvaluateExpression() error = %v", err)
	}

	if eval.GetValueNumber() != 2 {
		t.Errorf("ValueNumber = %d, want 2", eval.GetValueNumber())
	}

	got1, err := eval.GetValue(1)
	if err != nil {
		t.Fatalf("GetValue(1) error = %v", err)
	}
	if got1 != val1 {
		t.Errorf("GetValue(1) = %d, want %d", got1, val1)
	}

	got2, err := eval.GetValue(2)
	if err != nil {
		t.Fatalf("GetValue(2) error = %v", err)
	}
	if got2 != val2 {
		t.Errorf("GetValue(2) = %d, want %d", got2, val2)
	}

	if _, err := eval.GetValue(999); err == nil {
		t.Error("Expected error for invalid value number")
	}
}

func TestExpressionEvaluator_BooleanEvaluation(t *testing.T) {
	eval := NewExpressionEvaluator()
	machine := core.NewMachine()
	symbols := make(map[string]uint64)

	machine.CPU.SetRegister(core.RegA0, 42)

	tests := []struct {
		name string
		expr string
		want bool
	}{
		{"Zero is false", "0", false},
		{"Non-zero is true", "42", true},
		{"Register non-zero", "a0", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := eval.Evaluate(tt.expr, machine, symbols)
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExpressionEvaluator_Errors(t *testing.T) {
	eval := NewExpressionEvaluator()
	machine := core.NewMachine()
	symbols := make(map[string]uint64)

	tests := []struct {
		name string
		expr string
	}{
		{"Empty expression", ""},
		{"Unknown symbol", "unknown_symbol"},
		{"Invalid register", "r99"},
		{"Division by zero", "10 / 0"},
		{"Invalid hex", "0xGGGG"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := eval.EvaluateExpression(tt.expr, machine, symbols)
			if err == nil {
				t.Error("Expected error but got none")
			}
		})
	}
}

func TestExpressionEvaluator_Reset(t *testing.T) {
	eval := NewExpressionEvaluator()
	machine := core.NewMachine()
	symbols := make(map[string]uint64)

	if _, err := eval.EvaluateExpression("42", machine, symbols); err != nil {
		t.Fatalf("EvaluateExpression() error = %v", err)
	}
	if _, err := eval.EvaluateExpression("100", machine, symbols); err != nil {
		t.Fatalf("EvaluateExpression() error = %v", err)
	}

	if eval.GetValueNumber() != 2 {
		t.Error("Value number should be 2 before reset")
	}

	eval.Reset()

	if eval.GetValueNumber() != 0 {
		t.Error("Value number should be 0 after reset")
	}

	if len(eval.valueHistory) != 0 {
		t.Error("Value history should be empty after reset")
	}
}

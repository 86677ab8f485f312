package debugger

import (
	"fmt"
	"strconv"
	"strings"

	"riscv64-emu/core"
)

// ExpressionEvaluator evaluates expressions in debugger commands: register
// names, x0-x31 forms, symbols, memory dereferences, $N value history, and
// the usual arithmetic/bitwise operators, tokenized by ExprLexer and parsed
// by ExprParser.
type ExpressionEvaluator struct {
	valueHistory []uint64 // History of evaluated values
	valueNumber  int      // Current value number for $1, $2, etc.
}

// NewExpressionEvaluator creates a new expression evaluator
func NewExpressionEvaluator() *ExpressionEvaluator {
	return &ExpressionEvaluator{
		valueHistory: make([]uint64, 0),
		valueNumber:  0,
	}
}

// EvaluateExpression evaluates an expression and returns the result
func (e *ExpressionEvaluator) EvaluateExpression(expr string, machine *core.Machine, symbols map[string]uint64) (uint64, error) {
	result, err := e.evaluate(expr, machine, symbols)
	if err != nil {
		return 0, err
	}

	e.valueHistory = append(e.valueHistory, result)
	e.valueNumber = len(e.valueHistory)

	return result, nil
}

// Evaluate evaluates an expression and returns a boolean result (for breakpoint conditions)
func (e *ExpressionEvaluator) Evaluate(expr string, machine *core.Machine, symbols map[string]uint64) (bool, error) {
	result, err := e.evaluate(expr, machine, symbols)
	if err != nil {
		return false, err
	}

	return result != 0, nil
}

// GetValueNumber returns the current value number
func (e *ExpressionEvaluator) GetValueNumber() int {
	return e.valueNumber
}

// GetValue returns a value from history by number
func (e *ExpressionEvaluator) GetValue(number int) (uint64, error) {
	if number < 1 || number > len(e.valueHistory) {
		return 0, fmt.Errorf("value $%d not in history", number)
	}

	return e.valueHistory[number-1], nil
}

// evaluate tokenizes expr and runs it through the precedence-climbing parser.
func (e *ExpressionEvaluator) evaluate(expr string, machine *core.Machine, symbols map[string]uint64) (uint64, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return 0, fmt.Errorf("empty expression")
	}

	lexer := NewExprLexer(expr)
	tokens := lexer.TokenizeAll()
	parser := NewExprParser(tokens, machine, symbols, e)
	return parser.Parse()
}

// parseNumber parses a numeric literal, exposed for callers that only have
// a bare literal (not a full expression) on hand.
func (e *ExpressionEvaluator) parseNumber(expr string) (uint64, error) {
	expr = strings.TrimSpace(expr)

	if strings.HasPrefix(strings.ToLower(expr), "0x") {
		return strconv.ParseUint(expr[2:], 16, 64)
	}
	if strings.HasPrefix(expr, "0b") || strings.HasPrefix(expr, "0B") {
		return strconv.ParseUint(expr[2:], 2, 64)
	}
	if strings.HasPrefix(expr, "0") && len(expr) > 1 {
		return strconv.ParseUint(expr, 8, 64)
	}

	val, err := strconv.ParseInt(expr, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint64(val), nil
}

// Reset clears the value history
func (e *ExpressionEvaluator) Reset() {
	e.valueHistory = e.valueHistory[:0]
	e.valueNumber = 0
}

// Package debugger implements an interactive, gdb-style command line for
// stepping an RV64IMC program one instruction (or one call) at a time,
// inspecting registers and memory, and breaking or watching on conditions.
package debugger

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"riscv64-emu/core"
)

// Debugger represents the debugger state and functionality
type Debugger struct {
	Machine *core.Machine
	Disasm  *core.Disassembler

	// Breakpoint management
	Breakpoints *BreakpointManager

	// Watchpoint management
	Watchpoints *WatchpointManager

	// Command history
	History *CommandHistory

	// Expression evaluator
	Evaluator *ExpressionEvaluator

	// Execution control
	Running           bool
	StepMode          StepMode
	StepOverCallDepth int    // Track call depth for step over
	StepOverPC        uint64 // PC to return to after step over

	// Symbol table (for label/symbol resolution)
	Symbols map[string]uint64

	// Source code mapping (address -> source line, when the caller loads one)
	SourceMap map[uint64]string

	// Last command (for repeat on empty input)
	LastCommand string

	// Output buffer
	Output strings.Builder
}

// StepMode represents different stepping modes
type StepMode int

const (
	StepNone   StepMode = iota // Not stepping
	StepSingle                 // Step one instruction
	StepOver                   // Step over function calls
	StepOut                    // Step out of current function
)

// NewDebugger creates a new debugger instance wrapping machine, using disasm
// to render the current instruction at each stop.
func NewDebugger(machine *core.Machine, disasm *core.Disassembler) *Debugger {
	symbols := make(map[string]uint64)
	if disasm != nil && disasm.Symbols != nil {
		symbols = disasm.Symbols.GetAllSymbols()
	}
	return &Debugger{
		Machine:     machine,
		Disasm:      disasm,
		Breakpoints: NewBreakpointManager(),
		Watchpoints: NewWatchpointManager(),
		History:     NewCommandHistory(),
		Evaluator:   NewExpressionEvaluator(),
		Running:     false,
		StepMode:    StepNone,
		Symbols:     symbols,
		SourceMap:   make(map[uint64]string),
	}
}

// LoadSymbols loads the symbol table for label resolution
func (d *Debugger) LoadSymbols(symbols map[string]uint64) {
	d.Symbols = symbols
}

// LoadSourceMap loads the source code mapping
func (d *Debugger) LoadSourceMap(sourceMap map[uint64]string) {
	d.SourceMap = sourceMap
}

// ResolveAddress resolves a label to an address, or parses a numeric address
func (d *Debugger) ResolveAddress(addrStr string) (uint64, error) {
	if addr, exists := d.Symbols[addrStr]; exists {
		return addr, nil
	}

	if strings.HasPrefix(addrStr, "0x") || strings.HasPrefix(addrStr, "0X") {
		addr, err := parseHex(addrStr[2:])
		if err != nil {
			return 0, fmt.Errorf("invalid address: %s", addrStr)
		}
		return addr, nil
	}

	var addr uint64
	if _, err := fmt.Sscanf(addrStr, "%d", &addr); err != nil {
		return 0, fmt.Errorf("invalid address: %s", addrStr)
	}

	return addr, nil
}

func parseHex(s string) (uint64, error) {
	var v uint64
	_, err := fmt.Sscanf(s, "%x", &v)
	return v, err
}

// ExecuteCommand processes and executes a debugger command
func (d *Debugger) ExecuteCommand(cmdLine string) error {
	cmdLine = strings.TrimSpace(cmdLine)

	// Empty command repeats last command (for step, next, etc.)
	if cmdLine == "" {
		cmdLine = d.LastCommand
	}

	if cmdLine != "" {
		d.History.Add(cmdLine)
		d.LastCommand = cmdLine
	}

	parts := strings.Fields(cmdLine)
	if len(parts) == 0 {
		return nil
	}

	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	return d.handleCommand(cmd, args)
}

// handleCommand dispatches commands to appropriate handlers
func (d *Debugger) handleCommand(cmd string, args []string) error {
	switch cmd {
	// Execution control
	case "run", "r":
		return d.cmdRun(args)
	case "continue", "c":
		return d.cmdContinue(args)
	case "step", "s", "si":
		return d.cmdStep(args)
	case "next", "n":
		return d.cmdNext(args)
	case "finish", "fin":
		return d.cmdFinish(args)

	// Breakpoints
	case "break", "b":
		return d.cmdBreak(args)
	case "tbreak", "tb":
		return d.cmdTBreak(args)
	case "delete", "d":
		return d.cmdDelete(args)
	case "enable":
		return d.cmdEnable(args)
	case "disable":
		return d.cmdDisable(args)

	// Watchpoints
	case "watch", "w":
		return d.cmdWatch(args)
	case "rwatch":
		return d.cmdRWatch(args)
	case "awatch":
		return d.cmdAWatch(args)

	// Inspection
	case "print", "p":
		return d.cmdPrint(args)
	case "x":
		return d.cmdExamine(args)
	case "info", "i":
		return d.cmdInfo(args)
	case "backtrace", "bt", "where":
		return d.cmdBacktrace(args)
	case "list", "l":
		return d.cmdList(args)
	case "disassemble", "disas":
		return d.cmdDisassemble(args)

	// State modification
	case "set":
		return d.cmdSet(args)

	// Program control
	case "reset":
		return d.cmdReset(args)

	// Help
	case "help", "h", "?":
		return d.cmdHelp(args)

	default:
		return fmt.Errorf("unknown command: %s (type 'help' for available commands)", cmd)
	}
}

// ShouldBreak checks if execution should pause at the current PC
func (d *Debugger) ShouldBreak() (bool, string) {
	pc := d.Machine.CPU.GetPC()

	switch d.StepMode {
	case StepSingle:
		d.StepMode = StepNone
		return true, "single step"

	case StepOver:
		if pc == d.StepOverPC {
			d.StepMode = StepNone
			return true, "step over complete"
		}

	case StepOut:
		// Would require call stack tracking for a precise implementation.
	}

	if bp := d.Breakpoints.GetBreakpoint(pc); bp != nil {
		if !bp.Enabled {
			return false, ""
		}

		if bp.Condition != "" {
			result, err := d.Evaluator.Evaluate(bp.Condition, d.Machine, d.Symbols)
			if err != nil {
				return true, fmt.Sprintf("breakpoint %d (condition error: %v)", bp.ID, err)
			}
			if !result {
				return false, ""
			}
		}

		bp.HitCount++

		if bp.Temporary {
			_ = d.Breakpoints.DeleteBreakpoint(bp.ID)
		}

		return true, fmt.Sprintf("breakpoint %d", bp.ID)
	}

	if wp, changed := d.Watchpoints.CheckWatchpoints(d.Machine); wp != nil && changed {
		return true, fmt.Sprintf("watchpoint %d: %s", wp.ID, wp.Expression)
	}

	return false, ""
}

// GetOutput returns and clears the output buffer
func (d *Debugger) GetOutput() string {
	output := d.Output.String()
	d.Output.Reset()
	return output
}

// Printf writes formatted output to the output buffer
func (d *Debugger) Printf(format string, args ...interface{}) {
	d.Output.WriteString(fmt.Sprintf(format, args...))
}

// Println writes a line to the output buffer
func (d *Debugger) Println(args ...interface{}) {
	d.Output.WriteString(fmt.Sprintln(args...))
}

// SetStepOver configures the debugger to step over function calls: if the
// instruction at the current PC is a call (JAL/JALR writing ra), execution
// runs free until control returns past it; otherwise it behaves like a
// single step.
func (d *Debugger) SetStepOver() {
	pc := d.Machine.CPU.GetPC()
	raw, err := d.Machine.FetchInstruction(pc)
	if err != nil {
		d.StepMode = StepSingle
		d.Running = true
		return
	}

	op := core.Decode(raw)
	if isCallInstruction(op) {
		d.StepOverPC = pc + op.Size()
		d.StepMode = StepOver
		d.Running = true
	} else {
		d.StepMode = StepSingle
		d.Running = true
	}
}

// isCallInstruction reports whether op is a JAL/JALR that links ra, the
// RV64 convention for a function call (as opposed to a plain jump).
func isCallInstruction(op core.Operation) bool {
	return (op.Kind == core.KindJal || op.Kind == core.KindJalr) && op.Rd == core.RegRA
}

// SetStepOut puts the debugger in step-out mode and resumes execution.
// ShouldBreak has no stop condition of its own for this mode, so only a
// breakpoint, watchpoint, or halt ends the run.
func (d *Debugger) SetStepOut() {
	d.StepMode = StepOut
	d.Running = true
}

// Run starts the interactive command-line loop, reading commands from
// stdin until the user quits or the input stream ends.
func (d *Debugger) Run() error {
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("(riscv64-dbg) ")

		if !scanner.Scan() {
			break
		}

		cmdLine := strings.TrimSpace(scanner.Text())

		if cmdLine == "quit" || cmdLine == "q" || cmdLine == "exit" {
			fmt.Println("Exiting debugger...")
			break
		}

		if err := d.ExecuteCommand(cmdLine); err != nil {
			fmt.Printf("Error: %v\n", err)
		}

		if output := d.GetOutput(); output != "" {
			fmt.Print(output)
		}

		if d.Running {
			d.runUntilStop()
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("input error: %w", err)
	}

	return nil
}

// runUntilStop drives the fetch-decode-execute loop until a breakpoint,
// watchpoint, step boundary, or program halt stops it. It uses the same
// execute-then-advance PC discipline as the non-interactive interpreter
// loop in main.go: PC stays at the fetched instruction's own address while
// Execute runs (branches, JAL/JALR, and AUIPC all compute relative to it),
// and only advances by op.Size() afterward if Execute left it untouched.
func (d *Debugger) runUntilStop() {
	for d.Running {
		if shouldBreak, reason := d.ShouldBreak(); shouldBreak {
			d.Running = false
			fmt.Printf("Stopped: %s at PC=0x%016x\n", reason, d.Machine.CPU.GetPC())
			if d.Disasm != nil {
				d.printCurrentInstruction()
			}
			break
		}

		addr := d.Machine.CPU.GetPC()
		raw, err := d.Machine.FetchInstruction(addr)
		if err != nil {
			fmt.Printf("Runtime error: %v\n", err)
			d.Running = false
			break
		}
		op := core.Decode(raw)

		if err := core.Execute(op, d.Machine); err != nil {
			d.Running = false
			if isOrderlyHalt(err) {
				fmt.Printf("Program stopped: %v\n", err)
			} else {
				fmt.Printf("Runtime error: %v\n", err)
			}
			break
		}

		if d.Machine.CPU.GetPC() == addr {
			if err := d.Machine.AdvancePC(op.Size()); err != nil {
				fmt.Printf("Runtime error: %v\n", err)
				d.Running = false
				break
			}
		}

		d.Machine.CPU.IncrementCycles(1)
	}
}

func isOrderlyHalt(err error) bool {
	msg := err.Error()
	return strings.HasPrefix(msg, "exit(") || msg == "ebreak"
}

func (d *Debugger) printCurrentInstruction() {
	addr := d.Machine.CPU.GetPC()
	raw, err := d.Machine.FetchInstruction(addr)
	if err != nil {
		return
	}
	op := core.Decode(raw)
	location := fmt.Sprintf("0x%016x", addr)
	if d.Disasm.Symbols != nil && d.Disasm.Symbols.HasSymbols() {
		location = d.Disasm.Symbols.FormatAddress(addr)
	}
	fmt.Printf("%s  %s\n", location, d.Disasm.FormatFields(addr, op.IsCompressed, core.ToPseudoFields(op)))
}

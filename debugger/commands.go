package debugger

import (
	"fmt"
	"strconv"
	"strings"

	"riscv64-emu/core"
)

// Command handler implementations.

// cmdRun starts or restarts program execution.
func (d *Debugger) cmdRun(args []string) error {
	d.Machine.Reset()
	d.Running = true
	d.StepMode = StepNone

	d.Println("Starting program execution...")
	return nil
}

// cmdContinue continues execution from the current point.
func (d *Debugger) cmdContinue(args []string) error {
	d.Running = true
	d.StepMode = StepNone

	d.Println("Continuing...")
	return nil
}

// cmdStep executes a single instruction.
func (d *Debugger) cmdStep(args []string) error {
	d.StepMode = StepSingle
	d.Running = true
	return nil
}

// cmdNext steps over function calls.
func (d *Debugger) cmdNext(args []string) error {
	d.SetStepOver()
	return nil
}

// cmdFinish enters step-out mode. Step-out does not track the return
// address: execution runs until a breakpoint, watchpoint, or halt stops it.
func (d *Debugger) cmdFinish(args []string) error {
	d.SetStepOut()
	return nil
}

// cmdBreak sets a breakpoint.
func (d *Debugger) cmdBreak(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: break <address|label> [if <condition>]")
	}

	address, err := d.ResolveAddress(args[0])
	if err != nil {
		return err
	}

	var condition string
	if len(args) > 1 && strings.ToLower(args[1]) == "if" {
		condition = strings.Join(args[2:], " ")
	}

	bp := d.Breakpoints.AddBreakpoint(address, false, condition)

	if condition != "" {
		d.Printf("Breakpoint %d at 0x%016x (condition: %s)\n", bp.ID, address, condition)
	} else {
		d.Printf("Breakpoint %d at 0x%016x\n", bp.ID, address)
	}

	return nil
}

// cmdTBreak sets a temporary breakpoint (auto-delete after hit).
func (d *Debugger) cmdTBreak(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: tbreak <address|label>")
	}

	address, err := d.ResolveAddress(args[0])
	if err != nil {
		return err
	}

	bp := d.Breakpoints.AddBreakpoint(address, true, "")
	d.Printf("Temporary breakpoint %d at 0x%016x\n", bp.ID, address)

	return nil
}

// cmdDelete deletes breakpoint(s).
func (d *Debugger) cmdDelete(args []string) error {
	if len(args) == 0 {
		d.Breakpoints.Clear()
		d.Println("All breakpoints deleted")
		return nil
	}

	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid breakpoint ID: %s", args[0])
	}

	if err := d.Breakpoints.DeleteBreakpoint(id); err != nil {
		return err
	}

	d.Printf("Breakpoint %d deleted\n", id)
	return nil
}

// cmdEnable enables a breakpoint.
func (d *Debugger) cmdEnable(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: enable <breakpoint-id>")
	}

	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid breakpoint ID: %s", args[0])
	}

	if err := d.Breakpoints.EnableBreakpoint(id); err != nil {
		return err
	}

	d.Printf("Breakpoint %d enabled\n", id)
	return nil
}

// cmdDisable disables a breakpoint.
func (d *Debugger) cmdDisable(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: disable <breakpoint-id>")
	}

	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid breakpoint ID: %s", args[0])
	}

	if err := d.Breakpoints.DisableBreakpoint(id); err != nil {
		return err
	}

	d.Printf("Breakpoint %d disabled\n", id)
	return nil
}

// cmdWatch sets a write watchpoint.
func (d *Debugger) cmdWatch(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: watch <expression>")
	}
	return d.addWatchpoint(WatchWrite, strings.Join(args, " "), "Watchpoint")
}

// cmdRWatch sets a read watchpoint.
func (d *Debugger) cmdRWatch(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: rwatch <expression>")
	}
	return d.addWatchpoint(WatchRead, strings.Join(args, " "), "Read watchpoint")
}

// cmdAWatch sets a read/write watchpoint.
func (d *Debugger) cmdAWatch(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: awatch <expression>")
	}
	return d.addWatchpoint(WatchReadWrite, strings.Join(args, " "), "Access watchpoint")
}

func (d *Debugger) addWatchpoint(wtype WatchType, expression, label string) error {
	isRegister, register, address, err := d.parseWatchExpression(expression)
	if err != nil {
		return err
	}

	wp := d.Watchpoints.AddWatchpoint(wtype, expression, address, isRegister, register)

	if err := d.Watchpoints.InitializeWatchpoint(wp.ID, d.Machine); err != nil {
		_ = d.Watchpoints.DeleteWatchpoint(wp.ID)
		return err
	}

	d.Printf("%s %d: %s\n", label, wp.ID, expression)
	return nil
}

// parseWatchExpression parses a watch expression: a register name (a0, x10,
// sp, pc, ...), a bracketed memory address/symbol ([0x1000], [buf]), or a
// bare address/symbol.
func (d *Debugger) parseWatchExpression(expr string) (isRegister bool, register int, address uint64, err error) {
	expr = strings.ToLower(strings.TrimSpace(expr))

	if expr == "pc" {
		return true, -1, 0, nil
	}
	if regNum, ok := core.RegisterNumber(expr); ok {
		return true, regNum, 0, nil
	}

	if strings.HasPrefix(expr, "[") && strings.HasSuffix(expr, "]") {
		addrStr := strings.TrimSuffix(strings.TrimPrefix(expr, "["), "]")
		addr, err := d.ResolveAddress(addrStr)
		if err != nil {
			return false, 0, 0, err
		}
		return false, 0, addr, nil
	}

	addr, err := d.ResolveAddress(expr)
	if err != nil {
		return false, 0, 0, fmt.Errorf("invalid watch expression: %s", expr)
	}

	return false, 0, addr, nil
}

// cmdPrint evaluates and prints an expression.
func (d *Debugger) cmdPrint(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: print <expression>")
	}

	expression := strings.Join(args, " ")
	result, err := d.Evaluator.EvaluateExpression(expression, d.Machine, d.Symbols)
	if err != nil {
		return err
	}

	d.Printf("$%d = 0x%016x (%d)\n", d.Evaluator.GetValueNumber(), result, int64(result))
	return nil
}

// cmdExamine examines memory at an address.
func (d *Debugger) cmdExamine(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: x[/nfu] <address>\n  n: count, f: format (x/d/u/o/t), u: unit size (b/h/w/g)")
	}

	count := 1
	format := 'x'
	unit := 'g'
	addrArg := args[0]

	if strings.HasPrefix(args[0], "/") {
		formatStr := args[0][1:]
		if len(args) < 2 {
			return fmt.Errorf("missing address")
		}
		addrArg = args[1]

		i := 0
		for i < len(formatStr) && formatStr[i] >= '0' && formatStr[i] <= '9' {
			i++
		}
		if i > 0 {
			if n, err := strconv.Atoi(formatStr[:i]); err == nil {
				count = n
			}
			formatStr = formatStr[i:]
		}

		if len(formatStr) > 0 {
			format = rune(formatStr[0])
			formatStr = formatStr[1:]
		}

		if len(formatStr) > 0 {
			unit = rune(formatStr[0])
		}
	}

	address, err := d.ResolveAddress(addrArg)
	if err != nil {
		return err
	}

	byteWidth := 8
	switch unit {
	case 'b':
		byteWidth = 1
	case 'h':
		byteWidth = 2
	case 'w':
		byteWidth = 4
	case 'g':
		byteWidth = 8
	}

	d.Printf("0x%016x:", address)
	for i := 0; i < count; i++ {
		value, err := d.Machine.Mem.ReadN(address, byteWidth)
		if err != nil {
			return err
		}
		address += uint64(byteWidth)

		switch format {
		case 'd':
			d.Printf(" %d", signExtendWidth(value, byteWidth))
		case 'u':
			d.Printf(" %d", value)
		case 'o':
			d.Printf(" %o", value)
		case 't':
			d.Printf(" %b", value)
		default:
			d.Printf(" 0x%0*x", byteWidth*2, value)
		}
	}
	d.Println()

	return nil
}

// signExtendWidth interprets value's low byteWidth bytes as a signed integer.
func signExtendWidth(value uint64, byteWidth int) int64 {
	shift := uint(64 - byteWidth*8)
	return int64(value<<shift) >> shift
}

// cmdInfo displays information about program state.
func (d *Debugger) cmdInfo(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: info <registers|breakpoints|watchpoints|stack>")
	}

	switch strings.ToLower(args[0]) {
	case "registers", "reg", "r":
		return d.showRegisters()
	case "breakpoints", "break", "b":
		return d.showBreakpoints()
	case "watchpoints", "watch", "w":
		return d.showWatchpoints()
	case "stack", "s":
		return d.showStack()
	default:
		return fmt.Errorf("unknown info command: %s", args[0])
	}
}

// showRegisters displays all 32 general-purpose registers plus pc and cycles.
func (d *Debugger) showRegisters() error {
	d.Println("Registers:")
	for i := 0; i < core.GeneralRegisterCount; i++ {
		value := d.Machine.CPU.GetRegister(i)
		d.Printf("  x%-2d %-4s = 0x%016x (%d)\n", i, core.RegNames[i], value, int64(value))
	}
	d.Printf("  pc       = 0x%016x\n", d.Machine.CPU.GetPC())
	d.Printf("  cycles   = %d\n", d.Machine.CPU.Cycles)

	return nil
}

// showBreakpoints displays all breakpoints.
func (d *Debugger) showBreakpoints() error {
	breakpoints := d.Breakpoints.GetAllBreakpoints()
	if len(breakpoints) == 0 {
		d.Println("No breakpoints")
		return nil
	}

	d.Println("Breakpoints:")
	for _, bp := range breakpoints {
		status := "enabled"
		if !bp.Enabled {
			status = "disabled"
		}

		temp := ""
		if bp.Temporary {
			temp = " (temporary)"
		}

		condition := ""
		if bp.Condition != "" {
			condition = fmt.Sprintf(" if %s", bp.Condition)
		}

		d.Printf("  %d: 0x%016x %s%s%s (hit %d times)\n",
			bp.ID, bp.Address, status, temp, condition, bp.HitCount)
	}

	return nil
}

// showWatchpoints displays all watchpoints.
func (d *Debugger) showWatchpoints() error {
	watchpoints := d.Watchpoints.GetAllWatchpoints()
	if len(watchpoints) == 0 {
		d.Println("No watchpoints")
		return nil
	}

	d.Println("Watchpoints:")
	for _, wp := range watchpoints {
		status := "enabled"
		if !wp.Enabled {
			status = "disabled"
		}

		wpType := "write"
		if wp.Type == WatchRead {
			wpType = "read"
		} else if wp.Type == WatchReadWrite {
			wpType = "access"
		}

		d.Printf("  %d: %s %s %s (hit %d times, last value: 0x%016x)\n",
			wp.ID, wp.Expression, wpType, status, wp.HitCount, wp.LastValue)
	}

	return nil
}

// showStack displays doublewords from the top of the stack.
func (d *Debugger) showStack() error {
	sp := d.Machine.CPU.GetSP()
	d.Printf("Stack (sp = 0x%016x):\n", sp)

	for i := 0; i < 8; i++ {
		addr := sp + uint64(i*8)
		value, err := d.Machine.Mem.ReadN(addr, 8)
		if err != nil {
			break
		}
		d.Printf("  0x%016x: 0x%016x (%d)\n", addr, value, int64(value))
	}

	return nil
}

// cmdBacktrace shows a best-effort call trace: the current PC and the
// return address register. A full backtrace would need a tracked call
// stack, since RV64 has no hardware frame-pointer chain this interpreter
// maintains on its own.
func (d *Debugger) cmdBacktrace(args []string) error {
	d.Println("Call stack:")
	d.Printf("  #0  pc=0x%016x\n", d.Machine.CPU.GetPC())

	ra := d.Machine.CPU.GetRegister(core.RegRA)
	if ra != 0 {
		d.Printf("  #1  ra=0x%016x\n", ra)
	}

	return nil
}

// cmdList shows the instruction at the current PC and the next few,
// disassembled, or the loaded source map entry when one is present.
func (d *Debugger) cmdList(args []string) error {
	pc := d.Machine.CPU.GetPC()

	if source, exists := d.SourceMap[pc]; exists {
		d.Printf("=> 0x%016x: %s\n", pc, source)
	} else if d.Disasm != nil {
		d.printListedInstruction(pc, "=>")
	}

	addr := pc
	for i := 0; i < 5; i++ {
		raw, err := d.Machine.FetchInstruction(addr)
		if err != nil {
			break
		}
		op := core.Decode(raw)
		addr += op.Size()

		if source, exists := d.SourceMap[addr]; exists {
			d.Printf("   0x%016x: %s\n", addr, source)
		} else if d.Disasm != nil {
			d.printListedInstruction(addr, "  ")
		}
	}

	return nil
}

func (d *Debugger) printListedInstruction(addr uint64, prefix string) {
	raw, err := d.Machine.FetchInstruction(addr)
	if err != nil {
		return
	}
	op := core.Decode(raw)
	d.Printf("%s %s\n", prefix, d.Disasm.FormatFields(addr, op.IsCompressed, core.ToPseudoFields(op)))
}

// cmdDisassemble disassembles count instructions starting at the current
// PC, or at an explicit address/label when given.
func (d *Debugger) cmdDisassemble(args []string) error {
	if d.Disasm == nil {
		return fmt.Errorf("no disassembler available")
	}

	addr := d.Machine.CPU.GetPC()
	count := 10

	if len(args) > 0 {
		a, err := d.ResolveAddress(args[0])
		if err != nil {
			return err
		}
		addr = a
	}
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err == nil && n > 0 {
			count = n
		}
	}

	for i := 0; i < count; i++ {
		raw, err := d.Machine.FetchInstruction(addr)
		if err != nil {
			return err
		}
		op := core.Decode(raw)

		marker := "  "
		if addr == d.Machine.CPU.GetPC() {
			marker = "=>"
		}
		d.Printf("%s 0x%016x: %s\n", marker, addr, d.Disasm.FormatFields(addr, op.IsCompressed, core.ToPseudoFields(op)))
		addr += op.Size()
	}

	return nil
}

// cmdSet modifies a register or memory doubleword.
func (d *Debugger) cmdSet(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: set <register|*address> = <value>")
	}

	if args[1] != "=" {
		return fmt.Errorf("usage: set <register|*address> = <value>")
	}

	target := strings.ToLower(args[0])
	valueStr := args[2]

	value, err := d.Evaluator.EvaluateExpression(valueStr, d.Machine, d.Symbols)
	if err != nil {
		return err
	}

	if strings.HasPrefix(target, "*") {
		addrStr := target[1:]
		address, err := d.ResolveAddress(addrStr)
		if err != nil {
			return err
		}

		if err := d.Machine.Mem.WriteN(address, value, 8); err != nil {
			return err
		}

		d.Printf("Memory 0x%016x set to 0x%016x\n", address, value)
		return nil
	}

	if target == "pc" {
		d.Machine.CPU.SetPC(value)
		d.Printf("Register pc set to 0x%016x\n", value)
		return nil
	}

	register, ok := core.RegisterNumber(target)
	if !ok {
		return fmt.Errorf("invalid target: %s", target)
	}

	d.Machine.CPU.SetRegister(register, value)
	d.Printf("Register %s set to 0x%016x\n", target, value)

	return nil
}

// cmdReset resets the machine to its power-on state.
func (d *Debugger) cmdReset(args []string) error {
	d.Machine.Reset()
	d.Println("Machine reset")
	return nil
}

// cmdHelp displays help information.
func (d *Debugger) cmdHelp(args []string) error {
	if len(args) > 0 {
		return d.showCommandHelp(args[0])
	}

	d.Println("Debugger commands:")
	d.Println()
	d.Println("Execution Control:")
	d.Println("  run (r)           - Start program execution")
	d.Println("  continue (c)      - Continue execution")
	d.Println("  step (s, si)      - Execute single instruction")
	d.Println("  next (n)          - Step over function calls")
	d.Println("  finish (fin)      - Run until a breakpoint, watchpoint or halt")
	d.Println()
	d.Println("Breakpoints:")
	d.Println("  break (b) <addr>  - Set breakpoint")
	d.Println("  tbreak (tb) <addr>- Set temporary breakpoint")
	d.Println("  delete (d) [id]   - Delete breakpoint(s)")
	d.Println("  enable <id>       - Enable breakpoint")
	d.Println("  disable <id>      - Disable breakpoint")
	d.Println()
	d.Println("Watchpoints:")
	d.Println("  watch (w) <expr>  - Watch for writes")
	d.Println("  rwatch <expr>     - Watch for reads")
	d.Println("  awatch <expr>     - Watch for access")
	d.Println()
	d.Println("Inspection:")
	d.Println("  print (p) <expr>  - Evaluate expression")
	d.Println("  x[/nfu] <addr>    - Examine memory")
	d.Println("  info (i) <what>   - Show information")
	d.Println("  backtrace (bt)    - Show call stack")
	d.Println("  list (l)          - List disassembly around pc")
	d.Println("  disassemble (disas) [addr] [count] - Disassemble instructions")
	d.Println()
	d.Println("Modification:")
	d.Println("  set <var> = <val> - Modify register/memory")
	d.Println()
	d.Println("Control:")
	d.Println("  reset             - Reset the machine")
	d.Println("  help (h, ?)       - Show this help")
	d.Println()
	d.Println("Type 'help <command>' for detailed help on a specific command.")

	return nil
}

// showCommandHelp shows detailed help for a specific command.
func (d *Debugger) showCommandHelp(cmd string) error {
	helpText := map[string]string{
		"break": "break <address|label> [if <condition>]\n  Set a breakpoint at the specified address or label.\n  Optional condition will be evaluated each time.",
		"step":  "step\n  Execute a single instruction.",
		"next":  "next\n  Step over function calls (execute until next instruction at same level).",
		"print": "print <expression>\n  Evaluate and print an expression.\n  Expressions can include registers, memory, symbols, and arithmetic.",
		"x":     "x[/nfu] <address>\n  Examine memory.\n  n: count, f: format (x/d/u/o/t), u: unit (b/h/w/g)",
		"info":  "info <registers|breakpoints|watchpoints|stack>\n  Display information about program state.",
	}

	if help, exists := helpText[cmd]; exists {
		d.Println(help)
		return nil
	}

	return fmt.Errorf("no help available for command: %s", cmd)
}

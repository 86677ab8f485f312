package debugger

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"riscv64-emu/core"
)

// TUI is a full-screen text user interface wrapping a Debugger: register,
// disassembly, memory, stack, and breakpoint panels around the same command
// line Debugger.Run drives, so every command works identically in both front ends.
type TUI struct {
	Debugger *Debugger
	App      *tview.Application
	Pages    *tview.Pages

	MainLayout *tview.Flex
	LeftPanel  *tview.Flex
	RightPanel *tview.Flex

	DisassemblyView *tview.TextView
	RegisterView    *tview.TextView
	MemoryView      *tview.TextView
	StackView       *tview.TextView
	BreakpointsView *tview.TextView
	OutputView      *tview.TextView
	CommandInput    *tview.InputField

	MemoryAddress uint64
}

// NewTUI builds the panel layout and key bindings around dbg, but does not
// start the event loop; call Run for that.
func NewTUI(dbg *Debugger) *TUI {
	t := &TUI{
		Debugger: dbg,
		App:      tview.NewApplication(),
	}
	t.initializeViews()
	t.buildLayout()
	t.setupKeyBindings()
	return t
}

func (t *TUI) initializeViews() {
	t.DisassemblyView = tview.NewTextView().SetDynamicColors(true).SetScrollable(true).SetWrap(false)
	t.DisassemblyView.SetBorder(true).SetTitle(" Disassembly ")

	t.RegisterView = tview.NewTextView().SetDynamicColors(true).SetScrollable(false)
	t.RegisterView.SetBorder(true).SetTitle(" Registers ")

	t.MemoryView = tview.NewTextView().SetDynamicColors(true).SetScrollable(true).SetWrap(false)
	t.MemoryView.SetBorder(true).SetTitle(" Memory ")

	t.StackView = tview.NewTextView().SetDynamicColors(true).SetScrollable(true).SetWrap(false)
	t.StackView.SetBorder(true).SetTitle(" Stack ")

	t.BreakpointsView = tview.NewTextView().SetDynamicColors(true).SetScrollable(true).SetWrap(false)
	t.BreakpointsView.SetBorder(true).SetTitle(" Breakpoints/Watchpoints ")

	t.OutputView = tview.NewTextView().SetDynamicColors(true).SetScrollable(true).SetWrap(true)
	t.OutputView.SetBorder(true).SetTitle(" Output ")

	t.CommandInput = tview.NewInputField().SetLabel("> ").SetFieldWidth(0)
	t.CommandInput.SetBorder(true).SetTitle(" Command ")
	t.CommandInput.SetDoneFunc(t.handleCommand)
}

func (t *TUI) buildLayout() {
	rightTop := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(t.RegisterView, RegisterViewRows, 0, false).
		AddItem(t.MemoryView, 0, 1, false).
		AddItem(t.StackView, 0, 1, false)

	t.RightPanel = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(rightTop, 0, 3, false).
		AddItem(t.BreakpointsView, 8, 0, false)

	mainContent := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(t.DisassemblyView, 0, 2, false).
		AddItem(t.RightPanel, 0, 1, false)

	t.MainLayout = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(mainContent, 0, 4, false).
		AddItem(t.OutputView, 8, 0, false).
		AddItem(t.CommandInput, 3, 0, true)

	t.Pages = tview.NewPages().AddPage("main", t.MainLayout, true, true)
}

func (t *TUI) setupKeyBindings() {
	t.App.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyF1:
			t.executeCommand("help")
			return nil
		case tcell.KeyF5:
			t.executeCommand("continue")
			return nil
		case tcell.KeyF9:
			t.executeCommand("break")
			return nil
		case tcell.KeyF10:
			t.executeCommand("next")
			return nil
		case tcell.KeyF11:
			t.executeCommand("step")
			return nil
		case tcell.KeyCtrlC:
			t.App.Stop()
			return nil
		case tcell.KeyCtrlL:
			t.RefreshAll()
			return nil
		}
		return event
	})
}

func (t *TUI) handleCommand(key tcell.Key) {
	if key != tcell.KeyEnter {
		return
	}
	cmd := t.CommandInput.GetText()
	if cmd == "" {
		return
	}
	t.executeCommand(cmd)
	t.CommandInput.SetText("")
}

func (t *TUI) executeCommand(cmd string) {
	if cmd == "quit" || cmd == "q" || cmd == "exit" {
		t.App.Stop()
		return
	}

	err := t.Debugger.ExecuteCommand(cmd)
	output := t.Debugger.GetOutput()

	if err != nil {
		t.WriteOutput(fmt.Sprintf("[red]Error:[white] %v\n", err))
	}
	if output != "" {
		t.WriteOutput(output)
	}

	if t.Debugger.Running {
		t.runUntilStop()
	}

	t.RefreshAll()
}

// runUntilStop drives the fetch-decode-execute loop the same way the CLI's
// runUntilStop does (PC stays at the fetched address while Execute runs,
// advancing by op.Size() afterward only on fall-through), but yields to the
// TUI event loop every DisplayUpdateFrequency cycles so a long "continue"
// still redraws.
func (t *TUI) runUntilStop() {
	d := t.Debugger
	steps := 0
	for d.Running {
		if shouldBreak, reason := d.ShouldBreak(); shouldBreak {
			d.Running = false
			t.WriteOutput(fmt.Sprintf("Stopped: %s at PC=0x%016x\n", reason, d.Machine.CPU.GetPC()))
			break
		}

		addr := d.Machine.CPU.GetPC()
		raw, err := d.Machine.FetchInstruction(addr)
		if err != nil {
			t.WriteOutput(fmt.Sprintf("Runtime error: %v\n", err))
			d.Running = false
			break
		}
		op := core.Decode(raw)

		if err := core.Execute(op, d.Machine); err != nil {
			d.Running = false
			if isOrderlyHalt(err) {
				t.WriteOutput(fmt.Sprintf("Program stopped: %v\n", err))
			} else {
				t.WriteOutput(fmt.Sprintf("Runtime error: %v\n", err))
			}
			break
		}

		if d.Machine.CPU.GetPC() == addr {
			if err := d.Machine.AdvancePC(op.Size()); err != nil {
				t.WriteOutput(fmt.Sprintf("Runtime error: %v\n", err))
				d.Running = false
				break
			}
		}

		d.Machine.CPU.IncrementCycles(1)
		steps++
		if steps%DisplayUpdateFrequency == 0 {
			t.RefreshAll()
		}
	}
}

// WriteOutput appends text to the output panel and scrolls to the end.
func (t *TUI) WriteOutput(text string) {
	_, _ = t.OutputView.Write([]byte(text))
	t.OutputView.ScrollToEnd()
}

// RefreshAll redraws every panel from current Debugger/Machine state.
func (t *TUI) RefreshAll() {
	t.UpdateDisassemblyView()
	t.UpdateRegisterView()
	t.UpdateMemoryView()
	t.UpdateStackView()
	t.UpdateBreakpointsView()
	t.App.Draw()
}

// UpdateDisassemblyView shows real disassembly (not raw hex) around the
// current PC, using the same Disassembler the CLI prints single-step
// instructions with.
func (t *TUI) UpdateDisassemblyView() {
	t.DisassemblyView.Clear()

	pc := t.Debugger.Machine.CPU.GetPC()
	disasm := t.Debugger.Disasm
	if disasm == nil {
		t.DisassemblyView.SetText("[yellow]No disassembler configured[white]")
		return
	}

	addr := findWindowStart(t.Debugger.Machine, pc, CodeContextLinesBeforeCompact)

	var lines []string
	for i := 0; i < CodeContextLinesBeforeCompact+CodeContextLinesAfterCompact; i++ {
		raw, err := t.Debugger.Machine.FetchInstruction(addr)
		if err != nil {
			break
		}
		op := core.Decode(raw)

		marker := "  "
		color := "white"
		if addr == pc {
			marker = "=>"
			color = "yellow"
		}
		if t.Debugger.Breakpoints.GetBreakpoint(addr) != nil {
			marker = "* "
		}

		text := disasm.FormatFields(addr, op.IsCompressed, core.ToPseudoFields(op))
		lines = append(lines, fmt.Sprintf("[%s]%s %s[white]", color, marker, text))

		addr += op.Size()
	}

	t.DisassemblyView.SetText(strings.Join(lines, "\n"))
}

// findWindowStart walks backward from pc by up to 2n compressed-sized steps,
// stopping at the start of the executable segment so the disassembly window
// never wanders into unmapped memory.
func findWindowStart(m *core.Machine, pc uint64, n int) uint64 {
	addr := pc
	for i := 0; i < n*2 && addr >= core.CompressedInstructionSize; i++ {
		candidate := addr - core.CompressedInstructionSize
		if err := m.Mem.CheckExecutePermission(candidate); err != nil {
			break
		}
		addr = candidate
	}
	return addr
}

// UpdateRegisterView renders all 32 integer registers, PC, and the retired
// instruction counter, RegisterGroupSize per row.
func (t *TUI) UpdateRegisterView() {
	t.RegisterView.Clear()

	cpu := t.Debugger.Machine.CPU
	var lines []string

	for row := 0; row*RegisterGroupSize < core.GeneralRegisterCount; row++ {
		var cols []string
		for col := 0; col < RegisterGroupSize; col++ {
			reg := row*RegisterGroupSize + col
			if reg >= core.GeneralRegisterCount {
				break
			}
			cols = append(cols, fmt.Sprintf("%-4s: 0x%016x", core.RegNames[reg], cpu.GetRegister(reg)))
		}
		lines = append(lines, strings.Join(cols, "  "))
	}

	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("[yellow]pc[white]: 0x%016x   cycles: %d", cpu.GetPC(), cpu.Cycles))

	t.RegisterView.SetText(strings.Join(lines, "\n"))
}

// UpdateMemoryView renders a MemoryDisplayRows x MemoryDisplayColumns hex
// dump starting at MemoryAddress (or the current PC while MemoryAddress is 0).
func (t *TUI) UpdateMemoryView() {
	t.MemoryView.Clear()

	addr := t.MemoryAddress
	if addr == 0 {
		addr = t.Debugger.Machine.CPU.GetPC()
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("[yellow]Address: 0x%016x[white]", addr))

	for row := 0; row < MemoryDisplayRows; row++ {
		rowAddr := addr + uint64(row*MemoryDisplayColumns)
		var hexBytes []string
		var ascii []byte
		for col := 0; col < MemoryDisplayColumns; col++ {
			b, err := t.Debugger.Machine.Mem.ReadByte(rowAddr + uint64(col))
			if err != nil {
				hexBytes = append(hexBytes, "??")
				ascii = append(ascii, '.')
				continue
			}
			hexBytes = append(hexBytes, fmt.Sprintf("%02x", b))
			if b >= 32 && b < 127 {
				ascii = append(ascii, b)
			} else {
				ascii = append(ascii, '.')
			}
		}
		lines = append(lines, fmt.Sprintf("0x%016x: %s  %s", rowAddr, strings.Join(hexBytes, " "), string(ascii)))
	}

	t.MemoryView.SetText(strings.Join(lines, "\n"))
}

// UpdateStackView renders StackDisplayWords doublewords from the current
// stack pointer upward, toward higher addresses (the live part of RV64's
// downward-growing stack).
func (t *TUI) UpdateStackView() {
	t.StackView.Clear()

	sp := t.Debugger.Machine.CPU.GetSP()
	var lines []string
	lines = append(lines, fmt.Sprintf("[yellow]sp: 0x%016x[white]", sp))

	for i := 0; i < StackDisplayWords; i++ {
		addr := sp + uint64(i*8)
		word, err := t.Debugger.Machine.LoadI64(int64(addr))
		marker := "  "
		if addr == sp {
			marker = "=>"
		}
		if err != nil {
			lines = append(lines, fmt.Sprintf("%s 0x%016x: ????????????????", marker, addr))
			continue
		}
		line := fmt.Sprintf("%s 0x%016x: 0x%016x", marker, addr, uint64(word))
		if sym := t.Debugger.Disasm.Symbols; sym != nil {
			if name := sym.LookupAddress(uint64(word)); name != "" {
				line += fmt.Sprintf(" <%s>", name)
			}
		}
		lines = append(lines, line)
	}

	t.StackView.SetText(strings.Join(lines, "\n"))
}

// UpdateBreakpointsView lists every breakpoint and watchpoint with status.
func (t *TUI) UpdateBreakpointsView() {
	t.BreakpointsView.Clear()

	var lines []string
	bps := t.Debugger.Breakpoints.GetAllBreakpoints()
	if len(bps) == 0 {
		lines = append(lines, "[yellow]No breakpoints set[white]")
	} else {
		for _, bp := range bps {
			status, color := "enabled", "green"
			if !bp.Enabled {
				status, color = "disabled", "red"
			}
			line := fmt.Sprintf("  %d: [%s]%s[white] 0x%016x", bp.ID, color, status, bp.Address)
			if bp.Condition != "" {
				line += fmt.Sprintf(" if %s", bp.Condition)
			}
			line += fmt.Sprintf(" (hits: %d)", bp.HitCount)
			lines = append(lines, line)
		}
	}

	wps := t.Debugger.Watchpoints.GetAllWatchpoints()
	if len(wps) > 0 {
		lines = append(lines, "", "[yellow]Watchpoints:[white]")
		for _, wp := range wps {
			lines = append(lines, fmt.Sprintf("  %d: %s = 0x%x", wp.ID, wp.Expression, wp.LastValue))
		}
	}

	t.BreakpointsView.SetText(strings.Join(lines, "\n"))
}

// Run starts the TUI event loop. It blocks until the user quits.
func (t *TUI) Run() error {
	t.RefreshAll()
	t.WriteOutput("[green]riscv64-emu debugger TUI[white]\n")
	t.WriteOutput("F1 help  F5 continue  F10 next  F11 step  Ctrl+C quit\n\n")
	return t.App.SetRoot(t.Pages, true).SetFocus(t.CommandInput).Run()
}

// Stop halts the TUI event loop.
func (t *TUI) Stop() {
	t.App.Stop()
}

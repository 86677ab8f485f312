package core

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// TraceEntry is one retired instruction's execution record.
type TraceEntry struct {
	Sequence        uint64
	Address         uint64
	Raw             uint32
	Disassembly     string
	RegisterChanges map[string]uint64
	Duration        time.Duration
}

// ExecutionTrace records a running log of retired instructions, diffing the
// register file after each step so only what actually changed is recorded.
type ExecutionTrace struct {
	Enabled       bool
	Writer        io.Writer
	FilterRegs    map[string]bool
	IncludeTiming bool
	MaxEntries    int
	Symbols       *SymbolResolver

	entries      []TraceEntry
	startTime    time.Time
	lastSnapshot map[string]uint64
}

// NewExecutionTrace creates a trace that writes to w as entries are flushed.
func NewExecutionTrace(w io.Writer) *ExecutionTrace {
	return &ExecutionTrace{
		Enabled:       true,
		Writer:        w,
		FilterRegs:    make(map[string]bool),
		IncludeTiming: true,
		MaxEntries:    100000,
		entries:       make([]TraceEntry, 0, 1000),
		lastSnapshot:  make(map[string]uint64),
	}
}

// SetFilterRegisters restricts tracking to the named registers. An empty
// slice tracks all of them.
func (t *ExecutionTrace) SetFilterRegisters(regs []string) {
	t.FilterRegs = make(map[string]bool)
	for _, reg := range regs {
		t.FilterRegs[strings.ToLower(reg)] = true
	}
}

// SetSymbols attaches a symbol resolver so the address column in trace
// output carries "symbol+offset" alongside the raw address.
func (t *ExecutionTrace) SetSymbols(symbols *SymbolResolver) {
	t.Symbols = symbols
}

// Start resets the trace and begins timing from now.
func (t *ExecutionTrace) Start() {
	t.startTime = time.Now()
	t.entries = t.entries[:0]
	t.lastSnapshot = make(map[string]uint64)
}

// RecordInstruction appends one trace entry for the instruction just
// executed at address addr, diffing the register file against the last
// recorded snapshot.
func (t *ExecutionTrace) RecordInstruction(m *Machine, addr uint64, raw uint32, disasm string) {
	if !t.Enabled {
		return
	}
	if t.MaxEntries > 0 && len(t.entries) >= t.MaxEntries {
		return
	}

	entry := TraceEntry{
		Sequence:        m.CPU.Cycles,
		Address:         addr,
		Raw:             raw,
		Disassembly:     disasm,
		RegisterChanges: make(map[string]uint64),
	}
	if t.IncludeTiming {
		entry.Duration = time.Since(t.startTime)
	}

	for i, name := range RegNames {
		if len(t.FilterRegs) > 0 && !t.FilterRegs[name] {
			continue
		}
		value := m.CPU.GetRegister(i)
		if old, exists := t.lastSnapshot[name]; !exists || old != value {
			entry.RegisterChanges[name] = value
			t.lastSnapshot[name] = value
		}
	}

	t.entries = append(t.entries, entry)
}

// Flush writes every recorded entry to the trace's writer, then clears the
// in-memory log so a long-running trace doesn't re-emit the same entries if
// flushed again later.
func (t *ExecutionTrace) Flush() error {
	if t.Writer == nil {
		return nil
	}
	if t.Symbols != nil && t.Symbols.HasSymbols() {
		if _, err := fmt.Fprintf(t.Writer, "; %d symbols loaded\n", t.Symbols.GetSymbolCount()); err != nil {
			return err
		}
	}
	for _, entry := range t.GetEntries() {
		if err := t.writeEntry(entry); err != nil {
			return err
		}
	}
	t.Clear()
	return nil
}

func (t *ExecutionTrace) writeEntry(entry TraceEntry) error {
	addrCol := fmt.Sprintf("0x%016x", entry.Address)
	if t.Symbols != nil && t.Symbols.HasSymbols() {
		addrCol = fmt.Sprintf("%s (%s)", addrCol, t.Symbols.FormatAddressCompact(entry.Address))
	}
	line := fmt.Sprintf("[%06d] %s: %-30s", entry.Sequence, addrCol, entry.Disassembly)

	if len(entry.RegisterChanges) > 0 {
		changes := make([]string, 0, len(entry.RegisterChanges))
		for name, value := range entry.RegisterChanges {
			changes = append(changes, fmt.Sprintf("%s=0x%016x", name, value))
		}
		line += " | " + strings.Join(changes, " ")
	} else {
		line += " | (no changes)"
	}

	if t.IncludeTiming {
		line += fmt.Sprintf(" | %v", entry.Duration)
	}
	line += "\n"

	_, err := t.Writer.Write([]byte(line))
	return err
}

// GetEntries returns every trace entry recorded so far.
func (t *ExecutionTrace) GetEntries() []TraceEntry {
	return t.entries
}

// Clear discards all recorded entries without resetting the timer.
func (t *ExecutionTrace) Clear() {
	t.entries = t.entries[:0]
	t.lastSnapshot = make(map[string]uint64)
}

// OpenTraceFile opens (creating or truncating) a file to receive trace
// output.
func OpenTraceFile(filename string) (*os.File, error) {
	return os.Create(filename)
}

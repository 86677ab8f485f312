package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"riscv64-emu/config"
	"riscv64-emu/core"
	"riscv64-emu/debugger"
	"riscv64-emu/loader"
)

// Version information - can be overridden at build time with:
// go build -ldflags "-X main.Version=v1.2.3"
var (
	Version = "dev"     // Version number (set by git tag at build time)
	Commit  = "unknown" // Git commit hash
	Date    = "unknown" // Build date
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "Show version information")
		showHelp    = flag.Bool("help", false, "Show help information")
		debugMode   = flag.Bool("debug", false, "Start in interactive debugger")
		tuiMode     = flag.Bool("tui", false, "Start in the full-screen TUI debugger")
		maxCycles   = flag.Uint64("max-cycles", core.DefaultMaxCycles, "Maximum instructions to retire before halting")
		entryPoint  = flag.String("entry", "", "Override the ELF entry point (hex or decimal)")
		verboseMode = flag.Bool("verbose", false, "Verbose output (c. prefix on compressed mnemonics, address column)")
		configPath  = flag.String("config", "", "Path to a TOML config file (default: platform config dir)")

		enableTrace = flag.Bool("trace", false, "Enable execution trace")
		traceFile   = flag.String("trace-file", "", "Trace output file (default: trace.log)")
		traceFilter = flag.String("trace-filter", "", "Filter trace by register name (comma-separated, e.g. a0,a1,sp)")

		enableStats = flag.Bool("stats", false, "Enable performance statistics")
		statsFile   = flag.String("stats-file", "", "Statistics output file (default: stdout)")
		statsFormat = flag.String("stats-format", "text", "Statistics format: text, json, csv, html")

		disassembleOnly = flag.Bool("disassemble", false, "Disassemble the loaded binary's code segment and exit")
	)

	flag.Parse()

	if *showVersion {
		fmt.Printf("riscv64-emu %s\n", Version)
		if Commit != "unknown" {
			fmt.Printf("Commit: %s\n", Commit)
		}
		if Date != "unknown" {
			fmt.Printf("Built: %s\n", Date)
		}
		os.Exit(0)
	}

	if *showHelp {
		printHelp()
		os.Exit(0)
	}

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "error: missing program (an RV64IMC ELF binary)")
		printHelp()
		os.Exit(1)
	}
	programPath := flag.Arg(0)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if *maxCycles == core.DefaultMaxCycles && cfg.Execution.MaxCycles != 0 {
		*maxCycles = cfg.Execution.MaxCycles
	}

	prog, err := loader.LoadELF(programPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *entryPoint != "" {
		addr, err := resolveEntry(prog.Symbols, *entryPoint)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: invalid -entry value: %v\n", err)
			os.Exit(1)
		}
		if err := prog.Machine.SetPC(int64(addr)); err != nil {
			fmt.Fprintf(os.Stderr, "error: -entry 0x%x: %v\n", addr, err)
			os.Exit(1)
		}
	}

	disasm := core.NewDisassembler(prog.Symbols)
	disasm.Verbose = *verboseMode
	disasm.GP = prog.GP

	if *disassembleOnly {
		runDisassemble(prog, disasm)
		return
	}

	if *tuiMode {
		dbg := debugger.NewDebugger(prog.Machine, disasm)
		if err := debugger.NewTUI(dbg).Run(); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *debugMode {
		dbg := debugger.NewDebugger(prog.Machine, disasm)
		dbg.Run()
		return
	}

	var trace *core.ExecutionTrace
	if *enableTrace {
		path := *traceFile
		if path == "" {
			path = "trace.log"
		}
		f, err := core.OpenTraceFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: opening trace file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		trace = core.NewExecutionTrace(f)
		trace.SetSymbols(prog.Symbols)
		if *traceFilter != "" {
			trace.SetFilterRegisters(strings.Split(*traceFilter, ","))
		}
		trace.Start()
	}

	var stats *core.PerformanceStatistics
	if *enableStats {
		stats = core.NewPerformanceStatistics()
		stats.Start()
	}

	err = run(prog.Machine, *maxCycles, disasm, trace, stats)

	if trace != nil {
		if flushErr := trace.Flush(); flushErr != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to flush trace: %v\n", flushErr)
		}
	}
	if stats != nil {
		if statsErr := writeStats(stats, *statsFile, *statsFormat); statsErr != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to write statistics: %v\n", statsErr)
		}
	}

	if err != nil {
		if isOrderlyHalt(err) {
			if *verboseMode {
				fmt.Fprintf(os.Stderr, "%v\n", err)
			}
			os.Exit(exitStatus(err))
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run drives the fetch-decode-execute loop. Execute never advances the PC
// for a straight-line instruction; PC must still hold the fetched
// instruction's own address while Execute runs, since branches, JAL/JALR,
// and AUIPC all compute relative to it. So this loop only advances PC by
// op.Size() afterward, and only if Execute left it untouched (a taken
// branch or jump already rewrote it).
func run(m *core.Machine, maxCycles uint64, disasm *core.Disassembler, trace *core.ExecutionTrace, stats *core.PerformanceStatistics) error {
	for m.CPU.Cycles < maxCycles {
		addr := m.CPU.GetPC()
		raw, err := m.FetchInstruction(addr)
		if err != nil {
			return err
		}
		op := core.Decode(raw)

		var disasmText string
		if trace != nil {
			disasmText = disasm.FormatFields(addr, op.IsCompressed, core.ToPseudoFields(op))
		}

		if err := core.Execute(op, m); err != nil {
			if trace != nil {
				trace.RecordInstruction(m, addr, raw, disasmText)
			}
			return err
		}

		taken := m.CPU.GetPC() != addr
		if !taken {
			if err := m.AdvancePC(op.Size()); err != nil {
				return err
			}
		}

		m.CPU.IncrementCycles(1)
		if trace != nil {
			trace.RecordInstruction(m, addr, raw, disasmText)
		}
		if stats != nil {
			mnemonic := core.ToPseudoFields(op)[0].Mnemonic
			stats.RecordInstruction(mnemonic, addr)
			recordOperationStats(stats, op, taken)
		}
	}
	return fmt.Errorf("exceeded maximum cycle count (%d)", maxCycles)
}

// recordOperationStats feeds branch-outcome and memory-traffic counters for
// one retired instruction, based on its Kind and whether it changed the PC.
func recordOperationStats(stats *core.PerformanceStatistics, op core.Operation, branchTaken bool) {
	switch op.Kind {
	case core.KindBeq, core.KindBne, core.KindBlt, core.KindBge, core.KindBltu, core.KindBgeu:
		stats.RecordBranch(branchTaken)
	case core.KindJal, core.KindJalr:
		stats.RecordBranch(true)
	case core.KindLb, core.KindLbu:
		stats.RecordMemoryRead(1)
	case core.KindLh, core.KindLhu:
		stats.RecordMemoryRead(2)
	case core.KindLw, core.KindLwu:
		stats.RecordMemoryRead(4)
	case core.KindLd:
		stats.RecordMemoryRead(8)
	case core.KindSb:
		stats.RecordMemoryWrite(1)
	case core.KindSh:
		stats.RecordMemoryWrite(2)
	case core.KindSw:
		stats.RecordMemoryWrite(4)
	case core.KindSd:
		stats.RecordMemoryWrite(8)
	}
}

func runDisassemble(prog *loader.LoadedProgram, disasm *core.Disassembler) {
	records := []core.InstructionRecord{}
	for _, seg := range prog.Machine.Mem.Segments {
		if seg.Permissions&core.PermExecute == 0 {
			continue
		}
		addr := seg.Start
		for addr < seg.Start+seg.Size {
			raw, err := prog.Machine.FetchInstruction(addr)
			if err != nil {
				break
			}
			op := core.Decode(raw)
			records = append(records, core.InstructionRecord{Address: addr, Raw: raw, Op: op})
			addr += op.Size()
		}
	}
	for _, line := range disasm.FormatProgram(records, true) {
		fmt.Println(line)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

// resolveEntry resolves -entry against the loaded symbol table first (so
// "-entry main" works), falling back to hex/decimal parsing.
func resolveEntry(symbols *core.SymbolResolver, s string) (uint64, error) {
	if symbols != nil {
		if addr, ok := symbols.LookupSymbol(s); ok {
			return addr, nil
		}
	}
	return parseAddress(s)
}

func parseAddress(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	}
	return strconv.ParseUint(s, base, 64)
}

// isOrderlyHalt reports whether err is one of the two caller-recoverable
// execute-time terminations the executor documents: "exit(N)" or "ebreak".
func isOrderlyHalt(err error) bool {
	msg := err.Error()
	return strings.HasPrefix(msg, "exit(") || msg == "ebreak"
}

func exitStatus(err error) int {
	msg := err.Error()
	if !strings.HasPrefix(msg, "exit(") {
		return 0
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(msg, "exit("), ")")
	status, convErr := strconv.Atoi(inner)
	if convErr != nil {
		return 1
	}
	return status
}

func writeStats(stats *core.PerformanceStatistics, path, format string) error {
	var w *os.File
	if path == "" {
		w = os.Stdout
	} else {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	switch format {
	case "json":
		return stats.ExportJSON(w)
	case "csv":
		return stats.ExportCSV(w)
	case "html":
		return stats.ExportHTML(w)
	default:
		_, err := fmt.Fprint(w, stats.String())
		return err
	}
}

func printHelp() {
	fmt.Println(`riscv64-emu - a userspace RV64IMC interpreter

Usage:
  riscv64-emu [flags] <program.elf>

Flags:`)
	flag.PrintDefaults()
}

package main

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/vrisc/rv64emu/internal/core"
	"github.com/vrisc/rv64emu/internal/fleet"
	olog "github.com/vrisc/rv64emu/internal/obslog"
	"github.com/vrisc/rv64emu/internal/script"
	"github.com/vrisc/rv64emu/internal/snapshot"
	"github.com/vrisc/rv64emu/internal/trace"
	"github.com/vrisc/rv64emu/internal/ui/colorize"
	"github.com/vrisc/rv64emu/internal/ui/monitor"
)

var (
	verbose   bool
	quiet     bool
	maxInsn   int
	dramSize  uint64
	snapPath  string
	breakExpr string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "rv64emu [image.bin]",
		Short: "Run and inspect a minimal RV64 single-hart emulator",
		Long: `rv64emu boots a flat RV64 binary image into a single-hart core and steps
it instruction by instruction, printing a colorized per-cycle trace.

The decoder covers OP-IMM, STORE, OP (add), BRANCH, JAL, JALR, and SYSTEM
(ecall/ebreak/CSR) encodings. Any other opcode, including LOAD, decodes as
an illegal instruction and traps.

Examples:
  rv64emu run firmware.bin            # run with colorized trace
  rv64emu run firmware.bin -q         # quiet mode, final summary line only
  rv64emu info firmware.bin           # show image size without running it
  rv64emu batch a.bin b.bin c.bin     # run several images concurrently
  rv64emu debug firmware.bin --break 'cpu.pc === 0x80000020'`,
		Args:                  cobra.MaximumNArgs(1),
		DisableFlagsInUseLine: true,
	}

	runCmd := &cobra.Command{
		Use:   "run <image.bin>",
		Short: "Run an image to completion or first Fatal trap",
		Args:  cobra.ExactArgs(1),
		RunE:  runRun,
	}
	runCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "verbose debug output")
	runCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "quiet mode (final summary line only)")
	runCmd.Flags().IntVarP(&maxInsn, "num", "n", 100000, "max cycles to run")
	runCmd.Flags().Uint64Var(&dramSize, "dram", 1<<20, "DRAM capacity in bytes")
	runCmd.Flags().StringVar(&snapPath, "snapshot", "", "write a YAML snapshot here on exit")
	rootCmd.AddCommand(runCmd)

	infoCmd := &cobra.Command{
		Use:   "info <image.bin>",
		Short: "Show image size and boot-state presets",
		Args:  cobra.ExactArgs(1),
		RunE:  runInfo,
	}
	rootCmd.AddCommand(infoCmd)

	batchCmd := &cobra.Command{
		Use:   "batch <image.bin>...",
		Short: "Run several images concurrently, each in its own emulator",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runBatch,
	}
	batchCmd.Flags().Uint64Var(&dramSize, "dram", 1<<20, "DRAM capacity per job, in bytes")
	batchCmd.Flags().IntVarP(&maxInsn, "num", "n", 100000, "max cycles per job")
	rootCmd.AddCommand(batchCmd)

	debugCmd := &cobra.Command{
		Use:   "debug <image.bin>",
		Short: "Step an image, stopping when a breakpoint predicate matches",
		Args:  cobra.ExactArgs(1),
		RunE:  runDebug,
	}
	debugCmd.Flags().Uint64Var(&dramSize, "dram", 1<<20, "DRAM capacity in bytes")
	debugCmd.Flags().StringVar(&breakExpr, "break", "", "JavaScript breakpoint predicate, e.g. cpu.pc === 0x80000020")
	debugCmd.Flags().IntVarP(&maxInsn, "num", "n", 1000000, "max cycles before giving up")
	rootCmd.AddCommand(debugCmd)

	monitorCmd := &cobra.Command{
		Use:   "monitor <image.bin>",
		Short: "Open an interactive register/CSR viewer",
		Args:  cobra.ExactArgs(1),
		RunE:  runMonitor,
	}
	monitorCmd.Flags().Uint64Var(&dramSize, "dram", 1<<20, "DRAM capacity in bytes")
	rootCmd.AddCommand(monitorCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

type outputWriter struct {
	ch        chan string
	done      chan struct{}
	writer    *bufio.Writer
	closeOnce sync.Once
}

func newOutputWriter() *outputWriter {
	w := &outputWriter{
		ch:     make(chan string, 2048),
		done:   make(chan struct{}),
		writer: bufio.NewWriterSize(os.Stdout, 64*1024),
	}
	go w.run()
	return w
}

func (w *outputWriter) run() {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case line, ok := <-w.ch:
			if !ok {
				w.writer.Flush()
				close(w.done)
				return
			}
			w.writer.WriteString(line)
			w.writer.WriteByte('\n')
		case <-ticker.C:
			w.writer.Flush()
		}
	}
}

func (w *outputWriter) Write(line string) {
	select {
	case w.ch <- line:
	default:
	}
}

func (w *outputWriter) Close() {
	w.closeOnce.Do(func() {
		close(w.ch)
		<-w.done
	})
}

type traceCollector struct {
	mu     sync.Mutex
	events []*trace.Event
}

func (tc *traceCollector) Add(e *trace.Event) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.events = append(tc.events, e)
}

func (tc *traceCollector) TakeAll() []*trace.Event {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	events := tc.events
	tc.events = nil
	return events
}

// categoryOf maps a decoded opcode byte to the trace category tag used by
// the run command's per-line trace.
func categoryOf(inst uint64) trace.Tag {
	switch inst & 0x7f {
	case 0x13, 0x33:
		return trace.ALU
	case 0x23:
		return trace.Store
	case 0x63:
		return trace.Branch
	case 0x67, 0x6f:
		return trace.Jump
	case 0x73:
		if (inst>>12)&0x7 == 0 {
			return trace.System
		}
		return trace.CSR
	default:
		return trace.Illegal
	}
}

func formatLine(pc uint64, word uint32, dis string, events []*trace.Event) string {
	var b strings.Builder
	b.Grow(128)

	b.WriteString(colorize.Address(pc))
	b.WriteString("  ")

	hexBytes := fmt.Sprintf("%02X%02X%02X%02X", byte(word), byte(word>>8), byte(word>>16), byte(word>>24))
	b.WriteString(colorize.HexBytes(hexBytes))
	b.WriteString("  ")

	b.WriteString(colorize.Instruction(dis))

	const insnCol = 46
	visible := 8 + 2 + 8 + 2 + len(dis)
	for visible < insnCol {
		b.WriteByte(' ')
		visible++
	}

	var tags []string
	for _, e := range events {
		tags = append(tags, e.Tags.Strings()...)
	}
	if len(tags) > 0 {
		comment := "; " + strings.Join(tags, " ")
		b.WriteString(colorize.Comment(comment))
	}

	return b.String()
}

func printHeader(w *outputWriter, imagePath string, dramBytes uint64) {
	if cwd, err := os.Getwd(); err == nil {
		if rel, err := filepath.Rel(cwd, imagePath); err == nil && !strings.HasPrefix(rel, "..") {
			imagePath = rel
		}
	}
	w.Write("")
	w.Write(fmt.Sprintf("%s rv64emu ─ RV64 single-hart trace", colorize.Header("▶")))
	w.Write(fmt.Sprintf("  %s %s", colorize.Detail("Loading:"), imagePath))
	w.Write(fmt.Sprintf("  %s %s  %s %s",
		colorize.Detail("Base:"), colorize.Address(core.DRAMBase),
		colorize.Detail("DRAM:"), colorize.FuncName(fmt.Sprintf("%d bytes", dramBytes))))
	w.Write("")
}

func printTrapDiagnostic(w *outputWriter, pc uint64, word uint32, ex core.Exception, kind core.TrapKind) {
	w.Write("")
	w.Write(colorize.Error(fmt.Sprintf("trap: %s at pc=%#018x inst=%#08x class=%s",
		ex.Error(), pc, word, kind)))
}

func loadImage(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return data, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	if verbose {
		olog.Init(true)
	} else {
		olog.Init(false)
	}

	image, err := loadImage(args[0])
	if err != nil {
		return err
	}

	emu := core.NewEmu(dramSize).WithDRAM(image).WithPC(core.DRAMBase)

	w := newOutputWriter()
	defer w.Close()
	if !quiet {
		printHeader(w, args[0], dramSize)
	}

	collector := &traceCollector{}
	start := uint64(core.DRAMBase)
	end := core.DRAMBase + uint64(len(image))

	var count int
	var exitCode int
	for count = 0; count < maxInsn; count++ {
		pc := emu.PC()
		if pc < start || pc >= end {
			break
		}

		word, err := emu.Cycle()
		if err != nil {
			ex, ok := err.(core.Exception)
			if !ok {
				return err
			}
			kind := emu.CatchException(ex)
			olog.L.Fault(pc, ex.Cause(), kind.String())
			olog.L.Delivered(emu.CSRAt(core.CSRMtvec) &^ 1)
			if !quiet {
				printTrapDiagnostic(w, pc, uint32(word), ex, kind)
			}
			e := trace.NewEvent(pc, string(trace.Trap), ex.Error(), "")
			trace.DefaultEnricher(e)
			collector.Add(e)
			if kind == core.Fatal {
				exitCode = 1
				break
			}
			continue
		}

		cat := categoryOf(word)
		if cat == trace.CSR {
			csrAddr := (word >> 20) & 0xfff
			olog.L.CSRWrite(csrAddr, emu.CSRAt(csrAddr))
		}
		if !quiet {
			dis := core.Disassemble(word)
			e := trace.NewEvent(pc, string(cat), dis, "")
			trace.DefaultEnricher(e)
			collector.Add(e)
			w.Write(formatLine(pc, uint32(word), dis, []*trace.Event{e}))
		}
	}

	w.Close()
	traps := 0
	for _, e := range collector.TakeAll() {
		if e.Tags.Primary() == trace.Trap {
			traps++
		}
	}
	fmt.Println()
	fmt.Print(colorize.Border("───────────────────────── "))
	fmt.Printf("%s insn  %s traps  %s final pc\n",
		colorize.FuncName(fmt.Sprintf("%d", count)),
		colorize.FuncName(fmt.Sprintf("%d", traps)),
		colorize.Address(emu.PC()))

	if snapPath != "" {
		data, err := snapshot.Encode(emu.CPU)
		if err != nil {
			return fmt.Errorf("encode snapshot: %w", err)
		}
		if err := os.WriteFile(snapPath, data, 0o644); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
	}

	if exitCode != 0 {
		os.Exit(exitCode)
	}
	return nil
}

func runInfo(cmd *cobra.Command, args []string) error {
	image, err := loadImage(args[0])
	if err != nil {
		return err
	}

	emu := core.NewEmu(uint64(len(image))).WithDRAM(image).WithPC(core.DRAMBase)

	fmt.Printf("Image:  %s\n", filepath.Base(args[0]))
	fmt.Printf("Size:   %d bytes (%d words)\n", len(image), len(image)/4)
	fmt.Printf("Base:   %#x\n", core.DRAMBase)
	fmt.Printf("End:    %#x\n", core.DRAMBase+uint64(len(image)))
	fmt.Printf("x2 (sp): %#x\n", emu.Xreg(2))
	fmt.Printf("x11:     %#x (pointer to DTB)\n", emu.Xreg(11))
	fmt.Printf("mode:    %s\n", emu.ModeOf())

	if len(image) >= 4 {
		first := binary.LittleEndian.Uint32(image[:4])
		fmt.Printf("first insn: %s\n", core.Disassemble(uint64(first)))
	}
	return nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	jobs := make([]fleet.Job, 0, len(args))
	for _, path := range args {
		image, err := loadImage(path)
		if err != nil {
			return err
		}
		jobs = append(jobs, fleet.Job{
			ID:        uuid.New(),
			Label:     filepath.Base(path),
			Image:     image,
			DRAMBytes: dramSize,
			MaxCycles: uint64(maxInsn),
		})
	}

	bar := progressbar.Default(int64(len(jobs)))
	defer bar.Close()

	results, err := fleet.Run(context.Background(), jobs, 0, func(fleet.Result) {
		bar.Add(1)
	})
	if err != nil {
		return err
	}

	exitCode := 0
	for _, r := range results {
		status := "ok"
		if r.Err != nil {
			status = "error: " + r.Err.Error()
			exitCode = 1
		} else if r.Trap != nil && r.TrapKind == core.Fatal {
			status = "fatal: " + r.Trap.Error()
			exitCode = 1
		}
		fmt.Printf("%-24s cycles=%-8d pc=%#018x  %s\n", r.Label, r.Cycles, r.FinalPC, status)
	}

	if exitCode != 0 {
		os.Exit(exitCode)
	}
	return nil
}

func runDebug(cmd *cobra.Command, args []string) error {
	image, err := loadImage(args[0])
	if err != nil {
		return err
	}
	if breakExpr == "" {
		return fmt.Errorf("debug: --break predicate is required")
	}
	pred, err := script.Compile(breakExpr)
	if err != nil {
		return err
	}

	emu := core.NewEmu(dramSize).WithDRAM(image).WithPC(core.DRAMBase)
	start := uint64(core.DRAMBase)
	end := core.DRAMBase + uint64(len(image))

	for cycles := uint64(0); cycles < uint64(maxInsn); cycles++ {
		pc := emu.PC()
		if pc < start || pc >= end {
			fmt.Printf("left image bounds at pc=%#018x after %d cycles\n", pc, cycles)
			return nil
		}

		hit, err := pred.Eval(emu.CPU, cycles)
		if err != nil {
			return fmt.Errorf("debug: breakpoint eval: %w", err)
		}
		if hit {
			fmt.Printf("breakpoint hit at pc=%#018x, cycle=%d, mode=%s\n", pc, cycles, emu.ModeOf())
			return nil
		}

		if _, err := emu.Cycle(); err != nil {
			ex, ok := err.(core.Exception)
			if !ok {
				return err
			}
			kind := emu.CatchException(ex)
			fmt.Printf("trap at pc=%#018x: %s (class=%s)\n", pc, ex.Error(), kind)
			if kind == core.Fatal {
				os.Exit(1)
			}
		}
	}

	fmt.Printf("cycle budget exhausted without hitting breakpoint\n")
	return nil
}

func runMonitor(cmd *cobra.Command, args []string) error {
	image, err := loadImage(args[0])
	if err != nil {
		return err
	}
	emu := core.NewEmu(dramSize).WithDRAM(image).WithPC(core.DRAMBase)
	return monitor.Run(emu)
}

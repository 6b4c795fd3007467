package core

// Emulator is the thin façade a host drives: construct with a DRAM
// capacity, load an image, set pc, then call Cycle repeatedly.
type Emulator struct {
	CPU *CPU
}

// NewEmu constructs an emulator with a zero-filled DRAM of ramBytes
// capacity and a fresh boot-state CPU.
func NewEmu(ramBytes uint64) *Emulator {
	return &Emulator{CPU: NewCPU(NewBus(ramBytes))}
}

// WithDRAM splices image into DRAM starting at offset 0.
func (e *Emulator) WithDRAM(image []byte) *Emulator {
	e.CPU.Bus.DRAM.Init(image)
	return e
}

// WithPC sets the program counter.
func (e *Emulator) WithPC(pc uint64) *Emulator {
	e.CPU.PC = pc
	return e
}

// Cycle advances the TIME counter and executes one instruction. On an
// exception, the host may call CatchException to finalize the trap.
func (e *Emulator) Cycle() (uint64, error) {
	e.CPU.CSR.CycleTime()
	return e.CPU.Execute()
}

// CatchException finalizes a trap reported by Cycle and returns its
// classification.
func (e *Emulator) CatchException(ex Exception) TrapKind {
	return e.CPU.CatchException(ex)
}

// PC, ModeOf, Xreg, CSRAt, and DRAM are plain observers over CPU state,
// matching the external-interface contract: the host may inspect but must
// not hold a reference across the next Cycle call.
func (e *Emulator) PC() uint64            { return e.CPU.PC }
func (e *Emulator) ModeOf() Mode          { return e.CPU.Mode }
func (e *Emulator) Xreg(i uint64) uint64  { return e.CPU.X.Load(i) }
func (e *Emulator) CSRAt(addr uint64) uint64 { return e.CPU.CSR.Load(addr) }
func (e *Emulator) DRAM() []byte          { return e.CPU.Bus.DRAM.Bytes() }

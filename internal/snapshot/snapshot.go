// Package snapshot implements the persistence envelope that carries a CPU
// state across a process boundary: pc, mode, the 32 integer registers, and
// the active DRAM prefix.
package snapshot

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/vrisc/rv64emu/internal/core"
)

// Envelope is the wire shape of a CPU snapshot. DRAM is trimmed of
// trailing zero bytes on encode and is zero-padded back to capacity on
// restore; callers must not rely on specific trailing bytes surviving a
// round trip.
type Envelope struct {
	PC     uint64    `yaml:"pc"`
	Mode   uint32    `yaml:"mode"`
	XRegs  [32]uint64 `yaml:"xregs"`
	DRAM   []byte     `yaml:"dram"`
}

// FromCPU captures cpu's state into an Envelope. Mode==core.Debug is a
// host-contract violation: it can never occur during normal execution, so
// observing it here means the caller handed us a corrupt CPU.
func FromCPU(cpu *core.CPU) Envelope {
	if cpu.Mode == core.Debug {
		panic("snapshot: cannot encode a CPU in Debug mode")
	}
	return Envelope{
		PC:    cpu.PC,
		Mode:  uint32(cpu.Mode),
		XRegs: cpu.X.IntoInner(),
		DRAM:  trimTrailingZeros(cpu.Bus.DRAM.Bytes()),
	}
}

// MapTo restores cpu's state from the Envelope. The DRAM prefix is copied
// in and the remainder of the backing store is zero-filled.
func (e Envelope) MapTo(cpu *core.CPU) {
	mode := core.Mode(e.Mode)
	if mode == core.Debug {
		panic("snapshot: cannot map a Debug-mode envelope onto a CPU")
	}

	cpu.PC = e.PC
	for i, v := range e.XRegs {
		cpu.X.Store(uint64(i), v)
	}
	cpu.Mode = mode
	cpu.Bus.DRAM.Init(e.DRAM)
}

// Encode renders the envelope as YAML.
func Encode(cpu *core.CPU) ([]byte, error) {
	return yaml.Marshal(FromCPU(cpu))
}

// Decode parses a YAML-encoded envelope and maps it onto cpu.
func Decode(data []byte, cpu *core.CPU) error {
	var e Envelope
	if err := yaml.Unmarshal(data, &e); err != nil {
		return fmt.Errorf("snapshot: decode: %w", err)
	}
	e.MapTo(cpu)
	return nil
}

func trimTrailingZeros(b []byte) []byte {
	end := len(b)
	for end > 0 && b[end-1] == 0 {
		end--
	}
	out := make([]byte, end)
	copy(out, b[:end])
	return out
}

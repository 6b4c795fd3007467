// Package script hosts JavaScript breakpoint predicates via goja. A
// predicate is a snippet that reads the exposed cpu object and returns a
// boolean; the debug loop evaluates it once per cycle and stops when it
// returns true.
package script

import (
	"fmt"

	"github.com/dop251/goja"

	"github.com/vrisc/rv64emu/internal/core"
)

// Predicate wraps a compiled breakpoint condition bound to one goja
// runtime. Runtimes are not safe for concurrent use, so each Predicate
// owns its own.
type Predicate struct {
	vm      *goja.Runtime
	program *goja.Program
	snap    *cpuView
}

// cpuView is the object exposed to script code as `cpu`. It is a
// read-only snapshot refreshed before each evaluation, not a live handle
// into the emulator: scripts cannot mutate CPU state.
type cpuView struct {
	PC     uint64   `json:"pc"`
	Mode   string   `json:"mode"`
	X      []uint64 `json:"x"`
	Cycles uint64   `json:"cycles"`
}

// Compile parses src as a JavaScript expression or statement block whose
// completion value Eval reads as a boolean.
func Compile(src string) (*Predicate, error) {
	program, err := goja.Compile("breakpoint", src, false)
	if err != nil {
		return nil, fmt.Errorf("script: compile: %w", err)
	}

	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	p := &Predicate{vm: vm, program: program, snap: &cpuView{}}

	if err := vm.Set("cpu", p.snap); err != nil {
		return nil, fmt.Errorf("script: bind cpu: %w", err)
	}
	return p, nil
}

// Eval refreshes the exposed cpu view from cpu and the given cycle count,
// then runs the compiled predicate. The result is coerced to a boolean the
// same way a JavaScript `if` would; a non-boolean result is not an error.
func (p *Predicate) Eval(cpu *core.CPU, cycles uint64) (bool, error) {
	p.snap.PC = cpu.PC
	p.snap.Mode = cpu.Mode.String()
	p.snap.Cycles = cycles
	regs := cpu.X.IntoInner()
	p.snap.X = regs[:]

	v, err := p.vm.RunProgram(p.program)
	if err != nil {
		return false, fmt.Errorf("script: eval: %w", err)
	}
	return v.ToBoolean(), nil
}

// MustCompile is like Compile but panics on error, for use with
// compile-time-known predicate strings (e.g. CLI defaults, tests).
func MustCompile(src string) *Predicate {
	p, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return p
}

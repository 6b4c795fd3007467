package monitor

import (
	"encoding/binary"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vrisc/rv64emu/internal/core"
)

func encodeWords(words ...uint32) []byte {
	buf := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[4*i:], w)
	}
	return buf
}

func TestStepKeyAdvancesCycle(t *testing.T) {
	image := encodeWords(0x00500093) // addi x1,x0,5
	emu := core.NewEmu(1 << 12).WithDRAM(image).WithPC(core.DRAMBase)
	m := New(emu)

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")})
	mm := next.(Model)

	if mm.Emu.Xreg(1) != 5 {
		t.Fatalf("x1 = %d, want 5 after step", mm.Emu.Xreg(1))
	}
	if mm.lastInst == "" {
		t.Fatal("expected lastInst to be populated after step")
	}
}

func TestQuitKeySetsQuitAndReturnsQuitCmd(t *testing.T) {
	emu := core.NewEmu(1 << 10)
	m := New(emu)

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	mm := next.(Model)
	if !mm.quit {
		t.Fatal("expected quit to be set")
	}
	if cmd == nil {
		t.Fatal("expected a tea.Quit command")
	}
}

func TestViewRendersRegistersAndPC(t *testing.T) {
	emu := core.NewEmu(1 << 10)
	m := New(emu)

	out := m.View()
	if !strings.Contains(out, "pc") || !strings.Contains(out, "x0") {
		t.Fatalf("view missing expected fields: %q", out)
	}
}

func TestViewEmptyAfterQuit(t *testing.T) {
	emu := core.NewEmu(1 << 10)
	m := New(emu)
	m.quit = true

	if out := m.View(); out != "" {
		t.Fatalf("expected empty view after quit, got %q", out)
	}
}

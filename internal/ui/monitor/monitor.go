// Package monitor is an interactive Bubble Tea viewer for a running
// emulator: program counter, privilege mode, integer registers, and the
// named CSRs, refreshed one step at a time.
package monitor

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/vrisc/rv64emu/internal/core"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFC800"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#87CEEB"))
	trapStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF80C0"))
)

// keyMap declares the monitor's bindings via bubbles/key so Matches can
// recognise a key's aliases (space doubling as step) instead of the
// model hand-rolling string comparisons per key.
type keyMap struct {
	Step key.Binding
	Quit key.Binding
}

var keys = keyMap{
	Step: key.NewBinding(key.WithKeys("s", " "), key.WithHelp("s/space", "step one cycle")),
	Quit: key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// Model is the Bubble Tea model driving the monitor view. Update advances
// the embedded Emulator one cycle on the step key or a Step message,
// delivering any trap through CatchException; View renders whatever state
// the Emulator currently holds.
type Model struct {
	Emu      *core.Emulator
	lastTrap error
	lastInst string
	quit     bool
}

// New builds a monitor bound to emu.
func New(emu *core.Emulator) Model {
	return Model{Emu: emu}
}

// Step message requests the emulator advance one cycle.
type Step struct{}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	step := false
	switch msg := msg.(type) {
	case Step:
		step = true
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quit = true
			return m, tea.Quit
		case key.Matches(msg, keys.Step):
			step = true
		}
	}
	if step {
		word, err := m.Emu.Cycle()
		m.lastInst = core.Disassemble(word)
		m.lastTrap = nil
		if err != nil {
			if ex, ok := err.(core.Exception); ok {
				m.Emu.CatchException(ex)
				m.lastTrap = ex
			} else {
				m.lastTrap = err
			}
		}
	}
	return m, nil
}

func (m Model) View() string {
	if m.quit {
		return ""
	}

	var b strings.Builder
	fmt.Fprintln(&b, headerStyle.Render("rv64emu monitor"))
	fmt.Fprintf(&b, "%s %s  %s %s\n",
		labelStyle.Render("pc"), valueStyle.Render(fmt.Sprintf("%#018x", m.Emu.PC())),
		labelStyle.Render("mode"), valueStyle.Render(m.Emu.ModeOf().String()))

	if m.lastInst != "" {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("last"), valueStyle.Render(m.lastInst))
	}
	if m.lastTrap != nil {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("trap"), trapStyle.Render(m.lastTrap.Error()))
	}

	b.WriteString("\n")
	for row := 0; row < 8; row++ {
		for col := 0; col < 4; col++ {
			i := uint64(row + col*8)
			fmt.Fprintf(&b, "%s %s  ",
				labelStyle.Render(fmt.Sprintf("x%-2d", i)),
				valueStyle.Render(fmt.Sprintf("%016x", m.Emu.Xreg(i))))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "%s %s  %s %s\n",
		labelStyle.Render("mcause"), valueStyle.Render(fmt.Sprintf("%d", m.Emu.CSRAt(core.CSRMcause))),
		labelStyle.Render("mepc"), valueStyle.Render(fmt.Sprintf("%#018x", m.Emu.CSRAt(core.CSRMepc))))

	fmt.Fprintf(&b, "\n%s\n", labelStyle.Render(fmt.Sprintf("[%s] %s  [%s] %s",
		keys.Step.Help().Key, keys.Step.Help().Desc,
		keys.Quit.Help().Key, keys.Quit.Help().Desc)))
	return b.String()
}

// Run launches the interactive monitor bound to emu. It refuses to start
// against a non-interactive stdout, since there is nothing useful to
// render a frame into.
func Run(emu *core.Emulator) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("monitor: stdout is not a terminal")
	}
	_, err := tea.NewProgram(New(emu)).Run()
	return err
}

package snapshot

import (
	"testing"

	"github.com/vrisc/rv64emu/internal/core"
)

func TestRoundTrip(t *testing.T) {
	src := core.NewEmu(1 << 16)
	src.WithDRAM([]byte{1, 2, 3, 0, 0, 0}).WithPC(core.DRAMBase + 8)
	src.CPU.X.Store(5, 0xfeedface)

	env := FromCPU(src.CPU)
	if len(env.DRAM) != 3 {
		t.Fatalf("trimmed DRAM length = %d, want 3", len(env.DRAM))
	}

	dst := core.NewEmu(1 << 16)
	env.MapTo(dst.CPU)

	if dst.PC() != src.PC() {
		t.Fatalf("pc mismatch: %#x vs %#x", dst.PC(), src.PC())
	}
	if dst.ModeOf() != src.ModeOf() {
		t.Fatalf("mode mismatch")
	}
	if dst.Xreg(5) != 0xfeedface {
		t.Fatalf("x5 mismatch: %#x", dst.Xreg(5))
	}

	got := dst.DRAM()[:6]
	want := []byte{1, 2, 3, 0, 0, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("dram[%d] = %d, want %d (zero-padded restore)", i, got[i], want[i])
		}
	}
}

func TestDebugModePanics(t *testing.T) {
	e := core.NewEmu(1 << 10)
	e.CPU.Mode = core.Debug
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic encoding a Debug-mode CPU")
		}
	}()
	FromCPU(e.CPU)
}

func TestEncodeDecodeYAML(t *testing.T) {
	src := core.NewEmu(1 << 12)
	src.WithPC(core.DRAMBase)
	data, err := Encode(src.CPU)
	if err != nil {
		t.Fatal(err)
	}

	dst := core.NewEmu(1 << 12)
	if err := Decode(data, dst.CPU); err != nil {
		t.Fatal(err)
	}
	if dst.PC() != src.PC() {
		t.Fatalf("pc mismatch after yaml round trip")
	}
}

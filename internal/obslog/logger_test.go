package obslog

import (
	"testing"

	"go.uber.org/zap"
)

func TestTraceInvokesCallback(t *testing.T) {
	l := NewNop()

	var gotPC uint64
	var gotCat, gotName, gotDetail string
	l.SetOnTrace(func(pc uint64, category, name, detail string) {
		gotPC, gotCat, gotName, gotDetail = pc, category, name, detail
	})

	l.Trace(0x8000_0004, "alu", "addi", "x1,x0,5")

	if gotPC != 0x8000_0004 || gotCat != "alu" || gotName != "addi" || gotDetail != "x1,x0,5" {
		t.Fatalf("callback got (%#x,%s,%s,%s), want (0x80000004,alu,addi,x1,x0,5)", gotPC, gotCat, gotName, gotDetail)
	}
}

func TestTraceSimpleUsesZeroPC(t *testing.T) {
	l := NewNop()

	var gotPC uint64 = 0xdead
	l.SetOnTrace(func(pc uint64, category, name, detail string) {
		gotPC = pc
	})
	l.TraceSimple("system", "ecall", "")

	if gotPC != 0 {
		t.Fatalf("pc = %#x, want 0", gotPC)
	}
}

func TestFieldHelpersProduceExpectedKeys(t *testing.T) {
	fields := []struct {
		name string
		f    zap.Field
	}{
		{"addr", Addr(0x8000_0010)},
		{"size", Size(32)},
		{"dtb", Ptr("dtb", 0x1020)},
		{"fn", Fn("addi")},
	}
	for _, tc := range fields {
		if tc.f.Key != tc.name {
			t.Fatalf("field key = %q, want %q", tc.f.Key, tc.name)
		}
	}
}

func TestWithCategoryPreservesOnTrace(t *testing.T) {
	l := NewNop()
	var gotCat string
	l.SetOnTrace(func(pc uint64, category, name, detail string) {
		gotCat = category
	})

	sub := l.WithCategory("csr")
	sub.Trace(0, "csr", "csrrw", "")

	if gotCat != "csr" {
		t.Fatalf("onTrace callback not preserved across WithCategory: got %q", gotCat)
	}
}

func TestHexFormatsLowercaseNoLeadingZeros(t *testing.T) {
	cases := map[uint64]string{
		0:               "0x0",
		0x80000000:      "0x80000000",
		0xdeadbeef:      "0xdeadbeef",
		1:               "0x1",
	}
	for in, want := range cases {
		if got := Hex(in); got != want {
			t.Fatalf("Hex(%#x) = %s, want %s", in, got, want)
		}
	}
}

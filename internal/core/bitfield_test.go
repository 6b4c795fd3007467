package core

import "testing"

func TestSliceAndImmJAL(t *testing.T) {
	inst := uint64(0x420daa6f) // jal x20, 893984

	want := uint64(int64(int32(inst&0x80000000))>>11) |
		(inst & 0xff000) |
		((inst >> 9) & 0x800) |
		((inst >> 20) & 0x7fe)

	got := Imm(inst>>12, br(20, 20), br(10, 1), br(11, 11), br(19, 12))
	if got != want {
		t.Fatalf("Imm(jal) = %#x, want %#x", got, want)
	}
}

func TestSliceAndImmBranch(t *testing.T) {
	cases := []struct {
		inst uint64
		want uint64
	}{
		{0x4c000963, 1234}, // beq x0, x0, 1234
		{0x0a0057e3, 2222}, // bge x0, x0, 2222
		{0x00000063, 0},    // beq x0, x0, 0
	}
	for _, c := range cases {
		combined := Slice(c.inst, br(31, 25), br(11, 7))
		got := Imm(combined, br(12, 12), br(10, 5), br(4, 1), br(11, 11))
		if got != c.want {
			t.Fatalf("branch imm(%#x) = %d, want %d", c.inst, got, c.want)
		}
	}
}

func TestSliceStoreImm(t *testing.T) {
	inst := uint64(0x4c000923) // sb x0, 1234(x0)
	got := Slice(inst, br(31, 25), br(11, 7))
	if got != 1234 {
		t.Fatalf("store imm = %d, want 1234", got)
	}
}

func TestSliceAUIPCStyle(t *testing.T) {
	cases := []struct {
		inst uint64
		want uint64
	}{
		{0x297, 0},
		{0x2cf79017, 184185},
	}
	for _, c := range cases {
		got := Slice(c.inst, br(31, 12))
		if got != c.want {
			t.Fatalf("Slice(%#x) = %d, want %d", c.inst, got, c.want)
		}
	}
}

func TestSext(t *testing.T) {
	if sext(0xfff, 12) != uint64(^uint64(0)) {
		t.Fatalf("sext(0xfff,12) should sign-extend to all-ones")
	}
	if sext(0x7ff, 12) != 0x7ff {
		t.Fatalf("sext of a positive field must not flip sign")
	}
}

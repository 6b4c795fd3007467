package core

import "fmt"

// regName renders a register lane the way RISC-V assembly listings do.
func regName(i uint64) string {
	return fmt.Sprintf("x%d", i&0x1f)
}

// Disassemble renders a decoded instruction word as a short mnemonic
// string, for the trace renderer and the interactive debugger. It mirrors
// decodeExecute's field extraction but performs no side effects and never
// fails: an unrecognised encoding renders as "illegal".
func Disassemble(inst uint64) string {
	opcode := inst & 0x7f
	rd := (inst >> 7) & 0x1f
	funct3 := (inst >> 12) & 0x7
	rs1 := (inst >> 15) & 0x1f
	rs2 := (inst >> 20) & 0x1f
	funct7 := (inst >> 25) & 0x7f

	switch opcode {
	case 0x13:
		imm := int64(int32(inst)) >> 20
		switch funct3 {
		case 0:
			return fmt.Sprintf("addi %s, %s, %d", regName(rd), regName(rs1), imm)
		case 1:
			return fmt.Sprintf("slli %s, %s, %d", regName(rd), regName(rs1), (inst>>20)&0x3f)
		case 2:
			return fmt.Sprintf("slti %s, %s, %d", regName(rd), regName(rs1), imm)
		case 3:
			return fmt.Sprintf("sltiu %s, %s, %d", regName(rd), regName(rs1), imm)
		case 4:
			return fmt.Sprintf("xori %s, %s, %d", regName(rd), regName(rs1), imm)
		case 5:
			switch (inst >> 26) & 0x3f {
			case 0x10:
				return fmt.Sprintf("srai %s, %s, %d", regName(rd), regName(rs1), (inst>>20)&0x3f)
			case 0x00:
				return fmt.Sprintf("srli %s, %s, %d", regName(rd), regName(rs1), (inst>>20)&0x3f)
			}
		case 6:
			return fmt.Sprintf("ori %s, %s, %d", regName(rd), regName(rs1), imm)
		case 7:
			return fmt.Sprintf("andi %s, %s, %d", regName(rd), regName(rs1), imm)
		}
	case 0x23:
		raw := Slice(inst, br(31, 25), br(11, 7))
		imm := int64(sext(raw, 12))
		mn := [...]string{"sb", "sh", "sw", "sd"}
		if funct3 < 4 {
			return fmt.Sprintf("%s %s, %d(%s)", mn[funct3], regName(rs2), imm, regName(rs1))
		}
	case 0x33:
		if funct3 == 0 && funct7 == 0 {
			return fmt.Sprintf("add %s, %s, %s", regName(rd), regName(rs1), regName(rs2))
		}
	case 0x63:
		combined := Slice(inst, br(31, 25), br(11, 7))
		scattered := Imm(combined, br(12, 12), br(10, 5), br(4, 1), br(11, 11))
		imm := int64(sext(scattered, 13))
		mn := map[uint64]string{0: "beq", 1: "bne", 4: "blt", 5: "bge", 6: "bltu", 7: "bgeu"}
		if name, ok := mn[funct3]; ok {
			return fmt.Sprintf("%s %s, %s, %+d", name, regName(rs1), regName(rs2), imm)
		}
	case 0x67:
		imm := int64(int32(inst)) >> 20
		return fmt.Sprintf("jalr %s, %s, %d", regName(rd), regName(rs1), imm)
	case 0x6f:
		raw := Imm(inst>>12, br(20, 20), br(10, 1), br(11, 11), br(19, 12))
		imm := int64(sext(raw, 21))
		return fmt.Sprintf("jal %s, %+d", regName(rd), imm)
	case 0x73:
		switch funct3 {
		case 0:
			switch {
			case rs2 == 0 && funct7 == 0:
				return "ecall"
			case rs2 == 1 && funct7 == 0:
				return "ebreak"
			}
		case 1:
			return fmt.Sprintf("csrrw %s, %#x, %s", regName(rd), (inst>>20)&0xfff, regName(rs1))
		case 2:
			return fmt.Sprintf("csrrs %s, %#x, %s", regName(rd), (inst>>20)&0xfff, regName(rs1))
		case 3:
			return fmt.Sprintf("csrrc %s, %#x, %s", regName(rd), (inst>>20)&0xfff, regName(rs1))
		case 5:
			return fmt.Sprintf("csrrwi %s, %#x, %d", regName(rd), (inst>>20)&0xfff, rs1)
		case 6:
			return fmt.Sprintf("csrrsi %s, %#x, %d", regName(rd), (inst>>20)&0xfff, rs1)
		case 7:
			return fmt.Sprintf("csrrci %s, %#x, %d", regName(rd), (inst>>20)&0xfff, rs1)
		}
	}
	return fmt.Sprintf("illegal %#08x", inst)
}

package core

// decodeExecute extracts the opcode/funct/register/immediate fields of a
// 32-bit instruction word and performs its semantics against c. It returns
// a non-nil Exception for any illegal encoding or faulting memory access;
// the caller (CPU.Execute) is responsible for pc bookkeeping.
func decodeExecute(c *CPU, inst uint64) error {
	opcode := inst & 0x7f
	rd := (inst >> 7) & 0x1f
	funct3 := (inst >> 12) & 0x7
	rs1 := (inst >> 15) & 0x1f
	rs2 := (inst >> 20) & 0x1f
	funct7 := (inst >> 25) & 0x7f

	switch opcode {
	case 0x13:
		return execOpImm(c, inst, rd, funct3, rs1)
	case 0x23:
		return execStore(c, inst, funct3, rs1, rs2)
	case 0x33:
		if funct3 == 0 && funct7 == 0x00 {
			c.X.Store(rd, c.X.Load(rs1)+c.X.Load(rs2))
			return nil
		}
		return Exception{Kind: IllegalInst, Val: inst}
	case 0x63:
		return execBranch(c, inst, funct3, rs1, rs2)
	case 0x67:
		imm := uint64(int64(int32(inst)) >> 20)
		target := (c.X.Load(rs1) + imm) &^ 1
		c.X.Store(rd, c.PC+4)
		c.PC = target - 4
		return nil
	case 0x6f:
		raw := Imm(inst>>12, br(20, 20), br(10, 1), br(11, 11), br(19, 12))
		imm := sext(raw, 21)
		c.X.Store(rd, c.PC+4)
		c.PC = c.PC + imm - 4
		return nil
	case 0x73:
		return execSystem(c, inst, rd, funct3, rs1, rs2, funct7)
	default:
		return Exception{Kind: IllegalInst, Val: inst}
	}
}

func execOpImm(c *CPU, inst, rd, funct3, rs1 uint64) error {
	imm := uint64(int64(int32(inst)) >> 20)
	r1 := c.X.Load(rs1)
	shamt := (inst >> 20) & 0x3f

	switch funct3 {
	case 0: // addi
		c.X.Store(rd, r1+imm)
	case 1: // slli
		c.X.Store(rd, r1<<shamt)
	case 2: // slti
		c.X.Store(rd, boolToU64(int64(r1) < int64(imm)))
	case 3: // sltiu
		c.X.Store(rd, boolToU64(r1 < imm))
	case 4: // xori
		c.X.Store(rd, r1^imm)
	case 5:
		funct6 := (inst >> 26) & 0x3f
		switch funct6 {
		case 0x00: // srli
			c.X.Store(rd, r1>>shamt)
		case 0x10: // srai
			c.X.Store(rd, uint64(int64(r1)>>shamt))
		default:
			return Exception{Kind: IllegalInst, Val: inst}
		}
	case 6: // ori
		c.X.Store(rd, r1|imm)
	case 7: // andi
		c.X.Store(rd, r1&imm)
	}
	return nil
}

func execStore(c *CPU, inst, funct3, rs1, rs2 uint64) error {
	raw := Slice(inst, br(31, 25), br(11, 7))
	imm := sext(raw, 12)
	addr := c.X.Load(rs1) + imm
	val := c.X.Load(rs2)

	switch funct3 {
	case 0:
		return c.Store(addr, val, 8)
	case 1:
		return c.Store(addr, val, 16)
	case 2:
		return c.Store(addr, val, 32)
	case 3:
		return c.Store(addr, val, 64)
	default:
		return Exception{Kind: IllegalInst, Val: inst}
	}
}

func execBranch(c *CPU, inst, funct3, rs1, rs2 uint64) error {
	combined := Slice(inst, br(31, 25), br(11, 7))
	scattered := Imm(combined, br(12, 12), br(10, 5), br(4, 1), br(11, 11))
	imm := sext(scattered, 13)

	a, b := c.X.Load(rs1), c.X.Load(rs2)
	var taken bool
	switch funct3 {
	case 0: // beq
		taken = a == b
	case 1: // bne
		taken = a != b
	case 4: // blt
		taken = int64(a) < int64(b)
	case 5: // bge
		taken = int64(a) >= int64(b)
	case 6: // bltu
		taken = a < b
	case 7: // bgeu
		taken = a >= b
	default:
		return Exception{Kind: IllegalInst, Val: inst}
	}

	if taken {
		c.PC = c.PC + imm - 4
	}
	return nil
}

func execSystem(c *CPU, inst, rd, funct3, rs1, rs2, funct7 uint64) error {
	switch funct3 {
	case 0:
		switch {
		case rs2 == 0 && funct7 == 0: // ecall
			switch c.Mode {
			case User:
				return Exception{Kind: ECallUser}
			case Supervisor:
				return Exception{Kind: ECallSuper}
			case Machine:
				return Exception{Kind: ECallMachine}
			default:
				return Exception{Kind: IllegalInst, Val: inst}
			}
		case rs2 == 1 && funct7 == 0: // ebreak
			return Exception{Kind: Breakpoint}
		default:
			// uret/sret/mret and anything else at funct3=0: their
			// reference behavior is unspecified upstream, so this
			// implementation takes the spec-sanctioned safe default.
			return Exception{Kind: IllegalInst, Val: inst}
		}
	case 1, 2, 3, 5, 6, 7:
		csrAddr := (inst >> 20) & 0xfff
		t := c.CSR.Load(csrAddr)
		r1 := c.X.Load(rs1)
		immZ := rs1

		var newVal uint64
		switch funct3 {
		case 1: // csrrw
			newVal = r1
		case 2: // csrrs
			newVal = t | r1
		case 3: // csrrc
			newVal = t &^ r1
		case 5: // csrrwi
			newVal = immZ
		case 6: // csrrsi
			newVal = t | immZ
		case 7: // csrrci
			newVal = t &^ immZ
		}
		c.CSR.Store(csrAddr, newVal)
		c.X.Store(rd, t)
		return nil
	default:
		return Exception{Kind: IllegalInst, Val: inst}
	}
}

func boolToU64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

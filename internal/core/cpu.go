package core

// AccessType distinguishes why an address is being translated, for a
// future paging implementation; the current translate step ignores it.
type AccessType int

const (
	AccessInstruction AccessType = iota
	AccessLoad
	AccessStore
)

// CPU holds the architectural state of the single hart this core models:
// program counter, privilege mode, integer registers, CSRs, and the bus
// those registers and CSRs don't already own.
type CPU struct {
	PC   uint64
	Mode Mode
	X    *RegFile
	CSR  *CSRFile
	Bus  *Bus
}

// NewCPU builds a CPU in its architectural boot state: pc=0, mode=Machine,
// x2 preset to the end of the bus's DRAM, x11 preset to the DTB pointer.
func NewCPU(bus *Bus) *CPU {
	return &CPU{
		PC:   0,
		Mode: Machine,
		X:    NewRegFile(DRAMBase + bus.DRAM.Capacity()),
		CSR:  NewCSRFile(),
		Bus:  bus,
	}
}

// Translate is the identity placeholder for virtual-to-physical address
// translation: it never fails, so paging can be added later without
// changing any caller.
func (c *CPU) Translate(vaddr uint64, _ AccessType) (uint64, error) {
	return vaddr, nil
}

// Fetch reads an instruction of the given size (16 or 32 bits only) at the
// current pc. Any bus error is rewritten to InstAccessFault so callers see
// the architecturally correct cause.
func (c *CPU) Fetch(size uint) (uint64, error) {
	if size != 16 && size != 32 {
		return 0, Exception{Kind: InstAccessFault}
	}
	paddr, _ := c.Translate(c.PC, AccessInstruction)
	v, err := c.Bus.Load(paddr, uint64(size))
	if err != nil {
		return 0, Exception{Kind: InstAccessFault}
	}
	return v, nil
}

// Execute fetches a 32-bit instruction word, dispatches it to the decoder,
// and on success advances pc by 4. On exception, pc is left unmoved so the
// faulting instruction's own address is available for trap delivery.
func (c *CPU) Execute() (uint64, error) {
	word, err := c.Fetch(32)
	if err != nil {
		return 0, err
	}
	if err := decodeExecute(c, word); err != nil {
		return word, err
	}
	c.PC += 4
	return word, nil
}

// Store translates vaddr for a store access and forwards to the bus.
func (c *CPU) Store(vaddr, value, size uint64) error {
	paddr, _ := c.Translate(vaddr, AccessStore)
	return c.Bus.Store(paddr, value, size)
}

// Load translates vaddr for a load access and forwards to the bus. Unlike
// Store, no decoded opcode in this ISA subset calls Load directly; it
// exists for host-side memory inspection.
func (c *CPU) Load(vaddr, size uint64) (uint64, error) {
	paddr, _ := c.Translate(vaddr, AccessLoad)
	return c.Bus.Load(paddr, size)
}

// CatchException finalizes a trap: it latches epc/cause/mtval, flips
// MSTATUS's interrupt-enable shadow, redirects pc to MTVEC, and returns
// the trap's classification for the host.
func (c *CPU) CatchException(ex Exception) TrapKind {
	origPC := c.PC
	epc := ex.EPC(origPC)
	cause := ex.Cause()
	mtval := ex.MTVal(origPC)
	prev := c.Mode
	if !validPrevMode(prev) {
		panic("core: trap delivery observed an invalid previous privilege mode")
	}

	if prev != Machine {
		medeleg := c.CSR.Load(CSRMedeleg)
		if (medeleg>>cause)&1 == 1 {
			// TODO: delegated handling should redirect through
			// STVEC/SEPC/SCAUSE/STVAL/SSTATUS instead of the machine-mode
			// path below. Unspecified upstream; falls through for now.
		}
	}

	c.Mode = Machine
	c.PC = c.CSR.Load(CSRMtvec) &^ 1
	c.CSR.Store(CSRMepc, epc&^1)
	c.CSR.Store(CSRMcause, cause)
	c.CSR.Store(CSRMtval, mtval)

	mstatus := c.mstatusWithMPIE(c.CSR.Load(CSRMstatus), prev)
	c.CSR.Store(CSRMstatus, mstatus)

	return ex.TrapClass()
}

func (c *CPU) mstatusWithMPIE(mstatus uint64, prev Mode) uint64 {
	mie := (mstatus >> mstatusMIE) & 1
	if mie != 0 {
		mstatus |= 1 << 7
	} else {
		mstatus &^= 1 << 7
	}
	mstatus &^= 1 << mstatusMIE
	mstatus = (mstatus &^ (uint64(0x3) << mstatusMPPLo)) | (uint64(prev) << mstatusMPPLo)
	return mstatus
}

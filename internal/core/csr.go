package core

// CSR addresses this core recognises by name.
const (
	CSRSstatus = 0x100
	CSRSedeleg = 0x102
	CSRSideleg = 0x103
	CSRSie     = 0x104
	CSRStvec   = 0x105
	CSRSepc    = 0x141
	CSRScause  = 0x142
	CSRStval   = 0x143
	CSRSip     = 0x144

	CSRTime = 0xc01

	CSRMisa    = 0x301
	CSRMstatus = 0x300
	CSRMedeleg = 0x302
	CSRMideleg = 0x303
	CSRMie     = 0x304
	CSRMtvec   = 0x305
	CSRMepc    = 0x341
	CSRMcause  = 0x342
	CSRMtval   = 0x343
	CSRMip     = 0x344
)

// MSTATUS bit positions.
const (
	mstatusSIE  = 1
	mstatusMIE  = 3
	mstatusSPIE = 5
	mstatusSPP  = 8
	mstatusMPPLo = 11
)

// sstatusMask selects the bits of MSTATUS visible through SSTATUS: SIE,
// SPIE, SPP.
const sstatusMask = uint64(1)<<mstatusSIE | uint64(1)<<mstatusSPIE | uint64(1)<<mstatusSPP

// MIP/MIE bit assignments.
const (
	mipSSIP = 1
	mipMSIP = 3
	mipSTIP = 5
	mipMTIP = 7
	mipSEIP = 9
	mipMEIP = 11
)

// CSRFile is the dense, 4096-entry control-and-status register array, with
// SSTATUS/SIE/SIP implemented as masked projections onto their
// machine-mode counterparts rather than independent storage.
type CSRFile struct {
	regs [4096]uint64
}

// NewCSRFile builds a CSR file with MISA preloaded to advertise XLEN=64
// and the I/M/A/F/D/C/S/U extensions.
func NewCSRFile() *CSRFile {
	c := &CSRFile{}
	c.regs[CSRMisa] = misaReset()
	return c
}

func misaReset() uint64 {
	ext := func(letter byte) uint64 { return 1 << (letter - 'A') }
	const mxl64 = uint64(2) << 62
	return mxl64 | ext('I') | ext('M') | ext('A') | ext('F') | ext('D') | ext('C') | ext('S') | ext('U')
}

// Load reads a CSR, resolving the S-mode shadow views.
func (c *CSRFile) Load(addr uint64) uint64 {
	addr &= 0xfff
	switch addr {
	case CSRSstatus:
		return c.regs[CSRMstatus] & sstatusMask
	case CSRSie:
		return c.regs[CSRMie] & c.regs[CSRMideleg]
	case CSRSip:
		return c.regs[CSRMip] & c.regs[CSRMideleg]
	default:
		return c.regs[addr]
	}
}

// Store writes a CSR, routing SSTATUS/SIE/SIP writes through mask-based
// rewrites of MSTATUS/MIE/MIP so the shadow invariants hold afterwards.
func (c *CSRFile) Store(addr, val uint64) {
	addr &= 0xfff
	switch addr {
	case CSRSstatus:
		c.regs[CSRMstatus] = (c.regs[CSRMstatus] &^ sstatusMask) | (val & sstatusMask)
	case CSRSie:
		mideleg := c.regs[CSRMideleg]
		c.regs[CSRMie] = (c.regs[CSRMie] &^ mideleg) | (val & mideleg)
	case CSRSip:
		ssipMask := uint64(1) << mipSSIP & c.regs[CSRMideleg]
		c.regs[CSRMip] = (c.regs[CSRMip] &^ ssipMask) | (val & ssipMask)
	default:
		c.regs[addr] = val
	}
}

// LoadBits returns bits [lo,hi] (hi inclusive) of the CSR at addr, as the
// low-order result.
func (c *CSRFile) LoadBits(addr uint64, lo, hi uint) uint64 {
	width := hi - lo + 1
	return (c.Load(addr) >> lo) & maskBits(width)
}

// StoreBits writes bits [lo,hi] (hi inclusive) of the CSR at addr,
// preserving the rest, via Store so shadow invariants are preserved
// transitively.
func (c *CSRFile) StoreBits(addr uint64, lo, hi uint, val uint64) {
	width := hi - lo + 1
	mask := maskBits(width) << lo
	cur := c.Load(addr)
	c.Store(addr, (cur&^mask)|((val<<lo)&mask))
}

// MstatusBits and SstatusBits specialise LoadBits/StoreBits for the two
// registers the trap-delivery algorithm manipulates most.
func (c *CSRFile) MstatusBits(lo, hi uint) uint64 { return c.LoadBits(CSRMstatus, lo, hi) }
func (c *CSRFile) SetMstatusBits(lo, hi uint, val uint64) { c.StoreBits(CSRMstatus, lo, hi, val) }
func (c *CSRFile) SstatusBits(lo, hi uint) uint64 { return c.LoadBits(CSRSstatus, lo, hi) }
func (c *CSRFile) SetSstatusBits(lo, hi uint, val uint64) { c.StoreBits(CSRSstatus, lo, hi, val) }

// CycleTime advances the TIME counter once per cycle.
func (c *CSRFile) CycleTime() {
	c.regs[CSRTime]++
}

package core

// DRAMBase is the physical address at which DRAM is mapped.
const DRAMBase = 0x8000_0000

// DRAM is a flat, byte-addressable RAM of fixed capacity. Addresses passed
// to Load/Store are already DRAM-relative; the bus subtracts the base
// before forwarding a request here.
type DRAM struct {
	mem []byte
}

// NewDRAM allocates a zero-filled DRAM of the given capacity.
func NewDRAM(capacity uint64) *DRAM {
	return &DRAM{mem: make([]byte, capacity)}
}

// Capacity returns the fixed size of the backing store in bytes.
func (d *DRAM) Capacity() uint64 { return uint64(len(d.mem)) }

// Bytes exposes the backing store for observation (snapshotting, the
// Emulator.DRAM observer). Callers must not retain a mutable view across a
// cycle.
func (d *DRAM) Bytes() []byte { return d.mem }

// Init splices image into the backing store starting at offset 0,
// preserving capacity. The image must not exceed the declared capacity;
// that is a host-contract violation, not an architectural fault.
func (d *DRAM) Init(image []byte) {
	if uint64(len(image)) > d.Capacity() {
		panic("core: DRAM image exceeds declared capacity")
	}
	clear(d.mem)
	copy(d.mem, image)
}

// Load reads size bits (8/16/32/64) at addr, little-endian byte order.
func (d *DRAM) Load(addr, size uint64) (uint64, error) {
	switch size {
	case 8, 16, 32, 64:
	default:
		return 0, Exception{Kind: StoreAMOAccessFault}
	}
	n := size / 8
	if addr+n > d.Capacity() {
		return 0, Exception{Kind: LoadAccessFault}
	}
	var v uint64
	for i := uint64(0); i < n; i++ {
		v |= uint64(d.mem[addr+i]) << (8 * i)
	}
	return v, nil
}

// Store writes the low size bits (8/16/32/64) of value at addr,
// little-endian byte order.
func (d *DRAM) Store(addr, value, size uint64) error {
	switch size {
	case 8, 16, 32, 64:
	default:
		return Exception{Kind: StoreAMOAccessFault}
	}
	n := size / 8
	if addr+n > d.Capacity() {
		return Exception{Kind: StoreAMOAccessFault}
	}
	for i := uint64(0); i < n; i++ {
		d.mem[addr+i] = byte(value >> (8 * i))
	}
	return nil
}

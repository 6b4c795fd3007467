package core

// Bus dispatches physical addresses to the device that owns them. It
// never panics on any address: unmapped reads and writes are reported as
// the corresponding access fault, not a host-level error.
type Bus struct {
	DRAM *DRAM
	FB   *Device
}

// NewBus builds a bus over a DRAM of the given capacity plus the optional
// framebuffer device.
func NewBus(dramCapacity uint64) *Bus {
	return &Bus{
		DRAM: NewDRAM(dramCapacity),
		FB:   NewFramebuffer(),
	}
}

func (b *Bus) Load(addr, size uint64) (uint64, error) {
	switch {
	case addr >= FramebufferBase && addr < FramebufferBase+b.FB.Capacity():
		return b.FB.Load(addr-FramebufferBase, size)
	case addr >= DRAMBase && addr < DRAMBase+b.DRAM.Capacity():
		return b.DRAM.Load(addr-DRAMBase, size)
	default:
		return 0, Exception{Kind: LoadAccessFault}
	}
}

func (b *Bus) Store(addr, value, size uint64) error {
	switch {
	case addr >= FramebufferBase && addr < FramebufferBase+b.FB.Capacity():
		return b.FB.Store(addr-FramebufferBase, value, size)
	case addr >= DRAMBase && addr < DRAMBase+b.DRAM.Capacity():
		return b.DRAM.Store(addr-DRAMBase, value, size)
	default:
		return Exception{Kind: StoreAMOAccessFault}
	}
}

package core

// Framebuffer geometry, per the VGA-like device this core's bus exposes
// as an optional MMIO target.
const (
	FramebufferBase   = 0xb8000
	FramebufferWidth  = 224
	FramebufferHeight = 126
	FramebufferBpp    = 3
	// FramebufferSize is the backing store's capacity: 3 bytes per pixel
	// over the full width*height grid.
	FramebufferSize = FramebufferBpp * FramebufferWidth * FramebufferHeight
)

// Device is an MMIO-mapped byte buffer whose load/store semantics are
// identical to DRAM's; it delegates to a DRAM-shaped backing store rather
// than duplicating the little-endian access logic.
type Device struct {
	backing *DRAM
}

// NewFramebuffer allocates the framebuffer device's backing store.
func NewFramebuffer() *Device {
	return &Device{backing: NewDRAM(FramebufferSize)}
}

func (dev *Device) Capacity() uint64 { return dev.backing.Capacity() }

func (dev *Device) Bytes() []byte { return dev.backing.Bytes() }

func (dev *Device) Load(addr, size uint64) (uint64, error) {
	return dev.backing.Load(addr, size)
}

func (dev *Device) Store(addr, value, size uint64) error {
	return dev.backing.Store(addr, value, size)
}

package vm

// AddressLayout describes how a 64-bit address is split into a page number
// field and an offset field.
//
// The virtual page number occupies the top VPNBits bits of a virtual address.
// The offset occupies the bottom 64-PFNBits bits of both the virtual and the
// physical address. The two widths are configured independently, so the
// fields of a virtual address may leave a gap of ignored bits between them or
// may overlap. Neither case is corrected.
type AddressLayout struct {
	VPNBits uint8
	PFNBits uint8
}

// OffsetBits returns the width of the offset field.
func (l AddressLayout) OffsetBits() uint {
	if l.PFNBits >= 64 {
		return 0
	}

	return 64 - uint(l.PFNBits)
}

func (l AddressLayout) vpnShift() uint {
	if l.VPNBits >= 64 {
		return 0
	}

	return 64 - uint(l.VPNBits)
}

// lowMask returns 2^bits - 1. A shift of 64 yields 0, so bits == 64 gives an
// all-ones mask.
func lowMask(bits uint) uint64 {
	return (uint64(1) << bits) - 1
}

// VPN returns the virtual page number of the given virtual address.
func (l AddressLayout) VPN(vAddr uint64) uint64 {
	return (vAddr >> l.vpnShift()) & lowMask(uint(l.VPNBits))
}

// Offset returns the in-page offset of the given virtual address.
func (l AddressLayout) Offset(vAddr uint64) uint64 {
	return vAddr & lowMask(l.OffsetBits())
}

// PhysicalAddress assembles a physical address from a frame number and an
// offset.
func (l AddressLayout) PhysicalAddress(pfn, offset uint64) uint64 {
	return (pfn << l.OffsetBits()) | offset
}

// PFN returns the frame number field of a physical address.
func (l AddressLayout) PFN(pAddr uint64) uint64 {
	return pAddr >> l.OffsetBits()
}

// HasGap returns true if some bits of a virtual address belong to neither the
// page number nor the offset.
func (l AddressLayout) HasGap() bool {
	return uint(l.VPNBits)+l.OffsetBits() < 64
}

// HasOverlap returns true if the page number field and the offset field of a
// virtual address share bits.
func (l AddressLayout) HasOverlap() bool {
	return uint(l.VPNBits)+l.OffsetBits() > 64
}

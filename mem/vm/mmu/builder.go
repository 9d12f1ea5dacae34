package mmu

import (
	"fmt"

	"github.com/sarchlab/mmusim/mem/vm"
	"github.com/sarchlab/mmusim/mem/vm/tlb"
	"github.com/sarchlab/mmusim/sim/id"
)

// Storage limits. A configuration beyond them cannot be backed by memory and
// is reported as an allocation failure.
const (
	MaxTLBSize   = 255
	MaxNumFrames = 16384
	MaxVPNBits   = 24
)

// A Builder can build MMU component
type Builder struct {
	tlbSize     int
	numFrames   int
	pfnBits     uint8
	vpnBits     uint8
	idGenerator id.IDGenerator
}

// MakeBuilder creates a new builder
func MakeBuilder() Builder {
	return Builder{
		tlbSize:   5,
		numFrames: 9,
		pfnBits:   16,
		vpnBits:   8,
	}
}

// WithTLBSize sets the number of entries that the TLB can hold.
func (b Builder) WithTLBSize(n int) Builder {
	b.tlbSize = n
	return b
}

// WithNumFrames sets the number of physical frames that can be allocated.
func (b Builder) WithNumFrames(n int) Builder {
	b.numFrames = n
	return b
}

// WithPFNBits sets the number of high-order bits of a physical address that
// hold the frame number. The remaining low-order bits are the offset.
func (b Builder) WithPFNBits(bits uint8) Builder {
	b.pfnBits = bits
	return b
}

// WithVPNBits sets the number of high-order bits of a virtual address that
// hold the virtual page number.
func (b Builder) WithVPNBits(bits uint8) Builder {
	b.vpnBits = bits
	return b
}

// WithIDGenerator sets the generator that names translations reported to
// hooks.
func (b Builder) WithIDGenerator(g id.IDGenerator) Builder {
	b.idGenerator = g
	return b
}

// Build returns a newly created MMU component with an empty TLB, an empty
// page table and all frames free.
func (b Builder) Build(name string) (*Comp, error) {
	err := b.checkStorage()
	if err != nil {
		return nil, err
	}

	mmu := &Comp{
		name: name,
		layout: vm.AddressLayout{
			VPNBits: b.vpnBits,
			PFNBits: b.pfnBits,
		},
		tlb:         tlb.NewFIFOSet(b.tlbSize),
		pageTable:   vm.NewPageTable(b.vpnBits),
		frameTable:  vm.NewFrameTable(b.numFrames),
		idGenerator: b.idGenerator,
	}

	if mmu.idGenerator == nil {
		mmu.idGenerator = id.NewIDGenerator()
	}

	return mmu, nil
}

func (b Builder) checkStorage() error {
	if b.tlbSize < 0 || b.tlbSize > MaxTLBSize {
		return fmt.Errorf("%w: tlb size %d is not in [0, %d]",
			ErrAllocation, b.tlbSize, MaxTLBSize)
	}

	if b.numFrames < 0 || b.numFrames > MaxNumFrames {
		return fmt.Errorf("%w: frame count %d is not in [0, %d]",
			ErrAllocation, b.numFrames, MaxNumFrames)
	}

	if b.vpnBits > MaxVPNBits {
		return fmt.Errorf("%w: page table for %d vpn bits is too large",
			ErrAllocation, b.vpnBits)
	}

	return nil
}

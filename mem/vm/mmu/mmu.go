package mmu

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/sarchlab/mmusim/mem/vm"
	"github.com/sarchlab/mmusim/mem/vm/tlb"
	"github.com/sarchlab/mmusim/sim/hooking"
	"github.com/sarchlab/mmusim/sim/id"
)

var (
	// ErrAllocation is returned by Build when the tables cannot be backed by
	// memory.
	ErrAllocation = errors.New("cannot allocate mmu storage")

	// ErrOutOfFrames is returned by Translate when a page has to be mapped
	// but no physical frame is free.
	ErrOutOfFrames = errors.New("no free physical frame")
)

// A Result is the outcome of a successful translation.
type Result struct {
	VAddr    uint64
	PAddr    uint64
	VPN      uint64
	PFN      uint64
	Offset   uint64
	TLBHit   bool
	NewFrame bool
}

// Status is a snapshot of the MMU counters.
type Status struct {
	FreeFrames     int `json:"free_frames"`
	AllocatedPages int `json:"allocated_pages"`
	TLBEntries     int `json:"tlb_entries"`
}

// Comp is the default mmu implementation. It translates virtual addresses by
// consulting the TLB, then the page table, and finally allocating a new
// frame.
//
// A Comp is not reentrant. Its methods hold a lock so that a concurrent host
// can read its status while translations are in progress. Hooks run with the
// lock held and must not call back into the MMU.
type Comp struct {
	hooking.HookableBase
	sync.Mutex

	name        string
	layout      vm.AddressLayout
	tlb         tlb.Set
	pageTable   vm.PageTable
	frameTable  *vm.FrameTable
	idGenerator id.IDGenerator

	allocatedPages int
	tornDown       bool
}

// Name returns the name of the MMU.
func (c *Comp) Name() string {
	return c.name
}

// Layout returns how the MMU splits addresses.
func (c *Comp) Layout() vm.AddressLayout {
	return c.layout
}

// NumFrames returns the total number of physical frames.
func (c *Comp) NumFrames() int {
	c.Lock()
	defer c.Unlock()

	c.mustNotBeTornDown()

	return c.frameTable.NumFrames()
}

// Translate converts a virtual address to a physical address. If the page is
// not mapped yet, the lowest free frame is assigned to it. When no frame is
// free, ErrOutOfFrames is returned and nothing is changed.
func (c *Comp) Translate(vAddr uint64) (Result, error) {
	c.Lock()
	defer c.Unlock()

	c.mustNotBeTornDown()

	trans := &Translation{
		ID:     c.idGenerator.Generate(),
		VAddr:  vAddr,
		VPN:    c.layout.VPN(vAddr),
		Offset: c.layout.Offset(vAddr),
	}

	if c.lookupTLB(trans) {
		return c.complete(trans), nil
	}

	c.invokeHook(HookPosTLBMiss, trans)

	if c.lookupPageTable(trans) {
		return c.complete(trans), nil
	}

	err := c.allocateFrame(trans)
	if err != nil {
		return Result{}, err
	}

	return c.complete(trans), nil
}

func (c *Comp) lookupTLB(trans *Translation) bool {
	page, found := c.tlb.Lookup(trans.VPN)
	if !found {
		return false
	}

	trans.PFN = page.PFN
	trans.TLBHit = true
	c.invokeHook(HookPosTLBHit, trans)

	return true
}

func (c *Comp) lookupPageTable(trans *Translation) bool {
	page, found := c.pageTable.Find(trans.VPN)
	if !found {
		return false
	}

	c.tlb.Insert(page)

	trans.PFN = page.PFN
	c.invokeHook(HookPosPageTableHit, trans)

	return true
}

func (c *Comp) allocateFrame(trans *Translation) error {
	pfn, ok := c.frameTable.Allocate()
	if !ok {
		c.invokeHook(HookPosOutOfFrames, trans)

		return fmt.Errorf("%w: translating 0x%016x (vpn 0x%x)",
			ErrOutOfFrames, trans.VAddr, trans.VPN)
	}

	page := vm.Page{
		VPN:   trans.VPN,
		PFN:   pfn,
		Valid: true,
	}
	c.pageTable.Insert(page)
	c.tlb.Insert(page)
	c.allocatedPages++

	trans.PFN = pfn
	trans.NewFrame = true
	c.invokeHook(HookPosFrameAllocated, trans)

	return nil
}

func (c *Comp) complete(trans *Translation) Result {
	trans.PAddr = c.layout.PhysicalAddress(trans.PFN, trans.Offset)
	c.invokeHook(HookPosTranslated, trans)

	return Result{
		VAddr:    trans.VAddr,
		PAddr:    trans.PAddr,
		VPN:      trans.VPN,
		PFN:      trans.PFN,
		Offset:   trans.Offset,
		TLBHit:   trans.TLBHit,
		NewFrame: trans.NewFrame,
	}
}

// Status returns the number of free frames, allocated pages and live TLB
// entries.
func (c *Comp) Status() Status {
	c.Lock()
	defer c.Unlock()

	c.mustNotBeTornDown()

	return Status{
		FreeFrames:     c.frameTable.NumFree(),
		AllocatedPages: c.allocatedPages,
		TLBEntries:     c.tlb.NumEntries(),
	}
}

// TLBEntries returns the live TLB entries in slot order.
func (c *Comp) TLBEntries() []tlb.Entry {
	c.Lock()
	defer c.Unlock()

	c.mustNotBeTornDown()

	return c.tlb.Entries()
}

// Teardown releases all the tables. It must be the last call made on the
// MMU. Any call after it, including a second Teardown, panics.
func (c *Comp) Teardown() {
	c.Lock()
	defer c.Unlock()

	c.mustNotBeTornDown()

	c.tlb = nil
	c.pageTable = nil
	c.frameTable = nil
	c.tornDown = true
}

func (c *Comp) mustNotBeTornDown() {
	if c.tornDown {
		log.Panicf("mmu %s is already torn down", c.name)
	}
}

func (c *Comp) invokeHook(pos *hooking.HookPos, trans *Translation) {
	if c.NumHooks() == 0 {
		return
	}

	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    pos,
		Item:   *trans,
	})
}

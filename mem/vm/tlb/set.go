// Package tlb provides the translation lookaside buffer that caches recent
// page translations.
package tlb

import (
	"github.com/sarchlab/mmusim/mem/vm"
)

// A Set holds a certain number of translations.
type Set interface {
	// Lookup searches the live entries for the given virtual page number.
	Lookup(vpn uint64) (page vm.Page, found bool)

	// Insert adds a translation, evicting an old one if the set is full.
	Insert(page vm.Page)

	// NumEntries returns the number of live entries.
	NumEntries() int

	// Capacity returns the maximum number of live entries.
	Capacity() int

	// Entries returns a copy of the live entries, in slot order.
	Entries() []Entry
}

// An Entry is one slot of the TLB.
type Entry struct {
	VPN   uint64
	PFN   uint64
	Valid bool
}

// NewFIFOSet creates a set that replaces the entry that was inserted
// earliest, regardless of how often or how recently it was looked up.
func NewFIFOSet(capacity int) Set {
	return &fifoSet{
		entries: make([]Entry, capacity),
	}
}

type fifoSet struct {
	entries    []Entry
	nextIndex  int
	numEntries int
}

func (s *fifoSet) Lookup(vpn uint64) (vm.Page, bool) {
	for i := 0; i < s.numEntries; i++ {
		e := s.entries[i]
		if e.Valid && e.VPN == vpn {
			return vm.Page{VPN: e.VPN, PFN: e.PFN, Valid: true}, true
		}
	}

	return vm.Page{}, false
}

// Insert writes the page at the FIFO index. A set with zero capacity never
// holds anything.
func (s *fifoSet) Insert(page vm.Page) {
	if len(s.entries) == 0 {
		return
	}

	s.entries[s.nextIndex] = Entry{
		VPN:   page.VPN,
		PFN:   page.PFN,
		Valid: true,
	}
	s.nextIndex = (s.nextIndex + 1) % len(s.entries)

	if s.numEntries < len(s.entries) {
		s.numEntries++
	}
}

func (s *fifoSet) NumEntries() int {
	return s.numEntries
}

func (s *fifoSet) Capacity() int {
	return len(s.entries)
}

func (s *fifoSet) Entries() []Entry {
	entries := make([]Entry, s.numEntries)
	copy(entries, s.entries[:s.numEntries])

	return entries
}

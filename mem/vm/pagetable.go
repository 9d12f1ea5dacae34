package vm

import (
	"log"
)

// A Page is an entry in the page table, maintaining the information about how
// to translate a virtual page to a physical frame.
type Page struct {
	VPN   uint64
	PFN   uint64
	Valid bool
}

// A PageTable maps virtual page numbers to physical frame numbers.
type PageTable interface {
	// Insert puts a new valid page into the table. A virtual page number can
	// only be inserted once.
	Insert(page Page)

	// Find returns the page of the given virtual page number. The bool
	// return value indicates if the page is mapped or not.
	Find(vpn uint64) (Page, bool)

	// NumPages returns the number of mapped pages.
	NumPages() int

	// Size returns the number of slots of the table.
	Size() int
}

// NewPageTable creates a flat page table that has one slot for every virtual
// page number representable with vpnBits bits.
func NewPageTable(vpnBits uint8) PageTable {
	return &pageTableImpl{
		entries: make([]Page, uint64(1)<<vpnBits),
	}
}

// pageTableImpl is the default implementation of a Page Table
type pageTableImpl struct {
	entries  []Page
	numPages int
}

// Insert puts a new page into the PageTable
func (pt *pageTableImpl) Insert(page Page) {
	pt.vpnMustBeInRange(page.VPN)
	pt.pageMustNotExist(page.VPN)

	page.Valid = true
	pt.entries[page.VPN] = page
	pt.numPages++
}

// Find returns the page that is mapped at the given virtual page number.
func (pt *pageTableImpl) Find(vpn uint64) (Page, bool) {
	if vpn >= uint64(len(pt.entries)) {
		return Page{}, false
	}

	page := pt.entries[vpn]
	if !page.Valid {
		return Page{}, false
	}

	return page, true
}

func (pt *pageTableImpl) NumPages() int {
	return pt.numPages
}

func (pt *pageTableImpl) Size() int {
	return len(pt.entries)
}

func (pt *pageTableImpl) vpnMustBeInRange(vpn uint64) {
	if vpn >= uint64(len(pt.entries)) {
		log.Panicf("vpn 0x%x is out of the page table range", vpn)
	}
}

func (pt *pageTableImpl) pageMustNotExist(vpn uint64) {
	if pt.entries[vpn].Valid {
		log.Panicf("page 0x%x exists", vpn)
	}
}

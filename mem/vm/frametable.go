package vm

import (
	"log"
)

// A FrameTable tracks which physical frames are free. Frames are handed out
// lowest index first and are never returned.
type FrameTable struct {
	free    []bool
	numFree int
}

// NewFrameTable creates a FrameTable with numFrames frames, all of them free.
func NewFrameTable(numFrames int) *FrameTable {
	t := &FrameTable{
		free:    make([]bool, numFrames),
		numFree: numFrames,
	}

	for i := range t.free {
		t.free[i] = true
	}

	return t
}

// Allocate reserves the free frame with the lowest frame number. The bool
// return value is false if all the frames are in use, in which case the table
// is not changed.
func (t *FrameTable) Allocate() (pfn uint64, ok bool) {
	for i, free := range t.free {
		if free {
			t.free[i] = false
			t.numFree--

			return uint64(i), true
		}
	}

	return 0, false
}

// IsFree returns true if the given frame has not been allocated.
func (t *FrameTable) IsFree(pfn uint64) bool {
	if pfn >= uint64(len(t.free)) {
		log.Panicf("frame %d does not exist", pfn)
	}

	return t.free[pfn]
}

// NumFree returns the number of frames that can still be allocated.
func (t *FrameTable) NumFree() int {
	return t.numFree
}

// NumFrames returns the total number of frames.
func (t *FrameTable) NumFrames() int {
	return len(t.free)
}

package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sarchlab/mmusim/mem/vm/mmu"
	"github.com/sarchlab/mmusim/monitoring"
)

// referenceTrace is the address sequence of the reference harness, with the
// page number in the top byte. Run with the default configuration, it maps
// every frame, fills the TLB, and ends with an address that cannot be
// mapped.
var referenceTrace = []uint64{
	0x2345000000000000, 0x23FF000000567800, 0x11FF000000000000,
	0x11FF000000000000, 0x18FF000000000000, 0x1908000000000000,
	0x11FF000000000000, 0x2345000000000000, 0x00FF000000000000,
	0x0123456789ABCD00, 0x0200000000000000, 0x0300000000000000,
	0x0400000000000000, 0xFFFFFFFFFFFFFFFF,
}

// parseTrace reads one address per line. Addresses are decimal or prefixed
// with 0x. Blank lines and lines starting with # are skipped.
func parseTrace(r io.Reader) ([]uint64, error) {
	var addrs []uint64

	scanner := bufio.NewScanner(r)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		addr, err := strconv.ParseUint(line, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid address %q: %w",
				lineNumber, line, err)
		}

		addrs = append(addrs, addr)
	}

	err := scanner.Err()
	if err != nil {
		return nil, err
	}

	return addrs, nil
}

// A replayer feeds addresses to an MMU and prints the outcome of each.
type replayer struct {
	mmu      *mmu.Comp
	out      io.Writer
	failFast bool
	bar      *monitoring.ProgressBar
}

// replay translates the addresses in order. It returns the number of
// addresses that could not be translated.
func (r *replayer) replay(addrs []uint64) (int, error) {
	numFailed := 0

	for _, addr := range addrs {
		if r.bar != nil {
			r.bar.StartTranslation()
		}

		rsp, err := r.mmu.Translate(addr)

		if r.bar != nil {
			r.bar.FinishTranslation(err != nil)
		}

		if errors.Is(err, mmu.ErrOutOfFrames) {
			numFailed++
			fmt.Fprintf(r.out, "Virtual: 0x%016x out of frames\n", addr)

			if r.failFast {
				return numFailed, err
			}

			continue
		}

		if err != nil {
			return numFailed, err
		}

		fmt.Fprintf(r.out, "Virtual: 0x%016x Physical: 0x%016x hit=%t new=%t\n",
			rsp.VAddr, rsp.PAddr, rsp.TLBHit, rsp.NewFrame)
	}

	return numFailed, nil
}

func printStatus(w io.Writer, status mmu.Status) {
	fmt.Fprintf(w,
		"Status: free frames %d, allocated pages %d, tlb entries %d\n",
		status.FreeFrames, status.AllocatedPages, status.TLBEntries)
}

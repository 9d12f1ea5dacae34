package mmu

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const scenarioOffsetBits = 64 - 16

var _ = Describe("Replaying the reference address sequence", func() {
	var (
		mmu     *Comp
		vAddrs  []uint64
		results []Result
	)

	expectStatus := func(free, allocated, tlbEntries int) {
		ExpectWithOffset(1, mmu.Status()).To(Equal(Status{
			FreeFrames:     free,
			AllocatedPages: allocated,
			TLBEntries:     tlbEntries,
		}))
	}

	BeforeEach(func() {
		var err error
		mmu, err = MakeBuilder().
			WithTLBSize(5).
			WithNumFrames(9).
			WithPFNBits(16).
			WithVPNBits(8).
			Build("MMU")
		Expect(err).NotTo(HaveOccurred())
		expectStatus(9, 0, 0)

		vAddrs = []uint64{
			0x2345000000000000, 0x23FF000000567800, 0x11FF000000000000,
			0x11FF000000000000, 0x18FF000000000000, 0x1908000000000000,
			0x11FF000000000000, 0x2345000000000000, 0x00FF000000000000,
			0x0123456789ABCD00, 0x0200000000000000, 0x0300000000000000,
			0x0400000000000000, 0x0500000000000000,
		}
		results = make([]Result, len(vAddrs))
	})

	AfterEach(func() {
		mmu.Teardown()
	})

	It("should match every expected outcome", func() {
		var err error

		By("translating a fresh address")
		results[0], err = mmu.Translate(vAddrs[0])
		Expect(err).NotTo(HaveOccurred())
		Expect(results[0].TLBHit).To(BeFalse())
		Expect(results[0].NewFrame).To(BeTrue())
		expectStatus(8, 1, 1)

		By("translating another address in the same page")
		results[1], err = mmu.Translate(vAddrs[1])
		Expect(err).NotTo(HaveOccurred())
		Expect(results[1].TLBHit).To(BeTrue())
		Expect(results[1].NewFrame).To(BeFalse())
		Expect(results[1].PAddr >> scenarioOffsetBits).
			To(Equal(results[0].PAddr >> scenarioOffsetBits))
		expectStatus(8, 1, 1)

		By("translating an address in a new page")
		results[2], err = mmu.Translate(vAddrs[2])
		Expect(err).NotTo(HaveOccurred())
		Expect(results[2].TLBHit).To(BeFalse())
		Expect(results[2].NewFrame).To(BeTrue())
		Expect(results[2].PAddr >> scenarioOffsetBits).
			NotTo(Equal(results[1].PAddr >> scenarioOffsetBits))
		expectStatus(7, 2, 2)

		By("translating some more addresses")
		for i := 3; i < len(vAddrs)-1; i++ {
			results[i], err = mmu.Translate(vAddrs[i])
			Expect(err).NotTo(HaveOccurred())

			if i == 3 || i == 6 || i == 7 {
				Expect(results[i].TLBHit).To(BeTrue(), "address %d", i)
			} else {
				Expect(results[i].TLBHit).To(BeFalse(), "address %d", i)
			}
		}

		expectStatus(0, 9, 5)
		Expect(results[0].PAddr).To(Equal(results[7].PAddr))
		Expect(results[6].PAddr).To(Equal(results[2].PAddr))
		Expect(results[3].PAddr).NotTo(Equal(results[4].PAddr))

		By("running out of frames")
		_, err = mmu.Translate(0xFFFFFFFFFFFFFFFF)
		Expect(errors.Is(err, ErrOutOfFrames)).To(BeTrue())
		expectStatus(0, 9, 5)
	})
})

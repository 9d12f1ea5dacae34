package mmu

import (
	"errors"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/mmusim/sim/hooking"
	"go.uber.org/mock/gomock"
)

// vAddrWithVPN builds a virtual address for the default 8-bit vpn layout.
func vAddrWithVPN(vpn, offset uint64) uint64 {
	return vpn<<56 | offset
}

var _ = Describe("Builder", func() {
	It("should build with the default configuration", func() {
		mmu, err := MakeBuilder().Build("MMU")

		Expect(err).NotTo(HaveOccurred())
		Expect(mmu.Name()).To(Equal("MMU"))
		Expect(mmu.NumFrames()).To(Equal(9))
		Expect(mmu.Layout().VPNBits).To(Equal(uint8(8)))
		Expect(mmu.Layout().PFNBits).To(Equal(uint8(16)))
		Expect(mmu.Status()).To(Equal(Status{
			FreeFrames:     9,
			AllocatedPages: 0,
			TLBEntries:     0,
		}))
	})

	It("should fail to build an oversized page table", func() {
		mmu, err := MakeBuilder().WithVPNBits(MaxVPNBits + 1).Build("MMU")

		Expect(mmu).To(BeNil())
		Expect(errors.Is(err, ErrAllocation)).To(BeTrue())
	})

	It("should fail to build too many frames", func() {
		mmu, err := MakeBuilder().WithNumFrames(MaxNumFrames + 1).Build("MMU")

		Expect(mmu).To(BeNil())
		Expect(errors.Is(err, ErrAllocation)).To(BeTrue())
	})

	It("should fail to build an oversized tlb", func() {
		mmu, err := MakeBuilder().WithTLBSize(MaxTLBSize + 1).Build("MMU")

		Expect(mmu).To(BeNil())
		Expect(errors.Is(err, ErrAllocation)).To(BeTrue())
	})

	It("should build the largest allowed configuration", func() {
		mmu, err := MakeBuilder().
			WithTLBSize(MaxTLBSize).
			WithNumFrames(MaxNumFrames).
			WithVPNBits(16).
			Build("MMU")

		Expect(err).NotTo(HaveOccurred())
		Expect(mmu.Status().FreeFrames).To(Equal(MaxNumFrames))
	})
})

var _ = Describe("MMU", func() {
	var (
		mmu *Comp
	)

	BeforeEach(func() {
		var err error
		mmu, err = MakeBuilder().
			WithTLBSize(5).
			WithNumFrames(9).
			WithPFNBits(16).
			WithVPNBits(8).
			Build("MMU")
		Expect(err).NotTo(HaveOccurred())
	})

	Context("fresh page", func() {
		It("should allocate a new frame", func() {
			rsp, err := mmu.Translate(vAddrWithVPN(0x23, 0x1234))

			Expect(err).NotTo(HaveOccurred())
			Expect(rsp.TLBHit).To(BeFalse())
			Expect(rsp.NewFrame).To(BeTrue())
			Expect(rsp.VPN).To(Equal(uint64(0x23)))
			Expect(rsp.PFN).To(Equal(uint64(0)))
			Expect(rsp.PAddr).To(Equal(uint64(0x1234)))
			Expect(mmu.Status()).To(Equal(Status{
				FreeFrames:     8,
				AllocatedPages: 1,
				TLBEntries:     1,
			}))
		})

		It("should assign frames lowest first", func() {
			for i := uint64(0); i < 9; i++ {
				rsp, err := mmu.Translate(vAddrWithVPN(0xF0-i, 0))

				Expect(err).NotTo(HaveOccurred())
				Expect(rsp.PFN).To(Equal(i))
				Expect(rsp.PAddr).To(Equal(i << 48))
			}
		})
	})

	Context("tlb hit", func() {
		It("should hit on the second access to a page", func() {
			first, _ := mmu.Translate(vAddrWithVPN(0x23, 0x0))

			second, err := mmu.Translate(vAddrWithVPN(0x23, 0x5678))

			Expect(err).NotTo(HaveOccurred())
			Expect(second.TLBHit).To(BeTrue())
			Expect(second.NewFrame).To(BeFalse())
			Expect(second.PAddr >> 48).To(Equal(first.PAddr >> 48))
			Expect(second.PAddr & 0xFFFFFFFFFFFF).To(Equal(uint64(0x5678)))
			Expect(mmu.Status()).To(Equal(Status{
				FreeFrames:     8,
				AllocatedPages: 1,
				TLBEntries:     1,
			}))
		})

		It("should give identical results for identical addresses", func() {
			first, _ := mmu.Translate(0x11FF000000000042)

			second, _ := mmu.Translate(0x11FF000000000042)

			Expect(second.PAddr).To(Equal(first.PAddr))
			Expect(second.TLBHit).To(BeTrue())
		})

		It("should ignore the bits between vpn and offset", func() {
			first, _ := mmu.Translate(0x2345000000000000)

			second, _ := mmu.Translate(0x23FF000000000000)

			Expect(second.TLBHit).To(BeTrue())
			Expect(second.PAddr).To(Equal(first.PAddr))
		})
	})

	Context("page table hit", func() {
		It("should refill the tlb from the page table after eviction", func() {
			first, _ := mmu.Translate(vAddrWithVPN(1, 0))
			for vpn := uint64(2); vpn <= 6; vpn++ {
				mmu.Translate(vAddrWithVPN(vpn, 0))
			}

			rsp, err := mmu.Translate(vAddrWithVPN(1, 0x10))

			Expect(err).NotTo(HaveOccurred())
			Expect(rsp.TLBHit).To(BeFalse())
			Expect(rsp.NewFrame).To(BeFalse())
			Expect(rsp.PFN).To(Equal(first.PFN))
			Expect(mmu.Status()).To(Equal(Status{
				FreeFrames:     3,
				AllocatedPages: 6,
				TLBEntries:     5,
			}))
		})
	})

	Context("fifo eviction", func() {
		It("should only keep the latest pages in the tlb", func() {
			for vpn := uint64(1); vpn <= 7; vpn++ {
				mmu.Translate(vAddrWithVPN(vpn, 0))
			}

			Expect(mmu.TLBEntries()).To(HaveLen(5))

			for vpn := uint64(3); vpn <= 7; vpn++ {
				rsp, _ := mmu.Translate(vAddrWithVPN(vpn, 0))
				Expect(rsp.TLBHit).To(BeTrue(), "vpn %d", vpn)
			}

			rsp, _ := mmu.Translate(vAddrWithVPN(1, 0))
			Expect(rsp.TLBHit).To(BeFalse())
			Expect(rsp.NewFrame).To(BeFalse())
		})

		It("should evict by insertion order, not by use", func() {
			for vpn := uint64(1); vpn <= 5; vpn++ {
				mmu.Translate(vAddrWithVPN(vpn, 0))
			}
			mmu.Translate(vAddrWithVPN(1, 0))

			mmu.Translate(vAddrWithVPN(6, 0))

			rsp, _ := mmu.Translate(vAddrWithVPN(1, 0))
			Expect(rsp.TLBHit).To(BeFalse())
		})
	})

	Context("out of frames", func() {
		BeforeEach(func() {
			for vpn := uint64(0); vpn < 9; vpn++ {
				_, err := mmu.Translate(vAddrWithVPN(vpn, 0))
				Expect(err).NotTo(HaveOccurred())
			}
		})

		It("should fail to map a new page", func() {
			before := mmu.Status()
			entriesBefore := mmu.TLBEntries()

			_, err := mmu.Translate(vAddrWithVPN(0x09, 0))

			Expect(errors.Is(err, ErrOutOfFrames)).To(BeTrue())
			Expect(mmu.Status()).To(Equal(before))
			Expect(mmu.Status()).To(Equal(Status{
				FreeFrames:     0,
				AllocatedPages: 9,
				TLBEntries:     5,
			}))
			Expect(mmu.TLBEntries()).To(Equal(entriesBefore))
		})

		It("should still translate mapped pages", func() {
			rsp, err := mmu.Translate(vAddrWithVPN(0, 0x42))

			Expect(err).NotTo(HaveOccurred())
			Expect(rsp.NewFrame).To(BeFalse())
			Expect(rsp.PAddr).To(Equal(uint64(0x42)))
		})
	})

	Context("without frames", func() {
		It("should fail every translation", func() {
			mmu, _ = MakeBuilder().WithNumFrames(0).Build("MMU")

			_, err := mmu.Translate(0)

			Expect(errors.Is(err, ErrOutOfFrames)).To(BeTrue())
			Expect(mmu.Status()).To(Equal(Status{}))
		})
	})

	Context("without tlb", func() {
		It("should resolve repeated accesses through the page table", func() {
			mmu, _ = MakeBuilder().WithTLBSize(0).Build("MMU")

			first, _ := mmu.Translate(vAddrWithVPN(3, 0))
			second, err := mmu.Translate(vAddrWithVPN(3, 0))

			Expect(err).NotTo(HaveOccurred())
			Expect(first.NewFrame).To(BeTrue())
			Expect(second.TLBHit).To(BeFalse())
			Expect(second.NewFrame).To(BeFalse())
			Expect(second.PAddr).To(Equal(first.PAddr))
			Expect(mmu.Status().TLBEntries).To(Equal(0))
		})
	})

	Context("invariants", func() {
		It("should keep the counters consistent", func() {
			r := rand.New(rand.NewSource(1))
			lastAllocated := 0

			for i := 0; i < 500; i++ {
				vpn := uint64(r.Intn(16))
				mmu.Translate(vAddrWithVPN(vpn, uint64(r.Int63())&0xFFFF))

				status := mmu.Status()
				Expect(status.TLBEntries).To(BeNumerically("<=", 5))
				Expect(status.AllocatedPages).To(BeNumerically("<=", 9))
				Expect(status.AllocatedPages).
					To(BeNumerically(">=", lastAllocated))
				Expect(status.AllocatedPages + status.FreeFrames).To(Equal(9))

				lastAllocated = status.AllocatedPages
			}
		})

		It("should never map two pages to the same frame", func() {
			frameOwner := make(map[uint64]uint64)

			for vpn := uint64(0); vpn < 9; vpn++ {
				rsp, _ := mmu.Translate(vAddrWithVPN(vpn, 0))

				owner, taken := frameOwner[rsp.PFN]
				Expect(taken).To(BeFalse(), "frame %d owned by %d", rsp.PFN, owner)
				frameOwner[rsp.PFN] = vpn
			}
		})
	})

	Context("teardown", func() {
		It("should panic on use after teardown", func() {
			mmu.Teardown()

			Expect(func() { mmu.Translate(0) }).To(Panic())
			Expect(func() { mmu.Status() }).To(Panic())
		})

		It("should panic on a second teardown", func() {
			mmu.Teardown()

			Expect(func() { mmu.Teardown() }).To(Panic())
		})
	})
})

var _ = Describe("MMU hooks", func() {
	var (
		mockCtrl  *gomock.Controller
		hook      *MockHook
		mmu       *Comp
		positions []*hooking.HookPos
		items     []Translation
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		hook = NewMockHook(mockCtrl)

		mmu, _ = MakeBuilder().WithNumFrames(1).Build("MMU")
		mmu.AcceptHook(hook)

		positions = nil
		items = nil
		hook.EXPECT().Func(gomock.Any()).
			Do(func(ctx hooking.HookCtx) {
				Expect(ctx.Domain).To(BeIdenticalTo(mmu))
				positions = append(positions, ctx.Pos)
				items = append(items, ctx.Item.(Translation))
			}).
			AnyTimes()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should report a frame allocation", func() {
		mmu.Translate(vAddrWithVPN(7, 0x10))

		Expect(positions).To(Equal([]*hooking.HookPos{
			HookPosTLBMiss,
			HookPosFrameAllocated,
			HookPosTranslated,
		}))
		Expect(items[2].ID).To(Equal("1"))
		Expect(items[2].VPN).To(Equal(uint64(7)))
		Expect(items[2].NewFrame).To(BeTrue())
		Expect(items[2].PAddr).To(Equal(uint64(0x10)))
	})

	It("should report a tlb hit", func() {
		mmu.Translate(vAddrWithVPN(7, 0))
		positions = nil

		mmu.Translate(vAddrWithVPN(7, 0))

		Expect(positions).To(Equal([]*hooking.HookPos{
			HookPosTLBHit,
			HookPosTranslated,
		}))
	})

	It("should report running out of frames", func() {
		mmu.Translate(vAddrWithVPN(7, 0))
		positions = nil

		_, err := mmu.Translate(vAddrWithVPN(8, 0))

		Expect(err).To(HaveOccurred())
		Expect(positions).To(Equal([]*hooking.HookPos{
			HookPosTLBMiss,
			HookPosOutOfFrames,
		}))
	})

	It("should count translations by position", func() {
		counter := hooking.NewPosCountTracer()
		mmu.AcceptHook(counter)

		mmu.Translate(vAddrWithVPN(7, 0))
		mmu.Translate(vAddrWithVPN(7, 0))
		mmu.Translate(vAddrWithVPN(8, 0))

		Expect(counter.GetCount(HookPosTranslated)).To(Equal(uint64(2)))
		Expect(counter.GetCount(HookPosTLBHit)).To(Equal(uint64(1)))
		Expect(counter.GetCount(HookPosTLBMiss)).To(Equal(uint64(2)))
		Expect(counter.GetCount(HookPosOutOfFrames)).To(Equal(uint64(1)))
	})
})

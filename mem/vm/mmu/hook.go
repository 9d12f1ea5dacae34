package mmu

import (
	"github.com/sarchlab/mmusim/sim/hooking"
)

// A list of hook poses for the hooks to apply to. The item of every
// invocation is a Translation.
var (
	HookPosTLBHit         = &hooking.HookPos{Name: "TLBHit"}
	HookPosTLBMiss        = &hooking.HookPos{Name: "TLBMiss"}
	HookPosPageTableHit   = &hooking.HookPos{Name: "PageTableHit"}
	HookPosFrameAllocated = &hooking.HookPos{Name: "FrameAllocated"}
	HookPosOutOfFrames    = &hooking.HookPos{Name: "OutOfFrames"}
	HookPosTranslated     = &hooking.HookPos{Name: "Translated"}
)

// A Translation describes a translation in progress. Fields that have not
// been resolved at the hook position are zero.
type Translation struct {
	ID       string
	VAddr    uint64
	VPN      uint64
	Offset   uint64
	PFN      uint64
	PAddr    uint64
	TLBHit   bool
	NewFrame bool
}

// Package trace provides tracers that record the translations performed by an
// MMU.
package trace

import (
	"fmt"
	"log"

	"github.com/sarchlab/mmusim/datarecording"
	"github.com/sarchlab/mmusim/mem/vm/mmu"
	"github.com/sarchlab/mmusim/sim/hooking"
)

// TableName is the table that the database tracer writes into.
const TableName = "translations"

// translationEntry represents a translation in the database. Addresses are
// stored as hex strings because SQLite cannot hold the full uint64 range.
type translationEntry struct {
	ID       string
	Location string
	VAddr    string
	PAddr    string
	VPN      uint64
	PFN      uint64
	TLBHit   bool
	NewFrame bool
	Failed   bool
}

type namer interface {
	Name() string
}

func location(ctx hooking.HookCtx) string {
	if n, ok := ctx.Domain.(namer); ok {
		return n.Name()
	}

	return ""
}

// outcome returns the translation if the hook position marks the end of a
// translation.
func outcome(ctx hooking.HookCtx) (trans mmu.Translation, failed, ok bool) {
	switch ctx.Pos {
	case mmu.HookPosTranslated:
		failed = false
	case mmu.HookPosOutOfFrames:
		failed = true
	default:
		return mmu.Translation{}, false, false
	}

	trans, ok = ctx.Item.(mmu.Translation)

	return trans, failed, ok
}

// A logTracer is a hook that prints every translation outcome.
type logTracer struct {
	logger *log.Logger
}

// NewLogTracer creates a tracer that prints one line per translation.
func NewLogTracer(logger *log.Logger) hooking.Hook {
	return &logTracer{logger: logger}
}

func (t *logTracer) Func(ctx hooking.HookCtx) {
	trans, failed, ok := outcome(ctx)
	if !ok {
		return
	}

	if failed {
		t.logger.Printf("fail, %s, %s, 0x%016x, 0x%x\n",
			location(ctx), trans.ID, trans.VAddr, trans.VPN)
		return
	}

	t.logger.Printf("translate, %s, %s, 0x%016x, 0x%016x, %t, %t\n",
		location(ctx),
		trans.ID,
		trans.VAddr,
		trans.PAddr,
		trans.TLBHit,
		trans.NewFrame,
	)
}

// A dbTracer is a hook that records every translation outcome into a
// database using the data recorder.
type dbTracer struct {
	dataRecorder datarecording.DataRecorder
}

// NewDBTracer creates a new database-based tracer.
func NewDBTracer(dataRecorder datarecording.DataRecorder) hooking.Hook {
	t := &dbTracer{
		dataRecorder: dataRecorder,
	}

	t.dataRecorder.CreateTable(TableName, translationEntry{})

	return t
}

func (t *dbTracer) Func(ctx hooking.HookCtx) {
	trans, failed, ok := outcome(ctx)
	if !ok {
		return
	}

	entry := translationEntry{
		ID:       trans.ID,
		Location: location(ctx),
		VAddr:    fmt.Sprintf("0x%016x", trans.VAddr),
		VPN:      trans.VPN,
		Failed:   failed,
	}

	if !failed {
		entry.PAddr = fmt.Sprintf("0x%016x", trans.PAddr)
		entry.PFN = trans.PFN
		entry.TLBHit = trans.TLBHit
		entry.NewFrame = trans.NewFrame
	}

	t.dataRecorder.InsertData(TableName, entry)
}

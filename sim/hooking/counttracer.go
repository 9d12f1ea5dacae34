package hooking

import (
	"sync"
)

// PosCountTracer counts how many times a hook is invoked at each position.
type PosCountTracer struct {
	lock sync.Mutex

	posNames []string
	posCount map[string]uint64
}

// NewPosCountTracer creates a new PosCountTracer.
func NewPosCountTracer() *PosCountTracer {
	return &PosCountTracer{
		posCount: make(map[string]uint64),
	}
}

// Func counts the position of the invocation.
func (t *PosCountTracer) Func(ctx HookCtx) {
	if ctx.Pos == nil {
		return
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	_, ok := t.posCount[ctx.Pos.Name]
	if !ok {
		t.posNames = append(t.posNames, ctx.Pos.Name)
	}

	t.posCount[ctx.Pos.Name]++
}

// GetPosNames returns the names of the positions seen so far, in the order
// they were first seen.
func (t *PosCountTracer) GetPosNames() []string {
	t.lock.Lock()
	defer t.lock.Unlock()

	names := make([]string, len(t.posNames))
	copy(names, t.posNames)

	return names
}

// GetCount returns the number of invocations at the given position.
func (t *PosCountTracer) GetCount(pos *HookPos) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.posCount[pos.Name]
}

// Package hooking lets observers attach to the events of a simulated
// component without the component knowing about them.
package hooking

import "log"

// HookPos names a point in a component's work where hooks are invoked, such
// as a TLB hit or a frame allocation.
type HookPos struct {
	Name string
}

// HookCtx describes one hook invocation. Domain is the component that fired
// the hook. Item is the value being processed at Pos. For an MMU it is a copy
// of the mmu.Translation as it stands at that point.
type HookCtx struct {
	Domain Hookable
	Pos    *HookPos
	Item   any
}

// Hookable is a component that hooks can be attached to.
type Hookable interface {
	// AcceptHook registers a hook.
	AcceptHook(hook Hook)

	// NumHooks returns the number of hooks registered.
	NumHooks() int

	// Hooks returns the hooks registered, in registration order.
	Hooks() []Hook
}

// Hook is invoked by a Hookable component at each of its hook positions.
// Hooks run synchronously on the component's goroutine.
type Hook interface {
	Func(ctx HookCtx)
}

// A HookableBase keeps the hook list of a component. Embed it to implement
// Hookable.
type HookableBase struct {
	hookList []Hook
}

// NumHooks returns the number of hooks registered.
func (h *HookableBase) NumHooks() int {
	return len(h.hookList)
}

// Hooks returns a copy of the registered hooks.
func (h *HookableBase) Hooks() []Hook {
	hooks := make([]Hook, len(h.hookList))
	copy(hooks, h.hookList)

	return hooks
}

// AcceptHook registers a hook. Registering the same hook twice panics.
func (h *HookableBase) AcceptHook(hook Hook) {
	for _, existing := range h.hookList {
		if existing == hook {
			log.Panicf("hook %T is already registered", hook)
		}
	}

	h.hookList = append(h.hookList, hook)
}

// InvokeHook calls every registered hook in registration order.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	for _, hook := range h.hookList {
		hook.Func(ctx)
	}
}

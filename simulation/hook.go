package simulation

// HookPos defines the enum of possible hooking positions.
type HookPos struct {
	Name string
}

// HookCtx is the context that holds all the information about the site that a
// hook is triggered.
type HookCtx struct {
	Domain Hookable
	Pos    *HookPos
	Item   interface{}
	Detail interface{}
}

// Hookable defines an object that accept Hooks.
type Hookable interface {
	// AcceptHook registers a hook.
	AcceptHook(hook Hook)

	// NumHooks returns the number of hooks registered.
	NumHooks() int
}

// HookPosAccess triggers before an event is simulated. The item is the
// trace.MemoryAccessEvent.
var HookPosAccess = &HookPos{Name: "Access"}

// HookPosOutcome triggers for every outcome. The item is the
// coherence.Outcome and the detail is the trace.MemoryAccessEvent that
// caused it.
var HookPosOutcome = &HookPos{Name: "Outcome"}

// HookPosMalformed triggers when records are dropped. The item is the number
// of dropped records as a uint64.
var HookPosMalformed = &HookPos{Name: "Malformed"}

// HookPosEnd triggers once after the last event. The item is the number of
// simulated events as a uint64.
var HookPosEnd = &HookPos{Name: "End"}

// Hook is a short piece of program that can be invoked by a hookable object.
type Hook interface {
	// Func determines what to do if hook is invoked.
	Func(ctx HookCtx)
}

// HookFunc adapts a function to the Hook interface.
type HookFunc func(ctx HookCtx)

// Func calls f.
func (f HookFunc) Func(ctx HookCtx) {
	f(ctx)
}

// A HookableBase provides some utility function for other type that implement
// the Hookable interface.
type HookableBase struct {
	hookList []Hook
}

// NumHooks returns the number of hooks registered.
func (h *HookableBase) NumHooks() int {
	return len(h.hookList)
}

// AcceptHook register a hook.
func (h *HookableBase) AcceptHook(hook Hook) {
	h.hookList = append(h.hookList, hook)
}

// InvokeHook triggers the register Hooks.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	for _, hook := range h.hookList {
		hook.Func(ctx)
	}
}

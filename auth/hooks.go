package auth

import "sync"

// Event names the lifecycle moments a caller can hook into.
type Event string

const (
	EventLogin         Event = "login"
	EventLogout        Event = "logout"
	EventRegister      Event = "register"
	EventActivate      Event = "activate"
	EventPasswordReset Event = "password-reset"
)

// BeforeHook runs before a lifecycle event is committed.  Returning false
// vetoes the operation; no state is mutated and the caller receives
// ErrHookVetoed.
type BeforeHook func(event Event, args ...any) bool

// AfterHook runs after a lifecycle event has committed.  After hooks
// cannot fail the operation.
type AfterHook func(event Event, args ...any)

// Hooks is a registry of before and after callbacks keyed by event.  The
// zero value is not usable; construct with NewHooks.  All methods are safe
// for concurrent use.
type Hooks struct {
	mu     sync.RWMutex
	before map[Event][]BeforeHook
	after  map[Event][]AfterHook
}

// NewHooks returns an empty hook registry.
func NewHooks() *Hooks {
	return &Hooks{
		before: make(map[Event][]BeforeHook),
		after:  make(map[Event][]AfterHook),
	}
}

// Before registers a veto-capable callback for the given event.
func (h *Hooks) Before(event Event, fn BeforeHook) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.before[event] = append(h.before[event], fn)
}

// After registers a post-commit callback for the given event.
func (h *Hooks) After(event Event, fn AfterHook) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.after[event] = append(h.after[event], fn)
}

// RunBefore invokes the before hooks for event in registration order and
// reports whether the operation may proceed.  A nil receiver always
// allows.
func (h *Hooks) RunBefore(event Event, args ...any) bool {
	if h == nil {
		return true
	}

	h.mu.RLock()
	hooks := h.before[event]
	h.mu.RUnlock()

	for _, fn := range hooks {
		if !fn(event, args...) {
			return false
		}
	}

	return true
}

// RunAfter invokes the after hooks for event in registration order.  A
// nil receiver is a no-op.
func (h *Hooks) RunAfter(event Event, args ...any) {
	if h == nil {
		return
	}

	h.mu.RLock()
	hooks := h.after[event]
	h.mu.RUnlock()

	for _, fn := range hooks {
		fn(event, args...)
	}
}

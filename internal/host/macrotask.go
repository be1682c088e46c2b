package host

import "fmt"

// MacroTask is the envelope carried from background goroutines to the
// engine goroutine. Implementations must only hold opaque identifiers and
// plain values, never engine references. The event loop dispatches on
// Kind, so new deferred-operation kinds only need a new type and a
// handler.
type MacroTask interface {
	Kind() string
}

// Kinds of the built-in timer envelopes.
const (
	KindFireTimer   = "timer.fire"
	KindCancelTimer = "timer.cancel"
)

// FireTimer asks the engine goroutine to run and clear timer ID.
type FireTimer struct {
	ID TimeoutID
}

func (FireTimer) Kind() string { return KindFireTimer }

func (t FireTimer) String() string { return fmt.Sprintf("fire timer %d", t.ID) }

// CancelTimer asks the engine goroutine to cancel timer ID. Hosts use it
// to cancel timers from goroutines other than the engine goroutine.
type CancelTimer struct {
	ID TimeoutID
}

func (CancelTimer) Kind() string { return KindCancelTimer }

func (t CancelTimer) String() string { return fmt.Sprintf("cancel timer %d", t.ID) }

package host

import "github.com/mysangle/blitz/internal/core"

// Refs is the engine-side table that keeps values alive across re-entries
// into the engine, independent of script reachability. Refs is only used
// on the engine goroutine.
type Refs interface {
	// Invoke calls the function held by ref with no arguments.
	Invoke(ref int) error
	// Release drops ref so the engine may collect the value.
	Release(ref int) error
}

// Global is an owned durable reference to an engine value. It may be
// called any number of times until it is released, and released exactly
// once; anything else is an invariant violation.
type Global struct {
	refs     Refs
	ref      int
	released bool
}

// NewGlobal takes ownership of ref in refs.
func NewGlobal(refs Refs, ref int) *Global {
	return &Global{refs: refs, ref: ref}
}

// Ref returns the engine-side reference number.
func (g *Global) Ref() int { return g.ref }

// Call invokes the referenced function with no arguments.
func (g *Global) Call() error {
	if g.released {
		core.Invariantf("call of released reference %d", g.ref)
	}
	return g.refs.Invoke(g.ref)
}

// Release gives the reference back to the engine.
func (g *Global) Release() error {
	if g.released {
		core.Invariantf("double release of reference %d", g.ref)
	}
	g.released = true
	return g.refs.Release(g.ref)
}

// Package blitz runs scripts in an embedded JavaScript engine with a
// single-threaded macro-task event loop. Scripts get setTimeout,
// clearTimeout, console and a DOM-like document; timers run on background
// goroutines and their callbacks are re-entered on the engine goroutine
// one at a time.
package blitz

import (
	"context"

	"github.com/mysangle/blitz/internal/dom"
	"github.com/mysangle/blitz/internal/eventloop"
)

// Run evaluates source in a fresh default engine with an empty document,
// then runs the event loop until no timer remains. Console output goes
// to the process streams.
func Run(source string) error {
	return RunContext(context.Background(), Config{}, source)
}

// RunContext is like Run with an explicit configuration. It returns
// ctx.Err() if ctx is done before the loop drains.
func RunContext(ctx context.Context, cfg Config, source string) error {
	l, err := New(cfg, dom.Empty())
	if err != nil {
		return err
	}
	return l.Run(ctx, source, "main.js")
}

// New creates an engine and its event loop. handler backs document and
// Node in script; use NewDocument or ParseDocument for an HTML document.
func New(cfg Config, handler HostHandler) (*Loop, error) {
	return eventloop.New(cfg, handler)
}

// Package extension defines the units that install native ops and script
// preludes into an engine before the event loop starts, together with the
// macro-task handlers that complete the work those ops defer.
package extension

import (
	"fmt"

	"github.com/mysangle/blitz/internal/core"
	"github.com/mysangle/blitz/internal/engine"
	"github.com/mysangle/blitz/internal/host"
)

// Op is a native function exposed to script. Global ops are installed on
// globalThis; the others live on the internal __blitz__ object.
type Op struct {
	Name   string
	Fn     any // see core.JSRuntime.RegisterFunc for supported signatures
	Global bool
}

// TaskHandler completes a macro task of one kind on the engine goroutine.
// A returned error is reported by the event loop, which then continues.
type TaskHandler func(ctx *engine.Context, task host.MacroTask) error

// Extension groups ops, script files evaluated after the ops are
// installed, and the handlers for the macro-task kinds it produces.
type Extension struct {
	Name  string
	Ops   []Op
	Files []string
	Tasks map[string]TaskHandler
}

// Load installs the extension into ctx. It runs once per engine, before
// the initial script.
func (e Extension) Load(ctx *engine.Context) error {
	for _, op := range e.Ops {
		if err := ctx.RegisterOp(op.Name, op.Fn, op.Global); err != nil {
			return fmt.Errorf("extension %s: %w", e.Name, err)
		}
	}
	for i, src := range e.Files {
		if err := ctx.EvalScript(src, fmt.Sprintf("<ext:%s:%d>", e.Name, i)); err != nil {
			return fmt.Errorf("extension %s: %w", e.Name, err)
		}
	}
	return nil
}

// Recommended returns the extensions every runtime loads: console,
// document, node and time.
func Recommended(st *host.State, cfg core.Config) []Extension {
	return []Extension{
		Console(st, cfg),
		Document(st),
		Node(st),
		Time(st),
	}
}

package core

// JSRuntime abstracts the JavaScript engine (QuickJS, goja or V8) behind
// the narrow surface the event loop and the extensions need. A JSRuntime
// is not safe for concurrent use: every method except Interrupt must be
// called from the goroutine that owns the engine.
type JSRuntime interface {
	// Eval evaluates JavaScript source and discards the result.
	Eval(js string) error

	// EvalString evaluates JavaScript and returns the result as a Go string.
	EvalString(js string) (string, error)

	// EvalInt evaluates JavaScript and returns the result as a Go int.
	EvalInt(js string) (int, error)

	// RegisterFunc registers a Go function as a global JavaScript function.
	// Arguments and results are marshaled by type (string, int, int64,
	// float64, bool). When the Go function returns (T, error) and the error
	// is non-nil, the JS wrapper throws a TypeError instead of returning.
	RegisterFunc(name string, fn any) error

	// SetGlobal sets a global variable on the JS context. Basic Go types
	// (string, int, float64, bool) are auto-converted to JS types.
	SetGlobal(name string, value any) error

	// RunMicrotasks pumps the microtask queue (Promise callbacks, etc.).
	RunMicrotasks()

	// Interrupt asks the engine to abort the script currently running.
	// It is the only method that may be called from another goroutine.
	Interrupt()

	// Close releases the engine. The runtime must not be used afterwards.
	Close() error
}

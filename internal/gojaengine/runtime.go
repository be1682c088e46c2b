// Package gojaengine implements core.JSRuntime on github.com/dop251/goja,
// a pure Go ECMAScript engine. It registers itself as the "goja" backend.
package gojaengine

import (
	"fmt"
	"reflect"

	"github.com/dop251/goja"
	"github.com/mysangle/blitz/internal/core"
)

// Name is the backend name goja registers under.
const Name = "goja"

func init() {
	core.RegisterBackend(Name, New)
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// gojaRuntime implements core.JSRuntime for goja. goja has no heap limit,
// so Config.MemoryLimitMB is ignored.
type gojaRuntime struct {
	vm *goja.Runtime
}

var _ core.JSRuntime = (*gojaRuntime)(nil)

// New creates a goja runtime.
func New(core.Config) (core.JSRuntime, error) {
	return &gojaRuntime{vm: goja.New()}, nil
}

// Eval evaluates JavaScript and discards the result.
func (r *gojaRuntime) Eval(js string) error {
	_, err := r.vm.RunString(js)
	return err
}

// EvalString evaluates JavaScript and returns the result as a Go string.
func (r *gojaRuntime) EvalString(js string) (string, error) {
	v, err := r.vm.RunString(js)
	if err != nil {
		return "", err
	}
	if goja.IsUndefined(v) || goja.IsNull(v) {
		return "", nil
	}
	return v.String(), nil
}

// EvalInt evaluates JavaScript and returns the result as a Go int.
func (r *gojaRuntime) EvalInt(js string) (int, error) {
	v, err := r.vm.RunString(js)
	if err != nil {
		return 0, err
	}
	switch n := v.Export().(type) {
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("expected int, got %T", n)
	}
}

// RegisterFunc registers a Go function as a global JavaScript function.
// Arguments are converted with ExportTo; a failed conversion or a non-nil
// trailing error result throws a TypeError.
func (r *gojaRuntime) RegisterFunc(name string, fn any) error {
	fnVal := reflect.ValueOf(fn)
	fnType := fnVal.Type()
	if fnType.Kind() != reflect.Func {
		return fmt.Errorf("RegisterFunc: expected function, got %T", fn)
	}

	return r.vm.Set(name, func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < fnType.NumIn() {
			panic(r.vm.NewTypeError("%s requires %d argument(s), got %d", name, fnType.NumIn(), len(call.Arguments)))
		}

		args := make([]reflect.Value, fnType.NumIn())
		for i := range args {
			ptr := reflect.New(fnType.In(i))
			if err := r.vm.ExportTo(call.Argument(i), ptr.Interface()); err != nil {
				panic(r.vm.NewTypeError("%s: argument %d: %v", name, i, err))
			}
			args[i] = ptr.Elem()
		}

		out := fnVal.Call(args)
		if n := len(out); n > 0 && fnType.Out(n-1) == errorType {
			if err, _ := out[n-1].Interface().(error); err != nil {
				panic(r.vm.NewTypeError("%s: %v", name, err))
			}
			out = out[:n-1]
		}
		if len(out) == 0 {
			return goja.Undefined()
		}
		return r.vm.ToValue(out[0].Interface())
	})
}

// SetGlobal sets a global variable on the runtime.
func (r *gojaRuntime) SetGlobal(name string, value any) error {
	return r.vm.Set(name, value)
}

// RunMicrotasks is a no-op: goja drains its job queue before RunString
// returns.
func (r *gojaRuntime) RunMicrotasks() {}

// Interrupt aborts the running script. Safe to call from any goroutine.
func (r *gojaRuntime) Interrupt() {
	r.vm.Interrupt(core.ErrExecutionTimeout)
}

// Close drops nothing: goja values are garbage collected with the runtime.
func (r *gojaRuntime) Close() error { return nil }

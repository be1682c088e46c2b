//go:build v8

// Package v8engine implements core.JSRuntime on V8 through
// github.com/tommie/v8go. It needs cgo and is only built with -tags v8.
package v8engine

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"

	"github.com/mysangle/blitz/internal/core"
	v8 "github.com/tommie/v8go"
)

// Name is the backend name V8 registers under.
const Name = "v8"

func init() {
	core.RegisterBackend(Name, New)
}

// v8Runtime implements core.JSRuntime for the V8 engine.
type v8Runtime struct {
	iso *v8.Isolate
	ctx *v8.Context
}

var _ core.JSRuntime = (*v8Runtime)(nil)

// New creates an isolate and a context. MemoryLimitMB caps the heap.
func New(cfg core.Config) (core.JSRuntime, error) {
	var iso *v8.Isolate
	if cfg.MemoryLimitMB > 0 {
		heapSize := uint64(cfg.MemoryLimitMB) * 1024 * 1024
		iso = v8.NewIsolate(v8.WithResourceConstraints(heapSize/2, heapSize))
	} else {
		iso = v8.NewIsolate()
	}
	return &v8Runtime{iso: iso, ctx: v8.NewContext(iso)}, nil
}

// Eval evaluates JavaScript and discards the result.
func (r *v8Runtime) Eval(js string) error {
	_, err := r.ctx.RunScript(js, "eval.js")
	return err
}

// EvalString evaluates JavaScript and returns the result as a Go string.
func (r *v8Runtime) EvalString(js string) (string, error) {
	val, err := r.ctx.RunScript(js, "eval_string.js")
	if err != nil {
		return "", err
	}
	if val == nil || val.IsUndefined() || val.IsNull() {
		return "", nil
	}
	return val.String(), nil
}

// EvalInt evaluates JavaScript and returns the result as a Go int.
func (r *v8Runtime) EvalInt(js string) (int, error) {
	val, err := r.ctx.RunScript(js, "eval_int.js")
	if err != nil {
		return 0, err
	}
	if val == nil || !val.IsNumber() {
		return 0, fmt.Errorf("expected int, got %v", val)
	}
	return int(val.Integer()), nil
}

// RegisterFunc registers a Go function as a global JavaScript function
// through a FunctionTemplate. Supported signatures are func(args...),
// func(args...) T and func(args...) (T, error); a non-nil error and a
// missing argument both throw a TypeError. Argument and result types are
// string, int, int64, float64 and bool.
func (r *v8Runtime) RegisterFunc(name string, fn any) error {
	fnVal := reflect.ValueOf(fn)
	fnType := fnVal.Type()
	if fnType.Kind() != reflect.Func {
		return fmt.Errorf("RegisterFunc: expected function, got %T", fn)
	}

	tmpl := v8.NewFunctionTemplate(r.iso, func(info *v8.FunctionCallbackInfo) *v8.Value {
		args := info.Args()
		if len(args) < fnType.NumIn() {
			return r.throwTypeError(fmt.Sprintf("%s requires %d argument(s), got %d", name, fnType.NumIn(), len(args)))
		}

		goArgs := make([]reflect.Value, fnType.NumIn())
		for i := range goArgs {
			goArgs[i] = jsToGoArg(args[i], fnType.In(i))
		}

		results := fnVal.Call(goArgs)
		switch fnType.NumOut() {
		case 0:
			return nil
		case 1:
			return goToJSValue(r.iso, results[0])
		default:
			if errVal := results[len(results)-1]; !errVal.IsNil() {
				return r.throwTypeError(fmt.Sprintf("%s: %v", name, errVal.Interface()))
			}
			return goToJSValue(r.iso, results[0])
		}
	})

	return r.ctx.Global().Set(name, tmpl.GetFunction(r.ctx))
}

// throwTypeError schedules a TypeError to be thrown when the callback
// returns. v8go has no TypeError constructor, so one is built in script.
func (r *v8Runtime) throwTypeError(msg string) *v8.Value {
	exc, err := r.ctx.RunScript(fmt.Sprintf("new TypeError(%s)", strconv.Quote(msg)), "type_error.js")
	if err != nil {
		exc, _ = v8.NewValue(r.iso, msg)
	}
	r.iso.ThrowException(exc)
	return nil
}

// SetGlobal sets a global variable on the JS context.
func (r *v8Runtime) SetGlobal(name string, value any) error {
	jsVal, err := goAnyToJSValue(r.iso, r.ctx, value)
	if err != nil {
		return fmt.Errorf("converting value for %q: %w", name, err)
	}
	return r.ctx.Global().Set(name, jsVal)
}

// RunMicrotasks pumps the V8 microtask queue.
func (r *v8Runtime) RunMicrotasks() {
	r.ctx.PerformMicrotaskCheckpoint()
}

// Interrupt terminates the running script. Safe from any goroutine.
func (r *v8Runtime) Interrupt() {
	r.iso.TerminateExecution()
}

func (r *v8Runtime) Close() error {
	r.ctx.Close()
	r.iso.Dispose()
	return nil
}

func jsToGoArg(val *v8.Value, targetType reflect.Type) reflect.Value {
	switch targetType.Kind() {
	case reflect.String:
		return reflect.ValueOf(val.String())
	case reflect.Int:
		return reflect.ValueOf(int(val.Integer()))
	case reflect.Int64:
		return reflect.ValueOf(val.Integer())
	case reflect.Float64:
		return reflect.ValueOf(val.Number())
	case reflect.Bool:
		return reflect.ValueOf(val.Boolean())
	default:
		return reflect.Zero(targetType)
	}
}

func goToJSValue(iso *v8.Isolate, val reflect.Value) *v8.Value {
	if !val.IsValid() {
		return nil
	}
	var (
		v   *v8.Value
		err error
	)
	switch val.Kind() {
	case reflect.String:
		v, err = v8.NewValue(iso, val.String())
	case reflect.Int, reflect.Int64, reflect.Int32:
		// Numbers beyond int32 keep their value as a double.
		if n := val.Int(); n >= -1<<31 && n < 1<<31 {
			v, err = v8.NewValue(iso, int32(n))
		} else {
			v, err = v8.NewValue(iso, float64(n))
		}
	case reflect.Float64, reflect.Float32:
		v, err = v8.NewValue(iso, val.Float())
	case reflect.Bool:
		v, err = v8.NewValue(iso, val.Bool())
	default:
		return nil
	}
	if err != nil {
		return nil
	}
	return v
}

func goAnyToJSValue(iso *v8.Isolate, ctx *v8.Context, value any) (*v8.Value, error) {
	if value == nil {
		return v8.Undefined(iso), nil
	}
	switch v := value.(type) {
	case string:
		return v8.NewValue(iso, v)
	case int:
		return goToJSValue(iso, reflect.ValueOf(v)), nil
	case int64:
		return goToJSValue(iso, reflect.ValueOf(v)), nil
	case float64:
		return v8.NewValue(iso, v)
	case bool:
		return v8.NewValue(iso, v)
	default:
		data, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("marshaling value: %w", err)
		}
		return ctx.RunScript(fmt.Sprintf("JSON.parse(%s)", strconv.Quote(string(data))), "set_global.js")
	}
}

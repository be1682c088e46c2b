// Package engine wraps a core.JSRuntime into the execution context the
// event loop re-enters: it installs the internal __blitz__ object and the
// reference table backing host.Global, bounds every entry with a watchdog
// and pumps microtasks after each one.
package engine

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/mysangle/blitz/internal/core"
	"github.com/sirupsen/logrus"
)

// bootstrapJS installs __blitz__, a non-enumerable global holding the
// reference table and the internal ops. Script code does not see it in
// Object.keys(globalThis).
const bootstrapJS = `(function() {
	var refs = new Map();
	var next = 0;
	var api = {};
	api.retain = function(value) {
		next++;
		refs.set(next, value);
		return next;
	};
	api.invoke = function(ref) {
		var fn = refs.get(ref);
		if (typeof fn !== 'function') {
			throw new TypeError('reference ' + ref + ' is not a function');
		}
		fn();
	};
	api.release = function(ref) {
		return refs.delete(ref);
	};
	api.live = function() {
		return refs.size;
	};
	Object.defineProperty(globalThis, '__blitz__', {
		value: api, enumerable: false, writable: false, configurable: false
	});
})();`

// opPrefix names the temporary global an internal op is registered under
// before it moves onto __blitz__.
const opPrefix = "__blitz_op_"

// Context owns a JSRuntime for its whole lifetime. It is used only from
// the engine goroutine.
type Context struct {
	rt      core.JSRuntime
	timeout time.Duration
	log     *logrus.Entry

	poisoned bool // the watchdog fired; the engine must not be entered again
	closed   bool
}

// New bootstraps rt. timeout bounds every entry into the engine, zero
// disables the watchdog.
func New(rt core.JSRuntime, timeout time.Duration, log *logrus.Entry) (*Context, error) {
	c := &Context{rt: rt, timeout: timeout, log: log}
	if err := rt.Eval(bootstrapJS); err != nil {
		return nil, fmt.Errorf("bootstrapping engine: %w", err)
	}
	return c, nil
}

// Runtime returns the wrapped runtime.
func (c *Context) Runtime() core.JSRuntime { return c.rt }

// EvalScript evaluates source as a classic script. An uncaught exception
// is returned as *core.ScriptError with Source set to name.
func (c *Context) EvalScript(source, name string) error {
	err := c.enter(func() error { return c.rt.Eval(source) })
	return c.scriptError(name, err)
}

// EvalString evaluates js like EvalScript and returns its result as a
// string.
func (c *Context) EvalString(js, name string) (string, error) {
	var out string
	err := c.enter(func() (err error) {
		out, err = c.rt.EvalString(js)
		return err
	})
	return out, c.scriptError(name, err)
}

// Invoke calls the function held by ref with no arguments. It implements
// host.Refs.
func (c *Context) Invoke(ref int) error {
	err := c.enter(func() error {
		return c.rt.Eval(fmt.Sprintf("void __blitz__.invoke(%d)", ref))
	})
	return c.scriptError(fmt.Sprintf("callback #%d", ref), err)
}

// Release drops ref from the reference table. It implements host.Refs.
// References of a poisoned or closed engine die with it.
func (c *Context) Release(ref int) error {
	if c.poisoned || c.closed {
		return nil
	}
	if err := c.rt.Eval(fmt.Sprintf("void __blitz__.release(%d)", ref)); err != nil {
		return fmt.Errorf("releasing reference %d: %w", ref, err)
	}
	return nil
}

// LiveRefs returns the number of values held by the reference table.
func (c *Context) LiveRefs() (int, error) {
	if err := c.usable(); err != nil {
		return 0, err
	}
	return c.rt.EvalInt("__blitz__.live()")
}

// RegisterOp installs fn as a native op. Global ops become globals named
// name; the others are reachable as __blitz__[name] only.
func (c *Context) RegisterOp(name string, fn any, global bool) error {
	if err := c.usable(); err != nil {
		return err
	}
	if global {
		if err := c.rt.RegisterFunc(name, fn); err != nil {
			return fmt.Errorf("registering op %s: %w", name, err)
		}
		return nil
	}

	tmp := opPrefix + name
	if err := c.rt.RegisterFunc(tmp, fn); err != nil {
		return fmt.Errorf("registering op %s: %w", name, err)
	}
	move := fmt.Sprintf("__blitz__[%q] = globalThis[%q]; delete globalThis[%q];", name, tmp, tmp)
	if err := c.rt.Eval(move); err != nil {
		return fmt.Errorf("installing op %s: %w", name, err)
	}
	return nil
}

// Close releases the engine. Further calls are no-ops.
func (c *Context) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.rt.Close()
}

func (c *Context) usable() error {
	if c.closed {
		return core.ErrClosed
	}
	if c.poisoned {
		return core.ErrExecutionTimeout
	}
	return nil
}

// enter runs fn inside the engine under the watchdog, then pumps
// microtasks. A watchdog expiry poisons the context.
func (c *Context) enter(fn func() error) (err error) {
	if err := c.usable(); err != nil {
		return err
	}

	var timedOut atomic.Bool
	if c.timeout > 0 {
		watchdog := time.AfterFunc(c.timeout, func() {
			timedOut.Store(true)
			c.rt.Interrupt()
		})
		defer watchdog.Stop()
	}

	defer func() {
		if r := recover(); r != nil {
			if !timedOut.Load() {
				panic(r)
			}
			err = c.timedOut()
		}
	}()

	err = fn()
	if !timedOut.Load() {
		c.rt.RunMicrotasks()
	}
	if timedOut.Load() {
		return c.timedOut()
	}
	return err
}

func (c *Context) timedOut() error {
	c.poisoned = true
	c.log.WithField("limit", c.timeout).Warn("engine: execution timed out, discarding engine")
	return fmt.Errorf("%w (limit: %v)", core.ErrExecutionTimeout, c.timeout)
}

func (c *Context) scriptError(source string, err error) error {
	if err == nil || c.poisoned || c.closed {
		return err
	}
	return &core.ScriptError{Source: source, Err: err}
}

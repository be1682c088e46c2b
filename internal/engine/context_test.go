package engine

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/mysangle/blitz/internal/core"
	_ "github.com/mysangle/blitz/internal/gojaengine"
	_ "github.com/mysangle/blitz/internal/quickjs"
	"github.com/sirupsen/logrus"
)

func testLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func newTestContext(t *testing.T, backend string, timeout time.Duration) *Context {
	t.Helper()
	rt, err := core.NewRuntime(core.Config{Backend: backend})
	if err != nil {
		t.Fatalf("NewRuntime(%s): %v", backend, err)
	}
	c, err := New(rt, timeout, testLog())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// forEachBackend runs fn against every registered engine.
func forEachBackend(t *testing.T, fn func(t *testing.T, c *Context)) {
	for _, name := range core.Backends() {
		t.Run(name, func(t *testing.T) {
			fn(t, newTestContext(t, name, 0))
		})
	}
}

func TestContext_BootstrapObjectHidden(t *testing.T) {
	forEachBackend(t, func(t *testing.T, c *Context) {
		got, err := c.Runtime().EvalString("String(Object.keys(globalThis).indexOf('__blitz__'))")
		if err != nil {
			t.Fatal(err)
		}
		if got != "-1" {
			t.Errorf("__blitz__ should not be enumerable, index = %s", got)
		}
		typ, err := c.Runtime().EvalString("typeof __blitz__.retain")
		if err != nil {
			t.Fatal(err)
		}
		if typ != "function" {
			t.Errorf("typeof __blitz__.retain = %q", typ)
		}
	})
}

func TestContext_RetainInvokeRelease(t *testing.T) {
	forEachBackend(t, func(t *testing.T, c *Context) {
		if err := c.EvalScript(`globalThis.hits = 0;
globalThis.ref = __blitz__.retain(function() { hits++; });`, "setup.js"); err != nil {
			t.Fatal(err)
		}
		ref, err := c.Runtime().EvalInt("ref")
		if err != nil {
			t.Fatal(err)
		}

		for i := 0; i < 2; i++ {
			if err := c.Invoke(ref); err != nil {
				t.Fatalf("Invoke: %v", err)
			}
		}
		if hits, _ := c.Runtime().EvalInt("hits"); hits != 2 {
			t.Errorf("hits = %d, want 2", hits)
		}
		if n, _ := c.LiveRefs(); n != 1 {
			t.Errorf("LiveRefs = %d, want 1", n)
		}

		if err := c.Release(ref); err != nil {
			t.Fatalf("Release: %v", err)
		}
		if n, _ := c.LiveRefs(); n != 0 {
			t.Errorf("LiveRefs after release = %d, want 0", n)
		}
	})
}

func TestContext_InvokeThrows(t *testing.T) {
	forEachBackend(t, func(t *testing.T, c *Context) {
		if err := c.EvalScript(`globalThis.ref = __blitz__.retain(function() { throw new Error("boom"); });`, "setup.js"); err != nil {
			t.Fatal(err)
		}
		ref, _ := c.Runtime().EvalInt("ref")

		err := c.Invoke(ref)
		var se *core.ScriptError
		if !errors.As(err, &se) {
			t.Fatalf("err = %v, want *core.ScriptError", err)
		}
		if !strings.Contains(err.Error(), "boom") {
			t.Errorf("err = %v, want message containing boom", err)
		}
	})
}

func TestContext_InvokeReleasedRef(t *testing.T) {
	forEachBackend(t, func(t *testing.T, c *Context) {
		err := c.Invoke(12345)
		var se *core.ScriptError
		if !errors.As(err, &se) {
			t.Fatalf("err = %v, want *core.ScriptError", err)
		}
	})
}

func TestContext_EvalScriptError(t *testing.T) {
	forEachBackend(t, func(t *testing.T, c *Context) {
		err := c.EvalScript("throw new TypeError('bad');", "main.js")
		var se *core.ScriptError
		if !errors.As(err, &se) {
			t.Fatalf("err = %v, want *core.ScriptError", err)
		}
		if se.Source != "main.js" {
			t.Errorf("Source = %q, want main.js", se.Source)
		}
	})
}

func TestContext_RegisterOp(t *testing.T) {
	forEachBackend(t, func(t *testing.T, c *Context) {
		if err := c.RegisterOp("add", func(a, b int) int { return a + b }, false); err != nil {
			t.Fatal(err)
		}
		if err := c.RegisterOp("shout", func(s string) string { return strings.ToUpper(s) }, true); err != nil {
			t.Fatal(err)
		}

		if n, err := c.Runtime().EvalInt("__blitz__.add(2, 3)"); err != nil || n != 5 {
			t.Errorf("__blitz__.add(2, 3) = %d, %v", n, err)
		}
		if s, _ := c.Runtime().EvalString("typeof globalThis.add + ',' + typeof globalThis.__blitz_op_add"); s != "undefined,undefined" {
			t.Errorf("internal op leaked onto globalThis: %s", s)
		}
		if s, err := c.Runtime().EvalString("shout('hi')"); err != nil || s != "HI" {
			t.Errorf("shout('hi') = %q, %v", s, err)
		}
	})
}

func TestContext_OpErrorThrowsTypeError(t *testing.T) {
	forEachBackend(t, func(t *testing.T, c *Context) {
		fail := func(s string) (string, error) { return "", errors.New("nope") }
		if err := c.RegisterOp("fail", fail, false); err != nil {
			t.Fatal(err)
		}
		got, err := c.Runtime().EvalString(`(function() {
	try { __blitz__.fail("x"); return "no throw"; }
	catch (e) { return e instanceof TypeError ? "type" : "other"; }
})()`)
		if err != nil {
			t.Fatal(err)
		}
		if got != "type" {
			t.Errorf("op error surfaced as %q, want TypeError", got)
		}
	})
}

func TestContext_MicrotasksRunAfterEntry(t *testing.T) {
	forEachBackend(t, func(t *testing.T, c *Context) {
		if err := c.EvalScript(`globalThis.settled = false;
Promise.resolve().then(function() { settled = true; });`, "main.js"); err != nil {
			t.Fatal(err)
		}
		got, _ := c.Runtime().EvalString("String(settled)")
		if got != "true" {
			t.Errorf("settled = %s, want true", got)
		}
	})
}

func TestContext_WatchdogPoisons(t *testing.T) {
	for _, name := range core.Backends() {
		t.Run(name, func(t *testing.T) {
			c := newTestContext(t, name, 50*time.Millisecond)

			err := c.EvalScript("for (;;) {}", "spin.js")
			if !errors.Is(err, core.ErrExecutionTimeout) {
				t.Fatalf("err = %v, want ErrExecutionTimeout", err)
			}
			if err := c.EvalScript("1", "after.js"); !errors.Is(err, core.ErrExecutionTimeout) {
				t.Errorf("poisoned context err = %v, want ErrExecutionTimeout", err)
			}
			if err := c.Release(1); err != nil {
				t.Errorf("Release on poisoned context = %v, want nil", err)
			}
		})
	}
}

func TestContext_Close(t *testing.T) {
	forEachBackend(t, func(t *testing.T, c *Context) {
		if err := c.Close(); err != nil {
			t.Fatal(err)
		}
		if err := c.Close(); err != nil {
			t.Errorf("second Close = %v", err)
		}
		if err := c.EvalScript("1", "x.js"); !errors.Is(err, core.ErrClosed) {
			t.Errorf("EvalScript after Close = %v, want ErrClosed", err)
		}
	})
}

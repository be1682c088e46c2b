package core

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestConfig_WithDefaults(t *testing.T) {
	cfg := Config{}.WithDefaults()
	if cfg.Backend != DefaultBackend {
		t.Errorf("Backend = %q, want %q", cfg.Backend, DefaultBackend)
	}
	if cfg.QueueSize != DefaultQueueSize {
		t.Errorf("QueueSize = %d, want %d", cfg.QueueSize, DefaultQueueSize)
	}
	if cfg.Stdout != os.Stdout || cfg.Stderr != os.Stderr {
		t.Error("Stdout/Stderr should default to the process streams")
	}
	if cfg.Logger == nil || cfg.Reporter == nil {
		t.Error("Logger and Reporter should be set")
	}

	var buf bytes.Buffer
	custom := Config{Backend: "goja", QueueSize: 3, Stdout: &buf}.WithDefaults()
	if custom.Backend != "goja" || custom.QueueSize != 3 || custom.Stdout != &buf {
		t.Errorf("explicit values were overwritten: %+v", custom)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"zero", Config{}, ""},
		{"valid", Config{ExecutionTimeout: time.Second, MemoryLimitMB: 64, QueueSize: 8}, ""},
		{"negative timeout", Config{ExecutionTimeout: -1}, "execution timeout"},
		{"negative memory", Config{MemoryLimitMB: -1}, "memory limit"},
		{"negative queue", Config{QueueSize: -1}, "queue size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, "debug", "json")
	if l.GetLevel() != logrus.DebugLevel {
		t.Errorf("level = %v, want debug", l.GetLevel())
	}
	l.WithField("k", "v").Info("hello")
	if !strings.Contains(buf.String(), `"k":"v"`) {
		t.Errorf("json output = %q", buf.String())
	}

	if got := NewLogger(io.Discard, "nonsense", "text").GetLevel(); got != logrus.InfoLevel {
		t.Errorf("unknown level fell back to %v, want info", got)
	}
}

type nopRuntime struct{ JSRuntime }

func TestBackendRegistry(t *testing.T) {
	name := "test-backend"
	var got Config
	RegisterBackend(name, func(cfg Config) (JSRuntime, error) {
		got = cfg
		return nopRuntime{}, nil
	})

	rt, err := NewRuntime(Config{Backend: name, MemoryLimitMB: 7})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := rt.(nopRuntime); !ok {
		t.Errorf("runtime = %T", rt)
	}
	if got.MemoryLimitMB != 7 {
		t.Errorf("factory did not receive the config")
	}

	found := false
	for _, b := range Backends() {
		found = found || b == name
	}
	if !found {
		t.Errorf("Backends() = %v, missing %s", Backends(), name)
	}

	if _, err := NewRuntime(Config{Backend: "missing"}); err == nil {
		t.Error("expected error for unregistered backend")
	}

	defer func() {
		if recover() == nil {
			t.Error("registering a backend twice should panic")
		}
	}()
	RegisterBackend(name, func(Config) (JSRuntime, error) { return nil, nil })
}

func TestNewRuntime_FactoryError(t *testing.T) {
	RegisterBackend("failing", func(Config) (JSRuntime, error) {
		return nil, errors.New("no memory")
	})
	_, err := NewRuntime(Config{Backend: "failing"})
	if err == nil || !strings.Contains(err.Error(), "creating failing runtime: no memory") {
		t.Fatalf("err = %v", err)
	}
}

func TestScriptError(t *testing.T) {
	cause := errors.New("ReferenceError: x is not defined")
	err := fmt.Errorf("timer 3: %w", &ScriptError{Source: "callback #1", Err: cause})

	var se *ScriptError
	if !errors.As(err, &se) {
		t.Fatal("expected *ScriptError in chain")
	}
	if !errors.Is(err, cause) {
		t.Error("ScriptError should unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "uncaught exception in callback #1") {
		t.Errorf("message = %q", err.Error())
	}
}

func TestInvariantf(t *testing.T) {
	defer func() {
		r := recover()
		ie, ok := r.(*InvariantError)
		if !ok {
			t.Fatalf("recovered %v, want *InvariantError", r)
		}
		if ie.Msg != "timer 4 fired twice" {
			t.Errorf("Msg = %q", ie.Msg)
		}
	}()
	Invariantf("timer %d fired twice", 4)
}

func TestLogReporter(t *testing.T) {
	var buf bytes.Buffer
	r := LogReporter{Log: logrus.NewEntry(NewLogger(&buf, "info", "json"))}

	r.Report(&ScriptError{Source: "main.js", Err: errors.New("boom")})
	if !strings.Contains(buf.String(), `"source":"main.js"`) || !strings.Contains(buf.String(), "boom") {
		t.Errorf("script error log = %q", buf.String())
	}

	buf.Reset()
	r.Report(errors.New("plain"))
	if !strings.Contains(buf.String(), "event loop error") {
		t.Errorf("plain error log = %q", buf.String())
	}

	var got error
	ReporterFunc(func(err error) { got = err }).Report(ErrClosed)
	if got != ErrClosed {
		t.Errorf("ReporterFunc got %v", got)
	}
}

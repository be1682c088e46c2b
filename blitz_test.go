package blitz

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

func TestRun(t *testing.T) {
	if err := Run(`var id = setTimeout(function() {}, 1000); clearTimeout(id);`); err != nil {
		t.Fatal(err)
	}
}

func TestRunContext(t *testing.T) {
	for _, backend := range Backends() {
		t.Run(backend, func(t *testing.T) {
			var out bytes.Buffer
			cfg := Config{Backend: backend, Stdout: &out, Logger: NewLogger(io.Discard, "error", "text")}
			err := RunContext(context.Background(), cfg, `
setTimeout(function() { console.log("late"); }, 50);
setTimeout(function() { console.log("early"); }, 10);
`)
			if err != nil {
				t.Fatal(err)
			}
			if out.String() != "early\nlate\n" {
				t.Errorf("output = %q", out.String())
			}
		})
	}
}

func TestRunContext_Errors(t *testing.T) {
	quiet := NewLogger(io.Discard, "error", "text")

	err := RunContext(context.Background(), Config{Logger: quiet}, `undefinedFunction();`)
	var se *ScriptError
	if !errors.As(err, &se) {
		t.Errorf("err = %v, want *ScriptError", err)
	}

	err = RunContext(context.Background(), Config{Logger: quiet, ExecutionTimeout: 50 * time.Millisecond}, `while (true) {}`)
	if !errors.Is(err, ErrExecutionTimeout) {
		t.Errorf("err = %v, want ErrExecutionTimeout", err)
	}

	err = RunContext(context.Background(), Config{Logger: quiet, Backend: "nope"}, ``)
	if err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestNew_Document(t *testing.T) {
	doc, err := ParseDocument(`<p class="greeting" title="hi">hello</p>`)
	if err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	l, err := New(Config{Stdout: &out, Logger: NewLogger(io.Discard, "error", "text")}, doc)
	if err != nil {
		t.Fatal(err)
	}
	err = l.Run(context.Background(), `
var p = document.querySelectorAll("p.greeting")[0];
setTimeout(function() {
	console.log(p.getAttribute("title"));
	p.innerHTML = "<b>bye</b>";
}, 0);
`, "page.js")
	if err != nil {
		t.Fatal(err)
	}
	if out.String() != "hi\n" {
		t.Errorf("output = %q", out.String())
	}
	want := `<html><head></head><body><p class="greeting" title="hi"><b>bye</b></p></body></html>`
	if got := doc.String(); got != want {
		t.Errorf("document = %s, want %s", got, want)
	}
}

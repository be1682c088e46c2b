package maincmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mna/mainer"
)

func writeFile(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(src), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func runMain(t *testing.T, args ...string) (mainer.ExitCode, string, string) {
	t.Helper()
	var buf, ebuf bytes.Buffer
	stdio := mainer.Stdio{
		Stdout: &buf,
		Stderr: &ebuf,
	}
	var c Cmd
	code := c.Main(append([]string{binName}, args...), stdio)
	return code, buf.String(), ebuf.String()
}

func TestMain_Args(t *testing.T) {
	dir := t.TempDir()
	script := writeFile(t, dir, "main.js", `console.log("hi");`)

	tests := []struct {
		name string
		args []string
		code mainer.ExitCode
	}{
		{"no command", nil, mainer.InvalidArgs},
		{"unknown command", []string{"serve"}, mainer.InvalidArgs},
		{"run without script", []string{"run"}, mainer.InvalidArgs},
		{"run with two scripts", []string{"run", script, script}, mainer.InvalidArgs},
		{"check without script", []string{"check"}, mainer.InvalidArgs},
		{"run-only flag on check", []string{"--keep-alive", "check", script}, mainer.InvalidArgs},
		{"bad timeout", []string{"--timeout", "soon", "run", script}, mainer.InvalidArgs},
		{"negative queue size", []string{"--queue-size", "-1", "run", script}, mainer.InvalidArgs},
		{"bad log format", []string{"--log-format", "xml", "run", script}, mainer.InvalidArgs},
		{"help", []string{"--help"}, mainer.Success},
		{"version", []string{"-v"}, mainer.Success},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := runMain(t, tt.args...)
			if code != tt.code {
				t.Errorf("exit code = %d, want %d (stderr: %s)", code, tt.code, stderr)
			}
		})
	}
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	script := writeFile(t, dir, "main.js", `
var id = setTimeout(function() { console.log("cancelled"); }, 1000);
setTimeout(function() { console.log("B"); }, 20);
setTimeout(function() { console.log("A"); }, 0);
clearTimeout(id);
`)
	for _, engine := range []string{"quickjs", "goja"} {
		t.Run(engine, func(t *testing.T) {
			code, stdout, stderr := runMain(t, "--engine", engine, "run", script)
			if code != mainer.Success {
				t.Fatalf("exit code = %d, stderr: %s", code, stderr)
			}
			if stdout != "A\nB\n" {
				t.Errorf("stdout = %q", stdout)
			}
		})
	}
}

func TestRun_Document(t *testing.T) {
	dir := t.TempDir()
	page := writeFile(t, dir, "page.html", `<html><body><ul id="list"></ul></body></html>`)
	script := writeFile(t, dir, "main.js", `
setTimeout(function() {
	document.querySelectorAll("#list")[0].innerHTML = "<li>one</li>";
}, 0);
`)
	code, stdout, stderr := runMain(t, "--document", page, "--print-document", "run", script)
	if code != mainer.Success {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, `<ul id="list"><li>one</li></ul>`) {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestRun_ScriptError(t *testing.T) {
	script := writeFile(t, t.TempDir(), "main.js", `throw new Error("boom");`)
	code, _, stderr := runMain(t, "run", script)
	if code != mainer.Failure {
		t.Fatalf("exit code = %d, want %d", code, mainer.Failure)
	}
	if !strings.Contains(stderr, "boom") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestRun_Timeout(t *testing.T) {
	script := writeFile(t, t.TempDir(), "main.js", `setTimeout(function() { for (;;) {} }, 0);`)
	code, _, stderr := runMain(t, "--timeout", "100ms", "run", script)
	if code != mainer.Failure {
		t.Fatalf("exit code = %d, want %d", code, mainer.Failure)
	}
	if !strings.Contains(stderr, "timed out") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestRun_MissingScript(t *testing.T) {
	code, _, stderr := runMain(t, "run", filepath.Join(t.TempDir(), "missing.js"))
	if code != mainer.Failure {
		t.Fatalf("exit code = %d, want %d", code, mainer.Failure)
	}
	if !strings.Contains(stderr, "reading script") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.ts", `const n: number = 1; console.log(n);`)
	bad := writeFile(t, dir, "bad.js", `function (`)

	code, stdout, _ := runMain(t, "check", good)
	if code != mainer.Success {
		t.Fatalf("exit code = %d", code)
	}
	if stdout != good+": ok\n" {
		t.Errorf("stdout = %q", stdout)
	}

	code, _, stderr := runMain(t, "check", good, bad)
	if code != mainer.Failure {
		t.Fatalf("exit code = %d, want %d", code, mainer.Failure)
	}
	if !strings.Contains(stderr, "bad.js") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestBackends(t *testing.T) {
	code, stdout, _ := runMain(t, "backends")
	if code != mainer.Success {
		t.Fatalf("exit code = %d", code)
	}
	for _, want := range []string{"goja\n", "quickjs (default)\n"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("stdout %q missing %q", stdout, want)
		}
	}
}

package script

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(src), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNeedsBundling(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   bool
	}{
		{"plain script", `setTimeout(function() { console.log("A"); }, 0);`, false},
		{"import statement", `import { foo } from './utils.js';`, true},
		{"import no space", `import{foo} from './utils.js';`, true},
		{"dynamic import", `const m = import('./mod.js');`, true},
		{"export", `export const x = 1;`, true},
		{"comment with import word", `// this is important`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := needsBundling(tt.source); got != tt.want {
				t.Errorf("needsBundling(%q) = %v, want %v", tt.source, got, tt.want)
			}
		})
	}
}

func TestLoad_PlainScriptUnchanged(t *testing.T) {
	src := `console.log("hi");`
	path := writeFile(t, t.TempDir(), "main.js", src)

	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got != src {
		t.Errorf("expected source unchanged, got %q", got)
	}
}

func TestLoad_BundlesImports(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "greet.js", `export function greet(name) { return "Hello " + name; }`)
	path := writeFile(t, dir, "main.js", `import { greet } from './greet.js';
console.log(greet("blitz"));`)

	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(got, "import ") {
		t.Errorf("bundle still contains import: %s", got)
	}
	if !strings.Contains(got, "Hello ") {
		t.Errorf("bundle missing imported code: %s", got)
	}
}

func TestLoad_TypeScript(t *testing.T) {
	path := writeFile(t, t.TempDir(), "main.ts", `const n: number = 42;
console.log(n);`)

	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(got, ": number") {
		t.Errorf("type annotation not stripped: %s", got)
	}
}

func TestLoad_BundleError(t *testing.T) {
	path := writeFile(t, t.TempDir(), "main.js", `import { x } from './missing.js';`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unresolved import")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.js")); err == nil {
		t.Fatal("expected error")
	}
}

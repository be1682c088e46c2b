package core

import (
	"fmt"
	"sort"
	"sync"
)

// DefaultBackend is the engine used when Config.Backend is empty.
const DefaultBackend = "quickjs"

// BackendFactory creates a fresh JSRuntime configured from cfg.
type BackendFactory func(cfg Config) (JSRuntime, error)

var backends = struct {
	mu        sync.RWMutex
	factories map[string]BackendFactory
}{factories: make(map[string]BackendFactory)}

// RegisterBackend makes an engine available under name. Engine packages
// call it from init; registering the same name twice panics.
func RegisterBackend(name string, f BackendFactory) {
	backends.mu.Lock()
	defer backends.mu.Unlock()
	if _, dup := backends.factories[name]; dup {
		panic(fmt.Sprintf("core: backend %q registered twice", name))
	}
	backends.factories[name] = f
}

// NewRuntime resolves cfg.Backend (DefaultBackend when empty) and creates a
// runtime from it. Returns an error if the backend is not registered.
func NewRuntime(cfg Config) (JSRuntime, error) {
	name := cfg.Backend
	if name == "" {
		name = DefaultBackend
	}

	backends.mu.RLock()
	f, ok := backends.factories[name]
	backends.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("engine backend %q is not registered (available: %v)", name, Backends())
	}

	rt, err := f(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating %s runtime: %w", name, err)
	}
	return rt, nil
}

// Backends returns the names of all registered engines, sorted.
func Backends() []string {
	backends.mu.RLock()
	defer backends.mu.RUnlock()

	names := make([]string, 0, len(backends.factories))
	for name := range backends.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

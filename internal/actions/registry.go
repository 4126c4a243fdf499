// Package actions provides named shade-command callbacks and an invoker
// that executes them with ledger-backed deduplication.
package actions

import (
	"context"
	"fmt"
	"sync"
)

// Handler executes a shade command for a room
type Handler func(ctx context.Context, room, command string) error

// Registry holds all registered command callbacks by name. Schedules store
// a callback name, not a function reference, so jobs survive a registry
// rebuild.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates a new callback registry
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register adds a callback to the registry
func (r *Registry) Register(name string, fn Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("callback %q already registered", name)
	}

	r.handlers[name] = fn
	return nil
}

// Get retrieves a callback by name
func (r *Registry) Get(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, exists := r.handlers[name]
	return fn, exists
}

// Names returns all registered callback names
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	return names
}

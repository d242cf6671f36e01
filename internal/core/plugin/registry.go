package plugin

import (
	"errors"
	"fmt"
	"sync"
)

// =============================================================================
// Registry
// =============================================================================

// Registry maps plugin name to plugin instance. There is no removal; a
// registry lives as long as the program that built it.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]Plugin)}
}

// Register adds a plugin. It fails with ErrDuplicateName if the name is taken.
func (r *Registry) Register(p Plugin) error {
	if p == nil || p.Name() == "" {
		return ErrEmptyName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Name()
	if _, exists := r.plugins[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	r.plugins[name] = p
	r.order = append(r.order, name)
	return nil
}

// Get looks up a plugin by name.
func (r *Registry) Get(name string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[name]
	return p, ok
}

// List returns every plugin in registration order.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Plugin, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.plugins[name])
	}
	return out
}

// ListByCapability returns the plugins exposing c, in registration order.
func (r *Registry) ListByCapability(c Capability) []Plugin {
	var out []Plugin
	for _, p := range r.List() {
		if Has(p, c) {
			out = append(out, p)
		}
	}
	return out
}

// Bootstrap registers every plugin into reg. All registration failures are
// returned together; plugins that registered successfully stay registered.
func Bootstrap(reg *Registry, plugins ...Plugin) error {
	var errs []error
	for _, p := range plugins {
		if err := reg.Register(p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

package plugin

import (
	"github.com/AaronFeledy/devx-sub000/internal/core/stack"
)

// Defaults are the globally configured plugin names.
type Defaults struct {
	Builder string `mapstructure:"builder"`
	Engine  string `mapstructure:"engine"`
}

// Resolver picks the builder and engine for a stack. It has no side effects.
type Resolver struct {
	registry *Registry
}

// NewResolver creates a resolver over reg.
func NewResolver(reg *Registry) *Resolver {
	return &Resolver{registry: reg}
}

// ResolveBuilder returns the builder for cfg.
func (r *Resolver) ResolveBuilder(cfg *stack.Config, defaults Defaults) (Builder, error) {
	p, err := r.lookup(CapabilityBuilder, cfg.BuilderName(), defaults.Builder)
	if err != nil {
		return nil, err
	}
	b, ok := p.AsBuilder()
	if !ok {
		return nil, &ResolveError{Capability: CapabilityBuilder, Plugin: p.Name(), Err: ErrPluginMissingCapability}
	}
	return b, nil
}

// ResolveEngine returns the engine for cfg.
func (r *Resolver) ResolveEngine(cfg *stack.Config, defaults Defaults) (Engine, error) {
	p, err := r.lookup(CapabilityEngine, cfg.EngineName(), defaults.Engine)
	if err != nil {
		return nil, err
	}
	e, ok := p.AsEngine()
	if !ok {
		return nil, &ResolveError{Capability: CapabilityEngine, Plugin: p.Name(), Err: ErrPluginMissingCapability}
	}
	return e, nil
}

// ResolvedName applies the precedence rule without touching the registry.
func ResolvedName(override, fallback string) string {
	if override != "" {
		return override
	}
	return fallback
}

func (r *Resolver) lookup(c Capability, override, fallback string) (Plugin, error) {
	name := ResolvedName(override, fallback)
	if name == "" {
		return nil, &ResolveError{Capability: c, Err: ErrNoDefaultConfigured}
	}
	p, ok := r.registry.Get(name)
	if !ok {
		return nil, &ResolveError{Capability: c, Plugin: name, Err: ErrPluginNotRegistered}
	}
	return p, nil
}

package plugin

import (
	"context"
	"errors"

	"github.com/AaronFeledy/devx-sub000/internal/core/domain"
	"github.com/AaronFeledy/devx-sub000/internal/core/stack"
)

// ErrStackNotCreated is returned by an engine when a runtime operation finds
// no containers for the stack. The orchestrator falls back to the builder.
var ErrStackNotCreated = errors.New("stack has no containers")

// =============================================================================
// Capability Interfaces
// =============================================================================

// DestroyOptions controls stack teardown.
type DestroyOptions struct {
	RemoveVolumes bool
}

// Builder generates orchestrator config for a stack and drives build, up and
// down through a compose-like tool.
type Builder interface {
	Name() string
	IsAvailable(ctx context.Context) bool
	// GenerateConfig renders the orchestrator config and returns its path.
	GenerateConfig(ctx context.Context, cfg *stack.Config, projectPath string) (string, error)
	Build(ctx context.Context, cfg *stack.Config, projectPath string) error
	Start(ctx context.Context, cfg *stack.Config, projectPath string) error
	Stop(ctx context.Context, cfg *stack.Config, projectPath string) error
	Destroy(ctx context.Context, cfg *stack.Config, projectPath string, opts DestroyOptions) error
}

// Engine queries and drives the container runtime directly.
type Engine interface {
	Name() string
	IsAvailable(ctx context.Context) bool
	GetStackStatus(ctx context.Context, stackName, projectPath string) (*domain.StackStatus, error)
	// Start starts the stack's existing containers. It returns
	// ErrStackNotCreated when there are none.
	Start(ctx context.Context, cfg *stack.Config, projectPath string) error
	// Stop stops the stack's running containers. It returns
	// ErrStackNotCreated when there are none.
	Stop(ctx context.Context, cfg *stack.Config, projectPath string) error
}

// =============================================================================
// Plugin
// =============================================================================

// Capability names one kind of plugin implementation.
type Capability string

const (
	CapabilityBuilder Capability = "builder"
	CapabilityEngine  Capability = "engine"
)

// Plugin is a named capability bundle.
type Plugin interface {
	Name() string
	Version() string
	AsBuilder() (Builder, bool)
	AsEngine() (Engine, bool)
}

// Has reports whether p exposes the capability.
func Has(p Plugin, c Capability) bool {
	switch c {
	case CapabilityBuilder:
		_, ok := p.AsBuilder()
		return ok
	case CapabilityEngine:
		_, ok := p.AsEngine()
		return ok
	}
	return false
}

// Capabilities lists the capabilities p exposes, builder first.
func Capabilities(p Plugin) []Capability {
	var caps []Capability
	for _, c := range []Capability{CapabilityBuilder, CapabilityEngine} {
		if Has(p, c) {
			caps = append(caps, c)
		}
	}
	return caps
}

// Bundle is the standard Plugin implementation: a name and version plus
// optional builder and engine implementations.
type Bundle struct {
	PluginName    string
	PluginVersion string
	Builder       Builder
	Engine        Engine
}

var _ Plugin = (*Bundle)(nil)

// Name returns the plugin name. A nil *Bundle has an empty name and no
// capabilities.
func (b *Bundle) Name() string {
	if b == nil {
		return ""
	}
	return b.PluginName
}

func (b *Bundle) Version() string {
	if b == nil {
		return ""
	}
	return b.PluginVersion
}

// AsBuilder returns the builder capability, if present.
func (b *Bundle) AsBuilder() (Builder, bool) {
	if b == nil {
		return nil, false
	}
	return b.Builder, b.Builder != nil
}

// AsEngine returns the engine capability, if present.
func (b *Bundle) AsEngine() (Engine, bool) {
	if b == nil {
		return nil, false
	}
	return b.Engine, b.Engine != nil
}

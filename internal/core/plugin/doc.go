// Package plugin defines the builder and engine plugin contracts, the
// registry that holds plugin instances, and the resolver that picks the
// plugin for a stack.
//
// # Capabilities
//
// A Plugin is a named bundle of capabilities. Capability presence is
// checked through AsBuilder and AsEngine rather than by inspecting fields:
//
//	if b, ok := p.AsBuilder(); ok {
//	    path, err := b.GenerateConfig(ctx, cfg, projectPath)
//	}
//
// # Registration
//
// Nothing registers itself. The host program calls Bootstrap once at startup
// with every plugin instance it wants available, and passes the resulting
// Registry to the orchestrator. Tests construct isolated registries.
//
// # Resolution
//
// The resolver applies one precedence rule for both capabilities:
// stack-level override, then the global default, then ErrNoDefaultConfigured.
package plugin

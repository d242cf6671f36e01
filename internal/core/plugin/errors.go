package plugin

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrDuplicateName is returned when registering a second plugin under a
	// name that is already taken.
	ErrDuplicateName = errors.New("plugin name already registered")

	// ErrEmptyName is returned when registering a plugin without a name.
	ErrEmptyName = errors.New("plugin has empty name")

	// ErrPluginNotRegistered is returned when the resolved name is unknown.
	ErrPluginNotRegistered = errors.New("plugin not registered")

	// ErrPluginMissingCapability is returned when the resolved plugin does not
	// implement the required capability.
	ErrPluginMissingCapability = errors.New("plugin missing capability")

	// ErrNoDefaultConfigured is returned when neither the stack nor the global
	// defaults name a plugin.
	ErrNoDefaultConfigured = errors.New("no default plugin configured")
)

// ResolveError wraps resolution failures with the capability and plugin name.
type ResolveError struct {
	Capability Capability
	Plugin     string
	Err        error
}

func (e *ResolveError) Error() string {
	if e.Plugin != "" {
		return fmt.Sprintf("resolve %s %q: %v", e.Capability, e.Plugin, e.Err)
	}
	return fmt.Sprintf("resolve %s: %v", e.Capability, e.Err)
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}

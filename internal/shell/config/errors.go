// Package config locates, parses and validates stack config files.
package config

import (
	"errors"
	"fmt"

	"github.com/AaronFeledy/devx-sub000/internal/core/stack"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrConfigNotFound is returned when no config file can be located.
	ErrConfigNotFound = errors.New("stack config not found")

	// ErrConfigParse is returned when a config file is not valid YAML or JSON.
	ErrConfigParse = errors.New("stack config parse error")

	// ErrConfigInvalid is returned when a parsed config fails validation.
	ErrConfigInvalid = stack.ErrConfigInvalid
)

// LoadError carries the failing step, the file involved and the underlying
// cause. Both Err and Cause are reachable through errors.Is and errors.As.
type LoadError struct {
	Op    string // "find", "lookup", "read", "parse", "validate"
	Path  string // File path or identifier
	Err   error  // One of the sentinel errors above
	Cause error  // Parser, filesystem or validation error, if any
}

func (e *LoadError) Error() string {
	msg := e.Err.Error()
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Path, msg)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *LoadError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// Violations returns the field-level violations of an invalid config.
func (e *LoadError) Violations() []stack.FieldViolation {
	var verr *stack.ValidationError
	if errors.As(e.Cause, &verr) {
		return verr.Violations
	}
	return nil
}

func newLoadError(op, path string, err, cause error) *LoadError {
	return &LoadError{Op: op, Path: path, Err: err, Cause: cause}
}

// Package compose renders stack configs into compose manifests and plans
// service ordering. This is part of the Functional Core - all functions are
// pure with no I/O.
package compose

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	ErrNilConfig       = errors.New("stack config is nil")
	ErrInvalidPort     = errors.New("invalid port configuration")
	ErrInvalidVolume   = errors.New("invalid volume configuration")
	ErrInvalidResource = errors.New("invalid network or volume definition")
	ErrMarshalManifest = errors.New("failed to render compose manifest")
)

// ConvertError wraps errors with context about which field failed to convert.
type ConvertError struct {
	Field   string // e.g., "services.web.ports[0]"
	Message string
	Err     error
}

func (e *ConvertError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *ConvertError) Unwrap() error {
	return e.Err
}

// NewConvertError creates a new ConvertError.
func NewConvertError(field, message string, err error) *ConvertError {
	return &ConvertError{
		Field:   field,
		Message: message,
		Err:     err,
	}
}

package stack

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrConfigInvalid is returned when a parsed config fails schema validation.
	ErrConfigInvalid = errors.New("stack config is invalid")
)

// FieldViolation is one schema violation, e.g. services.web.image: required.
type FieldViolation struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

func (v FieldViolation) String() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

// ValidationError carries every field-level violation found in a config.
type ValidationError struct {
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.String())
	}
	return fmt.Sprintf("%s: %s", ErrConfigInvalid.Error(), strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrConfigInvalid
}

// NewValidationError creates a ValidationError from violations.
func NewValidationError(violations ...FieldViolation) *ValidationError {
	return &ValidationError{Violations: violations}
}

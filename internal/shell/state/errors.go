// Package state persists stack lifecycle records in a single JSON document.
package state

import (
	"errors"
	"fmt"

	"github.com/AaronFeledy/devx-sub000/internal/core/domain"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrPersistenceRead is reported (and recovered from) when the state file
	// cannot be read or decoded.
	ErrPersistenceRead = errors.New("failed to read state")

	// ErrPersistenceWrite is returned when the state file cannot be written.
	ErrPersistenceWrite = errors.New("failed to write state")

	// ErrInvalidState is returned when a state fails schema validation.
	ErrInvalidState = errors.New("invalid state")

	// ErrMissingConfigPath is returned by Update when creating a new record
	// without a config path.
	ErrMissingConfigPath = domain.ErrMissingConfigPath
)

// StoreError wraps errors with the operation and stack they concern.
type StoreError struct {
	Op    string // e.g., "SaveAll", "Update"
	Stack string // stack name if applicable
	Err   error
}

func (e *StoreError) Error() string {
	if e.Stack != "" {
		return fmt.Sprintf("state %s %s: %v", e.Op, e.Stack, e.Err)
	}
	return fmt.Sprintf("state %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError.
func NewStoreError(op, stack string, err error) *StoreError {
	return &StoreError{Op: op, Stack: stack, Err: err}
}

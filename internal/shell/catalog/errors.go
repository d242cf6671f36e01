// Package catalog records stack metadata (name to config path) and the
// history of lifecycle operations in SQLite.
package catalog

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrNotFound is returned when a stack is not in the catalog.
	ErrNotFound = errors.New("stack not found in catalog")

	// ErrConnectionFailed is returned when the database cannot be opened.
	ErrConnectionFailed = errors.New("catalog connection failed")

	// ErrMigrationFailed is returned when schema migration fails.
	ErrMigrationFailed = errors.New("catalog migration failed")

	// ErrQueryFailed is returned when a query or statement fails.
	ErrQueryFailed = errors.New("catalog query failed")
)

// CatalogError wraps errors with additional context.
type CatalogError struct {
	Op      string // Operation that failed (e.g., "RecordStack")
	Stack   string // Stack name if applicable
	Message string
	Err     error
}

func (e *CatalogError) Error() string {
	if e.Stack != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Stack, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *CatalogError) Unwrap() error {
	return e.Err
}

// NewCatalogError creates a new CatalogError.
func NewCatalogError(op, stack, message string, err error) *CatalogError {
	return &CatalogError{
		Op:      op,
		Stack:   stack,
		Message: message,
		Err:     err,
	}
}

package podman

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// Container errors
	ErrContainerNotFound       = errors.New("container not found")
	ErrContainerNotRunning     = errors.New("container is not running")
	ErrContainerAlreadyRunning = errors.New("container is already running")

	// Connection errors
	ErrConnectionFailed = errors.New("podman connection failed")
	ErrNoClient         = errors.New("podman client not configured")
)

// EngineError wraps errors with additional context.
type EngineError struct {
	Op      string // Operation that failed
	Entity  string // Entity type (container, stack)
	ID      string // Entity ID or name if applicable
	Message string
	Err     error
}

func (e *EngineError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %s %s: %s", e.Op, e.Entity, e.ID, e.Message)
	}
	if e.Entity != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Entity, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// NewEngineError creates a new EngineError.
func NewEngineError(op, entity, id, message string, err error) *EngineError {
	return &EngineError{
		Op:      op,
		Entity:  entity,
		ID:      id,
		Message: message,
		Err:     err,
	}
}

package lifecycle

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrDelegateFailure marks an error returned by a builder or engine plugin.
	ErrDelegateFailure = errors.New("plugin operation failed")

	// ErrBuildRequired is returned by Start when the inline build did not
	// leave the stack built.
	ErrBuildRequired = errors.New("build failed, cannot start")
)

// OperationError qualifies a failed operation with the stack and operation
// name. The original error stays reachable through errors.Is and errors.As.
type OperationError struct {
	Stack    string
	Op       Operation
	Err      error
	Delegate bool // Err came from a plugin call
}

func (e *OperationError) Error() string {
	if e.Stack == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Stack, e.Err)
}

func (e *OperationError) Unwrap() []error {
	if e.Delegate {
		return []error{ErrDelegateFailure, e.Err}
	}
	return []error{e.Err}
}

func opError(stack string, op Operation, err error) *OperationError {
	return &OperationError{Stack: stack, Op: op, Err: err}
}

func delegateError(stack string, op Operation, err error) *OperationError {
	return &OperationError{Stack: stack, Op: op, Err: err, Delegate: true}
}

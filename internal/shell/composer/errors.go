package composer

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrCommandFailed is returned when the compose tool exits non-zero.
	ErrCommandFailed = errors.New("compose command failed")

	// ErrManifestWrite is returned when the manifest cannot be written.
	ErrManifestWrite = errors.New("failed to write compose manifest")
)

// ComposeError describes a failed compose invocation.
type ComposeError struct {
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ComposeError) Error() string {
	if e.ExitCode != 0 && e.ExitCode != -1 {
		return fmt.Sprintf("compose command exited with code %d: %s", e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("%s: %v", e.Command, e.Err)
}

func (e *ComposeError) Unwrap() error {
	return e.Err
}

package api

import (
	"time"

	"github.com/AaronFeledy/devx-sub000/internal/core/domain"
)

// =============================================================================
// Response Types
// =============================================================================

// ErrorResponse is the error response format.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status string `json:"status"`
}

// StackListResponse lists every persisted stack record.
type StackListResponse struct {
	Stacks []domain.StackState `json:"stacks"`
}

// OperationResponse is returned by the lifecycle endpoints. State is nil
// after a successful destroy.
type OperationResponse struct {
	Stack     string             `json:"stack"`
	Operation string             `json:"operation"`
	State     *domain.StackState `json:"state,omitempty"`
}

// OperationRecord is one entry of a stack's operation history.
type OperationRecord struct {
	ID         string    `json:"id"`
	Operation  string    `json:"operation"`
	Outcome    string    `json:"outcome"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// HistoryResponse is the operation history of a stack.
type HistoryResponse struct {
	Stack      string            `json:"stack"`
	Operations []OperationRecord `json:"operations"`
}

// PluginResponse describes one registered plugin.
type PluginResponse struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Capabilities []string `json:"capabilities"`
}

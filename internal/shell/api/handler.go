// Package api exposes the stack lifecycle over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/AaronFeledy/devx-sub000/internal/core/domain"
	"github.com/AaronFeledy/devx-sub000/internal/core/plugin"
	"github.com/AaronFeledy/devx-sub000/internal/shell/catalog"
	"github.com/AaronFeledy/devx-sub000/internal/shell/config"
)

// Lifecycle is the orchestrator surface served by the API.
type Lifecycle interface {
	Build(ctx context.Context, id string) error
	Start(ctx context.Context, id string) error
	Stop(ctx context.Context, id string) error
	Destroy(ctx context.Context, id string, opts plugin.DestroyOptions) error
	Status(ctx context.Context, id string) domain.StackStatus
	List() domain.DevxState
}

// HistoryReader reads recorded operations.
type HistoryReader interface {
	History(ctx context.Context, stack string, limit int) ([]catalog.Operation, error)
}

// =============================================================================
// Handler
// =============================================================================

// Handler provides HTTP handlers for the API.
type Handler struct {
	lifecycle Lifecycle
	history   HistoryReader
	registry  *plugin.Registry
	logger    *slog.Logger
}

// NewHandler creates a new API handler. history and registry may be nil.
func NewHandler(lc Lifecycle, history HistoryReader, registry *plugin.Registry, l *slog.Logger) *Handler {
	if l == nil {
		l = slog.Default()
	}
	return &Handler{
		lifecycle: lc,
		history:   history,
		registry:  registry,
		logger:    l,
	}
}

// Routes returns the router with all routes configured.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.jsonContentType)
	r.Use(h.requestIDHeader)

	r.Get("/health", h.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/plugins", h.handleListPlugins)

		r.Route("/stacks", func(r chi.Router) {
			r.Get("/", h.handleListStacks)
			r.Get("/{name}", h.handleGetStack)
			r.Get("/{name}/status", h.handleStackStatus)
			r.Get("/{name}/history", h.handleStackHistory)
			r.Post("/{name}/build", h.operation("build", h.lifecycle.Build))
			r.Post("/{name}/start", h.operation("start", h.lifecycle.Start))
			r.Post("/{name}/stop", h.operation("stop", h.lifecycle.Stop))
			r.Post("/{name}/destroy", h.handleDestroy)
		})
	})

	return r
}

// =============================================================================
// Middleware
// =============================================================================

// jsonContentType sets Content-Type header to application/json.
func (h *Handler) jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// requestIDHeader copies the request ID to the response header.
func (h *Handler) requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			w.Header().Set("X-Request-ID", reqID)
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Handlers
// =============================================================================

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

func (h *Handler) handleListPlugins(w http.ResponseWriter, r *http.Request) {
	resp := make([]PluginResponse, 0)
	if h.registry != nil {
		for _, p := range h.registry.List() {
			caps := make([]string, 0, 2)
			for _, c := range plugin.Capabilities(p) {
				caps = append(caps, string(c))
			}
			resp = append(resp, PluginResponse{Name: p.Name(), Version: p.Version(), Capabilities: caps})
		}
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleListStacks(w http.ResponseWriter, r *http.Request) {
	all := h.lifecycle.List()
	stacks := make([]domain.StackState, 0, len(all))
	for _, st := range all {
		stacks = append(stacks, st)
	}
	sort.Slice(stacks, func(i, j int) bool { return stacks[i].Name < stacks[j].Name })
	h.writeJSON(w, http.StatusOK, StackListResponse{Stacks: stacks})
}

func (h *Handler) handleGetStack(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	st, ok := h.lifecycle.List()[name]
	if !ok {
		h.writeError(w, http.StatusNotFound, "stack not found", "not_found")
		return
	}
	h.writeJSON(w, http.StatusOK, st)
}

func (h *Handler) handleStackStatus(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	h.writeJSON(w, http.StatusOK, h.lifecycle.Status(r.Context(), name))
}

func (h *Handler) handleStackHistory(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if h.history == nil {
		h.writeError(w, http.StatusNotFound, "history not available", "not_found")
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer", "validation_error")
			return
		}
		limit = n
	}

	ops, err := h.history.History(r.Context(), name, limit)
	if err != nil {
		h.logger.Error("failed to read history", "stack", name, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to read history", "internal_error")
		return
	}

	resp := HistoryResponse{Stack: name, Operations: make([]OperationRecord, 0, len(ops))}
	for _, op := range ops {
		resp.Operations = append(resp.Operations, OperationRecord{
			ID:         op.ID,
			Operation:  op.Operation,
			Outcome:    string(op.Outcome),
			Error:      op.Error,
			StartedAt:  op.StartedAt,
			FinishedAt: op.FinishedAt,
		})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// operation adapts a lifecycle call to a POST handler.
func (h *Handler) operation(op string, fn func(ctx context.Context, id string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		if err := fn(r.Context(), name); err != nil {
			h.writeOperationError(w, name, op, err)
			return
		}
		h.writeOperation(w, name, op)
	}
}

func (h *Handler) handleDestroy(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var opts plugin.DestroyOptions
	if v := r.URL.Query().Get("volumes"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "volumes must be a boolean", "validation_error")
			return
		}
		opts.RemoveVolumes = b
	}

	if err := h.lifecycle.Destroy(r.Context(), name, opts); err != nil {
		h.writeOperationError(w, name, "destroy", err)
		return
	}
	h.writeOperation(w, name, "destroy")
}

// =============================================================================
// Helpers
// =============================================================================

func (h *Handler) writeOperation(w http.ResponseWriter, name, op string) {
	resp := OperationResponse{Stack: name, Operation: op}
	if st, ok := h.lifecycle.List()[name]; ok {
		resp.State = &st
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) writeOperationError(w http.ResponseWriter, name, op string, err error) {
	if errors.Is(err, config.ErrConfigNotFound) {
		h.writeError(w, http.StatusNotFound, err.Error(), "not_found")
		return
	}
	h.logger.Error("operation failed", "stack", name, "operation", op, "error", err)
	h.writeError(w, http.StatusInternalServerError, err.Error(), "operation_failed")
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode JSON", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, code string) {
	h.writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

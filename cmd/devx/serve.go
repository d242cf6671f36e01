package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/AaronFeledy/devx-sub000/internal/shell/api"
)

// =============================================================================
// Server
// =============================================================================

// Server serves the REST API until its context is cancelled.
type Server struct {
	httpServer      *http.Server
	shutdownTimeout time.Duration
	logger          *slog.Logger
}

// NewServer creates the API server for app.
func NewServer(app *App) *Server {
	var history api.HistoryReader
	if app.Catalog != nil {
		history = app.Catalog
	}
	handler := api.NewHandler(app.Lifecycle, history, app.Registry, app.Logger.With("component", "api"))

	return &Server{
		httpServer: &http.Server{
			Addr:              app.Config.API.Addr,
			Handler:           handler.Routes(),
			ReadHeaderTimeout: app.Config.API.ReadTimeout,
			ReadTimeout:       app.Config.API.ReadTimeout,
		},
		shutdownTimeout: app.Config.API.ShutdownTimeout,
		logger:          app.Logger,
	}
}

// Start listens and blocks until ctx is done or the listener fails, then
// shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "address", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutdown requested")
	}

	return s.Shutdown(context.Background())
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("shutdown complete")
	return nil
}

func newServeCommand(s *session) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:           "serve",
		Short:         "Serve the stack lifecycle over a local REST API",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := s.App()
			if err != nil {
				return err
			}
			if addr != "" {
				app.Config.API.Addr = addr
			}
			return NewServer(app).Start(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default api.addr, 127.0.0.1:7480)")
	return cmd
}

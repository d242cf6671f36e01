package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/AaronFeledy/devx-sub000/internal/core/plugin"
	"github.com/AaronFeledy/devx-sub000/internal/shell/config"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return execute(ctx, os.Args[1:], os.Stdout, os.Stderr, defaultAppFactory)
}

// appFactory builds the App once configuration and logger are ready.
type appFactory func(cfg *Config, logger *slog.Logger) (*App, error)

func defaultAppFactory(cfg *Config, logger *slog.Logger) (*App, error) {
	return NewApp(cfg, logger)
}

// execute runs the CLI with args and returns the process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer, factory appFactory) int {
	s := &session{stderr: stderr, factory: factory}
	defer s.close()

	root := newRootCommand(s)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		handleError(stderr, err)
		return ExitError
	}
	return ExitSuccess
}

// handleError prints err with a hint for the common failure kinds.
func handleError(w io.Writer, err error) {
	if err == nil || errors.Is(err, pflag.ErrHelp) {
		return
	}
	message := err.Error()
	switch {
	case errors.Is(err, config.ErrConfigNotFound):
		message = fmt.Sprintf("%s\nHint: run devx from a directory containing .stack.yml or pass the stack name or file path.", err)
	case errors.Is(err, plugin.ErrNoDefaultConfigured):
		message = fmt.Sprintf("%s\nHint: set defaults.builder and defaults.engine in the devx config or name a plugin in the stack file.", err)
	case errors.Is(err, plugin.ErrPluginNotRegistered):
		message = fmt.Sprintf("%s\nHint: run 'devx plugins' to list the registered plugins.", err)
	case errors.Is(err, context.DeadlineExceeded):
		message = fmt.Sprintf("%s\nHint: increase operation.timeout or check that podman is responsive.", err)
	}
	fmt.Fprintf(w, "Error: %s\n", message)
}

// =============================================================================
// Session
// =============================================================================

// session carries the global flags and the lazily built App for one
// invocation. Commands that never touch stacks (version, help) never load
// configuration.
type session struct {
	configPath string
	logLevel   string
	stderr     io.Writer
	factory    appFactory
	app        *App
}

func (s *session) App() (*App, error) {
	if s.app != nil {
		return s.app, nil
	}
	cfg, err := LoadConfig(s.configPath)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	if s.logLevel != "" {
		cfg.Log.Level = s.logLevel
	}
	logger := SetupLogger(cfg, s.stderr)

	app, err := s.factory(cfg, logger)
	if err != nil {
		return nil, err
	}
	s.app = app
	return app, nil
}

func (s *session) close() {
	if s.app != nil {
		s.app.Close()
		s.app = nil
	}
}

// =============================================================================
// Root Command
// =============================================================================

func newRootCommand(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "devx",
		Short:         "Build, run and inspect local development stacks",
		Long:          "devx drives container stacks described by a .stack.yml file through build, start, stop and destroy using pluggable builders and engines.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&s.configPath, "config", "", "Path to the devx config file (default $DEVX_HOME/config.yml)")
	cmd.PersistentFlags().StringVar(&s.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		newBuildCommand(s),
		newStartCommand(s),
		newStopCommand(s),
		newDestroyCommand(s),
		newStatusCommand(s),
		newListCommand(s),
		newHistoryCommand(s),
		newGlobalCommand(s),
		newPluginsCommand(s),
		newServeCommand(s),
		newVersionCommand(),
	)
	cmd.Example = `  # Build and start the stack in the current directory
  devx start

  # Check a stack by name from anywhere
  devx status shop

  # Tear a stack down including its volumes
  devx destroy shop --volumes`
	return cmd
}

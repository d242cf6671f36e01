package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AaronFeledy/devx-sub000/internal/core/domain"
	"github.com/AaronFeledy/devx-sub000/internal/core/plugin"
	"github.com/AaronFeledy/devx-sub000/internal/core/stack"
)

// errCatalogUnavailable is returned by commands that need operation history
// when the catalog could not be opened.
var errCatalogUnavailable = errors.New("stack catalog unavailable")

// stackOperation is one orchestrator call on a loaded stack.
type stackOperation func(ctx context.Context, app *App, cfg *stack.Config, configPath string) error

// newStackCommand builds a build/start/stop style command: resolve the stack
// identifier, run the operation, report success.
func newStackCommand(s *session, use, short, done string, op stackOperation) *cobra.Command {
	return &cobra.Command{
		Use:           use + " [STACK]",
		Short:         short,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := s.App()
			if err != nil {
				return err
			}
			cfg, configPath, err := app.Loader.Load(cmd.Context(), identifier(args), "")
			if err != nil {
				return err
			}
			if err := op(cmd.Context(), app, cfg, configPath); err != nil {
				return err
			}
			printDone(cmd.OutOrStdout(), done, cfg.Name)
			return nil
		},
	}
}

func newBuildCommand(s *session) *cobra.Command {
	cmd := newStackCommand(s, "build", "Generate the orchestrator config and build the stack's images", "built",
		func(ctx context.Context, app *App, cfg *stack.Config, configPath string) error {
			return app.Lifecycle.BuildStack(ctx, cfg, configPath)
		})
	cmd.Example = `  # Build the stack in the current directory
  devx build

  # Build a stack by name
  devx build shop`
	return cmd
}

func newStartCommand(s *session) *cobra.Command {
	cmd := newStackCommand(s, "start", "Start the stack, building it first if needed", "started",
		func(ctx context.Context, app *App, cfg *stack.Config, configPath string) error {
			return app.Lifecycle.StartStack(ctx, cfg, configPath)
		})
	cmd.Aliases = []string{"up"}
	return cmd
}

func newStopCommand(s *session) *cobra.Command {
	cmd := newStackCommand(s, "stop", "Stop the stack's running services", "stopped",
		func(ctx context.Context, app *App, cfg *stack.Config, configPath string) error {
			return app.Lifecycle.StopStack(ctx, cfg, configPath)
		})
	cmd.Aliases = []string{"down"}
	return cmd
}

func newDestroyCommand(s *session) *cobra.Command {
	var removeVolumes, forget bool
	cmd := newStackCommand(s, "destroy", "Remove the stack's containers and forget its state", "destroyed",
		func(ctx context.Context, app *App, cfg *stack.Config, configPath string) error {
			if forget && app.Catalog == nil {
				return errCatalogUnavailable
			}
			if err := app.Lifecycle.DestroyStack(ctx, cfg, configPath, plugin.DestroyOptions{RemoveVolumes: removeVolumes}); err != nil {
				return err
			}
			if forget {
				return app.Catalog.ForgetStack(ctx, cfg.Name)
			}
			return nil
		})
	cmd.Aliases = []string{"rm"}
	cmd.Flags().BoolVarP(&removeVolumes, "volumes", "v", false, "Also remove named volumes declared by the stack")
	cmd.Flags().BoolVar(&forget, "forget", false, "Also drop the stack from the catalog so its name no longer resolves")
	cmd.Example = `  # Remove containers but keep data volumes
  devx destroy shop

  # Remove everything
  devx destroy shop --volumes

  # Remove the stack and its catalog entry
  devx destroy shop --forget`
	return cmd
}

func newStatusCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:           "status [STACK]",
		Aliases:       []string{"ps"},
		Short:         "Show the stack's runtime status and its services",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := s.App()
			if err != nil {
				return err
			}
			cfg, configPath, err := app.Loader.Load(cmd.Context(), identifier(args), "")
			if err != nil {
				return err
			}
			st := app.Lifecycle.StackStatus(cmd.Context(), cfg, configPath)
			printStackStatus(cmd.OutOrStdout(), st)
			if st.Status == domain.RuntimeError {
				return fmt.Errorf("stack %s is in error state", st.Name)
			}
			return nil
		},
	}
}

func newListCommand(s *session) *cobra.Command {
	var fromCatalog bool
	cmd := &cobra.Command{
		Use:           "ls",
		Aliases:       []string{"list"},
		Short:         "List every stack devx has state for",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := s.App()
			if err != nil {
				return err
			}
			if !fromCatalog {
				printStateTable(cmd.OutOrStdout(), app.Lifecycle.List())
				return nil
			}
			if app.Catalog == nil {
				return errCatalogUnavailable
			}
			entries, err := app.Catalog.ListStacks(cmd.Context())
			if err != nil {
				return err
			}
			printCatalog(cmd.OutOrStdout(), entries)
			return nil
		},
	}
	cmd.Flags().BoolVar(&fromCatalog, "catalog", false, "List every stack name the catalog can resolve, with its config file")
	return cmd
}

func newHistoryCommand(s *session) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:           "history [STACK]",
		Short:         "Show recent lifecycle operations for a stack",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := s.App()
			if err != nil {
				return err
			}
			if app.Catalog == nil {
				return errCatalogUnavailable
			}
			cfg, _, err := app.Loader.Load(cmd.Context(), identifier(args), "")
			if err != nil {
				return err
			}
			ops, err := app.Catalog.History(cmd.Context(), cfg.Name, limit)
			if err != nil {
				return err
			}
			printHistory(cmd.OutOrStdout(), ops)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of operations to show")
	return cmd
}

func newGlobalCommand(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "global",
		Short: "Manage always-on global stacks",
		Long:  "Global stacks are declared one per YAML file in the global directory ($DEVX_HOME/global by default).",
	}

	load := func() (*App, error) {
		app, err := s.App()
		if err != nil {
			return nil, err
		}
		if err := app.Global.Load(); err != nil {
			return nil, err
		}
		return app, nil
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:           "start",
			Short:         "Build and start every enabled global stack, highest priority first",
			Args:          cobra.NoArgs,
			SilenceUsage:  true,
			SilenceErrors: true,
			RunE: func(cmd *cobra.Command, args []string) error {
				app, err := load()
				if err != nil {
					return err
				}
				if failed := printResults(cmd.OutOrStdout(), "start", app.Global.StartAll(cmd.Context())); failed > 0 {
					return fmt.Errorf("%d global stack(s) failed to start", failed)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:           "stop",
			Short:         "Stop every global stack, lowest priority first",
			Args:          cobra.NoArgs,
			SilenceUsage:  true,
			SilenceErrors: true,
			RunE: func(cmd *cobra.Command, args []string) error {
				app, err := load()
				if err != nil {
					return err
				}
				if failed := printResults(cmd.OutOrStdout(), "stop", app.Global.StopAll(cmd.Context())); failed > 0 {
					return fmt.Errorf("%d global stack(s) failed to stop", failed)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:           "status",
			Short:         "Show the status of every global stack",
			Args:          cobra.NoArgs,
			SilenceUsage:  true,
			SilenceErrors: true,
			RunE: func(cmd *cobra.Command, args []string) error {
				app, err := load()
				if err != nil {
					return err
				}
				printGlobalStatus(cmd.OutOrStdout(), app.Global.Dir(), app.Global.Status(cmd.Context()))
				return nil
			},
		},
	)
	return cmd
}

func newPluginsCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:           "plugins",
		Short:         "List registered builder and engine plugins",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := s.App()
			if err != nil {
				return err
			}
			printPlugins(cmd.OutOrStdout(), app.Registry.List(), app.Config.Defaults)
			return nil
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the devx version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "devx %s (built %s)\n", Version, BuildTime)
		},
	}
}

// identifier returns the optional stack argument.
func identifier(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

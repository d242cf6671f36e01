package main

import (
	"errors"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/mitchellh/go-homedir"

	"github.com/AaronFeledy/devx-sub000/internal/core/plugin"
	"github.com/AaronFeledy/devx-sub000/internal/globalstack"
	"github.com/AaronFeledy/devx-sub000/internal/lifecycle"
	"github.com/AaronFeledy/devx-sub000/internal/shell/catalog"
	"github.com/AaronFeledy/devx-sub000/internal/shell/composer"
	"github.com/AaronFeledy/devx-sub000/internal/shell/config"
	"github.com/AaronFeledy/devx-sub000/internal/shell/podman"
	"github.com/AaronFeledy/devx-sub000/internal/shell/state"
)

// =============================================================================
// App
// =============================================================================

// App wires the devx components together for one process.
type App struct {
	Config    *Config
	Logger    *slog.Logger
	Store     *state.FileStore
	Catalog   *catalog.SQLiteCatalog // nil when the catalog could not be opened
	Loader    *config.Loader
	Registry  *plugin.Registry
	Lifecycle *lifecycle.Orchestrator
	Global    *globalstack.Manager

	closers []io.Closer
}

// NewApp builds the application. With no plugins given, the podman-compose
// builder and podman engine are registered.
func NewApp(cfg *Config, logger *slog.Logger, plugins ...plugin.Plugin) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{
		Config:   cfg,
		Logger:   logger,
		Store:    state.NewFileStore(cfg.State.File, logger.With("component", "state")),
		Registry: plugin.NewRegistry(),
	}

	var meta config.MetadataStore = config.NewMemoryMetadata()
	var history lifecycle.History
	if cat, err := catalog.Open(expandPath(cfg.Catalog.DSN)); err != nil {
		logger.Warn("stack catalog unavailable, name lookups limited to this process", "dsn", cfg.Catalog.DSN, "error", err)
	} else {
		a.Catalog = cat
		a.closers = append(a.closers, cat)
		meta = cat
		history = cat
	}
	a.Loader = config.NewLoader(meta, logger.With("component", "config"))

	if len(plugins) == 0 {
		plugins = a.defaultPlugins()
	}
	if err := plugin.Bootstrap(a.Registry, plugins...); err != nil {
		a.Close()
		return nil, err
	}

	a.Lifecycle = lifecycle.New(lifecycle.Options{
		Store:    a.Store,
		Loader:   a.Loader,
		Resolver: plugin.NewResolver(a.Registry),
		Defaults: cfg.Defaults,
		History:  history,
		Timeout:  cfg.Operation.Timeout,
		Logger:   logger.With("component", "lifecycle"),
	})
	a.Global = globalstack.NewManager(cfg.Global.Dir, a.Lifecycle, logger.With("component", "global"))

	return a, nil
}

// defaultPlugins creates the podman-compose builder and the podman engine.
// An engine whose client cannot be created reports itself unavailable and
// start/stop fall back to the builder.
func (a *App) defaultPlugins() []plugin.Plugin {
	builder := composer.NewBuilder(composer.Options{
		Binary:      a.Config.Podman.ComposeBinary,
		ManifestDir: filepath.Join(a.Config.State.StateDir(), "manifests"),
		Logger:      a.Logger.With("plugin", composer.PluginName),
	})

	platform := podman.DetectPlatform()
	socket := podman.ResolveSocket(a.Config.Podman.Socket, platform)
	a.Logger.Debug("resolved podman socket", "socket", socket, "os", platform.OS, "rootless", platform.Rootless, "requires_vm", platform.RequiresVM)

	var cli podman.Client
	if c, err := podman.NewAPIClient(socket); err != nil {
		a.Logger.Warn("podman client unavailable", "socket", socket, "error", err)
	} else {
		cli = c
		a.closers = append(a.closers, c)
	}
	engine := podman.NewEngine(cli, a.Logger.With("plugin", podman.PluginName))
	if a.Config.Podman.StopTimeout > 0 {
		engine.WithStopTimeout(a.Config.Podman.StopTimeout)
	}

	return []plugin.Plugin{
		composer.NewPlugin(builder),
		podman.NewPlugin(engine),
	}
}

// Close releases the catalog and the engine client.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func expandPath(p string) string {
	if expanded, err := homedir.Expand(p); err == nil {
		return expanded
	}
	return p
}

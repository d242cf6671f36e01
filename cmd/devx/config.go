package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/AaronFeledy/devx-sub000/internal/core/plugin"
	"github.com/AaronFeledy/devx-sub000/internal/shell/composer"
	"github.com/AaronFeledy/devx-sub000/internal/shell/podman"
	"github.com/AaronFeledy/devx-sub000/internal/shell/state"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all devx configuration.
type Config struct {
	Home      string          `mapstructure:"home"`
	Defaults  plugin.Defaults `mapstructure:"defaults"`
	State     StateConfig     `mapstructure:"state"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Global    GlobalConfig    `mapstructure:"global"`
	Podman    PodmanConfig    `mapstructure:"podman"`
	Operation OperationConfig `mapstructure:"operation"`
	API       APIConfig       `mapstructure:"api"`
	Log       LogConfig       `mapstructure:"log"`
}

// StateConfig holds state file configuration.
type StateConfig struct {
	File string `mapstructure:"file"`
}

// StateDir is the directory holding the state file. Generated manifests live
// under it.
func (c StateConfig) StateDir() string {
	return filepath.Dir(c.File)
}

// CatalogConfig holds the metadata catalog configuration.
type CatalogConfig struct {
	DSN string `mapstructure:"dsn"`
}

// GlobalConfig holds global stack configuration.
type GlobalConfig struct {
	Dir string `mapstructure:"dir"`
}

// PodmanConfig holds podman plugin configuration.
type PodmanConfig struct {
	Socket        string        `mapstructure:"socket"` // Empty means auto-detect
	ComposeBinary string        `mapstructure:"compose_binary"`
	StopTimeout   time.Duration `mapstructure:"stop_timeout"`
}

// OperationConfig holds orchestrator configuration.
type OperationConfig struct {
	Timeout time.Duration `mapstructure:"timeout"` // 0 means no deadline
}

// APIConfig holds the REST API server configuration.
type APIConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// =============================================================================
// Config Loading
// =============================================================================

const configFileName = "config.yml"

// LoadConfig loads configuration from file and environment.
// An empty configPath falls back to config.yml in the devx home directory.
func LoadConfig(configPath string) (*Config, error) {
	home, err := state.HomeDir()
	if err != nil {
		return nil, err
	}

	v := viper.New()

	// Set defaults
	v.SetDefault("home", home)
	v.SetDefault("defaults.builder", composer.PluginName)
	v.SetDefault("defaults.engine", podman.PluginName)
	v.SetDefault("state.file", filepath.Join(home, "state.json"))
	v.SetDefault("catalog.dsn", filepath.Join(home, "devx.db"))
	v.SetDefault("global.dir", filepath.Join(home, "global"))
	v.SetDefault("podman.socket", "")
	v.SetDefault("podman.compose_binary", composer.DefaultBinary)
	v.SetDefault("podman.stop_timeout", podman.DefaultStopTimeout.String())
	v.SetDefault("operation.timeout", "0s")
	v.SetDefault("api.addr", "127.0.0.1:7480")
	v.SetDefault("api.read_timeout", "30s")
	v.SetDefault("api.shutdown_timeout", "10s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	if configPath == "" {
		candidate := filepath.Join(home, configFileName)
		if _, err := os.Stat(candidate); err == nil {
			configPath = candidate
		}
	}

	// Load from file if provided
	if configPath != "" {
		expanded, err := homedir.Expand(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to expand config path: %w", err)
		}
		v.SetConfigFile(expanded)
		if err := v.ReadInConfig(); err != nil {
			var parseErr viper.ConfigParseError
			if errors.As(err, &parseErr) {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			// File not found is OK, we'll use defaults
		}
	}

	// Enable environment variable overrides (DEVX_STATE_FILE, DEVX_LOG_LEVEL, ...)
	v.SetEnvPrefix("DEVX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for _, p := range []*string{&cfg.State.File, &cfg.Global.Dir} {
		if *p, err = homedir.Expand(*p); err != nil {
			return nil, fmt.Errorf("failed to expand path: %w", err)
		}
	}

	return &cfg, nil
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format writing
// to w. Command output goes to stdout, so callers pass stderr.
func SetupLogger(cfg *Config, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

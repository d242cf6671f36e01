// Package composer implements the builder plugin on top of podman-compose.
// Stacks are rendered to a compose manifest under the devx state directory
// and driven with build, up, stop and down.
package composer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-shellwords"
	"github.com/moby/sys/atomicwriter"

	"github.com/AaronFeledy/devx-sub000/internal/core/compose"
	"github.com/AaronFeledy/devx-sub000/internal/core/plugin"
	"github.com/AaronFeledy/devx-sub000/internal/core/stack"
)

const (
	// PluginName is the registry name of the builder.
	PluginName = "podman-compose"

	// Version is reported through the plugin registry.
	Version = "0.1.0"

	// DefaultBinary is the compose executable. A command line such as
	// "podman compose" is accepted too.
	DefaultBinary = "podman-compose"

	// ManifestFile is the file name of generated manifests.
	ManifestFile = "compose.yml"
)

// Options configures a Builder.
type Options struct {
	Binary      string // Command line, defaults to DefaultBinary
	ManifestDir string // Root directory for generated manifests
	Runner      Runner // Defaults to ExecRunner
	Logger      *slog.Logger
}

// ComposeResult is the outcome of one compose invocation.
type ComposeResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
	Command  string
}

// Builder implements plugin.Builder with podman-compose.
type Builder struct {
	command     []string // binary followed by leading arguments
	manifestDir string
	runner      Runner
	logger      *slog.Logger
}

var _ plugin.Builder = (*Builder)(nil)

// NewBuilder creates a builder.
func NewBuilder(opts Options) *Builder {
	b := &Builder{
		manifestDir: opts.ManifestDir,
		runner:      opts.Runner,
		logger:      opts.Logger,
	}
	if b.runner == nil {
		b.runner = ExecRunner{}
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	b.command = parseCommand(opts.Binary, b.logger)
	return b
}

// NewPlugin wraps builder as a registrable plugin.
func NewPlugin(builder *Builder) plugin.Plugin {
	return &plugin.Bundle{
		PluginName:    PluginName,
		PluginVersion: Version,
		Builder:       builder,
	}
}

// parseCommand splits a configured compose command line into words.
func parseCommand(binary string, logger *slog.Logger) []string {
	if strings.TrimSpace(binary) == "" {
		return []string{DefaultBinary}
	}
	words, err := shellwords.Parse(binary)
	if err != nil || len(words) == 0 {
		logger.Warn("cannot parse compose command, using it verbatim", "command", binary, "error", err)
		return []string{binary}
	}
	return words
}

func (b *Builder) Name() string { return PluginName }

// exec runs the compose command with args appended.
func (b *Builder) exec(ctx context.Context, dir string, args ...string) (string, string, int, error) {
	full := append(append([]string(nil), b.command[1:]...), args...)
	return b.runner.RunInDir(ctx, dir, nil, b.command[0], full...)
}

// IsAvailable reports whether the compose binary runs.
func (b *Builder) IsAvailable(ctx context.Context) bool {
	_, _, code, err := b.exec(ctx, "", "version")
	return err == nil && code == 0
}

// ManifestPath is where the manifest for stackName is written.
func (b *Builder) ManifestPath(stackName string) string {
	return filepath.Join(b.manifestDir, stackName, ManifestFile)
}

// =============================================================================
// Builder Operations
// =============================================================================

// GenerateConfig renders cfg to a compose manifest and returns its path.
func (b *Builder) GenerateConfig(_ context.Context, cfg *stack.Config, projectPath string) (string, error) {
	data, err := compose.RenderManifest(cfg, projectPath)
	if err != nil {
		return "", err
	}

	path := b.ManifestPath(cfg.Name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", ErrManifestWrite, err)
	}
	if err := atomicwriter.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("%w: %v", ErrManifestWrite, err)
	}
	b.logger.Debug("wrote compose manifest", "stack", cfg.Name, "path", path)
	return path, nil
}

// Build builds images for services with a build context and creates the
// stack's containers without starting them.
func (b *Builder) Build(ctx context.Context, cfg *stack.Config, projectPath string) error {
	manifest, err := b.GenerateConfig(ctx, cfg, projectPath)
	if err != nil {
		return err
	}
	if hasBuildContext(cfg) {
		if _, err := b.run(ctx, cfg, manifest, projectPath, "build"); err != nil {
			return err
		}
	}
	_, err = b.run(ctx, cfg, manifest, projectPath, "up", "--no-start")
	return err
}

// Start brings the stack up detached.
func (b *Builder) Start(ctx context.Context, cfg *stack.Config, projectPath string) error {
	manifest, err := b.GenerateConfig(ctx, cfg, projectPath)
	if err != nil {
		return err
	}
	_, err = b.run(ctx, cfg, manifest, projectPath, "up", "-d")
	return err
}

// Stop stops the stack's containers without removing them.
func (b *Builder) Stop(ctx context.Context, cfg *stack.Config, projectPath string) error {
	manifest, err := b.existingManifest(ctx, cfg, projectPath)
	if err != nil {
		return err
	}
	_, err = b.run(ctx, cfg, manifest, projectPath, "stop")
	return err
}

// Destroy removes the stack's containers and networks, and its volumes when
// opts.RemoveVolumes is set.
func (b *Builder) Destroy(ctx context.Context, cfg *stack.Config, projectPath string, opts plugin.DestroyOptions) error {
	manifest, err := b.existingManifest(ctx, cfg, projectPath)
	if err != nil {
		return err
	}
	args := []string{"down"}
	if opts.RemoveVolumes {
		args = append(args, "-v")
	}
	if _, err := b.run(ctx, cfg, manifest, projectPath, args...); err != nil {
		return err
	}
	b.removeManifest(cfg.Name, manifest)
	return nil
}

// removeManifest deletes a manifest and its directory once empty.
func (b *Builder) removeManifest(stackName, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		b.logger.Warn("failed to remove manifest", "stack", stackName, "path", path, "error", err)
		return
	}
	_ = os.Remove(filepath.Dir(path))
}

func (b *Builder) existingManifest(ctx context.Context, cfg *stack.Config, projectPath string) (string, error) {
	path := b.ManifestPath(cfg.Name)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	return b.GenerateConfig(ctx, cfg, projectPath)
}

func hasBuildContext(cfg *stack.Config) bool {
	for _, svc := range cfg.Services {
		if svc.Build != nil {
			return true
		}
	}
	return false
}

// run executes one compose subcommand against manifest in projectPath.
func (b *Builder) run(ctx context.Context, cfg *stack.Config, manifest, projectPath string, sub ...string) (*ComposeResult, error) {
	args := append([]string{"-f", manifest, "-p", compose.ProjectName(cfg.Name)}, sub...)
	cmdStr := fmt.Sprintf("%s %s", strings.Join(b.command, " "), strings.Join(args, " "))
	b.logger.Debug("running compose", "stack", cfg.Name, "command", cmdStr)

	start := time.Now()
	stdout, stderr, exitCode, err := b.exec(ctx, projectPath, args...)

	result := &ComposeResult{
		ExitCode: exitCode,
		Stdout:   stdout,
		Stderr:   stderr,
		Duration: time.Since(start),
		Command:  cmdStr,
	}

	if err != nil {
		return result, &ComposeError{Command: cmdStr, ExitCode: -1, Stderr: stderr, Err: err}
	}
	if exitCode != 0 {
		return result, &ComposeError{Command: cmdStr, ExitCode: exitCode, Stderr: strings.TrimSpace(stderr), Err: ErrCommandFailed}
	}
	return result, nil
}

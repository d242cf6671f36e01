package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AaronFeledy/devx-sub000/internal/core/domain"
	"github.com/AaronFeledy/devx-sub000/internal/core/plugin"
	"github.com/AaronFeledy/devx-sub000/internal/core/stack"
	"github.com/AaronFeledy/devx-sub000/internal/shell/config"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeBuilder struct {
	calls       []string
	buildErr    error
	lastDestroy plugin.DestroyOptions
}

func (b *fakeBuilder) Name() string                     { return "fake-builder" }
func (b *fakeBuilder) IsAvailable(context.Context) bool { return true }

func (b *fakeBuilder) GenerateConfig(_ context.Context, cfg *stack.Config, _ string) (string, error) {
	b.calls = append(b.calls, "generate:"+cfg.Name)
	return "", nil
}

func (b *fakeBuilder) Build(_ context.Context, cfg *stack.Config, _ string) error {
	b.calls = append(b.calls, "build:"+cfg.Name)
	return b.buildErr
}

func (b *fakeBuilder) Start(_ context.Context, cfg *stack.Config, _ string) error {
	b.calls = append(b.calls, "start:"+cfg.Name)
	return nil
}

func (b *fakeBuilder) Stop(_ context.Context, cfg *stack.Config, _ string) error {
	b.calls = append(b.calls, "stop:"+cfg.Name)
	return nil
}

func (b *fakeBuilder) Destroy(_ context.Context, cfg *stack.Config, _ string, opts plugin.DestroyOptions) error {
	b.calls = append(b.calls, "destroy:"+cfg.Name)
	b.lastDestroy = opts
	return nil
}

type fakeEngine struct {
	calls     []string
	services  map[string]domain.ServiceStatus
	statusErr error
}

func (e *fakeEngine) Name() string                     { return "fake-engine" }
func (e *fakeEngine) IsAvailable(context.Context) bool { return true }

func (e *fakeEngine) GetStackStatus(_ context.Context, name, _ string) (*domain.StackStatus, error) {
	e.calls = append(e.calls, "status:"+name)
	if e.statusErr != nil {
		return nil, e.statusErr
	}
	return &domain.StackStatus{Name: name, Services: e.services}, nil
}

func (e *fakeEngine) Start(_ context.Context, cfg *stack.Config, _ string) error {
	e.calls = append(e.calls, "start:"+cfg.Name)
	return nil
}

func (e *fakeEngine) Stop(_ context.Context, cfg *stack.Config, _ string) error {
	e.calls = append(e.calls, "stop:"+cfg.Name)
	return nil
}

// =============================================================================
// Helpers
// =============================================================================

type cliHarness struct {
	t          *testing.T
	home       string
	projectDir string
	builder    *fakeBuilder
	engine     *fakeEngine
}

func newCLIHarness(t *testing.T) *cliHarness {
	t.Helper()
	home := clearEnv(t)

	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	projectDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, ".stack.yml"),
		[]byte("name: demo\nservices:\n  web:\n    image: nginx\n"), 0o644))

	return &cliHarness{
		t:          t,
		home:       home,
		projectDir: projectDir,
		builder:    &fakeBuilder{},
		engine:     &fakeEngine{},
	}
}

func (h *cliHarness) factory(cfg *Config, logger *slog.Logger) (*App, error) {
	cfg.Defaults = plugin.Defaults{Builder: "fake-builder", Engine: "fake-engine"}
	return NewApp(cfg, logger,
		&plugin.Bundle{PluginName: "fake-builder", PluginVersion: "1.0.0", Builder: h.builder},
		&plugin.Bundle{PluginName: "fake-engine", PluginVersion: "2.0.0", Engine: h.engine},
	)
}

// run executes one CLI invocation and returns exit code, stdout and stderr.
func (h *cliHarness) run(args ...string) (int, string, string) {
	h.t.Helper()
	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), append([]string{"--log-level", "error"}, args...), &stdout, &stderr, h.factory)
	return code, stdout.String(), stderr.String()
}

// =============================================================================
// Commands
// =============================================================================

func TestVersionCommand(t *testing.T) {
	var stdout bytes.Buffer
	code := execute(context.Background(), []string{"version"}, &stdout, io.Discard, func(*Config, *slog.Logger) (*App, error) {
		t.Fatal("version must not build the app")
		return nil, nil
	})

	assert.Equal(t, ExitSuccess, code)
	assert.Equal(t, "devx dev (built unknown)\n", stdout.String())
}

func TestLifecycleCommands(t *testing.T) {
	h := newCLIHarness(t)
	h.engine.services = map[string]domain.ServiceStatus{
		"web": {Status: domain.RuntimeRunning, Ports: []domain.Port{{ContainerPort: 80, HostPort: 8080, Protocol: "tcp"}}},
	}

	code, out, stderr := h.run("build", h.projectDir)
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Equal(t, "✓ built demo\n", out)

	// Later commands find the stack by name through the catalog.
	code, out, stderr = h.run("start", "demo")
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Equal(t, "✓ started demo\n", out)
	assert.Equal(t, []string{"start:demo"}, h.engine.calls)

	code, out, stderr = h.run("status", "demo")
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Contains(t, out, "demo: running")
	assert.Contains(t, out, "web")
	assert.Contains(t, out, "0.0.0.0:8080->80/tcp")

	code, out, _ = h.run("ls")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "demo")
	assert.Contains(t, out, "built")
	assert.Contains(t, out, "running")

	code, out, _ = h.run("stop", "demo")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, "✓ stopped demo\n", out)

	code, out, _ = h.run("history", "demo")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "build")
	assert.Contains(t, out, "start")
	assert.Contains(t, out, "stop")
	assert.Contains(t, out, "succeeded")

	assert.Equal(t, []string{"generate:demo", "build:demo"}, h.builder.calls)
}

func TestDestroyCommand_Volumes(t *testing.T) {
	h := newCLIHarness(t)

	code, _, stderr := h.run("build", h.projectDir)
	require.Equal(t, ExitSuccess, code, stderr)

	code, out, stderr := h.run("destroy", "demo", "--volumes")
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Equal(t, "✓ destroyed demo\n", out)
	assert.True(t, h.builder.lastDestroy.RemoveVolumes)

	_, out, _ = h.run("ls")
	assert.Equal(t, "No stacks found.\n", out)
}

func TestDestroyCommand_Forget(t *testing.T) {
	h := newCLIHarness(t)

	code, _, stderr := h.run("build", h.projectDir)
	require.Equal(t, ExitSuccess, code, stderr)

	code, out, stderr := h.run("ls", "--catalog")
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Contains(t, out, "demo")
	assert.Contains(t, out, filepath.Join(h.projectDir, ".stack.yml"))

	code, out, stderr = h.run("destroy", "demo", "--forget")
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Equal(t, "✓ destroyed demo\n", out)

	_, out, _ = h.run("ls", "--catalog")
	assert.Equal(t, "No stacks recorded in the catalog.\n", out)

	// The name no longer resolves once forgotten.
	code, _, _ = h.run("status", "demo")
	assert.Equal(t, ExitError, code)
}

func TestBuildCommand_FailureExitsNonZero(t *testing.T) {
	h := newCLIHarness(t)
	h.builder.buildErr = errors.New("image pull denied")

	code, out, stderr := h.run("build", h.projectDir)
	assert.Equal(t, ExitError, code)
	assert.Empty(t, out)
	assert.Contains(t, stderr, "Error: build demo")
	assert.Contains(t, stderr, "image pull denied")
}

func TestStatusCommand_ErrorExitsNonZero(t *testing.T) {
	h := newCLIHarness(t)
	h.engine.statusErr = errors.New("socket refused")

	code, _, stderr := h.run("build", h.projectDir)
	require.Equal(t, ExitSuccess, code, stderr)

	code, out, stderr := h.run("status", "demo")
	assert.Equal(t, ExitError, code)
	assert.Contains(t, out, "demo: error")
	assert.Contains(t, out, "socket refused")
	assert.Contains(t, stderr, "stack demo is in error state")
}

func TestStatusCommand_NotBuiltSkipsEngine(t *testing.T) {
	h := newCLIHarness(t)

	code, out, stderr := h.run("status", h.projectDir)
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Equal(t, "demo: stopped\n", out)
	assert.Empty(t, h.engine.calls)
}

func TestCommand_ConfigNotFound(t *testing.T) {
	h := newCLIHarness(t)

	code, _, stderr := h.run("start", "no-such-stack")
	assert.Equal(t, ExitError, code)
	assert.Contains(t, stderr, "Error:")
	assert.Contains(t, stderr, "Hint: run devx from a directory containing .stack.yml")
}

func TestPluginsCommand(t *testing.T) {
	h := newCLIHarness(t)

	code, out, _ := h.run("plugins")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "NAME")
	assert.Regexp(t, `fake-builder\s+1\.0\.0\s+builder\s+builder`, out)
	assert.Regexp(t, `fake-engine\s+2\.0\.0\s+engine\s+engine`, out)
}

func TestGlobalCommands(t *testing.T) {
	h := newCLIHarness(t)
	globalDir := filepath.Join(h.home, "global")
	require.NoError(t, os.MkdirAll(globalDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(globalDir, "proxy.yml"),
		[]byte("priority: 10\nconfig:\n  services:\n    traefik:\n      image: traefik\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(globalDir, "mail.yml"),
		[]byte("priority: 50\nconfig:\n  services:\n    mailpit:\n      image: mailpit\n"), 0o644))

	code, out, stderr := h.run("global", "start")
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Equal(t, "✓ mail\n✓ proxy\n", out)
	assert.Equal(t, []string{"start:mail", "start:proxy"}, h.engine.calls)

	h.engine.calls = nil
	code, out, _ = h.run("global", "stop")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, "✓ proxy\n✓ mail\n", out)
	assert.Equal(t, []string{"stop:proxy", "stop:mail"}, h.engine.calls)
}

func TestGlobalStart_FailureExitsNonZero(t *testing.T) {
	h := newCLIHarness(t)
	h.builder.buildErr = errors.New("boom")
	globalDir := filepath.Join(h.home, "global")
	require.NoError(t, os.MkdirAll(globalDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(globalDir, "proxy.yml"),
		[]byte("config:\n  services:\n    traefik:\n      image: traefik\n"), 0o644))

	code, out, stderr := h.run("global", "start")
	assert.Equal(t, ExitError, code)
	assert.Contains(t, out, "✗ proxy")
	assert.Contains(t, stderr, "1 global stack(s) failed to start")
}

func TestGlobalStatus_Empty(t *testing.T) {
	h := newCLIHarness(t)

	code, out, _ := h.run("global", "status")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, "No global stacks found in "+filepath.Join(h.home, "global")+".\n", out)
}

// =============================================================================
// Error Hints
// =============================================================================

func TestHandleError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		hint string
	}{
		{"config not found", config.ErrConfigNotFound, "Hint: run devx from a directory"},
		{"no default", plugin.ErrNoDefaultConfigured, "Hint: set defaults.builder"},
		{"not registered", plugin.ErrPluginNotRegistered, "Hint: run 'devx plugins'"},
		{"deadline", context.DeadlineExceeded, "Hint: increase operation.timeout"},
		{"plain", errors.New("plain failure"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			handleError(&buf, tt.err)
			assert.Contains(t, buf.String(), "Error: ")
			if tt.hint == "" {
				assert.NotContains(t, buf.String(), "Hint:")
				return
			}
			assert.Contains(t, buf.String(), tt.hint)
		})
	}

	var buf bytes.Buffer
	handleError(&buf, nil)
	assert.Empty(t, buf.String())
}

// =============================================================================
// Server
// =============================================================================

func TestServer_ServeAndShutdown(t *testing.T) {
	h := newCLIHarness(t)
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	app, err := h.factory(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewServer(app).Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

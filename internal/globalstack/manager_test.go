package globalstack

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AaronFeledy/devx-sub000/internal/core/domain"
	"github.com/AaronFeledy/devx-sub000/internal/core/stack"
)

// =============================================================================
// Test Helpers
// =============================================================================

type fakeLifecycle struct {
	calls    []string
	buildErr map[string]error
	startErr map[string]error
	stopErr  map[string]error
	status   map[string]domain.StackStatus
}

func (f *fakeLifecycle) BuildStack(_ context.Context, cfg *stack.Config, _ string) error {
	f.calls = append(f.calls, "build:"+cfg.Name)
	return f.buildErr[cfg.Name]
}

func (f *fakeLifecycle) StartStack(_ context.Context, cfg *stack.Config, _ string) error {
	f.calls = append(f.calls, "start:"+cfg.Name)
	return f.startErr[cfg.Name]
}

func (f *fakeLifecycle) StopStack(_ context.Context, cfg *stack.Config, _ string) error {
	f.calls = append(f.calls, "stop:"+cfg.Name)
	return f.stopErr[cfg.Name]
}

func (f *fakeLifecycle) StackStatus(_ context.Context, cfg *stack.Config, _ string) domain.StackStatus {
	return f.status[cfg.Name]
}

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeStack(t *testing.T, dir, file, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(content), 0o644))
}

func stackYAML(priority string, extra string) string {
	return extra + "priority: " + priority + "\nconfig:\n  services:\n    app:\n      image: alpine\n"
}

// =============================================================================
// Load Tests
// =============================================================================

func TestLoad_MissingDirectory(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "absent"), &fakeLifecycle{}, setupTestLogger())
	require.NoError(t, m.Load())
	assert.Empty(t, m.Stacks())
}

func TestLoad_SkipsMalformedAndStarts(t *testing.T) {
	dir := t.TempDir()
	writeStack(t, dir, "proxy.yml", stackYAML("10", ""))
	writeStack(t, dir, "mail.yaml", stackYAML("50", ""))
	writeStack(t, dir, "broken.yml", "config: [unterminated\n")
	writeStack(t, dir, "README.md", "not a stack")

	lc := &fakeLifecycle{}
	m := NewManager(dir, lc, setupTestLogger())
	require.NoError(t, m.Load())

	stacks := m.Stacks()
	require.Len(t, stacks, 2)
	assert.Equal(t, "mail", stacks[0].Name)
	assert.Equal(t, "proxy", stacks[1].Name)
	assert.True(t, stacks[0].Enabled)

	results := m.StartAll(context.Background())
	assert.Len(t, results, 2)
	assert.Equal(t, []string{"build:mail", "start:mail", "build:proxy", "start:proxy"}, lc.calls)
}

func TestLoadFile(t *testing.T) {
	tests := []struct {
		name         string
		content      string
		wantName     string
		wantEnabled  bool
		wantPriority int
		wantErr      bool
	}{
		{name: "defaults", content: stackYAML("0", ""), wantName: "svc", wantEnabled: true},
		{name: "disabled", content: stackYAML("3", "enabled: false\n"), wantName: "svc", wantPriority: 3},
		{
			name:        "embedded name",
			content:     "config:\n  name: custom\n  services:\n    app:\n      image: alpine\n",
			wantName:    "custom",
			wantEnabled: true,
		},
		{name: "missing config", content: "priority: 1\n", wantErr: true},
		{name: "invalid config", content: "config:\n  services:\n    app: {}\n", wantErr: true},
		{name: "bad priority type", content: "priority: high\nconfig:\n  services: {}\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeStack(t, dir, "svc.yml", tt.content)

			s, err := LoadFile(filepath.Join(dir, "svc.yml"))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, s.Name)
			assert.Equal(t, tt.wantName, s.Config.Name)
			assert.Equal(t, tt.wantEnabled, s.Enabled)
			assert.Equal(t, tt.wantPriority, s.Priority)
			assert.True(t, filepath.IsAbs(s.Path))
		})
	}
}

func TestLoadFile_MissingConfigIsValidationError(t *testing.T) {
	dir := t.TempDir()
	writeStack(t, dir, "svc.yml", "enabled: true\n")

	_, err := LoadFile(filepath.Join(dir, "svc.yml"))
	assert.ErrorIs(t, err, stack.ErrConfigInvalid)
}

// =============================================================================
// Batch Operation Tests
// =============================================================================

func loadedManager(t *testing.T, lc *fakeLifecycle) *Manager {
	t.Helper()
	dir := t.TempDir()
	writeStack(t, dir, "low.yml", stackYAML("1", ""))
	writeStack(t, dir, "mid.yml", stackYAML("5", ""))
	writeStack(t, dir, "high.yml", stackYAML("9", ""))
	writeStack(t, dir, "off.yml", stackYAML("7", "enabled: false\n"))
	m := NewManager(dir, lc, setupTestLogger())
	require.NoError(t, m.Load())
	return m
}

func TestStartAll_IsolatesFailures(t *testing.T) {
	lc := &fakeLifecycle{buildErr: map[string]error{"high": errors.New("pull failed")}}
	m := loadedManager(t, lc)

	results := m.StartAll(context.Background())
	assert.Equal(t, []string{"build:high", "build:mid", "start:mid", "build:low", "start:low"}, lc.calls)

	require.Len(t, results, 3)
	assert.Equal(t, "high", results[0].Name)
	assert.Error(t, results[0].Err)
	assert.NoError(t, results[1].Err)
}

func TestStopAll_AscendingPriority(t *testing.T) {
	lc := &fakeLifecycle{stopErr: map[string]error{"low": errors.New("stuck")}}
	m := loadedManager(t, lc)

	results := m.StopAll(context.Background())
	assert.Equal(t, []string{"stop:low", "stop:mid", "stop:off", "stop:high"}, lc.calls)
	require.Len(t, results, 4)
	assert.Error(t, results[0].Err)
}

func TestStatus(t *testing.T) {
	lc := &fakeLifecycle{status: map[string]domain.StackStatus{
		"low":  {Status: domain.RuntimeRunning},
		"mid":  {Status: domain.RuntimeError, Error: "engine unreachable"},
		"high": {Status: domain.RuntimeStopped},
		"off":  {Status: domain.RuntimeNotCreated},
	}}
	m := loadedManager(t, lc)

	assert.Equal(t, map[string]string{
		"low":  "running",
		"mid":  "error: engine unreachable",
		"high": "stopped",
		"off":  "not_created",
	}, m.Status(context.Background()))
}

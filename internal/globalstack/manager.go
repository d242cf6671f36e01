// Package globalstack manages always-on stacks declared as one YAML file per
// stack in a directory.
package globalstack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AaronFeledy/devx-sub000/internal/core/domain"
	"github.com/AaronFeledy/devx-sub000/internal/core/stack"
)

// Lifecycle is the subset of the orchestrator the manager drives.
type Lifecycle interface {
	BuildStack(ctx context.Context, cfg *stack.Config, configPath string) error
	StartStack(ctx context.Context, cfg *stack.Config, configPath string) error
	StopStack(ctx context.Context, cfg *stack.Config, configPath string) error
	StackStatus(ctx context.Context, cfg *stack.Config, configPath string) domain.StackStatus
}

// =============================================================================
// Types
// =============================================================================

// Stack is one loaded global stack.
type Stack struct {
	Name     string
	Enabled  bool
	Priority int
	Config   *stack.Config
	Path     string
}

// file is the on-disk shape of a global stack file.
type file struct {
	Enabled  *bool         `yaml:"enabled"`
	Priority int           `yaml:"priority"`
	Config   *stack.Config `yaml:"config" validate:"required"`
}

// Result is the outcome of one stack in a batch operation.
type Result struct {
	Name string
	Err  error
}

// =============================================================================
// Manager
// =============================================================================

// Manager loads and drives global stacks sequentially. A failure on one
// stack never stops the batch.
type Manager struct {
	dir       string
	lifecycle Lifecycle
	logger    *slog.Logger
	stacks    []Stack
}

// NewManager creates a manager for the stack files in dir.
func NewManager(dir string, lc Lifecycle, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{dir: dir, lifecycle: lc, logger: logger}
}

// Dir returns the directory scanned by Load.
func (m *Manager) Dir() string {
	return m.dir
}

// Stacks returns the loaded stacks sorted by name.
func (m *Manager) Stacks() []Stack {
	out := append([]Stack(nil), m.stacks...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Load scans the directory. A missing directory yields zero stacks.
// Malformed or invalid files are logged and skipped.
func (m *Manager) Load() error {
	m.stacks = nil

	entries, err := os.ReadDir(m.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read global stack dir %s: %w", m.dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}
		path := filepath.Join(m.dir, entry.Name())
		s, err := LoadFile(path)
		if err != nil {
			m.logger.Error("skipping global stack file", "path", path, "error", err)
			continue
		}
		m.stacks = append(m.stacks, *s)
	}
	m.logger.Debug("loaded global stacks", "dir", m.dir, "count", len(m.stacks))
	return nil
}

// LoadFile parses and validates one global stack file. The stack name is
// the file name without extension unless config.name is set.
func LoadFile(path string) (*Stack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if f.Config != nil && f.Config.Name == "" {
		f.Config.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := stack.Validator().Struct(&f); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return nil, stack.NewValidationError(stack.ConvertValidationErrors(verrs, "file.")...)
		}
		return nil, err
	}
	if err := stack.Validate(f.Config); err != nil {
		return nil, err
	}

	enabled := true
	if f.Enabled != nil {
		enabled = *f.Enabled
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return &Stack{
		Name:     f.Config.Name,
		Enabled:  enabled,
		Priority: f.Priority,
		Config:   f.Config,
		Path:     abs,
	}, nil
}

func isYAML(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yml", ".yaml":
		return true
	}
	return false
}

// StartAll builds then starts every enabled stack, highest priority first.
func (m *Manager) StartAll(ctx context.Context) []Result {
	var results []Result
	for _, s := range m.ordered(false) {
		if !s.Enabled {
			continue
		}
		err := m.lifecycle.BuildStack(ctx, s.Config, s.Path)
		if err == nil {
			err = m.lifecycle.StartStack(ctx, s.Config, s.Path)
		}
		if err != nil {
			m.logger.Error("failed to start global stack", "stack", s.Name, "error", err)
		} else {
			m.logger.Info("global stack started", "stack", s.Name, "priority", s.Priority)
		}
		results = append(results, Result{Name: s.Name, Err: err})
	}
	return results
}

// StopAll stops every loaded stack, lowest priority first.
func (m *Manager) StopAll(ctx context.Context) []Result {
	var results []Result
	for _, s := range m.ordered(true) {
		err := m.lifecycle.StopStack(ctx, s.Config, s.Path)
		if err != nil {
			m.logger.Error("failed to stop global stack", "stack", s.Name, "error", err)
		} else {
			m.logger.Info("global stack stopped", "stack", s.Name)
		}
		results = append(results, Result{Name: s.Name, Err: err})
	}
	return results
}

// Status returns a status string per stack, "error: <message>" on failure.
func (m *Manager) Status(ctx context.Context) map[string]string {
	out := make(map[string]string, len(m.stacks))
	for _, s := range m.stacks {
		st := m.lifecycle.StackStatus(ctx, s.Config, s.Path)
		if st.Error != "" && st.Status == domain.RuntimeError {
			out[s.Name] = "error: " + st.Error
			continue
		}
		out[s.Name] = string(st.Status)
	}
	return out
}

// ordered sorts by priority, descending unless ascending is set. Ties are
// broken by name.
func (m *Manager) ordered(ascending bool) []Stack {
	out := append([]Stack(nil), m.stacks...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			if ascending {
				return out[i].Priority < out[j].Priority
			}
			return out[i].Priority > out[j].Priority
		}
		return out[i].Name < out[j].Name
	})
	return out
}

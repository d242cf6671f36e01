package config

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/AaronFeledy/devx-sub000/internal/core/stack"
	"github.com/AaronFeledy/devx-sub000/internal/shell/catalog"
)

// DefaultFilenames are searched for, in order, in each directory.
var DefaultFilenames = []string{".stack.yml", ".stack.yaml", ".stack.json"}

// Loader resolves stack identifiers to parsed, validated configs.
type Loader struct {
	meta   MetadataStore
	logger *slog.Logger
}

// NewLoader creates a Loader. meta may be nil, in which case name-based
// lookups always fail with ErrConfigNotFound.
func NewLoader(meta MetadataStore, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{meta: meta, logger: logger}
}

// Load resolves identifier and returns the config and its absolute path.
//
// An identifier naming a .yml, .yaml or .json file (absolute or relative to
// searchDir) is loaded directly. An identifier naming a directory is searched
// like searchDir. Any other non-empty identifier is a stack name looked up in
// the metadata store. With no identifier, searchDir and each ancestor are
// searched for DefaultFilenames.
func (l *Loader) Load(ctx context.Context, identifier, searchDir string) (*stack.Config, string, error) {
	if searchDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, "", newLoadError("find", "", ErrConfigNotFound, err)
		}
		searchDir = wd
	}

	path, err := l.locate(ctx, identifier, searchDir)
	if err != nil {
		return nil, "", err
	}

	cfg, err := LoadFile(path)
	if err != nil {
		return nil, "", err
	}

	if l.meta != nil {
		if err := l.meta.RecordStack(ctx, cfg.Name, path); err != nil {
			l.logger.Warn("failed to record stack metadata", "stack", cfg.Name, "path", path, "error", err)
		}
	}
	return cfg, path, nil
}

func (l *Loader) locate(ctx context.Context, identifier, searchDir string) (string, error) {
	if identifier == "" {
		return findInAncestors(searchDir)
	}

	candidate := identifier
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(searchDir, candidate)
	}
	if info, err := os.Stat(candidate); err == nil {
		if info.IsDir() {
			return findInAncestors(candidate)
		}
		if IsConfigFile(candidate) {
			return filepath.Abs(candidate)
		}
	}

	return l.lookup(ctx, identifier)
}

func (l *Loader) lookup(ctx context.Context, name string) (string, error) {
	if l.meta == nil {
		return "", newLoadError("lookup", name, ErrConfigNotFound, nil)
	}
	path, err := l.meta.LookupStack(ctx, name)
	if errors.Is(err, catalog.ErrNotFound) {
		return "", newLoadError("lookup", name, ErrConfigNotFound, nil)
	}
	if err != nil {
		return "", newLoadError("lookup", name, ErrConfigNotFound, err)
	}
	if _, err := os.Stat(path); err != nil {
		return "", newLoadError("lookup", path, ErrConfigNotFound, fmt.Errorf("recorded for stack %q: %w", name, err))
	}
	return path, nil
}

func findInAncestors(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", newLoadError("find", dir, ErrConfigNotFound, err)
	}
	start := dir
	for {
		for _, name := range DefaultFilenames {
			p := filepath.Join(dir, name)
			if info, err := os.Stat(p); err == nil && !info.IsDir() {
				return p, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", newLoadError("find", start, ErrConfigNotFound, nil)
		}
		dir = parent
	}
}

// IsConfigFile reports whether path has a recognized config extension.
func IsConfigFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml", ".json":
		return true
	}
	return false
}

// =============================================================================
// Parsing
// =============================================================================

// LoadFile reads, parses and validates the config at path.
func LoadFile(path string) (*stack.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, newLoadError("read", path, ErrConfigNotFound, err)
		}
		return nil, newLoadError("read", path, ErrConfigParse, err)
	}
	return Parse(path, data)
}

// Parse decodes data as JSON or YAML by the extension of path and validates
// the result. Type mismatches such as a list where services expects a
// mapping are reported as ErrConfigInvalid.
func Parse(path string, data []byte) (*stack.Config, error) {
	var cfg stack.Config
	var err error
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = decodeJSON(data, &cfg)
	} else {
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		if v, ok := typeViolation(err); ok {
			return nil, newLoadError("validate", path, ErrConfigInvalid, stack.NewValidationError(v...))
		}
		return nil, newLoadError("parse", path, ErrConfigParse, err)
	}

	if err := stack.Validate(&cfg); err != nil {
		return nil, newLoadError("validate", path, ErrConfigInvalid, err)
	}
	return &cfg, nil
}

func decodeJSON(data []byte, v any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func typeViolation(err error) ([]stack.FieldViolation, bool) {
	var yerr *yaml.TypeError
	if errors.As(err, &yerr) {
		out := make([]stack.FieldViolation, 0, len(yerr.Errors))
		for _, msg := range yerr.Errors {
			out = append(out, stack.FieldViolation{Field: "config", Rule: "type", Message: msg})
		}
		return out, true
	}
	var jerr *json.UnmarshalTypeError
	if errors.As(err, &jerr) {
		return []stack.FieldViolation{{
			Field:   jerr.Field,
			Rule:    "type",
			Message: fmt.Sprintf("expected %s, got %s", jerr.Type, jerr.Value),
		}}, true
	}
	return nil, false
}

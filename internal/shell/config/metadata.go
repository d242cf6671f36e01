package config

import (
	"context"
	"fmt"
	"sync"

	"github.com/AaronFeledy/devx-sub000/internal/shell/catalog"
)

// MetadataStore remembers which file each stack name was loaded from.
// LookupStack returns an error matching catalog.ErrNotFound for unknown names.
type MetadataStore interface {
	LookupStack(ctx context.Context, name string) (string, error)
	RecordStack(ctx context.Context, name, configPath string) error
}

var _ MetadataStore = (*catalog.SQLiteCatalog)(nil)

// MemoryMetadata is an in-process MetadataStore.
type MemoryMetadata struct {
	mu    sync.RWMutex
	paths map[string]string
}

// NewMemoryMetadata creates an empty MemoryMetadata.
func NewMemoryMetadata() *MemoryMetadata {
	return &MemoryMetadata{paths: make(map[string]string)}
}

func (m *MemoryMetadata) LookupStack(_ context.Context, name string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.paths[name]
	if !ok {
		return "", fmt.Errorf("lookup %s: %w", name, catalog.ErrNotFound)
	}
	return p, nil
}

func (m *MemoryMetadata) RecordStack(_ context.Context, name, configPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paths[name] = configPath
	return nil
}

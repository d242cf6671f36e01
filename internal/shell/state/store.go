package state

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/mitchellh/go-homedir"
	"github.com/moby/sys/atomicwriter"

	"github.com/AaronFeledy/devx-sub000/internal/core/domain"
)

const (
	// EnvStateFile overrides the state file location (used for test isolation).
	EnvStateFile = "DEVX_STATE_FILE"
	// EnvHome overrides the devx home directory.
	EnvHome = "DEVX_HOME"

	stateFileName = "state.json"
)

// HomeDir returns the devx home directory: $DEVX_HOME, else ~/.devx.
func HomeDir() (string, error) {
	if dir := os.Getenv(EnvHome); dir != "" {
		return homedir.Expand(dir)
	}
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".devx"), nil
}

// DefaultPath returns the state file location: $DEVX_STATE_FILE, else
// state.json in the devx home directory.
func DefaultPath() (string, error) {
	if p := os.Getenv(EnvStateFile); p != "" {
		return homedir.Expand(p)
	}
	dir, err := HomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, stateFileName), nil
}

// =============================================================================
// FileStore
// =============================================================================

// FileStore keeps every StackState in one JSON document and caches it in
// process. The cache is replaced only by SaveAll (directly or through
// Update/Remove); writes by other processes are not observed until the next
// process start.
//
// Update and Remove are read-modify-write without file locking. Two devx
// processes writing concurrently race and the last writer wins.
type FileStore struct {
	path   string
	logger *slog.Logger

	mu    sync.Mutex
	cache domain.DevxState
}

// NewFileStore creates a store backed by the file at path.
func NewFileStore(path string, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{path: path, logger: logger}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// LoadAll returns every record. Read or validation failures are logged and
// recovered as an empty state; LoadAll never fails.
func (s *FileStore) LoadAll() domain.DevxState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked().Clone()
}

func (s *FileStore) loadLocked() domain.DevxState {
	if s.cache != nil {
		return s.cache
	}

	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.cache = domain.DevxState{}
		return s.cache
	case err != nil:
		s.logger.Warn("failed to read state file, using empty state",
			"path", s.path,
			"error", NewStoreError("LoadAll", "", fmt.Errorf("%w: %v", ErrPersistenceRead, err)),
		)
		s.cache = domain.DevxState{}
		return s.cache
	}

	state, err := decode(data)
	if err != nil {
		s.logger.Warn("state file is invalid, using empty state",
			"path", s.path,
			"error", err,
		)
		state = domain.DevxState{}
	}
	s.cache = state
	return s.cache
}

// SaveAll validates and atomically writes state, then replaces the cache.
func (s *FileStore) SaveAll(state domain.DevxState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked("SaveAll", "", state)
}

func (s *FileStore) saveLocked(op, stackName string, state domain.DevxState) error {
	data, err := encode(state)
	if err != nil {
		return NewStoreError(op, stackName, err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return NewStoreError(op, stackName, fmt.Errorf("%w: %v", ErrPersistenceWrite, err))
	}
	if err := atomicwriter.WriteFile(s.path, data, 0o644); err != nil {
		return NewStoreError(op, stackName, fmt.Errorf("%w: %v", ErrPersistenceWrite, err))
	}
	s.cache = state.Clone()
	return nil
}

// GetOne returns the record for name.
func (s *FileStore) GetOne(name string) (domain.StackState, bool) {
	st, ok := s.LoadAll()[name]
	return st, ok
}

// Update merges u onto the record for name, creating it when absent.
// Creating a record requires u.ConfigPath.
func (s *FileStore) Update(name string, u domain.Update) (domain.StackState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.loadLocked().Clone()
	current, exists := all[name]
	if !exists {
		if u.ConfigPath == nil || *u.ConfigPath == "" {
			return domain.StackState{}, NewStoreError("Update", name, ErrMissingConfigPath)
		}
		created, err := domain.NewStackState(name, *u.ConfigPath)
		if err != nil {
			return domain.StackState{}, NewStoreError("Update", name, err)
		}
		current = created
	}

	next := current.Apply(u)
	all[name] = next
	if err := s.saveLocked("Update", name, all); err != nil {
		return domain.StackState{}, err
	}
	return next, nil
}

// Remove deletes the record for name. Removing an absent record is a no-op
// and does not write. It reports whether a record was deleted.
func (s *FileStore) Remove(name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.loadLocked()
	if _, exists := all[name]; !exists {
		return false, nil
	}
	next := all.Clone()
	delete(next, name)
	if err := s.saveLocked("Remove", name, next); err != nil {
		return false, err
	}
	return true, nil
}

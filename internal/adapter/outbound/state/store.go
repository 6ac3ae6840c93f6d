package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"sort"
	"sync"
	"time"

	"log/slog"

	"github.com/Arbiter-AC/arbiter/internal/domain/policy"
)

// FileDataStore implements policy.DataStore backed by an index.json file.
// It provides atomic writes (write-tmp-then-rename), automatic backups, and
// file locking (flock for cross-process, mutex for in-process). Entries are
// cached in memory; every mutation rewrites the file.
type FileDataStore struct {
	path   string
	mu     sync.RWMutex
	state  *IndexState
	logger *slog.Logger
}

// NewFileDataStore opens the index file at path, loading the existing state
// or starting from an empty index when the file does not exist.
func NewFileDataStore(path string, logger *slog.Logger) (*FileDataStore, error) {
	s := &FileDataStore{path: path, logger: logger}
	state, err := s.load()
	if err != nil {
		return nil, err
	}
	s.state = state
	return s, nil
}

// SetPolicyData stores the entry and persists the index.
func (s *FileDataStore) SetPolicyData(ctx context.Context, policyID string, entry *policy.StoreEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Entries[policyID] = entry.Clone()
	return s.save()
}

// GetPolicyData returns the entry for the policy ID.
func (s *FileDataStore) GetPolicyData(ctx context.Context, policyID string) (*policy.StoreEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.state.Entries[policyID]
	if !ok {
		return nil, policy.ErrPolicyNotFound
	}
	return entry.Clone(), nil
}

// GetAllPolicyData returns all entries sorted by policy ID.
func (s *FileDataStore) GetAllPolicyData(ctx context.Context) ([]*policy.StoreEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*policy.StoreEntry, 0, len(s.state.Entries))
	for _, entry := range s.state.Entries {
		result = append(result, entry.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].PolicyID < result[j].PolicyID })
	return result, nil
}

// RemovePolicyData deletes the entry and persists the index. Absent IDs
// succeed without touching the file.
func (s *FileDataStore) RemovePolicyData(ctx context.Context, policyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.state.Entries[policyID]; !ok {
		return nil
	}
	delete(s.state.Entries, policyID)
	return s.save()
}

// Path returns the configured file path.
func (s *FileDataStore) Path() string { return s.path }

// load reads and parses the index file. A missing file yields a fresh empty
// index; invalid JSON is an error. Warns when the existing file has
// permissions more open than 0600.
func (s *FileDataStore) load() (*IndexState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Info("index file not found, starting empty", "path", s.path)
			return defaultState(), nil
		}
		return nil, fmt.Errorf("read index file: %w", err)
	}

	// Unix permission bits are not meaningful on Windows.
	if runtime.GOOS != "windows" {
		if info, statErr := os.Stat(s.path); statErr == nil {
			mode := info.Mode().Perm()
			if mode&0077 != 0 { // group or other has access
				s.logger.Warn("index file has too-open permissions, should be 0600",
					"path", s.path, "current_mode", fmt.Sprintf("%04o", mode))
			}
		}
	}

	var state IndexState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse index file: %w", err)
	}
	if state.Entries == nil {
		state.Entries = make(map[string]*policy.StoreEntry)
	}
	return &state, nil
}

// save writes the index to disk atomically.
//
// The write sequence is:
//  1. Acquire flock on path+".lock"
//  2. Copy current file to path+".bak" (ignored if no current file)
//  3. Marshal state as indented JSON
//  4. Write to path+".tmp" with 0600 permissions
//  5. Fsync the temp file
//  6. Rename path+".tmp" -> path
//  7. Release flock
//
// Callers must hold s.mu.
func (s *FileDataStore) save() error {
	s.state.UpdatedAt = time.Now().UTC()

	lockPath := s.path + ".lock"
	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	defer func() { _ = lockFile.Close() }()

	if err := flockLock(lockFile.Fd()); err != nil {
		return fmt.Errorf("acquire file lock: %w", err)
	}
	defer flockUnlock(lockFile.Fd()) //nolint:errcheck

	if currentData, readErr := os.ReadFile(s.path); readErr == nil {
		bakPath := s.path + ".bak"
		if writeErr := os.WriteFile(bakPath, currentData, 0600); writeErr != nil {
			s.logger.Warn("failed to create backup", "error", writeErr)
		}
	}

	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}
	data = append(data, '\n')

	if err := s.writeAtomic(data); err != nil {
		return err
	}

	if err := os.Chmod(s.path, 0600); err != nil {
		s.logger.Warn("failed to set permissions on index file", "error", err)
	}

	s.logger.Debug("index saved", "path", s.path, "entries", len(s.state.Entries))
	return nil
}

// writeAtomic writes data to a temp file, fsyncs it, and renames it over
// the target path. On any error the temp file is cleaned up.
func (s *FileDataStore) writeAtomic(data []byte) error {
	tmpPath := s.path + ".tmp"

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	cleanup := func() {
		_ = f.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := f.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("fsync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp to index: %w", err)
	}
	return nil
}

func defaultState() *IndexState {
	now := time.Now().UTC()
	return &IndexState{
		Version:   "1",
		Entries:   make(map[string]*policy.StoreEntry),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Compile-time interface verification.
var _ policy.DataStore = (*FileDataStore)(nil)

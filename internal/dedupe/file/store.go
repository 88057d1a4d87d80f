// Package file implements a JSON-file-backed dedupe store.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Store keeps the key set in memory and serializes it as a JSON string list.
type Store struct {
	path   string
	logger *zap.Logger

	mu   sync.Mutex
	keys map[string]struct{}
}

// New constructs a Store persisting to path.
func New(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		path:   path,
		logger: logger,
		keys:   make(map[string]struct{}),
	}
}

// Load reads the persisted key list. A missing file yields an empty set; a
// corrupt file logs a warning and yields an empty set. Neither is fatal:
// losing dedupe history only risks re-processing, not incorrect output.
func (s *Store) Load(_ context.Context) error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read dedupe file: %w", err)
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		s.logger.Warn("dedupe file is corrupt, starting with an empty set",
			zap.String("path", s.path),
			zap.Error(err),
		)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range list {
		s.keys[key] = struct{}{}
	}
	return nil
}

// TryAdd inserts the key under the lock, reporting whether it was new.
func (s *Store) TryAdd(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.keys[key]; seen {
		return false
	}
	s.keys[key] = struct{}{}
	return true
}

// Persist writes the full key set as a sorted JSON list. The write goes to a
// temp file first so an interrupted flush never truncates the previous state.
func (s *Store) Persist(_ context.Context) error {
	s.mu.Lock()
	list := make([]string, 0, len(s.keys))
	for key := range s.keys {
		list = append(list, key)
	}
	s.mu.Unlock()
	sort.Strings(list)

	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("marshal dedupe keys: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create dedupe dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write dedupe file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace dedupe file: %w", err)
	}
	return nil
}

// Size reports the number of known keys.
func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}

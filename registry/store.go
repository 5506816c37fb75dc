package registry

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"ember/emberr"
)

// Store owns the registry file. No other component touches the file
// directly; all read-modify-write cycles are serialized here and every
// write replaces the file atomically.
type Store struct {
	path   string
	mu     sync.Mutex
	logger *slog.Logger
}

// NewStore creates the owning store for the registry file at path.
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{path: path, logger: logger}
}

// All returns every record keyed by OS name.
func (s *Store) All() map[string]Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Get returns the record for name.
func (s *Store) Get(name string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.load()[name]
	return rec, ok
}

// Put inserts or replaces the record for rec.Name.
func (s *Store) Put(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.load()
	records[rec.Name] = rec
	return s.save(records)
}

// Remove deletes the record for name. Removing an absent name is not an
// error.
func (s *Store) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.load()
	if _, ok := records[name]; !ok {
		return nil
	}
	delete(records, name)
	return s.save(records)
}

// Touch sets the last-used timestamp for name. A missing record is logged
// and ignored; boot bookkeeping must not fail the boot.
func (s *Store) Touch(name string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.load()
	rec, ok := records[name]
	if !ok {
		s.logger.Warn("touch on unregistered system", "name", name)
		return nil
	}
	rec.LastUsed = &at
	records[rec.Name] = rec
	return s.save(records)
}

// load reads the registry file. An unreadable or unparsable file is treated
// as an empty registry with a logged warning, never a fatal error.
func (s *Store) load() map[string]Record {
	records := make(map[string]Record)

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("registry unreadable, treating as empty",
				"path", s.path,
				"error", emberr.NewRegistryCorruption("registry.load", err))
		}
		return records
	}

	if err := json.Unmarshal(data, &records); err != nil {
		s.logger.Warn("registry unparsable, treating as empty",
			"path", s.path,
			"error", emberr.NewRegistryCorruption("registry.load", err))
		return make(map[string]Record)
	}

	return records
}

// save writes the registry with write-new-then-replace so a crash mid-write
// cannot leave a torn file visible to a concurrent reader.
func (s *Store) save(records map[string]Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}
	return writeAtomic(s.path, data)
}

// writeAtomic writes data to a temp file in the target directory, syncs it
// and renames it over path.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

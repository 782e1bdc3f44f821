package cookies

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bytedance/sonic"
)

// Store persists jar entries. Implementations must be safe for concurrent use.
type Store interface {
	Load() (map[string]string, error)
	Put(origin, value string) error
	Delete(origin string) error
}

// MemoryStore keeps entries in memory only
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]string)}
}

// Load returns a copy of all entries
func (s *MemoryStore) Load() (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out, nil
}

// Put stores an entry
func (s *MemoryStore) Put(origin, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[origin] = value
	return nil
}

// Delete removes an entry
func (s *MemoryStore) Delete(origin string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, origin)
	return nil
}

// FileStore keeps entries in a JSON file, rewritten atomically on every change
type FileStore struct {
	path string

	mu      sync.Mutex
	entries map[string]string
}

// NewFileStore opens or creates a JSON cookie file
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path, entries: make(map[string]string)}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read cookie file: %w", err)
	}

	if len(data) > 0 {
		if err := sonic.Unmarshal(data, &s.entries); err != nil {
			return nil, fmt.Errorf("parse cookie file %s: %w", path, err)
		}
	}
	return s, nil
}

// Path returns the backing file path
func (s *FileStore) Path() string {
	return s.path
}

// Load returns a copy of all entries
func (s *FileStore) Load() (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]string, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out, nil
}

// Put stores an entry and flushes the file
func (s *FileStore) Put(origin, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.entries[origin]
	s.entries[origin] = value
	if err := s.flush(); err != nil {
		if had {
			s.entries[origin] = prev
		} else {
			delete(s.entries, origin)
		}
		return err
	}
	return nil
}

// Delete removes an entry and flushes the file
func (s *FileStore) Delete(origin string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.entries[origin]
	if !had {
		return nil
	}
	delete(s.entries, origin)
	if err := s.flush(); err != nil {
		s.entries[origin] = prev
		return err
	}
	return nil
}

// flush writes entries to a temp file and renames it over the target.
// Caller holds s.mu.
func (s *FileStore) flush() error {
	data, err := sonic.ConfigStd.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cookies: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cookie dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".cookies-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cookie file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write cookie file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("chmod cookie file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close cookie file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace cookie file: %w", err)
	}
	return nil
}

package properties

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Store owns a single properties file on disk.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a store for the file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the location of the file.
func (s *Store) Path() string { return s.path }

// Load parses the file. A missing file returns an error wrapping
// fs.ErrNotExist.
func (s *Store) Load() (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() (*Document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(s.path), err)
	}
	return Parse(data), nil
}

// Read returns the file's entries in order.
func (s *Store) Read() (Map, error) {
	doc, err := s.Load()
	if err != nil {
		return Map{}, err
	}
	return doc.Entries(), nil
}

// Mutate applies edits (key -> new value, "" clears) to the keys that already
// exist in the file and returns the keys that were changed, sorted. Keys that
// are not in the file are ignored. The file is only rewritten when at least
// one line changed.
func (s *Store) Mutate(edits map[string]string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}

	var changed []string
	for key, value := range edits {
		current, ok := doc.Get(key)
		if !ok || current == value {
			continue
		}
		doc.Set(key, value)
		changed = append(changed, key)
	}
	if len(changed) == 0 {
		return nil, nil
	}
	sort.Strings(changed)

	if err := s.writeAtomic(doc.Bytes()); err != nil {
		return nil, err
	}
	return changed, nil
}

func (s *Store) writeAtomic(data []byte) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(s.path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".server-properties-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace %s: %w", filepath.Base(s.path), err)
	}
	return nil
}

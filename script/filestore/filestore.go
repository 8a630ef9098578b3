// Package filestore is the default script.Registry: a single flat JSON
// index file under the workspace root, read and rewritten wholesale under a
// mutex on every mutation. No third-party library is wired here — the
// registry is a small, single-process key/value index with no query needs
// beyond get/put/delete/list, which encoding/json plus a file rewrite
// already serves; a database driver would add an unused dependency with no
// SPEC_FULL.md component to exercise its query surface (see DESIGN.md).
package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/guideforge/engine/script"
)

// Store is a script.Registry backed by a single JSON file.
type Store struct {
	mu   sync.Mutex
	path string
}

// New builds a Store backed by path, creating its parent directory and an
// empty index if neither exists yet.
func New(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("filestore: mkdir: %w", err)
	}
	s := &Store{path: path}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := s.write(map[string]script.Script{}); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) read() (map[string]script.Script, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]script.Script{}, nil
		}
		return nil, fmt.Errorf("filestore: read: %w", err)
	}
	if len(raw) == 0 {
		return map[string]script.Script{}, nil
	}
	var index map[string]script.Script
	if err := json.Unmarshal(raw, &index); err != nil {
		return nil, fmt.Errorf("filestore: decode: %w", err)
	}
	return index, nil
}

func (s *Store) write(index map[string]script.Script) error {
	raw, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return fmt.Errorf("filestore: encode: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("filestore: write temp: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("filestore: rename: %w", err)
	}
	return nil
}

// Get implements script.Registry.
func (s *Store) Get(_ context.Context, id string) (script.Script, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	index, err := s.read()
	if err != nil {
		return script.Script{}, false, err
	}
	sc, ok := index[id]
	return sc, ok, nil
}

// Put implements script.Registry.
func (s *Store) Put(_ context.Context, sc script.Script) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	index, err := s.read()
	if err != nil {
		return err
	}
	index[sc.ID] = sc
	return s.write(index)
}

// Delete implements script.Registry.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	index, err := s.read()
	if err != nil {
		return err
	}
	delete(index, id)
	return s.write(index)
}

// List implements script.Registry.
func (s *Store) List(_ context.Context) ([]script.Script, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	index, err := s.read()
	if err != nil {
		return nil, err
	}
	out := make([]script.Script, 0, len(index))
	for _, sc := range index {
		out = append(out, sc)
	}
	return out, nil
}

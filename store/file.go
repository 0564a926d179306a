package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/castellan/castellan/core"
)

// fileDocument is the on-disk JSON layout: one document holding both the
// state map and the ignored names.
type fileDocument struct {
	States  map[string]string `json:"states"`
	Ignored []string          `json:"ignored"`
}

// FileStore persists states to a single JSON file. A missing or corrupt
// file is treated as empty rather than an error, so a damaged state file
// never prevents the coordinator from starting.
type FileStore struct {
	mu   sync.Mutex
	path string
	doc  fileDocument
}

// NewFileStore opens (or initializes) the store at path.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path}
	s.doc = s.readDocument()
	return s, nil
}

func (s *FileStore) readDocument() fileDocument {
	empty := fileDocument{States: make(map[string]string)}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return empty
	}
	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return empty
	}
	if doc.States == nil {
		doc.States = make(map[string]string)
	}
	return doc
}

// flush writes the document atomically: temp file in the same directory,
// then rename.
func (s *FileStore) flush() error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state file: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

func (s *FileStore) SaveState(name string, state core.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc.States[name] = string(state)
	return s.flush()
}

func (s *FileStore) LoadState(name string) (core.State, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok := s.doc.States[name]
	if !ok {
		return "", false, nil
	}
	state, ok := core.ParseState(raw)
	if !ok {
		return "", false, nil
	}
	return state, true, nil
}

func (s *FileStore) DeleteState(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.doc.States[name]; !ok {
		return nil
	}
	delete(s.doc.States, name)
	return s.flush()
}

func (s *FileStore) ListStates() (map[string]core.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]core.State, len(s.doc.States))
	for name, raw := range s.doc.States {
		if state, ok := core.ParseState(raw); ok {
			out[name] = state
		}
	}
	return out, nil
}

func (s *FileStore) SaveIgnored(names map[string]struct{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc.Ignored = s.doc.Ignored[:0]
	for n := range names {
		s.doc.Ignored = append(s.doc.Ignored, n)
	}
	return s.flush()
}

func (s *FileStore) LoadIgnored() (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]struct{}, len(s.doc.Ignored))
	for _, n := range s.doc.Ignored {
		out[n] = struct{}{}
	}
	return out, nil
}

// Path returns the backing file location.
func (s *FileStore) Path() string { return s.path }

// Exists reports whether the backing file has been written yet.
func (s *FileStore) Exists() bool {
	_, err := os.Stat(s.path)
	return !errors.Is(err, fs.ErrNotExist)
}

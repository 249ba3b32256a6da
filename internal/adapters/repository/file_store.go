package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

type followDocument struct {
	Followed []int `yaml:"followed"`
}

// FileStore keeps the follow set in a YAML file:
//
//	followed:
//	  - 254
//	  - 971
type FileStore struct {
	mu   sync.Mutex
	path string
	perm fs.FileMode
}

// Option configures a FileStore.
type Option func(*FileStore)

// WithFileMode sets the permissions of a newly written file.
func WithFileMode(perm fs.FileMode) Option {
	return func(s *FileStore) {
		if perm != 0 {
			s.perm = perm
		}
	}
}

// NewFileStore returns a store backed by path. The file is created on the
// first Save.
func NewFileStore(path string, opts ...Option) *FileStore {
	s := &FileStore{path: path, perm: 0o644}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the backing file.
func (s *FileStore) Path() string { return s.path }

// Load reads the file. A missing file is an empty set.
func (s *FileStore) Load(_ context.Context) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, s.path, err)
	}

	var doc followDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, s.path, err)
	}
	return normalise(doc.Followed), nil
}

// Save replaces the file contents atomically.
func (s *FileStore) Save(_ context.Context, teams []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := yaml.Marshal(followDocument{Followed: normalise(teams)})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	tmp, err := os.CreateTemp(dir, ".follows-*.yaml")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	if err := tmp.Chmod(s.perm); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	return nil
}

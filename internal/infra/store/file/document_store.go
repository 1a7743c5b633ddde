package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"macro-weather-access/internal/domain/ports/repository"
)

var _ repository.DocumentStore = (*DocumentStore)(nil)

// DocumentStore keeps one collection in <dir>/<name>.json.
// Save writes a temp file in the same directory, syncs it and renames it over
// the target, so a crash leaves either the old or the new document.
type DocumentStore struct {
	path string
	mu   sync.Mutex
}

func NewDocumentStore(dir, name string) *DocumentStore {
	return &DocumentStore{path: filepath.Join(dir, name+".json")}
}

// Factory returns a repository.DocumentStoreFactory rooted at dir.
func Factory(dir string) repository.DocumentStoreFactory {
	return func(name string) (repository.DocumentStore, error) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		return NewDocumentStore(dir, name), nil
	}
}

func (s *DocumentStore) Load(_ context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

func (s *DocumentStore) Save(_ context.Context, data []byte) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	if err = os.Rename(tmpName, s.path); err != nil {
		return err
	}
	syncDir(dir)
	return nil
}

// Path returns the file backing the document.
func (s *DocumentStore) Path() string { return s.path }

// syncDir flushes the rename; not every platform supports it.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

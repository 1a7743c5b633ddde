package memory

import (
	"context"
	"sync"

	"macro-weather-access/internal/domain/ports/repository"
)

var _ repository.DocumentStore = (*DocumentStore)(nil)

// DocumentStore keeps the document in process memory. It is the backend for
// tests and for ephemeral deployments.
type DocumentStore struct {
	mu      sync.Mutex
	data    []byte
	saves   int
	saveErr error
	loadErr error
}

func NewDocumentStore() *DocumentStore { return &DocumentStore{} }

// Factory returns a repository.DocumentStoreFactory handing out a fresh
// store per collection.
func Factory() repository.DocumentStoreFactory {
	return func(string) (repository.DocumentStore, error) {
		return NewDocumentStore(), nil
	}
}

func (s *DocumentStore) Load(_ context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	if s.data == nil {
		return nil, nil
	}
	return append([]byte(nil), s.data...), nil
}

func (s *DocumentStore) Save(_ context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.data = append([]byte(nil), data...)
	s.saves++
	return nil
}

// FailSaves makes every following Save return err; nil restores success.
func (s *DocumentStore) FailSaves(err error) {
	s.mu.Lock()
	s.saveErr = err
	s.mu.Unlock()
}

// FailLoads makes every following Load return err.
func (s *DocumentStore) FailLoads(err error) {
	s.mu.Lock()
	s.loadErr = err
	s.mu.Unlock()
}

// Saves returns the number of successful saves.
func (s *DocumentStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

package redis

import (
	"context"
	"fmt"
	"strings"

	"macro-weather-access/internal/domain/ports/repository"
)

var _ repository.DocumentStore = (*DocumentStore)(nil)

// DocumentStore keeps one collection under <prefix>:<name>. SET replaces the
// value atomically, which is all a whole-document save needs.
type DocumentStore struct {
	client RedisClient
	key    string
}

func NewDocumentStore(client RedisClient, prefix, name string) *DocumentStore {
	return &DocumentStore{client: client, key: prefix + ":" + name}
}

func Factory(client RedisClient, prefix string) repository.DocumentStoreFactory {
	return func(name string) (repository.DocumentStore, error) {
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("document name is required")
		}
		return NewDocumentStore(client, prefix, name), nil
	}
}

func (s *DocumentStore) Load(ctx context.Context) ([]byte, error) {
	v, err := s.client.Get(ctx, s.key)
	if err != nil {
		if IsNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("load %s: %w", s.key, err)
	}
	return []byte(v), nil
}

func (s *DocumentStore) Save(ctx context.Context, data []byte) error {
	if err := s.client.Set(ctx, s.key, data, 0); err != nil {
		return fmt.Errorf("save %s: %w", s.key, err)
	}
	return nil
}

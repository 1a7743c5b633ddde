package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"macro-weather-access/internal/domain/ports/repository"
)

// executor is the subset of pgx shared by pools and transactions.
type executor interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
}

var _ repository.DocumentStore = (*DocumentStore)(nil)

// DocumentStore keeps one ledger collection in a ledger_documents row.
// A Save is one upsert statement, so readers see the old or the new body.
type DocumentStore struct {
	db   executor
	name string
}

func NewDocumentStore(pool *pgxpool.Pool, name string) *DocumentStore {
	return &DocumentStore{db: pool, name: name}
}

// Factory hands out one DocumentStore per collection on a shared pool.
func Factory(pool *pgxpool.Pool) repository.DocumentStoreFactory {
	return func(name string) (repository.DocumentStore, error) {
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("document name is required")
		}
		return NewDocumentStore(pool, name), nil
	}
}

func (s *DocumentStore) Load(ctx context.Context) ([]byte, error) {
	const q = `SELECT body FROM ledger_documents WHERE name=$1;`
	var body []byte
	if err := s.db.QueryRow(ctx, q, s.name).Scan(&body); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load %s: %w", s.name, err)
	}
	return body, nil
}

func (s *DocumentStore) Save(ctx context.Context, data []byte) error {
	const q = `
INSERT INTO ledger_documents (name, body, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (name) DO UPDATE SET body=EXCLUDED.body, updated_at=EXCLUDED.updated_at;`
	if _, err := s.db.Exec(ctx, q, s.name, data); err != nil {
		return fmt.Errorf("save %s: %w", s.name, err)
	}
	return nil
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"macro-weather-access/internal/domain/ports/repository"
)

const schema = `
CREATE TABLE IF NOT EXISTS ledger_documents (
	name       TEXT PRIMARY KEY,
	body       BLOB NOT NULL,
	updated_at INTEGER NOT NULL
)`

// DB owns the SQLite connection shared by every ledger document.
type DB struct {
	sqlDB *sql.DB
}

// Open opens (creating if needed) the database at path and ensures the schema.
func Open(path string) (*DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(FULL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Single writer keeps document replacement serialized.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &DB{sqlDB: sqlDB}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sqlDB == nil {
		return nil
	}
	return d.sqlDB.Close()
}

// Factory hands out one DocumentStore per collection name.
func (d *DB) Factory() repository.DocumentStoreFactory {
	return func(name string) (repository.DocumentStore, error) {
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("document name is required")
		}
		return &DocumentStore{db: d.sqlDB, name: name}, nil
	}
}

var _ repository.DocumentStore = (*DocumentStore)(nil)

type DocumentStore struct {
	db   *sql.DB
	name string
}

func (s *DocumentStore) Load(ctx context.Context) ([]byte, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM ledger_documents WHERE name = ?`, s.name,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", s.name, err)
	}
	return body, nil
}

func (s *DocumentStore) Save(ctx context.Context, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ledger_documents (name, body, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		s.name, data, time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save %s: %w", s.name, err)
	}
	return nil
}

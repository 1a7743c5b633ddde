// Package ledger holds the process-resident user, code and access ledgers.
//
// Each ledger keeps its whole collection in memory behind one lock and
// persists it as a single document on every mutation. A mutation builds the
// next snapshot, saves it and only then publishes it, so a failed save leaves
// memory equal to what is durable.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"macro-weather-access/internal/domain"
	"macro-weather-access/internal/domain/ports/repository"
)

// Collection names, used both as DocumentStore names and in error text.
const (
	UsersCollection  = "users"
	CodesCollection  = "sponsor_codes"
	AccessCollection = "user_access"
)

func loadDocument(ctx context.Context, store repository.DocumentStore, name string, v any) (bool, error) {
	data, err := store.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("load %s: %w: %w", name, domain.ErrStorageIO, err)
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w: %w", name, domain.ErrStorageIO, err)
	}
	return true, nil
}

func saveDocument(ctx context.Context, store repository.DocumentStore, name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := store.Save(ctx, data); err != nil {
		return fmt.Errorf("save %s: %w: %w", name, domain.ErrStorageIO, err)
	}
	return nil
}

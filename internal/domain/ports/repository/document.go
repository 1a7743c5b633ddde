package repository

import "context"

// DocumentStore persists one serialized collection as a whole.
//
// Load returns (nil, nil) when nothing has been saved yet. Save must replace
// the previous document atomically: readers see either the old or the new
// document, never a torn mix.
type DocumentStore interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

// DocumentStoreFactory opens the store for a named collection.
type DocumentStoreFactory func(name string) (DocumentStore, error)

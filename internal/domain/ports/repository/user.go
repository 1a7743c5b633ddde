package repository

import (
	"context"

	"macro-weather-access/internal/domain/model"
)

// -----------------------------
// Users
// -----------------------------

// UserLedger owns identity records keyed by normalized email.
type UserLedger interface {
	// Create assigns the next id and opens the trial window.
	// Fails with domain.ErrAlreadyExists if the email is taken.
	Create(ctx context.Context, email, passwordHash string) (*model.User, error)
	// FindByEmail returns domain.ErrNotFound when absent.
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	// FindByID returns domain.ErrNotFound when absent.
	FindByID(ctx context.Context, id int64) (*model.User, error)
	// Update merges fields; domain.ErrNotFound when absent.
	Update(ctx context.Context, email string, upd model.UserUpdate) (*model.User, error)
	Count(ctx context.Context) (int, error)
	// List returns users ordered by id.
	List(ctx context.Context) ([]*model.User, error)
}

package repository

import (
	"context"

	"macro-weather-access/internal/domain/model"
)

// AccessLedger owns per-user module grants.
type AccessLedger interface {
	// Grant appends a grant; domain.ErrAlreadyGranted if one exists for the pair.
	Grant(ctx context.Context, userID int64, module, viaCode string) (*model.AccessGrant, error)
	// ListForUser returns grants in insertion order.
	ListForUser(ctx context.Context, userID int64) ([]model.AccessGrant, error)
	HasAccess(ctx context.Context, userID int64, module string) (bool, error)
	// Revoke removes the grant for module, or every grant of the user when
	// module is empty, and returns the codes that backed them in order.
	Revoke(ctx context.Context, userID int64, module string) ([]string, error)
	// CountByModule returns the number of grants per module.
	CountByModule(ctx context.Context) (map[string]int, error)
}

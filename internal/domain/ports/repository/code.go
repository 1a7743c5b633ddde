package repository

import (
	"context"

	"macro-weather-access/internal/domain/model"
)

// CodeLedger owns redemption codes keyed by their uppercase form.
type CodeLedger interface {
	// Lookup is case-insensitive; domain.ErrNotFound when absent.
	Lookup(ctx context.Context, code string) (*model.RedemptionCode, error)
	// CreateBatch upserts entries and returns how many were written.
	// Existing entries keep their use count.
	CreateBatch(ctx context.Context, entries []model.CodeSpec) (int, error)
	// MarkUsed increments the use count without checking the ceiling.
	MarkUsed(ctx context.Context, code string) error
	// ResetUses decrements the use count, floored at zero.
	ResetUses(ctx context.Context, code string) error
	// ListByModule returns codes of one module sorted by code.
	ListByModule(ctx context.Context, module string) ([]*model.RedemptionCode, error)
	// All returns every code sorted by code.
	All(ctx context.Context) ([]*model.RedemptionCode, error)
}

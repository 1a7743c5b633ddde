// Package application assembles ledgers and use cases from configuration.
// Both the HTTP service and the admin CLI start from here.
package application

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"macro-weather-access/internal/config"
	"macro-weather-access/internal/domain"
	"macro-weather-access/internal/domain/model"
	"macro-weather-access/internal/infra/ledger"
	"macro-weather-access/internal/infra/security"
	"macro-weather-access/internal/infra/store"
	"macro-weather-access/internal/usecase"
)

type App struct {
	Backend *store.Backend
	Catalog *model.Catalog
	Clock   domain.Clock

	Users  *ledger.UserLedger
	Codes  *ledger.CodeLedger
	Access *ledger.AccessLedger

	Auth   usecase.AuthUseCase
	Ent    usecase.EntitlementUseCase
	Issuer usecase.CodeIssuer
}

// Build opens the configured backend and loads all three ledgers. clock may
// be nil for the system clock.
func Build(ctx context.Context, cfg *config.Config, clock domain.Clock, logger *zerolog.Logger) (*App, error) {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	backend, err := store.Open(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	app, err := build(ctx, cfg, backend, clock, logger)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return app, nil
}

func build(ctx context.Context, cfg *config.Config, backend *store.Backend, clock domain.Clock, logger *zerolog.Logger) (*App, error) {
	usersStore, err := backend.Factory(ledger.UsersCollection)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", ledger.UsersCollection, err)
	}
	codesStore, err := backend.Factory(ledger.CodesCollection)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", ledger.CodesCollection, err)
	}
	accessStore, err := backend.Factory(ledger.AccessCollection)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", ledger.AccessCollection, err)
	}

	users, err := ledger.OpenUserLedger(ctx, usersStore, clock, cfg.Trial.Days, logger)
	if err != nil {
		return nil, err
	}
	codes, err := ledger.OpenCodeLedger(ctx, codesStore, clock, logger)
	if err != nil {
		return nil, err
	}
	access, err := ledger.OpenAccessLedger(ctx, accessStore, clock, logger)
	if err != nil {
		return nil, err
	}

	catalog := NewCatalog(cfg.Modules)
	return &App{
		Backend: backend,
		Catalog: catalog,
		Clock:   clock,
		Users:   users,
		Codes:   codes,
		Access:  access,
		Auth:    usecase.NewAuthUseCase(users, security.NewBcryptHasher(cfg.Auth.BcryptCost), cfg.Auth.MinPasswordLen, logger),
		Ent:     usecase.NewEntitlementUseCase(users, codes, access, catalog, clock, logger),
		Issuer:  usecase.NewCodeIssuer(codes, catalog, logger),
	}, nil
}

func (a *App) Close() {
	a.Backend.Close()
}

func NewCatalog(mods []config.ModuleConfig) *model.Catalog {
	out := make([]model.Module, 0, len(mods))
	for _, m := range mods {
		out = append(out, model.Module{
			ID:          m.ID,
			Name:        m.Name,
			SponsorLink: m.SponsorLink,
			Color:       m.Color,
			CodePrefix:  m.CodePrefix,
		})
	}
	return model.NewCatalog(out)
}

// Package store selects the DocumentStore backend named by storage.driver.
package store

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"macro-weather-access/internal/config"
	"macro-weather-access/internal/domain/ports/repository"
	"macro-weather-access/internal/infra/db/postgres"
	"macro-weather-access/internal/infra/db/sqlite"
	"macro-weather-access/internal/infra/redis"
	"macro-weather-access/internal/infra/store/file"
	"macro-weather-access/internal/infra/store/memory"
)

// Backend bundles the chosen factory with whatever needs closing on shutdown.
type Backend struct {
	Driver  string
	Factory repository.DocumentStoreFactory
	// Redis is set when the redis driver opened a client; callers may reuse it.
	Redis *redis.Client
	// PoolStats reports total/idle/in-use connections; nil unless postgres.
	PoolStats func() (total, idle, inUse int32)
	closer    func()
}

func (b *Backend) Close() {
	if b != nil && b.closer != nil {
		b.closer()
	}
}

func Open(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*Backend, error) {
	b := &Backend{Driver: cfg.Storage.Driver}
	switch cfg.Storage.Driver {
	case "file":
		b.Factory = file.Factory(cfg.Storage.Dir)
	case "memory":
		b.Factory = memory.Factory()
	case "sqlite":
		db, err := sqlite.Open(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		b.Factory = db.Factory()
		b.closer = func() { _ = db.Close() }
	case "postgres":
		pool, err := postgres.NewPgxPool(ctx, cfg.Storage.PostgresURL)
		if err != nil {
			return nil, err
		}
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		b.Factory = postgres.Factory(pool)
		b.PoolStats = func() (int32, int32, int32) {
			st := pool.Stat()
			return st.TotalConns(), st.IdleConns(), st.AcquiredConns()
		}
		b.closer = pool.Close
	case "redis":
		cli, err := redis.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("redis connect: %w", err)
		}
		b.Factory = redis.Factory(cli, cfg.Storage.KeyPrefix)
		b.Redis = cli
		b.closer = func() { _ = cli.Close() }
	default:
		return nil, fmt.Errorf("storage driver %q is not supported", cfg.Storage.Driver)
	}
	logger.Info().Str("driver", b.Driver).Msg("storage backend ready")
	return b, nil
}

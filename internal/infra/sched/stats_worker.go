package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"macro-weather-access/internal/domain/model"
	"macro-weather-access/internal/infra/metrics"
)

// StatsSource is satisfied by usecase.EntitlementUseCase.
type StatsSource interface {
	Stats(ctx context.Context) (*model.Stats, error)
}

// StatsWorker periodically publishes ledger totals as Prometheus gauges.
type StatsWorker struct {
	interval  time.Duration
	src       StatsSource
	poolStats func() (total, idle, inUse int32)
	log       *zerolog.Logger
}

// NewStatsWorker builds a worker; poolStats may be nil.
func NewStatsWorker(interval time.Duration, src StatsSource, poolStats func() (int32, int32, int32), logger *zerolog.Logger) *StatsWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	wl := logger.With().Str("component", "StatsWorker").Logger()
	return &StatsWorker{
		interval:  interval,
		src:       src,
		poolStats: poolStats,
		log:       &wl,
	}
}

// Run publishes once immediately, then on every tick until ctx is done.
func (w *StatsWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting stats worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping stats worker")
			return ctx.Err()
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

func (w *StatsWorker) Tick(ctx context.Context) {
	if w.poolStats != nil {
		metrics.SetDBPoolStats(w.poolStats())
	}
	st, err := w.src.Stats(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("stats worker error")
		return
	}
	metrics.SetStats(st)
	w.log.Debug().Int("users", st.Users).Int("in_trial", st.UsersInTrial).Msg("stats published")
}

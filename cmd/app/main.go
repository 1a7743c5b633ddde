package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"macro-weather-access/internal/application"
	"macro-weather-access/internal/config"
	"macro-weather-access/internal/infra/logging"
	"macro-weather-access/internal/infra/metrics"
	red "macro-weather-access/internal/infra/redis"
	"macro-weather-access/internal/infra/sched"
	"macro-weather-access/internal/infra/web"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (random JWT secret, console logs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		boot := zerolog.New(os.Stderr).With().Timestamp().Logger()
		boot.Fatal().Err(err).Msg("config")
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}

	if cfg.Auth.JWTSecret == "" {
		// Only reachable in dev; tokens will not survive a restart.
		cfg.Auth.JWTSecret = randomSecret()
		logger.Warn().Msg("auth.jwt_secret not set; using an ephemeral secret")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Storage + ledgers ----
	app, err := application.Build(ctx, cfg, nil, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("startup")
	}
	defer app.Close()

	// ---- Redis (rate limiting) ----
	var limiter web.Limiter
	switch {
	case app.Backend.Redis != nil:
		limiter = red.NewRateLimiter(app.Backend.Redis, "rate_limit")
	case cfg.Redis.URL != "":
		cli, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable; rate limiting disabled")
			break
		}
		defer cli.Close()
		limiter = red.NewRateLimiter(cli, "rate_limit")
	default:
		logger.Info().Msg("redis not configured; rate limiting disabled")
	}

	// ---- Stats worker ----
	worker := sched.NewStatsWorker(cfg.Scheduler.StatsInterval, app.Ent, app.Backend.PoolStats, logger)
	go func() {
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("stats worker stopped")
		}
	}()

	// ---- HTTP ----
	srv := web.NewServer(web.Options{
		Port:           cfg.HTTP.Port,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		AdminAPIKey:    cfg.Admin.APIKey,
		LoginLimit:     cfg.RateLimit.LoginPerWindow,
		RedeemLimit:    cfg.RateLimit.RedeemPerWindow,
		RateWindow:     cfg.RateLimit.Window,
		Dev:            cfg.Runtime.Dev,
	}, web.Deps{
		Tokens:  web.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, app.Clock),
		Auth:    app.Auth,
		Ent:     app.Ent,
		Issuer:  app.Issuer,
		Limiter: limiter,
	}, logger)

	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()

	// ---- Graceful shutdown ----
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown requested")
	case err := <-errc:
		if err != nil {
			logger.Error().Err(err).Msg("http server error")
		}
	}
	shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}

package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"macro-weather-access/internal/usecase"
)

type Options struct {
	Port           int
	RequestTimeout time.Duration
	AdminAPIKey    string
	LoginLimit     int
	RedeemLimit    int
	RateWindow     time.Duration
	// Dev logs emails unredacted.
	Dev bool
}

type Deps struct {
	Tokens  *TokenManager
	Auth    usecase.AuthUseCase
	Ent     usecase.EntitlementUseCase
	Issuer  usecase.CodeIssuer
	Limiter Limiter // optional
}

type Server struct {
	opts    Options
	tokens  *TokenManager
	auth    usecase.AuthUseCase
	ent     usecase.EntitlementUseCase
	issuer  usecase.CodeIssuer
	limiter Limiter
	log     *zerolog.Logger
	srv     *http.Server
}

func NewServer(opts Options, deps Deps, logger *zerolog.Logger) *Server {
	if opts.RateWindow <= 0 {
		opts.RateWindow = time.Minute
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	return &Server{
		opts:    opts,
		tokens:  deps.Tokens,
		auth:    deps.Auth,
		ent:     deps.Ent,
		issuer:  deps.Issuer,
		limiter: deps.Limiter,
		log:     logger,
	}
}

// Routes builds the full handler tree including the outer middleware chain.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.handleRegister)
			r.With(s.RateLimit("login", s.opts.LoginLimit, clientIP)).Post("/login", s.handleLogin)
			r.With(s.Authenticate).Get("/me", s.handleMe)
		})

		r.Route("/sponsor", func(r chi.Router) {
			r.Get("/links", s.handleLinks)
			r.Group(func(r chi.Router) {
				r.Use(s.Authenticate)
				r.With(s.RateLimit("redeem", s.opts.RedeemLimit, userKey)).Post("/redeem", s.handleRedeem)
				r.Get("/check/{module}", s.handleCheck)
			})
		})

		r.With(s.Authenticate, s.RequireModule).Get("/modules/{module}/ping", s.handleModulePing)

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.AdminKey)
			r.Post("/codes", s.handleAdminGenerate)
			r.Get("/codes", s.handleAdminListCodes)
			r.Post("/users/{id}/revoke", s.handleAdminRevoke)
			r.Post("/users/{email}/active", s.handleAdminSetActive)
			r.Get("/stats", s.handleAdminStats)
		})
	})

	return Chain(r,
		TraceID(),
		Recover(s.log),
		RequestLog(s.log),
		Timeout(s.opts.RequestTimeout),
	)
}

// Start blocks until the server stops. http.ErrServerClosed is not an error.
func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.opts.Port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.log.Info().Int("port", s.opts.Port).Msg("HTTP server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unknown"
}

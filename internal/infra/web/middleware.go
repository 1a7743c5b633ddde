package web

import (
	"context"
	"crypto/subtle"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"macro-weather-access/internal/domain"
	"macro-weather-access/internal/domain/model"
	"macro-weather-access/internal/infra/logging"
	"macro-weather-access/internal/infra/metrics"
)

type Middleware func(http.Handler) http.Handler

func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func TraceID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tid := r.Header.Get("X-Request-ID")
			if tid == "" || len(tid) > 64 {
				tid = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", tid)
			ctx := logging.WithTraceID(r.Context(), tid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequestLog(logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &respWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			l := logging.With(r.Context(), logger)
			l.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.status).
				Dur("duration", time.Since(start)).
				Msg("http_request")
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func Recover(logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					l := logging.With(r.Context(), logger)
					l.Error().Interface("panic", rec).Msg("panic recovered")
					writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error", Reason: domain.ReasonInternal})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func Timeout(d time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ===== Auth =====

type ctxKey int

const (
	ctxUser ctxKey = iota
	ctxDecision
)

func userFrom(ctx context.Context) *model.User {
	u, _ := ctx.Value(ctxUser).(*model.User)
	return u
}

func decisionFrom(ctx context.Context) *model.AccessDecision {
	d, _ := ctx.Value(ctxDecision).(*model.AccessDecision)
	return d
}

// Authenticate resolves the bearer token to an active user.
func (s *Server) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.tokens.ParseFromRequest(r)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "authentication required", Reason: domain.ReasonBadCredential})
			return
		}
		u, err := s.auth.Profile(r.Context(), claims.UserID)
		if err != nil {
			switch domain.ReasonCode(err) {
			case domain.ReasonNotFound:
				writeJSON(w, http.StatusUnauthorized, errorBody{Error: "user no longer exists", Reason: domain.ReasonBadCredential})
			default:
				s.writeError(w, r, err)
			}
			return
		}
		ctx := context.WithValue(r.Context(), ctxUser, u)
		ctx = logging.WithUserID(ctx, u.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireModule gates a route on the {module} URL parameter. Must run after
// Authenticate.
func (s *Server) RequireModule(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := userFrom(r.Context())
		module := model.NormalizeModule(chi.URLParam(r, "module"))
		d, err := s.ent.Check(r.Context(), u, module)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		metrics.IncAccessCheck(module, string(d.Reason))
		if !d.Allowed {
			m, _ := s.ent.Catalog().Get(module)
			writeJSON(w, http.StatusForbidden, gateDenied{
				errorBody:   errorBody{Error: "trial expired; redeem a sponsor code to unlock " + s.ent.Catalog().DisplayName(module), Reason: string(d.Reason)},
				Module:      module,
				SponsorLink: m.SponsorLink,
			})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxDecision, d)))
	})
}

// AdminKey provides simple Bearer token authentication for the admin API.
func (s *Server) AdminKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.AdminAPIKey == "" {
			s.log.Error().Msg("Admin API key is not configured")
			metrics.IncAdminRequest("disabled")
			writeJSON(w, http.StatusForbidden, errorBody{Error: "admin api disabled", Reason: domain.ReasonBadCredential})
			return
		}

		tokenParts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
		if len(tokenParts) != 2 || !strings.EqualFold(tokenParts[0], "bearer") {
			metrics.IncAdminRequest("unauthorized")
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "admin key required", Reason: domain.ReasonBadCredential})
			return
		}
		if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(tokenParts[1])), []byte(s.opts.AdminAPIKey)) != 1 {
			metrics.IncAdminRequest("unauthorized")
			writeJSON(w, http.StatusForbidden, errorBody{Error: "admin key rejected", Reason: domain.ReasonBadCredential})
			return
		}
		metrics.IncAdminRequest("authorized")
		next.ServeHTTP(w, r)
	})
}

// ===== Rate limiting =====

// Limiter is satisfied by redis.RateLimiter.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RateLimit fails open when the limiter itself errors.
func (s *Server) RateLimit(action string, limit int, key func(*http.Request) string) Middleware {
	return func(next http.Handler) http.Handler {
		if s.limiter == nil || limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, err := s.limiter.Allow(r.Context(), action+":"+key(r), limit, s.opts.RateWindow)
			if err != nil {
				logging.With(r.Context(), s.log).Warn().Err(err).Str("action", action).Msg("rate limiter unavailable")
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				metrics.IncRateLimitTriggered(action)
				w.Header().Set("Retry-After", strconv.Itoa(int(s.opts.RateWindow.Seconds())))
				s.writeError(w, r, domain.ErrRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func userKey(r *http.Request) string {
	if u := userFrom(r.Context()); u != nil {
		return strconv.FormatInt(u.ID, 10)
	}
	return clientIP(r)
}

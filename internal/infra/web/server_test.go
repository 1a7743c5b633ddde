//go:build !integration

package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"macro-weather-access/internal/config"
	"macro-weather-access/internal/domain"
	"macro-weather-access/internal/domain/model"
	"macro-weather-access/internal/infra/ledger"
	"macro-weather-access/internal/infra/logging"
	"macro-weather-access/internal/infra/security"
	"macro-weather-access/internal/infra/store/memory"
	"macro-weather-access/internal/infra/web"
	"macro-weather-access/internal/usecase"
)

const adminKey = "admin-secret"

var testStart = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

type fakeLimiter struct {
	allow bool
	err   error
	keys  []string
}

func (l *fakeLimiter) Allow(_ context.Context, key string, _ int, _ time.Duration) (bool, error) {
	l.keys = append(l.keys, key)
	return l.allow, l.err
}

type harness struct {
	clock   *domain.ManualClock
	handler http.Handler
	limiter *fakeLimiter
}

func newHarness(t *testing.T, mutate func(*web.Options)) *harness {
	t.Helper()
	logger := zerolog.New(io.Discard)
	return newHarnessWithLogger(t, &logger, mutate)
}

func newHarnessWithLogger(t *testing.T, log *zerolog.Logger, mutate func(*web.Options)) *harness {
	t.Helper()
	ctx := context.Background()
	clock := domain.NewManualClock(testStart)
	catalog := model.NewCatalog([]model.Module{
		{ID: "nasdaq", Name: "Nasdaq Weather Station", SponsorLink: "https://example.com/nasdaq", CodePrefix: "NAS"},
		{ID: "gold", Name: "Gold Macro Weather Station", SponsorLink: "https://example.com/gold", CodePrefix: "GLD"},
	})

	users, err := ledger.OpenUserLedger(ctx, memory.NewDocumentStore(), clock, 7, log)
	require.NoError(t, err)
	codes, err := ledger.OpenCodeLedger(ctx, memory.NewDocumentStore(), clock, log)
	require.NoError(t, err)
	access, err := ledger.OpenAccessLedger(ctx, memory.NewDocumentStore(), clock, log)
	require.NoError(t, err)

	opts := web.Options{
		AdminAPIKey:    adminKey,
		LoginLimit:     5,
		RedeemLimit:    5,
		RateWindow:     time.Minute,
		RequestTimeout: 5 * time.Second,
	}
	if mutate != nil {
		mutate(&opts)
	}
	h := &harness{clock: clock, limiter: &fakeLimiter{allow: true}}
	srv := web.NewServer(opts, web.Deps{
		Tokens:  web.NewTokenManager("test-secret", 24*time.Hour, clock),
		Auth:    usecase.NewAuthUseCase(users, security.NewBcryptHasher(4), 6, log),
		Ent:     usecase.NewEntitlementUseCase(users, codes, access, catalog, clock, log),
		Issuer:  usecase.NewCodeIssuer(codes, catalog, log),
		Limiter: h.limiter,
	}, log)
	h.handler = srv.Routes()
	return h
}

func (h *harness) do(t *testing.T, method, path string, body any, bearer string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)

	out := map[string]any{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
	}
	return rec, out
}

func (h *harness) register(t *testing.T, email string) string {
	t.Helper()
	rec, body := h.do(t, http.MethodPost, "/api/auth/register", map[string]string{"email": email, "password": "secret123"}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return body["token"].(string)
}

func (h *harness) generate(t *testing.T, module string, count, maxUses int) []string {
	t.Helper()
	rec, body := h.do(t, http.MethodPost, "/api/admin/codes", map[string]any{"module": module, "count": count, "max_uses": maxUses}, adminKey)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var codes []string
	for _, c := range body["codes"].([]any) {
		codes = append(codes, c.(string))
	}
	return codes
}

func TestHealth(t *testing.T) {
	h := newHarness(t, nil)
	rec, body := h.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRegisterAndLogin(t *testing.T) {
	h := newHarness(t, nil)

	t.Run("register returns token and trial summary", func(t *testing.T) {
		rec, body := h.do(t, http.MethodPost, "/api/auth/register", map[string]string{"email": "Alice@Example.com", "password": "secret123"}, "")
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.NotEmpty(t, body["token"])
		user := body["user"].(map[string]any)
		assert.Equal(t, "alice@example.com", user["email"])
		assert.EqualValues(t, 7, user["trial_days_left"])
		assert.Equal(t, true, user["is_trial_active"])
		assert.Equal(t, []any{}, user["activated_modules"])
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		rec, body := h.do(t, http.MethodPost, "/api/auth/register", map[string]string{"email": "alice@example.com", "password": "secret123"}, "")
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, domain.ReasonAlreadyExists, body["reason"])
	})

	t.Run("short password rejected", func(t *testing.T) {
		rec, body := h.do(t, http.MethodPost, "/api/auth/register", map[string]string{"email": "bob@example.com", "password": "123"}, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, domain.ReasonInvalidInput, body["reason"])
	})

	t.Run("malformed body rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader("{"))
		rec := httptest.NewRecorder()
		h.handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown email and wrong password look the same", func(t *testing.T) {
		rec1, body1 := h.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "nobody@example.com", "password": "secret123"}, "")
		rec2, body2 := h.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "alice@example.com", "password": "wrong-pass"}, "")
		assert.Equal(t, http.StatusUnauthorized, rec1.Code)
		assert.Equal(t, rec1.Code, rec2.Code)
		assert.Equal(t, body1, body2)
		assert.Equal(t, domain.ReasonBadCredential, body1["reason"])
	})

	t.Run("login succeeds", func(t *testing.T) {
		rec, body := h.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "ALICE@example.com", "password": "secret123"}, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotEmpty(t, body["token"])
	})
}

func TestMe(t *testing.T) {
	h := newHarness(t, nil)
	tok := h.register(t, "carol@example.com")

	rec, _ := h.do(t, http.MethodGet, "/api/auth/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = h.do(t, http.MethodGet, "/api/auth/me", nil, "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, body := h.do(t, http.MethodGet, "/api/auth/me", nil, tok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "carol@example.com", body["email"])
	assert.NotEmpty(t, body["created_at"])

	t.Run("token expires", func(t *testing.T) {
		h.clock.Advance(25 * time.Hour)
		rec, _ := h.do(t, http.MethodGet, "/api/auth/me", nil, tok)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestInactiveUser(t *testing.T) {
	h := newHarness(t, nil)
	tok := h.register(t, "dave@example.com")

	rec, body := h.do(t, http.MethodPost, "/api/admin/users/dave@example.com/active", map[string]bool{"active": false}, adminKey)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, false, body["is_active"])

	rec, body = h.do(t, http.MethodGet, "/api/auth/me", nil, tok)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, domain.ReasonInactive, body["reason"])

	rec, body = h.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "dave@example.com", "password": "secret123"}, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, domain.ReasonInactive, body["reason"])

	rec, _ = h.do(t, http.MethodPost, "/api/admin/users/ghost@example.com/active", map[string]bool{"active": true}, adminKey)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSponsorLinks(t *testing.T) {
	h := newHarness(t, nil)
	rec, body := h.do(t, http.MethodGet, "/api/sponsor/links", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	gold := body["gold"].(map[string]any)
	assert.Equal(t, "Gold Macro Weather Station", gold["name"])
	assert.Equal(t, "https://example.com/gold", gold["link"])
}

func TestRedeemFlow(t *testing.T) {
	h := newHarness(t, nil)
	tok := h.register(t, "erin@example.com")
	codes := h.generate(t, "nasdaq", 2, 1)
	require.Len(t, codes, 2)

	t.Run("trial allows access before expiry", func(t *testing.T) {
		rec, body := h.do(t, http.MethodGet, "/api/sponsor/check/nasdaq", nil, tok)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, body["allowed"])
		assert.Equal(t, "trial", body["reason"])
		assert.Equal(t, "Nasdaq Weather Station", body["module_name"])
	})

	h.clock.Advance(8 * 24 * time.Hour)
	// Fresh token; the first one expired with the clock jump.
	rec, body := h.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "erin@example.com", "password": "secret123"}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	tok = body["token"].(string)

	t.Run("gate denies after trial", func(t *testing.T) {
		rec, body := h.do(t, http.MethodGet, "/api/modules/nasdaq/ping", nil, tok)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "expired", body["reason"])
		assert.Equal(t, "https://example.com/nasdaq", body["sponsor_link"])
	})

	t.Run("mismatched module names the target", func(t *testing.T) {
		rec, body := h.do(t, http.MethodPost, "/api/sponsor/redeem", map[string]string{"code": codes[0], "module": "gold"}, tok)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, domain.ReasonModuleMismatch, body["reason"])
		assert.Contains(t, body["error"], "Gold Macro Weather Station")
	})

	t.Run("unknown code", func(t *testing.T) {
		rec, body := h.do(t, http.MethodPost, "/api/sponsor/redeem", map[string]string{"code": "NAS-NOPE0000", "module": "nasdaq"}, tok)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, domain.ReasonInvalidCode, body["reason"])
	})

	t.Run("redeem unlocks module", func(t *testing.T) {
		rec, body := h.do(t, http.MethodPost, "/api/sponsor/redeem", map[string]string{"code": strings.ToLower(codes[0]), "module": "NASDAQ"}, tok)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		user := body["user"].(map[string]any)
		assert.Equal(t, []any{"nasdaq"}, user["activated_modules"])
		assert.Equal(t, false, user["is_trial_active"])

		rec, body = h.do(t, http.MethodGet, "/api/modules/nasdaq/ping", nil, tok)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ok", body["status"])
	})

	t.Run("second redeem for same module conflicts", func(t *testing.T) {
		rec, body := h.do(t, http.MethodPost, "/api/sponsor/redeem", map[string]string{"code": codes[1], "module": "nasdaq"}, tok)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, domain.ReasonAlreadyGranted, body["reason"])
	})

	t.Run("exhausted code", func(t *testing.T) {
		other := h.register(t, "frank@example.com")
		rec, body := h.do(t, http.MethodPost, "/api/sponsor/redeem", map[string]string{"code": codes[0], "module": "nasdaq"}, other)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, domain.ReasonUseLimitExceeded, body["reason"])
	})

	t.Run("unknown module on check", func(t *testing.T) {
		rec, body := h.do(t, http.MethodGet, "/api/sponsor/check/oil", nil, tok)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, domain.ReasonUnknownModule, body["reason"])
	})

	t.Run("redeem requires auth", func(t *testing.T) {
		rec, _ := h.do(t, http.MethodPost, "/api/sponsor/redeem", map[string]string{"code": codes[1], "module": "nasdaq"}, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestAdminKey(t *testing.T) {
	h := newHarness(t, nil)

	rec, _ := h.do(t, http.MethodGet, "/api/admin/stats", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = h.do(t, http.MethodGet, "/api/admin/stats", nil, "wrong")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = h.do(t, http.MethodGet, "/api/admin/stats", nil, adminKey)
	assert.Equal(t, http.StatusOK, rec.Code)

	disabled := newHarness(t, func(o *web.Options) { o.AdminAPIKey = "" })
	rec, _ = disabled.do(t, http.MethodGet, "/api/admin/stats", nil, "anything")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminCodes(t *testing.T) {
	h := newHarness(t, nil)

	t.Run("unknown module", func(t *testing.T) {
		rec, body := h.do(t, http.MethodPost, "/api/admin/codes", map[string]any{"module": "oil", "count": 1}, adminKey)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, domain.ReasonUnknownModule, body["reason"])
	})

	t.Run("text export", func(t *testing.T) {
		rec, _ := h.do(t, http.MethodPost, "/api/admin/codes?format=txt", map[string]any{"module": "gold", "count": 3, "max_uses": 2}, adminKey)
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))
		text := rec.Body.String()
		assert.Contains(t, text, "Gold Macro Weather Station")
		assert.Equal(t, 3, strings.Count(text, "GLD-"))
	})

	t.Run("list by module", func(t *testing.T) {
		h.generate(t, "nasdaq", 2, 0)
		rec, body := h.do(t, http.MethodGet, "/api/admin/codes?module=gold", nil, adminKey)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, body["codes"], 3)

		_, body = h.do(t, http.MethodGet, "/api/admin/codes", nil, adminKey)
		assert.Len(t, body["codes"], 5)
	})
}

func TestAdminRevokeAndStats(t *testing.T) {
	h := newHarness(t, nil)
	tok := h.register(t, "gina@example.com")
	code := h.generate(t, "gold", 1, 1)[0]

	rec, _ := h.do(t, http.MethodPost, "/api/sponsor/redeem", map[string]string{"code": code, "module": "gold"}, tok)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, body := h.do(t, http.MethodGet, "/api/admin/stats", nil, adminKey)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["users"])
	assert.EqualValues(t, 1, body["grants_by_module"].(map[string]any)["gold"])

	rec, body = h.do(t, http.MethodPost, "/api/admin/users/1/revoke", map[string]any{"module": "gold", "release": true}, adminKey)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []any{code}, body["revoked_codes"])

	// Released code works again.
	rec, _ = h.do(t, http.MethodPost, "/api/sponsor/redeem", map[string]string{"code": code, "module": "gold"}, tok)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = h.do(t, http.MethodPost, "/api/admin/users/abc/revoke", nil, adminKey)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = h.do(t, http.MethodPost, "/api/admin/users/99/revoke", nil, adminKey)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimit(t *testing.T) {
	t.Run("blocked", func(t *testing.T) {
		h := newHarness(t, nil)
		h.limiter.allow = false
		rec, body := h.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "x@example.com", "password": "secret123"}, "")
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, domain.ReasonRateLimited, body["reason"])
		assert.Equal(t, "60", rec.Header().Get("Retry-After"))
		require.NotEmpty(t, h.limiter.keys)
		assert.True(t, strings.HasPrefix(h.limiter.keys[0], "login:"))
	})

	t.Run("limiter failure fails open", func(t *testing.T) {
		h := newHarness(t, nil)
		h.limiter.err = errors.New("redis down")
		h.register(t, "open@example.com")
		rec, _ := h.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "open@example.com", "password": "secret123"}, "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("disabled when limit is zero", func(t *testing.T) {
		h := newHarness(t, func(o *web.Options) { o.LoginLimit = 0 })
		h.limiter.allow = false
		rec, _ := h.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "x@example.com", "password": "secret123"}, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestLoginRejectionLogRedactsEmail(t *testing.T) {
	logCfg := config.LogConfig{Level: "info", Format: "json"}

	t.Run("production", func(t *testing.T) {
		var buf bytes.Buffer
		h := newHarnessWithLogger(t, logging.NewWithWriter(&buf, logCfg, false), nil)
		h.register(t, "someone.private@example.com")

		rec, _ := h.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "someone.private@example.com", "password": "wrong-pass"}, "")
		require.Equal(t, http.StatusUnauthorized, rec.Code)

		out := buf.String()
		assert.Contains(t, out, "login rejected")
		assert.Contains(t, out, logging.Redact("someone.private@example.com", false))
		assert.NotContains(t, out, "someone.private@example.com")
	})

	t.Run("dev keeps the address", func(t *testing.T) {
		var buf bytes.Buffer
		h := newHarnessWithLogger(t, logging.NewWithWriter(&buf, logCfg, false), func(o *web.Options) { o.Dev = true })

		rec, _ := h.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "ghost@example.com", "password": "secret123"}, "")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, buf.String(), "ghost@example.com")
	})
}

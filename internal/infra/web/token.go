package web

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"

	"macro-weather-access/internal/domain"
	"macro-weather-access/internal/domain/model"
)

var (
	errMissingToken = errors.New("missing token")
	errInvalidToken = errors.New("invalid token")
)

// ===== Session/JWT primitives =====

type UserClaims struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// TokenManager mints and verifies HS256 bearer tokens for end users.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	clock  domain.Clock
}

func NewTokenManager(secret string, ttl time.Duration, clock domain.Clock) *TokenManager {
	return &TokenManager{secret: []byte(secret), ttl: ttl, clock: clock}
}

func (m *TokenManager) Mint(u *model.User) (string, time.Time, error) {
	now := m.clock.Now()
	exp := now.Add(m.ttl)
	claims := UserClaims{
		UserID: u.ID,
		Email:  u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        ulid.Make().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			Subject:   strconv.FormatInt(u.ID, 10),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// ParseFromRequest reads "Authorization: Bearer <jwt>".
func (m *TokenManager) ParseFromRequest(r *http.Request) (*UserClaims, error) {
	hdr := r.Header.Get("Authorization")
	if hdr == "" {
		return nil, errMissingToken
	}
	if len(hdr) < 7 || !strings.EqualFold(hdr[:7], "bearer ") {
		return nil, errInvalidToken
	}
	return m.Parse(strings.TrimSpace(hdr[7:]))
}

func (m *TokenManager) Parse(tok string) (*UserClaims, error) {
	claims := &UserClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !tkn.Valid || claims.UserID <= 0 {
		return nil, errInvalidToken
	}
	return claims, nil
}

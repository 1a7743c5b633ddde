package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"macro-weather-access/internal/domain"
	"macro-weather-access/internal/domain/model"
	"macro-weather-access/internal/domain/ports/adapter"
	"macro-weather-access/internal/domain/ports/repository"
	"macro-weather-access/internal/infra/logging"
)

// Compile-time check
var _ AuthUseCase = (*authUC)(nil)

// AuthUseCase covers identity: registration, login and account status.
type AuthUseCase interface {
	Register(ctx context.Context, email, password string) (*model.User, error)
	// Login fails with domain.ErrNotFound, ErrBadCredential or ErrInactive.
	Login(ctx context.Context, email, password string) (*model.User, error)
	// Profile loads an authenticated user; inactive accounts fail with ErrInactive.
	Profile(ctx context.Context, userID int64) (*model.User, error)
	SetActive(ctx context.Context, email string, active bool) (*model.User, error)
}

type authUC struct {
	users          repository.UserLedger
	hasher         adapter.CredentialHasher
	minPasswordLen int
	log            *zerolog.Logger

	decoyOnce sync.Once
	decoy     string
}

// decoyPassword is hashed once and compared against on unknown emails so a
// miss costs the same as a wrong password.
const decoyPassword = "decoy-password-for-unknown-accounts"

func NewAuthUseCase(users repository.UserLedger, hasher adapter.CredentialHasher, minPasswordLen int, logger *zerolog.Logger) *authUC {
	return &authUC{
		users:          users,
		hasher:         hasher,
		minPasswordLen: minPasswordLen,
		log:            logger,
	}
}

func (a *authUC) Register(ctx context.Context, email, password string) (*model.User, error) {
	defer logging.TraceDuration(a.log, "AuthUC.Register")()

	email = model.NormalizeEmail(email)
	if !validEmail(email) {
		return nil, fmt.Errorf("%w: email address is malformed", domain.ErrInvalidInput)
	}
	if utf8.RuneCountInString(password) < a.minPasswordLen {
		return nil, fmt.Errorf("%w: password must be at least %d characters", domain.ErrInvalidInput, a.minPasswordLen)
	}
	// Cheap pre-check so taken emails skip the hash; Create re-checks under its lock.
	if _, err := a.users.FindByEmail(ctx, email); err == nil {
		return nil, domain.ErrAlreadyExists
	}

	hash, err := a.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	u, err := a.users.Create(ctx, email, hash)
	if err != nil {
		return nil, err
	}
	logging.With(ctx, a.log).Info().Int64("user_id", u.ID).Time("trial_expires_at", u.TrialExpiresAt).Msg("user registered")
	return u, nil
}

func (a *authUC) Login(ctx context.Context, email, password string) (*model.User, error) {
	defer logging.TraceDuration(a.log, "AuthUC.Login")()

	u, err := a.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			_ = a.hasher.Verify(a.decoyHash(), password)
		}
		return nil, err
	}
	if err := a.hasher.Verify(u.PasswordHash, password); err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, domain.ErrInactive
	}
	return u, nil
}

func (a *authUC) Profile(ctx context.Context, userID int64) (*model.User, error) {
	defer logging.TraceDuration(a.log, "AuthUC.Profile")()

	u, err := a.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, domain.ErrInactive
	}
	return u, nil
}

func (a *authUC) SetActive(ctx context.Context, email string, active bool) (*model.User, error) {
	defer logging.TraceDuration(a.log, "AuthUC.SetActive")()

	u, err := a.users.Update(ctx, email, model.UserUpdate{IsActive: &active})
	if err != nil {
		return nil, err
	}
	logging.With(ctx, a.log).Info().Int64("user_id", u.ID).Bool("active", active).Msg("user status changed")
	return u, nil
}

func (a *authUC) decoyHash() string {
	a.decoyOnce.Do(func() {
		h, err := a.hasher.Hash(decoyPassword)
		if err != nil {
			a.log.Warn().Err(err).Msg("decoy hash unavailable")
			return
		}
		a.decoy = h
	})
	return a.decoy
}

// validEmail only requires a local part and a domain around a single '@'.
func validEmail(email string) bool {
	at := strings.LastIndexByte(email, '@')
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t\r\n")
}

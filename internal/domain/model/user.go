package model

import (
	"strings"
	"time"

	"macro-weather-access/internal/domain"
)

// User is a registered identity. Email is the external key and is always
// stored normalized (see NormalizeEmail).
type User struct {
	ID             int64     `json:"id"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"password_hash"`
	CreatedAt      time.Time `json:"created_at"`
	TrialExpiresAt time.Time `json:"trial_expires_at"`
	IsActive       bool      `json:"is_active"`
}

// UserUpdate carries a partial set of fields to merge into a User.
// Nil fields are left untouched.
type UserUpdate struct {
	PasswordHash   *string
	TrialExpiresAt *time.Time
	IsActive       *bool
}

// NewUser builds a user whose trial window starts at now.
func NewUser(id int64, email, passwordHash string, now time.Time, trialDays int) (*User, error) {
	email = NormalizeEmail(email)
	if id <= 0 || email == "" || passwordHash == "" || trialDays < 0 {
		return nil, domain.ErrInvalidInput
	}
	now = now.UTC()
	return &User{
		ID:             id,
		Email:          email,
		PasswordHash:   passwordHash,
		CreatedAt:      now,
		TrialExpiresAt: now.Add(time.Duration(trialDays) * 24 * time.Hour),
		IsActive:       true,
	}, nil
}

// Apply merges the non-nil fields of upd into u.
func (u *User) Apply(upd UserUpdate) {
	if upd.PasswordHash != nil {
		u.PasswordHash = *upd.PasswordHash
	}
	if upd.TrialExpiresAt != nil {
		u.TrialExpiresAt = upd.TrialExpiresAt.UTC()
	}
	if upd.IsActive != nil {
		u.IsActive = *upd.IsActive
	}
}

// InTrial reports whether now falls strictly before the trial expiry.
func (u *User) InTrial(now time.Time) bool {
	return now.Before(u.TrialExpiresAt)
}

// TrialDaysLeft returns the whole remaining trial days, counting a partial
// day as one. It is 0 from the instant the trial expires.
func (u *User) TrialDaysLeft(now time.Time) int {
	if !u.InTrial(now) {
		return 0
	}
	left := u.TrialExpiresAt.Sub(now)
	const day = 24 * time.Hour
	days := int(left / day)
	if left%day != 0 {
		days++
	}
	return days
}

func (u *User) IsZero() bool { return u == nil || u.ID == 0 }

// NormalizeEmail trims and lowercases an external key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

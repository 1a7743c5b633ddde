package model

import (
	"strings"
	"time"
)

// RedemptionCode is a token that can be exchanged for a permanent grant on a
// single module. MaxUses of 0 means unlimited.
type RedemptionCode struct {
	Code        string     `json:"code"`
	Module      string     `json:"module"`
	MaxUses     int        `json:"max_uses"`
	CurrentUses int        `json:"current_uses"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// CodeSpec describes one entry of a batch creation.
type CodeSpec struct {
	Code      string
	Module    string
	MaxUses   int
	ExpiresAt *time.Time
}

// Exhausted reports whether the code has no uses left.
func (c *RedemptionCode) Exhausted() bool {
	return c.MaxUses > 0 && c.CurrentUses >= c.MaxUses
}

// ExpiredAt reports whether the code is past its expiry at now.
func (c *RedemptionCode) ExpiredAt(now time.Time) bool {
	return c.ExpiresAt != nil && now.After(*c.ExpiresAt)
}

// NormalizeCode trims and uppercases a code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

package model

import "time"

// AccessGrant records that a user earned a module through a redemption code.
// ExpiresAt is reserved for time-limited grants; grants are currently
// permanent until revoked.
type AccessGrant struct {
	UserID    int64      `json:"user_id"`
	Module    string     `json:"module"`
	ViaCode   string     `json:"via_code"`
	GrantedAt time.Time  `json:"granted_at"`
	ExpiresAt *time.Time `json:"expires_at"`
}

package domain

import "errors"

var (
	// Identity
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrBadCredential = errors.New("credential does not match")
	ErrInactive      = errors.New("user is inactive")

	// Redemption
	ErrUnknownModule    = errors.New("unknown module")
	ErrInvalidCode      = errors.New("redemption code is invalid or disabled")
	ErrModuleMismatch   = errors.New("redemption code does not belong to this module")
	ErrUseLimitExceeded = errors.New("redemption code reached its use limit")
	ErrCodeExpired      = errors.New("redemption code has expired")
	ErrAlreadyGranted   = errors.New("module already granted to user")

	// Caller exceeded its request budget for an action.
	ErrRateLimited = errors.New("too many attempts")

	// Durable storage write or read failed; the request must not report success.
	ErrStorageIO = errors.New("storage i/o failure")
)

// Stable reason codes carried by every rejection.
const (
	ReasonNotFound         = "not_found"
	ReasonAlreadyExists    = "already_exists"
	ReasonInvalidInput     = "invalid_input"
	ReasonBadCredential    = "bad_credential"
	ReasonInactive         = "inactive"
	ReasonUnknownModule    = "unknown_module"
	ReasonInvalidCode      = "invalid_code"
	ReasonModuleMismatch   = "module_mismatch"
	ReasonUseLimitExceeded = "use_limit_exceeded"
	ReasonCodeExpired      = "code_expired"
	ReasonAlreadyGranted   = "already_granted"
	ReasonRateLimited      = "rate_limited"
	ReasonStorageIO        = "storage_io"
	ReasonInternal         = "internal"
)

var reasons = []struct {
	err  error
	code string
}{
	{ErrStorageIO, ReasonStorageIO},
	{ErrNotFound, ReasonNotFound},
	{ErrAlreadyExists, ReasonAlreadyExists},
	{ErrInvalidInput, ReasonInvalidInput},
	{ErrBadCredential, ReasonBadCredential},
	{ErrInactive, ReasonInactive},
	{ErrUnknownModule, ReasonUnknownModule},
	{ErrInvalidCode, ReasonInvalidCode},
	{ErrModuleMismatch, ReasonModuleMismatch},
	{ErrUseLimitExceeded, ReasonUseLimitExceeded},
	{ErrCodeExpired, ReasonCodeExpired},
	{ErrAlreadyGranted, ReasonAlreadyGranted},
	{ErrRateLimited, ReasonRateLimited},
}

// ReasonCode maps err onto its stable reason code. Storage failures win over
// anything they wrap; unknown errors map to ReasonInternal.
func ReasonCode(err error) string {
	if err == nil {
		return ""
	}
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.code
		}
	}
	return ReasonInternal
}

// IsRejection reports whether err is a recoverable validation outcome rather
// than an infrastructure failure.
func IsRejection(err error) bool {
	code := ReasonCode(err)
	return code != "" && code != ReasonStorageIO && code != ReasonInternal
}

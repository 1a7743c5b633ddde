package web

import (
	"encoding/json"
	"io"
	"net/http"

	"macro-weather-access/internal/domain"
	"macro-weather-access/internal/infra/logging"
	"macro-weather-access/internal/infra/metrics"
)

type errorBody struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

type gateDenied struct {
	errorBody
	Module      string `json:"module"`
	SponsorLink string `json:"sponsor_link"`
}

var reasonStatus = map[string]int{
	domain.ReasonInvalidInput:     http.StatusBadRequest,
	domain.ReasonUnknownModule:    http.StatusBadRequest,
	domain.ReasonInvalidCode:      http.StatusBadRequest,
	domain.ReasonModuleMismatch:   http.StatusBadRequest,
	domain.ReasonUseLimitExceeded: http.StatusBadRequest,
	domain.ReasonCodeExpired:      http.StatusBadRequest,
	domain.ReasonBadCredential:    http.StatusUnauthorized,
	domain.ReasonInactive:         http.StatusForbidden,
	domain.ReasonNotFound:         http.StatusNotFound,
	domain.ReasonAlreadyExists:    http.StatusConflict,
	domain.ReasonAlreadyGranted:   http.StatusConflict,
	domain.ReasonRateLimited:      http.StatusTooManyRequests,
	domain.ReasonStorageIO:        http.StatusInternalServerError,
	domain.ReasonInternal:         http.StatusInternalServerError,
}

var reasonMessage = map[string]string{
	domain.ReasonInvalidInput:     "invalid input",
	domain.ReasonUnknownModule:    "unknown module",
	domain.ReasonInvalidCode:      "invalid redemption code",
	domain.ReasonModuleMismatch:   "this code does not belong to the selected module",
	domain.ReasonUseLimitExceeded: "this code has reached its use limit",
	domain.ReasonCodeExpired:      "this code has expired",
	domain.ReasonBadCredential:    "invalid email or password",
	domain.ReasonInactive:         "account is disabled",
	domain.ReasonNotFound:         "not found",
	domain.ReasonAlreadyExists:    "email is already registered",
	domain.ReasonAlreadyGranted:   "module is already unlocked",
	domain.ReasonRateLimited:      "too many attempts, try again later",
	domain.ReasonStorageIO:        "storage unavailable, try again later",
	domain.ReasonInternal:         "internal error",
}

func statusFor(reason string) int {
	if st, ok := reasonStatus[reason]; ok {
		return st
	}
	return http.StatusInternalServerError
}

// writeError renders err as {error, reason}. Server-side failures are logged;
// rejections are not.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	reason := domain.ReasonCode(err)
	st := statusFor(reason)
	if st >= http.StatusInternalServerError {
		if reason == domain.ReasonStorageIO {
			metrics.IncStorageError(routePattern(r))
		}
		logging.With(r.Context(), s.log).Error().Err(err).Str("reason", reason).Msg("request failed")
	}
	writeJSON(w, st, errorBody{Error: reasonMessage[reason], Reason: reason})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return domain.ErrInvalidInput
	}
	return nil
}

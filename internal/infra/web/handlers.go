package web

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"macro-weather-access/internal/domain"
	"macro-weather-access/internal/domain/model"
	"macro-weather-access/internal/infra/logging"
	"macro-weather-access/internal/infra/metrics"
	"macro-weather-access/internal/usecase"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userView struct {
	ID               int64      `json:"id"`
	Email            string     `json:"email"`
	CreatedAt        *time.Time `json:"created_at,omitempty"`
	TrialDaysLeft    int        `json:"trial_days_left"`
	IsTrialActive    bool       `json:"is_trial_active"`
	ActivatedModules []string   `json:"activated_modules"`
}

type authResponse struct {
	Message string   `json:"message"`
	Token   string   `json:"token"`
	User    userView `json:"user"`
}

func newUserView(u *model.User, sum *model.AccessSummary) userView {
	v := userView{ID: u.ID, Email: u.Email, ActivatedModules: []string{}}
	if sum != nil {
		v.TrialDaysLeft = sum.TrialDaysLeft
		v.IsTrialActive = sum.IsTrialActive
		if sum.ActivatedModules != nil {
			v.ActivatedModules = sum.ActivatedModules
		}
	}
	return v
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ===== Auth =====

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	u, err := s.auth.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	metrics.IncUsersRegistered()
	s.respondWithToken(w, r, http.StatusCreated, "registration successful", u)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	u, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		reason := domain.ReasonCode(err)
		metrics.IncLogin(reason)
		logging.With(r.Context(), s.log).Warn().
			Str("email", logging.Redact(model.NormalizeEmail(req.Email), s.opts.Dev)).
			Str("reason", reason).
			Msg("login rejected")
		// Unknown email and wrong password must be indistinguishable.
		if reason == domain.ReasonNotFound {
			err = domain.ErrBadCredential
		}
		s.writeError(w, r, err)
		return
	}
	metrics.IncLogin("success")
	s.respondWithToken(w, r, http.StatusOK, "login successful", u)
}

func (s *Server) respondWithToken(w http.ResponseWriter, r *http.Request, status int, msg string, u *model.User) {
	sum, err := s.ent.Summarize(r.Context(), u)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	tok, _, err := s.tokens.Mint(u)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, status, authResponse{Message: msg, Token: tok, User: newUserView(u, sum)})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context())
	sum, err := s.ent.Summarize(r.Context(), u)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	v := newUserView(u, sum)
	created := u.CreatedAt
	v.CreatedAt = &created
	writeJSON(w, http.StatusOK, v)
}

// ===== Sponsor =====

type sponsorLink struct {
	Name string `json:"name"`
	Link string `json:"link"`
}

func (s *Server) handleLinks(w http.ResponseWriter, _ *http.Request) {
	out := make(map[string]sponsorLink)
	for _, m := range s.ent.Catalog().All() {
		out[m.ID] = sponsorLink{Name: m.Name, Link: m.SponsorLink}
	}
	writeJSON(w, http.StatusOK, out)
}

type redeemRequest struct {
	Code   string `json:"code"`
	Module string `json:"module"`
}

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	module := model.NormalizeModule(req.Module)
	if strings.TrimSpace(req.Code) == "" || module == "" {
		s.writeError(w, r, domain.ErrInvalidInput)
		return
	}
	u := userFrom(r.Context())
	label := module
	if !s.ent.Catalog().Has(module) {
		label = "unknown"
	}
	sum, err := s.ent.Redeem(r.Context(), u, req.Code, module)
	if err != nil {
		metrics.IncRedemption(label, domain.ReasonCode(err))
		s.writeRedeemError(w, r, err, module)
		return
	}
	metrics.IncRedemption(label, "success")
	name := s.ent.Catalog().DisplayName(module)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": name + " unlocked",
		"user":    newUserView(u, sum),
	})
}

// writeRedeemError names the module in the two rejections where the user
// needs to know which one is meant.
func (s *Server) writeRedeemError(w http.ResponseWriter, r *http.Request, err error, module string) {
	reason := domain.ReasonCode(err)
	name := s.ent.Catalog().DisplayName(module)
	switch reason {
	case domain.ReasonModuleMismatch:
		writeJSON(w, statusFor(reason), errorBody{Error: "this code is not valid for " + name, Reason: reason})
	case domain.ReasonAlreadyGranted:
		writeJSON(w, statusFor(reason), errorBody{Error: name + " is already unlocked", Reason: reason})
	default:
		s.writeError(w, r, err)
	}
}

type checkResponse struct {
	Module        string             `json:"module"`
	ModuleName    string             `json:"module_name"`
	Allowed       bool               `json:"allowed"`
	Reason        model.AccessReason `json:"reason"`
	TrialDaysLeft *int               `json:"trial_days_left"`
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	module := model.NormalizeModule(chi.URLParam(r, "module"))
	d, err := s.ent.Check(r.Context(), userFrom(r.Context()), module)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	metrics.IncAccessCheck(module, string(d.Reason))
	writeJSON(w, http.StatusOK, checkResponse{
		Module:        d.Module,
		ModuleName:    s.ent.Catalog().DisplayName(module),
		Allowed:       d.Allowed,
		Reason:        d.Reason,
		TrialDaysLeft: d.TrialDaysLeft,
	})
}

func (s *Server) handleModulePing(w http.ResponseWriter, r *http.Request) {
	d := decisionFrom(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"module": d.Module,
		"status": "ok",
		"access": d,
	})
}

// ===== Admin =====

type generateRequest struct {
	Module    string     `json:"module"`
	Count     int        `json:"count"`
	MaxUses   int        `json:"max_uses"`
	ExpiresAt *time.Time `json:"expires_at"`
}

type generateResponse struct {
	Module  string   `json:"module"`
	MaxUses int      `json:"max_uses"`
	Codes   []string `json:"codes"`
}

// handleAdminGenerate returns JSON, or the plain text export with ?format=txt.
func (s *Server) handleAdminGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Count == 0 {
		req.Count = 1
	}
	module := model.NormalizeModule(req.Module)
	codes, err := s.issuer.Generate(r.Context(), module, req.Count, req.MaxUses, req.ExpiresAt)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	logging.With(r.Context(), s.log).Info().Str("module", module).Int("count", len(codes)).Msg("admin generated codes")

	if r.URL.Query().Get("format") == "txt" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", "attachment; filename="+module+"_codes.txt")
		w.WriteHeader(http.StatusCreated)
		_ = usecase.WriteCodeList(w, s.ent.Catalog().DisplayName(module), codes, req.MaxUses)
		return
	}
	writeJSON(w, http.StatusCreated, generateResponse{Module: module, MaxUses: req.MaxUses, Codes: codes})
}

func (s *Server) handleAdminListCodes(w http.ResponseWriter, r *http.Request) {
	codes, err := s.issuer.List(r.Context(), model.NormalizeModule(r.URL.Query().Get("module")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if codes == nil {
		codes = []*model.RedemptionCode{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"codes": codes})
}

type revokeRequest struct {
	Module  string `json:"module"`
	Release bool   `json:"release"`
}

func (s *Server) handleAdminRevoke(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, r, domain.ErrInvalidInput)
		return
	}
	var req revokeRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	module := model.NormalizeModule(req.Module)
	codes, err := s.ent.Revoke(r.Context(), id, module, req.Release)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	metrics.AddRevocations(module, len(codes))
	logging.With(r.Context(), s.log).Info().Int64("user_id", id).Str("module", module).
		Int("revoked", len(codes)).Bool("release", req.Release).Msg("admin revoked access")
	writeJSON(w, http.StatusOK, map[string]any{"user_id": id, "revoked_codes": codes})
}

type activeRequest struct {
	Active *bool `json:"active"`
}

func (s *Server) handleAdminSetActive(w http.ResponseWriter, r *http.Request) {
	var req activeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Active == nil {
		s.writeError(w, r, domain.ErrInvalidInput)
		return
	}
	u, err := s.auth.SetActive(r.Context(), chi.URLParam(r, "email"), *req.Active)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": u.ID, "email": u.Email, "is_active": u.IsActive})
}

func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.ent.Stats(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	metrics.SetStats(st)
	writeJSON(w, http.StatusOK, st)
}

package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"macro-weather-access/internal/domain"
	"macro-weather-access/internal/domain/model"
	"macro-weather-access/internal/domain/ports/repository"
	"macro-weather-access/internal/infra/logging"
)

// Compile-time checks
var (
	_ EntitlementUseCase = (*entitlementUC)(nil)
	_ Gate               = (*entitlementUC)(nil)
)

// Gate answers the per-request access question for a module.
type Gate interface {
	Check(ctx context.Context, user *model.User, module string) (*model.AccessDecision, error)
}

// EntitlementUseCase is the only writer of cross-ledger state.
type EntitlementUseCase interface {
	Gate
	EvaluateAccess(ctx context.Context, user *model.User, module string) (*model.AccessDecision, error)
	Summarize(ctx context.Context, user *model.User) (*model.AccessSummary, error)
	Redeem(ctx context.Context, user *model.User, code, module string) (*model.AccessSummary, error)
	// Revoke removes grants (all when module is empty) and returns their codes.
	// With release set each code gets one use back.
	Revoke(ctx context.Context, userID int64, module string, release bool) ([]string, error)
	Stats(ctx context.Context) (*model.Stats, error)
	Catalog() *model.Catalog
}

type entitlementUC struct {
	users   repository.UserLedger
	codes   repository.CodeLedger
	access  repository.AccessLedger
	catalog *model.Catalog
	clock   domain.Clock
	log     *zerolog.Logger

	// mu serializes redeem and revoke as whole units across the code and
	// access ledgers.
	mu sync.Mutex
}

func NewEntitlementUseCase(
	users repository.UserLedger,
	codes repository.CodeLedger,
	access repository.AccessLedger,
	catalog *model.Catalog,
	clock domain.Clock,
	logger *zerolog.Logger,
) *entitlementUC {
	return &entitlementUC{
		users:   users,
		codes:   codes,
		access:  access,
		catalog: catalog,
		clock:   clock,
		log:     logger,
	}
}

func (e *entitlementUC) Catalog() *model.Catalog { return e.catalog }

func (e *entitlementUC) EvaluateAccess(ctx context.Context, user *model.User, module string) (*model.AccessDecision, error) {
	defer logging.TraceDuration(e.log, "EntitlementUC.EvaluateAccess")()
	if user.IsZero() {
		return nil, domain.ErrInvalidInput
	}
	return e.evaluateAt(ctx, user, model.NormalizeModule(module), e.clock.Now())
}

// Check is EvaluateAccess restricted to catalog modules.
func (e *entitlementUC) Check(ctx context.Context, user *model.User, module string) (*model.AccessDecision, error) {
	defer logging.TraceDuration(e.log, "EntitlementUC.Check")()
	if user.IsZero() {
		return nil, domain.ErrInvalidInput
	}
	module = model.NormalizeModule(module)
	if !e.catalog.Has(module) {
		return nil, domain.ErrUnknownModule
	}
	return e.evaluateAt(ctx, user, module, e.clock.Now())
}

// evaluateAt applies trial first, then grants. An active trial opens every
// module regardless of grants.
func (e *entitlementUC) evaluateAt(ctx context.Context, user *model.User, module string, now time.Time) (*model.AccessDecision, error) {
	if user.InTrial(now) {
		days := user.TrialDaysLeft(now)
		return &model.AccessDecision{
			Module:        module,
			Allowed:       true,
			Reason:        model.AccessReasonTrial,
			TrialDaysLeft: &days,
		}, nil
	}

	ok, err := e.access.HasAccess(ctx, user.ID, module)
	if err != nil {
		return nil, err
	}
	if ok {
		return &model.AccessDecision{Module: module, Allowed: true, Reason: model.AccessReasonActivated}, nil
	}

	zero := 0
	return &model.AccessDecision{
		Module:        module,
		Allowed:       false,
		Reason:        model.AccessReasonExpired,
		TrialDaysLeft: &zero,
	}, nil
}

func (e *entitlementUC) Summarize(ctx context.Context, user *model.User) (*model.AccessSummary, error) {
	defer logging.TraceDuration(e.log, "EntitlementUC.Summarize")()
	if user.IsZero() {
		return nil, domain.ErrInvalidInput
	}
	return e.summarizeAt(ctx, user, e.clock.Now())
}

// summarizeAt lists activated modules in catalog order, not grant order.
func (e *entitlementUC) summarizeAt(ctx context.Context, user *model.User, now time.Time) (*model.AccessSummary, error) {
	grants, err := e.access.ListForUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	granted := make(map[string]bool, len(grants))
	for _, g := range grants {
		granted[g.Module] = true
	}

	activated := make([]string, 0, len(granted))
	for _, id := range e.catalog.IDs() {
		if granted[id] {
			activated = append(activated, id)
		}
	}
	return &model.AccessSummary{
		TrialDaysLeft:    user.TrialDaysLeft(now),
		IsTrialActive:    user.InTrial(now),
		ActivatedModules: activated,
	}, nil
}

func (e *entitlementUC) Redeem(ctx context.Context, user *model.User, code, module string) (*model.AccessSummary, error) {
	defer logging.TraceDuration(e.log, "EntitlementUC.Redeem")()
	if user.IsZero() {
		return nil, domain.ErrInvalidInput
	}
	module = model.NormalizeModule(module)
	code = model.NormalizeCode(code)
	log := logging.With(ctx, e.log)

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.catalog.Has(module) {
		return nil, domain.ErrUnknownModule
	}
	rc, err := e.codes.Lookup(ctx, code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidCode
		}
		return nil, err
	}
	if !rc.IsActive {
		return nil, domain.ErrInvalidCode
	}
	if rc.Module != module {
		return nil, domain.ErrModuleMismatch
	}
	if rc.Exhausted() {
		return nil, domain.ErrUseLimitExceeded
	}
	now := e.clock.Now()
	if rc.ExpiredAt(now) {
		return nil, domain.ErrCodeExpired
	}
	has, err := e.access.HasAccess(ctx, user.ID, module)
	if err != nil {
		return nil, err
	}
	if has {
		return nil, domain.ErrAlreadyGranted
	}

	if _, err := e.access.Grant(ctx, user.ID, module, rc.Code); err != nil {
		return nil, err
	}
	if err := e.codes.MarkUsed(ctx, rc.Code); err != nil {
		if _, rbErr := e.access.Revoke(ctx, user.ID, module); rbErr != nil {
			log.Error().Err(rbErr).Int64("user_id", user.ID).Str("module", module).Str("code", rc.Code).
				Msg("rollback of grant failed after mark-used failure; ledgers diverge")
			return nil, errors.Join(err, rbErr)
		}
		log.Warn().Err(err).Int64("user_id", user.ID).Str("module", module).Msg("redeem rolled back")
		return nil, err
	}

	log.Info().Int64("user_id", user.ID).Str("module", module).Str("code", rc.Code).Msg("code redeemed")
	return e.summarizeAt(ctx, user, now)
}

func (e *entitlementUC) Revoke(ctx context.Context, userID int64, module string, release bool) ([]string, error) {
	defer logging.TraceDuration(e.log, "EntitlementUC.Revoke")()
	module = model.NormalizeModule(module)
	if module != "" && !e.catalog.Has(module) {
		return nil, domain.ErrUnknownModule
	}
	if _, err := e.users.FindByID(ctx, userID); err != nil {
		return nil, err
	}
	log := logging.With(ctx, e.log)

	e.mu.Lock()
	defer e.mu.Unlock()

	codes, err := e.access.Revoke(ctx, userID, module)
	if err != nil {
		return nil, err
	}
	if release {
		for _, c := range codes {
			if err := e.codes.ResetUses(ctx, c); err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					log.Warn().Str("code", c).Msg("revoked grant refers to an unknown code")
					continue
				}
				return codes, err
			}
		}
	}
	log.Info().Int64("user_id", userID).Str("module", module).Strs("codes", codes).Bool("release", release).Msg("access revoked")
	return codes, nil
}

func (e *entitlementUC) Stats(ctx context.Context) (*model.Stats, error) {
	defer logging.TraceDuration(e.log, "EntitlementUC.Stats")()
	now := e.clock.Now()

	users, err := e.users.List(ctx)
	if err != nil {
		return nil, err
	}
	grants, err := e.access.CountByModule(ctx)
	if err != nil {
		return nil, err
	}
	codes, err := e.codes.All(ctx)
	if err != nil {
		return nil, err
	}

	st := &model.Stats{
		Users:          len(users),
		GrantsByModule: make(map[string]int),
		CodesByModule:  make(map[string]model.CodeStats),
	}
	for _, u := range users {
		if u.InTrial(now) {
			st.UsersInTrial++
		}
	}
	for _, id := range e.catalog.IDs() {
		st.GrantsByModule[id] = grants[id]
		st.CodesByModule[id] = model.CodeStats{}
	}
	for _, c := range codes {
		cs := st.CodesByModule[c.Module]
		cs.Total++
		if c.Exhausted() {
			cs.Exhausted++
		}
		if c.CurrentUses > 0 {
			cs.Redeemed++
		}
		st.CodesByModule[c.Module] = cs
	}
	return st, nil
}

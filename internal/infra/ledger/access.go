package ledger

import (
	"context"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"macro-weather-access/internal/domain"
	"macro-weather-access/internal/domain/model"
	"macro-weather-access/internal/domain/ports/repository"
)

var _ repository.AccessLedger = (*AccessLedger)(nil)

// AccessLedger stores each user's grants in insertion order. Grant slices are
// replaced, never appended to in place, so readers holding an old slice are safe.
type AccessLedger struct {
	mu     sync.RWMutex
	store  repository.DocumentStore
	clock  domain.Clock
	log    *zerolog.Logger
	grants map[int64][]model.AccessGrant
}

func OpenAccessLedger(ctx context.Context, store repository.DocumentStore, clock domain.Clock, logger *zerolog.Logger) (*AccessLedger, error) {
	doc := map[string][]model.AccessGrant{}
	if _, err := loadDocument(ctx, store, AccessCollection, &doc); err != nil {
		return nil, err
	}

	grants := make(map[int64][]model.AccessGrant, len(doc))
	for key, list := range doc {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			logger.Warn().Str("key", key).Msg("skipping access entry with non-numeric user id")
			continue
		}
		out := make([]model.AccessGrant, 0, len(list))
		for _, g := range list {
			g.UserID = id
			g.Module = model.NormalizeModule(g.Module)
			g.ViaCode = model.NormalizeCode(g.ViaCode)
			g.GrantedAt = g.GrantedAt.UTC()
			out = append(out, g)
		}
		if len(out) > 0 {
			grants[id] = out
		}
	}
	logger.Debug().Int("users", len(grants)).Msg("access ledger loaded")
	return &AccessLedger{store: store, clock: clock, log: logger, grants: grants}, nil
}

func (l *AccessLedger) Grant(ctx context.Context, userID int64, module, viaCode string) (*model.AccessGrant, error) {
	module = model.NormalizeModule(module)
	if userID <= 0 || module == "" {
		return nil, domain.ErrInvalidInput
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	cur := l.grants[userID]
	for _, g := range cur {
		if g.Module == module {
			return nil, domain.ErrAlreadyGranted
		}
	}
	g := model.AccessGrant{
		UserID:    userID,
		Module:    module,
		ViaCode:   model.NormalizeCode(viaCode),
		GrantedAt: l.clock.Now().UTC(),
	}
	list := make([]model.AccessGrant, len(cur), len(cur)+1)
	copy(list, cur)
	list = append(list, g)

	next := l.cloneGrants()
	next[userID] = list
	if err := l.save(ctx, next); err != nil {
		l.log.Error().Err(err).Int64("user_id", userID).Str("module", module).Msg("persist grant failed")
		return nil, err
	}
	l.grants = next
	return &g, nil
}

func (l *AccessLedger) ListForUser(_ context.Context, userID int64) ([]model.AccessGrant, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	cur := l.grants[userID]
	out := make([]model.AccessGrant, len(cur))
	copy(out, cur)
	return out, nil
}

func (l *AccessLedger) HasAccess(_ context.Context, userID int64, module string) (bool, error) {
	module = model.NormalizeModule(module)

	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, g := range l.grants[userID] {
		if g.Module == module {
			return true, nil
		}
	}
	return false, nil
}

func (l *AccessLedger) Revoke(ctx context.Context, userID int64, module string) ([]string, error) {
	module = model.NormalizeModule(module)

	l.mu.Lock()
	defer l.mu.Unlock()

	cur := l.grants[userID]
	if len(cur) == 0 {
		return []string{}, nil
	}
	removed := make([]string, 0, len(cur))
	kept := make([]model.AccessGrant, 0, len(cur))
	for _, g := range cur {
		if module == "" || g.Module == module {
			removed = append(removed, g.ViaCode)
			continue
		}
		kept = append(kept, g)
	}
	if len(removed) == 0 {
		return removed, nil
	}

	next := l.cloneGrants()
	if len(kept) == 0 {
		delete(next, userID)
	} else {
		next[userID] = kept
	}
	if err := l.save(ctx, next); err != nil {
		l.log.Error().Err(err).Int64("user_id", userID).Str("module", module).Msg("persist revoke failed")
		return nil, err
	}
	l.grants = next
	return removed, nil
}

func (l *AccessLedger) CountByModule(_ context.Context) (map[string]int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]int)
	for _, list := range l.grants {
		for _, g := range list {
			out[g.Module]++
		}
	}
	return out, nil
}

func (l *AccessLedger) save(ctx context.Context, next map[int64][]model.AccessGrant) error {
	doc := make(map[string][]model.AccessGrant, len(next))
	for id, list := range next {
		doc[strconv.FormatInt(id, 10)] = list
	}
	return saveDocument(ctx, l.store, AccessCollection, doc)
}

// cloneGrants must be called with mu held.
func (l *AccessLedger) cloneGrants() map[int64][]model.AccessGrant {
	next := make(map[int64][]model.AccessGrant, len(l.grants)+1)
	for k, v := range l.grants {
		next[k] = v
	}
	return next
}

package ledger

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"macro-weather-access/internal/domain"
	"macro-weather-access/internal/domain/model"
	"macro-weather-access/internal/domain/ports/repository"
)

var _ repository.CodeLedger = (*CodeLedger)(nil)

// CodeLedger stores redemption codes keyed by their uppercase form.
type CodeLedger struct {
	mu    sync.RWMutex
	store repository.DocumentStore
	clock domain.Clock
	log   *zerolog.Logger
	codes map[string]*model.RedemptionCode
}

func OpenCodeLedger(ctx context.Context, store repository.DocumentStore, clock domain.Clock, logger *zerolog.Logger) (*CodeLedger, error) {
	doc := map[string]*model.RedemptionCode{}
	if _, err := loadDocument(ctx, store, CodesCollection, &doc); err != nil {
		return nil, err
	}

	codes := make(map[string]*model.RedemptionCode, len(doc))
	for key, c := range doc {
		if c == nil {
			continue
		}
		c.Code = model.NormalizeCode(key)
		c.Module = model.NormalizeModule(c.Module)
		c.CreatedAt = c.CreatedAt.UTC()
		if c.ExpiresAt != nil {
			t := c.ExpiresAt.UTC()
			c.ExpiresAt = &t
		}
		codes[c.Code] = c
	}
	logger.Debug().Int("codes", len(codes)).Msg("code ledger loaded")
	return &CodeLedger{store: store, clock: clock, log: logger, codes: codes}, nil
}

func (l *CodeLedger) Lookup(_ context.Context, code string) (*model.RedemptionCode, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	c, ok := l.codes[model.NormalizeCode(code)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyCode(c), nil
}

func (l *CodeLedger) CreateBatch(ctx context.Context, entries []model.CodeSpec) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	for _, e := range entries {
		if model.NormalizeCode(e.Code) == "" || strings.TrimSpace(e.Module) == "" || e.MaxUses < 0 {
			return 0, domain.ErrInvalidInput
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now().UTC()
	next := l.cloneCodes(len(entries))
	for _, e := range entries {
		key := model.NormalizeCode(e.Code)
		c := &model.RedemptionCode{
			Code:      key,
			Module:    model.NormalizeModule(e.Module),
			MaxUses:   e.MaxUses,
			IsActive:  true,
			CreatedAt: now,
		}
		if e.ExpiresAt != nil {
			t := e.ExpiresAt.UTC()
			c.ExpiresAt = &t
		}
		if prev, ok := next[key]; ok {
			c.CurrentUses = prev.CurrentUses
			c.CreatedAt = prev.CreatedAt
		}
		next[key] = c
	}

	if err := saveDocument(ctx, l.store, CodesCollection, next); err != nil {
		l.log.Error().Err(err).Int("entries", len(entries)).Msg("persist code batch failed")
		return 0, err
	}
	l.codes = next
	return len(entries), nil
}

func (l *CodeLedger) MarkUsed(ctx context.Context, code string) error {
	return l.adjustUses(ctx, code, 1)
}

func (l *CodeLedger) ResetUses(ctx context.Context, code string) error {
	return l.adjustUses(ctx, code, -1)
}

func (l *CodeLedger) adjustUses(ctx context.Context, code string, delta int) error {
	key := model.NormalizeCode(code)

	l.mu.Lock()
	defer l.mu.Unlock()

	cur, ok := l.codes[key]
	if !ok {
		return domain.ErrNotFound
	}
	updated := copyCode(cur)
	updated.CurrentUses += delta
	if updated.CurrentUses < 0 {
		updated.CurrentUses = 0
	}

	next := l.cloneCodes(0)
	next[key] = updated
	if err := saveDocument(ctx, l.store, CodesCollection, next); err != nil {
		l.log.Error().Err(err).Str("code", key).Int("delta", delta).Msg("persist code uses failed")
		return err
	}
	l.codes = next
	return nil
}

func (l *CodeLedger) ListByModule(_ context.Context, module string) ([]*model.RedemptionCode, error) {
	module = model.NormalizeModule(module)
	return l.collect(func(c *model.RedemptionCode) bool { return c.Module == module }), nil
}

func (l *CodeLedger) All(_ context.Context) ([]*model.RedemptionCode, error) {
	return l.collect(func(*model.RedemptionCode) bool { return true }), nil
}

func (l *CodeLedger) collect(keep func(*model.RedemptionCode) bool) []*model.RedemptionCode {
	l.mu.RLock()
	out := make([]*model.RedemptionCode, 0, len(l.codes))
	for _, c := range l.codes {
		if keep(c) {
			out = append(out, copyCode(c))
		}
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// cloneCodes must be called with mu held.
func (l *CodeLedger) cloneCodes(extra int) map[string]*model.RedemptionCode {
	next := make(map[string]*model.RedemptionCode, len(l.codes)+extra)
	for k, v := range l.codes {
		next[k] = v
	}
	return next
}

func copyCode(c *model.RedemptionCode) *model.RedemptionCode {
	cp := *c
	if c.ExpiresAt != nil {
		t := *c.ExpiresAt
		cp.ExpiresAt = &t
	}
	return &cp
}

package ledger

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"macro-weather-access/internal/domain"
	"macro-weather-access/internal/domain/model"
	"macro-weather-access/internal/domain/ports/repository"
)

var _ repository.UserLedger = (*UserLedger)(nil)

type usersDoc struct {
	LastID int64                  `json:"last_id"`
	Users  map[string]*model.User `json:"users"`
}

// UserLedger stores users keyed by normalized email. Records in the map are
// never mutated in place; updates replace the pointer.
type UserLedger struct {
	mu        sync.RWMutex
	store     repository.DocumentStore
	clock     domain.Clock
	trialDays int
	log       *zerolog.Logger

	lastID  int64
	byEmail map[string]*model.User
	byID    map[int64]string
}

func OpenUserLedger(ctx context.Context, store repository.DocumentStore, clock domain.Clock, trialDays int, logger *zerolog.Logger) (*UserLedger, error) {
	var doc usersDoc
	if _, err := loadDocument(ctx, store, UsersCollection, &doc); err != nil {
		return nil, err
	}

	l := &UserLedger{
		store:     store,
		clock:     clock,
		trialDays: trialDays,
		log:       logger,
		lastID:    doc.LastID,
		byEmail:   make(map[string]*model.User, len(doc.Users)),
		byID:      make(map[int64]string, len(doc.Users)),
	}
	for key, u := range doc.Users {
		if u == nil {
			continue
		}
		email := model.NormalizeEmail(u.Email)
		if email == "" {
			email = model.NormalizeEmail(key)
		}
		u.Email = email
		u.CreatedAt = u.CreatedAt.UTC()
		u.TrialExpiresAt = u.TrialExpiresAt.UTC()
		l.byEmail[email] = u
		l.byID[u.ID] = email
		if u.ID > l.lastID {
			l.lastID = u.ID
		}
	}
	logger.Debug().Int("users", len(l.byEmail)).Int64("last_id", l.lastID).Msg("user ledger loaded")
	return l, nil
}

func (l *UserLedger) Create(ctx context.Context, email, passwordHash string) (*model.User, error) {
	email = model.NormalizeEmail(email)

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.byEmail[email]; ok {
		return nil, domain.ErrAlreadyExists
	}
	id := l.lastID + 1
	u, err := model.NewUser(id, email, passwordHash, l.clock.Now(), l.trialDays)
	if err != nil {
		return nil, err
	}

	next := l.cloneUsers()
	next[email] = u
	if err := saveDocument(ctx, l.store, UsersCollection, usersDoc{LastID: id, Users: next}); err != nil {
		l.log.Error().Err(err).Int64("user_id", id).Msg("persist new user failed")
		return nil, err
	}

	l.byEmail = next
	l.byID[id] = email
	l.lastID = id
	cp := *u
	return &cp, nil
}

func (l *UserLedger) FindByEmail(_ context.Context, email string) (*model.User, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	u, ok := l.byEmail[model.NormalizeEmail(email)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (l *UserLedger) FindByID(_ context.Context, id int64) (*model.User, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	email, ok := l.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *l.byEmail[email]
	return &cp, nil
}

func (l *UserLedger) Update(ctx context.Context, email string, upd model.UserUpdate) (*model.User, error) {
	email = model.NormalizeEmail(email)

	l.mu.Lock()
	defer l.mu.Unlock()

	cur, ok := l.byEmail[email]
	if !ok {
		return nil, domain.ErrNotFound
	}
	updated := *cur
	updated.Apply(upd)

	next := l.cloneUsers()
	next[email] = &updated
	if err := saveDocument(ctx, l.store, UsersCollection, usersDoc{LastID: l.lastID, Users: next}); err != nil {
		l.log.Error().Err(err).Int64("user_id", cur.ID).Msg("persist user update failed")
		return nil, err
	}
	l.byEmail = next
	cp := updated
	return &cp, nil
}

func (l *UserLedger) Count(_ context.Context) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.byEmail), nil
}

func (l *UserLedger) List(_ context.Context) ([]*model.User, error) {
	l.mu.RLock()
	out := make([]*model.User, 0, len(l.byEmail))
	for _, u := range l.byEmail {
		cp := *u
		out = append(out, &cp)
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// cloneUsers must be called with mu held.
func (l *UserLedger) cloneUsers() map[string]*model.User {
	next := make(map[string]*model.User, len(l.byEmail)+1)
	for k, v := range l.byEmail {
		next[k] = v
	}
	return next
}

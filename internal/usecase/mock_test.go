//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"macro-weather-access/internal/domain"
	"macro-weather-access/internal/domain/model"
	"macro-weather-access/internal/domain/ports/repository"
	"macro-weather-access/internal/infra/ledger"
	"macro-weather-access/internal/infra/store/memory"
)

var testStart = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func newTestCatalog() *model.Catalog {
	return model.NewCatalog([]model.Module{
		{ID: "nasdaq", Name: "Nasdaq", CodePrefix: "NAS"},
		{ID: "sp500", Name: "S&P 500", CodePrefix: "SP5"},
		{ID: "gold", Name: "Gold", CodePrefix: "GLD"},
	})
}

// fixture wires real ledgers over in-memory document stores.
type fixture struct {
	clock       *domain.ManualClock
	users       *ledger.UserLedger
	codes       *ledger.CodeLedger
	access      *ledger.AccessLedger
	usersStore  *memory.DocumentStore
	codesStore  *memory.DocumentStore
	accessStore *memory.DocumentStore
	catalog     *model.Catalog
	log         *zerolog.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{
		clock:       domain.NewManualClock(testStart),
		usersStore:  memory.NewDocumentStore(),
		codesStore:  memory.NewDocumentStore(),
		accessStore: memory.NewDocumentStore(),
		catalog:     newTestCatalog(),
		log:         newTestLogger(),
	}
	var err error
	if f.users, err = ledger.OpenUserLedger(ctx, f.usersStore, f.clock, 7, f.log); err != nil {
		t.Fatalf("OpenUserLedger: %v", err)
	}
	if f.codes, err = ledger.OpenCodeLedger(ctx, f.codesStore, f.clock, f.log); err != nil {
		t.Fatalf("OpenCodeLedger: %v", err)
	}
	if f.access, err = ledger.OpenAccessLedger(ctx, f.accessStore, f.clock, f.log); err != nil {
		t.Fatalf("OpenAccessLedger: %v", err)
	}
	return f
}

func (f *fixture) mustUser(t *testing.T, email string) *model.User {
	t.Helper()
	u, err := f.users.Create(context.Background(), email, "hash:"+email)
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u
}

func (f *fixture) mustCodes(t *testing.T, specs ...model.CodeSpec) {
	t.Helper()
	if _, err := f.codes.CreateBatch(context.Background(), specs); err != nil {
		t.Fatalf("create codes: %v", err)
	}
}

func (f *fixture) uses(t *testing.T, code string) int {
	t.Helper()
	c, err := f.codes.Lookup(context.Background(), code)
	if err != nil {
		t.Fatalf("lookup %s: %v", code, err)
	}
	return c.CurrentUses
}

// ---- Mock CredentialHasher ----

type fakeHasher struct {
	hashErr  error
	verifies []string // hashes passed to Verify
}

func (h *fakeHasher) Hash(raw string) (string, error) {
	if h.hashErr != nil {
		return "", h.hashErr
	}
	return "hashed:" + raw, nil
}

func (h *fakeHasher) Verify(hash, raw string) error {
	h.verifies = append(h.verifies, hash)
	if !strings.HasPrefix(hash, "hashed:") || strings.TrimPrefix(hash, "hashed:") != raw {
		return domain.ErrBadCredential
	}
	return nil
}

// ---- CodeLedger wrapper with injectable MarkUsed failure ----

type flakyCodes struct {
	repository.CodeLedger
	markUsedErr error
}

func (f *flakyCodes) MarkUsed(ctx context.Context, code string) error {
	if f.markUsedErr != nil {
		return f.markUsedErr
	}
	return f.CodeLedger.MarkUsed(ctx, code)
}

// ---- AccessLedger wrapper with injectable Revoke failure ----

type flakyAccess struct {
	repository.AccessLedger
	revokeErr error
}

func (f *flakyAccess) Revoke(ctx context.Context, userID int64, module string) ([]string, error) {
	if f.revokeErr != nil {
		return nil, f.revokeErr
	}
	return f.AccessLedger.Revoke(ctx, userID, module)
}

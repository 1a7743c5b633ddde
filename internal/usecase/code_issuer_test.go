//go:build !integration

package usecase_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"macro-weather-access/internal/domain"
	"macro-weather-access/internal/usecase"
)

func TestCodeIssuer_Generate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	issuer := usecase.NewCodeIssuer(f.codes, f.catalog, f.log)

	codes, err := issuer.Generate(ctx, "Gold", 50, 1, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(codes) != 50 {
		t.Fatalf("got %d codes, want 50", len(codes))
	}
	seen := map[string]bool{}
	for _, c := range codes {
		if len(c) != 12 || !strings.HasPrefix(c, "GLD-") {
			t.Errorf("malformed code %q", c)
		}
		if strings.ContainsAny(c[4:], "O0I1L") {
			t.Errorf("code %q uses an ambiguous character", c)
		}
		if seen[c] {
			t.Errorf("duplicate code %q", c)
		}
		seen[c] = true

		rc, err := f.codes.Lookup(ctx, strings.ToLower(c))
		if err != nil {
			t.Fatalf("Lookup(%s): %v", c, err)
		}
		if rc.Module != "gold" || rc.MaxUses != 1 || rc.CurrentUses != 0 || !rc.IsActive {
			t.Errorf("stored code %+v", rc)
		}
	}

	list, err := issuer.List(ctx, "gold")
	if err != nil || len(list) != 50 {
		t.Errorf("List(gold) = %d, %v", len(list), err)
	}
	all, err := issuer.List(ctx, "")
	if err != nil || len(all) != 50 {
		t.Errorf("List(all) = %d, %v", len(all), err)
	}
}

func TestCodeIssuer_GenerateWithExpiry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	issuer := usecase.NewCodeIssuer(f.codes, f.catalog, f.log)
	exp := testStart.Add(48 * time.Hour)

	codes, err := issuer.Generate(ctx, "sp500", 1, 3, &exp)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	rc, err := f.codes.Lookup(ctx, codes[0])
	if err != nil {
		t.Fatal(err)
	}
	if rc.ExpiresAt == nil || !rc.ExpiresAt.Equal(exp) || rc.MaxUses != 3 {
		t.Errorf("stored code %+v", rc)
	}
	if !strings.HasPrefix(codes[0], "SP5-") {
		t.Errorf("code %q should use the SP5 prefix", codes[0])
	}
}

func TestCodeIssuer_Rejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	issuer := usecase.NewCodeIssuer(f.codes, f.catalog, f.log)

	if _, err := issuer.Generate(ctx, "oil", 1, 1, nil); !errors.Is(err, domain.ErrUnknownModule) {
		t.Errorf("expected ErrUnknownModule, got %v", err)
	}
	for _, n := range []int{0, -1, usecase.MaxBatch + 1} {
		if _, err := issuer.Generate(ctx, "gold", n, 1, nil); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("count %d: expected ErrInvalidInput, got %v", n, err)
		}
	}
	if _, err := issuer.Generate(ctx, "gold", 1, -1, nil); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("negative max uses: expected ErrInvalidInput, got %v", err)
	}
	if _, err := issuer.List(ctx, "oil"); !errors.Is(err, domain.ErrUnknownModule) {
		t.Errorf("expected ErrUnknownModule, got %v", err)
	}

	f.codesStore.FailSaves(errors.New("disk full"))
	if _, err := issuer.Generate(ctx, "gold", 2, 1, nil); !errors.Is(err, domain.ErrStorageIO) {
		t.Errorf("expected ErrStorageIO, got %v", err)
	}
}

func TestWriteCodeList(t *testing.T) {
	var buf bytes.Buffer
	if err := usecase.WriteCodeList(&buf, "Gold", []string{"GLD-AAAAAAAA", "GLD-BBBBBBBB"}, 1); err != nil {
		t.Fatalf("WriteCodeList: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "# Gold redemption codes: 2\n# each code can be used 1 time(s)\n") {
		t.Errorf("unexpected header:\n%s", out)
	}
	if !strings.HasSuffix(out, "\n\nGLD-AAAAAAAA\nGLD-BBBBBBBB\n") {
		t.Errorf("unexpected body:\n%s", out)
	}

	buf.Reset()
	_ = usecase.WriteCodeList(&buf, "Gold", nil, 0)
	if !strings.Contains(buf.String(), "any number of times") {
		t.Errorf("unlimited header missing:\n%s", buf.String())
	}
}

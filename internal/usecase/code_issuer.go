package usecase

import (
	"bufio"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"macro-weather-access/internal/domain"
	"macro-weather-access/internal/domain/model"
	"macro-weather-access/internal/domain/ports/repository"
	"macro-weather-access/internal/infra/logging"
)

const (
	// codeAlphabet avoids look-alikes (O/0, I/1, L).
	codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	codeLength   = 12
	// MaxBatch bounds one generation call.
	MaxBatch = 10000
)

// Compile-time check
var _ CodeIssuer = (*codeIssuer)(nil)

// CodeIssuer mints redemption codes for catalog modules.
type CodeIssuer interface {
	// Generate creates count fresh codes, unique across the ledger and the batch.
	Generate(ctx context.Context, module string, count, maxUses int, expiresAt *time.Time) ([]string, error)
	List(ctx context.Context, module string) ([]*model.RedemptionCode, error)
}

type codeIssuer struct {
	codes   repository.CodeLedger
	catalog *model.Catalog
	random  io.Reader
	log     *zerolog.Logger
}

func NewCodeIssuer(codes repository.CodeLedger, catalog *model.Catalog, logger *zerolog.Logger) *codeIssuer {
	return &codeIssuer{codes: codes, catalog: catalog, random: rand.Reader, log: logger}
}

func (c *codeIssuer) Generate(ctx context.Context, module string, count, maxUses int, expiresAt *time.Time) ([]string, error) {
	defer logging.TraceDuration(c.log, "CodeIssuer.Generate")()

	module = model.NormalizeModule(module)
	m, ok := c.catalog.Get(module)
	if !ok {
		return nil, domain.ErrUnknownModule
	}
	if count <= 0 || count > MaxBatch || maxUses < 0 {
		return nil, fmt.Errorf("%w: count must be 1..%d and max uses >= 0", domain.ErrInvalidInput, MaxBatch)
	}

	seen := make(map[string]struct{}, count)
	specs := make([]model.CodeSpec, 0, count)
	for len(specs) < count {
		code, err := generateCode(c.random, m.CodePrefix)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[code]; dup {
			continue
		}
		if _, err := c.codes.Lookup(ctx, code); err == nil {
			continue
		} else if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		seen[code] = struct{}{}
		specs = append(specs, model.CodeSpec{Code: code, Module: module, MaxUses: maxUses, ExpiresAt: expiresAt})
	}

	if _, err := c.codes.CreateBatch(ctx, specs); err != nil {
		return nil, err
	}
	out := make([]string, len(specs))
	for i, s := range specs {
		out[i] = s.Code
	}
	logging.With(ctx, c.log).Info().Str("module", module).Int("count", count).Int("max_uses", maxUses).Msg("codes generated")
	return out, nil
}

func (c *codeIssuer) List(ctx context.Context, module string) ([]*model.RedemptionCode, error) {
	defer logging.TraceDuration(c.log, "CodeIssuer.List")()
	if module == "" {
		return c.codes.All(ctx)
	}
	module = model.NormalizeModule(module)
	if !c.catalog.Has(module) {
		return nil, domain.ErrUnknownModule
	}
	return c.codes.ListByModule(ctx, module)
}

// generateCode returns PREFIX-XXXX... padded to codeLength characters.
func generateCode(r io.Reader, prefix string) (string, error) {
	n := codeLength - len(prefix) - 1
	if n < 4 {
		n = 4
	}
	// Reject bytes past the largest multiple of the alphabet size to keep the
	// distribution uniform.
	limit := byte(256 - 256%len(codeAlphabet))
	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= limit || len(out) == n {
				continue
			}
			out = append(out, codeAlphabet[int(b)%len(codeAlphabet)])
		}
	}
	if prefix == "" {
		return string(out), nil
	}
	return prefix + "-" + string(out), nil
}

// WriteCodeList writes codes one per line under a commented header.
func WriteCodeList(w io.Writer, moduleName string, codes []string, maxUses int) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# %s redemption codes: %d\n", moduleName, len(codes))
	if maxUses == 0 {
		fmt.Fprintln(bw, "# each code can be used any number of times")
	} else {
		fmt.Fprintf(bw, "# each code can be used %d time(s)\n", maxUses)
	}
	fmt.Fprintf(bw, "# %s\n\n", strings.Repeat("=", 50))
	for _, code := range codes {
		fmt.Fprintln(bw, code)
	}
	return bw.Flush()
}

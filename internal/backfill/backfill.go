// Package backfill seeds the recipient lookup staging table with one
// representative record for every recipient that only ever appeared without a
// business identifier.
package backfill

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dvloznov/covid-award-summary/internal/domain"
	"github.com/dvloznov/covid-award-summary/internal/logger"
	"github.com/dvloznov/covid-award-summary/internal/recipient"
	"github.com/dvloznov/covid-award-summary/internal/store"
)

// Result summarises one backfill run.
type Result struct {
	Candidates int `json:"candidates"`
	Selected   int `json:"selected"`
	Inserted   int `json:"inserted"`
	Skipped    int `json:"skipped"`
}

// Run selects the best record per recipient hash and inserts the ones that
// are missing. Running it again over the same data inserts nothing.
func Run(ctx context.Context, src store.BackfillSource, w store.LookupWriter) (Result, error) {
	log := logger.FromContext(ctx)

	candidates, err := src.ListUnidentifiedTransactions(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("Run: listing candidates: %w", err)
	}

	rows := SelectBest(candidates)
	inserted, err := w.InsertLookupsIfAbsent(ctx, rows)
	if err != nil {
		return Result{}, fmt.Errorf("Run: inserting lookups: %w", err)
	}

	res := Result{
		Candidates: len(candidates),
		Selected:   len(rows),
		Inserted:   inserted,
		Skipped:    len(rows) - inserted,
	}
	log.Info().
		Int("candidates", res.Candidates).
		Int("selected", res.Selected).
		Int("inserted", res.Inserted).
		Int("skipped", res.Skipped).
		Msg("Recipient lookup backfill finished")
	return res, nil
}

// SelectBest groups candidates by fallback hash and keeps one per hash:
// latest action date, then procurement before assistance, then lowest
// transaction id. Candidates with a business identifier are ignored. The
// result is ordered by recipient hash.
func SelectBest(candidates []domain.TransactionRecipient) []domain.RecipientLookup {
	best := make(map[string]domain.TransactionRecipient)
	for _, c := range candidates {
		if strings.TrimSpace(c.BusinessIdentifier) != "" {
			continue
		}
		hash := recipient.Hash(recipient.FieldsOf(&c))
		cur, ok := best[hash]
		if !ok || Better(c, cur) {
			best[hash] = c
		}
	}

	hashes := make([]string, 0, len(best))
	for h := range best {
		hashes = append(hashes, h)
	}
	sort.Strings(hashes)

	rows := make([]domain.RecipientLookup, 0, len(hashes))
	for _, h := range hashes {
		rows = append(rows, toLookup(h, best[h]))
	}
	return rows
}

// Better reports whether a ranks ahead of b.
func Better(a, b domain.TransactionRecipient) bool {
	if !a.ActionDate.Equal(b.ActionDate) {
		return a.ActionDate.After(b.ActionDate)
	}
	if ra, rb := sourceRank(a.Source), sourceRank(b.Source); ra != rb {
		return ra < rb
	}
	return a.TransactionID < b.TransactionID
}

func sourceRank(s domain.TransactionSource) int {
	if s == domain.SourceProcurement {
		return 0
	}
	return 1
}

func toLookup(hash string, t domain.TransactionRecipient) domain.RecipientLookup {
	return domain.RecipientLookup{
		RecipientHash:            hash,
		LegalBusinessName:        strings.ToUpper(t.LegalName),
		UEI:                      t.UEI,
		Source:                   string(t.Source),
		ParentBusinessIdentifier: t.ParentBusinessIdentifier,
		ParentUEI:                t.ParentUEI,
		ParentLegalBusinessName:  t.ParentLegalName,
		AddressLine1:             t.AddressLine1,
		AddressLine2:             t.AddressLine2,
		City:                     t.City,
		State:                    t.State,
		Zip5:                     t.Zip5,
		Zip4:                     t.Zip4,
		CongressionalDistrict:    t.CongressionalDistrict,
		CountryCode:              t.CountryCode,
	}
}

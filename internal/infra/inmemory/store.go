// Package inmemory is a process-local implementation of the summary store,
// used by tests, local runs and the memory backend.
package inmemory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dvloznov/covid-award-summary/internal/domain"
	"github.com/dvloznov/covid-award-summary/internal/store"
)

// Store keeps source tables, the published summary and the lookup backfill
// table in memory. It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	source  domain.Snapshot
	lookups map[string]domain.RecipientLookup

	summary   atomic.Pointer[[]domain.AwardFinancialSummary]
	published atomic.Int64

	// Now supplies the snapshot instant when the source data carries no AsOf.
	Now func() time.Time
}

// NewStore creates a store seeded with src. A nil src gives empty tables.
func NewStore(src *domain.Snapshot) *Store {
	s := &Store{
		lookups: make(map[string]domain.RecipientLookup),
		Now:     time.Now,
	}
	if src != nil {
		s.source = cloneSnapshot(src)
	}
	return s
}

// ReadSnapshot implements store.SourceReader. The returned snapshot is a
// copy; later writes to the store do not affect it.
func (s *Store) ReadSnapshot(ctx context.Context) (*domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("ReadSnapshot: %w", err)
	}

	s.mu.RLock()
	snap := cloneSnapshot(&s.source)
	s.mu.RUnlock()

	if snap.AsOf.IsZero() {
		snap.AsOf = s.Now().UTC()
	}
	return &snap, nil
}

// ReplaceSummary implements store.SummaryPublisher with a single pointer swap.
func (s *Store) ReplaceSummary(ctx context.Context, rows []domain.AwardFinancialSummary) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("ReplaceSummary: %w", err)
	}
	next := make([]domain.AwardFinancialSummary, len(rows))
	copy(next, rows)
	s.summary.Store(&next)
	s.published.Add(1)
	return nil
}

// Summary returns the currently published rows, or nil before the first
// publish.
func (s *Store) Summary() []domain.AwardFinancialSummary {
	p := s.summary.Load()
	if p == nil {
		return nil
	}
	out := make([]domain.AwardFinancialSummary, len(*p))
	copy(out, *p)
	return out
}

// Publishes reports how many times ReplaceSummary succeeded.
func (s *Store) Publishes() int64 {
	return s.published.Load()
}

// ListUnidentifiedTransactions implements store.BackfillSource.
func (s *Store) ListUnidentifiedTransactions(ctx context.Context) ([]domain.TransactionRecipient, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("ListUnidentifiedTransactions: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.TransactionRecipient
	for _, set := range [][]domain.TransactionRecipient{s.source.ProcurementTransactions, s.source.AssistanceTransactions} {
		for _, t := range set {
			if strings.TrimSpace(t.BusinessIdentifier) == "" {
				out = append(out, t)
			}
		}
	}
	return out, nil
}

// InsertLookupsIfAbsent implements store.LookupWriter. The whole batch is
// applied under one lock, so each hash is inserted at most once even with
// concurrent callers.
func (s *Store) InsertLookupsIfAbsent(ctx context.Context, rows []domain.RecipientLookup) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("InsertLookupsIfAbsent: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, r := range rows {
		if r.RecipientHash == "" {
			return inserted, fmt.Errorf("InsertLookupsIfAbsent: recipient hash is required")
		}
		if _, exists := s.lookups[r.RecipientHash]; exists {
			continue
		}
		s.lookups[r.RecipientHash] = r
		inserted++
	}
	return inserted, nil
}

// BackfillLookups returns the backfill table ordered by recipient hash.
func (s *Store) BackfillLookups() []domain.RecipientLookup {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.RecipientLookup, 0, len(s.lookups))
	for _, r := range s.lookups {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecipientHash < out[j].RecipientHash })
	return out
}

// Close implements store.Store.
func (s *Store) Close() error {
	return nil
}

func cloneSnapshot(src *domain.Snapshot) domain.Snapshot {
	return domain.Snapshot{
		AsOf:                    src.AsOf,
		Awards:                  append([]domain.Award(nil), src.Awards...),
		SubRecords:              append([]domain.FinancialSubRecord(nil), src.SubRecords...),
		FundCodes:               append([]domain.DisasterFundCode(nil), src.FundCodes...),
		Submissions:             append([]domain.Submission(nil), src.Submissions...),
		ProcurementTransactions: append([]domain.TransactionRecipient(nil), src.ProcurementTransactions...),
		AssistanceTransactions:  append([]domain.TransactionRecipient(nil), src.AssistanceTransactions...),
		RecipientLookups:        append([]domain.RecipientLookup(nil), src.RecipientLookups...),
	}
}

// Ensure Store implements the full store contract.
var _ store.Store = (*Store)(nil)

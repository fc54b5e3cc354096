// Package store declares the storage contracts of the summary pipelines. The
// BigQuery, PostgreSQL and in-memory adapters under internal/infra implement
// them.
package store

import (
	"context"

	"github.com/dvloznov/covid-award-summary/internal/domain"
)

// SourceReader reads every source table as one consistent snapshot.
type SourceReader interface {
	// ReadSnapshot returns a point-in-time view of awards, File C records,
	// reference data, transactions and recipient lookups.
	ReadSnapshot(ctx context.Context) (*domain.Snapshot, error)
}

// SummaryPublisher installs a freshly built summary table.
type SummaryPublisher interface {
	// ReplaceSummary replaces the whole summary atomically. Readers see the
	// previous table until the call succeeds; on error nothing changes.
	ReplaceSummary(ctx context.Context, rows []domain.AwardFinancialSummary) error
}

// BackfillSource lists backfill candidates.
type BackfillSource interface {
	// ListUnidentifiedTransactions returns procurement and assistance
	// transactions that carry no business identifier.
	ListUnidentifiedTransactions(ctx context.Context) ([]domain.TransactionRecipient, error)
}

// LookupWriter writes the recipient lookup staging table.
type LookupWriter interface {
	// InsertLookupsIfAbsent inserts rows whose recipient hash is not present
	// yet, atomically per hash, and returns the number inserted. Existing
	// rows are never overwritten.
	InsertLookupsIfAbsent(ctx context.Context, rows []domain.RecipientLookup) (int, error)
}

// Store is the full contract a backend provides.
type Store interface {
	SourceReader
	SummaryPublisher
	BackfillSource
	LookupWriter
	Close() error
}

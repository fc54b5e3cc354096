// Package postgres implements the summary store on a PostgreSQL copy of the
// USAspending tables, using pgx for connections and squirrel for statements.
package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dvloznov/covid-award-summary/internal/domain"
	"github.com/dvloznov/covid-award-summary/internal/store"
)

// psql builds statements with $n placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Config names the tables the repository writes.
type Config struct {
	DatabaseURL   string
	SummaryTable  string
	BackfillTable string
}

// Repository is the PostgreSQL implementation of store.Store.
type Repository struct {
	pool *pgxpool.Pool
	cfg  Config
}

// NewRepository opens a connection pool and verifies it with a ping.
func NewRepository(ctx context.Context, cfg Config) (*Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("NewRepository: ping: %w", err)
	}
	return &Repository{pool: pool, cfg: cfg}, nil
}

// Close closes the pool.
func (r *Repository) Close() error {
	if r.pool != nil {
		r.pool.Close()
	}
	return nil
}

// ReadSnapshot delegates to ReadSnapshotWithPool.
func (r *Repository) ReadSnapshot(ctx context.Context) (*domain.Snapshot, error) {
	return ReadSnapshotWithPool(ctx, r.pool)
}

// ReplaceSummary delegates to ReplaceSummaryWithPool.
func (r *Repository) ReplaceSummary(ctx context.Context, rows []domain.AwardFinancialSummary) error {
	return ReplaceSummaryWithPool(ctx, r.pool, r.cfg.SummaryTable, rows)
}

// ListUnidentifiedTransactions delegates to ListUnidentifiedTransactionsWithPool.
func (r *Repository) ListUnidentifiedTransactions(ctx context.Context) ([]domain.TransactionRecipient, error) {
	return ListUnidentifiedTransactionsWithPool(ctx, r.pool)
}

// InsertLookupsIfAbsent delegates to InsertLookupsIfAbsentWithPool.
func (r *Repository) InsertLookupsIfAbsent(ctx context.Context, rows []domain.RecipientLookup) (int, error) {
	return InsertLookupsIfAbsentWithPool(ctx, r.pool, r.cfg.BackfillTable, rows)
}

// Ensure Repository implements the full store contract.
var _ store.Store = (*Repository)(nil)

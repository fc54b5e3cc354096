package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dvloznov/covid-award-summary/internal/domain"
	"github.com/dvloznov/covid-award-summary/internal/logger"
)

var summaryColumns = []string{
	"award_id",
	"type",
	"def_codes",
	"outlay",
	"obligation",
	"total_loan_value",
	"recipient_hash",
	"recipient_name",
}

// ReplaceSummaryWithPool deletes every summary row and copies in rows within
// one transaction. Concurrent readers keep seeing the previous contents until
// the commit; a failure rolls back and leaves the table untouched.
func ReplaceSummaryWithPool(ctx context.Context, pool *pgxpool.Pool, table string, rows []domain.AwardFinancialSummary) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ReplaceSummaryWithPool: begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	del, args, err := psql.Delete(pgx.Identifier{table}.Sanitize()).ToSql()
	if err != nil {
		return fmt.Errorf("ReplaceSummaryWithPool: building delete: %w", err)
	}
	if _, err := tx.Exec(ctx, del, args...); err != nil {
		return fmt.Errorf("ReplaceSummaryWithPool: clearing %s: %w", table, err)
	}

	copied, err := tx.CopyFrom(ctx, pgx.Identifier{table}, summaryColumns, pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
		return summaryValues(rows[i]), nil
	}))
	if err != nil {
		return fmt.Errorf("ReplaceSummaryWithPool: copying rows: %w", err)
	}
	if int(copied) != len(rows) {
		return fmt.Errorf("ReplaceSummaryWithPool: copied %d of %d rows", copied, len(rows))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ReplaceSummaryWithPool: commit: %w", err)
	}
	committed = true

	log := logger.FromContext(ctx)
	log.Info().
		Str("table", table).
		Int("rows", len(rows)).
		Msg("Replaced summary table")
	return nil
}

func summaryValues(r domain.AwardFinancialSummary) []any {
	codes := r.DefCodes
	if codes == nil {
		codes = []string{}
	}
	return []any{
		r.AwardID,
		r.Type,
		codes,
		decimalToNumeric(r.Outlay),
		decimalToNumeric(r.Obligation),
		decimalToNumeric(r.TotalLoanValue),
		r.RecipientHash,
		r.RecipientName,
	}
}

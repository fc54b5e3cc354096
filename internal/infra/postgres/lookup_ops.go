package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dvloznov/covid-award-summary/internal/domain"
)

// insertBatchSize keeps each INSERT well under the 65535 bind parameter limit.
const insertBatchSize = 1000

var lookupColumns = []string{
	"recipient_hash",
	"legal_business_name",
	"duns",
	"uei",
	"source",
	"parent_duns",
	"parent_uei",
	"parent_legal_business_name",
	"address_line_1",
	"address_line_2",
	"city",
	"state",
	"zip5",
	"zip4",
	"congressional_district",
	"country_code",
}

// InsertLookupsIfAbsentWithPool inserts rows with ON CONFLICT DO NOTHING on
// recipient_hash, all batches in one transaction. The unique constraint makes
// the insert atomic per hash even against concurrent writers.
func InsertLookupsIfAbsentWithPool(ctx context.Context, pool *pgxpool.Pool, table string, rows []domain.RecipientLookup) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("InsertLookupsIfAbsentWithPool: begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	inserted := 0
	for start := 0; start < len(rows); start += insertBatchSize {
		end := min(start+insertBatchSize, len(rows))

		b, err := insertLookupsQuery(table, rows[start:end])
		if err != nil {
			return 0, fmt.Errorf("InsertLookupsIfAbsentWithPool: %w", err)
		}
		query, args, err := b.ToSql()
		if err != nil {
			return 0, fmt.Errorf("InsertLookupsIfAbsentWithPool: building insert: %w", err)
		}
		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return 0, fmt.Errorf("InsertLookupsIfAbsentWithPool: inserting batch at %d: %w", start, err)
		}
		inserted += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("InsertLookupsIfAbsentWithPool: commit: %w", err)
	}
	committed = true
	return inserted, nil
}

func insertLookupsQuery(table string, rows []domain.RecipientLookup) (sq.InsertBuilder, error) {
	b := psql.Insert(pgx.Identifier{table}.Sanitize()).Columns(lookupColumns...)
	for _, r := range rows {
		if r.RecipientHash == "" {
			return b, fmt.Errorf("recipient hash is required")
		}
		b = b.Values(
			r.RecipientHash,
			toText(r.LegalBusinessName),
			toText(r.BusinessIdentifier),
			toText(r.UEI),
			toText(r.Source),
			toText(r.ParentBusinessIdentifier),
			toText(r.ParentUEI),
			toText(r.ParentLegalBusinessName),
			toText(r.AddressLine1),
			toText(r.AddressLine2),
			toText(r.City),
			toText(r.State),
			toText(r.Zip5),
			toText(r.Zip4),
			toText(r.CongressionalDistrict),
			toText(r.CountryCode),
		)
	}
	return b.Suffix("ON CONFLICT (recipient_hash) DO NOTHING"), nil
}

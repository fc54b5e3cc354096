package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"

	"github.com/dvloznov/covid-award-summary/internal/domain"
)

// ListUnidentifiedTransactionsWithClient returns procurement and assistance
// transactions whose business identifier is NULL or blank.
func ListUnidentifiedTransactionsWithClient(ctx context.Context, client *bigquery.Client, cfg Config) ([]domain.TransactionRecipient, error) {
	asOf, err := serverTimeWithClient(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("ListUnidentifiedTransactionsWithClient: current timestamp: %w", err)
	}
	const where = "WHERE awardee_or_recipient_uniqu IS NULL OR TRIM(awardee_or_recipient_uniqu) = ''"

	procurement, err := readTransactions(ctx, client, asOf, cfg.source("transaction_fpds"), domain.SourceProcurement, where)
	if err != nil {
		return nil, fmt.Errorf("ListUnidentifiedTransactionsWithClient: %w", err)
	}
	assistance, err := readTransactions(ctx, client, asOf, cfg.source("transaction_fabs"), domain.SourceAssistance, where)
	if err != nil {
		return nil, fmt.Errorf("ListUnidentifiedTransactionsWithClient: %w", err)
	}
	return append(procurement, assistance...), nil
}

// InsertLookupsIfAbsentWithClient merges rows into the backfill table. The
// MERGE statement only inserts when no row with the same recipient_hash
// exists, so concurrent or repeated runs never overwrite.
func InsertLookupsIfAbsentWithClient(ctx context.Context, client *bigquery.Client, cfg Config, rows []domain.RecipientLookup) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	params := make([]RecipientLookupRow, 0, len(rows))
	for _, r := range rows {
		if r.RecipientHash == "" {
			return 0, fmt.Errorf("InsertLookupsIfAbsentWithClient: recipient hash is required")
		}
		params = append(params, lookupRowFromDomain(r))
	}

	q := client.Query(fmt.Sprintf(`
		MERGE %s t
		USING UNNEST(@rows) s
		ON t.recipient_hash = s.recipient_hash
		WHEN NOT MATCHED THEN
		  INSERT (
			recipient_hash,
			legal_business_name,
			duns,
			uei,
			source,
			parent_duns,
			parent_uei,
			parent_legal_business_name,
			address_line_1,
			address_line_2,
			city,
			state,
			zip5,
			zip4,
			congressional_district,
			country_code
		  )
		  VALUES (
			s.recipient_hash,
			s.legal_business_name,
			s.duns,
			s.uei,
			s.source,
			s.parent_duns,
			s.parent_uei,
			s.parent_legal_business_name,
			s.address_line_1,
			s.address_line_2,
			s.city,
			s.state,
			s.zip5,
			s.zip4,
			s.congressional_district,
			s.country_code
		  )
	`, cfg.target(cfg.BackfillTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "rows", Value: params},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return 0, fmt.Errorf("InsertLookupsIfAbsentWithClient: running merge: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return 0, fmt.Errorf("InsertLookupsIfAbsentWithClient: waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return 0, fmt.Errorf("InsertLookupsIfAbsentWithClient: merge failed: %w", err)
	}

	stats, ok := status.Statistics.Details.(*bigquery.QueryStatistics)
	if !ok {
		return 0, fmt.Errorf("InsertLookupsIfAbsentWithClient: missing query statistics")
	}
	return int(stats.NumDMLAffectedRows), nil
}

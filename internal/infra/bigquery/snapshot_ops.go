package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/covid-award-summary/internal/domain"
	"github.com/dvloznov/covid-award-summary/internal/logger"
)

// ReadSnapshotWithClient reads every source table as of one instant. Each
// table is read with FOR SYSTEM_TIME AS OF the same timestamp, so the queries
// can run in parallel and still see a single consistent state.
func ReadSnapshotWithClient(ctx context.Context, client *bigquery.Client, cfg Config) (*domain.Snapshot, error) {
	asOf, err := serverTimeWithClient(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("ReadSnapshotWithClient: current timestamp: %w", err)
	}
	snap := &domain.Snapshot{AsOf: asOf}
	log := logger.FromContext(ctx)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rows, err := readAll[AwardRow](gctx, client, asOf, fmt.Sprintf(`
			SELECT id, type, latest_transaction_id, total_loan_value
			FROM %s FOR SYSTEM_TIME AS OF @as_of
		`, cfg.source("awards")))
		if err != nil {
			return fmt.Errorf("awards: %w", err)
		}
		for i := range rows {
			snap.Awards = append(snap.Awards, rows[i].toDomain())
		}
		return nil
	})

	g.Go(func() error {
		rows, err := readAll[FinancialSubRecordRow](gctx, client, asOf, fmt.Sprintf(`
			SELECT
				award_id,
				disaster_emergency_fund_code,
				submission_id,
				gross_outlay_amount_by_award_cpe,
				ussgl487200_downward_adjus_cpe,
				ussgl497200_downward_adjus_cpe,
				transaction_obligated_amount,
				is_final_balances_for_fy
			FROM %s FOR SYSTEM_TIME AS OF @as_of
			WHERE disaster_emergency_fund_code IS NOT NULL
		`, cfg.source("financial_accounts_by_awards")))
		if err != nil {
			return fmt.Errorf("financial_accounts_by_awards: %w", err)
		}
		for i := range rows {
			snap.SubRecords = append(snap.SubRecords, rows[i].toDomain())
		}
		return nil
	})

	g.Go(func() error {
		rows, err := readAll[FundCodeRow](gctx, client, asOf, fmt.Sprintf(`
			SELECT code, group_name
			FROM %s FOR SYSTEM_TIME AS OF @as_of
		`, cfg.source("disaster_emergency_fund_code")))
		if err != nil {
			return fmt.Errorf("disaster_emergency_fund_code: %w", err)
		}
		for i := range rows {
			snap.FundCodes = append(snap.FundCodes, rows[i].toDomain())
		}
		return nil
	})

	g.Go(func() error {
		rows, err := readAll[SubmissionRow](gctx, client, asOf, fmt.Sprintf(`
			SELECT
				sa.submission_id,
				sa.reporting_period_start,
				sa.submission_window_id,
				w.submission_reveal_date
			FROM %s FOR SYSTEM_TIME AS OF @as_of sa
			LEFT JOIN %s FOR SYSTEM_TIME AS OF @as_of w
			  ON w.id = sa.submission_window_id
		`, cfg.source("submission_attributes"), cfg.source("dabs_submission_window_schedule")))
		if err != nil {
			return fmt.Errorf("submission_attributes: %w", err)
		}
		for i := range rows {
			snap.Submissions = append(snap.Submissions, rows[i].toDomain())
		}
		return nil
	})

	g.Go(func() error {
		txs, err := readTransactions(gctx, client, asOf, cfg.source("transaction_fpds"), domain.SourceProcurement, "")
		if err != nil {
			return err
		}
		snap.ProcurementTransactions = txs
		return nil
	})

	g.Go(func() error {
		txs, err := readTransactions(gctx, client, asOf, cfg.source("transaction_fabs"), domain.SourceAssistance, "")
		if err != nil {
			return err
		}
		snap.AssistanceTransactions = txs
		return nil
	})

	g.Go(func() error {
		rows, err := readAll[RecipientLookupRow](gctx, client, asOf, fmt.Sprintf(`
			SELECT recipient_hash, legal_business_name, duns, uei, source
			FROM %s FOR SYSTEM_TIME AS OF @as_of
			WHERE duns IS NOT NULL
		`, cfg.source("recipient_lookup")))
		if err != nil {
			return fmt.Errorf("recipient_lookup: %w", err)
		}
		for i := range rows {
			snap.RecipientLookups = append(snap.RecipientLookups, rows[i].toDomain())
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("ReadSnapshotWithClient: %w", err)
	}

	log.Debug().
		Time("as_of", asOf).
		Int("awards", len(snap.Awards)).
		Int("sub_records", len(snap.SubRecords)).
		Int("procurement", len(snap.ProcurementTransactions)).
		Int("assistance", len(snap.AssistanceTransactions)).
		Msg("Read source snapshot")

	return snap, nil
}

const transactionColumns = `
	transaction_id,
	action_date,
	awardee_or_recipient_uniqu,
	awardee_or_recipient_uei,
	awardee_or_recipient_legal,
	ultimate_parent_unique_ide,
	ultimate_parent_uei,
	ultimate_parent_legal_enti,
	legal_entity_address_line1,
	legal_entity_address_line2,
	legal_entity_address_line3,
	legal_entity_city_name,
	legal_entity_state_code,
	legal_entity_zip5,
	legal_entity_zip_last4,
	legal_entity_congressional,
	legal_entity_country_code`

func readTransactions(ctx context.Context, client *bigquery.Client, asOf time.Time, table string, src domain.TransactionSource, where string) ([]domain.TransactionRecipient, error) {
	query := "SELECT " + transactionColumns + "\nFROM " + table + " FOR SYSTEM_TIME AS OF @as_of\n" + where
	rows, err := readAll[TransactionRow](ctx, client, asOf, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", table, err)
	}
	out := make([]domain.TransactionRecipient, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain(src))
	}
	return out, nil
}

// serverTimeWithClient returns the service's CURRENT_TIMESTAMP(). AS OF
// instants are taken from it since the service rejects times in its future.
func serverTimeWithClient(ctx context.Context, client *bigquery.Client) (time.Time, error) {
	it, err := client.Query("SELECT CURRENT_TIMESTAMP() AS now").Read(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("reading query: %w", err)
	}
	var row struct {
		Now time.Time `bigquery:"now"`
	}
	if err := it.Next(&row); err != nil {
		return time.Time{}, fmt.Errorf("iterating: %w", err)
	}
	return row.Now.UTC().Truncate(time.Microsecond), nil
}

// readAll runs a query parameterised with @as_of and loads every row into T.
func readAll[T any](ctx context.Context, client *bigquery.Client, asOf time.Time, query string) ([]T, error) {
	q := client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "as_of", Value: asOf},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading query: %w", err)
	}

	var rows []T
	for {
		var row T
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

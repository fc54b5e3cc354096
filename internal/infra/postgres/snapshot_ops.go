package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dvloznov/covid-award-summary/internal/domain"
	"github.com/dvloznov/covid-award-summary/internal/logger"
)

var transactionColumns = []string{
	"transaction_id",
	"action_date",
	"awardee_or_recipient_uniqu",
	"awardee_or_recipient_uei",
	"awardee_or_recipient_legal",
	"ultimate_parent_unique_ide",
	"ultimate_parent_uei",
	"ultimate_parent_legal_enti",
	"legal_entity_address_line1",
	"legal_entity_address_line2",
	"legal_entity_address_line3",
	"legal_entity_city_name",
	"legal_entity_state_code",
	"legal_entity_zip5",
	"legal_entity_zip_last4",
	"legal_entity_congressional",
	"legal_entity_country_code",
}

func awardsQuery() sq.SelectBuilder {
	return psql.Select("id", "type", "latest_transaction_id", "total_loan_value").
		From("awards")
}

func subRecordsQuery() sq.SelectBuilder {
	return psql.Select(
		"award_id",
		"disaster_emergency_fund_code",
		"submission_id",
		"gross_outlay_amount_by_award_cpe",
		"ussgl487200_downward_adjus_cpe",
		"ussgl497200_downward_adjus_cpe",
		"transaction_obligated_amount",
		"is_final_balances_for_fy",
	).
		From("financial_accounts_by_awards").
		Where(sq.NotEq{"disaster_emergency_fund_code": nil})
}

func fundCodesQuery() sq.SelectBuilder {
	return psql.Select("code", "group_name").From("disaster_emergency_fund_code")
}

func submissionsQuery() sq.SelectBuilder {
	return psql.Select(
		"sa.submission_id",
		"sa.reporting_period_start",
		"sa.submission_window_id",
		"w.submission_reveal_date",
	).
		From("submission_attributes sa").
		LeftJoin("dabs_submission_window_schedule w ON w.id = sa.submission_window_id")
}

func transactionsQuery(table string) sq.SelectBuilder {
	return psql.Select(transactionColumns...).From(table)
}

func lookupsQuery() sq.SelectBuilder {
	return psql.Select("recipient_hash", "legal_business_name", "duns", "uei", "source").
		From("recipient_lookup").
		Where(sq.NotEq{"duns": nil})
}

func unidentifiedQuery(table string) sq.SelectBuilder {
	return transactionsQuery(table).
		Where(sq.Or{
			sq.Eq{"awardee_or_recipient_uniqu": nil},
			sq.Expr("btrim(awardee_or_recipient_uniqu) = ''"),
		})
}

// ReadSnapshotWithPool reads every source table inside one REPEATABLE READ,
// READ ONLY transaction, so all reads share a snapshot. AsOf is the
// transaction start time.
func ReadSnapshotWithPool(ctx context.Context, pool *pgxpool.Pool) (*domain.Snapshot, error) {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("ReadSnapshotWithPool: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	snap := &domain.Snapshot{}
	if err := tx.QueryRow(ctx, "SELECT transaction_timestamp()").Scan(&snap.AsOf); err != nil {
		return nil, fmt.Errorf("ReadSnapshotWithPool: reading transaction time: %w", err)
	}
	snap.AsOf = snap.AsOf.UTC()

	awards, err := selectRows[awardRow](ctx, tx, awardsQuery())
	if err != nil {
		return nil, fmt.Errorf("ReadSnapshotWithPool: awards: %w", err)
	}
	for _, a := range awards {
		d, err := a.toDomain()
		if err != nil {
			return nil, fmt.Errorf("ReadSnapshotWithPool: %w", err)
		}
		snap.Awards = append(snap.Awards, d)
	}

	subRecords, err := selectRows[subRecordRow](ctx, tx, subRecordsQuery())
	if err != nil {
		return nil, fmt.Errorf("ReadSnapshotWithPool: financial_accounts_by_awards: %w", err)
	}
	for _, r := range subRecords {
		d, err := r.toDomain()
		if err != nil {
			return nil, fmt.Errorf("ReadSnapshotWithPool: %w", err)
		}
		snap.SubRecords = append(snap.SubRecords, d)
	}

	codes, err := selectRows[fundCodeRow](ctx, tx, fundCodesQuery())
	if err != nil {
		return nil, fmt.Errorf("ReadSnapshotWithPool: disaster_emergency_fund_code: %w", err)
	}
	for _, c := range codes {
		snap.FundCodes = append(snap.FundCodes, c.toDomain())
	}

	submissions, err := selectRows[submissionRow](ctx, tx, submissionsQuery())
	if err != nil {
		return nil, fmt.Errorf("ReadSnapshotWithPool: submission_attributes: %w", err)
	}
	for _, s := range submissions {
		snap.Submissions = append(snap.Submissions, s.toDomain())
	}

	if snap.ProcurementTransactions, err = selectTransactions(ctx, tx, transactionsQuery("transaction_fpds"), domain.SourceProcurement); err != nil {
		return nil, fmt.Errorf("ReadSnapshotWithPool: transaction_fpds: %w", err)
	}
	if snap.AssistanceTransactions, err = selectTransactions(ctx, tx, transactionsQuery("transaction_fabs"), domain.SourceAssistance); err != nil {
		return nil, fmt.Errorf("ReadSnapshotWithPool: transaction_fabs: %w", err)
	}

	lookups, err := selectRows[lookupRow](ctx, tx, lookupsQuery())
	if err != nil {
		return nil, fmt.Errorf("ReadSnapshotWithPool: recipient_lookup: %w", err)
	}
	for _, l := range lookups {
		snap.RecipientLookups = append(snap.RecipientLookups, l.toDomain())
	}

	log := logger.FromContext(ctx)
	log.Debug().
		Time("as_of", snap.AsOf).
		Int("awards", len(snap.Awards)).
		Int("sub_records", len(snap.SubRecords)).
		Msg("Read source snapshot")

	return snap, nil
}

// ListUnidentifiedTransactionsWithPool returns transactions whose business
// identifier is NULL or blank, from both transaction tables.
func ListUnidentifiedTransactionsWithPool(ctx context.Context, pool *pgxpool.Pool) ([]domain.TransactionRecipient, error) {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("ListUnidentifiedTransactionsWithPool: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	procurement, err := selectTransactions(ctx, tx, unidentifiedQuery("transaction_fpds"), domain.SourceProcurement)
	if err != nil {
		return nil, fmt.Errorf("ListUnidentifiedTransactionsWithPool: transaction_fpds: %w", err)
	}
	assistance, err := selectTransactions(ctx, tx, unidentifiedQuery("transaction_fabs"), domain.SourceAssistance)
	if err != nil {
		return nil, fmt.Errorf("ListUnidentifiedTransactionsWithPool: transaction_fabs: %w", err)
	}
	return append(procurement, assistance...), nil
}

func selectTransactions(ctx context.Context, tx pgx.Tx, b sq.SelectBuilder, src domain.TransactionSource) ([]domain.TransactionRecipient, error) {
	rows, err := selectRows[transactionRow](ctx, tx, b)
	if err != nil {
		return nil, err
	}
	out := make([]domain.TransactionRecipient, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain(src))
	}
	return out, nil
}

// selectRows runs b and maps every row onto T by column name.
func selectRows[T any](ctx context.Context, tx pgx.Tx, b sq.SelectBuilder) ([]T, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("running query: %w", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByName[T])
	if err != nil {
		return nil, fmt.Errorf("collecting rows: %w", err)
	}
	return out, nil
}

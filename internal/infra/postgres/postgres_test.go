package postgres

import (
	"math/big"
	"strings"
	"testing"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/go-cmp/cmp"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/covid-award-summary/internal/domain"
)

func TestNumericToDecimal(t *testing.T) {
	tests := []struct {
		name    string
		in      pgtype.Numeric
		valid   bool
		want    string
		wantErr bool
	}{
		{name: "null", in: pgtype.Numeric{}},
		{name: "cents", in: pgtype.Numeric{Int: big.NewInt(12345), Exp: -2, Valid: true}, valid: true, want: "123.45"},
		{name: "positive exponent", in: pgtype.Numeric{Int: big.NewInt(5), Exp: 3, Valid: true}, valid: true, want: "5000"},
		{name: "negative", in: pgtype.Numeric{Int: big.NewInt(-700), Exp: -1, Valid: true}, valid: true, want: "-70"},
		{name: "nan", in: pgtype.Numeric{NaN: true, Valid: true}, wantErr: true},
		{name: "infinity", in: pgtype.Numeric{InfinityModifier: pgtype.Infinity, Valid: true}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := numericToDecimal(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("numericToDecimal() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got.Valid != tt.valid {
				t.Fatalf("Valid = %v, want %v", got.Valid, tt.valid)
			}
			if tt.valid && !got.Decimal.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("numericToDecimal() = %s, want %s", got.Decimal, tt.want)
			}
		})
	}
}

func TestDecimalToNumericRoundTrip(t *testing.T) {
	for _, s := range []string{"0", "12.5", "-0.000000001", "123456789012345.67"} {
		d := decimal.RequireFromString(s)
		back, err := numericToDecimal(decimalToNumeric(d))
		if err != nil {
			t.Fatalf("numericToDecimal(%s) error = %v", s, err)
		}
		if !back.Decimal.Equal(d) {
			t.Errorf("%s round-tripped to %s", s, back.Decimal)
		}
	}
}

func TestSubRecordRowToDomain(t *testing.T) {
	row := subRecordRow{
		AwardID:                    pgtype.Int8{Int64: 7, Valid: true},
		DisasterEmergencyFundCode:  "L",
		SubmissionID:               3,
		GrossOutlayAmount:          pgtype.Numeric{Int: big.NewInt(100), Valid: true},
		TransactionObligatedAmount: pgtype.Numeric{Int: big.NewInt(4550), Exp: -2, Valid: true},
		IsFinalBalancesForFY:       pgtype.Bool{Bool: true, Valid: true},
	}

	got, err := row.toDomain()
	if err != nil {
		t.Fatalf("toDomain() error = %v", err)
	}
	if got.AwardID != 7 || !got.IsFinalBalancesForFY {
		t.Errorf("got award=%d final=%v, want 7 and true", got.AwardID, got.IsFinalBalancesForFY)
	}
	if got.DownwardAdjDeliveredRefund.Valid {
		t.Error("delivered refund should be NULL")
	}
	if !got.TransactionObligatedAmount.Decimal.Equal(decimal.RequireFromString("45.5")) {
		t.Errorf("obligated = %s, want 45.5", got.TransactionObligatedAmount.Decimal)
	}

	row.GrossOutlayAmount = pgtype.Numeric{NaN: true, Valid: true}
	if _, err := row.toDomain(); err == nil || !strings.Contains(err.Error(), "gross_outlay_amount_by_award_cpe") {
		t.Errorf("toDomain() error = %v, want it to name gross_outlay_amount_by_award_cpe", err)
	}
}

func TestSubmissionRowToDomain(t *testing.T) {
	reveal := time.Date(2020, time.August, 15, 9, 30, 0, 0, time.FixedZone("EDT", -4*3600))
	row := submissionRow{
		SubmissionID:         1,
		ReportingPeriodStart: pgtype.Date{Time: time.Date(2020, time.April, 1, 0, 0, 0, 0, time.Local), Valid: true},
		RevealDate:           pgtype.Timestamptz{Time: reveal, Valid: true},
	}
	got := row.toDomain()
	if !got.ReportingPeriodStart.Equal(domain.ReportingPeriodCutoff) {
		t.Errorf("ReportingPeriodStart = %v, want %v", got.ReportingPeriodStart, domain.ReportingPeriodCutoff)
	}
	if got.RevealDate == nil {
		t.Fatal("RevealDate should be set")
	}
	if got.RevealDate.Location() != time.UTC {
		t.Errorf("RevealDate location = %v, want UTC", got.RevealDate.Location())
	}
	if !got.RevealDate.Equal(reveal) {
		t.Errorf("RevealDate = %v, want %v", got.RevealDate, reveal)
	}
}

func TestSnapshotQueries(t *testing.T) {
	query, args, err := awardsQuery().ToSql()
	if err != nil {
		t.Fatalf("awardsQuery() error = %v", err)
	}
	if want := "SELECT id, type, latest_transaction_id, total_loan_value FROM awards"; query != want {
		t.Errorf("awardsQuery() = %q, want %q", query, want)
	}
	if len(args) != 0 {
		t.Errorf("awardsQuery() args = %v, want none", args)
	}

	tests := []struct {
		name  string
		build sq.Sqlizer
		want  []string
	}{
		{"sub-records", subRecordsQuery(), []string{"FROM financial_accounts_by_awards WHERE disaster_emergency_fund_code IS NOT NULL"}},
		{"submissions", submissionsQuery(), []string{"LEFT JOIN dabs_submission_window_schedule w ON w.id = sa.submission_window_id"}},
		{"unidentified", unidentifiedQuery("transaction_fabs"), []string{
			"FROM transaction_fabs WHERE",
			"awardee_or_recipient_uniqu IS NULL",
			"btrim(awardee_or_recipient_uniqu) = ''",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, _, err := tt.build.ToSql()
			if err != nil {
				t.Fatalf("ToSql() error = %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(query, want) {
					t.Errorf("query %q should contain %q", query, want)
				}
			}
		})
	}
}

func TestInsertLookupsQuery(t *testing.T) {
	rows := []domain.RecipientLookup{
		{RecipientHash: "a", LegalBusinessName: "ALPHA"},
		{RecipientHash: "b"},
	}
	b, err := insertLookupsQuery("recipient_lookup_backfill", rows)
	if err != nil {
		t.Fatalf("insertLookupsQuery() error = %v", err)
	}

	query, args, err := b.ToSql()
	if err != nil {
		t.Fatalf("ToSql() error = %v", err)
	}
	if !strings.HasPrefix(query, `INSERT INTO "recipient_lookup_backfill"`) {
		t.Errorf("query = %s", query)
	}
	if !strings.HasSuffix(query, "ON CONFLICT (recipient_hash) DO NOTHING") {
		t.Errorf("query should end with the conflict clause: %s", query)
	}
	if !strings.Contains(query, "$32") || strings.Contains(query, "?") {
		t.Errorf("query should use dollar placeholders: %s", query)
	}
	if len(args) != 2*len(lookupColumns) {
		t.Fatalf("got %d args, want %d", len(args), 2*len(lookupColumns))
	}
	if args[0] != "a" {
		t.Errorf("args[0] = %v, want a", args[0])
	}
	if args[1] != (pgtype.Text{String: "ALPHA", Valid: true}) {
		t.Errorf("args[1] = %v, want ALPHA", args[1])
	}
	if args[2] != (pgtype.Text{}) {
		t.Errorf("args[2] = %v, want NULL text", args[2])
	}
}

func TestInsertLookupsQuery_RequiresHash(t *testing.T) {
	if _, err := insertLookupsQuery("t", []domain.RecipientLookup{{LegalBusinessName: "X"}}); err == nil {
		t.Fatal("insertLookupsQuery() should reject a row without a hash")
	}
}

func TestSummaryValues(t *testing.T) {
	vals := summaryValues(domain.AwardFinancialSummary{
		AwardID: 9,
		Outlay:  decimal.RequireFromString("1.25"),
	})
	if len(vals) != len(summaryColumns) {
		t.Fatalf("got %d values, want %d", len(vals), len(summaryColumns))
	}
	if diff := cmp.Diff([]string{}, vals[2]); diff != "" {
		t.Errorf("def_codes mismatch (-want +got):\n%s", diff)
	}
	want := pgtype.Numeric{Int: big.NewInt(125), Exp: -2, Valid: true}
	got, ok := vals[3].(pgtype.Numeric)
	if !ok || got.Int.Cmp(want.Int) != 0 || got.Exp != want.Exp || !got.Valid {
		t.Errorf("outlay = %#v, want %#v", vals[3], want)
	}
}

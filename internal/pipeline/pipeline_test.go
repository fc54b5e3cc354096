package pipeline_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/covid-award-summary/internal/domain"
	"github.com/dvloznov/covid-award-summary/internal/infra/inmemory"
	"github.com/dvloznov/covid-award-summary/internal/pipeline"
	"github.com/dvloznov/covid-award-summary/internal/summary"
)

// MockStore is a mock implementation of store.Store for testing.
type MockStore struct {
	ReadSnapshotFunc                 func(ctx context.Context) (*domain.Snapshot, error)
	ReplaceSummaryFunc               func(ctx context.Context, rows []domain.AwardFinancialSummary) error
	ListUnidentifiedTransactionsFunc func(ctx context.Context) ([]domain.TransactionRecipient, error)
	InsertLookupsIfAbsentFunc        func(ctx context.Context, rows []domain.RecipientLookup) (int, error)

	replaceCalls int
}

func (m *MockStore) ReadSnapshot(ctx context.Context) (*domain.Snapshot, error) {
	if m.ReadSnapshotFunc != nil {
		return m.ReadSnapshotFunc(ctx)
	}
	return &domain.Snapshot{}, nil
}

func (m *MockStore) ReplaceSummary(ctx context.Context, rows []domain.AwardFinancialSummary) error {
	m.replaceCalls++
	if m.ReplaceSummaryFunc != nil {
		return m.ReplaceSummaryFunc(ctx, rows)
	}
	return nil
}

func (m *MockStore) ListUnidentifiedTransactions(ctx context.Context) ([]domain.TransactionRecipient, error) {
	if m.ListUnidentifiedTransactionsFunc != nil {
		return m.ListUnidentifiedTransactionsFunc(ctx)
	}
	return nil, nil
}

func (m *MockStore) InsertLookupsIfAbsent(ctx context.Context, rows []domain.RecipientLookup) (int, error) {
	if m.InsertLookupsIfAbsentFunc != nil {
		return m.InsertLookupsIfAbsentFunc(ctx, rows)
	}
	return len(rows), nil
}

func (m *MockStore) Close() error { return nil }

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func testSnapshot() *domain.Snapshot {
	reveal := date(2020, time.August, 1)
	return &domain.Snapshot{
		AsOf: date(2021, time.January, 1),
		Awards: []domain.Award{
			{ID: 1, Type: "A", LatestTransactionID: 100},
			{ID: 2, Type: "07", LatestTransactionID: 200},
		},
		SubRecords: []domain.FinancialSubRecord{
			{AwardID: 1, DisasterEmergencyFundCode: "L", SubmissionID: 10, GrossOutlayAmount: dec("100"), TransactionObligatedAmount: dec("45"), IsFinalBalancesForFY: true},
			{AwardID: 2, DisasterEmergencyFundCode: "M", SubmissionID: 10, TransactionObligatedAmount: dec("12.50")},
		},
		FundCodes: []domain.DisasterFundCode{
			{Code: "L", GroupName: domain.CovidGroupName},
			{Code: "M", GroupName: domain.CovidGroupName},
		},
		Submissions: []domain.Submission{
			{ID: 10, ReportingPeriodStart: date(2020, time.April, 1), SubmissionWindowID: 1, RevealDate: &reveal},
		},
		ProcurementTransactions: []domain.TransactionRecipient{
			{TransactionID: 100, Source: domain.SourceProcurement, ActionDate: date(2020, time.May, 1), BusinessIdentifier: "123456789", LegalName: "acme"},
		},
		AssistanceTransactions: []domain.TransactionRecipient{
			{TransactionID: 200, Source: domain.SourceAssistance, ActionDate: date(2020, time.May, 2), LegalName: "Small Farm"},
			{TransactionID: 201, Source: domain.SourceAssistance, ActionDate: date(2020, time.June, 2), LegalName: "Small Farm", City: "AMES"},
		},
	}
}

func TestRunRefresh_PublishesRows(t *testing.T) {
	st := inmemory.NewStore(testSnapshot())

	res, err := pipeline.RunRefresh(context.Background(), st)
	if err != nil {
		t.Fatalf("RunRefresh() error = %v", err)
	}

	if res.Pipeline != pipeline.RefreshPipelineName {
		t.Errorf("Pipeline = %q, want %q", res.Pipeline, pipeline.RefreshPipelineName)
	}
	if res.RunID == "" || res.Fingerprint == "" {
		t.Errorf("RunID = %q Fingerprint = %q, want both set", res.RunID, res.Fingerprint)
	}
	if res.Rows != 2 || !res.Published {
		t.Errorf("Rows = %d Published = %v, want 2 and true", res.Rows, res.Published)
	}
	if res.AsOf == nil || !res.AsOf.Equal(date(2021, time.January, 1)) {
		t.Errorf("AsOf = %v, want 2021-01-01", res.AsOf)
	}
	if res.Backfill != nil {
		t.Errorf("Backfill = %+v, want nil for a refresh", res.Backfill)
	}

	rows := st.Summary()
	if len(rows) != 2 {
		t.Fatalf("published %d rows, want 2", len(rows))
	}
	if rows[0].AwardID != 1 || rows[0].RecipientName != "ACME" {
		t.Errorf("rows[0] = %+v", rows[0])
	}
	if rows[0].RecipientHash != "dd4893c7-b63c-d1a1-0e22-e5c2ddd476a4" {
		t.Errorf("rows[0].RecipientHash = %q", rows[0].RecipientHash)
	}
	if !rows[0].Outlay.Equal(decimal.RequireFromString("100")) {
		t.Errorf("rows[0].Outlay = %s, want 100", rows[0].Outlay)
	}
	if rows[1].AwardID != 2 || rows[1].RecipientName != "SMALL FARM" {
		t.Errorf("rows[1] = %+v", rows[1])
	}
	if !rows[1].Outlay.IsZero() || !rows[1].Obligation.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("rows[1] outlay = %s obligation = %s, want 0 and 12.5", rows[1].Outlay, rows[1].Obligation)
	}
}

func TestRunRefresh_Deterministic(t *testing.T) {
	st := inmemory.NewStore(testSnapshot())

	first, err := pipeline.RunRefresh(context.Background(), st)
	if err != nil {
		t.Fatalf("first RunRefresh() error = %v", err)
	}
	second, err := pipeline.RunRefresh(context.Background(), st)
	if err != nil {
		t.Fatalf("second RunRefresh() error = %v", err)
	}

	if first.RunID == second.RunID {
		t.Error("each run should get its own run id")
	}
	if first.Fingerprint != second.Fingerprint {
		t.Errorf("fingerprints differ: %s vs %s", first.Fingerprint, second.Fingerprint)
	}
	if n := st.Publishes(); n != 2 {
		t.Errorf("Publishes() = %d, want 2", n)
	}
}

func TestRunRefresh_AnomalyKeepsPreviousTable(t *testing.T) {
	st := inmemory.NewStore(testSnapshot())
	if _, err := pipeline.RunRefresh(context.Background(), st); err != nil {
		t.Fatalf("RunRefresh() error = %v", err)
	}
	before := st.Summary()

	broken := testSnapshot()
	broken.Awards = broken.Awards[:1]
	mock := &MockStore{
		ReadSnapshotFunc: func(ctx context.Context) (*domain.Snapshot, error) { return broken, nil },
		ReplaceSummaryFunc: func(ctx context.Context, rows []domain.AwardFinancialSummary) error {
			return st.ReplaceSummary(ctx, rows)
		},
	}

	res, err := pipeline.RunRefresh(context.Background(), mock)
	if !errors.Is(err, summary.ErrReferentialAnomaly) {
		t.Fatalf("RunRefresh() error = %v, want ErrReferentialAnomaly", err)
	}
	if res.Published {
		t.Error("Published should be false")
	}
	if mock.replaceCalls != 0 {
		t.Errorf("ReplaceSummary called %d times, want 0", mock.replaceCalls)
	}
	if diff := cmp.Diff(before, st.Summary(), cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })); diff != "" {
		t.Errorf("summary table changed (-before +after):\n%s", diff)
	}
}

func TestRunRefresh_ReadFailure(t *testing.T) {
	readErr := errors.New("warehouse unavailable")
	mock := &MockStore{
		ReadSnapshotFunc: func(ctx context.Context) (*domain.Snapshot, error) { return nil, readErr },
	}

	res, err := pipeline.RunRefresh(context.Background(), mock)
	if !errors.Is(err, readErr) {
		t.Fatalf("RunRefresh() error = %v, want %v", err, readErr)
	}
	if !strings.Contains(err.Error(), "read_snapshot") {
		t.Errorf("error = %v, want it to name the read_snapshot step", err)
	}
	if res.AsOf != nil {
		t.Errorf("AsOf = %v, want nil", res.AsOf)
	}
	if mock.replaceCalls != 0 {
		t.Errorf("ReplaceSummary called %d times, want 0", mock.replaceCalls)
	}
}

func TestRunRefresh_PublishFailure(t *testing.T) {
	mock := &MockStore{
		ReadSnapshotFunc: func(ctx context.Context) (*domain.Snapshot, error) { return testSnapshot(), nil },
		ReplaceSummaryFunc: func(ctx context.Context, rows []domain.AwardFinancialSummary) error {
			return errors.New("load job failed")
		},
	}

	res, err := pipeline.RunRefresh(context.Background(), mock)
	if err == nil {
		t.Fatal("RunRefresh() should fail when the publish fails")
	}
	if !strings.Contains(err.Error(), "publish_summary") {
		t.Errorf("error = %v, want it to name the publish_summary step", err)
	}
	if res.Published {
		t.Error("Published should be false")
	}
	if res.Rows != 2 {
		t.Errorf("Rows = %d, want 2", res.Rows)
	}
}

func TestRunBackfill_Idempotent(t *testing.T) {
	st := inmemory.NewStore(testSnapshot())

	res, err := pipeline.RunBackfill(context.Background(), st)
	if err != nil {
		t.Fatalf("RunBackfill() error = %v", err)
	}
	if res.Backfill == nil {
		t.Fatal("Backfill result should be set")
	}
	if b := *res.Backfill; b.Candidates != 2 || b.Selected != 1 || b.Inserted != 1 {
		t.Errorf("first backfill = %+v, want 2 candidates, 1 selected, 1 inserted", b)
	}

	lookups := st.BackfillLookups()
	if len(lookups) != 1 {
		t.Fatalf("backfill table holds %d rows, want 1", len(lookups))
	}
	if lookups[0].City != "AMES" || lookups[0].LegalBusinessName != "SMALL FARM" {
		t.Errorf("lookup = %+v, want the latest SMALL FARM record", lookups[0])
	}

	res, err = pipeline.RunBackfill(context.Background(), st)
	if err != nil {
		t.Fatalf("second RunBackfill() error = %v", err)
	}
	if res.Backfill.Inserted != 0 || res.Backfill.Skipped != 1 {
		t.Errorf("second backfill = %+v, want 0 inserted and 1 skipped", *res.Backfill)
	}
	if diff := cmp.Diff(lookups, st.BackfillLookups()); diff != "" {
		t.Errorf("backfill table changed (-before +after):\n%s", diff)
	}
}

type recordingStep struct {
	name  string
	err   error
	calls *[]string
}

func (s *recordingStep) Name() string { return s.name }

func (s *recordingStep) Execute(ctx context.Context, state *pipeline.PipelineState) error {
	*s.calls = append(*s.calls, s.name)
	return s.err
}

func TestPipelineExecute_StopsAtFirstFailure(t *testing.T) {
	var calls []string
	boom := errors.New("boom")
	p := pipeline.NewPipeline("test",
		&recordingStep{name: "one", calls: &calls},
		&recordingStep{name: "two", err: boom, calls: &calls},
		&recordingStep{name: "three", calls: &calls},
	)

	err := p.Execute(context.Background(), &pipeline.PipelineState{})
	if !errors.Is(err, boom) {
		t.Fatalf("Execute() error = %v, want %v", err, boom)
	}
	if got := err.Error(); got != "pipeline step 2 (two) failed: boom" {
		t.Errorf("Execute() error = %q", got)
	}
	if diff := cmp.Diff([]string{"one", "two"}, calls); diff != "" {
		t.Errorf("steps run mismatch (-want +got):\n%s", diff)
	}
}

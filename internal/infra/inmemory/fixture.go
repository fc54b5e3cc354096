package inmemory

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/covid-award-summary/internal/domain"
)

// Fixture is the JSON layout of a memory backend data file. Table and column
// names follow the warehouse tables they stand in for.
type Fixture struct {
	AsOf        *time.Time           `json:"as_of,omitempty"`
	Awards      []fixtureAward       `json:"awards"`
	SubRecords  []fixtureSubRecord   `json:"financial_accounts_by_awards"`
	FundCodes   []fixtureFundCode    `json:"disaster_emergency_fund_code"`
	Submissions []fixtureSubmission  `json:"submission_attributes"`
	Procurement []fixtureTransaction `json:"transaction_fpds"`
	Assistance  []fixtureTransaction `json:"transaction_fabs"`
	Lookups     []fixtureLookup      `json:"recipient_lookup"`
}

type fixtureAward struct {
	ID                  int64               `json:"id"`
	Type                string              `json:"type"`
	LatestTransactionID int64               `json:"latest_transaction_id"`
	TotalLoanValue      decimal.NullDecimal `json:"total_loan_value"`
}

type fixtureSubRecord struct {
	AwardID                      int64               `json:"award_id"`
	DisasterEmergencyFundCode    string              `json:"disaster_emergency_fund_code"`
	SubmissionID                 int64               `json:"submission_id"`
	GrossOutlayAmount            decimal.NullDecimal `json:"gross_outlay_amount_by_award_cpe"`
	DownwardAdjUndeliveredRefund decimal.NullDecimal `json:"ussgl487200_downward_adjus_cpe"`
	DownwardAdjDeliveredRefund   decimal.NullDecimal `json:"ussgl497200_downward_adjus_cpe"`
	TransactionObligatedAmount   decimal.NullDecimal `json:"transaction_obligated_amount"`
	IsFinalBalancesForFY         bool                `json:"is_final_balances_for_fy"`
}

type fixtureFundCode struct {
	Code      string `json:"code"`
	GroupName string `json:"group_name"`
}

type fixtureSubmission struct {
	ID                   int64      `json:"submission_id"`
	ReportingPeriodStart time.Time  `json:"reporting_period_start"`
	SubmissionWindowID   int64      `json:"submission_window_id"`
	RevealDate           *time.Time `json:"submission_reveal_date"`
}

type fixtureTransaction struct {
	TransactionID            int64     `json:"transaction_id"`
	ActionDate               time.Time `json:"action_date"`
	BusinessIdentifier       string    `json:"awardee_or_recipient_uniqu"`
	UEI                      string    `json:"awardee_or_recipient_uei"`
	LegalName                string    `json:"awardee_or_recipient_legal"`
	ParentBusinessIdentifier string    `json:"ultimate_parent_unique_ide"`
	ParentUEI                string    `json:"ultimate_parent_uei"`
	ParentLegalName          string    `json:"ultimate_parent_legal_enti"`
	AddressLine1             string    `json:"legal_entity_address_line1"`
	AddressLine2             string    `json:"legal_entity_address_line2"`
	AddressLine3             string    `json:"legal_entity_address_line3"`
	City                     string    `json:"legal_entity_city_name"`
	State                    string    `json:"legal_entity_state_code"`
	Zip5                     string    `json:"legal_entity_zip5"`
	Zip4                     string    `json:"legal_entity_zip_last4"`
	CongressionalDistrict    string    `json:"legal_entity_congressional"`
	CountryCode              string    `json:"legal_entity_country_code"`
}

type fixtureLookup struct {
	RecipientHash      string `json:"recipient_hash"`
	LegalBusinessName  string `json:"legal_business_name"`
	BusinessIdentifier string `json:"duns"`
	UEI                string `json:"uei"`
	Source             string `json:"source"`
}

// LoadFixtureFile reads a fixture file and returns a store seeded with it.
func LoadFixtureFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("LoadFixtureFile: opening %s: %w", path, err)
	}
	defer f.Close()

	snap, err := DecodeFixture(f)
	if err != nil {
		return nil, fmt.Errorf("LoadFixtureFile: %w", err)
	}
	return NewStore(snap), nil
}

// DecodeFixture parses fixture JSON into a snapshot.
func DecodeFixture(r io.Reader) (*domain.Snapshot, error) {
	var fx Fixture
	if err := json.NewDecoder(r).Decode(&fx); err != nil {
		return nil, fmt.Errorf("DecodeFixture: decoding JSON: %w", err)
	}
	return fx.Snapshot(), nil
}

// Snapshot converts the fixture into domain records.
func (fx *Fixture) Snapshot() *domain.Snapshot {
	snap := &domain.Snapshot{}
	if fx.AsOf != nil {
		snap.AsOf = fx.AsOf.UTC()
	}
	for _, a := range fx.Awards {
		snap.Awards = append(snap.Awards, domain.Award{
			ID:                  a.ID,
			Type:                a.Type,
			LatestTransactionID: a.LatestTransactionID,
			TotalLoanValue:      a.TotalLoanValue,
		})
	}
	for _, r := range fx.SubRecords {
		snap.SubRecords = append(snap.SubRecords, domain.FinancialSubRecord{
			AwardID:                      r.AwardID,
			DisasterEmergencyFundCode:    r.DisasterEmergencyFundCode,
			SubmissionID:                 r.SubmissionID,
			GrossOutlayAmount:            r.GrossOutlayAmount,
			DownwardAdjUndeliveredRefund: r.DownwardAdjUndeliveredRefund,
			DownwardAdjDeliveredRefund:   r.DownwardAdjDeliveredRefund,
			TransactionObligatedAmount:   r.TransactionObligatedAmount,
			IsFinalBalancesForFY:         r.IsFinalBalancesForFY,
		})
	}
	for _, c := range fx.FundCodes {
		snap.FundCodes = append(snap.FundCodes, domain.DisasterFundCode{Code: c.Code, GroupName: c.GroupName})
	}
	for _, s := range fx.Submissions {
		snap.Submissions = append(snap.Submissions, domain.Submission{
			ID:                   s.ID,
			ReportingPeriodStart: s.ReportingPeriodStart,
			SubmissionWindowID:   s.SubmissionWindowID,
			RevealDate:           s.RevealDate,
		})
	}
	for _, l := range fx.Lookups {
		snap.RecipientLookups = append(snap.RecipientLookups, domain.RecipientLookup{
			RecipientHash:      l.RecipientHash,
			LegalBusinessName:  l.LegalBusinessName,
			BusinessIdentifier: l.BusinessIdentifier,
			UEI:                l.UEI,
			Source:             l.Source,
		})
	}
	snap.ProcurementTransactions = fixtureTransactions(fx.Procurement, domain.SourceProcurement)
	snap.AssistanceTransactions = fixtureTransactions(fx.Assistance, domain.SourceAssistance)
	return snap
}

func fixtureTransactions(in []fixtureTransaction, src domain.TransactionSource) []domain.TransactionRecipient {
	out := make([]domain.TransactionRecipient, 0, len(in))
	for _, t := range in {
		out = append(out, domain.TransactionRecipient{
			TransactionID:            t.TransactionID,
			Source:                   src,
			ActionDate:               t.ActionDate,
			BusinessIdentifier:       t.BusinessIdentifier,
			UEI:                      t.UEI,
			LegalName:                t.LegalName,
			ParentBusinessIdentifier: t.ParentBusinessIdentifier,
			ParentUEI:                t.ParentUEI,
			ParentLegalName:          t.ParentLegalName,
			AddressLine1:             t.AddressLine1,
			AddressLine2:             t.AddressLine2,
			AddressLine3:             t.AddressLine3,
			City:                     t.City,
			State:                    t.State,
			Zip5:                     t.Zip5,
			Zip4:                     t.Zip4,
			CongressionalDistrict:    t.CongressionalDistrict,
			CountryCode:              t.CountryCode,
		})
	}
	return out
}

package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/covid-award-summary/internal/domain"
)

// numericScale is the fractional precision of BigQuery NUMERIC.
const numericScale = 9

type AwardRow struct {
	ID                  int64               `bigquery:"id"`
	Type                bigquery.NullString `bigquery:"type"`
	LatestTransactionID bigquery.NullInt64  `bigquery:"latest_transaction_id"`
	TotalLoanValue      *big.Rat            `bigquery:"total_loan_value"` // NUMERIC, NULL reads as nil
}

type FinancialSubRecordRow struct {
	AwardID                      bigquery.NullInt64  `bigquery:"award_id"`
	DisasterEmergencyFundCode    bigquery.NullString `bigquery:"disaster_emergency_fund_code"`
	SubmissionID                 bigquery.NullInt64  `bigquery:"submission_id"`
	GrossOutlayAmount            *big.Rat            `bigquery:"gross_outlay_amount_by_award_cpe"`
	DownwardAdjUndeliveredRefund *big.Rat            `bigquery:"ussgl487200_downward_adjus_cpe"`
	DownwardAdjDeliveredRefund   *big.Rat            `bigquery:"ussgl497200_downward_adjus_cpe"`
	TransactionObligatedAmount   *big.Rat            `bigquery:"transaction_obligated_amount"`
	IsFinalBalancesForFY         bigquery.NullBool   `bigquery:"is_final_balances_for_fy"`
}

type FundCodeRow struct {
	Code      string              `bigquery:"code"`
	GroupName bigquery.NullString `bigquery:"group_name"`
}

type SubmissionRow struct {
	SubmissionID         int64                  `bigquery:"submission_id"`
	ReportingPeriodStart bigquery.NullDate      `bigquery:"reporting_period_start"`
	SubmissionWindowID   bigquery.NullInt64     `bigquery:"submission_window_id"`
	RevealDate           bigquery.NullTimestamp `bigquery:"submission_reveal_date"`
}

// TransactionRow covers both transaction_fpds and transaction_fabs; the two
// tables share the recipient column names.
type TransactionRow struct {
	TransactionID            int64               `bigquery:"transaction_id"`
	ActionDate               bigquery.NullDate   `bigquery:"action_date"`
	BusinessIdentifier       bigquery.NullString `bigquery:"awardee_or_recipient_uniqu"`
	UEI                      bigquery.NullString `bigquery:"awardee_or_recipient_uei"`
	LegalName                bigquery.NullString `bigquery:"awardee_or_recipient_legal"`
	ParentBusinessIdentifier bigquery.NullString `bigquery:"ultimate_parent_unique_ide"`
	ParentUEI                bigquery.NullString `bigquery:"ultimate_parent_uei"`
	ParentLegalName          bigquery.NullString `bigquery:"ultimate_parent_legal_enti"`
	AddressLine1             bigquery.NullString `bigquery:"legal_entity_address_line1"`
	AddressLine2             bigquery.NullString `bigquery:"legal_entity_address_line2"`
	AddressLine3             bigquery.NullString `bigquery:"legal_entity_address_line3"`
	City                     bigquery.NullString `bigquery:"legal_entity_city_name"`
	State                    bigquery.NullString `bigquery:"legal_entity_state_code"`
	Zip5                     bigquery.NullString `bigquery:"legal_entity_zip5"`
	Zip4                     bigquery.NullString `bigquery:"legal_entity_zip_last4"`
	CongressionalDistrict    bigquery.NullString `bigquery:"legal_entity_congressional"`
	CountryCode              bigquery.NullString `bigquery:"legal_entity_country_code"`
}

// RecipientLookupRow is read from recipient_lookup and written to the
// backfill table. Empty strings are stored as NULL.
type RecipientLookupRow struct {
	RecipientHash            string              `bigquery:"recipient_hash"`
	LegalBusinessName        bigquery.NullString `bigquery:"legal_business_name"`
	BusinessIdentifier       bigquery.NullString `bigquery:"duns"`
	UEI                      bigquery.NullString `bigquery:"uei"`
	Source                   bigquery.NullString `bigquery:"source"`
	ParentBusinessIdentifier bigquery.NullString `bigquery:"parent_duns"`
	ParentUEI                bigquery.NullString `bigquery:"parent_uei"`
	ParentLegalBusinessName  bigquery.NullString `bigquery:"parent_legal_business_name"`
	AddressLine1             bigquery.NullString `bigquery:"address_line_1"`
	AddressLine2             bigquery.NullString `bigquery:"address_line_2"`
	City                     bigquery.NullString `bigquery:"city"`
	State                    bigquery.NullString `bigquery:"state"`
	Zip5                     bigquery.NullString `bigquery:"zip5"`
	Zip4                     bigquery.NullString `bigquery:"zip4"`
	CongressionalDistrict    bigquery.NullString `bigquery:"congressional_district"`
	CountryCode              bigquery.NullString `bigquery:"country_code"`
}

func ratToDecimal(r *big.Rat) decimal.NullDecimal {
	if r == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.RequireFromString(r.FloatString(numericScale)))
}

func nullString(s bigquery.NullString) string {
	if !s.Valid {
		return ""
	}
	return s.StringVal
}

func nullInt64(n bigquery.NullInt64) int64 {
	if !n.Valid {
		return 0
	}
	return n.Int64
}

func nullBool(b bigquery.NullBool) bool {
	return b.Valid && b.Bool
}

func toNullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

func (r *AwardRow) toDomain() domain.Award {
	return domain.Award{
		ID:                  r.ID,
		Type:                nullString(r.Type),
		LatestTransactionID: nullInt64(r.LatestTransactionID),
		TotalLoanValue:      ratToDecimal(r.TotalLoanValue),
	}
}

func (r *FinancialSubRecordRow) toDomain() domain.FinancialSubRecord {
	return domain.FinancialSubRecord{
		AwardID:                      nullInt64(r.AwardID),
		DisasterEmergencyFundCode:    nullString(r.DisasterEmergencyFundCode),
		SubmissionID:                 nullInt64(r.SubmissionID),
		GrossOutlayAmount:            ratToDecimal(r.GrossOutlayAmount),
		DownwardAdjUndeliveredRefund: ratToDecimal(r.DownwardAdjUndeliveredRefund),
		DownwardAdjDeliveredRefund:   ratToDecimal(r.DownwardAdjDeliveredRefund),
		TransactionObligatedAmount:   ratToDecimal(r.TransactionObligatedAmount),
		IsFinalBalancesForFY:         nullBool(r.IsFinalBalancesForFY),
	}
}

func (r *FundCodeRow) toDomain() domain.DisasterFundCode {
	return domain.DisasterFundCode{Code: r.Code, GroupName: nullString(r.GroupName)}
}

func (r *SubmissionRow) toDomain() domain.Submission {
	s := domain.Submission{
		ID:                 r.SubmissionID,
		SubmissionWindowID: nullInt64(r.SubmissionWindowID),
	}
	if r.ReportingPeriodStart.Valid {
		s.ReportingPeriodStart = r.ReportingPeriodStart.Date.In(time.UTC)
	}
	if r.RevealDate.Valid {
		t := r.RevealDate.Timestamp.UTC()
		s.RevealDate = &t
	}
	return s
}

func (r *TransactionRow) toDomain(src domain.TransactionSource) domain.TransactionRecipient {
	t := domain.TransactionRecipient{
		TransactionID:            r.TransactionID,
		Source:                   src,
		BusinessIdentifier:       nullString(r.BusinessIdentifier),
		UEI:                      nullString(r.UEI),
		LegalName:                nullString(r.LegalName),
		ParentBusinessIdentifier: nullString(r.ParentBusinessIdentifier),
		ParentUEI:                nullString(r.ParentUEI),
		ParentLegalName:          nullString(r.ParentLegalName),
		AddressLine1:             nullString(r.AddressLine1),
		AddressLine2:             nullString(r.AddressLine2),
		AddressLine3:             nullString(r.AddressLine3),
		City:                     nullString(r.City),
		State:                    nullString(r.State),
		Zip5:                     nullString(r.Zip5),
		Zip4:                     nullString(r.Zip4),
		CongressionalDistrict:    nullString(r.CongressionalDistrict),
		CountryCode:              nullString(r.CountryCode),
	}
	if r.ActionDate.Valid {
		t.ActionDate = r.ActionDate.Date.In(time.UTC)
	}
	return t
}

func (r *RecipientLookupRow) toDomain() domain.RecipientLookup {
	return domain.RecipientLookup{
		RecipientHash:            r.RecipientHash,
		LegalBusinessName:        nullString(r.LegalBusinessName),
		BusinessIdentifier:       nullString(r.BusinessIdentifier),
		UEI:                      nullString(r.UEI),
		Source:                   nullString(r.Source),
		ParentBusinessIdentifier: nullString(r.ParentBusinessIdentifier),
		ParentUEI:                nullString(r.ParentUEI),
		ParentLegalBusinessName:  nullString(r.ParentLegalBusinessName),
		AddressLine1:             nullString(r.AddressLine1),
		AddressLine2:             nullString(r.AddressLine2),
		City:                     nullString(r.City),
		State:                    nullString(r.State),
		Zip5:                     nullString(r.Zip5),
		Zip4:                     nullString(r.Zip4),
		CongressionalDistrict:    nullString(r.CongressionalDistrict),
		CountryCode:              nullString(r.CountryCode),
	}
}

func lookupRowFromDomain(l domain.RecipientLookup) RecipientLookupRow {
	return RecipientLookupRow{
		RecipientHash:            l.RecipientHash,
		LegalBusinessName:        toNullString(l.LegalBusinessName),
		BusinessIdentifier:       toNullString(l.BusinessIdentifier),
		UEI:                      toNullString(l.UEI),
		Source:                   toNullString(l.Source),
		ParentBusinessIdentifier: toNullString(l.ParentBusinessIdentifier),
		ParentUEI:                toNullString(l.ParentUEI),
		ParentLegalBusinessName:  toNullString(l.ParentLegalBusinessName),
		AddressLine1:             toNullString(l.AddressLine1),
		AddressLine2:             toNullString(l.AddressLine2),
		City:                     toNullString(l.City),
		State:                    toNullString(l.State),
		Zip5:                     toNullString(l.Zip5),
		Zip4:                     toNullString(l.Zip4),
		CongressionalDistrict:    toNullString(l.CongressionalDistrict),
		CountryCode:              toNullString(l.CountryCode),
	}
}

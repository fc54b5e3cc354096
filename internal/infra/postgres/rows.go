package postgres

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/covid-award-summary/internal/domain"
)

type awardRow struct {
	ID                  int64          `db:"id"`
	Type                pgtype.Text    `db:"type"`
	LatestTransactionID pgtype.Int8    `db:"latest_transaction_id"`
	TotalLoanValue      pgtype.Numeric `db:"total_loan_value"`
}

type subRecordRow struct {
	AwardID                      pgtype.Int8    `db:"award_id"`
	DisasterEmergencyFundCode    string         `db:"disaster_emergency_fund_code"`
	SubmissionID                 int64          `db:"submission_id"`
	GrossOutlayAmount            pgtype.Numeric `db:"gross_outlay_amount_by_award_cpe"`
	DownwardAdjUndeliveredRefund pgtype.Numeric `db:"ussgl487200_downward_adjus_cpe"`
	DownwardAdjDeliveredRefund   pgtype.Numeric `db:"ussgl497200_downward_adjus_cpe"`
	TransactionObligatedAmount   pgtype.Numeric `db:"transaction_obligated_amount"`
	IsFinalBalancesForFY         pgtype.Bool    `db:"is_final_balances_for_fy"`
}

type fundCodeRow struct {
	Code      string      `db:"code"`
	GroupName pgtype.Text `db:"group_name"`
}

type submissionRow struct {
	SubmissionID         int64              `db:"submission_id"`
	ReportingPeriodStart pgtype.Date        `db:"reporting_period_start"`
	SubmissionWindowID   pgtype.Int8        `db:"submission_window_id"`
	RevealDate           pgtype.Timestamptz `db:"submission_reveal_date"`
}

type transactionRow struct {
	TransactionID            int64       `db:"transaction_id"`
	ActionDate               pgtype.Date `db:"action_date"`
	BusinessIdentifier       pgtype.Text `db:"awardee_or_recipient_uniqu"`
	UEI                      pgtype.Text `db:"awardee_or_recipient_uei"`
	LegalName                pgtype.Text `db:"awardee_or_recipient_legal"`
	ParentBusinessIdentifier pgtype.Text `db:"ultimate_parent_unique_ide"`
	ParentUEI                pgtype.Text `db:"ultimate_parent_uei"`
	ParentLegalName          pgtype.Text `db:"ultimate_parent_legal_enti"`
	AddressLine1             pgtype.Text `db:"legal_entity_address_line1"`
	AddressLine2             pgtype.Text `db:"legal_entity_address_line2"`
	AddressLine3             pgtype.Text `db:"legal_entity_address_line3"`
	City                     pgtype.Text `db:"legal_entity_city_name"`
	State                    pgtype.Text `db:"legal_entity_state_code"`
	Zip5                     pgtype.Text `db:"legal_entity_zip5"`
	Zip4                     pgtype.Text `db:"legal_entity_zip_last4"`
	CongressionalDistrict    pgtype.Text `db:"legal_entity_congressional"`
	CountryCode              pgtype.Text `db:"legal_entity_country_code"`
}

type lookupRow struct {
	RecipientHash      string      `db:"recipient_hash"`
	LegalBusinessName  pgtype.Text `db:"legal_business_name"`
	BusinessIdentifier pgtype.Text `db:"duns"`
	UEI                pgtype.Text `db:"uei"`
	Source             pgtype.Text `db:"source"`
}

// numericToDecimal converts a NUMERIC value. NULL becomes an invalid
// NullDecimal; NaN and infinities are rejected.
func numericToDecimal(n pgtype.Numeric) (decimal.NullDecimal, error) {
	if !n.Valid {
		return decimal.NullDecimal{}, nil
	}
	if n.NaN || n.InfinityModifier != pgtype.Finite {
		return decimal.NullDecimal{}, fmt.Errorf("non-finite numeric")
	}
	if n.Int == nil {
		return decimal.NewNullDecimal(decimal.Zero), nil
	}
	return decimal.NewNullDecimal(decimal.NewFromBigInt(n.Int, n.Exp)), nil
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

func text(t pgtype.Text) string {
	if !t.Valid {
		return ""
	}
	return t.String
}

func toText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

func (r awardRow) toDomain() (domain.Award, error) {
	loan, err := numericToDecimal(r.TotalLoanValue)
	if err != nil {
		return domain.Award{}, fmt.Errorf("award %d total_loan_value: %w", r.ID, err)
	}
	return domain.Award{
		ID:                  r.ID,
		Type:                text(r.Type),
		LatestTransactionID: r.LatestTransactionID.Int64,
		TotalLoanValue:      loan,
	}, nil
}

func (r subRecordRow) toDomain() (domain.FinancialSubRecord, error) {
	rec := domain.FinancialSubRecord{
		AwardID:                   r.AwardID.Int64,
		DisasterEmergencyFundCode: r.DisasterEmergencyFundCode,
		SubmissionID:              r.SubmissionID,
		IsFinalBalancesForFY:      r.IsFinalBalancesForFY.Valid && r.IsFinalBalancesForFY.Bool,
	}
	amounts := []struct {
		name string
		src  pgtype.Numeric
		dst  *decimal.NullDecimal
	}{
		{"gross_outlay_amount_by_award_cpe", r.GrossOutlayAmount, &rec.GrossOutlayAmount},
		{"ussgl487200_downward_adjus_cpe", r.DownwardAdjUndeliveredRefund, &rec.DownwardAdjUndeliveredRefund},
		{"ussgl497200_downward_adjus_cpe", r.DownwardAdjDeliveredRefund, &rec.DownwardAdjDeliveredRefund},
		{"transaction_obligated_amount", r.TransactionObligatedAmount, &rec.TransactionObligatedAmount},
	}
	for _, a := range amounts {
		v, err := numericToDecimal(a.src)
		if err != nil {
			return domain.FinancialSubRecord{}, fmt.Errorf("award %d %s: %w", rec.AwardID, a.name, err)
		}
		*a.dst = v
	}
	return rec, nil
}

func (r fundCodeRow) toDomain() domain.DisasterFundCode {
	return domain.DisasterFundCode{Code: r.Code, GroupName: text(r.GroupName)}
}

func (r submissionRow) toDomain() domain.Submission {
	s := domain.Submission{
		ID:                 r.SubmissionID,
		SubmissionWindowID: r.SubmissionWindowID.Int64,
	}
	if r.ReportingPeriodStart.Valid {
		d := r.ReportingPeriodStart.Time
		s.ReportingPeriodStart = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	}
	if r.RevealDate.Valid {
		t := r.RevealDate.Time.UTC()
		s.RevealDate = &t
	}
	return s
}

func (r transactionRow) toDomain(src domain.TransactionSource) domain.TransactionRecipient {
	t := domain.TransactionRecipient{
		TransactionID:            r.TransactionID,
		Source:                   src,
		BusinessIdentifier:       text(r.BusinessIdentifier),
		UEI:                      text(r.UEI),
		LegalName:                text(r.LegalName),
		ParentBusinessIdentifier: text(r.ParentBusinessIdentifier),
		ParentUEI:                text(r.ParentUEI),
		ParentLegalName:          text(r.ParentLegalName),
		AddressLine1:             text(r.AddressLine1),
		AddressLine2:             text(r.AddressLine2),
		AddressLine3:             text(r.AddressLine3),
		City:                     text(r.City),
		State:                    text(r.State),
		Zip5:                     text(r.Zip5),
		Zip4:                     text(r.Zip4),
		CongressionalDistrict:    text(r.CongressionalDistrict),
		CountryCode:              text(r.CountryCode),
	}
	if r.ActionDate.Valid {
		d := r.ActionDate.Time
		t.ActionDate = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	}
	return t
}

func (r lookupRow) toDomain() domain.RecipientLookup {
	return domain.RecipientLookup{
		RecipientHash:      r.RecipientHash,
		LegalBusinessName:  text(r.LegalBusinessName),
		BusinessIdentifier: text(r.BusinessIdentifier),
		UEI:                text(r.UEI),
		Source:             text(r.Source),
	}
}

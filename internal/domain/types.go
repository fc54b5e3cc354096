// Package domain holds the source and output records of the COVID-19 award
// financial summary. Source records carry no storage tags; each infra adapter
// maps its own row structs onto them. AwardFinancialSummary is the exception:
// its json tags are the NDJSON layout shared by exports and summary loads.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CovidGroupName is the disaster emergency fund code group that participates
// in the summary.
const CovidGroupName = "covid_19"

// ReportingPeriodCutoff is the earliest reporting period start whose
// submissions count toward the summary.
var ReportingPeriodCutoff = time.Date(2020, time.April, 1, 0, 0, 0, 0, time.UTC)

// TransactionSource tells which transaction table a recipient record came from.
type TransactionSource string

const (
	// SourceProcurement marks contract transactions (FPDS).
	SourceProcurement TransactionSource = "procurement"
	// SourceAssistance marks financial assistance transactions (FABS).
	SourceAssistance TransactionSource = "assistance"
)

// Award is the system-of-record award. Immutable from this system's view.
type Award struct {
	ID                  int64
	Type                string
	LatestTransactionID int64
	TotalLoanValue      decimal.NullDecimal
}

// FinancialSubRecord is one File C row: an award's share of a financial
// account balance reported in one submission.
type FinancialSubRecord struct {
	AwardID                      int64
	DisasterEmergencyFundCode    string
	SubmissionID                 int64
	GrossOutlayAmount            decimal.NullDecimal
	DownwardAdjUndeliveredRefund decimal.NullDecimal // USSGL 487200
	DownwardAdjDeliveredRefund   decimal.NullDecimal // USSGL 497200
	TransactionObligatedAmount   decimal.NullDecimal
	IsFinalBalancesForFY         bool
}

// DisasterFundCode tags a DEFC with its program group.
type DisasterFundCode struct {
	Code      string
	GroupName string
}

// Submission carries the attributes that gate whether a submission's data is
// visible. RevealDate is nil when the window has no reveal date yet.
type Submission struct {
	ID                   int64
	ReportingPeriodStart time.Time
	SubmissionWindowID   int64
	RevealDate           *time.Time
}

// Revealed reports whether the submission window is public at asOf.
func (s Submission) Revealed(asOf time.Time) bool {
	return s.RevealDate != nil && !s.RevealDate.After(asOf)
}

// TransactionRecipient is the recipient side of a transaction. Empty strings
// mean the source column was NULL.
type TransactionRecipient struct {
	TransactionID      int64
	Source             TransactionSource
	ActionDate         time.Time
	BusinessIdentifier string
	UEI                string
	LegalName          string

	ParentBusinessIdentifier string
	ParentUEI                string
	ParentLegalName          string

	AddressLine1          string
	AddressLine2          string
	AddressLine3          string
	City                  string
	State                 string
	Zip5                  string
	Zip4                  string
	CongressionalDistrict string
	CountryCode           string
}

// RecipientLookup is a curated recipient identity keyed by recipient hash.
type RecipientLookup struct {
	RecipientHash      string
	LegalBusinessName  string
	BusinessIdentifier string
	UEI                string
	Source             string

	ParentBusinessIdentifier string
	ParentUEI                string
	ParentLegalBusinessName  string

	AddressLine1          string
	AddressLine2          string
	City                  string
	State                 string
	Zip5                  string
	Zip4                  string
	CongressionalDistrict string
	CountryCode           string
}

// AwardFinancialSummary is one output row. Exactly one exists per award with
// nonzero outlay, obligation or loan value.
type AwardFinancialSummary struct {
	AwardID        int64           `json:"award_id"`
	Type           string          `json:"type"`
	DefCodes       []string        `json:"def_codes"`
	Outlay         decimal.Decimal `json:"outlay"`
	Obligation     decimal.Decimal `json:"obligation"`
	TotalLoanValue decimal.Decimal `json:"total_loan_value"`
	RecipientHash  string          `json:"recipient_hash"`
	RecipientName  string          `json:"recipient_name"`
}

// Snapshot is a single point-in-time read of every source table. AsOf is the
// instant used as "now" for reveal-date gating, so re-running a refresh over
// the same snapshot yields the same rows.
type Snapshot struct {
	AsOf                    time.Time
	Awards                  []Award
	SubRecords              []FinancialSubRecord
	FundCodes               []DisasterFundCode
	Submissions             []Submission
	ProcurementTransactions []TransactionRecipient
	AssistanceTransactions  []TransactionRecipient
	RecipientLookups        []RecipientLookup
}

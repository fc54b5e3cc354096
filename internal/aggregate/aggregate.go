// Package aggregate reduces File C financial sub-records to per-award COVID-19
// outlay and obligation totals.
package aggregate

import (
	"sort"
	"time"

	"github.com/dvloznov/covid-award-summary/internal/domain"
	"github.com/shopspring/decimal"
)

// Group is the reduction of all qualifying sub-records of one award.
type Group struct {
	AwardID    int64
	DefCodes   []string
	Outlay     decimal.Decimal
	Obligation decimal.Decimal
}

// Aggregator filters and reduces sub-records against fixed reference data.
type Aggregator struct {
	covidCodes  map[string]bool
	submissions map[int64]domain.Submission
	asOf        time.Time
}

// New builds an Aggregator. asOf is the instant reveal dates are compared to.
func New(codes []domain.DisasterFundCode, submissions []domain.Submission, asOf time.Time) *Aggregator {
	a := &Aggregator{
		covidCodes:  make(map[string]bool),
		submissions: make(map[int64]domain.Submission, len(submissions)),
		asOf:        asOf,
	}
	for _, c := range codes {
		if c.GroupName == domain.CovidGroupName {
			a.covidCodes[c.Code] = true
		}
	}
	for _, s := range submissions {
		a.submissions[s.ID] = s
	}
	return a
}

// Include reports whether a sub-record takes part in the aggregation at all.
func (a *Aggregator) Include(rec domain.FinancialSubRecord) bool {
	if rec.AwardID == 0 || !a.covidCodes[rec.DisasterEmergencyFundCode] {
		return false
	}
	sub, ok := a.submissions[rec.SubmissionID]
	if !ok {
		return false
	}
	if sub.ReportingPeriodStart.Before(domain.ReportingPeriodCutoff) {
		return false
	}
	return sub.Revealed(a.asOf)
}

// Aggregate groups included sub-records by award. Awards without any included
// sub-record produce no group. Groups are ordered by award id.
func (a *Aggregator) Aggregate(recs []domain.FinancialSubRecord) []Group {
	type acc struct {
		codes      map[string]struct{}
		outlay     decimal.Decimal
		obligation decimal.Decimal
	}

	byAward := make(map[int64]*acc)
	for _, rec := range recs {
		if !a.Include(rec) {
			continue
		}
		g, ok := byAward[rec.AwardID]
		if !ok {
			g = &acc{codes: make(map[string]struct{})}
			byAward[rec.AwardID] = g
		}
		g.codes[rec.DisasterEmergencyFundCode] = struct{}{}
		g.outlay = g.outlay.Add(Outlay(rec))
		g.obligation = g.obligation.Add(orZero(rec.TransactionObligatedAmount))
	}

	groups := make([]Group, 0, len(byAward))
	for id, g := range byAward {
		codes := make([]string, 0, len(g.codes))
		for c := range g.codes {
			codes = append(codes, c)
		}
		sort.Strings(codes)
		groups = append(groups, Group{
			AwardID:    id,
			DefCodes:   codes,
			Outlay:     g.outlay,
			Obligation: g.obligation,
		})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].AwardID < groups[j].AwardID })
	return groups
}

// Outlay is a sub-record's contribution to outlay: gross outlay plus both
// downward adjustment refunds, only when it is a fiscal-year final balance.
func Outlay(rec domain.FinancialSubRecord) decimal.Decimal {
	if !rec.IsFinalBalancesForFY {
		return decimal.Zero
	}
	return orZero(rec.GrossOutlayAmount).
		Add(orZero(rec.DownwardAdjUndeliveredRefund)).
		Add(orZero(rec.DownwardAdjDeliveredRefund))
}

func orZero(d decimal.NullDecimal) decimal.Decimal {
	if !d.Valid {
		return decimal.Zero
	}
	return d.Decimal
}

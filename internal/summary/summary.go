// Package summary joins aggregated COVID-19 financial totals to award metadata
// and resolved recipients, producing the award financial summary rows.
package summary

import (
	"errors"
	"fmt"

	"github.com/dvloznov/covid-award-summary/internal/aggregate"
	"github.com/dvloznov/covid-award-summary/internal/domain"
	"github.com/dvloznov/covid-award-summary/internal/recipient"
	"github.com/hashicorp/go-multierror"
	"github.com/shopspring/decimal"
)

var (
	// ErrReferentialAnomaly is returned when an aggregated award has no award
	// record. Upstream referential integrity should make this impossible.
	ErrReferentialAnomaly = errors.New("aggregated award has no award record")

	// ErrDuplicateAward is returned when a row set carries an award id twice.
	ErrDuplicateAward = errors.New("duplicate award id in summary")
)

// Build runs the aggregator and the joiner over one snapshot. Rows are
// ordered by award id.
func Build(snap *domain.Snapshot) ([]domain.AwardFinancialSummary, error) {
	if snap == nil {
		return nil, fmt.Errorf("Build: nil snapshot")
	}
	agg := aggregate.New(snap.FundCodes, snap.Submissions, snap.AsOf)
	groups := agg.Aggregate(snap.SubRecords)

	j := NewJoiner(snap.Awards, snap.ProcurementTransactions, snap.AssistanceTransactions, recipient.NewResolver(snap.RecipientLookups))
	rows, err := j.Join(groups)
	if err != nil {
		return nil, fmt.Errorf("Build: %w", err)
	}
	return rows, nil
}

// Joiner enriches aggregated groups with award and recipient data.
type Joiner struct {
	awards      map[int64]domain.Award
	procurement map[int64]*domain.TransactionRecipient
	assistance  map[int64]*domain.TransactionRecipient
	resolver    *recipient.Resolver
}

// NewJoiner indexes awards and transactions by id.
func NewJoiner(awards []domain.Award, procurement, assistance []domain.TransactionRecipient, resolver *recipient.Resolver) *Joiner {
	j := &Joiner{
		awards:      make(map[int64]domain.Award, len(awards)),
		procurement: indexTransactions(procurement),
		assistance:  indexTransactions(assistance),
		resolver:    resolver,
	}
	for _, a := range awards {
		j.awards[a.ID] = a
	}
	return j
}

// Join builds one row per group and drops rows whose outlay, obligation and
// loan value are all zero. Every group without an award is reported.
func (j *Joiner) Join(groups []aggregate.Group) ([]domain.AwardFinancialSummary, error) {
	var anomalies *multierror.Error
	rows := make([]domain.AwardFinancialSummary, 0, len(groups))

	for _, g := range groups {
		award, ok := j.awards[g.AwardID]
		if !ok {
			anomalies = multierror.Append(anomalies, fmt.Errorf("award %d: %w", g.AwardID, ErrReferentialAnomaly))
			continue
		}

		loanValue := decimal.Zero
		if award.TotalLoanValue.Valid {
			loanValue = award.TotalLoanValue.Decimal
		}
		if g.Outlay.IsZero() && g.Obligation.IsZero() && loanValue.IsZero() {
			continue
		}

		id := j.resolver.Resolve(j.procurement[award.LatestTransactionID], j.assistance[award.LatestTransactionID])
		rows = append(rows, domain.AwardFinancialSummary{
			AwardID:        award.ID,
			Type:           award.Type,
			DefCodes:       g.DefCodes,
			Outlay:         g.Outlay,
			Obligation:     g.Obligation,
			TotalLoanValue: loanValue,
			RecipientHash:  id.Hash,
			RecipientName:  id.Name,
		})
	}

	if err := anomalies.ErrorOrNil(); err != nil {
		return nil, err
	}
	return rows, nil
}

// Verify checks that every award id appears once.
func Verify(rows []domain.AwardFinancialSummary) error {
	seen := make(map[int64]struct{}, len(rows))
	for _, r := range rows {
		if _, dup := seen[r.AwardID]; dup {
			return fmt.Errorf("award %d: %w", r.AwardID, ErrDuplicateAward)
		}
		seen[r.AwardID] = struct{}{}
	}
	return nil
}

func indexTransactions(txs []domain.TransactionRecipient) map[int64]*domain.TransactionRecipient {
	idx := make(map[int64]*domain.TransactionRecipient, len(txs))
	for i := range txs {
		idx[txs[i].TransactionID] = &txs[i]
	}
	return idx
}

package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/dvloznov/covid-award-summary/internal/domain"
	"github.com/dvloznov/covid-award-summary/internal/pipeline"
	"github.com/dvloznov/covid-award-summary/internal/recipient"
)

var (
	heading = color.New(color.FgCyan, color.Bold)
	warning = color.New(color.FgYellow)
	success = color.New(color.FgGreen)
	failure = color.New(color.FgRed)
)

// selectRows filters rows to awardID (when non-zero) and truncates to limit
// (when positive).
func selectRows(rows []domain.AwardFinancialSummary, awardID int64, limit int) []domain.AwardFinancialSummary {
	if awardID != 0 {
		var out []domain.AwardFinancialSummary
		for _, r := range rows {
			if r.AwardID == awardID {
				out = append(out, r)
			}
		}
		rows = out
	}
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

func printSummaryTable(w io.Writer, asOf time.Time, rows []domain.AwardFinancialSummary) {
	heading.Fprintf(w, "\n=== Award Financial Summary (as of %s) ===\n", asOf.UTC().Format(time.RFC3339))
	if len(rows) == 0 {
		warning.Fprintln(w, "No rows.")
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Award", "Type", "DEF Codes", "Outlay", "Obligation", "Loan Value", "Recipient Hash", "Recipient"})
	table.SetAutoWrapText(false)
	for _, r := range rows {
		table.Append([]string{
			strconv.FormatInt(r.AwardID, 10),
			r.Type,
			strings.Join(r.DefCodes, ","),
			r.Outlay.StringFixed(2),
			r.Obligation.StringFixed(2),
			r.TotalLoanValue.StringFixed(2),
			r.RecipientHash,
			r.RecipientName,
		})
	}
	table.Render()
}

func printRunResult(w io.Writer, res *pipeline.RunResult) {
	success.Fprintf(w, "%s finished\n", res.Pipeline)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Field", "Value"})
	table.Append([]string{"Run ID", res.RunID})
	if res.AsOf != nil {
		table.Append([]string{"As of", res.AsOf.UTC().Format(time.RFC3339)})
	}
	table.Append([]string{"Elapsed", res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond).String()})
	if res.Backfill != nil {
		table.Append([]string{"Candidates", strconv.Itoa(res.Backfill.Candidates)})
		table.Append([]string{"Selected", strconv.Itoa(res.Backfill.Selected)})
		table.Append([]string{"Inserted", strconv.Itoa(res.Backfill.Inserted)})
		table.Append([]string{"Skipped", strconv.Itoa(res.Backfill.Skipped)})
	} else {
		table.Append([]string{"Rows", strconv.Itoa(res.Rows)})
		table.Append([]string{"Fingerprint", res.Fingerprint})
		table.Append([]string{"Published", strconv.FormatBool(res.Published)})
	}
	table.Render()

	if res.Backfill == nil && !res.Published {
		failure.Fprintln(w, "Summary was not published.")
	}
}

func printResolve(w io.Writer, f recipient.Fields) {
	key, rule := recipient.FallbackKey(f)
	fmt.Fprintf(w, "rule: %s\nkey:  %s\nhash: %s\n", rule, key, recipient.HashKey(key))
}

package bigquery

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"

	"github.com/dvloznov/covid-award-summary/internal/domain"
	"github.com/dvloznov/covid-award-summary/internal/export"
	"github.com/dvloznov/covid-award-summary/internal/logger"
	"github.com/dvloznov/covid-award-summary/internal/summary"
)

// SummaryRow is the schema of the published summary table.
type SummaryRow struct {
	AwardID        int64    `bigquery:"award_id"`
	Type           string   `bigquery:"type"`
	DefCodes       []string `bigquery:"def_codes"`
	Outlay         *big.Rat `bigquery:"outlay"`
	Obligation     *big.Rat `bigquery:"obligation"`
	TotalLoanValue *big.Rat `bigquery:"total_loan_value"`
	RecipientHash  string   `bigquery:"recipient_hash"`
	RecipientName  string   `bigquery:"recipient_name"`
}

// SummarySchema is inferred from SummaryRow.
func SummarySchema() (bigquery.Schema, error) {
	schema, err := bigquery.InferSchema(SummaryRow{})
	if err != nil {
		return nil, fmt.Errorf("SummarySchema: %w", err)
	}
	return schema, nil
}

// ReplaceSummaryWithClient replaces the summary table with rows in a single
// WRITE_TRUNCATE load job. BigQuery commits the load atomically, so readers
// see either the previous table or the new one. When cfg.ExportBucket is set
// the NDJSON is staged in Cloud Storage first and kept as an export.
func ReplaceSummaryWithClient(ctx context.Context, client *bigquery.Client, objects export.ObjectStore, cfg Config, rows []domain.AwardFinancialSummary) error {
	log := logger.FromContext(ctx)

	var buf bytes.Buffer
	if err := summary.WriteNDJSON(&buf, rows); err != nil {
		return fmt.Errorf("ReplaceSummaryWithClient: encoding rows: %w", err)
	}

	schema, err := SummarySchema()
	if err != nil {
		return fmt.Errorf("ReplaceSummaryWithClient: %w", err)
	}

	var src bigquery.LoadSource
	if cfg.ExportBucket != "" {
		object := export.ObjectName(cfg.SummaryTable, time.Now(), uuid.NewString())
		uri, err := objects.Upload(ctx, cfg.ExportBucket, object, &buf)
		if err != nil {
			return fmt.Errorf("ReplaceSummaryWithClient: staging export: %w", err)
		}
		gcsRef := bigquery.NewGCSReference(uri)
		gcsRef.SourceFormat = bigquery.JSON
		gcsRef.Schema = schema
		src = gcsRef
		log.Info().Str("gcs_uri", uri).Msg("Staged summary export")
	} else {
		readerSrc := bigquery.NewReaderSource(&buf)
		readerSrc.SourceFormat = bigquery.JSON
		readerSrc.Schema = schema
		src = readerSrc
	}

	loader := client.DatasetInProject(cfg.ProjectID, cfg.TargetDataset).Table(cfg.SummaryTable).LoaderFrom(src)
	loader.CreateDisposition = bigquery.CreateIfNeeded
	loader.WriteDisposition = bigquery.WriteTruncate

	job, err := loader.Run(ctx)
	if err != nil {
		return fmt.Errorf("ReplaceSummaryWithClient: starting load job: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("ReplaceSummaryWithClient: waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("ReplaceSummaryWithClient: load job failed: %w", err)
	}

	log.Info().
		Str("table", cfg.TargetDataset+"."+cfg.SummaryTable).
		Int("rows", len(rows)).
		Str("job_id", job.ID()).
		Msg("Replaced summary table")
	return nil
}

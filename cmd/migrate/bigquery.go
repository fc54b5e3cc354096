package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

// bqMigrator keeps schema_migrations in the target BigQuery dataset.
type bqMigrator struct {
	client    *bigquery.Client
	projectID string
	datasetID string
}

func newBQMigrator(ctx context.Context, projectID, datasetID string) (*bqMigrator, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating BigQuery client: %w", err)
	}
	return &bqMigrator{client: client, projectID: projectID, datasetID: datasetID}, nil
}

func (m *bqMigrator) table() string {
	return fmt.Sprintf("`%s.%s.schema_migrations`", m.projectID, m.datasetID)
}

func (m *bqMigrator) Close() error {
	return m.client.Close()
}

// Ensure creates the schema_migrations table if it doesn't exist
func (m *bqMigrator) Ensure(ctx context.Context) error {
	sql := `
		CREATE TABLE IF NOT EXISTS ` + m.table() + ` (
			version       INT64 NOT NULL,
			name          STRING NOT NULL,
			applied_at    TIMESTAMP NOT NULL,
			checksum      STRING,
			applied_by    STRING
		)`
	return m.run(ctx, m.client.Query(sql))
}

// Applied retrieves the list of already applied migrations
func (m *bqMigrator) Applied(ctx context.Context) ([]AppliedMigration, error) {
	query := m.client.Query(`
		SELECT version, name, applied_at, checksum, applied_by
		FROM ` + m.table() + `
		ORDER BY version ASC`)
	it, err := query.Read(ctx)
	if err != nil {
		// If table doesn't exist yet, return empty list
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
			return []AppliedMigration{}, nil
		}
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}

	var applied []AppliedMigration
	for {
		var row struct {
			Version   int64                  `bigquery:"version"`
			Name      string                 `bigquery:"name"`
			AppliedAt bigquery.NullTimestamp `bigquery:"applied_at"`
			Checksum  bigquery.NullString    `bigquery:"checksum"`
			AppliedBy bigquery.NullString    `bigquery:"applied_by"`
		}

		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating results: %w", err)
		}

		applied = append(applied, AppliedMigration{
			Version:   int(row.Version),
			Name:      row.Name,
			AppliedAt: row.AppliedAt.Timestamp,
			Checksum:  row.Checksum.StringVal,
			AppliedBy: row.AppliedBy.StringVal,
		})
	}

	return applied, nil
}

// Apply executes a migration and records it. BigQuery DDL is not
// transactional, so a failure between the two steps leaves the migration
// applied but unrecorded; migrations use IF NOT EXISTS to tolerate a rerun.
func (m *bqMigrator) Apply(ctx context.Context, migration Migration, appliedBy string) error {
	if err := m.run(ctx, m.client.Query(migration.SQL)); err != nil {
		return fmt.Errorf("executing: %w", err)
	}

	record := m.client.Query(`
		INSERT INTO ` + m.table() + `
		(version, name, applied_at, checksum, applied_by)
		VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)`)
	record.Parameters = []bigquery.QueryParameter{
		{Name: "version", Value: migration.Version},
		{Name: "name", Value: migration.Name},
		{Name: "checksum", Value: migration.Checksum},
		{Name: "applied_by", Value: appliedBy},
	}
	if err := m.run(ctx, record); err != nil {
		return fmt.Errorf("recording: %w", err)
	}
	return nil
}

func (m *bqMigrator) run(ctx context.Context, query *bigquery.Query) error {
	job, err := query.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}

	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}

	return nil
}

// Package backend opens the store.Store selected by configuration.
package backend

import (
	"context"
	"fmt"
	"io"

	"github.com/hashicorp/go-multierror"

	"github.com/dvloznov/covid-award-summary/internal/config"
	"github.com/dvloznov/covid-award-summary/internal/export"
	infraBQ "github.com/dvloznov/covid-award-summary/internal/infra/bigquery"
	"github.com/dvloznov/covid-award-summary/internal/infra/inmemory"
	"github.com/dvloznov/covid-award-summary/internal/infra/postgres"
	"github.com/dvloznov/covid-award-summary/internal/logger"
	"github.com/dvloznov/covid-award-summary/internal/store"
)

// Open validates cfg and connects to its backend. The caller closes the
// returned store.
func Open(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("Open: %w", err)
	}
	log := logger.FromContext(ctx)

	switch cfg.Backend {
	case config.BackendBigQuery:
		var objects *export.GCSStore
		if cfg.ExportBucket != "" {
			var err error
			objects, err = export.NewGCSStore(ctx)
			if err != nil {
				return nil, fmt.Errorf("Open: %w", err)
			}
		}
		repo, err := infraBQ.NewRepository(ctx, infraBQ.Config{
			ProjectID:     cfg.ProjectID,
			SourceDataset: cfg.SourceDataset,
			TargetDataset: cfg.TargetDataset,
			SummaryTable:  cfg.SummaryTable,
			BackfillTable: cfg.BackfillTable,
			ExportBucket:  cfg.ExportBucket,
		}, exportOrNil(objects))
		if err != nil {
			if objects != nil {
				objects.Close()
			}
			return nil, fmt.Errorf("Open: %w", err)
		}
		log.Info().
			Str("project", cfg.ProjectID).
			Str("source_dataset", cfg.SourceDataset).
			Str("target_dataset", cfg.TargetDataset).
			Bool("gcs_staging", objects != nil).
			Msg("Using BigQuery backend")
		if objects == nil {
			return repo, nil
		}
		return &withClosers{Store: repo, extra: []io.Closer{objects}}, nil

	case config.BackendPostgres:
		repo, err := postgres.NewRepository(ctx, postgres.Config{
			DatabaseURL:   cfg.DatabaseURL,
			SummaryTable:  cfg.SummaryTable,
			BackfillTable: cfg.BackfillTable,
		})
		if err != nil {
			return nil, fmt.Errorf("Open: %w", err)
		}
		log.Info().Msg("Using PostgreSQL backend")
		return repo, nil

	case config.BackendMemory:
		if cfg.MemoryFixture == "" {
			log.Warn().Msg("Using in-memory backend with empty source tables")
			return inmemory.NewStore(nil), nil
		}
		st, err := inmemory.LoadFixtureFile(cfg.MemoryFixture)
		if err != nil {
			return nil, fmt.Errorf("Open: %w", err)
		}
		log.Info().Str("fixture", cfg.MemoryFixture).Msg("Using in-memory backend")
		return st, nil
	}
	return nil, fmt.Errorf("Open: unknown backend %q", cfg.Backend)
}

// exportOrNil keeps a nil *GCSStore from becoming a non-nil interface.
func exportOrNil(s *export.GCSStore) export.ObjectStore {
	if s == nil {
		return nil
	}
	return s
}

// withClosers closes extra resources after the wrapped store.
type withClosers struct {
	store.Store
	extra []io.Closer
}

func (w *withClosers) Close() error {
	var result error
	if err := w.Store.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	for _, c := range w.extra {
		if err := c.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}

package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"

	"github.com/dvloznov/covid-award-summary/internal/domain"
	"github.com/dvloznov/covid-award-summary/internal/export"
	"github.com/dvloznov/covid-award-summary/internal/store"
)

// Config names the datasets and tables the repository works on.
type Config struct {
	ProjectID     string
	SourceDataset string
	TargetDataset string
	SummaryTable  string
	BackfillTable string
	// ExportBucket, when set, stages summary loads through Cloud Storage.
	ExportBucket string
}

func (c Config) source(table string) string {
	return "`" + c.ProjectID + "." + c.SourceDataset + "." + table + "`"
}

func (c Config) target(table string) string {
	return "`" + c.ProjectID + "." + c.TargetDataset + "." + table + "`"
}

// Repository is the BigQuery implementation of store.Store. It holds a shared
// BigQuery client to avoid creating a new connection for each operation.
type Repository struct {
	client  *bigquery.Client
	objects export.ObjectStore
	cfg     Config
}

// NewRepository creates a repository with its own BigQuery client. objects
// may be nil when cfg.ExportBucket is empty.
func NewRepository(ctx context.Context, cfg Config, objects export.ObjectStore) (*Repository, error) {
	if cfg.ExportBucket != "" && objects == nil {
		return nil, fmt.Errorf("NewRepository: export bucket %q configured without an object store", cfg.ExportBucket)
	}
	client, err := bigquery.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating client: %w", err)
	}
	return &Repository{client: client, objects: objects, cfg: cfg}, nil
}

// Close closes the BigQuery client connection.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// ReadSnapshot delegates to ReadSnapshotWithClient with the shared client.
func (r *Repository) ReadSnapshot(ctx context.Context) (*domain.Snapshot, error) {
	return ReadSnapshotWithClient(ctx, r.client, r.cfg)
}

// ReplaceSummary delegates to ReplaceSummaryWithClient with the shared client.
func (r *Repository) ReplaceSummary(ctx context.Context, rows []domain.AwardFinancialSummary) error {
	return ReplaceSummaryWithClient(ctx, r.client, r.objects, r.cfg, rows)
}

// ListUnidentifiedTransactions delegates to ListUnidentifiedTransactionsWithClient.
func (r *Repository) ListUnidentifiedTransactions(ctx context.Context) ([]domain.TransactionRecipient, error) {
	return ListUnidentifiedTransactionsWithClient(ctx, r.client, r.cfg)
}

// InsertLookupsIfAbsent delegates to InsertLookupsIfAbsentWithClient.
func (r *Repository) InsertLookupsIfAbsent(ctx context.Context, rows []domain.RecipientLookup) (int, error) {
	return InsertLookupsIfAbsentWithClient(ctx, r.client, r.cfg, rows)
}

// Ensure Repository implements the full store contract.
var _ store.Store = (*Repository)(nil)

// Package config loads runtime settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Backend selects the storage adapter.
type Backend string

const (
	BackendBigQuery Backend = "bigquery"
	BackendPostgres Backend = "postgres"
	BackendMemory   Backend = "memory"
)

const (
	DefaultSummaryTable  = "award_financial_summary"
	DefaultBackfillTable = "recipient_lookup_backfill"
)

// Config holds settings shared by every command.
type Config struct {
	Backend Backend

	ProjectID     string
	SourceDataset string
	TargetDataset string
	ExportBucket  string

	DatabaseURL string

	SummaryTable  string
	BackfillTable string

	LogLevel      string
	MemoryFixture string

	// APIToken, when set, is required as a bearer token by cmd/api.
	APIToken string
}

// ErrMissingSetting is returned by Validate when a backend requirement is unset.
var ErrMissingSetting = errors.New("missing required setting")

// Load reads .env files (when present) and then the process environment.
// Variables already set in the environment take precedence over the files.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("Load: reading %s: %w", f, err)
		}
	}
	return FromEnv(), nil
}

// FromEnv builds a Config from the process environment only.
func FromEnv() *Config {
	return &Config{
		Backend:       Backend(strings.ToLower(getEnv("SUMMARY_BACKEND", string(BackendBigQuery)))),
		ProjectID:     os.Getenv("GCP_PROJECT_ID"),
		SourceDataset: getEnv("BQ_SOURCE_DATASET", "usaspending"),
		TargetDataset: getEnv("BQ_TARGET_DATASET", "usaspending"),
		ExportBucket:  os.Getenv("GCS_EXPORT_BUCKET"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		SummaryTable:  getEnv("SUMMARY_TABLE", DefaultSummaryTable),
		BackfillTable: getEnv("BACKFILL_TABLE", DefaultBackfillTable),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		MemoryFixture: os.Getenv("MEMORY_FIXTURE"),
		APIToken:      os.Getenv("API_TOKEN"),
	}
}

// Validate checks that the selected backend has what it needs.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendBigQuery:
		if c.ProjectID == "" {
			return fmt.Errorf("Validate: GCP_PROJECT_ID: %w", ErrMissingSetting)
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("Validate: DATABASE_URL: %w", ErrMissingSetting)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("Validate: unknown backend %q", c.Backend)
	}
	if c.SummaryTable == "" || c.BackfillTable == "" {
		return fmt.Errorf("Validate: table names: %w", ErrMissingSetting)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

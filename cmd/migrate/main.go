// Command migrate applies the numbered SQL files under migrations/<driver> to
// the summary's target store and records them in schema_migrations.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dvloznov/covid-award-summary/internal/config"
	"github.com/dvloznov/covid-award-summary/internal/logger"
)

// migrator is one schema_migrations-backed target.
type migrator interface {
	Ensure(ctx context.Context) error
	Applied(ctx context.Context) ([]AppliedMigration, error)
	Apply(ctx context.Context, m Migration, appliedBy string) error
	Close() error
}

var (
	envFile       = flag.String("env", ".env", "Optional dotenv file")
	driver        = flag.String("driver", "", "bigquery or postgres (defaults to SUMMARY_BACKEND)")
	appliedBy     = flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
	migrationsDir = flag.String("migrations", "migrations", "Path to the migrations root; files are read from <root>/<driver>")
	dryRun        = flag.Bool("dry-run", false, "List pending migrations without applying them")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log := logger.NewWithLevel(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	name := *driver
	if name == "" {
		name = string(cfg.Backend)
	}
	cfg.Backend = config.Backend(name)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	var m migrator
	switch cfg.Backend {
	case config.BackendBigQuery:
		m, err = newBQMigrator(ctx, cfg.ProjectID, cfg.TargetDataset)
	case config.BackendPostgres:
		m, err = newPGMigrator(ctx, cfg.DatabaseURL)
	default:
		log.Fatal().Str("driver", name).Msg("Driver has no migrations")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect")
	}
	defer m.Close()

	dir, err := findDir(filepath.Join(*migrationsDir, name))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to locate migrations")
	}
	migrations, err := readMigrations(os.DirFS(dir), map[string]string{
		"PROJECT_ID":     cfg.ProjectID,
		"DATASET_ID":     cfg.TargetDataset,
		"SUMMARY_TABLE":  cfg.SummaryTable,
		"BACKFILL_TABLE": cfg.BackfillTable,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read migrations")
	}
	log.Info().Str("driver", name).Str("dir", dir).Int("files", len(migrations)).Msg("Found migration files")

	// Ensure schema_migrations table exists
	if err := m.Ensure(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure schema_migrations table")
	}

	applied, err := m.Applied(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to get applied migrations")
	}

	pending, drifted := plan(migrations, applied)
	for _, d := range drifted {
		log.Warn().Str("migration", d.Filename).Msg("Applied migration has changed since it was applied")
	}
	log.Info().Int("applied", len(applied)).Int("pending", len(pending)).Msg("Migration plan")

	for _, migration := range pending {
		if *dryRun {
			log.Info().Str("migration", migration.Filename).Msg("[PENDING]")
			continue
		}

		log.Info().Str("migration", migration.Filename).Msg("[RUN]")
		if err := m.Apply(ctx, migration, *appliedBy); err != nil {
			log.Fatal().Err(err).Str("migration", migration.Filename).Msg("Failed to apply migration")
		}
		log.Info().Str("migration", migration.Filename).Msg("[OK]")
	}

	if len(pending) == 0 {
		log.Info().Msg("No new migrations to apply. Database is up to date.")
	} else if !*dryRun {
		log.Info().Int("count", len(pending)).Msg("Successfully applied migrations")
	}
}

// findDir returns dir, or the same path from the repository root when run
// from cmd/migrate.
func findDir(dir string) (string, error) {
	if _, err := os.Stat(dir); err == nil {
		return dir, nil
	}
	alt := filepath.Join("..", "..", dir)
	if _, err := os.Stat(alt); err == nil {
		return alt, nil
	}
	return "", fmt.Errorf("migrations directory not found: %s", dir)
}

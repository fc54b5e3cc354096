package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// pgMigrator keeps schema_migrations in the connected PostgreSQL database.
// Each migration and its record commit in one transaction.
type pgMigrator struct {
	conn *pgx.Conn
}

func newPGMigrator(ctx context.Context, databaseURL string) (*pgMigrator, error) {
	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to PostgreSQL: %w", err)
	}
	return &pgMigrator{conn: conn}, nil
}

func (m *pgMigrator) Close() error {
	return m.conn.Close(context.Background())
}

func (m *pgMigrator) Ensure(ctx context.Context) error {
	_, err := m.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version     INTEGER PRIMARY KEY,
			name        TEXT NOT NULL,
			applied_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			checksum    TEXT,
			applied_by  TEXT
		)`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}
	return nil
}

type appliedRow struct {
	Version   int32     `db:"version"`
	Name      string    `db:"name"`
	AppliedAt time.Time `db:"applied_at"`
	Checksum  *string   `db:"checksum"`
	AppliedBy *string   `db:"applied_by"`
}

func (m *pgMigrator) Applied(ctx context.Context) ([]AppliedMigration, error) {
	rows, err := m.conn.Query(ctx, `
		SELECT version, name, applied_at, checksum, applied_by
		FROM schema_migrations
		ORDER BY version ASC`)
	if err != nil {
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}
	got, err := pgx.CollectRows(rows, pgx.RowToStructByName[appliedRow])
	if err != nil {
		return nil, fmt.Errorf("scanning applied migrations: %w", err)
	}

	applied := make([]AppliedMigration, 0, len(got))
	for _, r := range got {
		am := AppliedMigration{Version: int(r.Version), Name: r.Name, AppliedAt: r.AppliedAt}
		if r.Checksum != nil {
			am.Checksum = *r.Checksum
		}
		if r.AppliedBy != nil {
			am.AppliedBy = *r.AppliedBy
		}
		applied = append(applied, am)
	}
	return applied, nil
}

func (m *pgMigrator) Apply(ctx context.Context, migration Migration, appliedBy string) error {
	return pgx.BeginFunc(ctx, m.conn, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, migration.SQL); err != nil {
			return fmt.Errorf("executing: %w", err)
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO schema_migrations (version, name, checksum, applied_by)
			VALUES ($1, $2, $3, $4)`,
			migration.Version, migration.Name, migration.Checksum, appliedBy)
		if err != nil {
			return fmt.Errorf("recording: %w", err)
		}
		return nil
	})
}

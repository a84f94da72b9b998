// Package migrations bootstraps the PostgreSQL schema for the settlement
// layer.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

// statements run in order; each is idempotent so Apply can run on every
// startup.
var statements = []string{
	`CREATE TABLE IF NOT EXISTS settlements (
		id TEXT PRIMARY KEY,
		source_chain TEXT NOT NULL,
		dest_chain TEXT NOT NULL,
		amount DOUBLE PRECISION NOT NULL,
		user_id TEXT NOT NULL,
		status TEXT NOT NULL,
		error_message TEXT NOT NULL DEFAULT '',
		burn_tx_hash TEXT NOT NULL DEFAULT '',
		mint_tx_hash TEXT NOT NULL DEFAULT '',
		compensation_tx_hash TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS settlements_status_idx ON settlements (status)`,
	`CREATE TABLE IF NOT EXISTS idempotency_keys (
		key TEXT PRIMARY KEY,
		settlement_id TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
}

// Apply executes all schema migrations against the database.
func Apply(ctx context.Context, db *sql.DB) error {
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}

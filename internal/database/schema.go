package database

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS monitors (
		id           TEXT PRIMARY KEY,
		name         TEXT NOT NULL,
		description  TEXT NOT NULL DEFAULT '',
		source_kind  TEXT NOT NULL,
		source_topic TEXT NOT NULL DEFAULT '',
		config       JSONB NOT NULL,
		enabled      BOOLEAN NOT NULL DEFAULT TRUE,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS monitors_name_idx ON monitors (name)`,
	`CREATE TABLE IF NOT EXISTS monitor_state (
		monitor_id TEXT PRIMARY KEY,
		state      JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS gap_alerts (
		id             UUID PRIMARY KEY,
		monitor_id     TEXT NOT NULL,
		message        TEXT NOT NULL,
		gap_started_at BIGINT NOT NULL,
		status         TEXT NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL,
		resolved_at    TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS gap_alerts_monitor_idx ON gap_alerts (monitor_id, created_at DESC)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS gap_alerts_open_gap_idx ON gap_alerts (monitor_id, gap_started_at) WHERE status = 'ACTIVE'`,
}

// Migrate creates the tables GapWatch needs if they are missing.
func (d *Database) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := d.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d failed: %w", i+1, err)
		}
	}
	return nil
}

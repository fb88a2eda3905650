package database

import (
	"context"
	"fmt"
)

// Migrate creates the monitoring schema. The snapshot table keeps the full
// report as one opaque jsonb column (whole-row replace, never queried
// inside); the three series tables stay columnar because they are queried by
// time range.
func Migrate(ctx context.Context, db *Database) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS target_snapshots (
			id            TEXT PRIMARY KEY,
			db_name       TEXT NOT NULL DEFAULT '',
			last_updated  TIMESTAMPTZ NOT NULL,
			db_is_up      BOOLEAN NOT NULL DEFAULT FALSE,
			os_is_up      BOOLEAN NOT NULL DEFAULT FALSE,
			db_status     TEXT NOT NULL DEFAULT 'UNKNOWN',
			payload       JSONB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS performance_samples (
			target_id       TEXT NOT NULL,
			ts              TIMESTAMPTZ NOT NULL,
			cpu_usage       DOUBLE PRECISION NOT NULL DEFAULT 0,
			memory_usage    DOUBLE PRECISION NOT NULL DEFAULT 0,
			io_read_total   DOUBLE PRECISION NOT NULL DEFAULT 0,
			io_write_total  DOUBLE PRECISION NOT NULL DEFAULT 0,
			network_up      DOUBLE PRECISION NOT NULL DEFAULT 0,
			network_down    DOUBLE PRECISION NOT NULL DEFAULT 0,
			active_sessions INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (target_id, ts)
		)`,
		`CREATE TABLE IF NOT EXISTS io_detail_samples (
			target_id   TEXT NOT NULL,
			ts          TIMESTAMPTZ NOT NULL,
			device      TEXT NOT NULL,
			mount_point TEXT NOT NULL DEFAULT '',
			read_mb_s   DOUBLE PRECISION NOT NULL DEFAULT 0,
			write_mb_s  DOUBLE PRECISION NOT NULL DEFAULT 0,
			PRIMARY KEY (target_id, ts, device)
		)`,
		`CREATE TABLE IF NOT EXISTS wait_event_samples (
			target_id       TEXT NOT NULL,
			ts              TIMESTAMPTZ NOT NULL,
			event_name      TEXT NOT NULL,
			session_count   INTEGER NOT NULL DEFAULT 0,
			latency_seconds DOUBLE PRECISION,
			PRIMARY KEY (target_id, ts, event_name)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_perf_samples_target_ts ON performance_samples (target_id, ts)`,
		`CREATE INDEX IF NOT EXISTS idx_io_detail_target_ts ON io_detail_samples (target_id, ts)`,
		`CREATE INDEX IF NOT EXISTS idx_wait_event_target_ts ON wait_event_samples (target_id, ts)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate failed: %w", err)
		}
	}
	return nil
}

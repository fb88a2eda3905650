package database

import (
	"context"
	"fmt"
	"time"

	"github.com/proactivedb/fleetmon/internal/monitoring/model"
)

// TimeSeriesRepo is the PostgreSQL-backed store.TimeSeriesStore. All appends
// are idempotent on their natural key via ON CONFLICT DO NOTHING, so a
// re-submitted report is a silent no-op rather than a duplicate row.
type TimeSeriesRepo struct {
	db *Database
}

func NewTimeSeriesRepo(db *Database) *TimeSeriesRepo { return &TimeSeriesRepo{db: db} }

// AppendSamples writes the metric sample plus its io-detail and wait-event
// rows as one transaction: either all rows for this report timestamp commit
// or none do.
func (r *TimeSeriesRepo) AppendSamples(ctx context.Context, sample *model.MetricSample, details []model.IoDetailSample, events []model.WaitEventSample) error {
	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin sample tx: %w", err)
	}
	defer tx.Rollback()

	if sample != nil {
		const q = `
		INSERT INTO performance_samples (target_id, ts, cpu_usage, memory_usage, io_read_total, io_write_total, network_up, network_down, active_sessions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (target_id, ts) DO NOTHING`
		if _, err := tx.ExecContext(ctx, q, sample.TargetID, sample.Timestamp.UTC(),
			sample.CPUUsage, sample.MemoryUsage, sample.IOReadTotal, sample.IOWriteTotal,
			sample.NetworkUp, sample.NetworkDown, sample.ActiveSessions); err != nil {
			return fmt.Errorf("append sample %s@%s: %w", sample.TargetID, sample.Timestamp, err)
		}
	}

	const qd = `
	INSERT INTO io_detail_samples (target_id, ts, device, mount_point, read_mb_s, write_mb_s)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (target_id, ts, device) DO NOTHING`
	for _, d := range details {
		if _, err := tx.ExecContext(ctx, qd, d.TargetID, d.Timestamp.UTC(), d.Device, d.MountPoint, d.ReadMBs, d.WriteMBs); err != nil {
			return fmt.Errorf("append io detail %s/%s: %w", d.TargetID, d.Device, err)
		}
	}

	const qe = `
	INSERT INTO wait_event_samples (target_id, ts, event_name, session_count, latency_seconds)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (target_id, ts, event_name) DO NOTHING`
	for _, e := range events {
		if _, err := tx.ExecContext(ctx, qe, e.TargetID, e.Timestamp.UTC(), e.EventName, e.SessionCount, e.LatencySeconds); err != nil {
			return fmt.Errorf("append wait event %s/%s: %w", e.TargetID, e.EventName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit sample tx: %w", err)
	}
	return nil
}

func (r *TimeSeriesRepo) MetricsSince(ctx context.Context, targetID string, since time.Time) ([]model.MetricSample, error) {
	const q = `SELECT target_id, ts, cpu_usage, memory_usage, io_read_total, io_write_total, network_up, network_down, active_sessions
FROM performance_samples WHERE target_id = $1 AND ts >= $2 ORDER BY ts ASC`
	rows, err := r.db.QueryContext(ctx, q, targetID, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()
	var out []model.MetricSample
	for rows.Next() {
		var m model.MetricSample
		if err := rows.Scan(&m.TargetID, &m.Timestamp, &m.CPUUsage, &m.MemoryUsage, &m.IOReadTotal, &m.IOWriteTotal, &m.NetworkUp, &m.NetworkDown, &m.ActiveSessions); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *TimeSeriesRepo) IoDetailsSince(ctx context.Context, targetID string, since time.Time) ([]model.IoDetailSample, error) {
	const q = `SELECT target_id, ts, device, mount_point, read_mb_s, write_mb_s
FROM io_detail_samples WHERE target_id = $1 AND ts >= $2 ORDER BY ts ASC, device ASC`
	rows, err := r.db.QueryContext(ctx, q, targetID, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("query io details: %w", err)
	}
	defer rows.Close()
	var out []model.IoDetailSample
	for rows.Next() {
		var d model.IoDetailSample
		if err := rows.Scan(&d.TargetID, &d.Timestamp, &d.Device, &d.MountPoint, &d.ReadMBs, &d.WriteMBs); err != nil {
			return nil, fmt.Errorf("scan io detail: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *TimeSeriesRepo) WaitEventsSince(ctx context.Context, targetID string, since time.Time) ([]model.WaitEventSample, error) {
	const q = `SELECT target_id, ts, event_name, session_count, latency_seconds
FROM wait_event_samples WHERE target_id = $1 AND ts >= $2 ORDER BY ts ASC`
	rows, err := r.db.QueryContext(ctx, q, targetID, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("query wait events: %w", err)
	}
	defer rows.Close()
	var out []model.WaitEventSample
	for rows.Next() {
		var e model.WaitEventSample
		if err := rows.Scan(&e.TargetID, &e.Timestamp, &e.EventName, &e.SessionCount, &e.LatencySeconds); err != nil {
			return nil, fmt.Errorf("scan wait event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Prune deletes rows older than the cutoff across all three series tables.
// Each table is its own transaction-free statement; Postgres row locking
// keeps concurrent appends safe, and a brand-new timestamp can never match
// the cutoff predicate mid-sweep.
func (r *TimeSeriesRepo) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	var total int64
	for _, table := range []string{"performance_samples", "io_detail_samples", "wait_event_samples"} {
		res, err := r.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE ts < $1", table), olderThan.UTC())
		if err != nil {
			return total, fmt.Errorf("prune %s: %w", table, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			total += n
		}
	}
	return total, nil
}

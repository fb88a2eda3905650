package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/proactivedb/fleetmon/internal/monitoring/model"
)

// SnapshotRepo is the PostgreSQL-backed store.SnapshotStore.
type SnapshotRepo struct {
	db *Database
}

func NewSnapshotRepo(db *Database) *SnapshotRepo { return &SnapshotRepo{db: db} }

// Upsert replaces the whole row unconditionally; there is no merging of
// partial fields.
func (r *SnapshotRepo) Upsert(ctx context.Context, s model.Snapshot) error {
	payload, err := json.Marshal(s.Report)
	if err != nil {
		return fmt.Errorf("marshal snapshot payload: %w", err)
	}
	const q = `
	INSERT INTO target_snapshots (id, db_name, last_updated, db_is_up, os_is_up, db_status, payload)
	VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb)
	ON CONFLICT (id) DO UPDATE SET
		db_name      = EXCLUDED.db_name,
		last_updated = EXCLUDED.last_updated,
		db_is_up     = EXCLUDED.db_is_up,
		os_is_up     = EXCLUDED.os_is_up,
		db_status    = EXCLUDED.db_status,
		payload      = EXCLUDED.payload
	`
	if _, err := r.db.ExecContext(ctx, q, s.TargetID, s.DBName, s.LastUpdated.UTC(), s.DBIsUp, s.OSIsUp, s.DBStatus, string(payload)); err != nil {
		return fmt.Errorf("upsert snapshot %s: %w", s.TargetID, err)
	}
	return nil
}

// Get returns the stored snapshot, or a well-formed down/UNKNOWN shell with
// found=false when the target has never reported.
func (r *SnapshotRepo) Get(ctx context.Context, targetID string) (model.Snapshot, bool, error) {
	const q = `SELECT id, db_name, last_updated, db_is_up, os_is_up, db_status, payload
FROM target_snapshots WHERE id = $1`
	rows, err := r.db.QueryContext(ctx, q, targetID)
	if err != nil {
		return model.EmptySnapshot(targetID, time.Now().UTC()), false, fmt.Errorf("get snapshot %s: %w", targetID, err)
	}
	defer rows.Close()
	if !rows.Next() {
		return model.EmptySnapshot(targetID, time.Now().UTC()), false, rows.Err()
	}
	var s model.Snapshot
	var payload []byte
	if err := rows.Scan(&s.TargetID, &s.DBName, &s.LastUpdated, &s.DBIsUp, &s.OSIsUp, &s.DBStatus, &payload); err != nil {
		return model.EmptySnapshot(targetID, time.Now().UTC()), false, fmt.Errorf("scan snapshot %s: %w", targetID, err)
	}
	var rep model.Report
	if err := json.Unmarshal(payload, &rep); err != nil {
		return model.EmptySnapshot(targetID, time.Now().UTC()), false, fmt.Errorf("decode snapshot payload %s: %w", targetID, err)
	}
	s.Report = &rep
	return s, true, nil
}

// ListTargets returns every target that has ever reported, ordered by id.
func (r *SnapshotRepo) ListTargets(ctx context.Context) ([]model.TargetRef, error) {
	const q = `SELECT id, db_name FROM target_snapshots ORDER BY id ASC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	defer rows.Close()
	var out []model.TargetRef
	for rows.Next() {
		var t model.TargetRef
		if err := rows.Scan(&t.ID, &t.DBName); err != nil {
			return nil, fmt.Errorf("scan target: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

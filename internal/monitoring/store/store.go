// Package store defines the authoritative persistence interfaces for the
// monitoring core. There is exactly one source of truth per concern: the
// snapshot store for last-known state and the time-series store for the 24h
// window. Backends are pluggable: in-memory here, PostgreSQL in
// internal/monitoring/database.
package store

import (
	"context"
	"time"

	"github.com/proactivedb/fleetmon/internal/monitoring/model"
)

// SnapshotStore holds the latest full status snapshot per target.
type SnapshotStore interface {
	// Upsert overwrites the target's snapshot unconditionally.
	Upsert(ctx context.Context, s model.Snapshot) error
	// Get returns the snapshot for targetID. When the target has never
	// reported it returns a down/UNKNOWN shell and found=false, never an
	// error for mere absence.
	Get(ctx context.Context, targetID string) (s model.Snapshot, found bool, err error)
	// ListTargets enumerates every target that has ever reported.
	ListTargets(ctx context.Context) ([]model.TargetRef, error)
}

// TimeSeriesStore is the append-mostly sample store with 24h retention.
type TimeSeriesStore interface {
	// AppendSamples atomically writes one report's sample rows. Re-submission
	// of an existing (target, timestamp[, device|event]) key is a silent
	// no-op.
	AppendSamples(ctx context.Context, sample *model.MetricSample, details []model.IoDetailSample, events []model.WaitEventSample) error
	MetricsSince(ctx context.Context, targetID string, since time.Time) ([]model.MetricSample, error)
	IoDetailsSince(ctx context.Context, targetID string, since time.Time) ([]model.IoDetailSample, error)
	WaitEventsSince(ctx context.Context, targetID string, since time.Time) ([]model.WaitEventSample, error)
	// Prune deletes rows with timestamp < olderThan and returns how many went.
	Prune(ctx context.Context, olderThan time.Time) (int64, error)
}

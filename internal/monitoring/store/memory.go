package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/proactivedb/fleetmon/internal/monitoring/model"
)

// MemorySnapshotStore is the in-memory SnapshotStore backend, used by tests
// and by DB-less development runs.
type MemorySnapshotStore struct {
	mu    sync.RWMutex
	snaps map[string]model.Snapshot
}

func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{snaps: map[string]model.Snapshot{}}
}

func (m *MemorySnapshotStore) Upsert(ctx context.Context, s model.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[s.TargetID] = s
	return nil
}

func (m *MemorySnapshotStore) Get(ctx context.Context, targetID string) (model.Snapshot, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.snaps[targetID]; ok {
		return s, true, nil
	}
	return model.EmptySnapshot(targetID, time.Now().UTC()), false, nil
}

func (m *MemorySnapshotStore) ListTargets(ctx context.Context) ([]model.TargetRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.TargetRef, 0, len(m.snaps))
	for _, s := range m.snaps {
		out = append(out, model.TargetRef{ID: s.TargetID, DBName: s.DBName})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type metricKey struct {
	target string
	ts     int64
}

type detailKey struct {
	target string
	ts     int64
	device string
}

type eventKey struct {
	target string
	ts     int64
	event  string
}

// MemoryTimeSeriesStore is the in-memory TimeSeriesStore backend. Appends are
// idempotent on the same natural keys the SQL schema enforces.
type MemoryTimeSeriesStore struct {
	mu      sync.RWMutex
	metrics map[metricKey]model.MetricSample
	details map[detailKey]model.IoDetailSample
	events  map[eventKey]model.WaitEventSample
}

func NewMemoryTimeSeriesStore() *MemoryTimeSeriesStore {
	return &MemoryTimeSeriesStore{
		metrics: map[metricKey]model.MetricSample{},
		details: map[detailKey]model.IoDetailSample{},
		events:  map[eventKey]model.WaitEventSample{},
	}
}

func (m *MemoryTimeSeriesStore) AppendSamples(ctx context.Context, sample *model.MetricSample, details []model.IoDetailSample, events []model.WaitEventSample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sample != nil {
		k := metricKey{sample.TargetID, sample.Timestamp.UTC().UnixNano()}
		if _, exists := m.metrics[k]; !exists {
			s := *sample
			s.Timestamp = s.Timestamp.UTC()
			m.metrics[k] = s
		}
	}
	for _, d := range details {
		k := detailKey{d.TargetID, d.Timestamp.UTC().UnixNano(), d.Device}
		if _, exists := m.details[k]; !exists {
			d.Timestamp = d.Timestamp.UTC()
			m.details[k] = d
		}
	}
	for _, e := range events {
		k := eventKey{e.TargetID, e.Timestamp.UTC().UnixNano(), e.EventName}
		if _, exists := m.events[k]; !exists {
			e.Timestamp = e.Timestamp.UTC()
			m.events[k] = e
		}
	}
	return nil
}

func (m *MemoryTimeSeriesStore) MetricsSince(ctx context.Context, targetID string, since time.Time) ([]model.MetricSample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.MetricSample
	for k, v := range m.metrics {
		if k.target == targetID && !v.Timestamp.Before(since) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (m *MemoryTimeSeriesStore) IoDetailsSince(ctx context.Context, targetID string, since time.Time) ([]model.IoDetailSample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.IoDetailSample
	for k, v := range m.details {
		if k.target == targetID && !v.Timestamp.Before(since) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Device < out[j].Device
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

func (m *MemoryTimeSeriesStore) WaitEventsSince(ctx context.Context, targetID string, since time.Time) ([]model.WaitEventSample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.WaitEventSample
	for k, v := range m.events {
		if k.target == targetID && !v.Timestamp.Before(since) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].EventName < out[j].EventName
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

func (m *MemoryTimeSeriesStore) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, v := range m.metrics {
		if v.Timestamp.Before(olderThan) {
			delete(m.metrics, k)
			n++
		}
	}
	for k, v := range m.details {
		if v.Timestamp.Before(olderThan) {
			delete(m.details, k)
			n++
		}
	}
	for k, v := range m.events {
		if v.Timestamp.Before(olderThan) {
			delete(m.events, k)
			n++
		}
	}
	return n, nil
}

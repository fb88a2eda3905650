package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proactivedb/fleetmon/internal/monitoring/alerting"
	"github.com/proactivedb/fleetmon/internal/monitoring/model"
	"github.com/proactivedb/fleetmon/internal/monitoring/settings"
	"github.com/proactivedb/fleetmon/internal/monitoring/store"
)

type recordingAlerts struct {
	mu      sync.Mutex
	targets []string
	reports []*model.Report
}

func (r *recordingAlerts) Process(ctx context.Context, targetID string, report *model.Report) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets = append(r.targets, targetID)
	r.reports = append(r.reports, report)
}

func newTestPipeline() (*Pipeline, *store.MemorySnapshotStore, *store.MemoryTimeSeriesStore, *recordingAlerts) {
	snaps := store.NewMemorySnapshotStore()
	series := store.NewMemoryTimeSeriesStore()
	alerts := &recordingAlerts{}
	p := NewPipeline(snaps, series, alerts, 24*time.Hour)
	return p, snaps, series, alerts
}

const validReport = `{
	"id": "db-prod-01",
	"dbName": "ORCL",
	"timestamp": "2026-03-01T12:00:00Z",
	"dbIsUp": true,
	"dbStatus": "OPEN",
	"osIsUp": true,
	"kpis": {"cpuUsage": 42.5, "memoryUsage": 61.2, "activeSessions": 8},
	"current_performance": {
		"cpu": 42.5,
		"memory": 61.2,
		"io_read": 12.5,
		"io_write": 3.1,
		"io_details": [{"device": "sda", "mount_point": "/u01", "read_mb_s": 12.5, "write_mb_s": 3.1}],
		"network_up": 0.4,
		"network_down": 1.9,
		"active_sessions": 8
	},
	"topWaitEvents": [
		{"event": "db file sequential read", "value": 0, "data": [
			{"date": "2026-03-01T11:59:00Z", "value": 3, "latency": 0.004}
		]},
		{"event": "log file sync", "value": 2}
	]
}`

func TestIngestValidReport(t *testing.T) {
	ctx := context.Background()
	p, snaps, series, alerts := newTestPipeline()
	receivedAt := time.Date(2026, 3, 1, 12, 0, 30, 0, time.UTC)
	p.now = func() time.Time { return receivedAt }

	ack, err := p.Ingest(ctx, []byte(validReport))
	require.NoError(t, err)
	assert.Equal(t, Ack{Status: "success", ID: "db-prod-01"}, ack)

	snap, found, err := snaps.Get(ctx, "db-prod-01")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "ORCL", snap.DBName)
	assert.True(t, snap.DBIsUp)
	// last_updated is stamped at receipt, not from the agent-declared timestamp
	assert.Equal(t, receivedAt, snap.LastUpdated)

	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	metrics, err := series.MetricsSince(ctx, "db-prod-01", since)
	require.NoError(t, err)
	require.Len(t, metrics, 1)
	assert.Equal(t, 42.5, metrics[0].CPUUsage)
	assert.Equal(t, 8, metrics[0].ActiveSessions)

	details, err := series.IoDetailsSince(ctx, "db-prod-01", since)
	require.NoError(t, err)
	require.Len(t, details, 1)
	assert.Equal(t, "sda", details[0].Device)

	events, err := series.WaitEventsSince(ctx, "db-prod-01", since)
	require.NoError(t, err)
	require.Len(t, events, 2)

	require.Len(t, alerts.targets, 1)
	assert.Equal(t, "db-prod-01", alerts.targets[0])
}

func TestIngestRejectsBadPayloads(t *testing.T) {
	ctx := context.Background()
	p, _, _, alerts := newTestPipeline()

	cases := []struct {
		name string
		raw  string
	}{
		{"NotJSON", `{{{`},
		{"MissingID", `{"timestamp": "2026-03-01T12:00:00Z"}`},
		{"MissingTimestamp", `{"id": "db-prod-01"}`},
		{"BadTimestamp", `{"id": "db-prod-01", "timestamp": "yesterday"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := p.Ingest(ctx, []byte(tc.raw))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidPayload)
		})
	}
	assert.Empty(t, alerts.targets, "rejected payloads must not reach alerting")
}

func TestIngestMissingFieldsMessage(t *testing.T) {
	p, _, _, _ := newTestPipeline()
	_, err := p.Ingest(context.Background(), []byte(`{"dbName": "ORCL"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Missing 'id' or 'timestamp' in payload")
}

func TestIngestIsIdempotent(t *testing.T) {
	ctx := context.Background()
	p, _, series, _ := newTestPipeline()

	_, err := p.Ingest(ctx, []byte(validReport))
	require.NoError(t, err)
	_, err = p.Ingest(ctx, []byte(validReport))
	require.NoError(t, err)

	metrics, err := series.MetricsSince(ctx, "db-prod-01", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, metrics, 1)
}

func TestIngestWaitEventSources(t *testing.T) {
	ctx := context.Background()
	p, _, series, _ := newTestPipeline()

	_, err := p.Ingest(ctx, []byte(validReport))
	require.NoError(t, err)

	events, err := series.WaitEventsSince(ctx, "db-prod-01", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, events, 2)

	byName := map[string]model.WaitEventSample{}
	for _, e := range events {
		byName[e.EventName] = e
	}

	ash := byName["db file sequential read"]
	require.NotNil(t, ash.LatencySeconds, "ASH points carry latency")
	assert.Equal(t, 0.004, *ash.LatencySeconds)
	assert.Equal(t, 3, ash.SessionCount)
	assert.Equal(t, time.Date(2026, 3, 1, 11, 59, 0, 0, time.UTC), ash.Timestamp)

	coarse := byName["log file sync"]
	assert.Nil(t, coarse.LatencySeconds, "snapshot fallback has no latency")
	assert.Equal(t, 2, coarse.SessionCount)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), coarse.Timestamp)
}

type countingSink struct {
	mu       sync.Mutex
	subjects []string
}

func (c *countingSink) Send(ctx context.Context, subject, body string, recipients []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subjects = append(c.subjects, subject)
	return nil
}

// End-to-end through the real alert engine: one report over the CPU
// threshold yields exactly one notification, and the stored snapshot carries
// the reported value.
func TestFreshIngestTriggersCpuAlert(t *testing.T) {
	ctx := context.Background()
	snaps := store.NewMemorySnapshotStore()
	series := store.NewMemoryTimeSeriesStore()

	st := settings.NewStore(filepath.Join(t.TempDir(), "settings.yaml"))
	cfg := settings.Defaults()
	cfg.Thresholds.CPU = 90
	require.NoError(t, st.Save(cfg))

	sink := &countingSink{}
	engine := alerting.NewEngine(st, alerting.NewMemoryDebounceStore(), sink, 3*time.Hour, 24*time.Hour)
	p := NewPipeline(snaps, series, engine, 24*time.Hour)

	raw := fmt.Sprintf(`{
		"id": "db1",
		"timestamp": %q,
		"dbIsUp": true,
		"osIsUp": true,
		"kpis": {"cpuUsage": 95, "memoryUsage": 40, "activeSessions": 3}
	}`, time.Now().UTC().Format(time.RFC3339))

	ack, err := p.Ingest(ctx, []byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "db1", ack.ID)

	require.Len(t, sink.subjects, 1)
	assert.Contains(t, sink.subjects[0], "High CPU Usage")

	snap, found, err := snaps.Get(ctx, "db1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 95.0, float64(snap.Report.Kpis.CPUUsage))
}

func TestIngestWaitEventsWithoutCurrentPerformance(t *testing.T) {
	ctx := context.Background()
	p, _, series, _ := newTestPipeline()

	raw := `{
		"id": "db-prod-01",
		"timestamp": "2026-03-01T12:00:00Z",
		"dbIsUp": true,
		"osIsUp": true,
		"topWaitEvents": [{"event": "log file sync", "value": 2}]
	}`
	_, err := p.Ingest(ctx, []byte(raw))
	require.NoError(t, err)

	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	events, err := series.WaitEventsSince(ctx, "db-prod-01", since)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "log file sync", events[0].EventName)
	assert.Equal(t, 2, events[0].SessionCount)

	// no metric row was fabricated for the absent performance block
	metrics, err := series.MetricsSince(ctx, "db-prod-01", since)
	require.NoError(t, err)
	assert.Empty(t, metrics)
}

func TestIngestSkewedAgentClockStaysFresh(t *testing.T) {
	ctx := context.Background()
	p, snaps, _, _ := newTestPipeline()
	receivedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return receivedAt }

	// agent clock five minutes behind; the report still arrives right now
	raw := `{"id": "db-prod-01", "timestamp": "2026-03-01T11:55:00Z", "dbIsUp": true, "osIsUp": true}`
	_, err := p.Ingest(ctx, []byte(raw))
	require.NoError(t, err)

	snap, found, err := snaps.Get(ctx, "db-prod-01")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, receivedAt, snap.LastUpdated)
	assert.False(t, snap.Stale(receivedAt, 90*time.Second))
}

func TestIngestSnapshotFailureFailsRequest(t *testing.T) {
	ctx := context.Background()
	series := store.NewMemoryTimeSeriesStore()
	alerts := &recordingAlerts{}
	p := NewPipeline(failingSnapshots{}, series, alerts, 24*time.Hour)

	_, err := p.Ingest(ctx, []byte(validReport))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidPayload)
	assert.Empty(t, alerts.targets)
}

type failingSnapshots struct{}

func (failingSnapshots) Upsert(ctx context.Context, s model.Snapshot) error {
	return assert.AnError
}

func (failingSnapshots) Get(ctx context.Context, targetID string) (model.Snapshot, bool, error) {
	return model.Snapshot{}, false, assert.AnError
}

func (failingSnapshots) ListTargets(ctx context.Context) ([]model.TargetRef, error) {
	return nil, assert.AnError
}

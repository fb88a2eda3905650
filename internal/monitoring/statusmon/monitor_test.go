package statusmon

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proactivedb/fleetmon/internal/monitoring/model"
	"github.com/proactivedb/fleetmon/internal/monitoring/settings"
	"github.com/proactivedb/fleetmon/internal/monitoring/store"
)

type sweepRecorder struct {
	mu      sync.Mutex
	reports map[string]*model.Report
}

func (r *sweepRecorder) Process(ctx context.Context, targetID string, report *model.Report) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reports == nil {
		r.reports = map[string]*model.Report{}
	}
	r.reports[targetID] = report
}

func (r *sweepRecorder) get(targetID string) *model.Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reports[targetID]
}

func testSettings(t *testing.T, targets ...settings.CustomerDatabase) *settings.Store {
	t.Helper()
	st := settings.NewStore(filepath.Join(t.TempDir(), "settings.yaml"))
	cfg := settings.Defaults()
	cfg.EmailSettings.Customers = []settings.Customer{
		{ID: "acme", Name: "Acme", Emails: []string{"dba@acme.example"}, Databases: targets},
	}
	require.NoError(t, st.Save(cfg))
	return st
}

func TestSweep(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("FreshTargetEvaluatedWithStoredReport", func(t *testing.T) {
		snaps := store.NewMemorySnapshotStore()
		rec := &sweepRecorder{}
		st := testSettings(t, settings.CustomerDatabase{ID: "db-prod-01", Name: "ORCL"})
		m := NewMonitor(snaps, st, rec, time.Minute, 90*time.Second)
		m.now = func() time.Time { return now }

		stored := &model.Report{ID: "db-prod-01", DBName: "ORCL", DBIsUp: true, OSIsUp: true, DBStatus: "OPEN"}
		require.NoError(t, snaps.Upsert(ctx, model.Snapshot{
			TargetID: "db-prod-01", DBName: "ORCL", LastUpdated: now.Add(-30 * time.Second),
			DBIsUp: true, OSIsUp: true, DBStatus: "OPEN", Report: stored,
		}))

		m.Sweep(ctx)
		got := rec.get("db-prod-01")
		require.NotNil(t, got)
		assert.True(t, got.DBIsUp)
		assert.Equal(t, "OPEN", got.DBStatus)
	})

	t.Run("StaleTargetEvaluatedAsDown", func(t *testing.T) {
		snaps := store.NewMemorySnapshotStore()
		rec := &sweepRecorder{}
		st := testSettings(t, settings.CustomerDatabase{ID: "db-prod-01", Name: "ORCL"})
		m := NewMonitor(snaps, st, rec, time.Minute, 90*time.Second)
		m.now = func() time.Time { return now }

		stored := &model.Report{
			ID: "db-prod-01", DBName: "ORCL", DBIsUp: true, OSIsUp: true, DBStatus: "OPEN",
			Tablespaces: []model.Tablespace{{Name: "USERS", UsedPercent: 50}},
		}
		require.NoError(t, snaps.Upsert(ctx, model.Snapshot{
			TargetID: "db-prod-01", DBName: "ORCL", LastUpdated: now.Add(-2 * time.Minute),
			DBIsUp: true, OSIsUp: true, DBStatus: "OPEN", Report: stored,
		}))

		m.Sweep(ctx)
		got := rec.get("db-prod-01")
		require.NotNil(t, got)
		assert.False(t, got.DBIsUp)
		assert.False(t, got.OSIsUp)
		assert.Equal(t, model.StatusUnknown, got.DBStatus)
		// last known payload is preserved on the synthesized report
		require.Len(t, got.Tablespaces, 1)
		// and the stored report itself is untouched
		assert.True(t, stored.DBIsUp)
	})

	t.Run("NeverReportedTargetEvaluatedAsDown", func(t *testing.T) {
		snaps := store.NewMemorySnapshotStore()
		rec := &sweepRecorder{}
		st := testSettings(t, settings.CustomerDatabase{ID: "db-new", Name: "NEWDB"})
		m := NewMonitor(snaps, st, rec, time.Minute, 90*time.Second)
		m.now = func() time.Time { return now }

		m.Sweep(ctx)
		got := rec.get("db-new")
		require.NotNil(t, got)
		assert.False(t, got.DBIsUp)
		assert.Equal(t, model.StatusUnknown, got.DBStatus)
		assert.Equal(t, "NEWDB", got.DBName)
	})

	t.Run("UnconfiguredTargetsAreNotSwept", func(t *testing.T) {
		snaps := store.NewMemorySnapshotStore()
		rec := &sweepRecorder{}
		st := testSettings(t) // no databases configured
		m := NewMonitor(snaps, st, rec, time.Minute, 90*time.Second)
		m.now = func() time.Time { return now }

		require.NoError(t, snaps.Upsert(ctx, model.Snapshot{
			TargetID: "db-rogue", LastUpdated: now.Add(-time.Hour),
			Report: &model.Report{ID: "db-rogue"},
		}))

		m.Sweep(ctx)
		assert.Nil(t, rec.get("db-rogue"))
	})
}

func TestStartSweepsImmediately(t *testing.T) {
	snaps := store.NewMemorySnapshotStore()
	rec := &sweepRecorder{}
	st := testSettings(t, settings.CustomerDatabase{ID: "db-dead", Name: "DEAD"})
	// interval far beyond the test horizon: only the boot sweep can fire
	m := NewMonitor(snaps, st, rec, time.Hour, 90*time.Second)

	m.Start(context.Background())
	defer m.Stop()

	assert.Eventually(t, func() bool {
		return rec.get("db-dead") != nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStartStopLifecycle(t *testing.T) {
	snaps := store.NewMemorySnapshotStore()
	rec := &sweepRecorder{}
	st := testSettings(t)
	m := NewMonitor(snaps, st, rec, time.Hour, 90*time.Second)

	ctx := context.Background()
	m.Start(ctx)
	m.Start(ctx) // second Start is a no-op
	m.Stop()
	m.Stop() // second Stop is a no-op
}

// Package statusmon drives alerting for targets that stop reporting. The
// ingestion path only evaluates alerts when a report arrives; a dead agent
// never arrives, so this sweep is what notices it.
package statusmon

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/proactivedb/fleetmon/internal/monitoring/model"
	"github.com/proactivedb/fleetmon/internal/monitoring/settings"
	"github.com/proactivedb/fleetmon/internal/monitoring/store"
)

// AlertSink mirrors ingest.AlertSink so both callers share an engine.
type AlertSink interface {
	Process(ctx context.Context, targetID string, r *model.Report)
}

type Monitor struct {
	snapshots store.SnapshotStore
	settings  *settings.Store
	alerts    AlertSink
	interval  time.Duration
	timeout   time.Duration
	now       func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewMonitor(snapshots store.SnapshotStore, st *settings.Store, alerts AlertSink, interval, timeout time.Duration) *Monitor {
	if interval <= 0 {
		interval = time.Minute
	}
	if timeout <= 0 {
		timeout = model.DefaultStatusTimeout
	}
	return &Monitor{
		snapshots: snapshots,
		settings:  st,
		alerts:    alerts,
		interval:  interval,
		timeout:   timeout,
		now:       time.Now,
	}
}

// Start launches the periodic sweep. Calling Start on a running monitor is a
// no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	done := make(chan struct{})
	m.done = done
	go m.run(ctx, done)
	log.Info().Dur("interval", m.interval).Dur("timeout", m.timeout).Msg("status monitor started")
}

// Stop cancels the sweep loop and waits for the in-flight pass to finish.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	log.Info().Msg("status monitor stopped")
}

func (m *Monitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	// a fleet that died while we were down is noticed at boot, not one
	// interval later
	m.Sweep(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Sweep re-evaluates alert conditions for every configured target. Stale
// targets are evaluated against a synthesized down report so the status
// debounce machinery fires and keeps firing on its own schedule.
func (m *Monitor) Sweep(ctx context.Context) {
	cfg, err := m.settings.Load()
	if err != nil {
		log.Error().Err(err).Msg("status sweep: load settings failed")
	}
	now := m.now().UTC()

	for _, target := range cfg.ConfiguredTargets() {
		snap, found, err := m.snapshots.Get(ctx, target.ID)
		if err != nil {
			log.Error().Err(err).Str("target", target.ID).Msg("status sweep: snapshot read failed")
			continue
		}

		switch {
		case !found:
			// never reported at all: treated the same as stale
			m.alerts.Process(ctx, target.ID, downReport(target.ID, targetName(target), nil))
		case snap.Stale(now, m.timeout):
			m.alerts.Process(ctx, target.ID, downReport(target.ID, snap.DBName, snap.Report))
		default:
			m.alerts.Process(ctx, target.ID, snap.Report)
		}
	}
}

func targetName(t model.TargetRef) string {
	if t.DBName != "" {
		return t.DBName
	}
	return t.ID
}

// downReport synthesizes the report a stale target would have sent if it
// could: last known payload with both up flags forced off.
func downReport(targetID, dbName string, last *model.Report) *model.Report {
	r := last.Clone()
	if r == nil {
		r = &model.Report{ID: targetID, DBName: dbName}
	}
	r.DBIsUp = false
	r.OSIsUp = false
	r.DBStatus = model.StatusUnknown
	return r
}

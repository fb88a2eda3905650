// Package ingest is the write path: one agent report in, snapshot replaced,
// history rows appended, alerts evaluated. The three stages have separate
// failure domains. Only a snapshot write failure fails the request; a broken
// history store or alert backend degrades the service but keeps current
// status flowing.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/proactivedb/fleetmon/internal/monitoring/metrics"
	"github.com/proactivedb/fleetmon/internal/monitoring/model"
	"github.com/proactivedb/fleetmon/internal/monitoring/store"
)

// ErrInvalidPayload marks a report the pipeline refuses to accept. Handlers
// map it to a 400.
var ErrInvalidPayload = errors.New("invalid report payload")

// AlertSink is what the pipeline needs from the alert engine.
type AlertSink interface {
	Process(ctx context.Context, targetID string, r *model.Report)
}

// Ack is the response body for an accepted report.
type Ack struct {
	Status string `json:"status"`
	ID     string `json:"id"`
}

type Pipeline struct {
	snapshots store.SnapshotStore
	series    store.TimeSeriesStore
	alerts    AlertSink
	retention time.Duration
	now       func() time.Time
}

func NewPipeline(snapshots store.SnapshotStore, series store.TimeSeriesStore, alerts AlertSink, retention time.Duration) *Pipeline {
	if retention <= 0 {
		retention = model.RetentionWindow
	}
	return &Pipeline{
		snapshots: snapshots,
		series:    series,
		alerts:    alerts,
		retention: retention,
		now:       time.Now,
	}
}

// Ingest validates and persists one raw report payload. Re-submitting the
// same payload is safe: the snapshot write replaces like for like and the
// sample appends are keyed no-ops.
func (p *Pipeline) Ingest(ctx context.Context, raw []byte) (Ack, error) {
	var report model.Report
	if err := json.Unmarshal(raw, &report); err != nil {
		return Ack{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if report.ID == "" || report.Timestamp == "" {
		return Ack{}, fmt.Errorf("%w: Missing 'id' or 'timestamp' in payload", ErrInvalidPayload)
	}
	ts, err := time.Parse(time.RFC3339, report.Timestamp)
	if err != nil {
		return Ack{}, fmt.Errorf("%w: bad timestamp %q: %v", ErrInvalidPayload, report.Timestamp, err)
	}
	ts = ts.UTC()

	// staleness is measured from receipt, not the agent clock: a skewed or
	// slow agent that still delivers must never be projected down
	snap := model.Snapshot{
		TargetID:    report.ID,
		DBName:      report.DBName,
		LastUpdated: p.now().UTC(),
		DBIsUp:      report.DBIsUp,
		OSIsUp:      report.OSIsUp,
		DBStatus:    report.DBStatus,
		Report:      &report,
	}
	if err := p.snapshots.Upsert(ctx, snap); err != nil {
		metrics.IngestFailures.WithLabelValues("snapshot").Inc()
		return Ack{}, fmt.Errorf("persist snapshot for %s: %w", report.ID, err)
	}

	if err := p.appendHistory(ctx, &report, ts); err != nil {
		metrics.IngestFailures.WithLabelValues("history").Inc()
		log.Error().Err(err).Str("target", report.ID).Msg("history append failed, report accepted anyway")
	}

	p.alerts.Process(ctx, report.ID, &report)

	// defensive trim; the retention sweeper remains the real owner of cleanup
	if _, err := p.series.Prune(ctx, p.now().UTC().Add(-p.retention)); err != nil {
		log.Warn().Err(err).Msg("post-ingest prune failed")
	}

	metrics.ReportsIngested.WithLabelValues(report.ID).Inc()
	return Ack{Status: "success", ID: report.ID}, nil
}

// appendHistory derives the sample rows for one report and writes them in a
// single transaction. The metric/io-detail rows need current_performance;
// wait events are appended on their own whenever the report carries them.
func (p *Pipeline) appendHistory(ctx context.Context, r *model.Report, ts time.Time) error {
	var sample *model.MetricSample
	var details []model.IoDetailSample
	if perf := r.CurrentPerformance; perf != nil {
		sample = &model.MetricSample{
			TargetID:       r.ID,
			Timestamp:      ts,
			CPUUsage:       float64(perf.CPU),
			MemoryUsage:    float64(perf.Memory),
			IOReadTotal:    float64(perf.IORead),
			IOWriteTotal:   float64(perf.IOWrite),
			NetworkUp:      float64(perf.NetworkUp),
			NetworkDown:    float64(perf.NetworkDown),
			ActiveSessions: int(perf.ActiveSessions),
		}
		details = make([]model.IoDetailSample, 0, len(perf.IoDetails))
		for _, d := range perf.IoDetails {
			details = append(details, model.IoDetailSample{
				TargetID:   r.ID,
				Timestamp:  ts,
				Device:     d.Device,
				MountPoint: d.MountPoint,
				ReadMBs:    float64(d.ReadMBs),
				WriteMBs:   float64(d.WriteMBs),
			})
		}
	}

	events := waitEventSamples(r, ts)
	if sample == nil && len(events) == 0 {
		return nil
	}
	return p.series.AppendSamples(ctx, sample, details, events)
}

// waitEventSamples flattens the report's wait events. ASH-style events carry
// per-minute points with latency; a coarse v$session fallback carries a
// single session count and no latency, recorded at the report timestamp.
func waitEventSamples(r *model.Report, ts time.Time) []model.WaitEventSample {
	var out []model.WaitEventSample
	for _, ev := range r.TopWaitEvents {
		if ev.Event == "" {
			continue
		}
		if len(ev.Data) > 0 {
			for _, pt := range ev.Data {
				pts, err := time.Parse(time.RFC3339, pt.Date)
				if err != nil {
					continue
				}
				latency := float64(pt.Latency)
				out = append(out, model.WaitEventSample{
					TargetID:       r.ID,
					Timestamp:      pts.UTC(),
					EventName:      ev.Event,
					SessionCount:   int(pt.Value),
					LatencySeconds: &latency,
				})
			}
			continue
		}
		if ev.Value > 0 {
			out = append(out, model.WaitEventSample{
				TargetID:     r.ID,
				Timestamp:    ts,
				EventName:    ev.Event,
				SessionCount: int(ev.Value),
			})
		}
	}
	return out
}

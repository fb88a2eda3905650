// Package history reconstructs chart-ready performance series from the raw
// sample rows. Nothing is precomputed on write; every read assembles the
// window fresh so retention and staleness rules apply uniformly.
package history

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/proactivedb/fleetmon/internal/monitoring/model"
	"github.com/proactivedb/fleetmon/internal/monitoring/store"
)

type Assembler struct {
	series store.TimeSeriesStore
	window time.Duration
	now    func() time.Time
}

func NewAssembler(series store.TimeSeriesStore, window time.Duration) *Assembler {
	if window <= 0 {
		window = model.RetentionWindow
	}
	return &Assembler{series: series, window: window, now: time.Now}
}

// History assembles the full retention-window view for one target. A target
// with no samples yields empty (non-nil) series, never an error.
func (a *Assembler) History(ctx context.Context, targetID string) (*model.PerformanceHistory, error) {
	since := a.now().UTC().Add(-a.window)

	samples, err := a.series.MetricsSince(ctx, targetID, since)
	if err != nil {
		return nil, fmt.Errorf("load metric samples for %s: %w", targetID, err)
	}
	details, err := a.series.IoDetailsSince(ctx, targetID, since)
	if err != nil {
		return nil, fmt.Errorf("load io details for %s: %w", targetID, err)
	}
	events, err := a.series.WaitEventsSince(ctx, targetID, since)
	if err != nil {
		return nil, fmt.Errorf("load wait events for %s: %w", targetID, err)
	}

	detailsAt := groupIoDetails(details)

	h := &model.PerformanceHistory{
		CPU:            make([]model.TimeSeriesPoint, 0, len(samples)),
		Memory:         make([]model.TimeSeriesPoint, 0, len(samples)),
		IORead:         make([]model.TimeSeriesPoint, 0, len(samples)),
		IOWrite:        make([]model.TimeSeriesPoint, 0, len(samples)),
		NetworkUp:      make([]model.TimeSeriesPoint, 0, len(samples)),
		NetworkDown:    make([]model.TimeSeriesPoint, 0, len(samples)),
		ActiveSessions: make([]model.TimeSeriesPoint, 0, len(samples)),
		WaitEvents:     []model.WaitEventSeries{},
	}
	for _, s := range samples {
		h.CPU = append(h.CPU, model.TimeSeriesPoint{Date: s.Timestamp, Value: s.CPUUsage})
		h.Memory = append(h.Memory, model.TimeSeriesPoint{Date: s.Timestamp, Value: s.MemoryUsage})
		h.NetworkUp = append(h.NetworkUp, model.TimeSeriesPoint{Date: s.Timestamp, Value: s.NetworkUp})
		h.NetworkDown = append(h.NetworkDown, model.TimeSeriesPoint{Date: s.Timestamp, Value: s.NetworkDown})
		h.ActiveSessions = append(h.ActiveSessions, model.TimeSeriesPoint{Date: s.Timestamp, Value: float64(s.ActiveSessions)})

		// the per-device breakdown rides on both I/O series at the
		// matching timestamp
		devs := detailsAt[s.Timestamp.UnixNano()]
		h.IORead = append(h.IORead, model.TimeSeriesPoint{Date: s.Timestamp, Value: s.IOReadTotal, Details: devs})
		h.IOWrite = append(h.IOWrite, model.TimeSeriesPoint{Date: s.Timestamp, Value: s.IOWriteTotal, Details: devs})
	}

	h.WaitEvents = assembleWaitEvents(events)
	return h, nil
}

// View returns the reduced series set injected into dashboard report
// payloads, plus the active-session series which travels separately.
func (a *Assembler) View(ctx context.Context, targetID string) (*model.PerformanceHistoryView, []model.TimeSeriesPoint, []model.WaitEventSeries, error) {
	h, err := a.History(ctx, targetID)
	if err != nil {
		return nil, nil, nil, err
	}
	view := &model.PerformanceHistoryView{
		CPU:         h.CPU,
		Memory:      h.Memory,
		IORead:      h.IORead,
		IOWrite:     h.IOWrite,
		NetworkUp:   h.NetworkUp,
		NetworkDown: h.NetworkDown,
	}
	return view, h.ActiveSessions, h.WaitEvents, nil
}

func groupIoDetails(rows []model.IoDetailSample) map[int64][]model.IoDetail {
	if len(rows) == 0 {
		return nil
	}
	out := make(map[int64][]model.IoDetail)
	for _, d := range rows {
		key := d.Timestamp.UnixNano()
		out[key] = append(out[key], model.IoDetail{
			Device:     d.Device,
			MountPoint: d.MountPoint,
			ReadMBs:    model.FlexFloat(d.ReadMBs),
			WriteMBs:   model.FlexFloat(d.WriteMBs),
		})
	}
	return out
}

// assembleWaitEvents groups rows by event name and ranks events by their
// summed session count, heaviest first.
func assembleWaitEvents(rows []model.WaitEventSample) []model.WaitEventSeries {
	byEvent := make(map[string]*model.WaitEventSeries)
	order := make([]string, 0)
	for _, r := range rows {
		s, ok := byEvent[r.EventName]
		if !ok {
			s = &model.WaitEventSeries{Event: r.EventName}
			byEvent[r.EventName] = s
			order = append(order, r.EventName)
		}
		s.Total += r.SessionCount
		pt := model.WaitEventPoint{
			Date:  r.Timestamp.Format(time.RFC3339),
			Value: model.FlexFloat(r.SessionCount),
		}
		if r.LatencySeconds != nil {
			pt.Latency = model.FlexFloat(*r.LatencySeconds)
		}
		s.Data = append(s.Data, pt)
	}

	out := make([]model.WaitEventSeries, 0, len(order))
	for _, name := range order {
		out = append(out, *byEvent[name])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Total > out[j].Total })
	return out
}

package model

import "time"

// TimeSeriesPoint is one chart point. Details is populated only on the I/O
// series, with the device breakdown sharing the exact timestamp.
type TimeSeriesPoint struct {
	Date    time.Time  `json:"date"`
	Value   float64    `json:"value"`
	Details []IoDetail `json:"details,omitempty"`
}

// WaitEventSeries is the chart-ready view of one wait event over the
// retention window, ranked by total session count.
type WaitEventSeries struct {
	Event string           `json:"event"`
	Total int              `json:"value"`
	Data  []WaitEventPoint `json:"data,omitempty"`
}

// PerformanceHistory is the full reconstructed 24h view for one target.
type PerformanceHistory struct {
	CPU            []TimeSeriesPoint `json:"cpu"`
	Memory         []TimeSeriesPoint `json:"memory"`
	IORead         []TimeSeriesPoint `json:"io_read"`
	IOWrite        []TimeSeriesPoint `json:"io_write"`
	NetworkUp      []TimeSeriesPoint `json:"network_up"`
	NetworkDown    []TimeSeriesPoint `json:"network_down"`
	ActiveSessions []TimeSeriesPoint `json:"active_sessions"`
	WaitEvents     []WaitEventSeries `json:"wait_events"`
}

// PerformanceHistoryView is the subset injected into a Report's "performance"
// field for dashboard responses.
type PerformanceHistoryView struct {
	CPU         []TimeSeriesPoint `json:"cpu"`
	Memory      []TimeSeriesPoint `json:"memory"`
	IORead      []TimeSeriesPoint `json:"io_read"`
	IOWrite     []TimeSeriesPoint `json:"io_write"`
	NetworkUp   []TimeSeriesPoint `json:"network_up"`
	NetworkDown []TimeSeriesPoint `json:"network_down"`
}

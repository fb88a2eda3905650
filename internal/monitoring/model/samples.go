package model

import "time"

// RetentionWindow bounds how long metric samples are kept.
const RetentionWindow = 24 * time.Hour

// MetricSample is one periodic scalar point for one target, unique per
// (target, timestamp).
type MetricSample struct {
	TargetID       string
	Timestamp      time.Time
	CPUUsage       float64
	MemoryUsage    float64
	IOReadTotal    float64
	IOWriteTotal   float64
	NetworkUp      float64
	NetworkDown    float64
	ActiveSessions int
}

// IoDetailSample is the per-device breakdown behind one MetricSample's I/O
// totals, unique per (target, timestamp, device).
type IoDetailSample struct {
	TargetID   string
	Timestamp  time.Time
	Device     string
	MountPoint string
	ReadMBs    float64
	WriteMBs   float64
}

// WaitEventSample is one wait-event observation, unique per (target,
// timestamp, event). LatencySeconds is nil when the source was a coarse
// v$session snapshot rather than ASH history.
type WaitEventSample struct {
	TargetID       string
	Timestamp      time.Time
	EventName      string
	SessionCount   int
	LatencySeconds *float64
}

package model

import "time"

// StatusTimeout is how old a snapshot may be before read paths must present
// the target as down regardless of its stored flags.
const DefaultStatusTimeout = 90 * time.Second

const StatusUnknown = "UNKNOWN"

// TargetRef identifies one monitored database/OS pair.
type TargetRef struct {
	ID     string `json:"id"`
	DBName string `json:"dbName"`
}

// Snapshot is the last known full status for a target. The structured payload
// is kept as an opaque whole (replace-on-write, never queried inside), while
// the status columns are lifted out for cheap listing.
type Snapshot struct {
	TargetID    string
	DBName      string
	LastUpdated time.Time
	DBIsUp      bool
	OSIsUp      bool
	DBStatus    string
	Report      *Report
}

// EmptySnapshot is the well-defined shell returned for targets that have
// never reported, so callers never branch on absence.
func EmptySnapshot(targetID string, now time.Time) Snapshot {
	return Snapshot{
		TargetID:    targetID,
		DBName:      targetID,
		LastUpdated: now,
		DBIsUp:      false,
		OSIsUp:      false,
		DBStatus:    StatusUnknown,
		Report: &Report{
			ID:       targetID,
			DBName:   targetID,
			DBIsUp:   false,
			OSIsUp:   false,
			DBStatus: StatusUnknown,
		},
	}
}

// Stale reports whether the snapshot's age exceeds the timeout at the given
// instant.
func (s Snapshot) Stale(now time.Time, timeout time.Duration) bool {
	return now.Sub(s.LastUpdated) > timeout
}

// Projected applies the read-time staleness rule: past the timeout the target
// is presented as fully down with status UNKNOWN, even though the stored
// payload still carries its last reported values. Fresh snapshots come back
// unchanged. Stored up flags must never be trusted without this projection.
func (s Snapshot) Projected(now time.Time, timeout time.Duration) Snapshot {
	if !s.Stale(now, timeout) {
		return s
	}
	out := s
	out.DBIsUp = false
	out.OSIsUp = false
	out.DBStatus = StatusUnknown
	if s.Report != nil {
		r := *s.Report
		r.DBIsUp = false
		r.OSIsUp = false
		r.DBStatus = StatusUnknown
		out.Report = &r
	}
	return out
}

package model

import "encoding/json"

// Report is one full status payload as pushed by a fleet agent. Field names
// follow the agent wire format exactly; numeric fields that agents have been
// observed to send as strings use the Flex types.
type Report struct {
	ID        string `json:"id"`
	DBName    string `json:"dbName"`
	Timestamp string `json:"timestamp"`
	DBIsUp    bool   `json:"dbIsUp"`
	DBStatus  string `json:"dbStatus"`
	OSIsUp    bool   `json:"osIsUp"`

	OsInfo     *OsInfo     `json:"osInfo,omitempty"`
	HostMemory *HostMemory `json:"host_memory,omitempty"`
	Kpis       Kpis        `json:"kpis"`

	CurrentPerformance *CurrentPerformance `json:"current_performance,omitempty"`

	TopCPUProcesses     []ProcessInfo `json:"topCpuProcesses,omitempty"`
	TopMemoryProcesses  []ProcessInfo `json:"topMemoryProcesses,omitempty"`
	TopIoProcesses      []ProcessInfo `json:"topIoProcesses,omitempty"`
	TopNetworkProcesses []ProcessInfo `json:"topNetworkProcesses,omitempty"`

	DiskUsage              []DiskUsage             `json:"diskUsage,omitempty"`
	Tablespaces            []Tablespace            `json:"tablespaces,omitempty"`
	Backups                []Backup                `json:"backups,omitempty"`
	ActiveSessions         []ActiveSession         `json:"activeSessions,omitempty"`
	DetailedActiveSessions []DetailedActiveSession `json:"detailedActiveSessions,omitempty"`
	AlertLog               []AlertLogEntry         `json:"alertLog,omitempty"`
	TopWaitEvents          []WaitEvent             `json:"topWaitEvents,omitempty"`
	StandbyStatus          []StandbyStatus         `json:"standbyStatus,omitempty"`

	// Performance and ActiveSessionsHistory are read-side only: the history
	// assembler injects them before the snapshot is returned to a caller.
	// Agents never send them.
	Performance           *PerformanceHistoryView `json:"performance,omitempty"`
	ActiveSessionsHistory []TimeSeriesPoint       `json:"activeSessionsHistory,omitempty"`
}

// Clone returns a deep copy via JSON round-trip. Used where a caller mutates
// the read-side fields of a stored report.
func (r *Report) Clone() *Report {
	if r == nil {
		return nil
	}
	raw, err := json.Marshal(r)
	if err != nil {
		return nil
	}
	var out Report
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return &out
}

type Kpis struct {
	CPUUsage       FlexFloat `json:"cpuUsage"`
	MemoryUsage    FlexFloat `json:"memoryUsage"`
	ActiveSessions FlexInt   `json:"activeSessions"`
	MemoryUsedGB   FlexFloat `json:"memoryUsedGB,omitempty"`
	MemoryTotalGB  FlexFloat `json:"memoryTotalGB,omitempty"`
}

type IoDetail struct {
	Device     string    `json:"device"`
	MountPoint string    `json:"mount_point"`
	ReadMBs    FlexFloat `json:"read_mb_s"`
	WriteMBs   FlexFloat `json:"write_mb_s"`
}

type CurrentPerformance struct {
	CPU            FlexFloat  `json:"cpu"`
	Memory         FlexFloat  `json:"memory"`
	IORead         FlexFloat  `json:"io_read"`
	IOWrite        FlexFloat  `json:"io_write"`
	IoDetails      []IoDetail `json:"io_details,omitempty"`
	NetworkUp      FlexFloat  `json:"network_up"`
	NetworkDown    FlexFloat  `json:"network_down"`
	ActiveSessions FlexInt    `json:"active_sessions"`
}

type DiskUsage struct {
	MountPoint  string    `json:"mount_point"`
	TotalGB     FlexFloat `json:"total_gb"`
	UsedGB      FlexFloat `json:"used_gb"`
	UsedPercent FlexFloat `json:"used_percent"`
}

type Tablespace struct {
	Name        string    `json:"name"`
	TotalGB     FlexFloat `json:"total_gb"`
	UsedGB      FlexFloat `json:"used_gb"`
	UsedPercent FlexFloat `json:"used_percent"`
}

// Backup is one RMAN backup job run. Byte counts and elapsed seconds are
// coerced defensively: agents report them straight out of v$rman_backup_job_
// details and occasionally as strings.
type Backup struct {
	ID             string    `json:"id"`
	DBName         string    `json:"db_name"`
	StartTime      string    `json:"start_time"`
	EndTime        string    `json:"end_time"`
	Status         string    `json:"status"`
	InputBytes     FlexFloat `json:"input_bytes"`
	OutputBytes    FlexFloat `json:"output_bytes"`
	ElapsedSeconds FlexFloat `json:"elapsed_seconds"`
}

type ActiveSession struct {
	SID      FlexInt `json:"sid"`
	Username string  `json:"username"`
	Program  string  `json:"program"`
}

type DetailedActiveSession struct {
	Inst     FlexInt `json:"inst"`
	SID      FlexInt `json:"sid"`
	Username string  `json:"username"`
	SQLID    string  `json:"sql_id"`
	Status   string  `json:"status"`
	Event    string  `json:"event"`
	ET       FlexInt `json:"et"`
	Module   string  `json:"module"`
	Machine  string  `json:"machine"`
	Terminal string  `json:"terminal"`
}

type AlertLogEntry struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	ErrorCode string `json:"error_code"`
}

// WaitEvent carries either a coarse snapshot (Value only, from v$session) or
// a per-minute history (Data, from ASH) for one named wait event.
type WaitEvent struct {
	Event string           `json:"event"`
	Value FlexFloat        `json:"value"`
	Data  []WaitEventPoint `json:"data,omitempty"`
}

type WaitEventPoint struct {
	Date    string    `json:"date"`
	Value   FlexFloat `json:"value"`
	Latency FlexFloat `json:"latency"`
}

type StandbyStatus struct {
	Name         string    `json:"name"`
	Status       string    `json:"status"`
	TransportLag string    `json:"transport_lag"`
	ApplyLag     string    `json:"apply_lag"`
	MrpStatus    string    `json:"mrp_status"`
	Sequence     FlexInt   `json:"sequence"`
	ApplyRateMBs FlexFloat `json:"apply_rate_mb_s"`
}

type ProcessInfo struct {
	PID     FlexInt   `json:"pid"`
	Name    string    `json:"name"`
	User    string    `json:"user,omitempty"`
	CPU     FlexFloat `json:"cpu,omitempty"`
	Memory  FlexFloat `json:"memory,omitempty"`
	Command string    `json:"command,omitempty"`
}

type OsInfo struct {
	Platform    string    `json:"platform"`
	Release     string    `json:"release"`
	Uptime      string    `json:"uptime,omitempty"`
	TotalCPU    FlexInt   `json:"totalCpu,omitempty"`
	TotalMemory FlexFloat `json:"totalMemory,omitempty"`
}

type HostMemory struct {
	UsedGB  FlexFloat `json:"usedGB"`
	TotalGB FlexFloat `json:"totalGB"`
	Percent FlexFloat `json:"percent"`
}

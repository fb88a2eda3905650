package alerting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/proactivedb/fleetmon/internal/monitoring/metrics"
	"github.com/proactivedb/fleetmon/internal/monitoring/model"
	"github.com/proactivedb/fleetmon/internal/monitoring/notify"
	"github.com/proactivedb/fleetmon/internal/monitoring/settings"
)

const (
	alertTypeStatus   = "status"
	alertTypeLimit    = "threshold"
	alertTypeOraError = "ora_error"
	alertTypeBackup   = "backup_failed"

	// a burst of ORA errors produces one consolidated notification listing
	// at most this many entries
	maxOraErrorsInBody = 10
)

// Engine evaluates one normalized report against the live settings and
// dispatches notifications through the sink. It is called from two racing
// sites (ingestion and the status monitor); the debounce store makes each
// condition transition atomic, so the worst a lost race costs is one extra
// or one suppressed notification.
type Engine struct {
	settings     *settings.Store
	debounce     DebounceStore
	sink         notify.Sink
	statusWindow time.Duration
	dailyWindow  time.Duration
	now          func() time.Time
}

func NewEngine(st *settings.Store, debounce DebounceStore, sink notify.Sink, statusWindow, dailyWindow time.Duration) *Engine {
	if statusWindow <= 0 {
		statusWindow = 3 * time.Hour
	}
	if dailyWindow <= 0 {
		dailyWindow = 24 * time.Hour
	}
	return &Engine{
		settings:     st,
		debounce:     debounce,
		sink:         sink,
		statusWindow: statusWindow,
		dailyWindow:  dailyWindow,
		now:          time.Now,
	}
}

// Process runs every alert condition for one report. Settings are re-read
// here so edits apply on the next evaluation without a restart.
func (e *Engine) Process(ctx context.Context, targetID string, r *model.Report) {
	if r == nil {
		return
	}
	cfg, err := e.settings.Load()
	if err != nil {
		log.Error().Err(err).Str("target", targetID).Msg("load alert settings failed, using defaults")
	}
	recipients := ResolveRecipients(&cfg, targetID)
	dbName := r.DBName
	if dbName == "" {
		dbName = "N/A"
	}

	e.checkStatus(ctx, targetID, dbName, r, recipients)
	e.checkThresholds(ctx, targetID, dbName, r, &cfg, recipients)
	e.checkOraErrors(ctx, targetID, dbName, r, &cfg, recipients)
	e.checkBackups(ctx, targetID, dbName, r, recipients)
}

func (e *Engine) checkStatus(ctx context.Context, targetID, dbName string, r *model.Report, recipients []string) {
	if e.shouldSend(ctx, Key{targetID, alertTypeStatus, "db_down"}, !r.DBIsUp, e.statusWindow) {
		subject := fmt.Sprintf("ALERT: Database Down for %s (%s)", dbName, targetID)
		body := fmt.Sprintf("The database %s (%s) is currently unreachable.", dbName, targetID)
		e.dispatch(ctx, alertTypeStatus, subject, body, recipients)
	}
	if e.shouldSend(ctx, Key{targetID, alertTypeStatus, "os_down"}, !r.OSIsUp, e.statusWindow) {
		subject := fmt.Sprintf("ALERT: OS Unreachable for %s (%s)", dbName, targetID)
		body := fmt.Sprintf("The operating system for the server hosting %s (%s) is not reporting data.", dbName, targetID)
		e.dispatch(ctx, alertTypeStatus, subject, body, recipients)
	}
}

func (e *Engine) checkThresholds(ctx context.Context, targetID, dbName string, r *model.Report, cfg *settings.Settings, recipients []string) {
	kpis := r.Kpis

	if cfg.Thresholds.CPU > 0 {
		active := float64(kpis.CPUUsage) > cfg.Thresholds.CPU
		if e.shouldSend(ctx, Key{targetID, alertTypeLimit, "cpu"}, active, e.dailyWindow) {
			subject := fmt.Sprintf("ALERT: High CPU Usage on %s (%s)", dbName, targetID)
			body := fmt.Sprintf("CPU usage is currently at %.2f%%, exceeding the threshold of %.0f%%.", float64(kpis.CPUUsage), cfg.Thresholds.CPU)
			e.dispatch(ctx, alertTypeLimit, subject, body, recipients)
		}
	}

	if cfg.Thresholds.Memory > 0 {
		active := float64(kpis.MemoryUsage) > cfg.Thresholds.Memory
		if e.shouldSend(ctx, Key{targetID, alertTypeLimit, "memory"}, active, e.dailyWindow) {
			subject := fmt.Sprintf("ALERT: High Memory Usage on %s (%s)", dbName, targetID)
			body := fmt.Sprintf("Memory usage is currently at %.2f%%, exceeding the threshold of %.0f%%.", float64(kpis.MemoryUsage), cfg.Thresholds.Memory)
			e.dispatch(ctx, alertTypeLimit, subject, body, recipients)
		}
	}

	excluded := map[string]struct{}{}
	for _, mp := range cfg.AlertExclusions.ExcludedDisks {
		excluded[mp] = struct{}{}
	}
	for _, disk := range r.DiskUsage {
		if _, skip := excluded[disk.MountPoint]; skip {
			continue
		}
		active := float64(disk.UsedPercent) > cfg.DiskThreshold
		if e.shouldSend(ctx, Key{targetID, alertTypeLimit, "disk_" + disk.MountPoint}, active, e.dailyWindow) {
			subject := fmt.Sprintf("ALERT: High Disk Usage on %s (%s)", dbName, targetID)
			body := fmt.Sprintf("Disk usage for mount point '%s' is at %.2f%%, exceeding the threshold of %.0f%%.", disk.MountPoint, float64(disk.UsedPercent), cfg.DiskThreshold)
			e.dispatch(ctx, alertTypeLimit, subject, body, recipients)
		}
	}

	for _, ts := range r.Tablespaces {
		active := float64(ts.UsedPercent) > cfg.TablespaceThreshold
		if e.shouldSend(ctx, Key{targetID, alertTypeLimit, "ts_" + ts.Name}, active, e.dailyWindow) {
			subject := fmt.Sprintf("ALERT: High Tablespace Usage in %s (%s)", dbName, targetID)
			body := fmt.Sprintf("Tablespace '%s' usage is at %.2f%%, exceeding the threshold of %.0f%%.", ts.Name, float64(ts.UsedPercent), cfg.TablespaceThreshold)
			e.dispatch(ctx, alertTypeLimit, subject, body, recipients)
		}
	}
}

// checkOraErrors treats the whole error log as one consolidated condition
// per target, so an error burst sends a single notification instead of one
// per entry.
func (e *Engine) checkOraErrors(ctx context.Context, targetID, dbName string, r *model.Report, cfg *settings.Settings, recipients []string) {
	var filtered []model.AlertLogEntry
	for _, entry := range r.AlertLog {
		if oraErrorExcluded(entry.ErrorCode, cfg.AlertExclusions.ExcludedOraErrors) {
			continue
		}
		filtered = append(filtered, entry)
	}

	if !e.shouldSend(ctx, Key{targetID, alertTypeOraError, "consolidated"}, len(filtered) > 0, e.dailyWindow) {
		return
	}

	subject := fmt.Sprintf("ALERT: New ORA- Error(s) Detected in %s (%s)", dbName, targetID)
	var b strings.Builder
	fmt.Fprintf(&b, "New ORA- errors were found in the alert log for %s (%s).\n\nRecent errors:\n", dbName, targetID)
	for i, entry := range filtered {
		if i >= maxOraErrorsInBody {
			fmt.Fprintf(&b, "\n...and %d more.", len(filtered)-maxOraErrorsInBody)
			break
		}
		fmt.Fprintf(&b, "- %s: %s\n", entry.Timestamp, entry.ErrorCode)
	}
	e.dispatch(ctx, alertTypeOraError, subject, b.String(), recipients)
}

// checkBackups alerts per failed backup job id: distinct failed runs each
// alert once instead of being debounced against each other.
func (e *Engine) checkBackups(ctx context.Context, targetID, dbName string, r *model.Report, recipients []string) {
	for _, backup := range r.Backups {
		if backup.Status != "FAILED" {
			continue
		}
		if e.shouldSend(ctx, Key{targetID, alertTypeBackup, backup.ID}, true, e.dailyWindow) {
			subject := fmt.Sprintf("ALERT: RMAN Backup Failed for %s (%s)", dbName, targetID)
			body := fmt.Sprintf("An RMAN backup job for %s started at %s has FAILED.", dbName, backup.StartTime)
			e.dispatch(ctx, alertTypeBackup, subject, body, recipients)
		}
	}
}

func (e *Engine) shouldSend(ctx context.Context, key Key, active bool, window time.Duration) bool {
	send, err := e.debounce.Transition(ctx, key, active, window, e.now().UTC())
	if err != nil {
		log.Error().Err(err).Str("key", key.String()).Msg("debounce transition failed")
		return false
	}
	if active && !send {
		metrics.AlertsSuppressed.Inc()
		log.Debug().Str("key", key.String()).Msg("alert suppressed by debounce")
	}
	return send
}

// dispatch sends after the debounce state is already committed: a delivery
// failure is logged and counted but never rolled back, so a flaky transport
// cannot cause a renotification storm.
func (e *Engine) dispatch(ctx context.Context, alertType, subject, body string, recipients []string) {
	if err := e.sink.Send(ctx, subject, body, recipients); err != nil {
		metrics.DeliveryFailures.Inc()
		log.Error().Err(err).Str("subject", subject).Msg("notification delivery failed, debounce state kept")
		return
	}
	metrics.AlertsSent.WithLabelValues(alertType).Inc()
}

func oraErrorExcluded(code string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(code, p) {
			return true
		}
	}
	return false
}

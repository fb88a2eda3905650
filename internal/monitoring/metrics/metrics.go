// Package metrics exposes the service's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReportsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetmon_reports_ingested_total",
		Help: "Agent reports accepted, by target.",
	}, []string{"target"})

	IngestFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetmon_ingest_failures_total",
		Help: "Ingestion step failures, by stage (snapshot, history).",
	}, []string{"stage"})

	AlertsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetmon_alerts_sent_total",
		Help: "Alert notifications dispatched, by alert type.",
	}, []string{"type"})

	AlertsSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fleetmon_alerts_suppressed_total",
		Help: "Alert conditions suppressed by debounce.",
	})

	DeliveryFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fleetmon_alert_delivery_failures_total",
		Help: "Notification deliveries that failed after the debounce state was committed.",
	})

	RowsPruned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fleetmon_samples_pruned_total",
		Help: "Time-series rows deleted by retention pruning.",
	})
)

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pcb_http_requests_total",
			Help: "Total HTTP requests by method, path and status",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pcb_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	AuditEntriesWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pcb_audit_entries_written_total",
			Help: "Audit trail entries written by action category",
		},
		[]string{"category"},
	)

	ConsentChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pcb_consent_checks_total",
			Help: "Consent validity checks by purpose and outcome",
		},
		[]string{"purpose", "outcome"},
	)

	RetentionSweepActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pcb_retention_sweep_actions_total",
			Help: "Retention sweep outcomes by action",
		},
		[]string{"action"},
	)

	BreachesReported = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pcb_breaches_reported_total",
			Help: "Data breaches reported by severity",
		},
		[]string{"severity"},
	)

	DSAROpenRequests = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pcb_dsar_open_requests",
			Help: "Open subject access requests by company",
		},
		[]string{"company"},
	)

	HMRCSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pcb_hmrc_submissions_total",
			Help: "HMRC submissions by type and outcome",
		},
		[]string{"type", "outcome"},
	)
)

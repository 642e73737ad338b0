package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Ingestion metrics
	LeadsIngested    *prometheus.CounterVec
	PayloadsRejected *prometheus.CounterVec
	MessagesAppended *prometheus.CounterVec
	IngestRetries    prometheus.Counter

	// SLA metrics
	SLATransitions   *prometheus.CounterVec
	SLAEscalations   *prometheus.CounterVec
	SLAFirstResponse *prometheus.HistogramVec
	SweepDuration    prometheus.Histogram
	SweepTrackers    *prometheus.CounterVec

	// Assignment metrics
	Assignments *prometheus.CounterVec

	// Audit metrics
	AuditWriteFailures prometheus.Counter
	AuditPending       prometheus.Gauge

	// Outbound metrics
	Replies *prometheus.CounterVec
}

// New creates a Metrics instance registered on reg. Pass prometheus.DefaultRegisterer
// in production and prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),

		LeadsIngested: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leads_ingested_total",
				Help: "Inbound lead events by source and dedup outcome",
			},
			[]string{"source", "outcome"}, // new, merged
		),
		PayloadsRejected: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payloads_rejected_total",
				Help: "Inbound payloads rejected by the normalizer",
			},
			[]string{"channel"},
		),
		MessagesAppended: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conversation_messages_total",
				Help: "Messages appended to conversations",
			},
			[]string{"direction"},
		),
		IngestRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "ingest_retries_total",
			Help: "Ingestion attempts retried after a timeout or transient failure",
		}),

		SLATransitions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sla_transitions_total",
				Help: "SLA status transitions by target status",
			},
			[]string{"status"},
		),
		SLAEscalations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sla_escalations_total",
				Help: "SLA escalations by level reached",
			},
			[]string{"level"},
		),
		SLAFirstResponse: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sla_first_response_seconds",
				Help:    "Time from conversation start to first response",
				Buckets: []float64{60, 300, 900, 1800, 3600, 7200, 14400, 43200, 86400},
			},
			[]string{"within_deadline"},
		),
		SweepDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "sla_sweep_duration_seconds",
			Help:    "Duration of one SLA sweep pass",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}),
		SweepTrackers: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sla_sweep_trackers_total",
				Help: "Trackers seen by the sweeper by outcome",
			},
			[]string{"outcome"}, // evaluated, skipped, failed
		),

		Assignments: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lead_assignments_total",
				Help: "Assignment attempts by strategy and outcome",
			},
			[]string{"strategy", "outcome"}, // assigned, manual, unresolved, failed
		),

		AuditWriteFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "audit_write_failures_total",
			Help: "Audit records that could not be persisted after retries",
		}),
		AuditPending: f.NewGauge(prometheus.GaugeOpts{
			Name: "audit_reconciliation_pending",
			Help: "Audit records waiting for reconciliation",
		}),

		Replies: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "replies_total",
				Help: "Outbound replies by channel and outcome",
			},
			[]string{"channel", "outcome"},
		),
	}
}

// Middleware creates an Echo middleware for Prometheus metrics
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}
			start := time.Now()
			req := c.Request()
			path := c.Path() // route pattern, not the raw URL

			err := next(c)

			status := strconv.Itoa(c.Response().Status)
			m.HTTPRequestsTotal.WithLabelValues(req.Method, path, status).Inc()
			m.HTTPRequestDuration.WithLabelValues(req.Method, path, status).Observe(time.Since(start).Seconds())

			return err
		}
	}
}

// RecordLeadIngested counts an inbound event as a new lead or a merge into an existing one
func (m *Metrics) RecordLeadIngested(source string, isNew bool) {
	if m == nil {
		return
	}
	outcome := "merged"
	if isNew {
		outcome = "new"
	}
	m.LeadsIngested.WithLabelValues(source, outcome).Inc()
}

// RecordPayloadRejected counts a payload the normalizer refused
func (m *Metrics) RecordPayloadRejected(channel string) {
	if m == nil {
		return
	}
	m.PayloadsRejected.WithLabelValues(channel).Inc()
}

// RecordMessageAppended counts a stored message
func (m *Metrics) RecordMessageAppended(direction string) {
	if m == nil {
		return
	}
	m.MessagesAppended.WithLabelValues(direction).Inc()
}

// RecordIngestRetry counts a retried ingestion attempt
func (m *Metrics) RecordIngestRetry() {
	if m == nil {
		return
	}
	m.IngestRetries.Inc()
}

// RecordSLATransition counts a status change
func (m *Metrics) RecordSLATransition(status string) {
	if m == nil {
		return
	}
	m.SLATransitions.WithLabelValues(status).Inc()
}

// RecordEscalation counts an escalation to level
func (m *Metrics) RecordEscalation(level int) {
	if m == nil {
		return
	}
	m.SLAEscalations.WithLabelValues(strconv.Itoa(level)).Inc()
}

// RecordFirstResponse observes first-response latency
func (m *Metrics) RecordFirstResponse(elapsed time.Duration, withinDeadline bool) {
	if m == nil {
		return
	}
	m.SLAFirstResponse.WithLabelValues(strconv.FormatBool(withinDeadline)).Observe(elapsed.Seconds())
}

// RecordSweep observes one sweep pass
func (m *Metrics) RecordSweep(duration time.Duration, evaluated, skipped, failed int) {
	if m == nil {
		return
	}
	m.SweepDuration.Observe(duration.Seconds())
	m.SweepTrackers.WithLabelValues("evaluated").Add(float64(evaluated))
	m.SweepTrackers.WithLabelValues("skipped").Add(float64(skipped))
	m.SweepTrackers.WithLabelValues("failed").Add(float64(failed))
}

// RecordAssignment counts an assignment attempt
func (m *Metrics) RecordAssignment(strategy, outcome string) {
	if m == nil {
		return
	}
	m.Assignments.WithLabelValues(strategy, outcome).Inc()
}

// RecordAuditFailure counts a dropped audit write and updates the backlog gauge
func (m *Metrics) RecordAuditFailure(pending int) {
	if m == nil {
		return
	}
	m.AuditWriteFailures.Inc()
	m.AuditPending.Set(float64(pending))
}

// SetAuditPending updates the reconciliation backlog gauge
func (m *Metrics) SetAuditPending(pending int) {
	if m == nil {
		return
	}
	m.AuditPending.Set(float64(pending))
}

// RecordReply counts an outbound reply
func (m *Metrics) RecordReply(channel, outcome string) {
	if m == nil {
		return
	}
	m.Replies.WithLabelValues(channel, outcome).Inc()
}

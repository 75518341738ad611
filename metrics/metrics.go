package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values for LeadSubmissions
const (
	OutcomeSucceeded        = "succeeded"
	OutcomeValidationFailed = "validation_failed"
	OutcomeSubmissionFailed = "submission_failed"
	OutcomeRejected         = "rejected"
	OutcomeCancelled        = "cancelled"
)

var (
	// LeadSubmissions counts every submit call by campaign and how it ended
	LeadSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lead_submissions_total",
		Help: "Total lead form submissions by campaign and outcome",
	}, []string{"campaign", "outcome"})

	// SubmitDuration measures the network submission step only
	SubmitDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lead_submit_duration_seconds",
		Help:    "Time spent delivering a lead to the backend",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"submitter", "status"})

	// QueueAppendFailures counts swallowed queue write errors.
	// A growing value means the local audit trail is missing leads.
	QueueAppendFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lead_queue_append_failures_total",
		Help: "Queue writes that failed and were absorbed by the store",
	}, []string{"campaign"})

	// QueueReadFailures counts reads that fell back to an empty queue
	QueueReadFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lead_queue_read_failures_total",
		Help: "Queue reads that failed and returned an empty list",
	}, []string{"campaign"})

	// ActiveForms tracks live form instances held by the API
	ActiveForms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lead_active_forms",
		Help: "Form instances currently held in memory",
	})
)

// SecurityAlerts counts alerts raised for repeated failures from one address
var SecurityAlerts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "lead_security_alerts_total",
	Help: "Alerts raised for repeated captcha or admin login failures",
}, []string{"kind"})

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "questionflow_sessions_started_total",
		Help: "Total number of respondent sessions started.",
	})

	SessionsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "questionflow_sessions_completed_total",
		Help: "Total number of respondent sessions that reached the complete state.",
	})

	SessionsEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "questionflow_sessions_evicted_total",
		Help: "Total number of sessions removed after their idle timeout.",
	})

	SessionsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "questionflow_sessions_rejected_total",
		Help: "Total number of session starts refused because the session cap was reached.",
	})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "questionflow_active_sessions",
		Help: "Sessions currently held in memory.",
	})

	AnswersSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "questionflow_answers_submitted_total",
		Help: "Total number of answers, labelled by control type and whether the shape fit.",
	}, []string{"control_type", "status"})

	QuestionsInjected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "questionflow_questions_injected_total",
		Help: "Questions inserted into live queues, labelled by reason.",
	}, []string{"reason"})

	ReferencesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "questionflow_references_dropped_total",
		Help: "Follow-up, classification or injection targets ignored because the question does not exist.",
	})

	FinalScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "questionflow_final_score",
		Help:    "Risk score of completed sessions.",
		Buckets: []float64{0, 5, 10, 20, 30, 50, 75, 100, 150, 250},
	})

	EditWarnings = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "questionflow_edit_warnings_total",
		Help: "Structural warnings raised while renumbering the question tree, labelled by kind.",
	}, []string{"kind"})

	LookupsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "questionflow_lookups_total",
		Help: "Enrichment lookups, labelled by kind and status.",
	}, []string{"kind", "status"})

	LookupDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "questionflow_lookup_duration_ms",
		Help:    "Enrichment lookup latency in milliseconds.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	})

	LookupQueueUtilization = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "questionflow_lookup_queue_utilization_ratio",
		Help: "Current lookup queue utilization (0–1).",
	})
)

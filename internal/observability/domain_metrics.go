package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	answerRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabularqa_answer_requests_total",
			Help: "Total number of answered questions by action and SQL mode.",
		},
		[]string{"action", "mode"},
	)
	answerFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabularqa_answer_failures_total",
			Help: "Total number of failed answer requests by failure stage.",
		},
		[]string{"stage"},
	)
	repairAttemptsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tabularqa_sql_repair_attempts_total",
			Help: "Total number of freeform SQL repair attempts.",
		},
	)
	modelCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabularqa_model_calls_total",
			Help: "Total number of language model calls by purpose.",
		},
		[]string{"purpose"},
	)
	modelCallDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tabularqa_model_call_duration_seconds",
			Help:    "Language model call latency by purpose.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 40},
		},
		[]string{"purpose"},
	)
	sqlQueryDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tabularqa_sql_query_duration_seconds",
			Help:    "SQL execution latency against the business store.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)
	synthCorrectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tabularqa_synth_corrections_total",
			Help: "Total number of numeric-grounding corrective re-prompts.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		answerRequestsTotal,
		answerFailuresTotal,
		repairAttemptsTotal,
		modelCallsTotal,
		modelCallDurationSeconds,
		sqlQueryDurationSeconds,
		synthCorrectionsTotal,
	)
}

func ObserveAnswer(action, mode string) {
	answerRequestsTotal.WithLabelValues(action, mode).Inc()
}

func ObserveAnswerFailure(stage string) {
	answerFailuresTotal.WithLabelValues(stage).Inc()
}

func ObserveRepairAttempt() {
	repairAttemptsTotal.Inc()
}

func ObserveModelCall(purpose string, elapsed time.Duration) {
	modelCallsTotal.WithLabelValues(purpose).Inc()
	modelCallDurationSeconds.WithLabelValues(purpose).Observe(elapsed.Seconds())
}

func ObserveSQLQuery(elapsed time.Duration) {
	sqlQueryDurationSeconds.Observe(elapsed.Seconds())
}

func ObserveSynthCorrection() {
	synthCorrectionsTotal.Inc()
}

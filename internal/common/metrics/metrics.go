package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ClassifierStageHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classifier_stage_hits_total",
			Help: "Total number of classification verdicts by deciding stage",
		},
		[]string{"stage", "verdict"},
	)

	ClassifierFailOpen = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "classifier_fail_open_total",
			Help: "Total number of generative-fallback failures resolved as in-domain",
		},
	)

	AnswersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_answers_total",
			Help: "Total number of answers produced by outcome mode",
		},
		[]string{"mode"},
	)

	PipelineStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "assistant_stage_duration_seconds",
			Help: "Duration of pipeline stage processing in seconds",
		},
		[]string{"stage"},
	)

	OracleFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_oracle_failures_total",
			Help: "Total number of recovered external oracle failures",
		},
		[]string{"oracle", "error_code"},
	)

	MemoryEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "conversation_memory_evictions_total",
			Help: "Total number of turns evicted from conversation memory",
		},
	)
)

package llm

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// llmCalls counts model invocations by operation and outcome
	// (ok|timeout|error).
	llmCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_requests_total",
			Help: "Total number of LLM invocations.",
		},
		[]string{"op", "outcome"},
	)

	// llmLat records model latency in seconds by operation.
	llmLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_request_duration_seconds",
			Help:    "Duration of LLM invocations in seconds.",
			Buckets: []float64{.1, .25, .5, 1, 2, 3, 5, 8, 13, 20, 30},
		},
		[]string{"op"},
	)

	// llmContract counts replies by whether they honoured the JSON contract.
	llmContract = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_output_contract_total",
			Help: "Parsed LLM outputs by contract conformance (structured|legacy).",
		},
		[]string{"op", "format"},
	)
)

func init() {
	prometheus.MustRegister(llmCalls, llmLat, llmContract)
}

func observe(op, outcome string, start time.Time) {
	llmCalls.WithLabelValues(op, outcome).Inc()
	llmLat.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

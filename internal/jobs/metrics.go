package jobs

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/emogotchi/emogotchi-backend/internal/services"
)

var (
	jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diary_jobs_total",
			Help: "Diary jobs executed, by outcome.",
		},
		[]string{"outcome"},
	)
	jobDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "diary_job_duration_seconds",
			Help:    "Diary job latency in seconds.",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 20, 30},
		},
	)
	jobsDispatched = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "diary_jobs_dispatched_total",
			Help: "Diary jobs handed to a dispatcher by the scheduler.",
		},
	)
)

func init() {
	prometheus.MustRegister(jobsTotal, jobDuration, jobsDispatched)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, services.ErrUpstreamTimeout):
		return "timeout"
	case errors.Is(err, services.ErrUserNotFound):
		return "not_found"
	default:
		return "error"
	}
}

func observe(err error, start time.Time) {
	jobsTotal.WithLabelValues(outcome(err)).Inc()
	jobDuration.Observe(time.Since(start).Seconds())
}

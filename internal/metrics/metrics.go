package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "talkbot"

var (
	// WebhooksTotal counts inbound webhook deliveries by bot and outcome
	// (ok, failed, ignored, unauthorized, malformed, unknown_bot).
	WebhooksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhooks_total",
		Help:      "Inbound webhook deliveries by bot and outcome.",
	}, []string{"bot", "outcome"})

	// RoutesTotal counts dispatched turns by route name.
	RoutesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "routes_total",
		Help:      "Dispatched conversation turns by route.",
	}, []string{"route"})

	// TaskCompletionsTotal counts completion procedures by result.
	TaskCompletionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "task_completions_total",
		Help:      "Task completion procedures by result.",
	}, []string{"result"})

	externalDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "external_call_duration_seconds",
		Help:      "Duration of calls to external collaborators.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"service", "operation", "result"})
)

// ObserveExternal records the duration of one external call that started at start.
func ObserveExternal(service, operation string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	externalDuration.WithLabelValues(service, operation, result).Observe(time.Since(start).Seconds())
}

// Handler serves the default registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}

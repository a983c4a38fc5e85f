// Package metrics collects and publishes Prometheus metrics for the
// engagement engine: triggers fired, generation fallbacks, push outcomes,
// and scan latency.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Push outcome labels.
const (
	PushSent    = "sent"
	PushSkipped = "skipped"
	PushFailed  = "failed"
)

// Collector records engine metrics. All methods are safe on a nil receiver
// so callers that run without metrics (CLI one-shots, tests) can pass nil.
type Collector struct {
	triggersFired       *prometheus.CounterVec
	generationFallbacks prometheus.Counter
	pushOutcomes        *prometheus.CounterVec
	scanDuration        prometheus.Histogram
}

// NewCollector creates a Collector and registers its metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		triggersFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stride_triggers_fired_total",
			Help: "Coaching triggers fired, by kind.",
		}, []string{"kind"}),
		generationFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stride_generation_fallbacks_total",
			Help: "Coaching messages served from the static fallback after a generation failure.",
		}),
		pushOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stride_push_outcomes_total",
			Help: "Push dispatch outcomes (sent, skipped, failed).",
		}, []string{"outcome"}),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stride_trigger_scan_duration_seconds",
			Help:    "Duration of one full trigger scan over active tasks.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.triggersFired,
		c.generationFallbacks,
		c.pushOutcomes,
		c.scanDuration,
	)

	return c
}

// RecordTriggerFired counts one fired trigger of the given kind.
func (c *Collector) RecordTriggerFired(kind string) {
	if c == nil {
		return
	}
	c.triggersFired.WithLabelValues(kind).Inc()
}

// RecordGenerationFallback counts one fallback-served message.
func (c *Collector) RecordGenerationFallback() {
	if c == nil {
		return
	}
	c.generationFallbacks.Inc()
}

// RecordPushOutcome counts one push dispatch outcome.
func (c *Collector) RecordPushOutcome(outcome string) {
	if c == nil {
		return
	}
	c.pushOutcomes.WithLabelValues(outcome).Inc()
}

// RecordScanDuration records the latency of one trigger scan.
func (c *Collector) RecordScanDuration(d time.Duration) {
	if c == nil {
		return
	}
	c.scanDuration.Observe(d.Seconds())
}

// Handler returns the Prometheus scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

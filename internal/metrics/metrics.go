// Package metrics exports run counters and the delivery watermark.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "slack_kanbanize"

// Metrics owns a private registry so tests and repeated runs never collide
// with the global default registry.
type Metrics struct {
	reg *prometheus.Registry

	runs        *prometheus.CounterVec
	fetched     prometheus.Counter
	delivered   prometheus.Counter
	attachments prometheus.Counter
	watermark   prometheus.Gauge
	lastSuccess prometheus.Gauge
	duration    prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Feeder passes by outcome (ok, empty, failed) and failing stage.",
		}, []string{"result", "stage"}),
		fetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activities_seen_total",
			Help:      "Raw board activities returned by the source.",
		}),
		delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activities_delivered_total",
			Help:      "Activities newer than the watermark that were posted.",
		}),
		attachments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attachments_posted_total",
			Help:      "Notification cards posted to the chat channel.",
		}),
		watermark: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "watermark_timestamp_seconds",
			Help:      "Unix timestamp of the most recently delivered activity.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix timestamp of the last pass that finished without error.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of one feeder pass.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	m.reg.MustRegister(m.runs, m.fetched, m.delivered, m.attachments, m.watermark, m.lastSuccess, m.duration)
	return m
}

// Run is what one pass reports.
type Run struct {
	Seen        int
	Delivered   int
	Attachments int
	Watermark   time.Time
	Took        time.Duration
	Err         error
	Stage       string
}

// Observe records one pass. A nil receiver is a no-op.
func (m *Metrics) Observe(r Run) {
	if m == nil {
		return
	}
	m.duration.Observe(r.Took.Seconds())
	m.fetched.Add(float64(r.Seen))
	switch {
	case r.Err != nil:
		m.runs.WithLabelValues("failed", r.Stage).Inc()
		return
	case r.Attachments == 0:
		m.runs.WithLabelValues("empty", "").Inc()
	default:
		m.runs.WithLabelValues("ok", "").Inc()
	}
	m.delivered.Add(float64(r.Delivered))
	m.attachments.Add(float64(r.Attachments))
	if !r.Watermark.IsZero() {
		m.watermark.Set(float64(r.Watermark.Unix()))
	}
	m.lastSuccess.SetToCurrentTime()
}

// Registry exposes the underlying registry (tests, custom handlers).
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Push sends the registry to a Pushgateway; used by one-shot runs that exit
// before any scrape could happen.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if job == "" {
		job = "slack_kanbanize"
	}
	return push.New(url, job).Gatherer(m.reg).PushContext(ctx)
}

// Package metrics defines the Prometheus metric collectors used across the
// pipeline and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the pipeline.
type Metrics struct {
	RecordingsTotal    *prometheus.CounterVec
	RecordingDuration  *prometheus.HistogramVec
	RecordingsInFlight prometheus.Gauge
	GateRejectsTotal   *prometheus.CounterVec
	WindowsTotal       *prometheus.CounterVec
	IndexValues        *prometheus.HistogramVec
	EventsPublished    prometheus.Counter
	SkipCacheHitsTotal prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		RecordingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vitalproc_recordings_total",
				Help: "Total recordings processed by outcome (ok, partial, error, skipped).",
			},
			[]string{"outcome"},
		),
		RecordingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vitalproc_recording_duration_seconds",
				Help:    "Wall-clock time spent per recording by stage.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"stage"},
		),
		RecordingsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "vitalproc_recordings_in_flight",
				Help: "Number of recordings currently being processed.",
			},
		),
		GateRejectsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vitalproc_gate_rejects_total",
				Help: "Quality-gate refusals by channel and reason.",
			},
			[]string{"channel", "reason"},
		),
		WindowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vitalproc_ani_windows_total",
				Help: "Per-second analysis windows by result (scored, failed).",
			},
			[]string{"result"},
		),
		IndexValues: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vitalproc_index_values",
				Help:    "Distribution of computed index values.",
				Buckets: []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
			},
			[]string{"index"},
		),
		EventsPublished: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "vitalproc_events_published_total",
				Help: "Total completion events published to Kafka.",
			},
		),
		SkipCacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "vitalproc_skip_cache_hits_total",
				Help: "Recordings skipped because a processed marker was found.",
			},
		),
	}

	prometheus.MustRegister(
		m.RecordingsTotal,
		m.RecordingDuration,
		m.RecordingsInFlight,
		m.GateRejectsTotal,
		m.WindowsTotal,
		m.IndexValues,
		m.EventsPublished,
		m.SkipCacheHitsTotal,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

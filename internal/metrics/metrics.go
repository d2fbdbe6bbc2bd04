// Package metrics registers Prometheus instrumentation for the
// billing surface and DB-backed ledger gauges.
package metrics

import (
	"database/sql"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricPrefix = "upkeep_"

	resultSuccess = "success"
)

var (
	registerOnce sync.Once

	previewTotal   *prometheus.CounterVec
	previewLatency *prometheus.HistogramVec

	commitTotal   *prometheus.CounterVec
	commitLatency *prometheus.HistogramVec

	mirrorTotal   *prometheus.CounterVec
	mirrorLatency *prometheus.HistogramVec

	publishTotal *prometheus.CounterVec
)

// Init registers billing metrics and, when a database handle is
// supplied, ledger gauges backed by count queries.
func Init(db *sql.DB, logger *slog.Logger) {
	registerOnce.Do(func() {
		previewTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "closing_previews_total",
				Help: "Total closing previews by result",
			},
			[]string{"result"},
		)
		previewLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "closing_preview_latency_seconds",
				Help:    "Closing preview latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		commitTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "closing_commits_total",
				Help: "Total closing commits by result",
			},
			[]string{"result"},
		)
		commitLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "closing_commit_latency_seconds",
				Help:    "Closing commit latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		mirrorTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "closing_mirror_total",
				Help: "Total closing mirror operations by result",
			},
			[]string{"result"},
		)
		mirrorLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "closing_mirror_latency_seconds",
				Help:    "Closing mirror latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		publishTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "closing_publish_total",
				Help: "Total committed-closing notifications by result",
			},
			[]string{"result"},
		)

		prometheus.MustRegister(
			previewTotal,
			previewLatency,
			commitTotal,
			commitLatency,
			mirrorTotal,
			mirrorLatency,
			publishTotal,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePreview records preview duration and result.
func ObservePreview(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if previewTotal != nil {
		previewTotal.WithLabelValues(result).Inc()
	}
	if previewLatency != nil {
		previewLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveCommit records commit duration and result.
func ObserveCommit(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if commitTotal != nil {
		commitTotal.WithLabelValues(result).Inc()
	}
	if commitLatency != nil {
		commitLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveMirror records mirror duration and result.
func ObserveMirror(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if mirrorTotal != nil {
		mirrorTotal.WithLabelValues(result).Inc()
	}
	if mirrorLatency != nil {
		mirrorLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncPublish increments the notification counter.
func IncPublish(result string) {
	if result == "" {
		result = resultSuccess
	}
	if publishTotal != nil {
		publishTotal.WithLabelValues(result).Inc()
	}
}

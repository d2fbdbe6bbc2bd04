package metrics

import (
	"database/sql"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

func registerDBMetrics(db *sql.DB, logger *slog.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "closings_total",
			Help: "Committed closing records",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM closings")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "closings_unmirrored",
			Help: "Closing records not yet mirrored downstream",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM closings WHERE mirrored_at IS NULL")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "properties_total",
			Help: "Registered properties",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM properties")
		},
	))
}

func queryCount(db *sql.DB, logger *slog.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.Warn("metrics query failed", "error", err)
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
